package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/member-portal/member-portal/internal/safego"
)

// Watch reloads the config file whenever it changes on disk and invokes
// onChange with the freshly loaded configuration. Reload failures are logged
// and the previous configuration stays in effect.
//
// The parent directory is watched rather than the file itself because most
// editors and configmap mounts replace the file via rename, which would
// otherwise drop the watch. The returned stop function releases the watcher.
func Watch(configPath string, onChange func(*Config)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(configPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(configPath)

	safego.Go(func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(configPath)
				if err != nil {
					slog.Error("config reload failed, keeping previous configuration", "path", configPath, "error", err)
					continue
				}
				slog.Info("config reloaded", "path", configPath)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("config watcher error", "error", err)
			}
		}
	})

	return watcher.Close, nil
}
