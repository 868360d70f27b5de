// Package safego launches background goroutines that survive panics.
package safego

import "log/slog"

// Go runs fn in its own goroutine and recovers any panic, logging it instead
// of taking down the process. Long-lived background loops (the session store
// janitor, the audit shipper) go through this so a single panic cannot
// silently end them.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}
