package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleEntry() *LogEntry {
	return &LogEntry{
		Timestamp:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Action:         "context.switch_org",
		UserID:         "user-1",
		OrganizationID: "org-1",
		ResourceType:   "organization",
		IPAddress:      "10.0.0.1",
		StatusCode:     200,
	}
}

func TestFileShipper_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	fs, err := NewFileShipper(&FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileShipper: %v", err)
	}

	if err := fs.Ship(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	second := sampleEntry()
	second.Action = "invite.create"
	if err := fs.Ship(context.Background(), second); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	var actions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		actions = append(actions, entry.Action)
	}
	if len(actions) != 2 || actions[0] != "context.switch_org" || actions[1] != "invite.create" {
		t.Errorf("actions = %v", actions)
	}
}

func TestWebhookShipper_PostsEntry(t *testing.T) {
	received := make(chan *LogEntry, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Audit-Key") != "sekrit" {
			t.Errorf("custom header missing, got %q", r.Header.Get("X-Audit-Key"))
		}
		var entry LogEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			t.Errorf("decode body: %v", err)
		}
		received <- &entry
	}))
	defer srv.Close()

	ws := NewWebhookShipper(&WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"X-Audit-Key": "sekrit"},
	})

	if err := ws.Ship(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("Ship: %v", err)
	}

	entry := <-received
	if entry.Action != "context.switch_org" || entry.UserID != "user-1" {
		t.Errorf("shipped entry = %+v", entry)
	}
}

func TestWebhookShipper_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ws := NewWebhookShipper(&WebhookConfig{URL: srv.URL})
	if err := ws.Ship(context.Background(), sampleEntry()); err == nil {
		t.Error("expected error for 502 response")
	}
}

func TestNewMultiShipper_SkipsDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	ms, err := NewMultiShipper([]ShipperConfig{
		{Enabled: false, Type: "webhook"},
		{Enabled: true, Type: "file", File: &FileConfig{Path: path}},
	})
	if err != nil {
		t.Fatalf("NewMultiShipper: %v", err)
	}
	defer ms.Close()

	if len(ms.shippers) != 1 {
		t.Errorf("shippers = %d, want 1", len(ms.shippers))
	}
}

func TestNewMultiShipper_UnknownType(t *testing.T) {
	if _, err := NewMultiShipper([]ShipperConfig{{Enabled: true, Type: "kafka"}}); err == nil {
		t.Error("expected error for unknown shipper type")
	}
}

func TestMultiShipper_FanOut(t *testing.T) {
	pathA := filepath.Join(t.TempDir(), "a.log")
	pathB := filepath.Join(t.TempDir(), "b.log")
	ms, err := NewMultiShipper([]ShipperConfig{
		{Enabled: true, Type: "file", File: &FileConfig{Path: pathA}},
		{Enabled: true, Type: "file", File: &FileConfig{Path: pathB}},
	})
	if err != nil {
		t.Fatalf("NewMultiShipper: %v", err)
	}

	if err := ms.Ship(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if err := ms.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for _, path := range []string{pathA, pathB} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", path)
		}
	}
}
