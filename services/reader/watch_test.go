// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reader

import (
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Kuroakira/deep-code-reader/services/reader/discovery"
)

func TestWatcher_ShouldIgnore(t *testing.T) {
	svc := NewService(nil)
	dir := writeTestProject(t, sampleFiles())

	w, err := newWatcher(svc, dir, []string{"generated"})
	if err != nil {
		t.Fatalf("newWatcher failed: %v", err)
	}
	defer w.Stop()

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, ".git", "objects", "ab"), true},
		{filepath.Join(dir, "node_modules", "pkg", "index.js"), true},
		{filepath.Join(dir, "__pycache__", "main.cpython-312.pyc"), true},
		{filepath.Join(dir, "generated", "models.py"), true},
		{filepath.Join(dir, "app", "main.py"), false},
		{dir, false},
	}
	for _, tt := range tests {
		if got := w.shouldIgnore(tt.path); got != tt.want {
			t.Errorf("shouldIgnore(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatch_Lifecycle(t *testing.T) {
	svc := NewService(nil)
	t.Cleanup(svc.StopWatchers)
	dir := writeTestProject(t, sampleFiles())

	first, err := svc.Watch(dir)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if count := svc.WatcherCount(); count != 1 {
		t.Errorf("WatcherCount = %d, want 1", count)
	}

	// Watching the same root again returns the existing watcher.
	second, err := svc.Watch(dir)
	if err != nil {
		t.Fatalf("re-Watch failed: %v", err)
	}
	if second != first {
		t.Error("expected the existing watcher for an already-watched root")
	}
	if count := svc.WatcherCount(); count != 1 {
		t.Errorf("WatcherCount = %d, want 1 after re-watch", count)
	}

	if err := svc.Unwatch(dir); err != nil {
		t.Fatalf("Unwatch failed: %v", err)
	}
	if count := svc.WatcherCount(); count != 0 {
		t.Errorf("WatcherCount = %d, want 0", count)
	}

	if err := svc.Unwatch(dir); !errors.Is(err, ErrNotWatching) {
		t.Errorf("expected ErrNotWatching, got %v", err)
	}
}

func TestWatch_MissingRoot(t *testing.T) {
	svc := NewService(nil)
	missing := filepath.Join(t.TempDir(), "missing")

	if _, err := svc.Watch(missing); !errors.Is(err, discovery.ErrRootNotFound) {
		t.Errorf("expected ErrRootNotFound, got %v", err)
	}
}

func TestWatch_FileRoot(t *testing.T) {
	svc := NewService(nil)
	file := filepath.Join(t.TempDir(), "single.py")
	if err := os.WriteFile(file, []byte("def f():\n    pass\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := svc.Watch(file); !errors.Is(err, discovery.ErrNotDirectory) {
		t.Errorf("expected ErrNotDirectory, got %v", err)
	}
}

// dialWatch connects to the watch endpoint and consumes the greeting.
func dialWatch(t *testing.T, svc *Service, serverURL string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/v1/reader/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var greeting WatchEvent
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("Failed to read greeting: %v", err)
	}
	if greeting.Event != "connected" {
		t.Fatalf("greeting Event = %s, want connected", greeting.Event)
	}

	// The greeting is written before the hub registration; wait until the
	// client is registered so broadcasts cannot slip past it.
	deadline := time.Now().Add(5 * time.Second)
	for svc.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if svc.hub.ClientCount() == 0 {
		t.Fatal("watch client never registered with the hub")
	}
	return conn
}

func TestHandleWatch_Stream(t *testing.T) {
	svc := NewService(nil)
	srv := httptest.NewServer(setupReaderTestRouter(svc))
	defer srv.Close()

	conn := dialWatch(t, svc, srv.URL)

	svc.hub.Broadcast(WatchEvent{
		Event:       "updated",
		ProjectRoot: "/some/project",
		SessionID:   "session-1",
	})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event WatchEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}
	if event.Event != "updated" {
		t.Errorf("Event = %s, want updated", event.Event)
	}
	if event.SessionID != "session-1" {
		t.Errorf("SessionID = %s, want session-1", event.SessionID)
	}
}

func TestWatch_RebuildsOnChange(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.WatchDebounce = 50 * time.Millisecond
	svc := NewService(&cfg)
	t.Cleanup(svc.StopWatchers)

	srv := httptest.NewServer(setupReaderTestRouter(svc))
	defer srv.Close()

	dir := writeTestProject(t, sampleFiles())
	if _, err := svc.Watch(dir); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	conn := dialWatch(t, svc, srv.URL)

	path := filepath.Join(dir, "app", "extra.py")
	if err := os.WriteFile(path, []byte("def extra():\n    pass\n"), 0o644); err != nil {
		t.Fatalf("write extra.py: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	for {
		var event WatchEvent
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("never saw an updated event: %v", err)
		}
		if event.Event == "error" {
			t.Fatalf("rebuild failed: %s", event.Error)
		}
		if event.Event != "updated" {
			continue
		}

		if event.SessionID == "" {
			t.Error("expected a session ID on the updated event")
		}
		if event.Totals == nil {
			t.Fatal("expected totals on the updated event")
		}
		if event.Totals.Modules != 3 {
			t.Errorf("Totals.Modules = %d, want 3", event.Totals.Modules)
		}
		break
	}

	if _, err := svc.SessionForRoot(dir); err != nil {
		t.Errorf("expected a cached session after rebuild: %v", err)
	}
}
