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
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Kuroakira/deep-code-reader/services/reader/discovery"
)

// WatchEvent is one message on the watch stream.
type WatchEvent struct {
	// Event is "connected", "analyzing", "updated" or "error".
	Event string `json:"event"`

	// ProjectRoot is the watched root the event belongs to. Empty on
	// the initial connected event.
	ProjectRoot string `json:"project_root,omitempty"`

	// SessionID is the replacement session after a successful rebuild.
	SessionID string `json:"session_id,omitempty"`

	// Totals snapshots the rebuilt graph on updated events.
	Totals *WatchTotals `json:"totals,omitempty"`

	// Error carries the failure message on error events.
	Error string `json:"error,omitempty"`
}

// WatchTotals snapshots the graph counters after a rebuild.
type WatchTotals struct {
	Modules          int `json:"modules"`
	InternalEdges    int `json:"internal_edges"`
	ExternalPackages int `json:"external_packages"`
	Functions        int `json:"functions"`
	Cycles           int `json:"cycles"`
}

// WatchHub fans rebuild events out to the connected WebSocket clients.
//
// Thread Safety: safe for concurrent use. Broadcast holds the write
// lock for the duration of the fan-out, which also serializes writes on
// each connection.
type WatchHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWatchHub creates an empty hub.
func NewWatchHub() *WatchHub {
	return &WatchHub{clients: make(map[*websocket.Conn]struct{})}
}

// Register adds a client connection to the hub.
func (h *WatchHub) Register(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[ws] = struct{}{}
}

// Unregister removes a client connection from the hub.
func (h *WatchHub) Unregister(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, ws)
}

// Broadcast sends one event to every connected client. Clients whose
// write fails are dropped and closed.
func (h *WatchHub) Broadcast(event WatchEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ws := range h.clients {
		if err := ws.WriteJSON(event); err != nil {
			slog.Warn("dropping watch client",
				slog.String("error", err.Error()))
			delete(h.clients, ws)
			_ = ws.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *WatchHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Watcher rebuilds one project's analysis when its files change.
//
// Description:
//
//	Watches the project tree recursively with fsnotify, skipping the
//	same directories discovery skips. Changes are debounced: a burst of
//	events triggers a single rebuild after a quiet period. Rebuild
//	outcomes are broadcast over the service's watch hub; failures are
//	logged and broadcast, never fatal.
//
// Thread Safety: Start and Stop are safe to call from any goroutine.
// Stop is idempotent.
type Watcher struct {
	service  *Service
	root     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	ignore   map[string]struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// newWatcher constructs a watcher for one root. extraExcludes extends
// the default discovery exclude set.
func newWatcher(service *Service, root string, extraExcludes []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	ignore := make(map[string]struct{})
	for _, dir := range discovery.DefaultExcludeDirs() {
		ignore[dir] = struct{}{}
	}
	for _, dir := range extraExcludes {
		ignore[dir] = struct{}{}
	}

	return &Watcher{
		service:  service,
		root:     root,
		fsw:      fsw,
		debounce: service.config.WatchDebounce,
		ignore:   ignore,
		done:     make(chan struct{}),
	}, nil
}

// Start registers the directory tree and launches the event loop.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		_ = w.fsw.Close()
		return err
	}
	go w.run()
	return nil
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
	})
}

// addRecursive watches dir and every non-excluded directory below it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			slog.Warn("cannot watch directory",
				slog.String("dir", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

// shouldIgnore reports whether a path sits under an excluded directory.
func (w *Watcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if _, ok := w.ignore[part]; ok {
			return true
		}
	}
	return false
}

// run consumes file events until Stop. Events within one debounce
// window collapse into a single rebuild.
func (w *Watcher) run() {
	var (
		timer  *time.Timer
		flushC <-chan time.Time
	)
	dirty := false

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(event.Name) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						slog.Warn("cannot watch new directory",
							slog.String("dir", event.Name),
							slog.String("error", err.Error()))
					}
				}
			}

			dirty = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				flushC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-flushC:
			timer = nil
			flushC = nil
			if !dirty {
				continue
			}
			dirty = false
			w.rebuild()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("file watcher error",
				slog.String("project_root", w.root),
				slog.String("error", err.Error()))
		}
	}
}

// rebuild re-analyzes the root and broadcasts the outcome.
func (w *Watcher) rebuild() {
	ctx := context.Background()
	w.service.hub.Broadcast(WatchEvent{Event: "analyzing", ProjectRoot: w.root})

	session, err := w.service.Analyze(ctx, w.root)
	if err != nil {
		recordWatchRebuild(ctx, false)
		slog.Warn("watch rebuild failed",
			slog.String("project_root", w.root),
			slog.String("error", err.Error()))
		w.service.hub.Broadcast(WatchEvent{
			Event:       "error",
			ProjectRoot: w.root,
			Error:       err.Error(),
		})
		return
	}

	recordWatchRebuild(ctx, true)
	slog.Info("watch rebuild complete",
		slog.String("project_root", w.root),
		slog.String("session_id", session.ID))

	w.service.hub.Broadcast(WatchEvent{
		Event:       "updated",
		ProjectRoot: w.root,
		SessionID:   session.ID,
		Totals:      sessionTotals(session),
	})
}

// sessionTotals snapshots a session's graph counters for broadcast.
func sessionTotals(session *Session) *WatchTotals {
	return &WatchTotals{
		Modules:          session.Graph.ModuleCount(),
		InternalEdges:    session.Graph.InternalEdgeCount(),
		ExternalPackages: session.Graph.ExternalPackageCount(),
		Functions:        session.Graph.FunctionCount(),
		Cycles:           len(session.Cycles),
	}
}

// Watch starts watching a project root. Watching an already-watched
// root is a no-op returning the existing watcher.
func (s *Service) Watch(projectRoot string) (*Watcher, error) {
	root, err := s.validateProjectRoot(projectRoot)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", discovery.ErrRootNotFound, root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", discovery.ErrNotDirectory, root)
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if w, ok := s.watchers[root]; ok {
		return w, nil
	}

	cfg, err := LoadReaderConfig(root)
	if err != nil {
		return nil, err
	}

	w, err := newWatcher(s, root, cfg.ExcludeDirs)
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting watcher for %s: %w", root, err)
	}
	s.watchers[root] = w

	slog.Info("watching project root",
		slog.String("project_root", root),
		slog.Duration("debounce", w.debounce))

	return w, nil
}

// Unwatch stops watching a project root.
func (s *Service) Unwatch(projectRoot string) error {
	root, err := s.validateProjectRoot(projectRoot)
	if err != nil {
		return err
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	w, ok := s.watchers[root]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotWatching, root)
	}
	w.Stop()
	delete(s.watchers, root)

	slog.Info("stopped watching project root", slog.String("project_root", root))
	return nil
}

// WatcherCount returns the number of active watchers.
func (s *Service) WatcherCount() int {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	return len(s.watchers)
}

// StopWatchers stops every active watcher. Called on shutdown.
func (s *Service) StopWatchers() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	for root, w := range s.watchers {
		w.Stop()
		delete(s.watchers, root)
	}
}

var watchUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// HandleWatchStart handles POST /v1/reader/watch.
//
// Request Body:
//
//	WatchRequest (project_root required)
//
// Response:
//
//	200 OK: WatchResponse
//	400 Bad Request: Invalid body or root
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleWatchStart(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWatchStart")

	var req WatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	w, err := h.svc.Watch(req.ProjectRoot)
	if err != nil {
		respondServiceError(c, logger, err)
		return
	}

	logger.Info("watch started", slog.String("project_root", w.root))

	c.JSON(http.StatusOK, WatchResponse{
		Watching:    true,
		ProjectRoot: w.root,
	})
}

// HandleWatchStop handles DELETE /v1/reader/watch.
//
// Request Body:
//
//	WatchRequest (project_root required)
//
// Response:
//
//	200 OK: WatchResponse
//	404 Not Found: Root is not being watched
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleWatchStop(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWatchStop")

	var req WatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := h.svc.Unwatch(req.ProjectRoot); err != nil {
		respondServiceError(c, logger, err)
		return
	}

	logger.Info("watch stopped", slog.String("project_root", req.ProjectRoot))

	c.JSON(http.StatusOK, WatchResponse{
		Watching:    false,
		ProjectRoot: req.ProjectRoot,
	})
}

// HandleWatch handles GET /v1/reader/watch.
//
// Description:
//
//	Upgrades the connection to a WebSocket and streams rebuild events
//	until the client disconnects. The first message is always
//	{"event": "connected"}.
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleWatch(c *gin.Context) {
	ws, err := watchUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade the websocket", slog.Any("error", err))
		return
	}
	defer ws.Close()

	if err := ws.WriteJSON(WatchEvent{Event: "connected"}); err != nil {
		slog.Warn("failed to write watch greeting", slog.Any("error", err))
		return
	}

	h.svc.hub.Register(ws)
	defer h.svc.hub.Unregister(ws)

	slog.Info("watch client connected")

	// Drain client messages until disconnect. The stream is one-way.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			slog.Info("watch client disconnected", slog.String("reason", err.Error()))
			return
		}
	}
}
