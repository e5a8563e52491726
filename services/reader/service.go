// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reader exposes dependency and call-graph analysis as a
// long-running HTTP service.
//
// # Description
//
// The service analyzes a project once per request and caches the result
// as a session: the frozen dependency graph plus every document derived
// from it (cycles, metrics, the analysis result, the flow tracer).
// Follow-up reads address the session by ID and never re-parse.
//
// # Lifecycle
//
//	analyze → session cached → result/cycles/metrics/flow/diagram reads
//	        → optional snapshot save/load, optional file watch
//
// Sessions are immutable after construction. Re-analyzing a project root
// replaces its session; the cache evicts the oldest session when over
// capacity and drops expired sessions on access.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Reads on a cached
// session require no locking because every session field is written
// before publication and never mutated.
package reader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Kuroakira/deep-code-reader/services/reader/diagram"
	"github.com/Kuroakira/deep-code-reader/services/reader/flow"
	"github.com/Kuroakira/deep-code-reader/services/reader/graph"
	"github.com/Kuroakira/deep-code-reader/services/reader/publish"
)

// ServiceConfig holds service-level settings. Per-project settings live
// in reader.config.yaml at each analysis root instead.
type ServiceConfig struct {
	// MaxAnalyzeDuration bounds one full analysis run.
	MaxAnalyzeDuration time.Duration

	// MaxCachedSessions caps the in-memory session cache. The oldest
	// session is evicted when the cache grows past the cap.
	MaxCachedSessions int

	// SessionTTL expires sessions this long after their build. Zero
	// keeps sessions until eviction or replacement.
	SessionTTL time.Duration

	// AllowedRoots restricts analyzable paths to these directory
	// prefixes. Empty allows any absolute path.
	AllowedRoots []string

	// WatchDebounce is the quiet period between a file change and the
	// rebuild it triggers.
	WatchDebounce time.Duration
}

// DefaultServiceConfig returns the production defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxAnalyzeDuration: 30 * time.Second,
		MaxCachedSessions:  5,
		SessionTTL:         0,
		WatchDebounce:      500 * time.Millisecond,
	}
}

// Session is one cached analysis: the frozen graph and every document
// derived from it. All fields are written before the session is
// published and never mutated, so concurrent reads need no locking.
type Session struct {
	// ID identifies the session in the HTTP API.
	ID string

	// ProjectRoot is the cleaned absolute analysis root.
	ProjectRoot string

	// Graph is the frozen dependency graph.
	Graph *graph.DependencyGraph

	// Cycles holds the detected circular dependency chains.
	Cycles [][]string

	// Metrics is the coupling metrics document.
	Metrics *graph.MetricsBundle

	// Result is the assembled analysis document.
	Result *graph.AnalysisResult

	// Tracer is the flow tracer over the frozen graph.
	Tracer *flow.Tracer

	// Stats carries build counts; nil for snapshot-restored sessions.
	Stats *graph.BuildStats

	// FlowMaxDepth is the per-project default trace depth from
	// reader.config.yaml. Zero means the flow package default.
	FlowMaxDepth int

	// BuiltAtMilli is when the analysis completed (Unix milliseconds).
	BuiltAtMilli int64

	// ExpiresAtMilli is when the session expires; 0 means never.
	ExpiresAtMilli int64
}

// Summary converts the session into its API representation.
func (s *Session) Summary() SessionResponse {
	resp := SessionResponse{
		SessionID:        s.ID,
		ProjectRoot:      s.ProjectRoot,
		Modules:          s.Graph.ModuleCount(),
		InternalEdges:    s.Graph.InternalEdgeCount(),
		ExternalPackages: s.Graph.ExternalPackageCount(),
		Functions:        s.Graph.FunctionCount(),
		Cycles:           len(s.Cycles),
		BuiltAtMilli:     s.BuiltAtMilli,
		ExpiresAtMilli:   s.ExpiresAtMilli,
	}
	if s.Stats != nil {
		resp.FilesParsed = s.Stats.FilesParsed
		resp.FilesSkipped = s.Stats.FilesSkipped
		resp.DurationMilli = s.Stats.DurationMilli
	}
	return resp
}

// Service caches analysis sessions and serves them to the HTTP handlers.
//
// Thread Safety: safe for concurrent use.
type Service struct {
	config ServiceConfig

	mu       sync.RWMutex
	sessions map[string]*Session // session ID → session
	byRoot   map[string]string   // project root → session ID

	// analyzeLocks serializes analyses per project root.
	analyzeLocks sync.Map

	// store is the optional snapshot persistence backend.
	store *graph.SnapshotStore

	// publisher is the optional artifact sink, run after every
	// successful analysis.
	publisher publish.Publisher

	hub      *WatchHub
	watchMu  sync.Mutex
	watchers map[string]*Watcher
}

// NewService creates a Service. A nil config uses the defaults.
func NewService(config *ServiceConfig) *Service {
	cfg := DefaultServiceConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.MaxAnalyzeDuration <= 0 {
		cfg.MaxAnalyzeDuration = DefaultServiceConfig().MaxAnalyzeDuration
	}
	if cfg.MaxCachedSessions <= 0 {
		cfg.MaxCachedSessions = DefaultServiceConfig().MaxCachedSessions
	}
	if cfg.WatchDebounce <= 0 {
		cfg.WatchDebounce = DefaultServiceConfig().WatchDebounce
	}

	return &Service{
		config:   cfg,
		sessions: make(map[string]*Session),
		byRoot:   make(map[string]string),
		hub:      NewWatchHub(),
		watchers: make(map[string]*Watcher),
	}
}

// SetSnapshotStore wires the optional snapshot persistence backend.
// Call before serving requests; snapshot endpoints return
// ErrSnapshotsDisabled until a store is set.
func (s *Service) SetSnapshotStore(store *graph.SnapshotStore) {
	s.store = store
}

// SetPublisher wires the optional artifact publisher. Publishing is
// advisory: failures are logged and never fail an analysis. Call before
// serving requests.
func (s *Service) SetPublisher(p publish.Publisher) {
	s.publisher = p
}

// Analyze runs the full pipeline for one project root and caches the
// session.
//
// Description:
//
//	Validates the root, loads reader.config.yaml, builds the dependency
//	graph, detects cycles, computes metrics, assembles the analysis
//	document and constructs the flow tracer. The finished session
//	replaces any earlier session for the same root.
//
//	Per root, only one analysis runs at a time; a concurrent request
//	for the same root fails fast with ErrAnalyzeInProgress rather than
//	queueing.
//
// Outputs:
//   - *Session: the cached session. Nil only when error is non-nil.
//   - error: validation, config or build failure.
func (s *Service) Analyze(ctx context.Context, projectRoot string) (*Session, error) {
	start := time.Now()
	ctx, span := serviceTracer.Start(ctx, "Service.Analyze")
	defer span.End()

	root, err := s.validateProjectRoot(projectRoot)
	if err != nil {
		recordAnalyze(ctx, time.Since(start), false)
		return nil, err
	}

	lock := s.getAnalyzeLock(root)
	if !lock.TryLock() {
		recordAnalyze(ctx, time.Since(start), false)
		return nil, fmt.Errorf("%w: %s", ErrAnalyzeInProgress, root)
	}
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.config.MaxAnalyzeDuration)
	defer cancel()

	cfg, err := LoadReaderConfig(root)
	if err != nil {
		recordAnalyze(ctx, time.Since(start), false)
		return nil, err
	}

	buildOpts := []graph.BuildOption{}
	if len(cfg.ExcludeDirs) > 0 {
		buildOpts = append(buildOpts, graph.WithAdditionalExcludes(cfg.ExcludeDirs...))
	}
	if cfg.Parallelism > 0 {
		buildOpts = append(buildOpts, graph.WithParallelism(cfg.Parallelism))
	}

	g, stats, err := graph.NewBuilder(root, buildOpts...).Build(ctx)
	if err != nil {
		recordAnalyze(ctx, time.Since(start), false)
		return nil, err
	}

	metricsOpts := []graph.MetricsOption{}
	if cfg.TopExternal > 0 {
		metricsOpts = append(metricsOpts, graph.WithTopExternal(cfg.TopExternal))
	}
	if cfg.TopFan > 0 {
		metricsOpts = append(metricsOpts, graph.WithTopFan(cfg.TopFan))
	}

	cycles := g.DetectCycles(ctx)
	metrics := g.ComputeMetrics(ctx, len(cycles), metricsOpts...)

	tracerOpts := []flow.TracerOption{}
	if len(cfg.SkipPatterns) > 0 {
		tracerOpts = append(tracerOpts, flow.WithSkipPatterns(cfg.SkipPatterns))
	}
	flowTracer, err := flow.NewTracer(g, tracerOpts...)
	if err != nil {
		recordAnalyze(ctx, time.Since(start), false)
		return nil, fmt.Errorf("constructing flow tracer: %w", err)
	}

	session := s.newSession(g, cycles, metrics, stats, flowTracer, cfg.FlowMaxDepth)
	s.cacheSession(session)
	s.publishArtifacts(ctx, session)

	span.SetAttributes(
		attribute.String("session.id", session.ID),
		attribute.String("session.root", session.ProjectRoot),
		attribute.Int("session.modules", g.ModuleCount()),
		attribute.Int("session.cycles", len(cycles)),
	)
	recordAnalyze(ctx, time.Since(start), true)

	slog.Info("analysis session created",
		slog.String("session_id", session.ID),
		slog.String("project_root", session.ProjectRoot),
		slog.Int("modules", g.ModuleCount()),
		slog.Int("cycles", len(cycles)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return session, nil
}

// publishArtifacts hands the finished session to the configured
// publisher: the analysis document, the module diagram and, when cycles
// exist, the cycle diagram.
func (s *Service) publishArtifacts(ctx context.Context, session *Session) {
	if s.publisher == nil {
		return
	}

	gen := diagram.NewGenerator(nil)
	diagrams := map[string]string{
		"modules.mmd": gen.ModuleEdges(session.Graph.DependencyRelations()),
	}
	if len(session.Cycles) > 0 {
		diagrams["cycles.mmd"] = gen.CycleEdges(graph.CycleRelations(session.Cycles))
	}

	bundle := &publish.Bundle{
		ProjectRoot: session.ProjectRoot,
		Result:      session.Result,
		Functions:   session.Graph.FunctionCount(),
		Diagrams:    diagrams,
	}
	if err := s.publisher.Publish(ctx, bundle); err != nil {
		slog.Warn("artifact publishing failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()))
	}
}

// GetSession returns a cached session by ID.
//
// Outputs:
//   - *Session: the session. Nil when error is non-nil.
//   - error: ErrSessionNotFound or ErrSessionExpired.
func (s *Service) GetSession(sessionID string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if session.ExpiresAtMilli > 0 && time.Now().UnixMilli() > session.ExpiresAtMilli {
		s.mu.Lock()
		if current, ok := s.sessions[sessionID]; ok && current == session {
			delete(s.sessions, sessionID)
			if s.byRoot[session.ProjectRoot] == sessionID {
				delete(s.byRoot, session.ProjectRoot)
			}
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, sessionID)
	}

	return session, nil
}

// SessionForRoot returns the cached session for a project root, if any.
func (s *Service) SessionForRoot(projectRoot string) (*Session, error) {
	root, err := s.validateProjectRoot(projectRoot)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	sessionID, ok := s.byRoot[root]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: no session for root %s", ErrSessionNotFound, root)
	}
	return s.GetSession(sessionID)
}

// Sessions returns summaries of all cached sessions, newest first.
func (s *Service) Sessions() []SessionResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]SessionResponse, 0, len(s.sessions))
	for _, session := range s.sessions {
		summaries = append(summaries, session.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].BuiltAtMilli > summaries[j].BuiltAtMilli
	})
	return summaries
}

// SessionCount returns the number of cached sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SaveSnapshot persists the graph of one session.
func (s *Service) SaveSnapshot(ctx context.Context, sessionID, label string) (*graph.SnapshotMetadata, error) {
	if s.store == nil {
		return nil, ErrSnapshotsDisabled
	}

	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.store.Save(ctx, session.Graph, label)
}

// LoadSnapshot restores a snapshot into a fresh session.
//
// Description:
//
//	Loads and reconstructs the frozen graph, then re-derives cycles,
//	metrics, the analysis document and the flow tracer from it. The new
//	session replaces any cached session for the same project root.
//
// Outputs:
//   - *Session: the restored session.
//   - *graph.SnapshotMetadata: the stored snapshot metadata.
//   - error: ErrSnapshotsDisabled or a snapshot store failure.
func (s *Service) LoadSnapshot(ctx context.Context, snapshotID string) (*Session, *graph.SnapshotMetadata, error) {
	if s.store == nil {
		return nil, nil, ErrSnapshotsDisabled
	}

	ctx, span := serviceTracer.Start(ctx, "Service.LoadSnapshot")
	defer span.End()

	g, meta, err := s.store.Load(ctx, snapshotID)
	if err != nil {
		return nil, nil, err
	}

	cycles := g.DetectCycles(ctx)
	metrics := g.ComputeMetrics(ctx, len(cycles))
	flowTracer, err := flow.NewTracer(g)
	if err != nil {
		return nil, nil, fmt.Errorf("constructing flow tracer: %w", err)
	}

	session := s.newSession(g, cycles, metrics, nil, flowTracer, 0)
	s.cacheSession(session)

	slog.Info("session restored from snapshot",
		slog.String("session_id", session.ID),
		slog.String("snapshot_id", snapshotID),
		slog.String("project_root", session.ProjectRoot))

	return session, meta, nil
}

// ListSnapshots lists stored snapshot metadata, newest first. An empty
// projectRoot lists snapshots of every project.
func (s *Service) ListSnapshots(ctx context.Context, projectRoot string, limit int) ([]*graph.SnapshotMetadata, error) {
	if s.store == nil {
		return nil, ErrSnapshotsDisabled
	}

	projectHash := ""
	if projectRoot != "" {
		projectHash = graph.ProjectHash(projectRoot)
	}
	return s.store.List(ctx, projectHash, limit)
}

// DeleteSnapshot removes one stored snapshot.
func (s *Service) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	if s.store == nil {
		return ErrSnapshotsDisabled
	}
	return s.store.Delete(ctx, snapshotID)
}

// newSession assembles a Session around a frozen graph.
func (s *Service) newSession(g *graph.DependencyGraph, cycles [][]string, metrics *graph.MetricsBundle,
	stats *graph.BuildStats, flowTracer *flow.Tracer, flowMaxDepth int) *Session {

	now := time.Now().UnixMilli()
	session := &Session{
		ID:           uuid.NewString(),
		ProjectRoot:  g.ProjectRoot(),
		Graph:        g,
		Cycles:       cycles,
		Metrics:      metrics,
		Result:       g.ToAnalysisResult(cycles, metrics, stats),
		Tracer:       flowTracer,
		Stats:        stats,
		FlowMaxDepth: flowMaxDepth,
		BuiltAtMilli: now,
	}
	if s.config.SessionTTL > 0 {
		session.ExpiresAtMilli = now + s.config.SessionTTL.Milliseconds()
	}
	return session
}

// cacheSession publishes a session, replacing any session for the same
// root, and evicts over capacity.
func (s *Service) cacheSession(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oldID, ok := s.byRoot[session.ProjectRoot]; ok {
		delete(s.sessions, oldID)
	}
	s.sessions[session.ID] = session
	s.byRoot[session.ProjectRoot] = session.ID

	s.evictIfNeeded()
}

// evictIfNeeded removes the oldest sessions while over capacity. Caller
// must hold the write lock.
func (s *Service) evictIfNeeded() {
	for len(s.sessions) > s.config.MaxCachedSessions {
		var oldestID string
		oldestTime := time.Now().UnixMilli() + 1
		for id, session := range s.sessions {
			if session.BuiltAtMilli < oldestTime {
				oldestTime = session.BuiltAtMilli
				oldestID = id
			}
		}
		if oldestID == "" {
			return
		}

		evicted := s.sessions[oldestID]
		delete(s.sessions, oldestID)
		if s.byRoot[evicted.ProjectRoot] == oldestID {
			delete(s.byRoot, evicted.ProjectRoot)
		}
		recordEviction(context.Background())

		slog.Info("evicting oldest session",
			slog.String("session_id", oldestID),
			slog.String("project_root", evicted.ProjectRoot))
	}
}

// validateProjectRoot rejects relative and traversal paths and enforces
// the allowlist. Returns the cleaned root used as the cache key.
func (s *Service) validateProjectRoot(projectRoot string) (string, error) {
	if !filepath.IsAbs(projectRoot) {
		return "", fmt.Errorf("%w: %q", ErrRelativePath, projectRoot)
	}

	if strings.Contains(projectRoot, "..") {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, projectRoot)
	}

	root := filepath.Clean(projectRoot)
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	if len(s.config.AllowedRoots) > 0 {
		allowed := false
		for _, prefix := range s.config.AllowedRoots {
			if strings.HasPrefix(root, prefix) {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", fmt.Errorf("%w: %s is outside the allowed roots", ErrPathTraversal, root)
		}
	}

	return root, nil
}

// getAnalyzeLock returns the per-root analyze lock.
func (s *Service) getAnalyzeLock(projectRoot string) *sync.Mutex {
	lock, _ := s.analyzeLocks.LoadOrStore(projectRoot, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
