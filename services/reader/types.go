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

import "github.com/Kuroakira/deep-code-reader/services/reader/graph"

// ServiceVersion identifies this service build in health responses.
const ServiceVersion = "0.1.0"

// AnalyzeRequest is the request body for POST /v1/reader/analyze.
type AnalyzeRequest struct {
	// ProjectRoot is the absolute path of the project to analyze.
	ProjectRoot string `json:"project_root" binding:"required"`
}

// SessionResponse summarizes one analysis session.
type SessionResponse struct {
	// SessionID identifies the session for follow-up reads.
	SessionID string `json:"session_id"`

	// ProjectRoot is the analyzed project root path.
	ProjectRoot string `json:"project_root"`

	// Modules is the number of registered internal modules.
	Modules int `json:"modules"`

	// InternalEdges is the number of internal dependency edges.
	InternalEdges int `json:"internal_edges"`

	// ExternalPackages is the number of distinct external packages.
	ExternalPackages int `json:"external_packages"`

	// Functions is the number of registered functions.
	Functions int `json:"functions"`

	// Cycles is the number of detected circular dependency chains.
	Cycles int `json:"cycles"`

	// FilesParsed and FilesSkipped report what the build saw. Zero for
	// sessions restored from a snapshot.
	FilesParsed  int `json:"files_parsed"`
	FilesSkipped int `json:"files_skipped"`

	// DurationMilli is the analysis wall-clock time in milliseconds.
	DurationMilli int64 `json:"duration_milli"`

	// BuiltAtMilli is when the analysis completed (Unix milliseconds).
	BuiltAtMilli int64 `json:"built_at_milli"`

	// ExpiresAtMilli is when the session expires; 0 means never.
	ExpiresAtMilli int64 `json:"expires_at_milli,omitempty"`
}

// ListSessionsResponse is the response for GET /v1/reader/sessions.
type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// CyclesResponse is the response for GET /v1/reader/sessions/:id/cycles.
type CyclesResponse struct {
	// Count is the number of detected cycle chains.
	Count int `json:"count"`

	// Cycles lists each chain as an ordered module sequence with the
	// first module repeated at the end.
	Cycles [][]string `json:"cycles"`
}

// DiagramResponse is the response for GET /v1/reader/sessions/:id/diagram.
type DiagramResponse struct {
	// Kind is the rendered diagram kind.
	Kind string `json:"kind"`

	// Format is "mermaid" or "drawio".
	Format string `json:"format"`

	// Content is the diagram text.
	Content string `json:"content"`
}

// SaveSnapshotRequest is the request body for POST /v1/reader/snapshots.
type SaveSnapshotRequest struct {
	// SessionID selects the session whose graph is persisted.
	SessionID string `json:"session_id" binding:"required"`

	// Label is an optional human-readable snapshot label.
	Label string `json:"label,omitempty"`
}

// SaveSnapshotResponse is the response for POST /v1/reader/snapshots.
type SaveSnapshotResponse struct {
	Metadata *graph.SnapshotMetadata `json:"metadata"`
}

// ListSnapshotsResponse is the response for GET /v1/reader/snapshots.
type ListSnapshotsResponse struct {
	Snapshots []*graph.SnapshotMetadata `json:"snapshots"`
}

// LoadSnapshotResponse is the response for POST /v1/reader/snapshots/:id/load.
// Loading a snapshot creates a fresh session over the restored graph.
type LoadSnapshotResponse struct {
	Session  SessionResponse         `json:"session"`
	Metadata *graph.SnapshotMetadata `json:"metadata"`
}

// WatchRequest is the request body for POST and DELETE /v1/reader/watch.
type WatchRequest struct {
	// ProjectRoot is the absolute path of the project to watch.
	ProjectRoot string `json:"project_root" binding:"required"`
}

// WatchResponse is the response for watch start and stop.
type WatchResponse struct {
	// Watching reports whether a watcher is active for the root after
	// the call.
	Watching bool `json:"watching"`

	// ProjectRoot is the watched project root path.
	ProjectRoot string `json:"project_root"`
}

// HealthResponse is the response for GET /v1/reader/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/reader/ready.
type ReadyResponse struct {
	// Ready is true once the service accepts analysis requests.
	Ready bool `json:"ready"`

	// Sessions is the number of cached analysis sessions.
	Sessions int `json:"sessions"`

	// Watchers is the number of active file watchers.
	Watchers int `json:"watchers"`

	// SnapshotsEnabled reports whether a snapshot store is configured.
	SnapshotsEnabled bool `json:"snapshots_enabled"`
}

// ErrorResponse is the error envelope every handler returns on failure.
type ErrorResponse struct {
	// Error is a human-readable message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details carries optional additional context.
	Details string `json:"details,omitempty"`
}
