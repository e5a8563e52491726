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

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists for the
	// requested session ID or project root.
	ErrSessionNotFound = errors.New("analysis session not found")

	// ErrSessionExpired is returned when a session exists but its TTL has
	// passed. The session is removed on first access after expiry.
	ErrSessionExpired = errors.New("analysis session expired")

	// ErrAnalyzeInProgress is returned when an analysis for the same
	// project root is already running.
	ErrAnalyzeInProgress = errors.New("analysis already in progress for this project root")

	// ErrRelativePath is returned when the project root is not absolute.
	ErrRelativePath = errors.New("project root must be an absolute path")

	// ErrPathTraversal is returned when the project root contains path
	// traversal sequences or resolves outside the allowed roots.
	ErrPathTraversal = errors.New("project root contains path traversal")

	// ErrSnapshotsDisabled is returned by snapshot operations when the
	// service was started without a snapshot store.
	ErrSnapshotsDisabled = errors.New("snapshot persistence not configured")

	// ErrNotWatching is returned when stopping a watch for a project root
	// that has no active watcher.
	ErrNotWatching = errors.New("project root is not being watched")
)
