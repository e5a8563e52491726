// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds the module dependency and call graph for a project
// and derives cycles, metrics and serializable analysis documents from it.
//
// # Ownership Model
//
// A Builder has exclusive ownership of all accumulation state while a build
// is running. Parsing fans out across a bounded worker pool, but results are
// folded into the graph strictly sequentially in discovery order, so graph
// state is never shared mutably. When the build completes the Builder hands
// the caller a frozen DependencyGraph and retains no reference to it.
//
// # Thread Safety
//
// A DependencyGraph in the Building state must be confined to one goroutine.
// After Freeze it is immutable: all read operations (cycle detection,
// metrics, serialization, snapshot save) are safe for unlimited concurrent
// use. Mutation attempts after Freeze return ErrGraphFrozen.
//
// # Lifecycle
//
//	Building --Freeze()--> ReadOnly
//
// The transition is one-way. There is no thaw operation; a changed project
// is re-analyzed into a new graph.
package graph

import "errors"

// Sentinel errors for graph lifecycle and lookup failures.
//
// These can be checked with errors.Is() to determine the category of
// failure without inspecting error messages.
var (
	// ErrGraphFrozen indicates a mutation was attempted on a frozen graph.
	ErrGraphFrozen = errors.New("graph is frozen")

	// ErrGraphNil indicates a nil graph was passed to an operation that
	// requires one.
	ErrGraphNil = errors.New("graph is nil")

	// ErrModuleNotFound indicates the named module is not in the graph.
	ErrModuleNotFound = errors.New("module not found")

	// ErrBuildCancelled indicates the build was cancelled via context.
	ErrBuildCancelled = errors.New("build cancelled")
)

// Sentinel errors for the snapshot store.
var (
	// ErrSnapshotNotFound indicates no snapshot exists for the given ID or
	// project.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotCorrupt indicates stored snapshot data failed its
	// integrity check and cannot be loaded.
	ErrSnapshotCorrupt = errors.New("snapshot data corrupt")

	// ErrSchemaIncompatible indicates a snapshot was written with a schema
	// whose major version differs from the current one.
	ErrSchemaIncompatible = errors.New("snapshot schema incompatible")
)
