// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flow traces call flow through an analyzed project: starting from
// one function, it expands the call table into a bounded tree and reports
// which functions look like authentication or data-processing code.
//
// # Ownership Model
//
// A Tracer takes its call-graph view from a frozen dependency graph at
// construction time and never looks at the graph again. The view excludes
// functions declared in test-like files so traces follow production paths.
//
// # Thread Safety
//
// A Tracer is immutable after construction and safe for unlimited
// concurrent use. Each Trace call keeps its visited set on its own stack.
package flow

import "errors"

// Sentinel errors for tracer construction.
//
// These can be checked with errors.Is() to determine the category of
// failure without inspecting error messages.
var (
	// ErrGraphNil indicates a nil dependency graph was passed to NewTracer.
	ErrGraphNil = errors.New("trace graph is nil")

	// ErrGraphNotFrozen indicates the dependency graph is still building.
	// The tracer requires a frozen graph so its view cannot drift.
	ErrGraphNotFrozen = errors.New("trace graph is not frozen")
)
