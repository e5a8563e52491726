// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"context"

	"github.com/Kuroakira/deep-code-reader/services/reader/graph"
)

// FlowSummary totals the tracer's call-graph view.
type FlowSummary struct {
	TotalFunctions int `json:"total_functions"`
	TotalCalls     int `json:"total_calls"`
}

// FlowReport is the JSON-serializable flow document for one trace: the
// expanded tree, the keyword-classified function lists and the view totals.
type FlowReport struct {
	SchemaVersion string `json:"schema_version"`
	ProjectRoot   string `json:"project_root"`
	Start         string `json:"start"`
	MaxDepth      int    `json:"max_depth"`

	// Tree is the expanded call tree rooted at Start.
	Tree *FlowNode `json:"tree"`

	// AuthenticationFunctions lists functions whose names match the
	// authentication keywords, sorted.
	AuthenticationFunctions []string `json:"authentication_functions"`

	// DataProcessingFunctions lists functions whose names match the
	// data-processing keywords, sorted.
	DataProcessingFunctions []string `json:"data_processing_functions"`

	Summary FlowSummary `json:"summary"`
}

// Report traces from start and assembles the full flow document.
//
// A non-positive maxDepth means DefaultMaxDepth; the report records the
// depth actually used.
func (t *Tracer) Report(ctx context.Context, start string, maxDepth int) *FlowReport {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	return &FlowReport{
		SchemaVersion:           graph.SchemaVersion,
		ProjectRoot:             t.projectRoot,
		Start:                   start,
		MaxDepth:                maxDepth,
		Tree:                    t.Trace(ctx, start, maxDepth),
		AuthenticationFunctions: t.AuthenticationFunctions(),
		DataProcessingFunctions: t.DataProcessingFunctions(),
		Summary: FlowSummary{
			TotalFunctions: t.FunctionCount(),
			TotalCalls:     t.CallEdgeCount(),
		},
	}
}
