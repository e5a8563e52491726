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
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Kuroakira/deep-code-reader/services/reader/graph"
)

// DefaultMaxDepth is the trace depth bound used when the caller passes a
// non-positive depth.
const DefaultMaxDepth = 5

// DefaultSkipPatterns lists the path substrings that mark a file as
// test-like. Functions declared in matching files are excluded from the
// tracer's call-graph view.
var DefaultSkipPatterns = []string{
	"test_", "_test.", "tests/", "__pycache__", "venv/", "node_modules/",
}

// Keyword lists for pattern classification. Matching is a case-insensitive
// substring test against the function name.
var (
	authKeywords    = []string{"auth", "login", "token", "verify", "authenticate", "session"}
	processKeywords = []string{"process", "transform", "parse", "validate", "sanitize", "format"}
)

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithSkipPatterns replaces the default test-file skip patterns. An empty
// list disables skipping entirely.
func WithSkipPatterns(patterns []string) TracerOption {
	return func(t *Tracer) {
		t.skipPatterns = patterns
	}
}

// WithAdditionalSkipPatterns appends patterns to the current skip list.
func WithAdditionalSkipPatterns(patterns ...string) TracerOption {
	return func(t *Tracer) {
		t.skipPatterns = append(t.skipPatterns, patterns...)
	}
}

// Tracer expands call flow trees over the function table of one frozen
// dependency graph.
//
// The call-graph view is copied out of the graph at construction time with
// test-like declarations removed, so a Tracer stays valid for its whole
// life regardless of what the caller later does with the graph reference.
type Tracer struct {
	projectRoot  string
	skipPatterns []string

	// calls maps each kept function name to its callee list, in the
	// order the declarations recorded them, duplicates preserved.
	calls map[string][]string

	// order holds kept function names in first-fold order.
	order []string

	// callEdges is the total callee reference count across the view.
	callEdges int
}

// NewTracer builds a tracer view from a frozen dependency graph.
//
// Inputs:
//   - g: the frozen graph to read the function table from
//   - opts: optional configuration
//
// Outputs:
//   - *Tracer: ready for concurrent use
//   - error: ErrGraphNil or ErrGraphNotFrozen
func NewTracer(g *graph.DependencyGraph, opts ...TracerOption) (*Tracer, error) {
	if g == nil {
		return nil, ErrGraphNil
	}
	if !g.IsFrozen() {
		return nil, ErrGraphNotFrozen
	}

	t := &Tracer{
		projectRoot:  g.ProjectRoot(),
		skipPatterns: append([]string(nil), DefaultSkipPatterns...),
		calls:        make(map[string][]string),
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, name := range g.FunctionNames() {
		fn, ok := g.Function(name)
		if !ok {
			continue
		}
		if t.isTestLike(fn.File) {
			continue
		}
		t.order = append(t.order, name)
		t.calls[name] = fn.Calls
		t.callEdges += len(fn.Calls)
	}
	return t, nil
}

// isTestLike reports whether the declaring file matches a skip pattern.
func (t *Tracer) isTestLike(file string) bool {
	p := filepath.ToSlash(file)
	for _, pattern := range t.skipPatterns {
		if strings.Contains(p, pattern) {
			return true
		}
	}
	return false
}

// FlowNode is one node of a trace tree. Calls holds the callee nodes in
// call order; a function reached a second time, or reached at the depth
// bound, appears as a leaf with an empty Calls list.
type FlowNode struct {
	Function string      `json:"function"`
	Calls    []*FlowNode `json:"calls"`
}

// nodeCount returns the size of the subtree rooted at n.
func (n *FlowNode) nodeCount() int {
	count := 1
	for _, child := range n.Calls {
		count += child.nodeCount()
	}
	return count
}

// Trace expands the call tree rooted at start.
//
// Expansion stops at maxDepth levels below the root and at any function
// already expanded earlier in the same trace, which keeps mutual recursion
// finite: the repeated function still appears in the tree but is never
// expanded a second time. A start not present in the view yields a
// single-node tree rather than an error.
//
// A non-positive maxDepth means DefaultMaxDepth.
//
// Thread Safety: safe for concurrent use.
func (t *Tracer) Trace(ctx context.Context, start string, maxDepth int) *FlowNode {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	ctx, span := tracer.Start(ctx, "Tracer.Trace")
	defer span.End()

	visited := make(map[string]struct{})
	root := &FlowNode{Function: start, Calls: []*FlowNode{}}

	var expand func(name string, depth int, node *FlowNode)
	expand = func(name string, depth int, node *FlowNode) {
		if depth >= maxDepth {
			return
		}
		if _, seen := visited[name]; seen {
			return
		}
		visited[name] = struct{}{}

		for _, callee := range t.calls[name] {
			child := &FlowNode{Function: callee, Calls: []*FlowNode{}}
			node.Calls = append(node.Calls, child)
			expand(callee, depth+1, child)
		}
	}
	expand(start, 0, root)

	nodes := root.nodeCount()
	span.SetAttributes(
		attribute.String("flow.start", start),
		attribute.Int("flow.max_depth", maxDepth),
		attribute.Int("flow.nodes", nodes),
	)
	recordTraceMetrics(ctx, nodes)

	return root
}

// AuthenticationFunctions returns the known functions whose names suggest
// authentication concerns, sorted.
func (t *Tracer) AuthenticationFunctions() []string {
	return t.matchKeywords(authKeywords)
}

// DataProcessingFunctions returns the known functions whose names suggest
// data-processing pipeline stages, sorted.
func (t *Tracer) DataProcessingFunctions() []string {
	return t.matchKeywords(processKeywords)
}

func (t *Tracer) matchKeywords(keywords []string) []string {
	matched := make([]string, 0)
	for _, name := range t.order {
		lower := strings.ToLower(name)
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				matched = append(matched, name)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}

// Functions returns the kept function names in first-fold order.
func (t *Tracer) Functions() []string {
	return append([]string(nil), t.order...)
}

// CallsOf returns the callee list for one function in the view, or nil
// when the name is unknown or was skipped. The returned slice is a copy.
func (t *Tracer) CallsOf(name string) []string {
	callees, ok := t.calls[name]
	if !ok {
		return nil
	}
	return append([]string(nil), callees...)
}

// FunctionCount returns the number of functions in the view.
func (t *Tracer) FunctionCount() int {
	return len(t.order)
}

// CallEdgeCount returns the total callee reference count in the view.
func (t *Tracer) CallEdgeCount() int {
	return t.callEdges
}
