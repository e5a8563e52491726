// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// neighborsOf returns the deterministic neighbor order for a node name:
// the sorted dependency names. Dep names that are not registered modules
// have no neighbors. On a frozen graph this is the fixed slice built at
// Freeze and must not be mutated.
func (g *DependencyGraph) neighborsOf(name string) []string {
	m, ok := g.modules[name]
	if !ok {
		return nil
	}
	if g.IsFrozen() {
		return m.sortedDeps
	}

	deps := make([]string, 0, len(m.deps))
	for dep := range m.deps {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

// hasDependency reports whether module depends on dep.
func (g *DependencyGraph) hasDependency(module, dep string) bool {
	m, ok := g.modules[module]
	if !ok {
		return false
	}
	_, has := m.deps[dep]
	return has
}

// DetectCycles enumerates circular dependency chains.
//
// Description:
//
//	Depth-first search with an explicit recursion stack. Roots are taken
//	in discovery order, neighbors in sorted name order, so the result is
//	deterministic for a given graph. Meeting a neighbor that is on the
//	current stack emits the chain from its stack position plus the
//	neighbor again, e.g. [a, b, c, a]. A module importing itself emits
//	[m, m]. Duplicate chains (same sequence, literally) collapse.
//
//	The visited set is shared across roots: a node explored from one root
//	is not re-entered from another, so some rotations of a cycle and some
//	cycles reachable only through already-visited nodes are not reported.
//	The first chain found through each region is. Callers that need the
//	complete grouping use StronglyConnectedComponents instead.
//
// Outputs:
//
//	[][]string - the cycle chains in detection order. Empty, never nil.
//
// Thread Safety: safe for concurrent use on a frozen graph.
func (g *DependencyGraph) DetectCycles(ctx context.Context) [][]string {
	ctx, span := tracer.Start(ctx, "DependencyGraph.DetectCycles")
	defer span.End()

	visited := make(map[string]struct{}, len(g.modules))
	stackIndex := make(map[string]int, 16)
	stack := make([]string, 0, 16)
	seen := make(map[string]struct{})
	cycles := make([][]string, 0)

	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = struct{}{}
		stackIndex[node] = len(stack)
		stack = append(stack, node)

		for _, dep := range g.neighborsOf(node) {
			if _, done := visited[dep]; !done {
				dfs(dep)
			} else if idx, on := stackIndex[dep]; on {
				cycle := make([]string, 0, len(stack)-idx+1)
				cycle = append(cycle, stack[idx:]...)
				cycle = append(cycle, dep)

				key := strings.Join(cycle, "\x00")
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					cycles = append(cycles, cycle)
				}
			}
		}

		stack = stack[:len(stack)-1]
		delete(stackIndex, node)
	}

	for _, name := range g.moduleOrder {
		if _, done := visited[name]; !done {
			dfs(name)
		}
	}

	span.SetAttributes(attribute.Int("cycles.count", len(cycles)))
	recordCycleMetrics(ctx, len(cycles))
	return cycles
}

// StronglyConnectedComponents returns the complete cycle grouping: every
// strongly connected component with more than one member, plus single
// modules that depend on themselves.
//
// Description:
//
//	Tarjan's algorithm over the same node space DetectCycles walks
//	(module names and the dependency names they reference). Members of
//	each component are sorted; components appear in discovery-rooted
//	emission order. Unlike DetectCycles this misses nothing, but it
//	reports groups, not chains.
//
// Thread Safety: safe for concurrent use on a frozen graph.
func (g *DependencyGraph) StronglyConnectedComponents(ctx context.Context) [][]string {
	_, span := tracer.Start(ctx, "DependencyGraph.StronglyConnectedComponents")
	defer span.End()

	index := 0
	indexes := make(map[string]int, len(g.modules))
	lowlinks := make(map[string]int, len(g.modules))
	onStack := make(map[string]bool, len(g.modules))
	stack := make([]string, 0, 16)
	components := make([][]string, 0)

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indexes[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.neighborsOf(v) {
			if _, explored := indexes[w]; !explored {
				strongConnect(w)
				if lowlinks[w] < lowlinks[v] {
					lowlinks[v] = lowlinks[w]
				}
			} else if onStack[w] {
				if indexes[w] < lowlinks[v] {
					lowlinks[v] = indexes[w]
				}
			}
		}

		if lowlinks[v] == indexes[v] {
			component := make([]string, 0, 2)
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}

			if len(component) > 1 || g.hasDependency(v, v) {
				sort.Strings(component)
				components = append(components, component)
			}
		}
	}

	for _, name := range g.moduleOrder {
		if _, explored := indexes[name]; !explored {
			strongConnect(name)
		}
	}

	span.SetAttributes(attribute.Int("scc.count", len(components)))
	return components
}
