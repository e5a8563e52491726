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

	"go.opentelemetry.io/otel/attribute"
)

// Default list sizes for the metrics document.
const (
	// DefaultTopExternal is the length of the top external package list.
	DefaultTopExternal = 15

	// DefaultTopFan is the length of the high fan-in and fan-out lists.
	DefaultTopFan = 10
)

// NameCount pairs a module, package or function name with a count.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// MetricsBundle is the computed coupling metrics document.
type MetricsBundle struct {
	TotalModules      int `json:"total_modules"`
	TotalInternalDeps int `json:"total_internal_deps"`

	// TotalExternalPackages counts distinct external packages;
	// TotalExternalRefs sums every import statement that reaches them.
	TotalExternalPackages int `json:"total_external_packages"`
	TotalExternalRefs     int `json:"total_external_refs"`

	CircularDependencies int `json:"circular_dependencies"`

	// HighFanOut lists the modules with the most internal dependencies.
	HighFanOut []NameCount `json:"high_fan_out"`

	// HighFanIn lists the dependency names most depended upon. Names
	// follow what modules import, so entries may address a finer
	// granularity than any registered module.
	HighFanIn []NameCount `json:"high_fan_in"`

	// TopExternal lists the most-used external packages by reference count.
	TopExternal []NameCount `json:"top_external_packages"`
}

// MetricsOption configures metric computation.
type MetricsOption func(*metricsConfig)

type metricsConfig struct {
	topExternal int
	topFan      int
}

// WithTopExternal overrides the external package list length.
func WithTopExternal(n int) MetricsOption {
	return func(c *metricsConfig) {
		if n >= 0 {
			c.topExternal = n
		}
	}
}

// WithTopFan overrides the fan-in/fan-out list length.
func WithTopFan(n int) MetricsOption {
	return func(c *metricsConfig) {
		if n >= 0 {
			c.topFan = n
		}
	}
}

// ComputeMetrics derives the coupling metrics document from the graph.
//
// Description:
//
//	Fan-out of a module is the size of its internal dependency set.
//	Fan-in is computed by a single inversion pass over all dependency
//	edges; it counts how many modules depend on each name. Rankings use
//	a stable sort on count descending, so ties keep their base order:
//	discovery order for fan-out, first-reference order for fan-in,
//	first-seen order for external packages.
//
//	Since every recorded edge contributes exactly one fan-out unit and
//	one fan-in unit, the fan-out total, the fan-in total and the internal
//	edge count are always equal.
//
//	cycleCount is reported verbatim; callers pass len(DetectCycles(...)).
//
// Thread Safety: safe for concurrent use on a frozen graph.
func (g *DependencyGraph) ComputeMetrics(ctx context.Context, cycleCount int, opts ...MetricsOption) *MetricsBundle {
	_, span := tracer.Start(ctx, "DependencyGraph.ComputeMetrics")
	defer span.End()

	cfg := metricsConfig{
		topExternal: DefaultTopExternal,
		topFan:      DefaultTopFan,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	// Fan-out per module, in discovery order.
	totalEdges := 0
	fanOut := make([]NameCount, 0, len(g.moduleOrder))
	for _, name := range g.moduleOrder {
		deps := g.neighborsOf(name)
		fanOut = append(fanOut, NameCount{Name: name, Count: len(deps)})
		totalEdges += len(deps)
	}

	// Fan-in by inversion, entries in first-reference order.
	fanIn := make(map[string]int, len(g.moduleOrder))
	fanInOrder := make([]string, 0, len(g.moduleOrder))
	for _, name := range g.moduleOrder {
		for _, dep := range g.neighborsOf(name) {
			if _, seen := fanIn[dep]; !seen {
				fanInOrder = append(fanInOrder, dep)
			}
			fanIn[dep]++
		}
	}
	fanInEntries := make([]NameCount, 0, len(fanInOrder))
	for _, name := range fanInOrder {
		fanInEntries = append(fanInEntries, NameCount{Name: name, Count: fanIn[name]})
	}

	// External usage, entries in first-seen order.
	external := make([]NameCount, 0, len(g.externalOrder))
	totalExternal := 0
	for _, name := range g.externalOrder {
		count := g.external[name]
		external = append(external, NameCount{Name: name, Count: count})
		totalExternal += count
	}

	bundle := &MetricsBundle{
		TotalModules:          len(g.moduleOrder),
		TotalInternalDeps:     totalEdges,
		TotalExternalPackages: len(g.externalOrder),
		TotalExternalRefs:     totalExternal,
		CircularDependencies:  cycleCount,
		HighFanOut:           rankTop(fanOut, cfg.topFan),
		HighFanIn:            rankTop(fanInEntries, cfg.topFan),
		TopExternal:          rankTop(external, cfg.topExternal),
	}

	span.SetAttributes(
		attribute.Int("metrics.modules", bundle.TotalModules),
		attribute.Int("metrics.internal_deps", bundle.TotalInternalDeps),
		attribute.Int("metrics.external_refs", bundle.TotalExternalRefs),
	)
	return bundle
}

// rankTop stable-sorts entries by count descending and truncates to n.
// The base order of entries decides ties.
func rankTop(entries []NameCount, n int) []NameCount {
	ranked := append([]NameCount(nil), entries...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// PackageStructure returns the namespace-level dependency map.
//
// Description:
//
//	The package of a module is the leading segment of its dotted name.
//	For every dependency edge whose endpoints live in different packages
//	an edge is recorded between the packages; same-package edges are
//	suppressed. Every package that contains at least one module appears
//	as a key, possibly with an empty list. Lists are sorted and
//	deduplicated.
//
// Thread Safety: safe for concurrent use on a frozen graph.
func (g *DependencyGraph) PackageStructure() map[string][]string {
	edges := make(map[string]map[string]struct{})

	for _, name := range g.moduleOrder {
		from := topLevelName(name)
		if _, ok := edges[from]; !ok {
			edges[from] = make(map[string]struct{})
		}
		for _, dep := range g.neighborsOf(name) {
			to := topLevelName(dep)
			if to != from {
				edges[from][to] = struct{}{}
			}
		}
	}

	out := make(map[string][]string, len(edges))
	for from, targets := range edges {
		list := make([]string, 0, len(targets))
		for to := range targets {
			list = append(list, to)
		}
		sort.Strings(list)
		out[from] = list
	}
	return out
}
