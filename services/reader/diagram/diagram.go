// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diagram renders analysis documents as Mermaid text and draw.io
// XML. All renderers are pure formatters: they never touch the graph
// directly, only the relation and metric feeds derived from it.
package diagram

import (
	"context"
	"fmt"
	"sort"

	"github.com/Kuroakira/deep-code-reader/services/reader/graph"
)

// Format specifies the diagram output format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatDrawIO  Format = "drawio"
)

// Kind selects which diagram to render.
type Kind string

const (
	// KindModules is the full module-to-dependency edge list.
	KindModules Kind = "modules"

	// KindOverview shows only the highest fan-out modules and their
	// first few dependencies.
	KindOverview Kind = "overview"

	// KindCycles highlights the detected circular dependency chains.
	KindCycles Kind = "cycles"

	// KindExternal is a pie chart of external package usage.
	KindExternal Kind = "external"

	// KindPackages is the top-level namespace dependency graph.
	KindPackages Kind = "packages"

	// KindArch is the inferred architectural layer diagram.
	KindArch Kind = "arch"
)

// Options configures diagram generation limits.
type Options struct {
	// MaxModules caps the modules shown in the overview diagram.
	// Default: 15
	MaxModules int

	// MaxDeps caps the dependencies drawn per overview module.
	// Default: 5
	MaxDeps int

	// MaxCycles caps the cycle chains in the cycle diagram.
	// Default: 5
	MaxCycles int

	// MaxExternal caps the slices in the external usage pie.
	// Default: 10
	MaxExternal int

	// MaxCallNodes caps the caller nodes in the call graph.
	// Default: 20
	MaxCallNodes int

	// MaxCallees caps the callees drawn per call-graph node.
	// Default: 5
	MaxCallees int
}

// DefaultOptions returns the standard limits.
func DefaultOptions() Options {
	return Options{
		MaxModules:   15,
		MaxDeps:      5,
		MaxCycles:    5,
		MaxExternal:  10,
		MaxCallNodes: 20,
		MaxCallees:   5,
	}
}

// Generator renders diagrams from analysis documents.
//
// # Thread Safety
//
// Safe for concurrent use.
type Generator struct {
	options Options
}

// NewGenerator creates a generator. A nil opts uses DefaultOptions.
func NewGenerator(opts *Options) *Generator {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	return &Generator{options: *opts}
}

// Input bundles the documents diagrams are rendered from. Result is
// required for every kind; Layers feed only KindArch.
type Input struct {
	Result *graph.AnalysisResult
	Layers []Layer
}

// Generate renders one diagram kind in the requested format.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - in: The analysis document and optional layer list.
//   - kind: Which diagram to render.
//   - format: Mermaid or draw.io. Only KindArch supports draw.io.
//
// # Outputs
//
//   - string: The diagram text.
//   - error: ErrNilResult, ErrUnknownKind or ErrUnsupportedFormat.
func (g *Generator) Generate(ctx context.Context, in Input, kind Kind, format Format) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("context is required")
	}
	if in.Result == nil {
		return "", ErrNilResult
	}

	switch format {
	case FormatMermaid:
	case FormatDrawIO:
		if kind != KindArch {
			return "", fmt.Errorf("%w: %s as %s", ErrUnsupportedFormat, kind, format)
		}
		return g.ArchitectureDrawIO(in.Layers)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	res := in.Result
	switch kind {
	case KindModules:
		return g.ModuleEdges(moduleRelations(res.ModuleDependencies)), nil
	case KindOverview:
		var fanOut []graph.NameCount
		if res.Metrics != nil {
			fanOut = res.Metrics.HighFanOut
		}
		return g.ModuleOverview(res.ModuleDependencies, fanOut), nil
	case KindCycles:
		return g.CycleEdges(graph.CycleRelations(res.CircularDependencies)), nil
	case KindExternal:
		var top []graph.NameCount
		if res.Metrics != nil {
			top = res.Metrics.TopExternal
		}
		return g.ExternalPie(top), nil
	case KindPackages:
		return g.PackageEdges(res.PackageStructure), nil
	case KindArch:
		return g.Architecture(in.Layers), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// moduleRelations flattens the module dependency map into edges with
// sources in name order. Dependency lists keep their stored order.
func moduleRelations(deps map[string][]string) []graph.Relation {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	relations := make([]graph.Relation, 0, len(deps))
	for _, name := range names {
		for _, dep := range deps[name] {
			relations = append(relations, graph.Relation{Source: name, Target: dep})
		}
	}
	return relations
}
