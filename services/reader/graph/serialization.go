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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SchemaVersion is the version of the analysis and snapshot schema.
// Bump the major on breaking changes; snapshots from another major do
// not load.
const SchemaVersion = "1.0.0"

// AnalysisResult is the JSON-serializable analysis document for one
// project: who depends on whom, what external packages are used, which
// dependency chains are circular, and the coupling metrics.
type AnalysisResult struct {
	SchemaVersion string `json:"schema_version"`
	ProjectRoot   string `json:"project_root"`
	BuiltAtMilli  int64  `json:"built_at_milli"`

	// ModuleDependencies maps each module to its sorted internal
	// dependency names.
	ModuleDependencies map[string][]string `json:"module_dependencies"`

	// ExternalDependencies maps top-level external package names to
	// their usage counts.
	ExternalDependencies map[string]int `json:"external_dependencies"`

	// PackageStructure maps each top-level namespace to the namespaces
	// it depends on.
	PackageStructure map[string][]string `json:"package_structure"`

	// CircularDependencies lists the detected cycle chains as literal
	// ordered sequences, first module repeated at the end.
	CircularDependencies [][]string `json:"circular_dependencies"`

	// Metrics is the coupling metrics bundle.
	Metrics *MetricsBundle `json:"metrics"`

	// Languages counts modules per source language.
	Languages map[string]int `json:"languages,omitempty"`

	// BuildStats carries discovery and skip counts when available.
	BuildStats *BuildStats `json:"build_stats,omitempty"`
}

// ToAnalysisResult assembles the analysis document from the graph and the
// already-computed cycles and metrics. stats may be nil.
//
// Thread Safety: safe for concurrent use on a frozen graph.
func (g *DependencyGraph) ToAnalysisResult(cycles [][]string, metrics *MetricsBundle, stats *BuildStats) *AnalysisResult {
	deps := make(map[string][]string, len(g.moduleOrder))
	languages := make(map[string]int, 4)
	for _, name := range g.moduleOrder {
		// Non-nil even when empty so dependency-less modules marshal as
		// [] rather than null.
		neighbors := g.neighborsOf(name)
		deps[name] = append(make([]string, 0, len(neighbors)), neighbors...)
		if m, ok := g.modules[name]; ok && m.Language != "" {
			languages[m.Language]++
		}
	}

	cyclesCopy := make([][]string, 0, len(cycles))
	for _, cycle := range cycles {
		cyclesCopy = append(cyclesCopy, append([]string(nil), cycle...))
	}

	return &AnalysisResult{
		SchemaVersion:        SchemaVersion,
		ProjectRoot:          g.projectRoot,
		BuiltAtMilli:         g.builtAtMilli,
		ModuleDependencies:   deps,
		ExternalDependencies: g.ExternalCounts(),
		PackageStructure:     g.PackageStructure(),
		CircularDependencies: cyclesCopy,
		Metrics:              metrics,
		Languages:            languages,
		BuildStats:           stats,
	}
}

// Relation is one directed dependency edge for diagram rendering.
type Relation struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// CycleRelation is one edge of a detected cycle chain. Cycle is the
// 1-based index of the chain the edge belongs to.
type CycleRelation struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Cycle  int    `json:"cycle"`
}

// DependencyRelations returns every module-to-dependency edge. Sources
// appear in discovery order with their targets sorted; set semantics on
// the underlying graph guarantee no duplicates.
//
// Thread Safety: safe for concurrent use on a frozen graph.
func (g *DependencyGraph) DependencyRelations() []Relation {
	relations := make([]Relation, 0, g.internalEdges)
	for _, name := range g.moduleOrder {
		for _, dep := range g.neighborsOf(name) {
			relations = append(relations, Relation{Source: name, Target: dep})
		}
	}
	return relations
}

// CycleRelations flattens cycle chains into labeled edges: the chain
// [a, b, a] yields (a,b,1) and (b,a,1).
func CycleRelations(cycles [][]string) []CycleRelation {
	relations := make([]CycleRelation, 0, len(cycles)*2)
	for i, cycle := range cycles {
		for j := 0; j+1 < len(cycle); j++ {
			relations = append(relations, CycleRelation{
				Source: cycle[j],
				Target: cycle[j+1],
				Cycle:  i + 1,
			})
		}
	}
	return relations
}

// ExternalUsage returns (package, count) pairs in first-seen order.
// Renderers rank and truncate; the feed stays complete.
//
// Thread Safety: safe for concurrent use on a frozen graph.
func (g *DependencyGraph) ExternalUsage() []NameCount {
	usage := make([]NameCount, 0, len(g.externalOrder))
	for _, name := range g.externalOrder {
		usage = append(usage, NameCount{Name: name, Count: g.external[name]})
	}
	return usage
}

// SerializableGraph is the JSON round-trip form of a DependencyGraph,
// sufficient to reconstruct a frozen graph from a snapshot.
type SerializableGraph struct {
	SchemaVersion string `json:"schema_version"`
	ProjectRoot   string `json:"project_root"`
	BuiltAtMilli  int64  `json:"built_at_milli"`

	// GraphHash is the deterministic content hash, for diffing and
	// integrity checks.
	GraphHash string `json:"graph_hash"`

	// Modules appear in discovery order so reconstruction preserves
	// order-dependent tie-breaking.
	Modules []SerializableModule `json:"modules"`

	// External appears in first-seen order with aggregated counts.
	External []NameCount `json:"external"`

	// Functions appear in first-fold order.
	Functions []FunctionNode `json:"functions"`
}

// SerializableModule is the JSON form of one module node.
type SerializableModule struct {
	Name     string   `json:"name"`
	File     string   `json:"file"`
	Language string   `json:"language"`
	Deps     []string `json:"deps"`
}

// ToSerializable converts the graph to its JSON round-trip form.
//
// Thread Safety: safe for concurrent use on a frozen graph.
func (g *DependencyGraph) ToSerializable() *SerializableGraph {
	if g == nil {
		return &SerializableGraph{
			SchemaVersion: SchemaVersion,
			Modules:       []SerializableModule{},
			External:      []NameCount{},
			Functions:     []FunctionNode{},
		}
	}

	modules := make([]SerializableModule, 0, len(g.moduleOrder))
	for _, name := range g.moduleOrder {
		m := g.modules[name]
		deps := g.neighborsOf(name)
		modules = append(modules, SerializableModule{
			Name:     m.Name,
			File:     m.File,
			Language: m.Language,
			Deps:     append(make([]string, 0, len(deps)), deps...),
		})
	}

	functions := make([]FunctionNode, 0, len(g.functionOrder))
	for _, name := range g.functionOrder {
		fn, _ := g.Function(name)
		functions = append(functions, fn)
	}

	return &SerializableGraph{
		SchemaVersion: SchemaVersion,
		ProjectRoot:   g.projectRoot,
		BuiltAtMilli:  g.builtAtMilli,
		GraphHash:     g.ContentHash(),
		Modules:       modules,
		External:      g.ExternalUsage(),
		Functions:     functions,
	}
}

// FromSerializable reconstructs a frozen DependencyGraph.
//
// The reconstructed graph preserves discovery order, external first-seen
// order, function fold order and the original build timestamp.
func FromSerializable(s *SerializableGraph) (*DependencyGraph, error) {
	if s == nil {
		return nil, ErrGraphNil
	}

	g := NewDependencyGraph(s.ProjectRoot)

	for _, m := range s.Modules {
		if err := g.AddModule(m.Name, m.File, m.Language); err != nil {
			return nil, fmt.Errorf("restore module %s: %w", m.Name, err)
		}
	}
	for _, m := range s.Modules {
		for _, dep := range m.Deps {
			if err := g.AddDependency(m.Name, dep); err != nil {
				return nil, fmt.Errorf("restore dependency %s -> %s: %w", m.Name, dep, err)
			}
		}
	}

	for _, e := range s.External {
		g.external[e.Name] = e.Count
		g.externalOrder = append(g.externalOrder, e.Name)
	}

	for _, fn := range s.Functions {
		node := fn
		node.Params = append([]string(nil), fn.Params...)
		node.Decorators = append([]string(nil), fn.Decorators...)
		node.Calls = append([]string(nil), fn.Calls...)
		g.functions[node.Name] = &node
		g.functionOrder = append(g.functionOrder, node.Name)
	}

	g.Freeze()
	g.builtAtMilli = s.BuiltAtMilli
	return g, nil
}

// ContentHash returns the hex SHA-256 over the graph's canonical content:
// modules with their deps in sorted order, external counts, function call
// lists. Two graphs with identical content hash equal regardless of
// discovery order.
//
// Thread Safety: safe for concurrent use on a frozen graph.
func (g *DependencyGraph) ContentHash() string {
	h := sha256.New()

	moduleNames := make([]string, 0, len(g.modules))
	for name := range g.modules {
		moduleNames = append(moduleNames, name)
	}
	sort.Strings(moduleNames)
	for _, name := range moduleNames {
		m := g.modules[name]
		fmt.Fprintf(h, "m:%s|%s|%s|%s\n", m.Name, m.File, m.Language, strings.Join(g.neighborsOf(name), ","))
	}

	externalNames := make([]string, 0, len(g.external))
	for name := range g.external {
		externalNames = append(externalNames, name)
	}
	sort.Strings(externalNames)
	for _, name := range externalNames {
		fmt.Fprintf(h, "e:%s=%d\n", name, g.external[name])
	}

	functionNames := make([]string, 0, len(g.functions))
	for name := range g.functions {
		functionNames = append(functionNames, name)
	}
	sort.Strings(functionNames)
	for _, name := range functionNames {
		fn := g.functions[name]
		fmt.Fprintf(h, "f:%s|%s|%s\n", fn.Name, fn.File, strings.Join(fn.Calls, ","))
	}

	return hex.EncodeToString(h.Sum(nil))
}
