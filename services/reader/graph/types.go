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
	"sort"
	"sync/atomic"
	"time"

	"github.com/Kuroakira/deep-code-reader/services/reader/ast"
)

// GraphState represents the lifecycle state of a DependencyGraph.
type GraphState int32

const (
	// StateBuilding means the graph accepts mutations from its builder.
	StateBuilding GraphState = iota

	// StateReadOnly means the graph is frozen and immutable.
	StateReadOnly
)

// String returns a human-readable state name.
func (s GraphState) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// Module is one internal module node: a source file addressed by its dotted
// name (relative path with separators replaced by dots, extension stripped).
type Module struct {
	// Name is the dotted module name, unique within the graph.
	Name string

	// File is the declaring file path relative to the project root.
	File string

	// Language is the canonical language name of the declaring file.
	Language string

	// deps is the set of internal dependency names recorded for this
	// module. Dependency names are import paths and may address a finer
	// granularity than any registered module.
	deps map[string]struct{}

	// sortedDeps is the deterministic neighbor order, built at Freeze.
	sortedDeps []string
}

// FunctionNode is one function in the call-graph view.
//
// Functions are identified by bare name. When the same name is declared in
// several files, the metadata below reflects the last declaration folded in
// while Calls accumulates callees from every declaration in fold order.
type FunctionNode struct {
	Name       string   `json:"name"`
	File       string   `json:"file"`
	Params     []string `json:"params"`
	Returns    string   `json:"returns,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
	Line       int      `json:"line"`
	Calls      []string `json:"calls"`
}

// ModuleInfo is the read-only metadata view of a module node.
type ModuleInfo struct {
	Name     string `json:"name"`
	File     string `json:"file"`
	Language string `json:"language"`
}

// DependencyGraph holds the module dependency graph, external usage counts
// and the function call table for one analyzed project.
//
// See the package documentation for the ownership and lifecycle rules.
type DependencyGraph struct {
	state atomic.Int32

	projectRoot  string
	builtAtMilli int64

	// modules maps dotted module name to its node.
	modules map[string]*Module

	// moduleOrder records module names in discovery order.
	moduleOrder []string

	// external maps top-level external package name to its usage count.
	external map[string]int

	// externalOrder records external package names in first-seen order.
	externalOrder []string

	// functions maps bare function name to its node.
	functions map[string]*FunctionNode

	// functionOrder records function names in first-fold order.
	functionOrder []string

	// internalEdges is the total dependency edge count, fixed at Freeze.
	internalEdges int

	// callEdges is the total callee reference count, fixed at Freeze.
	callEdges int
}

// NewDependencyGraph creates an empty graph in the Building state.
func NewDependencyGraph(projectRoot string) *DependencyGraph {
	return &DependencyGraph{
		projectRoot: projectRoot,
		modules:     make(map[string]*Module),
		external:    make(map[string]int),
		functions:   make(map[string]*FunctionNode),
	}
}

// State returns the current lifecycle state.
func (g *DependencyGraph) State() GraphState {
	return GraphState(g.state.Load())
}

// IsFrozen reports whether the graph has been frozen.
func (g *DependencyGraph) IsFrozen() bool {
	return g.State() == StateReadOnly
}

// ProjectRoot returns the analyzed project root path.
func (g *DependencyGraph) ProjectRoot() string {
	return g.projectRoot
}

// BuiltAtMilli returns the freeze timestamp in Unix milliseconds, or zero
// if the graph has not been frozen.
func (g *DependencyGraph) BuiltAtMilli() int64 {
	return g.builtAtMilli
}

// AddModule registers a module node.
//
// Registering an existing name updates its file and language but does not
// change its discovery position. Returns ErrGraphFrozen after Freeze.
func (g *DependencyGraph) AddModule(name, file, language string) error {
	if g.IsFrozen() {
		return ErrGraphFrozen
	}
	if name == "" {
		return ErrModuleNotFound
	}

	if existing, ok := g.modules[name]; ok {
		existing.File = file
		existing.Language = language
		return nil
	}

	g.modules[name] = &Module{
		Name:     name,
		File:     file,
		Language: language,
		deps:     make(map[string]struct{}),
	}
	g.moduleOrder = append(g.moduleOrder, name)
	return nil
}

// AddDependency records an internal dependency edge from module to dep.
//
// The dep name is recorded as given; it may address a finer granularity
// than any registered module (importing "app.utils.helpers" when only
// "app.utils" is a module). Duplicate edges collapse.
func (g *DependencyGraph) AddDependency(module, dep string) error {
	if g.IsFrozen() {
		return ErrGraphFrozen
	}

	node, ok := g.modules[module]
	if !ok {
		return ErrModuleNotFound
	}
	if dep == "" {
		return nil
	}

	node.deps[dep] = struct{}{}
	return nil
}

// AddExternal increments the usage count for a top-level external package.
func (g *DependencyGraph) AddExternal(name string) error {
	if g.IsFrozen() {
		return ErrGraphFrozen
	}
	if name == "" {
		return nil
	}

	if _, seen := g.external[name]; !seen {
		g.externalOrder = append(g.externalOrder, name)
	}
	g.external[name]++
	return nil
}

// AddFunction folds one extracted function declaration into the call table.
//
// First fold of a name creates the node. Later folds of the same name
// overwrite the metadata (declaring file, params, returns, decorators,
// line) and append the declaration's callees to the existing list.
func (g *DependencyGraph) AddFunction(file string, fn ast.Function) error {
	if g.IsFrozen() {
		return ErrGraphFrozen
	}
	if fn.Name == "" {
		return nil
	}

	node, ok := g.functions[fn.Name]
	if !ok {
		node = &FunctionNode{Name: fn.Name, Calls: make([]string, 0, len(fn.Calls))}
		g.functions[fn.Name] = node
		g.functionOrder = append(g.functionOrder, fn.Name)
	}

	node.File = file
	node.Params = append([]string(nil), fn.Params...)
	node.Returns = fn.Returns
	node.Decorators = append([]string(nil), fn.Decorators...)
	node.Line = fn.StartLine
	node.Calls = append(node.Calls, fn.Calls...)
	return nil
}

// Freeze transitions the graph to ReadOnly and fixes derived state: the
// deterministic neighbor order per module, edge totals and the build
// timestamp. Freeze is idempotent; only the first call has an effect.
//
// Returns the graph for chaining.
func (g *DependencyGraph) Freeze() *DependencyGraph {
	if !g.state.CompareAndSwap(int32(StateBuilding), int32(StateReadOnly)) {
		return g
	}

	edges := 0
	for _, m := range g.modules {
		m.sortedDeps = make([]string, 0, len(m.deps))
		for dep := range m.deps {
			m.sortedDeps = append(m.sortedDeps, dep)
		}
		sort.Strings(m.sortedDeps)
		edges += len(m.sortedDeps)
	}
	g.internalEdges = edges

	calls := 0
	for _, fn := range g.functions {
		calls += len(fn.Calls)
	}
	g.callEdges = calls

	g.builtAtMilli = time.Now().UnixMilli()
	return g
}

// ModuleCount returns the number of registered modules.
func (g *DependencyGraph) ModuleCount() int {
	return len(g.modules)
}

// ExternalPackageCount returns the number of distinct external packages.
func (g *DependencyGraph) ExternalPackageCount() int {
	return len(g.external)
}

// ExternalRefCount returns the total number of external import references.
func (g *DependencyGraph) ExternalRefCount() int {
	total := 0
	for _, count := range g.external {
		total += count
	}
	return total
}

// FunctionCount returns the number of distinct function names.
func (g *DependencyGraph) FunctionCount() int {
	return len(g.functions)
}

// InternalEdgeCount returns the total number of internal dependency edges.
// Fixed at Freeze; zero before.
func (g *DependencyGraph) InternalEdgeCount() int {
	return g.internalEdges
}

// CallEdgeCount returns the total number of callee references in the call
// table. Fixed at Freeze; zero before.
func (g *DependencyGraph) CallEdgeCount() int {
	return g.callEdges
}

// Modules returns module names in discovery order.
func (g *DependencyGraph) Modules() []string {
	return append([]string(nil), g.moduleOrder...)
}

// HasModule reports whether the named module is registered.
func (g *DependencyGraph) HasModule(name string) bool {
	_, ok := g.modules[name]
	return ok
}

// ModuleInfo returns the metadata view of a module node.
func (g *DependencyGraph) ModuleInfo(name string) (ModuleInfo, bool) {
	m, ok := g.modules[name]
	if !ok {
		return ModuleInfo{}, false
	}
	return ModuleInfo{Name: m.Name, File: m.File, Language: m.Language}, true
}

// DependenciesOf returns the module's internal dependency names in sorted
// order. On a frozen graph the slice is a copy of the fixed neighbor order;
// before Freeze it is computed on the fly.
func (g *DependencyGraph) DependenciesOf(name string) ([]string, error) {
	m, ok := g.modules[name]
	if !ok {
		return nil, ErrModuleNotFound
	}

	if g.IsFrozen() {
		return append(make([]string, 0, len(m.sortedDeps)), m.sortedDeps...), nil
	}

	deps := make([]string, 0, len(m.deps))
	for dep := range m.deps {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps, nil
}

// ExternalPackages returns external package names in first-seen order.
func (g *DependencyGraph) ExternalPackages() []string {
	return append([]string(nil), g.externalOrder...)
}

// ExternalUsageCount returns the usage count for one external package.
func (g *DependencyGraph) ExternalUsageCount(name string) int {
	return g.external[name]
}

// ExternalCounts returns a copy of the external usage count map.
func (g *DependencyGraph) ExternalCounts() map[string]int {
	out := make(map[string]int, len(g.external))
	for name, count := range g.external {
		out[name] = count
	}
	return out
}

// FunctionNames returns function names in first-fold order.
func (g *DependencyGraph) FunctionNames() []string {
	return append([]string(nil), g.functionOrder...)
}

// Function returns a deep copy of the named function node.
func (g *DependencyGraph) Function(name string) (FunctionNode, bool) {
	fn, ok := g.functions[name]
	if !ok {
		return FunctionNode{}, false
	}

	out := *fn
	out.Params = append([]string(nil), fn.Params...)
	out.Decorators = append([]string(nil), fn.Decorators...)
	out.Calls = append([]string(nil), fn.Calls...)
	return out, true
}

// CallsOf returns the callee list for the named function, or nil when the
// name is unknown. The returned slice is a copy.
func (g *DependencyGraph) CallsOf(name string) []string {
	fn, ok := g.functions[name]
	if !ok {
		return nil
	}
	return append([]string(nil), fn.Calls...)
}

// Stats summarizes the graph content.
type Stats struct {
	Modules          int   `json:"modules"`
	InternalEdges    int   `json:"internal_edges"`
	ExternalPackages int   `json:"external_packages"`
	ExternalRefs     int   `json:"external_refs"`
	Functions        int   `json:"functions"`
	CallEdges        int   `json:"call_edges"`
	BuiltAtMilli     int64 `json:"built_at_milli"`
}

// Stats returns a content summary. Edge totals are only meaningful on a
// frozen graph.
func (g *DependencyGraph) Stats() Stats {
	return Stats{
		Modules:          g.ModuleCount(),
		InternalEdges:    g.internalEdges,
		ExternalPackages: g.ExternalPackageCount(),
		ExternalRefs:     g.ExternalRefCount(),
		Functions:        g.FunctionCount(),
		CallEdges:        g.callEdges,
		BuiltAtMilli:     g.builtAtMilli,
	}
}
