// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Kuroakira/deep-code-reader/services/reader/flow"
	"github.com/Kuroakira/deep-code-reader/services/reader/graph"
)

// ModuleEdges renders every module-to-dependency edge as a Mermaid graph.
// Edge order follows the feed.
func (g *Generator) ModuleEdges(rels []graph.Relation) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	sb.WriteString("    %% Module Dependencies\n")
	sb.WriteString("\n")

	for _, rel := range rels {
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeModuleID(rel.Source), sanitizeModuleID(rel.Target))
	}
	return sb.String()
}

// ModuleOverview renders the highest fan-out modules and their first few
// dependencies. Dependencies pointing outside the module map are dropped,
// so the overview stays within the project.
func (g *Generator) ModuleOverview(deps map[string][]string, fanOut []graph.NameCount) string {
	var sb strings.Builder
	sb.WriteString("graph TB\n")
	sb.WriteString("    %% Module Dependencies (Top modules by connections)\n")

	top := fanOut
	if len(top) > g.options.MaxModules {
		top = top[:g.options.MaxModules]
	}

	for _, entry := range top {
		targets := deps[entry.Name]
		if len(targets) > g.options.MaxDeps {
			targets = targets[:g.options.MaxDeps]
		}
		for _, dep := range targets {
			if _, known := deps[dep]; !known {
				continue
			}
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeModuleID(entry.Name), sanitizeModuleID(dep))
		}
	}
	return sb.String()
}

// CycleEdges renders circular dependency chains with each edge labeled by
// its 1-based chain index. Chains beyond MaxCycles are dropped.
func (g *Generator) CycleEdges(rels []graph.CycleRelation) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	sb.WriteString("    %% Circular Dependencies\n")

	for _, rel := range rels {
		if rel.Cycle > g.options.MaxCycles {
			continue
		}
		fmt.Fprintf(&sb, "    %s -->|cycle %d| %s\n", sanitizeModuleID(rel.Source), rel.Cycle, sanitizeModuleID(rel.Target))
	}
	return sb.String()
}

// ExternalPie renders external package usage as a Mermaid pie chart. The
// input is expected ranked; only the first MaxExternal entries are drawn.
func (g *Generator) ExternalPie(top []graph.NameCount) string {
	var sb strings.Builder
	sb.WriteString("%%{init: {'theme':'base'}}%%\n")
	sb.WriteString("pie title External Package Usage\n")

	if len(top) > g.options.MaxExternal {
		top = top[:g.options.MaxExternal]
	}
	for _, entry := range top {
		fmt.Fprintf(&sb, "    \"%s\": %d\n", escapeLabel(entry.Name), entry.Count)
	}
	return sb.String()
}

// PackageEdges renders the top-level namespace dependency graph with
// sources in name order.
func (g *Generator) PackageEdges(structure map[string][]string) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	sb.WriteString("    %% Package Dependencies\n")

	names := make([]string, 0, len(structure))
	for name := range structure {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, pkg := range names {
		for _, dep := range structure[pkg] {
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeModuleID(pkg), sanitizeModuleID(dep))
		}
	}
	return sb.String()
}

// Architecture renders the inferred layers as boxes connected along the
// conventional request path.
func (g *Generator) Architecture(layers []Layer) string {
	var sb strings.Builder
	sb.WriteString("graph TB\n")
	sb.WriteString("    %% Architecture Overview\n")
	sb.WriteString("\n")

	for _, layer := range layers {
		fmt.Fprintf(&sb, "    %s[%s]\n", sanitizeID(layer.Name), layer.Name)
	}
	for _, conn := range layerConnections(layers) {
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeID(conn[0]), sanitizeID(conn[1]))
	}
	return sb.String()
}

// FlowTree renders a traced call tree as a Mermaid flowchart. Node ids
// are generated in visit order, so repeated function names stay distinct.
func (g *Generator) FlowTree(tree *flow.FlowNode) string {
	var sb strings.Builder
	sb.WriteString("flowchart TD\n")
	if tree == nil {
		return sb.String()
	}

	counter := 0
	var add func(node *flow.FlowNode, parentID string)
	add = func(node *flow.FlowNode, parentID string) {
		counter++
		nodeID := fmt.Sprintf("node%d", counter)
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", nodeID, escapeLabel(node.Function))
		if parentID != "" {
			fmt.Fprintf(&sb, "    %s --> %s\n", parentID, nodeID)
		}
		for _, child := range node.Calls {
			add(child, nodeID)
		}
	}
	add(tree, "")

	return sb.String()
}

// CallGraph renders the call edges of the busiest functions, deduplicated.
// Functions are ranked by callee count with ties kept in tracer order.
func (g *Generator) CallGraph(t *flow.Tracer) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	if t == nil {
		return sb.String()
	}

	funcs := t.Functions()
	counts := make(map[string]int, len(funcs))
	for _, fn := range funcs {
		counts[fn] = len(t.CallsOf(fn))
	}
	sort.SliceStable(funcs, func(i, j int) bool {
		return counts[funcs[i]] > counts[funcs[j]]
	})
	if len(funcs) > g.options.MaxCallNodes {
		funcs = funcs[:g.options.MaxCallNodes]
	}

	drawn := make(map[string]bool)
	for _, fn := range funcs {
		callees := t.CallsOf(fn)
		if len(callees) > g.options.MaxCallees {
			callees = callees[:g.options.MaxCallees]
		}
		for _, callee := range callees {
			edge := fn + "->" + callee
			if drawn[edge] {
				continue
			}
			drawn[edge] = true
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeID(fn), sanitizeID(callee))
		}
	}
	return sb.String()
}

var idReplacer = strings.NewReplacer(".", "_", "-", "_", " ", "_")

var labelReplacer = strings.NewReplacer("\"", "#quot;", "<", "&lt;", ">", "&gt;")

// sanitizeID maps punctuation to underscores and keeps ids from starting
// with a digit.
func sanitizeID(name string) string {
	id := idReplacer.Replace(name)
	if len(id) > 0 && id[0] >= '0' && id[0] <= '9' {
		id = "n" + id
	}
	return id
}

// sanitizeModuleID collapses names deeper than two dotted segments to
// first...last before mapping punctuation, keeping deep module ids short.
func sanitizeModuleID(name string) string {
	if parts := strings.Split(name, "."); len(parts) > 2 {
		name = parts[0] + "..." + parts[len(parts)-1]
	}
	return sanitizeID(name)
}

// escapeLabel escapes characters Mermaid treats specially inside quoted
// labels.
func escapeLabel(name string) string {
	return labelReplacer.Replace(name)
}
