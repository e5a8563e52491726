// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Kuroakira/deep-code-reader/services/reader"
	"github.com/Kuroakira/deep-code-reader/services/reader/diagram"
	"github.com/Kuroakira/deep-code-reader/services/reader/flow"
)

func runFlow(cmd *cobra.Command, args []string) error {
	u := newUI(noColor)

	root, err := filepath.Abs(args[0])
	if err != nil {
		return usageErrorf("resolving %q: %v", args[0], err)
	}

	svc := reader.NewService(nil)
	session, err := svc.Analyze(cmd.Context(), root)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", root, err)
	}

	maxDepth := flowMaxDepth
	if maxDepth <= 0 {
		maxDepth = session.FlowMaxDepth
	}
	tracer := session.Tracer

	if flowInteractive {
		if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			return browseFlow(cmd.Context(), u, tracer, maxDepth)
		}
		u.warnf("stdin is not a terminal; falling back to non-interactive output")
	}

	// Without a start function there is no single tree to trace, so emit
	// the whole call graph instead.
	if flowStart == "" {
		fmt.Print(diagram.NewGenerator(nil).CallGraph(tracer))
		return nil
	}

	if !knownFunction(tracer, flowStart) {
		u.warnf("%q is not a known function; the trace is a single node", flowStart)
	}

	switch flowFormat {
	case "json":
		report := tracer.Report(cmd.Context(), flowStart, maxDepth)
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding flow report: %w", err)
		}
		fmt.Println(string(data))
	case "mermaid":
		tree := tracer.Trace(cmd.Context(), flowStart, maxDepth)
		fmt.Print(diagram.NewGenerator(nil).FlowTree(tree))
	default:
		return usageErrorf("unknown flow format %q (want json or mermaid)", flowFormat)
	}
	return nil
}

// browseFlow runs the interactive call-tree browser. When the terminal UI
// cannot run, the tree is printed as Mermaid text instead so the trace is
// never lost.
func browseFlow(ctx context.Context, u *ui, tracer *flow.Tracer, maxDepth int) error {
	functions := tracer.Functions()
	if len(functions) == 0 {
		return errors.New("the call graph has no functions to trace")
	}

	start := flowStart
	if start == "" {
		if err := pickStart(functions, &start); err != nil {
			return fmt.Errorf("selecting start function: %w", err)
		}
	}

	tree := tracer.Trace(ctx, start, maxDepth)
	model := newFlowBrowser(u, start, tree)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		u.errorf("interactive browser failed: %v", err)
		fmt.Print(diagram.NewGenerator(nil).FlowTree(tree))
	}
	return nil
}

func pickStart(functions []string, start *string) error {
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Start function").
			Description("Trace the call flow from this function").
			Options(huh.NewOptions(functions...)...).
			Value(start),
	))
	return form.Run()
}

func knownFunction(t *flow.Tracer, name string) bool {
	for _, fn := range t.Functions() {
		if fn == name {
			return true
		}
	}
	return false
}
