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
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errUsage marks argument and configuration mistakes so main can exit 2
// instead of 1.
var errUsage = errors.New("usage error")

// usageErrorf wraps a formatted message with errUsage.
func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// exactArgs is cobra.ExactArgs with the usage sentinel attached.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("%q accepts %d arg(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

// maxArgs is cobra.MaximumNArgs with the usage sentinel attached.
func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return usageErrorf("%q accepts at most %d arg(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

// --- Global Command Variables ---
var (
	noColor bool

	analyzeOut     string
	analyzeNoWrite bool

	flowStart       string
	flowMaxDepth    int
	flowInteractive bool
	flowFormat      string

	diagramKind   string
	diagramFormat string

	snapshotLabel string
	snapshotLimit int

	prToken string

	cloneCommit  string
	cloneDepth   int
	cloneDir     string
	cloneHistory int

	rootCmd = &cobra.Command{
		Use:   "deepread",
		Short: "Dependency and call-graph analysis for real codebases",
		Long: `Deep Code Reader builds module dependency and call graphs from parsed
source, detects circular dependencies, computes coupling metrics, traces
execution flow and renders Mermaid/draw.io diagrams.`,
		SilenceUsage: true,
	}

	// --- Analysis ---
	analyzeCmd = &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze a project: dependency graph, cycles, coupling metrics",
		Args:  exactArgs(1),
		RunE:  runAnalyze, // Defined in cmd_analyze.go
	}

	flowCmd = &cobra.Command{
		Use:   "flow [path]",
		Short: "Trace execution flow from a function",
		Long: `Trace the execution flow tree from a start function. Without --start
the whole call graph is emitted as a Mermaid diagram; with --interactive
the tree opens in a browsable terminal view.`,
		Args: exactArgs(1),
		RunE: runFlow, // Defined in cmd_flow.go
	}

	diagramCmd = &cobra.Command{
		Use:   "diagram [path]",
		Short: "Render a dependency diagram for a project",
		Args:  exactArgs(1),
		RunE:  runDiagram, // Defined in cmd_diagram.go
	}

	// --- Snapshots ---
	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Persist and restore analysis graphs in the local store",
	}
	snapshotSaveCmd = &cobra.Command{
		Use:   "save [path]",
		Short: "Analyze a project and save the frozen graph",
		Args:  exactArgs(1),
		RunE:  runSnapshotSave, // Defined in cmd_snapshot.go
	}
	snapshotListCmd = &cobra.Command{
		Use:   "list [path]",
		Short: "List stored snapshots, newest first (all projects when no path)",
		Args:  maxArgs(1),
		RunE:  runSnapshotList, // Defined in cmd_snapshot.go
	}
	snapshotShowCmd = &cobra.Command{
		Use:   "show [snapshot-id]",
		Short: "Restore a snapshot and show its analysis summary",
		Args:  exactArgs(1),
		RunE:  runSnapshotShow, // Defined in cmd_snapshot.go
	}
	snapshotDeleteCmd = &cobra.Command{
		Use:   "delete [snapshot-id]",
		Short: "Delete a stored snapshot",
		Args:  exactArgs(1),
		RunE:  runSnapshotDelete, // Defined in cmd_snapshot.go
	}

	// --- GitHub / Git ---
	prCmd = &cobra.Command{
		Use:   "pr [owner/repo#number]",
		Short: "Fetch a pull request's full review context as markdown",
		Args:  exactArgs(1),
		RunE:  runPR, // Defined in cmd_pr.go
	}

	cloneCmd = &cobra.Command{
		Use:   "clone [url]",
		Short: "Shallow-clone a repository and print its metadata",
		Args:  exactArgs(1),
		RunE:  runClone, // Defined in cmd_clone.go
	}

	// --- Server ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server (ships as its own binary)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("The API server ships as the readerd binary:")
			fmt.Println()
			fmt.Println("  go run ./cmd/readerd -port 8080")
			fmt.Println()
			fmt.Println("See cmd/readerd for flags and environment variables.")
			return nil
		},
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable styled output (also disabled when stdout is not a terminal)")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %s", errUsage, err.Error())
	})

	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "",
		"Artifact directory (default <path>/.deepread)")
	analyzeCmd.Flags().BoolVar(&analyzeNoWrite, "no-write", false,
		"Print the summary only, write no artifacts")

	rootCmd.AddCommand(flowCmd)
	flowCmd.Flags().StringVar(&flowStart, "start", "", "Function to trace from")
	flowCmd.Flags().IntVar(&flowMaxDepth, "max-depth", 0,
		"Trace depth bound (0 uses the per-project or built-in default)")
	flowCmd.Flags().BoolVar(&flowInteractive, "interactive", false,
		"Browse the flow tree interactively")
	flowCmd.Flags().StringVar(&flowFormat, "format", "json",
		"Output format: json or mermaid")

	rootCmd.AddCommand(diagramCmd)
	diagramCmd.Flags().StringVar(&diagramKind, "kind", "modules",
		"Diagram kind: modules, overview, cycles, external, packages, or arch")
	diagramCmd.Flags().StringVar(&diagramFormat, "format", "mermaid",
		"Output format: mermaid or drawio (drawio only for --kind arch)")

	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
	snapshotSaveCmd.Flags().StringVar(&snapshotLabel, "label", "",
		"Human-readable label stored with the snapshot")
	snapshotListCmd.Flags().IntVar(&snapshotLimit, "limit", 20,
		"Maximum snapshots to list")

	rootCmd.AddCommand(prCmd)
	prCmd.Flags().StringVar(&prToken, "token", "",
		"GitHub API token (default $GITHUB_TOKEN)")

	rootCmd.AddCommand(cloneCmd)
	cloneCmd.Flags().StringVar(&cloneCommit, "commit", "",
		"Check out this commit after cloning")
	cloneCmd.Flags().IntVar(&cloneDepth, "depth", 1,
		"Clone depth (0 for a full clone)")
	cloneCmd.Flags().StringVar(&cloneDir, "dir", "",
		"Target directory (default a temp directory)")
	cloneCmd.Flags().IntVar(&cloneHistory, "history", 0,
		"Also print the first N commits (needs --depth 0 for more than the tip)")

	rootCmd.AddCommand(serveCmd)
}
