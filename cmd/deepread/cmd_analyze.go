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
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kuroakira/deep-code-reader/services/reader"
	"github.com/Kuroakira/deep-code-reader/services/reader/publish"
)

// maxCyclesShown caps the cycle chains printed under the summary table.
const maxCyclesShown = 5

func runAnalyze(cmd *cobra.Command, args []string) error {
	u := newUI(noColor)

	root, err := filepath.Abs(args[0])
	if err != nil {
		return usageErrorf("resolving %q: %v", args[0], err)
	}

	svc := reader.NewService(nil)
	if !analyzeNoWrite {
		svc.SetPublisher(&publish.DirPublisher{Dir: analyzeOut})
	}

	session, err := svc.Analyze(cmd.Context(), root)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", root, err)
	}

	summary := session.Summary()
	rows := []row{
		{label: "Project", value: summary.ProjectRoot},
		{label: "Modules", value: strconv.Itoa(summary.Modules)},
		{label: "Internal deps", value: strconv.Itoa(summary.InternalEdges)},
		{label: "External packages", value: strconv.Itoa(summary.ExternalPackages)},
		{label: "Functions", value: strconv.Itoa(summary.Functions)},
	}
	cycles := row{label: "Cycles", value: strconv.Itoa(summary.Cycles)}
	if summary.Cycles > 0 {
		cycles.style = &u.warning
	}
	rows = append(rows, cycles)
	skipped := row{label: "Files skipped", value: strconv.Itoa(summary.FilesSkipped)}
	if summary.FilesSkipped > 0 {
		skipped.style = &u.warning
	}
	rows = append(rows,
		row{label: "Files parsed", value: strconv.Itoa(summary.FilesParsed)},
		skipped,
		row{label: "Duration", value: fmt.Sprintf("%d ms", summary.DurationMilli)},
	)
	fmt.Println(u.table("Analysis summary", rows))

	for i, chain := range session.Cycles {
		if i == maxCyclesShown {
			u.hintf("  ... and %d more", len(session.Cycles)-maxCyclesShown)
			break
		}
		u.warnf("cycle: %s", strings.Join(chain, " -> "))
	}

	if !analyzeNoWrite {
		dir := analyzeOut
		if dir == "" {
			dir = filepath.Join(root, publish.DefaultDirName)
		}
		u.successf("Artifacts written to %s", dir)
	}
	return nil
}
