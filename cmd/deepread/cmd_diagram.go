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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Kuroakira/deep-code-reader/services/reader"
	"github.com/Kuroakira/deep-code-reader/services/reader/diagram"
)

func runDiagram(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return usageErrorf("resolving %q: %v", args[0], err)
	}

	svc := reader.NewService(nil)
	session, err := svc.Analyze(cmd.Context(), root)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", root, err)
	}

	in := diagram.Input{Result: session.Result}
	if diagram.Kind(diagramKind) == diagram.KindArch {
		in.Layers = diagram.DetectLayers(session.ProjectRoot)
	}

	gen := diagram.NewGenerator(nil)
	content, err := gen.Generate(cmd.Context(), in,
		diagram.Kind(diagramKind), diagram.Format(diagramFormat))
	if err != nil {
		if errors.Is(err, diagram.ErrUnknownKind) || errors.Is(err, diagram.ErrUnsupportedFormat) {
			return usageErrorf("%v", err)
		}
		return fmt.Errorf("generating %s diagram: %w", diagramKind, err)
	}
	fmt.Print(content)
	return nil
}
