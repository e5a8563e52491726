// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// DefaultDirName is the artifact folder created under the project root
// when no target directory is configured.
const DefaultDirName = ".deepread"

// DirPublisher writes the bundle's artifacts into a directory,
// overwriting files from earlier runs.
type DirPublisher struct {
	// Dir is the target directory. Empty means DefaultDirName under the
	// bundle's project root.
	Dir string
}

// Publish writes the analysis document and each diagram as one file.
func (p *DirPublisher) Publish(ctx context.Context, bundle *Bundle) error {
	if err := bundle.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := p.Dir
	if dir == "" {
		dir = filepath.Join(bundle.ProjectRoot, DefaultDirName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory %s: %w", dir, err)
	}

	arts, err := bundle.artifacts()
	if err != nil {
		return err
	}
	for _, art := range arts {
		target := filepath.Join(dir, art.name)
		if err := os.WriteFile(target, art.data, 0o644); err != nil {
			return fmt.Errorf("writing artifact %s: %w", target, err)
		}
	}

	slog.Debug("analysis artifacts written",
		slog.String("dir", dir),
		slog.Int("files", len(arts)))
	return nil
}
