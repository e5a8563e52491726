// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discovery walks an analysis root and selects the source files
// the extraction layer can parse.
//
// Description:
//
//	The walker prunes dependency caches, build output and VCS metadata at
//	any depth, claims files whose extension a registered parser handles,
//	and reports them in deterministic lexical order. Discovery order is
//	significant downstream: the graph records it for stable tie-breaking.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Kuroakira/deep-code-reader/services/reader/ast"
)

var tracer = otel.Tracer("deepread.discovery")

// SourceFile identifies one discovered source file.
type SourceFile struct {
	// RelPath is the path relative to the analysis root, forward slashes.
	RelPath string

	// AbsPath is the absolute filesystem path.
	AbsPath string

	// Language is the canonical language name of the claiming parser.
	Language string
}

// DefaultExcludeDirs returns the directory names pruned by default:
// VCS metadata, dependency caches, build output and test caches.
func DefaultExcludeDirs() []string {
	return []string{
		".git",
		"node_modules",
		"venv",
		"__pycache__",
		"dist",
		"build",
		"coverage",
		".pytest_cache",
	}
}

// WalkerOption configures a Walker instance.
type WalkerOption func(*Walker)

// WithExcludeDirs replaces the default exclude set.
//
// Passing an empty slice disables pruning entirely.
func WithExcludeDirs(dirs []string) WalkerOption {
	return func(w *Walker) {
		w.excludes = make(map[string]struct{}, len(dirs))
		for _, d := range dirs {
			w.excludes[d] = struct{}{}
		}
	}
}

// WithAdditionalExcludes adds directory names to the exclude set.
func WithAdditionalExcludes(dirs ...string) WalkerOption {
	return func(w *Walker) {
		for _, d := range dirs {
			w.excludes[d] = struct{}{}
		}
	}
}

// WithRegistry sets the parser registry used to claim file extensions.
func WithRegistry(registry *ast.ParserRegistry) WalkerOption {
	return func(w *Walker) {
		if registry != nil {
			w.registry = registry
		}
	}
}

// Walker discovers parseable source files under a root directory.
//
// Thread Safety:
//
//	A Walker is immutable after construction and safe for concurrent use.
type Walker struct {
	root     string
	excludes map[string]struct{}
	registry *ast.ParserRegistry
}

// NewWalker creates a Walker for the given root.
//
// The root is not validated here; Discover reports configuration errors
// so that callers get them on the operation, not at wiring time.
func NewWalker(root string, opts ...WalkerOption) *Walker {
	w := &Walker{
		root:     root,
		excludes: make(map[string]struct{}),
		registry: ast.NewDefaultRegistry(),
	}
	for _, d := range DefaultExcludeDirs() {
		w.excludes[d] = struct{}{}
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Root returns the analysis root this walker was built for.
func (w *Walker) Root() string {
	return w.root
}

// Discover walks the root and returns the parseable source files in
// lexical order.
//
// Description:
//
//	Directories whose base name is in the exclude set are pruned at any
//	depth. Files are claimed by extension through the parser registry;
//	everything else is ignored. Unreadable subtrees produce a warning and
//	are skipped, never a failure.
//
// Outputs:
//   - []SourceFile: discovered files in deterministic lexical order.
//     May be empty; an empty directory is not an error.
//   - error: ErrEmptyRoot for an empty root path, ErrRootNotFound if the
//     root does not exist, ErrNotDirectory if it is a file. These are
//     configuration errors raised before any traversal happens.
func (w *Walker) Discover(ctx context.Context) ([]SourceFile, error) {
	ctx, span := tracer.Start(ctx, "Walker.Discover")
	defer span.End()

	if strings.TrimSpace(w.root) == "" {
		return nil, ErrEmptyRoot
	}

	info, err := os.Stat(w.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, w.root)
		}
		return nil, fmt.Errorf("stat root %s: %w", w.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, w.root)
	}

	absRoot, err := filepath.Abs(w.root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", w.root, err)
	}

	files := make([]SourceFile, 0, 64)

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if _, excluded := w.excludes[d.Name()]; excluded {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		parser, ok := w.registry.GetByExtension(ext)
		if !ok {
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			slog.Warn("skipping file outside root",
				slog.String("path", path),
				slog.String("error", relErr.Error()))
			return nil
		}

		files = append(files, SourceFile{
			RelPath:  filepath.ToSlash(rel),
			AbsPath:  path,
			Language: parser.Language(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, walkErr)
	}

	if len(files) == 0 {
		slog.Warn("no parseable source files found", slog.String("root", absRoot))
	}

	span.SetAttributes(
		attribute.String("discovery.root", absRoot),
		attribute.Int("discovery.files", len(files)),
	)

	return files, nil
}
