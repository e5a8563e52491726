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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/Kuroakira/deep-code-reader/services/reader/ast"
	"github.com/Kuroakira/deep-code-reader/services/reader/discovery"
)

// FileError records one skipped source file and the reason.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// BuildStats reports what one build saw and skipped.
type BuildStats struct {
	// FilesDiscovered is the number of parseable files the walker found.
	FilesDiscovered int `json:"files_discovered"`

	// FilesParsed is the number of files folded into the graph.
	FilesParsed int `json:"files_parsed"`

	// FilesSkipped is the number of files dropped after parse failures.
	FilesSkipped int `json:"files_skipped"`

	// Skipped lists the dropped files with reasons, in discovery order.
	Skipped []FileError `json:"skipped,omitempty"`

	// DurationMilli is the wall-clock build time in milliseconds.
	DurationMilli int64 `json:"duration_milli"`
}

// BuildOption configures a Builder instance.
type BuildOption func(*Builder)

// WithRegistry sets the parser registry the build uses for discovery and
// extraction. Defaults to ast.NewDefaultRegistry().
func WithRegistry(registry *ast.ParserRegistry) BuildOption {
	return func(b *Builder) {
		if registry != nil {
			b.registry = registry
		}
	}
}

// WithParallelism bounds the parse worker pool. Values below 1 reset to
// the default (GOMAXPROCS).
func WithParallelism(n int) BuildOption {
	return func(b *Builder) {
		if n >= 1 {
			b.parallelism = n
		}
	}
}

// WithExcludeDirs replaces the walker's default exclude set.
func WithExcludeDirs(dirs []string) BuildOption {
	return func(b *Builder) {
		b.excludeDirs = dirs
		b.replaceExcludes = true
	}
}

// WithAdditionalExcludes adds directory names to the walker's exclude set.
func WithAdditionalExcludes(dirs ...string) BuildOption {
	return func(b *Builder) {
		b.extraExcludes = append(b.extraExcludes, dirs...)
	}
}

// Builder discovers, parses and folds a project into a DependencyGraph.
//
// A Builder is cheap to construct and single-use per Build call; it holds
// no state between builds and is safe to reuse sequentially.
type Builder struct {
	root            string
	registry        *ast.ParserRegistry
	parallelism     int
	excludeDirs     []string
	replaceExcludes bool
	extraExcludes   []string
}

// NewBuilder creates a Builder for the given analysis root.
func NewBuilder(root string, opts ...BuildOption) *Builder {
	b := &Builder{
		root:        root,
		registry:    ast.NewDefaultRegistry(),
		parallelism: runtime.GOMAXPROCS(0),
	}
	if b.parallelism < 1 {
		b.parallelism = 1
	}

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the full pipeline: discover files, parse them on a bounded
// worker pool, fold the results into a graph in discovery order, freeze.
//
// Description:
//
//	Import classification is order-free. Pass one registers every module
//	name, pass two classifies each import against the full module set: an
//	import is internal iff its leading dotted segment equals the leading
//	segment of any registered module name, otherwise it counts as external
//	usage under its top-level name. Building the same tree twice therefore
//	yields the same classification regardless of walk order.
//
//	Per-file parse failures are warnings: the file is skipped and recorded
//	in the returned stats, the build continues.
//
// Outputs:
//   - *DependencyGraph: the frozen graph. Nil only when error is non-nil.
//   - *BuildStats: discovery and skip counts. Nil only when error is non-nil.
//   - error: discovery configuration errors (see the discovery package
//     sentinels) or ErrBuildCancelled when ctx was cancelled mid-build.
func (b *Builder) Build(ctx context.Context) (*DependencyGraph, *BuildStats, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Builder.Build")
	defer span.End()

	walker := b.newWalker()
	files, err := walker.Discover(ctx)
	if err != nil {
		recordBuildMetrics(ctx, time.Since(start), 0, 0, false)
		return nil, nil, err
	}

	results, failures, err := b.parseFiles(ctx, files)
	if err != nil {
		recordBuildMetrics(ctx, time.Since(start), 0, 0, false)
		return nil, nil, fmt.Errorf("%w: %v", ErrBuildCancelled, err)
	}

	absRoot, err := filepath.Abs(b.root)
	if err != nil {
		absRoot = b.root
	}

	g := NewDependencyGraph(absRoot)
	stats := &BuildStats{FilesDiscovered: len(files)}

	// Pass one: register every module so classification does not depend
	// on discovery order.
	moduleNames := make([]string, len(files))
	for i, res := range results {
		if res == nil {
			stats.FilesSkipped++
			stats.Skipped = append(stats.Skipped, FileError{
				File:  files[i].RelPath,
				Error: failures[i].Error(),
			})
			slog.Warn("skipping unparseable file",
				slog.String("file", files[i].RelPath),
				slog.String("error", failures[i].Error()))
			continue
		}

		name := ModuleNameForPath(files[i].RelPath)
		moduleNames[i] = name
		if addErr := g.AddModule(name, files[i].RelPath, files[i].Language); addErr != nil {
			return nil, nil, fmt.Errorf("register module %s: %w", name, addErr)
		}
	}

	internalRoots := make(map[string]struct{}, g.ModuleCount())
	for _, name := range g.Modules() {
		internalRoots[topLevelName(name)] = struct{}{}
	}

	// Pass two: classify imports and fold functions, in discovery order.
	for i, res := range results {
		if res == nil {
			continue
		}
		module := moduleNames[i]

		for _, imp := range res.Imports {
			if imp.Path == "" {
				continue
			}
			root := topLevelName(imp.Path)
			if _, internal := internalRoots[root]; internal {
				if depErr := g.AddDependency(module, imp.Path); depErr != nil {
					return nil, nil, fmt.Errorf("record dependency %s -> %s: %w", module, imp.Path, depErr)
				}
			} else {
				if extErr := g.AddExternal(root); extErr != nil {
					return nil, nil, fmt.Errorf("record external %s: %w", root, extErr)
				}
			}
		}

		for _, fn := range res.Functions {
			if fnErr := g.AddFunction(res.FilePath, fn); fnErr != nil {
				return nil, nil, fmt.Errorf("fold function %s: %w", fn.Name, fnErr)
			}
		}

		stats.FilesParsed++
	}

	g.Freeze()
	stats.DurationMilli = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.String("build.root", absRoot),
		attribute.Int("build.files", len(files)),
		attribute.Int("build.modules", g.ModuleCount()),
		attribute.Int("build.internal_edges", g.InternalEdgeCount()),
		attribute.Int("build.skipped", stats.FilesSkipped),
	)
	recordBuildMetrics(ctx, time.Since(start), g.ModuleCount(), stats.FilesSkipped, true)

	slog.Info("dependency graph built",
		slog.String("root", absRoot),
		slog.Int("modules", g.ModuleCount()),
		slog.Int("internal_edges", g.InternalEdgeCount()),
		slog.Int("external_packages", g.ExternalPackageCount()),
		slog.Int("functions", g.FunctionCount()),
		slog.Int("skipped", stats.FilesSkipped),
		slog.Int64("duration_ms", stats.DurationMilli))

	return g, stats, nil
}

// newWalker builds the discovery walker from the builder's options.
func (b *Builder) newWalker() *discovery.Walker {
	opts := []discovery.WalkerOption{discovery.WithRegistry(b.registry)}
	if b.replaceExcludes {
		opts = append(opts, discovery.WithExcludeDirs(b.excludeDirs))
	}
	if len(b.extraExcludes) > 0 {
		opts = append(opts, discovery.WithAdditionalExcludes(b.extraExcludes...))
	}
	return discovery.NewWalker(b.root, opts...)
}

// parseFiles parses every discovered file on a bounded worker pool.
//
// The returned slices are index-aligned with files: a nil result means the
// file failed and failures holds the reason. Only context cancellation is
// returned as an error; per-file problems never abort the pool.
func (b *Builder) parseFiles(ctx context.Context, files []discovery.SourceFile) ([]*ast.ParseResult, []error, error) {
	results := make([]*ast.ParseResult, len(files))
	failures := make([]error, len(files))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(b.parallelism)

	for i, file := range files {
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			content, err := os.ReadFile(file.AbsPath)
			if err != nil {
				failures[i] = fmt.Errorf("read file: %w", err)
				return nil
			}

			parser, ok := b.registry.GetByLanguage(file.Language)
			if !ok {
				failures[i] = fmt.Errorf("%w: %s", ast.ErrUnsupportedLanguage, file.Language)
				return nil
			}

			res, err := parser.Parse(gctx, content, file.RelPath)
			if err != nil {
				failures[i] = err
				return nil
			}

			results[i] = res
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, nil, err
	}
	return results, failures, nil
}

// ModuleNameForPath converts a root-relative file path into its dotted
// module name: separators become dots, the source extension is dropped.
//
//	"app/services/auth.py" -> "app.services.auth"
//	"web/index.js"         -> "web.index"
func ModuleNameForPath(relPath string) string {
	p := filepath.ToSlash(relPath)
	if ext := path.Ext(p); ext != "" {
		p = strings.TrimSuffix(p, ext)
	}
	return strings.ReplaceAll(p, "/", ".")
}

// topLevelName returns the leading dotted segment of a module or import
// path ("requests.models" -> "requests").
func topLevelName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
