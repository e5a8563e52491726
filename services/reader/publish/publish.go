// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package publish fans analysis artifacts out to optional sinks.
//
// # Description
//
// DirPublisher writes the analysis document and rendered diagrams into a
// directory, GCSPublisher uploads the same artifacts to a bucket, and
// InfluxSink records one measurement point per analysis for long-term
// trend dashboards. Fanout runs every configured sink and downgrades sink
// failures to warnings: publishing is advisory and never fails an
// analysis.
//
// # Thread Safety
//
// All publishers are safe for concurrent use once constructed.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/Kuroakira/deep-code-reader/services/reader/graph"
)

// AnalysisFileName is the name of the serialized analysis document.
const AnalysisFileName = "analysis.json"

// Publisher delivers one analysis bundle to a sink.
type Publisher interface {
	Publish(ctx context.Context, bundle *Bundle) error
}

// Bundle is the publishable output of one analysis.
type Bundle struct {
	// ProjectRoot is the analyzed root. Its base name becomes the
	// project tag and the artifact folder name.
	ProjectRoot string

	// Result is the analysis document.
	Result *graph.AnalysisResult

	// Functions is the call-graph function count, carried separately
	// because the analysis document aggregates per-module data only.
	Functions int

	// Diagrams maps artifact file names to rendered diagram text.
	Diagrams map[string]string
}

// Project returns the project tag: the base name of the analyzed root.
func (b *Bundle) Project() string {
	root := b.ProjectRoot
	if root == "" && b.Result != nil {
		root = b.Result.ProjectRoot
	}
	return filepath.Base(root)
}

func (b *Bundle) validate() error {
	if b == nil || b.Result == nil {
		return ErrNilBundle
	}
	return nil
}

// artifact is one file-shaped piece of a bundle.
type artifact struct {
	name        string
	data        []byte
	contentType string
}

// artifacts flattens the bundle into named files: the analysis document
// first, then the diagrams in name order.
func (b *Bundle) artifacts() ([]artifact, error) {
	data, err := json.MarshalIndent(b.Result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding analysis document: %w", err)
	}
	out := []artifact{{name: AnalysisFileName, data: data, contentType: "application/json"}}

	names := make([]string, 0, len(b.Diagrams))
	for name := range b.Diagrams {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, artifact{
			name:        name,
			data:        []byte(b.Diagrams[name]),
			contentType: "text/plain; charset=utf-8",
		})
	}
	return out, nil
}

// Fanout publishes one bundle to every configured sink in order. A sink
// failure is logged and the remaining sinks still run.
type Fanout struct {
	publishers []Publisher
}

// NewFanout builds a fanout, dropping nil entries so optional sinks can
// be passed unconditionally.
func NewFanout(publishers ...Publisher) *Fanout {
	kept := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Fanout{publishers: kept}
}

// Len returns the number of configured sinks.
func (f *Fanout) Len() int {
	return len(f.publishers)
}

// Publish runs every sink. The returned error is non-nil only for an
// invalid bundle; sink failures degrade to warnings.
func (f *Fanout) Publish(ctx context.Context, bundle *Bundle) error {
	if err := bundle.validate(); err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "Fanout.Publish")
	defer span.End()

	for _, p := range f.publishers {
		if err := p.Publish(ctx, bundle); err != nil {
			slog.Warn("publisher failed, continuing",
				slog.String("publisher", publisherName(p)),
				slog.String("project", bundle.Project()),
				slog.String("error", err.Error()))
			recordPublish(ctx, publisherName(p), false)
			continue
		}
		recordPublish(ctx, publisherName(p), true)
	}
	return nil
}

func publisherName(p Publisher) string {
	switch p.(type) {
	case *DirPublisher:
		return "dir"
	case *GCSPublisher:
		return "gcs"
	case *InfluxSink:
		return "influx"
	case *Fanout:
		return "fanout"
	default:
		return fmt.Sprintf("%T", p)
	}
}
