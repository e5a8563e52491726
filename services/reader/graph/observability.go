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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("deepread.graph")
	meter  = otel.Meter("deepread.graph")
)

// Metrics for build and snapshot operations.
var (
	buildLatency    metric.Float64Histogram
	buildTotal      metric.Int64Counter
	filesSkipped    metric.Int64Counter
	modulesPerBuild metric.Int64Histogram
	cyclesPerBuild  metric.Int64Histogram
	snapshotOps     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"reader_build_duration_seconds",
			metric.WithDescription("Duration of dependency graph builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"reader_build_total",
			metric.WithDescription("Total number of graph builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesSkipped, err = meter.Int64Counter(
			"reader_build_files_skipped_total",
			metric.WithDescription("Source files skipped due to parse failures"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		modulesPerBuild, err = meter.Int64Histogram(
			"reader_build_modules",
			metric.WithDescription("Modules registered per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cyclesPerBuild, err = meter.Int64Histogram(
			"reader_cycles_detected",
			metric.WithDescription("Circular dependencies found per detection run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		snapshotOps, err = meter.Int64Counter(
			"reader_snapshot_operations_total",
			metric.WithDescription("Snapshot store operations by kind and outcome"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

// recordBuildMetrics records one build outcome. Best-effort; metric
// initialization failures are swallowed.
func recordBuildMetrics(ctx context.Context, duration time.Duration, moduleCount, skipped int, success bool) {
	if initMetrics() != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)
	if skipped > 0 {
		filesSkipped.Add(ctx, int64(skipped))
	}
	if success {
		modulesPerBuild.Record(ctx, int64(moduleCount))
	}
}

// recordCycleMetrics records the result size of one cycle detection run.
func recordCycleMetrics(ctx context.Context, cycleCount int) {
	if initMetrics() != nil {
		return
	}
	cyclesPerBuild.Record(ctx, int64(cycleCount))
}

// recordSnapshotOp counts one snapshot store operation.
func recordSnapshotOp(ctx context.Context, op string, err error) {
	if initMetrics() != nil {
		return
	}
	snapshotOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", err == nil),
	))
}
