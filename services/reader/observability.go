// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reader

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for service operations.
var (
	serviceTracer = otel.Tracer("deepread.service")
	serviceMeter  = otel.Meter("deepread.service")
)

// Metrics for session and watch operations.
var (
	analyzeLatency  metric.Float64Histogram
	analyzeTotal    metric.Int64Counter
	sessionsEvicted metric.Int64Counter
	watchRebuilds   metric.Int64Counter

	serviceMetricsOnce sync.Once
	serviceMetricsErr  error
)

// initServiceMetrics initializes the metrics. Safe to call multiple times.
func initServiceMetrics() error {
	serviceMetricsOnce.Do(func() {
		var err error

		analyzeLatency, err = serviceMeter.Float64Histogram(
			"reader_service_analyze_duration_seconds",
			metric.WithDescription("Duration of full analysis runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			serviceMetricsErr = err
			return
		}

		analyzeTotal, err = serviceMeter.Int64Counter(
			"reader_service_analyze_total",
			metric.WithDescription("Total analysis runs by outcome"),
		)
		if err != nil {
			serviceMetricsErr = err
			return
		}

		sessionsEvicted, err = serviceMeter.Int64Counter(
			"reader_service_sessions_evicted_total",
			metric.WithDescription("Sessions evicted from the cache"),
		)
		if err != nil {
			serviceMetricsErr = err
			return
		}

		watchRebuilds, err = serviceMeter.Int64Counter(
			"reader_service_watch_rebuilds_total",
			metric.WithDescription("Watch-triggered rebuilds by outcome"),
		)
		if err != nil {
			serviceMetricsErr = err
		}
	})
	return serviceMetricsErr
}

// recordAnalyze records one analysis outcome. Best-effort; metric
// initialization failures are swallowed.
func recordAnalyze(ctx context.Context, duration time.Duration, success bool) {
	if initServiceMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	analyzeLatency.Record(ctx, duration.Seconds(), attrs)
	analyzeTotal.Add(ctx, 1, attrs)
}

// recordEviction counts one cache eviction.
func recordEviction(ctx context.Context) {
	if initServiceMetrics() != nil {
		return
	}
	sessionsEvicted.Add(ctx, 1)
}

// recordWatchRebuild counts one watch-triggered rebuild.
func recordWatchRebuild(ctx context.Context, success bool) {
	if initServiceMetrics() != nil {
		return
	}
	watchRebuilds.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
