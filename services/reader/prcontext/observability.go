// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prcontext

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("deepread.prcontext")
	meter  = otel.Meter("deepread.prcontext")
)

var (
	requestTotal metric.Int64Counter
	fetchLatency metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		requestTotal, err = meter.Int64Counter(
			"reader_pr_requests_total",
			metric.WithDescription("Total number of GitHub API requests"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fetchLatency, err = meter.Float64Histogram(
			"reader_pr_fetch_duration_seconds",
			metric.WithDescription("Latency of full PR context fetches"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordRequest records one API request outcome.
func recordRequest(ctx context.Context, path string, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("path", path),
		attribute.Bool("success", success),
	))
}

// recordFetch records one full context fetch.
func recordFetch(ctx context.Context, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	fetchLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.Bool("success", success),
	))
}
