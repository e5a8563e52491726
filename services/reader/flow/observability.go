// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("deepread.flow")
	meter  = otel.Meter("deepread.flow")
)

var (
	traceTotal metric.Int64Counter
	traceNodes metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		traceTotal, err = meter.Int64Counter(
			"reader_flow_traces_total",
			metric.WithDescription("Total number of flow trace operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		traceNodes, err = meter.Int64Histogram(
			"reader_flow_tree_nodes",
			metric.WithDescription("Number of nodes in expanded flow trees"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordTraceMetrics records metrics for one trace expansion.
func recordTraceMetrics(ctx context.Context, nodes int) {
	if err := initMetrics(); err != nil {
		return
	}
	traceTotal.Add(ctx, 1)
	traceNodes.Record(ctx, int64(nodes))
}
