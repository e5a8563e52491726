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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("deepread.publish")
	meter  = otel.Meter("deepread.publish")

	publishTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		publishTotal, metricsErr = meter.Int64Counter(
			"reader_publish_total",
			metric.WithDescription("Publish attempts per sink."),
		)
	})
	return metricsErr
}

// recordPublish counts one sink attempt. Metrics stay best-effort.
func recordPublish(ctx context.Context, sink string, success bool) {
	if initMetrics() != nil {
		return
	}
	publishTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("sink", sink),
			attribute.Bool("success", success),
		))
}
