// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for symbol extraction.
var (
	tracer = otel.Tracer("deepread.ast")
	meter  = otel.Meter("deepread.ast")
)

// Metrics for parse operations.
var (
	parseLatency       metric.Float64Histogram
	parseTotal         metric.Int64Counter
	importsExtracted   metric.Int64Histogram
	functionsExtracted metric.Int64Histogram
	parseErrors        metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"reader_parse_duration_seconds",
			metric.WithDescription("Duration of source file parse operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseTotal, err = meter.Int64Counter(
			"reader_parse_total",
			metric.WithDescription("Total number of parse operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		importsExtracted, err = meter.Int64Histogram(
			"reader_imports_extracted",
			metric.WithDescription("Number of imports extracted per file"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		functionsExtracted, err = meter.Int64Histogram(
			"reader_functions_extracted",
			metric.WithDescription("Number of functions extracted per file"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseErrors, err = meter.Int64Counter(
			"reader_parse_errors_total",
			metric.WithDescription("Total number of failed parse operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordParseMetrics records metrics for one parse operation.
//
// Parameters:
//   - ctx: Context for metric recording
//   - language: Language being parsed (e.g. "python")
//   - duration: How long the parse took
//   - result: The parse result, nil on failure
//   - success: Whether the parse succeeded
func recordParseMetrics(ctx context.Context, language string, duration time.Duration, result *ParseResult, success bool) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	)

	parseLatency.Record(ctx, duration.Seconds(), attrs)
	parseTotal.Add(ctx, 1, attrs)

	if success && result != nil {
		langAttr := metric.WithAttributes(attribute.String("language", language))
		importsExtracted.Record(ctx, int64(len(result.Imports)), langAttr)
		functionsExtracted.Record(ctx, int64(len(result.Functions)), langAttr)
	} else {
		parseErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("language", language)),
		)
	}
}

// startParseSpan creates a span for a parse operation.
//
// Returns the derived context and the span. The caller must call span.End().
func startParseSpan(ctx context.Context, language, filePath string, contentSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Parser.Parse",
		trace.WithAttributes(
			attribute.String("ast.language", language),
			attribute.String("ast.file", filePath),
			attribute.Int("ast.content_size", contentSize),
		),
	)
}

// setParseSpanResult sets the result attributes on a parse span.
func setParseSpanResult(span trace.Span, result *ParseResult) {
	if result == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("ast.import_count", len(result.Imports)),
		attribute.Int("ast.function_count", len(result.Functions)),
		attribute.Int("ast.error_count", len(result.Errors)),
	)
}
