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
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/Kuroakira/deep-code-reader/services/reader/graph"
)

// influxMeasurement is the measurement analysis points are written under.
const influxMeasurement = "code_analysis"

// InfluxSink records one point per analysis so dashboards can track how
// a codebase's coupling evolves.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxSink connects the metrics history sink. The token may be
// empty against an unsecured dev instance.
func NewInfluxSink(url, token, org, bucket string) (*InfluxSink, error) {
	if url == "" || org == "" || bucket == "" {
		return nil, fmt.Errorf("%w: url, org and bucket are required", ErrNotConfigured)
	}

	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}, nil
}

// Publish writes the analysis totals as a single point tagged with the
// project name, timestamped at the analysis build time.
func (s *InfluxSink) Publish(ctx context.Context, bundle *Bundle) error {
	if err := bundle.validate(); err != nil {
		return err
	}

	var metrics graph.MetricsBundle
	if bundle.Result.Metrics != nil {
		metrics = *bundle.Result.Metrics
	}

	point := influxdb2.NewPoint(
		influxMeasurement,
		map[string]string{
			"project": bundle.Project(),
		},
		map[string]interface{}{
			"modules":        metrics.TotalModules,
			"internal_edges": metrics.TotalInternalDeps,
			"external_refs":  metrics.TotalExternalRefs,
			"cycles":         metrics.CircularDependencies,
			"functions":      bundle.Functions,
		},
		time.UnixMilli(bundle.Result.BuiltAtMilli),
	)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("writing analysis point: %w", err)
	}
	return nil
}

// Close shuts down the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
