// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command readerd starts the Deep Code Reader API server.
//
// Deep Code Reader builds dependency and call graphs from parsed source:
//   - Module dependency graphs with cycle detection and coupling metrics
//   - Bounded-depth execution flow tracing from any function
//   - Mermaid and draw.io diagram text for every view
//   - Snapshot persistence, watch mode, and optional artifact publishing
//
// Usage:
//
//	go run ./cmd/readerd
//	go run ./cmd/readerd -port 9090
//	go run ./cmd/readerd -publish-dir
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/reader/health
//
//	# Analyze a project
//	curl -X POST http://localhost:8080/v1/reader/analyze \
//	  -H "Content-Type: application/json" \
//	  -d '{"project_root": "/path/to/project"}'
//
//	# Module diagram for a session
//	curl "http://localhost:8080/v1/reader/sessions/<id>/diagram?kind=modules"
//
// Environment:
//
//	DEEPREAD_SNAPSHOT_DIR   BadgerDB directory for snapshots (default ~/.deepread/snapshots)
//	DEEPREAD_ALLOWED_ROOTS  colon-separated prefixes analyzable roots must live under
//	DEEPREAD_GCS_BUCKET     enable GCS artifact uploads into this bucket
//	DEEPREAD_GCS_PREFIX     object prefix for GCS uploads
//	DEEPREAD_GCS_CREDENTIALS service account key file (omit for ambient credentials)
//	INFLUXDB_URL            enable InfluxDB metrics (with INFLUXDB_TOKEN/ORG/BUCKET)
//	OTEL_TRACES_EXPORTER    otlp, stdout, or none (default none)
//	OTEL_METRICS_EXPORTER   prometheus, stdout, or none (default prometheus)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Kuroakira/deep-code-reader/services/reader"
	"github.com/Kuroakira/deep-code-reader/services/reader/graph"
	"github.com/Kuroakira/deep-code-reader/services/reader/publish"
	"github.com/Kuroakira/deep-code-reader/services/reader/telemetry"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	publishDir := flag.Bool("publish-dir", false,
		"Write analysis artifacts into each analyzed project's .deepread directory")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace context flows from incoming
	// headers through every handler.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Telemetry failures never block serving; the globals stay no-op.
	telemetryShutdown, err := telemetry.Init(context.Background(), telemetry.DefaultConfig())
	if err != nil {
		slog.Warn("Telemetry disabled", slog.String("error", err.Error()))
		telemetryShutdown = func(context.Context) error { return nil }
	}

	cfg := reader.DefaultServiceConfig()
	if roots := os.Getenv("DEEPREAD_ALLOWED_ROOTS"); roots != "" {
		cfg.AllowedRoots = filepath.SplitList(roots)
	}
	svc := reader.NewService(&cfg)
	handlers := reader.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("deepread-reader"))
	if *debug {
		router.Use(gin.Logger())
	}

	if metricsHandler := telemetry.MetricsHandler(); metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	v1 := router.Group("/v1")
	reader.RegisterRoutes(v1, handlers)

	// Snapshot BadgerDB. Graceful degradation: if unavailable, the
	// snapshot endpoints report snapshots disabled and everything else
	// keeps working.
	snapshotDB := openSnapshotStore(svc)

	publisher, closePublishers := setupPublishers(*publishDir)
	if publisher != nil {
		svc.SetPublisher(publisher)
	}

	printBanner(*port, snapshotDB != nil, publisher != nil)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down Deep Code Reader server")
		svc.StopWatchers()
		if snapshotDB != nil {
			if err := snapshotDB.Close(); err != nil {
				slog.Warn("Failed to close snapshot BadgerDB", slog.String("error", err.Error()))
			}
		}
		closePublishers()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			slog.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting Deep Code Reader server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// openSnapshotStore opens the snapshot BadgerDB and wires it into the
// service. Returns nil when snapshots are unavailable.
func openSnapshotStore(svc *reader.Service) *badger.DB {
	dir := os.Getenv("DEEPREAD_SNAPSHOT_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Warn("Cannot resolve home directory, snapshot endpoints disabled",
				slog.String("error", err.Error()))
			return nil
		}
		dir = filepath.Join(home, ".deepread", "snapshots")
	}

	db, err := graph.OpenBadger(dir)
	if err != nil {
		slog.Warn("Snapshot BadgerDB unavailable, snapshot endpoints disabled",
			slog.String("path", dir),
			slog.String("error", err.Error()))
		return nil
	}
	store, err := graph.NewSnapshotStore(db)
	if err != nil {
		slog.Warn("Snapshot store unavailable, snapshot endpoints disabled",
			slog.String("error", err.Error()))
		_ = db.Close()
		return nil
	}
	svc.SetSnapshotStore(store)
	slog.Info("Snapshot BadgerDB opened", slog.String("path", dir))
	return db
}

// setupPublishers assembles the optional artifact sinks from flags and
// environment. Every sink is advisory; a sink that cannot be built is
// skipped with a warning.
func setupPublishers(publishDir bool) (publish.Publisher, func()) {
	var sinks []publish.Publisher
	var closers []func()

	if publishDir {
		sinks = append(sinks, &publish.DirPublisher{})
		slog.Info("Directory publisher enabled (per-project .deepread)")
	}

	if bucket := os.Getenv("DEEPREAD_GCS_BUCKET"); bucket != "" {
		gcs, err := publish.NewGCSPublisher(context.Background(), bucket,
			os.Getenv("DEEPREAD_GCS_PREFIX"),
			os.Getenv("DEEPREAD_GCS_CREDENTIALS"))
		if err != nil {
			slog.Warn("GCS publisher unavailable",
				slog.String("bucket", bucket),
				slog.String("error", err.Error()))
		} else {
			sinks = append(sinks, gcs)
			closers = append(closers, func() {
				if err := gcs.Close(); err != nil {
					slog.Warn("Failed to close GCS publisher", slog.String("error", err.Error()))
				}
			})
			slog.Info("GCS publisher enabled", slog.String("bucket", bucket))
		}
	}

	if influxURL := os.Getenv("INFLUXDB_URL"); influxURL != "" {
		sink, err := publish.NewInfluxSink(influxURL,
			os.Getenv("INFLUXDB_TOKEN"),
			os.Getenv("INFLUXDB_ORG"),
			os.Getenv("INFLUXDB_BUCKET"))
		if err != nil {
			slog.Warn("InfluxDB sink unavailable",
				slog.String("url", influxURL),
				slog.String("error", err.Error()))
		} else {
			sinks = append(sinks, sink)
			closers = append(closers, sink.Close)
			slog.Info("InfluxDB sink enabled", slog.String("url", influxURL))
		}
	}

	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}
	if len(sinks) == 0 {
		return nil, closeAll
	}
	return publish.NewFanout(sinks...), closeAll
}

func printBanner(port int, snapshotsEnabled, publishEnabled bool) {
	status := func(enabled bool) string {
		if enabled {
			return "ENABLED"
		}
		return "DISABLED"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                     DEEP CODE READER SERVER                       ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Dependency and call-graph analysis over parsed source.           ║
║  Snapshots: %-8s   Publishing: %-8s                       ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/reader/health             │  ║
║  │                                                             │  ║
║  │ # Analyze a project (required first!)                       │  ║
║  │ curl -X POST http://localhost:%d/v1/reader/analyze \  │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"project_root": "/your/project/path"}'               │  ║
║  │                                                             │  ║
║  │ # Coupling metrics for the session                          │  ║
║  │ curl http://localhost:%d/v1/reader/sessions/<id>/metrics │ ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Analysis: /analyze, /sessions, /sessions/:id/{result,       ║
║  │             cycles, metrics, flow, diagram}                    ║
║  ├── Snapshots: /snapshots, /snapshots/:id/load                  ║
║  └── Watch: /watch (POST/DELETE/WebSocket)                        ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, status(snapshotsEnabled), status(publishEnabled), port, port, port)
}
