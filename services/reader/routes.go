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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all reader routes with the router.
//
// Description:
//
//	Registers all /v1/reader/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Analysis Endpoints:
//
//	POST /v1/reader/analyze - Analyze a project root into a session
//	GET  /v1/reader/sessions - List cached sessions
//	GET  /v1/reader/sessions/:id - Session summary
//	GET  /v1/reader/sessions/:id/result - Full analysis document
//	GET  /v1/reader/sessions/:id/cycles - Circular dependency chains
//	GET  /v1/reader/sessions/:id/metrics - Coupling metrics
//	GET  /v1/reader/sessions/:id/flow - Flow trace from a start function
//	GET  /v1/reader/sessions/:id/diagram - Diagram text
//
// Snapshot Endpoints:
//
//	POST /v1/reader/snapshots - Persist a session's graph
//	GET  /v1/reader/snapshots - List stored snapshots
//	POST /v1/reader/snapshots/:id/load - Restore a snapshot into a session
//	DELETE /v1/reader/snapshots/:id - Delete a snapshot
//
// Watch Endpoints:
//
//	POST /v1/reader/watch - Start watching a project root
//	DELETE /v1/reader/watch - Stop watching a project root
//	GET  /v1/reader/watch - WebSocket stream of rebuild events
//
// Health Endpoints:
//
//	GET  /v1/reader/health - Health check
//	GET  /v1/reader/ready - Readiness check
//
// Example:
//
//	service := reader.NewService(nil)
//	handlers := reader.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	reader.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	reader := rg.Group("/reader")
	{
		// Analysis lifecycle
		reader.POST("/analyze", handlers.HandleAnalyze)

		// Session reads
		reader.GET("/sessions", handlers.HandleListSessions)
		reader.GET("/sessions/:id", handlers.HandleGetSession)
		reader.GET("/sessions/:id/result", handlers.HandleGetResult)
		reader.GET("/sessions/:id/cycles", handlers.HandleGetCycles)
		reader.GET("/sessions/:id/metrics", handlers.HandleGetMetrics)
		reader.GET("/sessions/:id/flow", handlers.HandleGetFlow)
		reader.GET("/sessions/:id/diagram", handlers.HandleGetDiagram)

		// Snapshot persistence
		reader.POST("/snapshots", handlers.HandleSaveSnapshot)
		reader.GET("/snapshots", handlers.HandleListSnapshots)
		reader.POST("/snapshots/:id/load", handlers.HandleLoadSnapshot)
		reader.DELETE("/snapshots/:id", handlers.HandleDeleteSnapshot)

		// Watch mode
		reader.POST("/watch", handlers.HandleWatchStart)
		reader.DELETE("/watch", handlers.HandleWatchStop)
		reader.GET("/watch", handlers.HandleWatch)

		// Health checks
		reader.GET("/health", handlers.HandleHealth)
		reader.GET("/ready", handlers.HandleReady)
	}
}
