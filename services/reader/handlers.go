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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kuroakira/deep-code-reader/services/reader/diagram"
	"github.com/Kuroakira/deep-code-reader/services/reader/discovery"
	"github.com/Kuroakira/deep-code-reader/services/reader/graph"
)

// Handlers carries the HTTP handlers for the reader service.
type Handlers struct {
	svc      *Service
	diagrams *diagram.Generator
}

// NewHandlers creates the handler set over a service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{
		svc:      svc,
		diagrams: diagram.NewGenerator(nil),
	}
}

// getOrCreateRequestID returns the X-Request-ID header or generates one,
// and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// respondServiceError maps service sentinels to HTTP status codes and
// writes the error envelope.
func respondServiceError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "session not found",
			Code:  "SESSION_NOT_FOUND",
		})
	case errors.Is(err, ErrSessionExpired):
		c.JSON(http.StatusGone, ErrorResponse{
			Error: "session expired",
			Code:  "SESSION_EXPIRED",
		})
	case errors.Is(err, ErrAnalyzeInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "analysis already in progress for this project root",
			Code:  "ANALYZE_IN_PROGRESS",
		})
	case errors.Is(err, ErrRelativePath), errors.Is(err, ErrPathTraversal):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid project root",
			Code:    "INVALID_ROOT",
			Details: err.Error(),
		})
	case errors.Is(err, discovery.ErrEmptyRoot),
		errors.Is(err, discovery.ErrRootNotFound),
		errors.Is(err, discovery.ErrNotDirectory):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid project root",
			Code:    "INVALID_ROOT",
			Details: err.Error(),
		})
	case errors.Is(err, ErrSnapshotsDisabled):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot persistence not configured",
			Code:  "SNAPSHOTS_NOT_AVAILABLE",
		})
	case errors.Is(err, graph.ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "snapshot not found",
			Code:  "SNAPSHOT_NOT_FOUND",
		})
	case errors.Is(err, graph.ErrSchemaIncompatible):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "snapshot schema incompatible with this build",
			Code:    "SCHEMA_INCOMPATIBLE",
			Details: err.Error(),
		})
	case errors.Is(err, graph.ErrSnapshotCorrupt):
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "snapshot data corrupt",
			Code:    "SNAPSHOT_CORRUPT",
			Details: err.Error(),
		})
	case errors.Is(err, ErrNotWatching):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "project root is not being watched",
			Code:  "NOT_WATCHING",
		})
	default:
		logger.Error("request failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL",
		})
	}
}

// sessionFromPath resolves the :id path parameter to a cached session,
// writing the error response on failure.
func (h *Handlers) sessionFromPath(c *gin.Context, logger *slog.Logger) (*Session, bool) {
	session, err := h.svc.GetSession(c.Param("id"))
	if err != nil {
		respondServiceError(c, logger, err)
		return nil, false
	}
	return session, true
}

// HandleAnalyze handles POST /v1/reader/analyze.
//
// Description:
//
//	Runs the full analysis pipeline for a project root and returns the
//	session summary. Re-analyzing a root replaces its session.
//
// Request Body:
//
//	AnalyzeRequest (project_root required)
//
// Response:
//
//	200 OK: SessionResponse
//	400 Bad Request: Invalid body, root or per-project config
//	409 Conflict: Analysis already running for this root
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	session, err := h.svc.Analyze(c.Request.Context(), req.ProjectRoot)
	if err != nil {
		logger.Warn("analysis failed",
			slog.String("project_root", req.ProjectRoot),
			slog.Any("error", err))
		respondServiceError(c, logger, err)
		return
	}

	logger.Info("analysis complete",
		slog.String("session_id", session.ID),
		slog.String("project_root", session.ProjectRoot),
		slog.Int("modules", session.Graph.ModuleCount()))

	c.JSON(http.StatusOK, session.Summary())
}

// HandleListSessions handles GET /v1/reader/sessions.
//
// Response:
//
//	200 OK: ListSessionsResponse (newest first)
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleListSessions(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, ListSessionsResponse{Sessions: h.svc.Sessions()})
}

// HandleGetSession handles GET /v1/reader/sessions/:id.
//
// Response:
//
//	200 OK: SessionResponse
//	404 Not Found: Unknown session
//	410 Gone: Expired session
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleGetSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetSession")

	session, ok := h.sessionFromPath(c, logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Summary())
}

// HandleGetResult handles GET /v1/reader/sessions/:id/result.
//
// Description:
//
//	Returns the full analysis document: module dependencies, external
//	usage, package structure, cycles, metrics and build stats.
//
// Response:
//
//	200 OK: graph.AnalysisResult
//	404 Not Found: Unknown session
//
// Thread Safety: This method is safe for concurrent use. Read-only
// access to a frozen session.
func (h *Handlers) HandleGetResult(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetResult")

	session, ok := h.sessionFromPath(c, logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Result)
}

// HandleGetCycles handles GET /v1/reader/sessions/:id/cycles.
//
// Response:
//
//	200 OK: CyclesResponse
//	404 Not Found: Unknown session
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleGetCycles(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetCycles")

	session, ok := h.sessionFromPath(c, logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, CyclesResponse{
		Count:  len(session.Cycles),
		Cycles: session.Cycles,
	})
}

// HandleGetMetrics handles GET /v1/reader/sessions/:id/metrics.
//
// Response:
//
//	200 OK: graph.MetricsBundle
//	404 Not Found: Unknown session
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleGetMetrics(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetMetrics")

	session, ok := h.sessionFromPath(c, logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Metrics)
}

// HandleGetFlow handles GET /v1/reader/sessions/:id/flow.
//
// Description:
//
//	Traces the call tree from a start function and returns the flow
//	document, or its Mermaid rendering when format=mermaid.
//
// Query Parameters:
//
//	start: Function name to trace from (required)
//	max_depth: Trace depth; defaults to the per-project config or the
//	           flow package default (optional)
//	format: "json" (default) or "mermaid" (optional)
//
// Response:
//
//	200 OK: flow.FlowReport, or DiagramResponse when format=mermaid
//	400 Bad Request: Missing start parameter
//	404 Not Found: Unknown session
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleGetFlow(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetFlow")

	session, ok := h.sessionFromPath(c, logger)
	if !ok {
		return
	}

	start := c.Query("start")
	if start == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "start parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	maxDepth := session.FlowMaxDepth
	if depthStr := c.Query("max_depth"); depthStr != "" {
		if parsed, err := strconv.Atoi(depthStr); err == nil && parsed > 0 {
			maxDepth = parsed
		}
	}

	report := session.Tracer.Report(c.Request.Context(), start, maxDepth)

	logger.Info("flow traced",
		slog.String("session_id", session.ID),
		slog.String("start", start),
		slog.Int("max_depth", report.MaxDepth))

	if c.Query("format") == "mermaid" {
		c.JSON(http.StatusOK, DiagramResponse{
			Kind:    "flow",
			Format:  "mermaid",
			Content: h.diagrams.FlowTree(report.Tree),
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleGetDiagram handles GET /v1/reader/sessions/:id/diagram.
//
// Description:
//
//	Renders one diagram from the session's analysis document.
//
// Query Parameters:
//
//	kind: modules | overview | cycles | external | packages | arch
//	      (optional, default modules)
//	format: mermaid | drawio (optional, default mermaid; drawio only
//	        for kind=arch)
//
// Response:
//
//	200 OK: DiagramResponse
//	400 Bad Request: Unknown kind or unsupported format
//	404 Not Found: Unknown session
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleGetDiagram(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetDiagram")

	session, ok := h.sessionFromPath(c, logger)
	if !ok {
		return
	}

	kind := diagram.Kind(c.DefaultQuery("kind", string(diagram.KindModules)))
	format := diagram.Format(c.DefaultQuery("format", string(diagram.FormatMermaid)))

	in := diagram.Input{Result: session.Result}
	if kind == diagram.KindArch {
		in.Layers = diagram.DetectLayers(session.ProjectRoot)
	}

	content, err := h.diagrams.Generate(c.Request.Context(), in, kind, format)
	if err != nil {
		if errors.Is(err, diagram.ErrUnknownKind) || errors.Is(err, diagram.ErrUnsupportedFormat) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "unsupported diagram request",
				Code:    "INVALID_DIAGRAM",
				Details: err.Error(),
			})
			return
		}
		respondServiceError(c, logger, err)
		return
	}

	logger.Info("diagram rendered",
		slog.String("session_id", session.ID),
		slog.String("kind", string(kind)),
		slog.String("format", string(format)))

	c.JSON(http.StatusOK, DiagramResponse{
		Kind:    string(kind),
		Format:  string(format),
		Content: content,
	})
}

// HandleSaveSnapshot handles POST /v1/reader/snapshots.
//
// Request Body:
//
//	SaveSnapshotRequest (session_id required, label optional)
//
// Response:
//
//	200 OK: SaveSnapshotResponse
//	404 Not Found: Unknown session
//	503 Service Unavailable: Snapshot store not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleSaveSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSaveSnapshot")

	var req SaveSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	meta, err := h.svc.SaveSnapshot(c.Request.Context(), req.SessionID, req.Label)
	if err != nil {
		respondServiceError(c, logger, err)
		return
	}

	logger.Info("snapshot saved",
		slog.String("snapshot_id", meta.SnapshotID),
		slog.String("session_id", req.SessionID))

	c.JSON(http.StatusOK, SaveSnapshotResponse{Metadata: meta})
}

// HandleListSnapshots handles GET /v1/reader/snapshots.
//
// Query Parameters:
//
//	project_root: Optional filter by project root path
//	limit: Maximum results, default 100
//
// Response:
//
//	200 OK: ListSnapshotsResponse
//	503 Service Unavailable: Snapshot store not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListSnapshots")

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	snapshots, err := h.svc.ListSnapshots(c.Request.Context(), c.Query("project_root"), limit)
	if err != nil {
		respondServiceError(c, logger, err)
		return
	}

	logger.Info("listing snapshots", slog.Int("count", len(snapshots)))

	c.JSON(http.StatusOK, ListSnapshotsResponse{Snapshots: snapshots})
}

// HandleLoadSnapshot handles POST /v1/reader/snapshots/:id/load.
//
// Description:
//
//	Restores a snapshot into a fresh session and returns both the new
//	session summary and the stored metadata.
//
// Path Parameters:
//
//	id: Snapshot ID (required)
//
// Response:
//
//	200 OK: LoadSnapshotResponse
//	404 Not Found: Snapshot not found
//	409 Conflict: Snapshot schema incompatible
//	503 Service Unavailable: Snapshot store not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleLoadSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleLoadSnapshot")

	session, meta, err := h.svc.LoadSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, logger, err)
		return
	}

	logger.Info("snapshot loaded",
		slog.String("snapshot_id", meta.SnapshotID),
		slog.String("session_id", session.ID))

	c.JSON(http.StatusOK, LoadSnapshotResponse{
		Session:  session.Summary(),
		Metadata: meta,
	})
}

// HandleDeleteSnapshot handles DELETE /v1/reader/snapshots/:id.
//
// Path Parameters:
//
//	id: Snapshot ID (required)
//
// Response:
//
//	200 OK: {"deleted": true}
//	404 Not Found: Snapshot not found
//	503 Service Unavailable: Snapshot store not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleDeleteSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteSnapshot")

	snapshotID := c.Param("id")
	if err := h.svc.DeleteSnapshot(c.Request.Context(), snapshotID); err != nil {
		respondServiceError(c, logger, err)
		return
	}

	logger.Info("snapshot deleted", slog.String("snapshot_id", snapshotID))

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// HandleHealth handles GET /v1/reader/health.
//
// Response:
//
//	200 OK: HealthResponse
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/reader/ready.
//
// Response:
//
//	200 OK: ReadyResponse
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, ReadyResponse{
		Ready:            true,
		Sessions:         h.svc.SessionCount(),
		Watchers:         h.svc.WatcherCount(),
		SnapshotsEnabled: h.svc.store != nil,
	})
}
