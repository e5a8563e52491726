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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Kuroakira/deep-code-reader/services/reader/flow"
	"github.com/Kuroakira/deep-code-reader/services/reader/graph"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupReaderTestRouter(svc *Service) *gin.Engine {
	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(svc))
	return router
}

func TestHandleAnalyze(t *testing.T) {
	svc := NewService(nil)
	r := setupReaderTestRouter(svc)
	dir := writeTestProject(t, sampleFiles())

	jsonBody, _ := json.Marshal(AnalyzeRequest{ProjectRoot: dir})
	req := httptest.NewRequest("POST", "/v1/reader/analyze", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("expected non-empty session_id")
	}
	if resp.Modules != 2 {
		t.Errorf("Modules = %d, want 2", resp.Modules)
	}
	if resp.Functions != 3 {
		t.Errorf("Functions = %d, want 3", resp.Functions)
	}
}

func TestHandleAnalyze_InvalidBody(t *testing.T) {
	r := setupReaderTestRouter(NewService(nil))

	req := httptest.NewRequest("POST", "/v1/reader/analyze", bytes.NewBufferString("invalid json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Code != "INVALID_REQUEST" {
		t.Errorf("Code = %s, want INVALID_REQUEST", resp.Code)
	}
}

func TestHandleAnalyze_RelativeRoot(t *testing.T) {
	r := setupReaderTestRouter(NewService(nil))

	jsonBody, _ := json.Marshal(AnalyzeRequest{ProjectRoot: "relative/path"})
	req := httptest.NewRequest("POST", "/v1/reader/analyze", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Code != "INVALID_ROOT" {
		t.Errorf("Code = %s, want INVALID_ROOT", resp.Code)
	}
}

func TestHandleListSessions(t *testing.T) {
	svc := NewService(nil)
	session, _ := analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	req := httptest.NewRequest("GET", "/v1/reader/sessions", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp ListSessionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(resp.Sessions) != 1 {
		t.Fatalf("len(Sessions) = %d, want 1", len(resp.Sessions))
	}
	if resp.Sessions[0].SessionID != session.ID {
		t.Errorf("SessionID = %s, want %s", resp.Sessions[0].SessionID, session.ID)
	}
}

func TestHandleGetSession(t *testing.T) {
	svc := NewService(nil)
	session, _ := analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	req := httptest.NewRequest("GET", "/v1/reader/sessions/"+session.ID, nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.SessionID != session.ID {
		t.Errorf("SessionID = %s, want %s", resp.SessionID, session.ID)
	}
}

func TestHandleGetSession_NotFound(t *testing.T) {
	r := setupReaderTestRouter(NewService(nil))

	req := httptest.NewRequest("GET", "/v1/reader/sessions/nonexistent-id", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Code != "SESSION_NOT_FOUND" {
		t.Errorf("Code = %s, want SESSION_NOT_FOUND", resp.Code)
	}
}

func TestHandleGetResult(t *testing.T) {
	svc := NewService(nil)
	session, _ := analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	req := httptest.NewRequest("GET", "/v1/reader/sessions/"+session.ID+"/result", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp graph.AnalysisResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(resp.ModuleDependencies) != 2 {
		t.Errorf("len(ModuleDependencies) = %d, want 2", len(resp.ModuleDependencies))
	}
	if resp.ExternalDependencies["requests"] != 1 {
		t.Errorf("ExternalDependencies[requests] = %d, want 1", resp.ExternalDependencies["requests"])
	}
}

func TestHandleGetCycles(t *testing.T) {
	svc := NewService(nil)
	session, _ := analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	req := httptest.NewRequest("GET", "/v1/reader/sessions/"+session.ID+"/cycles", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp CyclesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Count != 0 {
		t.Errorf("Count = %d, want 0", resp.Count)
	}
}

func TestHandleGetMetrics(t *testing.T) {
	svc := NewService(nil)
	session, _ := analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	req := httptest.NewRequest("GET", "/v1/reader/sessions/"+session.ID+"/metrics", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp graph.MetricsBundle
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.TotalModules != 2 {
		t.Errorf("TotalModules = %d, want 2", resp.TotalModules)
	}
}

func TestHandleGetFlow_MissingStart(t *testing.T) {
	svc := NewService(nil)
	session, _ := analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	req := httptest.NewRequest("GET", "/v1/reader/sessions/"+session.ID+"/flow", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Code != "MISSING_PARAMETER" {
		t.Errorf("Code = %s, want MISSING_PARAMETER", resp.Code)
	}
}

func TestHandleGetFlow(t *testing.T) {
	svc := NewService(nil)
	session, _ := analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	req := httptest.NewRequest("GET", "/v1/reader/sessions/"+session.ID+"/flow?start=main", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp flow.FlowReport
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Start != "main" {
		t.Errorf("Start = %s, want main", resp.Start)
	}
	if resp.Tree == nil {
		t.Fatal("expected a non-nil flow tree")
	}
	if resp.Summary.TotalFunctions < 1 {
		t.Errorf("TotalFunctions = %d, want >= 1", resp.Summary.TotalFunctions)
	}
}

func TestHandleGetFlow_MermaidFormat(t *testing.T) {
	svc := NewService(nil)
	session, _ := analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	req := httptest.NewRequest("GET", "/v1/reader/sessions/"+session.ID+"/flow?start=main&format=mermaid", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp DiagramResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Kind != "flow" {
		t.Errorf("Kind = %s, want flow", resp.Kind)
	}
	if !strings.HasPrefix(resp.Content, "flowchart TD") {
		t.Errorf("Content must start with a flowchart header, got %q", resp.Content)
	}
}

func TestHandleGetDiagram(t *testing.T) {
	svc := NewService(nil)
	session, _ := analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	req := httptest.NewRequest("GET", "/v1/reader/sessions/"+session.ID+"/diagram", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp DiagramResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Kind != "modules" {
		t.Errorf("Kind = %s, want modules", resp.Kind)
	}
	if resp.Format != "mermaid" {
		t.Errorf("Format = %s, want mermaid", resp.Format)
	}
	if !strings.HasPrefix(resp.Content, "graph LR") {
		t.Errorf("Content must start with a graph header, got %q", resp.Content)
	}
}

func TestHandleGetDiagram_UnknownKind(t *testing.T) {
	svc := NewService(nil)
	session, _ := analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	req := httptest.NewRequest("GET", "/v1/reader/sessions/"+session.ID+"/diagram?kind=bogus", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Code != "INVALID_DIAGRAM" {
		t.Errorf("Code = %s, want INVALID_DIAGRAM", resp.Code)
	}
}

func TestHandleSaveSnapshot_Disabled(t *testing.T) {
	svc := NewService(nil)
	session, _ := analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	jsonBody, _ := json.Marshal(SaveSnapshotRequest{SessionID: session.ID})
	req := httptest.NewRequest("POST", "/v1/reader/snapshots", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Code != "SNAPSHOTS_NOT_AVAILABLE" {
		t.Errorf("Code = %s, want SNAPSHOTS_NOT_AVAILABLE", resp.Code)
	}
}

func TestSnapshotHandlers_Roundtrip(t *testing.T) {
	db, err := graph.OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	defer db.Close()
	store, err := graph.NewSnapshotStore(db)
	if err != nil {
		t.Fatalf("NewSnapshotStore failed: %v", err)
	}

	svc := NewService(nil)
	svc.SetSnapshotStore(store)
	session, _ := analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	// Save.
	jsonBody, _ := json.Marshal(SaveSnapshotRequest{SessionID: session.ID, Label: "v1"})
	req := httptest.NewRequest("POST", "/v1/reader/snapshots", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("save Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var saved SaveSnapshotResponse
	if err := json.Unmarshal(w.Body.Bytes(), &saved); err != nil {
		t.Fatalf("Failed to unmarshal save response: %v", err)
	}
	if saved.Metadata == nil || saved.Metadata.SnapshotID == "" {
		t.Fatal("expected snapshot metadata with an ID")
	}

	// List.
	req = httptest.NewRequest("GET", "/v1/reader/snapshots", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("list Status = %d, want %d", w.Code, http.StatusOK)
	}
	var listed ListSnapshotsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("Failed to unmarshal list response: %v", err)
	}
	if len(listed.Snapshots) != 1 {
		t.Fatalf("len(Snapshots) = %d, want 1", len(listed.Snapshots))
	}

	// Load into a fresh session.
	req = httptest.NewRequest("POST", "/v1/reader/snapshots/"+saved.Metadata.SnapshotID+"/load", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("load Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var loaded LoadSnapshotResponse
	if err := json.Unmarshal(w.Body.Bytes(), &loaded); err != nil {
		t.Fatalf("Failed to unmarshal load response: %v", err)
	}
	if loaded.Session.SessionID == "" {
		t.Error("expected a restored session ID")
	}
	if loaded.Session.SessionID == session.ID {
		t.Error("restored session must mint a new ID")
	}
	if loaded.Session.Modules != 2 {
		t.Errorf("restored Modules = %d, want 2", loaded.Session.Modules)
	}

	// Delete.
	req = httptest.NewRequest("DELETE", "/v1/reader/snapshots/"+saved.Metadata.SnapshotID, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("delete Status = %d, want %d", w.Code, http.StatusOK)
	}

	// Loading a deleted snapshot fails.
	req = httptest.NewRequest("POST", "/v1/reader/snapshots/"+saved.Metadata.SnapshotID+"/load", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("reload Status = %d, want %d", w.Code, http.StatusNotFound)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal reload response: %v", err)
	}
	if resp.Code != "SNAPSHOT_NOT_FOUND" {
		t.Errorf("Code = %s, want SNAPSHOT_NOT_FOUND", resp.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	r := setupReaderTestRouter(NewService(nil))

	req := httptest.NewRequest("GET", "/v1/reader/health", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %s, want ok", resp.Status)
	}
	if resp.Version != ServiceVersion {
		t.Errorf("Version = %s, want %s", resp.Version, ServiceVersion)
	}
}

func TestHandleReady(t *testing.T) {
	svc := NewService(nil)
	analyzeSample(t, svc)
	r := setupReaderTestRouter(svc)

	req := httptest.NewRequest("GET", "/v1/reader/ready", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp ReadyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !resp.Ready {
		t.Error("expected ready = true")
	}
	if resp.Sessions != 1 {
		t.Errorf("Sessions = %d, want 1", resp.Sessions)
	}
	if resp.SnapshotsEnabled {
		t.Error("expected snapshots_enabled = false without a store")
	}
}

func TestRequestIDEcho(t *testing.T) {
	r := setupReaderTestRouter(NewService(nil))

	req := httptest.NewRequest("GET", "/v1/reader/sessions", nil)
	req.Header.Set("X-Request-ID", "test-request-1")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "test-request-1" {
		t.Errorf("X-Request-ID = %q, want %q", got, "test-request-1")
	}
}
