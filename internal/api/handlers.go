// Package api exposes the chat system over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/coursechat/internal/monitor"
	"github.com/kalambet/coursechat/internal/rag"
	"github.com/kalambet/coursechat/internal/search"
	"github.com/kalambet/coursechat/internal/session"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ChatSystem is the slice of the orchestrator the HTTP layer needs.
// *rag.System satisfies it.
type ChatSystem interface {
	Query(ctx context.Context, query, sessionID string) (string, []search.Source, error)
	Analytics() (rag.Analytics, error)
	AddCourseFolder(ctx context.Context, path string, clearExisting bool) (int, int, error)
	Sessions() *session.Manager
}

// AppDeps holds dependencies for the HTTP API.
type AppDeps struct {
	System  ChatSystem
	DocsDir string
	// Token, when non-empty, gates the ingest endpoint with bearer auth.
	Token string
	// Health, when non-nil, backs the quality endpoint.
	Health func(ctx context.Context) monitor.HealthReport
}

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type QueryResponse struct {
	Answer    string          `json:"answer"`
	Sources   []search.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

type IngestRequest struct {
	ClearExisting bool `json:"clear_existing"`
}

// NewAppHandler returns the HTTP API router.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/api/query", handleQuery(deps))
	r.Get("/api/courses", handleCourses(deps))
	r.Post("/api/sessions/clear", handleClearSession(deps))

	ingest := handleIngest(deps)
	if deps.Token != "" {
		r.With(BearerAuth(deps.Token)).Post("/api/ingest", ingest)
	} else {
		r.Post("/api/ingest", ingest)
	}

	if deps.Health != nil {
		r.Get("/health/quality", handleQuality(deps))
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleQuery(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = deps.System.Sessions().Create()
		}

		answer, sources, err := deps.System.Query(r.Context(), req.Query, sessionID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "query failed: %v", err)
			return
		}
		if sources == nil {
			sources = []search.Source{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(QueryResponse{
			Answer:    answer,
			Sources:   sources,
			SessionID: sessionID,
		})
	}
}

func handleCourses(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		analytics, err := deps.System.Analytics()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load course stats: %v", err)
			return
		}
		if analytics.CourseTitles == nil {
			analytics.CourseTitles = []string{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(analytics)
	}
}

func handleClearSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req struct {
			SessionID string `json:"session_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.SessionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "session_id is required")
			return
		}

		deps.System.Sessions().Clear(req.SessionID)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
	}
}

func handleIngest(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		courses, chunks, err := deps.System.AddCourseFolder(r.Context(), deps.DocsDir, req.ClearExisting)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "ingestion failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{
			"courses_added": courses,
			"chunks_added":  chunks,
		})
	}
}

func handleQuality(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := deps.Health(r.Context())

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
