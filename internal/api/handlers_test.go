package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/coursechat/internal/monitor"
	"github.com/kalambet/coursechat/internal/rag"
	"github.com/kalambet/coursechat/internal/search"
	"github.com/kalambet/coursechat/internal/session"
)

const testToken = "test-token-12345"

// mockSystem is a ChatSystem test double.
type mockSystem struct {
	sessions *session.Manager

	answer  string
	sources []search.Source
	err     error

	gotQuery     string
	gotSessionID string
	gotClear     bool
	ingested     bool
}

func newMockSystem() *mockSystem {
	return &mockSystem{sessions: session.NewManager(2), answer: "the answer"}
}

func (m *mockSystem) Query(_ context.Context, query, sessionID string) (string, []search.Source, error) {
	m.gotQuery = query
	m.gotSessionID = sessionID
	return m.answer, m.sources, m.err
}

func (m *mockSystem) Analytics() (rag.Analytics, error) {
	if m.err != nil {
		return rag.Analytics{}, m.err
	}
	return rag.Analytics{TotalCourses: 2, CourseTitles: []string{"A", "B"}}, nil
}

func (m *mockSystem) AddCourseFolder(_ context.Context, _ string, clearExisting bool) (int, int, error) {
	if m.err != nil {
		return 0, 0, m.err
	}
	m.ingested = true
	m.gotClear = clearExisting
	return 3, 42, nil
}

func (m *mockSystem) Sessions() *session.Manager { return m.sessions }

func newRequest(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestHealth(t *testing.T) {
	handler := NewAppHandler(AppDeps{System: newMockSystem()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodGet, "/health", "", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestQuery(t *testing.T) {
	sys := newMockSystem()
	sys.sources = []search.Source{{Title: "Course A - Lesson 1", Link: "https://example.com/a"}}
	handler := NewAppHandler(AppDeps{System: sys})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodPost, "/api/query", `{"query":"What is RAG?","session_id":"session_7"}`, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp QueryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "the answer" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.SessionID != "session_7" {
		t.Errorf("session_id = %q", resp.SessionID)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Title != "Course A - Lesson 1" {
		t.Errorf("sources = %v", resp.Sources)
	}
	if sys.gotQuery != "What is RAG?" || sys.gotSessionID != "session_7" {
		t.Errorf("system saw query %q session %q", sys.gotQuery, sys.gotSessionID)
	}
}

func TestQuery_CreatesSession(t *testing.T) {
	sys := newMockSystem()
	handler := NewAppHandler(AppDeps{System: sys})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodPost, "/api/query", `{"query":"hello"}`, ""))

	var resp QueryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionID != "session_1" {
		t.Errorf("session_id = %q, want a freshly created session", resp.SessionID)
	}
}

func TestQuery_EmptySourcesIsArray(t *testing.T) {
	handler := NewAppHandler(AppDeps{System: newMockSystem()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodPost, "/api/query", `{"query":"hello"}`, ""))

	if !strings.Contains(rec.Body.String(), `"sources":[]`) {
		t.Errorf("body = %s, want empty sources array", rec.Body.String())
	}
}

func TestQuery_MissingQuery(t *testing.T) {
	handler := NewAppHandler(AppDeps{System: newMockSystem()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodPost, "/api/query", `{}`, ""))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestQuery_SystemError(t *testing.T) {
	sys := newMockSystem()
	sys.err = errors.New("generator down")
	handler := NewAppHandler(AppDeps{System: sys})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodPost, "/api/query", `{"query":"hello"}`, ""))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "generator down") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCourses(t *testing.T) {
	handler := NewAppHandler(AppDeps{System: newMockSystem()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodGet, "/api/courses", "", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp rag.Analytics
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalCourses != 2 || len(resp.CourseTitles) != 2 {
		t.Errorf("analytics = %+v", resp)
	}
}

func TestClearSession(t *testing.T) {
	sys := newMockSystem()
	id := sys.sessions.Create()
	sys.sessions.AddExchange(id, "question", "answer")
	handler := NewAppHandler(AppDeps{System: sys})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodPost, "/api/sessions/clear", `{"session_id":"`+id+`"}`, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if h := sys.sessions.History(id); h != "" {
		t.Errorf("history = %q, want cleared", h)
	}
}

func TestClearSession_MissingID(t *testing.T) {
	handler := NewAppHandler(AppDeps{System: newMockSystem()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodPost, "/api/sessions/clear", `{}`, ""))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIngest_NoAuthWhenTokenSet(t *testing.T) {
	handler := NewAppHandler(AppDeps{System: newMockSystem(), Token: testToken})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodPost, "/api/ingest", `{}`, ""))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIngest_WrongToken(t *testing.T) {
	handler := NewAppHandler(AppDeps{System: newMockSystem(), Token: testToken})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodPost, "/api/ingest", `{}`, "wrong"))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIngest_ValidAuth(t *testing.T) {
	sys := newMockSystem()
	handler := NewAppHandler(AppDeps{System: sys, Token: testToken, DocsDir: "./docs"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodPost, "/api/ingest", `{"clear_existing":true}`, testToken))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !sys.ingested || !sys.gotClear {
		t.Errorf("ingested = %v, clear = %v", sys.ingested, sys.gotClear)
	}

	var resp map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["courses_added"] != 3 || resp["chunks_added"] != 42 {
		t.Errorf("response = %v", resp)
	}
}

func TestIngest_NoTokenConfigured(t *testing.T) {
	sys := newMockSystem()
	handler := NewAppHandler(AppDeps{System: sys})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodPost, "/api/ingest", `{}`, ""))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want open endpoint without configured token", rec.Code)
	}
}

func TestQuality(t *testing.T) {
	health := func(context.Context) monitor.HealthReport {
		return monitor.HealthReport{Timestamp: time.Now(), OverallStatus: "HEALTHY"}
	}
	handler := NewAppHandler(AppDeps{System: newMockSystem(), Health: health})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodGet, "/health/quality", "", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "HEALTHY") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestQuality_NotRoutedWithoutMonitor(t *testing.T) {
	handler := NewAppHandler(AppDeps{System: newMockSystem()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(http.MethodGet, "/health/quality", "", ""))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}
