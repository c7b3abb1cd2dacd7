package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/coursechat/internal/course"
	"github.com/kalambet/coursechat/internal/search"
)

// --- mocks ---

type mockSearcher struct {
	text    string
	gotArgs map[string]interface{}
}

func (m *mockSearcher) Execute(_ context.Context, args map[string]interface{}) (string, []search.Source) {
	m.gotArgs = args
	return m.text, nil
}

type mockCatalog struct {
	courses []course.Course
	err     error
}

func (m *mockCatalog) AllCourses() ([]course.Course, error) {
	return m.courses, m.err
}

// --- helpers ---

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

// --- tests ---

func TestMCPTool_Search(t *testing.T) {
	searcher := &mockSearcher{text: "[AI Course - Lesson 1]\nRelevant content."}
	handler := mcpSearch(MCPDeps{Search: searcher})

	req := makeCallToolRequest("search_course_content", map[string]interface{}{
		"query":         "neural networks",
		"course_name":   "AI Course",
		"lesson_number": float64(1),
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != searcher.text {
		t.Errorf("text = %q", got)
	}

	if searcher.gotArgs["query"] != "neural networks" {
		t.Errorf("query arg = %v", searcher.gotArgs["query"])
	}
	if searcher.gotArgs["course_name"] != "AI Course" {
		t.Errorf("course_name arg = %v", searcher.gotArgs["course_name"])
	}
	if searcher.gotArgs["lesson_number"] != float64(1) {
		t.Errorf("lesson_number arg = %v", searcher.gotArgs["lesson_number"])
	}
}

func TestMCPTool_SearchQueryOnly(t *testing.T) {
	searcher := &mockSearcher{text: "results"}
	handler := mcpSearch(MCPDeps{Search: searcher})

	req := makeCallToolRequest("search_course_content", map[string]interface{}{
		"query": "anything",
	})

	if _, err := handler(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := searcher.gotArgs["course_name"]; ok {
		t.Error("course_name should be absent when not provided")
	}
	if _, ok := searcher.gotArgs["lesson_number"]; ok {
		t.Error("lesson_number should be absent when not provided")
	}
}

func TestMCPTool_SearchMissingQuery(t *testing.T) {
	handler := mcpSearch(MCPDeps{Search: &mockSearcher{}})

	result, err := handler(context.Background(), makeCallToolRequest("search_course_content", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("want tool error for missing query")
	}
}

func TestMCPResource_Catalog(t *testing.T) {
	catalog := &mockCatalog{courses: []course.Course{
		{Title: "AI Course", Link: "https://example.com/ai", Lessons: []course.Lesson{{Number: 0, Title: "Intro"}}},
	}}
	handler := mcpResourceCatalog(MCPDeps{Catalog: catalog})

	contents, err := handler(context.Background(), makeReadResourceRequest("courses://catalog"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d entries", len(contents))
	}

	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var decoded []course.Course
	if err := json.Unmarshal([]byte(text.Text), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || decoded[0].Title != "AI Course" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestMCPResource_CatalogEmpty(t *testing.T) {
	handler := mcpResourceCatalog(MCPDeps{Catalog: &mockCatalog{}})

	contents, err := handler(context.Background(), makeReadResourceRequest("courses://catalog"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents)
	if text.Text != "[]" {
		t.Errorf("text = %q, want empty array", text.Text)
	}
}

func TestMCPResource_CatalogError(t *testing.T) {
	handler := mcpResourceCatalog(MCPDeps{Catalog: &mockCatalog{err: errors.New("db closed")}})

	if _, err := handler(context.Background(), makeReadResourceRequest("courses://catalog")); err == nil {
		t.Fatal("want error")
	}
}

func TestNewMCPServer(t *testing.T) {
	s := NewMCPServer(MCPDeps{Search: &mockSearcher{}, Catalog: &mockCatalog{}, Version: "1.0.0"})
	if s == nil {
		t.Fatal("nil server")
	}
}
