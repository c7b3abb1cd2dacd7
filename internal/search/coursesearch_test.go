package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/coursechat/internal/retrieval"
)

// stubSearcher returns canned results and records the arguments it saw.
type stubSearcher struct {
	results retrieval.SearchResults
	err     error

	gotQuery  string
	gotCourse string
	gotLesson *int
}

func (s *stubSearcher) Search(_ context.Context, query, courseName string, lessonNumber, _ *int) (retrieval.SearchResults, error) {
	s.gotQuery = query
	s.gotCourse = courseName
	s.gotLesson = lessonNumber
	return s.results, s.err
}

func linkedResults() retrieval.SearchResults {
	one, two := 1, 2
	return retrieval.SearchResults{
		Documents: []string{
			"This is content from lesson 1 about AI fundamentals.",
			"This is content from lesson 2 about machine learning.",
			"More content from lesson 1 covering neural networks.",
		},
		Metadata: []retrieval.ChunkMeta{
			{CourseTitle: "AI Course", CourseLink: "https://example.com/ai-course", LessonNumber: &one, ChunkIndex: 0},
			{CourseTitle: "AI Course", CourseLink: "https://example.com/ai-course", LessonNumber: &two, ChunkIndex: 1},
			{CourseTitle: "AI Course", CourseLink: "https://example.com/ai-course", LessonNumber: &one, ChunkIndex: 2},
		},
		Distances: []float64{0.1, 0.2, 0.3},
	}
}

func TestDefinition(t *testing.T) {
	tool := NewCourseSearchTool(&stubSearcher{})
	def := tool.Definition()

	if def.Name != "search_course_content" {
		t.Errorf("Name = %q", def.Name)
	}
	if !strings.Contains(strings.ToLower(def.Description), "search course materials") {
		t.Errorf("Description = %q", def.Description)
	}
	if def.InputSchema.Type != "object" {
		t.Errorf("schema type = %q", def.InputSchema.Type)
	}
	for _, p := range []string{"query", "course_name", "lesson_number"} {
		if _, ok := def.InputSchema.Properties[p]; !ok {
			t.Errorf("property %q missing from schema", p)
		}
	}
	if len(def.InputSchema.Required) != 1 || def.InputSchema.Required[0] != "query" {
		t.Errorf("Required = %v, want [query]", def.InputSchema.Required)
	}
}

func TestExecute_PassesFilters(t *testing.T) {
	s := &stubSearcher{results: linkedResults()}
	tool := NewCourseSearchTool(s)

	tool.Execute(context.Background(), map[string]interface{}{
		"query":         "machine learning",
		"course_name":   "AI Course",
		"lesson_number": float64(2),
	})

	if s.gotQuery != "machine learning" {
		t.Errorf("query = %q", s.gotQuery)
	}
	if s.gotCourse != "AI Course" {
		t.Errorf("course = %q", s.gotCourse)
	}
	if s.gotLesson == nil || *s.gotLesson != 2 {
		t.Errorf("lesson = %v, want 2", s.gotLesson)
	}
}

func TestExecute_FormatsHeaders(t *testing.T) {
	tool := NewCourseSearchTool(&stubSearcher{results: linkedResults()})

	text, _ := tool.Execute(context.Background(), map[string]interface{}{"query": "AI content"})

	if !strings.Contains(text, "[AI Course - Lesson 1]") {
		t.Errorf("missing lesson 1 header in %q", text)
	}
	if !strings.Contains(text, "[AI Course - Lesson 2]") {
		t.Errorf("missing lesson 2 header in %q", text)
	}
	if !strings.Contains(text, "AI fundamentals") || !strings.Contains(text, "machine learning") {
		t.Errorf("content missing from %q", text)
	}
}

func TestExecute_DeduplicatesSources(t *testing.T) {
	tool := NewCourseSearchTool(&stubSearcher{results: linkedResults()})

	_, sources := tool.Execute(context.Background(), map[string]interface{}{"query": "AI content"})

	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2 after dedup: %v", len(sources), sources)
	}
	if sources[0].Title != "AI Course - Lesson 1" {
		t.Errorf("sources[0].Title = %q", sources[0].Title)
	}
	if sources[0].Link != "https://example.com/ai-course" {
		t.Errorf("sources[0].Link = %q", sources[0].Link)
	}
	if sources[1].Title != "AI Course - Lesson 2" {
		t.Errorf("sources[1].Title = %q", sources[1].Title)
	}
}

func TestExecute_SourceWithoutLink(t *testing.T) {
	one := 1
	tool := NewCourseSearchTool(&stubSearcher{results: retrieval.SearchResults{
		Documents: []string{"Content without links"},
		Metadata:  []retrieval.ChunkMeta{{CourseTitle: "Course Without Link", LessonNumber: &one}},
		Distances: []float64{0.1},
	}})

	_, sources := tool.Execute(context.Background(), map[string]interface{}{"query": "content"})

	if len(sources) != 1 {
		t.Fatalf("got %d sources", len(sources))
	}
	if sources[0].Title != "Course Without Link - Lesson 1" {
		t.Errorf("Title = %q", sources[0].Title)
	}
	if sources[0].Link != "" {
		t.Errorf("Link = %q, want empty", sources[0].Link)
	}
}

func TestExecute_EmptyResults(t *testing.T) {
	tool := NewCourseSearchTool(&stubSearcher{})

	text, sources := tool.Execute(context.Background(), map[string]interface{}{"query": "nonexistent"})

	if text != "No relevant content found." {
		t.Errorf("text = %q", text)
	}
	if len(sources) != 0 {
		t.Errorf("sources = %v, want none", sources)
	}
}

func TestExecute_EmptyResultsWithFilters(t *testing.T) {
	tool := NewCourseSearchTool(&stubSearcher{})

	text, _ := tool.Execute(context.Background(), map[string]interface{}{
		"query":         "content",
		"course_name":   "Specific Course",
		"lesson_number": float64(5),
	})

	want := "No relevant content found in course 'Specific Course' in lesson 5."
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestExecute_StoreErrorRelayedVerbatim(t *testing.T) {
	tool := NewCourseSearchTool(&stubSearcher{err: errors.New("Database error")})

	text, sources := tool.Execute(context.Background(), map[string]interface{}{"query": "query"})

	if text != "Database error" {
		t.Errorf("text = %q", text)
	}
	if sources != nil {
		t.Errorf("sources = %v, want nil on error", sources)
	}
}

type recordedQuery struct {
	resultCount int
	avgDistance float64
	elapsed     time.Duration
}

type stubQueryLogger struct {
	queries []recordedQuery
}

func (l *stubQueryLogger) LogQuery(resultCount int, avgDistance float64, elapsed time.Duration) {
	l.queries = append(l.queries, recordedQuery{resultCount, avgDistance, elapsed})
}

func TestExecute_ReportsMetrics(t *testing.T) {
	logger := &stubQueryLogger{}
	tool := NewCourseSearchTool(&stubSearcher{results: linkedResults()}).WithMetrics(logger)

	tool.Execute(context.Background(), map[string]interface{}{"query": "anything"})

	if len(logger.queries) != 1 {
		t.Fatalf("logged %d queries, want 1", len(logger.queries))
	}
	q := logger.queries[0]
	if q.resultCount != 3 {
		t.Errorf("resultCount = %d", q.resultCount)
	}
	// mean of 0.1, 0.2, 0.3
	if q.avgDistance < 0.199 || q.avgDistance > 0.201 {
		t.Errorf("avgDistance = %v", q.avgDistance)
	}
}

func TestExecute_ReportsEmptyResultAsMiss(t *testing.T) {
	logger := &stubQueryLogger{}
	tool := NewCourseSearchTool(&stubSearcher{}).WithMetrics(logger)

	tool.Execute(context.Background(), map[string]interface{}{"query": "anything"})

	if len(logger.queries) != 1 {
		t.Fatalf("logged %d queries, want 1", len(logger.queries))
	}
	if q := logger.queries[0]; q.resultCount != 0 || q.avgDistance != 1 {
		t.Errorf("logged %+v, want miss with distance 1", q)
	}
}

func TestExecute_StoreErrorNotReported(t *testing.T) {
	logger := &stubQueryLogger{}
	tool := NewCourseSearchTool(&stubSearcher{err: errors.New("down")}).WithMetrics(logger)

	tool.Execute(context.Background(), map[string]interface{}{"query": "anything"})

	if len(logger.queries) != 0 {
		t.Errorf("logged %d queries, want 0 on store error", len(logger.queries))
	}
}
