package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/coursechat/internal/retrieval"
)

// Searcher is the slice of the vector store the search tool needs.
type Searcher interface {
	Search(ctx context.Context, query, courseName string, lessonNumber, limit *int) (retrieval.SearchResults, error)
}

// QueryLogger receives one entry per executed search. The retrieval
// monitor satisfies it.
type QueryLogger interface {
	LogQuery(resultCount int, avgDistance float64, elapsed time.Duration)
}

// Compile-time check that CourseSearchTool implements Tool.
var _ Tool = (*CourseSearchTool)(nil)

// CourseSearchTool searches course content with optional course and lesson
// scoping. Results are formatted with a [Course - Lesson N] header per chunk
// and every distinct header becomes a source.
type CourseSearchTool struct {
	store   Searcher
	metrics QueryLogger
}

// NewCourseSearchTool creates a CourseSearchTool over the given store.
func NewCourseSearchTool(store Searcher) *CourseSearchTool {
	return &CourseSearchTool{store: store}
}

// WithMetrics makes the tool report each search to m. Nil disables
// reporting.
func (t *CourseSearchTool) WithMetrics(m QueryLogger) *CourseSearchTool {
	t.metrics = m
	return t
}

func (t *CourseSearchTool) Definition() Definition {
	return Definition{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"query": {
					Type:        "string",
					Description: "What to search for in the course content",
				},
				"course_name": {
					Type:        "string",
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": {
					Type:        "integer",
					Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			Required: []string{"query"},
		},
	}
}

// Execute runs the search. A store error is relayed verbatim as the tool
// text so the model can tell the user what went wrong.
func (t *CourseSearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, []Source) {
	query, _ := args["query"].(string)

	var courseName string
	if v, ok := args["course_name"].(string); ok {
		courseName = v
	}

	var lessonNumber *int
	if v, ok := args["lesson_number"].(float64); ok {
		n := int(v)
		lessonNumber = &n
	}

	start := time.Now()
	results, err := t.store.Search(ctx, query, courseName, lessonNumber, nil)
	if err != nil {
		return err.Error(), nil
	}
	t.observe(results, time.Since(start))

	if results.Empty() {
		var b strings.Builder
		b.WriteString("No relevant content found")
		if courseName != "" {
			fmt.Fprintf(&b, " in course '%s'", courseName)
		}
		if lessonNumber != nil {
			fmt.Fprintf(&b, " in lesson %d", *lessonNumber)
		}
		b.WriteString(".")
		return b.String(), nil
	}

	return t.format(results)
}

// observe reports one search to the metrics sink. An empty result set is
// recorded with distance 1 so the success rate reflects it.
func (t *CourseSearchTool) observe(results retrieval.SearchResults, elapsed time.Duration) {
	if t.metrics == nil {
		return
	}
	avgDistance := 1.0
	if len(results.Distances) > 0 {
		var sum float64
		for _, d := range results.Distances {
			sum += d
		}
		avgDistance = sum / float64(len(results.Distances))
	}
	t.metrics.LogQuery(len(results.Documents), avgDistance, elapsed)
}

// format renders each chunk under its [Course - Lesson N] header and
// collects one source per distinct header, first-seen order.
func (t *CourseSearchTool) format(results retrieval.SearchResults) (string, []Source) {
	var parts []string
	var sources []Source
	seen := make(map[string]bool)

	for i, doc := range results.Documents {
		meta := results.Metadata[i]

		header := meta.CourseTitle
		if header == "" {
			header = "unknown"
		}
		if meta.LessonNumber != nil {
			header = fmt.Sprintf("%s - Lesson %d", header, *meta.LessonNumber)
		}

		parts = append(parts, fmt.Sprintf("[%s]\n%s", header, doc))

		if !seen[header] {
			seen[header] = true
			sources = append(sources, Source{Title: header, Link: meta.CourseLink})
		}
	}

	return strings.Join(parts, "\n\n"), sources
}
