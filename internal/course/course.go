// Package course defines the domain model shared by the ingestion
// pipeline, the vector store, and the search layer.
package course

// Lesson is a single lesson within a course. Immutable once parsed.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is one course document's metadata. Title is the natural primary
// key across the whole system: the catalog upserts by title.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Chunk is one embeddable piece of lesson text. Created during ingestion,
// persisted into the vector store, never mutated afterwards.
//
// LessonNumber is nil for text that precedes any lesson marker (or for
// documents without lesson structure). Index is unique per course and
// increments across the whole document, not per lesson.
type Chunk struct {
	Content      string
	CourseTitle  string
	CourseLink   string
	LessonNumber *int
	Index        int
}
