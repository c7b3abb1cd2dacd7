package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/kalambet/coursechat/internal/course"
	"github.com/kalambet/coursechat/internal/storage"
)

// VectorStore combines the embedder and the SQLite-backed store into the
// search surface the rest of the system uses: course-scoped semantic search
// with fuzzy course name resolution.
type VectorStore struct {
	store      *Store
	embedder   *Embedder
	maxResults int
}

// NewVectorStore creates a VectorStore. maxResults caps how many chunks a
// Search without an explicit limit returns; values < 1 fall back to 5.
func NewVectorStore(store *Store, embedder *Embedder, maxResults int) *VectorStore {
	if maxResults < 1 {
		maxResults = 5
	}
	return &VectorStore{store: store, embedder: embedder, maxResults: maxResults}
}

// SearchResults holds the parallel result slices of one content search.
// Documents[i], Metadata[i] and Distances[i] describe the same chunk.
// Distances are 1 - cosine similarity, so lower means more similar.
type SearchResults struct {
	Documents []string
	Metadata  []ChunkMeta
	Distances []float64
}

// Empty reports whether the search matched nothing.
func (r SearchResults) Empty() bool {
	return len(r.Documents) == 0
}

// AddCourseMetadata embeds the course title and upserts the catalog entry.
// Re-adding a course with the same title replaces the old entry.
func (vs *VectorStore) AddCourseMetadata(ctx context.Context, c course.Course) error {
	vec, err := vs.embedder.Embed(ctx, c.Title)
	if err != nil {
		return fmt.Errorf("embedding course title %q: %w", c.Title, err)
	}
	return vs.store.UpsertCourse(c, vec)
}

// AddCourseContent embeds chunk contents in a batch and inserts them.
// A nil or empty slice is a no-op.
func (vs *VectorStore) AddCourseContent(ctx context.Context, chunks []course.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vecs, err := vs.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	return vs.store.InsertChunks(chunks, vecs)
}

// ResolveCourseName maps a possibly partial course name to an exact catalog
// title. An exact match wins outright; otherwise the name is embedded and
// the semantically closest title is returned, whatever its distance.
// Returns storage.ErrNotFound when the catalog is empty.
func (vs *VectorStore) ResolveCourseName(ctx context.Context, name string) (string, error) {
	exact, err := vs.store.HasCourse(name)
	if err != nil {
		return "", fmt.Errorf("checking course %q: %w", name, err)
	}
	if exact {
		return name, nil
	}

	vec, err := vs.embedder.Embed(ctx, name)
	if err != nil {
		return "", fmt.Errorf("embedding course name %q: %w", name, err)
	}
	return vs.store.NearestCourseTitle(vec)
}

// Search embeds the query and returns the most similar content chunks.
// courseName, when non-empty, is resolved fuzzily against the catalog and
// scopes the search to that course. lessonNumber, when non-nil, further
// narrows to one lesson. limit overrides the configured maximum when non-nil.
//
// A course name that cannot be resolved yields an error whose text names
// the failed lookup; callers surface it to the user as-is.
func (vs *VectorStore) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit *int) (SearchResults, error) {
	var f Filter
	if courseName != "" {
		title, err := vs.ResolveCourseName(ctx, courseName)
		if errors.Is(err, storage.ErrNotFound) {
			return SearchResults{}, fmt.Errorf("No course found matching '%s'", courseName)
		}
		if err != nil {
			return SearchResults{}, err
		}
		f.CourseTitle = title
	}
	f.LessonNumber = lessonNumber

	topK := vs.maxResults
	if limit != nil && *limit > 0 {
		topK = *limit
	}

	vec, err := vs.embedder.Embed(ctx, query)
	if err != nil {
		return SearchResults{}, fmt.Errorf("embedding query: %w", err)
	}

	scored, err := vs.store.SearchContent(vec, topK, f)
	if err != nil {
		return SearchResults{}, fmt.Errorf("searching content: %w", err)
	}

	results := SearchResults{
		Documents: make([]string, len(scored)),
		Metadata:  make([]ChunkMeta, len(scored)),
		Distances: make([]float64, len(scored)),
	}
	for i, s := range scored {
		results.Documents[i] = s.Content
		results.Metadata[i] = s.Meta
		results.Distances[i] = 1 - float64(s.Score)
	}
	return results, nil
}

// CourseCount returns the number of courses in the catalog.
func (vs *VectorStore) CourseCount() (int, error) {
	return vs.store.CourseCount()
}

// CourseTitles returns all catalog titles.
func (vs *VectorStore) CourseTitles() ([]string, error) {
	return vs.store.CourseTitles()
}

// AllCourses returns the full metadata of every catalog entry.
func (vs *VectorStore) AllCourses() ([]course.Course, error) {
	return vs.store.AllCourses()
}

// CourseLink returns a course's link, or storage.ErrNotFound.
func (vs *VectorStore) CourseLink(title string) (string, error) {
	return vs.store.CourseLink(title)
}

// LessonLink returns a lesson's link, or storage.ErrNotFound.
func (vs *VectorStore) LessonLink(title string, lessonNumber int) (string, error) {
	return vs.store.LessonLink(title, lessonNumber)
}

// ChunkCount returns the number of stored content chunks.
func (vs *VectorStore) ChunkCount() (int, error) {
	return vs.store.ChunkCount()
}

func (vs *VectorStore) AllChunks() ([]course.Chunk, error) {
	return vs.store.AllChunks()
}

// ClearAll removes every catalog entry and content chunk.
func (vs *VectorStore) ClearAll() error {
	return vs.store.ClearAll()
}
