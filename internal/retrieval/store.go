package retrieval

import (
	"container/heap"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/coursechat/internal/course"
	"github.com/kalambet/coursechat/internal/storage"
)

// Store provides raw access to the course_catalog and course_content tables,
// including brute-force cosine similarity search over embedding BLOBs.
//
// When the chunk count exceeds ~100K and query latency becomes noticeable,
// consider migrating to an ANN-capable backend. Until then a full scan over
// id + embedding keeps the storage model trivial.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing *sql.DB for vector operations.
// The catalog and content tables must already exist (created via migrations).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ChunkMeta is the metadata stored alongside each content chunk.
// LessonNumber is nil for chunks without lesson structure.
type ChunkMeta struct {
	CourseTitle  string
	CourseLink   string
	LessonNumber *int
	ChunkIndex   int
}

// ScoredChunk is a content chunk with its cosine similarity score attached.
type ScoredChunk struct {
	Content string
	Meta    ChunkMeta
	Score   float32
}

// Filter narrows a content search to one course and optionally one lesson.
// CourseTitle must be an exact catalog title (already resolved); the zero
// value matches everything.
type Filter struct {
	CourseTitle  string
	LessonNumber *int
}

func (f Filter) where() (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.CourseTitle != "" {
		conds = append(conds, "course_title = ?")
		args = append(args, f.CourseTitle)
	}
	if f.LessonNumber != nil {
		conds = append(conds, "lesson_number = ?")
		args = append(args, *f.LessonNumber)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// UpsertCourse inserts or replaces the catalog row for c, keyed by title.
// embedding is the vector for the course title text.
func (s *Store) UpsertCourse(c course.Course, embedding []float32) error {
	lessonsJSON, err := json.Marshal(c.Lessons)
	if err != nil {
		return fmt.Errorf("encoding lessons for %q: %w", c.Title, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO course_catalog (title, instructor, course_link, lesson_count, lessons_json, embedding, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			instructor   = excluded.instructor,
			course_link  = excluded.course_link,
			lesson_count = excluded.lesson_count,
			lessons_json = excluded.lessons_json,
			embedding    = excluded.embedding`,
		c.Title, c.Instructor, c.Link, len(c.Lessons), string(lessonsJSON),
		encodeFloat32s(embedding), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting course %q: %w", c.Title, err)
	}
	return nil
}

// InsertChunks adds content chunks with their embeddings in one transaction.
// chunks and embeddings must be the same length.
func (s *Store) InsertChunks(chunks []course.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d != %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	// Re-adding a course replaces its previous content instead of
	// accumulating duplicate chunks.
	seen := make(map[string]struct{}, 1)
	for _, c := range chunks {
		if _, ok := seen[c.CourseTitle]; ok {
			continue
		}
		seen[c.CourseTitle] = struct{}{}
		if _, err := tx.Exec(`DELETE FROM course_content WHERE course_title = ?`, c.CourseTitle); err != nil {
			tx.Rollback()
			return fmt.Errorf("replacing content of %q: %w", c.CourseTitle, err)
		}
	}

	stmt, err := tx.Prepare(`
		INSERT INTO course_content (id, course_title, course_link, lesson_number, chunk_index, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i, c := range chunks {
		var link interface{}
		if c.CourseLink != "" {
			link = c.CourseLink
		}
		var lesson interface{}
		if c.LessonNumber != nil {
			lesson = *c.LessonNumber
		}
		if _, err := stmt.Exec(uuid.NewString(), c.CourseTitle, link, lesson, c.Index, c.Content, encodeFloat32s(embeddings[i]), now); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting chunk %d of %q: %w", c.Index, c.CourseTitle, err)
		}
	}

	return tx.Commit()
}

// idScore holds only the ID and score during the scan phase of SearchContent.
// Full rows are fetched only for top-K winners.
type idScore struct {
	ID    string
	Score float32
}

// SearchContent performs brute-force cosine similarity search over the
// content chunks matching the filter, returning the top-K most similar
// chunks ordered by descending score.
func (s *Store) SearchContent(vector []float32, topK int, f Filter) ([]ScoredChunk, error) {
	where, args := f.where()

	// Phase 1: scan only id + embedding to find top-K candidates.
	rows, err := s.db.Query(`SELECT id, embedding FROM course_content`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := dotProduct(vector, buf, queryNorm)
		if h.Len() < topK {
			heap.Push(h, idScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full rows only for the top-K IDs.
	topIDs := make([]string, h.Len())
	scores := make(map[string]float32, h.Len())
	for i := len(topIDs) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idScore)
		topIDs[i] = item.ID
		scores[item.ID] = item.Score
	}

	queryArgs := make([]interface{}, len(topIDs))
	for i, id := range topIDs {
		queryArgs[i] = id
	}
	fullQuery := `SELECT id, course_title, course_link, lesson_number, chunk_index, content
		FROM course_content WHERE id IN (?` + strings.Repeat(",?", len(topIDs)-1) + `)`

	fullRows, err := s.db.Query(fullQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K chunks: %w", err)
	}
	defer fullRows.Close()

	var results []ScoredChunk
	for fullRows.Next() {
		var id string
		var c ScoredChunk
		var link sql.NullString
		var lesson sql.NullInt64
		if err := fullRows.Scan(&id, &c.Meta.CourseTitle, &link, &lesson, &c.Meta.ChunkIndex, &c.Content); err != nil {
			return nil, fmt.Errorf("scanning full chunk: %w", err)
		}
		if link.Valid {
			c.Meta.CourseLink = link.String
		}
		if lesson.Valid {
			n := int(lesson.Int64)
			c.Meta.LessonNumber = &n
		}
		c.Score = scores[id]
		results = append(results, c)
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating full chunks: %w", err)
	}

	// Sort results by score descending (IN query doesn't preserve order).
	sortByScore(results)

	return results, nil
}

// sortByScore sorts ScoredChunks by Score descending. Used for small slices (topK).
func sortByScore(results []ScoredChunk) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// NearestCourseTitle returns the catalog title whose embedding is most
// similar to the given vector. Returns storage.ErrNotFound when the catalog
// is empty.
func (s *Store) NearestCourseTitle(vector []float32) (string, error) {
	rows, err := s.db.Query(`SELECT title, embedding FROM course_catalog`)
	if err != nil {
		return "", fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return "", storage.ErrNotFound
	}

	var best string
	bestScore := float32(math.Inf(-1))
	var buf []float32

	for rows.Next() {
		var title string
		var blob []byte
		if err := rows.Scan(&title, &blob); err != nil {
			return "", fmt.Errorf("scanning catalog row: %w", err)
		}
		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return "", fmt.Errorf("decoding embedding for %q: %w", title, err)
		}
		if score := dotProduct(vector, buf, queryNorm); score > bestScore {
			bestScore = score
			best = title
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating catalog: %w", err)
	}

	if best == "" {
		return "", storage.ErrNotFound
	}
	return best, nil
}

// HasCourse reports whether a catalog row with exactly this title exists.
func (s *Store) HasCourse(title string) (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM course_catalog WHERE title = ?`, title).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// CourseCount returns the number of courses in the catalog.
func (s *Store) CourseCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM course_catalog`).Scan(&count)
	return count, err
}

// ChunkCount returns the number of content chunks.
func (s *Store) ChunkCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM course_content`).Scan(&count)
	return count, err
}

// CourseTitles returns all catalog titles in insertion order.
func (s *Store) CourseTitles() ([]string, error) {
	rows, err := s.db.Query(`SELECT title FROM course_catalog ORDER BY added_at ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// AllCourses returns the full metadata of every catalog entry.
func (s *Store) AllCourses() ([]course.Course, error) {
	rows, err := s.db.Query(`SELECT title, instructor, course_link, lessons_json FROM course_catalog ORDER BY added_at ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var courses []course.Course
	for rows.Next() {
		var c course.Course
		var lessonsJSON string
		if err := rows.Scan(&c.Title, &c.Instructor, &c.Link, &lessonsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(lessonsJSON), &c.Lessons); err != nil {
			return nil, fmt.Errorf("decoding lessons for %q: %w", c.Title, err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// AllChunks returns every stored content chunk without embeddings.
// Used by quality reporting, not by search.
func (s *Store) AllChunks() ([]course.Chunk, error) {
	rows, err := s.db.Query(`SELECT content, course_title, course_link, lesson_number, chunk_index FROM course_content ORDER BY course_title ASC, chunk_index ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []course.Chunk
	for rows.Next() {
		var c course.Chunk
		var link *string
		if err := rows.Scan(&c.Content, &c.CourseTitle, &link, &c.LessonNumber, &c.Index); err != nil {
			return nil, err
		}
		if link != nil {
			c.CourseLink = *link
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CourseLink returns the link of the course with exactly this title.
// Returns storage.ErrNotFound when no such course exists.
func (s *Store) CourseLink(title string) (string, error) {
	var link string
	err := s.db.QueryRow(`SELECT course_link FROM course_catalog WHERE title = ?`, title).Scan(&link)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound
	}
	return link, err
}

// LessonLink returns the link of the given lesson within a course.
// Returns storage.ErrNotFound when the course or lesson does not exist.
func (s *Store) LessonLink(title string, lessonNumber int) (string, error) {
	var lessonsJSON string
	err := s.db.QueryRow(`SELECT lessons_json FROM course_catalog WHERE title = ?`, title).Scan(&lessonsJSON)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}

	var lessons []course.Lesson
	if err := json.Unmarshal([]byte(lessonsJSON), &lessons); err != nil {
		return "", fmt.Errorf("decoding lessons for %q: %w", title, err)
	}
	for _, l := range lessons {
		if l.Number == lessonNumber {
			return l.Link, nil
		}
	}
	return "", storage.ErrNotFound
}

// ClearAll removes every catalog entry and content chunk.
func (s *Store) ClearAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning clear transaction: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM course_content`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing content: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM course_catalog`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing catalog: %w", err)
	}
	return tx.Commit()
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// dotProduct computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func dotProduct(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// idScoreHeap is a min-heap of idScore ordered by Score.
// Used during the scan phase of SearchContent to track top-K candidates by ID only.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int            { return len(h) }
func (h idScoreHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x interface{}) { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
