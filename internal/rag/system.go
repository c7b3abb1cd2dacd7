// Package rag wires the document processor, vector store, tool manager,
// generator and session manager into one query-answering system.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/kalambet/coursechat/internal/course"
	"github.com/kalambet/coursechat/internal/docproc"
	"github.com/kalambet/coursechat/internal/generate"
	"github.com/kalambet/coursechat/internal/search"
	"github.com/kalambet/coursechat/internal/session"
)

// ContentStore is the slice of the vector store the system needs.
type ContentStore interface {
	AddCourseMetadata(ctx context.Context, c course.Course) error
	AddCourseContent(ctx context.Context, chunks []course.Chunk) error
	CourseTitles() ([]string, error)
	CourseCount() (int, error)
	ClearAll() error
}

// Responder produces an answer to a user query, optionally calling tools.
type Responder interface {
	Respond(ctx context.Context, query, history string, tools generate.ToolRunner) (string, error)
}

// System is the top-level orchestrator. It owns no state of its own; all
// persistence lives in the store and the session manager.
type System struct {
	log       *slog.Logger
	processor *docproc.Processor
	store     ContentStore
	generator Responder
	sessions  *session.Manager
	tools     *search.ToolManager
}

func NewSystem(log *slog.Logger, processor *docproc.Processor, store ContentStore, generator Responder, sessions *session.Manager, tools *search.ToolManager) *System {
	return &System{
		log:       log,
		processor: processor,
		store:     store,
		generator: generator,
		sessions:  sessions,
		tools:     tools,
	}
}

// Sessions exposes the session manager for callers that create or clear
// sessions directly.
func (s *System) Sessions() *session.Manager {
	return s.sessions
}

// AddCourseDocument ingests a single document: parse, chunk, embed,
// persist. Returns the parsed course and the number of chunks stored.
func (s *System) AddCourseDocument(ctx context.Context, path string) (course.Course, int, error) {
	c, chunks, err := s.processor.ProcessFile(path)
	if err != nil {
		return course.Course{}, 0, fmt.Errorf("processing %s: %w", path, err)
	}

	if err := s.store.AddCourseMetadata(ctx, c); err != nil {
		return course.Course{}, 0, fmt.Errorf("storing metadata for %q: %w", c.Title, err)
	}
	if err := s.store.AddCourseContent(ctx, chunks); err != nil {
		return course.Course{}, 0, fmt.Errorf("storing content for %q: %w", c.Title, err)
	}

	s.log.Info("course ingested", "title", c.Title, "lessons", len(c.Lessons), "chunks", len(chunks))
	return c, len(chunks), nil
}

// AddCourseFolder ingests every recognized document in a folder, skipping
// courses whose title is already present. A failing file is logged and
// skipped rather than aborting the run. Returns the number of courses and
// chunks added.
func (s *System) AddCourseFolder(ctx context.Context, path string, clearExisting bool) (int, int, error) {
	if clearExisting {
		s.log.Info("clearing existing course data")
		if err := s.store.ClearAll(); err != nil {
			return 0, 0, fmt.Errorf("clearing store: %w", err)
		}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, 0, fmt.Errorf("reading course folder: %w", err)
	}

	titles, err := s.store.CourseTitles()
	if err != nil {
		return 0, 0, fmt.Errorf("listing existing courses: %w", err)
	}
	existing := make(map[string]bool, len(titles))
	for _, t := range titles {
		existing[t] = true
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && docproc.Recognized(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var coursesAdded, chunksAdded int
	for _, name := range names {
		filePath := filepath.Join(path, name)

		c, chunks, err := s.processor.ProcessFile(filePath)
		if err != nil {
			s.log.Warn("skipping unreadable document", "path", filePath, "error", err)
			continue
		}
		if existing[c.Title] {
			s.log.Debug("course already present", "title", c.Title)
			continue
		}

		if err := s.store.AddCourseMetadata(ctx, c); err != nil {
			s.log.Warn("skipping course, metadata store failed", "title", c.Title, "error", err)
			continue
		}
		if err := s.store.AddCourseContent(ctx, chunks); err != nil {
			s.log.Warn("course content store failed", "title", c.Title, "error", err)
			continue
		}

		existing[c.Title] = true
		coursesAdded++
		chunksAdded += len(chunks)
		s.log.Info("course ingested", "title", c.Title, "chunks", len(chunks))
	}

	return coursesAdded, chunksAdded, nil
}

// Query answers a user question. The generator may call the search tool;
// sources collected during the tool round are returned alongside the
// answer and cleared for the next query. An empty sessionID skips history.
func (s *System) Query(ctx context.Context, query, sessionID string) (string, []search.Source, error) {
	prompt := fmt.Sprintf("Answer this question about course materials: %s", query)

	var history string
	if sessionID != "" {
		history = s.sessions.History(sessionID)
	}

	answer, err := s.generator.Respond(ctx, prompt, history, s.tools)
	if err != nil {
		return "", nil, err
	}

	sources := s.tools.LastSources()
	s.tools.ResetSources()

	if sessionID != "" {
		s.sessions.AddExchange(sessionID, query, answer)
	}

	return answer, sources, nil
}

// Analytics is a summary of what the store holds.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

func (s *System) Analytics() (Analytics, error) {
	count, err := s.store.CourseCount()
	if err != nil {
		return Analytics{}, fmt.Errorf("counting courses: %w", err)
	}
	titles, err := s.store.CourseTitles()
	if err != nil {
		return Analytics{}, fmt.Errorf("listing courses: %w", err)
	}
	return Analytics{TotalCourses: count, CourseTitles: titles}, nil
}
