package docproc

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/coursechat/internal/course"
)

// Processor turns raw course documents into a Course plus its ordered,
// embeddable chunks.
type Processor struct {
	chunker Chunker
}

// NewProcessor creates a Processor with the given chunking parameters.
func NewProcessor(chunkSize, chunkOverlap int) *Processor {
	return &Processor{chunker: NewChunker(chunkSize, chunkOverlap)}
}

// Recognized reports whether path looks like a course document this
// processor can read. Folder ingestion silently skips everything else.
func Recognized(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".pdf":
		return true
	}
	return false
}

// ProcessFile reads and processes a single course document. Read errors
// propagate; structural problems in the content never fail, they degrade
// to a best-effort Course and chunk list.
func (p *Processor) ProcessFile(path string) (course.Course, []course.Chunk, error) {
	content, err := readDocument(path)
	if err != nil {
		return course.Course{}, nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	c, chunks := p.Process(content, name)
	return c, chunks, nil
}

// Process parses content into a Course and chunks every section,
// assigning document-wide chunk indexes and per-section lesson numbers.
// Empty content yields an empty Course and zero chunks.
func (p *Processor) Process(content, fallbackTitle string) (course.Course, []course.Chunk) {
	doc := parseDocument(content, fallbackTitle)

	var chunks []course.Chunk
	index := 0
	for _, section := range doc.Sections {
		for _, text := range p.chunker.Split(section.Text) {
			chunks = append(chunks, course.Chunk{
				Content:      text,
				CourseTitle:  doc.Course.Title,
				CourseLink:   doc.Course.Link,
				LessonNumber: section.LessonNumber,
				Index:        index,
			})
			index++
		}
	}
	return doc.Course, chunks
}

// readDocument loads a document as plain text. PDF files go through text
// extraction; everything else is read as UTF-8.
func readDocument(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	return string(data), nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}
