package docproc

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kalambet/coursechat/internal/course"
)

// headerWindow is how many leading lines are scanned for course metadata.
const headerWindow = 10

// Section is one chunkable stretch of document text. LessonNumber is nil
// for content that precedes any lesson marker.
type Section struct {
	LessonNumber *int
	Text         string
}

// document is the parse result before chunking.
type document struct {
	Course   course.Course
	Sections []Section
}

var (
	lessonRe     = regexp.MustCompile(`(?i)^lesson\s+(\d+):\s*(.*)$`)
	lessonLinkRe = regexp.MustCompile(`(?i)^lesson\s+link:\s*(.*)$`)
)

// parseDocument extracts course metadata and lesson sections from raw
// course text. Malformed input never fails: missing headers leave the
// corresponding fields empty and the title falls back to the first
// non-empty line, then to fallbackTitle (normally the file name stem).
func parseDocument(content, fallbackTitle string) document {
	lines := strings.Split(content, "\n")

	var doc document
	headerEnd := 0
	window := len(lines)
	if window > headerWindow {
		window = headerWindow
	}
	for i := 0; i < window; i++ {
		key, value, ok := splitHeader(lines[i])
		if !ok {
			continue
		}
		switch key {
		case "course title":
			doc.Course.Title = value
		case "course link":
			doc.Course.Link = value
		case "course instructor":
			doc.Course.Instructor = value
		default:
			continue
		}
		if i+1 > headerEnd {
			headerEnd = i + 1
		}
	}

	if doc.Course.Title == "" {
		doc.Course.Title = firstNonEmptyLine(lines)
	}
	if doc.Course.Title == "" {
		doc.Course.Title = fallbackTitle
	}

	var (
		sections   []Section
		buf        []string
		bufLesson  *int
		flushEmpty = func() {
			text := strings.TrimSpace(strings.Join(buf, "\n"))
			if text != "" {
				sections = append(sections, Section{LessonNumber: bufLesson, Text: text})
			}
			buf = nil
		}
	)

	for i := headerEnd; i < len(lines); i++ {
		line := lines[i]
		if m := lessonRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flushEmpty()
			n, _ := strconv.Atoi(m[1])
			lesson := course.Lesson{Number: n, Title: strings.TrimSpace(m[2])}
			if i+1 < len(lines) {
				if lm := lessonLinkRe.FindStringSubmatch(strings.TrimSpace(lines[i+1])); lm != nil {
					lesson.Link = strings.TrimSpace(lm[1])
					i++
				}
			}
			doc.Course.Lessons = append(doc.Course.Lessons, lesson)
			num := n
			bufLesson = &num
			continue
		}
		buf = append(buf, line)
	}
	flushEmpty()

	doc.Sections = sections
	return doc
}

// splitHeader matches "Key: value" metadata lines case-insensitively,
// returning the lower-cased key and the trimmed value.
func splitHeader(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(line[:idx]))
	switch key {
	case "course title", "course link", "course instructor":
		return key, strings.TrimSpace(line[idx+1:]), true
	}
	return "", "", false
}

func firstNonEmptyLine(lines []string) string {
	for _, l := range lines {
		if s := strings.TrimSpace(l); s != "" {
			return s
		}
	}
	return ""
}
