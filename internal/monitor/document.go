// Package monitor implements document, chunk and retrieval quality
// monitoring. Monitors are plain constructed values; callers own their
// lifecycle and wiring.
package monitor

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// DocumentReport is the quality assessment of one course document.
type DocumentReport struct {
	Path                 string   `json:"file_path"`
	Valid                bool     `json:"is_valid"`
	Errors               []string `json:"errors"`
	Warnings             []string `json:"warnings"`
	MetadataCompleteness float64  `json:"metadata_completeness"`
	ContentQualityScore  float64  `json:"content_quality_score"`
}

// DocumentMonitor validates that course documents follow the expected
// format before they poison the ingestion pipeline. Link accessibility
// checks are cached for linkCacheTTL.
type DocumentMonitor struct {
	log        *slog.Logger
	httpClient *http.Client

	mu        sync.Mutex
	linkCache map[string]linkCheck
}

type linkCheck struct {
	accessible bool
	checkedAt  time.Time
}

const linkCacheTTL = 24 * time.Hour

// NewDocumentMonitor creates a DocumentMonitor. httpClient may be nil, in
// which case a 10 second timeout client is used.
func NewDocumentMonitor(log *slog.Logger, httpClient *http.Client) *DocumentMonitor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &DocumentMonitor{
		log:        log,
		httpClient: httpClient,
		linkCache:  make(map[string]linkCheck),
	}
}

var lessonHeaderRe = regexp.MustCompile(`^Lesson (\d+):`)

// ValidateDocument checks one document's structure: required headers in
// the first 10 lines, lesson markers, numbering gaps, and rough content
// quality. A document is valid when it has no errors and at least 80% of
// the required headers.
func (m *DocumentMonitor) ValidateDocument(path string) DocumentReport {
	content, err := os.ReadFile(path)
	if err != nil {
		return DocumentReport{
			Path:   path,
			Errors: []string{fmt.Sprintf("Cannot read file: %v", err)},
		}
	}

	report := DocumentReport{Path: path}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")

	required := []string{"Course Title:", "Course Link:", "Course Instructor:"}
	found := 0
	head := lines
	if len(head) > 10 {
		head = head[:10]
	}
	for _, header := range required {
		ok := false
		for _, line := range head {
			if strings.HasPrefix(line, header) {
				ok = true
				break
			}
		}
		if ok {
			found++
		} else {
			report.Errors = append(report.Errors, "Missing required header: "+header)
		}
	}
	report.MetadataCompleteness = float64(found) / float64(len(required))

	var lessonNumbers []int
	for _, line := range lines {
		if sub := lessonHeaderRe.FindStringSubmatch(line); sub != nil {
			var n int
			fmt.Sscanf(sub[1], "%d", &n)
			lessonNumbers = append(lessonNumbers, n)
		}
	}
	if len(lessonNumbers) == 0 {
		report.Errors = append(report.Errors, "No lessons found (expected 'Lesson N:' format)")
	} else if hasGaps(lessonNumbers) {
		report.Warnings = append(report.Warnings, fmt.Sprintf("Non-sequential lesson numbers: %v", lessonNumbers))
	}

	report.ContentQualityScore = contentQuality(string(content))

	if link := extractCourseLink(lines); link != "" && !m.linkAccessible(link) {
		report.Warnings = append(report.Warnings, "Course link may be inaccessible: "+link)
	}

	report.Valid = len(report.Errors) == 0 && report.MetadataCompleteness >= 0.8
	return report
}

func hasGaps(numbers []int) bool {
	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1]+1 {
			return true
		}
	}
	return false
}

// contentQuality scores content in [0,1] with simple heuristics: length,
// word diversity, and average sentence length.
func contentQuality(content string) float64 {
	score := 1.0

	if len(content) < 500 {
		score -= 0.3
	}

	words := strings.Fields(strings.ToLower(content))
	if len(words) > 0 {
		unique := make(map[string]bool, len(words))
		for _, w := range words {
			unique[w] = true
		}
		if float64(len(unique))/float64(len(words)) < 0.3 {
			score -= 0.2
		}
	}

	sentences := strings.Split(content, ".")
	if len(sentences) > 0 {
		var total int
		for _, s := range sentences {
			total += len(strings.Fields(s))
		}
		avg := float64(total) / float64(len(sentences))
		if avg < 3 || avg > 50 {
			score -= 0.2
		}
	}

	if score < 0 {
		return 0
	}
	return score
}

func extractCourseLink(lines []string) string {
	for _, line := range lines {
		if strings.HasPrefix(line, "Course Link:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
		}
	}
	return ""
}

// linkAccessible reports whether a HEAD request to url succeeds, caching
// the answer for linkCacheTTL.
func (m *DocumentMonitor) linkAccessible(url string) bool {
	now := time.Now()

	m.mu.Lock()
	if cached, ok := m.linkCache[url]; ok && now.Sub(cached.checkedAt) < linkCacheTTL {
		m.mu.Unlock()
		return cached.accessible
	}
	m.mu.Unlock()

	accessible := false
	resp, err := m.httpClient.Head(url)
	if err == nil {
		accessible = resp.StatusCode < 400
		resp.Body.Close()
	} else if m.log != nil {
		m.log.Debug("link check failed", "url", url, "error", err)
	}

	m.mu.Lock()
	m.linkCache[url] = linkCheck{accessible: accessible, checkedAt: now}
	m.mu.Unlock()

	return accessible
}
