package monitor

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kalambet/coursechat/internal/course"
)

// HealthReport is the combined quality assessment of the whole system.
type HealthReport struct {
	Timestamp       time.Time        `json:"timestamp"`
	DocumentQuality DocumentQuality  `json:"document_quality"`
	ChunkQuality    ChunkReport      `json:"chunk_quality"`
	Retrieval       RetrievalMetrics `json:"retrieval_quality"`
	Issues          []string         `json:"issues"`
	OverallStatus   string           `json:"overall_status"`
}

// DocumentQuality aggregates per-document reports.
type DocumentQuality struct {
	TotalDocuments          int              `json:"total_documents"`
	ValidDocuments          int              `json:"valid_documents"`
	ValidationRate          float64          `json:"validation_rate"`
	AvgMetadataCompleteness float64          `json:"avg_metadata_completeness"`
	Reports                 []DocumentReport `json:"reports"`
}

// HealthMonitor composes the individual monitors into one system report.
type HealthMonitor struct {
	log       *slog.Logger
	documents *DocumentMonitor
	retrieval *RetrievalMonitor
}

// NewHealthMonitor creates a HealthMonitor over the given sub-monitors.
func NewHealthMonitor(log *slog.Logger, documents *DocumentMonitor, retrieval *RetrievalMonitor) *HealthMonitor {
	return &HealthMonitor{log: log, documents: documents, retrieval: retrieval}
}

// Report assesses every .txt document under docsPath, the given chunk set,
// and the last 24 hours of retrieval, then rolls them up into an overall
// status: HEALTHY, WARNING (one failing area) or CRITICAL.
func (m *HealthMonitor) Report(docsPath string, chunks []course.Chunk) HealthReport {
	report := HealthReport{Timestamp: time.Now()}

	entries, err := os.ReadDir(docsPath)
	if err != nil {
		m.log.Error("reading docs directory", "path", docsPath, "error", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txt" {
			continue
		}
		doc := m.documents.ValidateDocument(filepath.Join(docsPath, entry.Name()))
		report.DocumentQuality.Reports = append(report.DocumentQuality.Reports, doc)
		report.DocumentQuality.TotalDocuments++
		if doc.Valid {
			report.DocumentQuality.ValidDocuments++
		}
		report.DocumentQuality.AvgMetadataCompleteness += doc.MetadataCompleteness
	}
	if n := report.DocumentQuality.TotalDocuments; n > 0 {
		report.DocumentQuality.ValidationRate = float64(report.DocumentQuality.ValidDocuments) / float64(n)
		report.DocumentQuality.AvgMetadataCompleteness /= float64(n)
	}

	report.ChunkQuality = AnalyzeChunks(chunks)
	report.Retrieval = m.retrieval.Metrics(24)

	if report.DocumentQuality.ValidationRate < 0.8 {
		report.Issues = append(report.Issues, "DOCUMENT_QUALITY")
	}
	if report.ChunkQuality.OverallScore < 0.7 {
		report.Issues = append(report.Issues, "CHUNK_QUALITY")
	}
	if report.Retrieval.TotalQueries > 0 && report.Retrieval.SuccessRate < 0.8 {
		report.Issues = append(report.Issues, "RETRIEVAL_QUALITY")
	}

	switch len(report.Issues) {
	case 0:
		report.OverallStatus = "HEALTHY"
	case 1:
		report.OverallStatus = "WARNING"
	default:
		report.OverallStatus = "CRITICAL"
	}
	return report
}
