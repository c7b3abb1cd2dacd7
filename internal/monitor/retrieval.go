package monitor

import (
	"sync"
	"time"
)

// queryEntry is one logged retrieval.
type queryEntry struct {
	at          time.Time
	resultCount int
	avgDistance float64
	elapsed     time.Duration
}

// RetrievalMetrics summarizes retrieval quality over a window.
type RetrievalMetrics struct {
	PeriodHours       int      `json:"period_hours"`
	TotalQueries      int      `json:"total_queries"`
	SuccessRate       float64  `json:"success_rate"`
	AvgResponseTime   float64  `json:"avg_response_time"`
	AvgRelevanceScore float64  `json:"avg_relevance_score"`
	QualityFlags      []string `json:"quality_flags"`
	OverallHealth     string   `json:"overall_health"`
}

// RetrievalMonitor keeps a bounded in-memory log of search outcomes.
// Safe for concurrent use.
type RetrievalMonitor struct {
	mu      sync.Mutex
	entries []queryEntry
	now     func() time.Time
}

const maxLoggedQueries = 1000

// NewRetrievalMonitor creates an empty RetrievalMonitor.
func NewRetrievalMonitor() *RetrievalMonitor {
	return &RetrievalMonitor{now: time.Now}
}

// LogQuery records one search outcome. avgDistance should be the mean of
// the result distances; pass 1 when there were no results.
func (m *RetrievalMonitor) LogQuery(resultCount int, avgDistance float64, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, queryEntry{
		at:          m.now(),
		resultCount: resultCount,
		avgDistance: avgDistance,
		elapsed:     elapsed,
	})
	if len(m.entries) > maxLoggedQueries {
		m.entries = m.entries[len(m.entries)-maxLoggedQueries:]
	}
}

// Metrics summarizes the queries of the last `hours` hours.
func (m *RetrievalMonitor) Metrics(hours int) RetrievalMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-time.Duration(hours) * time.Hour)
	var recent []queryEntry
	for _, e := range m.entries {
		if e.at.After(cutoff) {
			recent = append(recent, e)
		}
	}

	metrics := RetrievalMetrics{PeriodHours: hours, TotalQueries: len(recent), OverallHealth: "GOOD"}
	if len(recent) == 0 {
		return metrics
	}

	var successful int
	var totalElapsed time.Duration
	var distanceSum float64
	for _, e := range recent {
		totalElapsed += e.elapsed
		if e.resultCount > 0 {
			successful++
			distanceSum += e.avgDistance
		}
	}

	metrics.SuccessRate = float64(successful) / float64(len(recent))
	metrics.AvgResponseTime = totalElapsed.Seconds() / float64(len(recent))
	avgDistance := 1.0
	if successful > 0 {
		avgDistance = distanceSum / float64(successful)
	}
	metrics.AvgRelevanceScore = 1 - avgDistance

	if metrics.SuccessRate < 0.8 {
		metrics.QualityFlags = append(metrics.QualityFlags, "LOW_SUCCESS_RATE: Many queries returning no results")
	}
	if metrics.AvgResponseTime > 2.0 {
		metrics.QualityFlags = append(metrics.QualityFlags, "SLOW_RETRIEVAL: Average response time too high")
	}
	if avgDistance > 0.7 {
		metrics.QualityFlags = append(metrics.QualityFlags, "POOR_RELEVANCE: Search results not very relevant")
	}
	if len(metrics.QualityFlags) > 0 {
		metrics.OverallHealth = "NEEDS_ATTENTION"
	}
	return metrics
}
