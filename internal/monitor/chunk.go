package monitor

import (
	"fmt"
	"math"

	"github.com/kalambet/coursechat/internal/course"
)

// ChunkReport aggregates quality statistics over a set of content chunks.
type ChunkReport struct {
	TotalChunks        int            `json:"total_chunks"`
	UniqueChunks       int            `json:"unique_chunks"`
	AvgChunkSize       float64        `json:"avg_chunk_size"`
	ChunkSizeStd       float64        `json:"chunk_size_std"`
	DuplicationRate    float64        `json:"duplication_rate"`
	LinkCompleteness   float64        `json:"link_completeness"`
	CourseDistribution map[string]int `json:"course_distribution"`
	QualityFlags       []string       `json:"quality_flags"`
	OverallScore       float64        `json:"overall_score"`
}

// AnalyzeChunks computes size, duplication and metadata statistics for a
// chunk set and flags conditions that degrade retrieval quality. Returns
// a zero report for an empty input.
func AnalyzeChunks(chunks []course.Chunk) ChunkReport {
	if len(chunks) == 0 {
		return ChunkReport{}
	}

	var total int
	unique := make(map[string]bool, len(chunks))
	withLinks := 0
	distribution := make(map[string]int)
	for _, c := range chunks {
		total += len(c.Content)
		unique[c.Content] = true
		if c.CourseLink != "" {
			withLinks++
		}
		distribution[c.CourseTitle]++
	}

	avg := float64(total) / float64(len(chunks))
	var variance float64
	for _, c := range chunks {
		d := float64(len(c.Content)) - avg
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(chunks)))

	report := ChunkReport{
		TotalChunks:        len(chunks),
		UniqueChunks:       len(unique),
		AvgChunkSize:       avg,
		ChunkSizeStd:       std,
		DuplicationRate:    1 - float64(len(unique))/float64(len(chunks)),
		LinkCompleteness:   float64(withLinks) / float64(len(chunks)),
		CourseDistribution: distribution,
	}

	if avg < 100 {
		report.QualityFlags = append(report.QualityFlags, "SMALL_CHUNKS: Average chunk size very small")
	}
	if avg > 2000 {
		report.QualityFlags = append(report.QualityFlags, "LARGE_CHUNKS: Average chunk size very large")
	}
	if std > avg*0.8 {
		report.QualityFlags = append(report.QualityFlags, "INCONSISTENT_SIZES: High variation in chunk sizes")
	}
	if report.DuplicationRate > 0.1 {
		report.QualityFlags = append(report.QualityFlags, "HIGH_DUPLICATION: Significant duplicate content detected")
	}
	if report.LinkCompleteness < 0.8 {
		report.QualityFlags = append(report.QualityFlags, "MISSING_LINKS: Many chunks missing course links")
	}

	report.OverallScore = chunkScore(avg, report.DuplicationRate, report.LinkCompleteness)
	return report
}

func chunkScore(avgSize, duplicationRate, linkCompleteness float64) float64 {
	score := 1.0
	if avgSize < 200 || avgSize > 1500 {
		score -= 0.2
	}
	score -= math.Min(duplicationRate*2, 0.4)
	score *= 0.6 + 0.4*linkCompleteness
	return math.Max(0, math.Min(1, score))
}

// String summarizes the report for log output.
func (r ChunkReport) String() string {
	return fmt.Sprintf("chunks=%d unique=%d avg_size=%.0f score=%.2f flags=%d",
		r.TotalChunks, r.UniqueChunks, r.AvgChunkSize, r.OverallScore, len(r.QualityFlags))
}
