package domain

import "time"

// MetricStat summarises every valid score given for one metric.
type MetricStat struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
	StdDev  float64 `json:"stdDev"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
}

// AggregatedScore is the derived per-tool summary of approved structured
// reviews. It is recomputed from scratch on every recalculation.
type AggregatedScore struct {
	ToolID           int64                 `json:"toolId"`
	MetricScores     map[string]MetricStat `json:"metricScores"`
	OverallAverage   float64               `json:"overallAverage"`
	TotalReviews     int                   `json:"totalReviews"`
	VerifiedReviews  int                   `json:"verifiedReviews"`
	EditorialReviews int                   `json:"editorialReviews"`
	ConfidenceScore  float64               `json:"confidenceScore"`
	LastCalculatedAt time.Time             `json:"lastCalculatedAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// RecalculationResult is returned by a single-tool recalculation. Score is
// nil when the tool has no approved reviews and its row was removed.
type RecalculationResult struct {
	ToolID           int64            `json:"toolId"`
	ReviewsProcessed int              `json:"reviewsProcessed"`
	Score            *AggregatedScore `json:"aggregatedScores"`
}

// BatchFailure records one tool that could not be recalculated.
type BatchFailure struct {
	ToolID int64  `json:"toolId"`
	Error  string `json:"error"`
}

// BatchResult summarises a recalculate-all run.
// Successful + Failed always equals TotalTools.
type BatchResult struct {
	TotalTools int            `json:"totalTools"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Failures   []BatchFailure `json:"failures"`
}

// HasFailures reports a partial batch failure.
func (b *BatchResult) HasFailures() bool {
	return b.Failed > 0
}
