// Package scoring holds the pure review aggregation and featured ranking
// math. Nothing here touches storage.
package scoring

import (
	"bytes"
	"encoding/json"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

// Valid range for metric scores and overall ratings.
const (
	MinScore = 1
	MaxScore = 10
)

// Review weights.
const (
	WeightEditorial = 2.0
	WeightVerified  = 1.5
	WeightDefault   = 1.0
)

// fullConfidenceReviews is the review count at which volume alone yields
// a confidence of 100.
const fullConfidenceReviews = 10

// ReviewWeight returns the trust weight of a review. Editorial reviewers
// outrank verified ones; the weights do not stack.
func ReviewWeight(r *domain.StructuredReview) float64 {
	switch {
	case r.ReviewerType.IsEditorial():
		return WeightEditorial
	case r.IsVerified:
		return WeightVerified
	default:
		return WeightDefault
	}
}

// DecodeMetricScores extracts valid metric scores from stored JSON. A value
// that is a JSON string holding the object is unwrapped once. Each key is
// parsed on its own: keys whose value is not an integer in
// [MinScore, MaxScore] are dropped without affecting their siblings, and
// input that is not an object at all yields an empty map.
func DecodeMetricScores(raw []byte) map[string]int {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return map[string]int{}
		}
		raw = []byte(inner)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return map[string]int{}
	}

	out := make(map[string]int, len(obj))
	for key, val := range obj {
		if score, ok := toScore(val); ok {
			out[key] = score
		}
	}
	return out
}

// toScore parses one raw metric value: a JSON number or a string holding one.
func toScore(raw json.RawMessage) (int, bool) {
	text := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(text)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return validScore(f)
}

func validScore(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < MinScore || f > MaxScore {
		return 0, false
	}
	return int(f), true
}

type metricAccumulator struct {
	weightedSum float64
	weightSum   float64
	raw         []float64
}

func (a *metricAccumulator) add(score int, weight float64) {
	a.weightedSum += float64(score) * weight
	a.weightSum += weight
	a.raw = append(a.raw, float64(score))
}

func (a *metricAccumulator) stat() (domain.MetricStat, float64) {
	mean := 0.0
	lo, hi := a.raw[0], a.raw[0]
	for _, x := range a.raw {
		mean += x
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	mean /= float64(len(a.raw))

	variance := 0.0
	for _, x := range a.raw {
		variance += (x - mean) * (x - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(a.raw)))

	return domain.MetricStat{
		Average: round2(a.weightedSum / a.weightSum),
		Count:   len(a.raw),
		StdDev:  round2(stdDev),
		Min:     int(lo),
		Max:     int(hi),
	}, stdDev
}

// Aggregate computes the aggregated score of a tool from its reviews. Only
// approved reviews count. It returns nil when none remain, in which case
// the stored row is expected to be deleted.
func Aggregate(toolID int64, reviews []domain.StructuredReview, now time.Time) *domain.AggregatedScore {
	score := &domain.AggregatedScore{
		ToolID:           toolID,
		MetricScores:     map[string]domain.MetricStat{},
		LastCalculatedAt: now,
		UpdatedAt:        now,
	}

	metrics := make(map[string]*metricAccumulator)
	var overallSum, overallWeight float64

	for i := range reviews {
		r := &reviews[i]
		if r.Status != domain.ReviewStatusApproved {
			continue
		}

		w := ReviewWeight(r)
		score.TotalReviews++
		if r.IsVerified {
			score.VerifiedReviews++
		}
		if r.ReviewerType.IsEditorial() {
			score.EditorialReviews++
		}

		for key, s := range DecodeMetricScores(r.MetricScores) {
			acc, ok := metrics[key]
			if !ok {
				acc = &metricAccumulator{}
				metrics[key] = acc
			}
			acc.add(s, w)
		}

		if _, ok := validScore(float64(r.OverallRating)); ok {
			overallSum += float64(r.OverallRating) * w
			overallWeight += w
		}
	}

	if score.TotalReviews == 0 {
		return nil
	}

	// Sorted so the float sum below is reproducible across runs.
	var stdDevSum float64
	for _, key := range slices.Sorted(maps.Keys(metrics)) {
		stat, stdDev := metrics[key].stat()
		score.MetricScores[key] = stat
		stdDevSum += stdDev
	}

	avgStdDev := 0.0
	if len(metrics) > 0 {
		avgStdDev = stdDevSum / float64(len(metrics))
	}

	if overallWeight > 0 {
		score.OverallAverage = round2(overallSum / overallWeight)
	}
	score.ConfidenceScore = Confidence(score.TotalReviews, avgStdDev)

	return score
}

// Confidence grows with review volume and falls with disagreement between
// reviewers. The result is clamped to [0,100].
func Confidence(totalReviews int, avgStdDev float64) float64 {
	c := float64(totalReviews)/fullConfidenceReviews*100 - avgStdDev*10
	return round2(clamp(c, 0, 100))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
