package scoring

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

// Featured selection policy.
const (
	FeaturedThreshold    = 50
	MinFeatured          = 20
	DefaultFeaturedLimit = 100
	MaxFeaturedLimit     = 100
	ToolOfTheWeekScore   = 1000
)

// Component caps. Quality, engagement, recency and rating sum to at most 100.
const (
	maxQuality    = 30.0
	maxViews      = 20.0
	maxSaves      = 12.0
	maxReviews    = 8.0
	maxRecency    = 15.0
	maxRating     = 15.0
	recencyWindow = 30.0 // days
	defaultMetric = 5.0
)

// QualityScore maps the six sub-metrics onto 0-30. Unrated metrics count
// as 5.
func QualityScore(q domain.Quality) float64 {
	values := q.Values()
	sum := 0.0
	for _, v := range values {
		if v == nil {
			sum += defaultMetric
			continue
		}
		sum += clamp(*v, 0, 10)
	}
	avg := sum / float64(len(values))
	return avg / 10 * maxQuality
}

// EngagementScore maps views, saves and review count onto 0-40 with
// logarithmic scaling and a cap per signal.
func EngagementScore(views, saves, reviewCount int64) float64 {
	return logScaled(views, 8, maxViews) +
		logScaled(saves, 6, maxSaves) +
		logScaled(reviewCount, 4, maxReviews)
}

func logScaled(n int64, factor, limit float64) float64 {
	if n < 0 {
		n = 0
	}
	return math.Min(math.Log10(float64(n)+1)*factor, limit)
}

// RecencyScore decays linearly from 15 to 0 over the first 30 days after
// creation. Creation dates in the future score 15.
func RecencyScore(createdAt, now time.Time) float64 {
	days := now.Sub(createdAt).Hours() / 24
	return clamp(maxRecency-(days/recencyWindow)*maxRecency, 0, maxRecency)
}

// RatingScore maps a 0-5 star average onto 0-15.
func RatingScore(avgRating float64) float64 {
	return clamp(avgRating, 0, 5) / 5 * maxRating
}

// ComputeScore returns the featured score of one tool.
func ComputeScore(tool *domain.Tool, signals domain.EngagementSignals, now time.Time) domain.FeaturedScore {
	b := domain.ScoreBreakdown{
		Quality:       QualityScore(tool.Quality),
		Engagement:    EngagementScore(signals.Views, signals.Saves, signals.ReviewCount),
		Recency:       RecencyScore(tool.CreatedAt, now),
		Premium:       tool.IsPremium,
		ToolOfTheWeek: tool.IsToolOfTheWeek,
	}
	if signals.ReviewCount > 0 {
		b.Rating = RatingScore(signals.AvgRating)
	}
	b.Base = b.Quality + b.Engagement + b.Recency + b.Rating

	total := b.Base
	if tool.IsPremium {
		total *= 2
	}
	if tool.IsToolOfTheWeek {
		total = ToolOfTheWeekScore
	}

	b.Quality = round2(b.Quality)
	b.Engagement = round2(b.Engagement)
	b.Recency = round2(b.Recency)
	b.Rating = round2(b.Rating)
	b.Base = round2(b.Base)

	return domain.FeaturedScore{
		ToolID:    tool.ID,
		Score:     int(math.Round(total)),
		Breakdown: b,
	}
}

// Rank sorts scores in place, highest first with ties broken by tool id.
func Rank(scores []domain.FeaturedScore) {
	slices.SortStableFunc(scores, func(a, b domain.FeaturedScore) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ToolID, b.ToolID)
	})
}

// SelectFeatured picks every ranked tool at or above FeaturedThreshold
// together with the top MinFeatured, then truncates to limit. ranked must
// already be sorted by Rank.
func SelectFeatured(ranked []domain.FeaturedScore, limit int) []domain.FeaturedScore {
	n := 0
	for i, s := range ranked {
		if i >= MinFeatured && s.Score < FeaturedThreshold {
			break
		}
		n = i + 1
	}
	if limit < n {
		n = limit
	}
	if n < 0 {
		n = 0
	}
	return ranked[:n]
}

// NormalizeLimit caps limit at MaxFeaturedLimit. It reports false when
// limit is below 1.
func NormalizeLimit(limit int) (int, bool) {
	if limit < 1 {
		return 0, false
	}
	return min(limit, MaxFeaturedLimit), true
}
