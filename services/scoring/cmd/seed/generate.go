package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

var categoryMetrics = map[string][]string{
	"writing":      {"accuracy", "tone_control", "speed", "value"},
	"image":        {"image_quality", "prompt_adherence", "speed", "value"},
	"coding":       {"accuracy", "language_support", "ide_integration", "value"},
	"productivity": {"ease_of_use", "integrations", "reliability", "value"},
	"audio":        {"audio_quality", "voice_range", "speed", "value"},
}

var categories = []string{"writing", "image", "coding", "productivity", "audio"}

var namePrefixes = []string{"Quill", "Pixel", "Echo", "Flux", "Nova", "Atlas", "Orbit", "Spark", "Muse", "Vector"}
var nameSuffixes = []string{"AI", "Studio", "Pilot", "Lab", "Forge", "Flow", "Mind", "Kit"}

type reviewSeed struct {
	userID       string
	metrics      map[string]int
	overall      int
	reviewerType string
	verified     bool
	status       string
	createdAt    time.Time
}

type toolSeed struct {
	id            int64
	name          string
	category      string
	status        domain.ToolStatus
	popularity    int64
	quality       [6]*float64
	premium       bool
	toolOfTheWeek bool
	createdAt     time.Time
	reviews       []reviewSeed
	stars         []int
	saves         int
}

// generate builds n tools with a per-tool "true quality" that all of its
// reviews scatter around, so aggregated scores come out distinguishable.
func generate(rng *rand.Rand, n, reviewsPerTool int, now time.Time) []toolSeed {
	tools := make([]toolSeed, n)
	for i := range tools {
		category := categories[rng.IntN(len(categories))]
		base := 3 + rng.Float64()*6

		t := toolSeed{
			name: fmt.Sprintf("%s %s %d",
				namePrefixes[rng.IntN(len(namePrefixes))],
				nameSuffixes[rng.IntN(len(nameSuffixes))],
				i+1),
			category:      category,
			status:        toolStatus(rng, i),
			popularity:    int64(rng.ExpFloat64() * 500),
			premium:       rng.IntN(5) == 0,
			toolOfTheWeek: i == 0,
			createdAt:     now.Add(-time.Duration(rng.IntN(120*24)) * time.Hour),
			saves:         rng.IntN(40),
		}
		for q := range t.quality {
			// Roughly one in four sub-metrics is left unrated.
			if rng.IntN(4) == 0 {
				continue
			}
			v := clampFloat(base+rng.NormFloat64(), 0, 10)
			t.quality[q] = &v
		}

		count := reviewsPerTool
		if count > 0 {
			count = rng.IntN(2*reviewsPerTool + 1)
		}
		for r := 0; r < count; r++ {
			t.reviews = append(t.reviews, newReview(rng, category, base, t.createdAt, r))
		}
		for s := rng.IntN(15); s > 0; s-- {
			t.stars = append(t.stars, clampInt(int(base/2+rng.NormFloat64()), 1, 5))
		}
		tools[i] = t
	}
	return tools
}

// toolStatus leaves a few tools out of the catalog so the featured ranking
// has something to skip. The tool of the week is always approved.
func toolStatus(rng *rand.Rand, i int) domain.ToolStatus {
	if i == 0 {
		return domain.ToolStatusApproved
	}
	switch rng.IntN(20) {
	case 0, 1:
		return domain.ToolStatusPending
	case 2:
		return domain.ToolStatusRejected
	default:
		return domain.ToolStatusApproved
	}
}

func newReview(rng *rand.Rand, category string, base float64, after time.Time, n int) reviewSeed {
	metrics := make(map[string]int)
	for _, key := range categoryMetrics[category] {
		metrics[key] = clampInt(int(base+rng.NormFloat64()*1.5+0.5), 1, 10)
	}

	r := reviewSeed{
		userID:       fmt.Sprintf("seed-user-%d", n+1),
		metrics:      metrics,
		overall:      clampInt(int(base+rng.NormFloat64()+0.5), 1, 10),
		reviewerType: "user",
		status:       "approved",
		createdAt:    after.Add(time.Duration(rng.IntN(24*30)) * time.Hour),
	}
	switch roll := rng.IntN(20); {
	case roll == 0:
		r.reviewerType = "editorial"
	case roll < 5:
		r.reviewerType = "verified"
		r.verified = true
	}
	switch roll := rng.IntN(10); {
	case roll == 0:
		r.status = "pending"
	case roll == 1:
		r.status = "spam"
	}
	return r
}

func reviewRows(tools []toolSeed) [][]any {
	var rows [][]any
	for _, t := range tools {
		for _, r := range t.reviews {
			metrics, _ := json.Marshal(r.metrics)
			rows = append(rows, []any{t.id, r.userID, string(metrics), r.overall, r.reviewerType, r.verified, r.status, r.createdAt, r.createdAt})
		}
	}
	return rows
}

func starRows(tools []toolSeed) [][]any {
	var rows [][]any
	for _, t := range tools {
		for i, rating := range t.stars {
			rows = append(rows, []any{t.id, fmt.Sprintf("seed-user-%d", i+1), int16(rating), t.createdAt})
		}
	}
	return rows
}

func saveRows(tools []toolSeed) [][]any {
	var rows [][]any
	for _, t := range tools {
		for i := 0; i < t.saves; i++ {
			rows = append(rows, []any{t.id, fmt.Sprintf("seed-user-%d", i+1), t.createdAt})
		}
	}
	return rows
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func clampFloat(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
