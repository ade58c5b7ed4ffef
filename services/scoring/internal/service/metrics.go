package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recalculation outcomes.
const (
	outcomeUpdated = "updated"
	outcomeRemoved = "removed"
	outcomeFailed  = "failed"
)

var (
	recalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_recalculations_total",
			Help: "Aggregated score recalculations by outcome",
		},
		[]string{"outcome"},
	)

	recalculationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_recalculation_duration_seconds",
			Help:    "Time to recalculate one tool's aggregated score",
			Buckets: prometheus.DefBuckets,
		},
	)

	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_recalculate_all_duration_seconds",
			Help:    "Time to recalculate every tool",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	featuredSelected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoring_featured_selected",
			Help: "Number of tools in the last persisted featured set",
		},
	)

	featuredCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_featured_cache_total",
			Help: "Featured listing cache lookups by result",
		},
		[]string{"result"},
	)
)
