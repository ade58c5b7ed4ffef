package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/toolhub/toolhub/pkg/errors"
	"github.com/toolhub/toolhub/pkg/tracing"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
	"github.com/toolhub/toolhub/services/scoring/internal/event"
	"github.com/toolhub/toolhub/services/scoring/internal/repository"
	"github.com/toolhub/toolhub/services/scoring/internal/scoring"
)

const tracerName = "scoring-service"

// DefaultRecalcConcurrency bounds RecalculateAll when no limit is given.
const DefaultRecalcConcurrency = 4

// AggregationService recalculates and serves aggregated review scores.
//
// Recalculation is a read-then-write with no locking: concurrent runs for
// the same tool compute the same result from the same reviews, and the last
// upsert wins.
type AggregationService struct {
	tools       repository.ToolRepository
	reviews     repository.ReviewRepository
	scores      repository.ScoreRepository
	producer    *event.Producer
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewAggregationService creates a new aggregation service. concurrency
// bounds the number of tools RecalculateAll processes at once.
func NewAggregationService(
	tools repository.ToolRepository,
	reviews repository.ReviewRepository,
	scores repository.ScoreRepository,
	producer *event.Producer,
	logger *slog.Logger,
	concurrency int,
) *AggregationService {
	if concurrency < 1 {
		concurrency = DefaultRecalcConcurrency
	}
	return &AggregationService{
		tools:       tools,
		reviews:     reviews,
		scores:      scores,
		producer:    producer,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Recalculate rebuilds the aggregated score of one tool from its approved
// reviews. A tool with no approved reviews has its row deleted and a result
// with a nil Score.
func (s *AggregationService) Recalculate(ctx context.Context, toolID int64) (result *domain.RecalculationResult, err error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "AggregationService.Recalculate")
	span.SetAttributes(attribute.Int64("tool.id", toolID))
	start := time.Now()
	defer func() {
		recalculationDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			recalculationsTotal.WithLabelValues(outcomeFailed).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if toolID <= 0 {
		return nil, apperrors.InvalidInputCode("INVALID_TOOL_ID", "toolId must be a positive integer")
	}

	if _, err := s.tools.GetByID(ctx, toolID); err != nil {
		return nil, fmt.Errorf("get tool %d: %w", toolID, err)
	}

	reviews, err := s.reviews.ListApprovedByTool(ctx, toolID)
	if err != nil {
		return nil, fmt.Errorf("list reviews for tool %d: %w", toolID, err)
	}

	result = &domain.RecalculationResult{ToolID: toolID}
	score := scoring.Aggregate(toolID, reviews, s.now().UTC())

	if score == nil {
		if err := s.scores.Delete(ctx, toolID); err != nil {
			return nil, fmt.Errorf("delete aggregated score: %w", err)
		}
		recalculationsTotal.WithLabelValues(outcomeRemoved).Inc()
	} else {
		if err := s.scores.Upsert(ctx, score); err != nil {
			return nil, fmt.Errorf("save aggregated score: %w", err)
		}
		result.ReviewsProcessed = score.TotalReviews
		result.Score = score
		recalculationsTotal.WithLabelValues(outcomeUpdated).Inc()
	}
	span.SetAttributes(attribute.Int("reviews.processed", result.ReviewsProcessed))

	if err := s.producer.PublishScoresRecalculated(ctx, result); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish scores.recalculated event",
			slog.Int64("tool_id", toolID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "aggregated score recalculated",
		slog.Int64("tool_id", toolID),
		slog.Int("reviews_processed", result.ReviewsProcessed),
		slog.Bool("removed", result.Score == nil),
	)

	return result, nil
}

// RecalculateAll recalculates every tool. Per-tool failures are recorded and
// never stop the other tools; only a failure to list the tools is returned
// as an error.
func (s *AggregationService) RecalculateAll(ctx context.Context) (*domain.BatchResult, error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "AggregationService.RecalculateAll")
	defer span.End()
	start := time.Now()

	ids, err := s.tools.ListIDs(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list tools: %w", err)
	}

	var (
		mu       sync.Mutex
		failures []domain.BatchFailure
	)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := s.Recalculate(ctx, id); err != nil {
				s.logger.WarnContext(ctx, "tool recalculation failed",
					slog.Int64("tool_id", id),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				failures = append(failures, domain.BatchFailure{ToolID: id, Error: err.Error()})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(failures, func(a, b domain.BatchFailure) int {
		return cmp.Compare(a.ToolID, b.ToolID)
	})
	if failures == nil {
		failures = []domain.BatchFailure{}
	}

	result := &domain.BatchResult{
		TotalTools: len(ids),
		Successful: len(ids) - len(failures),
		Failed:     len(failures),
		Failures:   failures,
	}
	batchDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("batch.total", result.TotalTools),
		attribute.Int("batch.failed", result.Failed),
	)

	level := slog.LevelInfo
	if result.HasFailures() {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "batch recalculation finished",
		slog.Int("total_tools", result.TotalTools),
		slog.Int("successful", result.Successful),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// GetAggregatedScore returns the stored aggregated score of a tool.
func (s *AggregationService) GetAggregatedScore(ctx context.Context, toolID int64) (*domain.AggregatedScore, error) {
	if toolID <= 0 {
		return nil, apperrors.InvalidInputCode("INVALID_TOOL_ID", "toolId must be a positive integer")
	}

	score, err := s.scores.GetByToolID(ctx, toolID)
	if err != nil {
		return nil, fmt.Errorf("get aggregated score: %w", err)
	}
	return score, nil
}
