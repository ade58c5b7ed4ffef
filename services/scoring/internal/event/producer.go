package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	pkgkafka "github.com/toolhub/toolhub/pkg/kafka"
	"github.com/toolhub/toolhub/pkg/logger"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

// Kafka topics produced by the scoring service.
var (
	TopicScoresRecalculated = pkgkafka.Topic("scores", "recalculated")
	TopicFeaturedUpdated    = pkgkafka.Topic("featured", "updated")
)

// Aggregate types.
const (
	AggregateTypeTool     = "tool"
	AggregateTypeFeatured = "featured"
)

// SourceScoringService identifies events originating from this service.
const SourceScoringService = "scoring-service"

// ScoresRecalculatedData is the payload for a scores.recalculated event.
// Removed is set when the tool lost its last approved review.
type ScoresRecalculatedData struct {
	ToolID          int64   `json:"tool_id"`
	TotalReviews    int     `json:"total_reviews"`
	OverallAverage  float64 `json:"overall_average"`
	ConfidenceScore float64 `json:"confidence_score"`
	Removed         bool    `json:"removed"`
}

// FeaturedUpdatedData is the payload for a featured.updated event.
type FeaturedUpdatedData struct {
	ToolIDs   []int64 `json:"tool_ids"`
	Flagged   int64   `json:"flagged"`
	Unflagged int64   `json:"unflagged"`
	Limit     int     `json:"limit"`
}

// Producer publishes scoring events to Kafka.
type Producer struct {
	kafka  pkgkafka.Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the scoring service.
func NewProducer(kafka pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishScoresRecalculated publishes a scores.recalculated event.
func (p *Producer) PublishScoresRecalculated(ctx context.Context, result *domain.RecalculationResult) error {
	data := ScoresRecalculatedData{
		ToolID:       result.ToolID,
		TotalReviews: result.ReviewsProcessed,
		Removed:      result.Score == nil,
	}
	if result.Score != nil {
		data.OverallAverage = result.Score.OverallAverage
		data.ConfidenceScore = result.Score.ConfidenceScore
	}

	event, err := pkgkafka.NewEvent(TopicScoresRecalculated, strconv.FormatInt(result.ToolID, 10), AggregateTypeTool, SourceScoringService, data)
	if err != nil {
		return fmt.Errorf("create scores.recalculated event: %w", err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, TopicScoresRecalculated, event); err != nil {
		return fmt.Errorf("publish scores.recalculated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published scores.recalculated event",
		slog.Int64("tool_id", result.ToolID),
	)

	return nil
}

// PublishFeaturedUpdated publishes a featured.updated event.
func (p *Producer) PublishFeaturedUpdated(ctx context.Context, ids []int64, update *domain.FeaturedUpdate, limit int) error {
	data := FeaturedUpdatedData{
		ToolIDs:   ids,
		Flagged:   update.Flagged,
		Unflagged: update.Unflagged,
		Limit:     limit,
	}

	event, err := pkgkafka.NewEvent(TopicFeaturedUpdated, "featured", AggregateTypeFeatured, SourceScoringService, data)
	if err != nil {
		return fmt.Errorf("create featured.updated event: %w", err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, TopicFeaturedUpdated, event); err != nil {
		return fmt.Errorf("publish featured.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published featured.updated event",
		slog.Int("selected", len(ids)),
	)

	return nil
}
