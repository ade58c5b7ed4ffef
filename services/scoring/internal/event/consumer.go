package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/toolhub/toolhub/pkg/errors"
	pkgkafka "github.com/toolhub/toolhub/pkg/kafka"
	"github.com/toolhub/toolhub/pkg/validator"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

// TopicReviewChanged carries structured review lifecycle events from the
// review service.
var TopicReviewChanged = pkgkafka.Topic("review", "changed")

// AggregationService defines the interface required by the event consumer.
type AggregationService interface {
	Recalculate(ctx context.Context, toolID int64) (*domain.RecalculationResult, error)
}

// ReviewChangedData is the expected payload of a review.changed event.
type ReviewChangedData struct {
	ReviewID int64  `json:"review_id"`
	ToolID   int64  `json:"tool_id" validate:"gt=0"`
	Action   string `json:"action" validate:"omitempty,oneof=created updated approved rejected spam deleted"`
	Status   string `json:"status" validate:"omitempty,oneof=pending approved spam rejected"`
}

// Consumer processes incoming Kafka events for the scoring service.
type Consumer struct {
	logger  *slog.Logger
	service AggregationService
}

// NewConsumer creates a new event consumer for the scoring service.
func NewConsumer(service AggregationService, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// HandleReviewChanged recalculates the aggregated score of the reviewed
// tool. Any change can move a review in or out of the approved set, so the
// action is only logged. Events for tools that no longer exist are dropped.
func (c *Consumer) HandleReviewChanged(ctx context.Context, event *pkgkafka.Event) error {
	var data ReviewChangedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal review.changed data: %w", err)
	}
	if err := validator.Validate(data); err != nil {
		return fmt.Errorf("review.changed event %s: %w: %v", event.EventID, pkgkafka.ErrInvalidEvent, err)
	}

	c.logger.InfoContext(ctx, "processing review.changed event",
		slog.Int64("review_id", data.ReviewID),
		slog.Int64("tool_id", data.ToolID),
		slog.String("action", data.Action),
	)

	result, err := c.service.Recalculate(ctx, data.ToolID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.logger.WarnContext(ctx, "review.changed for unknown tool, skipping",
				slog.Int64("tool_id", data.ToolID),
			)
			return nil
		}
		return fmt.Errorf("recalculate tool %d: %w", data.ToolID, err)
	}

	c.logger.InfoContext(ctx, "aggregated score recalculated from event",
		slog.Int64("tool_id", data.ToolID),
		slog.Int("reviews_processed", result.ReviewsProcessed),
	)

	return nil
}
