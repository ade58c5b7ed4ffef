package repository

import (
	"context"

	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

// ToolRepository defines the tool reads and the featured flag write-back.
type ToolRepository interface {
	// GetByID retrieves a tool by id regardless of status.
	GetByID(ctx context.Context, id int64) (*domain.Tool, error)

	// ListIDs returns the ids of every tool in ascending order.
	ListIDs(ctx context.Context) ([]int64, error)

	// ListApproved returns all approved tools.
	ListApproved(ctx context.Context) ([]domain.Tool, error)

	// SetFeaturedFlags makes ids the exact featured set among approved tools
	// in a single transaction.
	SetFeaturedFlags(ctx context.Context, ids []int64) (*domain.FeaturedUpdate, error)
}

// ReviewRepository defines structured review reads.
type ReviewRepository interface {
	// ListApprovedByTool returns a tool's approved reviews ordered by id.
	ListApprovedByTool(ctx context.Context, toolID int64) ([]domain.StructuredReview, error)
}

// ScoreRepository defines persistence for aggregated scores.
type ScoreRepository interface {
	// Upsert inserts or replaces the aggregated score keyed by tool id.
	Upsert(ctx context.Context, score *domain.AggregatedScore) error

	// Delete removes the aggregated score of a tool. Deleting a missing row
	// is not an error.
	Delete(ctx context.Context, toolID int64) error

	// GetByToolID retrieves the stored aggregated score of a tool.
	GetByToolID(ctx context.Context, toolID int64) (*domain.AggregatedScore, error)
}

// EngagementRepository defines reads of engagement signals.
type EngagementRepository interface {
	// Get returns the signals of one tool. Tools without activity get zeros.
	Get(ctx context.Context, toolID int64) (*domain.EngagementSignals, error)

	// ListApproved returns signals for every approved tool keyed by tool id.
	ListApproved(ctx context.Context) (map[int64]domain.EngagementSignals, error)
}

// FeaturedCache caches rendered featured listings.
type FeaturedCache interface {
	// Get returns the cached listing or nil on a miss.
	Get(ctx context.Context, limit int, debug bool) (*domain.FeaturedList, error)

	// Set stores a listing.
	Set(ctx context.Context, limit int, debug bool, list *domain.FeaturedList) error

	// Invalidate drops every cached listing.
	Invalidate(ctx context.Context) error
}
