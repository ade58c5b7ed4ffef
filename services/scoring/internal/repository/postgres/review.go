package postgres

import (
	"context"
	"fmt"

	"github.com/toolhub/toolhub/pkg/database"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed structured review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// ListApprovedByTool returns the approved structured reviews of a tool
// ordered by id. metric_scores is returned verbatim.
func (r *ReviewRepository) ListApprovedByTool(ctx context.Context, toolID int64) (reviews []domain.StructuredReview, err error) {
	query := `
		SELECT id, tool_id, user_id, metric_scores, overall_rating,
		       reviewer_type, is_verified, status, created_at, updated_at
		FROM structured_reviews
		WHERE tool_id = $1 AND status = 'approved'
		ORDER BY id`

	ctx, end := database.TraceQuery(ctx, "ListApprovedReviews", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, toolID)
	if err != nil {
		return nil, fmt.Errorf("list approved reviews for tool %d: %w", toolID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rv      domain.StructuredReview
			metrics []byte
		)
		if err := rows.Scan(
			&rv.ID,
			&rv.ToolID,
			&rv.UserID,
			&metrics,
			&rv.OverallRating,
			&rv.ReviewerType,
			&rv.IsVerified,
			&rv.Status,
			&rv.CreatedAt,
			&rv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan structured review: %w", err)
		}
		rv.MetricScores = metrics
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate structured reviews: %w", err)
	}
	return reviews, nil
}
