package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/toolhub/toolhub/pkg/database"
	apperrors "github.com/toolhub/toolhub/pkg/errors"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

// ScoreRepository implements repository.ScoreRepository using PostgreSQL.
type ScoreRepository struct {
	pool database.DBTX
}

// NewScoreRepository creates a new PostgreSQL-backed aggregated score repository.
func NewScoreRepository(pool database.DBTX) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// Upsert inserts the aggregated score or replaces every field of the
// existing row for the same tool.
func (r *ScoreRepository) Upsert(ctx context.Context, score *domain.AggregatedScore) (err error) {
	metrics, err := json.Marshal(score.MetricScores)
	if err != nil {
		return fmt.Errorf("marshal metric scores: %w", err)
	}

	query := `
		INSERT INTO aggregated_scores (
			tool_id, metric_scores, overall_average, total_reviews, verified_reviews,
			editorial_reviews, confidence_score, last_calculated_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tool_id) DO UPDATE SET
			metric_scores = EXCLUDED.metric_scores,
			overall_average = EXCLUDED.overall_average,
			total_reviews = EXCLUDED.total_reviews,
			verified_reviews = EXCLUDED.verified_reviews,
			editorial_reviews = EXCLUDED.editorial_reviews,
			confidence_score = EXCLUDED.confidence_score,
			last_calculated_at = EXCLUDED.last_calculated_at,
			updated_at = EXCLUDED.updated_at`

	ctx, end := database.TraceQuery(ctx, "UpsertAggregatedScore", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		score.ToolID,
		metrics,
		score.OverallAverage,
		score.TotalReviews,
		score.VerifiedReviews,
		score.EditorialReviews,
		score.ConfidenceScore,
		score.LastCalculatedAt,
		score.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert aggregated score for tool %d: %w", score.ToolID, err)
	}
	return nil
}

// Delete removes the aggregated score of a tool.
func (r *ScoreRepository) Delete(ctx context.Context, toolID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM aggregated_scores WHERE tool_id = $1`, toolID); err != nil {
		return fmt.Errorf("delete aggregated score for tool %d: %w", toolID, err)
	}
	return nil
}

// GetByToolID retrieves the aggregated score of a tool.
func (r *ScoreRepository) GetByToolID(ctx context.Context, toolID int64) (*domain.AggregatedScore, error) {
	query := `
		SELECT tool_id, metric_scores, overall_average, total_reviews, verified_reviews,
		       editorial_reviews, confidence_score, last_calculated_at, updated_at
		FROM aggregated_scores
		WHERE tool_id = $1`

	var (
		s       domain.AggregatedScore
		metrics []byte
	)
	err := r.pool.QueryRow(ctx, query, toolID).Scan(
		&s.ToolID,
		&metrics,
		&s.OverallAverage,
		&s.TotalReviews,
		&s.VerifiedReviews,
		&s.EditorialReviews,
		&s.ConfidenceScore,
		&s.LastCalculatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("score", strconv.FormatInt(toolID, 10))
		}
		return nil, fmt.Errorf("get aggregated score for tool %d: %w", toolID, err)
	}

	s.MetricScores = map[string]domain.MetricStat{}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &s.MetricScores); err != nil {
			return nil, fmt.Errorf("decode metric scores for tool %d: %w", toolID, err)
		}
	}
	return &s, nil
}
