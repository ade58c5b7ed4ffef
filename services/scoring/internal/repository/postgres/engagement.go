package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/toolhub/toolhub/pkg/database"
	apperrors "github.com/toolhub/toolhub/pkg/errors"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

// EngagementRepository implements repository.EngagementRepository using
// PostgreSQL. Views come from tools.popularity, saves from tool_saves and the
// star rating from the simple tool_reviews table.
type EngagementRepository struct {
	pool database.DBTX
}

// NewEngagementRepository creates a new PostgreSQL-backed engagement repository.
func NewEngagementRepository(pool database.DBTX) *EngagementRepository {
	return &EngagementRepository{pool: pool}
}

// Get returns the engagement signals of one tool.
func (r *EngagementRepository) Get(ctx context.Context, toolID int64) (*domain.EngagementSignals, error) {
	query := `
		SELECT t.id, t.popularity,
		       (SELECT COUNT(*) FROM tool_saves s WHERE s.tool_id = t.id),
		       (SELECT COUNT(*) FROM tool_reviews rv WHERE rv.tool_id = t.id),
		       (SELECT COALESCE(AVG(rv.rating), 0)::float8 FROM tool_reviews rv WHERE rv.tool_id = t.id)
		FROM tools t
		WHERE t.id = $1`

	var s domain.EngagementSignals
	err := r.pool.QueryRow(ctx, query, toolID).Scan(
		&s.ToolID,
		&s.Views,
		&s.Saves,
		&s.ReviewCount,
		&s.AvgRating,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("tool", strconv.FormatInt(toolID, 10))
		}
		return nil, fmt.Errorf("get engagement signals for tool %d: %w", toolID, err)
	}
	return &s, nil
}

// ListApproved returns the signals of every approved tool in one query.
func (r *EngagementRepository) ListApproved(ctx context.Context) (signals map[int64]domain.EngagementSignals, err error) {
	query := `
		SELECT t.id, t.popularity,
		       COALESCE(sv.saves, 0),
		       COALESCE(rv.review_count, 0),
		       COALESCE(rv.avg_rating, 0)
		FROM tools t
		LEFT JOIN (
			SELECT tool_id, COUNT(*) AS saves FROM tool_saves GROUP BY tool_id
		) sv ON sv.tool_id = t.id
		LEFT JOIN (
			SELECT tool_id, COUNT(*) AS review_count, AVG(rating)::float8 AS avg_rating
			FROM tool_reviews GROUP BY tool_id
		) rv ON rv.tool_id = t.id
		WHERE t.status = 'approved'`

	ctx, end := database.TraceQuery(ctx, "ListEngagementSignals", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list engagement signals: %w", err)
	}
	defer rows.Close()

	signals = make(map[int64]domain.EngagementSignals)
	for rows.Next() {
		var s domain.EngagementSignals
		if err := rows.Scan(&s.ToolID, &s.Views, &s.Saves, &s.ReviewCount, &s.AvgRating); err != nil {
			return nil, fmt.Errorf("scan engagement signals: %w", err)
		}
		signals[s.ToolID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engagement signals: %w", err)
	}
	return signals, nil
}
