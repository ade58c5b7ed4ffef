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

const toolColumns = `id, name, category, status, popularity,
	content_quality, speed_efficiency, creative_features,
	integration_options, learning_curve, value_for_money,
	is_premium, is_tool_of_the_week, is_featured, created_at`

// ToolRepository implements repository.ToolRepository using PostgreSQL.
type ToolRepository struct {
	pool database.DBTX
}

// NewToolRepository creates a new PostgreSQL-backed tool repository.
func NewToolRepository(pool database.DBTX) *ToolRepository {
	return &ToolRepository{pool: pool}
}

func scanTool(row pgx.Row) (*domain.Tool, error) {
	var t domain.Tool
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Category,
		&t.Status,
		&t.Popularity,
		&t.Quality.ContentQuality,
		&t.Quality.SpeedEfficiency,
		&t.Quality.CreativeFeatures,
		&t.Quality.IntegrationOptions,
		&t.Quality.LearningCurve,
		&t.Quality.ValueForMoney,
		&t.IsPremium,
		&t.IsToolOfTheWeek,
		&t.IsFeatured,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByID retrieves a tool by id.
func (r *ToolRepository) GetByID(ctx context.Context, id int64) (*domain.Tool, error) {
	query := `SELECT ` + toolColumns + ` FROM tools WHERE id = $1`

	t, err := scanTool(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("tool", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get tool by id: %w", err)
	}
	return t, nil
}

// ListIDs returns every tool id in ascending order.
func (r *ToolRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM tools ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tool ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tool id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tool ids: %w", err)
	}
	return ids, nil
}

// ListApproved returns all approved tools ordered by id.
func (r *ToolRepository) ListApproved(ctx context.Context) (tools []domain.Tool, err error) {
	query := `SELECT ` + toolColumns + ` FROM tools WHERE status = 'approved' ORDER BY id`

	ctx, end := database.TraceQuery(ctx, "ListApprovedTools", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list approved tools: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tool: %w", err)
		}
		tools = append(tools, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approved tools: %w", err)
	}
	return tools, nil
}

// SetFeaturedFlags unflags approved tools outside ids and flags the approved
// tools in ids. Both updates run in one transaction so readers never see an
// empty featured set, and rows already in the right state are not touched.
func (r *ToolRepository) SetFeaturedFlags(ctx context.Context, ids []int64) (update *domain.FeaturedUpdate, err error) {
	if ids == nil {
		ids = []int64{}
	}

	const unflag = `
		UPDATE tools SET is_featured = FALSE
		WHERE status = 'approved' AND is_featured AND NOT (id = ANY($1::bigint[]))`
	const flag = `
		UPDATE tools SET is_featured = TRUE
		WHERE status = 'approved' AND NOT is_featured AND id = ANY($1::bigint[])`

	ctx, end := database.TraceQuery(ctx, "SetFeaturedFlags", unflag+";"+flag)
	defer func() { end(err) }()

	update = &domain.FeaturedUpdate{Selected: len(ids)}
	err = database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, unflag, ids)
		if err != nil {
			return fmt.Errorf("unflag featured tools: %w", err)
		}
		update.Unflagged = tag.RowsAffected()

		tag, err = tx.Exec(ctx, flag, ids)
		if err != nil {
			return fmt.Errorf("flag featured tools: %w", err)
		}
		update.Flagged = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set featured flags: %w", err)
	}
	return update, nil
}
