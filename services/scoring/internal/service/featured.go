package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/toolhub/toolhub/pkg/errors"
	"github.com/toolhub/toolhub/pkg/tracing"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
	"github.com/toolhub/toolhub/services/scoring/internal/event"
	"github.com/toolhub/toolhub/services/scoring/internal/repository"
	"github.com/toolhub/toolhub/services/scoring/internal/scoring"
)

// FeaturedService ranks approved tools and maintains the featured set.
type FeaturedService struct {
	tools      repository.ToolRepository
	engagement repository.EngagementRepository
	cache      repository.FeaturedCache
	producer   *event.Producer
	logger     *slog.Logger
	now        func() time.Time
}

// NewFeaturedService creates a new featured service. cache may be nil, in
// which case every listing is computed.
func NewFeaturedService(
	tools repository.ToolRepository,
	engagement repository.EngagementRepository,
	cache repository.FeaturedCache,
	producer *event.Producer,
	logger *slog.Logger,
) *FeaturedService {
	return &FeaturedService{
		tools:      tools,
		engagement: engagement,
		cache:      cache,
		producer:   producer,
		logger:     logger,
		now:        time.Now,
	}
}

// ComputeFeaturedScores scores every approved tool and returns them ranked,
// highest first with ties broken by tool id.
func (s *FeaturedService) ComputeFeaturedScores(ctx context.Context) ([]domain.FeaturedScore, error) {
	ranked, _, err := s.rank(ctx)
	return ranked, err
}

func (s *FeaturedService) rank(ctx context.Context) ([]domain.FeaturedScore, map[int64]*domain.Tool, error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "FeaturedService.rank")
	defer span.End()

	tools, err := s.tools.ListApproved(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list approved tools: %w", err)
	}
	signals, err := s.engagement.ListApproved(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list engagement signals: %w", err)
	}

	now := s.now().UTC()
	byID := make(map[int64]*domain.Tool, len(tools))
	scores := make([]domain.FeaturedScore, 0, len(tools))
	for i := range tools {
		t := &tools[i]
		byID[t.ID] = t

		sig, ok := signals[t.ID]
		if !ok {
			sig = domain.EngagementSignals{ToolID: t.ID, Views: t.Popularity}
		}
		scores = append(scores, scoring.ComputeScore(t, sig, now))
	}
	scoring.Rank(scores)

	span.SetAttributes(attribute.Int("tools.scored", len(scores)))
	return scores, byID, nil
}

// GetFeaturedScore scores a single tool with its breakdown. Tools that are
// not approved never enter the ranking, so they have no featured score.
func (s *FeaturedService) GetFeaturedScore(ctx context.Context, toolID int64) (*domain.FeaturedScore, error) {
	if toolID <= 0 {
		return nil, apperrors.InvalidInputCode("INVALID_TOOL_ID", "toolId must be a positive integer")
	}

	tool, err := s.tools.GetByID(ctx, toolID)
	if err != nil {
		return nil, fmt.Errorf("get tool %d: %w", toolID, err)
	}
	if !tool.IsApproved() {
		return nil, apperrors.NotFound("featured score", strconv.FormatInt(toolID, 10))
	}

	signals, err := s.engagement.Get(ctx, toolID)
	if err != nil {
		return nil, fmt.Errorf("get engagement signals for tool %d: %w", toolID, err)
	}

	score := scoring.ComputeScore(tool, *signals, s.now().UTC())
	return &score, nil
}

func normalizeLimit(limit int) (int, error) {
	n, ok := scoring.NormalizeLimit(limit)
	if !ok {
		return 0, apperrors.InvalidInputCode("INVALID_PARAMETER",
			fmt.Sprintf("limit must be between 1 and %d", scoring.MaxFeaturedLimit))
	}
	return n, nil
}

// ListFeatured returns the current featured selection without persisting
// it. Limits above the maximum are capped. Results are served from the
// cache when possible; cache failures only cost a recomputation.
func (s *FeaturedService) ListFeatured(ctx context.Context, limit int, debug bool) (*domain.FeaturedList, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, limit, debug)
		switch {
		case err != nil:
			featuredCacheTotal.WithLabelValues("error").Inc()
			s.logger.WarnContext(ctx, "featured cache read failed", slog.String("error", err.Error()))
		case cached != nil:
			featuredCacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			featuredCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	ranked, tools, err := s.rank(ctx)
	if err != nil {
		return nil, err
	}
	selected := scoring.SelectFeatured(ranked, limit)

	list := &domain.FeaturedList{
		Tools: make([]domain.FeaturedTool, 0, len(selected)),
		Meta: domain.FeaturedMeta{
			Total:       len(ranked),
			Returned:    len(selected),
			Limit:       limit,
			Threshold:   scoring.FeaturedThreshold,
			MinFeatured: scoring.MinFeatured,
			GeneratedAt: s.now().UTC(),
		},
	}
	for _, fs := range selected {
		t := tools[fs.ToolID]
		ft := domain.FeaturedTool{
			ID:              t.ID,
			Name:            t.Name,
			Category:        t.Category,
			IsPremium:       t.IsPremium,
			IsToolOfTheWeek: t.IsToolOfTheWeek,
			FeaturedScore:   fs.Score,
		}
		if debug {
			b := fs.Breakdown
			ft.ScoreBreakdown = &b
		}
		list.Tools = append(list.Tools, ft)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, limit, debug, list); err != nil {
			s.logger.WarnContext(ctx, "featured cache write failed", slog.String("error", err.Error()))
		}
	}

	return list, nil
}

// RefreshFeatured recomputes the featured selection and persists it as the
// exact set of featured tools.
func (s *FeaturedService) RefreshFeatured(ctx context.Context, limit int) (*domain.FeaturedRefresh, error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "FeaturedService.RefreshFeatured")
	defer span.End()

	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	ranked, _, err := s.rank(ctx)
	if err != nil {
		return nil, err
	}
	selected := scoring.SelectFeatured(ranked, limit)

	ids := make([]int64, len(selected))
	for i, fs := range selected {
		ids[i] = fs.ToolID
	}

	update, err := s.tools.SetFeaturedFlags(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("persist featured set: %w", err)
	}
	featuredSelected.Set(float64(len(ids)))

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "featured cache invalidation failed", slog.String("error", err.Error()))
		}
	}

	if err := s.producer.PublishFeaturedUpdated(ctx, ids, update, limit); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish featured.updated event",
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "featured set refreshed",
		slog.Int("selected", len(ids)),
		slog.Int64("flagged", update.Flagged),
		slog.Int64("unflagged", update.Unflagged),
		slog.Int("limit", limit),
	)

	return &domain.FeaturedRefresh{
		Limit:       limit,
		Selected:    selected,
		Update:      *update,
		RefreshedAt: s.now().UTC(),
	}, nil
}
