package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	pkgkafka "github.com/toolhub/toolhub/pkg/kafka"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
	"github.com/toolhub/toolhub/services/scoring/internal/event"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// --- Mock ToolRepository ---

type mockToolRepository struct {
	mock.Mock
}

func (m *mockToolRepository) GetByID(ctx context.Context, id int64) (*domain.Tool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tool), args.Error(1)
}

func (m *mockToolRepository) ListIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockToolRepository) ListApproved(ctx context.Context) ([]domain.Tool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Tool), args.Error(1)
}

func (m *mockToolRepository) SetFeaturedFlags(ctx context.Context, ids []int64) (*domain.FeaturedUpdate, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeaturedUpdate), args.Error(1)
}

// --- Mock ReviewRepository ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) ListApprovedByTool(ctx context.Context, toolID int64) ([]domain.StructuredReview, error) {
	args := m.Called(ctx, toolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StructuredReview), args.Error(1)
}

// --- Mock ScoreRepository ---

type mockScoreRepository struct {
	mock.Mock
}

func (m *mockScoreRepository) Upsert(ctx context.Context, score *domain.AggregatedScore) error {
	args := m.Called(ctx, score)
	return args.Error(0)
}

func (m *mockScoreRepository) Delete(ctx context.Context, toolID int64) error {
	args := m.Called(ctx, toolID)
	return args.Error(0)
}

func (m *mockScoreRepository) GetByToolID(ctx context.Context, toolID int64) (*domain.AggregatedScore, error) {
	args := m.Called(ctx, toolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AggregatedScore), args.Error(1)
}

// --- Mock EngagementRepository ---

type mockEngagementRepository struct {
	mock.Mock
}

func (m *mockEngagementRepository) Get(ctx context.Context, toolID int64) (*domain.EngagementSignals, error) {
	args := m.Called(ctx, toolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EngagementSignals), args.Error(1)
}

func (m *mockEngagementRepository) ListApproved(ctx context.Context) (map[int64]domain.EngagementSignals, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]domain.EngagementSignals), args.Error(1)
}

// --- Mock FeaturedCache ---

type mockFeaturedCache struct {
	mock.Mock
}

func (m *mockFeaturedCache) Get(ctx context.Context, limit int, debug bool) (*domain.FeaturedList, error) {
	args := m.Called(ctx, limit, debug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeaturedList), args.Error(1)
}

func (m *mockFeaturedCache) Set(ctx context.Context, limit int, debug bool, list *domain.FeaturedList) error {
	args := m.Called(ctx, limit, debug, list)
	return args.Error(0)
}

func (m *mockFeaturedCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- Fake publisher ---

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	return nil
}

func (f *fakePublisher) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProducer(pub *fakePublisher) *event.Producer {
	return event.NewProducer(pub, newTestLogger())
}
