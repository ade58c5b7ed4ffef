package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/toolhub/toolhub/pkg/errors"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
	"github.com/toolhub/toolhub/services/scoring/internal/event"
)

type aggregationFixture struct {
	tools   *mockToolRepository
	reviews *mockReviewRepository
	scores  *mockScoreRepository
	pub     *fakePublisher
	svc     *AggregationService
}

func newAggregationFixture(concurrency int) *aggregationFixture {
	f := &aggregationFixture{
		tools:   new(mockToolRepository),
		reviews: new(mockReviewRepository),
		scores:  new(mockScoreRepository),
		pub:     &fakePublisher{},
	}
	f.svc = NewAggregationService(f.tools, f.reviews, f.scores, newTestProducer(f.pub), newTestLogger(), concurrency)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func approved(id int64, metrics string, overall int, verified bool) domain.StructuredReview {
	return domain.StructuredReview{
		ID:            id,
		ToolID:        1,
		MetricScores:  json.RawMessage(metrics),
		OverallRating: overall,
		ReviewerType:  domain.ReviewerUser,
		IsVerified:    verified,
		Status:        domain.ReviewStatusApproved,
	}
}

// ---------------------------------------------------------------------------
// Recalculate
// ---------------------------------------------------------------------------

func TestRecalculate_Success(t *testing.T) {
	f := newAggregationFixture(1)
	ctx := context.Background()

	f.tools.On("GetByID", mock.Anything, int64(1)).Return(&domain.Tool{ID: 1}, nil)
	f.reviews.On("ListApprovedByTool", mock.Anything, int64(1)).Return([]domain.StructuredReview{
		approved(1, `{"quality":8}`, 8, true),
		approved(2, `{"quality":6}`, 6, false),
	}, nil)
	f.scores.On("Upsert", mock.Anything, mock.MatchedBy(func(s *domain.AggregatedScore) bool {
		return s.ToolID == 1 && s.TotalReviews == 2 && s.VerifiedReviews == 1 &&
			s.MetricScores["quality"].Average == 7.2 && s.LastCalculatedAt.Equal(fixedNow)
	})).Return(nil)

	result, err := f.svc.Recalculate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ToolID)
	assert.Equal(t, 2, result.ReviewsProcessed)
	require.NotNil(t, result.Score)
	assert.InDelta(t, 7.2, result.Score.OverallAverage, 1e-9)
	assert.Equal(t, []string{event.TopicScoresRecalculated}, f.pub.published())

	f.scores.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	f.tools.AssertExpectations(t)
	f.reviews.AssertExpectations(t)
	f.scores.AssertExpectations(t)
}

func TestRecalculate_NoReviewsDeletesRow(t *testing.T) {
	f := newAggregationFixture(1)

	f.tools.On("GetByID", mock.Anything, int64(3)).Return(&domain.Tool{ID: 3}, nil)
	f.reviews.On("ListApprovedByTool", mock.Anything, int64(3)).Return([]domain.StructuredReview{}, nil)
	f.scores.On("Delete", mock.Anything, int64(3)).Return(nil)

	result, err := f.svc.Recalculate(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ReviewsProcessed)
	assert.Nil(t, result.Score)

	f.scores.AssertExpectations(t)
	f.scores.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestRecalculate_InvalidToolID(t *testing.T) {
	f := newAggregationFixture(1)

	for _, id := range []int64{0, -4} {
		_, err := f.svc.Recalculate(context.Background(), id)
		require.Error(t, err)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "INVALID_TOOL_ID", appErr.Code)
	}
	f.tools.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestRecalculate_ToolNotFound(t *testing.T) {
	f := newAggregationFixture(1)

	f.tools.On("GetByID", mock.Anything, int64(99)).Return(nil, apperrors.NotFound("tool", "99"))

	_, err := f.svc.Recalculate(context.Background(), 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TOOL_NOT_FOUND", appErr.Code)
	f.reviews.AssertNotCalled(t, "ListApprovedByTool", mock.Anything, mock.Anything)
	assert.Empty(t, f.pub.published())
}

func TestRecalculate_RepositoryErrors(t *testing.T) {
	t.Run("reviews", func(t *testing.T) {
		f := newAggregationFixture(1)
		f.tools.On("GetByID", mock.Anything, int64(1)).Return(&domain.Tool{ID: 1}, nil)
		f.reviews.On("ListApprovedByTool", mock.Anything, int64(1)).Return(nil, errors.New("connection reset"))

		_, err := f.svc.Recalculate(context.Background(), 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "list reviews for tool 1")
		assert.Equal(t, 500, apperrors.HTTPStatus(err))
	})

	t.Run("upsert", func(t *testing.T) {
		f := newAggregationFixture(1)
		f.tools.On("GetByID", mock.Anything, int64(1)).Return(&domain.Tool{ID: 1}, nil)
		f.reviews.On("ListApprovedByTool", mock.Anything, int64(1)).
			Return([]domain.StructuredReview{approved(1, `{"a":5}`, 5, false)}, nil)
		f.scores.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		_, err := f.svc.Recalculate(context.Background(), 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "save aggregated score")
		assert.Empty(t, f.pub.published())
	})
}

func TestRecalculate_PublishFailureIgnored(t *testing.T) {
	f := newAggregationFixture(1)
	f.pub.err = errors.New("broker unavailable")

	f.tools.On("GetByID", mock.Anything, int64(1)).Return(&domain.Tool{ID: 1}, nil)
	f.reviews.On("ListApprovedByTool", mock.Anything, int64(1)).Return([]domain.StructuredReview{}, nil)
	f.scores.On("Delete", mock.Anything, int64(1)).Return(nil)

	_, err := f.svc.Recalculate(context.Background(), 1)
	assert.NoError(t, err)
}

func TestRecalculate_Idempotent(t *testing.T) {
	f := newAggregationFixture(1)

	var saved []*domain.AggregatedScore
	f.tools.On("GetByID", mock.Anything, int64(1)).Return(&domain.Tool{ID: 1}, nil)
	f.reviews.On("ListApprovedByTool", mock.Anything, int64(1)).Return([]domain.StructuredReview{
		approved(1, `{"a":3,"b":9}`, 4, true),
		approved(2, `{"a":7,"c":2}`, 9, false),
	}, nil)
	f.scores.On("Upsert", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = append(saved, args.Get(1).(*domain.AggregatedScore)) }).
		Return(nil)

	_, err := f.svc.Recalculate(context.Background(), 1)
	require.NoError(t, err)
	_, err = f.svc.Recalculate(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, saved, 2)
	first, err := json.Marshal(saved[0])
	require.NoError(t, err)
	second, err := json.Marshal(saved[1])
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

// ---------------------------------------------------------------------------
// RecalculateAll
// ---------------------------------------------------------------------------

func TestRecalculateAll_PartialFailure(t *testing.T) {
	f := newAggregationFixture(3)

	f.tools.On("ListIDs", mock.Anything).Return([]int64{5, 4, 3, 2, 1}, nil)
	for _, id := range []int64{1, 3, 5} {
		f.tools.On("GetByID", mock.Anything, id).Return(&domain.Tool{ID: id}, nil)
		f.reviews.On("ListApprovedByTool", mock.Anything, id).
			Return([]domain.StructuredReview{approved(id, `{"a":5}`, 5, false)}, nil)
	}
	f.tools.On("GetByID", mock.Anything, int64(4)).Return(nil, apperrors.NotFound("tool", "4"))
	f.tools.On("GetByID", mock.Anything, int64(2)).Return(&domain.Tool{ID: 2}, nil)
	f.reviews.On("ListApprovedByTool", mock.Anything, int64(2)).Return(nil, errors.New("malformed row"))
	f.scores.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.RecalculateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalTools)
	assert.Equal(t, 3, result.Successful)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, result.TotalTools, result.Successful+result.Failed)
	assert.True(t, result.HasFailures())
	require.Len(t, result.Failures, 2)
	assert.Equal(t, int64(2), result.Failures[0].ToolID)
	assert.Contains(t, result.Failures[0].Error, "malformed row")
	assert.Equal(t, int64(4), result.Failures[1].ToolID)
	f.scores.AssertNumberOfCalls(t, "Upsert", 3)
}

func TestRecalculateAll_Empty(t *testing.T) {
	f := newAggregationFixture(2)
	f.tools.On("ListIDs", mock.Anything).Return([]int64{}, nil)

	result, err := f.svc.RecalculateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &domain.BatchResult{Failures: []domain.BatchFailure{}}, result)
}

func TestRecalculateAll_ListError(t *testing.T) {
	f := newAggregationFixture(2)
	f.tools.On("ListIDs", mock.Anything).Return(nil, errors.New("db down"))

	result, err := f.svc.RecalculateAll(context.Background())
	assert.Nil(t, result)
	assert.ErrorContains(t, err, "list tools")
}

func TestRecalculateAll_BoundedConcurrency(t *testing.T) {
	const limit = 2
	f := newAggregationFixture(limit)

	ids := make([]int64, 12)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	f.tools.On("ListIDs", mock.Anything).Return(ids, nil)
	f.tools.On("GetByID", mock.Anything, mock.Anything).Return(&domain.Tool{}, nil)

	var inFlight, peak atomic.Int32
	f.reviews.On("ListApprovedByTool", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}).
		Return([]domain.StructuredReview{}, nil)
	f.scores.On("Delete", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.RecalculateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(ids), result.Successful)
	assert.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestNewAggregationService_DefaultConcurrency(t *testing.T) {
	svc := NewAggregationService(nil, nil, nil, nil, newTestLogger(), 0)
	assert.Equal(t, DefaultRecalcConcurrency, svc.concurrency)
}

// ---------------------------------------------------------------------------
// GetAggregatedScore
// ---------------------------------------------------------------------------

func TestGetAggregatedScore(t *testing.T) {
	f := newAggregationFixture(1)
	stored := &domain.AggregatedScore{ToolID: 4, TotalReviews: 3}
	f.scores.On("GetByToolID", mock.Anything, int64(4)).Return(stored, nil)
	f.scores.On("GetByToolID", mock.Anything, int64(5)).Return(nil, apperrors.NotFound("score", "5"))

	got, err := f.svc.GetAggregatedScore(context.Background(), 4)
	require.NoError(t, err)
	assert.Same(t, stored, got)

	_, err = f.svc.GetAggregatedScore(context.Background(), 5)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SCORE_NOT_FOUND", appErr.Code)

	_, err = f.svc.GetAggregatedScore(context.Background(), 0)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_TOOL_ID", appErr.Code)
}
