package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/toolhub/toolhub/pkg/errors"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

type fakeRunner struct {
	batch      *domain.BatchResult
	batchErr   error
	refreshErr error
	limits     []int
	calls      []string
}

func (f *fakeRunner) RecalculateAll(context.Context) (*domain.BatchResult, error) {
	f.calls = append(f.calls, "reviews")
	return f.batch, f.batchErr
}

func (f *fakeRunner) RefreshFeatured(_ context.Context, limit int) (*domain.FeaturedRefresh, error) {
	f.calls = append(f.calls, "featured")
	f.limits = append(f.limits, limit)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &domain.FeaturedRefresh{Limit: limit, Update: domain.FeaturedUpdate{Selected: 20, Flagged: 2}}, nil
}

func run(t *testing.T, r *fakeRunner, args ...string) (string, bool, error) {
	t.Helper()
	closed := false
	factory := func(context.Context, *slog.Logger) (jobRunner, func() error, error) {
		return r, func() error { closed = true; return nil }, nil
	}

	cmd := newRootCommand(factory)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), closed, err
}

func TestReviews_Success(t *testing.T) {
	r := &fakeRunner{batch: &domain.BatchResult{TotalTools: 3, Successful: 3, Failures: []domain.BatchFailure{}}}

	out, closed, err := run(t, r, "reviews")
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Contains(t, out, `"totalTools": 3`)
	assert.Equal(t, []string{"reviews"}, r.calls)
}

func TestReviews_PartialFailure(t *testing.T) {
	r := &fakeRunner{batch: &domain.BatchResult{
		TotalTools: 3, Successful: 2, Failed: 1,
		Failures: []domain.BatchFailure{{ToolID: 9, Error: "tool not found"}},
	}}

	out, _, err := run(t, r, "reviews")
	var partial *PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Failed)
	assert.ErrorIs(t, err, apperrors.ErrPartialFailure)
	assert.Contains(t, out, `"toolId": 9`)
}

func TestReviews_ListFailure(t *testing.T) {
	r := &fakeRunner{batchErr: errors.New("db down")}

	_, closed, err := run(t, r, "reviews")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recalculate all")
	assert.True(t, closed)
}

func TestFeatured_Limit(t *testing.T) {
	r := &fakeRunner{}

	out, _, err := run(t, r, "featured", "--limit", "40")
	require.NoError(t, err)
	assert.Equal(t, []int{40}, r.limits)
	assert.Contains(t, out, `"flagged": 2`)

	_, _, err = run(t, r, "featured")
	require.NoError(t, err)
	assert.Equal(t, []int{40, 100}, r.limits)
}

func TestAll_RefreshesAfterPartialFailure(t *testing.T) {
	r := &fakeRunner{batch: &domain.BatchResult{TotalTools: 2, Successful: 1, Failed: 1,
		Failures: []domain.BatchFailure{{ToolID: 2, Error: "boom"}}}}

	_, _, err := run(t, r, "all")
	var partial *PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"reviews", "featured"}, r.calls)
}

func TestAll_StopsOnBatchError(t *testing.T) {
	r := &fakeRunner{batchErr: errors.New("db down")}

	_, _, err := run(t, r, "all")
	require.Error(t, err)
	assert.Equal(t, []string{"reviews"}, r.calls)
}

func TestFactoryError(t *testing.T) {
	factory := func(context.Context, *slog.Logger) (jobRunner, func() error, error) {
		return nil, nil, errors.New("JWT_SECRET is not set")
	}
	cmd := newRootCommand(factory)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"reviews"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize")
}
