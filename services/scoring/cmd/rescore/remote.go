package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/toolhub/toolhub/pkg/httpclient"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

// remoteRunner drives the jobs through a running scoring service's admin
// API instead of opening the database directly.
type remoteRunner struct {
	client *httpclient.Client
}

func newRemoteFactory(baseURL, token string) runnerFactory {
	return func(_ context.Context, log *slog.Logger) (jobRunner, func() error, error) {
		if token == "" {
			return nil, nil, errors.New("--token or RESCORE_ADMIN_TOKEN is required with --remote")
		}
		cfg := httpclient.DefaultConfig(baseURL)
		cfg.Token = token
		cfg.Breaker = httpclient.DefaultBreakerConfig("scoring-rescore")
		return remoteRunner{client: httpclient.New(cfg, log)}, func() error { return nil }, nil
	}
}

func (r remoteRunner) RecalculateAll(ctx context.Context) (*domain.BatchResult, error) {
	var result domain.BatchResult
	if err := r.client.Call(ctx, http.MethodPost, "/api/v1/admin/scores/recalculate-all", nil, &result); err != nil {
		return nil, err
	}
	if result.Failures == nil {
		result.Failures = []domain.BatchFailure{}
	}
	return &result, nil
}

func (r remoteRunner) RefreshFeatured(ctx context.Context, limit int) (*domain.FeaturedRefresh, error) {
	var refresh domain.FeaturedRefresh
	path := fmt.Sprintf("/api/v1/admin/featured/refresh?limit=%d", limit)
	if err := r.client.Call(ctx, http.MethodPost, path, nil, &refresh); err != nil {
		return nil, err
	}
	return &refresh, nil
}
