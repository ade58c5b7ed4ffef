package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/toolhub/toolhub/pkg/logger"
	"github.com/toolhub/toolhub/services/scoring/internal/app"
	"github.com/toolhub/toolhub/services/scoring/internal/config"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

// jobRunner is the part of the scoring services the batch jobs drive.
type jobRunner interface {
	RecalculateAll(ctx context.Context) (*domain.BatchResult, error)
	RefreshFeatured(ctx context.Context, limit int) (*domain.FeaturedRefresh, error)
}

// runnerFactory builds a jobRunner and returns a func releasing it.
type runnerFactory func(ctx context.Context, log *slog.Logger) (jobRunner, func() error, error)

type coreRunner struct {
	*app.Core
}

func (r coreRunner) RecalculateAll(ctx context.Context) (*domain.BatchResult, error) {
	return r.Aggregation.RecalculateAll(ctx)
}

func (r coreRunner) RefreshFeatured(ctx context.Context, limit int) (*domain.FeaturedRefresh, error) {
	return r.Featured.RefreshFeatured(ctx, limit)
}

func defaultRunner(ctx context.Context, log *slog.Logger) (jobRunner, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	shutdown, err := app.InitTracing(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	core, err := app.NewCore(ctx, cfg, log)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, nil, err
	}

	closeFn := func() error {
		err := core.Close()
		if serr := shutdown(context.Background()); serr != nil && err == nil {
			err = serr
		}
		return err
	}
	return coreRunner{core}, closeFn, nil
}

func newRootCommand(factory runnerFactory) *cobra.Command {
	var (
		logLevel  string
		remoteURL string
		token     string
	)

	cmd := &cobra.Command{
		Use:   "rescore",
		Short: "Run scoring batch jobs once",
		Long: `Rescore recalculates aggregated review scores and refreshes the featured
tool selection against the scoring database, then exits.

Configuration is read from the same environment variables as the scoring
service. With --remote the jobs run through a scoring service's admin API
instead, authenticated with an admin bearer token. A run where some tools
fail exits with status 1.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&remoteURL, "remote", os.Getenv("RESCORE_REMOTE_URL"), "Base URL of a scoring service to drive over HTTP")
	cmd.PersistentFlags().StringVar(&token, "token", os.Getenv("RESCORE_ADMIN_TOKEN"), "Admin bearer token for --remote")

	// withRunner builds the runner around fn and always releases it.
	withRunner := func(cmd *cobra.Command, fn func(ctx context.Context, r jobRunner, out io.Writer) error) error {
		log := logger.New("scoring-rescore", logLevel)
		ctx := cmd.Context()

		build := factory
		if remoteURL != "" {
			build = newRemoteFactory(remoteURL, token)
		}

		runner, closeFn, err := build(ctx, log)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		defer func() {
			if err := closeFn(); err != nil {
				log.Warn("shutdown error", slog.String("error", err.Error()))
			}
		}()
		return fn(ctx, runner, cmd.OutOrStdout())
	}

	cmd.AddCommand(newReviewsCommand(withRunner))
	cmd.AddCommand(newFeaturedCommand(withRunner))
	cmd.AddCommand(newAllCommand(withRunner))

	return cmd
}

type runWith func(cmd *cobra.Command, fn func(ctx context.Context, r jobRunner, out io.Writer) error) error

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
