package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	apperrors "github.com/toolhub/toolhub/pkg/errors"
	"github.com/toolhub/toolhub/services/scoring/internal/scoring"
)

func newReviewsCommand(with runWith) *cobra.Command {
	return &cobra.Command{
		Use:   "reviews",
		Short: "Recalculate the aggregated score of every tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return with(cmd, runReviews)
		},
	}
}

func newFeaturedCommand(with runWith) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "featured",
		Short: "Recompute and persist the featured tool set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return with(cmd, func(ctx context.Context, r jobRunner, out io.Writer) error {
				return runFeatured(ctx, r, out, limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", scoring.DefaultFeaturedLimit, "Maximum number of featured tools (1-100)")

	return cmd
}

func newAllCommand(with runWith) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Recalculate every score, then refresh the featured set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return with(cmd, func(ctx context.Context, r jobRunner, out io.Writer) error {
				reviewsErr := runReviews(ctx, r, out)

				if reviewsErr != nil && !errors.Is(reviewsErr, apperrors.ErrPartialFailure) {
					return reviewsErr
				}
				if err := runFeatured(ctx, r, out, limit); err != nil {
					return err
				}
				return reviewsErr
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", scoring.DefaultFeaturedLimit, "Maximum number of featured tools (1-100)")

	return cmd
}

func runReviews(ctx context.Context, r jobRunner, out io.Writer) error {
	result, err := r.RecalculateAll(ctx)
	if err != nil {
		return fmt.Errorf("recalculate all: %w", err)
	}
	if err := writeJSON(out, result); err != nil {
		return err
	}
	if result.HasFailures() {
		return &PartialFailureError{Failed: result.Failed, Total: result.TotalTools}
	}
	return nil
}

func runFeatured(ctx context.Context, r jobRunner, out io.Writer, limit int) error {
	refresh, err := r.RefreshFeatured(ctx, limit)
	if err != nil {
		return fmt.Errorf("refresh featured: %w", err)
	}
	return writeJSON(out, refresh.Update)
}
