// Command rescore runs the scoring batch jobs once and exits. It is meant
// for cron: recalculate every aggregated score, then refresh the featured
// set.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	apperrors "github.com/toolhub/toolhub/pkg/errors"
)

// Exit codes for different failure modes
const (
	ExitSuccess        = 0
	ExitPartialFailure = 1 // the batch ran but some tools failed
	ExitError          = 2 // configuration or runtime error
)

// PartialFailureError reports a batch that completed with per-tool failures.
type PartialFailureError struct {
	Failed int
	Total  int
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d of %d tools failed to recalculate", e.Failed, e.Total)
}

func (e *PartialFailureError) Unwrap() error {
	return apperrors.ErrPartialFailure
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand(defaultRunner).ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)

		if errors.Is(err, apperrors.ErrPartialFailure) {
			os.Exit(ExitPartialFailure)
		}
		os.Exit(ExitError)
	}
}
