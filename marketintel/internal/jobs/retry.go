// CLAUDE:SUMMARY Job execution wrapper: runs a unit up to maxAttempts times with exponential backoff, retrying only retryable failures.
// Package jobs executes scrape, report and maintenance units outside the
// request path: a retry wrapper, a SQLite-backed visibility-timeout queue
// worked by a bounded pool, and a cron schedule.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
)

// Unit is one piece of work.
type Unit func(ctx context.Context) error

// Run executes unit until it succeeds, fails with a non-retryable error, or
// maxAttempts attempts have been made. The wait before attempt n+1 is
// backoff × 2^(n-1). Cancellation between attempts returns the last error.
//
// Only errors for which errs.Retryable is true are retried: a missing product
// or an unsupported URL will not improve on a second try.
func Run(ctx context.Context, unit Unit, maxAttempts int, backoff time.Duration, logger *slog.Logger) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := unit(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !errs.Retryable(err) || attempt == maxAttempts {
			return lastErr
		}

		wait := backoff * (1 << uint(attempt-1))
		if logger != nil {
			logger.WarnContext(ctx, "jobs: retrying unit",
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"backoff_ms", wait.Milliseconds(),
				"error", err)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return lastErr
		case <-t.C:
		}
	}
	return lastErr
}
