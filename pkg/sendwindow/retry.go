package sendwindow

import (
	"context"
	"log/slog"
	"time"

	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/loopmsg/journeyd/pkg/providers"
)

// Sleeper waits between retry attempts. Tests inject a no-op.
type Sleeper func(ctx context.Context, d time.Duration)

// DefaultSleeper honours context cancellation while waiting.
func DefaultSleeper(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Retry runs fn under the given policy. Only transient provider errors
// are retried; permanent errors and non-provider errors return
// immediately. A nil policy means a single attempt.
func Retry(ctx context.Context, policy *models.RetryPolicy, sleep Sleeper, logger *slog.Logger, fn func() (string, error)) (string, error) {
	attempts := 1
	if policy != nil && policy.MaxAttempts > 0 {
		attempts = policy.MaxAttempts
	}

	if sleep == nil {
		sleep = DefaultSleeper
	}

	var (
		result  string
		lastErr error
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			backoff := policy.Backoff(attempt - 1)
			logger.InfoContext(ctx, "Retrying send after transient provider error",
				"attempt", attempt, "max_attempts", attempts, "backoff", backoff)
			sleep(ctx, backoff)
		}

		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}

		if !providers.IsTransient(lastErr) {
			return "", lastErr
		}

		if ctx.Err() != nil {
			return "", lastErr
		}
	}

	return "", lastErr
}
