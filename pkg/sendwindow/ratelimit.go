package sendwindow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loopmsg/journeyd/pkg/models"
)

// Periods tracked by the rate limiter.
const (
	periodDay   = "day"
	periodWeek  = "week"
	periodMonth = "month"
)

// RateLimiter enforces per-customer send caps using redis counters with
// period-aligned TTLs. A nil client disables limiting (local development
// and tests without redis).
type RateLimiter struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRateLimiter(client *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		logger: logger.With("module", "rate_limiter"),
	}
}

// Allow reports whether one more send to the customer fits under the
// limit. It does not consume quota; call Record once the send attempt is
// actually made.
func (l *RateLimiter) Allow(ctx context.Context, customerID, journeyID string, limit *models.RateLimit, now time.Time) (bool, string, error) {
	if l.client == nil || limit == nil {
		return true, "", nil
	}

	checks := []struct {
		period string
		max    int
	}{
		{periodDay, limit.MaxPerDay},
		{periodWeek, limit.MaxPerWeek},
		{periodMonth, limit.MaxPerMonth},
	}

	for _, check := range checks {
		if check.max <= 0 {
			continue
		}

		key := l.key(customerID, journeyID, limit.Scope, check.period, now)

		count, err := l.client.Get(ctx, key).Int()
		if err != nil && err != redis.Nil {
			return false, "", fmt.Errorf("failed to read rate limit counter: %w", err)
		}

		if count >= check.max {
			return false, fmt.Sprintf("rate limit reached: %d sends per %s", check.max, check.period), nil
		}
	}

	return true, "", nil
}

// Record consumes quota for one send attempt across all tracked periods.
func (l *RateLimiter) Record(ctx context.Context, customerID, journeyID string, limit *models.RateLimit, now time.Time) error {
	if l.client == nil || limit == nil {
		return nil
	}

	pipe := l.client.TxPipeline()

	for _, period := range []string{periodDay, periodWeek, periodMonth} {
		key := l.key(customerID, journeyID, limit.Scope, period, now)
		pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, periodTTL(period))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record send against rate limit: %w", err)
	}

	return nil
}

func (l *RateLimiter) key(customerID, journeyID string, scope models.RateLimitScope, period string, now time.Time) string {
	scopeKey := "all"
	if scope == models.RateLimitScopeJourney {
		scopeKey = "journey:" + journeyID
	}

	return fmt.Sprintf("journeyd:sends:%s:%s:%s:%s", scopeKey, customerID, period, periodBucket(period, now))
}

func periodBucket(period string, now time.Time) string {
	switch period {
	case periodDay:
		return now.UTC().Format("2006-01-02")
	case periodWeek:
		year, week := now.UTC().ISOWeek()

		return fmt.Sprintf("%d-W%02d", year, week)
	default:
		return now.UTC().Format("2006-01")
	}
}

func periodTTL(period string) time.Duration {
	switch period {
	case periodDay:
		return 25 * time.Hour
	case periodWeek:
		return 8 * 24 * time.Hour
	default:
		return 32 * 24 * time.Hour
	}
}
