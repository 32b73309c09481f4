package cmd

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from a redis:// URL. An empty URL
// returns nil, which downstream components treat as "redis disabled".
func NewRedisClient(redisURL string, logger *slog.Logger) (*redis.Client, error) {
	if redisURL == "" {
		logger.Warn("No redis URL configured, caching and rate limiting are disabled")

		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return redis.NewClient(opts), nil
}
