// Package cache provides a redis-backed TTL cache for segment definitions
// and customer order snapshots read on every tick.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loopmsg/journeyd/pkg/models"
)

const (
	segmentKeyPrefix = "journeyd:cache:segment:"
	ordersKeyPrefix  = "journeyd:cache:orders:"

	// Segment definitions change rarely relative to tick frequency.
	SegmentTTL = 5 * time.Minute

	// Order snapshots go stale quickly and only exist to spare the
	// commerce API within a single scheduler pass.
	OrdersTTL = 30 * time.Second
)

// ErrMiss is returned when the key is absent and no loader was given.
var ErrMiss = errors.New("cache miss")

type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache wraps an existing redis client. A nil client disables caching:
// every lookup falls through to its loader.
func NewCache(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{client: client, logger: logger.With("module", "cache")}
}

// SegmentLoader fetches a segment on cache miss, typically from persistence.
type SegmentLoader func(ctx context.Context) (*models.CustomerSegment, error)

func (c *Cache) GetSegment(ctx context.Context, id string, load SegmentLoader) (*models.CustomerSegment, error) {
	var segment models.CustomerSegment

	hit, err := c.get(ctx, segmentKeyPrefix+id, &segment)
	if err != nil {
		return nil, err
	}

	if hit {
		return &segment, nil
	}

	if load == nil {
		return nil, ErrMiss
	}

	loaded, err := load(ctx)
	if err != nil {
		return nil, err
	}

	c.set(ctx, segmentKeyPrefix+id, loaded, SegmentTTL)

	return loaded, nil
}

// InvalidateSegment drops a cached segment, used after segment updates.
func (c *Cache) InvalidateSegment(ctx context.Context, id string) error {
	if c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, segmentKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to invalidate segment %s: %w", id, err)
	}

	return nil
}

// OrdersLoader fetches a customer's orders on cache miss, typically from
// the commerce provider.
type OrdersLoader func(ctx context.Context) ([]*models.Order, error)

func (c *Cache) GetCustomerOrders(ctx context.Context, customerID string, load OrdersLoader) ([]*models.Order, error) {
	var orders []*models.Order

	hit, err := c.get(ctx, ordersKeyPrefix+customerID, &orders)
	if err != nil {
		return nil, err
	}

	if hit {
		return orders, nil
	}

	if load == nil {
		return nil, ErrMiss
	}

	loaded, err := load(ctx)
	if err != nil {
		return nil, err
	}

	c.set(ctx, ordersKeyPrefix+customerID, loaded, OrdersTTL)

	return loaded, nil
}

// get reports whether the key was present. Redis errors other than a miss
// degrade to a miss so a cache outage never blocks ticks.
func (c *Cache) get(ctx context.Context, key string, out any) (bool, error) {
	if c.client == nil {
		return false, nil
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		}

		return false, nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		c.logger.WarnContext(ctx, "discarding corrupted cache entry", "key", key, "error", err)

		return false, nil
	}

	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.client == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to marshal cache entry", "key", key, "error", err)

		return
	}

	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}
