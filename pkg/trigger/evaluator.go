// Package trigger decides whether a journey's entry condition holds for a
// customer, optionally in the context of an incoming event.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loopmsg/journeyd/pkg/cache"
	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/loopmsg/journeyd/pkg/persistence"
	"github.com/loopmsg/journeyd/pkg/providers/commerce"
	"github.com/loopmsg/journeyd/pkg/segment"
)

type Evaluator struct {
	segments persistence.SegmentRepository
	matcher  *segment.Evaluator
	commerce commerce.Provider
	cache    *cache.Cache
	logger   *slog.Logger
	now      func() time.Time
}

func NewEvaluator(
	segments persistence.SegmentRepository,
	matcher *segment.Evaluator,
	commerceProvider commerce.Provider,
	segmentCache *cache.Cache,
	logger *slog.Logger,
) *Evaluator {
	return &Evaluator{
		segments: segments,
		matcher:  matcher,
		commerce: commerceProvider,
		cache:    segmentCache,
		logger:   logger.With("module", "trigger"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the evaluator's time source.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now

	return e
}

// Check reports whether the trigger node fires for the customer. The event
// is nil for scheduled scans and set for webhook-driven checks. Kinds that
// only inspect their inputs perform no I/O.
func (e *Evaluator) Check(ctx context.Context, node *models.JourneyNode, customer *models.Customer, event *models.IncomingEvent) (bool, error) {
	if node.Kind != models.NodeKindTrigger || node.Trigger == nil {
		return false, fmt.Errorf("node %s is not a configured trigger: %w", node.ID, models.ErrNotConfigured)
	}

	config := node.Trigger

	switch config.Kind {
	case models.TriggerKindSegment:
		return e.checkSegment(ctx, config.SegmentID, customer)
	case models.TriggerKindOrderPlaced:
		return event != nil && event.Name == models.EventOrderCreated && event.CustomerID == customer.ID, nil
	case models.TriggerKindAbandonedCart:
		return e.checkAbandonedCart(ctx, config, customer)
	case models.TriggerKindTagAdded:
		return event != nil && event.Tag != "" && strings.EqualFold(event.Tag, config.Tag), nil
	case models.TriggerKindFirstPurchase:
		count, err := e.orderCount(ctx, customer.ID)

		return count == 1, err
	case models.TriggerKindRepeatPurchase:
		count, err := e.orderCount(ctx, customer.ID)

		return count >= 2, err
	case models.TriggerKindManual:
		return true, nil
	default:
		e.logger.WarnContext(ctx, "unknown trigger kind", "kind", config.Kind, "node_id", node.ID)

		return false, nil
	}
}

func (e *Evaluator) checkSegment(ctx context.Context, segmentID string, customer *models.Customer) (bool, error) {
	if segmentID == "" {
		return false, fmt.Errorf("segment trigger without segment id: %w", models.ErrNotConfigured)
	}

	seg, err := e.cache.GetSegment(ctx, segmentID, func(ctx context.Context) (*models.CustomerSegment, error) {
		return e.segments.SegmentByID(ctx, segmentID)
	})
	if err != nil {
		return false, fmt.Errorf("failed to load segment %s: %w", segmentID, err)
	}

	return e.matcher.Matches(customer, seg.Groups), nil
}

func (e *Evaluator) checkAbandonedCart(ctx context.Context, config *models.TriggerConfig, customer *models.Customer) (bool, error) {
	hours := config.AbandonedAfterHours
	if hours <= 0 {
		hours = 1
	}

	checkouts, err := e.commerce.GetAbandonedCheckouts(ctx, commerce.CheckoutFilter{
		CustomerID:    customer.ID,
		UpdatedBefore: e.now().Add(-time.Duration(hours) * time.Hour),
	})
	if err != nil {
		return false, fmt.Errorf("failed to fetch abandoned checkouts: %w", err)
	}

	return len(checkouts) > 0, nil
}

// orderCount queries the commerce provider directly rather than trusting
// the possibly stale count on the customer record.
func (e *Evaluator) orderCount(ctx context.Context, customerID string) (int, error) {
	orders, err := e.commerce.GetCustomerOrders(ctx, customerID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch orders: %w", err)
	}

	return len(orders), nil
}
