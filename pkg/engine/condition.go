package engine

import (
	"context"
	"fmt"

	"github.com/loopmsg/journeyd/pkg/models"
)

// evalCondition evaluates a condition node's predicate against the
// customer and the enrollment's own action history. Unknown predicate
// kinds evaluate to false with a warning, matching the trigger evaluator.
func (e *Engine) evalCondition(ctx context.Context, node *models.JourneyNode, enrollment *models.Enrollment) (bool, error) {
	config := node.Condition
	if config == nil {
		return false, fmt.Errorf("condition node %s has no config: %w", node.ID, models.ErrNotConfigured)
	}

	switch config.Kind {
	case models.ConditionKindMessageOpened:
		return enrollment.SentMessageSince(models.ActionTypeMessageOpened, enrollment.StartedAt), nil
	case models.ConditionKindLinkClicked:
		return enrollment.SentMessageSince(models.ActionTypeLinkClicked, enrollment.StartedAt), nil
	case models.ConditionKindPurchasedSinceStart:
		return e.purchasedSince(ctx, enrollment, "")
	case models.ConditionKindProductPurchased:
		return e.purchasedSince(ctx, enrollment, config.ProductID)
	case models.ConditionKindHasTag:
		customer, err := e.commerce.GetCustomer(ctx, enrollment.CustomerID)
		if err != nil {
			return false, fmt.Errorf("failed to load customer: %w", err)
		}

		return customer.HasTag(config.Tag), nil
	case models.ConditionKindTotalSpentGt:
		customer, err := e.commerce.GetCustomer(ctx, enrollment.CustomerID)
		if err != nil {
			return false, fmt.Errorf("failed to load customer: %w", err)
		}

		return customer.TotalSpent > config.Amount, nil
	case models.ConditionKindOrderCountAtLeast:
		customer, err := e.commerce.GetCustomer(ctx, enrollment.CustomerID)
		if err != nil {
			return false, fmt.Errorf("failed to load customer: %w", err)
		}

		return customer.OrdersCount >= config.Count, nil
	default:
		e.logger.WarnContext(ctx, "Unknown condition kind, evaluating to false",
			"kind", config.Kind, "node_id", node.ID)

		return false, nil
	}
}

// purchasedSince reports whether the customer placed an order after the
// enrollment started, optionally narrowed to a specific product. Order
// snapshots come through the short-TTL cache to spare the commerce API
// when several condition nodes fire in one scheduler pass.
func (e *Engine) purchasedSince(ctx context.Context, enrollment *models.Enrollment, productID string) (bool, error) {
	load := func(ctx context.Context) ([]*models.Order, error) {
		return e.commerce.GetCustomerOrders(ctx, enrollment.CustomerID)
	}

	var (
		orders []*models.Order
		err    error
	)

	if e.cache != nil {
		orders, err = e.cache.GetCustomerOrders(ctx, enrollment.CustomerID, load)
	} else {
		orders, err = load(ctx)
	}

	if err != nil {
		return false, fmt.Errorf("failed to load orders: %w", err)
	}

	for _, order := range orders {
		if order.CreatedAt.Before(enrollment.StartedAt) {
			continue
		}

		if productID == "" {
			return true, nil
		}

		for _, id := range order.ProductIDs {
			if id == productID {
				return true, nil
			}
		}
	}

	return false, nil
}
