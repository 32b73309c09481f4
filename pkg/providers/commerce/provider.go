// Package commerce provides read-only access to the commerce platform:
// customers, orders, and abandoned checkouts.
package commerce

import (
	"context"
	"time"

	"github.com/loopmsg/journeyd/pkg/models"
)

// Provider is the engine's read-only view of the commerce platform.
type Provider interface {
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, error)
	// ListCustomers enumerates contacts for scheduled segment scans.
	ListCustomers(ctx context.Context) ([]*models.Customer, error)
	GetCustomerOrders(ctx context.Context, customerID string) ([]*models.Order, error)
	GetAbandonedCheckouts(ctx context.Context, filter CheckoutFilter) ([]*models.Checkout, error)
}

// CheckoutFilter narrows an abandoned-checkout query.
type CheckoutFilter struct {
	CustomerID string
	// UpdatedBefore keeps only checkouts untouched since this time.
	UpdatedBefore time.Time
}
