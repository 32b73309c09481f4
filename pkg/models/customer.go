package models

import (
	"strings"
	"time"
)

// Customer is the engine's read-only view of a contact. It is fetched from
// the commerce provider per tick and never written back.
type Customer struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	Tags             []string   `json:"tags"`
	TotalSpent       float64    `json:"total_spent"`
	OrdersCount      int        `json:"orders_count"`
	AcceptsMarketing bool       `json:"accepts_marketing"`
	// LastMessageAt is the customer's last inbound message, the basis of
	// the 24-hour free-messaging heuristic.
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	// WindowExpiresAt, when set by the messaging provider, overrides the
	// last-message heuristic.
	WindowExpiresAt *time.Time `json:"window_expires_at,omitempty"`
}

// HasTag reports whether the customer carries the tag, case-insensitively.
func (c *Customer) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}

	return false
}

// Order is a completed purchase fetched from the commerce provider.
type Order struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Total      float64   `json:"total"`
	ProductIDs []string  `json:"product_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// Checkout is an open, not yet completed checkout.
type Checkout struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Total      float64   `json:"total"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IncomingEvent is an external event (webhook payload) that may start a
// journey for a customer.
type IncomingEvent struct {
	Name       string         `json:"name"`
	CustomerID string         `json:"customer_id"`
	Tag        string         `json:"tag,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// EventOrderCreated is the commerce event name that order_placed triggers
// match against.
const EventOrderCreated = "order.created"
