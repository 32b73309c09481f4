// Package web provides the REST API for journey and enrollment management.
package web

import "github.com/loopmsg/journeyd/pkg/models"

// CreateJourneyRequest is the request body for creating a journey. The
// journey is created in draft status and activated separately.
type CreateJourneyRequest struct {
	Name        string                 `json:"name"        validate:"required,min=3"`
	Description string                 `json:"description"`
	Owner       string                 `json:"owner"`
	Nodes       []*models.JourneyNode  `json:"nodes"       validate:"required,min=1"`
	Edges       []*models.Edge         `json:"edges"`
	Settings    models.JourneySettings `json:"settings"`
}

// UpdateStatusRequest moves a journey through its lifecycle.
type UpdateStatusRequest struct {
	Status models.JourneyStatus `json:"status" validate:"required,oneof=draft active paused archived"`
}

// EnrollRequest admits one customer into a journey.
type EnrollRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
}

// SaveSegmentRequest creates or replaces a customer segment definition.
type SaveSegmentRequest struct {
	Name   string                  `json:"name" validate:"required"`
	Groups []models.ConditionGroup `json:"groups"`
}

// EngagementRequest records a delivery engagement signal (open, click)
// against an enrollment, typically from a messaging provider webhook.
type EngagementRequest struct {
	Type string `json:"type" validate:"required,oneof=message_opened link_clicked"`
}

// JourneyResponse wraps a journey with its validation warnings.
type JourneyResponse struct {
	*models.Journey

	Warnings []string `json:"warnings,omitempty"`
}
