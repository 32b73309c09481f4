// Package events defines the enrollment lifecycle events published by
// the journey engine.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single stream carrying all journey engine events.
const Topic = "journeyd.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	EnrollmentStartedEvent   EventType = "enrollment.started"
	EnrollmentAdvancedEvent  EventType = "enrollment.advanced"
	EnrollmentCompletedEvent EventType = "enrollment.completed"
	EnrollmentExitedEvent    EventType = "enrollment.exited"
	EnrollmentDroppedEvent   EventType = "enrollment.dropped"
	MessageSentEvent         EventType = "message.sent"
	MessageFailedEvent       EventType = "message.failed"
)

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	JourneyID    string         `json:"journey_id"`
	EnrollmentID string         `json:"enrollment_id"`
	CustomerID   string         `json:"customer_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, journeyID, enrollmentID, customerID string) BaseEvent {
	return BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		JourneyID:    journeyID,
		EnrollmentID: enrollmentID,
		CustomerID:   customerID,
		Metadata:     make(map[string]any),
	}
}

type EnrollmentStarted struct {
	BaseEvent

	TriggerKind string `json:"trigger_kind"`
}

func (e EnrollmentStarted) GetType() EventType {
	return EnrollmentStartedEvent
}

type EnrollmentAdvanced struct {
	BaseEvent

	FromNodeID string `json:"from_node_id"`
	ToNodeID   string `json:"to_node_id"`
}

func (e EnrollmentAdvanced) GetType() EventType {
	return EnrollmentAdvancedEvent
}

type EnrollmentCompleted struct {
	BaseEvent

	GoalNodeID string        `json:"goal_node_id"`
	Duration   time.Duration `json:"duration"`
}

func (e EnrollmentCompleted) GetType() EventType {
	return EnrollmentCompletedEvent
}

type EnrollmentExited struct {
	BaseEvent

	ExitNodeID string `json:"exit_node_id"`
}

func (e EnrollmentExited) GetType() EventType {
	return EnrollmentExitedEvent
}

type EnrollmentDropped struct {
	BaseEvent

	DeadEndNodeID string `json:"dead_end_node_id"`
}

func (e EnrollmentDropped) GetType() EventType {
	return EnrollmentDroppedEvent
}

type MessageSent struct {
	BaseEvent

	NodeID            string `json:"node_id"`
	Mode              string `json:"mode"` // free_form or template
	ProviderMessageID string `json:"provider_message_id"`
}

func (e MessageSent) GetType() EventType {
	return MessageSentEvent
}

type MessageFailed struct {
	BaseEvent

	NodeID string `json:"node_id"`
	Reason string `json:"reason"`
}

func (e MessageFailed) GetType() EventType {
	return MessageFailedEvent
}
