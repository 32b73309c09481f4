// Package models defines the core domain models for journey execution.
package models

import "time"

// JourneyStatus represents the lifecycle state of a journey definition.
type JourneyStatus string

const (
	JourneyStatusDraft    JourneyStatus = "draft"    // Editable, not executable
	JourneyStatusActive   JourneyStatus = "active"   // Enrolling and processing
	JourneyStatusPaused   JourneyStatus = "paused"   // Enrollments frozen in place
	JourneyStatusArchived JourneyStatus = "archived" // Historical, never processed
)

// EntryFrequency controls how often the same customer may enter a journey.
type EntryFrequency string

const (
	EntryFrequencyAlways EntryFrequency = "always"
	EntryFrequencyOnce   EntryFrequency = "once"
)

// EntrySettings are the enrollment gating rules of a journey.
type EntrySettings struct {
	Frequency EntryFrequency `json:"frequency"`
	// MaxEntries caps the number of enrollments per customer.
	// Zero means unlimited.
	MaxEntries int `json:"max_entries,omitempty"`
}

// JourneySettings holds journey-level configuration.
type JourneySettings struct {
	Entry EntrySettings `json:"entry"`
}

// Journey represents an immutable-per-version workflow graph of typed nodes.
type Journey struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Status      JourneyStatus   `json:"status"      validate:"required"`
	Nodes       []*JourneyNode  `json:"nodes"`
	Edges       []*Edge         `json:"edges"`
	Settings    JourneySettings `json:"settings"`
	Owner       string          `json:"owner"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// IsProcessable reports whether enrollments of this journey may be advanced.
// Paused and archived journeys freeze their enrollments in place.
func (j *Journey) IsProcessable() bool {
	return j.Status == JourneyStatusActive
}

// NodeByID returns the node with the given id, or nil.
func (j *Journey) NodeByID(id string) *JourneyNode {
	for _, node := range j.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// TriggerNode returns the journey's entry node, or nil when the graph has none.
func (j *Journey) TriggerNode() *JourneyNode {
	for _, node := range j.Nodes {
		if node.Kind == NodeKindTrigger {
			return node
		}
	}

	return nil
}

// EdgesFrom returns all edges whose source is the given node, in definition order.
func (j *Journey) EdgesFrom(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range j.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}
