package models

import "time"

// EnrollmentStatus represents the lifecycle state of an enrollment.
// Active is the only non-terminal state; transitions are one-way.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed" // Reached a goal node
	EnrollmentStatusExited    EnrollmentStatus = "exited"    // Reached an exit node
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"   // Dead-ended in the graph
)

// HistoryEntry records one visit to a node. ExitedAt stays nil while the
// enrollment is parked on the node.
type HistoryEntry struct {
	NodeID    string     `json:"node_id"`
	EnteredAt time.Time  `json:"entered_at"`
	ExitedAt  *time.Time `json:"exited_at,omitempty"`
}

// Action record types. Message records are written by the engine;
// engagement records (opened, clicked) are written by webhook receivers
// and read back by condition nodes.
const (
	ActionTypeMessage       = "message"
	ActionTypeMessageOpened = "message_opened"
	ActionTypeLinkClicked   = "link_clicked"
)

// ActionRecord is an append-only side-effect record. Failed sends are
// recorded here with Success=false; they never halt the enrollment.
type ActionRecord struct {
	Type     string         `json:"type"`
	At       time.Time      `json:"at"`
	Success  bool           `json:"success"`
	Reason   string         `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Enrollment is one customer's run through one journey. It is created by
// EnrollCustomer, mutated only by ticks, and never deleted.
type Enrollment struct {
	ID         string           `json:"id"`
	JourneyID  string           `json:"journey_id"  validate:"required"`
	CustomerID string           `json:"customer_id" validate:"required"`
	Status     EnrollmentStatus `json:"status"`
	// CurrentNodeID is nil until the first tick places the enrollment
	// on the trigger node.
	CurrentNodeID *string        `json:"current_node_id,omitempty"`
	History       []HistoryEntry `json:"history"`
	Actions       []ActionRecord `json:"actions"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
	// Version guards read-modify-write saves. Stores reject writes whose
	// version does not match the stored row.
	Version int64 `json:"version"`
}

// IsTerminal reports whether the enrollment will never be processed again.
func (e *Enrollment) IsTerminal() bool {
	return e.Status != EnrollmentStatusActive
}

// CurrentHistoryEntry returns the open history entry for the current node,
// or nil when the enrollment has not entered a node yet.
func (e *Enrollment) CurrentHistoryEntry() *HistoryEntry {
	if e.CurrentNodeID == nil {
		return nil
	}

	for i := len(e.History) - 1; i >= 0; i-- {
		if e.History[i].NodeID == *e.CurrentNodeID && e.History[i].ExitedAt == nil {
			return &e.History[i]
		}
	}

	return nil
}

// EnterNode parks the enrollment on a node and opens a history entry.
func (e *Enrollment) EnterNode(nodeID string, now time.Time) {
	e.CurrentNodeID = &nodeID
	e.History = append(e.History, HistoryEntry{NodeID: nodeID, EnteredAt: now})
	e.UpdatedAt = now
}

// LeaveCurrentNode closes the open history entry for the current node.
func (e *Enrollment) LeaveCurrentNode(now time.Time) {
	if entry := e.CurrentHistoryEntry(); entry != nil {
		exited := now
		entry.ExitedAt = &exited
	}
}

// RecordAction appends a side-effect record.
func (e *Enrollment) RecordAction(record ActionRecord) {
	e.Actions = append(e.Actions, record)
	e.UpdatedAt = record.At
}

// SentMessageSince reports whether a successful send of the given type
// happened at or after the given time. Condition nodes use it to inspect
// the enrollment's own delivery history.
func (e *Enrollment) SentMessageSince(actionType string, since time.Time) bool {
	for _, record := range e.Actions {
		if record.Type == actionType && record.Success && !record.At.Before(since) {
			return true
		}
	}

	return false
}
