package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeKind is the closed set of journey node types. The state machine
// switches exhaustively on it; an unrecognized kind is corrupted state,
// never a silent no-op.
type NodeKind string

const (
	NodeKindTrigger   NodeKind = "trigger"
	NodeKindDelay     NodeKind = "delay"
	NodeKindAction    NodeKind = "action"
	NodeKindCondition NodeKind = "condition"
	NodeKindGoal      NodeKind = "goal"
	NodeKindExit      NodeKind = "exit"
)

// JourneyNode is a tagged union over Kind. Exactly one of the config
// pointers matching the kind is set; the others stay nil.
type JourneyNode struct {
	ID   string   `json:"id"   validate:"required"`
	Kind NodeKind `json:"kind" validate:"required"`
	Name string   `json:"name"`

	Trigger   *TriggerConfig   `json:"trigger,omitempty"`
	Delay     *DelayConfig     `json:"delay,omitempty"`
	Action    *ActionConfig    `json:"action,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty"`
}

// TriggerKind identifies how a journey admits customers.
type TriggerKind string

const (
	TriggerKindSegment        TriggerKind = "segment"
	TriggerKindOrderPlaced    TriggerKind = "order_placed"
	TriggerKindAbandonedCart  TriggerKind = "abandoned_cart"
	TriggerKindTagAdded       TriggerKind = "tag_added"
	TriggerKindFirstPurchase  TriggerKind = "first_purchase"
	TriggerKindRepeatPurchase TriggerKind = "repeat_purchase"
	TriggerKindManual         TriggerKind = "manual"
)

// TriggerConfig configures a trigger node.
type TriggerConfig struct {
	Kind      TriggerKind `json:"kind" validate:"required"`
	SegmentID string      `json:"segment_id,omitempty"`
	Tag       string      `json:"tag,omitempty"`
	// AbandonedAfterHours is how long a checkout must sit untouched
	// before it counts as abandoned.
	AbandonedAfterHours int `json:"abandoned_after_hours,omitempty"`
}

// DelayUnit is the time unit of a delay node.
type DelayUnit string

const (
	DelayUnitMinutes DelayUnit = "minutes"
	DelayUnitHours   DelayUnit = "hours"
	DelayUnitDays    DelayUnit = "days"
)

// DelayConfig configures a delay node.
type DelayConfig struct {
	Value int       `json:"value" validate:"required,min=1"`
	Unit  DelayUnit `json:"unit"  validate:"required"`
}

// Duration converts the configured delay into a time.Duration.
// An unknown unit yields zero, which the validator rejects up front.
func (d DelayConfig) Duration() time.Duration {
	switch d.Unit {
	case DelayUnitMinutes:
		return time.Duration(d.Value) * time.Minute
	case DelayUnitHours:
		return time.Duration(d.Value) * time.Hour
	case DelayUnitDays:
		return time.Duration(d.Value) * 24 * time.Hour
	default:
		return 0
	}
}

// ActionConfig configures a message-sending action node.
type ActionConfig struct {
	// Body is the free-form message text, used inside the 24h window.
	Body string `json:"body,omitempty"`
	// TemplateName is the pre-approved template used outside the window.
	// Empty means no fallback: out-of-window sends are skipped.
	TemplateName     string            `json:"template_name,omitempty"`
	TemplateLanguage string            `json:"template_language,omitempty"`
	Variables        map[string]string `json:"variables,omitempty"`

	Window    *DailyWindow `json:"window,omitempty"`
	RateLimit *RateLimit   `json:"rate_limit,omitempty"`
	Retry     *RetryPolicy `json:"retry,omitempty"`
}

// DailyWindow is the allowed hour-of-day range for outbound sends,
// half-open: a send at exactly EndHour is outside the window.
type DailyWindow struct {
	StartHour int `json:"start_hour" validate:"min=0,max=23"`
	EndHour   int `json:"end_hour"   validate:"min=1,max=24"`
}

// DefaultDailyWindow is applied when an action declares no window.
var DefaultDailyWindow = DailyWindow{StartHour: 9, EndHour: 21}

// Contains reports whether the given time falls inside the window.
func (w DailyWindow) Contains(t time.Time) bool {
	hour := t.Hour()

	return hour >= w.StartHour && hour < w.EndHour
}

// RateLimitScope selects which sends count against a rate limit.
type RateLimitScope string

const (
	RateLimitScopeJourney RateLimitScope = "journey"
	RateLimitScopeAll     RateLimitScope = "all"
)

// RateLimit caps outbound sends per customer. Zero fields mean unlimited.
type RateLimit struct {
	MaxPerDay   int            `json:"max_per_day,omitempty"`
	MaxPerWeek  int            `json:"max_per_week,omitempty"`
	MaxPerMonth int            `json:"max_per_month,omitempty"`
	Scope       RateLimitScope `json:"scope,omitempty"`
}

// RetryPolicy bounds delivery retries for transient provider errors.
// Permanent errors (invalid phone, rejected template) are never retried.
type RetryPolicy struct {
	MaxAttempts int `json:"max_attempts" validate:"min=1"`
	BackoffSecs int `json:"backoff_secs,omitempty"`
}

// Backoff returns the wait before the given retry attempt (1-based),
// increasing linearly with each attempt.
func (r RetryPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(attempt*r.BackoffSecs) * time.Second
}

// ConditionKind identifies the predicate evaluated by a condition node.
type ConditionKind string

const (
	ConditionKindMessageOpened       ConditionKind = "message_opened"
	ConditionKindLinkClicked         ConditionKind = "link_clicked"
	ConditionKindPurchasedSinceStart ConditionKind = "purchased_since_start"
	ConditionKindHasTag              ConditionKind = "has_tag"
	ConditionKindTotalSpentGt        ConditionKind = "total_spent_gt"
	ConditionKindOrderCountAtLeast   ConditionKind = "order_count_at_least"
	ConditionKindProductPurchased    ConditionKind = "product_purchased"
)

// ConditionConfig configures a condition node.
type ConditionConfig struct {
	Kind      ConditionKind `json:"kind" validate:"required"`
	Tag       string        `json:"tag,omitempty"`
	Amount    float64       `json:"amount,omitempty"`
	Count     int           `json:"count,omitempty"`
	ProductID string        `json:"product_id,omitempty"`
}

// Branch is a typed edge selector. Condition nodes route on yes/no;
// every other node follows its always edge.
type Branch string

const (
	BranchAlways Branch = ""
	BranchYes    Branch = "yes"
	BranchNo     Branch = "no"
)

// UnmarshalJSON accepts the legacy builder labels "Yes"/"No" alongside
// the canonical lowercase values.
func (b *Branch) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("branch must be a string: %w", err)
	}

	switch raw {
	case "", "always":
		*b = BranchAlways
	case "yes", "Yes":
		*b = BranchYes
	case "no", "No":
		*b = BranchNo
	default:
		return fmt.Errorf("unknown branch label %q: %w", raw, ErrValidation)
	}

	return nil
}

// Edge connects two nodes in a journey graph.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Branch Branch `json:"branch,omitempty"`
}
