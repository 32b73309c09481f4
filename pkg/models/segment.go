package models

// GroupOperator combines the conditions inside one group.
type GroupOperator string

const (
	GroupOperatorAnd GroupOperator = "and"
	GroupOperatorOr  GroupOperator = "or"
)

// ConditionOperator compares a customer field against a condition value.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "not_contains"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorHasTag      ConditionOperator = "has_tag"
	OperatorNotHasTag   ConditionOperator = "not_has_tag"
	OperatorIsSet       ConditionOperator = "is_set"
	OperatorIsNotSet    ConditionOperator = "is_not_set"
)

// Condition is a single field/operator/value predicate.
type Condition struct {
	Field    string            `json:"field"    validate:"required"`
	Operator ConditionOperator `json:"operator" validate:"required"`
	Value    any               `json:"value,omitempty"`
}

// ConditionGroup is a set of conditions combined by one operator.
type ConditionGroup struct {
	Operator   GroupOperator `json:"operator"`
	Conditions []Condition   `json:"conditions"`
}

// CustomerSegment is a named, reusable customer-matching rule set.
// Groups combine with AND; a segment with no conditions anywhere
// matches every customer.
type CustomerSegment struct {
	ID     string           `json:"id"`
	Name   string           `json:"name" validate:"required"`
	Groups []ConditionGroup `json:"groups"`
}
