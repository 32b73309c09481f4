// Package segment evaluates customer segment condition groups. The
// evaluator is pure: it performs no I/O and never returns an error, a
// malformed condition simply does not match.
package segment

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/loopmsg/journeyd/pkg/models"
)

type Evaluator struct {
	logger *slog.Logger
}

func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{
		logger: logger.With("module", "segment_evaluator"),
	}
}

// Matches reports whether the customer satisfies the condition groups.
// Groups combine with AND; conditions inside a group combine per the
// group operator. A rule set with no conditions anywhere is vacuously
// true: no-condition segments match everyone.
func (e *Evaluator) Matches(customer *models.Customer, groups []models.ConditionGroup) bool {
	if customer == nil {
		return false
	}

	total := 0
	for _, group := range groups {
		total += len(group.Conditions)
	}

	if total == 0 {
		return true
	}

	for _, group := range groups {
		if len(group.Conditions) == 0 {
			continue
		}

		if !e.matchGroup(customer, group) {
			return false
		}
	}

	return true
}

func (e *Evaluator) matchGroup(customer *models.Customer, group models.ConditionGroup) bool {
	anyTrue := false

	for _, condition := range group.Conditions {
		matched := e.matchCondition(customer, condition)

		if group.Operator == models.GroupOperatorOr {
			if matched {
				return true
			}

			continue
		}

		// AND is the default group operator.
		if !matched {
			return false
		}

		anyTrue = true
	}

	if group.Operator == models.GroupOperatorOr {
		return false
	}

	return anyTrue
}

func (e *Evaluator) matchCondition(customer *models.Customer, condition models.Condition) bool {
	field := canonicalField(condition.Field)

	switch condition.Operator {
	case models.OperatorHasTag:
		return customer.HasTag(asString(condition.Value))
	case models.OperatorNotHasTag:
		return !customer.HasTag(asString(condition.Value))
	case models.OperatorIsSet:
		return fieldIsSet(customer, field)
	case models.OperatorIsNotSet:
		return !fieldIsSet(customer, field)
	case models.OperatorEquals, models.OperatorNotEquals,
		models.OperatorContains, models.OperatorNotContains,
		models.OperatorGreaterThan, models.OperatorLessThan:
		return e.compareField(customer, field, condition)
	default:
		e.logger.Warn("Unknown condition operator, treating as non-match",
			"operator", condition.Operator, "field", condition.Field)

		return false
	}
}

func (e *Evaluator) compareField(customer *models.Customer, field string, condition models.Condition) bool {
	switch field {
	case "total_spent":
		return e.compareNumber(customer.TotalSpent, condition)
	case "orders_count":
		return e.compareNumber(float64(customer.OrdersCount), condition)
	case "accepts_marketing":
		return e.compareBool(customer.AcceptsMarketing, condition)
	case "name":
		return e.compareString(customer.Name, condition)
	case "email":
		return e.compareString(customer.Email, condition)
	case "phone":
		return e.compareString(customer.Phone, condition)
	case "tags":
		return e.compareString(strings.Join(customer.Tags, ","), condition)
	default:
		e.logger.Warn("Unknown condition field, treating as non-match",
			"field", condition.Field, "operator", condition.Operator)

		return false
	}
}

func (e *Evaluator) compareNumber(actual float64, condition models.Condition) bool {
	expected, ok := asFloat(condition.Value)
	if !ok {
		e.logger.Warn("Condition value is not numeric, treating as non-match",
			"field", condition.Field, "value", condition.Value)

		return false
	}

	switch condition.Operator {
	case models.OperatorEquals:
		return actual == expected
	case models.OperatorNotEquals:
		return actual != expected
	case models.OperatorGreaterThan:
		return actual > expected
	case models.OperatorLessThan:
		return actual < expected
	default:
		return false
	}
}

func (e *Evaluator) compareString(actual string, condition models.Condition) bool {
	expected := asString(condition.Value)

	switch condition.Operator {
	case models.OperatorEquals:
		return strings.EqualFold(actual, expected)
	case models.OperatorNotEquals:
		return !strings.EqualFold(actual, expected)
	case models.OperatorContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
	case models.OperatorNotContains:
		return !strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
	default:
		e.logger.Warn("Operator not applicable to string field, treating as non-match",
			"field", condition.Field, "operator", condition.Operator)

		return false
	}
}

func (e *Evaluator) compareBool(actual bool, condition models.Condition) bool {
	expected, ok := asBool(condition.Value)
	if !ok {
		return false
	}

	switch condition.Operator {
	case models.OperatorEquals:
		return actual == expected
	case models.OperatorNotEquals:
		return actual != expected
	default:
		return false
	}
}

func fieldIsSet(customer *models.Customer, field string) bool {
	switch field {
	case "email":
		return customer.Email != ""
	case "phone":
		return customer.Phone != ""
	case "name":
		return customer.Name != ""
	case "tags":
		return len(customer.Tags) > 0
	case "last_message_at":
		return customer.LastMessageAt != nil
	default:
		return false
	}
}

// canonicalField folds the field-name variants produced by different
// upstream sources (builder UI, CSV import, commerce webhooks) into one
// canonical snake_case set.
func canonicalField(field string) string {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "total_spent", "totalspent", "total_spend", "spend":
		return "total_spent"
	case "orders_count", "orderscount", "order_count", "orders":
		return "orders_count"
	case "accepts_marketing", "acceptsmarketing", "marketing_consent":
		return "accepts_marketing"
	case "last_message_at", "lastmessageat":
		return "last_message_at"
	case "name", "first_name":
		return "name"
	case "email":
		return "email"
	case "phone", "phone_number":
		return "phone"
	case "tags", "tag":
		return "tags"
	default:
		return strings.ToLower(strings.TrimSpace(field))
	}
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}

func asBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}

		return parsed, true
	default:
		return false, false
	}
}
