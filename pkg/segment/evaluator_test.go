package segment

import (
	"log/slog"
	"os"
	"testing"

	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/stretchr/testify/assert"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func testCustomer() *models.Customer {
	return &models.Customer{
		ID:          "cust-1",
		Name:        "Ada",
		Email:       "ada@example.com",
		Phone:       "+5511999990000",
		Tags:        []string{"VIP", "newsletter"},
		TotalSpent:  600,
		OrdersCount: 3,
	}
}

func TestMatches_NoConditionsIsVacuouslyTrue(t *testing.T) {
	evaluator := newTestEvaluator()

	assert.True(t, evaluator.Matches(testCustomer(), nil))
	assert.True(t, evaluator.Matches(testCustomer(), []models.ConditionGroup{}))
	assert.True(t, evaluator.Matches(testCustomer(), []models.ConditionGroup{
		{Operator: models.GroupOperatorAnd, Conditions: []models.Condition{}},
	}))
}

func TestMatches_NilCustomer(t *testing.T) {
	evaluator := newTestEvaluator()

	assert.False(t, evaluator.Matches(nil, nil))
}

func TestMatches_AndSemantics(t *testing.T) {
	evaluator := newTestEvaluator()

	groups := []models.ConditionGroup{
		{
			Operator: models.GroupOperatorAnd,
			Conditions: []models.Condition{
				{Field: "total_spent", Operator: models.OperatorGreaterThan, Value: 500},
				{Field: "orders_count", Operator: models.OperatorGreaterThan, Value: 1},
			},
		},
	}

	assert.True(t, evaluator.Matches(testCustomer(), groups))

	oneOrder := testCustomer()
	oneOrder.OrdersCount = 1
	oneOrder.TotalSpent = 600

	assert.False(t, evaluator.Matches(oneOrder, groups))
}

func TestMatches_OrSemantics(t *testing.T) {
	evaluator := newTestEvaluator()

	groups := []models.ConditionGroup{
		{
			Operator: models.GroupOperatorOr,
			Conditions: []models.Condition{
				{Field: "total_spent", Operator: models.OperatorGreaterThan, Value: 10000},
				{Field: "orders_count", Operator: models.OperatorGreaterThan, Value: 1},
			},
		},
	}

	assert.True(t, evaluator.Matches(testCustomer(), groups))
}

func TestMatches_GroupsCombineWithAnd(t *testing.T) {
	evaluator := newTestEvaluator()

	groups := []models.ConditionGroup{
		{
			Operator: models.GroupOperatorAnd,
			Conditions: []models.Condition{
				{Field: "total_spent", Operator: models.OperatorGreaterThan, Value: 500},
			},
		},
		{
			Operator: models.GroupOperatorAnd,
			Conditions: []models.Condition{
				{Field: "email", Operator: models.OperatorContains, Value: "nobody"},
			},
		},
	}

	assert.False(t, evaluator.Matches(testCustomer(), groups))
}

func TestMatches_FieldNameVariants(t *testing.T) {
	evaluator := newTestEvaluator()

	for _, field := range []string{"total_spent", "totalSpent", "TOTAL_SPENT", "total_spend"} {
		groups := []models.ConditionGroup{
			{
				Operator: models.GroupOperatorAnd,
				Conditions: []models.Condition{
					{Field: field, Operator: models.OperatorGreaterThan, Value: 500},
				},
			},
		}

		assert.True(t, evaluator.Matches(testCustomer(), groups), "field variant %q", field)
	}
}

func TestMatches_HasTagIsCaseInsensitive(t *testing.T) {
	evaluator := newTestEvaluator()

	groups := []models.ConditionGroup{
		{
			Operator: models.GroupOperatorAnd,
			Conditions: []models.Condition{
				{Field: "tags", Operator: models.OperatorHasTag, Value: "vip"},
			},
		},
	}

	assert.True(t, evaluator.Matches(testCustomer(), groups))

	groups[0].Conditions[0].Operator = models.OperatorNotHasTag
	assert.False(t, evaluator.Matches(testCustomer(), groups))
}

func TestMatches_StringValueCoercion(t *testing.T) {
	evaluator := newTestEvaluator()

	groups := []models.ConditionGroup{
		{
			Operator: models.GroupOperatorAnd,
			Conditions: []models.Condition{
				{Field: "total_spent", Operator: models.OperatorGreaterThan, Value: "500"},
			},
		},
	}

	assert.True(t, evaluator.Matches(testCustomer(), groups))
}

func TestMatches_MalformedConditionDoesNotAbort(t *testing.T) {
	evaluator := newTestEvaluator()

	groups := []models.ConditionGroup{
		{
			Operator: models.GroupOperatorOr,
			Conditions: []models.Condition{
				{Field: "no_such_field", Operator: models.OperatorEquals, Value: 1},
				{Field: "total_spent", Operator: "warp_speed", Value: 1},
				{Field: "total_spent", Operator: models.OperatorGreaterThan, Value: map[string]any{}},
				{Field: "orders_count", Operator: models.OperatorGreaterThan, Value: 1},
			},
		},
	}

	// The three malformed conditions are non-matches; the last one carries
	// the OR group.
	assert.True(t, evaluator.Matches(testCustomer(), groups))
}

func TestMatches_IsSetOperators(t *testing.T) {
	evaluator := newTestEvaluator()

	customer := testCustomer()
	customer.Phone = ""

	groups := []models.ConditionGroup{
		{
			Operator: models.GroupOperatorAnd,
			Conditions: []models.Condition{
				{Field: "email", Operator: models.OperatorIsSet},
				{Field: "phone", Operator: models.OperatorIsNotSet},
			},
		},
	}

	assert.True(t, evaluator.Matches(customer, groups))
}
