package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/loopmsg/journeyd/pkg/template"
)

func TestRenderMessagePassesPlainStringsThrough(t *testing.T) {
	result, err := template.RenderMessage("Hi there!", &models.Customer{Name: "Ana Silva"})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", result)
}

func TestRenderMessageSubstitutesCustomerFields(t *testing.T) {
	customer := &models.Customer{Name: "Ana Silva", TotalSpent: 150.5}

	result, err := template.RenderMessage("Hi {{.customer.first_name}}!", customer)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana!", result)

	result, err = template.RenderMessage("{{upper .customer.name}}", customer)
	require.NoError(t, err)
	assert.Equal(t, "ANA SILVA", result)
}

func TestRenderMessageFailsOnUnknownField(t *testing.T) {
	_, err := template.RenderMessage("{{.customer.nickname}}", &models.Customer{Name: "Ana"})
	assert.Error(t, err)
}

func TestRenderMessageFailsOnBadSyntax(t *testing.T) {
	_, err := template.RenderMessage("Hi {{.customer.name", &models.Customer{Name: "Ana"})
	assert.Error(t, err)
}

func TestRenderVariables(t *testing.T) {
	customer := &models.Customer{Name: "Ana Silva"}

	rendered, err := template.RenderVariables(map[string]string{
		"1": "{{.customer.first_name}}",
		"2": "static",
	}, customer)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "Ana", "2": "static"}, rendered)
}

func TestNeedsTemplating(t *testing.T) {
	assert.True(t, template.NeedsTemplating("Hi {{.customer.name}}"))
	assert.False(t, template.NeedsTemplating("Hi Ana"))
}
