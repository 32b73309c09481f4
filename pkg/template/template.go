// Package template renders personalization placeholders in outbound
// message bodies and template variables.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/loopmsg/journeyd/pkg/models"
)

// NeedsTemplating reports whether the input contains template actions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// RenderMessage renders a message string with the customer in scope as
// .customer. Plain strings pass through untouched.
func RenderMessage(input string, customer *models.Customer) (string, error) {
	if !NeedsTemplating(input) {
		return input, nil
	}

	return Render(input, map[string]any{"customer": customerData(customer)})
}

// RenderVariables renders every template variable value for the customer.
func RenderVariables(variables map[string]string, customer *models.Customer) (map[string]string, error) {
	if len(variables) == 0 {
		return variables, nil
	}

	rendered := make(map[string]string, len(variables))

	for key, value := range variables {
		result, err := RenderMessage(value, customer)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", key, err)
		}

		rendered[key] = result
	}

	return rendered, nil
}

func Render(input string, data any) (string, error) {
	tmpl, err := template.
		New("message").
		Option("missingkey=error").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
		}).Parse(input)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", input, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", input, err)
	}

	return buf.String(), nil
}

func customerData(c *models.Customer) map[string]any {
	if c == nil {
		return map[string]any{}
	}

	firstName, _, _ := strings.Cut(c.Name, " ")

	return map[string]any{
		"id":           c.ID,
		"name":         c.Name,
		"first_name":   firstName,
		"email":        c.Email,
		"phone":        c.Phone,
		"tags":         c.Tags,
		"total_spent":  c.TotalSpent,
		"orders_count": c.OrdersCount,
	}
}
