package validation

// JSON schemas for per-kind node configuration. These validate the shape
// of the config payloads; cross-field rules live in validation.go.

var triggerSchema = map[string]any{
	"type":     "object",
	"required": []string{"kind"},
	"properties": map[string]any{
		"kind": map[string]any{
			"type": "string",
			"enum": []string{
				"segment", "order_placed", "abandoned_cart", "tag_added",
				"first_purchase", "repeat_purchase", "manual",
			},
		},
		"segment_id":            map[string]any{"type": "string"},
		"tag":                   map[string]any{"type": "string"},
		"abandoned_after_hours": map[string]any{"type": "integer", "minimum": 0},
	},
}

var delaySchema = map[string]any{
	"type":     "object",
	"required": []string{"value", "unit"},
	"properties": map[string]any{
		"value": map[string]any{"type": "integer", "minimum": 1},
		"unit": map[string]any{
			"type": "string",
			"enum": []string{"minutes", "hours", "days"},
		},
	},
}

var actionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"body":              map[string]any{"type": "string"},
		"template_name":     map[string]any{"type": "string"},
		"template_language": map[string]any{"type": "string"},
		"variables": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"type": "string"},
		},
		"window": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start_hour": map[string]any{"type": "integer", "minimum": 0, "maximum": 23},
				"end_hour":   map[string]any{"type": "integer", "minimum": 1, "maximum": 24},
			},
		},
		"rate_limit": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"max_per_day":   map[string]any{"type": "integer", "minimum": 0},
				"max_per_week":  map[string]any{"type": "integer", "minimum": 0},
				"max_per_month": map[string]any{"type": "integer", "minimum": 0},
				"scope": map[string]any{
					"type": "string",
					"enum": []string{"journey", "all"},
				},
			},
		},
		"retry": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"max_attempts": map[string]any{"type": "integer", "minimum": 1},
				"backoff_secs": map[string]any{"type": "integer", "minimum": 0},
			},
		},
	},
}

var conditionSchema = map[string]any{
	"type":     "object",
	"required": []string{"kind"},
	"properties": map[string]any{
		"kind": map[string]any{
			"type": "string",
			"enum": []string{
				"message_opened", "link_clicked", "purchased_since_start",
				"has_tag", "total_spent_gt", "order_count_at_least", "product_purchased",
			},
		},
		"tag":        map[string]any{"type": "string"},
		"amount":     map[string]any{"type": "number", "minimum": 0},
		"count":      map[string]any{"type": "integer", "minimum": 0},
		"product_id": map[string]any{"type": "string"},
	},
}
