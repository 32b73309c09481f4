// Package validation checks journey definitions before they are saved or
// executed.
package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/loopmsg/journeyd/pkg/models"
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateJourney checks structural and per-node configuration rules.
// It returns warnings for conditions a journey can run with (like a
// condition node missing one of its branches) and an error for anything
// that must block saving.
func (v *Validator) ValidateJourney(journey *models.Journey) ([]string, error) {
	if err := v.validate.Struct(journey); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrValidation, err)
	}

	if err := v.checkTriggerCount(journey); err != nil {
		return nil, err
	}

	nodeIDs := make(map[string]*models.JourneyNode, len(journey.Nodes))

	for _, node := range journey.Nodes {
		if _, dup := nodeIDs[node.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q: %w", node.ID, models.ErrValidation)
		}

		nodeIDs[node.ID] = node

		if err := v.checkNodeConfig(node); err != nil {
			return nil, err
		}
	}

	if err := checkEdges(journey, nodeIDs); err != nil {
		return nil, err
	}

	return conditionBranchWarnings(journey), nil
}

// ValidateStatusTransition enforces the journey lifecycle. Draft journeys
// activate, active journeys pause or archive, paused journeys resume or
// archive. Archived is final.
func (v *Validator) ValidateStatusTransition(from, to models.JourneyStatus) error {
	if from == to {
		return nil
	}

	legal := map[models.JourneyStatus][]models.JourneyStatus{
		models.JourneyStatusDraft:  {models.JourneyStatusActive, models.JourneyStatusArchived},
		models.JourneyStatusActive: {models.JourneyStatusPaused, models.JourneyStatusArchived},
		models.JourneyStatusPaused: {models.JourneyStatusActive, models.JourneyStatusArchived},
	}

	for _, allowed := range legal[from] {
		if to == allowed {
			return nil
		}
	}

	return fmt.Errorf("illegal status transition %s -> %s: %w", from, to, models.ErrValidation)
}

func (v *Validator) checkTriggerCount(journey *models.Journey) error {
	triggers := 0

	for _, node := range journey.Nodes {
		if node.Kind == models.NodeKindTrigger {
			triggers++
		}
	}

	if triggers != 1 {
		return fmt.Errorf("journey must have exactly one trigger node, found %d: %w", triggers, models.ErrValidation)
	}

	return nil
}

func (v *Validator) checkNodeConfig(node *models.JourneyNode) error {
	switch node.Kind {
	case models.NodeKindTrigger:
		if node.Trigger == nil {
			return missingConfig(node)
		}

		if err := validateSchema(node, triggerSchema, node.Trigger); err != nil {
			return err
		}

		return checkTriggerKindArgs(node)
	case models.NodeKindDelay:
		if node.Delay == nil {
			return missingConfig(node)
		}

		return validateSchema(node, delaySchema, node.Delay)
	case models.NodeKindAction:
		if node.Action == nil {
			return missingConfig(node)
		}

		if node.Action.Body == "" && node.Action.TemplateName == "" {
			return fmt.Errorf("action node %s needs a body or a template: %w", node.ID, models.ErrValidation)
		}

		return validateSchema(node, actionSchema, node.Action)
	case models.NodeKindCondition:
		if node.Condition == nil {
			return missingConfig(node)
		}

		return validateSchema(node, conditionSchema, node.Condition)
	case models.NodeKindGoal, models.NodeKindExit:
		return nil
	default:
		return fmt.Errorf("node %s has unknown kind %q: %w", node.ID, node.Kind, models.ErrValidation)
	}
}

func checkTriggerKindArgs(node *models.JourneyNode) error {
	config := node.Trigger

	switch config.Kind {
	case models.TriggerKindSegment:
		if config.SegmentID == "" {
			return fmt.Errorf("segment trigger %s needs a segment id: %w", node.ID, models.ErrValidation)
		}
	case models.TriggerKindTagAdded:
		if config.Tag == "" {
			return fmt.Errorf("tag trigger %s needs a tag: %w", node.ID, models.ErrValidation)
		}
	case models.TriggerKindAbandonedCart:
		if config.AbandonedAfterHours < 1 {
			return fmt.Errorf("abandoned cart trigger %s needs a positive hour threshold: %w", node.ID, models.ErrValidation)
		}
	case models.TriggerKindOrderPlaced, models.TriggerKindFirstPurchase,
		models.TriggerKindRepeatPurchase, models.TriggerKindManual:
	}

	return nil
}

func checkEdges(journey *models.Journey, nodeIDs map[string]*models.JourneyNode) error {
	for _, edge := range journey.Edges {
		if _, ok := nodeIDs[edge.Source]; !ok {
			return fmt.Errorf("edge %s references unknown source node %q: %w", edge.ID, edge.Source, models.ErrValidation)
		}

		if _, ok := nodeIDs[edge.Target]; !ok {
			return fmt.Errorf("edge %s references unknown target node %q: %w", edge.ID, edge.Target, models.ErrValidation)
		}

		if edge.Source == edge.Target {
			return fmt.Errorf("edge %s is a self loop on node %q: %w", edge.ID, edge.Source, models.ErrValidation)
		}
	}

	return nil
}

// conditionBranchWarnings flags condition nodes that rely on the
// first-edge fallback because a yes or no edge is missing.
func conditionBranchWarnings(journey *models.Journey) []string {
	warnings := make([]string, 0)

	for _, node := range journey.Nodes {
		if node.Kind != models.NodeKindCondition {
			continue
		}

		var hasYes, hasNo bool

		for _, edge := range journey.EdgesFrom(node.ID) {
			switch edge.Branch {
			case models.BranchYes:
				hasYes = true
			case models.BranchNo:
				hasNo = true
			case models.BranchAlways:
			}
		}

		if !hasYes || !hasNo {
			warnings = append(warnings,
				fmt.Sprintf("condition node %s is missing a yes or no edge and will fall back to its first edge", node.ID))
		}
	}

	return warnings
}

func missingConfig(node *models.JourneyNode) error {
	return fmt.Errorf("%s node %s has no %s config: %w", node.Kind, node.ID, node.Kind, models.ErrValidation)
}

func validateSchema(node *models.JourneyNode, schema map[string]any, config any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("failed to validate node %s config: %w", node.ID, err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("node %s config invalid: %s: %w", node.ID, strings.Join(descriptions, "; "), models.ErrValidation)
	}

	return nil
}
