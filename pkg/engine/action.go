package engine

import (
	"context"
	"time"

	"github.com/loopmsg/journeyd/pkg/events"
	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/loopmsg/journeyd/pkg/sendwindow"
	"github.com/loopmsg/journeyd/pkg/template"
)

// executeAction performs the message send for an action node. Every
// outcome, including skips and failures, lands in the enrollment's action
// records; none of them stop the enrollment from advancing.
func (e *Engine) executeAction(ctx context.Context, journey *models.Journey, node *models.JourneyNode, enrollment *models.Enrollment, now time.Time) {
	config := node.Action
	if config == nil {
		e.recordFailure(ctx, enrollment, node, now, "action not configured")

		return
	}

	if e.messaging == nil {
		e.recordFailure(ctx, enrollment, node, now, "messaging provider not configured")

		return
	}

	if !sendwindow.InDailyWindow(config.Window, now) {
		e.recordFailure(ctx, enrollment, node, now, sendwindow.ReasonOutsideSendWindow)

		return
	}

	if e.rateLimiter != nil && config.RateLimit != nil {
		allowed, reason, err := e.rateLimiter.Allow(ctx, enrollment.CustomerID, journey.ID, config.RateLimit, now)
		if err != nil {
			// A limiter outage must not silence the journey; send and
			// accept the risk of a counter drifting low.
			e.logger.WarnContext(ctx, "Rate limit check failed, allowing send",
				"enrollment_id", enrollment.ID, "error", err)
		} else if !allowed {
			e.recordFailure(ctx, enrollment, node, now, reason)

			return
		}
	}

	customer, err := e.commerce.GetCustomer(ctx, enrollment.CustomerID)
	if err != nil {
		e.recordFailure(ctx, enrollment, node, now, "failed to load customer: "+err.Error())

		return
	}

	decision := sendwindow.Decide(customer, config.TemplateName, now)
	if decision.Mode == sendwindow.ModeSkip {
		e.recordFailure(ctx, enrollment, node, now, decision.Reason)

		return
	}

	body, err := template.RenderMessage(config.Body, customer)
	if err != nil {
		e.recordFailure(ctx, enrollment, node, now, "failed to render message: "+err.Error())

		return
	}

	variables, err := template.RenderVariables(config.Variables, customer)
	if err != nil {
		e.recordFailure(ctx, enrollment, node, now, "failed to render message: "+err.Error())

		return
	}

	if e.rateLimiter != nil && config.RateLimit != nil {
		if err := e.rateLimiter.Record(ctx, enrollment.CustomerID, journey.ID, config.RateLimit, now); err != nil {
			e.logger.WarnContext(ctx, "Failed to record send against rate limit",
				"enrollment_id", enrollment.ID, "error", err)
		}
	}

	messageID, err := sendwindow.Retry(ctx, config.Retry, e.sleep, e.logger, func() (string, error) {
		if decision.Mode == sendwindow.ModeFreeForm {
			return e.messaging.SendFreeForm(ctx, customer.Phone, body)
		}

		return e.messaging.SendTemplate(ctx, customer.Phone, config.TemplateName, config.TemplateLanguage, variables)
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "Message send failed",
			"enrollment_id", enrollment.ID, "node_id", node.ID, "mode", decision.Mode, "error", err)
		e.recordFailure(ctx, enrollment, node, now, err.Error())

		return
	}

	enrollment.RecordAction(models.ActionRecord{
		Type:    models.ActionTypeMessage,
		At:      now,
		Success: true,
		Metadata: map[string]any{
			"node_id":             node.ID,
			"mode":                string(decision.Mode),
			"provider_message_id": messageID,
		},
	})

	e.logger.InfoContext(ctx, "Message sent",
		"enrollment_id", enrollment.ID, "node_id", node.ID, "mode", decision.Mode, "message_id", messageID)

	e.publish(ctx, enrollment, events.MessageSent{
		BaseEvent:         events.NewBaseEvent(events.MessageSentEvent, enrollment.JourneyID, enrollment.ID, enrollment.CustomerID),
		NodeID:            node.ID,
		Mode:              string(decision.Mode),
		ProviderMessageID: messageID,
	})
}

func (e *Engine) recordFailure(ctx context.Context, enrollment *models.Enrollment, node *models.JourneyNode, now time.Time, reason string) {
	enrollment.RecordAction(models.ActionRecord{
		Type:     models.ActionTypeMessage,
		At:       now,
		Success:  false,
		Reason:   reason,
		Metadata: map[string]any{"node_id": node.ID},
	})

	e.publish(ctx, enrollment, events.MessageFailed{
		BaseEvent: events.NewBaseEvent(events.MessageFailedEvent, enrollment.JourneyID, enrollment.ID, enrollment.CustomerID),
		NodeID:    node.ID,
		Reason:    reason,
	})
}
