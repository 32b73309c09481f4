// Package engine advances enrollments through journey graphs, one tick at
// a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/loopmsg/journeyd/pkg/cache"
	"github.com/loopmsg/journeyd/pkg/eventbus"
	"github.com/loopmsg/journeyd/pkg/events"
	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/loopmsg/journeyd/pkg/otelhelper"
	"github.com/loopmsg/journeyd/pkg/persistence"
	"github.com/loopmsg/journeyd/pkg/providers/commerce"
	"github.com/loopmsg/journeyd/pkg/providers/messaging"
	"github.com/loopmsg/journeyd/pkg/sendwindow"
	"github.com/loopmsg/journeyd/pkg/trigger"
)

// Config wires the engine's collaborators. Persistence, Commerce and
// Triggers are required; the rest degrade gracefully when nil.
type Config struct {
	Persistence persistence.Persistence
	Commerce    commerce.Provider
	Messaging   messaging.Provider
	Triggers    *trigger.Evaluator
	RateLimiter *sendwindow.RateLimiter
	// Cache, when set, serves order snapshots for condition predicates.
	Cache    *cache.Cache
	EventBus eventbus.EventPublisher
	Tracer   trace.Tracer
	Logger   *slog.Logger
	// Sleeper is injected by tests to skip retry backoff waits.
	Sleeper sendwindow.Sleeper
	// Now is injected by tests to control the clock.
	Now func() time.Time
}

type Engine struct {
	persistence persistence.Persistence
	commerce    commerce.Provider
	messaging   messaging.Provider
	triggers    *trigger.Evaluator
	rateLimiter *sendwindow.RateLimiter
	cache       *cache.Cache
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	sleep       sendwindow.Sleeper
	now         func() time.Time
}

func New(cfg Config) *Engine {
	e := &Engine{
		persistence: cfg.Persistence,
		commerce:    cfg.Commerce,
		messaging:   cfg.Messaging,
		triggers:    cfg.Triggers,
		rateLimiter: cfg.RateLimiter,
		cache:       cfg.Cache,
		eventBus:    cfg.EventBus,
		tracer:      cfg.Tracer,
		logger:      cfg.Logger.With("module", "engine"),
		sleep:       cfg.Sleeper,
		now:         cfg.Now,
	}

	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("engine")
	}

	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}

	return e
}

// EnrollCustomer admits a customer into a journey. A nil event means a
// scheduled or manual enrollment. Entry rules and a non-firing trigger
// both block with models.ErrEntryBlocked.
func (e *Engine) EnrollCustomer(ctx context.Context, journeyID, customerID string, event *models.IncomingEvent) (*models.Enrollment, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.enroll",
		attribute.String(otelhelper.JourneyIDKey, journeyID),
		attribute.String(otelhelper.CustomerIDKey, customerID),
	)
	defer span.End()

	journey, err := e.persistence.JourneyByID(ctx, journeyID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load journey %s: %w", journeyID, err)
	}

	if journey.Status != models.JourneyStatusActive {
		return nil, fmt.Errorf("journey %s is %s: %w", journeyID, journey.Status, models.ErrEntryBlocked)
	}

	triggerNode := journey.TriggerNode()
	if triggerNode == nil {
		return nil, fmt.Errorf("journey %s has no trigger node: %w", journeyID, models.ErrCorruptedState)
	}

	if err := e.checkEntryRules(ctx, journey, customerID); err != nil {
		return nil, err
	}

	customer, err := e.commerce.GetCustomer(ctx, customerID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load customer %s: %w", customerID, err)
	}

	fired, err := e.triggers.Check(ctx, triggerNode, customer, event)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("trigger check failed: %w", err)
	}

	if !fired {
		return nil, fmt.Errorf("trigger did not fire for customer %s: %w", customerID, models.ErrEntryBlocked)
	}

	enrollment := &models.Enrollment{
		ID:         e.newID(ctx),
		JourneyID:  journeyID,
		CustomerID: customerID,
		Status:     models.EnrollmentStatusActive,
		History:    make([]models.HistoryEntry, 0),
		Actions:    make([]models.ActionRecord, 0),
		StartedAt:  e.now(),
		UpdatedAt:  e.now(),
	}

	if err := e.persistence.SaveEnrollment(ctx, enrollment); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}

	e.logger.InfoContext(ctx, "Customer enrolled",
		"journey_id", journeyID, "customer_id", customerID, "enrollment_id", enrollment.ID)

	e.publish(ctx, enrollment, events.EnrollmentStarted{
		BaseEvent:   events.NewBaseEvent(events.EnrollmentStartedEvent, journeyID, enrollment.ID, customerID),
		TriggerKind: string(triggerNode.Trigger.Kind),
	})

	if err := e.ProcessEnrollment(ctx, enrollment.ID); err != nil {
		return enrollment, fmt.Errorf("first tick failed: %w", err)
	}

	return enrollment, nil
}

func (e *Engine) checkEntryRules(ctx context.Context, journey *models.Journey, customerID string) error {
	entry := journey.Settings.Entry

	if entry.Frequency != models.EntryFrequencyOnce && entry.MaxEntries <= 0 {
		return nil
	}

	existing, err := e.persistence.EnrollmentsByJourneyAndCustomer(ctx, journey.ID, customerID)
	if err != nil {
		return fmt.Errorf("failed to load prior enrollments: %w", err)
	}

	if entry.Frequency == models.EntryFrequencyOnce && len(existing) > 0 {
		return fmt.Errorf("customer %s already entered journey %s: %w", customerID, journey.ID, models.ErrEntryBlocked)
	}

	if entry.MaxEntries > 0 && len(existing) >= entry.MaxEntries {
		return fmt.Errorf("customer %s reached %d entries for journey %s: %w",
			customerID, entry.MaxEntries, journey.ID, models.ErrEntryBlocked)
	}

	return nil
}

// ProcessEnrollment advances an enrollment by one tick. It is safe to call
// redundantly: a tick blocked on a delay, an unmet condition, or a
// terminal status mutates nothing.
func (e *Engine) ProcessEnrollment(ctx context.Context, enrollmentID string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.tick",
		attribute.String(otelhelper.EnrollmentIDKey, enrollmentID),
	)
	defer span.End()

	enrollment, err := e.persistence.EnrollmentByID(ctx, enrollmentID)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to load enrollment %s: %w", enrollmentID, err)
	}

	if enrollment.IsTerminal() {
		e.logger.DebugContext(ctx, "Skipping terminal enrollment",
			"enrollment_id", enrollmentID, "status", enrollment.Status)

		return nil
	}

	journey, err := e.persistence.JourneyByID(ctx, enrollment.JourneyID)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to load journey %s: %w", enrollment.JourneyID, err)
	}

	if !journey.IsProcessable() {
		e.logger.DebugContext(ctx, "Journey is not processable, enrollment frozen",
			"enrollment_id", enrollmentID, "journey_id", journey.ID, "journey_status", journey.Status)

		return nil
	}

	now := e.now()

	// First tick: park on the trigger node. The trigger is a graph entry
	// marker and performs no work of its own.
	if enrollment.CurrentNodeID == nil {
		triggerNode := journey.TriggerNode()
		if triggerNode == nil {
			return fmt.Errorf("journey %s has no trigger node: %w", journey.ID, models.ErrCorruptedState)
		}

		enrollment.EnterNode(triggerNode.ID, now)

		return e.save(ctx, enrollment)
	}

	node := journey.NodeByID(*enrollment.CurrentNodeID)
	if node == nil {
		err := fmt.Errorf("enrollment %s references missing node %s: %w",
			enrollment.ID, *enrollment.CurrentNodeID, models.ErrCorruptedState)
		otelhelper.SetError(span, err)

		return err
	}

	span.SetAttributes(
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeKindKey, string(node.Kind)),
	)

	var branch *bool

	switch node.Kind {
	case models.NodeKindTrigger:
		// Entry marker only, advance immediately.
	case models.NodeKindDelay:
		waiting, err := e.delayStillWaiting(enrollment, node, now)
		if err != nil {
			return err
		}

		if waiting {
			return nil
		}
	case models.NodeKindAction:
		e.executeAction(ctx, journey, node, enrollment, now)
	case models.NodeKindCondition:
		result, err := e.evalCondition(ctx, node, enrollment)
		if err != nil {
			return err
		}

		branch = &result
	case models.NodeKindGoal:
		return e.complete(ctx, enrollment, node, now)
	case models.NodeKindExit:
		return e.exit(ctx, enrollment, node, now)
	default:
		err := fmt.Errorf("enrollment %s parked on node %s of unknown kind %q: %w",
			enrollment.ID, node.ID, node.Kind, models.ErrCorruptedState)
		otelhelper.SetError(span, err)

		return err
	}

	return e.followEdges(ctx, journey, node, enrollment, branch, now)
}

func (e *Engine) delayStillWaiting(enrollment *models.Enrollment, node *models.JourneyNode, now time.Time) (bool, error) {
	if node.Delay == nil {
		return false, fmt.Errorf("delay node %s has no config: %w", node.ID, models.ErrNotConfigured)
	}

	entry := enrollment.CurrentHistoryEntry()
	if entry == nil {
		return false, fmt.Errorf("enrollment %s has no open history entry for node %s: %w",
			enrollment.ID, node.ID, models.ErrCorruptedState)
	}

	return now.Sub(entry.EnteredAt) < node.Delay.Duration(), nil
}

func (e *Engine) complete(ctx context.Context, enrollment *models.Enrollment, node *models.JourneyNode, now time.Time) error {
	enrollment.LeaveCurrentNode(now)
	enrollment.Status = models.EnrollmentStatusCompleted
	completedAt := now
	enrollment.CompletedAt = &completedAt
	enrollment.UpdatedAt = now

	if err := e.save(ctx, enrollment); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Enrollment completed",
		"enrollment_id", enrollment.ID, "goal_node_id", node.ID)

	e.publish(ctx, enrollment, events.EnrollmentCompleted{
		BaseEvent:  events.NewBaseEvent(events.EnrollmentCompletedEvent, enrollment.JourneyID, enrollment.ID, enrollment.CustomerID),
		GoalNodeID: node.ID,
		Duration:   now.Sub(enrollment.StartedAt),
	})

	return nil
}

func (e *Engine) exit(ctx context.Context, enrollment *models.Enrollment, node *models.JourneyNode, now time.Time) error {
	enrollment.LeaveCurrentNode(now)
	enrollment.Status = models.EnrollmentStatusExited
	enrollment.UpdatedAt = now

	if err := e.save(ctx, enrollment); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Enrollment exited",
		"enrollment_id", enrollment.ID, "exit_node_id", node.ID)

	e.publish(ctx, enrollment, events.EnrollmentExited{
		BaseEvent:  events.NewBaseEvent(events.EnrollmentExitedEvent, enrollment.JourneyID, enrollment.ID, enrollment.CustomerID),
		ExitNodeID: node.ID,
	})

	return nil
}

func (e *Engine) followEdges(ctx context.Context, journey *models.Journey, node *models.JourneyNode, enrollment *models.Enrollment, branch *bool, now time.Time) error {
	edges := journey.EdgesFrom(node.ID)

	if len(edges) == 0 {
		enrollment.LeaveCurrentNode(now)
		enrollment.Status = models.EnrollmentStatusDropped
		enrollment.UpdatedAt = now

		if err := e.save(ctx, enrollment); err != nil {
			return err
		}

		e.logger.WarnContext(ctx, "Enrollment dropped at graph dead end",
			"enrollment_id", enrollment.ID, "node_id", node.ID)

		e.publish(ctx, enrollment, events.EnrollmentDropped{
			BaseEvent:     events.NewBaseEvent(events.EnrollmentDroppedEvent, enrollment.JourneyID, enrollment.ID, enrollment.CustomerID),
			DeadEndNodeID: node.ID,
		})

		return nil
	}

	next := edges[0]

	if branch != nil {
		wanted := models.BranchNo
		if *branch {
			wanted = models.BranchYes
		}

		matched := false

		for _, edge := range edges {
			if edge.Branch == wanted {
				next = edge
				matched = true

				break
			}
		}

		if !matched {
			e.logger.WarnContext(ctx, "No edge for condition branch, falling back to first edge",
				"enrollment_id", enrollment.ID, "node_id", node.ID, "branch", string(wanted))
		}
	}

	fromNodeID := node.ID
	enrollment.LeaveCurrentNode(now)
	enrollment.EnterNode(next.Target, now)

	if err := e.save(ctx, enrollment); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Enrollment advanced",
		"enrollment_id", enrollment.ID, "from", fromNodeID, "to", next.Target)

	e.publish(ctx, enrollment, events.EnrollmentAdvanced{
		BaseEvent:  events.NewBaseEvent(events.EnrollmentAdvancedEvent, enrollment.JourneyID, enrollment.ID, enrollment.CustomerID),
		FromNodeID: fromNodeID,
		ToNodeID:   next.Target,
	})

	return nil
}

func (e *Engine) save(ctx context.Context, enrollment *models.Enrollment) error {
	if err := e.persistence.SaveEnrollment(ctx, enrollment); err != nil {
		if errors.Is(err, models.ErrStaleEnrollment) {
			e.logger.WarnContext(ctx, "Lost enrollment write race, another worker advanced it",
				"enrollment_id", enrollment.ID, "version", enrollment.Version)
		}

		return fmt.Errorf("failed to save enrollment %s: %w", enrollment.ID, err)
	}

	return nil
}

func (e *Engine) publish(ctx context.Context, enrollment *models.Enrollment, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, enrollment.ID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "enrollment_id", enrollment.ID, "error", err)
	}
}

func (e *Engine) newID(ctx context.Context) string {
	id, err := uuid.NewV7()
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to generate V7 uuid", "error", err)

		return uuid.NewString()
	}

	return id.String()
}
