package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/loopmsg/journeyd/pkg/cache"
	"github.com/loopmsg/journeyd/pkg/engine"
	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/loopmsg/journeyd/pkg/persistence"
	"github.com/loopmsg/journeyd/pkg/validation"
)

type APIHandlers struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	validator   *validator.Validate
	journeys    *validation.Validator
	cache       *cache.Cache
}

func NewAPIHandlers(
	store persistence.Persistence,
	eng *engine.Engine,
	structValidator *validator.Validate,
	journeyValidator *validation.Validator,
	segmentCache *cache.Cache,
) *APIHandlers {
	return &APIHandlers{
		persistence: store,
		engine:      eng,
		validator:   structValidator,
		journeys:    journeyValidator,
		cache:       segmentCache,
	}
}

// Register mounts all routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Get("/journeys", h.GetJourneys)
	app.Post("/journeys", h.CreateJourney)
	app.Get("/journeys/:id", h.GetJourney)
	app.Patch("/journeys/:id/status", h.UpdateJourneyStatus)
	app.Delete("/journeys/:id", h.DeleteJourney)
	app.Post("/journeys/:id/enrollments", h.EnrollCustomer)

	app.Get("/enrollments/:id", h.GetEnrollment)
	app.Post("/enrollments/:id/process", h.ProcessEnrollment)
	app.Post("/enrollments/:id/engagement", h.RecordEngagement)

	app.Post("/segments", h.CreateSegment)
	app.Get("/segments/:id", h.GetSegment)
	app.Put("/segments/:id", h.UpdateSegment)

	app.Post("/events", h.ReceiveEvent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	detail := "ok"
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		detail = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"checkers":  fiber.Map{"persistence": detail},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetJourneys(c fiber.Ctx) error {
	journeys, err := h.persistence.Journeys(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"journeys": journeys, "total_count": len(journeys)})
}

func (h *APIHandlers) GetJourney(c fiber.Ctx) error {
	journey, err := h.persistence.JourneyByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(journey)
}

func (h *APIHandlers) CreateJourney(c fiber.Ctx) error {
	var req CreateJourneyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	journey := &models.Journey{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		Status:      models.JourneyStatusDraft,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		Settings:    req.Settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	warnings, err := h.journeys.ValidateJourney(journey)
	if err != nil {
		return handleEngineError(c, err)
	}

	if err := h.persistence.SaveJourney(c.Context(), journey); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(JourneyResponse{Journey: journey, Warnings: warnings})
}

func (h *APIHandlers) UpdateJourneyStatus(c fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	journey, err := h.persistence.JourneyByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	if err := h.journeys.ValidateStatusTransition(journey.Status, req.Status); err != nil {
		return handleEngineError(c, err)
	}

	// Activation re-validates the graph; a journey edited while in draft
	// must still be structurally sound before it starts enrolling.
	if req.Status == models.JourneyStatusActive {
		if _, err := h.journeys.ValidateJourney(journey); err != nil {
			return handleEngineError(c, err)
		}
	}

	journey.Status = req.Status
	journey.UpdatedAt = time.Now().UTC()

	if err := h.persistence.SaveJourney(c.Context(), journey); err != nil {
		return internalError(c, err)
	}

	return c.JSON(journey)
}

func (h *APIHandlers) DeleteJourney(c fiber.Ctx) error {
	if err := h.persistence.DeleteJourney(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnrollCustomer(c fiber.Ctx) error {
	var req EnrollRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	enrollment, err := h.engine.EnrollCustomer(c.Context(), c.Params("id"), req.CustomerID, nil)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(enrollment)
}

func (h *APIHandlers) GetEnrollment(c fiber.Ctx) error {
	enrollment, err := h.persistence.EnrollmentByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(enrollment)
}

func (h *APIHandlers) ProcessEnrollment(c fiber.Ctx) error {
	if err := h.engine.ProcessEnrollment(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	enrollment, err := h.persistence.EnrollmentByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(enrollment)
}

// RecordEngagement appends an engagement signal to the enrollment so
// condition nodes can branch on it.
func (h *APIHandlers) RecordEngagement(c fiber.Ctx) error {
	var req EngagementRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	enrollment, err := h.persistence.EnrollmentByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	enrollment.RecordAction(models.ActionRecord{
		Type:    req.Type,
		At:      time.Now().UTC(),
		Success: true,
	})

	if err := h.persistence.SaveEnrollment(c.Context(), enrollment); err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(enrollment)
}

func (h *APIHandlers) CreateSegment(c fiber.Ctx) error {
	var req SaveSegmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	segment := &models.CustomerSegment{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Groups: req.Groups,
	}

	if err := h.persistence.SaveSegment(c.Context(), segment); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(segment)
}

func (h *APIHandlers) GetSegment(c fiber.Ctx) error {
	segment, err := h.persistence.SegmentByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(segment)
}

// UpdateSegment replaces a segment definition and drops its cache entry
// so running trigger evaluations pick up the new rules.
func (h *APIHandlers) UpdateSegment(c fiber.Ctx) error {
	var req SaveSegmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	id := c.Params("id")
	if _, err := h.persistence.SegmentByID(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	segment := &models.CustomerSegment{
		ID:     id,
		Name:   req.Name,
		Groups: req.Groups,
	}

	if err := h.persistence.SaveSegment(c.Context(), segment); err != nil {
		return internalError(c, err)
	}

	if h.cache != nil {
		if err := h.cache.InvalidateSegment(c.Context(), id); err != nil {
			return internalError(c, err)
		}
	}

	return c.JSON(segment)
}

// ReceiveEvent offers an incoming commerce event to every active journey
// with an event-driven trigger.
func (h *APIHandlers) ReceiveEvent(c fiber.Ctx) error {
	var event models.IncomingEvent
	if err := c.Bind().JSON(&event); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if event.Name == "" || event.CustomerID == "" {
		return badRequest(c, "Event name and customer_id are required")
	}

	journeys, err := h.persistence.Journeys(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	enrolled := make([]*models.Enrollment, 0)

	for _, journey := range journeys {
		if journey.Status != models.JourneyStatusActive {
			continue
		}

		enrollment, err := h.engine.EnrollCustomer(c.Context(), journey.ID, event.CustomerID, &event)
		if err != nil {
			continue
		}

		enrolled = append(enrolled, enrollment)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"enrollments": enrolled,
		"count":       len(enrolled),
	})
}
