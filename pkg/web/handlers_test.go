package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopmsg/journeyd/pkg/cache"
	"github.com/loopmsg/journeyd/pkg/engine"
	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/loopmsg/journeyd/pkg/persistence/file"
	"github.com/loopmsg/journeyd/pkg/providers/commerce"
	"github.com/loopmsg/journeyd/pkg/segment"
	"github.com/loopmsg/journeyd/pkg/trigger"
	"github.com/loopmsg/journeyd/pkg/validation"
	"github.com/loopmsg/journeyd/pkg/web"
)

type fakeCommerce struct {
	customers map[string]*models.Customer
}

func (f *fakeCommerce) GetCustomer(_ context.Context, customerID string) (*models.Customer, error) {
	customer, ok := f.customers[customerID]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", customerID, models.ErrNotFound)
	}

	return customer, nil
}

func (f *fakeCommerce) ListCustomers(_ context.Context) ([]*models.Customer, error) {
	customers := make([]*models.Customer, 0, len(f.customers))
	for _, customer := range f.customers {
		customers = append(customers, customer)
	}

	return customers, nil
}

func (f *fakeCommerce) GetCustomerOrders(_ context.Context, _ string) ([]*models.Order, error) {
	return nil, nil
}

func (f *fakeCommerce) GetAbandonedCheckouts(_ context.Context, _ commerce.CheckoutFilter) ([]*models.Checkout, error) {
	return nil, nil
}

type fakeMessaging struct{}

func (fakeMessaging) SendFreeForm(_ context.Context, _, _ string) (string, error) {
	return "wamid.1", nil
}

func (fakeMessaging) SendTemplate(_ context.Context, _, _, _ string, _ map[string]string) (string, error) {
	return "wamid.2", nil
}

type fixture struct {
	app         *fiber.App
	persistence *file.Persistence
	commerce    *fakeCommerce
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := file.NewPersistence(t.TempDir())
	commerceProvider := &fakeCommerce{customers: map[string]*models.Customer{
		"cust-1": {ID: "cust-1", Phone: "+550000000001"},
	}}

	segmentCache := cache.NewCache(nil, logger)
	triggers := trigger.NewEvaluator(store, segment.NewEvaluator(logger), commerceProvider, segmentCache, logger)

	eng := engine.New(engine.Config{
		Persistence: store,
		Commerce:    commerceProvider,
		Messaging:   fakeMessaging{},
		Triggers:    triggers,
		Cache:       segmentCache,
		Logger:      logger,
		Sleeper:     func(context.Context, time.Duration) {},
	})

	handlers := web.NewAPIHandlers(
		store,
		eng,
		validator.New(validator.WithRequiredStructEnabled()),
		validation.NewValidator(),
		segmentCache,
	)

	app := fiber.New()
	handlers.Register(app)

	return &fixture{app: app, persistence: store, commerce: commerceProvider}
}

func (f *fixture) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func manualJourneyRequest() map[string]any {
	return map[string]any{
		"name": "Welcome series",
		"nodes": []map[string]any{
			{"id": "t1", "kind": "trigger", "trigger": map[string]any{"kind": "manual"}},
			{"id": "g1", "kind": "goal"},
		},
		"edges": []map[string]any{
			{"id": "e1", "source": "t1", "target": "g1"},
		},
	}
}

func (f *fixture) createActiveJourney(t *testing.T) string {
	t.Helper()

	resp := f.request(t, http.MethodPost, "/journeys", manualJourneyRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[models.Journey](t, resp)

	resp = f.request(t, http.MethodPatch, "/journeys/"+created.ID+"/status", map[string]string{"status": "active"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return created.ID
}

func TestCreateJourneyStartsAsDraft(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/journeys", manualJourneyRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	journey := decode[models.Journey](t, resp)
	assert.NotEmpty(t, journey.ID)
	assert.Equal(t, models.JourneyStatusDraft, journey.Status)
}

func TestCreateJourneyRejectsInvalidBody(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/journeys", map[string]any{"name": "ab"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateJourneyRejectsTwoTriggers(t *testing.T) {
	f := newFixture(t)

	body := manualJourneyRequest()
	body["nodes"] = []map[string]any{
		{"id": "t1", "kind": "trigger", "trigger": map[string]any{"kind": "manual"}},
		{"id": "t2", "kind": "trigger", "trigger": map[string]any{"kind": "manual"}},
	}

	resp := f.request(t, http.MethodPost, "/journeys", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateJourneyReturnsWarnings(t *testing.T) {
	f := newFixture(t)

	body := map[string]any{
		"name": "Branchy",
		"nodes": []map[string]any{
			{"id": "t1", "kind": "trigger", "trigger": map[string]any{"kind": "manual"}},
			{"id": "c1", "kind": "condition", "condition": map[string]any{"kind": "has_tag", "tag": "vip"}},
			{"id": "g1", "kind": "goal"},
		},
		"edges": []map[string]any{
			{"id": "e1", "source": "t1", "target": "c1"},
			{"id": "e2", "source": "c1", "target": "g1", "branch": "yes"},
		},
	}

	resp := f.request(t, http.MethodPost, "/journeys", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[web.JourneyResponse](t, resp)
	require.Len(t, created.Warnings, 1)
	assert.Contains(t, created.Warnings[0], "c1")
}

func TestGetJourneys(t *testing.T) {
	f := newFixture(t)

	f.request(t, http.MethodPost, "/journeys", manualJourneyRequest())

	resp := f.request(t, http.MethodGet, "/journeys", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[map[string]any](t, resp)
	assert.EqualValues(t, 1, list["total_count"])
}

func TestGetJourneyNotFound(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodGet, "/journeys/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateJourneyStatusRejectsIllegalTransition(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/journeys", manualJourneyRequest())
	created := decode[models.Journey](t, resp)

	// Draft journeys cannot pause; they were never running.
	resp = f.request(t, http.MethodPatch, "/journeys/"+created.ID+"/status", map[string]string{"status": "paused"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteJourney(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/journeys", manualJourneyRequest())
	created := decode[models.Journey](t, resp)

	resp = f.request(t, http.MethodDelete, "/journeys/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.request(t, http.MethodGet, "/journeys/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEnrollCustomer(t *testing.T) {
	f := newFixture(t)
	journeyID := f.createActiveJourney(t)

	resp := f.request(t, http.MethodPost, "/journeys/"+journeyID+"/enrollments", map[string]string{"customer_id": "cust-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	enrollment := decode[models.Enrollment](t, resp)
	assert.Equal(t, journeyID, enrollment.JourneyID)
	assert.Equal(t, "cust-1", enrollment.CustomerID)
}

func TestEnrollCustomerConflictsWhenBlocked(t *testing.T) {
	f := newFixture(t)
	journeyID := f.createActiveJourney(t)

	resp := f.request(t, http.MethodPost, "/journeys/"+journeyID+"/enrollments", map[string]string{"customer_id": "cust-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Entry frequency defaults to once per customer.
	resp = f.request(t, http.MethodPost, "/journeys/"+journeyID+"/enrollments", map[string]string{"customer_id": "cust-1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestProcessEnrollmentAdvances(t *testing.T) {
	f := newFixture(t)
	journeyID := f.createActiveJourney(t)

	resp := f.request(t, http.MethodPost, "/journeys/"+journeyID+"/enrollments", map[string]string{"customer_id": "cust-1"})
	enrollment := decode[models.Enrollment](t, resp)

	// One tick per call: trigger to goal, then goal to completed.
	resp = f.request(t, http.MethodPost, "/enrollments/"+enrollment.ID+"/process", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	advanced := decode[models.Enrollment](t, resp)
	require.NotNil(t, advanced.CurrentNodeID)
	require.Equal(t, "g1", *advanced.CurrentNodeID)

	resp = f.request(t, http.MethodPost, "/enrollments/"+enrollment.ID+"/process", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	processed := decode[models.Enrollment](t, resp)
	assert.Equal(t, models.EnrollmentStatusCompleted, processed.Status)
}

func TestRecordEngagement(t *testing.T) {
	f := newFixture(t)
	journeyID := f.createActiveJourney(t)

	resp := f.request(t, http.MethodPost, "/journeys/"+journeyID+"/enrollments", map[string]string{"customer_id": "cust-1"})
	enrollment := decode[models.Enrollment](t, resp)

	resp = f.request(t, http.MethodPost, "/enrollments/"+enrollment.ID+"/engagement", map[string]string{"type": "message_opened"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	updated := decode[models.Enrollment](t, resp)
	require.Len(t, updated.Actions, 1)
	assert.Equal(t, models.ActionTypeMessageOpened, updated.Actions[0].Type)
}

func TestRecordEngagementRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	journeyID := f.createActiveJourney(t)

	resp := f.request(t, http.MethodPost, "/journeys/"+journeyID+"/enrollments", map[string]string{"customer_id": "cust-1"})
	enrollment := decode[models.Enrollment](t, resp)

	resp = f.request(t, http.MethodPost, "/enrollments/"+enrollment.ID+"/engagement", map[string]string{"type": "message_bounced"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReceiveEventEnrollsMatchingJourneys(t *testing.T) {
	f := newFixture(t)

	body := manualJourneyRequest()
	body["nodes"] = []map[string]any{
		{"id": "t1", "kind": "trigger", "trigger": map[string]any{"kind": "order_placed"}},
		{"id": "g1", "kind": "goal"},
	}

	resp := f.request(t, http.MethodPost, "/journeys", body)
	created := decode[models.Journey](t, resp)
	f.request(t, http.MethodPatch, "/journeys/"+created.ID+"/status", map[string]string{"status": "active"})

	resp = f.request(t, http.MethodPost, "/events", map[string]any{
		"name":        "order.created",
		"customer_id": "cust-1",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	result := decode[map[string]any](t, resp)
	assert.EqualValues(t, 1, result["count"])
}

func TestReceiveEventSkipsNonFiringTriggers(t *testing.T) {
	f := newFixture(t)
	f.createActiveJourney(t)

	journeyID := f.createSegmentJourney(t)

	resp := f.request(t, http.MethodPost, "/events", map[string]any{
		"name":        "customer.tag_added",
		"customer_id": "cust-1",
		"tag":         "vip",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	enrollments, err := f.persistence.EnrollmentsByJourneyAndCustomer(context.Background(), journeyID, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, enrollments)
}

func (f *fixture) createSegmentJourney(t *testing.T) string {
	t.Helper()

	require.NoError(t, f.persistence.SaveSegment(context.Background(), &models.CustomerSegment{
		ID:   "seg-1",
		Name: "Spenders",
		Groups: []models.ConditionGroup{{
			Operator: models.GroupOperatorAnd,
			Conditions: []models.Condition{
				{Field: "total_spent", Operator: models.OperatorGreaterThan, Value: 1000},
			},
		}},
	}))

	body := manualJourneyRequest()
	body["nodes"] = []map[string]any{
		{"id": "t1", "kind": "trigger", "trigger": map[string]any{"kind": "segment", "segment_id": "seg-1"}},
		{"id": "g1", "kind": "goal"},
	}

	resp := f.request(t, http.MethodPost, "/journeys", body)
	created := decode[models.Journey](t, resp)
	f.request(t, http.MethodPatch, "/journeys/"+created.ID+"/status", map[string]string{"status": "active"})

	return created.ID
}

func TestCreateSegment(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/segments", map[string]any{
		"name": "VIPs",
		"groups": []map[string]any{{
			"operator": "and",
			"conditions": []map[string]any{
				{"field": "tags", "operator": "contains", "value": "vip"},
			},
		}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[models.CustomerSegment](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "VIPs", created.Name)
}

func TestCreateSegmentRequiresName(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/segments", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSegmentNotFound(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodGet, "/segments/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateSegmentReplacesDefinition(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/segments", map[string]any{"name": "VIPs"})
	created := decode[models.CustomerSegment](t, resp)

	resp = f.request(t, http.MethodPut, "/segments/"+created.ID, map[string]any{
		"name": "Big spenders",
		"groups": []map[string]any{{
			"operator": "and",
			"conditions": []map[string]any{
				{"field": "total_spent", "operator": "greater_than", "value": 500},
			},
		}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.request(t, http.MethodGet, "/segments/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := decode[models.CustomerSegment](t, resp)
	assert.Equal(t, "Big spenders", updated.Name)
	require.Len(t, updated.Groups, 1)
	assert.Equal(t, "total_spent", updated.Groups[0].Conditions[0].Field)
}

func TestUpdateSegmentNotFound(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPut, "/segments/nope", map[string]any{"name": "VIPs"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
