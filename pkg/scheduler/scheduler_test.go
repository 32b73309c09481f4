package scheduler_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopmsg/journeyd/pkg/cache"
	"github.com/loopmsg/journeyd/pkg/engine"
	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/loopmsg/journeyd/pkg/persistence/file"
	"github.com/loopmsg/journeyd/pkg/providers/commerce"
	"github.com/loopmsg/journeyd/pkg/scheduler"
	"github.com/loopmsg/journeyd/pkg/segment"
	"github.com/loopmsg/journeyd/pkg/trigger"
)

type fakeCommerce struct {
	customers []*models.Customer
}

func (f *fakeCommerce) GetCustomer(_ context.Context, customerID string) (*models.Customer, error) {
	for _, customer := range f.customers {
		if customer.ID == customerID {
			return customer, nil
		}
	}

	return nil, models.ErrNotFound
}

func (f *fakeCommerce) ListCustomers(_ context.Context) ([]*models.Customer, error) {
	return f.customers, nil
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
	scheduler   *scheduler.Scheduler
	engine      *engine.Engine
	persistence *file.Persistence
	commerce    *fakeCommerce
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := file.NewPersistence(t.TempDir())
	commerceProvider := &fakeCommerce{}

	f := &fixture{
		persistence: store,
		commerce:    commerceProvider,
		now:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	clock := func() time.Time { return f.now }

	triggers := trigger.NewEvaluator(store, segment.NewEvaluator(logger), commerceProvider, cache.NewCache(nil, logger), logger).
		WithClock(clock)

	f.engine = engine.New(engine.Config{
		Persistence: store,
		Commerce:    commerceProvider,
		Messaging:   fakeMessaging{},
		Triggers:    triggers,
		Logger:      logger,
		Sleeper:     func(context.Context, time.Duration) {},
		Now:         clock,
	})

	f.scheduler = scheduler.New(scheduler.Config{
		Engine:      f.engine,
		Persistence: store,
		Commerce:    commerceProvider,
		Logger:      logger,
		Workers:     4,
		Now:         clock,
	})

	return f
}

func (f *fixture) runPass(t *testing.T) {
	t.Helper()

	f.scheduler.RunPass(context.Background())
	require.NoError(t, f.scheduler.Stop(context.Background()))
}

func goalJourney() *models.Journey {
	return &models.Journey{
		ID:     "jrn-1",
		Name:   "Scan journey",
		Status: models.JourneyStatusActive,
		Nodes: []*models.JourneyNode{
			{ID: "t1", Kind: models.NodeKindTrigger, Trigger: &models.TriggerConfig{Kind: models.TriggerKindManual}},
			{ID: "g1", Kind: models.NodeKindGoal},
		},
		Edges: []*models.Edge{{ID: "e1", Source: "t1", Target: "g1"}},
		Settings: models.JourneySettings{
			Entry: models.EntrySettings{Frequency: models.EntryFrequencyOnce},
		},
	}
}

func TestRunPassTicksActiveEnrollments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.commerce.customers = []*models.Customer{{ID: "cust-1", Phone: "+550000000001"}}
	require.NoError(t, f.persistence.SaveJourney(ctx, goalJourney()))

	enrollment, err := f.engine.EnrollCustomer(ctx, "jrn-1", "cust-1", nil)
	require.NoError(t, err)

	// Enrollment sits on the trigger; two passes walk it to the goal.
	f.runPass(t)
	f.runPass(t)

	stored, err := f.persistence.EnrollmentByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, stored.Status)
}

func TestRunPassLeavesTerminalEnrollmentsAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.commerce.customers = []*models.Customer{{ID: "cust-1", Phone: "+550000000001"}}
	require.NoError(t, f.persistence.SaveJourney(ctx, goalJourney()))

	enrollment, err := f.engine.EnrollCustomer(ctx, "jrn-1", "cust-1", nil)
	require.NoError(t, err)

	f.runPass(t)
	f.runPass(t)

	done, err := f.persistence.EnrollmentByID(ctx, enrollment.ID)
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusCompleted, done.Status)

	f.runPass(t)

	after, err := f.persistence.EnrollmentByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, done, after)
}

func TestRunPassScansDueSchedules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	segmentDef := &models.CustomerSegment{
		ID:   "seg-1",
		Name: "Big spenders",
		Groups: []models.ConditionGroup{{
			Operator: models.GroupOperatorAnd,
			Conditions: []models.Condition{
				{Field: "total_spent", Operator: models.OperatorGreaterThan, Value: 100},
			},
		}},
	}
	require.NoError(t, f.persistence.SaveSegment(ctx, segmentDef))

	journey := goalJourney()
	journey.Nodes[0].Trigger = &models.TriggerConfig{Kind: models.TriggerKindSegment, SegmentID: "seg-1"}
	require.NoError(t, f.persistence.SaveJourney(ctx, journey))

	f.commerce.customers = []*models.Customer{
		{ID: "cust-1", Phone: "+550000000001", TotalSpent: 500},
		{ID: "cust-2", Phone: "+550000000002", TotalSpent: 10},
	}

	schedule, err := models.NewSchedule("sch-1", "jrn-1", "*/5 * * * *")
	require.NoError(t, err)
	schedule.NextDueAt = f.now.Add(-time.Minute)
	require.NoError(t, f.persistence.SaveSchedule(ctx, schedule))

	f.runPass(t)

	matched, err := f.persistence.EnrollmentsByJourneyAndCustomer(ctx, "jrn-1", "cust-1")
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	unmatched, err := f.persistence.EnrollmentsByJourneyAndCustomer(ctx, "jrn-1", "cust-2")
	require.NoError(t, err)
	assert.Empty(t, unmatched)

	// The schedule moved past its due time and will not refire this pass.
	due, err := f.persistence.DueSchedules(ctx, f.now)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestRunPassOncePerCustomerAcrossScans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.persistence.SaveSegment(ctx, &models.CustomerSegment{ID: "seg-1", Name: "Everyone"}))

	journey := goalJourney()
	journey.Nodes[0].Trigger = &models.TriggerConfig{Kind: models.TriggerKindSegment, SegmentID: "seg-1"}
	require.NoError(t, f.persistence.SaveJourney(ctx, journey))

	f.commerce.customers = []*models.Customer{{ID: "cust-1", Phone: "+550000000001"}}

	for range 3 {
		schedule, err := models.NewSchedule("sch-1", "jrn-1", "*/5 * * * *")
		require.NoError(t, err)
		schedule.NextDueAt = f.now.Add(-time.Minute)
		require.NoError(t, f.persistence.SaveSchedule(ctx, schedule))

		f.runPass(t)
	}

	enrollments, err := f.persistence.EnrollmentsByJourneyAndCustomer(ctx, "jrn-1", "cust-1")
	require.NoError(t, err)
	assert.Len(t, enrollments, 1)
}
