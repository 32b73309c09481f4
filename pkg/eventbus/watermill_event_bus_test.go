package eventbus_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaTc "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/loopmsg/journeyd/pkg/channels/gochannel"
	"github.com/loopmsg/journeyd/pkg/channels/kafka"
	"github.com/loopmsg/journeyd/pkg/eventbus"
	"github.com/loopmsg/journeyd/pkg/events"
)

func collectEvents(t *testing.T, bus eventbus.EventBus, eventType events.EventType) (<-chan any, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan any, 10)

	err := bus.Handle(eventType, func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	return received, cancel
}

func TestWatermillEventBusRoundTrip(t *testing.T) {
	logger := watermill.NopLogger{}

	pub, sub, err := gochannel.CreateTestChannel(logger)
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	received, cancel := collectEvents(t, bus, events.EnrollmentAdvancedEvent)

	defer cancel()

	event := events.EnrollmentAdvanced{
		BaseEvent:  events.NewBaseEvent(events.EnrollmentAdvancedEvent, "jrn-1", "enr-1", "cust-1"),
		FromNodeID: "t1",
		ToNodeID:   "a1",
	}

	require.NoError(t, bus.Publish(context.Background(), "enr-1", event))

	select {
	case got := <-received:
		advanced, ok := got.(*events.EnrollmentAdvanced)
		require.True(t, ok)
		assert.Equal(t, "jrn-1", advanced.JourneyID)
		assert.Equal(t, "t1", advanced.FromNodeID)
		assert.Equal(t, "a1", advanced.ToNodeID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBusIgnoresUnhandledTypes(t *testing.T) {
	logger := watermill.NopLogger{}

	pub, sub, err := gochannel.CreateTestChannel(logger)
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	received, cancel := collectEvents(t, bus, events.MessageSentEvent)

	defer cancel()

	dropped := events.EnrollmentDropped{
		BaseEvent:     events.NewBaseEvent(events.EnrollmentDroppedEvent, "jrn-1", "enr-1", "cust-1"),
		DeadEndNodeID: "a1",
	}

	require.NoError(t, bus.Publish(context.Background(), "enr-1", dropped))

	select {
	case got := <-received:
		t.Fatalf("unexpected event delivered: %v", got)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatermillEventBusOverKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx, cancelCtx := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancelCtx()

	container, err := kafkaTc.Run(ctx, "confluentinc/confluent-local:7.7.0", testcontainers.WithEnv(map[string]string{
		"KAFKA_CREATE_TOPICS": "true",
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	require.NoError(t, os.Setenv("KAFKA_BROKERS", brokers[0]))

	pub, sub, err := kafka.CreateChannel(watermill.NopLogger{}, "eventbus-test")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	received, cancel := collectEvents(t, bus, events.MessageSentEvent)

	defer cancel()

	event := events.MessageSent{
		BaseEvent:         events.NewBaseEvent(events.MessageSentEvent, "jrn-1", "enr-1", "cust-1"),
		NodeID:            "a1",
		Mode:              "template",
		ProviderMessageID: "wamid.42",
	}

	require.NoError(t, bus.Publish(ctx, "enr-1", event))

	select {
	case got := <-received:
		sent, ok := got.(*events.MessageSent)
		require.True(t, ok)
		assert.Equal(t, "wamid.42", sent.ProviderMessageID)
		assert.Equal(t, "a1", sent.NodeID)
	case <-time.After(60 * time.Second):
		t.Fatal("timed out waiting for event over kafka")
	}
}
