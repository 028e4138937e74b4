package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var got []string
	bus.Subscribe(EventRankAchieved, func(_ context.Context, e Event) {
		got = append(got, "first:"+e.Payload["rank"].(string))
	})
	bus.Subscribe(EventRankAchieved, func(_ context.Context, e Event) {
		got = append(got, "second:"+e.Payload["rank"].(string))
	})

	bus.Publish(context.Background(), Event{
		Type:    EventRankAchieved,
		Payload: map[string]any{"rank": "builder"},
	})

	assert.Equal(t, []string{"first:builder", "second:builder"}, got)
}

func TestBusIgnoresUnsubscribedEvents(t *testing.T) {
	bus := NewBus(zap.NewNop())
	bus.Publish(context.Background(), Event{Type: EventPoolCalculated})
}

func TestBusIsolatesPanickingHandler(t *testing.T) {
	bus := NewBus(zap.NewNop())

	called := false
	bus.Subscribe(EventPoolDistributed, func(context.Context, Event) { panic("boom") })
	bus.Subscribe(EventPoolDistributed, func(context.Context, Event) { called = true })

	bus.Publish(context.Background(), Event{Type: EventPoolDistributed})
	assert.True(t, called)
}
