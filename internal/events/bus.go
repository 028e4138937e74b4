// Package events carries domain notifications to in-process subscribers.
// The engine's only obligation is the ledger trail; the bus lets the
// notification layer observe payouts and rank changes without coupling.
package events

import (
	"context"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	EventCommissionCalculated = "commission.calculated"
	EventRankAchieved         = "rank.achieved"
	EventRankAssigned         = "rank.assigned"
	EventMemberActivated      = "member.activated"
	EventPoolCalculated       = "pool.calculated"
	EventPoolDistributed      = "pool.distributed"
)

// Event is one domain notification.
type Event struct {
	Type    string
	Payload map[string]any
}

type Handler func(ctx context.Context, event Event)

// Bus is a synchronous in-process event bus. It is provided through fx so
// dependencies stay explicit; a panicking handler is isolated and logged.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *zap.Logger
}

var Module = fx.Module("events",
	fx.Provide(NewBus),
)

func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		log:      log.Named("events"),
	}
}

func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.dispatch(ctx, handler, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("event", event.Type),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}
