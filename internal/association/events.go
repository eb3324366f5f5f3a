package association

import (
	"context"
	"sync"
)

// ChangedEvent is emitted after any save or delete of a record. The result
// cache consumes it for invalidation; other subscribers (audit, outbound
// webhooks) can attach the same way.
type ChangedEvent struct {
	StoreID       string
	AssociationID string
}

// Publisher is the outbound side of change notification.
type Publisher interface {
	Publish(ctx context.Context, event ChangedEvent)
}

// Subscriber receives change events. Handlers must be fast and must not
// block: publication runs synchronously on the mutating caller's goroutine.
type Subscriber func(event ChangedEvent)

// Bus is a minimal in-process fan-out of change events. Subscription happens
// during startup wiring; publication is concurrency-safe afterwards.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

var _ Publisher = (*Bus)(nil)

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe attaches a handler to all future events.
func (b *Bus) Subscribe(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Publish delivers the event to every subscriber in subscription order.
func (b *Bus) Publish(_ context.Context, event ChangedEvent) {
	b.mu.RLock()
	subscribers := b.subscribers
	b.mu.RUnlock()

	for _, fn := range subscribers {
		fn(event)
	}
}
