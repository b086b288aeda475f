package event

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 100

// InMemoryBus delivers events to every subscriber without ever blocking the
// publisher. A full subscriber loses the event.
type InMemoryBus struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]chan Event
	closed  bool
	dropped atomic.Uint64
}

func NewBus() *InMemoryBus {
	return &InMemoryBus{subs: make(map[uint64]chan Event)}
}

func (b *InMemoryBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
			slog.Warn("event dropped", "subscriber", id, "type", e.Type, "event_id", e.ID)
		}
	}
}

// Subscribe returns a buffered feed and its cancel func. Cancelling twice, or
// after Close, is a no-op.
func (b *InMemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	b.nextID++
	id := b.nextID
	b.subs[id] = ch

	return ch, func() { b.remove(id) }
}

// Dropped counts deliveries lost to full subscribers.
func (b *InMemoryBus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

func (b *InMemoryBus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}
