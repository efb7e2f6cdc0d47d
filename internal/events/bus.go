// Package events provides the in-process bus that carries queue mutations to
// real-time subscribers. Delivery is at-most-once: a subscriber whose buffer
// is full misses the event rather than blocking the publisher.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"trustlabel/internal/queue"
)

// Type identifies the kind of queue mutation an event describes.
type Type string

const (
	EntryCreated  Type = "queue.entry.created"
	EntryAssigned Type = "queue.entry.assigned"
	EntryUpdated  Type = "queue.entry.updated"
)

// Event is an immutable record of one committed queue mutation.
type Event struct {
	Type           Type
	Entry          *queue.Entry
	PreviousStatus queue.Status
	At             time.Time
}

// Bus fans events out to channel subscribers. Publish never blocks.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	closed  bool
	dropped atomic.Int64
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber with the given buffer size and returns
// its channel plus a cancel function. The channel is closed on cancel or when
// the bus shuts down.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber that has buffer capacity.
// Subscribers that cannot keep up miss the event.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events discarded due to full subscriber buffers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
