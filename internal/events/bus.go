package events

import (
	"context"
	"sync"
)

// Handler receives a published event.
type Handler func(ctx context.Context, ev Event) error

// Bus is an in-process Publisher. Handlers run synchronously in Publish,
// in subscription order, so a caller observes every delivery before
// Publish returns.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	closed      bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers h for topic.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], h)
}

// Publish delivers ev to every handler of topic. Delivery continues past a
// failing handler; the first handler error is returned.
func (b *Bus) Publish(ctx context.Context, topic string, ev Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]Handler, len(b.subscribers[topic]))
	copy(handlers, b.subscribers[topic])
	b.mu.RUnlock()

	var first error
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close drops all subscribers. Later publishes fail with ErrClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string][]Handler)
	b.closed = true
	return nil
}

// Recorder is a Handler target that keeps every event it sees.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle appends ev.
func (r *Recorder) Handle(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
