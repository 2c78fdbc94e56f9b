package bus

import (
	"log/slog"
	"sync"

	"github.com/couchclub/couchclub-sync/internal/id"
)

// subscriptionBuffer is the per-subscriber channel depth. Slow subscribers
// drop events rather than stall the publisher.
const subscriptionBuffer = 64

// Subscription is one observer's feed of events. Receive from C; call Cancel
// when done. C is closed after Cancel returns.
type Subscription struct {
	C      <-chan Event
	id     string
	ch     chan Event
	cancel func(subID string)
	once   sync.Once
}

// Cancel detaches the subscription from the bus and closes C.
func (s *Subscription) Cancel() {
	s.once.Do(func() { s.cancel(s.id) })
}

// Bus is a typed publish/subscribe hub. All methods are safe for concurrent
// use. A zero Bus is not usable; use New.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// New creates a Bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe registers a new observer for all event types. Filtering by Type
// is the observer's job; the event set is small and observers are few.
func (b *Bus) Subscribe() *Subscription {
	ch := make(chan Event, subscriptionBuffer)
	sub := &Subscription{
		C:      ch,
		id:     id.MustGenerate("sub"),
		ch:     ch,
		cancel: b.remove,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers the event to every subscriber. Delivery is non-blocking:
// a subscriber whose buffer is full misses the event and a warning is logged.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn("dropped event for slow subscriber",
				slog.String("subscription_id", sub.id),
				slog.String("event_type", string(event.Type)))
		}
	}
}

// Close cancels every subscription. Publish and Subscribe become no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for subID, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, subID)
	}
}

func (b *Bus) remove(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[subID]
	if !ok {
		return
	}
	delete(b.subs, subID)
	close(sub.ch)
}
