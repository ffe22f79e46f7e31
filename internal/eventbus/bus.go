// Package eventbus provides an in-memory broadcast transport. Every
// message posted on a Bus is delivered synchronously to every
// subscriber, including the poster's own subscription, so peers sharing
// a bus rely on source discrimination to ignore their own messages.
package eventbus

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/pdsdk/pagedesigner/internal/transport"
)

var _ transport.Transport = (*Bus)(nil)

// Bus fans raw messages out to subscribers in subscription order.
type Bus struct {
	logger      *log.Logger
	mu          sync.RWMutex
	subscribers []*subscription
	nextID      uint64
	closed      bool

	published atomic.Uint64
	delivered atomic.Uint64
}

type subscription struct {
	id      uint64
	handler transport.Handler
	removed atomic.Bool
}

// BusOption customises bus behaviour.
type BusOption func(*Bus)

// WithLogger sets the logger used for delivery diagnostics.
func WithLogger(logger *log.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New constructs an empty bus.
func New(opts ...BusOption) *Bus {
	bus := &Bus{}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Post delivers data to every current subscriber before returning.
// Subscribers added or removed by a handler during delivery take effect
// from the next Post.
func (b *Bus) Post(ctx context.Context, data []byte) error {
	if b == nil {
		return transport.ErrClosed
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return transport.ErrClosed
	}
	subs := make([]*subscription, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	b.published.Add(1)
	msg := append([]byte(nil), data...)

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sub.removed.Load() {
			continue
		}
		sub.handler(msg)
		b.delivered.Add(1)
	}
	return nil
}

// Subscribe registers handler. The returned function removes exactly
// this registration and may be called any number of times.
func (b *Bus) Subscribe(handler transport.Handler) func() {
	if b == nil || handler == nil {
		return func() {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler}
	b.subscribers = append(b.subscribers, sub)

	return func() { b.remove(sub) }
}

func (b *Bus) remove(sub *subscription) {
	if !sub.removed.CompareAndSwap(false, true) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s.id == sub.id {
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			break
		}
	}
	if b.logger != nil {
		b.logger.Printf("[eventbus] subscription #%d removed, %d remaining", sub.id, len(b.subscribers))
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Metrics reports delivery counters.
type Metrics struct {
	PublishTotal   uint64
	DeliveredTotal uint64
}

// Metrics returns a snapshot of the bus counters.
func (b *Bus) Metrics() Metrics {
	if b == nil {
		return Metrics{}
	}
	return Metrics{
		PublishTotal:   b.published.Load(),
		DeliveredTotal: b.delivered.Load(),
	}
}

// Shutdown removes all subscriptions. Later Posts return
// transport.ErrClosed and later Subscribes are no-ops.
// If b is nil the call is a no-op.
func (b *Bus) Shutdown() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		sub.removed.Store(true)
	}
	b.subscribers = nil
	b.closed = true
}
