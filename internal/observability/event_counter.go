package observability

import (
	"sync"
	"sync/atomic"

	"github.com/pdsdk/pagedesigner/internal/protocol"
)

// EventCounter counts relayed envelopes grouped by event type.
type EventCounter struct {
	counts  sync.Map // map[protocol.EventType]*atomic.Uint64
	invalid atomic.Uint64
}

// NewEventCounter creates a counter that can be registered as a relay frame observer.
func NewEventCounter() *EventCounter {
	return &EventCounter{}
}

// Observe matches ws.WithFrameObserver. Frames that do not decode as a
// designer envelope, or lack the protocol marker, are counted as invalid.
func (c *EventCounter) Observe(_ string, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil || !env.Meta.PDMessagingAPI || !env.Meta.Source.Valid() {
		c.invalid.Add(1)
		return
	}
	c.counterFor(env.EventType).Add(1)
}

// Invalid returns the number of frames that failed to decode.
func (c *EventCounter) Invalid() uint64 {
	return c.invalid.Load()
}

// Snapshot exposes a stable copy of the current counts.
func (c *EventCounter) Snapshot() map[protocol.EventType]uint64 {
	out := make(map[protocol.EventType]uint64)
	c.counts.Range(func(key, value any) bool {
		eventType, ok := key.(protocol.EventType)
		if !ok {
			return true
		}
		counter, ok := value.(*atomic.Uint64)
		if !ok || counter == nil {
			return true
		}
		out[eventType] = counter.Load()
		return true
	})
	return out
}

func (c *EventCounter) counterFor(eventType protocol.EventType) *atomic.Uint64 {
	if counter, ok := c.counts.Load(eventType); ok {
		return counter.(*atomic.Uint64)
	}
	actual, _ := c.counts.LoadOrStore(eventType, &atomic.Uint64{})
	return actual.(*atomic.Uint64)
}
