package messenger

import (
	"context"

	"github.com/pdsdk/pagedesigner/internal/protocol"
)

// Emitter sends one event type with a typed payload.
type Emitter[T any] func(ctx context.Context, payload T) error

// ToEmitter binds def to m. The named send methods of the design APIs
// are built from it.
func ToEmitter[T any](m *Messenger, def protocol.EventDef[T], opts ...EmitOption) Emitter[T] {
	eventType := def.Type()
	return func(ctx context.Context, payload T) error {
		return m.Emit(ctx, eventType, payload, opts...)
	}
}

// Subscriber is anything that can register raw envelope handlers.
type Subscriber interface {
	On(eventType protocol.EventType, handler Handler) func()
}

// Subscribe registers a handler that receives def's payload decoded as
// T. Envelopes whose payload does not decode are skipped.
func Subscribe[T any](s Subscriber, def protocol.EventDef[T], fn func(T)) func() {
	return s.On(def.Type(), func(env protocol.Envelope) {
		payload, err := def.Payload(env)
		if err != nil {
			if m, ok := s.(*Messenger); ok {
				m.logf("[Messenger] %s %s skipped %s: %v", m.source, m.id, def.Type(), err)
			}
			return
		}
		fn(payload)
	})
}

// NextOf blocks until the next def event arrives and returns its payload.
func NextOf[T any](ctx context.Context, m *Messenger, def protocol.EventDef[T]) (T, error) {
	env, err := m.Next(ctx, def.Type())
	if err != nil {
		var zero T
		return zero, err
	}
	return def.Payload(env)
}
