// Package messenger implements the protocol engine shared by the host
// and client design APIs: it owns one transport subscription, stamps
// routing metadata on outgoing events, filters incoming envelopes by
// protocol marker and source, and dispatches them to registered
// handlers.
package messenger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/pdsdk/pagedesigner/internal/protocol"
	"github.com/pdsdk/pagedesigner/internal/transport"
)

// Handler receives an accepted envelope.
type Handler func(env protocol.Envelope)

// Config describes a Messenger.
type Config struct {
	// Source is the role of this peer for the lifetime of the Messenger.
	Source protocol.Source
	// ID is this peer's stable identifier. A random UUID when empty.
	ID string
	// Transport carries raw messages to and from the remote peer.
	Transport transport.Transport
	// Logger receives filter and drop diagnostics. Nil disables them.
	Logger *log.Logger
}

// Messenger routes protocol envelopes between one transport and the
// handlers registered with On. It is safe for concurrent use.
type Messenger struct {
	source    protocol.Source
	id        string
	transport transport.Transport
	logger    *log.Logger

	connMu sync.Mutex // serialises Connect and Disconnect

	mu          sync.Mutex
	remoteID    string
	handlers    map[protocol.EventType][]*registration
	nextID      uint64
	generation  uint64
	connected   bool
	unsubscribe func()
}

type registration struct {
	id      uint64
	handler Handler
	removed atomic.Bool
}

var (
	errNoTransport   = errors.New("messenger: transport is required")
	errInvalidSource = errors.New("messenger: source must be host or client")
)

// New constructs a disconnected Messenger.
func New(cfg Config) (*Messenger, error) {
	if cfg.Transport == nil {
		return nil, errNoTransport
	}
	if !cfg.Source.Valid() {
		return nil, fmt.Errorf("%w: %q", errInvalidSource, cfg.Source)
	}
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &Messenger{
		source:    cfg.Source,
		id:        id,
		transport: cfg.Transport,
		logger:    cfg.Logger,
		handlers:  make(map[protocol.EventType][]*registration),
	}, nil
}

// ID returns this peer's identifier.
func (m *Messenger) ID() string { return m.id }

// Source returns this peer's role.
func (m *Messenger) Source() protocol.Source { return m.source }

// RemoteID returns the identified peer, or "" before a handshake.
func (m *Messenger) RemoteID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remoteID
}

// SetRemoteID records the identified peer.
func (m *Messenger) SetRemoteID(id string) {
	m.mu.Lock()
	m.remoteID = id
	m.mu.Unlock()
}

// Connected reports whether a transport subscription is live.
func (m *Messenger) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Connect subscribes to the transport. Calling Connect while connected
// releases the previous subscription first, so at most one is live.
func (m *Messenger) Connect() {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.mu.Lock()
	previous := m.unsubscribe
	m.unsubscribe = nil
	m.generation++
	generation := m.generation
	m.connected = true
	m.mu.Unlock()

	if previous != nil {
		previous()
	}

	unsubscribe := m.transport.Subscribe(func(data []byte) {
		m.receive(generation, data)
	})

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()
}

// Disconnect releases the transport subscription, removes every
// handler and forgets the remote peer. It is safe to call at any time.
func (m *Messenger) Disconnect() {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.generation++
	m.connected = false
	m.remoteID = ""
	for _, regs := range m.handlers {
		for _, reg := range regs {
			reg.removed.Store(true)
		}
	}
	m.handlers = make(map[protocol.EventType][]*registration)
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Messenger) receive(generation uint64, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		m.logf("[Messenger] %s %s ignored message: %v", m.source, m.id, err)
		return
	}
	if !env.AcceptedBy(m.source) {
		m.logf("[Messenger] %s %s filtered %s from source %q", m.source, m.id, env.EventType, env.Meta.Source)
		return
	}

	m.mu.Lock()
	if !m.connected || generation != m.generation {
		m.mu.Unlock()
		return
	}
	exact := append([]*registration(nil), m.handlers[env.EventType]...)
	wildcard := append([]*registration(nil), m.handlers[protocol.AnyEvent]...)
	m.mu.Unlock()

	for _, reg := range exact {
		if !reg.removed.Load() {
			reg.handler(env)
		}
	}
	for _, reg := range wildcard {
		if !reg.removed.Load() {
			reg.handler(env)
		}
	}
}

// On registers handler for eventType, or for every event when eventType
// is protocol.AnyEvent. Handlers fire in registration order. The
// returned function removes exactly this registration; extra calls are
// no-ops.
func (m *Messenger) On(eventType protocol.EventType, handler Handler) func() {
	if handler == nil {
		return func() {}
	}

	m.mu.Lock()
	m.nextID++
	reg := &registration{id: m.nextID, handler: handler}
	m.handlers[eventType] = append(m.handlers[eventType], reg)
	m.mu.Unlock()

	return func() { m.off(eventType, reg) }
}

func (m *Messenger) off(eventType protocol.EventType, reg *registration) {
	if !reg.removed.CompareAndSwap(false, true) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	regs := m.handlers[eventType]
	for i, r := range regs {
		if r.id == reg.id {
			m.handlers[eventType] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(m.handlers[eventType]) == 0 {
		delete(m.handlers, eventType)
	}
}

// EmitOption customises a single Emit call.
type EmitOption func(*emitConfig)

type emitConfig struct {
	requireRemoteID bool
}

// WithoutRemoteID sends the event even when no peer has been identified.
// Only the handshake initiation uses it.
func WithoutRemoteID() EmitOption {
	return func(cfg *emitConfig) {
		cfg.requireRemoteID = false
	}
}

// Emit posts eventType with payload. Unless WithoutRemoteID is given, an
// emit before the remote peer is identified is dropped silently and
// returns nil; dropped events are never queued.
func (m *Messenger) Emit(ctx context.Context, eventType protocol.EventType, payload any, opts ...EmitOption) error {
	cfg := emitConfig{requireRemoteID: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	remoteID := m.RemoteID()
	if cfg.requireRemoteID && remoteID == "" {
		m.logf("[Messenger] %s %s dropped %s: no remote peer yet", m.source, m.id, eventType)
		return nil
	}

	body, err := protocol.EncodePayload(payload)
	if err != nil {
		return fmt.Errorf("messenger: encode %s: %w", eventType, err)
	}

	meta := protocol.Meta{PDMessagingAPI: true, Source: m.source}
	if m.source == protocol.SourceClient {
		meta.ClientID, meta.HostID = m.id, remoteID
	} else {
		meta.HostID, meta.ClientID = m.id, remoteID
	}

	data, err := protocol.Encode(protocol.Envelope{EventType: eventType, Meta: meta, Payload: body})
	if err != nil {
		return fmt.Errorf("messenger: encode %s: %w", eventType, err)
	}
	if err := m.transport.Post(ctx, data); err != nil {
		return fmt.Errorf("messenger: post %s: %w", eventType, err)
	}
	return nil
}

// Once returns a channel that receives the next eventType envelope,
// after which the registration is removed. cancel removes it early.
func (m *Messenger) Once(eventType protocol.EventType) (next <-chan protocol.Envelope, cancel func()) {
	ch := make(chan protocol.Envelope, 1)
	var once sync.Once
	var unsubscribe func()
	var unsubMu sync.Mutex

	unsubMu.Lock()
	unsubscribe = m.On(eventType, func(env protocol.Envelope) {
		once.Do(func() {
			ch <- env
			unsubMu.Lock()
			u := unsubscribe
			unsubMu.Unlock()
			u()
		})
	})
	unsubMu.Unlock()

	return ch, unsubscribe
}

// Next blocks until the next eventType envelope arrives or ctx is done.
func (m *Messenger) Next(ctx context.Context, eventType protocol.EventType) (protocol.Envelope, error) {
	next, cancel := m.Once(eventType)
	defer cancel()

	select {
	case env := <-next:
		return env, nil
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}

func (m *Messenger) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
