package design

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/pdsdk/pagedesigner/internal/messenger"
	"github.com/pdsdk/pagedesigner/internal/protocol"
	"github.com/pdsdk/pagedesigner/internal/transport"
)

// HostState is the host side of the handshake.
type HostState int

const (
	HostDisconnected HostState = iota
	HostListening
	HostIdentified
)

func (s HostState) String() string {
	switch s {
	case HostListening:
		return "listening"
	case HostIdentified:
		return "identified"
	default:
		return "disconnected"
	}
}

// HostOptions configures NewHost.
type HostOptions struct {
	ID        string
	Transport transport.Transport
	Logger    *log.Logger
}

// ConfigFactory assembles the ClientAcknowledged payload for a client
// that just announced itself. It may block; the context is cancelled
// when the host disconnects.
type ConfigFactory func(ctx context.Context) (protocol.ClientAcknowledgedEvent, error)

// HostConnectOptions are the handshake callbacks of a host.
type HostConnectOptions struct {
	ConfigFactory        ConfigFactory
	OnClientConnected    func(clientID string)
	OnClientDisconnected func(clientID string)
	OnError              func(err error)
}

var errMissingClientID = errors.New("design: ClientInitialized without client id")

// Host is the page builder's end of the protocol. It tracks a single
// remote client at a time; a handshake from a new client id replaces
// the previous one.
type Host struct {
	messenger *messenger.Messenger
	logger    *log.Logger

	mu         sync.Mutex
	state      HostState
	generation uint64
	opts       HostConnectOptions
	ctx        context.Context
	cancel     context.CancelFunc
	pending    string
	internal   messenger.Group

	send hostEmitters
}

type hostEmitters struct {
	acknowledged      messenger.Emitter[protocol.ClientAcknowledgedEvent]
	selected          messenger.Emitter[protocol.ComponentSelectedEvent]
	deselected        messenger.Emitter[protocol.ComponentDeselectedEvent]
	hoveredIn         messenger.Emitter[protocol.ComponentHoveredInEvent]
	hoveredOut        messenger.Emitter[protocol.ComponentHoveredOutEvent]
	focused           messenger.Emitter[protocol.ComponentFocusedEvent]
	dragStarted       messenger.Emitter[protocol.ComponentDragStartedEvent]
	deleted           messenger.Emitter[protocol.ComponentDeletedEvent]
	propertiesChanged messenger.Emitter[protocol.ComponentPropertiesChangedEvent]
	componentsChanged messenger.Emitter[protocol.ComponentsChangedEvent]
	dragEntered       messenger.Emitter[protocol.ClientWindowDragEnteredEvent]
	dragMoved         messenger.Emitter[protocol.ClientWindowDragMovedEvent]
	dragExited        messenger.Emitter[protocol.ClientWindowDragExitedEvent]
	dragDropped       messenger.Emitter[protocol.ClientWindowDragDroppedEvent]
	pageSettings      messenger.Emitter[protocol.PageSettingsChangedEvent]
	errorReport       messenger.Emitter[protocol.ErrorEvent]
}

// NewHost constructs a host that is not yet listening.
func NewHost(opts HostOptions) (*Host, error) {
	m, err := messenger.New(messenger.Config{
		Source:    protocol.SourceHost,
		ID:        opts.ID,
		Transport: opts.Transport,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("design: new host: %w", err)
	}
	h := &Host{messenger: m, logger: opts.Logger}
	h.send = hostEmitters{
		acknowledged:      messenger.ToEmitter(m, protocol.ClientAcknowledged),
		selected:          messenger.ToEmitter(m, protocol.ComponentSelected),
		deselected:        messenger.ToEmitter(m, protocol.ComponentDeselected),
		hoveredIn:         messenger.ToEmitter(m, protocol.ComponentHoveredIn),
		hoveredOut:        messenger.ToEmitter(m, protocol.ComponentHoveredOut),
		focused:           messenger.ToEmitter(m, protocol.ComponentFocused),
		dragStarted:       messenger.ToEmitter(m, protocol.ComponentDragStarted),
		deleted:           messenger.ToEmitter(m, protocol.ComponentDeleted),
		propertiesChanged: messenger.ToEmitter(m, protocol.ComponentPropertiesChanged),
		componentsChanged: messenger.ToEmitter(m, protocol.ComponentsChanged),
		dragEntered:       messenger.ToEmitter(m, protocol.ClientWindowDragEntered),
		dragMoved:         messenger.ToEmitter(m, protocol.ClientWindowDragMoved),
		dragExited:        messenger.ToEmitter(m, protocol.ClientWindowDragExited),
		dragDropped:       messenger.ToEmitter(m, protocol.ClientWindowDragDropped),
		pageSettings:      messenger.ToEmitter(m, protocol.PageSettingsChanged),
		errorReport:       messenger.ToEmitter(m, protocol.Error),
	}
	return h, nil
}

func (h *Host) ID() string       { return h.messenger.ID() }
func (h *Host) RemoteID() string { return h.messenger.RemoteID() }

// On registers a raw handler for events from the client.
func (h *Host) On(eventType protocol.EventType, handler messenger.Handler) func() {
	return h.messenger.On(eventType, handler)
}

// State returns the handshake state.
func (h *Host) State() HostState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Connect starts listening for ClientInitialized. It does not block:
// the handshake completes whenever a client announces itself. Calling
// Connect again replaces the callbacks and keeps a single transport
// subscription.
func (h *Host) Connect(ctx context.Context, opts HostConnectOptions) error {
	if opts.ConfigFactory == nil {
		opts.ConfigFactory = emptyConfig
	}

	h.messenger.Connect()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
	}
	h.ctx, h.cancel = context.WithCancel(context.WithoutCancel(ctx))
	h.generation++
	h.opts = opts
	h.pending = ""
	if h.messenger.RemoteID() != "" {
		h.state = HostIdentified
	} else {
		h.state = HostListening
	}
	if h.internal.Len() == 0 {
		h.internal.Add(h.messenger.On(protocol.EventClientInitialized, h.handleInitialized))
	}
	return nil
}

func emptyConfig(context.Context) (protocol.ClientAcknowledgedEvent, error) {
	return protocol.ClientAcknowledgedEvent{
		Components:     map[string]protocol.Component{},
		ComponentTypes: map[string]protocol.ComponentType{},
		Labels:         map[string]string{},
	}, nil
}

func (h *Host) handleInitialized(env protocol.Envelope) {
	ev, err := protocol.ClientInitialized.Payload(env)
	if err != nil {
		h.reportError(fmt.Errorf("design: host %s: %w", h.ID(), err))
		return
	}
	clientID := ev.ClientID
	if clientID == "" {
		clientID = env.Meta.ClientID
	}
	if clientID == "" {
		h.reportError(errMissingClientID)
		return
	}

	h.mu.Lock()
	if h.state == HostDisconnected {
		h.mu.Unlock()
		return
	}
	if h.pending != "" {
		// Repeated pings from the client being acknowledged, and any other
		// client racing it, wait for the pending handshake to settle.
		if h.pending != clientID {
			h.logf("[Host] %s ignoring ClientInitialized from %s while %s is pending", h.ID(), clientID, h.pending)
		}
		h.mu.Unlock()
		return
	}
	h.pending = clientID
	generation := h.generation
	opts := h.opts
	ctx := h.ctx
	previous := h.messenger.RemoteID()
	h.mu.Unlock()

	config, err := opts.ConfigFactory(ctx)

	h.mu.Lock()
	if generation != h.generation || h.state == HostDisconnected {
		// Disconnected or reconnected while the factory ran: the result
		// belongs to a torn down session.
		h.mu.Unlock()
		h.logf("[Host] %s dropped acknowledgment for %s: session ended during handshake", h.ID(), clientID)
		return
	}
	h.pending = ""
	if err != nil {
		h.mu.Unlock()
		h.reportError(fmt.Errorf("design: config for client %s: %w", clientID, err))
		return
	}
	h.messenger.SetRemoteID(clientID)
	h.state = HostIdentified
	h.mu.Unlock()

	if previous != "" && previous != clientID && opts.OnClientDisconnected != nil {
		opts.OnClientDisconnected(previous)
	}

	if err := h.send.acknowledged(ctx, config); err != nil {
		h.reportError(fmt.Errorf("design: acknowledge client %s: %w", clientID, err))
		return
	}
	h.logf("[Host] %s acknowledged client %s", h.ID(), clientID)

	// A repeated ping from the identified client is answered again but
	// is not a new connection.
	if previous != clientID && opts.OnClientConnected != nil {
		opts.OnClientConnected(clientID)
	}
}

func (h *Host) reportError(err error) {
	h.mu.Lock()
	onError := h.opts.OnError
	h.mu.Unlock()

	h.logf("[Host] %v", err)
	if onError != nil {
		onError(err)
	}
}

// Disconnect stops listening, cancels a running ConfigFactory and
// forgets the client. OnClientDisconnected fires for an identified client.
func (h *Host) Disconnect() {
	h.mu.Lock()
	wasIdentified := h.state == HostIdentified
	h.state = HostDisconnected
	h.generation++
	h.pending = ""
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	onDisconnected := h.opts.OnClientDisconnected
	remote := h.messenger.RemoteID()
	h.mu.Unlock()

	h.internal.CloseAll()
	h.messenger.Disconnect()

	if wasIdentified && remote != "" && onDisconnected != nil {
		onDisconnected(remote)
	}
}

func (h *Host) SelectComponent(ctx context.Context, ev protocol.ComponentSelectedEvent) error {
	return h.send.selected(ctx, ev)
}

func (h *Host) DeselectComponent(ctx context.Context, ev protocol.ComponentDeselectedEvent) error {
	return h.send.deselected(ctx, ev)
}

func (h *Host) HoverInComponent(ctx context.Context, ev protocol.ComponentHoveredInEvent) error {
	return h.send.hoveredIn(ctx, ev)
}

func (h *Host) HoverOutComponent(ctx context.Context, ev protocol.ComponentHoveredOutEvent) error {
	return h.send.hoveredOut(ctx, ev)
}

func (h *Host) FocusComponent(ctx context.Context, ev protocol.ComponentFocusedEvent) error {
	return h.send.focused(ctx, ev)
}

func (h *Host) StartComponentDrag(ctx context.Context, ev protocol.ComponentDragStartedEvent) error {
	return h.send.dragStarted(ctx, ev)
}

func (h *Host) DeleteComponent(ctx context.Context, ev protocol.ComponentDeletedEvent) error {
	return h.send.deleted(ctx, ev)
}

func (h *Host) ChangeComponentProperties(ctx context.Context, ev protocol.ComponentPropertiesChangedEvent) error {
	return h.send.propertiesChanged(ctx, ev)
}

func (h *Host) ChangeComponents(ctx context.Context, ev protocol.ComponentsChangedEvent) error {
	return h.send.componentsChanged(ctx, ev)
}

func (h *Host) EnterDrag(ctx context.Context, ev protocol.ClientWindowDragEnteredEvent) error {
	return h.send.dragEntered(ctx, ev)
}

func (h *Host) MoveDrag(ctx context.Context, ev protocol.ClientWindowDragMovedEvent) error {
	return h.send.dragMoved(ctx, ev)
}

func (h *Host) ExitDrag(ctx context.Context) error {
	return h.send.dragExited(ctx, protocol.ClientWindowDragExitedEvent{})
}

func (h *Host) DropDrag(ctx context.Context, ev protocol.ClientWindowDragDroppedEvent) error {
	return h.send.dragDropped(ctx, ev)
}

func (h *Host) ChangePageSettings(ctx context.Context, ev protocol.PageSettingsChangedEvent) error {
	return h.send.pageSettings(ctx, ev)
}

func (h *Host) ReportError(ctx context.Context, ev protocol.ErrorEvent) error {
	return h.send.errorReport(ctx, ev)
}

func (h *Host) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
