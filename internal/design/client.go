package design

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pdsdk/pagedesigner/internal/clock"
	"github.com/pdsdk/pagedesigner/internal/messenger"
	"github.com/pdsdk/pagedesigner/internal/protocol"
	"github.com/pdsdk/pagedesigner/internal/transport"
)

// ClientState is the client side of the handshake.
type ClientState int

const (
	ClientDisconnected ClientState = iota
	ClientInitializing
	ClientAcknowledged
)

func (s ClientState) String() string {
	switch s {
	case ClientInitializing:
		return "initializing"
	case ClientAcknowledged:
		return "acknowledged"
	default:
		return "disconnected"
	}
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	ID        string
	Transport transport.Transport
	Logger    *log.Logger
	// Clock drives the handshake polling loop. Defaults to clock.Real().
	Clock clock.Clock
	// Mode defaults to ModeEdit.
	Mode Mode
	// ForwardedKeys are keyboard keys the client asks the host to
	// forward while the page has focus.
	ForwardedKeys []string
	// PageTypeMap maps page type ids to the component type rendering them.
	PageTypeMap map[string]string
}

// ConnectOptions tunes the client handshake.
type ConnectOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultHandshakeTimeout
	}
	return o
}

// Client is the framed page's end of the protocol.
type Client struct {
	messenger     *messenger.Messenger
	clock         clock.Clock
	logger        *log.Logger
	mode          Mode
	forwardedKeys []string
	pageTypeMap   map[string]string

	mu       sync.Mutex
	state    ClientState
	attempt  *handshakeAttempt
	config   *protocol.ClientAcknowledgedEvent
	internal messenger.Group

	send clientEmitters
}

type clientEmitters struct {
	initialized   messenger.Emitter[protocol.ClientInitializedEvent]
	ready         messenger.Emitter[protocol.ClientReadyEvent]
	selected      messenger.Emitter[protocol.ComponentSelectedEvent]
	deselected    messenger.Emitter[protocol.ComponentDeselectedEvent]
	hoveredIn     messenger.Emitter[protocol.ComponentHoveredInEvent]
	hoveredOut    messenger.Emitter[protocol.ComponentHoveredOutEvent]
	dragStarted   messenger.Emitter[protocol.ComponentDragStartedEvent]
	addedToRegion messenger.Emitter[protocol.ComponentAddedToRegionEvent]
	movedToRegion messenger.Emitter[protocol.ComponentMovedToRegionEvent]
	deleted       messenger.Emitter[protocol.ComponentDeletedEvent]
	windowScroll  messenger.Emitter[protocol.WindowScrollChangedEvent]
	errorReport   messenger.Emitter[protocol.ErrorEvent]
}

// handshakeAttempt is one Connect cycle. Both timers are held so every
// exit path can stop them.
type handshakeAttempt struct {
	done     chan struct{}
	err      error
	finished bool
	poll     *clock.Timer
	timeout  *clock.Timer
}

// NewClient constructs a disconnected client.
func NewClient(opts ClientOptions) (*Client, error) {
	m, err := messenger.New(messenger.Config{
		Source:    protocol.SourceClient,
		ID:        opts.ID,
		Transport: opts.Transport,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("design: new client: %w", err)
	}
	c := &Client{
		messenger:     m,
		clock:         opts.Clock,
		logger:        opts.Logger,
		mode:          opts.Mode,
		forwardedKeys: append([]string(nil), opts.ForwardedKeys...),
		pageTypeMap:   opts.PageTypeMap,
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.mode == "" {
		c.mode = ModeEdit
	}
	c.send = clientEmitters{
		initialized:   messenger.ToEmitter(m, protocol.ClientInitialized, messenger.WithoutRemoteID()),
		ready:         messenger.ToEmitter(m, protocol.ClientReady),
		selected:      messenger.ToEmitter(m, protocol.ComponentSelected),
		deselected:    messenger.ToEmitter(m, protocol.ComponentDeselected),
		hoveredIn:     messenger.ToEmitter(m, protocol.ComponentHoveredIn),
		hoveredOut:    messenger.ToEmitter(m, protocol.ComponentHoveredOut),
		dragStarted:   messenger.ToEmitter(m, protocol.ComponentDragStarted),
		addedToRegion: messenger.ToEmitter(m, protocol.ComponentAddedToRegion),
		movedToRegion: messenger.ToEmitter(m, protocol.ComponentMovedToRegion),
		deleted:       messenger.ToEmitter(m, protocol.ComponentDeleted),
		windowScroll:  messenger.ToEmitter(m, protocol.WindowScrollChanged),
		errorReport:   messenger.ToEmitter(m, protocol.Error),
	}
	return c, nil
}

func (c *Client) ID() string       { return c.messenger.ID() }
func (c *Client) RemoteID() string { return c.messenger.RemoteID() }
func (c *Client) Mode() Mode       { return c.mode }

// On registers a raw handler for events from the host.
func (c *Client) On(eventType protocol.EventType, handler messenger.Handler) func() {
	return c.messenger.On(eventType, handler)
}

// State returns the handshake state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns the configuration the host sent with ClientAcknowledged,
// kept current by ComponentsChanged. ok is false before the handshake.
func (c *Client) Config() (cfg protocol.ClientAcknowledgedEvent, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config == nil {
		return protocol.ClientAcknowledgedEvent{}, false
	}
	return *c.config, true
}

// Component looks a component up in the host supplied page tree.
func (c *Client) Component(id string) (protocol.Component, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config == nil {
		return protocol.Component{}, false
	}
	comp, ok := c.config.Components[id]
	return comp, ok
}

// PageType resolves the component type that renders a page type.
func (c *Client) PageType(pageTypeID string) (string, bool) {
	typeID, ok := c.pageTypeMap[pageTypeID]
	return typeID, ok
}

// Connect performs the handshake: it repeats ClientInitialized every
// Interval until the host answers with ClientAcknowledged, and fails with
// a *TimeoutError after Timeout. Connect on an acknowledged client
// returns nil at once; concurrent calls share one attempt.
func (c *Client) Connect(ctx context.Context, opts ConnectOptions) error {
	if !c.mode.IsDesignMode() {
		return ErrNotDesignMode
	}
	opts = opts.withDefaults()

	c.messenger.Connect()

	c.mu.Lock()
	if c.internal.Len() == 0 {
		c.internal.Add(
			c.messenger.On(protocol.EventClientAcknowledged, c.handleAcknowledged),
			messenger.Subscribe(c.messenger, protocol.ComponentsChanged, c.handleComponentsChanged),
		)
	}
	if c.state == ClientAcknowledged && c.messenger.RemoteID() != "" {
		c.mu.Unlock()
		return nil
	}

	attempt := c.attempt
	start := attempt == nil
	if start {
		attempt = &handshakeAttempt{done: make(chan struct{})}
		c.attempt = attempt
		c.state = ClientInitializing
		timeout := opts.Timeout
		attempt.timeout = c.clock.AfterFunc(timeout, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.finishLocked(attempt, &TimeoutError{Timeout: timeout})
		})
	}
	c.mu.Unlock()

	if start {
		c.poll(attempt, opts.Interval)
	}

	select {
	case <-attempt.done:
		return attempt.err
	case <-ctx.Done():
		c.mu.Lock()
		c.finishLocked(attempt, ctx.Err())
		c.mu.Unlock()
		<-attempt.done
		return attempt.err
	}
}

// poll sends one ClientInitialized and schedules the next tick while the
// attempt is still open.
func (c *Client) poll(attempt *handshakeAttempt, interval time.Duration) {
	c.mu.Lock()
	if attempt.finished {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	err := c.send.initialized(context.Background(), protocol.ClientInitializedEvent{
		ClientID:      c.messenger.ID(),
		ForwardedKeys: c.forwardedKeys,
	})
	if err != nil {
		c.logf("[Client] %s handshake ping failed: %v", c.messenger.ID(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !attempt.finished {
		attempt.poll = c.clock.AfterFunc(interval, func() { c.poll(attempt, interval) })
	}
}

func (c *Client) finishLocked(attempt *handshakeAttempt, err error) {
	if attempt.finished {
		return
	}
	attempt.finished = true
	attempt.err = err
	attempt.poll.Stop()
	attempt.timeout.Stop()
	if c.attempt == attempt {
		c.attempt = nil
	}
	if err != nil && c.state == ClientInitializing {
		c.state = ClientDisconnected
	}
	close(attempt.done)
}

func (c *Client) handleAcknowledged(env protocol.Envelope) {
	ev, err := protocol.ClientAcknowledged.Payload(env)
	if err != nil {
		c.logf("[Client] %s malformed acknowledgment: %v", c.messenger.ID(), err)
		return
	}

	if env.Meta.ClientID != "" && env.Meta.ClientID != c.messenger.ID() {
		// Acknowledgment for another client sharing the channel.
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	attempt := c.attempt
	if attempt == nil || c.state != ClientInitializing {
		// A late duplicate from the same host refreshes the configuration.
		if c.state == ClientAcknowledged && env.Meta.HostID == c.messenger.RemoteID() {
			c.config = &ev
		}
		return
	}
	if env.Meta.HostID == "" {
		c.logf("[Client] %s acknowledgment without host id ignored", c.messenger.ID())
		return
	}

	c.messenger.SetRemoteID(env.Meta.HostID)
	c.config = &ev
	c.state = ClientAcknowledged
	c.finishLocked(attempt, nil)
	c.logf("[Client] %s acknowledged by host %s", c.messenger.ID(), env.Meta.HostID)
}

func (c *Client) handleComponentsChanged(ev protocol.ComponentsChangedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config == nil {
		return
	}
	cfg := *c.config
	cfg.Components = ev.Components
	c.config = &cfg
}

// Disconnect stops a pending handshake, releases the transport and
// clears the remote identity and every handler.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.attempt != nil {
		c.finishLocked(c.attempt, ErrDisconnected)
	}
	c.state = ClientDisconnected
	c.config = nil
	c.mu.Unlock()

	c.internal.CloseAll()
	c.messenger.Disconnect()
}

// Ready tells the host the page finished rendering.
func (c *Client) Ready(ctx context.Context) error {
	return c.send.ready(ctx, protocol.ClientReadyEvent{})
}

func (c *Client) SelectComponent(ctx context.Context, ev protocol.ComponentSelectedEvent) error {
	return c.send.selected(ctx, ev)
}

func (c *Client) DeselectComponent(ctx context.Context, ev protocol.ComponentDeselectedEvent) error {
	return c.send.deselected(ctx, ev)
}

func (c *Client) HoverInComponent(ctx context.Context, ev protocol.ComponentHoveredInEvent) error {
	return c.send.hoveredIn(ctx, ev)
}

func (c *Client) HoverOutComponent(ctx context.Context, ev protocol.ComponentHoveredOutEvent) error {
	return c.send.hoveredOut(ctx, ev)
}

func (c *Client) StartComponentDrag(ctx context.Context, ev protocol.ComponentDragStartedEvent) error {
	return c.send.dragStarted(ctx, ev)
}

func (c *Client) AddComponentToRegion(ctx context.Context, ev protocol.ComponentAddedToRegionEvent) error {
	return c.send.addedToRegion(ctx, ev)
}

func (c *Client) MoveComponentToRegion(ctx context.Context, ev protocol.ComponentMovedToRegionEvent) error {
	return c.send.movedToRegion(ctx, ev)
}

func (c *Client) DeleteComponent(ctx context.Context, ev protocol.ComponentDeletedEvent) error {
	return c.send.deleted(ctx, ev)
}

func (c *Client) ChangeWindowScroll(ctx context.Context, ev protocol.WindowScrollChangedEvent) error {
	return c.send.windowScroll(ctx, ev)
}

func (c *Client) ReportError(ctx context.Context, ev protocol.ErrorEvent) error {
	return c.send.errorReport(ctx, ev)
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
