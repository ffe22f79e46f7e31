package ws

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pdsdk/pagedesigner/internal/eventbus"
	"github.com/pdsdk/pagedesigner/internal/tlswarn"
	"github.com/pdsdk/pagedesigner/internal/transport"
	"github.com/pdsdk/pagedesigner/internal/validate"
	"github.com/pdsdk/pagedesigner/internal/version"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// DialOptions configures Dial.
type DialOptions struct {
	// Session selects the relay room. Empty keeps whatever the URL says.
	Session string
	Header  http.Header
	Logger  *log.Logger
	// InsecureSkipVerify disables certificate checks for wss:// relays.
	InsecureSkipVerify bool
}

// Conn is a peer connection to a Relay. Frames received from the relay
// are delivered to subscribers in arrival order from a single reader
// goroutine.
type Conn struct {
	conn   *websocket.Conn
	logger *log.Logger
	local  *eventbus.Bus

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}

	relayVersion string
}

var _ transport.Transport = (*Conn)(nil)

// Dial connects to the relay at rawURL (ws:// or wss://).
func Dial(ctx context.Context, rawURL string, opts DialOptions) (*Conn, error) {
	if err := validate.WebSocketURL(rawURL); err != nil {
		return nil, fmt.Errorf("ws: relay url: %w", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("ws: parse relay url: %w", err)
	}
	if opts.Session != "" {
		q := u.Query()
		q.Set(SessionParam, opts.Session)
		u.RawQuery = q.Encode()
	}

	dialer := websocket.DefaultDialer
	if opts.InsecureSkipVerify && u.Scheme == "wss" {
		insecure := *websocket.DefaultDialer
		insecure.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		dialer = &insecure
		tlswarn.LogInsecure()
	}

	wsConn, resp, err := dialer.DialContext(ctx, u.String(), opts.Header)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", u.Redacted(), err)
	}
	wsConn.SetReadLimit(readLimit)

	c := &Conn{
		conn:   wsConn,
		logger: opts.Logger,
		local:  eventbus.New(eventbus.WithLogger(opts.Logger)),
		done:   make(chan struct{}),
	}
	if resp != nil {
		c.relayVersion = resp.Header.Get(version.Header)
		if warning := version.CheckRelayVersion(c.relayVersion); warning != "" {
			c.logf("[Relay] %s", warning)
		}
	}
	go c.readPump()
	go c.pingLoop()
	return c, nil
}

// Post writes data as one text frame.
func (c *Conn) Post(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return transport.ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("ws: write: %w", err)
	}
	return nil
}

// Subscribe registers handler for frames from the relay.
func (c *Conn) Subscribe(handler transport.Handler) func() {
	return c.local.Subscribe(handler)
}

// Metrics reports how many frames were delivered to local subscribers.
func (c *Conn) Metrics() eventbus.Metrics { return c.local.Metrics() }

// RelayVersion is the build version the relay announced, if any.
func (c *Conn) RelayVersion() string { return c.relayVersion }

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close sends a close frame and releases the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) readPump() {
	defer func() {
		close(c.done)
		c.local.Shutdown()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logf("[WS] read error: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := c.local.Post(context.Background(), data); err != nil {
			return
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Conn) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
