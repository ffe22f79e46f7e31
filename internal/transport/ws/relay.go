// Package ws carries designer envelopes over WebSocket. Relay is the
// server every peer connects to; Dial opens a peer connection that
// implements transport.Transport.
package ws

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/pdsdk/pagedesigner/internal/validate"
	"github.com/pdsdk/pagedesigner/internal/version"
)

const (
	// SessionParam is the query parameter naming the relay room.
	SessionParam = "session"
	// DefaultRoom is used when a peer connects without a session.
	DefaultRoom = "default"

	readLimit   = 1 << 20
	sendBacklog = 256
)

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithLogger sets the relay logger. Nil disables logging.
func WithLogger(logger *log.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

// WithFrameObserver registers fn to see every text frame a peer sends,
// before it is fanned out. fn must not retain data.
func WithFrameObserver(fn func(room string, data []byte)) RelayOption {
	return func(r *Relay) { r.observer = fn }
}

// WithOriginPatterns allows cross origin upgrades from hosts matching
// the patterns, as understood by websocket.AcceptOptions.
func WithOriginPatterns(patterns ...string) RelayOption {
	return func(r *Relay) { r.originPatterns = append(r.originPatterns, patterns...) }
}

// Relay fans every text frame a peer sends out to the other peers of
// the same room. It never inspects frames: the messenger on each end
// filters what is not meant for it.
type Relay struct {
	logger         *log.Logger
	originPatterns []string
	observer       func(room string, data []byte)

	framesIn      atomic.Uint64
	framesDropped atomic.Uint64

	mu     sync.RWMutex
	rooms  map[string]map[*relayPeer]struct{}
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

type relayPeer struct {
	room string
	conn *websocket.Conn
	send chan []byte
}

// NewRelay returns a relay ready to be mounted on an http.ServeMux.
func NewRelay(opts ...RelayOption) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		rooms:  make(map[string]map[*relayPeer]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	room := req.URL.Query().Get(SessionParam)
	if room == "" {
		room = DefaultRoom
	}
	if !validate.Ident(room) {
		http.Error(w, "invalid session name", http.StatusBadRequest)
		return
	}

	w.Header().Set(version.Header, version.String())
	conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{OriginPatterns: r.originPatterns})
	if err != nil {
		r.logf("[Relay] accept error for room %s: %v", room, err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	peer := &relayPeer{room: room, conn: conn, send: make(chan []byte, sendBacklog)}
	if !r.join(peer) {
		conn.Close(websocket.StatusGoingAway, "relay closed")
		return
	}
	defer r.leave(peer)

	ctx, cancel := context.WithCancel(r.ctx)
	defer cancel()
	go r.writePump(ctx, peer)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if !isExpectedClose(err) {
				r.logf("[Relay] read error in room %s: %v", room, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		r.framesIn.Add(1)
		if r.observer != nil {
			r.observer(room, data)
		}
		r.fanOut(peer, data)
	}
}

func (r *Relay) writePump(ctx context.Context, peer *relayPeer) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-peer.send:
			if err := peer.conn.Write(ctx, websocket.MessageText, data); err != nil {
				if !isExpectedClose(err) {
					r.logf("[Relay] write error in room %s: %v", peer.room, err)
				}
				peer.conn.CloseNow()
				return
			}
		}
	}
}

func (r *Relay) join(peer *relayPeer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	members := r.rooms[peer.room]
	if members == nil {
		members = make(map[*relayPeer]struct{})
		r.rooms[peer.room] = members
	}
	members[peer] = struct{}{}
	r.logf("[Relay] peer joined room %s (%d peers)", peer.room, len(members))
	return true
}

func (r *Relay) leave(peer *relayPeer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.rooms[peer.room]
	delete(members, peer)
	if len(members) == 0 {
		delete(r.rooms, peer.room)
	}
	r.logf("[Relay] peer left room %s (%d peers)", peer.room, len(members))
}

func (r *Relay) fanOut(from *relayPeer, data []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for peer := range r.rooms[from.room] {
		if peer == from {
			continue
		}
		select {
		case peer.send <- data:
		default:
			// Peer's send backlog is full, skip
			r.framesDropped.Add(1)
			r.logf("[Relay] dropped frame for slow peer in room %s", from.room)
		}
	}
}

// RoomSize returns the number of peers connected to room.
func (r *Relay) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// RelayStats is a snapshot of relay counters.
type RelayStats struct {
	Rooms         int
	Peers         int
	FramesIn      uint64
	FramesDropped uint64
}

// Stats returns the current room occupancy and frame counters.
func (r *Relay) Stats() RelayStats {
	r.mu.RLock()
	stats := RelayStats{Rooms: len(r.rooms)}
	for _, members := range r.rooms {
		stats.Peers += len(members)
	}
	r.mu.RUnlock()
	stats.FramesIn = r.framesIn.Load()
	stats.FramesDropped = r.framesDropped.Load()
	return stats
}

// Close disconnects every peer and refuses new ones.
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
}

func (r *Relay) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

func isExpectedClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, net.ErrClosed) {
		return true
	}
	status := websocket.CloseStatus(err)
	return status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway
}
