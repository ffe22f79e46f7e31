// Package design provides the role specific façades of the page designer
// messaging protocol: the Client API used by the framed page and the
// Host API used by the page builder. Both wrap a messenger.Messenger and
// implement their side of the connection handshake.
package design

import (
	"time"

	"github.com/pdsdk/pagedesigner/internal/messenger"
	"github.com/pdsdk/pagedesigner/internal/protocol"
)

const (
	// DefaultPollInterval is how often a connecting client repeats
	// ClientInitialized.
	DefaultPollInterval = time.Second
	// DefaultHandshakeTimeout bounds a client Connect.
	DefaultHandshakeTimeout = 60 * time.Second
)

// API is the surface shared by Client and Host.
type API interface {
	ID() string
	RemoteID() string
	On(eventType protocol.EventType, handler messenger.Handler) func()
	Disconnect()
}

var (
	_ API = (*Client)(nil)
	_ API = (*Host)(nil)
)

// Subscribe registers fn for def's events arriving at api, decoding the
// payload into T.
func Subscribe[T any](api API, def protocol.EventDef[T], fn func(T)) func() {
	return messenger.Subscribe(api, def, fn)
}
