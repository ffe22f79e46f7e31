// Package transport defines the contract between the messaging core and
// whatever carries raw messages between host and client.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Post once a transport has been shut down.
var ErrClosed = errors.New("transport: closed")

// Handler receives one raw message. Implementations invoke handlers
// sequentially per subscription, in transport order. Handlers must not
// retain or modify data after returning.
type Handler func(data []byte)

// Transport is a bidirectional message channel. It may be unicast or
// broadcast; a broadcast transport may deliver a message back to the
// peer that posted it.
type Transport interface {
	// Post sends one message.
	Post(ctx context.Context, data []byte) error

	// Subscribe registers handler for every received message and returns
	// a function that removes it. Calling the returned function more than
	// once is a no-op.
	Subscribe(handler Handler) (unsubscribe func())
}
