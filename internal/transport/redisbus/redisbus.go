// Package redisbus is a broadcast transport over Redis pub/sub. Every
// peer publishes to and subscribes on the same channel, so each peer
// also receives its own messages; the messenger's source filter drops
// them.
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/pdsdk/pagedesigner/internal/eventbus"
	"github.com/pdsdk/pagedesigner/internal/transport"
	"github.com/pdsdk/pagedesigner/internal/validate"
)

// ChannelPrefix namespaces designer channels on a shared server.
const ChannelPrefix = "pagedesigner:"

// Options configures New.
type Options struct {
	// Session is appended to ChannelPrefix to form the channel name.
	Session string
	Logger  *log.Logger
}

// Bus is a transport.Transport backed by one Redis channel.
type Bus struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	local   *eventbus.Bus
	logger  *log.Logger

	closeOnce sync.Once
	done      chan struct{}
}

var _ transport.Transport = (*Bus)(nil)

var (
	errNoSession      = errors.New("redisbus: session is required")
	errInvalidSession = errors.New("redisbus: session must be an identifier")
)

// New subscribes to the session channel and returns once Redis has
// confirmed the subscription, so nothing published afterwards is missed.
func New(ctx context.Context, client *redis.Client, opts Options) (*Bus, error) {
	if opts.Session == "" {
		return nil, errNoSession
	}
	if !validate.Ident(opts.Session) {
		return nil, fmt.Errorf("%w: %q", errInvalidSession, opts.Session)
	}
	channel := ChannelPrefix + opts.Session

	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redisbus: subscribe %s: %w", channel, err)
	}

	b := &Bus{
		client:  client,
		channel: channel,
		pubsub:  pubsub,
		local:   eventbus.New(eventbus.WithLogger(opts.Logger)),
		logger:  opts.Logger,
		done:    make(chan struct{}),
	}
	go b.receive()
	return b, nil
}

// Channel returns the Redis channel name.
func (b *Bus) Channel() string { return b.channel }

// Post publishes data on the session channel.
func (b *Bus) Post(ctx context.Context, data []byte) error {
	select {
	case <-b.done:
		return transport.ErrClosed
	default:
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redisbus: publish %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe registers handler for messages on the channel.
func (b *Bus) Subscribe(handler transport.Handler) func() {
	return b.local.Subscribe(handler)
}

// Close unsubscribes from Redis. The client itself stays open.
func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		err = b.pubsub.Close()
		b.local.Shutdown()
	})
	return err
}

func (b *Bus) receive() {
	for msg := range b.pubsub.Channel() {
		if err := b.local.Post(context.Background(), []byte(msg.Payload)); err != nil {
			return
		}
	}
	b.logf("[RedisBus] %s subscription ended", b.channel)
}

func (b *Bus) logf(format string, args ...any) {
	if b.logger != nil {
		b.logger.Printf(format, args...)
	}
}
