package redisbus

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pdsdk/pagedesigner/internal/design"
	"github.com/pdsdk/pagedesigner/internal/transport"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("PAGEDESIGNER_TEST_REDIS")
	if addr == "" {
		t.Skip("PAGEDESIGNER_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis at %s unavailable: %v", addr, err)
	}
	return client
}

func newBus(t *testing.T, client *redis.Client, session string) *Bus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bus, err := New(ctx, client, Options{Session: session})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestNewRequiresSession(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := New(context.Background(), client, Options{}); !errors.Is(err, errNoSession) {
		t.Fatalf("err = %v, want errNoSession", err)
	}
	if _, err := New(context.Background(), client, Options{Session: "a b"}); !errors.Is(err, errInvalidSession) {
		t.Fatalf("err = %v, want errInvalidSession", err)
	}
}

func TestBroadcastIncludesSender(t *testing.T) {
	client := testClient(t)
	session := uuid.NewString()
	a := newBus(t, client, session)
	b := newBus(t, client, session)

	aGot := make(chan string, 4)
	bGot := make(chan string, 4)
	a.Subscribe(func(data []byte) { aGot <- string(data) })
	b.Subscribe(func(data []byte) { bGot <- string(data) })

	if err := a.Post(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("Post: %v", err)
	}
	for _, ch := range []chan string{aGot, bGot} {
		select {
		case got := <-ch:
			if got != "hello" {
				t.Fatalf("received %q", got)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("message not delivered")
		}
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Post(context.Background(), []byte("late")); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("Post after close = %v", err)
	}
}

func TestHandshakeOverRedis(t *testing.T) {
	client := testClient(t)
	session := uuid.NewString()

	host, err := design.NewHost(design.HostOptions{ID: "test-host", Transport: newBus(t, client, session)})
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	defer host.Disconnect()
	c, err := design.NewClient(design.ClientOptions{ID: "test-client", Transport: newBus(t, client, session)})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := host.Connect(ctx, design.HostConnectOptions{}); err != nil {
		t.Fatalf("host Connect: %v", err)
	}
	if err := c.Connect(ctx, design.ConnectOptions{Interval: 50 * time.Millisecond, Timeout: 5 * time.Second}); err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	if c.RemoteID() != "test-host" || host.RemoteID() != "test-client" {
		t.Fatalf("remote ids = %q/%q", c.RemoteID(), host.RemoteID())
	}
}
