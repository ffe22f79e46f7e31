package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdsdk/pagedesigner/internal/design"
	"github.com/pdsdk/pagedesigner/internal/transport"
	"github.com/pdsdk/pagedesigner/internal/version"
)

func startRelay(t *testing.T, opts ...RelayOption) (*Relay, string) {
	t.Helper()
	relay := NewRelay(opts...)
	server := httptest.NewServer(relay)
	t.Cleanup(func() {
		relay.Close()
		server.Close()
	})
	return relay, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialPeer(t *testing.T, url, session string) (*Conn, <-chan string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, url, DialOptions{Session: session})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	received := make(chan string, 16)
	conn.Subscribe(func(data []byte) { received <- string(data) })
	return conn, received
}

func waitForRoom(t *testing.T, relay *Relay, room string, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for relay.RoomSize(room) != n {
		if time.Now().After(deadline) {
			t.Fatalf("room %s has %d peers, want %d", room, relay.RoomSize(room), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func expectFrame(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("received %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestRelayFansOutWithinRoom(t *testing.T) {
	relay, url := startRelay(t)

	a, aFrames := dialPeer(t, url, "s1")
	b, bFrames := dialPeer(t, url, "s1")
	_, cFrames := dialPeer(t, url, "s2")
	d, _ := dialPeer(t, url, "s2")
	waitForRoom(t, relay, "s1", 2)
	waitForRoom(t, relay, "s2", 2)

	ctx := context.Background()
	if err := a.Post(ctx, []byte("from-a")); err != nil {
		t.Fatalf("Post: %v", err)
	}
	expectFrame(t, bFrames, "from-a")

	// The first frame a sees must be b's, not its own echo.
	if err := b.Post(ctx, []byte("from-b")); err != nil {
		t.Fatalf("Post: %v", err)
	}
	expectFrame(t, aFrames, "from-b")

	// The first frame c sees must come from its own room.
	if err := d.Post(ctx, []byte("from-d")); err != nil {
		t.Fatalf("Post: %v", err)
	}
	expectFrame(t, cFrames, "from-d")

	stats := relay.Stats()
	if stats.Rooms != 2 || stats.Peers != 4 || stats.FramesIn != 3 || stats.FramesDropped != 0 {
		t.Errorf("Stats = %+v, want 2 rooms, 4 peers, 3 frames in", stats)
	}
}

func TestRelayObservesFrames(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	relay, url := startRelay(t, WithFrameObserver(func(room string, data []byte) {
		mu.Lock()
		seen = append(seen, room+":"+string(data))
		mu.Unlock()
	}))
	a, _ := dialPeer(t, url, "obs")
	_, bFrames := dialPeer(t, url, "obs")
	waitForRoom(t, relay, "obs", 2)

	if err := a.Post(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("Post: %v", err)
	}
	expectFrame(t, bFrames, "hello")

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "obs:hello" {
		t.Errorf("observed = %v, want [obs:hello]", seen)
	}
}

func TestRelayRejectsInvalidSession(t *testing.T) {
	_, url := startRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Dial(ctx, url, DialOptions{Session: "../escape"}); err == nil {
		t.Fatal("expected dial with invalid session to fail")
	}
}

func TestDialRejectsNonWebSocketURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Dial(ctx, "http://127.0.0.1:1/relay", DialOptions{}); err == nil || !strings.Contains(err.Error(), "scheme") {
		t.Fatalf("Dial(http://) error = %v, want scheme error", err)
	}
}

func TestConnClosed(t *testing.T) {
	relay, url := startRelay(t)
	conn, _ := dialPeer(t, url, "")
	waitForRoom(t, relay, DefaultRoom, 1)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection not done after Close")
	}
	if err := conn.Post(context.Background(), []byte("late")); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("Post after close = %v, want ErrClosed", err)
	}
	waitForRoom(t, relay, DefaultRoom, 0)
}

func TestDialReportsRelayVersion(t *testing.T) {
	t.Cleanup(version.ForTesting("1.4.0"))
	relay, url := startRelay(t)
	conn, _ := dialPeer(t, url, "")
	waitForRoom(t, relay, DefaultRoom, 1)

	if got := conn.RelayVersion(); got != "1.4.0" {
		t.Fatalf("RelayVersion = %q, want 1.4.0", got)
	}
}

func TestDialTLSRelay(t *testing.T) {
	relay := NewRelay()
	server := httptest.NewTLSServer(relay)
	t.Cleanup(func() {
		relay.Close()
		server.Close()
	})
	url := "wss" + strings.TrimPrefix(server.URL, "https")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := Dial(ctx, url, DialOptions{}); err == nil {
		t.Fatal("expected certificate verification to fail")
	}

	conn, err := Dial(ctx, url, DialOptions{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("Dial with InsecureSkipVerify: %v", err)
	}
	defer conn.Close()
	waitForRoom(t, relay, DefaultRoom, 1)
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Dial(ctx, "ws://127.0.0.1:1/relay", DialOptions{}); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestHandshakeOverRelay(t *testing.T) {
	relay, url := startRelay(t)
	hostConn, _ := dialPeer(t, url, "page-1")
	clientConn, _ := dialPeer(t, url, "page-1")
	waitForRoom(t, relay, "page-1", 2)

	host, err := design.NewHost(design.HostOptions{ID: "test-host", Transport: hostConn})
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	defer host.Disconnect()
	client, err := design.NewClient(design.ClientOptions{ID: "test-client", Transport: clientConn})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := host.Connect(ctx, design.HostConnectOptions{}); err != nil {
		t.Fatalf("host Connect: %v", err)
	}
	err = client.Connect(ctx, design.ConnectOptions{Interval: 20 * time.Millisecond, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("client Connect: %v", err)
	}

	if client.RemoteID() != "test-host" {
		t.Fatalf("client remote = %q", client.RemoteID())
	}
	deadline := time.Now().Add(5 * time.Second)
	for host.RemoteID() != "test-client" {
		if time.Now().After(deadline) {
			t.Fatalf("host remote = %q", host.RemoteID())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
