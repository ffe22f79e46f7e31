package eventbus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pdsdk/pagedesigner/internal/eventbus"
	"github.com/pdsdk/pagedesigner/internal/transport"
)

func TestBusPostDeliversInSubscriptionOrder(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()

	var order []string
	bus.Subscribe(func(data []byte) { order = append(order, "first:"+string(data)) })
	bus.Subscribe(func(data []byte) { order = append(order, "second:"+string(data)) })

	if err := bus.Post(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("Post: %v", err)
	}

	if len(order) != 2 || order[0] != "first:hello" || order[1] != "second:hello" {
		t.Fatalf("unexpected delivery order: %v", order)
	}

	metrics := bus.Metrics()
	if metrics.PublishTotal != 1 {
		t.Fatalf("expected PublishTotal 1, got %d", metrics.PublishTotal)
	}
	if metrics.DeliveredTotal != 2 {
		t.Fatalf("expected DeliveredTotal 2, got %d", metrics.DeliveredTotal)
	}
}

func TestBusUnsubscribeIsIdempotentAndIsolated(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()

	var first, second int
	unsubFirst := bus.Subscribe(func([]byte) { first++ })
	bus.Subscribe(func([]byte) { second++ })

	ctx := context.Background()
	_ = bus.Post(ctx, []byte("a"))
	unsubFirst()
	unsubFirst()
	_ = bus.Post(ctx, []byte("b"))

	if first != 1 {
		t.Fatalf("expected first handler to fire once, got %d", first)
	}
	if second != 2 {
		t.Fatalf("expected second handler to fire twice, got %d", second)
	}
	if n := bus.SubscriberCount(); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}
}

func TestBusHandlerMayPostReentrantly(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()

	ctx := context.Background()
	var got []string
	bus.Subscribe(func(data []byte) {
		got = append(got, string(data))
		if string(data) == "ping" {
			if err := bus.Post(ctx, []byte("pong")); err != nil {
				t.Errorf("nested Post: %v", err)
			}
		}
	})

	if err := bus.Post(ctx, []byte("ping")); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(got) != 2 || got[0] != "ping" || got[1] != "pong" {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestBusHandlerUnsubscribingDuringDeliverySkipsLaterRemoved(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()

	var unsubSecond func()
	var second int
	bus.Subscribe(func([]byte) { unsubSecond() })
	unsubSecond = bus.Subscribe(func([]byte) { second++ })

	_ = bus.Post(context.Background(), []byte("x"))
	if second != 0 {
		t.Fatalf("handler removed mid-delivery still fired %d times", second)
	}
}

func TestBusShutdown(t *testing.T) {
	bus := eventbus.New()
	called := false
	bus.Subscribe(func([]byte) { called = true })
	bus.Shutdown()

	err := bus.Post(context.Background(), []byte("x"))
	if !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if called {
		t.Fatal("handler invoked after shutdown")
	}
	bus.Subscribe(func([]byte) {})()
	if n := bus.SubscriberCount(); n != 0 {
		t.Fatalf("expected no subscribers after shutdown, got %d", n)
	}
}

func TestBusCancelledContextStopsDelivery(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()

	called := false
	bus.Subscribe(func([]byte) { called = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bus.Post(ctx, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatal("handler invoked with cancelled context")
	}
}

func TestNilBus(t *testing.T) {
	var bus *eventbus.Bus
	bus.Shutdown()
	bus.Subscribe(func([]byte) {})()
	if err := bus.Post(context.Background(), nil); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("expected ErrClosed on nil bus, got %v", err)
	}
}
