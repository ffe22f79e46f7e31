package observability

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pdsdk/pagedesigner/internal/eventbus"
	"github.com/pdsdk/pagedesigner/internal/protocol"
	"github.com/pdsdk/pagedesigner/internal/transport/ws"
)

func frame(t *testing.T, eventType protocol.EventType) []byte {
	t.Helper()
	data, err := protocol.Encode(protocol.Envelope{
		EventType: eventType,
		Meta:      protocol.Meta{PDMessagingAPI: true, Source: protocol.SourceHost, HostID: "h1"},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestEventCounterSnapshot(t *testing.T) {
	counter := NewEventCounter()

	counter.Observe("room", frame(t, protocol.EventComponentSelected))
	counter.Observe("room", frame(t, protocol.EventComponentSelected))
	counter.Observe("other", frame(t, protocol.EventClientReady))

	snapshot := counter.Snapshot()
	if snapshot[protocol.EventComponentSelected] != 2 {
		t.Fatalf("expected ComponentSelected count 2, got %d", snapshot[protocol.EventComponentSelected])
	}
	if snapshot[protocol.EventClientReady] != 1 {
		t.Fatalf("expected ClientReady count 1, got %d", snapshot[protocol.EventClientReady])
	}
	if counter.Invalid() != 0 {
		t.Fatalf("expected no invalid frames, got %d", counter.Invalid())
	}
}

func TestEventCounterCountsInvalidFrames(t *testing.T) {
	counter := NewEventCounter()

	counter.Observe("room", []byte("not json"))
	counter.Observe("room", []byte(`{"meta":{"pdMessagingApi":true,"source":"host"}}`))
	counter.Observe("room", []byte(`{"eventType":"ClientReady","meta":{"source":"client"}}`))
	counter.Observe("room", []byte(`{"eventType":"ClientReady","meta":{"pdMessagingApi":true,"source":"iframe"}}`))

	if got := counter.Invalid(); got != 4 {
		t.Fatalf("expected 4 invalid frames, got %d", got)
	}
	if len(counter.Snapshot()) != 0 {
		t.Fatalf("expected no counted event types, got %v", counter.Snapshot())
	}
}

func TestEventCounterConcurrentObserve(t *testing.T) {
	counter := NewEventCounter()
	data := frame(t, protocol.EventComponentHoveredIn)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				counter.Observe("room", data)
			}
		}()
	}
	wg.Wait()

	if got := counter.Snapshot()[protocol.EventComponentHoveredIn]; got != 800 {
		t.Fatalf("expected 800 observations, got %d", got)
	}
}

type relayStub struct{ stats ws.RelayStats }

func (r relayStub) Stats() ws.RelayStats { return r.stats }

func TestPrometheusExporter(t *testing.T) {
	counter := NewEventCounter()
	counter.Observe("room", frame(t, protocol.EventComponentDeleted))
	counter.Observe("room", frame(t, protocol.EventClientInitialized))
	counter.Observe("room", []byte("{}"))

	bus := eventbus.New()
	unsubscribe := bus.Subscribe(func([]byte) {})
	defer unsubscribe()
	_ = bus.Post(context.Background(), []byte("a"))
	_ = bus.Post(context.Background(), []byte("b"))

	exporter := NewPrometheusExporter(counter).
		WithRelay(relayStub{stats: ws.RelayStats{Rooms: 2, Peers: 5, FramesIn: 40, FramesDropped: 1}}).
		WithBus("local", bus)

	metrics := string(exporter.Export())

	expected := []string{
		`pagedesigner_events_total{event_type="ClientInitialized"} 1`,
		`pagedesigner_events_total{event_type="ComponentDeleted"} 1`,
		`pagedesigner_invalid_frames_total 1`,
		`pagedesigner_relay_rooms 2`,
		`pagedesigner_relay_peers 5`,
		`pagedesigner_relay_frames_total 40`,
		`pagedesigner_relay_dropped_total 1`,
		`pagedesigner_bus_posted_total{bus="local"} 2`,
		`pagedesigner_bus_delivered_total{bus="local"} 2`,
	}
	for _, line := range expected {
		if !strings.Contains(metrics, line) {
			t.Errorf("expected %q in metrics output:\n%s", line, metrics)
		}
	}

	if strings.Index(metrics, `event_type="ClientInitialized"`) > strings.Index(metrics, `event_type="ComponentDeleted"`) {
		t.Errorf("expected event types in sorted order:\n%s", metrics)
	}
}

func TestPrometheusExporterOmitsMissingProviders(t *testing.T) {
	metrics := string(NewPrometheusExporter(nil).Export())
	if metrics != "" {
		t.Fatalf("expected empty output without providers, got:\n%s", metrics)
	}
}

func TestPrometheusExporterServeHTTP(t *testing.T) {
	exporter := NewPrometheusExporter(NewEventCounter())

	rec := httptest.NewRecorder()
	exporter.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "pagedesigner_invalid_frames_total 0") {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}
}
