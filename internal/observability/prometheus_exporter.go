package observability

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"

	"github.com/pdsdk/pagedesigner/internal/eventbus"
	"github.com/pdsdk/pagedesigner/internal/protocol"
	"github.com/pdsdk/pagedesigner/internal/transport/ws"
)

// PrometheusExporter renders relay and bus metrics in Prometheus text format.
type PrometheusExporter struct {
	counter *EventCounter
	relay   RelayStatsProvider
	buses   map[string]BusMetricsProvider
}

// RelayStatsProvider is satisfied by *ws.Relay.
type RelayStatsProvider interface {
	Stats() ws.RelayStats
}

// BusMetricsProvider is satisfied by *eventbus.Bus and *ws.Conn.
type BusMetricsProvider interface {
	Metrics() eventbus.Metrics
}

// NewPrometheusExporter constructs an exporter backed by the provided event counter.
// counter may be nil.
func NewPrometheusExporter(counter *EventCounter) *PrometheusExporter {
	return &PrometheusExporter{counter: counter}
}

// WithRelay enables exporting relay room and frame counters.
func (e *PrometheusExporter) WithRelay(provider RelayStatsProvider) *PrometheusExporter {
	e.relay = provider
	return e
}

// WithBus exports delivery counters of a bus under the given name label.
func (e *PrometheusExporter) WithBus(name string, provider BusMetricsProvider) *PrometheusExporter {
	if e.buses == nil {
		e.buses = make(map[string]BusMetricsProvider)
	}
	e.buses[name] = provider
	return e
}

// Export produces the metrics payload in Prometheus' text exposition format.
func (e *PrometheusExporter) Export() []byte {
	var buf bytes.Buffer

	e.writeEventCounters(&buf)
	e.writeRelayMetrics(&buf)
	e.writeBusMetrics(&buf)

	return buf.Bytes()
}

// ServeHTTP serves Export on any path it is mounted at.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_, _ = w.Write(e.Export())
}

func (e *PrometheusExporter) writeEventCounters(buf *bytes.Buffer) {
	if e.counter == nil {
		return
	}

	counts := e.counter.Snapshot()
	if len(counts) > 0 {
		buf.WriteString("# HELP pagedesigner_events_total Total number of relayed envelopes per event type.\n")
		buf.WriteString("# TYPE pagedesigner_events_total counter\n")

		types := make([]string, 0, len(counts))
		for eventType := range counts {
			types = append(types, string(eventType))
		}
		sort.Strings(types)
		for _, name := range types {
			fmt.Fprintf(buf, "pagedesigner_events_total{event_type=%q} %d\n", name, counts[protocol.EventType(name)])
		}
	}

	buf.WriteString("# HELP pagedesigner_invalid_frames_total Total number of relayed frames that were not designer envelopes.\n")
	buf.WriteString("# TYPE pagedesigner_invalid_frames_total counter\n")
	fmt.Fprintf(buf, "pagedesigner_invalid_frames_total %d\n", e.counter.Invalid())
}

func (e *PrometheusExporter) writeRelayMetrics(buf *bytes.Buffer) {
	if e.relay == nil {
		return
	}
	stats := e.relay.Stats()

	buf.WriteString("# HELP pagedesigner_relay_rooms Number of sessions with at least one connected peer.\n")
	buf.WriteString("# TYPE pagedesigner_relay_rooms gauge\n")
	fmt.Fprintf(buf, "pagedesigner_relay_rooms %d\n", stats.Rooms)

	buf.WriteString("# HELP pagedesigner_relay_peers Number of connected peers.\n")
	buf.WriteString("# TYPE pagedesigner_relay_peers gauge\n")
	fmt.Fprintf(buf, "pagedesigner_relay_peers %d\n", stats.Peers)

	buf.WriteString("# HELP pagedesigner_relay_frames_total Total number of frames received from peers.\n")
	buf.WriteString("# TYPE pagedesigner_relay_frames_total counter\n")
	fmt.Fprintf(buf, "pagedesigner_relay_frames_total %d\n", stats.FramesIn)

	buf.WriteString("# HELP pagedesigner_relay_dropped_total Total number of frames dropped for slow peers.\n")
	buf.WriteString("# TYPE pagedesigner_relay_dropped_total counter\n")
	fmt.Fprintf(buf, "pagedesigner_relay_dropped_total %d\n", stats.FramesDropped)
}

func (e *PrometheusExporter) writeBusMetrics(buf *bytes.Buffer) {
	if len(e.buses) == 0 {
		return
	}
	names := make([]string, 0, len(e.buses))
	for name := range e.buses {
		names = append(names, name)
	}
	sort.Strings(names)

	buf.WriteString("# HELP pagedesigner_bus_posted_total Total number of envelopes posted on a bus.\n")
	buf.WriteString("# TYPE pagedesigner_bus_posted_total counter\n")
	for _, name := range names {
		fmt.Fprintf(buf, "pagedesigner_bus_posted_total{bus=%q} %d\n", name, e.buses[name].Metrics().PublishTotal)
	}

	buf.WriteString("# HELP pagedesigner_bus_delivered_total Total number of envelopes delivered to subscribers.\n")
	buf.WriteString("# TYPE pagedesigner_bus_delivered_total counter\n")
	for _, name := range names {
		fmt.Fprintf(buf, "pagedesigner_bus_delivered_total{bus=%q} %d\n", name, e.buses[name].Metrics().DeliveredTotal)
	}
}
