package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEnvelopeWireFormatIsFlat(t *testing.T) {
	payload, err := EncodePayload(ComponentSelectedEvent{ComponentID: "c1"})
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	data, err := Encode(Envelope{
		EventType: EventComponentSelected,
		Meta:      Meta{PDMessagingAPI: true, Source: SourceClient, ClientID: "cl", HostID: "ho"},
		Payload:   payload,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	if wire["eventType"] != "ComponentSelected" {
		t.Fatalf("eventType = %v", wire["eventType"])
	}
	if wire["componentId"] != "c1" {
		t.Fatalf("componentId not at top level: %s", data)
	}
	meta, ok := wire["meta"].(map[string]any)
	if !ok {
		t.Fatalf("meta missing: %s", data)
	}
	if meta["pdMessagingApi"] != true || meta["source"] != "client" || meta["clientId"] != "cl" || meta["hostId"] != "ho" {
		t.Fatalf("unexpected meta: %v", meta)
	}
}

func TestDecodeSplitsPayload(t *testing.T) {
	raw := `{"eventType":"ComponentDeleted","meta":{"pdMessagingApi":true,"source":"host","hostId":"h"},` +
		`"componentId":"x","sourceComponentId":"p","sourceRegionId":"main"}`
	env, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.EventType != EventComponentDeleted || env.Meta.HostID != "h" || env.Meta.Source != SourceHost {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	ev, err := ComponentDeleted.Payload(env)
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	want := ComponentDeletedEvent{ComponentID: "x", SourceComponentID: "p", SourceRegionID: "main"}
	if ev != want {
		t.Fatalf("payload = %+v, want %+v", ev, want)
	}
}

func TestDecodeRejectsNonProtocolMessages(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "array", raw: `[1,2]`, want: ErrNotObject},
		{name: "no event type", raw: `{"meta":{}}`, want: ErrMissingEventType},
		{name: "empty event type", raw: `{"eventType":""}`, want: ErrMissingEventType},
		{
			name: "client id of wrong type",
			raw:  `{"eventType":"ComponentSelected","meta":{"pdMessagingApi":true,"source":"client","clientId":7}}`,
			want: ErrInvalidMeta,
		},
		{name: "meta not an object", raw: `{"eventType":"ClientReady","meta":"host"}`, want: ErrInvalidMeta},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode(%s) error = %v, want %v", tt.raw, err, tt.want)
			}
		})
	}
}

func TestAcceptedBy(t *testing.T) {
	tests := []struct {
		name string
		meta Meta
		own  Source
		want bool
	}{
		{name: "host message to client", meta: Meta{PDMessagingAPI: true, Source: SourceHost}, own: SourceClient, want: true},
		{name: "client message to host", meta: Meta{PDMessagingAPI: true, Source: SourceClient}, own: SourceHost, want: true},
		{name: "own echo", meta: Meta{PDMessagingAPI: true, Source: SourceClient}, own: SourceClient, want: false},
		{name: "missing marker", meta: Meta{Source: SourceHost}, own: SourceClient, want: false},
		{name: "unknown source", meta: Meta{PDMessagingAPI: true, Source: "iframe"}, own: SourceClient, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Envelope{EventType: EventComponentSelected, Meta: tt.meta}
			if got := env.AcceptedBy(tt.own); got != tt.want {
				t.Fatalf("AcceptedBy = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventDefPayloadRejectsOtherType(t *testing.T) {
	env := Envelope{EventType: EventComponentHoveredIn, Payload: json.RawMessage(`{"componentId":"a"}`)}
	if _, err := ComponentSelected.Payload(env); err == nil {
		t.Fatal("expected error decoding a HoveredIn envelope as ComponentSelected")
	}
	ev, err := ComponentHoveredIn.Payload(env)
	if err != nil || ev.ComponentID != "a" {
		t.Fatalf("Payload = %+v, %v", ev, err)
	}
}

func TestEncodePayloadRejectsNonObjects(t *testing.T) {
	if _, err := EncodePayload([]string{"a"}); !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
	data, err := EncodePayload(nil)
	if err != nil || string(data) != "{}" {
		t.Fatalf("EncodePayload(nil) = %s, %v", data, err)
	}
}
