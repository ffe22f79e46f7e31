// Package protocol defines the page designer messaging wire format: the
// envelope every message travels in and the vocabulary of events that
// host and client exchange.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType discriminates the logical event carried by an envelope.
type EventType string

// AnyEvent is the wildcard channel. Handlers registered for it observe
// every accepted envelope after the exact-type handlers ran.
const AnyEvent EventType = "*"

// Source identifies which role emitted a message.
type Source string

const (
	SourceHost   Source = "host"
	SourceClient Source = "client"
)

// Valid reports whether s is one of the two protocol roles.
func (s Source) Valid() bool {
	return s == SourceHost || s == SourceClient
}

// Meta carries the routing metadata stamped on every envelope.
type Meta struct {
	PDMessagingAPI bool   `json:"pdMessagingApi"`
	Source         Source `json:"source"`
	ClientID       string `json:"clientId,omitempty"`
	HostID         string `json:"hostId,omitempty"`
}

// Envelope is a single protocol message. On the wire the payload fields
// sit at the top level next to eventType and meta:
//
//	{"eventType":"ComponentSelected","meta":{...},"componentId":"c1"}
type Envelope struct {
	EventType EventType
	Meta      Meta
	// Payload holds the event specific fields as a JSON object.
	Payload json.RawMessage
}

var (
	// ErrNotObject is returned when a message is not a JSON object.
	ErrNotObject = errors.New("protocol: message is not a JSON object")
	// ErrMissingEventType is returned for objects without an eventType.
	ErrMissingEventType = errors.New("protocol: message has no eventType")
	// ErrInvalidMeta is returned when meta is present but not a Meta object.
	ErrInvalidMeta = errors.New("protocol: message meta is malformed")
)

const (
	fieldEventType = "eventType"
	fieldMeta      = "meta"
)

// MarshalJSON flattens the payload fields beside eventType and meta.
func (e Envelope) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if len(e.Payload) > 0 && string(e.Payload) != "null" {
		if err := json.Unmarshal(e.Payload, &fields); err != nil {
			return nil, fmt.Errorf("protocol: payload for %s: %w", e.EventType, ErrNotObject)
		}
	}

	eventType, err := json.Marshal(e.EventType)
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return nil, err
	}
	fields[fieldEventType] = eventType
	fields[fieldMeta] = meta
	return json.Marshal(fields)
}

// UnmarshalJSON splits a flat wire object back into an Envelope.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return ErrNotObject
	}

	rawType, ok := fields[fieldEventType]
	if !ok {
		return ErrMissingEventType
	}
	var eventType EventType
	if err := json.Unmarshal(rawType, &eventType); err != nil || eventType == "" {
		return ErrMissingEventType
	}

	var meta Meta
	if rawMeta, ok := fields[fieldMeta]; ok {
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMeta, err)
		}
	}

	delete(fields, fieldEventType)
	delete(fields, fieldMeta)
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	e.EventType = eventType
	e.Meta = meta
	e.Payload = payload
	return nil
}

// Decode parses a raw transport message.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Encode serialises env for the transport.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// AcceptedBy reports whether a receiver running as role own may process
// env: the protocol marker must be set and the sender must be the other
// role. Envelopes a peer emitted itself are rejected, which keeps
// broadcast transports from looping messages back to their sender.
func (e Envelope) AcceptedBy(own Source) bool {
	return e.Meta.PDMessagingAPI && e.Meta.Source.Valid() && e.Meta.Source != own
}

// DecodePayload unmarshals the payload fields into v.
func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(e.Payload, v)
}

// EncodePayload converts an event struct into the payload object form.
func EncodePayload(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrNotObject
	}
	return data, nil
}

// EventDef binds an EventType to its payload type at compile time.
type EventDef[T any] struct{ eventType EventType }

// NewEventDef creates a typed event descriptor.
func NewEventDef[T any](eventType EventType) EventDef[T] {
	return EventDef[T]{eventType: eventType}
}

// Type returns the wire discriminator.
func (d EventDef[T]) Type() EventType { return d.eventType }

// Payload decodes env's payload as T.
func (d EventDef[T]) Payload(env Envelope) (T, error) {
	var payload T
	if env.EventType != d.eventType {
		return payload, fmt.Errorf("protocol: envelope is %s, not %s", env.EventType, d.eventType)
	}
	if err := env.DecodePayload(&payload); err != nil {
		return payload, fmt.Errorf("protocol: decode %s payload: %w", d.eventType, err)
	}
	return payload, nil
}
