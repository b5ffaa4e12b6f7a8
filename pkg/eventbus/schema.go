package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidEnvelope is wrapped by every envelope or payload validation
// failure.
var ErrInvalidEnvelope = errors.New("eventbus: invalid envelope")

// PayloadSchema lists the payload keys an event type must carry in a given
// schema version.
type PayloadSchema struct {
	SchemaVersion string
	EventType     string
	Required      []string
}

// EnvelopeDecoder turns an envelope of one schema version into the value
// handed to consumers.
type EnvelopeDecoder func(envelope Envelope) (any, error)

// SchemaRouter validates envelopes against registered payload schemas and
// routes decoding by schema version. Event types without a schema only get
// the envelope checks.
type SchemaRouter struct {
	mu       sync.RWMutex
	schemas  map[schemaKey]PayloadSchema
	decoders map[string]EnvelopeDecoder
}

type schemaKey struct {
	version   string
	eventType string
}

// NewSchemaRouter creates an empty router.
func NewSchemaRouter() *SchemaRouter {
	return &SchemaRouter{
		schemas:  make(map[schemaKey]PayloadSchema),
		decoders: make(map[string]EnvelopeDecoder),
	}
}

// RegisterPayloadSchema adds or replaces the schema for its version and event type.
func (r *SchemaRouter) RegisterPayloadSchema(schema PayloadSchema) error {
	if schema.SchemaVersion == "" || schema.EventType == "" {
		return fmt.Errorf("eventbus: schema version and event type are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[schemaKey{schema.SchemaVersion, schema.EventType}] = schema
	return nil
}

// RegisterDecoder sets the decoder for a schema version.
func (r *SchemaRouter) RegisterDecoder(schemaVersion string, decoder EnvelopeDecoder) error {
	if schemaVersion == "" {
		return fmt.Errorf("eventbus: schema version is required")
	}
	if decoder == nil {
		return fmt.Errorf("eventbus: decoder cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[schemaVersion] = decoder
	return nil
}

// Validate checks identity and ordering fields, then the payload keys
// required by the registered schema.
func (r *SchemaRouter) Validate(envelope Envelope) error {
	switch {
	case envelope.EventID == "", envelope.EventType == "", envelope.SchemaVersion == "":
		return fmt.Errorf("%w: missing id, type or schema version", ErrInvalidEnvelope)
	case envelope.NodeID == "", envelope.OrderingKey == "", envelope.Sequence <= 0:
		return fmt.Errorf("%w: missing node, ordering key or sequence", ErrInvalidEnvelope)
	}

	r.mu.RLock()
	schema, ok := r.schemas[schemaKey{envelope.SchemaVersion, envelope.EventType}]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Payload, &fields); err != nil {
		return fmt.Errorf("%w: %s payload is not an object: %v", ErrInvalidEnvelope, envelope.EventType, err)
	}
	for _, key := range schema.Required {
		if _, ok := fields[key]; !ok {
			return fmt.Errorf("%w: %s payload missing %q", ErrInvalidEnvelope, envelope.EventType, key)
		}
	}
	return nil
}

// Decode runs the decoder registered for the envelope's schema version, or
// returns the envelope unchanged when there is none.
func (r *SchemaRouter) Decode(envelope Envelope) (any, error) {
	r.mu.RLock()
	decoder := r.decoders[envelope.SchemaVersion]
	r.mu.RUnlock()
	if decoder == nil {
		return envelope, nil
	}
	return decoder(envelope)
}
