package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultDedupeWindow is how many recent event ids a consumer remembers.
const DefaultDedupeWindow = 4096

// ConsumerOption configures an EnvelopeConsumer.
type ConsumerOption func(*EnvelopeConsumer)

// WithDedupeWindow sets how many recent event ids are remembered. Values
// below 1 are ignored.
func WithDedupeWindow(n int) ConsumerOption {
	return func(c *EnvelopeConsumer) {
		if n > 0 {
			c.window = n
		}
	}
}

// EnvelopeConsumer decodes raw bus messages, validates them and drops
// redeliveries. Duplicates are detected within a sliding window of the most
// recent event ids, so memory stays bounded on long-lived streams.
type EnvelopeConsumer struct {
	router *SchemaRouter
	window int

	mu   sync.Mutex
	seen map[string]struct{}
	ring []string
	next int
}

// NewEnvelopeConsumer creates a consumer. A nil router skips payload
// validation and decoding.
func NewEnvelopeConsumer(router *SchemaRouter, opts ...ConsumerOption) *EnvelopeConsumer {
	c := &EnvelopeConsumer{router: router, window: DefaultDedupeWindow}
	for _, opt := range opts {
		opt(c)
	}
	c.seen = make(map[string]struct{}, c.window)
	c.ring = make([]string, 0, c.window)
	return c
}

// DecodeAndValidate returns the envelope, its decoded form and whether it
// was already delivered. An envelope that fails to decode is not remembered,
// so a corrected redelivery is still accepted.
func (c *EnvelopeConsumer) DecodeAndValidate(raw []byte) (Envelope, any, bool, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, nil, false, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	var decoded any = envelope
	if c.router != nil {
		if err := c.router.Validate(envelope); err != nil {
			return Envelope{}, nil, false, err
		}
	} else if envelope.EventID == "" {
		return Envelope{}, nil, false, fmt.Errorf("%w: missing event id", ErrInvalidEnvelope)
	}

	if c.seenBefore(envelope.EventID) {
		return envelope, nil, true, nil
	}

	if c.router != nil {
		var err error
		if decoded, err = c.router.Decode(envelope); err != nil {
			return Envelope{}, nil, false, err
		}
	}

	c.remember(envelope.EventID)
	return envelope, decoded, false, nil
}

func (c *EnvelopeConsumer) seenBefore(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[id]
	return ok
}

// remember records id, evicting the oldest id once the window is full.
func (c *EnvelopeConsumer) remember(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[id]; ok {
		return
	}
	if len(c.ring) < c.window {
		c.ring = append(c.ring, id)
	} else {
		delete(c.seen, c.ring[c.next])
		c.ring[c.next] = id
		c.next = (c.next + 1) % c.window
	}
	c.seen[id] = struct{}{}
}
