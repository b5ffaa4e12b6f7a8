// Package events relays agent events from the event bus to stream clients.
package events

import (
	"context"
	"sync"

	"github.com/goclaw/hyperagent/pkg/api/handlers"
	"github.com/goclaw/hyperagent/pkg/eventbus"
	"github.com/goclaw/hyperagent/pkg/logger"
)

// Source opens bus subscriptions.
type Source interface {
	Subscribe(pattern string) (*eventbus.Subscription, error)
}

// Sink receives decoded events.
type Sink interface {
	Broadcast(event handlers.EventMessage) error
}

// Relay forwards every envelope published on the bus to a sink. Duplicate
// deliveries are dropped and payloads are decoded by schema version.
type Relay struct {
	source   Source
	sink     Sink
	consumer *eventbus.EnvelopeConsumer
	logger   logger.Logger
	pattern  string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRelay creates a relay from source to sink.
func NewRelay(source Source, sink Sink, log logger.Logger) *Relay {
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{
		source:   source,
		sink:     sink,
		consumer: eventbus.NewEnvelopeConsumer(eventbus.NewAgentSchemaRouter()),
		logger:   log,
		pattern:  eventbus.AllSubjects(),
	}
}

// Start subscribes and forwards in the background until Stop or ctx ends.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}

	sub, err := r.source.Subscribe(r.pattern)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.forward(ctx, sub, r.done)
	return nil
}

// Stop ends forwarding and waits for the relay goroutine.
func (r *Relay) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Relay) forward(ctx context.Context, sub *eventbus.Subscription, done chan struct{}) {
	defer close(done)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			r.deliver(msg)
		}
	}
}

func (r *Relay) deliver(msg eventbus.Message) {
	env, decoded, dup, err := r.consumer.DecodeAndValidate(msg.Payload)
	if err != nil {
		r.logger.Warn("dropping undecodable event", "subject", msg.Subject, "error", err)
		return
	}
	if dup {
		return
	}
	var payload any = env.Payload
	if d, ok := decoded.(eventbus.Decoded); ok {
		payload = d.Payload
	}
	event := handlers.EventMessage{
		Type:      env.EventType,
		GoalID:    env.GoalID,
		Cycle:     env.Cycle,
		Timestamp: env.Timestamp,
		Payload:   payload,
	}
	if err := r.sink.Broadcast(event); err != nil {
		r.logger.Warn("failed to broadcast event", "event", env.EventType, "error", err)
	}
}
