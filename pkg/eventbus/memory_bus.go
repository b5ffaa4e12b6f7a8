package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Message is a delivered event-bus message.
type Message struct {
	Subject   string
	Payload   []byte
	Timestamp time.Time
}

// Bus is a subject-addressed pub/sub transport.
type Bus interface {
	Transport
	Subscribe(pattern string, buffer int) (*Subscription, error)
	Healthy() bool
	Close() error
}

// Subscription represents a stream subscription.
type Subscription struct {
	pattern string
	ch      chan Message
	stop    func()
	once    sync.Once
}

// Pattern returns the subject pattern the subscription was opened with.
func (s *Subscription) Pattern() string {
	return s.pattern
}

// C returns read-only message channel. It is closed when the subscription
// or its bus is closed.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Close removes the subscription and closes its channel.
func (s *Subscription) Close() error {
	s.once.Do(s.stop)
	return nil
}

// MemoryBus is an in-process pub/sub transport. Delivery is non-blocking:
// a subscriber whose buffer is full misses the message.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string][]*Subscription
	closed      bool
}

// NewMemoryBus creates an in-memory event bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subscribers: make(map[string][]*Subscription),
	}
}

// Publish publishes to all matching subscriptions.
func (b *MemoryBus) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if subject == "" {
		return fmt.Errorf("eventbus: subject cannot be empty")
	}

	msg := Message{
		Subject:   subject,
		Payload:   append([]byte(nil), payload...),
		Timestamp: time.Now().UTC(),
	}

	// Sends happen under the read lock so unsubscribe cannot close a
	// channel mid-delivery.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for pattern, subs := range b.subscribers {
		if !subjectMatches(pattern, subject) {
			continue
		}
		for _, sub := range subs {
			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
	return nil
}

// Subscribe subscribes by subject pattern.
func (b *MemoryBus) Subscribe(pattern string, buffer int) (*Subscription, error) {
	if pattern == "" {
		return nil, fmt.Errorf("eventbus: subscription pattern cannot be empty")
	}
	if buffer <= 0 {
		buffer = 32
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	sub := &Subscription{
		pattern: pattern,
		ch:      make(chan Message, buffer),
	}
	sub.stop = func() { b.unsubscribe(sub) }
	b.subscribers[pattern] = append(b.subscribers[pattern], sub)
	return sub, nil
}

// Healthy reports whether the bus accepts messages.
func (b *MemoryBus) Healthy() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

// Close closes every subscription. Further publishes fail with ErrBusClosed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*Subscription
	for _, subs := range b.subscribers {
		all = append(all, subs...)
	}
	b.mu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
	return nil
}

func (b *MemoryBus) unsubscribe(target *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[target.pattern]
	filtered := subs[:0]
	for _, sub := range subs {
		if sub == target {
			continue
		}
		filtered = append(filtered, sub)
	}
	if len(filtered) == 0 {
		delete(b.subscribers, target.pattern)
	} else {
		b.subscribers[target.pattern] = filtered
	}
	close(target.ch)
}

// subjectMatches supports exact, "*" segment, and ">" suffix wildcards.
func subjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	if pattern == ">" {
		return true
	}
	if strings.HasSuffix(pattern, ".>") {
		prefix := strings.TrimSuffix(pattern, ".>")
		return subject == prefix || strings.HasPrefix(subject, prefix+".")
	}

	patternParts := strings.Split(pattern, ".")
	subjectParts := strings.Split(subject, ".")
	if len(patternParts) != len(subjectParts) {
		return false
	}
	for i := range patternParts {
		if patternParts[i] == "*" {
			continue
		}
		if patternParts[i] != subjectParts[i] {
			return false
		}
	}
	return true
}
