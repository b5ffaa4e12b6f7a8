package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("eventbus: bus is closed")

// DefaultChannelPrefix namespaces Redis channels.
const DefaultChannelPrefix = "hyperagent:events:"

// RedisBus is a Redis Pub/Sub-backed bus. Subjects map to channels by
// prepending the channel prefix, so several agents can share one Redis.
type RedisBus struct {
	client        redis.UniversalClient
	channelPrefix string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[*Subscription]*redisSubscription
	closed bool
}

type redisSubscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisBus creates a new Redis-backed bus.
func NewRedisBus(client redis.UniversalClient, channelPrefix string) *RedisBus {
	if channelPrefix == "" {
		channelPrefix = DefaultChannelPrefix
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBus{
		client:        client,
		channelPrefix: channelPrefix,
		ctx:           ctx,
		cancel:        cancel,
		subs:          make(map[*Subscription]*redisSubscription),
	}
}

// Publish sends payload to the channel for subject.
func (b *RedisBus) Publish(ctx context.Context, subject string, payload []byte) error {
	if subject == "" {
		return fmt.Errorf("eventbus: subject cannot be empty")
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}
	if err := b.client.Publish(ctx, b.channelPrefix+subject, payload).Err(); err != nil {
		return fmt.Errorf("eventbus: redis publish: %w", err)
	}
	return nil
}

// Subscribe opens a pattern subscription. Wildcards are translated to a
// Redis glob and every delivered subject is re-checked against pattern.
func (b *RedisBus) Subscribe(pattern string, buffer int) (*Subscription, error) {
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

	subCtx, cancel := context.WithCancel(b.ctx)
	pubsub := b.client.PSubscribe(subCtx, b.channelPrefix+redisGlob(pattern))
	rs := &redisSubscription{pubsub: pubsub, cancel: cancel, done: make(chan struct{})}
	sub := &Subscription{pattern: pattern, ch: make(chan Message, buffer)}
	sub.stop = func() {
		rs.cancel()
		<-rs.done
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	}
	b.subs[sub] = rs

	go b.forward(subCtx, rs, sub)
	return sub, nil
}

func (b *RedisBus) forward(ctx context.Context, rs *redisSubscription, sub *Subscription) {
	defer close(rs.done)
	defer close(sub.ch)
	defer func() { _ = rs.pubsub.Close() }()

	redisCh := rs.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-redisCh:
			if !ok {
				return
			}
			subject := strings.TrimPrefix(msg.Channel, b.channelPrefix)
			if !subjectMatches(sub.pattern, subject) {
				continue
			}
			select {
			case sub.ch <- Message{Subject: subject, Payload: []byte(msg.Payload), Timestamp: time.Now().UTC()}:
			default:
			}
		}
	}
}

// Healthy checks if the Redis connection is alive.
func (b *RedisBus) Healthy() bool {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return b.client.Ping(ctx).Err() == nil
}

// Close shuts down all subscriptions and waits for their forwarders.
// The Redis client is owned by the caller and stays open.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	b.cancel()
	return nil
}

// redisGlob converts a subject pattern to a Redis PSUBSCRIBE glob. The glob
// may over-match; callers filter with subjectMatches.
func redisGlob(pattern string) string {
	if pattern == ">" {
		return "*"
	}
	if strings.HasSuffix(pattern, ".>") {
		pattern = strings.TrimSuffix(pattern, ">") + "*"
	}
	return pattern
}
