package engine

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goclaw/hyperagent/pkg/eventbus"
	"github.com/goclaw/hyperagent/pkg/tool"
)

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithMetrics sets the metrics recorder for the engine.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(e *Engine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// WithBus publishes events on bus instead of one built from config. The
// caller keeps ownership and closes it.
func WithBus(bus eventbus.Bus) Option {
	return func(e *Engine) {
		if bus != nil {
			e.bus = bus
		}
	}
}

// WithRedisClient sets the shared Redis client used by the redis event bus.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(e *Engine) {
		if client != nil {
			e.redisClient = client
		}
	}
}

// WithNodeID sets the node id stamped on published events.
func WithNodeID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.nodeID = id
		}
	}
}

// WithFileRoot enables file_read confined to root.
func WithFileRoot(root string) Option {
	return func(e *Engine) {
		e.fileRoot = root
	}
}

// WithTools registers extra tools next to the built-in ones.
func WithTools(tools ...tool.Tool) Option {
	return func(e *Engine) {
		e.extraTools = append(e.extraTools, tools...)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
