package eventbus

import (
	"encoding/json"
	"fmt"
)

// CyclePayload describes a completed cycle.
type CyclePayload struct {
	Cycle      uint64  `json:"cycle"`
	GoalID     string  `json:"goal_id"`
	Tool       string  `json:"tool"`
	Score      float64 `json:"score"`
	Progress   string  `json:"progress"`
	Detail     string  `json:"detail,omitempty"`
	Impasse    string  `json:"impasse,omitempty"`
	DurationMS int64   `json:"duration_ms"`
}

// CycleFailedPayload describes a cycle that returned an error.
type CycleFailedPayload struct {
	Cycle uint64 `json:"cycle"`
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

// ImpassePayload describes a low-quality decision.
type ImpassePayload struct {
	Cycle     uint64  `json:"cycle"`
	GoalID    string  `json:"goal_id"`
	Kind      string  `json:"kind"`
	BestScore float64 `json:"best_score"`
}

// GoalPayload describes a goal reaching a terminal status.
type GoalPayload struct {
	Cycle  uint64 `json:"cycle"`
	GoalID string `json:"goal_id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Decoded is an envelope with its payload decoded to the type matching its
// event type. Payload is json.RawMessage for unknown event types.
type Decoded struct {
	Envelope Envelope `json:"envelope"`
	Payload  any      `json:"payload"`
}

// NewAgentSchemaRouter returns a router that knows the v1 agent events.
func NewAgentSchemaRouter() *SchemaRouter {
	r := NewSchemaRouter()
	for _, schema := range []PayloadSchema{
		{SchemaVersion: SchemaVersionV1, EventType: EventCycleCompleted, Required: []string{"cycle", "goal_id", "tool", "score", "progress"}},
		{SchemaVersion: SchemaVersionV1, EventType: EventCycleFailed, Required: []string{"cycle", "error"}},
		{SchemaVersion: SchemaVersionV1, EventType: EventImpasse, Required: []string{"cycle", "goal_id", "kind", "best_score"}},
		{SchemaVersion: SchemaVersionV1, EventType: EventGoalCompleted, Required: []string{"goal_id", "status"}},
		{SchemaVersion: SchemaVersionV1, EventType: EventGoalFailed, Required: []string{"goal_id", "status"}},
	} {
		// Static schemas always carry both keys.
		_ = r.RegisterPayloadSchema(schema)
	}
	_ = r.RegisterDecoder(SchemaVersionV1, decodeV1)
	return r
}

func decodeV1(env Envelope) (any, error) {
	var target any
	switch env.EventType {
	case EventCycleCompleted:
		target = &CyclePayload{}
	case EventCycleFailed:
		target = &CycleFailedPayload{}
	case EventImpasse:
		target = &ImpassePayload{}
	case EventGoalCompleted, EventGoalFailed:
		target = &GoalPayload{}
	default:
		return Decoded{Envelope: env, Payload: env.Payload}, nil
	}
	if err := json.Unmarshal(env.Payload, target); err != nil {
		return nil, fmt.Errorf("eventbus: decode %s payload: %w", env.EventType, err)
	}
	return Decoded{Envelope: env, Payload: target}, nil
}
