package eventbus

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawEnvelope(t *testing.T, mutate func(*Envelope)) []byte {
	t.Helper()
	env, err := BuildEnvelope(BuildEnvelopeInput{
		EventType:   EventCycleFailed,
		NodeID:      "node-1",
		OrderingKey: "cycle",
		Sequence:    1,
		Payload:     CycleFailedPayload{Cycle: 7, Error: "tool timeout"},
	})
	require.NoError(t, err)
	if mutate != nil {
		mutate(&env)
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func TestEnvelopeConsumer_RejectsInvalid(t *testing.T) {
	c := NewEnvelopeConsumer(NewAgentSchemaRouter())

	tests := map[string][]byte{
		"not json":       []byte("{"),
		"missing node":   rawEnvelope(t, func(e *Envelope) { e.NodeID = "" }),
		"zero sequence":  rawEnvelope(t, func(e *Envelope) { e.Sequence = 0 }),
		"missing field":  rawEnvelope(t, func(e *Envelope) { e.Payload = json.RawMessage(`{"cycle": 7}`) }),
		"missing schema": rawEnvelope(t, func(e *Envelope) { e.SchemaVersion = "" }),
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, dup, err := c.DecodeAndValidate(raw)
			assert.ErrorIs(t, err, ErrInvalidEnvelope)
			assert.False(t, dup)
		})
	}
}

func TestEnvelopeConsumer_FailedDecodeIsNotRemembered(t *testing.T) {
	c := NewEnvelopeConsumer(NewAgentSchemaRouter())

	good := rawEnvelope(t, nil)
	var env Envelope
	require.NoError(t, json.Unmarshal(good, &env))

	bad := rawEnvelope(t, func(e *Envelope) {
		e.EventID = env.EventID
		e.Payload = json.RawMessage(`{"cycle": "seven", "error": "tool timeout"}`)
	})
	_, _, _, err := c.DecodeAndValidate(bad)
	require.Error(t, err)

	_, decoded, dup, err := c.DecodeAndValidate(good)
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, uint64(7), decoded.(Decoded).Payload.(*CycleFailedPayload).Cycle)
}

func TestEnvelopeConsumer_DedupeWindowEvicts(t *testing.T) {
	c := NewEnvelopeConsumer(NewAgentSchemaRouter(), WithDedupeWindow(2))

	raws := make([][]byte, 3)
	for i := range raws {
		raws[i] = rawEnvelope(t, func(e *Envelope) { e.EventID = fmt.Sprintf("evt-%d", i) })
		_, _, dup, err := c.DecodeAndValidate(raws[i])
		require.NoError(t, err)
		require.False(t, dup)
	}

	_, _, dup, err := c.DecodeAndValidate(raws[2])
	require.NoError(t, err)
	assert.True(t, dup, "newest id is still in the window")

	_, _, dup, err = c.DecodeAndValidate(raws[0])
	require.NoError(t, err)
	assert.False(t, dup, "oldest id was evicted")

	_, _, dup, err = c.DecodeAndValidate(raws[1])
	require.NoError(t, err)
	assert.False(t, dup, "re-accepting evt-0 pushed evt-1 out")
}

func TestEnvelopeConsumer_NilRouter(t *testing.T) {
	c := NewEnvelopeConsumer(nil, WithDedupeWindow(0))
	assert.Equal(t, DefaultDedupeWindow, c.window)

	raw := rawEnvelope(t, func(e *Envelope) { e.Payload = json.RawMessage(`{}`) })
	env, decoded, dup, err := c.DecodeAndValidate(raw)
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, env, decoded)

	_, _, _, err = c.DecodeAndValidate(rawEnvelope(t, func(e *Envelope) { e.EventID = "" }))
	assert.ErrorIs(t, err, ErrInvalidEnvelope)
}
