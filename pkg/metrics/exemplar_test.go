package metrics

import (
	"context"
	"net/http"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/goclaw/hyperagent/pkg/agent"
	"github.com/goclaw/hyperagent/pkg/tool"
)

func spanContext() (context.Context, trace.SpanContext) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0xf7, 0x65, 0x19, 0x16, 0xcd, 0x43, 0xdd, 0x84, 0x48, 0xeb, 0x21, 0x1c, 0x80, 0x31, 0x9c},
		SpanID:     trace.SpanID{0xb7, 0xad, 0x6b, 0x71, 0x69, 0x20, 0x33, 0x31},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc), sc
}

// exemplars returns the exemplars attached to the buckets of histogram name.
func exemplars(t *testing.T, m *Manager, name string) []*dto.Exemplar {
	t.Helper()
	families, err := m.registry.Gather()
	require.NoError(t, err)
	var out []*dto.Exemplar
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, b := range metric.GetHistogram().GetBucket() {
				if b.GetExemplar() != nil {
					out = append(out, b.GetExemplar())
				}
			}
		}
	}
	return out
}

func exemplarLabels(e *dto.Exemplar) map[string]string {
	out := make(map[string]string, len(e.GetLabel()))
	for _, lp := range e.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func TestObserveCycle_AttachesSpanExemplar(t *testing.T) {
	m := NewManager(DefaultConfig())
	ctx, sc := spanContext()

	m.ObserveCycle(ctx, &agent.CycleResult{
		Cycle:    4,
		Decision: agent.Decision{Tool: tool.Reason, Score: 0.72},
		Action:   agent.ActionResult{Progress: agent.Advanced{Detail: "inferred 2 facts"}},
		Duration: 12 * time.Millisecond,
	})

	for _, name := range []string{"hyperagent_cycle_duration_seconds", "hyperagent_decision_score"} {
		got := exemplars(t, m, name)
		require.Len(t, got, 1, name)
		assert.Equal(t, map[string]string{
			"trace_id": sc.TraceID().String(),
			"span_id":  sc.SpanID().String(),
		}, exemplarLabels(got[0]), name)
	}
	assert.InDelta(t, 0.72, exemplars(t, m, "hyperagent_decision_score")[0].GetValue(), 1e-9)
}

func TestObserveCycle_NoSpanNoExemplar(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.ObserveCycle(context.Background(), &agent.CycleResult{
		Decision: agent.Decision{Tool: tool.KGQuery, Score: 0.4},
		Action:   agent.ActionResult{Progress: agent.NoChange{}},
		Duration: time.Millisecond,
	})

	assert.Empty(t, exemplars(t, m, "hyperagent_cycle_duration_seconds"))
	assert.Empty(t, exemplars(t, m, "hyperagent_decision_score"))
}

func TestRecordHTTPRequestWithContext_Exemplar(t *testing.T) {
	m := NewManager(DefaultConfig())
	ctx, sc := spanContext()

	m.RecordHTTPRequestWithContext(ctx, http.MethodPost, "/api/v1/cycles", "201", 8*time.Millisecond)
	m.RecordHTTPRequest(http.MethodGet, "/api/v1/goals", "200", time.Millisecond)

	got := exemplars(t, m, "hyperagent_http_request_duration_seconds")
	require.Len(t, got, 1, "only the traced request carries an exemplar")
	assert.Equal(t, sc.TraceID().String(), exemplarLabels(got[0])["trace_id"])
}

func TestTraceExemplarLabels(t *testing.T) {
	ctx, sc := spanContext()

	labels, ok := traceExemplarLabels(ctx)
	require.True(t, ok)
	assert.Equal(t, sc.SpanID().String(), labels["span_id"])

	_, ok = traceExemplarLabels(context.Background())
	assert.False(t, ok)
}
