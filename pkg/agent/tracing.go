package agent

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const agentTracerName = "hyperagent.agent"

const (
	spanCycle   = "ooda.cycle"
	spanObserve = "ooda.observe"
	spanOrient  = "ooda.orient"
	spanDecide  = "ooda.decide"
	spanAct     = "ooda.act"
)

func agentTracer() trace.Tracer {
	return otel.Tracer(agentTracerName)
}
