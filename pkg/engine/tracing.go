package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const engineTracerName = "hyperagent.engine"

const (
	spanEngineCycle   = "engine.cycle"
	spanConsolidate   = "engine.consolidate"
	spanPublishEvents = "engine.publish"
)

func engineTracer() trace.Tracer {
	return otel.Tracer(engineTracerName)
}
