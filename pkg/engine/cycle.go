package engine

import (
	"context"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goclaw/hyperagent/pkg/agent"
	"github.com/goclaw/hyperagent/pkg/eventbus"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/storage"
)

// RunCycle runs one decision cycle. Cycles are serialized: a call blocks
// while another cycle, a consolidation or a snapshot is in progress.
//
// After the agent returns, the cycle is persisted, its events are published
// and working memory is consolidated when due. Failures of those follow-ups
// are logged and do not fail the cycle.
func (e *Engine) RunCycle(ctx context.Context) (*agent.CycleResult, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	if !e.running() {
		return nil, &EngineNotRunningError{}
	}

	ctx, span := engineTracer().Start(ctx, spanEngineCycle)
	defer span.End()

	res, err := e.agent.RunCycle(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		e.afterFailure(ctx, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("ooda.cycle", int64(res.Cycle)),
		attribute.String("ooda.tool", res.Decision.Tool),
	)

	e.persistCycle(ctx, cycleRecord(res))
	e.publishCycle(ctx, res)
	if e.consolidator.Due(res.Cycle) {
		e.consolidate(ctx, res.Cycle)
	}
	e.refreshGauges()

	span.SetStatus(otelcodes.Ok, "ok")
	return res, nil
}

// RunCycles runs up to n cycles and stops early when no goal is left to work
// on. It returns the results of the cycles that completed.
func (e *Engine) RunCycles(ctx context.Context, n int) ([]*agent.CycleResult, error) {
	results := make([]*agent.CycleResult, 0, n)
	for i := 0; i < n; i++ {
		res, err := e.RunCycle(ctx)
		if err != nil {
			if idle(err) {
				return results, nil
			}
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// idle reports whether err means there was nothing to work on.
func idle(err error) bool {
	return errors.Is(err, agent.ErrNoActiveGoals) || errors.Is(err, agent.ErrNoEligibleGoal)
}

func (e *Engine) afterFailure(ctx context.Context, err error) {
	if idle(err) {
		return
	}
	var ce *agent.CycleError
	if !errors.As(err, &ce) {
		return
	}
	e.persistCycle(ctx, &storage.CycleRecord{
		Cycle:     ce.Cycle,
		Error:     err.Error(),
		StartedAt: e.now(),
	})
	e.publish(ctx, eventbus.Event{
		Domain:    eventbus.DomainCycle,
		EventType: eventbus.EventCycleFailed,
		Cycle:     ce.Cycle,
		Payload:   eventbus.CycleFailedPayload{Cycle: ce.Cycle, Stage: ce.Stage, Error: ce.Cause.Error()},
	})
}

func cycleRecord(res *agent.CycleResult) *storage.CycleRecord {
	rec := &storage.CycleRecord{
		Cycle:     res.Cycle,
		GoalID:    res.Decision.GoalID,
		Tool:      res.Decision.Tool,
		Score:     res.Decision.Score,
		StartedAt: res.StartedAt,
		Duration:  res.Duration,
	}
	if p := res.Action.Progress; p != nil {
		rec.Progress = string(p.Kind())
		rec.Detail = progressDetail(p)
	}
	if res.Impasse != nil {
		rec.Impasse = res.Impasse.Kind.String()
	}
	return rec
}

func progressDetail(p agent.GoalProgress) string {
	switch v := p.(type) {
	case agent.Advanced:
		return v.Detail
	case agent.Failed:
		return v.Reason
	}
	return ""
}

func (e *Engine) persistCycle(ctx context.Context, rec *storage.CycleRecord) {
	if err := e.store.SaveCycle(ctx, rec); err != nil {
		e.logger.WarnContext(ctx, "failed to persist cycle", "cycle", rec.Cycle, "error", err)
	}
}

func (e *Engine) publishCycle(ctx context.Context, res *agent.CycleResult) {
	ctx, span := engineTracer().Start(ctx, spanPublishEvents,
		trace.WithAttributes(attribute.Int64("ooda.cycle", int64(res.Cycle))))
	defer span.End()

	key := e.GoalKey(res.Decision.GoalID)
	payload := eventbus.CyclePayload{
		Cycle:      res.Cycle,
		GoalID:     key,
		Tool:       res.Decision.Tool,
		Score:      res.Decision.Score,
		DurationMS: res.Duration.Milliseconds(),
	}
	if p := res.Action.Progress; p != nil {
		payload.Progress = string(p.Kind())
		payload.Detail = progressDetail(p)
	}
	if res.Impasse != nil {
		payload.Impasse = res.Impasse.Kind.String()
	}
	e.publish(ctx, eventbus.Event{
		Domain:    eventbus.DomainCycle,
		EventType: eventbus.EventCycleCompleted,
		GoalID:    key,
		Cycle:     res.Cycle,
		Payload:   payload,
	})

	if imp := res.Impasse; imp != nil {
		e.publish(ctx, eventbus.Event{
			Domain:    eventbus.DomainCycle,
			EventType: eventbus.EventImpasse,
			GoalID:    key,
			Cycle:     res.Cycle,
			Payload: eventbus.ImpassePayload{
				Cycle:     res.Cycle,
				GoalID:    key,
				Kind:      imp.Kind.String(),
				BestScore: imp.BestScore,
			},
		})
	}

	switch p := res.Action.Progress.(type) {
	case agent.Completed:
		e.publish(ctx, eventbus.Event{
			Domain:    eventbus.DomainGoal,
			EventType: eventbus.EventGoalCompleted,
			GoalID:    key,
			Cycle:     res.Cycle,
			Payload:   eventbus.GoalPayload{Cycle: res.Cycle, GoalID: key, Status: "completed"},
		})
	case agent.Failed:
		e.publish(ctx, eventbus.Event{
			Domain:    eventbus.DomainGoal,
			EventType: eventbus.EventGoalFailed,
			GoalID:    key,
			Cycle:     res.Cycle,
			Payload:   eventbus.GoalPayload{Cycle: res.Cycle, GoalID: key, Status: "failed", Reason: p.Reason},
		})
	}
}

func (e *Engine) publish(ctx context.Context, event eventbus.Event) {
	if _, err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish event",
			"event", event.EventType,
			"cycle", event.Cycle,
			"error", err,
		)
	}
}

func (e *Engine) consolidate(ctx context.Context, cycle uint64) {
	ctx, span := engineTracer().Start(ctx, spanConsolidate,
		trace.WithAttributes(attribute.Int64("ooda.cycle", int64(cycle))))
	defer span.End()

	ep, err := e.consolidator.Consolidate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		e.metrics.RecordConsolidation(false)
		e.logger.WarnContext(ctx, "consolidation failed", "cycle", cycle, "error", err)
		return
	}
	if ep == nil {
		return
	}
	e.metrics.RecordConsolidation(true)
	e.logger.InfoContext(ctx, "working memory consolidated",
		"cycle", cycle,
		"episode", ep.ID,
		"from_cycle", ep.FromCycle,
		"to_cycle", ep.ToCycle,
	)
}

// GoalKey returns the key events carry for goal id: its graph label, or the
// numeric id when the symbol has no label.
func (e *Engine) GoalKey(id kg.SymbolID) string {
	if label, ok := e.graph.Label(id); ok {
		return label
	}
	return strconv.FormatUint(uint64(id), 10)
}
