package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/tool"
)

// RunCycle runs one Observe-Orient-Decide-Act cycle. The cycle number is
// consumed even when the cycle fails.
func (a *Agent) RunCycle(ctx context.Context) (*CycleResult, error) {
	cycle := a.cycle.Add(1)
	start := a.now()

	ctx, span := agentTracer().Start(ctx, spanCycle,
		trace.WithAttributes(attribute.Int64("ooda.cycle", int64(cycle))))
	defer span.End()

	res, err := a.runCycle(ctx, cycle)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if a.observer != nil {
			a.observer.ObserveCycleError(err)
		}
		a.logger.WarnContext(ctx, "cycle aborted", "cycle", cycle, "error", err)
		return nil, err
	}
	res.StartedAt = start
	res.Duration = a.now().Sub(start)

	span.SetAttributes(
		attribute.String("ooda.tool", res.Decision.Tool),
		attribute.String("ooda.progress", string(res.Action.Progress.Kind())),
		attribute.Float64("ooda.score", res.Decision.Score),
	)
	span.SetStatus(otelcodes.Ok, "ok")

	a.logger.InfoContext(ctx, "cycle completed",
		"cycle", cycle,
		"goal", res.Decision.GoalID,
		"tool", res.Decision.Tool,
		"score", res.Decision.Score,
		"progress", res.Action.Progress.String(),
		"duration", res.Duration,
	)
	if a.observer != nil {
		a.observer.ObserveCycle(ctx, res)
	}
	return res, nil
}

func (a *Agent) runCycle(ctx context.Context, cycle uint64) (*CycleResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &CycleError{Cycle: cycle, Stage: "observe", Cause: err}
	}
	obs, err := a.Observe(ctx, cycle)
	if err != nil {
		return nil, &CycleError{Cycle: cycle, Stage: "observe", Cause: err}
	}
	orient := a.Orient(ctx, obs)

	sel, err := a.decide(ctx, obs, orient)
	if err != nil {
		return nil, &CycleError{Cycle: cycle, Stage: "decide", Cause: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, &CycleError{Cycle: cycle, Stage: "act", Cause: err}
	}
	action := a.Act(ctx, cycle, sel.decision)

	return &CycleResult{
		Cycle:       cycle,
		Observation: *obs,
		Orientation: *orient,
		Decision:    *sel.decision,
		Impasse:     sel.impasse,
		Action:      *action,
		Candidates:  sel.ranked,
	}, nil
}

// Observe snapshots the active goals, recent memory and the episodes related
// to the first goal that is not blocked.
func (a *Agent) Observe(ctx context.Context, cycle uint64) (*Observation, error) {
	ctx, span := agentTracer().Start(ctx, spanObserve)
	defer span.End()

	active := a.deps.Goals.Active()
	if len(active) == 0 {
		return nil, ErrNoActiveGoals
	}
	th := a.th.load()

	obs := &Observation{
		Cycle:       cycle,
		ActiveGoals: make([]kg.SymbolID, len(active)),
		MemorySize:  a.deps.Working.Len(),
	}
	for i, g := range active {
		obs.ActiveGoals[i] = g.ID
	}
	for _, e := range a.deps.Working.Recent(th.RecentWindow) {
		obs.RecentEntries = append(obs.RecentEntries, e.ID)
	}

	// Recall for the goal Decide will select.
	focus, focusErr := a.selectGoal(obs.ActiveGoals)
	if a.deps.Episodes != nil && th.RecallK > 0 && focusErr == nil {
		text := strings.TrimSpace(focus.Description + " " + focus.SuccessCriteria)
		vec, _ := a.deps.Vectors.Encode(text)
		eps, err := a.deps.Episodes.Recall(ctx, text, vec, th.RecallK)
		if err != nil {
			a.logger.WarnContext(ctx, "episode recall failed", "cycle", cycle, "error", err)
		}
		obs.Episodes = eps
	}
	span.SetAttributes(
		attribute.Int("ooda.active_goals", len(active)),
		attribute.Int("ooda.episodes", len(obs.Episodes)),
	)

	a.push(ctx, memory.KindObservation,
		fmt.Sprintf("Observation: %d active goals, top %q, %d memory entries, %d episodes recalled",
			len(active), active[0].Description, obs.MemorySize, len(obs.Episodes)),
		obs.ActiveGoals, cycle)
	return obs, nil
}

// Orient gathers the triples around the goals and recalled episodes and
// spreads activation from them.
func (a *Agent) Orient(ctx context.Context, obs *Observation) *Orientation {
	ctx, span := agentTracer().Start(ctx, spanOrient)
	defer span.End()

	th := a.th.load()
	seeds := append([]kg.SymbolID(nil), obs.ActiveGoals...)
	seen := make(map[kg.SymbolID]struct{}, len(seeds))
	for _, id := range seeds {
		seen[id] = struct{}{}
	}
	for _, ep := range obs.Episodes {
		for _, id := range ep.Symbols {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				seeds = append(seeds, id)
			}
		}
	}

	orient := &Orientation{}
	type key struct{ s, p, o kg.SymbolID }
	dedup := make(map[key]struct{})
collect:
	for _, id := range seeds {
		for _, t := range a.deps.Graph.Adjacent(id) {
			if len(orient.Triples) >= th.MaxTriples {
				break collect
			}
			k := key{t.Subject, t.Predicate, t.Object}
			if _, dup := dedup[k]; dup {
				continue
			}
			dedup[k] = struct{}{}
			orient.Triples = append(orient.Triples, t)
		}
	}
	orient.Activations = a.deps.Graph.Spread(seeds, th.Spread)
	orient.MemoryPressure = min(1, max(0, a.deps.Working.FillRatio()))

	span.SetAttributes(
		attribute.Int("ooda.triples", len(orient.Triples)),
		attribute.Int("ooda.activations", len(orient.Activations)),
		attribute.Float64("ooda.memory_pressure", orient.MemoryPressure),
	)

	symbols := make([]kg.SymbolID, 0, 5)
	for _, act := range orient.Activations {
		if len(symbols) == cap(symbols) {
			break
		}
		symbols = append(symbols, act.Symbol)
	}
	a.push(ctx, memory.KindOrientation,
		fmt.Sprintf("Orientation: %d triples, %d activations, memory pressure %.2f",
			len(orient.Triples), len(orient.Activations), orient.MemoryPressure),
		symbols, obs.Cycle)
	return orient
}

type selection struct {
	decision *Decision
	impasse  *DecisionImpasse
	ranked   []ToolCandidate
}

// Decide picks a tool for the highest-priority goal that is not blocked. A
// decision is always returned for an eligible goal; the impasse, if any,
// qualifies it.
func (a *Agent) Decide(ctx context.Context, obs *Observation, orient *Orientation) (*Decision, *DecisionImpasse, error) {
	sel, err := a.decide(ctx, obs, orient)
	if err != nil {
		return nil, nil, err
	}
	return sel.decision, sel.impasse, nil
}

func (a *Agent) selectGoal(ids []kg.SymbolID) (*goal.Goal, error) {
	for _, id := range ids {
		g, ok := a.deps.Goals.Get(id)
		if !ok || g.Status != goal.StatusActive || a.deps.Goals.Blocked(id) {
			continue
		}
		return g, nil
	}
	return nil, ErrNoEligibleGoal
}

func (a *Agent) decide(ctx context.Context, obs *Observation, orient *Orientation) (*selection, error) {
	ctx, span := agentTracer().Start(ctx, spanDecide)
	defer span.End()

	g, err := a.selectGoal(obs.ActiveGoals)
	if err != nil {
		return nil, err
	}
	th := a.th.load()

	history := ExtractGoalHistory(a.deps.Working, g.ID)
	cands := a.generateCandidates(*g, obs, orient, history, th)
	sc := ScoringContext{
		GoalID:         g.ID,
		GoalValue:      g.Value(),
		History:        history,
		Hints:          ExtractEpisodicHints(obs.Episodes),
		MemoryPressure: orient.MemoryPressure,
		PressureHigh:   th.PressureHigh,
	}
	sc.Biaser, _ = a.deps.Tools.(tool.ArchetypeBiaser)
	ApplyModifiers(cands, sc)

	rank(cands)
	for i := range cands {
		a.logger.DebugContext(ctx, "tool candidate",
			"cycle", obs.Cycle, "rank", i+1, "tool", cands[i].Tool,
			"breakdown", cands[i].Breakdown(), "reasoning", cands[i].Reasoning)
	}
	impasse := DetectImpasse(g.ID, cands, th)

	var winner ToolCandidate
	if len(cands) > 0 {
		winner = cands[0]
	} else {
		winner = ToolCandidate{
			Tool:            tool.KGQuery,
			Input:           tool.Input{tool.ParamTarget: g.ID},
			GoalValueFactor: g.Value(),
			Reasoning:       "no applicable tools, falling back to baseline query",
		}
		// The fallback runs even when the baseline query is vetoed.
		if v, ok := a.deps.Tools.(tool.Vetoer); ok && v.Veto(tool.KGQuery, g.ID) {
			winner.Reasoning += " despite veto"
			a.logger.WarnContext(ctx, "baseline query vetoed, running it as fallback",
				"cycle", obs.Cycle, "goal", g.ID)
		}
	}
	dec := &Decision{
		Tool:      winner.Tool,
		Input:     winner.Input,
		Reasoning: winner.Reasoning,
		GoalID:    g.ID,
		Score:     winner.Total(),
	}
	if impasse != nil {
		a.logger.WarnContext(ctx, "decision impasse",
			"cycle", obs.Cycle, "goal", g.ID, "kind", impasse.Kind.String(), "best_score", impasse.BestScore)
	}

	for _, id := range obs.RecentEntries {
		if err := a.deps.Working.IncrementReference(id); err != nil && !errors.Is(err, memory.ErrNotFound) {
			a.logger.WarnContext(ctx, "increment reference failed", "entry", id, "error", err)
		}
	}

	symbols := []kg.SymbolID{g.ID}
	var targetLabel string
	if id, ok := winner.Input.Symbol(tool.ParamTarget); ok {
		symbols = append(symbols, id)
		if winner.Tool == tool.KGQuery && id != g.ID {
			targetLabel = a.label(id)
		}
	} else if id, ok := winner.Input.Symbol(tool.ParamObject); ok {
		symbols = append(symbols, id)
	}
	a.push(ctx, memory.KindDecision, formatDecision(&winner, g.ID, targetLabel), symbols, obs.Cycle)

	if a.provenance != nil {
		p := Provenance{
			Cycle:        obs.Cycle,
			GoalID:       g.ID,
			Tool:         dec.Tool,
			Score:        dec.Score,
			Reasoning:    winner.Breakdown() + "; " + winner.Reasoning,
			Alternatives: alternatives(cands),
			CreatedAt:    a.now(),
		}
		if impasse != nil {
			p.Impasse = impasse.Kind.String()
		}
		if err := a.provenance.RecordDecision(ctx, p); err != nil {
			a.logger.WarnContext(ctx, "record provenance failed", "cycle", obs.Cycle, "error", err)
		}
	}

	span.SetAttributes(
		attribute.String("ooda.tool", dec.Tool),
		attribute.Int("ooda.candidates", len(cands)),
		attribute.Bool("ooda.impasse", impasse != nil),
	)
	return &selection{decision: dec, impasse: impasse, ranked: cands}, nil
}

// rank orders candidates by total, best first. Equal totals keep their
// generation order.
func rank(cands []ToolCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Total() > cands[j].Total()
	})
}

// Act executes the decision and applies its outcome to the goal. Tool
// failures are folded into the result and never returned.
func (a *Agent) Act(ctx context.Context, cycle uint64, dec *Decision) *ActionResult {
	ctx, span := agentTracer().Start(ctx, spanAct, trace.WithAttributes(attribute.String("ooda.tool", dec.Tool)))
	defer span.End()

	out, err := a.deps.Tools.Execute(ctx, dec.Tool, dec.Input)
	if err != nil {
		span.RecordError(err)
		out = tool.Output{Success: false, Text: err.Error()}
	}

	res := &ActionResult{Output: out, Progress: NoChange{}}
	g, ok := a.deps.Goals.Get(dec.GoalID)
	if ok {
		res.Progress = a.evaluator.Evaluate(*g, out)
	}
	span.SetAttributes(attribute.String("ooda.progress", string(res.Progress.Kind())))

	symbols := append([]kg.SymbolID{dec.GoalID}, out.Symbols...)
	if id, ok := a.push(ctx, memory.KindToolResult, formatToolResult(dec.Tool, out.Success, out.Text), symbols, cycle); ok {
		res.MemoryEntries = append(res.MemoryEntries, id)
	}
	if !ok {
		a.logger.WarnContext(ctx, "goal vanished before act", "goal", dec.GoalID, "cycle", cycle)
		return res
	}

	switch res.Progress.(type) {
	case Completed:
		a.updateStatus(ctx, dec.GoalID, goal.StatusCompleted)
	case Failed:
		a.updateStatus(ctx, dec.GoalID, goal.StatusFailed)
	}
	progressed := false
	switch res.Progress.(type) {
	case Advanced, Completed:
		progressed = true
	}
	if err := a.deps.Goals.RecordWork(ctx, dec.GoalID, cycle, progressed); err != nil {
		a.logger.WarnContext(ctx, "record goal work failed", "goal", dec.GoalID, "error", err)
	}
	return res
}

func (a *Agent) updateStatus(ctx context.Context, id kg.SymbolID, status goal.Status) {
	if err := a.deps.Goals.UpdateStatus(ctx, id, status); err != nil {
		a.logger.WarnContext(ctx, "update goal status failed", "goal", id, "status", status, "error", err)
		return
	}
	a.logger.InfoContext(ctx, "goal status changed", "goal", id, "status", status)
}

// push writes a working-memory entry. Capacity errors are logged and the
// cycle carries on.
func (a *Agent) push(ctx context.Context, kind memory.Kind, content string, symbols []kg.SymbolID, cycle uint64) (memory.EntryID, bool) {
	id, err := a.deps.Working.Push(kind, content, symbols, cycle)
	if err != nil {
		a.logger.WarnContext(ctx, "working memory write failed", "kind", kind, "cycle", cycle, "error", err)
		return "", false
	}
	return id, true
}
