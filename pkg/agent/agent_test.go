package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/tool"
)

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
	for _, name := range []string{"graph", "vectors", "working memory", "goals", "tools"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestAgent_RunCycle_NoActiveGoals(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t, &stubTools{sigs: sigs(tool.KGQuery)}, WithObserver(obs))

	res, err := f.agent.RunCycle(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrNoActiveGoals)

	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, uint64(1), cerr.Cycle)
	assert.Equal(t, "observe", cerr.Stage)
	assert.Zero(t, f.wm.Len())

	_, err = f.agent.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrNoActiveGoals)
	assert.Equal(t, uint64(2), f.agent.LastCycle(), "failed cycles consume their number")
	assert.Len(t, obs.errs, 2)
}

type alwaysBlocked struct {
	*goal.Manager
}

func (alwaysBlocked) Blocked(kg.SymbolID) bool { return true }

func TestAgent_RunCycle_AllGoalsBlocked(t *testing.T) {
	f := newFixture(t, &stubTools{sigs: sigs(tool.KGQuery)})
	f.goal(t, "reach orbit", "", 100)
	a, err := New(Deps{
		Graph:   f.graph,
		Vectors: f.vectors,
		Working: f.wm,
		Goals:   alwaysBlocked{f.goals},
		Tools:   f.tools,
	})
	require.NoError(t, err)

	_, err = a.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrNoEligibleGoal)
	assert.Empty(t, f.wm.ByKind(memory.KindDecision))
	assert.Empty(t, f.wm.ByKind(memory.KindToolResult))
}

func TestAgent_Observe_RecallsForUnblockedGoal(t *testing.T) {
	f := newFixture(t, &stubTools{sigs: sigs(tool.KGQuery)})
	prereq := f.goal(t, "map the moons", "list the moons", 64)
	_, err := f.goals.Create(context.Background(), goal.Spec{
		Description:     "land on europa",
		SuccessCriteria: "touchdown",
		Priority:        goal.MaxPriority,
		BlockedBy:       []kg.SymbolID{prereq},
	})
	require.NoError(t, err)

	eps := &recordingEpisodes{}
	a, err := New(Deps{
		Graph:    f.graph,
		Vectors:  f.vectors,
		Working:  f.wm,
		Goals:    f.goals,
		Tools:    f.tools,
		Episodes: eps,
	})
	require.NoError(t, err)

	obs, err := a.Observe(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, obs.ActiveGoals, 2)
	assert.Equal(t, []string{"map the moons list the moons"}, eps.texts)
}

func TestAgent_Observe_SkipsRecallWhenAllBlocked(t *testing.T) {
	f := newFixture(t, &stubTools{sigs: sigs(tool.KGQuery)})
	f.goal(t, "reach orbit", "", 100)

	eps := &recordingEpisodes{}
	a, err := New(Deps{
		Graph:    f.graph,
		Vectors:  f.vectors,
		Working:  f.wm,
		Goals:    alwaysBlocked{f.goals},
		Tools:    f.tools,
		Episodes: eps,
	})
	require.NoError(t, err)

	obs, err := a.Observe(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, obs.Episodes)
	assert.Empty(t, eps.texts)
}

func TestAgent_RunCycle_EmptyCandidates(t *testing.T) {
	tools := &biasedTools{
		stubTools: &stubTools{
			sigs:    sigs(tool.KGQuery),
			outputs: map[string]tool.Output{tool.KGQuery: {Success: true, Text: "no facts"}},
		},
		vetoed: map[string]bool{tool.KGQuery: true},
	}
	prov := &recordingProvenance{}
	f := newFixture(t, tools, WithProvenance(prov))
	id := f.goal(t, "find all moons", "list the moons", 128)

	res, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.Candidates)
	assert.Equal(t, tool.KGQuery, res.Decision.Tool)
	assert.Equal(t, tool.Input{tool.ParamTarget: id}, res.Decision.Input)
	assert.Zero(t, res.Decision.Score)
	assert.Equal(t, "no applicable tools, falling back to baseline query despite veto", res.Decision.Reasoning)
	if diff := cmp.Diff(&DecisionImpasse{GoalID: id, Kind: AllBelowThreshold{Threshold: 0.15}}, res.Impasse); diff != "" {
		t.Fatalf("impasse mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{tool.KGQuery}, tools.calls)
	assert.Equal(t, NoChange{}, res.Action.Progress)

	require.Len(t, prov.records, 1)
	assert.Equal(t, "all candidates below 0.15", prov.records[0].Impasse)
	assert.Empty(t, prov.records[0].Alternatives)

	decisions := f.wm.ByKind(memory.KindDecision)
	require.Len(t, decisions, 1)
	assert.Equal(t, []kg.SymbolID{id, id}, decisions[0].Symbols)
}

func TestAgent_Decide_TieStillDecides(t *testing.T) {
	tools := &biasedTools{
		stubTools: &stubTools{sigs: []tool.Signature{
			{Name: tool.KGQuery, Description: "look up facts"},
			{Name: "alpha", Description: "alpha tool"},
		}},
		biases: map[string]float64{tool.KGQuery: -0.5, "alpha": -0.215},
	}
	f := newFixture(t, tools)
	id := f.goal(t, "chart stars", "", goal.MaxPriority)
	f.vectors.script(textName("alpha alpha tool"), textName("chart stars"), 0.8)

	ctx := context.Background()
	obs, err := f.agent.Observe(ctx, 1)
	require.NoError(t, err)
	dec, imp, err := f.agent.Decide(ctx, obs, f.agent.Orient(ctx, obs))
	require.NoError(t, err)

	assert.Equal(t, tool.KGQuery, dec.Tool)
	assert.InDelta(t, 0.50, dec.Score, 1e-9)
	require.NotNil(t, imp)
	assert.Equal(t, id, imp.GoalID)
	assert.Equal(t, Tie{ToolA: tool.KGQuery, ToolB: "alpha", Epsilon: 0.02}, imp.Kind)
	assert.InDelta(t, 0.50, imp.BestScore, 1e-9)
}

func TestAgent_RunCycle_SelectsHighestTotal(t *testing.T) {
	f := newFixture(t, &stubTools{sigs: builtinSigs(), outputs: map[string]tool.Output{}})
	f.goal(t, "study planets", "name three planets", 180)
	f.assert(t, "planets", "include", "jupiter")
	f.assert(t, "jupiter", "has", "moons")
	f.assert(t, "goal:study planets", "concerns", "astronomy")

	res, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)

	best := res.Candidates[0]
	for _, c := range res.Candidates {
		recomputed := max(0, c.BaseScore-c.RecencyPenalty+c.NoveltyBonus+c.EpisodicBonus+c.PressureBonus+c.ArchetypeBonus) *
			(0.5 + 0.5*c.GoalValueFactor)
		assert.InDelta(t, recomputed, c.Total(), 1e-12)
		assert.LessOrEqual(t, c.Total(), best.Total())
	}
	assert.Equal(t, best.Tool, res.Decision.Tool)
	assert.InDelta(t, best.Total(), res.Decision.Score, 1e-12)
}

func TestAgent_RunCycle_CompletesGoal(t *testing.T) {
	tools := &stubTools{sigs: sigs(tool.KGQuery), outputs: map[string]tool.Output{}}
	obs := &recordingObserver{}
	f := newFixture(t, tools, WithObserver(obs))
	id := f.goal(t, "survey jupiter", "find all moons", 200)
	tr := f.assert(t, "goal:survey jupiter", "concerns", "jupiter")
	f.assert(t, "moon", "circles", "jupiter")
	f.assert(t, "orbit", "shape_of", "moon")
	moon, orbit := f.id(t, "moon"), f.id(t, "orbit")
	tools.outputs[tool.KGQuery] = tool.Output{Success: true, Symbols: []kg.SymbolID{moon, orbit}, Text: "moon circles jupiter"}

	f.vectors.script(bundleName(symName(moon), symName(orbit)), textName("find all moons"), 0.65)
	f.vectors.script(bundleName(symName(tr.Predicate), symName(tr.Object)), textName("find all moons"), 0.62)

	res, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Completed{}, res.Action.Progress)
	assert.Len(t, res.Action.MemoryEntries, 1)

	g, ok := f.goals.Get(id)
	require.True(t, ok)
	assert.Equal(t, goal.StatusCompleted, g.Status)
	assert.Equal(t, uint64(1), g.CyclesWorked)
	assert.Equal(t, uint64(1), g.LastProgressCycle)

	results := f.wm.ByKind(memory.KindToolResult)
	require.Len(t, results, 1)
	assert.Equal(t, "Tool result (kg_query) ok: moon circles jupiter", results[0].Content)
	assert.Equal(t, []kg.SymbolID{id, moon, orbit}, results[0].Symbols)
	require.Len(t, obs.results, 1)
	assert.Equal(t, res, obs.results[0])

	_, err = f.agent.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveGoals)
}

func TestAgent_RunCycle_ToolFailureFailsGoal(t *testing.T) {
	tools := &stubTools{
		sigs: sigs(tool.KGQuery),
		errs: map[string]error{tool.KGQuery: errors.New("graph offline")},
	}
	f := newFixture(t, tools)
	id := f.goal(t, "map the belt", "list asteroids", 90)

	res, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Action.Output.Success)
	require.Equal(t, ProgressFailed, res.Action.Progress.Kind())
	assert.Contains(t, res.Action.Progress.(Failed).Reason, "graph offline")

	g, _ := f.goals.Get(id)
	assert.Equal(t, goal.StatusFailed, g.Status)
	assert.Equal(t, uint64(1), g.CyclesWorked)
	assert.Zero(t, g.LastProgressCycle)
}

func TestAgent_RunCycle_HistoryShapesNextCycle(t *testing.T) {
	tools := &stubTools{sigs: sigs(tool.KGQuery), outputs: map[string]tool.Output{tool.KGQuery: {Success: true, Text: "nothing"}}}
	f := newFixture(t, tools)
	id := f.goal(t, "idle watch", "", 255)

	first, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	second, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Cycle)
	assert.Equal(t, uint64(2), second.Cycle)
	assert.Equal(t, 0.15, first.Candidates[0].NoveltyBonus)
	assert.Zero(t, first.Candidates[0].RecencyPenalty)
	assert.Zero(t, second.Candidates[0].NoveltyBonus)
	assert.Equal(t, 0.4, second.Candidates[0].RecencyPenalty)
	assert.InDelta(t, 0.45, second.Decision.Score, 1e-9)

	assert.NotEmpty(t, second.Observation.RecentEntries)
	referenced := 0
	for _, e := range f.wm.All() {
		referenced += e.References
	}
	assert.Positive(t, referenced)

	g, _ := f.goals.Get(id)
	assert.Equal(t, uint64(2), g.CyclesWorked)
	assert.Equal(t, goal.StatusActive, g.Status)
}

func TestAgent_RunCycle_Cancelled(t *testing.T) {
	f := newFixture(t, &stubTools{sigs: sigs(tool.KGQuery)})
	f.goal(t, "anything", "", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.agent.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.wm.Len())
	assert.Equal(t, uint64(1), f.agent.LastCycle())
}

func TestAgent_RunCycle_CapacityDoesNotAbort(t *testing.T) {
	f := newFixture(t, &stubTools{sigs: sigs(tool.KGQuery), outputs: map[string]tool.Output{tool.KGQuery: {Success: true}}})
	f.goal(t, "fill memory", "", 10)
	for f.wm.FillRatio() < 1 {
		_, err := f.wm.Push(memory.KindInference, "filler", nil, 0)
		require.NoError(t, err)
	}

	res, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Action.MemoryEntries)
	assert.Equal(t, 1.0, res.Orientation.MemoryPressure)
}

func TestAgent_SetThresholds(t *testing.T) {
	f := newFixture(t, &stubTools{sigs: sigs(tool.KGQuery), outputs: map[string]tool.Output{tool.KGQuery: {Success: true}}})
	id := f.goal(t, "tune", "", 255)

	th := DefaultThresholds()
	th.ImpasseThreshold = 2
	f.agent.SetThresholds(th)
	assert.Equal(t, 2.0, f.agent.Thresholds().ImpasseThreshold)

	res, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Impasse)
	assert.Equal(t, id, res.Impasse.GoalID)
	assert.Equal(t, AllBelowThreshold{Threshold: 2}, res.Impasse.Kind)
}

func TestAgent_RunCycle_Spans(t *testing.T) {
	prev := otel.GetTracerProvider()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	f := newFixture(t, &stubTools{sigs: sigs(tool.KGQuery), outputs: map[string]tool.Output{tool.KGQuery: {Success: true}}})
	f.goal(t, "trace me", "", 10)
	_, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)

	names := make(map[string]bool)
	var root sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		names[s.Name()] = true
		if s.Name() == spanCycle {
			root = s
		}
	}
	for _, want := range []string{spanCycle, spanObserve, spanOrient, spanDecide, spanAct} {
		assert.True(t, names[want], "missing span %q", want)
	}
	require.NotNil(t, root)
	for _, s := range recorder.Ended() {
		if s.Name() != spanCycle {
			assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID(), s.Name())
		}
	}
}
