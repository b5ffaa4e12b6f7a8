package engine

import (
	"context"
	"strconv"

	"github.com/goclaw/hyperagent/pkg/eventbus"
	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/storage"
)

// CreateGoal adds an active goal.
func (e *Engine) CreateGoal(ctx context.Context, spec goal.Spec) (*goal.Goal, error) {
	g, err := e.goals.Create(ctx, spec)
	if err != nil {
		return nil, err
	}
	e.metrics.SetGoalCounts(e.goalCounts())
	return g, nil
}

// ListGoals returns every goal in creation order.
func (e *Engine) ListGoals() []goal.Goal {
	return e.goals.List()
}

// GetGoal returns the goal with id.
func (e *Engine) GetGoal(id kg.SymbolID) (*goal.Goal, bool) {
	return e.goals.Get(id)
}

// ListCycles returns up to limit persisted cycle records, newest first.
func (e *Engine) ListCycles(ctx context.Context, limit int) ([]*storage.CycleRecord, error) {
	return e.store.ListCycles(ctx, limit)
}

// ListProvenance returns persisted decision records matching filter.
func (e *Engine) ListProvenance(ctx context.Context, filter *storage.ProvenanceFilter) ([]*storage.ProvenanceRecord, error) {
	return e.store.ListProvenance(ctx, filter)
}

// WorkingMemory returns every working-memory entry in creation order.
func (e *Engine) WorkingMemory() []memory.Entry {
	return e.working.All()
}

// WorkingStatus summarizes working memory occupancy.
func (e *Engine) WorkingStatus() WorkingStatus {
	return WorkingStatus{
		Entries:  e.working.Len(),
		Capacity: e.working.Capacity(),
		Fill:     e.working.FillRatio(),
	}
}

// Episodes returns up to limit episodes.
func (e *Engine) Episodes(limit int) []*memory.Episode {
	return e.episodes.List(limit)
}

// SearchEpisodes runs a hybrid episodic recall for text.
func (e *Engine) SearchEpisodes(ctx context.Context, text string, topK int) ([]memory.RecallResult, error) {
	vec, err := e.items.Encode(text)
	if err != nil {
		return e.episodes.Search(ctx, memory.Query{Text: text, Mode: "bm25", TopK: topK})
	}
	return e.episodes.Search(ctx, memory.Query{Text: text, Vector: vec, TopK: topK})
}

// AddEpisode stores an episode directly, bypassing consolidation.
func (e *Engine) AddEpisode(ctx context.Context, ep memory.Episode) (*memory.Episode, error) {
	stored, err := e.episodes.Add(ctx, ep)
	if err != nil {
		return nil, err
	}
	e.metrics.SetEpisodes(e.episodes.Len())
	return stored, nil
}

// Graph returns the knowledge graph.
func (e *Engine) Graph() *kg.Graph {
	return e.graph
}

// Subscribe streams published events whose subject matches pattern.
func (e *Engine) Subscribe(pattern string) (*eventbus.Subscription, error) {
	return e.bus.Subscribe(pattern, e.cfg.EventBus.Buffer)
}

// ResolveGoalKey maps a goal id or label to the key its events carry.
func (e *Engine) ResolveGoalKey(ref string) string {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return e.GoalKey(kg.SymbolID(id))
	}
	return ref
}
