// Package memory provides an in-memory implementation of the storage interface.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	agentmem "github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/storage"
)

// MemoryStorage implements the Storage interface using in-memory maps.
type MemoryStorage struct {
	mu         sync.RWMutex
	goals      map[kg.SymbolID]*goal.Goal
	cycles     map[uint64]*storage.CycleRecord
	provenance []*storage.ProvenanceRecord
	episodes   map[agentmem.EntryID]*agentmem.Episode
	snapshot   *kg.Snapshot
}

// NewMemoryStorage creates a new in-memory storage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		goals:    make(map[kg.SymbolID]*goal.Goal),
		cycles:   make(map[uint64]*storage.CycleRecord),
		episodes: make(map[agentmem.EntryID]*agentmem.Episode),
	}
}

// SaveGoal stores a copy of g.
func (m *MemoryStorage) SaveGoal(ctx context.Context, g *goal.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals[g.ID] = g.Clone()
	return nil
}

// GetGoal retrieves a goal by ID.
func (m *MemoryStorage) GetGoal(ctx context.Context, id kg.SymbolID) (*goal.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, &storage.NotFoundError{EntityType: "goal", ID: fmt.Sprint(id)}
	}
	return g.Clone(), nil
}

// ListGoals returns all goals ordered by ID.
func (m *MemoryStorage) ListGoals(ctx context.Context) ([]*goal.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*goal.Goal, 0, len(m.goals))
	for _, g := range m.goals {
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveCycle stores a cycle record.
func (m *MemoryStorage) SaveCycle(ctx context.Context, rec *storage.CycleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *rec
	m.cycles[rec.Cycle] = &copied
	return nil
}

// GetCycle retrieves a cycle record by number.
func (m *MemoryStorage) GetCycle(ctx context.Context, cycle uint64) (*storage.CycleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.cycles[cycle]
	if !ok {
		return nil, &storage.NotFoundError{EntityType: "cycle", ID: fmt.Sprint(cycle)}
	}
	copied := *rec
	return &copied, nil
}

// ListCycles returns up to limit records, newest first. Zero means all.
func (m *MemoryStorage) ListCycles(ctx context.Context, limit int) ([]*storage.CycleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*storage.CycleRecord, 0, len(m.cycles))
	for _, rec := range m.cycles {
		copied := *rec
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cycle > out[j].Cycle })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// SaveProvenance appends a provenance record.
func (m *MemoryStorage) SaveProvenance(ctx context.Context, rec *storage.ProvenanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provenance = append(m.provenance, cloneProvenance(rec))
	return nil
}

// ListProvenance returns matching records, newest first.
func (m *MemoryStorage) ListProvenance(ctx context.Context, filter *storage.ProvenanceFilter) ([]*storage.ProvenanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*storage.ProvenanceRecord
	for i := len(m.provenance) - 1; i >= 0; i-- {
		rec := m.provenance[i]
		if filter != nil && filter.GoalID != 0 && rec.GoalID != filter.GoalID {
			continue
		}
		out = append(out, cloneProvenance(rec))
		if filter != nil && filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// SaveEpisode stores an episode.
func (m *MemoryStorage) SaveEpisode(ctx context.Context, ep *agentmem.Episode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *ep
	copied.Symbols = append([]kg.SymbolID(nil), ep.Symbols...)
	copied.Vector = ep.Vector.Clone()
	m.episodes[ep.ID] = &copied
	return nil
}

// DeleteEpisode removes an episode. Deleting a missing episode is not an error.
func (m *MemoryStorage) DeleteEpisode(ctx context.Context, id agentmem.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.episodes, id)
	return nil
}

// ListEpisodes returns all episodes.
func (m *MemoryStorage) ListEpisodes(ctx context.Context) ([]*agentmem.Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*agentmem.Episode, 0, len(m.episodes))
	for _, ep := range m.episodes {
		copied := *ep
		copied.Symbols = append([]kg.SymbolID(nil), ep.Symbols...)
		copied.Vector = ep.Vector.Clone()
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveSnapshot replaces the stored graph snapshot.
func (m *MemoryStorage) SaveSnapshot(ctx context.Context, snap *kg.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = &kg.Snapshot{
		Symbols: append([]kg.Symbol(nil), snap.Symbols...),
		Triples: append([]kg.Triple(nil), snap.Triples...),
	}
	return nil
}

// LoadSnapshot returns the stored graph snapshot.
func (m *MemoryStorage) LoadSnapshot(ctx context.Context) (*kg.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return nil, &storage.NotFoundError{EntityType: "snapshot", ID: "graph"}
	}
	return &kg.Snapshot{
		Symbols: append([]kg.Symbol(nil), m.snapshot.Symbols...),
		Triples: append([]kg.Triple(nil), m.snapshot.Triples...),
	}, nil
}

// Close is a no-op for in-memory storage.
func (m *MemoryStorage) Close() error {
	return nil
}

func cloneProvenance(rec *storage.ProvenanceRecord) *storage.ProvenanceRecord {
	copied := *rec
	copied.Alternatives = append([]storage.Alternative(nil), rec.Alternatives...)
	return &copied
}
