package goal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/logger"
)

// Store persists goals. A nil Store keeps goals in process only.
type Store interface {
	SaveGoal(ctx context.Context, g *Goal) error
	ListGoals(ctx context.Context) ([]*Goal, error)
}

// Interner assigns graph symbols to labels. *kg.Graph satisfies it.
type Interner interface {
	Intern(label string) (kg.SymbolID, error)
}

// Manager owns the goal set. It is safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	graph  Interner
	store  Store
	logger logger.Logger
	goals  map[kg.SymbolID]*Goal
	order  []kg.SymbolID
	now    func() time.Time
}

// NewManager creates a goal manager. store and log may be nil.
func NewManager(graph Interner, store Store, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		graph:  graph,
		store:  store,
		logger: log,
		goals:  make(map[kg.SymbolID]*Goal),
		now:    time.Now,
	}
}

// Load reads persisted goals into the manager. Goals already known are replaced.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	goals, err := m.store.ListGoals(ctx)
	if err != nil {
		return fmt.Errorf("goal: load: %w", err)
	}
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].CreatedAt.Before(goals[j].CreatedAt)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range goals {
		if _, known := m.goals[g.ID]; !known {
			m.order = append(m.order, g.ID)
		}
		m.goals[g.ID] = g.Clone()
	}
	m.logger.Debug("goals loaded", "count", len(goals))
	return nil
}

// Create registers a new active goal and its graph symbol.
func (m *Manager) Create(ctx context.Context, spec Spec) (*Goal, error) {
	desc := strings.TrimSpace(spec.Description)
	if desc == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidGoal)
	}
	id, err := m.graph.Intern(Label(desc))
	if err != nil {
		return nil, fmt.Errorf("goal: intern symbol: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.goals[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrExists, desc)
	}
	for _, dep := range spec.BlockedBy {
		if _, ok := m.goals[dep]; !ok {
			return nil, fmt.Errorf("%w: blocking goal %d", ErrNotFound, dep)
		}
	}

	now := m.now()
	g := &Goal{
		ID:              id,
		Description:     desc,
		SuccessCriteria: strings.TrimSpace(spec.SuccessCriteria),
		Priority:        spec.Priority,
		Status:          StatusActive,
		BlockedBy:       append([]kg.SymbolID(nil), spec.BlockedBy...),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.persist(ctx, g); err != nil {
		return nil, err
	}
	m.goals[id] = g
	m.order = append(m.order, id)

	m.logger.Info("goal created", "goal_id", id, "priority", g.Priority)
	return g.Clone(), nil
}

// Get returns a copy of the goal with id.
func (m *Manager) Get(id kg.SymbolID) (*Goal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// List returns every goal in creation order.
func (m *Manager) List() []Goal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Goal, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.goals[id].Clone())
	}
	return out
}

// Active returns the active goals by descending priority, then creation order.
func (m *Manager) Active() []Goal {
	all := m.List()
	out := all[:0]
	for _, g := range all {
		if g.Status == StatusActive {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// Blocked reports whether any goal blocking id is still active.
func (m *Manager) Blocked(id kg.SymbolID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.goals[id]
	if !ok {
		return false
	}
	for _, dep := range g.BlockedBy {
		if d, ok := m.goals[dep]; ok && d.Status == StatusActive {
			return true
		}
	}
	return false
}

// UpdateStatus moves a goal to status and persists it. Finished goals
// cannot change status again.
func (m *Manager) UpdateStatus(ctx context.Context, id kg.SymbolID, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if g.Status == status {
		return nil
	}
	if g.Status.Terminal() {
		return fmt.Errorf("%w: %d is %s", ErrTerminalStatus, id, g.Status)
	}

	updated := g.Clone()
	updated.Status = status
	updated.UpdatedAt = m.now()
	if err := m.persist(ctx, updated); err != nil {
		return err
	}
	m.goals[id] = updated
	m.logger.Info("goal status changed", "goal_id", id, "from", g.Status, "to", status)
	return nil
}

// RecordWork notes that cycle worked on the goal. progressed marks the cycle
// as the goal's latest progress.
func (m *Manager) RecordWork(ctx context.Context, id kg.SymbolID, cycle uint64, progressed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	updated := g.Clone()
	updated.CyclesWorked++
	if progressed {
		updated.LastProgressCycle = cycle
	}
	updated.UpdatedAt = m.now()
	if err := m.persist(ctx, updated); err != nil {
		return err
	}
	m.goals[id] = updated
	return nil
}

// Counts returns the number of goals per status.
func (m *Manager) Counts() map[Status]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Status]int, 4)
	for _, g := range m.goals {
		out[g.Status]++
	}
	return out
}

func (m *Manager) persist(ctx context.Context, g *Goal) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.SaveGoal(ctx, g); err != nil {
		return fmt.Errorf("goal: save %d: %w", g.ID, err)
	}
	return nil
}
