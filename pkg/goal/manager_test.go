package goal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	saved   map[kg.SymbolID]*Goal
	failing bool
}

func (s *recordingStore) SaveGoal(ctx context.Context, g *Goal) error {
	if s.failing {
		return errors.New("disk full")
	}
	if s.saved == nil {
		s.saved = make(map[kg.SymbolID]*Goal)
	}
	s.saved[g.ID] = g.Clone()
	return nil
}

func (s *recordingStore) ListGoals(ctx context.Context) ([]*Goal, error) {
	out := make([]*Goal, 0, len(s.saved))
	for _, g := range s.saved {
		out = append(out, g.Clone())
	}
	return out, nil
}

func newTestManager(t *testing.T) (*Manager, *kg.Graph, *recordingStore) {
	t.Helper()
	g := kg.New()
	store := &recordingStore{}
	m := NewManager(g, store, nil)
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return m, g, store
}

func TestManager_CreateInternsGoalSymbol(t *testing.T) {
	m, g, store := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, Spec{Description: " find all moons ", SuccessCriteria: "list the moons", Priority: 200})
	require.NoError(t, err)

	label, ok := g.Label(created.ID)
	require.True(t, ok)
	assert.Equal(t, "goal:find all moons", label)
	assert.True(t, kg.Internal(label))
	assert.Equal(t, StatusActive, created.Status)
	assert.Contains(t, store.saved, created.ID)

	_, err = m.Create(ctx, Spec{Description: "find all moons"})
	assert.ErrorIs(t, err, ErrExists)

	_, err = m.Create(ctx, Spec{Description: "  "})
	assert.ErrorIs(t, err, ErrInvalidGoal)

	_, err = m.Create(ctx, Spec{Description: "other", BlockedBy: []kg.SymbolID{999}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_ActiveOrdering(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	low, _ := m.Create(ctx, Spec{Description: "low", Priority: 10})
	high, _ := m.Create(ctx, Spec{Description: "high", Priority: 200})
	tieA, _ := m.Create(ctx, Spec{Description: "tie a", Priority: 100})
	tieB, _ := m.Create(ctx, Spec{Description: "tie b", Priority: 100})
	done, _ := m.Create(ctx, Spec{Description: "done", Priority: 255})
	require.NoError(t, m.UpdateStatus(ctx, done.ID, StatusCompleted))

	var ids []kg.SymbolID
	for _, g := range m.Active() {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []kg.SymbolID{high.ID, tieA.ID, tieB.ID, low.ID}, ids)
}

func TestManager_Blocked(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	first, _ := m.Create(ctx, Spec{Description: "survey", Priority: 10})
	second, err := m.Create(ctx, Spec{Description: "analyse", Priority: 200, BlockedBy: []kg.SymbolID{first.ID}})
	require.NoError(t, err)

	assert.True(t, m.Blocked(second.ID))
	assert.False(t, m.Blocked(first.ID))
	assert.False(t, m.Blocked(12345))

	require.NoError(t, m.UpdateStatus(ctx, first.ID, StatusFailed))
	assert.False(t, m.Blocked(second.ID))
}

func TestManager_UpdateStatus(t *testing.T) {
	m, _, store := newTestManager(t)
	ctx := context.Background()
	g, _ := m.Create(ctx, Spec{Description: "explore"})

	assert.ErrorIs(t, m.UpdateStatus(ctx, g.ID, "bogus"), ErrInvalidStatus)
	assert.ErrorIs(t, m.UpdateStatus(ctx, 999, StatusCompleted), ErrNotFound)

	require.NoError(t, m.UpdateStatus(ctx, g.ID, StatusSuspended))
	require.NoError(t, m.UpdateStatus(ctx, g.ID, StatusCompleted))
	assert.Equal(t, StatusCompleted, store.saved[g.ID].Status)
	require.NoError(t, m.UpdateStatus(ctx, g.ID, StatusCompleted), "same status is a no-op")
	assert.ErrorIs(t, m.UpdateStatus(ctx, g.ID, StatusActive), ErrTerminalStatus)

	counts := m.Counts()
	assert.Equal(t, 1, counts[StatusCompleted])
}

func TestManager_UpdateStatusKeepsStateOnStoreFailure(t *testing.T) {
	m, _, store := newTestManager(t)
	ctx := context.Background()
	g, _ := m.Create(ctx, Spec{Description: "explore"})

	store.failing = true
	assert.Error(t, m.UpdateStatus(ctx, g.ID, StatusCompleted))
	got, _ := m.Get(g.ID)
	assert.Equal(t, StatusActive, got.Status)
}

func TestManager_RecordWork(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	g, _ := m.Create(ctx, Spec{Description: "explore"})

	require.NoError(t, m.RecordWork(ctx, g.ID, 3, false))
	require.NoError(t, m.RecordWork(ctx, g.ID, 4, true))
	require.NoError(t, m.RecordWork(ctx, g.ID, 5, false))

	got, ok := m.Get(g.ID)
	require.True(t, ok)
	assert.Equal(t, uint64(3), got.CyclesWorked)
	assert.Equal(t, uint64(4), got.LastProgressCycle)

	assert.ErrorIs(t, m.RecordWork(ctx, 999, 1, true), ErrNotFound)
}

func TestManager_Load(t *testing.T) {
	m, g, store := newTestManager(t)
	ctx := context.Background()
	a, _ := m.Create(ctx, Spec{Description: "a", Priority: 1})
	b, _ := m.Create(ctx, Spec{Description: "b", Priority: 1})

	reloaded := NewManager(g, store, nil)
	require.NoError(t, reloaded.Load(ctx))

	list := reloaded.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
}

func TestGoal_Value(t *testing.T) {
	assert.Equal(t, 1.0, Goal{Priority: MaxPriority}.Value())
	assert.Equal(t, 0.0, Goal{}.Value())
}
