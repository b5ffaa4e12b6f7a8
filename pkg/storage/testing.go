package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/vsa"
)

// StorageTestSuite defines a test suite that can be run against any Storage implementation.
type StorageTestSuite struct {
	NewStorage func(t *testing.T) Storage
}

// RunAllTests runs all storage tests against the provided storage implementation.
func (s *StorageTestSuite) RunAllTests(t *testing.T) {
	t.Run("GoalCRUD", s.TestGoalCRUD)
	t.Run("GoalNotFound", s.TestGoalNotFound)
	t.Run("CycleHistory", s.TestCycleHistory)
	t.Run("CycleNotFound", s.TestCycleNotFound)
	t.Run("ProvenanceFilter", s.TestProvenanceFilter)
	t.Run("EpisodeLifecycle", s.TestEpisodeLifecycle)
	t.Run("SnapshotRoundTrip", s.TestSnapshotRoundTrip)
	t.Run("ConcurrentAccess", s.TestConcurrentAccess)
}

// TestGoalCRUD tests saving, updating and listing goals.
func (s *StorageTestSuite) TestGoalCRUD(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	g := &goal.Goal{
		ID:              7,
		Description:     "find all moons",
		SuccessCriteria: "list every moon of jupiter",
		Priority:        200,
		Status:          goal.StatusActive,
		BlockedBy:       []kg.SymbolID{3},
		CreatedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := store.SaveGoal(ctx, g); err != nil {
		t.Fatalf("SaveGoal failed: %v", err)
	}

	got, err := store.GetGoal(ctx, 7)
	if err != nil {
		t.Fatalf("GetGoal failed: %v", err)
	}
	if got.Description != g.Description || got.Priority != g.Priority {
		t.Errorf("unexpected goal: %+v", got)
	}
	if len(got.BlockedBy) != 1 || got.BlockedBy[0] != 3 {
		t.Errorf("expected BlockedBy [3], got %v", got.BlockedBy)
	}

	got.Status = goal.StatusCompleted
	got.CyclesWorked = 4
	if err := store.SaveGoal(ctx, got); err != nil {
		t.Fatalf("SaveGoal (update) failed: %v", err)
	}
	if err := store.SaveGoal(ctx, &goal.Goal{ID: 8, Description: "other", Status: goal.StatusActive}); err != nil {
		t.Fatalf("SaveGoal failed: %v", err)
	}

	goals, err := store.ListGoals(ctx)
	if err != nil {
		t.Fatalf("ListGoals failed: %v", err)
	}
	if len(goals) != 2 {
		t.Fatalf("expected 2 goals, got %d", len(goals))
	}
	for _, lg := range goals {
		if lg.ID == 7 && (lg.Status != goal.StatusCompleted || lg.CyclesWorked != 4) {
			t.Errorf("update not persisted: %+v", lg)
		}
	}
}

// TestGoalNotFound tests the typed not-found error.
func (s *StorageTestSuite) TestGoalNotFound(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	_, err := store.GetGoal(context.Background(), 404)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.EntityType != "goal" {
		t.Errorf("expected entity type goal, got %s", nf.EntityType)
	}
}

// TestCycleHistory tests cycle records are listed newest first.
func (s *StorageTestSuite) TestCycleHistory(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	for i := uint64(1); i <= 12; i++ {
		rec := &CycleRecord{
			Cycle:     i,
			GoalID:    1,
			Tool:      "kg_query",
			Score:     0.5,
			Progress:  "advanced",
			StartedAt: time.Now(),
			Duration:  time.Millisecond,
		}
		if err := store.SaveCycle(ctx, rec); err != nil {
			t.Fatalf("SaveCycle failed: %v", err)
		}
	}

	recs, err := store.ListCycles(ctx, 3)
	if err != nil {
		t.Fatalf("ListCycles failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, want := range []uint64{12, 11, 10} {
		if recs[i].Cycle != want {
			t.Errorf("record %d: expected cycle %d, got %d", i, want, recs[i].Cycle)
		}
	}

	all, err := store.ListCycles(ctx, 0)
	if err != nil {
		t.Fatalf("ListCycles failed: %v", err)
	}
	if len(all) != 12 {
		t.Errorf("expected 12 records, got %d", len(all))
	}

	got, err := store.GetCycle(ctx, 5)
	if err != nil {
		t.Fatalf("GetCycle failed: %v", err)
	}
	if got.Tool != "kg_query" || got.Duration != time.Millisecond {
		t.Errorf("unexpected record: %+v", got)
	}
}

// TestCycleNotFound tests a missing cycle.
func (s *StorageTestSuite) TestCycleNotFound(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	_, err := store.GetCycle(context.Background(), 1)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

// TestProvenanceFilter tests filtering provenance by goal.
func (s *StorageTestSuite) TestProvenanceFilter(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	for i := uint64(1); i <= 6; i++ {
		rec := &ProvenanceRecord{
			ID:        fmt.Sprintf("p-%d", i),
			Cycle:     i,
			GoalID:    kg.SymbolID(i%2 + 1),
			Tool:      "reason",
			Score:     0.6,
			Reasoning: "relevant triples exist",
			Alternatives: []Alternative{
				{Tool: "kg_query", Score: 0.4},
			},
			CreatedAt: time.Now(),
		}
		if err := store.SaveProvenance(ctx, rec); err != nil {
			t.Fatalf("SaveProvenance failed: %v", err)
		}
	}

	recs, err := store.ListProvenance(ctx, &ProvenanceFilter{GoalID: 1})
	if err != nil {
		t.Fatalf("ListProvenance failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records for goal 1, got %d", len(recs))
	}
	for _, r := range recs {
		if r.GoalID != 1 {
			t.Errorf("unexpected goal %d in filtered results", r.GoalID)
		}
	}
	if recs[0].Cycle < recs[len(recs)-1].Cycle {
		t.Errorf("expected newest first, got %d before %d", recs[0].Cycle, recs[len(recs)-1].Cycle)
	}
	if len(recs[0].Alternatives) != 1 {
		t.Errorf("alternatives not persisted: %+v", recs[0])
	}

	limited, err := store.ListProvenance(ctx, &ProvenanceFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListProvenance failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 records, got %d", len(limited))
	}
}

// TestEpisodeLifecycle tests saving, listing and deleting episodes.
func (s *StorageTestSuite) TestEpisodeLifecycle(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	space := vsa.NewSpace(128, 1)
	ep := &memory.Episode{
		ID:        "ep-1",
		Summary:   "Tool result (kg_query): europa orbits jupiter",
		Symbols:   []kg.SymbolID{1, 2},
		Vector:    space.Random("ep-1"),
		Strength:  1,
		Stability: 24,
		FromCycle: 1,
		ToCycle:   3,
	}
	if err := store.SaveEpisode(ctx, ep); err != nil {
		t.Fatalf("SaveEpisode failed: %v", err)
	}
	if err := store.SaveEpisode(ctx, &memory.Episode{ID: "ep-2", Summary: "second", Vector: space.Random("ep-2")}); err != nil {
		t.Fatalf("SaveEpisode failed: %v", err)
	}

	eps, err := store.ListEpisodes(ctx)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(eps) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(eps))
	}
	for _, got := range eps {
		if got.ID == "ep-1" && vsa.Similarity(got.Vector, ep.Vector) != 1 {
			t.Error("episode vector not preserved")
		}
	}

	if err := store.DeleteEpisode(ctx, "ep-1"); err != nil {
		t.Fatalf("DeleteEpisode failed: %v", err)
	}
	eps, _ = store.ListEpisodes(ctx)
	if len(eps) != 1 || eps[0].ID != "ep-2" {
		t.Errorf("expected only ep-2, got %v", eps)
	}
}

// TestSnapshotRoundTrip tests graph snapshot persistence.
func (s *StorageTestSuite) TestSnapshotRoundTrip(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	_, err := store.LoadSnapshot(ctx)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError before the first save, got %v", err)
	}

	g := kg.New()
	if _, err := g.AssertLabels("europa", "orbits", "jupiter", 0.9); err != nil {
		t.Fatal(err)
	}
	snap := g.Snapshot()
	if err := store.SaveSnapshot(ctx, &snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(got.Symbols) != 3 || len(got.Triples) != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.Triples[0].Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %f", got.Triples[0].Confidence)
	}
}

// TestConcurrentAccess tests concurrent writes.
func (s *StorageTestSuite) TestConcurrentAccess(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	errCh := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := store.SaveCycle(ctx, &CycleRecord{Cycle: uint64(idx + 1), StartedAt: time.Now()}); err != nil {
				errCh <- err
			}
			if err := store.SaveGoal(ctx, &goal.Goal{ID: kg.SymbolID(idx + 1), Description: "g", Status: goal.StatusActive}); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent operation failed: %v", err)
	}

	recs, err := store.ListCycles(ctx, 0)
	if err != nil {
		t.Fatalf("ListCycles failed: %v", err)
	}
	if len(recs) != 10 {
		t.Errorf("expected 10 cycles, got %d", len(recs))
	}
}
