package memory

import (
	"errors"
	"testing"

	"github.com/goclaw/hyperagent/pkg/kg"
)

func TestWorkingMemory_PushAndRecent(t *testing.T) {
	wm := NewWorkingMemory(4)

	var ids []EntryID
	for i, content := range []string{"a", "b", "c"} {
		id, err := wm.Push(KindObservation, content, []kg.SymbolID{kg.SymbolID(i + 1)}, uint64(i+1))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	recent := wm.Recent(2)
	if len(recent) != 2 || recent[0].Content != "b" || recent[1].Content != "c" {
		t.Fatalf("expected [b c], got %+v", recent)
	}
	if got := wm.Recent(10); len(got) != 3 {
		t.Errorf("expected all 3 entries, got %d", len(got))
	}
	if got := wm.Recent(0); got != nil {
		t.Errorf("expected nil for n=0, got %v", got)
	}
	if wm.FillRatio() != 0.75 {
		t.Errorf("expected fill 0.75, got %f", wm.FillRatio())
	}
	if ids[0] == ids[1] {
		t.Error("entry ids must be unique")
	}
}

func TestWorkingMemory_Capacity(t *testing.T) {
	wm := NewWorkingMemory(1)
	if _, err := wm.Push(KindDecision, "one", nil, 1); err != nil {
		t.Fatal(err)
	}
	_, err := wm.Push(KindDecision, "two", nil, 1)
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	if wm.Len() != 1 {
		t.Errorf("rejected push must not be stored, len=%d", wm.Len())
	}
}

func TestWorkingMemory_ByKindAndReferences(t *testing.T) {
	wm := NewWorkingMemory(0)
	obs, _ := wm.Push(KindObservation, "obs", nil, 1)
	wm.Push(KindDecision, "d1", nil, 1) //nolint:errcheck
	wm.Push(KindDecision, "d2", nil, 2) //nolint:errcheck

	decisions := wm.ByKind(KindDecision)
	if len(decisions) != 2 || decisions[0].Content != "d1" {
		t.Fatalf("unexpected decisions: %+v", decisions)
	}

	if err := wm.IncrementReference(obs); err != nil {
		t.Fatal(err)
	}
	wm.IncrementReference(obs) //nolint:errcheck
	e, ok := wm.Get(obs)
	if !ok || e.References != 2 {
		t.Errorf("expected 2 references, got %+v", e)
	}
	if err := wm.IncrementReference("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWorkingMemory_ReturnsCopies(t *testing.T) {
	wm := NewWorkingMemory(2)
	id, _ := wm.Push(KindObservation, "x", []kg.SymbolID{1}, 1)

	got := wm.Recent(1)
	got[0].Symbols[0] = 99
	got[0].Content = "mutated"

	e, _ := wm.Get(id)
	if e.Content != "x" || e.Symbols[0] != 1 {
		t.Errorf("caller mutation leaked into memory: %+v", e)
	}
}

func TestWorkingMemory_Remove(t *testing.T) {
	wm := NewWorkingMemory(3)
	a, _ := wm.Push(KindObservation, "a", nil, 1)
	wm.Push(KindObservation, "b", nil, 1) //nolint:errcheck
	c, _ := wm.Push(KindObservation, "c", nil, 1)

	if n := wm.Remove(a, c, "missing"); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	all := wm.All()
	if len(all) != 1 || all[0].Content != "b" {
		t.Errorf("expected [b], got %+v", all)
	}
	if _, err := wm.Push(KindObservation, "d", nil, 2); err != nil {
		t.Errorf("push after remove: %v", err)
	}
}
