package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/goclaw/hyperagent/pkg/vsa"
)

func newTestRetriever(t *testing.T) (*HybridRetriever, *vsa.Space) {
	t.Helper()
	space := vsa.NewSpace(vsa.DefaultDimension, 1)
	vi := NewVectorIndex(space.Dimension())
	bi := NewBM25Index(1.5, 0.75)

	docs := map[EntryID]string{
		"moons": "europa orbits jupiter",
		"bread": "bake sourdough bread",
		"rings": "saturn rings ice",
	}
	for id, text := range docs {
		v, err := space.Encode(text)
		if err != nil {
			t.Fatal(err)
		}
		vi.Add(id, v) //nolint:errcheck
		bi.Index(id, text)
	}
	return NewHybridRetriever(vi, bi, 0.7, 0.3, 0), space
}

func TestHybridRetriever_VectorOnly(t *testing.T) {
	hr, space := newTestRetriever(t)
	q, _ := space.Encode("europa jupiter")

	results, err := hr.Retrieve(context.Background(), Query{Vector: q, Mode: ModeVector, TopK: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].id != "moons" {
		t.Errorf("expected moons, got %v", results)
	}
}

func TestHybridRetriever_BM25Only(t *testing.T) {
	hr, _ := newTestRetriever(t)

	results, err := hr.Retrieve(context.Background(), Query{Text: "sourdough"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].id != "bread" {
		t.Errorf("expected bread, got %v", results)
	}
}

func TestHybridRetriever_FusesBothSignals(t *testing.T) {
	hr, space := newTestRetriever(t)
	q, _ := space.Encode("saturn rings")

	results, err := hr.Retrieve(context.Background(), Query{Text: "saturn rings", Vector: q, TopK: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].id != "rings" {
		t.Fatalf("expected rings first, got %v", results)
	}
	// Top of both lists: 0.7/61 + 0.3/61.
	if want := 1.0 / 61; results[0].score < want-1e-9 || results[0].score > want+1e-9 {
		t.Errorf("expected fused score %f, got %f", want, results[0].score)
	}
}

func TestHybridRetriever_InvalidQuery(t *testing.T) {
	hr, _ := newTestRetriever(t)
	if _, err := hr.Retrieve(context.Background(), Query{}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
	if _, err := hr.Retrieve(context.Background(), Query{Mode: ModeVector, Text: "x"}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestHybridRetriever_BadVectorFallsBackToText(t *testing.T) {
	hr, _ := newTestRetriever(t)
	wrong := vsa.NewSpace(128, 1).Random("x")

	results, err := hr.Retrieve(context.Background(), Query{Text: "sourdough", Vector: wrong})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].id != "bread" {
		t.Errorf("expected bread, got %v", results)
	}
}
