package memory

import (
	"errors"
	"testing"

	"github.com/goclaw/hyperagent/pkg/vsa"
)

func TestVectorIndex_Search(t *testing.T) {
	space := vsa.NewSpace(vsa.DefaultDimension, 1)
	idx := NewVectorIndex(space.Dimension())

	moons, _ := space.Encode("jupiter moons orbit")
	bread, _ := space.Encode("bake sourdough bread")
	if err := idx.Add("moons", moons); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add("bread", bread); err != nil {
		t.Fatal(err)
	}

	query, _ := space.Encode("the moons of jupiter")
	ids, scores, err := idx.Search(query, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "moons" {
		t.Fatalf("expected moons first, got %v", ids)
	}
	if scores[0] < 0.7 {
		t.Errorf("expected a strong match, got %f", scores[0])
	}

	ids, _, _ = idx.Search(query, 10, 0.7)
	if len(ids) != 1 {
		t.Errorf("min score should drop the unrelated vector, got %v", ids)
	}
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	idx := NewVectorIndex(128)
	other := vsa.NewSpace(256, 1).Random("x")

	if err := idx.Add("x", other); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, _, err := idx.Search(other, 1, 0); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestVectorIndex_Delete(t *testing.T) {
	space := vsa.NewSpace(128, 1)
	idx := NewVectorIndex(128)
	idx.Add("a", space.Random("a")) //nolint:errcheck
	idx.Delete("a")
	if idx.Len() != 0 {
		t.Errorf("expected empty index, got %d", idx.Len())
	}
}
