package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goclaw/hyperagent/pkg/vsa"
)

// VectorIndex provides nearest-neighbour search over episode hypervectors by
// brute-force Hamming similarity.
type VectorIndex struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[EntryID]vsa.Vector
}

// NewVectorIndex creates an index for vectors of the given dimension.
func NewVectorIndex(dimension int) *VectorIndex {
	return &VectorIndex{
		dimension: dimension,
		vectors:   make(map[EntryID]vsa.Vector),
	}
}

// Add adds or replaces the vector for id.
func (v *VectorIndex) Add(id EntryID, vec vsa.Vector) error {
	if vec.Dim != v.dimension {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, v.dimension, vec.Dim)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vectors[id] = vec
	return nil
}

// Delete removes the vector for id.
func (v *VectorIndex) Delete(id EntryID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.vectors, id)
}

// Search returns up to topK ids ordered by similarity to query. Entries
// scoring below minScore are dropped.
func (v *VectorIndex) Search(query vsa.Vector, topK int, minScore float64) ([]EntryID, []float64, error) {
	if query.Dim != v.dimension {
		return nil, nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, v.dimension, query.Dim)
	}

	v.mu.RLock()
	type scored struct {
		id    EntryID
		score float64
	}
	results := make([]scored, 0, len(v.vectors))
	for id, vec := range v.vectors {
		sim := vsa.Similarity(query, vec)
		if sim < minScore {
			continue
		}
		results = append(results, scored{id: id, score: sim})
	}
	v.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}

	ids := make([]EntryID, len(results))
	scores := make([]float64, len(results))
	for i, r := range results {
		ids[i] = r.id
		scores[i] = r.score
	}
	return ids, scores, nil
}

// Len returns the number of vectors in the index.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}
