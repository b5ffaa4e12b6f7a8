package memory

import (
	"context"
	"sort"
)

// Retrieval modes.
const (
	ModeHybrid = "hybrid"
	ModeVector = "vector"
	ModeBM25   = "bm25"
)

// HybridRetriever combines hypervector and BM25 retrieval with weighted
// Reciprocal Rank Fusion.
type HybridRetriever struct {
	vector       *VectorIndex
	bm25         *BM25Index
	vectorWeight float64
	bm25Weight   float64
	rrfK         float64
	minScore     float64
}

// NewHybridRetriever creates a retriever. minScore filters vector hits before fusion.
func NewHybridRetriever(vector *VectorIndex, bm25 *BM25Index, vectorWeight, bm25Weight, minScore float64) *HybridRetriever {
	return &HybridRetriever{
		vector:       vector,
		bm25:         bm25,
		vectorWeight: vectorWeight,
		bm25Weight:   bm25Weight,
		rrfK:         60.0,
		minScore:     minScore,
	}
}

type fusedResult struct {
	id    EntryID
	score float64
}

// Retrieve ranks episode ids for query. Each retriever fetches at least 30
// candidates before fusion.
func (h *HybridRetriever) Retrieve(ctx context.Context, query Query) ([]fusedResult, error) {
	mode := query.Mode
	if mode == "" {
		hasText := query.Text != ""
		hasVector := !query.Vector.IsZero()
		switch {
		case hasText && hasVector:
			mode = ModeHybrid
		case hasVector:
			mode = ModeVector
		case hasText:
			mode = ModeBM25
		default:
			return nil, ErrInvalidQuery
		}
	}

	topK := query.TopK
	if topK <= 0 {
		topK = 10
	}
	fetchK := topK * 3
	if fetchK < 30 {
		fetchK = 30
	}

	switch mode {
	case ModeVector:
		if query.Vector.IsZero() {
			return nil, ErrInvalidQuery
		}
		ids, scores, err := h.vector.Search(query.Vector, topK, h.minScore)
		if err != nil {
			return nil, err
		}
		return zipResults(ids, scores), nil
	case ModeBM25:
		if query.Text == "" {
			return nil, ErrInvalidQuery
		}
		ids, scores := h.bm25.Search(query.Text, topK)
		return zipResults(ids, scores), nil
	default:
		return h.hybrid(ctx, query, topK, fetchK)
	}
}

func (h *HybridRetriever) hybrid(ctx context.Context, query Query, topK, fetchK int) ([]fusedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		vectorIDs []EntryID
		vectorErr error
		bm25IDs   []EntryID
	)
	if !query.Vector.IsZero() {
		vectorIDs, _, vectorErr = h.vector.Search(query.Vector, fetchK, h.minScore)
	}
	if query.Text != "" {
		bm25IDs, _ = h.bm25.Search(query.Text, fetchK)
	}

	// A bad query vector degrades to text-only recall.
	if vectorErr != nil {
		if len(bm25IDs) == 0 {
			return nil, vectorErr
		}
		vectorIDs = nil
	}
	if len(vectorIDs) == 0 && len(bm25IDs) == 0 {
		return nil, nil
	}

	fused := h.fuseRRF(vectorIDs, bm25IDs)
	if topK < len(fused) {
		fused = fused[:topK]
	}
	return fused, nil
}

// fuseRRF applies Reciprocal Rank Fusion: RRF(d) = sum weight/(k + rank(d)).
func (h *HybridRetriever) fuseRRF(vectorIDs, bm25IDs []EntryID) []fusedResult {
	scores := make(map[EntryID]float64, len(vectorIDs)+len(bm25IDs))
	for rank, id := range vectorIDs {
		scores[id] += h.vectorWeight / (h.rrfK + float64(rank+1))
	}
	for rank, id := range bm25IDs {
		scores[id] += h.bm25Weight / (h.rrfK + float64(rank+1))
	}

	results := make([]fusedResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, fusedResult{id: id, score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})
	return results
}

func zipResults(ids []EntryID, scores []float64) []fusedResult {
	out := make([]fusedResult, len(ids))
	for i, id := range ids {
		out[i] = fusedResult{id: id, score: scores[i]}
	}
	return out
}
