package memory

import (
	"math"
	"sort"
	"sync"

	"github.com/goclaw/hyperagent/pkg/vsa"
)

// BM25Index provides full-text search over episode summaries using the
// BM25 scoring algorithm. Tokens are produced by vsa.Tokenize so text and
// vector retrieval agree on what a word is.
type BM25Index struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	// term -> documents containing it
	inverted map[string]map[EntryID]struct{}
	// document -> term frequencies
	termFreqs  map[EntryID]map[string]int
	docLengths map[EntryID]int

	totalDocs int
	totalLen  int
}

// NewBM25Index creates a new BM25 index. Non-positive parameters fall back to
// k1=1.5 and b=0.75.
func NewBM25Index(k1, b float64) *BM25Index {
	if k1 <= 0 {
		k1 = 1.5
	}
	if b <= 0 || b > 1 {
		b = 0.75
	}
	return &BM25Index{
		k1:         k1,
		b:          b,
		inverted:   make(map[string]map[EntryID]struct{}),
		termFreqs:  make(map[EntryID]map[string]int),
		docLengths: make(map[EntryID]int),
	}
}

// Index adds or replaces a document.
func (idx *BM25Index) Index(id EntryID, content string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.termFreqs[id]; exists {
		idx.removeLocked(id)
	}

	tokens := vsa.Tokenize(content)
	freqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freqs[tok]++
	}

	idx.termFreqs[id] = freqs
	idx.docLengths[id] = len(tokens)
	idx.totalDocs++
	idx.totalLen += len(tokens)

	for term := range freqs {
		if idx.inverted[term] == nil {
			idx.inverted[term] = make(map[EntryID]struct{})
		}
		idx.inverted[term][id] = struct{}{}
	}
}

// Remove drops a document from the index.
func (idx *BM25Index) Remove(id EntryID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

func (idx *BM25Index) removeLocked(id EntryID) {
	freqs, exists := idx.termFreqs[id]
	if !exists {
		return
	}
	for term := range freqs {
		if docs, ok := idx.inverted[term]; ok {
			delete(docs, id)
			if len(docs) == 0 {
				delete(idx.inverted, term)
			}
		}
	}
	idx.totalLen -= idx.docLengths[id]
	idx.totalDocs--
	delete(idx.termFreqs, id)
	delete(idx.docLengths, id)
}

// Search returns up to topK documents with a positive score for query.
func (idx *BM25Index) Search(query string, topK int) ([]EntryID, []float64) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.totalDocs == 0 {
		return nil, nil
	}
	queryTokens := vsa.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}
	avgDL := float64(idx.totalLen) / float64(idx.totalDocs)

	candidates := make(map[EntryID]struct{})
	for _, tok := range queryTokens {
		for id := range idx.inverted[tok] {
			candidates[id] = struct{}{}
		}
	}

	type scored struct {
		id    EntryID
		score float64
	}
	results := make([]scored, 0, len(candidates))
	for id := range candidates {
		if s := idx.scoreLocked(id, queryTokens, avgDL); s > 0 {
			results = append(results, scored{id: id, score: s})
		}
	}
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
	return ids, scores
}

// Len returns the number of indexed documents.
func (idx *BM25Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.totalDocs
}

// scoreLocked must be called with the read lock held.
func (idx *BM25Index) scoreLocked(id EntryID, queryTokens []string, avgDL float64) float64 {
	docLen := float64(idx.docLengths[id])
	freqs := idx.termFreqs[id]
	score := 0.0
	for _, term := range queryTokens {
		tf := float64(freqs[term])
		if tf == 0 {
			continue
		}
		n := float64(len(idx.inverted[term]))
		idf := math.Log((float64(idx.totalDocs)-n+0.5)/(n+0.5) + 1.0)
		score += idf * tf * (idx.k1 + 1) / (tf + idx.k1*(1-idx.b+idx.b*docLen/avgDL))
	}
	return score
}
