package kg

import "sort"

// Activation is the weight a spreading-activation pass assigned to a symbol.
type Activation struct {
	Symbol SymbolID `json:"symbol"`
	Weight float64  `json:"weight"`
}

// SpreadOptions bounds a spreading-activation query.
type SpreadOptions struct {
	// MaxDepth is the number of hops from the seeds.
	MaxDepth int
	// Decay multiplies the weight at every hop.
	Decay float64
	// Threshold drops activations below this weight.
	Threshold float64
	// Limit caps the result size. Zero means unbounded.
	Limit int
}

// DefaultSpreadOptions returns the bounds used when none are configured.
func DefaultSpreadOptions() SpreadOptions {
	return SpreadOptions{MaxDepth: 2, Decay: 0.5, Threshold: 0.1, Limit: 20}
}

// Spread runs bounded spreading activation from seeds along triples in both
// directions. Each seed starts at weight 1; a neighbour receives
// parent * decay * confidence, keeping the best path. Seeds and predicate-only
// symbols are not reported. Results are ordered by weight, then symbol.
func (g *Graph) Spread(seeds []SymbolID, opts SpreadOptions) []Activation {
	if opts.MaxDepth <= 0 || opts.Decay <= 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	isSeed := make(map[SymbolID]bool, len(seeds))
	weights := make(map[SymbolID]float64)
	frontier := make(map[SymbolID]float64)
	for _, s := range seeds {
		if _, ok := g.labels[s]; !ok {
			continue
		}
		isSeed[s] = true
		frontier[s] = 1
	}

	for depth := 0; depth < opts.MaxDepth && len(frontier) > 0; depth++ {
		next := make(map[SymbolID]float64)
		visit := func(n SymbolID, w float64) {
			if isSeed[n] || w < opts.Threshold {
				return
			}
			if w > weights[n] {
				weights[n] = w
				if w > next[n] {
					next[n] = w
				}
			}
		}
		for node, w := range frontier {
			for _, t := range g.out[node] {
				visit(t.Object, w*opts.Decay*t.Confidence)
			}
			for _, t := range g.in[node] {
				visit(t.Subject, w*opts.Decay*t.Confidence)
			}
		}
		frontier = next
	}

	out := make([]Activation, 0, len(weights))
	for id, w := range weights {
		out = append(out, Activation{Symbol: id, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Symbol < out[j].Symbol
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}
