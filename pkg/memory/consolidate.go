package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/goclaw/hyperagent/pkg/kg"
)

// RetainFunc picks the entries consolidation must leave in working memory.
// It receives every entry in creation order.
type RetainFunc func(entries []Entry) []EntryID

// ConsolidatorOption configures a Consolidator.
type ConsolidatorOption func(*Consolidator)

// WithRetention keeps the entries chosen by fn out of every episode, so
// state that is derived from recent working memory survives consolidation.
func WithRetention(fn RetainFunc) ConsolidatorOption {
	return func(c *Consolidator) { c.retain = fn }
}

// Consolidator folds decision and tool-result entries from working memory
// into a single episode and drops them from working memory.
type Consolidator struct {
	wm       *WorkingMemory
	episodes *EpisodicStore
	at       float64
	every    uint64
	logger   storeLogger
	retain   RetainFunc
}

// NewConsolidator creates a consolidator. It is due when the fill ratio
// reaches at, or every n cycles when every is non-zero.
func NewConsolidator(wm *WorkingMemory, episodes *EpisodicStore, at float64, every uint64, logger storeLogger, opts ...ConsolidatorOption) *Consolidator {
	if logger == nil {
		logger = nopStoreLogger{}
	}
	c := &Consolidator{wm: wm, episodes: episodes, at: at, every: every, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Due reports whether consolidation should run after cycle.
func (c *Consolidator) Due(cycle uint64) bool {
	if c.at > 0 && c.wm.FillRatio() >= c.at {
		return true
	}
	return c.every > 0 && cycle > 0 && cycle%c.every == 0
}

// Consolidate writes one episode from the pending entries. It returns nil
// without error when there is nothing to fold.
func (c *Consolidator) Consolidate(ctx context.Context) (*Episode, error) {
	all := c.wm.All()
	kept := make(map[EntryID]struct{})
	if c.retain != nil {
		for _, id := range c.retain(all) {
			kept[id] = struct{}{}
		}
	}

	var folded []Entry
	for _, e := range all {
		if _, ok := kept[e.ID]; ok {
			continue
		}
		if e.Kind == KindDecision || e.Kind == KindToolResult {
			folded = append(folded, e)
		}
	}
	if len(folded) == 0 {
		return nil, nil
	}

	lines := make([]string, 0, len(folded))
	ids := make([]EntryID, 0, len(folded))
	seen := make(map[kg.SymbolID]struct{})
	var symbols []kg.SymbolID
	from, to := folded[0].SourceCycle, folded[0].SourceCycle
	for _, e := range folded {
		lines = append(lines, e.Content)
		ids = append(ids, e.ID)
		for _, s := range e.Symbols {
			if _, dup := seen[s]; !dup {
				seen[s] = struct{}{}
				symbols = append(symbols, s)
			}
		}
		from = min(from, e.SourceCycle)
		to = max(to, e.SourceCycle)
	}

	ep, err := c.episodes.Add(ctx, Episode{
		Summary:   strings.Join(lines, "\n"),
		Symbols:   symbols,
		FromCycle: from,
		ToCycle:   to,
	})
	if err != nil {
		return nil, fmt.Errorf("memory: consolidate: %w", err)
	}
	removed := c.wm.Remove(ids...)
	c.logger.Debug("consolidated working memory",
		"episode_id", ep.ID,
		"entries", removed,
		"retained", len(kept),
		"from_cycle", from,
		"to_cycle", to,
	)
	return ep, nil
}
