// Package builtin implements the agent's built-in tools against the concrete
// knowledge graph, item memory and episodic store.
package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/tool"
	"github.com/goclaw/hyperagent/pkg/vsa"
)

// Deps are the collaborators the built-in tools operate on.
type Deps struct {
	Graph    *kg.Graph
	Items    *vsa.ItemMemory
	Episodes *memory.EpisodicStore

	// Root bounds file_read. Empty disables file_read registration.
	Root string
	// MaxFileBytes caps how much of a file is read. Zero means 64 KiB.
	MaxFileBytes int64
	// MinSimilarity is the similarity_search cut-off. Zero means 0.55.
	MinSimilarity float64
}

// Register adds every built-in tool whose dependencies are present.
func Register(reg *tool.Registry, deps Deps) error {
	if deps.Graph == nil {
		return fmt.Errorf("builtin: graph is required")
	}
	tools := []tool.Tool{
		&kgQuery{graph: deps.Graph},
		&kgMutate{graph: deps.Graph},
		&reasoner{graph: deps.Graph},
		&gapAnalysis{graph: deps.Graph},
	}
	if deps.Items != nil {
		minSim := deps.MinSimilarity
		if minSim <= 0 {
			minSim = 0.55
		}
		tools = append(tools, &similaritySearch{graph: deps.Graph, items: deps.Items, min: minSim})
	}
	if deps.Episodes != nil && deps.Items != nil {
		tools = append(tools, &memoryRecall{episodes: deps.Episodes, encoder: deps.Items})
	}
	if deps.Root != "" {
		limit := deps.MaxFileBytes
		if limit <= 0 {
			limit = 64 << 10
		}
		tools = append(tools, &fileRead{graph: deps.Graph, root: deps.Root, maxBytes: limit})
	}
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// describe renders triples as "subject predicate object" lines.
func describe(g *kg.Graph, ts []kg.Triple) string {
	lines := make([]string, 0, len(ts))
	for _, t := range ts {
		lines = append(lines, fmt.Sprintf("%s %s %s", label(g, t.Subject), label(g, t.Predicate), label(g, t.Object)))
	}
	return strings.Join(lines, "; ")
}

func label(g *kg.Graph, id kg.SymbolID) string {
	if l, ok := g.Label(id); ok {
		return l
	}
	return fmt.Sprintf("#%d", id)
}

// symbolSet collects ids in insertion order without duplicates.
type symbolSet struct {
	seen map[kg.SymbolID]struct{}
	ids  []kg.SymbolID
}

func (s *symbolSet) add(ids ...kg.SymbolID) {
	if s.seen == nil {
		s.seen = make(map[kg.SymbolID]struct{})
	}
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := s.seen[id]; dup {
			continue
		}
		s.seen[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
}

// resolve accepts either a symbol id or a label under key.
func resolve(g *kg.Graph, in tool.Input, key string) (kg.SymbolID, error) {
	if id, ok := in.Symbol(key); ok {
		if _, known := g.Label(id); !known {
			return 0, fmt.Errorf("%w: %d", kg.ErrUnknownSymbol, id)
		}
		return id, nil
	}
	if l := strings.TrimSpace(in.String(key)); l != "" {
		if id, ok := g.Lookup(l); ok {
			return id, nil
		}
		return 0, fmt.Errorf("%w: %q", kg.ErrUnknownSymbol, l)
	}
	return 0, fmt.Errorf("%w: %s is required", tool.ErrInvalidInput, key)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
