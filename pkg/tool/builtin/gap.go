package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/tool"
	"github.com/goclaw/hyperagent/pkg/vsa"
)

type gapAnalysis struct {
	graph *kg.Graph
}

func (g *gapAnalysis) Signature() tool.Signature {
	return tool.Signature{
		Name:        tool.GapAnalysis,
		Description: "find which concepts of a goal are missing or poorly connected in the knowledge graph",
		Params: map[string]string{
			tool.ParamQuery: "goal text to analyse",
		},
	}
}

// Execute splits the query into concepts and classifies each as missing,
// sparse (at most one fact) or known. Known and sparse symbols are output.
func (g *gapAnalysis) Execute(ctx context.Context, in tool.Input) (tool.Output, error) {
	query := strings.TrimSpace(in.String(tool.ParamQuery))
	if query == "" {
		return tool.Output{}, fmt.Errorf("%w: query is required", tool.ErrInvalidInput)
	}
	tokens := vsa.Tokenize(query)
	if len(tokens) == 0 {
		return tool.Output{}, fmt.Errorf("%w: query has no concepts", tool.ErrInvalidInput)
	}

	index := conceptIndex(g.graph)
	var (
		syms    symbolSet
		missing = make(map[string]struct{})
		sparse  = make(map[string]struct{})
	)
	for _, tok := range tokens {
		id, ok := index[tok]
		if !ok {
			missing[tok] = struct{}{}
			continue
		}
		syms.add(id)
		if g.graph.Degree(id) <= 1 {
			sparse[tok] = struct{}{}
		}
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(sortedKeys(missing), ", "))
	}
	if len(sparse) > 0 {
		parts = append(parts, "sparse: "+strings.Join(sortedKeys(sparse), ", "))
	}
	if len(parts) == 0 {
		parts = append(parts, "no gaps")
	}
	return tool.Output{
		Symbols: syms.ids,
		Text:    strings.Join(parts, "; "),
		Success: true,
	}, nil
}

// conceptIndex maps the normalized form of every single-word domain label to
// its symbol. The lowest id wins on collisions.
func conceptIndex(g *kg.Graph) map[string]kg.SymbolID {
	index := make(map[string]kg.SymbolID)
	for _, s := range g.Symbols() {
		if kg.Internal(s.Label) {
			continue
		}
		toks := vsa.Tokenize(s.Label)
		if len(toks) != 1 {
			continue
		}
		if _, taken := index[toks[0]]; !taken {
			index[toks[0]] = s.ID
		}
	}
	return index
}
