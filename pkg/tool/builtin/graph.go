package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/tool"
	"github.com/goclaw/hyperagent/pkg/vsa"
)

const maxQueryTriples = 20

type kgQuery struct {
	graph *kg.Graph
}

func (q *kgQuery) Signature() tool.Signature {
	return tool.Signature{
		Name:        tool.KGQuery,
		Description: "look up the facts adjacent to a symbol in the knowledge graph",
		Params: map[string]string{
			tool.ParamTarget: "symbol id or label to look up",
		},
	}
}

// Execute returns the target's adjacent triples. The other endpoint of each
// triple is reported as an output symbol.
func (q *kgQuery) Execute(ctx context.Context, in tool.Input) (tool.Output, error) {
	target, err := resolve(q.graph, in, tool.ParamTarget)
	if err != nil {
		return tool.Output{}, err
	}
	triples := q.graph.Adjacent(target)
	if len(triples) == 0 {
		return tool.Output{
			Text:    fmt.Sprintf("no facts about %s", label(q.graph, target)),
			Success: true,
		}, nil
	}
	if len(triples) > maxQueryTriples {
		triples = triples[:maxQueryTriples]
	}

	var syms symbolSet
	for _, t := range triples {
		if t.Subject != target {
			syms.add(t.Subject)
		}
		if t.Object != target {
			syms.add(t.Object)
		}
	}
	return tool.Output{
		Symbols: syms.ids,
		Text:    describe(q.graph, triples),
		Success: true,
	}, nil
}

type kgMutate struct {
	graph *kg.Graph
}

func (m *kgMutate) Signature() tool.Signature {
	return tool.Signature{
		Name:        tool.KGMutate,
		Description: "assert a new relation between two symbols in the knowledge graph",
		Params: map[string]string{
			tool.ParamSubject:    "subject symbol id or label",
			tool.ParamPredicate:  "relation label",
			tool.ParamObject:     "object symbol id or label",
			tool.ParamConfidence: "confidence in [0,1], default 0.6",
		},
	}
}

func (m *kgMutate) Execute(ctx context.Context, in tool.Input) (tool.Output, error) {
	subject, err := resolve(m.graph, in, tool.ParamSubject)
	if err != nil {
		return tool.Output{}, err
	}
	object, err := resolve(m.graph, in, tool.ParamObject)
	if err != nil {
		return tool.Output{}, err
	}
	predLabel := strings.TrimSpace(in.String(tool.ParamPredicate))
	if predLabel == "" {
		return tool.Output{}, fmt.Errorf("%w: predicate is required", tool.ErrInvalidInput)
	}
	pred, err := m.graph.Intern(predLabel)
	if err != nil {
		return tool.Output{}, err
	}

	conf := in.Float(tool.ParamConfidence, 0.6)
	added, err := m.graph.Assert(kg.Triple{Subject: subject, Predicate: pred, Object: object, Confidence: conf})
	if err != nil {
		return tool.Output{}, err
	}
	verb := "asserted"
	if !added {
		verb = "reinforced"
	}
	return tool.Output{
		Symbols: []kg.SymbolID{object},
		Text:    fmt.Sprintf("%s %s %s %s", verb, label(m.graph, subject), predLabel, label(m.graph, object)),
		Success: true,
	}, nil
}

type similaritySearch struct {
	graph *kg.Graph
	items *vsa.ItemMemory
	min   float64
}

func (s *similaritySearch) Signature() tool.Signature {
	return tool.Signature{
		Name:        tool.SimilaritySearch,
		Description: "find symbols whose meaning is similar to a seed symbol or query text",
		Params: map[string]string{
			tool.ParamTarget: "seed symbol id or label",
			tool.ParamQuery:  "query text used when no target resolves",
			tool.ParamK:      "number of results, default 5",
		},
	}
}

// Execute ranks non-internal symbols by similarity to the seed symbol's
// vector, or to the encoded query when no target is given.
func (s *similaritySearch) Execute(ctx context.Context, in tool.Input) (tool.Output, error) {
	k := in.Int(tool.ParamK, 5)

	var (
		probe vsa.Vector
		seed  kg.SymbolID
	)
	if id, err := resolve(s.graph, in, tool.ParamTarget); err == nil {
		seed = id
		probe = s.items.Vector(id)
	} else if q := in.String(tool.ParamQuery); q != "" {
		v, encErr := s.items.Encode(q)
		if encErr != nil {
			return tool.Output{}, fmt.Errorf("%w: %v", tool.ErrInvalidInput, encErr)
		}
		probe = v
	} else {
		return tool.Output{}, err
	}

	type hit struct {
		id  kg.SymbolID
		sim float64
	}
	var hits []hit
	for _, sym := range s.graph.Symbols() {
		if sym.ID == seed || kg.Internal(sym.Label) {
			continue
		}
		if sim := vsa.Similarity(probe, s.items.Vector(sym.ID)); sim >= s.min {
			hits = append(hits, hit{sym.ID, sim})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].sim > hits[j].sim })
	if len(hits) > k {
		hits = hits[:k]
	}
	if len(hits) == 0 {
		return tool.Output{Text: "no similar symbols", Success: true}, nil
	}

	ids := make([]kg.SymbolID, len(hits))
	parts := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
		parts[i] = fmt.Sprintf("%s (%.2f)", label(s.graph, h.id), h.sim)
	}
	return tool.Output{
		Symbols: ids,
		Text:    "similar: " + strings.Join(parts, ", "),
		Success: true,
	}, nil
}
