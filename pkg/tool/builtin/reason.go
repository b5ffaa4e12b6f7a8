package builtin

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/tool"
)

var clausePattern = regexp.MustCompile(`\(([a-z0-9_]+) ([a-z0-9_]+) ([a-z0-9_]+)\)`)

// clause is one (predicate subject object) atom of an expression.
type clause struct {
	pred, subj, obj string
}

// parseExpression reads "(and (p s o) ...)" or a single "(p s o)".
func parseExpression(expr string) ([]clause, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "(and ") {
		expr = strings.TrimSuffix(strings.TrimPrefix(expr, "(and "), ")")
	}
	matches := clausePattern.FindAllStringSubmatch(expr, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no clauses in expression", tool.ErrInvalidInput)
	}
	out := make([]clause, len(matches))
	for i, m := range matches {
		out[i] = clause{pred: m[1], subj: m[2], obj: m[3]}
	}
	return out, nil
}

type reasoner struct {
	graph *kg.Graph
}

func (r *reasoner) Signature() tool.Signature {
	return tool.Signature{
		Name:        tool.Reason,
		Description: "verify a conjunction of facts and derive new ones by chaining relations",
		Params: map[string]string{
			tool.ParamExpression: "fact or (and ...) conjunction of facts such as (is_a dog mammal)",
		},
	}
}

// Execute verifies each clause against the graph, then chains every verified
// (p s o) with (p o x) to derive (p s x). Derived facts are asserted with
// the product of the two confidences.
func (r *reasoner) Execute(ctx context.Context, in tool.Input) (tool.Output, error) {
	clauses, err := parseExpression(in.String(tool.ParamExpression))
	if err != nil {
		return tool.Output{}, err
	}

	atoms := make(map[string]kg.SymbolID)
	for _, s := range r.graph.Symbols() {
		atom := tool.Sanitize(s.Label)
		if _, taken := atoms[atom]; !taken {
			atoms[atom] = s.ID
		}
	}

	var (
		syms     symbolSet
		verified int
		derived  []string
	)
	for _, c := range clauses {
		p, okP := atoms[c.pred]
		s, okS := atoms[c.subj]
		o, okO := atoms[c.obj]
		if !okP || !okS || !okO {
			continue
		}
		conf, holds := r.graph.Confidence(s, p, o)
		if !holds {
			continue
		}
		verified++
		syms.add(s, o)

		for _, next := range r.graph.Outgoing(o) {
			if next.Predicate != p || next.Object == s || next.Object == o {
				continue
			}
			if _, known := r.graph.Confidence(s, p, next.Object); known {
				continue
			}
			added, err := r.graph.Assert(kg.Triple{Subject: s, Predicate: p, Object: next.Object, Confidence: conf * next.Confidence})
			if err != nil {
				return tool.Output{}, err
			}
			if added {
				syms.add(next.Object)
				derived = append(derived, fmt.Sprintf("%s %s %s", label(r.graph, s), label(r.graph, p), label(r.graph, next.Object)))
			}
		}
	}

	text := fmt.Sprintf("verified %d/%d clauses", verified, len(clauses))
	if len(derived) > 0 {
		text += "; derived: " + strings.Join(derived, "; ")
	}
	return tool.Output{
		Symbols: syms.ids,
		Text:    text,
		Success: verified > 0,
	}, nil
}
