package agent

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/tool"
	"github.com/goclaw/hyperagent/pkg/vsa"
)

// builtinTool is the closed set of tools scored by symbolic heuristics.
type builtinTool int

const (
	builtinQuery builtinTool = iota
	builtinMutate
	builtinRecall
	builtinReason
	builtinSimilarity
)

var builtinTools = []builtinTool{builtinQuery, builtinMutate, builtinRecall, builtinReason, builtinSimilarity}

func (b builtinTool) name() string {
	switch b {
	case builtinQuery:
		return tool.KGQuery
	case builtinMutate:
		return tool.KGMutate
	case builtinRecall:
		return tool.MemoryRecall
	case builtinReason:
		return tool.Reason
	case builtinSimilarity:
		return tool.SimilaritySearch
	}
	return ""
}

const (
	relatedPredicate = "related_to"
	maxReasonClauses = 5
	minKeywordLength = 4
)

// generation holds everything one candidate-generation pass reads.
type generation struct {
	goal     goal.Goal
	obs      *Observation
	orient   *Orientation
	history  GoalHistory
	th       Thresholds
	relevant []kg.Triple
	// registered maps registry tool names to their descriptions.
	registered map[string]string
	vetoer     tool.Vetoer
}

// keywords returns the lowercased words of text with at least
// minKeywordLength letters or digits.
func keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minKeywordLength {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func (a *Agent) label(id kg.SymbolID) string {
	l, _ := a.deps.Graph.Label(id)
	return l
}

// relevantTriples keeps the orientation triples that touch the goal or
// mention one of its keywords.
func (a *Agent) relevantTriples(g goal.Goal, triples []kg.Triple) []kg.Triple {
	words := keywords(g.Description)
	mentions := func(id kg.SymbolID) bool {
		l := strings.ToLower(a.label(id))
		for _, w := range words {
			if strings.Contains(l, w) {
				return true
			}
		}
		return false
	}
	var out []kg.Triple
	for _, t := range triples {
		if t.Subject == g.ID || t.Object == g.ID || mentions(t.Subject) || mentions(t.Object) {
			out = append(out, t)
		}
	}
	return out
}

// generateCandidates scores every applicable tool for g. Built-ins come
// first, then the semantic profiles, then any remaining registry tool.
func (a *Agent) generateCandidates(g goal.Goal, obs *Observation, orient *Orientation, history GoalHistory, th Thresholds) []ToolCandidate {
	gen := &generation{
		goal:       g,
		obs:        obs,
		orient:     orient,
		history:    history,
		th:         th,
		relevant:   a.relevantTriples(g, orient.Triples),
		registered: make(map[string]string),
	}
	for _, sig := range a.deps.Tools.Signatures() {
		gen.registered[sig.Name] = sig.Description
	}
	gen.vetoer, _ = a.deps.Tools.(tool.Vetoer)

	scored := make(map[string]struct{})
	var cands []ToolCandidate
	add := func(c *ToolCandidate) {
		if c != nil && !gen.vetoed(c.Tool) {
			cands = append(cands, *c)
		}
	}

	for _, b := range builtinTools {
		name := b.name()
		scored[name] = struct{}{}
		if _, ok := gen.registered[name]; !ok && b != builtinQuery {
			continue
		}
		add(a.builtinCandidate(b, gen))
	}

	goalVec, err := a.deps.Vectors.Encode(strings.TrimSpace(g.Description + " " + g.SuccessCriteria))
	if err != nil {
		a.logger.Debug("goal text not encodable, skipping semantic candidates", "goal", g.ID, "error", err)
		return cands
	}

	for _, p := range semanticProfiles {
		if _, ok := gen.registered[p.Tool]; !ok {
			continue
		}
		scored[p.Tool] = struct{}{}
		add(a.profileCandidate(p, goalVec, gen))
	}

	for _, sig := range a.deps.Tools.Signatures() {
		if _, done := scored[sig.Name]; done {
			continue
		}
		scored[sig.Name] = struct{}{}
		add(a.genericCandidate(sig, goalVec, gen))
	}
	return cands
}

func (gen *generation) vetoed(name string) bool {
	return gen.vetoer != nil && gen.vetoer.Veto(name, gen.goal.ID)
}

func (a *Agent) builtinCandidate(b builtinTool, gen *generation) *ToolCandidate {
	switch b {
	case builtinQuery:
		return a.queryCandidate(gen)
	case builtinMutate:
		return a.mutateCandidate(gen)
	case builtinRecall:
		return a.recallCandidate(gen)
	case builtinReason:
		return a.reasonCandidate(gen)
	case builtinSimilarity:
		return a.similarityCandidate(gen)
	}
	return nil
}

func (a *Agent) queryCandidate(gen *generation) *ToolCandidate {
	n := len(gen.relevant)
	base := 0.85
	if n > 0 {
		base = math.Max(0.4, 0.7-0.05*float64(min(n, 6)))
	}
	target, label, unexplored := a.unexploredTarget(gen)
	reason := fmt.Sprintf("baseline query of %q, %d relevant triples", label, n)
	if unexplored {
		reason = fmt.Sprintf("explore %q (degree %d), %d relevant triples", label, a.deps.Graph.Degree(target), n)
	}
	return &ToolCandidate{
		Tool:      tool.KGQuery,
		Input:     tool.Input{tool.ParamTarget: target},
		BaseScore: base,
		Reasoning: reason,
	}
}

// unexploredTarget picks the lowest-degree symbol near the goal that has not
// been queried yet, falling back to the goal itself.
func (a *Agent) unexploredTarget(gen *generation) (kg.SymbolID, string, bool) {
	var pool []kg.SymbolID
	for _, act := range gen.orient.Activations {
		pool = append(pool, act.Symbol)
	}
	for _, t := range gen.relevant {
		pool = append(pool, t.Subject, t.Object)
	}

	var (
		best      kg.SymbolID
		bestLabel string
		bestDeg   = math.MaxInt
	)
	seen := make(map[kg.SymbolID]struct{}, len(pool))
	for _, id := range pool {
		if id == gen.goal.ID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		l, ok := a.deps.Graph.Label(id)
		if !ok || kg.Internal(l) || gen.history.Queried(l) {
			continue
		}
		deg := a.deps.Graph.Degree(id)
		if deg > gen.th.UnexploredDegree {
			continue
		}
		if deg < bestDeg {
			best, bestLabel, bestDeg = id, l, deg
		}
	}
	if best == 0 {
		return gen.goal.ID, a.label(gen.goal.ID), false
	}
	return best, bestLabel, true
}

func (a *Agent) mutateCandidate(gen *generation) *ToolCandidate {
	if len(gen.relevant) == 0 || len(gen.orient.Activations) == 0 {
		return nil
	}
	for _, act := range gen.orient.Activations {
		if act.Symbol == gen.goal.ID {
			continue
		}
		l, ok := a.deps.Graph.Label(act.Symbol)
		if !ok || kg.Internal(l) || a.deps.Graph.Connected(gen.goal.ID, act.Symbol) {
			continue
		}
		return &ToolCandidate{
			Tool: tool.KGMutate,
			Input: tool.Input{
				tool.ParamSubject:   gen.goal.ID,
				tool.ParamPredicate: relatedPredicate,
				tool.ParamObject:    act.Symbol,
			},
			BaseScore: math.Min(0.8, 0.5+0.3*act.Weight),
			Reasoning: fmt.Sprintf("link goal to activated %q (weight %.3f)", l, act.Weight),
		}
	}
	return nil
}

func (a *Agent) recallCandidate(gen *generation) *ToolCandidate {
	k := len(gen.obs.Episodes)
	if k == 0 {
		return nil
	}
	return &ToolCandidate{
		Tool: tool.MemoryRecall,
		Input: tool.Input{
			tool.ParamQuery: strings.TrimSpace(gen.goal.Description + " " + gen.goal.SuccessCriteria),
			tool.ParamK:     gen.th.RecallK,
		},
		BaseScore: 0.45 + 0.1*float64(min(k, 3)),
		Reasoning: fmt.Sprintf("%d related episodes recalled", k),
	}
}

func (a *Agent) reasonCandidate(gen *generation) *ToolCandidate {
	n := len(gen.relevant)
	if n == 0 {
		return nil
	}
	clauses := make([]string, 0, min(n, maxReasonClauses))
	for _, t := range gen.relevant[:min(n, maxReasonClauses)] {
		clauses = append(clauses, fmt.Sprintf("(%s %s %s)",
			tool.Sanitize(a.label(t.Predicate)),
			tool.Sanitize(a.label(t.Subject)),
			tool.Sanitize(a.label(t.Object))))
	}
	return &ToolCandidate{
		Tool:      tool.Reason,
		Input:     tool.Input{tool.ParamExpression: "(and " + strings.Join(clauses, " ") + ")"},
		BaseScore: 0.55 + 0.05*float64(min(n, maxReasonClauses)),
		Reasoning: fmt.Sprintf("infer over %d relevant triples", n),
	}
}

func (a *Agent) similarityCandidate(gen *generation) *ToolCandidate {
	if len(gen.orient.Activations) == 0 {
		return nil
	}
	top := gen.orient.Activations[0]
	return &ToolCandidate{
		Tool:      tool.SimilaritySearch,
		Input:     tool.Input{tool.ParamTarget: top.Symbol},
		BaseScore: 0.4 + 0.3*top.Weight,
		Reasoning: fmt.Sprintf("neighbours of %q (weight %.3f)", a.label(top.Symbol), top.Weight),
	}
}

func (a *Agent) profileCandidate(p semanticProfile, goalVec vsa.Vector, gen *generation) *ToolCandidate {
	vecs := make([]vsa.Vector, 0, len(p.Concepts))
	for _, c := range p.Concepts {
		v, err := a.deps.Vectors.Encode(c)
		if err != nil {
			continue
		}
		vecs = append(vecs, v)
	}
	if len(vecs) == 0 {
		return nil
	}
	concepts, err := a.deps.Vectors.Bundle(vecs...)
	if err != nil {
		return nil
	}
	sim := a.deps.Vectors.Similarity(goalVec, concepts)
	floor := p.floor(gen.th)
	if sim < floor {
		return nil
	}
	return &ToolCandidate{
		Tool: p.Tool,
		Input: tool.Input{
			tool.ParamGoal:  gen.goal.ID,
			tool.ParamQuery: gen.goal.Description,
		},
		BaseScore: p.base(sim),
		Reasoning: fmt.Sprintf("goal matches %s concepts (sim=%.3f, floor %.2f)", p.Tool, sim, floor),
	}
}

func (a *Agent) genericCandidate(sig tool.Signature, goalVec vsa.Vector, gen *generation) *ToolCandidate {
	var (
		toolVec vsa.Vector
		source  = "description"
	)
	if id, ok := a.deps.Graph.Lookup(sig.Name); ok {
		toolVec = a.groundedVector(id)
		source = "graph"
	} else {
		v, err := a.deps.Vectors.Encode(sig.Name + " " + sig.Description)
		if err != nil {
			return nil
		}
		toolVec = v
	}
	sim := a.deps.Vectors.Similarity(goalVec, toolVec)
	if sim < gen.th.SemanticFloor {
		return nil
	}
	return &ToolCandidate{
		Tool: sig.Name,
		Input: tool.Input{
			tool.ParamGoal:  gen.goal.ID,
			tool.ParamQuery: gen.goal.Description,
		},
		BaseScore: sim * gen.th.GenericMultiplier,
		Reasoning: fmt.Sprintf("goal matches %s by %s (sim=%.3f)", sig.Name, source, sim),
	}
}

// groundedVector bundles a symbol's own vector with the predicate and object
// vectors of its adjacent triples.
func (a *Agent) groundedVector(id kg.SymbolID) vsa.Vector {
	own := a.deps.Vectors.Vector(id)
	adj := a.deps.Graph.Adjacent(id)
	if len(adj) == 0 {
		return own
	}
	vecs := make([]vsa.Vector, 0, 1+2*len(adj))
	vecs = append(vecs, own)
	for _, t := range adj {
		vecs = append(vecs, a.deps.Vectors.Vector(t.Predicate), a.deps.Vectors.Vector(t.Object))
	}
	v, err := a.deps.Vectors.Bundle(vecs...)
	if err != nil {
		return own
	}
	return v
}
