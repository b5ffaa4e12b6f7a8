package agent

import (
	"fmt"
	"strings"

	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/tool"
	"github.com/goclaw/hyperagent/pkg/vsa"
)

// neutralSignal is the score of a signal that has nothing to compare.
const neutralSignal = 0.5

// ProgressEvaluator judges whether a tool output moved a goal forward. It
// compares the goal's success criteria to two bundles: the symbols the tool
// produced, and what the graph already says about the goal.
type ProgressEvaluator struct {
	graph   Graph
	vectors Vectors
	th      *thresholdStore
}

// NewProgressEvaluator creates an evaluator with fixed thresholds.
func NewProgressEvaluator(graph Graph, vectors Vectors, th Thresholds) *ProgressEvaluator {
	return newProgressEvaluator(graph, vectors, newThresholdStore(th))
}

func newProgressEvaluator(graph Graph, vectors Vectors, th *thresholdStore) *ProgressEvaluator {
	return &ProgressEvaluator{graph: graph, vectors: vectors, th: th}
}

// Signals is the pair of similarities the evaluator decides on.
type Signals struct {
	Output float64 `json:"output"`
	Graph  float64 `json:"graph"`
}

// Evaluate classifies out against g. It does not mutate anything.
func (e *ProgressEvaluator) Evaluate(g goal.Goal, out tool.Output) GoalProgress {
	if !out.Success {
		return Failed{Reason: out.Text}
	}
	criteria := strings.TrimSpace(g.SuccessCriteria)
	if criteria == "" {
		return symbolsProgress(out)
	}
	th := e.th.load()
	target, err := e.vectors.Encode(criteria)
	if err != nil {
		return e.keywordProgress(criteria, out, th)
	}

	s := e.signals(g, out, target)
	switch {
	case s.Output >= th.CompleteBoth && s.Graph >= th.CompleteBoth:
		return Completed{}
	case s.Output >= th.CompleteEither || s.Graph >= th.CompleteEither:
		return Completed{}
	case max(s.Output, s.Graph) >= th.AdvanceThreshold:
		return Advanced{Detail: fmt.Sprintf("criteria similarity output=%.3f graph=%.3f", s.Output, s.Graph)}
	}
	return symbolsProgress(out)
}

func (e *ProgressEvaluator) signals(g goal.Goal, out tool.Output, target vsa.Vector) Signals {
	var produced []vsa.Vector
	for _, id := range out.Symbols {
		if id != g.ID {
			produced = append(produced, e.vectors.Vector(id))
		}
	}
	var known []vsa.Vector
	for _, t := range e.graph.Adjacent(g.ID) {
		known = append(known, e.vectors.Vector(t.Predicate), e.vectors.Vector(t.Object))
	}
	return Signals{
		Output: e.bundleSimilarity(produced, target),
		Graph:  e.bundleSimilarity(known, target),
	}
}

func (e *ProgressEvaluator) bundleSimilarity(vs []vsa.Vector, target vsa.Vector) float64 {
	if len(vs) == 0 {
		return neutralSignal
	}
	b, err := e.vectors.Bundle(vs...)
	if err != nil {
		return neutralSignal
	}
	return e.vectors.Similarity(b, target)
}

// keywordProgress is used when the criteria cannot be encoded.
func (e *ProgressEvaluator) keywordProgress(criteria string, out tool.Output, th Thresholds) GoalProgress {
	words := keywords(criteria)
	if len(words) == 0 {
		return symbolsProgress(out)
	}
	haystack := []string{strings.ToLower(out.Text)}
	for _, id := range out.Symbols {
		if l, ok := e.graph.Label(id); ok && !kg.Internal(l) {
			haystack = append(haystack, strings.ToLower(l))
		}
	}
	matched := 0
	for _, w := range words {
		for _, h := range haystack {
			if strings.Contains(h, w) {
				matched++
				break
			}
		}
	}
	ratio := float64(matched) / float64(len(words))
	switch {
	case ratio >= th.KeywordCompleteRatio:
		return Completed{}
	case matched > 0:
		return Advanced{Detail: fmt.Sprintf("matched %d/%d criteria keywords", matched, len(words))}
	}
	return symbolsProgress(out)
}

func symbolsProgress(out tool.Output) GoalProgress {
	if len(out.Symbols) > 0 {
		return Advanced{Detail: fmt.Sprintf("%d symbols produced", len(out.Symbols))}
	}
	return NoChange{}
}
