package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/tool"
	"github.com/goclaw/hyperagent/pkg/vsa"
)

// scriptedVectors hands out opaque named vectors and answers Similarity from
// a script. Unscripted pairs score the random baseline of 0.5.
type scriptedVectors struct {
	mu          sync.Mutex
	names       map[uint64]string
	tags        map[string]uint64
	sims        map[string]float64
	unencodable map[string]bool
}

func newScriptedVectors() *scriptedVectors {
	return &scriptedVectors{
		names:       make(map[uint64]string),
		tags:        make(map[string]uint64),
		sims:        make(map[string]float64),
		unencodable: make(map[string]bool),
	}
}

func (s *scriptedVectors) named(name string) vsa.Vector {
	s.mu.Lock()
	defer s.mu.Unlock()
	tag, ok := s.tags[name]
	if !ok {
		tag = uint64(len(s.tags) + 1)
		s.tags[name] = tag
		s.names[tag] = name
	}
	return vsa.Vector{Dim: 64, Bits: []uint64{tag}}
}

func (s *scriptedVectors) nameOf(v vsa.Vector) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(v.Bits) == 0 {
		return ""
	}
	return s.names[v.Bits[0]]
}

// script sets the similarity between two vector names.
func (s *scriptedVectors) script(a, b string, sim float64) {
	s.sims[a+"|"+b] = sim
	s.sims[b+"|"+a] = sim
}

func textName(text string) string       { return "text:" + text }
func symName(id kg.SymbolID) string     { return fmt.Sprintf("sym:%d", id) }
func bundleName(names ...string) string { return "bundle(" + strings.Join(names, "+") + ")" }

func (s *scriptedVectors) Encode(text string) (vsa.Vector, error) {
	if strings.TrimSpace(text) == "" || s.unencodable[text] {
		return vsa.Vector{}, vsa.ErrEmptyText
	}
	return s.named(textName(text)), nil
}

func (s *scriptedVectors) Bundle(vs ...vsa.Vector) (vsa.Vector, error) {
	if len(vs) == 0 {
		return vsa.Vector{}, vsa.ErrNoVectors
	}
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = s.nameOf(v)
	}
	return s.named(bundleName(names...)), nil
}

func (s *scriptedVectors) Similarity(a, b vsa.Vector) float64 {
	if sim, ok := s.sims[s.nameOf(a)+"|"+s.nameOf(b)]; ok {
		return sim
	}
	return 0.5
}

func (s *scriptedVectors) Vector(id kg.SymbolID) vsa.Vector {
	return s.named(symName(id))
}

// stubTools is a Tools with optional hooks.
type stubTools struct {
	sigs    []tool.Signature
	outputs map[string]tool.Output
	errs    map[string]error
	calls   []string
}

func (s *stubTools) Signatures() []tool.Signature { return s.sigs }

func (s *stubTools) Execute(ctx context.Context, name string, in tool.Input) (tool.Output, error) {
	s.calls = append(s.calls, name)
	if err := s.errs[name]; err != nil {
		return tool.Output{}, &tool.ExecutionError{Tool: name, Cause: err}
	}
	return s.outputs[name], nil
}

type biasedTools struct {
	*stubTools
	biases map[string]float64
	vetoed map[string]bool
}

func (b *biasedTools) ArchetypeBias(name string, _ kg.SymbolID) float64 { return b.biases[name] }
func (b *biasedTools) Veto(name string, _ kg.SymbolID) bool             { return b.vetoed[name] }

type recordingProvenance struct {
	records []Provenance
	err     error
}

func (r *recordingProvenance) RecordDecision(ctx context.Context, p Provenance) error {
	r.records = append(r.records, p)
	return r.err
}

// recordingEpisodes remembers the text of every recall.
type recordingEpisodes struct {
	texts []string
}

func (e *recordingEpisodes) Recall(_ context.Context, text string, _ vsa.Vector, _ int) ([]memory.Episode, error) {
	e.texts = append(e.texts, text)
	return nil, nil
}

type recordingObserver struct {
	results []*CycleResult
	errs    []error
}

func (o *recordingObserver) ObserveCycle(_ context.Context, res *CycleResult) {
	o.results = append(o.results, res)
}
func (o *recordingObserver) ObserveCycleError(err error) { o.errs = append(o.errs, err) }

// fixture wires an Agent over real graph, memory and goal collaborators.
type fixture struct {
	graph   *kg.Graph
	vectors *scriptedVectors
	wm      *memory.WorkingMemory
	goals   *goal.Manager
	tools   Tools
	agent   *Agent
}

func newFixture(t *testing.T, tools Tools, opts ...Option) *fixture {
	t.Helper()
	g := kg.New()
	f := &fixture{
		graph:   g,
		vectors: newScriptedVectors(),
		wm:      memory.NewWorkingMemory(64),
		goals:   goal.NewManager(g, nil, nil),
		tools:   tools,
	}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time {
		clock = clock.Add(10 * time.Millisecond)
		return clock
	})}, opts...)
	a, err := New(Deps{
		Graph:   g,
		Vectors: f.vectors,
		Working: f.wm,
		Goals:   f.goals,
		Tools:   tools,
	}, opts...)
	require.NoError(t, err)
	f.agent = a
	return f
}

func (f *fixture) goal(t *testing.T, desc, criteria string, priority uint8) kg.SymbolID {
	t.Helper()
	g, err := f.goals.Create(context.Background(), goal.Spec{Description: desc, SuccessCriteria: criteria, Priority: priority})
	require.NoError(t, err)
	return g.ID
}

func (f *fixture) assert(t *testing.T, s, p, o string) kg.Triple {
	t.Helper()
	tr, err := f.graph.AssertLabels(s, p, o, 1)
	require.NoError(t, err)
	return tr
}

func (f *fixture) id(t *testing.T, label string) kg.SymbolID {
	t.Helper()
	id, ok := f.graph.Lookup(label)
	require.True(t, ok, "symbol %q", label)
	return id
}

func sigs(names ...string) []tool.Signature {
	out := make([]tool.Signature, len(names))
	for i, n := range names {
		out[i] = tool.Signature{Name: n, Description: n + " tool"}
	}
	return out
}
