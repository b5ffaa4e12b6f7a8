// Package kg provides the in-process knowledge graph the agent reasons over:
// labelled symbols connected by weighted subject-predicate-object triples.
package kg

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Sentinel errors for the knowledge graph.
var (
	ErrUnknownSymbol = errors.New("kg: unknown symbol")
	ErrEmptyLabel    = errors.New("kg: empty label")
)

// SymbolID identifies a symbol. Zero is never assigned.
type SymbolID uint64

// Symbol is a labelled node of the graph.
type Symbol struct {
	ID    SymbolID `json:"id" yaml:"id"`
	Label string   `json:"label" yaml:"label"`
}

// Triple is a directed, weighted edge. Predicate is itself a symbol.
type Triple struct {
	Subject    SymbolID `json:"subject"`
	Predicate  SymbolID `json:"predicate"`
	Object     SymbolID `json:"object"`
	Confidence float64  `json:"confidence"`
}

type edgeKey struct {
	s, p, o SymbolID
}

// Graph is a thread-safe in-memory triple store indexed in both directions.
type Graph struct {
	mu      sync.RWMutex
	next    SymbolID
	labels  map[SymbolID]string
	ids     map[string]SymbolID
	out     map[SymbolID][]Triple
	in      map[SymbolID][]Triple
	edges   map[edgeKey]float64
	triples int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		labels: make(map[SymbolID]string),
		ids:    make(map[string]SymbolID),
		out:    make(map[SymbolID][]Triple),
		in:     make(map[SymbolID][]Triple),
		edges:  make(map[edgeKey]float64),
	}
}

// Intern returns the symbol for label, creating it if needed.
func (g *Graph) Intern(label string) (SymbolID, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, ErrEmptyLabel
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.ids[label]; ok {
		return id, nil
	}
	g.next++
	id := g.next
	g.ids[label] = id
	g.labels[id] = label
	return id, nil
}

// Lookup resolves a label to its symbol.
func (g *Graph) Lookup(label string) (SymbolID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.ids[strings.TrimSpace(label)]
	return id, ok
}

// Label resolves a symbol to its display label.
func (g *Graph) Label(id SymbolID) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.labels[id]
	return l, ok
}

// Assert adds a triple. Re-asserting an existing edge only updates its confidence
// and reports added=false. A zero confidence is stored as 1.
func (g *Graph) Assert(t Triple) (bool, error) {
	if t.Confidence <= 0 {
		t.Confidence = 1
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range []SymbolID{t.Subject, t.Predicate, t.Object} {
		if _, ok := g.labels[id]; !ok {
			return false, fmt.Errorf("%w: %d", ErrUnknownSymbol, id)
		}
	}

	key := edgeKey{t.Subject, t.Predicate, t.Object}
	if _, exists := g.edges[key]; exists {
		g.edges[key] = t.Confidence
		replaceConfidence(g.out[t.Subject], key, t.Confidence)
		replaceConfidence(g.in[t.Object], key, t.Confidence)
		return false, nil
	}

	g.edges[key] = t.Confidence
	g.out[t.Subject] = append(g.out[t.Subject], t)
	g.in[t.Object] = append(g.in[t.Object], t)
	g.triples++
	return true, nil
}

// AssertLabels interns the three labels and asserts the triple between them.
func (g *Graph) AssertLabels(subject, predicate, object string, confidence float64) (Triple, error) {
	s, err := g.Intern(subject)
	if err != nil {
		return Triple{}, err
	}
	p, err := g.Intern(predicate)
	if err != nil {
		return Triple{}, err
	}
	o, err := g.Intern(object)
	if err != nil {
		return Triple{}, err
	}
	t := Triple{Subject: s, Predicate: p, Object: o, Confidence: confidence}
	if _, err := g.Assert(t); err != nil {
		return Triple{}, err
	}
	if t.Confidence <= 0 {
		t.Confidence = 1
	}
	return t, nil
}

func replaceConfidence(ts []Triple, key edgeKey, c float64) {
	for i := range ts {
		if ts[i].Subject == key.s && ts[i].Predicate == key.p && ts[i].Object == key.o {
			ts[i].Confidence = c
		}
	}
}

// Confidence returns the confidence of the edge s-p-o, if it exists.
func (g *Graph) Confidence(s, p, o SymbolID) (float64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.edges[edgeKey{s, p, o}]
	return c, ok
}

// Outgoing returns triples whose subject is id.
func (g *Graph) Outgoing(id SymbolID) []Triple {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Triple(nil), g.out[id]...)
}

// Incoming returns triples whose object is id.
func (g *Graph) Incoming(id SymbolID) []Triple {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Triple(nil), g.in[id]...)
}

// Adjacent returns outgoing then incoming triples of id. Self loops appear once.
func (g *Graph) Adjacent(id SymbolID) []Triple {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Triple, 0, len(g.out[id])+len(g.in[id]))
	out = append(out, g.out[id]...)
	for _, t := range g.in[id] {
		if t.Subject == id {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Degree is the number of triples touching id in either direction.
func (g *Graph) Degree(id SymbolID) int {
	return len(g.Adjacent(id))
}

// Connected reports whether any triple links a and b in either direction.
func (g *Graph) Connected(a, b SymbolID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, t := range g.out[a] {
		if t.Object == b {
			return true
		}
	}
	for _, t := range g.in[a] {
		if t.Subject == b {
			return true
		}
	}
	return false
}

// Symbols returns every symbol ordered by ID.
func (g *Graph) Symbols() []Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Symbol, 0, len(g.labels))
	for id, l := range g.labels {
		out = append(out, Symbol{ID: id, Label: l})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Triples returns every triple ordered by subject, predicate, object.
func (g *Graph) Triples() []Triple {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Triple, 0, g.triples)
	for _, ts := range g.out {
		out = append(out, ts...)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		return a.Object < b.Object
	})
	return out
}

// Stats returns the symbol and triple counts.
func (g *Graph) Stats() (symbols, triples int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.labels), g.triples
}

// Namespaces for labels the agent creates for its own bookkeeping. Symbols in
// these namespaces are never treated as domain knowledge.
const (
	GoalNamespace  = "goal:"
	AgentNamespace = "agent:"
)

// Internal reports whether label belongs to an agent-internal namespace.
func Internal(label string) bool {
	return strings.HasPrefix(label, GoalNamespace) || strings.HasPrefix(label, AgentNamespace)
}
