package kg

import "fmt"

// Snapshot is a serializable copy of a graph.
type Snapshot struct {
	Symbols []Symbol `json:"symbols"`
	Triples []Triple `json:"triples"`
}

// Snapshot captures the current graph contents.
func (g *Graph) Snapshot() Snapshot {
	return Snapshot{Symbols: g.Symbols(), Triples: g.Triples()}
}

// Restore replaces the graph contents with snap. Symbol IDs are preserved.
func (g *Graph) Restore(snap Snapshot) error {
	g.mu.Lock()
	g.next = 0
	g.labels = make(map[SymbolID]string, len(snap.Symbols))
	g.ids = make(map[string]SymbolID, len(snap.Symbols))
	g.out = make(map[SymbolID][]Triple)
	g.in = make(map[SymbolID][]Triple)
	g.edges = make(map[edgeKey]float64)
	g.triples = 0
	for _, s := range snap.Symbols {
		if s.ID == 0 || s.Label == "" {
			g.mu.Unlock()
			return fmt.Errorf("kg: invalid symbol in snapshot: %+v", s)
		}
		g.labels[s.ID] = s.Label
		g.ids[s.Label] = s.ID
		if s.ID > g.next {
			g.next = s.ID
		}
	}
	g.mu.Unlock()

	for _, t := range snap.Triples {
		if _, err := g.Assert(t); err != nil {
			return err
		}
	}
	return nil
}
