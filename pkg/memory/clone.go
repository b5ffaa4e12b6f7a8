package memory

import "github.com/goclaw/hyperagent/pkg/kg"

func cloneEntry(e *Entry) Entry {
	c := *e
	c.Symbols = cloneSymbols(e.Symbols)
	return c
}

func cloneEpisode(ep *Episode) *Episode {
	if ep == nil {
		return nil
	}
	c := *ep
	c.Symbols = cloneSymbols(ep.Symbols)
	c.Vector = ep.Vector.Clone()
	return &c
}

func cloneSymbols(ids []kg.SymbolID) []kg.SymbolID {
	if ids == nil {
		return nil
	}
	return append([]kg.SymbolID(nil), ids...)
}
