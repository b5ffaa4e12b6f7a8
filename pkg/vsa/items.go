package vsa

import (
	"fmt"
	"sync"

	"github.com/goclaw/hyperagent/pkg/kg"
)

// LabelResolver resolves a symbol to its display label.
type LabelResolver interface {
	Label(id kg.SymbolID) (string, bool)
}

// ItemMemory maps graph symbols to hypervectors. A symbol's vector is created
// lazily on first use by encoding its label, so symbols whose labels share
// words are similar. Symbols without a label get a random vector.
type ItemMemory struct {
	*Space

	labels LabelResolver
	mu     sync.RWMutex
	items  map[kg.SymbolID]Vector
}

// NewItemMemory creates an item memory over space. labels may be nil.
func NewItemMemory(space *Space, labels LabelResolver) *ItemMemory {
	return &ItemMemory{
		Space:  space,
		labels: labels,
		items:  make(map[kg.SymbolID]Vector),
	}
}

// Vector fetches or lazily creates the vector for id.
func (m *ItemMemory) Vector(id kg.SymbolID) Vector {
	m.mu.RLock()
	v, ok := m.items[id]
	m.mu.RUnlock()
	if ok {
		return v
	}

	v = m.create(id)
	m.mu.Lock()
	if existing, ok := m.items[id]; ok {
		v = existing
	} else {
		m.items[id] = v
	}
	m.mu.Unlock()
	return v
}

// Put overrides the vector stored for id.
func (m *ItemMemory) Put(id kg.SymbolID, v Vector) error {
	if v.Dim != m.Dimension() {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, m.Dimension(), v.Dim)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = v
	return nil
}

// Len returns the number of materialised symbol vectors.
func (m *ItemMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *ItemMemory) create(id kg.SymbolID) Vector {
	if m.labels != nil {
		if label, ok := m.labels.Label(id); ok {
			if v, err := m.Encode(label); err == nil {
				return v
			}
		}
	}
	return m.Random(fmt.Sprintf("sym:%d", id))
}
