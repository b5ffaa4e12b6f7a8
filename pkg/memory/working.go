package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/google/uuid"
)

// DefaultWorkingCapacity is used when a non-positive capacity is configured.
const DefaultWorkingCapacity = 256

// WorkingMemory is an in-process, capacity-bounded log of entries in creation
// order. It never evicts on its own; a full memory rejects pushes with
// ErrCapacity until entries are removed, typically by consolidation.
type WorkingMemory struct {
	mu       sync.RWMutex
	capacity int
	entries  []*Entry
	index    map[EntryID]*Entry
	now      func() time.Time
}

// NewWorkingMemory creates a working memory holding at most capacity entries.
func NewWorkingMemory(capacity int) *WorkingMemory {
	if capacity <= 0 {
		capacity = DefaultWorkingCapacity
	}
	return &WorkingMemory{
		capacity: capacity,
		entries:  make([]*Entry, 0, capacity),
		index:    make(map[EntryID]*Entry, capacity),
		now:      time.Now,
	}
}

// Push appends an entry and returns its id.
func (w *WorkingMemory) Push(kind Kind, content string, symbols []kg.SymbolID, cycle uint64) (EntryID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.entries) >= w.capacity {
		return "", fmt.Errorf("%w (%d entries)", ErrCapacity, w.capacity)
	}

	e := &Entry{
		ID:          EntryID(uuid.NewString()),
		Kind:        kind,
		Content:     content,
		Symbols:     cloneSymbols(symbols),
		SourceCycle: cycle,
		CreatedAt:   w.now(),
	}
	w.entries = append(w.entries, e)
	w.index[e.ID] = e
	return e.ID, nil
}

// Recent returns up to n of the newest entries, oldest first.
func (w *WorkingMemory) Recent(n int) []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	start := len(w.entries) - n
	if start < 0 {
		start = 0
	}
	return copyEntries(w.entries[start:])
}

// ByKind returns all entries of kind in creation order.
func (w *WorkingMemory) ByKind(kind Kind) []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []Entry
	for _, e := range w.entries {
		if e.Kind == kind {
			out = append(out, cloneEntry(e))
		}
	}
	return out
}

// All returns every entry in creation order.
func (w *WorkingMemory) All() []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return copyEntries(w.entries)
}

// Get returns the entry with id.
func (w *WorkingMemory) Get(id EntryID) (Entry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.index[id]
	if !ok {
		return Entry{}, false
	}
	return cloneEntry(e), true
}

// IncrementReference bumps the reference counter of an entry.
func (w *WorkingMemory) IncrementReference(id EntryID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.References++
	return nil
}

// Remove deletes the given entries and returns how many existed.
func (w *WorkingMemory) Remove(ids ...EntryID) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	drop := make(map[EntryID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := w.index[id]; ok {
			drop[id] = struct{}{}
			delete(w.index, id)
		}
	}
	if len(drop) == 0 {
		return 0
	}
	kept := w.entries[:0]
	for _, e := range w.entries {
		if _, gone := drop[e.ID]; !gone {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(w.entries); i++ {
		w.entries[i] = nil
	}
	w.entries = kept
	return len(drop)
}

// FillRatio reports len/capacity in [0,1].
func (w *WorkingMemory) FillRatio() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return float64(len(w.entries)) / float64(w.capacity)
}

// Len returns the number of entries.
func (w *WorkingMemory) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

// Capacity returns the configured bound.
func (w *WorkingMemory) Capacity() int {
	return w.capacity
}

func copyEntries(src []*Entry) []Entry {
	out := make([]Entry, len(src))
	for i, e := range src {
		out[i] = cloneEntry(e)
	}
	return out
}
