package agent

import (
	"context"

	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/tool"
	"github.com/goclaw/hyperagent/pkg/vsa"
)

// Graph is the knowledge graph the agent reads.
type Graph interface {
	Adjacent(id kg.SymbolID) []kg.Triple
	Label(id kg.SymbolID) (string, bool)
	Lookup(label string) (kg.SymbolID, bool)
	Degree(id kg.SymbolID) int
	Connected(a, b kg.SymbolID) bool
	Spread(seeds []kg.SymbolID, opts kg.SpreadOptions) []kg.Activation
}

// Vectors encodes text and symbols as hypervectors.
type Vectors interface {
	Encode(text string) (vsa.Vector, error)
	Bundle(vs ...vsa.Vector) (vsa.Vector, error)
	Similarity(a, b vsa.Vector) float64
	// Vector fetches or lazily creates the vector for id.
	Vector(id kg.SymbolID) vsa.Vector
}

// WorkingMemory is the capacity-bounded log of the current session.
type WorkingMemory interface {
	Push(kind memory.Kind, content string, symbols []kg.SymbolID, cycle uint64) (memory.EntryID, error)
	Recent(n int) []memory.Entry
	ByKind(kind memory.Kind) []memory.Entry
	IncrementReference(id memory.EntryID) error
	FillRatio() float64
	Len() int
}

// EpisodicMemory recalls consolidated past experience.
type EpisodicMemory interface {
	Recall(ctx context.Context, text string, vec vsa.Vector, k int) ([]memory.Episode, error)
}

// Goals is the goal state the agent works on.
type Goals interface {
	// Active returns active goals by descending priority.
	Active() []goal.Goal
	Get(id kg.SymbolID) (*goal.Goal, bool)
	Blocked(id kg.SymbolID) bool
	UpdateStatus(ctx context.Context, id kg.SymbolID, status goal.Status) error
	RecordWork(ctx context.Context, id kg.SymbolID, cycle uint64, progressed bool) error
}

// Tools lists and executes tools. Implementations may also satisfy
// tool.ArchetypeBiaser and tool.Vetoer.
type Tools interface {
	Signatures() []tool.Signature
	Execute(ctx context.Context, name string, in tool.Input) (tool.Output, error)
}

// ProvenanceRecorder keeps an audit trail of decisions.
type ProvenanceRecorder interface {
	RecordDecision(ctx context.Context, p Provenance) error
}

// Observer is notified of cycle outcomes, typically for metrics. ctx carries
// the cycle span.
type Observer interface {
	ObserveCycle(ctx context.Context, res *CycleResult)
	ObserveCycleError(err error)
}
