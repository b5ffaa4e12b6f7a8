// Package memory holds the agent's working memory, a capacity-bounded log of
// what it observed, decided and did, and its episodic memory, a persistent
// store of consolidated episodes recalled by hybrid hypervector and BM25
// retrieval with strength decay.
package memory

import (
	"errors"
	"time"

	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/vsa"
)

// Sentinel errors for the memory system.
var (
	ErrCapacity          = errors.New("memory: working memory at capacity")
	ErrNotFound          = errors.New("memory: entry not found")
	ErrInvalidQuery      = errors.New("memory: invalid query (no text and no vector)")
	ErrEmptyEpisode      = errors.New("memory: episode has no summary")
	ErrDimensionMismatch = errors.New("memory: vector dimension mismatch")
)

// EntryID identifies a working-memory entry or an episode.
type EntryID string

// Kind classifies a working-memory entry.
type Kind string

// Entry kinds written by the agent.
const (
	KindObservation Kind = "observation"
	KindOrientation Kind = "orientation"
	KindDecision    Kind = "decision"
	KindToolResult  Kind = "tool_result"
	KindInference   Kind = "inference"
)

// Entry is a single working-memory record.
type Entry struct {
	ID          EntryID       `json:"id"`
	Kind        Kind          `json:"kind"`
	Content     string        `json:"content"`
	Symbols     []kg.SymbolID `json:"symbols,omitempty"`
	SourceCycle uint64        `json:"source_cycle"`
	References  int           `json:"references"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Episode is a consolidated slice of working memory kept across sessions.
type Episode struct {
	ID        EntryID       `json:"id"`
	Summary   string        `json:"summary"`
	Symbols   []kg.SymbolID `json:"symbols,omitempty"`
	Vector    vsa.Vector    `json:"vector"`
	FromCycle uint64        `json:"from_cycle"`
	ToCycle   uint64        `json:"to_cycle"`

	// Strength is the current recall strength in [0,1], managed by the decay manager.
	Strength float64 `json:"strength"`
	// Stability is the decay time constant in hours. Higher means slower decay.
	Stability  float64   `json:"stability"`
	LastReview time.Time `json:"last_review"`
	CreatedAt  time.Time `json:"created_at"`
}

// Query is a recall request against episodic memory.
type Query struct {
	Text   string
	Vector vsa.Vector

	// Mode selects the retrieval strategy: "hybrid", "vector" or "bm25".
	// Empty picks one from the fields that are set.
	Mode string

	TopK int
}

// RecallResult wraps an episode with its fused relevance score.
type RecallResult struct {
	Episode *Episode `json:"episode"`
	Score   float64  `json:"score"`
}

// Stats summarizes episodic memory.
type Stats struct {
	Episodes        int     `json:"episodes"`
	AverageStrength float64 `json:"average_strength"`
}
