// Package storage provides persistence for the agent's goals, cycle history,
// decision provenance, episodes and knowledge-graph snapshots.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
)

// Storage defines the interface for persistent storage operations.
type Storage interface {
	// Goal operations
	SaveGoal(ctx context.Context, g *goal.Goal) error
	GetGoal(ctx context.Context, id kg.SymbolID) (*goal.Goal, error)
	ListGoals(ctx context.Context) ([]*goal.Goal, error)

	// Cycle history
	SaveCycle(ctx context.Context, rec *CycleRecord) error
	GetCycle(ctx context.Context, cycle uint64) (*CycleRecord, error)
	ListCycles(ctx context.Context, limit int) ([]*CycleRecord, error)

	// Decision provenance
	SaveProvenance(ctx context.Context, rec *ProvenanceRecord) error
	ListProvenance(ctx context.Context, filter *ProvenanceFilter) ([]*ProvenanceRecord, error)

	// Episodes
	SaveEpisode(ctx context.Context, ep *memory.Episode) error
	DeleteEpisode(ctx context.Context, id memory.EntryID) error
	ListEpisodes(ctx context.Context) ([]*memory.Episode, error)

	// Knowledge graph snapshot
	SaveSnapshot(ctx context.Context, snap *kg.Snapshot) error
	LoadSnapshot(ctx context.Context) (*kg.Snapshot, error)

	// Lifecycle
	Close() error
}

// CycleRecord is the persisted summary of one OODA cycle.
type CycleRecord struct {
	Cycle     uint64        `json:"cycle"`
	GoalID    kg.SymbolID   `json:"goal_id,omitempty"`
	Tool      string        `json:"tool,omitempty"`
	Score     float64       `json:"score"`
	Progress  string        `json:"progress,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Impasse   string        `json:"impasse,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Alternative is a losing candidate kept for provenance.
type Alternative struct {
	Tool  string  `json:"tool"`
	Score float64 `json:"score"`
}

// ProvenanceRecord explains why a tool was selected.
type ProvenanceRecord struct {
	ID           string        `json:"id"`
	Cycle        uint64        `json:"cycle"`
	GoalID       kg.SymbolID   `json:"goal_id"`
	Tool         string        `json:"tool"`
	Score        float64       `json:"score"`
	Reasoning    string        `json:"reasoning"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Impasse      string        `json:"impasse,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ProvenanceFilter narrows a provenance listing. Zero GoalID matches all goals.
type ProvenanceFilter struct {
	GoalID kg.SymbolID `json:"goal_id,omitempty"`
	Limit  int         `json:"limit"`
}

// NotFoundError indicates that the requested entity was not found.
type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.EntityType, e.ID)
}

// StorageUnavailableError indicates that the storage backend is unavailable.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Cause
}

// SerializationError indicates a failure in data serialization/deserialization.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error during %s: %v", e.Operation, e.Cause)
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}
