// Package goal tracks the agent's goals. Every goal is a symbol in the
// knowledge graph so triples can describe it like any other concept.
package goal

import (
	"errors"
	"time"

	"github.com/goclaw/hyperagent/pkg/kg"
)

// MaxPriority is the highest goal priority.
const MaxPriority = 255

// Status is the lifecycle state of a goal.
type Status string

// Goal statuses.
const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends the goal's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Sentinel errors for goal management.
var (
	ErrNotFound       = errors.New("goal: not found")
	ErrExists         = errors.New("goal: already exists")
	ErrInvalidGoal    = errors.New("goal: invalid goal")
	ErrInvalidStatus  = errors.New("goal: invalid status")
	ErrTerminalStatus = errors.New("goal: goal already finished")
)

// Goal is something the agent works towards across cycles.
type Goal struct {
	ID                kg.SymbolID   `json:"id"`
	Description       string        `json:"description"`
	SuccessCriteria   string        `json:"success_criteria"`
	Priority          uint8         `json:"priority"`
	Status            Status        `json:"status"`
	BlockedBy         []kg.SymbolID `json:"blocked_by,omitempty"`
	CyclesWorked      uint64        `json:"cycles_worked"`
	LastProgressCycle uint64        `json:"last_progress_cycle"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Value is the goal's priority normalised to [0,1].
func (g Goal) Value() float64 {
	return float64(g.Priority) / MaxPriority
}

// Clone returns a deep copy of g.
func (g *Goal) Clone() *Goal {
	c := *g
	if g.BlockedBy != nil {
		c.BlockedBy = append([]kg.SymbolID(nil), g.BlockedBy...)
	}
	return &c
}

// Spec describes a goal to create.
type Spec struct {
	Description     string        `json:"description" yaml:"description" validate:"required"`
	SuccessCriteria string        `json:"success_criteria" yaml:"success_criteria"`
	Priority        uint8         `json:"priority" yaml:"priority"`
	BlockedBy       []kg.SymbolID `json:"blocked_by,omitempty" yaml:"-"`
}

// Label returns the graph label of a goal with the given description.
func Label(description string) string {
	return kg.GoalNamespace + description
}
