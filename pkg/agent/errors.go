package agent

import (
	"errors"
	"fmt"
)

// Sentinel errors fatal to a cycle.
var (
	ErrNoActiveGoals  = errors.New("agent: no active goals")
	ErrNoEligibleGoal = errors.New("agent: every active goal is blocked")
)

// CycleError is returned when a cycle stops before Act.
type CycleError struct {
	Cycle uint64
	Stage string
	Cause error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %d %s: %v", e.Cycle, e.Stage, e.Cause)
}

func (e *CycleError) Unwrap() error { return e.Cause }
