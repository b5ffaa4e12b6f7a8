// Package agent implements the Observe-Orient-Decide-Act decision cycle.
//
// Each cycle observes the active goals and memory, orients by gathering the
// graph neighbourhood and spreading activation around them, decides which
// tool to run by scoring every applicable tool against the top goal, and
// acts by executing the tool and judging whether it moved the goal forward.
// Collaborators are consumed through the narrow interfaces in interfaces.go.
package agent

import (
	"fmt"
	"math"
	"time"

	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/tool"
)

// Observation is what the agent saw at the start of a cycle.
type Observation struct {
	Cycle         uint64           `json:"cycle"`
	ActiveGoals   []kg.SymbolID    `json:"active_goals"`
	MemorySize    int              `json:"memory_size"`
	RecentEntries []memory.EntryID `json:"recent_entries,omitempty"`
	Episodes      []memory.Episode `json:"episodes,omitempty"`
}

// Orientation is the graph context gathered around the active goals.
type Orientation struct {
	Triples     []kg.Triple     `json:"triples,omitempty"`
	Activations []kg.Activation `json:"activations,omitempty"`
	// MemoryPressure is the working-memory fill ratio in [0,1].
	MemoryPressure float64 `json:"memory_pressure"`
}

// ToolCandidate is one scored option considered by Decide.
type ToolCandidate struct {
	Tool  string     `json:"tool"`
	Input tool.Input `json:"input,omitempty"`

	BaseScore       float64 `json:"base_score"`
	RecencyPenalty  float64 `json:"recency_penalty"`
	NoveltyBonus    float64 `json:"novelty_bonus"`
	EpisodicBonus   float64 `json:"episodic_bonus"`
	PressureBonus   float64 `json:"pressure_bonus"`
	ArchetypeBonus  float64 `json:"archetype_bonus"`
	GoalValueFactor float64 `json:"goal_value_factor"`

	Reasoning string `json:"reasoning"`
}

// Total is the candidate's final score. The additive part is clamped at 0
// before the goal value dampener is applied.
func (c *ToolCandidate) Total() float64 {
	additive := c.BaseScore - c.RecencyPenalty + c.NoveltyBonus + c.EpisodicBonus + c.PressureBonus + c.ArchetypeBonus
	return math.Max(0, additive) * (0.5 + 0.5*c.GoalValueFactor)
}

// Breakdown renders the score components on one line.
func (c *ToolCandidate) Breakdown() string {
	return fmt.Sprintf("score %.3f = (base %.3f - recency %.3f + novelty %.3f + episodic %.3f + pressure %.3f + archetype %+.3f) x %.3f",
		c.Total(), c.BaseScore, c.RecencyPenalty, c.NoveltyBonus, c.EpisodicBonus, c.PressureBonus, c.ArchetypeBonus,
		0.5+0.5*c.GoalValueFactor)
}

// Decision is the tool chosen for a goal.
type Decision struct {
	Tool      string      `json:"tool"`
	Input     tool.Input  `json:"input,omitempty"`
	Reasoning string      `json:"reasoning"`
	GoalID    kg.SymbolID `json:"goal_id"`
	Score     float64     `json:"score"`
}

// ImpasseKind describes why a decision was of poor quality.
type ImpasseKind interface {
	impasse()
	String() string
}

// AllBelowThreshold reports that no candidate reached Threshold.
type AllBelowThreshold struct {
	Threshold float64 `json:"threshold"`
}

func (AllBelowThreshold) impasse() {}

func (k AllBelowThreshold) String() string {
	return fmt.Sprintf("all candidates below %.2f", k.Threshold)
}

// Tie reports that the top two candidates were within Epsilon of each other.
type Tie struct {
	ToolA   string  `json:"tool_a"`
	ToolB   string  `json:"tool_b"`
	Epsilon float64 `json:"epsilon"`
}

func (Tie) impasse() {}

func (k Tie) String() string {
	return fmt.Sprintf("tie between %s and %s within %.2f", k.ToolA, k.ToolB, k.Epsilon)
}

// DecisionImpasse accompanies a Decision that may need goal reformulation.
type DecisionImpasse struct {
	GoalID    kg.SymbolID `json:"goal_id"`
	Kind      ImpasseKind `json:"kind"`
	BestScore float64     `json:"best_score"`
}

// ProgressKind enumerates the GoalProgress variants.
type ProgressKind string

const (
	ProgressNoChange  ProgressKind = "no_change"
	ProgressAdvanced  ProgressKind = "advanced"
	ProgressCompleted ProgressKind = "completed"
	ProgressFailed    ProgressKind = "failed"
)

// GoalProgress is the outcome of one action against its goal.
type GoalProgress interface {
	Kind() ProgressKind
	String() string
}

// NoChange means the action produced nothing useful for the goal.
type NoChange struct{}

// Advanced means the action moved the goal forward.
type Advanced struct {
	Detail string `json:"detail"`
}

// Completed means the goal's success criteria are met.
type Completed struct{}

// Failed means the action failed.
type Failed struct {
	Reason string `json:"reason"`
}

func (NoChange) Kind() ProgressKind  { return ProgressNoChange }
func (Advanced) Kind() ProgressKind  { return ProgressAdvanced }
func (Completed) Kind() ProgressKind { return ProgressCompleted }
func (Failed) Kind() ProgressKind    { return ProgressFailed }

func (NoChange) String() string   { return string(ProgressNoChange) }
func (p Advanced) String() string { return fmt.Sprintf("%s: %s", ProgressAdvanced, p.Detail) }
func (Completed) String() string  { return string(ProgressCompleted) }
func (p Failed) String() string   { return fmt.Sprintf("%s: %s", ProgressFailed, p.Reason) }

// ActionResult is what Act produced.
type ActionResult struct {
	Output        tool.Output      `json:"output"`
	Progress      GoalProgress     `json:"progress"`
	MemoryEntries []memory.EntryID `json:"memory_entries,omitempty"`
}

// CycleResult is the complete record of one cycle.
type CycleResult struct {
	Cycle       uint64           `json:"cycle"`
	Observation Observation      `json:"observation"`
	Orientation Orientation      `json:"orientation"`
	Decision    Decision         `json:"decision"`
	Impasse     *DecisionImpasse `json:"impasse,omitempty"`
	Action      ActionResult     `json:"action"`
	// Candidates are every scored option, best first.
	Candidates []ToolCandidate `json:"candidates,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"duration"`
}
