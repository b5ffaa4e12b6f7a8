// Package models defines API request/response data structures.
package models

import (
	"time"

	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/storage"
)

// CreateGoalRequest represents a goal creation request.
type CreateGoalRequest struct {
	// Description says what the agent should achieve.
	Description string `json:"description" validate:"required,min=1,max=500" example:"find the moons of jupiter"`

	// SuccessCriteria says when the goal is met.
	SuccessCriteria string `json:"success_criteria,omitempty" validate:"max=1000" example:"list every moon of jupiter"`

	// Priority ranges from 0 to 255. Higher goals are worked on first.
	Priority int `json:"priority" validate:"min=0,max=255" example:"200"`

	// BlockedBy lists goal ids that must finish first.
	BlockedBy []uint64 `json:"blocked_by,omitempty"`
}

// GoalResponse is a goal with its graph label.
type GoalResponse struct {
	goal.Goal
	Label string `json:"label"`
}

// GoalListResponse represents a list of goals.
type GoalListResponse struct {
	Goals []GoalResponse `json:"goals"`
	Total int            `json:"total"`
}

// CandidateView is one scored tool option.
type CandidateView struct {
	Tool      string  `json:"tool"`
	Score     float64 `json:"score"`
	Breakdown string  `json:"breakdown"`
}

// ImpasseView describes a low-quality decision.
type ImpasseView struct {
	Kind      string  `json:"kind"`
	BestScore float64 `json:"best_score"`
}

// CycleResponse summarizes one cycle that just ran.
type CycleResponse struct {
	Cycle      uint64          `json:"cycle"`
	GoalID     uint64          `json:"goal_id"`
	Goal       string          `json:"goal"`
	Tool       string          `json:"tool"`
	Score      float64         `json:"score"`
	Reasoning  string          `json:"reasoning"`
	Progress   string          `json:"progress"`
	Detail     string          `json:"detail,omitempty"`
	Output     string          `json:"output,omitempty"`
	Success    bool            `json:"success"`
	Impasse    *ImpasseView    `json:"impasse,omitempty"`
	Candidates []CandidateView `json:"candidates,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	DurationMS int64           `json:"duration_ms"`
}

// CycleListResponse represents persisted cycle history.
type CycleListResponse struct {
	Cycles []*storage.CycleRecord `json:"cycles"`
	Total  int                    `json:"total"`
}

// ProvenanceListResponse represents persisted decision records.
type ProvenanceListResponse struct {
	Records []*storage.ProvenanceRecord `json:"records"`
	Total   int                         `json:"total"`
}

// WorkingMemoryResponse lists working-memory entries.
type WorkingMemoryResponse struct {
	Entries  []memory.Entry `json:"entries"`
	Capacity int            `json:"capacity"`
	Fill     float64        `json:"fill"`
}

// EpisodeView is an episode without its hypervector.
type EpisodeView struct {
	ID        memory.EntryID `json:"id"`
	Summary   string         `json:"summary"`
	FromCycle uint64         `json:"from_cycle"`
	ToCycle   uint64         `json:"to_cycle"`
	Strength  float64        `json:"strength"`
	CreatedAt time.Time      `json:"created_at"`
	Score     float64        `json:"score,omitempty"`
}

// EpisodeListResponse lists episodes, or search matches when a query was given.
type EpisodeListResponse struct {
	Episodes []EpisodeView `json:"episodes"`
	Total    int           `json:"total"`
	Query    string        `json:"query,omitempty"`
}

// NewEpisodeView drops the vector from ep.
func NewEpisodeView(ep *memory.Episode) EpisodeView {
	return EpisodeView{
		ID:        ep.ID,
		Summary:   ep.Summary,
		FromCycle: ep.FromCycle,
		ToCycle:   ep.ToCycle,
		Strength:  ep.Strength,
		CreatedAt: ep.CreatedAt,
	}
}
