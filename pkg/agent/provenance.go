package agent

import (
	"time"

	"github.com/goclaw/hyperagent/pkg/kg"
)

// maxAlternatives caps the runner-up candidates kept in a provenance record.
const maxAlternatives = 5

// Alternative is a runner-up candidate.
type Alternative struct {
	Tool  string  `json:"tool"`
	Score float64 `json:"score"`
}

// Provenance explains one decision.
type Provenance struct {
	Cycle        uint64        `json:"cycle"`
	GoalID       kg.SymbolID   `json:"goal_id"`
	Tool         string        `json:"tool"`
	Score        float64       `json:"score"`
	Reasoning    string        `json:"reasoning"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Impasse      string        `json:"impasse,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

func alternatives(ranked []ToolCandidate) []Alternative {
	if len(ranked) <= 1 {
		return nil
	}
	rest := ranked[1:]
	if len(rest) > maxAlternatives {
		rest = rest[:maxAlternatives]
	}
	out := make([]Alternative, len(rest))
	for i := range rest {
		out[i] = Alternative{Tool: rest[i].Tool, Score: rest[i].Total()}
	}
	return out
}
