package agent

import (
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/tool"
)

// Modifier magnitudes.
const (
	noveltyBonus  = 0.15
	episodicBonus = 0.2
	pressureBonus = 0.15
)

// recencyPenalties is indexed by recency rank minus one.
var recencyPenalties = [...]float64{0.4, 0.2, 0.1}

// ScoringContext is everything the modifiers read. It is passed by value.
type ScoringContext struct {
	GoalID         kg.SymbolID
	GoalValue      float64
	History        GoalHistory
	Hints          map[string]struct{}
	MemoryPressure float64
	PressureHigh   float64
	// Biaser is optional.
	Biaser tool.ArchetypeBiaser
}

// RecencyPenalty returns the penalty for a tool given its recency rank.
func RecencyPenalty(rank int) float64 {
	if rank < 1 || rank > len(recencyPenalties) {
		return 0
	}
	return recencyPenalties[rank-1]
}

// ApplyModifiers fills in the modifier fields of every candidate in place.
func ApplyModifiers(cands []ToolCandidate, sc ScoringContext) {
	for i := range cands {
		c := &cands[i]
		c.RecencyPenalty = RecencyPenalty(sc.History.RecencyRank(c.Tool))
		c.NoveltyBonus = 0
		if !sc.History.Used(c.Tool) {
			c.NoveltyBonus = noveltyBonus
		}
		c.EpisodicBonus = 0
		if _, ok := sc.Hints[c.Tool]; ok {
			c.EpisodicBonus = episodicBonus
		}
		c.PressureBonus = 0
		if c.Tool == tool.MemoryRecall && sc.MemoryPressure > sc.PressureHigh {
			c.PressureBonus = pressureBonus
		}
		c.ArchetypeBonus = 0
		if sc.Biaser != nil {
			c.ArchetypeBonus = sc.Biaser.ArchetypeBias(c.Tool, sc.GoalID)
		}
		c.GoalValueFactor = sc.GoalValue
	}
}
