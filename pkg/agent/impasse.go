package agent

import "github.com/goclaw/hyperagent/pkg/kg"

// DetectImpasse inspects candidates ranked best first. Only the top two are
// compared.
func DetectImpasse(goalID kg.SymbolID, ranked []ToolCandidate, th Thresholds) *DecisionImpasse {
	if len(ranked) == 0 {
		return &DecisionImpasse{
			GoalID: goalID,
			Kind:   AllBelowThreshold{Threshold: th.ImpasseThreshold},
		}
	}
	best := ranked[0].Total()
	if best < th.ImpasseThreshold {
		return &DecisionImpasse{
			GoalID:    goalID,
			Kind:      AllBelowThreshold{Threshold: th.ImpasseThreshold},
			BestScore: best,
		}
	}
	if len(ranked) >= 2 && best-ranked[1].Total() < th.TieEpsilon {
		return &DecisionImpasse{
			GoalID:    goalID,
			Kind:      Tie{ToolA: ranked[0].Tool, ToolB: ranked[1].Tool, Epsilon: th.TieEpsilon},
			BestScore: best,
		}
	}
	return nil
}
