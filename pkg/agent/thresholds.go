package agent

import (
	"sync/atomic"

	"github.com/goclaw/hyperagent/config"
	"github.com/goclaw/hyperagent/pkg/kg"
)

// Thresholds are the tunable constants of the decision cycle. They depend on
// the vector width, so they come from configuration.
type Thresholds struct {
	ImpasseThreshold     float64
	TieEpsilon           float64
	SemanticFloor        float64
	GenericMultiplier    float64
	PressureHigh         float64
	UnexploredDegree     int
	CompleteBoth         float64
	CompleteEither       float64
	AdvanceThreshold     float64
	KeywordCompleteRatio float64
	RecallK              int
	RecentWindow         int
	MaxTriples           int
	Spread               kg.SpreadOptions
}

// DefaultThresholds returns the thresholds of the default configuration.
func DefaultThresholds() Thresholds {
	cfg := config.DefaultConfig()
	return ThresholdsFromConfig(cfg.Agent, cfg.Memory)
}

// ThresholdsFromConfig maps configuration onto Thresholds.
func ThresholdsFromConfig(a config.AgentConfig, m config.MemoryConfig) Thresholds {
	return Thresholds{
		ImpasseThreshold:     a.ImpasseThreshold,
		TieEpsilon:           a.TieEpsilon,
		SemanticFloor:        a.SemanticFloor,
		GenericMultiplier:    a.GenericMultiplier,
		PressureHigh:         a.PressureHigh,
		UnexploredDegree:     a.UnexploredDegree,
		CompleteBoth:         a.CompleteBoth,
		CompleteEither:       a.CompleteEither,
		AdvanceThreshold:     a.AdvanceThreshold,
		KeywordCompleteRatio: a.KeywordCompleteRatio,
		RecallK:              a.RecallK,
		RecentWindow:         m.RecentWindow,
		MaxTriples:           a.MaxTriples,
		Spread: kg.SpreadOptions{
			MaxDepth:  a.Spread.MaxDepth,
			Decay:     a.Spread.Decay,
			Threshold: a.Spread.Threshold,
			Limit:     a.Spread.Limit,
		},
	}
}

// thresholdStore lets a config reload swap thresholds while a cycle reads them.
type thresholdStore struct {
	p atomic.Pointer[Thresholds]
}

func newThresholdStore(th Thresholds) *thresholdStore {
	s := &thresholdStore{}
	s.store(th)
	return s
}

func (s *thresholdStore) load() Thresholds {
	return *s.p.Load()
}

func (s *thresholdStore) store(th Thresholds) {
	s.p.Store(&th)
}
