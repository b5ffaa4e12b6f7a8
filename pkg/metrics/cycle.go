package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goclaw/hyperagent/pkg/agent"
)

func (m *Manager) initCycleMetrics(cfg Config) {
	m.cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of OODA cycles by status",
		},
		[]string{"status"},
	)

	m.cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "OODA cycle duration in seconds",
			Buckets:   cfg.CycleDurationBuckets,
		},
	)

	m.decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of decisions by chosen tool",
		},
		[]string{"tool"},
	)

	m.decisionScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_score",
			Help:      "Total score of the winning candidate",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 13),
		},
	)

	m.impasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "impasses_total",
			Help:      "Total number of decision impasses by kind",
		},
		[]string{"kind"},
	)

	m.progress = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goal_progress_total",
			Help:      "Goal progress outcomes of actions",
		},
		[]string{"kind"},
	)

	m.goals = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goals",
			Help:      "Current number of goals by status",
		},
		[]string{"status"},
	)

	m.registry.MustRegister(m.cycles, m.cycleDuration, m.decisions, m.decisionScore, m.impasses, m.progress, m.goals)
}

// impasseLabel maps an impasse to a bounded label value.
func impasseLabel(k agent.ImpasseKind) string {
	switch k.(type) {
	case agent.AllBelowThreshold:
		return "all_below_threshold"
	case agent.Tie:
		return "tie"
	}
	return "unknown"
}

// ObserveCycle implements agent.Observer. Duration and score samples carry
// the cycle span as an exemplar when ctx has one.
func (m *Manager) ObserveCycle(ctx context.Context, res *agent.CycleResult) {
	if !m.enabled || res == nil {
		return
	}
	m.cycles.WithLabelValues("completed").Inc()
	observe(ctx, m.cycleDuration, res.Duration.Seconds())
	m.decisions.WithLabelValues(res.Decision.Tool).Inc()
	observe(ctx, m.decisionScore, res.Decision.Score)
	if res.Impasse != nil {
		m.impasses.WithLabelValues(impasseLabel(res.Impasse.Kind)).Inc()
	}
	if res.Action.Progress != nil {
		m.progress.WithLabelValues(string(res.Action.Progress.Kind())).Inc()
	}
}

// ObserveCycleError implements agent.Observer.
func (m *Manager) ObserveCycleError(err error) {
	if !m.enabled || err == nil {
		return
	}
	m.cycles.WithLabelValues("failed").Inc()
}

// SetGoalCounts replaces the goal gauge with counts keyed by status.
func (m *Manager) SetGoalCounts(counts map[string]int) {
	if !m.enabled {
		return
	}
	m.goals.Reset()
	for status, n := range counts {
		m.goals.WithLabelValues(status).Set(float64(n))
	}
}
