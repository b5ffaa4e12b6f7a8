package metrics

import "github.com/prometheus/client_golang/prometheus"

func (m *Manager) initMemoryMetrics() {
	m.workingEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "working_memory_entries",
		Help:      "Current number of working-memory entries",
	})
	m.workingFill = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "working_memory_fill_ratio",
		Help:      "Working-memory fill ratio in [0,1]",
	})
	m.episodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "episodes",
		Help:      "Current number of stored episodes",
	})
	m.consolidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consolidations_total",
			Help:      "Total number of working-memory consolidations by status",
		},
		[]string{"status"},
	)

	m.registry.MustRegister(m.workingEntries, m.workingFill, m.episodes, m.consolidations)
}

// SetWorkingMemory records the working-memory size and fill ratio.
func (m *Manager) SetWorkingMemory(entries int, fill float64) {
	if !m.enabled {
		return
	}
	m.workingEntries.Set(float64(entries))
	m.workingFill.Set(fill)
}

// SetEpisodes records the number of stored episodes.
func (m *Manager) SetEpisodes(n int) {
	if !m.enabled {
		return
	}
	m.episodes.Set(float64(n))
}

// RecordConsolidation counts a consolidation attempt.
func (m *Manager) RecordConsolidation(success bool) {
	if !m.enabled {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.consolidations.WithLabelValues(status).Inc()
}
