package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func (m *Manager) initToolMetrics(cfg Config) {
	m.toolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_executions_total",
			Help:      "Total number of tool executions by tool and status",
		},
		[]string{"tool", "status"},
	)

	m.toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool execution duration in seconds",
			Buckets:   cfg.ToolDurationBuckets,
		},
		[]string{"tool"},
	)

	m.registry.MustRegister(m.toolExecutions, m.toolDuration)
}

// RecordToolExecution implements tool.Observer.
func (m *Manager) RecordToolExecution(tool string, success bool, duration time.Duration) {
	if !m.enabled {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.toolExecutions.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}
