package metrics

import "github.com/prometheus/client_golang/prometheus"

func (m *Manager) initEventBusMetrics() {
	m.eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of agent events published by status",
		},
		[]string{"status"},
	)
	m.eventRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_publish_retries_total",
		Help:      "Total number of event publish retries",
	})
	m.eventDegraded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "eventbus_degraded",
		Help:      "1 while the event publisher is in degraded mode",
	})
	m.eventOutages = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eventbus_outages_total",
		Help:      "Total number of event bus outages",
	})
	m.eventRecoveries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eventbus_recoveries_total",
		Help:      "Total number of event bus recoveries",
	})

	m.registry.MustRegister(m.eventsPublished, m.eventRetries, m.eventDegraded, m.eventOutages, m.eventRecoveries)
}

// RecordPublish implements eventbus.Telemetry.
func (m *Manager) RecordPublish(status string) {
	if !m.enabled {
		return
	}
	m.eventsPublished.WithLabelValues(status).Inc()
}

// RecordRetry implements eventbus.Telemetry.
func (m *Manager) RecordRetry() {
	if !m.enabled {
		return
	}
	m.eventRetries.Inc()
}

// SetDegradedMode implements eventbus.Telemetry.
func (m *Manager) SetDegradedMode(active bool) {
	if !m.enabled {
		return
	}
	if active {
		m.eventDegraded.Set(1)
		return
	}
	m.eventDegraded.Set(0)
}

// RecordOutage implements eventbus.Telemetry.
func (m *Manager) RecordOutage() {
	if !m.enabled {
		return
	}
	m.eventOutages.Inc()
}

// RecordRecovery implements eventbus.Telemetry.
func (m *Manager) RecordRecovery() {
	if !m.enabled {
		return
	}
	m.eventRecoveries.Inc()
}
