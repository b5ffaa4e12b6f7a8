// Package metrics provides Prometheus instrumentation for the agent: cycle
// outcomes, tool executions, memory usage and the HTTP API.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goclaw/hyperagent/config"
)

const namespace = "hyperagent"

// Manager manages all Prometheus metrics.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	// Cycle metrics
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	decisions     *prometheus.CounterVec
	decisionScore prometheus.Histogram
	impasses      *prometheus.CounterVec
	progress      *prometheus.CounterVec
	goals         *prometheus.GaugeVec

	// Tool metrics
	toolExecutions *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec

	// Memory metrics
	workingEntries prometheus.Gauge
	workingFill    prometheus.Gauge
	episodes       prometheus.Gauge
	consolidations *prometheus.CounterVec

	// Event bus metrics
	eventsPublished *prometheus.CounterVec
	eventRetries    prometheus.Counter
	eventDegraded   prometheus.Gauge
	eventOutages    prometheus.Counter
	eventRecoveries prometheus.Counter

	// HTTP metrics
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpConnections prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Port    int
	Path    string

	// Histogram bucket configurations
	CycleDurationBuckets []float64
	ToolDurationBuckets  []float64
	HTTPDurationBuckets  []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		Port:                 9091,
		Path:                 "/metrics",
		CycleDurationBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		ToolDurationBuckets:  []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		HTTPDurationBuckets:  []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// FromConfig builds a Config from the application's metrics section.
func FromConfig(c config.MetricsConfig) Config {
	cfg := DefaultConfig()
	cfg.Enabled = c.Enabled
	if c.Port != 0 {
		cfg.Port = c.Port
	}
	if c.Path != "" {
		cfg.Path = c.Path
	}
	return cfg
}

// NewManager creates a new metrics manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}

	registry := prometheus.NewRegistry()

	// Register Go runtime metrics
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		enabled:  true,
	}

	m.initCycleMetrics(cfg)
	m.initToolMetrics(cfg)
	m.initMemoryMetrics()
	m.initEventBusMetrics()
	m.initHTTPMetrics(cfg)

	return m
}

// Enabled returns whether metrics collection is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartServer serves the metrics endpoint until ctx is cancelled.
func (m *Manager) StartServer(ctx context.Context, port int, path string) error {
	if !m.enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return server.ListenAndServe()
}

// NoOpManager returns a no-op metrics manager for when metrics are disabled.
func NoOpManager() *Manager {
	return &Manager{enabled: false}
}
