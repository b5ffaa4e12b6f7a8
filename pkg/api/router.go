// Package api provides HTTP API server components.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/goclaw/hyperagent/config"
	"github.com/goclaw/hyperagent/pkg/api/handlers"
	"github.com/goclaw/hyperagent/pkg/api/middleware"
	"github.com/goclaw/hyperagent/pkg/engine"
	"github.com/goclaw/hyperagent/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Goals handles goal endpoints
	Goals *handlers.GoalHandler

	// Cycles runs cycles and serves cycle history and provenance
	Cycles *handlers.CycleHandler

	// Memory serves working and episodic memory
	Memory *handlers.MemoryHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Events is the optional live event stream
	Events *handlers.WebSocketHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewHandlers builds every handler over eng. The event stream is created
// only when enabled in cfg.
func NewHandlers(cfg *config.Config, log logger.Logger, eng *engine.Engine) *Handlers {
	h := &Handlers{
		Goals:  handlers.NewGoalHandler(eng, log.Named("api.goals")),
		Cycles: handlers.NewCycleHandler(eng, log.Named("api.cycles")),
		Memory: handlers.NewMemoryHandler(eng, log.Named("api.memory")),
		Health: handlers.NewHealthHandler(eng),
	}
	if ws := cfg.Server.WebSocket; ws.Enabled {
		h.Events = handlers.NewWebSocketHandler(log.Named("api.ws"), handlers.WebSocketConfig{
			AllowedOrigins: ws.AllowedOrigins,
			SendBuffer:     ws.BufferSize,
			PingInterval:   ws.PingInterval,
			ResolveGoal:    eng.ResolveGoalKey,
		})
	}
	return h
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))

	// The event stream hijacks the connection, so it stays outside the
	// middleware that wraps the response writer.
	if handlers.Events != nil {
		r.Handle("/ws/events", handlers.Events)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
		r.Use(middleware.Logger(log))
		if handlers.Metrics != nil {
			r.Use(middleware.Metrics(handlers.Metrics))
		}
		r.Use(middleware.CORS(&cfg.Server.CORS))
		r.Use(middleware.Timeout(cfg.Server.HTTP.ReadTimeout))

		RegisterRoutes(r, handlers)
	})

	return r
}

// RegisterRoutes registers all request/response API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		if handlers.Goals != nil {
			r.Route("/goals", func(r chi.Router) {
				r.Post("/", handlers.Goals.CreateGoal)
				r.Get("/", handlers.Goals.ListGoals)
				r.Get("/{id}", handlers.Goals.GetGoal)
			})
		}

		if handlers.Cycles != nil {
			r.Post("/cycles", handlers.Cycles.RunCycle)
			r.Get("/cycles", handlers.Cycles.ListCycles)
			r.Get("/provenance", handlers.Cycles.ListProvenance)
		}

		if handlers.Memory != nil {
			r.Route("/memory", func(r chi.Router) {
				r.Get("/working", handlers.Memory.Working)
				r.Get("/episodes", handlers.Memory.Episodes)
			})
		}
	})

	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}
}
