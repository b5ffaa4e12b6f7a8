package engine

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// runLoop drives cycles at the configured rate until ctx is cancelled or
// the configured number of cycles has completed.
func (e *Engine) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	cfg := e.cfg.Runner
	limit := rate.Inf
	if cfg.CyclesPerSecond > 0 {
		limit = rate.Limit(cfg.CyclesPerSecond)
	}
	limiter := rate.NewLimiter(limit, max(cfg.Burst, 1))

	e.logger.Info("cycle loop started",
		"cycles_per_second", cfg.CyclesPerSecond,
		"burst", cfg.Burst,
		"max_cycles", cfg.MaxCycles,
	)

	var completed uint64
	for {
		if err := limiter.Wait(ctx); err != nil {
			e.logger.Info("cycle loop stopped", "completed", completed)
			return
		}

		_, err := e.RunCycle(ctx)
		switch {
		case err == nil:
			completed++
		case ctx.Err() != nil:
			e.logger.Info("cycle loop stopped", "completed", completed)
			return
		case idle(err):
			e.logger.Debug("no goal to work on", "reason", err)
			if !sleep(ctx, cfg.IdleInterval) {
				e.logger.Info("cycle loop stopped", "completed", completed)
				return
			}
		default:
			e.logger.Warn("cycle failed", "error", err)
		}

		if cfg.MaxCycles > 0 && completed >= cfg.MaxCycles {
			e.logger.Info("cycle loop reached its limit", "completed", completed)
			return
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
