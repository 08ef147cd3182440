package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/grifflabs/marketpulse/internal/domain"
	"github.com/grifflabs/marketpulse/internal/engine"
)

const cycleLockKey = "cycle"

// Runner drives the poll cycle on a fixed interval. A distributed lock keeps
// concurrent deployments from double-alerting: a tick that finds the lock
// held is skipped outright, never queued.
type Runner struct {
	cycle    *engine.Cycle
	locks    domain.LockManager
	interval time.Duration
	logger   *slog.Logger
}

// NewRunner creates a Runner for the given cycle and cadence.
func NewRunner(cycle *engine.Cycle, locks domain.LockManager, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		cycle:    cycle,
		locks:    locks,
		interval: interval,
		logger:   logger.With(slog.String("component", "runner")),
	}
}

// RunOnce executes a single locked cycle. It returns domain.ErrCycleRunning
// when another holder owns the cycle lock.
func (r *Runner) RunOnce(ctx context.Context) error {
	// The lock outlives the interval slightly so a slow cycle is not
	// stomped by the very next tick of another process.
	unlock, err := r.locks.Acquire(ctx, cycleLockKey, r.interval+time.Minute)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.ErrCycleRunning
		}
		return fmt.Errorf("pipeline: acquire cycle lock: %w", err)
	}
	defer unlock()

	if _, err := r.cycle.Run(ctx); err != nil {
		return fmt.Errorf("pipeline: cycle: %w", err)
	}
	return nil
}

// RunLoop runs the cycle immediately and then on every tick until the
// context is cancelled. Individual cycle failures are logged, not fatal; a
// skipped tick due to an overlapping run is noted at info level.
func (r *Runner) RunLoop(ctx context.Context) error {
	r.logger.Info("cycle loop started", slog.Duration("interval", r.interval))

	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("cycle loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	switch err := r.RunOnce(ctx); {
	case err == nil:
	case errors.Is(err, domain.ErrCycleRunning):
		r.logger.Info("cycle already running, tick skipped")
	default:
		r.logger.Error("cycle failed", slog.String("error", err.Error()))
	}
}
