package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/grifflabs/marketpulse/internal/pipeline"
)

// WatchMode runs the poll cycle on its interval and the retention sweep on
// its cron schedule until the context is cancelled.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	runner := pipeline.NewRunner(deps.Cycle, deps.Locks, a.cfg.Interval(), a.logger)
	sweeper := pipeline.NewSweeper(deps.Snapshots, deps.Archiver, a.cfg.Retention.Days, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := runner.RunLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("cycle runner: %w", err)
	})

	g.Go(func() error {
		err := sweeper.RunCron(ctx, a.cfg.Retention.Cron)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("retention sweeper: %w", err)
	})

	return g.Wait()
}

// OnceMode executes a single locked cycle and exits. Useful for external
// schedulers and smoke testing a deployment.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	runner := pipeline.NewRunner(deps.Cycle, deps.Locks, a.cfg.Interval(), a.logger)
	return runner.RunOnce(ctx)
}

// SweepMode executes a single retention sweep and exits.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sweep mode")

	sweeper := pipeline.NewSweeper(deps.Snapshots, deps.Archiver, a.cfg.Retention.Days, a.logger)
	return sweeper.Run(ctx)
}
