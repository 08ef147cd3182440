package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/grifflabs/marketpulse/internal/domain"
)

// SnapshotArchiver uploads expiring snapshot rows to cold storage before
// they are pruned. It returns the storage key it wrote.
type SnapshotArchiver interface {
	ArchiveSnapshots(ctx context.Context, metric domain.Metric, rows []domain.SnapshotRow, cutoff time.Time) (string, error)
}

// Sweeper prunes snapshot history past the retention horizon. Baselines,
// threshold crossings, and the delivery ledger are never swept; losing them
// would replay old alerts. With an archiver configured, rows are uploaded
// before deletion so the history stays queryable offline.
type Sweeper struct {
	snapshots     domain.SnapshotStore
	archiver      SnapshotArchiver // nil disables archival
	retentionDays int
	logger        *slog.Logger
}

// NewSweeper creates a Sweeper. archiver may be nil, in which case expired
// rows are deleted without an upload.
func NewSweeper(snapshots domain.SnapshotStore, archiver SnapshotArchiver, retentionDays int, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		snapshots:     snapshots,
		archiver:      archiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "sweeper")),
	}
}

// Run executes a single sweep over both snapshot series.
func (s *Sweeper) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(s.retentionDays) * 24 * time.Hour)
	s.logger.Info("starting retention sweep",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", s.retentionDays))

	for _, metric := range []domain.Metric{domain.MetricVolume, domain.MetricPrice} {
		if err := s.sweepMetric(ctx, metric, cutoff); err != nil {
			return err
		}
	}

	remaining, err := s.snapshots.Count(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: count snapshots: %w", err)
	}
	s.logger.Info("retention sweep complete", slog.Int64("rows_remaining", remaining))
	return nil
}

func (s *Sweeper) sweepMetric(ctx context.Context, metric domain.Metric, cutoff time.Time) error {
	if s.archiver != nil {
		rows, err := s.snapshots.RowsBefore(ctx, metric, cutoff)
		if err != nil {
			return fmt.Errorf("pipeline: load %s rows for archive: %w", metric, err)
		}
		if len(rows) > 0 {
			key, err := s.archiver.ArchiveSnapshots(ctx, metric, rows, cutoff)
			if err != nil {
				return fmt.Errorf("pipeline: archive %s snapshots: %w", metric, err)
			}
			s.logger.Info("archived snapshots",
				slog.String("metric", string(metric)),
				slog.Int("rows", len(rows)),
				slog.String("key", key))
		}
	}

	pruned, err := s.snapshots.PruneBefore(ctx, metric, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: prune %s snapshots: %w", metric, err)
	}
	s.logger.Info("pruned snapshots",
		slog.String("metric", string(metric)),
		slog.Int64("rows", pruned))
	return nil
}

// RunCron runs the sweep on a 5-field cron schedule until the context is
// cancelled.
func (s *Sweeper) RunCron(ctx context.Context, cronExpr string) error {
	s.logger.Info("sweeper cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("pipeline: parse cron %q: %w", cronExpr, err)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("sweeper cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("retention sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
