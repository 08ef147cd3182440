package domain

import (
	"context"
	"time"
)

// Metric selects which time series a snapshot operation touches.
type Metric string

const (
	MetricVolume Metric = "volume"
	MetricPrice  Metric = "price"
)

// SnapshotEntry is one (market, value) pair in a bulk snapshot write.
type SnapshotEntry struct {
	MarketID string
	Value    float64
}

// SnapshotRow is a persisted snapshot fact, used by the retention sweep.
type SnapshotRow struct {
	MarketID   string    `json:"market_id"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SnapshotStore is the append-only history of per-market volume and price
// observations. Bulk operations are single round trips; market counts run
// into the thousands per tick and per-market loops do not finish inside the
// tick interval.
type SnapshotStore interface {
	Record(ctx context.Context, marketID string, metric Metric, value float64, at time.Time) error
	// BulkRecordTick appends one tick's volume and price observations as a
	// single atomic unit; a partial tick snapshot is worse than none.
	BulkRecordTick(ctx context.Context, volumes, prices []SnapshotEntry, at time.Time) error
	// ValueAtOrBefore returns ErrNotFound when no snapshot exists at or
	// before the cutoff.
	ValueAtOrBefore(ctx context.Context, marketID string, metric Metric, cutoff time.Time) (float64, error)
	LatestValue(ctx context.Context, marketID string, metric Metric) (float64, error)
	// BulkDelta computes latest - at-or-before(now-window) per market in one
	// query. Markets with no snapshot at or before the cutoff are absent
	// from the result; absence means "no data yet", which callers must not
	// confuse with a zero delta.
	BulkDelta(ctx context.Context, marketIDs []string, metric Metric, window time.Duration) (map[string]float64, error)
	RowsBefore(ctx context.Context, metric Metric, cutoff time.Time) ([]SnapshotRow, error)
	PruneBefore(ctx context.Context, metric Metric, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// BaselineStore tracks the last known volume per market and which volume
// thresholds each market has ever crossed, independent of snapshot
// retention.
type BaselineStore interface {
	// GetBulk returns baselines for the given markets; markets absent from
	// the map have never been baselined.
	GetBulk(ctx context.Context, marketIDs []string) (map[string]Baseline, error)
	// UpsertBulk writes current volumes back as the new baselines, one round
	// trip, atomic as a unit.
	UpsertBulk(ctx context.Context, entries []SnapshotEntry) error
	// CrossedThresholds returns the set of thresholds one market has already
	// crossed.
	CrossedThresholds(ctx context.Context, marketID string) (map[float64]bool, error)
	// CrossedBulk returns, per market, the set of thresholds already
	// recorded as crossed.
	CrossedBulk(ctx context.Context, marketIDs []string) (map[string]map[float64]bool, error)
	// RecordCrossing is idempotent: re-recording an existing
	// (market, threshold) pair is a no-op.
	RecordCrossing(ctx context.Context, c Crossing) error
	RecordCrossingsBulk(ctx context.Context, crossings []Crossing) error
	// IsSeeded / MarkSeeded gate the silent first pass: the first cycle ever
	// records already-satisfied thresholds without alerting.
	IsSeeded(ctx context.Context) (bool, error)
	MarkSeeded(ctx context.Context) error
}

// LedgerStore persists per-recipient delivery records. Records are append
// only; a re-alert inserts a fresh row whose recency supersedes the old one.
type LedgerStore interface {
	// LatestDeliveries returns the most recent record per (market, family)
	// for the recipient, restricted to the given markets.
	LatestDeliveries(ctx context.Context, recipientID string, marketIDs []string) (map[DeliveryKey]DeliveryRecord, error)
	// RecentlyAlerted returns the most recent record per market across all
	// families within the window, for cross-family "same story" dedup.
	RecentlyAlerted(ctx context.Context, recipientID string, window time.Duration) (map[string]DeliveryRecord, error)
	RecordBulk(ctx context.Context, records []DeliveryRecord) error
}

// LockManager guards the cycle against concurrent runners across processes.
type LockManager interface {
	// Acquire returns ErrLockHeld when another holder owns the lock. The
	// returned func releases it and is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// StatusCache stores the latest cycle stats for external diagnostics.
type StatusCache interface {
	SetStats(ctx context.Context, stats CycleStats) error
	GetStats(ctx context.Context) (CycleStats, error)
}

// ListingsFetcher is the upstream market listing source.
type ListingsFetcher interface {
	// FetchAll pages through the listing API until target markets have been
	// retrieved or the API is exhausted.
	FetchAll(ctx context.Context, target int) ([]Market, error)
}
