package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grifflabs/marketpulse/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL. Volume and
// price series live in separate tables with identical shapes; the metric
// argument selects the table.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

func snapshotTable(metric domain.Metric) (string, error) {
	switch metric {
	case domain.MetricVolume:
		return "volume_snapshots", nil
	case domain.MetricPrice:
		return "price_snapshots", nil
	default:
		return "", fmt.Errorf("postgres: unknown metric %q", metric)
	}
}

// Record appends a single snapshot fact.
func (s *SnapshotStore) Record(ctx context.Context, marketID string, metric domain.Metric, value float64, at time.Time) error {
	table, err := snapshotTable(metric)
	if err != nil {
		return err
	}
	if marketID == "" {
		return fmt.Errorf("postgres: record snapshot: empty market id")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+table+` (market_id, value, recorded_at) VALUES ($1, $2, $3)`,
		marketID, value, at,
	)
	if err != nil {
		return fmt.Errorf("postgres: record %s snapshot for %s: %w", metric, marketID, err)
	}
	return nil
}

// BulkRecordTick writes one tick's volume and price snapshots inside a
// single transaction, using COPY for throughput. Both series commit or
// neither does, so a failed tick never leaves a partial snapshot set behind.
func (s *SnapshotStore) BulkRecordTick(ctx context.Context, volumes, prices []domain.SnapshotEntry, at time.Time) error {
	if len(volumes) == 0 && len(prices) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tick snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := copySnapshots(ctx, tx, "volume_snapshots", volumes, at); err != nil {
		return fmt.Errorf("postgres: copy %d volume snapshots: %w", len(volumes), err)
	}
	if err := copySnapshots(ctx, tx, "price_snapshots", prices, at); err != nil {
		return fmt.Errorf("postgres: copy %d price snapshots: %w", len(prices), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tick snapshot: %w", err)
	}
	return nil
}

func copySnapshots(ctx context.Context, tx pgx.Tx, table string, entries []domain.SnapshotEntry, at time.Time) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{table},
		[]string{"market_id", "value", "recorded_at"},
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			return []any{entries[i].MarketID, entries[i].Value, at}, nil
		}),
	)
	return err
}

// ValueAtOrBefore returns the most recent snapshot value at or before the
// cutoff, or domain.ErrNotFound when the market has no history that old.
func (s *SnapshotStore) ValueAtOrBefore(ctx context.Context, marketID string, metric domain.Metric, cutoff time.Time) (float64, error) {
	table, err := snapshotTable(metric)
	if err != nil {
		return 0, err
	}

	var value float64
	err = s.pool.QueryRow(ctx,
		`SELECT value FROM `+table+`
		 WHERE market_id = $1 AND recorded_at <= $2
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT 1`,
		marketID, cutoff,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: %s value at or before for %s: %w", metric, marketID, err)
	}
	return value, nil
}

// LatestValue returns the most recent snapshot value regardless of cutoff.
func (s *SnapshotStore) LatestValue(ctx context.Context, marketID string, metric domain.Metric) (float64, error) {
	table, err := snapshotTable(metric)
	if err != nil {
		return 0, err
	}

	var value float64
	err = s.pool.QueryRow(ctx,
		`SELECT value FROM `+table+`
		 WHERE market_id = $1
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT 1`,
		marketID,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: latest %s value for %s: %w", metric, marketID, err)
	}
	return value, nil
}

// BulkDelta computes latest - at-or-before(now-window) for every market in
// one query. Markets lacking a snapshot at or before the cutoff are omitted
// from the result map; the ties on recorded_at are broken by insertion
// order via the id column.
func (s *SnapshotStore) BulkDelta(ctx context.Context, marketIDs []string, metric domain.Metric, window time.Duration) (map[string]float64, error) {
	if len(marketIDs) == 0 {
		return map[string]float64{}, nil
	}
	table, err := snapshotTable(metric)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-window)

	rows, err := s.pool.Query(ctx,
		`WITH latest AS (
		     SELECT DISTINCT ON (market_id) market_id, value
		     FROM `+table+`
		     WHERE market_id = ANY($1)
		     ORDER BY market_id, recorded_at DESC, id DESC
		 ),
		 past AS (
		     SELECT DISTINCT ON (market_id) market_id, value
		     FROM `+table+`
		     WHERE market_id = ANY($1) AND recorded_at <= $2
		     ORDER BY market_id, recorded_at DESC, id DESC
		 )
		 SELECT l.market_id, l.value - p.value
		 FROM latest l
		 JOIN past p USING (market_id)`,
		marketIDs, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: bulk %s delta: %w", metric, err)
	}
	defer rows.Close()

	deltas := make(map[string]float64, len(marketIDs))
	for rows.Next() {
		var id string
		var delta float64
		if err := rows.Scan(&id, &delta); err != nil {
			return nil, fmt.Errorf("postgres: scan bulk %s delta: %w", metric, err)
		}
		deltas[id] = delta
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: bulk %s delta rows: %w", metric, err)
	}
	return deltas, nil
}

// RowsBefore returns all snapshot rows older than the cutoff, oldest first,
// for archival before a prune.
func (s *SnapshotStore) RowsBefore(ctx context.Context, metric domain.Metric, cutoff time.Time) ([]domain.SnapshotRow, error) {
	table, err := snapshotTable(metric)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT market_id, value, recorded_at FROM `+table+`
		 WHERE recorded_at < $1
		 ORDER BY recorded_at ASC, id ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s rows before %v: %w", metric, cutoff, err)
	}
	defer rows.Close()

	var out []domain.SnapshotRow
	for rows.Next() {
		var r domain.SnapshotRow
		if err := rows.Scan(&r.MarketID, &r.Value, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan %s row: %w", metric, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows before: %w", metric, err)
	}
	return out, nil
}

// PruneBefore deletes snapshot rows older than the cutoff and returns the
// number removed.
func (s *SnapshotStore) PruneBefore(ctx context.Context, metric domain.Metric, cutoff time.Time) (int64, error) {
	table, err := snapshotTable(metric)
	if err != nil {
		return 0, err
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+table+` WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: prune %s snapshots: %w", metric, err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the total number of snapshot rows across both series.
func (s *SnapshotStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM volume_snapshots) + (SELECT COUNT(*) FROM price_snapshots)`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count snapshots: %w", err)
	}
	return count, nil
}

// Compile-time interface check.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)
