package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grifflabs/marketpulse/internal/domain"
)

const seededFlag = "volume_baselines_seeded"

// BaselineStore implements domain.BaselineStore using PostgreSQL.
type BaselineStore struct {
	pool *pgxpool.Pool
}

// NewBaselineStore creates a BaselineStore backed by the given pool.
func NewBaselineStore(pool *pgxpool.Pool) *BaselineStore {
	return &BaselineStore{pool: pool}
}

// GetBulk returns baselines for the given markets in one query. Markets
// absent from the map have never been baselined.
func (s *BaselineStore) GetBulk(ctx context.Context, marketIDs []string) (map[string]domain.Baseline, error) {
	if len(marketIDs) == 0 {
		return map[string]domain.Baseline{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT market_id, last_volume, first_seen_at, updated_at
		 FROM volume_baselines
		 WHERE market_id = ANY($1)`,
		marketIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get baselines: %w", err)
	}
	defer rows.Close()

	baselines := make(map[string]domain.Baseline, len(marketIDs))
	for rows.Next() {
		var b domain.Baseline
		if err := rows.Scan(&b.MarketID, &b.LastVolume, &b.FirstSeenAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan baseline: %w", err)
		}
		baselines[b.MarketID] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: get baselines rows: %w", err)
	}
	return baselines, nil
}

// UpsertBulk writes current volumes back as baselines in a single batched
// round trip. first_seen_at is preserved on conflict.
func (s *BaselineStore) UpsertBulk(ctx context.Context, entries []domain.SnapshotEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO volume_baselines (market_id, last_volume, first_seen_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (market_id) DO UPDATE SET
			last_volume = EXCLUDED.last_volume,
			updated_at  = NOW()`

	for _, e := range entries {
		batch.Queue(query, e.MarketID, e.Value)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert baseline batch item %d: %w", i, err)
		}
	}
	return nil
}

// CrossedThresholds returns the thresholds one market has already crossed.
func (s *BaselineStore) CrossedThresholds(ctx context.Context, marketID string) (map[float64]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT threshold FROM threshold_crossings WHERE market_id = $1`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: crossed thresholds for %s: %w", marketID, err)
	}
	defer rows.Close()

	crossed := make(map[float64]bool)
	for rows.Next() {
		var threshold float64
		if err := rows.Scan(&threshold); err != nil {
			return nil, fmt.Errorf("postgres: scan crossing: %w", err)
		}
		crossed[threshold] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: crossed thresholds rows: %w", err)
	}
	return crossed, nil
}

// CrossedBulk returns the thresholds every given market has already crossed,
// one query for the whole set.
func (s *BaselineStore) CrossedBulk(ctx context.Context, marketIDs []string) (map[string]map[float64]bool, error) {
	if len(marketIDs) == 0 {
		return map[string]map[float64]bool{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT market_id, threshold FROM threshold_crossings WHERE market_id = ANY($1)`,
		marketIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: crossed thresholds: %w", err)
	}
	defer rows.Close()

	crossed := make(map[string]map[float64]bool)
	for rows.Next() {
		var id string
		var threshold float64
		if err := rows.Scan(&id, &threshold); err != nil {
			return nil, fmt.Errorf("postgres: scan crossing: %w", err)
		}
		if crossed[id] == nil {
			crossed[id] = make(map[float64]bool)
		}
		crossed[id][threshold] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: crossed thresholds rows: %w", err)
	}
	return crossed, nil
}

// RecordCrossing inserts a crossing fact. Re-inserting an existing
// (market, threshold) pair is a no-op, which is what gives "alert once per
// milestone per market forever" semantics.
func (s *BaselineStore) RecordCrossing(ctx context.Context, c domain.Crossing) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO threshold_crossings (market_id, threshold, volume_at_crossing)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (market_id, threshold) DO NOTHING`,
		c.MarketID, c.Threshold, c.VolumeAtCrossing,
	)
	if err != nil {
		return fmt.Errorf("postgres: record crossing %s/%.0f: %w", c.MarketID, c.Threshold, err)
	}
	return nil
}

// RecordCrossingsBulk inserts many crossing facts in one batched round trip,
// ignoring pairs that already exist. Used for silent baseline seeding.
func (s *BaselineStore) RecordCrossingsBulk(ctx context.Context, crossings []domain.Crossing) error {
	if len(crossings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range crossings {
		batch.Queue(
			`INSERT INTO threshold_crossings (market_id, threshold, volume_at_crossing)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (market_id, threshold) DO NOTHING`,
			c.MarketID, c.Threshold, c.VolumeAtCrossing,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range crossings {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: record crossing batch item %d: %w", i, err)
		}
	}
	return nil
}

// IsSeeded reports whether the initial silent baseline-seeding pass has
// completed.
func (s *BaselineStore) IsSeeded(ctx context.Context) (bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT flag_value FROM system_flags WHERE flag_name = $1`, seededFlag,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("postgres: read seeded flag: %w", err)
	}
	return value == "1", nil
}

// MarkSeeded records that the initial seeding pass has completed.
func (s *BaselineStore) MarkSeeded(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO system_flags (flag_name, flag_value, set_at)
		 VALUES ($1, '1', NOW())
		 ON CONFLICT (flag_name) DO UPDATE SET flag_value = '1', set_at = NOW()`,
		seededFlag,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark seeded: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BaselineStore = (*BaselineStore)(nil)
