package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grifflabs/marketpulse/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// LatestDeliveries returns the most recent delivery per (market, family) for
// the recipient, restricted to the given markets.
func (s *LedgerStore) LatestDeliveries(ctx context.Context, recipientID string, marketIDs []string) (map[domain.DeliveryKey]domain.DeliveryRecord, error) {
	if len(marketIDs) == 0 {
		return map[domain.DeliveryKey]domain.DeliveryRecord{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (market_id, family)
		        recipient_id, market_id, family, trigger_price, delivered_at
		 FROM alert_deliveries
		 WHERE recipient_id = $1 AND market_id = ANY($2)
		 ORDER BY market_id, family, delivered_at DESC, id DESC`,
		recipientID, marketIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest deliveries: %w", err)
	}
	defer rows.Close()

	latest := make(map[domain.DeliveryKey]domain.DeliveryRecord)
	for rows.Next() {
		var r domain.DeliveryRecord
		if err := rows.Scan(&r.RecipientID, &r.MarketID, &r.Family, &r.TriggerPrice, &r.DeliveredAt); err != nil {
			return nil, fmt.Errorf("postgres: scan delivery: %w", err)
		}
		latest[domain.DeliveryKey{MarketID: r.MarketID, Family: r.Family}] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: latest deliveries rows: %w", err)
	}
	return latest, nil
}

// RecentlyAlerted returns the most recent delivery per market, any family,
// inside the window. The engine uses it to suppress a second family telling
// the same story about a market that was just alerted.
func (s *LedgerStore) RecentlyAlerted(ctx context.Context, recipientID string, window time.Duration) (map[string]domain.DeliveryRecord, error) {
	cutoff := time.Now().UTC().Add(-window)

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (market_id)
		        recipient_id, market_id, family, trigger_price, delivered_at
		 FROM alert_deliveries
		 WHERE recipient_id = $1 AND delivered_at >= $2
		 ORDER BY market_id, delivered_at DESC, id DESC`,
		recipientID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: recently alerted: %w", err)
	}
	defer rows.Close()

	recent := make(map[string]domain.DeliveryRecord)
	for rows.Next() {
		var r domain.DeliveryRecord
		if err := rows.Scan(&r.RecipientID, &r.MarketID, &r.Family, &r.TriggerPrice, &r.DeliveredAt); err != nil {
			return nil, fmt.Errorf("postgres: scan recent delivery: %w", err)
		}
		recent[r.MarketID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: recently alerted rows: %w", err)
	}
	return recent, nil
}

// RecordBulk appends delivery records in one round trip. Called only after
// the corresponding notifications went out.
func (s *LedgerStore) RecordBulk(ctx context.Context, records []domain.DeliveryRecord) error {
	if len(records) == 0 {
		return nil
	}

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"alert_deliveries"},
		[]string{"recipient_id", "market_id", "family", "trigger_price", "delivered_at"},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{r.RecipientID, r.MarketID, string(r.Family), r.TriggerPrice, r.DeliveredAt}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("postgres: record deliveries: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LedgerStore = (*LedgerStore)(nil)
