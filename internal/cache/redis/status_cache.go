package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grifflabs/marketpulse/internal/domain"
)

const (
	statusKey = "engine:last_cycle"
	statusTTL = 24 * time.Hour
)

// StatusCache implements domain.StatusCache using a single JSON-serialized
// Redis key holding the most recent cycle's stats.
type StatusCache struct {
	rdb *redis.Client
}

// NewStatusCache creates a StatusCache backed by the given Client.
func NewStatusCache(c *Client) *StatusCache {
	return &StatusCache{rdb: c.Underlying()}
}

// SetStats stores the stats of the latest completed cycle.
func (sc *StatusCache) SetStats(ctx context.Context, stats domain.CycleStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("redis: marshal cycle stats: %w", err)
	}
	if err := sc.rdb.Set(ctx, statusKey, data, statusTTL).Err(); err != nil {
		return fmt.Errorf("redis: set cycle stats: %w", err)
	}
	return nil
}

// GetStats retrieves the latest cycle's stats.
// It returns domain.ErrNotFound when no cycle has completed yet.
func (sc *StatusCache) GetStats(ctx context.Context) (domain.CycleStats, error) {
	data, err := sc.rdb.Get(ctx, statusKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CycleStats{}, domain.ErrNotFound
		}
		return domain.CycleStats{}, fmt.Errorf("redis: get cycle stats: %w", err)
	}

	var stats domain.CycleStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return domain.CycleStats{}, fmt.Errorf("redis: unmarshal cycle stats: %w", err)
	}
	return stats, nil
}

// Compile-time interface check.
var _ domain.StatusCache = (*StatusCache)(nil)
