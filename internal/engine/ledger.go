package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/grifflabs/marketpulse/internal/config"
	"github.com/grifflabs/marketpulse/internal/domain"
)

// Resolver decides, per recipient, which candidate signals actually go out.
// It enforces three rules on top of the detectors:
//
//  1. A recipient hears about a (market, family) once, unless the price has
//     moved at least the materiality threshold since the recorded trigger.
//  2. A market alerted under any family inside the recent window is not
//     re-told as a different family, under the same materiality override.
//  3. Within one cycle a market alerts under at most one family, the
//     earliest in the priority order; each family's batch is capped, with
//     the overflow counted rather than dropped silently.
type Resolver struct {
	ledger domain.LedgerStore
	cfg    config.DedupConfig
}

// NewResolver builds a Resolver over the given delivery ledger.
func NewResolver(ledger domain.LedgerStore, cfg config.DedupConfig) *Resolver {
	return &Resolver{ledger: ledger, cfg: cfg}
}

// Resolve filters one recipient's candidates against their delivery history
// and returns the batches to send plus the ledger records to persist once
// sending succeeds. Batches come back in family priority order.
func (r *Resolver) Resolve(
	ctx context.Context,
	recipientID string,
	candidates map[domain.SignalFamily][]domain.CandidateSignal,
	now time.Time,
) ([]domain.DeliveryBatch, []domain.DeliveryRecord, error) {
	marketIDs := make([]string, 0, 64)
	seen := make(map[string]bool)
	for _, signals := range candidates {
		for _, s := range signals {
			if !seen[s.MarketID] {
				seen[s.MarketID] = true
				marketIDs = append(marketIDs, s.MarketID)
			}
		}
	}
	if len(marketIDs) == 0 {
		return nil, nil, nil
	}

	latest, err := r.ledger.LatestDeliveries(ctx, recipientID, marketIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: resolve %s: %w", recipientID, err)
	}
	recentWindow := time.Duration(r.cfg.RecentWindowHours) * time.Hour
	recent, err := r.ledger.RecentlyAlerted(ctx, recipientID, recentWindow)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: resolve %s: %w", recipientID, err)
	}

	var batches []domain.DeliveryBatch
	var records []domain.DeliveryRecord

	// claimed is the cycle's working set: once a market is spoken for, no
	// later family may claim it this cycle, delivered or capped out.
	claimed := make(map[string]bool)

	for _, family := range domain.FamilyPriority {
		var accepted []domain.CandidateSignal
		for _, s := range candidates[family] {
			if claimed[s.MarketID] {
				continue
			}
			if rec, ok := latest[domain.DeliveryKey{MarketID: s.MarketID, Family: family}]; ok {
				if !r.material(s.Price, rec.TriggerPrice) {
					continue
				}
			}
			if rec, ok := recent[s.MarketID]; ok {
				if !r.material(s.Price, rec.TriggerPrice) {
					continue
				}
			}
			claimed[s.MarketID] = true
			accepted = append(accepted, s)
		}
		if len(accepted) == 0 {
			continue
		}

		truncated := 0
		if len(accepted) > r.cfg.CapPerFamily {
			truncated = len(accepted) - r.cfg.CapPerFamily
			accepted = accepted[:r.cfg.CapPerFamily]
		}

		batches = append(batches, domain.DeliveryBatch{
			RecipientID: recipientID,
			Family:      family,
			Signals:     accepted,
			Truncated:   truncated,
		})
		for _, s := range accepted {
			records = append(records, domain.DeliveryRecord{
				RecipientID:  recipientID,
				MarketID:     s.MarketID,
				Family:       family,
				TriggerPrice: s.Price,
				DeliveredAt:  now,
			})
		}
	}

	return batches, records, nil
}

// material reports whether the price has moved enough since the recorded
// trigger to justify repeating a story.
func (r *Resolver) material(price, triggerPrice float64) bool {
	return math.Abs(price-triggerPrice) >= r.cfg.MaterialityPoints
}
