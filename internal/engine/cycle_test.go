package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/grifflabs/marketpulse/internal/config"
	"github.com/grifflabs/marketpulse/internal/domain"
)

type fakeFetcher struct {
	markets []domain.Market
	err     error
}

func (f *fakeFetcher) FetchAll(context.Context, int) ([]domain.Market, error) {
	return f.markets, f.err
}

// memSnapshots keeps appended entries per metric and serves no deltas, which
// makes every delta-driven detector skip. The milestone, discovery, and
// delivery paths are what the cycle tests exercise.
type memSnapshots struct {
	recorded map[domain.Metric][]domain.SnapshotEntry
	err      error
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{recorded: make(map[domain.Metric][]domain.SnapshotEntry)}
}

func (s *memSnapshots) Record(_ context.Context, marketID string, metric domain.Metric, value float64, _ time.Time) error {
	s.recorded[metric] = append(s.recorded[metric], domain.SnapshotEntry{MarketID: marketID, Value: value})
	return s.err
}

func (s *memSnapshots) BulkRecordTick(_ context.Context, volumes, prices []domain.SnapshotEntry, _ time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.recorded[domain.MetricVolume] = append(s.recorded[domain.MetricVolume], volumes...)
	s.recorded[domain.MetricPrice] = append(s.recorded[domain.MetricPrice], prices...)
	return nil
}

func (s *memSnapshots) ValueAtOrBefore(context.Context, string, domain.Metric, time.Time) (float64, error) {
	return 0, domain.ErrNotFound
}

func (s *memSnapshots) LatestValue(context.Context, string, domain.Metric) (float64, error) {
	return 0, domain.ErrNotFound
}

func (s *memSnapshots) BulkDelta(context.Context, []string, domain.Metric, time.Duration) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (s *memSnapshots) RowsBefore(context.Context, domain.Metric, time.Time) ([]domain.SnapshotRow, error) {
	return nil, nil
}

func (s *memSnapshots) PruneBefore(context.Context, domain.Metric, time.Time) (int64, error) {
	return 0, nil
}

func (s *memSnapshots) Count(context.Context) (int64, error) { return 0, nil }

type memBaselines struct {
	baselines map[string]domain.Baseline
	crossed   map[string]map[float64]bool
	seeded    bool
}

func newMemBaselines() *memBaselines {
	return &memBaselines{
		baselines: make(map[string]domain.Baseline),
		crossed:   make(map[string]map[float64]bool),
	}
}

func (b *memBaselines) GetBulk(_ context.Context, marketIDs []string) (map[string]domain.Baseline, error) {
	out := make(map[string]domain.Baseline)
	for _, id := range marketIDs {
		if bl, ok := b.baselines[id]; ok {
			out[id] = bl
		}
	}
	return out, nil
}

func (b *memBaselines) UpsertBulk(_ context.Context, entries []domain.SnapshotEntry) error {
	for _, e := range entries {
		prev, ok := b.baselines[e.MarketID]
		if !ok {
			prev = domain.Baseline{MarketID: e.MarketID, FirstSeenAt: testNow}
		}
		prev.LastVolume = e.Value
		prev.UpdatedAt = testNow
		b.baselines[e.MarketID] = prev
	}
	return nil
}

func (b *memBaselines) CrossedThresholds(_ context.Context, marketID string) (map[float64]bool, error) {
	return b.crossed[marketID], nil
}

func (b *memBaselines) CrossedBulk(_ context.Context, marketIDs []string) (map[string]map[float64]bool, error) {
	out := make(map[string]map[float64]bool)
	for _, id := range marketIDs {
		if c, ok := b.crossed[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (b *memBaselines) RecordCrossing(_ context.Context, c domain.Crossing) error {
	if b.crossed[c.MarketID] == nil {
		b.crossed[c.MarketID] = make(map[float64]bool)
	}
	b.crossed[c.MarketID][c.Threshold] = true
	return nil
}

func (b *memBaselines) RecordCrossingsBulk(ctx context.Context, crossings []domain.Crossing) error {
	for _, c := range crossings {
		if err := b.RecordCrossing(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (b *memBaselines) IsSeeded(context.Context) (bool, error) { return b.seeded, nil }
func (b *memBaselines) MarkSeeded(context.Context) error       { b.seeded = true; return nil }

type fakeDeliverer struct {
	batches []domain.DeliveryBatch
	err     error
}

func (d *fakeDeliverer) Deliver(_ context.Context, b domain.DeliveryBatch) error {
	if d.err != nil {
		return d.err
	}
	d.batches = append(d.batches, b)
	return nil
}

type cycleFixture struct {
	cycle     *Cycle
	fetcher   *fakeFetcher
	snapshots *memSnapshots
	baselines *memBaselines
	ledger    *fakeLedger
	deliverer *fakeDeliverer
}

func newCycleFixture(markets ...domain.Market) *cycleFixture {
	cfg := config.Defaults()
	f := &cycleFixture{
		fetcher:   &fakeFetcher{markets: markets},
		snapshots: newMemSnapshots(),
		baselines: newMemBaselines(),
		ledger:    &fakeLedger{},
		deliverer: &fakeDeliverer{},
	}
	f.cycle = NewCycle(CycleDeps{
		Fetcher:    f.fetcher,
		Snapshots:  f.snapshots,
		Baselines:  f.baselines,
		Ledger:     f.ledger,
		Deliverer:  f.deliverer,
		Filter:     NewFilter(cfg.Engine),
		Detectors:  NewDetectors(cfg.Detectors),
		Resolver:   NewResolver(f.ledger, cfg.Dedup),
		ScanTarget: 100,
		Recipients: []string{"chan"},
	})
	return f
}

func TestCycleSeedPassIsSilent(t *testing.T) {
	f := newCycleFixture(
		domain.Market{ID: "whale", Title: "Whale", Volume: 300_000, YesPrice: 50},
		domain.Market{ID: "minnow", Title: "Minnow", Volume: 5_000, YesPrice: 50},
	)

	stats, err := f.cycle.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !stats.Seeded {
		t.Fatal("first run should report a seed pass")
	}
	if len(f.deliverer.batches) != 0 {
		t.Fatalf("seed pass delivered %d batches, want 0", len(f.deliverer.batches))
	}
	if !f.baselines.crossed["whale"][100_000] || !f.baselines.crossed["whale"][250_000] {
		t.Fatal("seed pass should record the whale's satisfied thresholds")
	}
	if _, ok := f.baselines.baselines["minnow"]; !ok {
		t.Fatal("seed pass should baseline every kept market")
	}
	if !f.baselines.seeded {
		t.Fatal("seed pass should set the seeded flag")
	}
}

func TestCycleMilestoneAcrossRuns(t *testing.T) {
	f := newCycleFixture(domain.Market{ID: "grower", Title: "Grower", Volume: 80_000, YesPrice: 50})

	// Run 1: seed at $80K.
	if _, err := f.cycle.Run(context.Background()); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	// Run 2: $120K crosses the $100K milestone and alerts.
	f.fetcher.markets[0].Volume = 120_000
	stats, err := f.cycle.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.AlertsSent != 1 {
		t.Fatalf("alerts = %d, want 1", stats.AlertsSent)
	}
	if len(f.deliverer.batches) != 1 || f.deliverer.batches[0].Family != domain.FamilyMilestone {
		t.Fatalf("batches = %v, want one milestone batch", f.deliverer.batches)
	}
	if len(f.ledger.records) != 1 {
		t.Fatalf("ledger records = %d, want 1", len(f.ledger.records))
	}

	// Run 3: $130K crosses nothing new; the crossing ledger keeps it quiet.
	f.fetcher.markets[0].Volume = 130_000
	stats, err = f.cycle.Run(context.Background())
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if stats.AlertsSent != 0 {
		t.Fatalf("alerts = %d, want 0 on re-observation", stats.AlertsSent)
	}
}

func TestCycleDiscoveryAfterSeed(t *testing.T) {
	f := newCycleFixture(domain.Market{ID: "old-hand", Title: "Old", Volume: 40_000, YesPrice: 50})

	if _, err := f.cycle.Run(context.Background()); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	// A recent launch with volume shows up on the next poll.
	created := time.Now().UTC().Add(-12 * time.Hour)
	f.fetcher.markets = append(f.fetcher.markets, domain.Market{
		ID: "fresh-launch", Title: "Fresh", Volume: 30_000, YesPrice: 50, CreatedAt: &created,
	})

	stats, err := f.cycle.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.AlertsSent != 1 {
		t.Fatalf("alerts = %d, want 1 discovery", stats.AlertsSent)
	}
	if f.deliverer.batches[0].Family != domain.FamilyDiscovery {
		t.Fatalf("family = %s, want discovery", f.deliverer.batches[0].Family)
	}
	if f.deliverer.batches[0].Signals[0].MarketID != "fresh-launch" {
		t.Fatalf("market = %s, want fresh-launch", f.deliverer.batches[0].Signals[0].MarketID)
	}
}

func TestCycleFetchFailureAborts(t *testing.T) {
	f := newCycleFixture()
	f.fetcher.err = errors.New("upstream down")

	stats, err := f.cycle.Run(context.Background())
	if err == nil {
		t.Fatal("run should fail when the fetch fails")
	}
	if stats.Error == "" {
		t.Fatal("stats should carry the failure")
	}
	if len(f.snapshots.recorded[domain.MetricVolume]) != 0 {
		t.Fatal("no snapshots may be written on a failed fetch")
	}
}

func TestCycleSnapshotFailureAbortsTick(t *testing.T) {
	f := newCycleFixture(domain.Market{ID: "whale", Title: "Whale", Volume: 300_000, YesPrice: 50})
	f.snapshots.err = errors.New("copy failed")

	stats, err := f.cycle.Run(context.Background())
	if err == nil {
		t.Fatal("run should fail when the tick snapshot write fails")
	}
	if stats.Error == "" {
		t.Fatal("stats should carry the failure")
	}
	if len(f.snapshots.recorded[domain.MetricVolume]) != 0 || len(f.snapshots.recorded[domain.MetricPrice]) != 0 {
		t.Fatal("a failed tick write must leave neither series behind")
	}
	if len(f.baselines.baselines) != 0 {
		t.Fatal("baselines must not advance past a failed tick write")
	}
	if len(f.deliverer.batches) != 0 {
		t.Fatalf("delivered %d batches after a failed tick write, want 0", len(f.deliverer.batches))
	}
}

func TestCycleFailedDeliveryRetriesNextRun(t *testing.T) {
	f := newCycleFixture(domain.Market{ID: "grower", Title: "Grower", Volume: 80_000, YesPrice: 50})

	if _, err := f.cycle.Run(context.Background()); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	// The milestone fires but the channel is down: nothing is recorded.
	f.fetcher.markets[0].Volume = 120_000
	f.deliverer.err = errors.New("channel down")
	if _, err := f.cycle.Run(context.Background()); err != nil {
		t.Fatalf("failed-delivery run: %v", err)
	}
	if len(f.ledger.records) != 0 {
		t.Fatalf("ledger records = %d, want 0 after failed delivery", len(f.ledger.records))
	}

	// Channel recovers; the crossing is already recorded so the milestone
	// detector stays quiet, but nothing was falsely marked delivered.
	f.deliverer.err = nil
	if _, err := f.cycle.Run(context.Background()); err != nil {
		t.Fatalf("recovery run: %v", err)
	}
}
