package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/grifflabs/marketpulse/internal/domain"
)

// Deliverer sends one recipient's family batch out over a notification
// channel. Implementations live in internal/notify.
type Deliverer interface {
	Deliver(ctx context.Context, batch domain.DeliveryBatch) error
}

// CycleDeps collects everything one cycle needs. All fields are required
// except Log, which defaults to slog.Default.
type CycleDeps struct {
	Log        *slog.Logger
	Fetcher    domain.ListingsFetcher
	Snapshots  domain.SnapshotStore
	Baselines  domain.BaselineStore
	Ledger     domain.LedgerStore
	Status     domain.StatusCache
	Deliverer  Deliverer
	Filter     *Filter
	Detectors  *Detectors
	Resolver   *Resolver
	ScanTarget int
	Recipients []string
}

// Cycle runs one complete poll: fetch, filter, snapshot, detect, resolve,
// deliver, write back. It holds no per-run state and is safe to reuse.
type Cycle struct {
	deps CycleDeps
	log  *slog.Logger
}

// NewCycle builds a Cycle from its dependencies.
func NewCycle(deps CycleDeps) *Cycle {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Cycle{
		deps: deps,
		log:  log.With(slog.String("component", "cycle")),
	}
}

// Run executes one cycle and returns its stats. Fetch and snapshot failures
// abort the cycle: no partial data may enter the history, and detectors must
// not run against a half-written tick. Later stages degrade per item
// instead.
func (c *Cycle) Run(ctx context.Context) (domain.CycleStats, error) {
	now := time.Now().UTC()
	stats := domain.CycleStats{
		CycleID:    uuid.New().String(),
		StartedAt:  now,
		Candidates: make(map[domain.SignalFamily]int),
	}
	log := c.log.With(slog.String("cycle_id", stats.CycleID))

	err := c.run(ctx, now, log, &stats)
	stats.Duration = time.Since(now)
	if err != nil {
		stats.Error = err.Error()
	}
	c.publishStats(ctx, log, stats)

	if err != nil {
		return stats, err
	}
	log.Info("cycle complete",
		slog.Int("markets", stats.MarketsScanned),
		slog.Int("excluded", stats.Excluded),
		slog.Int("alerts", stats.AlertsSent),
		slog.Duration("took", stats.Duration))
	return stats, nil
}

func (c *Cycle) run(ctx context.Context, now time.Time, log *slog.Logger, stats *domain.CycleStats) error {
	markets, err := c.deps.Fetcher.FetchAll(ctx, c.deps.ScanTarget)
	if err != nil {
		return fmt.Errorf("engine: fetch listings: %w", err)
	}
	stats.MarketsScanned = len(markets)

	kept, excluded := c.deps.Filter.Apply(markets)
	stats.Excluded = excluded

	ids := make([]string, len(kept))
	volumes := make([]domain.SnapshotEntry, len(kept))
	prices := make([]domain.SnapshotEntry, len(kept))
	for i, m := range kept {
		ids[i] = m.ID
		volumes[i] = domain.SnapshotEntry{MarketID: m.ID, Value: m.Volume}
		prices[i] = domain.SnapshotEntry{MarketID: m.ID, Value: m.YesPrice}
	}

	if err := c.deps.Snapshots.BulkRecordTick(ctx, volumes, prices, now); err != nil {
		return fmt.Errorf("engine: record tick snapshots: %w", err)
	}

	seeded, err := c.deps.Baselines.IsSeeded(ctx)
	if err != nil {
		return fmt.Errorf("engine: read seeded flag: %w", err)
	}
	if !seeded {
		stats.Seeded = true
		return c.seed(ctx, log, kept, volumes)
	}

	baselines, err := c.deps.Baselines.GetBulk(ctx, ids)
	if err != nil {
		return fmt.Errorf("engine: load baselines: %w", err)
	}
	crossed, err := c.deps.Baselines.CrossedBulk(ctx, ids)
	if err != nil {
		return fmt.Errorf("engine: load crossings: %w", err)
	}

	view := &View{
		Now:       now,
		Markets:   kept,
		Baselines: baselines,
		Crossed:   crossed,
	}
	if err := c.loadDeltas(ctx, view, ids); err != nil {
		return err
	}

	candidates, crossings := c.detect(log, view)
	for family, signals := range candidates {
		stats.Candidates[family] = len(signals)
	}

	// Crossing facts persist even when nothing will be delivered; the
	// threshold ledger is history, not notification state.
	if err := c.deps.Baselines.RecordCrossingsBulk(ctx, crossings); err != nil {
		log.Error("record crossings failed", slog.Any("error", err))
	}

	c.fanOut(ctx, now, log, candidates, stats)

	// Baselines advance only after detection so next cycle's deltas compare
	// against this tick, not against themselves.
	if err := c.deps.Baselines.UpsertBulk(ctx, volumes); err != nil {
		return fmt.Errorf("engine: write baselines: %w", err)
	}
	return nil
}

// seed performs the first-ever pass: every threshold already satisfied is
// recorded with no alert, so a fresh deployment does not announce the entire
// existing market catalog as news.
func (c *Cycle) seed(ctx context.Context, log *slog.Logger, markets []domain.Market, volumes []domain.SnapshotEntry) error {
	_, crossings := c.deps.Detectors.Milestone(&View{
		Markets: markets,
		Crossed: map[string]map[float64]bool{},
	})
	if err := c.deps.Baselines.RecordCrossingsBulk(ctx, crossings); err != nil {
		return fmt.Errorf("engine: seed crossings: %w", err)
	}
	if err := c.deps.Baselines.UpsertBulk(ctx, volumes); err != nil {
		return fmt.Errorf("engine: seed baselines: %w", err)
	}
	if err := c.deps.Baselines.MarkSeeded(ctx); err != nil {
		return fmt.Errorf("engine: mark seeded: %w", err)
	}
	log.Info("baseline seed pass complete",
		slog.Int("markets", len(markets)),
		slog.Int("crossings", len(crossings)))
	return nil
}

// loadDeltas bulk-fetches every delta window the detectors will consult,
// volume and price in parallel.
func (c *Cycle) loadDeltas(ctx context.Context, view *View, ids []string) error {
	volWindows, priceWindows := c.deps.Detectors.Windows()
	view.VolumeDeltas = make(map[time.Duration]map[string]float64, len(volWindows))
	view.PriceDeltas = make(map[time.Duration]map[string]float64, len(priceWindows))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range volWindows {
		w := w
		g.Go(func() error {
			deltas, err := c.deps.Snapshots.BulkDelta(gctx, ids, domain.MetricVolume, w)
			if err != nil {
				return fmt.Errorf("engine: volume deltas %s: %w", w, err)
			}
			mu.Lock()
			view.VolumeDeltas[w] = deltas
			mu.Unlock()
			return nil
		})
	}
	for _, w := range priceWindows {
		w := w
		g.Go(func() error {
			deltas, err := c.deps.Snapshots.BulkDelta(gctx, ids, domain.MetricPrice, w)
			if err != nil {
				return fmt.Errorf("engine: price deltas %s: %w", w, err)
			}
			mu.Lock()
			view.PriceDeltas[w] = deltas
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// detect runs every family, isolating panics: one misbehaving detector costs
// its own family for the cycle, never the whole tick.
func (c *Cycle) detect(log *slog.Logger, view *View) (map[domain.SignalFamily][]domain.CandidateSignal, []domain.Crossing) {
	d := c.deps.Detectors
	out := make(map[domain.SignalFamily][]domain.CandidateSignal)
	var crossings []domain.Crossing

	safe := func(family domain.SignalFamily, fn func(*View) []domain.CandidateSignal) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("detector panicked",
					slog.String("family", string(family)),
					slog.Any("panic", r))
			}
		}()
		out[family] = fn(view)
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("detector panicked",
					slog.String("family", string(domain.FamilyMilestone)),
					slog.Any("panic", r))
			}
		}()
		out[domain.FamilyMilestone], crossings = d.Milestone(view)
	}()

	safe(domain.FamilyDiscovery, d.Discovery)
	safe(domain.FamilyWakeup, d.Wakeup)
	safe(domain.FamilyFastMover, d.FastMover)
	safe(domain.FamilyBigSwing, d.BigSwing)
	safe(domain.FamilyVelocity, d.VelocitySpike)
	safe(domain.FamilyEarlyHeat, d.EarlyHeat)
	safe(domain.FamilyClosingSoon, d.ClosingSoon)
	safe(domain.FamilyUnderdog, d.Underdog)

	return out, crossings
}

// fanOut resolves and delivers per recipient. Recipients are isolated from
// each other; ledger records are written only for batches that actually went
// out, so a failed send is retried naturally next cycle.
func (c *Cycle) fanOut(
	ctx context.Context,
	now time.Time,
	log *slog.Logger,
	candidates map[domain.SignalFamily][]domain.CandidateSignal,
	stats *domain.CycleStats,
) {
	for _, recipientID := range c.deps.Recipients {
		batches, records, err := c.deps.Resolver.Resolve(ctx, recipientID, candidates, now)
		if err != nil {
			log.Error("resolve failed",
				slog.String("recipient", recipientID),
				slog.Any("error", err))
			continue
		}

		sent := make(map[domain.SignalFamily]bool)
		for _, b := range batches {
			if err := c.deps.Deliverer.Deliver(ctx, b); err != nil {
				log.Error("delivery failed",
					slog.String("recipient", recipientID),
					slog.String("family", string(b.Family)),
					slog.Any("error", err))
				continue
			}
			sent[b.Family] = true
			stats.AlertsSent += len(b.Signals)
			stats.Truncated += b.Truncated
		}

		delivered := records[:0:0]
		for _, r := range records {
			if sent[r.Family] {
				delivered = append(delivered, r)
			}
		}
		if err := c.deps.Ledger.RecordBulk(ctx, delivered); err != nil {
			log.Error("record deliveries failed",
				slog.String("recipient", recipientID),
				slog.Any("error", err))
		}
	}
}

func (c *Cycle) publishStats(ctx context.Context, log *slog.Logger, stats domain.CycleStats) {
	if c.deps.Status == nil {
		return
	}
	if err := c.deps.Status.SetStats(ctx, stats); err != nil {
		log.Warn("publish cycle stats failed", slog.Any("error", err))
	}
}
