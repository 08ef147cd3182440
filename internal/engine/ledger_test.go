package engine

import (
	"context"
	"testing"
	"time"

	"github.com/grifflabs/marketpulse/internal/config"
	"github.com/grifflabs/marketpulse/internal/domain"
)

// fakeLedger is an in-memory domain.LedgerStore for resolver tests.
type fakeLedger struct {
	records []domain.DeliveryRecord
}

func (f *fakeLedger) LatestDeliveries(_ context.Context, recipientID string, marketIDs []string) (map[domain.DeliveryKey]domain.DeliveryRecord, error) {
	wanted := make(map[string]bool, len(marketIDs))
	for _, id := range marketIDs {
		wanted[id] = true
	}
	out := make(map[domain.DeliveryKey]domain.DeliveryRecord)
	for _, r := range f.records {
		if r.RecipientID != recipientID || !wanted[r.MarketID] {
			continue
		}
		key := domain.DeliveryKey{MarketID: r.MarketID, Family: r.Family}
		if prev, ok := out[key]; !ok || r.DeliveredAt.After(prev.DeliveredAt) {
			out[key] = r
		}
	}
	return out, nil
}

func (f *fakeLedger) RecentlyAlerted(_ context.Context, recipientID string, window time.Duration) (map[string]domain.DeliveryRecord, error) {
	cutoff := testNow.Add(-window)
	out := make(map[string]domain.DeliveryRecord)
	for _, r := range f.records {
		if r.RecipientID != recipientID || r.DeliveredAt.Before(cutoff) {
			continue
		}
		if prev, ok := out[r.MarketID]; !ok || r.DeliveredAt.After(prev.DeliveredAt) {
			out[r.MarketID] = r
		}
	}
	return out, nil
}

func (f *fakeLedger) RecordBulk(_ context.Context, records []domain.DeliveryRecord) error {
	f.records = append(f.records, records...)
	return nil
}

var _ domain.LedgerStore = (*fakeLedger)(nil)

func testResolver(ledger domain.LedgerStore) *Resolver {
	return NewResolver(ledger, config.Defaults().Dedup)
}

func oneCandidate(family domain.SignalFamily, marketID string, price float64) map[domain.SignalFamily][]domain.CandidateSignal {
	return map[domain.SignalFamily][]domain.CandidateSignal{
		family: {{MarketID: marketID, Family: family, Price: price}},
	}
}

func TestResolveFreshSignalDelivers(t *testing.T) {
	r := testResolver(&fakeLedger{})

	batches, records, err := r.Resolve(context.Background(), "chan", oneCandidate(domain.FamilyVelocity, "m1", 40), testNow)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(batches) != 1 || len(batches[0].Signals) != 1 {
		t.Fatalf("batches = %v, want one with one signal", batches)
	}
	if len(records) != 1 || records[0].TriggerPrice != 40 {
		t.Fatalf("records = %v, want one at trigger 40", records)
	}
}

func TestResolveRealertNeedsMaterialMove(t *testing.T) {
	ledger := &fakeLedger{records: []domain.DeliveryRecord{
		{RecipientID: "chan", MarketID: "m1", Family: domain.FamilyVelocity, TriggerPrice: 40, DeliveredAt: testNow.Add(-48 * time.Hour)},
	}}
	r := testResolver(ledger)

	// 5 points since the trigger: suppressed.
	batches, _, err := r.Resolve(context.Background(), "chan", oneCandidate(domain.FamilyVelocity, "m1", 45), testNow)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("batches = %v, want none for a 5-point move", batches)
	}

	// 25 points since the trigger: the override fires a fresh alert.
	batches, records, err := r.Resolve(context.Background(), "chan", oneCandidate(domain.FamilyVelocity, "m1", 65), testNow)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("batches = %v, want one for a 25-point move", batches)
	}
	if records[0].TriggerPrice != 65 {
		t.Fatalf("new trigger = %v, want 65", records[0].TriggerPrice)
	}
}

func TestResolveCrossFamilyRecentWindow(t *testing.T) {
	// Alerted 1h ago as fast_mover at price 50; a velocity candidate at a
	// similar price inside the window is the same story.
	ledger := &fakeLedger{records: []domain.DeliveryRecord{
		{RecipientID: "chan", MarketID: "m1", Family: domain.FamilyFastMover, TriggerPrice: 50, DeliveredAt: testNow.Add(-time.Hour)},
	}}
	r := testResolver(ledger)

	batches, _, err := r.Resolve(context.Background(), "chan", oneCandidate(domain.FamilyVelocity, "m1", 52), testNow)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("batches = %v, want none inside the recent window", batches)
	}

	// Same history, but outside the window: velocity may speak.
	ledger.records[0].DeliveredAt = testNow.Add(-6 * time.Hour)
	batches, _, err = r.Resolve(context.Background(), "chan", oneCandidate(domain.FamilyVelocity, "m1", 52), testNow)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("batches = %v, want one outside the recent window", batches)
	}
}

func TestResolveOneFamilyPerMarketPerCycle(t *testing.T) {
	r := testResolver(&fakeLedger{})

	candidates := map[domain.SignalFamily][]domain.CandidateSignal{
		domain.FamilyMilestone: {{MarketID: "m1", Family: domain.FamilyMilestone, Price: 50}},
		domain.FamilyVelocity:  {{MarketID: "m1", Family: domain.FamilyVelocity, Price: 50}},
	}

	batches, records, err := r.Resolve(context.Background(), "chan", candidates, testNow)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(batches) != 1 || batches[0].Family != domain.FamilyMilestone {
		t.Fatalf("batches = %v, want milestone only", batches)
	}
	if len(records) != 1 || records[0].Family != domain.FamilyMilestone {
		t.Fatalf("records = %v, want the milestone record only", records)
	}
}

func TestResolveCapTruncates(t *testing.T) {
	r := testResolver(&fakeLedger{})

	var signals []domain.CandidateSignal
	for i := 0; i < 14; i++ {
		signals = append(signals, domain.CandidateSignal{
			MarketID: string(rune('a' + i)),
			Family:   domain.FamilyVelocity,
			Price:    50,
		})
	}
	candidates := map[domain.SignalFamily][]domain.CandidateSignal{domain.FamilyVelocity: signals}

	batches, records, err := r.Resolve(context.Background(), "chan", candidates, testNow)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(batches))
	}
	if len(batches[0].Signals) != 10 || batches[0].Truncated != 4 {
		t.Fatalf("got %d signals, truncated %d; want 10 and 4", len(batches[0].Signals), batches[0].Truncated)
	}
	if len(records) != 10 {
		t.Fatalf("records = %d, want only the delivered 10", len(records))
	}
}

func TestResolveIndependentRecipients(t *testing.T) {
	// A delivery to one recipient never suppresses another's.
	ledger := &fakeLedger{records: []domain.DeliveryRecord{
		{RecipientID: "alice", MarketID: "m1", Family: domain.FamilyVelocity, TriggerPrice: 50, DeliveredAt: testNow.Add(-time.Minute)},
	}}
	r := testResolver(ledger)

	batches, _, err := r.Resolve(context.Background(), "bob", oneCandidate(domain.FamilyVelocity, "m1", 50), testNow)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("batches = %v, want one for the untouched recipient", batches)
	}
}
