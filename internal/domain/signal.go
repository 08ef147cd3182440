package domain

import "time"

// SignalFamily is the category of a detected condition. It is part of the
// dedup key: each recipient sees each (market, family) at most once unless
// the re-alert override fires.
type SignalFamily string

const (
	FamilyMilestone   SignalFamily = "milestone"
	FamilyDiscovery   SignalFamily = "discovery"
	FamilyVelocity    SignalFamily = "velocity"
	FamilyWakeup      SignalFamily = "wakeup"
	FamilyFastMover   SignalFamily = "fast_mover"
	FamilyBigSwing    SignalFamily = "big_swing"
	FamilyEarlyHeat   SignalFamily = "early_heat"
	FamilyClosingSoon SignalFamily = "closing_soon"
	FamilyUnderdog    SignalFamily = "underdog"
)

// FamilyPriority is the fixed order in which candidates are resolved against
// the dedup ledger. When one market fires under several families in a single
// cycle, a recipient is told the story once, under the earliest family here.
var FamilyPriority = []SignalFamily{
	FamilyMilestone,
	FamilyDiscovery,
	FamilyWakeup,
	FamilyFastMover,
	FamilyBigSwing,
	FamilyVelocity,
	FamilyEarlyHeat,
	FamilyClosingSoon,
	FamilyUnderdog,
}

// CandidateSignal is a detector's verdict on one market for one family. It
// lives for a single cycle: detectors produce it, the ledger filters it, the
// delivery layer formats it. Only the metric fields relevant to the family
// are populated.
type CandidateSignal struct {
	MarketID string
	Family   SignalFamily
	Title    string
	Price    float64 // 0-100 at detection time; also the re-alert reference
	Volume   float64

	Threshold   float64   // milestone / velocity rung
	AlsoCrossed []float64 // lower milestones crossed the same tick
	PriceDelta  float64
	VolumeDelta float64
	Velocity    float64 // USD per hour
	VelocityPct float64 // % of total volume per hour
	Window      time.Duration
	Age         time.Duration // discovery / early heat
	ClosesIn    time.Duration // closing soon
}

// DeliveryBatch is one recipient's bundle for one family in one cycle.
// Truncated counts candidates dropped by the per-family cap; it is surfaced
// so the caller can render "+N more", never silently lost.
type DeliveryBatch struct {
	RecipientID string
	Family      SignalFamily
	Signals     []CandidateSignal
	Truncated   int
}

// DeliveryRecord is the persisted fact that a recipient was told about a
// (market, family). TriggerPrice is kept so a later cycle can re-alert when
// the price has moved materially since.
type DeliveryRecord struct {
	RecipientID  string
	MarketID     string
	Family       SignalFamily
	TriggerPrice float64
	DeliveredAt  time.Time
}

// DeliveryKey identifies a ledger entry within one recipient's history.
type DeliveryKey struct {
	MarketID string
	Family   SignalFamily
}

// CycleStats summarizes one tick for diagnostics. A stuck or silently
// failing deployment is visible from these counters without log access.
type CycleStats struct {
	CycleID        string               `json:"cycle_id"`
	StartedAt      time.Time            `json:"started_at"`
	Duration       time.Duration        `json:"duration"`
	MarketsScanned int                  `json:"markets_scanned"`
	Excluded       int                  `json:"excluded"`
	Candidates     map[SignalFamily]int `json:"candidates"`
	AlertsSent     int                  `json:"alerts_sent"`
	Truncated      int                  `json:"truncated"`
	Seeded         bool                 `json:"seeded"`
	Error          string               `json:"error,omitempty"`
}
