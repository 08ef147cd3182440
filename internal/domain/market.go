package domain

import "time"

// Market is one prediction-market listing as observed on a single poll. The
// upstream API omits fields for some markets; optional fields are pointers
// and a nil value excludes the market from detectors that need the field,
// never from the whole batch.
type Market struct {
	ID        string // stable slug
	Title     string
	Volume    float64 // cumulative USD traded
	YesPrice  float64 // 0-100 scale
	Tags      []string
	CreatedAt *time.Time
	EndDate   *time.Time
}

// Resolved reports whether the market price sits within band points of 0 or
// 100, i.e. the outcome is effectively decided.
func (m Market) Resolved(band float64) bool {
	return m.YesPrice <= band || m.YesPrice >= 100-band
}

// Age returns the time since the market's API creation timestamp, and false
// if the timestamp is unknown.
func (m Market) Age(now time.Time) (time.Duration, bool) {
	if m.CreatedAt == nil {
		return 0, false
	}
	return now.Sub(*m.CreatedAt), true
}

// TimeToClose returns the time until the market closes, and false if the
// close timestamp is unknown or already past.
func (m Market) TimeToClose(now time.Time) (time.Duration, bool) {
	if m.EndDate == nil {
		return 0, false
	}
	d := m.EndDate.Sub(now)
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// Baseline is the last-known volume state for a market, one row per market.
type Baseline struct {
	MarketID    string
	LastVolume  float64
	FirstSeenAt time.Time
	UpdatedAt   time.Time
}

// Crossing records that a market's volume has passed a threshold at least
// once. Unique on (MarketID, Threshold) forever.
type Crossing struct {
	MarketID         string
	Threshold        float64
	VolumeAtCrossing float64
}
