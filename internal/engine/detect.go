package engine

import (
	"sort"
	"time"

	"github.com/grifflabs/marketpulse/internal/config"
	"github.com/grifflabs/marketpulse/internal/domain"
)

// View is one cycle's read-only snapshot of everything the detectors need:
// the filtered market batch plus pre-fetched baseline and delta state. Deltas
// are keyed by lookback window; a market absent from a delta map has no
// snapshot old enough, which detectors treat as "skip", never as zero.
type View struct {
	Now          time.Time
	Markets      []domain.Market
	Baselines    map[string]domain.Baseline
	Crossed      map[string]map[float64]bool
	VolumeDeltas map[time.Duration]map[string]float64
	PriceDeltas  map[time.Duration]map[string]float64
}

func (v *View) volumeDelta(marketID string, window time.Duration) (float64, bool) {
	d, ok := v.VolumeDeltas[window][marketID]
	return d, ok
}

func (v *View) priceDelta(marketID string, window time.Duration) (float64, bool) {
	d, ok := v.PriceDeltas[window][marketID]
	return d, ok
}

func (v *View) hasBaseline(marketID string) bool {
	_, ok := v.Baselines[marketID]
	return ok
}

// Detectors evaluates every signal family against a cycle View. Each
// detector is a pure function of its View; detectors never touch storage.
type Detectors struct {
	cfg config.DetectorsConfig
}

// NewDetectors builds the detector set from configuration.
func NewDetectors(cfg config.DetectorsConfig) *Detectors {
	return &Detectors{cfg: cfg}
}

// velocityWindow is the short lookback shared by the velocity-driven
// detectors.
func (d *Detectors) velocityWindow() time.Duration {
	return time.Duration(d.cfg.Velocity.WindowHours) * time.Hour
}

// underdogWindow is the fixed lookback for the underdog price-rise check.
const underdogWindow = 24 * time.Hour

// Windows returns every distinct lookback the detectors will consult, split
// into volume and price windows, so the cycle can bulk-fetch exactly those
// deltas.
func (d *Detectors) Windows() (volume, price []time.Duration) {
	volSet := make(map[time.Duration]bool)
	volSet[d.velocityWindow()] = true
	volSet[time.Duration(d.cfg.Wakeup.QuietWindowHours)*time.Hour] = true
	volSet[time.Duration(d.cfg.Wakeup.HotWindowHours)*time.Hour] = true
	volSet[time.Duration(d.cfg.FastMover.WindowHours)*time.Hour] = true

	priceSet := make(map[time.Duration]bool)
	priceSet[time.Duration(d.cfg.FastMover.WindowHours)*time.Hour] = true
	priceSet[time.Duration(d.cfg.BigSwing.WindowHours)*time.Hour] = true
	priceSet[underdogWindow] = true
	for w := range volSet {
		if w > 0 {
			volume = append(volume, w)
		}
	}
	for w := range priceSet {
		if w > 0 {
			price = append(price, w)
		}
	}
	sort.Slice(volume, func(i, j int) bool { return volume[i] < volume[j] })
	sort.Slice(price, func(i, j int) bool { return price[i] < price[j] })
	return volume, price
}

// sortByScore orders signals by descending score, breaking ties by market ID
// so a cycle's output is reproducible from its inputs.
func sortByScore(signals []domain.CandidateSignal, score func(domain.CandidateSignal) float64) {
	sort.Slice(signals, func(i, j int) bool {
		si, sj := score(signals[i]), score(signals[j])
		if si != sj {
			return si > sj
		}
		return signals[i].MarketID < signals[j].MarketID
	})
}
