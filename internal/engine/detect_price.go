package engine

import (
	"math"
	"time"

	"github.com/grifflabs/marketpulse/internal/domain"
)

// FastMover finds sharp price moves backed by money. The volume-delta
// confirmation keeps thin markets from alerting on a single trade; markets
// already holding BypassVolume or more in total are liquid enough that the
// confirmation is waived.
func (d *Detectors) FastMover(v *View) []domain.CandidateSignal {
	window := time.Duration(d.cfg.FastMover.WindowHours) * time.Hour

	var signals []domain.CandidateSignal
	for _, m := range v.Markets {
		priceDelta, ok := v.priceDelta(m.ID, window)
		if !ok || math.Abs(priceDelta) < d.cfg.FastMover.PricePoints {
			continue
		}

		volDelta, ok := v.volumeDelta(m.ID, window)
		confirmed := ok && volDelta >= d.cfg.FastMover.VolumeDelta
		if !confirmed && m.Volume < d.cfg.FastMover.BypassVolume {
			continue
		}

		signals = append(signals, domain.CandidateSignal{
			MarketID:    m.ID,
			Family:      domain.FamilyFastMover,
			Title:       m.Title,
			Price:       m.YesPrice,
			Volume:      m.Volume,
			PriceDelta:  priceDelta,
			VolumeDelta: volDelta,
			Window:      window,
		})
	}

	sortByScore(signals, func(s domain.CandidateSignal) float64 { return math.Abs(s.PriceDelta) })
	return signals
}

// BigSwing finds outsized price moves over a short window regardless of
// volume. It catches what FastMover's volume gate would hide.
func (d *Detectors) BigSwing(v *View) []domain.CandidateSignal {
	window := time.Duration(d.cfg.BigSwing.WindowHours) * time.Hour

	var signals []domain.CandidateSignal
	for _, m := range v.Markets {
		priceDelta, ok := v.priceDelta(m.ID, window)
		if !ok || math.Abs(priceDelta) < d.cfg.BigSwing.PricePoints {
			continue
		}

		signals = append(signals, domain.CandidateSignal{
			MarketID:   m.ID,
			Family:     domain.FamilyBigSwing,
			Title:      m.Title,
			Price:      m.YesPrice,
			Volume:     m.Volume,
			PriceDelta: priceDelta,
			Window:     window,
		})
	}

	sortByScore(signals, func(s domain.CandidateSignal) float64 { return math.Abs(s.PriceDelta) })
	return signals
}

// Underdog finds cheap markets with real volume whose price is climbing.
// Only rises count; a collapse toward zero is not an underdog story.
func (d *Detectors) Underdog(v *View) []domain.CandidateSignal {
	var signals []domain.CandidateSignal
	for _, m := range v.Markets {
		if m.YesPrice > d.cfg.Underdog.MaxPrice || m.Volume < d.cfg.Underdog.MinVolume {
			continue
		}
		priceDelta, ok := v.priceDelta(m.ID, underdogWindow)
		if !ok || priceDelta < d.cfg.Underdog.MinRise {
			continue
		}

		signals = append(signals, domain.CandidateSignal{
			MarketID:   m.ID,
			Family:     domain.FamilyUnderdog,
			Title:      m.Title,
			Price:      m.YesPrice,
			Volume:     m.Volume,
			PriceDelta: priceDelta,
			Window:     underdogWindow,
		})
	}

	sortByScore(signals, func(s domain.CandidateSignal) float64 { return s.PriceDelta })
	return signals
}
