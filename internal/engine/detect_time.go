package engine

import (
	"time"

	"github.com/grifflabs/marketpulse/internal/domain"
)

// EarlyHeat finds young, still-small markets accumulating volume at a high
// relative rate. Age is measured from when the engine first saw the market,
// so a market without a baseline has no age to measure and is skipped.
func (d *Detectors) EarlyHeat(v *View) []domain.CandidateSignal {
	maxAge := time.Duration(d.cfg.EarlyHeat.MaxAgeHours) * time.Hour
	window := d.velocityWindow()

	var signals []domain.CandidateSignal
	for _, m := range v.Markets {
		b, ok := v.Baselines[m.ID]
		if !ok {
			continue
		}
		age := v.Now.Sub(b.FirstSeenAt)
		if age > maxAge {
			continue
		}
		if m.Volume > d.cfg.EarlyHeat.MaxVolume {
			continue
		}

		delta, ok := v.volumeDelta(m.ID, window)
		if !ok {
			continue
		}
		pct := VelocityPct(delta, m.Volume, window)
		if pct < d.cfg.EarlyHeat.MinVelocityPct {
			continue
		}

		signals = append(signals, domain.CandidateSignal{
			MarketID:    m.ID,
			Family:      domain.FamilyEarlyHeat,
			Title:       m.Title,
			Price:       m.YesPrice,
			Volume:      m.Volume,
			VolumeDelta: delta,
			Velocity:    Velocity(delta, window),
			VelocityPct: pct,
			Window:      window,
			Age:         age,
		})
	}

	sortByScore(signals, func(s domain.CandidateSignal) float64 { return s.VelocityPct })
	return signals
}

// ClosingSoon finds markets near their close time that are still trading
// briskly. Markets with no close timestamp, or already past it, are skipped.
func (d *Detectors) ClosingSoon(v *View) []domain.CandidateSignal {
	horizon := time.Duration(d.cfg.ClosingSoon.WindowHours) * time.Hour
	window := d.velocityWindow()

	var signals []domain.CandidateSignal
	for _, m := range v.Markets {
		closesIn, ok := m.TimeToClose(v.Now)
		if !ok || closesIn > horizon {
			continue
		}

		delta, ok := v.volumeDelta(m.ID, window)
		if !ok {
			continue
		}
		vel := Velocity(delta, window)
		if vel < d.cfg.ClosingSoon.MinVelocity {
			continue
		}

		signals = append(signals, domain.CandidateSignal{
			MarketID:    m.ID,
			Family:      domain.FamilyClosingSoon,
			Title:       m.Title,
			Price:       m.YesPrice,
			Volume:      m.Volume,
			VolumeDelta: delta,
			Velocity:    vel,
			Window:      window,
			ClosesIn:    closesIn,
		})
	}

	// Soonest close first; velocity breaks the tie indirectly via market ID.
	sortByScore(signals, func(s domain.CandidateSignal) float64 { return -s.ClosesIn.Seconds() })
	return signals
}
