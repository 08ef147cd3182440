package engine

import (
	"time"

	"github.com/grifflabs/marketpulse/internal/domain"
)

// Milestone finds markets whose cumulative volume has passed configured
// thresholds for the first time ever. It returns one candidate per market
// carrying the highest new threshold, with any lower thresholds passed in
// the same tick listed in AlsoCrossed, plus the crossing facts to persist.
//
// A market with no baseline still gets its crossings recorded, silently: a
// never-tracked market showing up already past $1M is a launch story for the
// discovery family, not a growth story.
func (d *Detectors) Milestone(v *View) ([]domain.CandidateSignal, []domain.Crossing) {
	var signals []domain.CandidateSignal
	var crossings []domain.Crossing

	for _, m := range v.Markets {
		var newly []float64
		for _, t := range d.cfg.Milestone.Thresholds {
			if m.Volume < t {
				break // thresholds are sorted ascending
			}
			if !v.Crossed[m.ID][t] {
				newly = append(newly, t)
			}
		}
		if len(newly) == 0 {
			continue
		}

		for _, t := range newly {
			crossings = append(crossings, domain.Crossing{
				MarketID:         m.ID,
				Threshold:        t,
				VolumeAtCrossing: m.Volume,
			})
		}

		if !v.hasBaseline(m.ID) {
			continue
		}

		highest := newly[len(newly)-1]
		signals = append(signals, domain.CandidateSignal{
			MarketID:    m.ID,
			Family:      domain.FamilyMilestone,
			Title:       m.Title,
			Price:       m.YesPrice,
			Volume:      m.Volume,
			Threshold:   highest,
			AlsoCrossed: newly[:len(newly)-1],
		})
	}

	sortByScore(signals, func(s domain.CandidateSignal) float64 { return s.Threshold })
	return signals, crossings
}

// Discovery finds markets seen for the first time that launched recently and
// already carry real volume. A market with no creation timestamp cannot
// prove recency and is skipped.
func (d *Detectors) Discovery(v *View) []domain.CandidateSignal {
	recency := time.Duration(d.cfg.Discovery.RecencyHours) * time.Hour

	var signals []domain.CandidateSignal
	for _, m := range v.Markets {
		if v.hasBaseline(m.ID) {
			continue
		}
		if m.Volume < d.cfg.Discovery.MinVolume {
			continue
		}
		age, ok := m.Age(v.Now)
		if !ok || age > recency {
			continue
		}

		signals = append(signals, domain.CandidateSignal{
			MarketID: m.ID,
			Family:   domain.FamilyDiscovery,
			Title:    m.Title,
			Price:    m.YesPrice,
			Volume:   m.Volume,
			Age:      age,
		})
	}

	sortByScore(signals, func(s domain.CandidateSignal) float64 { return s.Volume })
	return signals
}

// VelocitySpike finds markets trading dollars-per-hour at or above the
// lowest configured rung. The candidate carries the highest rung reached.
func (d *Detectors) VelocitySpike(v *View) []domain.CandidateSignal {
	rungs := d.cfg.Velocity.Rungs
	if len(rungs) == 0 {
		return nil
	}
	window := d.velocityWindow()

	var signals []domain.CandidateSignal
	for _, m := range v.Markets {
		delta, ok := v.volumeDelta(m.ID, window)
		if !ok {
			continue
		}
		vel := Velocity(delta, window)

		var rung float64
		for _, r := range rungs {
			if vel >= r {
				rung = r
			}
		}
		if rung == 0 {
			continue
		}

		signals = append(signals, domain.CandidateSignal{
			MarketID:    m.ID,
			Family:      domain.FamilyVelocity,
			Title:       m.Title,
			Price:       m.YesPrice,
			Volume:      m.Volume,
			Threshold:   rung,
			VolumeDelta: delta,
			Velocity:    vel,
			VelocityPct: VelocityPct(delta, m.Volume, window),
			Window:      window,
		})
	}

	sortByScore(signals, func(s domain.CandidateSignal) float64 { return s.Velocity })
	return signals
}

// Wakeup finds markets that traded quietly over the long window and then
// spiked inside the short one. Quiet is measured on the span before the hot
// window so the spike cannot drown its own baseline. Both windows need
// snapshot history; a market missing either is skipped.
func (d *Detectors) Wakeup(v *View) []domain.CandidateSignal {
	quietWindow := time.Duration(d.cfg.Wakeup.QuietWindowHours) * time.Hour
	hotWindow := time.Duration(d.cfg.Wakeup.HotWindowHours) * time.Hour
	if quietWindow <= hotWindow {
		return nil
	}

	var signals []domain.CandidateSignal
	for _, m := range v.Markets {
		quietDelta, ok := v.volumeDelta(m.ID, quietWindow)
		if !ok {
			continue
		}
		hotDelta, ok := v.volumeDelta(m.ID, hotWindow)
		if !ok {
			continue
		}

		quietPct := VelocityPct(quietDelta-hotDelta, m.Volume, quietWindow-hotWindow)
		hotPct := VelocityPct(hotDelta, m.Volume, hotWindow)
		if quietPct >= d.cfg.Wakeup.QuietPctPerHour || hotPct < d.cfg.Wakeup.HotPctPerHour {
			continue
		}

		signals = append(signals, domain.CandidateSignal{
			MarketID:    m.ID,
			Family:      domain.FamilyWakeup,
			Title:       m.Title,
			Price:       m.YesPrice,
			Volume:      m.Volume,
			VolumeDelta: hotDelta,
			Velocity:    Velocity(hotDelta, hotWindow),
			VelocityPct: hotPct,
			Window:      hotWindow,
		})
	}

	sortByScore(signals, func(s domain.CandidateSignal) float64 { return s.VelocityPct })
	return signals
}
