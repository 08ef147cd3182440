// Package engine holds the per-cycle signal pipeline: filtering, the signal
// detectors, ledger resolution, and the cycle orchestrator.
package engine

import "time"

// Velocity converts a volume delta over a window into dollars per hour.
// A non-positive window yields 0 rather than a division blowup.
func Velocity(delta float64, window time.Duration) float64 {
	hours := window.Hours()
	if hours <= 0 {
		return 0
	}
	return delta / hours
}

// VelocityPct expresses a volume delta as percent of total volume per hour.
// Zero or negative total volume yields 0; brand-new markets with no traded
// volume must not divide by zero.
func VelocityPct(delta, total float64, window time.Duration) float64 {
	hours := window.Hours()
	if hours <= 0 || total <= 0 {
		return 0
	}
	return delta / total * 100 / hours
}
