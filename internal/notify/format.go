package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/grifflabs/marketpulse/internal/domain"
)

// familyTitles maps each signal family to its message headline.
var familyTitles = map[domain.SignalFamily]string{
	domain.FamilyMilestone:   "Volume Milestone",
	domain.FamilyDiscovery:   "New Market",
	domain.FamilyWakeup:      "Market Waking Up",
	domain.FamilyFastMover:   "Fast Mover",
	domain.FamilyBigSwing:    "Big Move Alert",
	domain.FamilyVelocity:    "Volume Spike",
	domain.FamilyEarlyHeat:   "Early Heat",
	domain.FamilyClosingSoon: "Closing Soon",
	domain.FamilyUnderdog:    "Underdog Rising",
}

// FormatBatch renders one family batch as a title and a message body, one
// entry per signal, with a trailing "+N more" when the cap truncated the
// batch.
func FormatBatch(b domain.DeliveryBatch) (title, message string) {
	title = familyTitles[b.Family]
	if title == "" {
		title = string(b.Family)
	}
	if len(b.Signals) > 1 {
		title = fmt.Sprintf("%s (%d)", title, len(b.Signals))
	}

	var sb strings.Builder
	for i, s := range b.Signals {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(formatSignal(b.Family, s))
	}
	if b.Truncated > 0 {
		fmt.Fprintf(&sb, "\n\n+%d more", b.Truncated)
	}
	return title, sb.String()
}

// formatSignal renders one signal under the batch's family. A batch is
// single-family by construction, so the batch is the authority here.
func formatSignal(family domain.SignalFamily, s domain.CandidateSignal) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- %s\n", s.Title)

	switch family {
	case domain.FamilyMilestone:
		fmt.Fprintf(&sb, "  Crossed %s (now %s)", formatMoney(s.Threshold), formatMoney(s.Volume))
		if len(s.AlsoCrossed) > 0 {
			crossed := make([]string, len(s.AlsoCrossed))
			for i, t := range s.AlsoCrossed {
				crossed[i] = formatMoney(t)
			}
			fmt.Fprintf(&sb, ", past %s", strings.Join(crossed, ", "))
		}
		fmt.Fprintf(&sb, "\n  YES: %.0f%%", s.Price)
	case domain.FamilyDiscovery:
		fmt.Fprintf(&sb, "  Launched %s ago, already %s\n  YES: %.0f%%",
			formatDuration(s.Age), formatMoney(s.Volume), s.Price)
	case domain.FamilyWakeup:
		fmt.Fprintf(&sb, "  Quiet market traded %s in %s (%.1f%%/h)\n  YES: %.0f%% | Volume: %s",
			formatMoney(s.VolumeDelta), formatDuration(s.Window), s.VelocityPct, s.Price, formatMoney(s.Volume))
	case domain.FamilyFastMover:
		fmt.Fprintf(&sb, "  YES moved %s in %s on %s traded\n  Now %.0f%% | Volume: %s",
			formatPoints(s.PriceDelta), formatDuration(s.Window), formatMoney(s.VolumeDelta), s.Price, formatMoney(s.Volume))
	case domain.FamilyBigSwing:
		fmt.Fprintf(&sb, "  YES moved %s in %s\n  Now %.0f%% | Volume: %s",
			formatPoints(s.PriceDelta), formatDuration(s.Window), s.Price, formatMoney(s.Volume))
	case domain.FamilyVelocity:
		fmt.Fprintf(&sb, "  Trading %s/h (past %s rung)\n  YES: %.0f%% | Volume: %s",
			formatMoney(s.Velocity), formatMoney(s.Threshold), s.Price, formatMoney(s.Volume))
	case domain.FamilyEarlyHeat:
		fmt.Fprintf(&sb, "  %s old and gaining %.1f%%/h\n  YES: %.0f%% | Volume: %s",
			formatDuration(s.Age), s.VelocityPct, s.Price, formatMoney(s.Volume))
	case domain.FamilyClosingSoon:
		fmt.Fprintf(&sb, "  Closes in %s, still trading %s/h\n  YES: %.0f%% | Volume: %s",
			formatDuration(s.ClosesIn), formatMoney(s.Velocity), s.Price, formatMoney(s.Volume))
	case domain.FamilyUnderdog:
		fmt.Fprintf(&sb, "  YES %.0f%%, up %s in %s\n  Volume: %s",
			s.Price, formatPoints(s.PriceDelta), formatDuration(s.Window), formatMoney(s.Volume))
	default:
		fmt.Fprintf(&sb, "  YES: %.0f%% | Volume: %s", s.Price, formatMoney(s.Volume))
	}

	fmt.Fprintf(&sb, "\n  polymarket.com/event/%s", s.MarketID)
	return sb.String()
}

// formatMoney renders a dollar amount compactly: $1.5M, $45.3K, $950.
func formatMoney(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("$%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("$%.1fK", v/1_000)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

// formatPoints renders a signed price move in points.
func formatPoints(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.0f pts", v)
	}
	return fmt.Sprintf("%.0f pts", v)
}

// formatDuration renders a duration at the coarsest useful unit.
func formatDuration(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}
