package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/grifflabs/marketpulse/internal/domain"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1_500_000, "$1.5M"},
		{1_000_000, "$1.0M"},
		{45_300, "$45.3K"},
		{1_000, "$1.0K"},
		{950, "$950"},
		{0, "$0"},
	}

	for _, tt := range tests {
		if got := formatMoney(tt.in); got != tt.want {
			t.Fatalf("formatMoney(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Minute, "30m"},
		{90 * time.Minute, "1h"},
		{6 * time.Hour, "6h"},
		{72 * time.Hour, "3d"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Fatalf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatBatchMilestone(t *testing.T) {
	title, message := FormatBatch(domain.DeliveryBatch{
		RecipientID: "chan",
		Family:      domain.FamilyMilestone,
		Signals: []domain.CandidateSignal{{
			MarketID:    "fed-cuts-rates",
			Family:      domain.FamilyMilestone,
			Title:       "Will the Fed cut rates?",
			Price:       62,
			Volume:      600_000,
			Threshold:   500_000,
			AlsoCrossed: []float64{100_000, 250_000},
		}},
	})

	if title != "Volume Milestone" {
		t.Fatalf("title = %q", title)
	}
	for _, want := range []string{
		"Will the Fed cut rates?",
		"Crossed $500.0K (now $600.0K)",
		"past $100.0K, $250.0K",
		"YES: 62%",
		"polymarket.com/event/fed-cuts-rates",
	} {
		if !strings.Contains(message, want) {
			t.Fatalf("message missing %q:\n%s", want, message)
		}
	}
}

func TestFormatBatchBundlesAndTruncates(t *testing.T) {
	title, message := FormatBatch(domain.DeliveryBatch{
		RecipientID: "chan",
		Family:      domain.FamilyVelocity,
		Signals: []domain.CandidateSignal{
			{MarketID: "a", Title: "A", Price: 50, Volume: 100_000, Velocity: 30_000, Threshold: 25_000},
			{MarketID: "b", Title: "B", Price: 40, Volume: 80_000, Velocity: 12_000, Threshold: 10_000},
		},
		Truncated: 3,
	})

	if title != "Volume Spike (2)" {
		t.Fatalf("title = %q, want count in title", title)
	}
	if !strings.Contains(message, "- A\n") || !strings.Contains(message, "- B\n") {
		t.Fatalf("message should list both markets:\n%s", message)
	}
	if !strings.Contains(message, "+3 more") {
		t.Fatalf("message should surface the truncated count:\n%s", message)
	}
}

func TestFormatBatchSignedMove(t *testing.T) {
	_, up := FormatBatch(domain.DeliveryBatch{
		Family:  domain.FamilyBigSwing,
		Signals: []domain.CandidateSignal{{Title: "Up", Price: 70, PriceDelta: 18, Window: time.Hour}},
	})
	if !strings.Contains(up, "+18 pts") {
		t.Fatalf("rise should be signed:\n%s", up)
	}

	_, down := FormatBatch(domain.DeliveryBatch{
		Family:  domain.FamilyBigSwing,
		Signals: []domain.CandidateSignal{{Title: "Down", Price: 30, PriceDelta: -18, Window: time.Hour}},
	})
	if !strings.Contains(down, "-18 pts") {
		t.Fatalf("drop should carry its sign:\n%s", down)
	}
}
