package engine

import (
	"testing"

	"github.com/grifflabs/marketpulse/internal/config"
	"github.com/grifflabs/marketpulse/internal/domain"
)

func testFilter() *Filter {
	return NewFilter(config.EngineConfig{
		ResolvedBand:   5,
		ExcludedSlugs:  []string{"nfl-", "ufc-"},
		ExcludedTitles: []string{" vs ", "super bowl"},
		SpamPhrases:    []string{"up or down"},
	})
}

func TestFilterExcluded(t *testing.T) {
	tests := []struct {
		name   string
		market domain.Market
		want   bool
	}{
		{"plain market", domain.Market{ID: "fed-cuts-rates", Title: "Will the Fed cut rates?", YesPrice: 40}, false},
		{"sports slug", domain.Market{ID: "nfl-chiefs-win", Title: "Chiefs win the opener?", YesPrice: 50}, true},
		{"sports title", domain.Market{ID: "fight-night", Title: "Jones vs Miocic", YesPrice: 50}, true},
		{"title keyword case insensitive", domain.Market{ID: "big-game", Title: "Super Bowl halftime streaker?", YesPrice: 50}, true},
		{"price spam", domain.Market{ID: "btc-hourly", Title: "BTC up or down 1h", YesPrice: 50}, true},
		{"near certain yes", domain.Market{ID: "sure-thing", Title: "Will the sun rise?", YesPrice: 97}, true},
		{"near certain no", domain.Market{ID: "long-shot", Title: "Aliens land this week?", YesPrice: 2}, true},
		{"just inside band edge", domain.Market{ID: "edgy", Title: "Edge case?", YesPrice: 5}, true},
		{"just outside band edge", domain.Market{ID: "alive", Title: "Still live?", YesPrice: 6}, false},
	}

	f := testFilter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Excluded(tt.market); got != tt.want {
				t.Fatalf("Excluded(%q) = %v, want %v", tt.market.ID, got, tt.want)
			}
		})
	}
}

func TestFilterApply(t *testing.T) {
	markets := []domain.Market{
		{ID: "keep-one", Title: "First?", YesPrice: 30},
		{ID: "nfl-drop", Title: "Game?", YesPrice: 50},
		{ID: "keep-two", Title: "Second?", YesPrice: 60},
		{ID: "resolved-drop", Title: "Done?", YesPrice: 99},
	}

	kept, excluded := testFilter().Apply(markets)

	if excluded != 2 {
		t.Fatalf("excluded = %d, want 2", excluded)
	}
	if len(kept) != 2 || kept[0].ID != "keep-one" || kept[1].ID != "keep-two" {
		t.Fatalf("kept = %v, want keep-one then keep-two", kept)
	}
}
