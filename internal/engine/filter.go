package engine

import (
	"strings"

	"github.com/grifflabs/marketpulse/internal/config"
	"github.com/grifflabs/marketpulse/internal/domain"
)

// Filter drops markets that no detector should ever see: sports books,
// high-frequency price spam, and markets whose outcome is effectively
// decided. Exclusion is per cycle; a market filtered today is reconsidered
// from scratch next tick.
type Filter struct {
	slugPatterns  []string
	titleKeywords []string
	spamPhrases   []string
	resolvedBand  float64
}

// NewFilter builds a Filter from engine configuration. Patterns are matched
// case-insensitively as substrings.
func NewFilter(cfg config.EngineConfig) *Filter {
	f := &Filter{resolvedBand: cfg.ResolvedBand}
	for _, p := range cfg.ExcludedSlugs {
		f.slugPatterns = append(f.slugPatterns, strings.ToLower(p))
	}
	for _, k := range cfg.ExcludedTitles {
		f.titleKeywords = append(f.titleKeywords, strings.ToLower(k))
	}
	for _, p := range cfg.SpamPhrases {
		f.spamPhrases = append(f.spamPhrases, strings.ToLower(p))
	}
	return f
}

// Apply partitions markets into kept and excluded, preserving input order of
// the kept set. It returns the kept markets and the number excluded.
func (f *Filter) Apply(markets []domain.Market) ([]domain.Market, int) {
	kept := make([]domain.Market, 0, len(markets))
	excluded := 0
	for _, m := range markets {
		if f.Excluded(m) {
			excluded++
			continue
		}
		kept = append(kept, m)
	}
	return kept, excluded
}

// Excluded reports whether a single market should be dropped before
// detection.
func (f *Filter) Excluded(m domain.Market) bool {
	if m.Resolved(f.resolvedBand) {
		return true
	}

	slug := strings.ToLower(m.ID)
	for _, p := range f.slugPatterns {
		if strings.Contains(slug, p) {
			return true
		}
	}

	title := strings.ToLower(m.Title)
	for _, k := range f.titleKeywords {
		if strings.Contains(title, k) {
			return true
		}
	}
	for _, p := range f.spamPhrases {
		if strings.Contains(title, p) {
			return true
		}
	}
	return false
}
