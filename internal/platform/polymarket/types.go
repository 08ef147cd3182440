// Package polymarket is the REST client for the Polymarket Gamma API, the
// engine's upstream market listing source.
package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/grifflabs/marketpulse/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a string-encoded number. Gamma
// sends "volume" as a quoted decimal string on most endpoints.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(n)
	return nil
}

// APIEvent represents an event as returned by the Gamma API. An event groups
// one or more related markets under a single slug.
type APIEvent struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Slug      string      `json:"slug"`
	Active    flexBool    `json:"active"`
	Closed    bool        `json:"closed"`
	Markets   []APIMarket `json:"markets"`
	Tags      []APITag    `json:"tags"`
	CreatedAt string      `json:"createdAt"`
	StartDate string      `json:"startDate"`
}

// APITag is one category label attached to an event.
type APITag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// APIMarket represents one market inside a Gamma event.
type APIMarket struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Slug          string    `json:"slug"`
	OutcomePrices string    `json:"outcomePrices"` // JSON-encoded, e.g. "[\"0.45\",\"0.55\"]"
	Volume        flexFloat `json:"volume"`
	Closed        bool      `json:"closed"`
	EndDate       string    `json:"endDate"`
	CreatedAt     string    `json:"createdAt"`
}

// yesPrice parses the first outcome price onto the 0-100 scale. Malformed or
// empty price arrays yield 0.
func (m *APIMarket) yesPrice() float64 {
	if m.OutcomePrices == "" {
		return 0
	}
	var raw []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &raw); err != nil || len(raw) == 0 {
		return 0
	}
	p, err := strconv.ParseFloat(raw[0], 64)
	if err != nil {
		return 0
	}
	return p * 100
}

// parseAPITime parses a Gamma timestamp, returning nil when the field is
// absent or malformed. Callers treat nil as "unknown", never as an error.
func parseAPITime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ToDomainMarket collapses an event into one domain Market keyed by the event
// slug: volumes of the event's markets sum, the highest Yes price wins, and
// the event's creation timestamp is kept, falling back to the first market
// that has one.
func (e *APIEvent) ToDomainMarket() domain.Market {
	m := domain.Market{
		ID:        e.Slug,
		Title:     e.Title,
		CreatedAt: parseAPITime(e.CreatedAt),
	}
	if m.CreatedAt == nil {
		m.CreatedAt = parseAPITime(e.StartDate)
	}

	for _, t := range e.Tags {
		if t.Label != "" {
			m.Tags = append(m.Tags, t.Label)
		}
	}

	for i := range e.Markets {
		am := &e.Markets[i]
		m.Volume += float64(am.Volume)
		if p := am.yesPrice(); p > m.YesPrice {
			m.YesPrice = p
		}
		if end := parseAPITime(am.EndDate); end != nil {
			if m.EndDate == nil || end.After(*m.EndDate) {
				m.EndDate = end
			}
		}
		if m.CreatedAt == nil {
			m.CreatedAt = parseAPITime(am.CreatedAt)
		}
	}

	return m
}
