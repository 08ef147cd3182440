package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/grifflabs/marketpulse/internal/domain"
)

// maxPages caps pagination regardless of the caller's target so a bad
// upstream response cannot turn one poll into an unbounded crawl.
const maxPages = 100

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata.
type GammaClient struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, pageSize int) *GammaClient {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &GammaClient{
		baseURL:  baseURL,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchAll pages through open events ordered by volume descending until
// target events have been retrieved or the API is exhausted, and returns one
// domain Market per event.
func (g *GammaClient) FetchAll(ctx context.Context, target int) ([]domain.Market, error) {
	markets := make([]domain.Market, 0, target)

	offset := 0
	for page := 0; page < maxPages && len(markets) < target; page++ {
		events, err := g.getEvents(ctx, g.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("polymarket/gamma: fetch events at offset %d: %w", offset, err)
		}
		if len(events) == 0 {
			break
		}

		for i := range events {
			m := events[i].ToDomainMarket()
			if m.ID == "" {
				continue
			}
			markets = append(markets, m)
		}

		offset += g.pageSize
	}

	if len(markets) > target {
		markets = markets[:target]
	}
	return markets, nil
}

// getEvents returns one page of open events ordered by volume descending.
func (g *GammaClient) getEvents(ctx context.Context, limit, offset int) ([]APIEvent, error) {
	params := url.Values{}
	params.Set("order", "volume")
	params.Set("ascending", "false")
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	body, err := g.doGet(ctx, "/events?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var events []APIEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	if statusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, string(body))
	}
	return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
}

// Compile-time interface check.
var _ domain.ListingsFetcher = (*GammaClient)(nil)
