package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Locale selects the storefront region and language.
type Locale struct {
	Country  string
	Language string
}

// Fetcher issues the structured-source strategy's own JSON probes. Page
// fetching proper belongs to the collector; this covers only the search
// endpoints the strategy queries on its own.
type Fetcher interface {
	FetchJSON(ctx context.Context, url string) ([]byte, int, error)
}

// HTTPFetcher is the default Fetcher, throttled so endpoint probing never
// hammers the search backend.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewHTTPFetcher builds a throttled JSON fetcher.
func NewHTTPFetcher(timeout time.Duration, userAgent string, rps float64) *HTTPFetcher {
	if rps <= 0 {
		rps = 2
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		userAgent: userAgent,
	}
}

// WithTransport swaps the underlying transport. Tests use this to inject
// a mock.
func (f *HTTPFetcher) WithTransport(rt http.RoundTripper) {
	f.client.Transport = rt
}

// FetchJSON performs one throttled GET and returns body and status.
func (f *HTTPFetcher) FetchJSON(ctx context.Context, rawURL string) ([]byte, int, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// searchEndpoints are the known structured search endpoints, tried in
// order. Placeholders: country, language, query, page size, page number.
var searchEndpoints = []string{
	"https://sik.search.blue.cdtapps.com/%s/%s/search-result-page?types=PRODUCT&q=%s&size=%d&page=%d",
	"https://sik.search.blue.cdtapps.com/%s/%s/search?types=PRODUCT&q=%s&size=%d&page=%d",
}

// productArrayPaths are the key paths under which a search payload may
// carry its product array. The shapes have been reshuffled between
// frontend releases more than once.
var productArrayPaths = [][]string{
	{"searchResultPage", "products", "main", "items"},
	{"searchResultPage", "products", "main"},
	{"products", "main", "items"},
	{"results", "items"},
	{"products"},
	{"items"},
}

// APIStrategy queries the structured search endpoints for a category and
// accepts the first payload that contains a non-empty product array.
type APIStrategy struct {
	fetcher  Fetcher
	locale   Locale
	category string
	pageSize int
}

// NewAPIStrategy builds the structured-source strategy. A nil fetcher
// disables it (the chain then falls through to markup extraction).
func NewAPIStrategy(fetcher Fetcher, locale Locale, category string) *APIStrategy {
	return &APIStrategy{
		fetcher:  fetcher,
		locale:   locale,
		category: category,
		pageSize: 24,
	}
}

func (s *APIStrategy) Name() string { return "api" }

// Extract probes each known endpoint sequentially and short-circuits on
// the first parsable, non-empty product array. Listing pages only.
func (s *APIStrategy) Extract(ctx context.Context, page *Page) ([]Candidate, error) {
	if page.Kind != KindListing || s.fetcher == nil {
		return nil, nil
	}

	pageNo := listingPageNumber(page.URL)
	var lastErr error
	for _, tmpl := range searchEndpoints {
		endpoint := fmt.Sprintf(tmpl, s.locale.Country, s.locale.Language, url.QueryEscape(s.category), s.pageSize, pageNo)

		body, status, err := s.fetcher.FetchJSON(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		if status != http.StatusOK {
			lastErr = fmt.Errorf("search endpoint returned %d", status)
			continue
		}

		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			lastErr = fmt.Errorf("decode search payload: %w", err)
			continue
		}

		items := firstProductArray(payload)
		if len(items) == 0 {
			continue
		}

		candidates := make([]Candidate, 0, len(items))
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			candidates = append(candidates, &apiShape{raw: m, page: page})
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
	}
	return nil, lastErr
}

// firstProductArray digs the payload for the first non-empty array of
// product-shaped objects under any known key path.
func firstProductArray(payload map[string]any) []any {
	for _, path := range productArrayPaths {
		node := dig(payload, path)
		items, ok := node.([]any)
		if !ok || len(items) == 0 {
			continue
		}
		if _, ok := items[0].(map[string]any); ok {
			return items
		}
	}
	return nil
}

// listingPageNumber reads a page query parameter off a listing URL,
// defaulting to 1.
func listingPageNumber(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 1
	}
	for _, key := range []string{"page", "pageNumber"} {
		if v := u.Query().Get(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}
