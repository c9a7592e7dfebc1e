// Package dexscreener implements the market-data provider boundary. Raw
// provider pairs are validated and normalized here; nothing malformed
// reaches the engine.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lkozlowski/tokensentry/internal/domain"
)

// MaxBatchSize is the provider's bulk-lookup cap: at most this many
// addresses per Tokens call.
const MaxBatchSize = 30

// Client is the REST client for the market-data API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client against the given API root, e.g.
// "https://api.dexscreener.com".
func New(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "dexscreener")),
	}
}

// Tokens performs a bulk lookup for up to MaxBatchSize addresses and returns
// one normalized record per token address (first pair wins when a token
// trades on several pairs). Malformed records are dropped and logged, never
// propagated.
func (c *Client) Tokens(ctx context.Context, addresses []string) ([]domain.TokenRecord, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	if len(addresses) > MaxBatchSize {
		return nil, fmt.Errorf("dexscreener: batch of %d exceeds provider cap %d", len(addresses), MaxBatchSize)
	}

	path := "/latest/dex/tokens/" + url.PathEscape(strings.Join(addresses, ","))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: bulk lookup: %w", err)
	}

	return c.decodePairs(body, "tokens")
}

// Search performs a keyword search against the provider's pair index.
func (c *Client) Search(ctx context.Context, query string) ([]domain.TokenRecord, error) {
	params := url.Values{}
	params.Set("q", query)

	body, err := c.doGet(ctx, "/latest/dex/search?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("dexscreener: search %q: %w", query, err)
	}

	return c.decodePairs(body, "search")
}

// decodePairs unmarshals a pairs envelope and normalizes each entry,
// dropping invalid records and collapsing multiple pairs per token address.
func (c *Client) decodePairs(body []byte, op string) ([]domain.TokenRecord, error) {
	var resp pairsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener: decode %s response: %w", op, err)
	}

	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(resp.Pairs))
	records := make([]domain.TokenRecord, 0, len(resp.Pairs))
	dropped := 0

	for i := range resp.Pairs {
		rec, ok := resp.Pairs[i].ToTokenRecord(now)
		if !ok {
			dropped++
			continue
		}
		if _, dup := seen[rec.Address]; dup {
			continue
		}
		seen[rec.Address] = struct{}{}
		records = append(records, rec)
	}

	if dropped > 0 {
		c.logger.Warn("dropped malformed provider records",
			slog.String("op", op),
			slog.Int("dropped", dropped),
		)
	}

	return records, nil
}

// doGet sends an unauthenticated GET request to the provider. HTTP 429 and
// 503 are surfaced as domain.ErrRateLimited so callers can classify them;
// the retry schedule does not change either way.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time interface check.
var _ domain.MarketDataProvider = (*Client)(nil)
