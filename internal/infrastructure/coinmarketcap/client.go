// Package coinmarketcap talks to the CoinMarketCap pro API.
package coinmarketcap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_scanner/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL   = "https://pro-api.coinmarketcap.com"
	DefaultBatchSize = 500
	APIKeyHeader     = "X-CMC_PRO_API_KEY"

	source = "coinmarketcap"
)

type Client struct {
	baseURL   string
	apiKey    string
	batchSize int
	reader    domain.URLReader
	logger    *zap.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithBatchSize caps how many ids go into one quotes or info call.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(reader domain.URLReader, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		batchSize: DefaultBatchSize,
		reader:    reader,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named(source)
	return c
}

func (c *Client) read(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	header := http.Header{}
	if c.apiKey != "" {
		header.Set(APIKeyHeader, c.apiKey)
	}
	return c.reader.Read(ctx, domain.Request{
		Source:   source,
		Endpoint: endpoint,
		URL:      c.baseURL + path,
		Query:    query,
		Header:   header,
	})
}

type apiStatus struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type mapResponse struct {
	Status apiStatus `json:"status"`
	Data   []struct {
		ID     int    `json:"id"`
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
		Slug   string `json:"slug"`
	} `json:"data"`
}

// Map returns the id catalog of every listed coin, without quotes.
func (c *Client) Map(ctx context.Context) ([]domain.MarketCapEntry, error) {
	body, err := c.read(ctx, "map", "/v1/cryptocurrency/map", nil)
	if err != nil {
		return nil, err
	}
	var resp mapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: coinmarketcap map: %v", domain.ErrMalformedData, err)
	}
	if resp.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("%w: coinmarketcap map: %d %s", domain.ErrUpstreamFetch, resp.Status.ErrorCode, resp.Status.ErrorMessage)
	}

	entries := make([]domain.MarketCapEntry, 0, len(resp.Data))
	for _, d := range resp.Data {
		entries = append(entries, domain.MarketCapEntry{ID: d.ID, Name: d.Name, Symbol: d.Symbol, Slug: d.Slug})
	}
	c.logger.Info("loaded coin map", zap.Int("coins", len(entries)))
	return entries, nil
}

type quote struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Slug   string `json:"slug"`
	Quote  struct {
		USD struct {
			MarketCap decimal.Decimal `json:"market_cap"`
			Volume24h decimal.Decimal `json:"volume_24h"`
		} `json:"USD"`
	} `json:"quote"`
}

type quotesResponse struct {
	Status apiStatus        `json:"status"`
	Data   map[string]quote `json:"data"`
}

// Quotes fetches USD market cap and volume for ids. Ids the API does not
// return are left out.
func (c *Client) Quotes(ctx context.Context, ids []int) ([]domain.MarketCapEntry, error) {
	var entries []domain.MarketCapEntry
	for _, batch := range batches(ids, c.batchSize) {
		body, err := c.read(ctx, "quotes", "/v1/cryptocurrency/quotes/latest", url.Values{"id": {joinIDs(batch)}})
		if err != nil {
			return nil, err
		}
		var resp quotesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: coinmarketcap quotes: %v", domain.ErrMalformedData, err)
		}
		if resp.Status.ErrorCode != 0 {
			return nil, fmt.Errorf("%w: coinmarketcap quotes: %d %s", domain.ErrUpstreamFetch, resp.Status.ErrorCode, resp.Status.ErrorMessage)
		}
		for _, q := range resp.Data {
			entries = append(entries, domain.MarketCapEntry{
				ID:           q.ID,
				Name:         q.Name,
				Symbol:       q.Symbol,
				Slug:         q.Slug,
				MarketCap:    q.Quote.USD.MarketCap.InexactFloat64(),
				Volume24hUsd: q.Quote.USD.Volume24h.InexactFloat64(),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

type infoResponse struct {
	Status apiStatus `json:"status"`
	Data   map[string]struct {
		ID   int    `json:"id"`
		Logo string `json:"logo"`
	} `json:"data"`
}

// Info returns the logo URL per id.
func (c *Client) Info(ctx context.Context, ids []int) (map[int]string, error) {
	logos := make(map[int]string, len(ids))
	for _, batch := range batches(ids, c.batchSize) {
		body, err := c.read(ctx, "info", "/v1/cryptocurrency/info", url.Values{"id": {joinIDs(batch)}})
		if err != nil {
			return nil, err
		}
		var resp infoResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: coinmarketcap info: %v", domain.ErrMalformedData, err)
		}
		if resp.Status.ErrorCode != 0 {
			return nil, fmt.Errorf("%w: coinmarketcap info: %d %s", domain.ErrUpstreamFetch, resp.Status.ErrorCode, resp.Status.ErrorMessage)
		}
		for _, d := range resp.Data {
			if d.Logo != "" {
				logos[d.ID] = d.Logo
			}
		}
	}
	return logos, nil
}

// Image downloads a logo.
func (c *Client) Image(ctx context.Context, id int, logoURL string) ([]byte, error) {
	return c.reader.Read(ctx, domain.Request{
		Source:   source,
		Endpoint: "logo",
		URL:      logoURL,
		Header:   http.Header{"Accept": {"image/*"}},
		Args:     []string{strconv.Itoa(id)},
	})
}

func batches(ids []int, size int) [][]int {
	var out [][]int
	for len(ids) > 0 {
		n := min(size, len(ids))
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
