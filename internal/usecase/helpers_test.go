package usecase_test

import (
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vitos/crypto_scanner/internal/domain"
	"github.com/vitos/crypto_scanner/internal/infrastructure/cache"
	"github.com/vitos/crypto_scanner/internal/infrastructure/coinmarketcap"
	"github.com/vitos/crypto_scanner/internal/infrastructure/exchange"
	"github.com/vitos/crypto_scanner/internal/infrastructure/sandbox"
	"github.com/vitos/crypto_scanner/internal/infrastructure/urlreader"
	"github.com/vitos/crypto_scanner/internal/usecase"
)

const (
	binanceTradeURL = "https://www.binance.com/en/trade/{base}_{quote}"
	bittrexTradeURL = "https://global.bittrex.com/Market/Index?MarketName="
)

func fixtureFS() fs.FS {
	return os.DirFS(filepath.Join("..", "..", "fixtures"))
}

// testScanner wires the services the way cmd/scanner does, over one reader.
type testScanner struct {
	cache     *cache.Cache
	marketCap *usecase.MarketCapService
	binance   *usecase.ExchangeService
	bittrex   *usecase.ExchangeService
}

func newTestScanner(reader domain.URLReader, cmcURL, binanceURL, bittrexURL string) *testScanner {
	return newTestScannerWithCache(cache.New(), reader, cmcURL, binanceURL, bittrexURL)
}

func newTestScannerWithCache(c *cache.Cache, reader domain.URLReader, cmcURL, binanceURL, bittrexURL string) *testScanner {
	mc := usecase.NewMarketCapService(
		coinmarketcap.NewClient(reader, coinmarketcap.WithBaseURL(cmcURL)),
		c, []int{6999}, nil)

	binance := usecase.NewExchangeService(
		exchange.NewBinanceAdapter("binance", binanceURL, reader, nil),
		c, mc, nil,
		usecase.ExchangeOptions{
			TradeURL:      binanceTradeURL,
			ExcludeQuotes: []string{"NGN", "RUB", "TRY", "EUR", "ZAR", "BKRW", "IDRT"},
			RSIPeriod:     14,
		}, nil)
	bittrex := usecase.NewExchangeService(
		exchange.NewBittrexAdapter("bittrex", bittrexURL, reader, nil),
		c, mc, nil,
		usecase.ExchangeOptions{TradeURL: bittrexTradeURL}, nil)

	binance.Register()
	bittrex.Register()
	mc.RegisterWarmup()
	return &testScanner{cache: c, marketCap: mc, binance: binance, bittrex: bittrex}
}

func fixtureReader() domain.URLReader {
	return sandbox.NewFixtureReader(fixtureFS(), nil)
}

func newSandboxScanner() *testScanner {
	return newTestScanner(fixtureReader(), "", "", "")
}

// newFixtureServer serves the fixtures at the live upstream paths.
func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	routes := map[string]string{
		"/api/v3/exchangeInfo":             "binance-exchangeInfo.json",
		"/api/v3/ticker/24hr":              "binance-24HourTicker.json",
		"/api/v3/ticker/price":             "binance-tickers.json",
		"/v3/markets/summaries":            "bittrex-24HourTicker.json",
		"/v3/markets/tickers":              "bittrex-tickers.json",
		"/v1/cryptocurrency/map":           "coinmarketcap-map.json",
		"/v1/cryptocurrency/quotes/latest": "coinmarketcap-quotes.json",
		"/v1/cryptocurrency/info":          "coinmarketcap-info.json",
	}
	fsys := fixtureFS()
	mux := http.NewServeMux()
	for path, file := range routes {
		mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) {
			body, err := fs.ReadFile(fsys, file)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newLiveScanner(t *testing.T) *testScanner {
	srv := newFixtureServer(t)
	return newTestScanner(urlreader.NewHTTPReader(), srv.URL, srv.URL, srv.URL+"/v3")
}

// failingReader fails every request of one source.
type failingReader struct {
	next   domain.URLReader
	source string
	err    error
}

func (r failingReader) Read(ctx context.Context, req domain.Request) ([]byte, error) {
	if req.Source == r.source {
		return nil, r.err
	}
	return r.next.Read(ctx, req)
}

// overrideReader answers chosen fixture names with a fixed body.
type overrideReader struct {
	next   domain.URLReader
	bodies map[string]string
}

func (r overrideReader) Read(ctx context.Context, req domain.Request) ([]byte, error) {
	if body, ok := r.bodies[sandbox.FixtureName(req)]; ok {
		return []byte(body), nil
	}
	return r.next.Read(ctx, req)
}

// countingReader counts reads per fixture name.
type countingReader struct {
	next  domain.URLReader
	mu    sync.Mutex
	reads map[string]int
}

func newCountingReader(next domain.URLReader) *countingReader {
	return &countingReader{next: next, reads: make(map[string]int)}
}

func (r *countingReader) Read(ctx context.Context, req domain.Request) ([]byte, error) {
	r.mu.Lock()
	r.reads[sandbox.FixtureName(req)]++
	r.mu.Unlock()
	return r.next.Read(ctx, req)
}

func (r *countingReader) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.reads {
		n += c
	}
	return n
}

func bySymbol(data []domain.CoinData) map[string]domain.CoinData {
	out := make(map[string]domain.CoinData, len(data))
	for _, d := range data {
		out[d.Symbol] = d
	}
	return out
}
