package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/vitos/crypto_scanner/internal/domain"
	"github.com/vitos/crypto_scanner/internal/infrastructure/cache"
	"github.com/vitos/crypto_scanner/internal/infrastructure/exchange"
	"github.com/vitos/crypto_scanner/internal/usecase"
)

// MockMarketCapClient serves a fixed catalog.
type MockMarketCapClient struct {
	Entries    []domain.MarketCapEntry
	Logos      map[int]string
	MapErr     error
	QuotedIDs  []int
	QuoteCalls int32
}

func (m *MockMarketCapClient) Map(ctx context.Context) ([]domain.MarketCapEntry, error) {
	if m.MapErr != nil {
		return nil, m.MapErr
	}
	out := make([]domain.MarketCapEntry, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = domain.MarketCapEntry{ID: e.ID, Name: e.Name, Symbol: e.Symbol}
	}
	return out, nil
}

func (m *MockMarketCapClient) Quotes(ctx context.Context, ids []int) ([]domain.MarketCapEntry, error) {
	atomic.AddInt32(&m.QuoteCalls, 1)
	m.QuotedIDs = ids
	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.MarketCapEntry
	for _, e := range m.Entries {
		if want[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockMarketCapClient) Info(ctx context.Context, ids []int) (map[int]string, error) {
	return m.Logos, nil
}

func (m *MockMarketCapClient) Image(ctx context.Context, id int, logoURL string) ([]byte, error) {
	return []byte(logoURL), nil
}

var catalog = []domain.MarketCapEntry{
	{ID: 1, Name: "Bitcoin", Symbol: "BTC", MarketCap: 1000.123},
	{ID: 1720, Name: "IOTA", Symbol: "MIOTA", MarketCap: 50},
	{ID: 5578, Name: "Universe", Symbol: "UNI", MarketCap: 10},
	{ID: 6999, Name: "Excluded", Symbol: "BTC", MarketCap: 1},
	{ID: 7083, Name: "Uniswap", Symbol: "UNI", MarketCap: 500},
	{ID: 9000, Name: "Zero", Symbol: "ZERO", MarketCap: 0},
}

func newMarketCapService(t *testing.T, client *MockMarketCapClient, symbols []domain.Symbol) (*usecase.MarketCapService, *cache.Cache) {
	t.Helper()
	c := cache.New()
	mc := usecase.NewMarketCapService(client, c, []int{6999}, nil)
	c.AddExchangeInfoSupplier("binance", func(ctx context.Context) ([]domain.Symbol, error) {
		return symbols, nil
	})
	mc.AddVisitor("binance", exchange.NewBinanceVisitor())
	return mc, c
}

func TestMarketCapService_ListingCollectsTradedIDs(t *testing.T) {
	client := &MockMarketCapClient{Entries: catalog}
	mc, _ := newMarketCapService(t, client, []domain.Symbol{
		{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"},
		{Symbol: "UNIUSDT", BaseAsset: "UNI", QuoteAsset: "USDT"},
		{Symbol: "IOTABTC", BaseAsset: "IOTA", QuoteAsset: "BTC"},
	})

	listing, err := mc.Listing(context.Background())
	if err != nil {
		t.Fatalf("Listing failed: %v", err)
	}
	want := []int{1, 1720, 5578, 7083}
	if len(client.QuotedIDs) != len(want) {
		t.Fatalf("Expected quoted ids %v, got %v", want, client.QuotedIDs)
	}
	for i, id := range want {
		if client.QuotedIDs[i] != id {
			t.Errorf("Expected quoted ids %v, got %v", want, client.QuotedIDs)
			break
		}
	}
	if listing.Len() != 4 {
		t.Errorf("Expected 4 listed coins, got %d", listing.Len())
	}

	if _, err := mc.Listing(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&client.QuoteCalls); n != 1 {
		t.Errorf("Expected listing to be cached, got %d quote calls", n)
	}
}

func TestMarketCapService_Enrich(t *testing.T) {
	client := &MockMarketCapClient{Entries: catalog}
	mc, _ := newMarketCapService(t, client, []domain.Symbol{
		{Symbol: "UNIUSDT", BaseAsset: "UNI", QuoteAsset: "USDT"},
		{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"},
		{Symbol: "IOTABTC", BaseAsset: "IOTA", QuoteAsset: "BTC"},
		{Symbol: "ZEROBTC", BaseAsset: "ZERO", QuoteAsset: "BTC"},
		{Symbol: "NONEBTC", BaseAsset: "NONE", QuoteAsset: "BTC"},
	})
	tickers := []domain.Ticker{
		{Symbol: "UNIUSDT", Coin: "UNI", Currency: "USDT"},
		{Symbol: "BTCUSDT", Coin: "BTC", Currency: "USDT"},
		{Symbol: "IOTABTC", Coin: "IOTA", Currency: "BTC"},
		{Symbol: "ZEROBTC", Coin: "ZERO", Currency: "BTC"},
		{Symbol: "NONEBTC", Coin: "NONE", Currency: "BTC"},
	}

	enriched, err := mc.Enrich(context.Background(), tickers, exchange.NewBinanceVisitor())
	if err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	got := make(map[string]domain.MarketCapTicker)
	for _, e := range enriched {
		got[e.Symbol] = e
	}
	if got["UNIUSDT"].ID != 7083 || got["UNIUSDT"].MarketCap != 500 {
		t.Errorf("Expected UNI to resolve to Uniswap, got %+v", got["UNIUSDT"])
	}
	if got["BTCUSDT"].MarketCap != 1000.12 {
		t.Errorf("Expected market cap rounded to 1000.12, got %f", got["BTCUSDT"].MarketCap)
	}
	if got["IOTABTC"].ID != 1720 {
		t.Errorf("Expected IOTA to match by name, got %+v", got["IOTABTC"])
	}
	if len(enriched) != 3 {
		t.Errorf("Expected 3 enriched coins, got %d", len(enriched))
	}
	for _, dropped := range []string{"ZEROBTC", "NONEBTC"} {
		if _, ok := got[dropped]; ok {
			t.Errorf("Expected %s to be dropped", dropped)
		}
	}
}

// unicornVisitor names UNI after a coin the catalog does not have.
type unicornVisitor struct{}

func (unicornVisitor) Name(coin string) string   { return "Unicorn" }
func (unicornVisitor) Symbol(coin string) string { return coin }

func TestMarketCapService_UnresolvedAmbiguousSymbolIsDropped(t *testing.T) {
	client := &MockMarketCapClient{Entries: catalog}
	mc, _ := newMarketCapService(t, client, []domain.Symbol{{Symbol: "UNIUSDT", BaseAsset: "UNI", QuoteAsset: "USDT"}})

	enriched, err := mc.Enrich(context.Background(), []domain.Ticker{{Symbol: "UNIUSDT", Coin: "UNI", Currency: "USDT"}}, unicornVisitor{})
	if err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if len(enriched) != 0 {
		t.Errorf("Expected unresolved UNI to be dropped, got %+v", enriched)
	}
}

func TestMarketCapService_ListingFailsWithExchange(t *testing.T) {
	client := &MockMarketCapClient{Entries: catalog}
	c := cache.New()
	mc := usecase.NewMarketCapService(client, c, nil, nil)
	down := errors.New("exchange info unavailable")
	c.AddExchangeInfoSupplier("bittrex", func(ctx context.Context) ([]domain.Symbol, error) {
		return nil, down
	})

	_, err := mc.Listing(context.Background())
	if !errors.Is(err, down) {
		t.Errorf("Expected exchange failure to fail the listing, got %v", err)
	}
	if n := atomic.LoadInt32(&client.QuoteCalls); n != 0 {
		t.Errorf("Expected no quotes request, got %d", n)
	}
}

func TestMarketCapService_Logo(t *testing.T) {
	client := &MockMarketCapClient{Entries: catalog, Logos: map[int]string{1: "https://logo/1.png"}}
	mc, _ := newMarketCapService(t, client, []domain.Symbol{{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"}})

	data, err := mc.Logo(context.Background(), 1)
	if err != nil || string(data) != "https://logo/1.png" {
		t.Errorf("Expected logo bytes, got %q %v", data, err)
	}
	if _, err := mc.Logo(context.Background(), 42); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
