package exchange

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_scanner/internal/domain"
	"go.uber.org/zap"
)

const (
	BinanceBaseURL   = "https://api.binance.com"
	BinanceUSBaseURL = "https://api.binance.us"

	binanceKlineLimit = 1000
)

// BinanceAdapter serves both Binance and Binance-USA; only the name and
// base URL differ.
type BinanceAdapter struct {
	name    string
	baseURL string
	reader  domain.URLReader
	visitor domain.ExchangeVisitor
	logger  *zap.Logger
}

func NewBinanceAdapter(name, baseURL string, reader domain.URLReader, logger *zap.Logger) *BinanceAdapter {
	if baseURL == "" {
		baseURL = BinanceBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinanceAdapter{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		reader:  reader,
		visitor: NewBinanceVisitor(),
		logger:  logger.Named(name),
	}
}

func (b *BinanceAdapter) Name() string { return b.name }

func (b *BinanceAdapter) Visitor() domain.ExchangeVisitor { return b.visitor }

func (b *BinanceAdapter) read(ctx context.Context, endpoint, path string, query map[string]string, args ...string) ([]byte, error) {
	req := domain.Request{
		Source:   b.name,
		Endpoint: endpoint,
		URL:      b.baseURL + path,
		Args:     args,
	}
	if len(query) > 0 {
		req.Query = url.Values{}
		for k, v := range query {
			req.Query.Set(k, v)
		}
	}
	return b.reader.Read(ctx, req)
}

type binanceExchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
	} `json:"symbols"`
}

func (b *BinanceAdapter) ExchangeInfo(ctx context.Context) ([]domain.Symbol, error) {
	body, err := b.read(ctx, "exchangeInfo", "/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}

	var info binanceExchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: %s exchange info: %v", domain.ErrMalformedData, b.name, err)
	}

	symbols := make([]domain.Symbol, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		symbols = append(symbols, domain.Symbol{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Status:     s.Status,
		})
	}
	return symbols, nil
}

type binanceTicker24h struct {
	Symbol             string          `json:"symbol"`
	PriceChange        decimal.Decimal `json:"priceChange"`
	PriceChangePercent decimal.Decimal `json:"priceChangePercent"`
	HighPrice          decimal.Decimal `json:"highPrice"`
	LowPrice           decimal.Decimal `json:"lowPrice"`
	Volume             decimal.Decimal `json:"volume"`
	QuoteVolume        decimal.Decimal `json:"quoteVolume"`
	OpenTime           int64           `json:"openTime"`
	CloseTime          int64           `json:"closeTime"`
}

// Summaries normalizes the 24 hour ticker. Binance symbols carry no
// delimiter, so base and quote come from the symbol table; pairs missing
// from it, not TRADING, or leveraged tokens are dropped.
func (b *BinanceAdapter) Summaries(ctx context.Context, symbols []domain.Symbol) ([]domain.Ticker, error) {
	body, err := b.read(ctx, "24HourTicker", "/api/v3/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}

	var raw []binanceTicker24h
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s 24h ticker: %v", domain.ErrMalformedData, b.name, err)
	}

	table := make(map[string]domain.Symbol, len(symbols))
	for _, s := range symbols {
		table[s.Symbol] = s
	}

	tickers := make([]domain.Ticker, 0, len(raw))
	for _, t := range raw {
		s, ok := table[t.Symbol]
		if !ok || s.Status != domain.StatusTrading || isLeveragedToken(t.Symbol) {
			continue
		}
		tickers = append(tickers, domain.Ticker{
			Symbol:             t.Symbol,
			Coin:               s.BaseAsset,
			Currency:           s.QuoteAsset,
			PriceChange:        t.PriceChange.InexactFloat64(),
			PriceChangePercent: t.PriceChangePercent.Round(2).InexactFloat64(),
			HighPrice:          t.HighPrice.InexactFloat64(),
			LowPrice:           t.LowPrice.InexactFloat64(),
			Volume:             t.Volume.InexactFloat64(),
			QuoteVolume:        t.QuoteVolume.InexactFloat64(),
			OpenTime:           t.OpenTime,
			CloseTime:          t.CloseTime,
		})
	}
	b.logger.Debug("normalized 24h ticker", zap.Int("received", len(raw)), zap.Int("kept", len(tickers)))
	return tickers, nil
}

func isLeveragedToken(symbol string) bool {
	return strings.Contains(symbol, "BULL") || strings.Contains(symbol, "BEAR")
}

type binancePrice struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

func (b *BinanceAdapter) LastPrices(ctx context.Context) (map[string]float64, error) {
	body, err := b.read(ctx, "tickers", "/api/v3/ticker/price", nil)
	if err != nil {
		return nil, err
	}

	var raw []binancePrice
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s prices: %v", domain.ErrMalformedData, b.name, err)
	}

	prices := make(map[string]float64, len(raw))
	for _, p := range raw {
		prices[p.Symbol] = p.Price.InexactFloat64()
	}
	return prices, nil
}

// KlineInterval maps scanner intervals to Binance ones; "24h" is "1d".
func KlineInterval(interval string) string {
	if interval == "24h" {
		return "1d"
	}
	return interval
}

func (b *BinanceAdapter) Candles(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Candle, error) {
	query := map[string]string{
		"symbol":    symbol,
		"interval":  KlineInterval(interval),
		"startTime": strconv.FormatInt(start.UnixMilli(), 10),
		"endTime":   strconv.FormatInt(end.UnixMilli(), 10),
		"limit":     strconv.Itoa(binanceKlineLimit),
	}
	body, err := b.read(ctx, "klines", "/api/v3/klines", query, symbol, interval)
	if err != nil {
		return nil, err
	}
	return b.DecodeCandles(symbol, body)
}

// DecodeCandles parses kline rows:
// [openTime, open, high, low, close, volume, closeTime, quoteAssetVolume, trades, ...]
func (b *BinanceAdapter) DecodeCandles(symbol string, body []byte) ([]domain.Candle, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %s klines for %s: %v", domain.ErrMalformedData, b.name, symbol, err)
	}

	candles := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 9 {
			return nil, fmt.Errorf("%w: %s kline %d for %s has %d fields", domain.ErrMalformedData, b.name, i, symbol, len(row))
		}
		var (
			f   [9]decimal.Decimal
			err error
		)
		for j := 0; j < 9; j++ {
			if f[j], err = wireDecimal(row[j]); err != nil {
				return nil, fmt.Errorf("%w: %s kline %d field %d for %s: %v", domain.ErrMalformedData, b.name, i, j, symbol, err)
			}
		}
		candles = append(candles, domain.Candle{
			Symbol:           symbol,
			OpenTime:         f[0].IntPart(),
			Open:             f[1].InexactFloat64(),
			High:             f[2].InexactFloat64(),
			Low:              f[3].InexactFloat64(),
			Close:            f[4].InexactFloat64(),
			Volume:           f[5].InexactFloat64(),
			CloseTime:        f[6].IntPart(),
			QuoteAssetVolume: f[7].InexactFloat64(),
			NumberOfTrades:   int(f[8].IntPart()),
		})
	}
	return candles, nil
}

// wireDecimal accepts the JSON numbers and numeric strings exchanges mix
// within one row.
func wireDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(x)
	case float64:
		return decimal.NewFromFloat(x), nil
	default:
		return decimal.Zero, fmt.Errorf("unexpected %T", v)
	}
}
