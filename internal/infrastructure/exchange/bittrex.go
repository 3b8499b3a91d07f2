package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_scanner/internal/domain"
	"go.uber.org/zap"
)

const BittrexBaseURL = "https://api.bittrex.com/v3"

// BittrexAdapter reads the Bittrex v3 market endpoints. Pairs are
// delimited ("BTC-USD") and Bittrex serves no candles here.
type BittrexAdapter struct {
	name    string
	baseURL string
	reader  domain.URLReader
	visitor domain.ExchangeVisitor
	logger  *zap.Logger
}

func NewBittrexAdapter(name, baseURL string, reader domain.URLReader, logger *zap.Logger) *BittrexAdapter {
	if baseURL == "" {
		baseURL = BittrexBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BittrexAdapter{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		reader:  reader,
		visitor: IdentityVisitor{},
		logger:  logger.Named(name),
	}
}

func (b *BittrexAdapter) Name() string { return b.name }

func (b *BittrexAdapter) Visitor() domain.ExchangeVisitor { return b.visitor }

type bittrexSummary struct {
	Symbol        string          `json:"symbol"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Volume        decimal.Decimal `json:"volume"`
	QuoteVolume   decimal.Decimal `json:"quoteVolume"`
	PercentChange decimal.Decimal `json:"percentChange"`
}

func (b *BittrexAdapter) summaries(ctx context.Context) ([]bittrexSummary, error) {
	body, err := b.reader.Read(ctx, domain.Request{
		Source:   b.name,
		Endpoint: "24HourTicker",
		URL:      b.baseURL + "/markets/summaries",
	})
	if err != nil {
		return nil, err
	}
	var raw []bittrexSummary
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s summaries: %v", domain.ErrMalformedData, b.name, err)
	}
	return raw, nil
}

// ExchangeInfo is derived from the market summaries, which list every
// active pair.
func (b *BittrexAdapter) ExchangeInfo(ctx context.Context) ([]domain.Symbol, error) {
	raw, err := b.summaries(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make([]domain.Symbol, 0, len(raw))
	for _, s := range raw {
		pair, err := domain.ParsePair(s.Symbol)
		if err != nil {
			return nil, fmt.Errorf("%s exchange info: %w", b.name, err)
		}
		symbols = append(symbols, domain.Symbol{
			Symbol:     s.Symbol,
			BaseAsset:  pair.Base,
			QuoteAsset: pair.Quote,
			Status:     domain.StatusTrading,
		})
	}
	return symbols, nil
}

// Summaries ignores the symbol table: Bittrex pairs split on their own.
func (b *BittrexAdapter) Summaries(ctx context.Context, _ []domain.Symbol) ([]domain.Ticker, error) {
	raw, err := b.summaries(ctx)
	if err != nil {
		return nil, err
	}
	tickers := make([]domain.Ticker, 0, len(raw))
	for _, s := range raw {
		pair, err := domain.ParsePair(s.Symbol)
		if err != nil {
			return nil, fmt.Errorf("%s summaries: %w", b.name, err)
		}
		tickers = append(tickers, domain.Ticker{
			Symbol:             s.Symbol,
			Coin:               pair.Base,
			Currency:           pair.Quote,
			PriceChangePercent: s.PercentChange.Round(2).InexactFloat64(),
			HighPrice:          s.High.InexactFloat64(),
			LowPrice:           s.Low.InexactFloat64(),
			Volume:             s.Volume.InexactFloat64(),
			QuoteVolume:        s.QuoteVolume.InexactFloat64(),
		})
	}
	return tickers, nil
}

type bittrexTicker struct {
	Symbol        string          `json:"symbol"`
	LastTradeRate decimal.Decimal `json:"lastTradeRate"`
}

func (b *BittrexAdapter) LastPrices(ctx context.Context) (map[string]float64, error) {
	body, err := b.reader.Read(ctx, domain.Request{
		Source:   b.name,
		Endpoint: "tickers",
		URL:      b.baseURL + "/markets/tickers",
	})
	if err != nil {
		return nil, err
	}
	var raw []bittrexTicker
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s tickers: %v", domain.ErrMalformedData, b.name, err)
	}
	prices := make(map[string]float64, len(raw))
	for _, t := range raw {
		prices[t.Symbol] = t.LastTradeRate.InexactFloat64()
	}
	return prices, nil
}
