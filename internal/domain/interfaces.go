package domain

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Request names one upstream read. Live readers use URL, Query and Header;
// fixture readers use Source, Endpoint and Args.
type Request struct {
	Source   string
	Endpoint string
	URL      string
	Query    url.Values
	Header   http.Header
	Args     []string
}

// URLReader fetches the raw body of an upstream endpoint.
type URLReader interface {
	Read(ctx context.Context, req Request) ([]byte, error)
}

// ExchangeVisitor resolves exchange coin symbols to the market cap catalog
// when a symbol is ambiguous ("UNI" is both Universe and Uniswap).
type ExchangeVisitor interface {
	Name(coin string) string
	Symbol(coin string) string
}

// ExchangeAdapter maps one exchange's wire formats to the canonical model.
type ExchangeAdapter interface {
	Name() string
	Visitor() ExchangeVisitor
	ExchangeInfo(ctx context.Context) ([]Symbol, error)
	Summaries(ctx context.Context, symbols []Symbol) ([]Ticker, error)
	LastPrices(ctx context.Context) (map[string]float64, error)
}

// CandleSource is implemented by adapters that serve historical candles.
type CandleSource interface {
	Candles(ctx context.Context, symbol, interval string, start, end time.Time) ([]Candle, error)
	DecodeCandles(symbol string, body []byte) ([]Candle, error)
}

type ExchangeService interface {
	Name() string
	GetExchangeInfo(ctx context.Context) (*ExchangeInfo, error)
	GetMarkets(ctx context.Context) ([]string, error)
	Get24HrAllCoinTicker(ctx context.Context) ([]CoinData, error)
	Get24HrCoinTickerPage(ctx context.Context, page, pageSize int) ([]CoinData, error)
	Get24HourCoinData(ctx context.Context, symbol string) (*CoinData, error)
	GetTickerData(ctx context.Context, symbol, interval, daysOrMonths string) ([]Candle, error)
	SetRsiForTickers(candles []Candle, period int) []Candle
	GetRsiTickerData(ctx context.Context, symbols []string) ([]Candle, error)
}

// IconRepository persists coin icons between restarts.
type IconRepository interface {
	GetIcon(ctx context.Context, coin string) ([]byte, bool, error)
	SaveIcon(ctx context.Context, coin string, data []byte, source string) error
}
