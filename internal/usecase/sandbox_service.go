package usecase

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/vitos/crypto_scanner/internal/domain"
	"github.com/vitos/crypto_scanner/internal/infrastructure/cache"
)

const (
	fixtureDayTicker  = "dayTicker"
	fixtureRsiTickers = "rsiTickers"
)

// SandboxService runs the regular pipeline over fixture payloads. Candle
// requests read whole recorded responses instead of time windows, since a
// fixture cannot follow the clock.
type SandboxService struct {
	*ExchangeService
	fixtures domain.URLReader
}

var _ domain.ExchangeService = (*SandboxService)(nil)

func NewSandboxService(base *ExchangeService, fixtures domain.URLReader) *SandboxService {
	return &SandboxService{ExchangeService: base, fixtures: fixtures}
}

// GetTickerData reads "<exchange>-dayTicker-<symbol>-<interval>-<range>".
func (s *SandboxService) GetTickerData(ctx context.Context, symbol, interval, daysOrMonths string) ([]domain.Candle, error) {
	src, err := s.candleSource()
	if err != nil {
		return nil, err
	}
	key := candleKey(s.Name(), symbol, interval, daysOrMonths)
	return cache.Get(ctx, s.cache, cache.GroupCoin, key, func(ctx context.Context) ([]domain.Candle, error) {
		body, err := s.fixtures.Read(ctx, domain.Request{
			Source:   s.Name(),
			Endpoint: fixtureDayTicker,
			Args:     []string{symbol, interval, daysOrMonths},
		})
		if err != nil {
			return nil, err
		}
		return src.DecodeCandles(symbol, body)
	})
}

// GetRsiTickerData reads "<exchange>-rsiTickers", an object of kline rows
// keyed by symbol.
func (s *SandboxService) GetRsiTickerData(ctx context.Context, symbols []string) ([]domain.Candle, error) {
	src, err := s.candleSource()
	if err != nil {
		return nil, err
	}
	body, err := s.fixtures.Read(ctx, domain.Request{Source: s.Name(), Endpoint: fixtureRsiTickers})
	if err != nil {
		return nil, err
	}
	var bySymbol map[string]json.RawMessage
	if err := json.Unmarshal(body, &bySymbol); err != nil {
		return nil, fmt.Errorf("%w: %s rsi fixture: %v", domain.ErrMalformedData, s.Name(), err)
	}

	return latestWithRSI(ctx, symbols, s.opts.RSIPeriod, func(ctx context.Context, symbol string) ([]domain.Candle, error) {
		rows, ok := bySymbol[symbol]
		if !ok {
			return nil, fmt.Errorf("%w: %s rsi fixture has no %s", domain.ErrNotFound, s.Name(), symbol)
		}
		return src.DecodeCandles(symbol, rows)
	})
}
