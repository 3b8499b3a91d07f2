package usecase

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/vitos/crypto_scanner/internal/domain"
	"github.com/vitos/crypto_scanner/internal/infrastructure/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const iconWorkers = 8

// ExchangeOptions are the per-exchange settings of an ExchangeService.
type ExchangeOptions struct {
	TradeURL        string
	ExcludeQuotes   []string
	RSIPeriod       int
	RSIInterval     string
	RSIRange        string
	MaxCandlePoints int
}

// ExchangeService implements domain.ExchangeService for any adapter.
// Upstream payloads go through the shared cache; everything derived from
// them is rebuilt per call.
type ExchangeService struct {
	adapter   domain.ExchangeAdapter
	cache     *cache.Cache
	marketCap *MarketCapService
	icons     *IconService
	opts      ExchangeOptions
	logger    *zap.Logger
	timeNow   func() time.Time // For testing
}

var _ domain.ExchangeService = (*ExchangeService)(nil)

// NewExchangeService accepts a nil icons service, in which case coins carry
// no icon.
func NewExchangeService(adapter domain.ExchangeAdapter, c *cache.Cache, marketCap *MarketCapService, icons *IconService, opts ExchangeOptions, logger *zap.Logger) *ExchangeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RSIPeriod <= 0 {
		opts.RSIPeriod = 14
	}
	if opts.RSIInterval == "" {
		opts.RSIInterval = "24h"
	}
	if opts.RSIRange == "" {
		opts.RSIRange = "1M"
	}
	if opts.MaxCandlePoints <= 0 {
		opts.MaxCandlePoints = 500
	}
	return &ExchangeService{
		adapter:   adapter,
		cache:     c,
		marketCap: marketCap,
		icons:     icons,
		opts:      opts,
		logger:    logger.Named(adapter.Name()),
		timeNow:   time.Now,
	}
}

func (s *ExchangeService) Name() string { return s.adapter.Name() }

// Register makes the exchange known to the cache warm-up and to the market
// cap listing.
func (s *ExchangeService) Register() {
	s.cache.AddExchangeInfoSupplier(s.Name(), s.FetchExchangeInfo)
	s.marketCap.AddVisitor(s.Name(), s.adapter.Visitor())
}

// FetchExchangeInfo reads the symbol table upstream, without the excluded
// quotes.
func (s *ExchangeService) FetchExchangeInfo(ctx context.Context) ([]domain.Symbol, error) {
	symbols, err := s.adapter.ExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}
	return filterSymbols(symbols, s.opts.ExcludeQuotes), nil
}

func (s *ExchangeService) GetExchangeInfo(ctx context.Context) (*domain.ExchangeInfo, error) {
	symbols, err := s.cache.RetrieveExchangeInfo(ctx, s.Name())
	if err != nil {
		return nil, err
	}
	enriched, err := s.marketCap.EnrichSymbols(ctx, symbols, s.adapter.Visitor())
	if err != nil {
		return nil, err
	}
	return &domain.ExchangeInfo{Exchange: s.Name(), Symbols: enriched}, nil
}

func (s *ExchangeService) GetMarkets(ctx context.Context) ([]string, error) {
	symbols, err := s.cache.RetrieveExchangeInfo(ctx, s.Name())
	if err != nil {
		return nil, err
	}
	info := domain.ExchangeInfo{Exchange: s.Name(), Symbols: symbols}
	return info.Markets(), nil
}

func (s *ExchangeService) summaries(ctx context.Context) ([]domain.Ticker, error) {
	return cache.Get(ctx, s.cache, cache.GroupAll24HourTicker, s.Name(), func(ctx context.Context) ([]domain.Ticker, error) {
		symbols, err := s.cache.RetrieveExchangeInfo(ctx, s.Name())
		if err != nil {
			return nil, err
		}
		return s.adapter.Summaries(ctx, symbols)
	})
}

func (s *ExchangeService) lastPrices(ctx context.Context) (map[string]float64, error) {
	return cache.Get(ctx, s.cache, cache.GroupAllTickers, s.Name(), s.adapter.LastPrices)
}

// Get24HrAllCoinTicker returns every coin of the exchange that has a market
// cap, with its icon, last price and trade link.
func (s *ExchangeService) Get24HrAllCoinTicker(ctx context.Context) ([]domain.CoinData, error) {
	var (
		tickers []domain.Ticker
		prices  map[string]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tickers, err = s.summaries(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		prices, err = s.lastPrices(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	enriched, err := s.marketCap.Enrich(ctx, filterTickers(tickers, s.opts.ExcludeQuotes), s.adapter.Visitor())
	if err != nil {
		return nil, err
	}
	withIcons, err := s.attachIcons(ctx, enriched)
	if err != nil {
		return nil, err
	}
	return price(withIcons, prices, s.opts.TradeURL), nil
}

func (s *ExchangeService) attachIcons(ctx context.Context, tickers []domain.MarketCapTicker) ([]domain.MarketCapTicker, error) {
	out := make([]domain.MarketCapTicker, len(tickers))
	copy(out, tickers)
	if s.icons == nil {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(iconWorkers)
	for i := range out {
		g.Go(func() error {
			icon, err := s.icons.Icon(gctx, out[i].Coin, out[i].ID)
			if err != nil {
				return err
			}
			out[i].Icon = icon
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get24HrCoinTickerPage returns page (zero based) of the aggregate. A
// negative page or non-positive size returns everything.
func (s *ExchangeService) Get24HrCoinTickerPage(ctx context.Context, page, pageSize int) ([]domain.CoinData, error) {
	all, err := s.Get24HrAllCoinTicker(ctx)
	if err != nil {
		return nil, err
	}
	if page < 0 || pageSize <= 0 {
		return all, nil
	}
	start := page * pageSize
	if start >= len(all) {
		return []domain.CoinData{}, nil
	}
	end := min(start+pageSize, len(all))
	return all[start:end], nil
}

// Get24HourCoinData finds one coin by exchange symbol or by "BASE-QUOTE".
func (s *ExchangeService) Get24HourCoinData(ctx context.Context, symbol string) (*domain.CoinData, error) {
	all, err := s.Get24HrAllCoinTicker(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Symbol == symbol || all[i].Pair().String() == symbol {
			cd := all[i]
			return &cd, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no 24 hour data for %s", domain.ErrNotFound, s.Name(), symbol)
}

func (s *ExchangeService) candleSource() (domain.CandleSource, error) {
	src, ok := s.adapter.(domain.CandleSource)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not serve candles", domain.ErrUnsupported, s.Name())
	}
	return src, nil
}

// GetTickerData returns the candles of symbol over daysOrMonths, such as
// "30d" or "1M".
func (s *ExchangeService) GetTickerData(ctx context.Context, symbol, interval, daysOrMonths string) ([]domain.Candle, error) {
	src, err := s.candleSource()
	if err != nil {
		return nil, err
	}
	key := candleKey(s.Name(), symbol, interval, daysOrMonths)
	return cache.Get(ctx, s.cache, cache.GroupCoin, key, func(ctx context.Context) ([]domain.Candle, error) {
		return fetchCandles(ctx, src, symbol, interval, daysOrMonths, s.timeNow(), s.opts.MaxCandlePoints)
	})
}

func (s *ExchangeService) SetRsiForTickers(candles []domain.Candle, period int) []domain.Candle {
	return SetRsiForTickers(candles, period)
}

// GetRsiTickerData returns the latest RSI-annotated candle of each symbol,
// in the order given.
func (s *ExchangeService) GetRsiTickerData(ctx context.Context, symbols []string) ([]domain.Candle, error) {
	if _, err := s.candleSource(); err != nil {
		return nil, err
	}
	return latestWithRSI(ctx, symbols, s.opts.RSIPeriod, func(ctx context.Context, symbol string) ([]domain.Candle, error) {
		return s.GetTickerData(ctx, symbol, s.opts.RSIInterval, s.opts.RSIRange)
	})
}

func latestWithRSI(ctx context.Context, symbols []string, period int, load func(ctx context.Context, symbol string) ([]domain.Candle, error)) ([]domain.Candle, error) {
	out := make([]domain.Candle, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		g.Go(func() error {
			candles, err := load(gctx, symbol)
			if err != nil {
				return err
			}
			if len(candles) == 0 {
				return fmt.Errorf("%w: no candles for %s", domain.ErrNotFound, symbol)
			}
			annotated := SetRsiForTickers(candles, period)
			out[i] = annotated[len(annotated)-1]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyPriceUpdates merges streamed last prices into the cached price map.
// Nothing is stored while the map is not cached, so a partial stream batch
// never stands in for the full price list, and the map keeps its expiry.
func (s *ExchangeService) ApplyPriceUpdates(prices map[string]float64) {
	s.cache.Update(cache.GroupAllTickers, s.Name(), func(old any) any {
		current, ok := old.(map[string]float64)
		if !ok {
			return old
		}
		merged := maps.Clone(current)
		maps.Copy(merged, prices)
		return merged
	})
}
