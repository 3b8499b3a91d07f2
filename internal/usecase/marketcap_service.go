package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vitos/crypto_scanner/internal/domain"
	"github.com/vitos/crypto_scanner/internal/infrastructure/cache"
	"go.uber.org/zap"
)

const (
	marketCapMapKey     = "Map"
	marketCapListingKey = "Listing"
	marketCapInfoKey    = "Info"
)

// MarketCapClient is the CoinMarketCap API surface the scanner needs.
type MarketCapClient interface {
	Map(ctx context.Context) ([]domain.MarketCapEntry, error)
	Quotes(ctx context.Context, ids []int) ([]domain.MarketCapEntry, error)
	Info(ctx context.Context, ids []int) (map[int]string, error)
	Image(ctx context.Context, id int, logoURL string) ([]byte, error)
}

// MarketCapService builds the market cap listing for every coin traded on
// a registered exchange and joins it onto exchange data.
type MarketCapService struct {
	client   MarketCapClient
	cache    *cache.Cache
	excluded map[int]bool
	logger   *zap.Logger

	mu       sync.RWMutex
	visitors map[string]domain.ExchangeVisitor
}

func NewMarketCapService(client MarketCapClient, c *cache.Cache, excludedIDs []int, logger *zap.Logger) *MarketCapService {
	if logger == nil {
		logger = zap.NewNop()
	}
	excluded := make(map[int]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	return &MarketCapService{
		client:   client,
		cache:    c,
		excluded: excluded,
		logger:   logger.Named("marketcap"),
		visitors: make(map[string]domain.ExchangeVisitor),
	}
}

// AddVisitor sets how coins of an exchange are resolved when collecting
// catalog ids.
func (s *MarketCapService) AddVisitor(exchange string, v domain.ExchangeVisitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visitors[exchange] = v
}

func (s *MarketCapService) visitor(exchange string) domain.ExchangeVisitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.visitors[exchange]; ok {
		return v
	}
	return identityVisitor{}
}

type identityVisitor struct{}

func (identityVisitor) Name(coin string) string   { return coin }
func (identityVisitor) Symbol(coin string) string { return coin }

// RegisterWarmup preloads the coin map during cache warm-up.
func (s *MarketCapService) RegisterWarmup() {
	s.cache.AddWarmupTask("coinmarketcap-map", func(ctx context.Context) error {
		_, err := s.CoinMap(ctx)
		return err
	})
}

// CoinMap is the id catalog without quotes.
func (s *MarketCapService) CoinMap(ctx context.Context) (*domain.MarketCapListing, error) {
	return cache.Get(ctx, s.cache, cache.GroupCoinMarketCap, marketCapMapKey, func(ctx context.Context) (*domain.MarketCapListing, error) {
		entries, err := s.client.Map(ctx)
		if err != nil {
			return nil, err
		}
		return domain.NewMarketCapListing(entries), nil
	})
}

// Listing is the quoted catalog restricted to coins traded on any
// registered exchange. It fails when any exchange info cannot be built.
func (s *MarketCapService) Listing(ctx context.Context) (*domain.MarketCapListing, error) {
	return cache.Get(ctx, s.cache, cache.GroupCoinMarketCap, marketCapListingKey, func(ctx context.Context) (*domain.MarketCapListing, error) {
		coinMap, err := s.CoinMap(ctx)
		if err != nil {
			return nil, err
		}
		ids, err := s.tradedIDs(ctx, coinMap)
		if err != nil {
			return nil, err
		}
		entries, err := s.client.Quotes(ctx, ids)
		if err != nil {
			return nil, err
		}
		s.logger.Info("built market cap listing", zap.Int("requested", len(ids)), zap.Int("quoted", len(entries)))
		return domain.NewMarketCapListing(entries), nil
	})
}

func (s *MarketCapService) tradedIDs(ctx context.Context, coinMap *domain.MarketCapListing) ([]int, error) {
	seen := make(map[int]bool)
	for _, name := range s.cache.ExchangeNames() {
		symbols, err := s.cache.RetrieveExchangeInfo(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("collect coins of %s: %w", name, err)
		}
		v := s.visitor(name)
		info := domain.ExchangeInfo{Exchange: name, Symbols: symbols}
		for _, coin := range info.Coins() {
			for _, e := range coinMap.FindAll(coin) {
				seen[e.ID] = true
			}
			for _, e := range coinMap.FindAll(v.Symbol(coin)) {
				seen[e.ID] = true
			}
		}
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		if !s.excluded[id] {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// resolve finds the catalog entry of an exchange coin through its visitor.
func (s *MarketCapService) resolve(listing *domain.MarketCapListing, coin string, v domain.ExchangeVisitor) (domain.MarketCapEntry, error) {
	e, err := listing.Find(v.Symbol(coin), v.Name(coin))
	if err != nil {
		return domain.MarketCapEntry{}, fmt.Errorf("resolve %s: %w", coin, err)
	}
	return e, nil
}

// Enrich attaches market cap data to tickers. Coins that cannot be
// resolved, or have no positive market cap, are dropped.
func (s *MarketCapService) Enrich(ctx context.Context, tickers []domain.Ticker, v domain.ExchangeVisitor) ([]domain.MarketCapTicker, error) {
	listing, err := s.Listing(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.MarketCapTicker, 0, len(tickers))
	for _, t := range tickers {
		e, err := s.resolve(listing, t.Coin, v)
		if errors.Is(err, domain.ErrAmbiguousSymbol) {
			s.logger.Debug("dropping coin", zap.String("symbol", t.Symbol), zap.Error(err))
		}
		if err != nil || e.MarketCap <= 0 {
			continue
		}
		out = append(out, domain.MarketCapTicker{
			Ticker:        t,
			MarketCap:     round2(e.MarketCap),
			ID:            e.ID,
			Volume24HrUsd: e.Volume24hUsd,
		})
	}
	return out, nil
}

// EnrichSymbols returns a copy of symbols with market cap and id set where
// the coin resolves.
func (s *MarketCapService) EnrichSymbols(ctx context.Context, symbols []domain.Symbol, v domain.ExchangeVisitor) ([]domain.Symbol, error) {
	listing, err := s.Listing(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Symbol, len(symbols))
	for i, sym := range symbols {
		out[i] = sym
		if e, err := s.resolve(listing, sym.BaseAsset, v); err == nil && e.MarketCap > 0 {
			out[i].MarketCap = round2(e.MarketCap)
			out[i].ID = e.ID
		}
	}
	return out, nil
}

// Logos maps listed ids to their logo URL.
func (s *MarketCapService) Logos(ctx context.Context) (map[int]string, error) {
	return cache.Get(ctx, s.cache, cache.GroupCoinMarketCap, marketCapInfoKey, func(ctx context.Context) (map[int]string, error) {
		listing, err := s.Listing(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]int, 0, listing.Len())
		for _, e := range listing.Entries() {
			ids = append(ids, e.ID)
		}
		return s.client.Info(ctx, ids)
	})
}

// Logo downloads the logo of a listed coin.
func (s *MarketCapService) Logo(ctx context.Context, id int) ([]byte, error) {
	logos, err := s.Logos(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := logos[id]
	if !ok {
		return nil, fmt.Errorf("%w: logo for id %d", domain.ErrNotFound, id)
	}
	return s.client.Image(ctx, id, u)
}
