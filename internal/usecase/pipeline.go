package usecase

import (
	"github.com/vitos/crypto_scanner/internal/domain"
)

// Stages of the 24 hour aggregate. Each returns a new slice and leaves its
// input, which may be shared through the cache, untouched.

func excludeQuotes[T any](items []T, excluded []string, quote func(T) string) []T {
	if len(excluded) == 0 {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}
	skip := make(map[string]bool, len(excluded))
	for _, q := range excluded {
		skip[q] = true
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !skip[quote(it)] {
			out = append(out, it)
		}
	}
	return out
}

func filterSymbols(symbols []domain.Symbol, excluded []string) []domain.Symbol {
	return excludeQuotes(symbols, excluded, func(s domain.Symbol) string { return s.QuoteAsset })
}

func filterTickers(tickers []domain.Ticker, excluded []string) []domain.Ticker {
	return excludeQuotes(tickers, excluded, func(t domain.Ticker) string { return t.Currency })
}

// price joins last prices on the exchange symbol and builds trade links.
func price(tickers []domain.MarketCapTicker, prices map[string]float64, tradeURL string) []domain.CoinData {
	out := make([]domain.CoinData, 0, len(tickers))
	for _, t := range tickers {
		cd := domain.CoinData{MarketCapTicker: t}
		if p, ok := prices[t.Symbol]; ok {
			cd.LastPrice = &p
		}
		if tradeURL != "" {
			cd.TradeLink = domain.TradeLink(tradeURL, t.Pair())
		}
		out = append(out, cd)
	}
	return out
}
