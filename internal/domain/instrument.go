package domain

import (
	"fmt"
	"sort"
	"strings"
)

const (
	PairDelimiter = "-"
	StatusTrading = "TRADING"
)

// Symbol is one tradable pair listed by an exchange.
type Symbol struct {
	Symbol     string  `json:"symbol"`
	BaseAsset  string  `json:"baseAsset"`
	QuoteAsset string  `json:"quoteAsset"`
	Status     string  `json:"status,omitempty"`
	MarketCap  float64 `json:"marketCap,omitempty"`
	ID         int     `json:"id,omitempty"`
}

type ExchangeInfo struct {
	Exchange string   `json:"exchange"`
	Symbols  []Symbol `json:"symbols"`
}

// Coins returns the sorted set of base assets.
func (e *ExchangeInfo) Coins() []string {
	return uniqueSorted(e.Symbols, func(s Symbol) string { return s.BaseAsset })
}

// Markets returns the sorted set of quote assets.
func (e *ExchangeInfo) Markets() []string {
	return uniqueSorted(e.Symbols, func(s Symbol) string { return s.QuoteAsset })
}

func uniqueSorted(symbols []Symbol, field func(Symbol) string) []string {
	seen := make(map[string]bool, len(symbols))
	var out []string
	for _, s := range symbols {
		v := field(s)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Pair is a base/quote split of an exchange pair string such as "BTC-USD".
type Pair struct {
	Base  string
	Quote string
}

func ParsePair(symbol string) (Pair, error) {
	parts := strings.Split(symbol, PairDelimiter)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("%w: pair %q does not split into base and quote", ErrMalformedData, symbol)
	}
	return Pair{Base: parts[0], Quote: parts[1]}, nil
}

func (p Pair) String() string {
	return p.Base + PairDelimiter + p.Quote
}

// TradeLink builds the exchange trade page for a pair. Templates may carry
// {base} and {quote} placeholders; a template without them gets
// "<quote>-<base>" appended.
func TradeLink(template string, p Pair) string {
	if strings.Contains(template, "{base}") || strings.Contains(template, "{quote}") {
		return strings.NewReplacer("{base}", p.Base, "{quote}", p.Quote).Replace(template)
	}
	return template + p.Quote + PairDelimiter + p.Base
}
