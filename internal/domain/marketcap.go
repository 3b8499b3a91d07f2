package domain

import (
	"fmt"
	"sort"
)

// MarketCapEntry is one coin in the market cap catalog.
type MarketCapEntry struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	Slug         string  `json:"slug,omitempty"`
	MarketCap    float64 `json:"marketCap"`
	Volume24hUsd float64 `json:"volume24hUsd"`
	Logo         string  `json:"logo,omitempty"`
}

// IsCoin reports whether s is this entry's symbol or its name. Some coins
// trade under their name (IOTA) while the catalog symbol differs (MIOTA).
func (e MarketCapEntry) IsCoin(s string) bool {
	return e.Symbol == s || e.Name == s
}

// MarketCapListing indexes catalog entries by id. Lookups walk entries in
// ascending id order so results do not depend on map iteration.
type MarketCapListing struct {
	entries []MarketCapEntry
	byID    map[int]int
}

func NewMarketCapListing(entries []MarketCapEntry) *MarketCapListing {
	l := &MarketCapListing{byID: make(map[int]int, len(entries))}
	for _, e := range entries {
		if i, ok := l.byID[e.ID]; ok {
			l.entries[i] = e
			continue
		}
		l.byID[e.ID] = len(l.entries)
		l.entries = append(l.entries, e)
	}
	sort.Slice(l.entries, func(i, j int) bool { return l.entries[i].ID < l.entries[j].ID })
	for i, e := range l.entries {
		l.byID[e.ID] = i
	}
	return l
}

func (l *MarketCapListing) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

func (l *MarketCapListing) Entries() []MarketCapEntry {
	if l == nil {
		return nil
	}
	out := make([]MarketCapEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *MarketCapListing) Get(id int) (MarketCapEntry, bool) {
	if l == nil {
		return MarketCapEntry{}, false
	}
	i, ok := l.byID[id]
	if !ok {
		return MarketCapEntry{}, false
	}
	return l.entries[i], true
}

// Find returns the single entry matching symbol. When several entries
// share the symbol, name must select exactly one of them, otherwise the
// result is ErrAmbiguousSymbol.
func (l *MarketCapListing) Find(symbol, name string) (MarketCapEntry, error) {
	candidates := l.FindAll(symbol)
	switch len(candidates) {
	case 0:
		return MarketCapEntry{}, fmt.Errorf("%w: %s in market cap listing", ErrNotFound, symbol)
	case 1:
		return candidates[0], nil
	}
	var match []MarketCapEntry
	for _, e := range candidates {
		if name != "" && e.IsCoin(name) {
			match = append(match, e)
		}
	}
	if len(match) != 1 {
		return MarketCapEntry{}, fmt.Errorf("%w: %s (as %q) matches %d entries", ErrAmbiguousSymbol, symbol, name, len(candidates))
	}
	return match[0], nil
}

// FindAll returns every entry matching symbol, such as both "UNI" coins.
func (l *MarketCapListing) FindAll(symbol string) []MarketCapEntry {
	if l == nil {
		return nil
	}
	var out []MarketCapEntry
	for _, e := range l.entries {
		if e.IsCoin(symbol) {
			out = append(out, e)
		}
	}
	return out
}
