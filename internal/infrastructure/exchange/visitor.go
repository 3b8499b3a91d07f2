package exchange

// BinanceVisitor knows which Binance tickers are listed under a different
// symbol or are ambiguous in the market cap catalog.
type BinanceVisitor struct {
	names   map[string]string
	symbols map[string]string
}

func NewBinanceVisitor() *BinanceVisitor {
	return &BinanceVisitor{
		names: map[string]string{
			"UNI":  "Uniswap",
			"HNT":  "Helium",
			"LINK": "Chainlink",
			"CND":  "Cindicator",
		},
		symbols: map[string]string{
			"BQX":  "VGX",
			"YOYO": "YOYOW",
			"PHB":  "PHX",
			"GXS":  "GXC",
			"WNXM": "NXM",
		},
	}
}

// Name returns the catalog name for coin, falling back to Symbol.
func (v *BinanceVisitor) Name(coin string) string {
	if n, ok := v.names[coin]; ok {
		return n
	}
	return v.Symbol(coin)
}

func (v *BinanceVisitor) Symbol(coin string) string {
	if s, ok := v.symbols[coin]; ok {
		return s
	}
	return coin
}

// IdentityVisitor is used by exchanges whose symbols match the catalog.
type IdentityVisitor struct{}

func (IdentityVisitor) Name(coin string) string   { return coin }
func (IdentityVisitor) Symbol(coin string) string { return coin }
