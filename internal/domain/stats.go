package domain

// Ticker is the normalized 24 hour summary of one trading pair.
type Ticker struct {
	Symbol             string  `json:"symbol"`
	Coin               string  `json:"coin"`
	Currency           string  `json:"currency"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	HighPrice          float64 `json:"highPrice"`
	LowPrice           float64 `json:"lowPrice"`
	Volume             float64 `json:"volume"`
	QuoteVolume        float64 `json:"quoteVolume"`
	OpenTime           int64   `json:"openTime,omitempty"`
	CloseTime          int64   `json:"closeTime,omitempty"`
}

func (t Ticker) Pair() Pair {
	return Pair{Base: t.Coin, Quote: t.Currency}
}

// MarketCapTicker is a Ticker that matched a market cap catalog entry.
// MarketCap is always positive.
type MarketCapTicker struct {
	Ticker
	MarketCap     float64 `json:"marketCap"`
	ID            int     `json:"id"`
	Volume24HrUsd float64 `json:"volume24HrUsd"`
	Icon          []byte  `json:"icon"`
}

// CoinData is the record served to clients.
type CoinData struct {
	MarketCapTicker
	LastPrice *float64 `json:"lastPrice"`
	TradeLink string   `json:"tradeLink"`
}

type Candle struct {
	Symbol           string   `json:"symbol"`
	OpenTime         int64    `json:"openTime"`
	Open             float64  `json:"open"`
	High             float64  `json:"high"`
	Low              float64  `json:"low"`
	Close            float64  `json:"close"`
	Volume           float64  `json:"volume"`
	CloseTime        int64    `json:"closeTime"`
	QuoteAssetVolume float64  `json:"quoteAssetVolume"`
	NumberOfTrades   int      `json:"numberOfTrades"`
	RSI              *float64 `json:"rsi,omitempty"`
}
