package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePair_RoundTrip(t *testing.T) {
	for _, symbol := range []string{"BTC-USD", "MTL-BTC", "ETH-USDT", "1INCH-EUR"} {
		p, err := ParsePair(symbol)
		require.NoError(t, err, symbol)
		assert.Equal(t, symbol, p.Base+"-"+p.Quote)
		assert.Equal(t, symbol, p.String())
	}
}

func TestParsePair_Malformed(t *testing.T) {
	for _, symbol := range []string{"", "BTCUSD", "BTC-USD-EUR", "-USD", "BTC-", "-"} {
		_, err := ParsePair(symbol)
		assert.ErrorIs(t, err, ErrMalformedData, "symbol %q", symbol)
	}
}

func TestTradeLink(t *testing.T) {
	p, err := ParsePair("MTL-BTC")
	require.NoError(t, err)

	assert.Equal(t, "https://bittrex.com/Market/Index?MarketName=BTC-MTL",
		TradeLink("https://bittrex.com/Market/Index?MarketName=", p))
	assert.Equal(t, "https://www.binance.com/en/trade/MTL_BTC",
		TradeLink("https://www.binance.com/en/trade/{base}_{quote}", p))
}

func TestExchangeInfo_CoinsAndMarkets(t *testing.T) {
	info := &ExchangeInfo{
		Exchange: "binance",
		Symbols: []Symbol{
			{Symbol: "ETHBTC", BaseAsset: "ETH", QuoteAsset: "BTC"},
			{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"},
			{Symbol: "ETHUSDT", BaseAsset: "ETH", QuoteAsset: "USDT"},
		},
	}
	assert.Equal(t, []string{"BTC", "ETH"}, info.Coins())
	assert.Equal(t, []string{"BTC", "USDT"}, info.Markets())
}

func TestFetchError_MatchesUpstreamSentinel(t *testing.T) {
	cause := errors.New("connection refused")
	var err error = &FetchError{URL: "http://x", Err: cause}

	assert.ErrorIs(t, err, ErrUpstreamFetch)
	assert.ErrorIs(t, err, cause)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "http://x", fe.URL)

	status := &FetchError{URL: "http://x", StatusCode: 503, Body: "down"}
	assert.ErrorIs(t, status, ErrUpstreamFetch)
	assert.Contains(t, status.Error(), "503")
}
