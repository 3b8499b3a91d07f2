package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/crypto_scanner/internal/config"
	"github.com/vitos/crypto_scanner/internal/domain"
	"github.com/vitos/crypto_scanner/internal/infrastructure/exchange"
	"github.com/vitos/crypto_scanner/internal/infrastructure/urlreader"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	only := flag.String("exchange", "", "check only this configured exchange")
	symbol := flag.String("symbol", "", "also fetch candles of this symbol where supported")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	exchanges := cfg.Exchanges
	if *only != "" {
		ex, ok := cfg.Exchange(*only)
		if !ok {
			fmt.Printf("Unknown exchange %q\n", *only)
			os.Exit(1)
		}
		exchanges = []config.ExchangeConfig{ex}
	}

	reader := urlreader.NewHTTPReader(
		urlreader.WithTimeout(cfg.HTTP.Timeout),
		urlreader.WithMaxRetries(cfg.HTTP.MaxRetries),
	)
	ctx := context.Background()

	failed := 0
	for _, ex := range exchanges {
		var adapter domain.ExchangeAdapter
		switch ex.Kind {
		case config.KindBinance:
			adapter = exchange.NewBinanceAdapter(ex.Name, ex.BaseURL, reader, nil)
		case config.KindBittrex:
			adapter = exchange.NewBittrexAdapter(ex.Name, ex.BaseURL, reader, nil)
		}
		fmt.Printf("Testing %s (%s)...\n", ex.Name, ex.Kind)

		// 2. Exchange Info
		symbols, err := adapter.ExchangeInfo(ctx)
		if err != nil {
			fmt.Printf("❌ Failed to get exchange info: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("✅ Exchange info: %d symbols\n", len(symbols))

		// 3. 24h Summaries
		tickers, err := adapter.Summaries(ctx, symbols)
		if err != nil {
			fmt.Printf("❌ Failed to get 24h summaries: %v\n", err)
			failed++
		} else {
			fmt.Printf("✅ 24h summaries: %d tickers\n", len(tickers))
		}

		// 4. Last Prices
		prices, err := adapter.LastPrices(ctx)
		if err != nil {
			fmt.Printf("❌ Failed to get last prices: %v\n", err)
			failed++
		} else {
			fmt.Printf("✅ Last prices: %d symbols\n", len(prices))
		}

		// 5. Candles
		src, ok := adapter.(domain.CandleSource)
		if *symbol == "" || !ok {
			continue
		}
		end := time.Now()
		candles, err := src.Candles(ctx, *symbol, "24h", end.AddDate(0, 0, -7), end)
		if err != nil {
			fmt.Printf("❌ Failed to get candles of %s: %v\n", *symbol, err)
			failed++
		} else {
			fmt.Printf("✅ Candles (%s): %d\n", *symbol, len(candles))
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
