package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/crypto_scanner/internal/config"
	"github.com/vitos/crypto_scanner/internal/domain"
	"github.com/vitos/crypto_scanner/internal/infrastructure/cache"
	"github.com/vitos/crypto_scanner/internal/infrastructure/coinmarketcap"
	"github.com/vitos/crypto_scanner/internal/infrastructure/exchange"
	"github.com/vitos/crypto_scanner/internal/infrastructure/logger"
	"github.com/vitos/crypto_scanner/internal/infrastructure/sandbox"
	"github.com/vitos/crypto_scanner/internal/infrastructure/storage"
	"github.com/vitos/crypto_scanner/internal/infrastructure/urlreader"
	"github.com/vitos/crypto_scanner/internal/usecase"
	"github.com/vitos/crypto_scanner/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Reader (live upstream or recorded fixtures)
	var reader domain.URLReader
	var fixtures domain.URLReader
	if cfg.Sandbox.Enabled {
		fixtures = sandbox.NewFixtureReader(os.DirFS(cfg.Sandbox.FixturesDir), log)
		reader = fixtures
		log.Info("Sandbox mode, serving fixtures", zap.String("dir", cfg.Sandbox.FixturesDir))
	} else {
		reader = urlreader.NewHTTPReader(
			urlreader.WithTimeout(cfg.HTTP.Timeout),
			urlreader.WithMaxRetries(cfg.HTTP.MaxRetries),
			urlreader.WithBackoff(cfg.HTTP.RetryBackoff),
			urlreader.WithLogger(log),
		)
	}

	// 5. Init Cache
	cacheOpts := []cache.Option{cache.WithDefaultTTL(cfg.Cache.DefaultTTL), cache.WithLogger(log)}
	for group, ttl := range cfg.Cache.TTL {
		cacheOpts = append(cacheOpts, cache.WithTTL(group, ttl))
	}
	c := cache.New(cacheOpts...)

	// 6. Init Market Cap and Icons
	if cfg.CoinMarketCap.APIKey == "" && !cfg.Sandbox.Enabled {
		log.Warn("No CoinMarketCap API key", zap.String("env", cfg.CoinMarketCap.APIKeyEnv))
	}
	cmc := coinmarketcap.NewClient(reader,
		coinmarketcap.WithBaseURL(cfg.CoinMarketCap.BaseURL),
		coinmarketcap.WithAPIKey(cfg.CoinMarketCap.APIKey),
		coinmarketcap.WithBatchSize(cfg.CoinMarketCap.BatchSize),
		coinmarketcap.WithLogger(log),
	)
	marketCap := usecase.NewMarketCapService(cmc, c, cfg.CoinMarketCap.ExcludedIDs, log)
	marketCap.RegisterWarmup()

	var iconFiles fs.FS
	if cfg.Icons.Dir != "" {
		iconFiles = os.DirFS(cfg.Icons.Dir)
	}
	var logos usecase.LogoSource
	if cfg.Icons.FetchRemote {
		logos = marketCap
	}
	icons := usecase.NewIconService(store, c, iconFiles, logos, log)

	// 7. Init Exchange Services
	var services []domain.ExchangeService
	streamed := make(map[string]*usecase.ExchangeService)
	for _, ex := range cfg.Exchanges {
		var adapter domain.ExchangeAdapter
		switch ex.Kind {
		case config.KindBinance:
			adapter = exchange.NewBinanceAdapter(ex.Name, ex.BaseURL, reader, log)
		case config.KindBittrex:
			adapter = exchange.NewBittrexAdapter(ex.Name, ex.BaseURL, reader, log)
		}

		svc := usecase.NewExchangeService(adapter, c, marketCap, icons, usecase.ExchangeOptions{
			TradeURL:        ex.TradeURL,
			ExcludeQuotes:   ex.ExcludeQuotes,
			RSIPeriod:       cfg.RSI.Period,
			RSIInterval:     cfg.RSI.Interval,
			RSIRange:        cfg.RSI.Range,
			MaxCandlePoints: cfg.Candles.MaxPoints,
		}, log)
		svc.Register()

		if cfg.Sandbox.Enabled {
			services = append(services, usecase.NewSandboxService(svc, fixtures))
			continue
		}
		services = append(services, svc)
		if ex.StreamURL != "" {
			streamed[ex.StreamURL] = svc
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 8. Start Web Server
	server := web.NewServer(cfg.Server.Port, services, cfg.RSI.Period, store, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Web server failed", zap.Error(err))
		}
	}()

	// 9. Warm Up Cache
	go func() {
		report, err := usecase.WarmUp(ctx, c, marketCap, log)
		if err != nil {
			// exchanges that did warm up still serve; the rest fill lazily
			log.Error("Cache warm up incomplete", zap.Strings("failed", report.Failed()), zap.Error(err))
		}
		server.SetReady(true)
	}()
	if cfg.Cache.SweepInterval > 0 {
		go c.RunSweeper(ctx, cfg.Cache.SweepInterval)
	}

	// 10. Connect Price Streams
	if cfg.Stream.Enabled {
		for streamURL, svc := range streamed {
			stream := exchange.NewMiniTickerStream(streamURL, log.With(zap.String("exchange", svc.Name())))
			stream.OnPrices(svc.ApplyPriceUpdates)
			go func() {
				if err := stream.Run(ctx); err != nil {
					log.Error("Price stream stopped", zap.String("exchange", svc.Name()), zap.Error(err))
				}
			}()
		}
	}

	// 11. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
