package usecase

import (
	"context"

	"github.com/vitos/crypto_scanner/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// WarmUp fills the exchange info of every registered exchange and the coin
// map concurrently, then builds the market cap listing from them. A failed
// task is reported on its own and only keeps the listing from being built.
func WarmUp(ctx context.Context, c *cache.Cache, marketCap *MarketCapService, logger *zap.Logger) (cache.WarmupReport, error) {
	report := c.WarmUp(ctx)
	logger.Info("cache warm up finished",
		zap.Duration("took", report.Took),
		zap.Int("tasks", len(report.Results)),
		zap.Strings("failed", report.Failed()))
	if err := report.Err(); err != nil {
		return report, err
	}

	listing, err := marketCap.Listing(ctx)
	if err != nil {
		return report, err
	}
	logger.Info("market cap listing ready", zap.Int("coins", listing.Len()))
	return report, nil
}
