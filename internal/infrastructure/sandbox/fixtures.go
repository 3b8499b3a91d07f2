// Package sandbox serves pre-captured upstream payloads from disk so the
// scanner can run without touching exchange rate limits.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/vitos/crypto_scanner/internal/domain"
	"go.uber.org/zap"
)

const fixtureExt = ".json"

// FixtureName is "<source>-<endpoint>[-<arg>...]", e.g.
// "binance-dayTicker-BTCUSDT-24h-1M".
func FixtureName(req domain.Request) string {
	parts := append([]string{req.Source, req.Endpoint}, req.Args...)
	return strings.Join(parts, "-")
}

// FixtureReader implements domain.URLReader over a directory of fixtures.
type FixtureReader struct {
	fsys   fs.FS
	logger *zap.Logger
}

func NewFixtureReader(fsys fs.FS, logger *zap.Logger) *FixtureReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FixtureReader{fsys: fsys, logger: logger}
}

func (r *FixtureReader) Read(ctx context.Context, req domain.Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := FixtureName(req) + fixtureExt
	data, err := fs.ReadFile(r.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: sandbox fixture %s", domain.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read sandbox fixture %s: %w", name, err)
	}
	r.logger.Debug("served sandbox fixture", zap.String("fixture", name))
	return data, nil
}
