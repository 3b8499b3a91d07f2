package usecase

import (
	"context"
	"errors"
	"io/fs"

	"github.com/vitos/crypto_scanner/internal/domain"
	"github.com/vitos/crypto_scanner/internal/infrastructure/cache"
	"go.uber.org/zap"
)

const (
	iconSourceFile   = "file"
	iconSourceRemote = "coinmarketcap"
)

// LogoSource downloads coin logos by market cap id.
type LogoSource interface {
	Logo(ctx context.Context, id int) ([]byte, error)
}

// IconService resolves coin icons from the repository, then the local icon
// directory, then (optionally) the remote logo. A coin without an icon
// gets empty bytes, which are cached like any other result.
type IconService struct {
	repo   domain.IconRepository
	cache  *cache.Cache
	files  fs.FS
	remote LogoSource
	logger *zap.Logger
}

// NewIconService accepts nil files or remote to skip that source.
func NewIconService(repo domain.IconRepository, c *cache.Cache, files fs.FS, remote LogoSource, logger *zap.Logger) *IconService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IconService{
		repo:   repo,
		cache:  c,
		files:  files,
		remote: remote,
		logger: logger.Named("icons"),
	}
}

func (s *IconService) Icon(ctx context.Context, coin string, id int) ([]byte, error) {
	return cache.Get(ctx, s.cache, cache.GroupIcon, coin, func(ctx context.Context) ([]byte, error) {
		return s.load(ctx, coin, id), nil
	})
}

// load never fails: icons decorate a response and a broken source only
// costs the picture.
func (s *IconService) load(ctx context.Context, coin string, id int) []byte {
	if s.repo != nil {
		data, ok, err := s.repo.GetIcon(ctx, coin)
		if err != nil {
			s.logger.Warn("icon repository read failed", zap.String("coin", coin), zap.Error(err))
		}
		if ok {
			return data
		}
	}

	if s.files != nil {
		data, err := fs.ReadFile(s.files, coin+".png")
		if err == nil {
			s.save(ctx, coin, data, iconSourceFile)
			return data
		}
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("icon file read failed", zap.String("coin", coin), zap.Error(err))
		}
	}

	if s.remote != nil && id > 0 {
		data, err := s.remote.Logo(ctx, id)
		if err == nil && len(data) > 0 {
			s.save(ctx, coin, data, iconSourceRemote)
			return data
		}
		if err != nil {
			s.logger.Debug("remote logo unavailable", zap.String("coin", coin), zap.Int("id", id), zap.Error(err))
		}
	}
	return []byte{}
}

func (s *IconService) save(ctx context.Context, coin string, data []byte, source string) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveIcon(ctx, coin, data, source); err != nil {
		s.logger.Warn("icon repository write failed", zap.String("coin", coin), zap.Error(err))
	}
}
