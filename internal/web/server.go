package web

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/vitos/crypto_scanner/internal/domain"
	"go.uber.org/zap"
)

// IconCounter reports how many coin icons are persisted.
type IconCounter interface {
	CountIcons(ctx context.Context) (int, error)
}

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	exchanges map[string]domain.ExchangeService
	names     []string
	rsiPeriod int
	icons     IconCounter
	ready     atomic.Bool
	logger    *zap.Logger
}

func NewServer(
	port int,
	services []domain.ExchangeService,
	rsiPeriod int,
	icons IconCounter,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:    http.NewServeMux(),
		exchanges: make(map[string]domain.ExchangeService, len(services)),
		rsiPeriod: rsiPeriod,
		icons:     icons,
		logger:    logger.Named("web"),
	}
	for _, svc := range services {
		s.exchanges[svc.Name()] = svc
		s.names = append(s.names, svc.Name())
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Handler(),
	}
	return s
}

func (s *Server) routes() {
	// 24 hour tickers
	s.router.HandleFunc("GET /api/v1/{exchange}/24HourTicker", s.handle24HourTicker)
	s.router.HandleFunc("GET /api/v1/{exchange}/24HourTicker/{symbol}", s.handle24HourCoinData)

	// Exchange info
	s.router.HandleFunc("GET /api/v1/{exchange}/info", s.handleExchangeInfo)
	s.router.HandleFunc("GET /api/v1/{exchange}/markets", s.handleMarkets)

	// Candles
	s.router.HandleFunc("GET /api/v1/{exchange}/DayTicker/{symbol}/{interval}/{daysOrMonths}", s.handleDayTicker)
	s.router.HandleFunc("GET /api/v1/{exchange}/rsi", s.handleRsi)

	// Status
	s.router.HandleFunc("GET /health", s.handleHealth)
}

// Handler is the routed mux wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	return s.requestLogger(s.router)
}

// SetReady flips the health check once the cache is warm.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr), zap.Strings("exchanges", s.names))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
