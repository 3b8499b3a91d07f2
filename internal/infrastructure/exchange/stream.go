package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	BinanceStreamURL   = "wss://stream.binance.com:9443/ws/!miniTicker@arr"
	BinanceUSStreamURL = "wss://stream.binance.us:9443/ws/!miniTicker@arr"

	defaultReconnectDelay = 5 * time.Second
)

// MiniTickerStream follows the all-market mini ticker stream and hands each
// batch of last prices to the registered callbacks.
type MiniTickerStream struct {
	url            string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	logger         *zap.Logger

	mu        sync.Mutex
	callbacks []func(prices map[string]float64)
}

func NewMiniTickerStream(url string, logger *zap.Logger) *MiniTickerStream {
	if url == "" {
		url = BinanceStreamURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MiniTickerStream{
		url:            url,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: defaultReconnectDelay,
		logger:         logger.Named("stream"),
	}
}

func (s *MiniTickerStream) OnPrices(callback func(prices map[string]float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// Run keeps the stream connected until ctx is done, reconnecting after
// read errors.
func (s *MiniTickerStream) Run(ctx context.Context) error {
	for {
		err := s.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("mini ticker stream dropped", zap.String("url", s.url), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *MiniTickerStream) connect(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	s.logger.Info("mini ticker stream connected", zap.String("url", s.url))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	return s.readLoop(conn)
}

// Frames carry both "e" and "E"; EventTime keeps "E" off Event.
type miniTicker struct {
	Event     string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	Close     decimal.Decimal `json:"c"`
}

func (s *MiniTickerStream) readLoop(conn *websocket.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var events []miniTicker
		if err := json.Unmarshal(message, &events); err != nil {
			s.logger.Debug("unreadable stream message", zap.Error(err))
			continue
		}

		prices := make(map[string]float64, len(events))
		for _, e := range events {
			if e.Event != "24hrMiniTicker" || e.Symbol == "" {
				continue
			}
			prices[e.Symbol] = e.Close.InexactFloat64()
		}
		if len(prices) == 0 {
			continue
		}

		s.mu.Lock()
		callbacks := make([]func(map[string]float64), len(s.callbacks))
		copy(callbacks, s.callbacks)
		s.mu.Unlock()

		for _, cb := range callbacks {
			cb(prices)
		}
	}
}
