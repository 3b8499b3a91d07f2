package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/vitos/crypto_scanner/internal/domain"
	"go.uber.org/zap"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string   `json:"status"`
	Exchanges []string `json:"exchanges"`
	Icons     *int     `json:"icons,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// statusClientClosedRequest is nginx's status for a request the client
// abandoned.
const statusClientClosedRequest = 499

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrTooMuchData), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUpstreamFetch), errors.Is(err, domain.ErrMalformedData), errors.Is(err, domain.ErrAmbiguousSymbol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug("Request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) exchange(r *http.Request) (domain.ExchangeService, error) {
	name := r.PathValue("exchange")
	svc, ok := s.exchanges[name]
	if !ok {
		return nil, fmt.Errorf("%w: exchange %q", domain.ErrNotFound, name)
	}
	return svc, nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", errBadRequest, key, raw)
	}
	return n, nil
}

func (s *Server) handle24HourTicker(w http.ResponseWriter, r *http.Request) {
	svc, err := s.exchange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	if !q.Has("page") && !q.Has("pageSize") {
		data, err := svc.Get24HrAllCoinTicker(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, data)
		return
	}

	page, err := queryInt(r, "page", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "pageSize", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := svc.Get24HrCoinTickerPage(r.Context(), page, pageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

func (s *Server) handle24HourCoinData(w http.ResponseWriter, r *http.Request) {
	svc, err := s.exchange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := svc.Get24HourCoinData(r.Context(), r.PathValue("symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleExchangeInfo(w http.ResponseWriter, r *http.Request) {
	svc, err := s.exchange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	info, err := svc.GetExchangeInfo(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	svc, err := s.exchange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	markets, err := svc.GetMarkets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, markets)
}

func (s *Server) handleDayTicker(w http.ResponseWriter, r *http.Request) {
	svc, err := s.exchange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	candles, err := svc.GetTickerData(r.Context(), r.PathValue("symbol"), r.PathValue("interval"), r.PathValue("daysOrMonths"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, svc.SetRsiForTickers(candles, s.rsiPeriod))
}

func (s *Server) handleRsi(w http.ResponseWriter, r *http.Request) {
	svc, err := s.exchange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var symbols []string
	for _, sym := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			symbols = append(symbols, sym)
		}
	}
	if len(symbols) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: symbols is required", errBadRequest))
		return
	}
	latest, err := svc.GetRsiTickerData(r.Context(), symbols)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Exchanges: s.names}
	if s.icons != nil {
		n, err := s.icons.CountIcons(r.Context())
		if err != nil {
			s.logger.Warn("Failed to count icons", zap.Error(err))
		} else {
			resp.Icons = &n
		}
	}
	if !s.ready.Load() {
		resp.Status = "warming up"
		s.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
