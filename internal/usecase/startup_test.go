package usecase_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/vitos/crypto_scanner/internal/domain"
	"github.com/vitos/crypto_scanner/internal/infrastructure/cache"
	"github.com/vitos/crypto_scanner/internal/usecase"
	"go.uber.org/zap"
)

func TestWarmUp_BuildsListing(t *testing.T) {
	s := newSandboxScanner()
	report, err := usecase.WarmUp(context.Background(), s.cache, s.marketCap, zap.NewNop())
	if err != nil {
		t.Fatalf("WarmUp failed: %v", err)
	}
	if len(report.Results) != 3 {
		t.Errorf("Expected 3 warm up tasks, got %d", len(report.Results))
	}
	for _, name := range []string{"binance", "bittrex"} {
		if _, ok := s.cache.Peek(cache.GroupExchangeInfo, name); !ok {
			t.Errorf("Expected exchange info of %s to be cached", name)
		}
	}
	if _, ok := s.cache.Peek(cache.GroupCoinMarketCap, "Listing"); !ok {
		t.Error("Expected market cap listing to be cached")
	}
}

func TestWarmUp_ReportsFailedExchange(t *testing.T) {
	down := &domain.FetchError{URL: "https://api.bittrex.com/v3/markets/summaries", StatusCode: 503}
	s := newTestScanner(failingReader{next: fixtureReader(), source: "bittrex", err: down}, "", "", "")

	report, err := usecase.WarmUp(context.Background(), s.cache, s.marketCap, zap.NewNop())
	if !errors.Is(err, domain.ErrUpstreamFetch) {
		t.Errorf("Expected ErrUpstreamFetch, got %v", err)
	}
	if !reflect.DeepEqual(report.Failed(), []string{"bittrex"}) {
		t.Errorf("Expected only bittrex to fail, got %v", report.Failed())
	}
	if _, ok := s.cache.Peek(cache.GroupExchangeInfo, "binance"); !ok {
		t.Error("Expected binance exchange info despite bittrex failure")
	}
	if _, ok := s.cache.Peek(cache.GroupCoinMarketCap, "Listing"); ok {
		t.Error("Expected no listing after a failed warm up")
	}
}
