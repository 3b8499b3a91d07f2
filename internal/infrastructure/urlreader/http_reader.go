package urlreader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vitos/crypto_scanner/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultHTTPTimeout  = 10 * time.Second
	defaultMaxRetries   = 2
	defaultRetryBackoff = 200 * time.Millisecond
	maxErrorBody        = 512
)

// HTTPReader performs GET requests against live upstream endpoints.
type HTTPReader struct {
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	userAgent  string
	logger     *zap.Logger
}

type Option func(*HTTPReader)

func WithHTTPClient(hc *http.Client) Option {
	return func(r *HTTPReader) {
		if hc != nil {
			r.client = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *HTTPReader) {
		if d > 0 {
			r.client.Timeout = d
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(r *HTTPReader) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(r *HTTPReader) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *HTTPReader) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewHTTPReader(opts ...Option) *HTTPReader {
	r := &HTTPReader{
		client:     &http.Client{Timeout: defaultHTTPTimeout},
		maxRetries: defaultMaxRetries,
		backoff:    defaultRetryBackoff,
		userAgent:  "crypto-scanner/1.0",
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read fetches req.URL with req.Query appended. Transport errors, 429 and
// 5xx responses are retried; other 4xx responses fail immediately.
func (r *HTTPReader) Read(ctx context.Context, req domain.Request) ([]byte, error) {
	target := req.URL
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var lastErr error
	backoff := r.backoff
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		body, retry, err := r.do(ctx, target, req.Header)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !retry || attempt == r.maxRetries {
			break
		}
		r.logger.Debug("retrying upstream request",
			zap.String("source", req.Source),
			zap.String("endpoint", req.Endpoint),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (r *HTTPReader) do(ctx context.Context, target string, header http.Header) ([]byte, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, &domain.FetchError{URL: target, Err: fmt.Errorf("build request: %w", err)}
	}
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, true, &domain.FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, &domain.FetchError{URL: target, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, &domain.FetchError{URL: target, StatusCode: resp.StatusCode, Body: snippet}
	}
	return body, false, nil
}
