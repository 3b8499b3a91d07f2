// Package cache is the process-wide store for upstream payloads. Each entry
// lives in a named group with its own TTL, and concurrent misses on the
// same key share a single producer call.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	GroupCoin            = "CoinCache"
	GroupIcon            = "IconCache"
	GroupAll24HourTicker = "All24HourTicker"
	GroupAllTickers      = "AllTickers"
	GroupExchangeInfo    = "ExchangeInfo"
	GroupCoinMarketCap   = "CoinMarketCap"

	DefaultTTL = 5 * time.Minute
)

// DefaultTTLs mirrors the expirations the scanner has always run with.
func DefaultTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		GroupCoin:            5 * time.Minute,
		GroupIcon:            5 * 24 * time.Hour,
		GroupAll24HourTicker: 15 * time.Minute,
		GroupAllTickers:      time.Minute,
		GroupExchangeInfo:    1441 * time.Minute,
		GroupCoinMarketCap:   2 * time.Hour,
	}
}

// Producer builds a value on a miss. It receives a context that is not
// cancelled when the caller that triggered it goes away.
type Producer func(ctx context.Context) (any, error)

type entry struct {
	value   any
	expires time.Time
}

type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	gens       map[string]uint64
	ttls       map[string]time.Duration
	defaultTTL time.Duration
	flights    singleflight.Group
	timeNow    func() time.Time
	logger     *zap.Logger

	regMu     sync.RWMutex
	suppliers map[string]ExchangeInfoSupplier
	names     []string
	tasks     []warmupTask
}

type Option func(*Cache)

func WithTTL(group string, ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttls[group] = ttl
		}
	}
}

func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.timeNow = now
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]entry),
		gens:       make(map[string]uint64),
		ttls:       DefaultTTLs(),
		defaultTTL: DefaultTTL,
		timeNow:    time.Now,
		logger:     zap.NewNop(),
		suppliers:  make(map[string]ExchangeInfoSupplier),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(group, key string) string {
	return group + "/" + key
}

func (c *Cache) ttl(group string) time.Duration {
	if d, ok := c.ttls[group]; ok {
		return d
	}
	return c.defaultTTL
}

func (c *Cache) lookup(k string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if !c.timeNow().Before(e.expires) {
		delete(c.entries, k)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) generation(k string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[k]
}

// storeIfCurrent keeps a produced value unless Put or Evict touched the key
// after the producer started.
func (c *Cache) storeIfCurrent(group, k string, v any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[k] != gen {
		return false
	}
	c.entries[k] = entry{value: v, expires: c.timeNow().Add(c.ttl(group))}
	return true
}

// Retrieve returns the cached value for group/key, or runs produce once for
// all concurrent callers and caches its result. Errors are returned to every
// waiter and never cached.
func (c *Cache) Retrieve(ctx context.Context, group, key string, produce Producer) (any, error) {
	k := cacheKey(group, key)
	if v, ok := c.lookup(k); ok {
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(k, func() (any, error) {
		if v, ok := c.lookup(k); ok {
			return v, nil
		}
		gen := c.generation(k)
		start := c.timeNow()
		v, err := produce(detached)
		if err != nil {
			c.logger.Warn("cache producer failed",
				zap.String("group", group), zap.String("key", key), zap.Error(err))
			return nil, err
		}
		if !c.storeIfCurrent(group, k, v, gen) {
			c.logger.Debug("cache entry replaced while producing",
				zap.String("group", group), zap.String("key", key))
		}
		c.logger.Debug("cache populated",
			zap.String("group", group), zap.String("key", key),
			zap.Duration("took", c.timeNow().Sub(start)))
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// Get is the typed form of Retrieve.
func Get[T any](ctx context.Context, c *Cache, group, key string, produce func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Retrieve(ctx, group, key, func(ctx context.Context) (any, error) {
		return produce(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache %s: unexpected value type %T", cacheKey(group, key), v)
	}
	return t, nil
}

// Put overwrites group/key unconditionally.
func (c *Cache) Put(group, key string, value any) {
	k := cacheKey(group, key)
	c.mu.Lock()
	c.gens[k]++
	c.entries[k] = entry{value: value, expires: c.timeNow().Add(c.ttl(group))}
	c.mu.Unlock()
}

// Update replaces the value of a live group/key with fn(old) and keeps its
// expiry, so the entry is still refetched on schedule. It reports false
// when there is no live entry.
func (c *Cache) Update(group, key string, fn func(old any) any) bool {
	k := cacheKey(group, key)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok || !c.timeNow().Before(e.expires) {
		return false
	}
	e.value = fn(e.value)
	c.entries[k] = e
	return true
}

// Peek returns a live entry without producing one.
func (c *Cache) Peek(group, key string) (any, bool) {
	return c.lookup(cacheKey(group, key))
}

// Evict drops group/key. Callers arriving afterwards start a new producer
// instead of joining one that is already running.
func (c *Cache) Evict(group, key string) {
	k := cacheKey(group, key)
	c.mu.Lock()
	c.gens[k]++
	delete(c.entries, k)
	c.mu.Unlock()
	c.flights.Forget(k)
}

// Sweep removes expired entries and reports how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.timeNow()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("swept expired cache entries", zap.Int("count", n))
			}
		}
	}
}
