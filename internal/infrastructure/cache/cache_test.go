package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(opts ...Option) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(opts...), clock
}

func TestRetrieve_SingleFlight(t *testing.T) {
	c, _ := newTestCache()
	var calls int32
	release := make(chan struct{})

	produce := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "payload", nil
	}

	const callers = 50
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Retrieve(context.Background(), GroupAll24HourTicker, "binance", produce)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "producer should run once")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "payload", results[i])
	}
}

func TestRetrieve_HitSkipsProducer(t *testing.T) {
	c, _ := newTestCache()
	calls := 0
	produce := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	v1, err := c.Retrieve(context.Background(), GroupCoin, "k", produce)
	require.NoError(t, err)
	v2, err := c.Retrieve(context.Background(), GroupCoin, "k", produce)
	require.NoError(t, err)

	assert.Equal(t, 1, v1)
	assert.Equal(t, 1, v2)
	assert.Equal(t, 1, calls)
}

func TestRetrieve_ErrorsAreNotCached(t *testing.T) {
	c, _ := newTestCache()
	boom := errors.New("exchange down")
	calls := 0
	produce := func(ctx context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return "ok", nil
	}

	_, err := c.Retrieve(context.Background(), GroupExchangeInfo, "bittrex", produce)
	assert.ErrorIs(t, err, boom)
	_, cached := c.Peek(GroupExchangeInfo, "bittrex")
	assert.False(t, cached)

	v, err := c.Retrieve(context.Background(), GroupExchangeInfo, "bittrex", produce)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestRetrieve_ExpiresPerGroupTTL(t *testing.T) {
	c, clock := newTestCache(WithTTL(GroupAllTickers, time.Minute))
	calls := 0
	produce := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}
	ctx := context.Background()

	_, _ = c.Retrieve(ctx, GroupAllTickers, "binance", produce)
	_, _ = c.Retrieve(ctx, GroupExchangeInfo, "binance", produce)

	clock.Advance(59 * time.Second)
	v, _ := c.Retrieve(ctx, GroupAllTickers, "binance", produce)
	assert.Equal(t, 1, v)

	clock.Advance(2 * time.Second)
	v, _ = c.Retrieve(ctx, GroupAllTickers, "binance", produce)
	assert.Equal(t, 3, v, "tickers entry should have been refreshed")

	// ExchangeInfo keeps its one day TTL.
	v, _ = c.Retrieve(ctx, GroupExchangeInfo, "binance", produce)
	assert.Equal(t, 2, v)
}

func TestRetrieve_CallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	c, _ := newTestCache()
	started := make(chan struct{})
	release := make(chan struct{})
	var producerCtxErr error
	var calls int32

	produce := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		producerCtxErr = ctx.Err()
		return "listing", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Retrieve(ctx, GroupCoinMarketCap, "Listing", produce)
		firstErr <- err
	}()
	<-started

	secondVal := make(chan any, 1)
	go func() {
		v, _ := c.Retrieve(context.Background(), GroupCoinMarketCap, "Listing", produce)
		secondVal <- v
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Equal(t, "listing", <-secondVal)
	assert.NoError(t, producerCtxErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	v, ok := c.Peek(GroupCoinMarketCap, "Listing")
	assert.True(t, ok)
	assert.Equal(t, "listing", v)
}

func TestPut_OverwritesAndWinsOverInFlightProducer(t *testing.T) {
	c, _ := newTestCache()
	ctx := context.Background()

	c.Put(GroupAllTickers, "binance", map[string]float64{"BTCUSDT": 1})
	v, err := c.Retrieve(ctx, GroupAllTickers, "binance", func(ctx context.Context) (any, error) {
		t.Error("producer must not run when a value was put")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTCUSDT": 1}, v)

	c.Evict(GroupAllTickers, "binance")
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan any, 1)
	go func() {
		v, _ := c.Retrieve(ctx, GroupAllTickers, "binance", func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return "stale", nil
		})
		done <- v
	}()
	<-started
	c.Put(GroupAllTickers, "binance", "fresh")
	close(release)

	assert.Equal(t, "stale", <-done, "waiters still receive what they waited for")
	v, ok := c.Peek(GroupAllTickers, "binance")
	assert.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestEvict_ForcesNewProducerCall(t *testing.T) {
	c, _ := newTestCache()
	calls := 0
	produce := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}
	ctx := context.Background()

	_, _ = c.Retrieve(ctx, GroupCoin, "binance-BTCUSDT1h7d", produce)
	c.Evict(GroupCoin, "binance-BTCUSDT1h7d")
	v, _ := c.Retrieve(ctx, GroupCoin, "binance-BTCUSDT1h7d", produce)

	assert.Equal(t, 2, v)
}

func TestGet_TypedAndMismatch(t *testing.T) {
	c, _ := newTestCache()
	ctx := context.Background()

	got, err := Get(ctx, c, GroupIcon, "BTC", func(ctx context.Context) ([]byte, error) {
		return []byte{1, 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)

	c.Put(GroupIcon, "ETH", "not bytes")
	_, err = Get(ctx, c, GroupIcon, "ETH", func(ctx context.Context) ([]byte, error) {
		return nil, nil
	})
	assert.Error(t, err)
}

func TestSweep_RemovesExpired(t *testing.T) {
	c, clock := newTestCache(WithDefaultTTL(time.Minute), WithTTL(GroupIcon, time.Hour))
	c.Put("Other", "a", 1)
	c.Put(GroupIcon, "b", 2)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestUpdate_KeepsExpiry(t *testing.T) {
	c, clock := newTestCache(WithTTL(GroupAllTickers, time.Minute))
	var calls int32
	produce := func(ctx context.Context) (any, error) {
		return int(atomic.AddInt32(&calls, 1)) * 100, nil
	}
	ctx := context.Background()

	assert.False(t, c.Update(GroupAllTickers, "binance", func(old any) any { return 1 }), "no entry to update")
	_, ok := c.Peek(GroupAllTickers, "binance")
	assert.False(t, ok)

	_, err := c.Retrieve(ctx, GroupAllTickers, "binance", produce)
	require.NoError(t, err)

	// a stream batch every 20s for well past the TTL
	for i := 0; i < 12; i++ {
		clock.Advance(20 * time.Second)
		c.Update(GroupAllTickers, "binance", func(old any) any { return old.(int) + 1 })
	}

	v, err := c.Retrieve(ctx, GroupAllTickers, "binance", produce)
	require.NoError(t, err)
	assert.Equal(t, 200, v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestUpdate_ReplacesLiveValue(t *testing.T) {
	c, clock := newTestCache(WithTTL(GroupAllTickers, time.Minute))
	c.Put(GroupAllTickers, "binance", 1)

	clock.Advance(30 * time.Second)
	assert.True(t, c.Update(GroupAllTickers, "binance", func(old any) any { return old.(int) + 1 }))
	v, ok := c.Peek(GroupAllTickers, "binance")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	clock.Advance(31 * time.Second)
	_, ok = c.Peek(GroupAllTickers, "binance")
	assert.False(t, ok, "update must not extend the entry")
}
