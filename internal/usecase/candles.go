package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/vitos/crypto_scanner/internal/domain"
	"golang.org/x/sync/errgroup"
)

// rangeStart resolves a "<n>d" or "<n>M" range ending at end.
func rangeStart(daysOrMonths string, end time.Time) (time.Time, error) {
	if len(daysOrMonths) < 2 {
		return time.Time{}, fmt.Errorf("%w: range %q", domain.ErrMalformedData, daysOrMonths)
	}
	unit := daysOrMonths[len(daysOrMonths)-1]
	n, err := strconv.Atoi(daysOrMonths[:len(daysOrMonths)-1])
	if err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("%w: range %q", domain.ErrMalformedData, daysOrMonths)
	}
	switch unit {
	case 'd', 'D':
		return end.AddDate(0, 0, -n), nil
	case 'M', 'm':
		return end.AddDate(0, -n, 0), nil
	}
	return time.Time{}, fmt.Errorf("%w: range %q must end in d or M", domain.ErrMalformedData, daysOrMonths)
}

// intervalDuration parses kline intervals such as "15m", "4h", "24h", "1d",
// "1w" and "1M".
func intervalDuration(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("%w: interval %q", domain.ErrMalformedData, interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: interval %q", domain.ErrMalformedData, interval)
	}
	var unit time.Duration
	switch interval[len(interval)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	case 'M':
		unit = 30 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: interval %q", domain.ErrMalformedData, interval)
	}
	return time.Duration(n) * unit, nil
}

func candleKey(exchange, symbol, interval, daysOrMonths string) string {
	return exchange + "-" + symbol + interval + daysOrMonths
}

// fetchCandles requests the range in one call, or in two concurrent halves
// once it reaches maxPoints. Beyond twice maxPoints the request is refused.
func fetchCandles(ctx context.Context, src domain.CandleSource, symbol, interval, daysOrMonths string, end time.Time, maxPoints int) ([]domain.Candle, error) {
	start, err := rangeStart(daysOrMonths, end)
	if err != nil {
		return nil, err
	}
	step, err := intervalDuration(interval)
	if err != nil {
		return nil, err
	}

	points := int(end.Sub(start) / step)
	if points > 2*maxPoints {
		return nil, fmt.Errorf("%w: %d %s candles for %s over %s, limit %d", domain.ErrTooMuchData, points, interval, symbol, daysOrMonths, 2*maxPoints)
	}
	if points < maxPoints {
		return src.Candles(ctx, symbol, interval, start, end)
	}

	mid := start.Add(end.Sub(start) / 2)
	var first, second []domain.Candle
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		first, err = src.Candles(gctx, symbol, interval, start, mid)
		return err
	})
	g.Go(func() error {
		var err error
		second, err = src.Candles(gctx, symbol, interval, mid, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergeCandles(first, second), nil
}

// mergeCandles sorts by close time and drops the bar both halves returned
// at the split point.
func mergeCandles(a, b []domain.Candle) []domain.Candle {
	all := make([]domain.Candle, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CloseTime < all[j].CloseTime })

	out := all[:0]
	for i, c := range all {
		if i > 0 && c.OpenTime == out[len(out)-1].OpenTime {
			continue
		}
		out = append(out, c)
	}
	return out
}
