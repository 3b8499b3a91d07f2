package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vitos/crypto_scanner/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExchangeInfoSupplier builds the tradable symbol list of one exchange.
type ExchangeInfoSupplier func(ctx context.Context) ([]domain.Symbol, error)

type warmupTask struct {
	name string
	run  func(ctx context.Context) error
}

// AddExchangeInfoSupplier registers how to (re)build an exchange's symbol
// list. The exchange name is registered too.
func (c *Cache) AddExchangeInfoSupplier(name string, supplier ExchangeInfoSupplier) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	c.suppliers[name] = supplier
	c.addNameLocked(name)
}

func (c *Cache) AddExchangeName(name string) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	c.addNameLocked(name)
}

func (c *Cache) addNameLocked(name string) {
	for _, n := range c.names {
		if n == name {
			return
		}
	}
	c.names = append(c.names, name)
}

// ExchangeNames lists registered exchanges in registration order.
func (c *Cache) ExchangeNames() []string {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// AddWarmupTask registers extra work for WarmUp, such as preloading the
// market cap map.
func (c *Cache) AddWarmupTask(name string, run func(ctx context.Context) error) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	c.tasks = append(c.tasks, warmupTask{name: name, run: run})
}

// RetrieveExchangeInfo returns the cached symbol list of a registered
// exchange, building it with the registered supplier on a miss.
func (c *Cache) RetrieveExchangeInfo(ctx context.Context, name string) ([]domain.Symbol, error) {
	c.regMu.RLock()
	supplier, ok := c.suppliers[name]
	c.regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no exchange info supplier for %q", domain.ErrNotFound, name)
	}
	return Get(ctx, c, GroupExchangeInfo, name, func(ctx context.Context) ([]domain.Symbol, error) {
		return supplier(ctx)
	})
}

// WarmupReport holds the outcome of every warm-up task by name.
type WarmupReport struct {
	Results map[string]error
	Took    time.Duration
}

// Failed lists tasks that returned an error, sorted by name.
func (r WarmupReport) Failed() []string {
	var out []string
	for name, err := range r.Results {
		if err != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (r WarmupReport) Err() error {
	var errs []error
	for _, name := range r.Failed() {
		errs = append(errs, fmt.Errorf("warm up %s: %w", name, r.Results[name]))
	}
	return errors.Join(errs...)
}

// WarmUp populates every registered exchange info and runs the extra tasks
// concurrently. A failing task does not cancel the others; its error is
// recorded in the report.
func (c *Cache) WarmUp(ctx context.Context) WarmupReport {
	c.regMu.RLock()
	tasks := make([]warmupTask, 0, len(c.suppliers)+len(c.tasks))
	for _, name := range c.names {
		if _, ok := c.suppliers[name]; !ok {
			continue
		}
		tasks = append(tasks, warmupTask{
			name: name,
			run: func(ctx context.Context) error {
				_, err := c.RetrieveExchangeInfo(ctx, name)
				return err
			},
		})
	}
	tasks = append(tasks, c.tasks...)
	c.regMu.RUnlock()

	start := c.timeNow()
	var mu sync.Mutex
	results := make(map[string]error, len(tasks))
	var g errgroup.Group
	for _, t := range tasks {
		g.Go(func() error {
			err := t.run(ctx)
			mu.Lock()
			results[t.name] = err
			mu.Unlock()
			if err != nil {
				c.logger.Warn("warm up task failed", zap.String("task", t.name), zap.Error(err))
			} else {
				c.logger.Info("warm up task done", zap.String("task", t.name))
			}
			return nil
		})
	}
	_ = g.Wait()

	return WarmupReport{Results: results, Took: c.timeNow().Sub(start)}
}
