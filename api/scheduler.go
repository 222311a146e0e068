/*
scheduler.go - Periodic cache warm-up of analytics datasets

PURPOSE:
  Prepaid card sales and a few other datasets take the analytics proxy
  tens of seconds to compute. The warmer fetches every dataset for the
  current month on a fixed interval so that dashboard requests are
  served from the cache.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Fetches through the same cached DataSource as the handlers, so a
    warm-up fills exactly the entries a dashboard request would read
  - Fetches datasets concurrently, at most Concurrency at a time
  - A failed fetch is logged and retried on the next tick

CONFIGURATION:
  - Interval:    How often to warm (0 disables the warmer)
  - Concurrency: Parallel fetches (default: 2)
  - Datasets:    What to warm (default: all)

USAGE:
  warmer := NewCacheWarmer(cachedSource, logger)
  warmer.Interval = cfg.WarmInterval
  warmer.Start()
  // ... later
  warmer.Stop()

SEE ALSO:
  - source/cache.go: Cache and Cached decorator
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Modou1ngom/cofidash/source"
)

// CacheWarmer prefetches datasets on an interval.
type CacheWarmer struct {
	Source      source.DataSource
	Datasets    []source.Dataset
	Interval    time.Duration
	Concurrency int
	Logger      *zap.Logger

	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewCacheWarmer(src source.DataSource, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{
		Source:      src,
		Datasets:    source.AllDatasets,
		Interval:    10 * time.Minute,
		Concurrency: 2,
		Logger:      logger.Named("warmer"),
		now:         time.Now,
	}
}

// Start begins warming. It is a no-op when Interval is 0 or the warmer
// already runs.
func (cw *CacheWarmer) Start() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.Interval <= 0 {
		cw.Logger.Info("cache warmer disabled")
		return
	}
	if cw.ticker != nil {
		return
	}

	cw.ticker = time.NewTicker(cw.Interval)
	cw.stop = make(chan struct{})
	cw.wg.Add(1)
	go cw.run(cw.ticker, cw.stop)

	cw.Logger.Info("cache warmer started", zap.Duration("interval", cw.Interval))
}

// Stop stops the warmer and waits for an in-flight warm-up.
func (cw *CacheWarmer) Stop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.ticker == nil {
		return
	}
	cw.ticker.Stop()
	close(cw.stop)
	cw.wg.Wait()
	cw.ticker = nil
	cw.Logger.Info("cache warmer stopped")
}

func (cw *CacheWarmer) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer cw.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	cw.WarmOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cw.WarmOnce(ctx)
		case <-stop:
			return
		}
	}
}

// WarmOnce fetches every dataset for the current month and returns the
// number fetched successfully.
func (cw *CacheWarmer) WarmOnce(ctx context.Context) int {
	now := cw.now()
	year, month := now.Year(), int(now.Month())
	params := source.Params{Period: "month", Year: &year, Month: &month}

	limit := cw.Concurrency
	if limit <= 0 {
		limit = 1
	}
	var (
		mu sync.Mutex
		ok int
	)
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for _, ds := range cw.Datasets {
		ds := ds
		g.Go(func() error {
			start := time.Now()
			if _, err := cw.Source.Fetch(ctx, ds, params); err != nil {
				cw.Logger.Warn("warm-up fetch failed", zap.String("dataset", string(ds)), zap.Error(err))
				return nil
			}
			cw.Logger.Debug("dataset warmed", zap.String("dataset", string(ds)), zap.Duration("duration", time.Since(start)))
			mu.Lock()
			ok++
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return ok
}
