package marketdata

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"market-sentinel/internal/indicator"
	"market-sentinel/internal/model"
)

var errEmptySeries = errors.New("marketdata: empty series")

// DefaultKlineLimit is the history fetched per pair. MACD is seeded from the
// first close, so its values depend on this length.
const DefaultKlineLimit = 200

// Collector fetches every (asset, timeframe) pair of a universe and reduces
// each series to an indicator snapshot. Crypto requests run on a bounded
// worker pool; equity requests run sequentially with StockRequestGap between
// them to stay inside broker rate limits.
type Collector struct {
	Fetcher         Fetcher
	Limit           int
	Workers         int
	StockRequestGap time.Duration

	// OnFetchError is called for every failed fetch. Failed pairs are
	// skipped, the rest of the cycle continues. Calls are serialised, so
	// the hook needs no locking of its own.
	OnFetchError func(asset model.Asset, tf model.Timeframe, err error)

	Now func() time.Time

	hookMu sync.Mutex
}

// NewCollector returns a Collector with default limits.
func NewCollector(f Fetcher) *Collector {
	return &Collector{
		Fetcher:         f,
		Limit:           DefaultKlineLimit,
		Workers:         8,
		StockRequestGap: 200 * time.Millisecond,
		Now:             time.Now,
	}
}

type job struct {
	asset model.Asset
	tf    model.Timeframe
}

// Collect builds one cycle. It returns ErrNoSnapshots when nothing could be
// fetched, and ctx.Err() when cancelled part way.
func (c *Collector) Collect(ctx context.Context, universe []model.Asset, tfs []model.Timeframe) (model.Cycle, error) {
	cycle := model.NewCycle(c.now())

	var crypto, stocks []job
	for _, tf := range tfs {
		for _, a := range universe {
			if a.Class == model.ClassStock {
				stocks = append(stocks, job{a, tf})
			} else {
				crypto = append(crypto, job{a, tf})
			}
		}
	}

	var mu sync.Mutex
	put := func(s model.AssetSnapshot) {
		mu.Lock()
		cycle.Put(s)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, c.workers())
	for _, j := range crypto {
		select {
		case <-ctx.Done():
			wg.Wait()
			return cycle, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			defer func() { <-sem }()
			if s, ok := c.fetch(ctx, j); ok {
				put(s)
			}
		}(j)
	}

	// Equities share one rate-limited lane alongside the crypto pool.
	for i, j := range stocks {
		if i > 0 && c.StockRequestGap > 0 {
			select {
			case <-ctx.Done():
				wg.Wait()
				return cycle, ctx.Err()
			case <-time.After(c.StockRequestGap):
			}
		}
		if s, ok := c.fetch(ctx, j); ok {
			put(s)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return cycle, err
	}
	if cycle.Len() == 0 && len(crypto)+len(stocks) > 0 {
		return cycle, ErrNoSnapshots
	}
	slog.Debug("cycle collected",
		"snapshots", cycle.Len(),
		"requested", len(crypto)+len(stocks),
	)
	return cycle, nil
}

func (c *Collector) fetch(ctx context.Context, j job) (model.AssetSnapshot, bool) {
	in, err := c.Fetcher.FetchSeries(ctx, j.asset, j.tf, c.limit())
	if err == nil && len(in.ClosePrices) == 0 {
		err = errEmptySeries
	}
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("fetch failed", "symbol", j.asset.Symbol, "tf", j.tf, "error", err)
			c.reportFetchError(j, err)
		}
		return model.AssetSnapshot{}, false
	}
	return indicator.BuildSnapshot(j.asset, j.tf, in, c.now()), true
}

func (c *Collector) reportFetchError(j job, err error) {
	if c.OnFetchError == nil {
		return
	}
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.OnFetchError(j.asset, j.tf, err)
}

func (c *Collector) limit() int {
	if c.Limit > 0 {
		return c.Limit
	}
	return DefaultKlineLimit
}

func (c *Collector) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return 1
}

func (c *Collector) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
