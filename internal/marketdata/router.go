package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"market-sentinel/internal/model"
)

// Router dispatches requests to a vendor by asset class. Crypto and
// commodity tokens go to Crypto, equities to Stocks. When Cache is set every
// successful fetch is written through to it.
type Router struct {
	Crypto HistorySource
	Stocks HistorySource
	Cache  model.CandleCache
}

// FetchCandles implements HistorySource.
func (r *Router) FetchCandles(ctx context.Context, asset model.Asset, tf model.Timeframe, limit int) ([]model.Candle, error) {
	var src HistorySource
	switch asset.Class {
	case model.ClassCrypto, model.ClassCommodity:
		src = r.Crypto
	case model.ClassStock:
		src = r.Stocks
	}
	if src == nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedAsset, asset.Symbol, asset.Class)
	}

	candles, err := src.FetchCandles(ctx, asset, tf, limit)
	if err != nil {
		return nil, err
	}
	if r.Cache != nil && len(candles) > 0 {
		if err := r.Cache.SaveCandles(ctx, asset.Ticker, tf, candles); err != nil {
			slog.Warn("candle cache write failed", "symbol", asset.Ticker, "tf", tf, "error", err)
		}
	}
	return candles, nil
}

// FetchSeries implements Fetcher.
func (r *Router) FetchSeries(ctx context.Context, asset model.Asset, tf model.Timeframe, limit int) (model.SeriesInput, error) {
	candles, err := r.FetchCandles(ctx, asset, tf, limit)
	if err != nil {
		return model.SeriesInput{}, err
	}
	return model.SeriesFromCandles(candles), nil
}

// Cached serves history from a CandleCache first and falls back to Source
// when the cache holds fewer than limit candles.
type Cached struct {
	Cache  model.CandleCache
	Source HistorySource
	Now    func() time.Time
}

// FetchCandles implements HistorySource.
func (c *Cached) FetchCandles(ctx context.Context, asset model.Asset, tf model.Timeframe, limit int) ([]model.Candle, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	since := now().Add(-time.Duration(limit+1) * tf.Duration())
	cached, err := c.Cache.ReadCandles(ctx, asset.Ticker, tf, since)
	if err == nil && len(cached) >= limit {
		return lastN(cached, limit), nil
	}
	if err != nil {
		slog.Warn("candle cache read failed", "symbol", asset.Ticker, "tf", tf, "error", err)
	}
	if c.Source == nil {
		return lastN(cached, limit), nil
	}

	candles, err := c.Source.FetchCandles(ctx, asset, tf, limit)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.SaveCandles(ctx, asset.Ticker, tf, candles); err != nil {
		slog.Warn("candle cache write failed", "symbol", asset.Ticker, "tf", tf, "error", err)
	}
	return candles, nil
}
