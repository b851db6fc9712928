// Package marketdata fetches OHLC history from exchange and broker APIs and
// reduces it to per-cycle indicator snapshots.
package marketdata

import (
	"context"
	"errors"

	"market-sentinel/internal/model"
)

// ErrNoSnapshots is returned when every fetch of a cycle failed.
var ErrNoSnapshots = errors.New("marketdata: no snapshots collected")

// ErrUnsupportedAsset is returned when no vendor serves an asset class.
var ErrUnsupportedAsset = errors.New("marketdata: unsupported asset")

// HistorySource returns up to limit candles for an asset, oldest first.
type HistorySource interface {
	FetchCandles(ctx context.Context, asset model.Asset, tf model.Timeframe, limit int) ([]model.Candle, error)
}

// Fetcher returns the series the indicator engine consumes.
type Fetcher interface {
	FetchSeries(ctx context.Context, asset model.Asset, tf model.Timeframe, limit int) (model.SeriesInput, error)
}

// lastN returns the trailing n candles.
func lastN(candles []model.Candle, n int) []model.Candle {
	if n > 0 && len(candles) > n {
		return candles[len(candles)-n:]
	}
	return candles
}
