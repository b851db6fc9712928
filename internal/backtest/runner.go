package backtest

import (
	"context"
	"fmt"
	"math"

	"market-sentinel/internal/model"
)

// MaxHistoryCandles caps a single history request.
const MaxHistoryCandles = 1000

// HistorySource supplies historical candles, oldest first.
type HistorySource interface {
	FetchCandles(ctx context.Context, asset model.Asset, tf model.Timeframe, limit int) ([]model.Candle, error)
}

// Request is one backtest over fetched history.
type Request struct {
	Asset     model.Asset
	Timeframe model.Timeframe
	Days      int
	Params    Params
}

// HistoryLimit is the candle count covering days at tf, capped at MaxHistoryCandles.
func HistoryLimit(tf model.Timeframe, days int) int {
	n := int(math.Ceil(float64(days) * tf.CandlesPerDay()))
	if n < 1 {
		n = 1
	}
	if n > MaxHistoryCandles {
		n = MaxHistoryCandles
	}
	return n
}

// Runner fetches history and runs the simulation. Each call works on its own
// copy of the data, so Runner is safe for concurrent use.
type Runner struct {
	source HistorySource
}

// NewRunner creates a Runner reading from source.
func NewRunner(source HistorySource) *Runner {
	return &Runner{source: source}
}

// Run fetches the requested window and backtests it.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if err := req.Params.Validate(); err != nil {
		return Result{}, err
	}
	if !req.Timeframe.Valid() {
		return Result{}, fmt.Errorf("%w: unsupported timeframe %q", ErrInvalidParams, req.Timeframe)
	}
	if req.Days <= 0 {
		return Result{}, fmt.Errorf("%w: days must be positive", ErrInvalidParams)
	}

	limit := HistoryLimit(req.Timeframe, req.Days)
	candles, err := r.source.FetchCandles(ctx, req.Asset, req.Timeframe, limit)
	if err != nil {
		return Result{}, fmt.Errorf("backtest: fetch %s %s: %w", req.Asset.Symbol, req.Timeframe, err)
	}
	return Run(candles, req.Params), nil
}
