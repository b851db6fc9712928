package model

import (
	"context"
	"time"
)

// CandleCache persists fetched history so backtests can run offline.
type CandleCache interface {
	// SaveCandles upserts candles for (symbol, tf).
	SaveCandles(ctx context.Context, symbol string, tf Timeframe, candles []Candle) error

	// ReadCandles returns cached candles at or after since, oldest first.
	ReadCandles(ctx context.Context, symbol string, tf Timeframe, since time.Time) ([]Candle, error)
}
