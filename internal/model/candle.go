package model

import (
	"encoding/json"
	"time"
)

// Candle is one OHLCV bar for a single symbol at a given timeframe.
// Prices are vendor quote-currency floats (USDT for Binance pairs, USD for equities).
type Candle struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bar open time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// JSON returns the JSON-encoded candle (ignoring errors).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Closes extracts the close prices of candles, oldest first.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// SeriesInput is what one fetch yields for an (asset, timeframe) pair.
type SeriesInput struct {
	ClosePrices []float64 `json:"closePrices"`
	LatestOpen  float64   `json:"latestOpen"`
	LatestClose float64   `json:"latestClose"`
}

// SeriesFromCandles builds a SeriesInput from candles ordered oldest first.
func SeriesFromCandles(candles []Candle) SeriesInput {
	in := SeriesInput{ClosePrices: Closes(candles)}
	if n := len(candles); n > 0 {
		in.LatestOpen = candles[n-1].Open
		in.LatestClose = candles[n-1].Close
	}
	return in
}
