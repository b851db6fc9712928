package indicator

import "market-sentinel/internal/model"

// Standard MACD spans.
const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// MACD computes the MACD line (fast EMA minus slow EMA), its signal EMA and
// the histogram for every price. The output has the same length as prices.
func MACD(prices []float64, fast, slow, signal int) []model.MACDPoint {
	emaFast := EMA(prices, fast)
	emaSlow := EMA(prices, slow)

	line := make([]float64, len(prices))
	for i := range prices {
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig := EMA(line, signal)

	out := make([]model.MACDPoint, len(prices))
	for i := range prices {
		out[i] = model.MACDPoint{
			MACD:      line[i],
			Signal:    sig[i],
			Histogram: line[i] - sig[i],
		}
	}
	return out
}

// DefaultMACD is MACD with 12/26/9 spans.
func DefaultMACD(prices []float64) []model.MACDPoint {
	return MACD(prices, DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal)
}
