package indicator

// NeutralRSI is emitted wherever RSI cannot be computed yet.
const NeutralRSI = 50.0

// DefaultRSIPeriod is the lookback used by snapshots and backtests.
const DefaultRSIPeriod = 14

// RSI calculates the Relative Strength Index over prices using Wilder's smoothing.
// The result is aligned index-for-index with prices. Indices below period hold
// NeutralRSI; index period is seeded from the simple mean of the first period
// deltas and every later index is smoothed from the previous averages.
// A series shorter than period+1 yields all NeutralRSI.
func RSI(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = NeutralRSI
	}
	if period <= 0 || len(prices) < period+1 {
		return out
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		delta := prices[i] - prices[i-1]
		if delta >= 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	p := float64(period)
	avgGain := gains / p
	avgLoss := losses / p
	out[period] = rsiValue(avgGain, avgLoss)

	// Wilder's smoothing: avg = (prevAvg * (period-1) + x) / period
	for i := period + 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

// rsiValue converts smoothed averages to RSI. A zero average loss is replaced
// by 1, which pulls the value toward 100 instead of dividing by zero.
func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		avgLoss = 1
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// LastRSI returns the final value of RSI(prices, period), or NeutralRSI for an empty series.
func LastRSI(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return NeutralRSI
	}
	values := RSI(prices, period)
	return values[len(values)-1]
}
