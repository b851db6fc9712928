package indicator

// EMA calculates the Exponential Moving Average of values with span.
// The multiplier is 2/(span+1) and the first output is the first raw value
// rather than an SMA seed, so every index carries a value.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2.0 / float64(span+1)

	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		// EMA = price*k + prev*(1-k)
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}
