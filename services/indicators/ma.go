// Package indicators computes technical indicator series from ordered price
// arrays. Every function is pure and returns output aligned 1:1 with its
// input: indices before the indicator's lookback carry a documented fallback
// value (the input value itself for averages and bands, a neutral midpoint
// for bounded oscillators, zero for difference-based series), never a gap and
// never an error. This keeps downstream consumers free of NaN/short-array
// handling.
package indicators

// EMA computes an exponential moving average with alpha = 2/(period+1),
// seeded with the first value. Inputs shorter than the period are returned
// unchanged (copy).
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if len(values) < period || len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1.0)
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// SMA computes a simple moving average over a trailing window. Leading
// entries before the first full window are backfilled with the first valid
// average; inputs shorter than the period are returned unchanged (copy).
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if len(values) < period || period <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	for i := 0; i < period-1; i++ {
		out[i] = out[period-1]
	}
	return out
}
