package indicators

import "math"

// CCI computes the Commodity Channel Index:
// (typical − SMA(typical)) / (0.015 × mean deviation). ±100 mark the
// conventional overbought/oversold zones. Leading entries inherit the first
// valid value; short inputs yield zeros.
func CCI(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n < period {
		return out
	}

	tp := make([]float64, n)
	for i := 0; i < n; i++ {
		tp[i] = (highs[i] + lows[i] + closes[i]) / 3
	}

	for i := period - 1; i < n; i++ {
		mean := 0.0
		for j := i - period + 1; j <= i; j++ {
			mean += tp[j]
		}
		mean /= float64(period)
		dev := 0.0
		for j := i - period + 1; j <= i; j++ {
			dev += math.Abs(tp[j] - mean)
		}
		dev /= float64(period)
		if dev > 0 {
			out[i] = (tp[i] - mean) / (0.015 * dev)
		}
	}
	for i := 0; i < period-1; i++ {
		out[i] = out[period-1]
	}
	return out
}

// ROC computes the rate of change in percent over the lookback:
// (close − close[n ago]) / close[n ago] × 100. Leading entries inherit the
// first valid value; short inputs yield zeros.
func ROC(closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n < period+1 {
		return out
	}
	for i := period; i < n; i++ {
		if closes[i-period] != 0 {
			out[i] = (closes[i] - closes[i-period]) / closes[i-period] * 100.0
		}
	}
	for i := 0; i < period; i++ {
		out[i] = out[period]
	}
	return out
}

// WilliamsR computes Williams %R on [−100,0]: −20..0 overbought,
// −100..−80 oversold, −50 when the range collapses. Leading entries inherit
// the first valid value; short inputs yield zeros.
func WilliamsR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n < period {
		return out
	}
	for i := period - 1; i < n; i++ {
		hi, lo := highs[i], lows[i]
		for j := i - period + 1; j < i; j++ {
			if highs[j] > hi {
				hi = highs[j]
			}
			if lows[j] < lo {
				lo = lows[j]
			}
		}
		if hi != lo {
			out[i] = (hi - closes[i]) / (hi - lo) * -100.0
		} else {
			out[i] = -50.0
		}
	}
	for i := 0; i < period-1; i++ {
		out[i] = out[period-1]
	}
	return out
}
