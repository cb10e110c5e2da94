package indicators

import "math"

// ATR computes the average true range as an EMA of the true range, where
// true range = max(high−low, |high−prevClose|, |low−prevClose|). Inputs of
// period or fewer bars yield an all-zero series.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(highs)
	if n < period+1 {
		return make([]float64, n)
	}

	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return EMA(tr, period)
}
