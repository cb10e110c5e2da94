package indicators

// KDJResult holds the stochastic %K/%D lines and the J divergence line.
// J = 3K − 2D and can leave [0,100]; excursions past the bounds are the
// extreme-signal trigger.
type KDJResult struct {
	K []float64
	D []float64
	J []float64
}

// KDJ computes the stochastic oscillator over the trailing period with
// SMA-smoothed %K and %D plus the J line. Inputs shorter than the period
// yield all-zero series.
func KDJ(highs, lows, closes []float64, period, kSmooth, dSmooth int) KDJResult {
	n := len(closes)
	if n < period {
		return KDJResult{K: make([]float64, n), D: make([]float64, n), J: make([]float64, n)}
	}

	raw := make([]float64, n)
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
		if hi-lo > 1e-10 {
			raw[i] = 100.0 * (closes[i] - lo) / (hi - lo)
		} else {
			raw[i] = 50.0
		}
	}

	k := SMA(raw, kSmooth)
	d := SMA(k, dSmooth)
	j := make([]float64, n)
	for i := 0; i < n; i++ {
		j[i] = 3*k[i] - 2*d[i]
	}
	return KDJResult{K: k, D: d, J: j}
}
