package indicators

// RSI computes a Wilder-smoothed relative strength index on [0,100].
// Entries with insufficient history, and inputs shorter than period+1
// entirely, are the neutral 50.
func RSI(values []float64, period int) []float64 {
	n := len(values)
	if n < period+1 {
		out := make([]float64, n)
		for i := range out {
			out[i] = 50.0
		}
		return out
	}

	gains := make([]float64, n-1)
	losses := make([]float64, n-1)
	for i := 1; i < n; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gains[i-1] = d
		} else {
			losses[i-1] = -d
		}
	}

	avgGain := make([]float64, n)
	avgLoss := make([]float64, n)
	for i := 0; i < period; i++ {
		avgGain[period] += gains[i]
		avgLoss[period] += losses[i]
	}
	avgGain[period] /= float64(period)
	avgLoss[period] /= float64(period)
	for i := period + 1; i < n; i++ {
		avgGain[i] = (avgGain[i-1]*float64(period-1) + gains[i-1]) / float64(period)
		avgLoss[i] = (avgLoss[i-1]*float64(period-1) + losses[i-1]) / float64(period)
	}

	out := make([]float64, n)
	for i := 0; i < period; i++ {
		out[i] = 50.0
	}
	for i := period; i < n; i++ {
		if avgLoss[i] == 0 {
			out[i] = 100.0
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100.0 - 100.0/(1.0+rs)
	}
	return out
}

// StochRSIResult holds the raw stochastic-of-RSI series and its smoothed
// %K/%D lines, all scaled to [0,100].
type StochRSIResult struct {
	StochRSI []float64
	K        []float64
	D        []float64
}

// StochRSI applies a stochastic oscillator to the RSI series, then smooths
// %K and %D with simple moving averages. Inputs shorter than
// rsiPeriod+stochPeriod yield all-zero series.
func StochRSI(closes []float64, rsiPeriod, stochPeriod, kSmooth, dSmooth int) StochRSIResult {
	n := len(closes)
	if n < rsiPeriod+stochPeriod {
		z := make([]float64, n)
		return StochRSIResult{StochRSI: z, K: make([]float64, n), D: make([]float64, n)}
	}

	rsi := RSI(closes, rsiPeriod)
	stoch := make([]float64, n)
	for i := stochPeriod - 1; i < n; i++ {
		lo, hi := rsi[i], rsi[i]
		for j := i - stochPeriod + 1; j < i; j++ {
			if rsi[j] < lo {
				lo = rsi[j]
			}
			if rsi[j] > hi {
				hi = rsi[j]
			}
		}
		if hi-lo > 1e-10 {
			stoch[i] = (rsi[i] - lo) / (hi - lo) * 100.0
		} else {
			stoch[i] = 50.0
		}
	}

	k := SMA(stoch, kSmooth)
	d := SMA(k, dSmooth)
	return StochRSIResult{StochRSI: stoch, K: k, D: d}
}
