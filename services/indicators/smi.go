package indicators

// SMIResult holds the Stochastic Momentum Index and its signal line.
type SMIResult struct {
	SMI    []float64
	Signal []float64
}

// SMI computes the Stochastic Momentum Index: the close's distance from the
// midpoint of the highest-high/lowest-low range over kLength bars, double-EMA
// smoothed and scaled so the oscillator swings roughly within ±100. The
// signal line is an EMA of the SMI. Inputs shorter than the combined lookback
// yield all-zero series of the input length.
func SMI(highs, lows, closes []float64, kLength, smoothing, signalPeriod int) SMIResult {
	n := len(closes)
	if n < kLength+smoothing*2+signalPeriod {
		return SMIResult{SMI: make([]float64, n), Signal: make([]float64, n)}
	}

	highK := make([]float64, n)
	lowK := make([]float64, n)
	for i := kLength - 1; i < n; i++ {
		hi, lo := highs[i], lows[i]
		for j := i - kLength + 1; j < i; j++ {
			if highs[j] > hi {
				hi = highs[j]
			}
			if lows[j] < lo {
				lo = lows[j]
			}
		}
		highK[i] = hi
		lowK[i] = lo
	}

	rr := make([]float64, n)
	hl := make([]float64, n)
	for i := 0; i < n; i++ {
		rr[i] = closes[i] - (highK[i]+lowK[i])/2
		hl[i] = highK[i] - lowK[i]
	}

	dsRR := EMA(EMA(rr, smoothing), smoothing)
	dsHL := EMA(EMA(hl, smoothing), smoothing)

	smi := make([]float64, n)
	for i := 0; i < n; i++ {
		if dsHL[i] > 1e-10 {
			smi[i] = 200.0 * (dsRR[i] / dsHL[i])
		}
	}
	return SMIResult{SMI: smi, Signal: EMA(smi, signalPeriod)}
}
