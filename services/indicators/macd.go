package indicators

// MACDResult holds the MACD line, its signal line, and the histogram.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast) − EMA(slow), an EMA of that difference as the
// signal line, and their difference as the histogram.
func MACD(closes []float64, fast, slow, signalPeriod int) MACDResult {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)

	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	signal := EMA(macd, signalPeriod)

	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = macd[i] - signal[i]
	}
	return MACDResult{MACD: macd, Signal: signal, Histogram: hist}
}
