package indicators

// SuperTrendResult holds the trailing band value and the trend direction per
// bar: +1 uptrend, -1 downtrend.
type SuperTrendResult struct {
	Value     []float64
	Direction []int
}

// SuperTrend computes ATR-based trailing bands with the standard flip rule:
// the band locks (only tightens) while the trend holds, the trend flips to
// down when the close fails to break above the locked upper band, and to up
// when it does. Inputs of period or fewer bars yield zero values with
// direction 0.
func SuperTrend(highs, lows, closes []float64, period int, mult float64) SuperTrendResult {
	n := len(closes)
	if n < period+1 {
		return SuperTrendResult{Value: make([]float64, n), Direction: make([]int, n)}
	}

	atr := ATR(highs, lows, closes, period)

	finalUpper := make([]float64, n)
	finalLower := make([]float64, n)
	value := make([]float64, n)
	dir := make([]int, n)

	basicUpper := func(i int) float64 { return (highs[i]+lows[i])/2 + mult*atr[i] }
	basicLower := func(i int) float64 { return (highs[i]+lows[i])/2 - mult*atr[i] }

	finalUpper[0] = basicUpper(0)
	finalLower[0] = basicLower(0)
	value[0] = closes[0]
	dir[0] = 1

	for i := 1; i < n; i++ {
		bu, bl := basicUpper(i), basicLower(i)
		if bu < finalUpper[i-1] || closes[i-1] > finalUpper[i-1] {
			finalUpper[i] = bu
		} else {
			finalUpper[i] = finalUpper[i-1]
		}
		if bl > finalLower[i-1] || closes[i-1] < finalLower[i-1] {
			finalLower[i] = bl
		} else {
			finalLower[i] = finalLower[i-1]
		}

		if closes[i] <= finalUpper[i] {
			value[i] = finalUpper[i]
			dir[i] = -1
		} else {
			value[i] = finalLower[i]
			dir[i] = 1
		}
	}
	return SuperTrendResult{Value: value, Direction: dir}
}
