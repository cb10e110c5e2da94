package indicators

import "math"

// BollingerResult holds the three Bollinger bands and the bandwidth series.
type BollingerResult struct {
	Upper     []float64
	Middle    []float64
	Lower     []float64
	Bandwidth []float64
}

// Bollinger computes SMA ± (population stddev × mult) over the trailing
// window, plus bandwidth = (upper−lower)/middle. Leading entries inherit the
// first valid window's stddev, matching the SMA backfill.
func Bollinger(closes []float64, period int, mult float64) BollingerResult {
	n := len(closes)
	middle := SMA(closes, period)

	std := make([]float64, n)
	if n >= period {
		for i := period - 1; i < n; i++ {
			mean := 0.0
			for j := i - period + 1; j <= i; j++ {
				mean += closes[j]
			}
			mean /= float64(period)
			variance := 0.0
			for j := i - period + 1; j <= i; j++ {
				d := closes[j] - mean
				variance += d * d
			}
			std[i] = math.Sqrt(variance / float64(period))
		}
		for i := 0; i < period-1; i++ {
			std[i] = std[period-1]
		}
	}

	upper := make([]float64, n)
	lower := make([]float64, n)
	bandwidth := make([]float64, n)
	for i := 0; i < n; i++ {
		upper[i] = middle[i] + std[i]*mult
		lower[i] = middle[i] - std[i]*mult
		if middle[i] != 0 {
			bandwidth[i] = (upper[i] - lower[i]) / middle[i]
		}
	}
	return BollingerResult{Upper: upper, Middle: middle, Lower: lower, Bandwidth: bandwidth}
}

// VWAPResult holds the cumulative VWAP and its deviation bands.
type VWAPResult struct {
	VWAP  []float64
	Upper []float64
	Lower []float64
}

// VWAP computes the cumulative volume-weighted typical price with bands at
// mult standard deviations, where variance is the volume-weighted cumulative
// variance of the typical price around the VWAP. Series shorter than two
// bars yield all-zero output.
func VWAP(highs, lows, closes, volumes []float64, mult float64) VWAPResult {
	n := len(closes)
	if n < 2 {
		return VWAPResult{VWAP: make([]float64, n), Upper: make([]float64, n), Lower: make([]float64, n)}
	}

	vwap := make([]float64, n)
	upper := make([]float64, n)
	lower := make([]float64, n)

	var cumPV, cumV, cumSq float64
	for i := 0; i < n; i++ {
		tp := (highs[i] + lows[i] + closes[i]) / 3
		vol := volumes[i]
		if vol <= 0 {
			vol = 1
		}
		cumPV += tp * vol
		cumV += vol
		vwap[i] = cumPV / cumV

		d := tp - vwap[i]
		cumSq += d * d * vol
		std := math.Sqrt(cumSq / cumV)
		upper[i] = vwap[i] + std*mult
		lower[i] = vwap[i] - std*mult
	}
	return VWAPResult{VWAP: vwap, Upper: upper, Lower: lower}
}
