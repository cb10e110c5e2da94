package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func flat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestEMASeedAndAlpha(t *testing.T) {
	values := []float64{10, 11, 12, 13, 14}
	got := EMA(values, 3)

	if !almostEqual(got[0], 10) {
		t.Fatalf("seed = %v, want first value", got[0])
	}
	// alpha = 2/(3+1) = 0.5
	want := 0.5*11 + 0.5*10
	if !almostEqual(got[1], want) {
		t.Fatalf("ema[1] = %v, want %v", got[1], want)
	}
}

func TestEMAShortInputReturnsCopy(t *testing.T) {
	values := []float64{1, 2}
	got := EMA(values, 5)
	for i := range values {
		if got[i] != values[i] {
			t.Fatalf("short input: got[%d] = %v, want %v", i, got[i], values[i])
		}
	}
	got[0] = 99
	if values[0] == 99 {
		t.Fatal("EMA must not alias its input")
	}
}

func TestSMAWindowAndBackfill(t *testing.T) {
	values := []float64{2, 4, 6, 8, 10}
	got := SMA(values, 3)

	if !almostEqual(got[2], 4) || !almostEqual(got[4], 8) {
		t.Fatalf("sma = %v", got)
	}
	// Leading entries backfilled with the first valid average.
	if !almostEqual(got[0], 4) || !almostEqual(got[1], 4) {
		t.Fatalf("leading backfill = %v, %v, want 4", got[0], got[1])
	}
}

func TestRSINeutralOnShortInput(t *testing.T) {
	got := RSI(ramp(100, 1, 10), 14)
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	for i, v := range got {
		if v != 50.0 {
			t.Fatalf("rsi[%d] = %v, want neutral 50", i, v)
		}
	}
}

func TestRSIAllGainsSaturates(t *testing.T) {
	got := RSI(ramp(100, 1, 40), 14)
	if got[39] != 100.0 {
		t.Fatalf("rsi on pure uptrend = %v, want 100", got[39])
	}
}

func TestMACDFlatSeriesIsZero(t *testing.T) {
	res := MACD(flat(50, 60), 12, 26, 9)
	for i := 30; i < 60; i++ {
		if !almostEqual(res.MACD[i], 0) || !almostEqual(res.Histogram[i], 0) {
			t.Fatalf("macd on flat series: macd=%v hist=%v", res.MACD[i], res.Histogram[i])
		}
	}
}

func TestBollingerFlatSeriesCollapses(t *testing.T) {
	res := Bollinger(flat(100, 40), 20, 2.0)
	last := len(res.Upper) - 1
	if !almostEqual(res.Upper[last], 100) || !almostEqual(res.Lower[last], 100) {
		t.Fatalf("flat series bands = [%v, %v], want collapsed at 100", res.Lower[last], res.Upper[last])
	}
	if !almostEqual(res.Bandwidth[last], 0) {
		t.Fatalf("flat series bandwidth = %v, want 0", res.Bandwidth[last])
	}
}

func TestATRConstantRange(t *testing.T) {
	n := 50
	highs := flat(102, n)
	lows := flat(98, n)
	closes := flat(100, n)
	got := ATR(highs, lows, closes, 14)
	if !almostEqual(got[n-1], 4) {
		t.Fatalf("atr = %v, want 4", got[n-1])
	}
}

func TestSuperTrendTracksTrend(t *testing.T) {
	n := 120
	closes := ramp(100, 1, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := range closes {
		highs[i] = closes[i] + 0.5
		lows[i] = closes[i] - 0.5
	}
	res := SuperTrend(highs, lows, closes, 10, 3.0)
	if res.Direction[n-1] != 1 {
		t.Fatalf("direction in steady uptrend = %d, want +1", res.Direction[n-1])
	}
	if res.Value[n-1] >= closes[n-1] {
		t.Fatalf("uptrend band %v should trail below close %v", res.Value[n-1], closes[n-1])
	}
}

func TestKDJIdentity(t *testing.T) {
	n := 60
	closes := ramp(100, 0.5, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := range closes {
		highs[i] = closes[i] + 1
		lows[i] = closes[i] - 1
	}
	res := KDJ(highs, lows, closes, 9, 3, 3)
	last := n - 1
	want := 3*res.K[last] - 2*res.D[last]
	if !almostEqual(res.J[last], want) {
		t.Fatalf("J = %v, want 3K-2D = %v", res.J[last], want)
	}
}

func TestWilliamsRBounds(t *testing.T) {
	n := 40
	closes := ramp(100, 1, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := range closes {
		highs[i] = closes[i] + 2
		lows[i] = closes[i] - 2
	}
	got := WilliamsR(highs, lows, closes, 14)
	for i := 14; i < n; i++ {
		if got[i] > 0 || got[i] < -100 {
			t.Fatalf("williams[%d] = %v out of [-100, 0]", i, got[i])
		}
	}
}

func TestROCOnRamp(t *testing.T) {
	got := ROC(ramp(100, 1, 30), 12)
	// (112 - 100) / 100 * 100 = 12
	if !almostEqual(got[12], 12) {
		t.Fatalf("roc[12] = %v, want 12", got[12])
	}
}

// Every indicator must return full-length output with its documented
// fallback when the input is shorter than the lookback — never a shorter
// slice, never a panic.
func TestFallbackLengthsOnShortInput(t *testing.T) {
	n := 5
	closes := ramp(100, 0.5, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	vols := flat(1000, n)
	for i := range closes {
		highs[i] = closes[i] + 1
		lows[i] = closes[i] - 1
	}

	checks := map[string]int{
		"EMA":        len(EMA(closes, 20)),
		"SMA":        len(SMA(closes, 20)),
		"RSI":        len(RSI(closes, 14)),
		"ATR":        len(ATR(highs, lows, closes, 14)),
		"SMI":        len(SMI(highs, lows, closes, 8, 3, 3).SMI),
		"MACD":       len(MACD(closes, 12, 26, 9).Histogram),
		"Bollinger":  len(Bollinger(closes, 20, 2).Upper),
		"StochRSI":   len(StochRSI(closes, 14, 14, 3, 3).K),
		"VWAP":       len(VWAP(highs, lows, closes, vols, 2).VWAP),
		"SuperTrend": len(SuperTrend(highs, lows, closes, 10, 3).Value),
		"KDJ":        len(KDJ(highs, lows, closes, 9, 3, 3).J),
		"CCI":        len(CCI(highs, lows, closes, 20)),
		"ROC":        len(ROC(closes, 12)),
		"WilliamsR":  len(WilliamsR(highs, lows, closes, 14)),
	}
	for name, got := range checks {
		if got != n {
			t.Errorf("%s: output length %d, want %d", name, got, n)
		}
	}
}

func TestVWAPConstantPrice(t *testing.T) {
	n := 20
	closes := flat(100, n)
	res := VWAP(closes, closes, closes, flat(500, n), 2)
	if !almostEqual(res.VWAP[n-1], 100) {
		t.Fatalf("vwap = %v, want 100", res.VWAP[n-1])
	}
	if !almostEqual(res.Upper[n-1], 100) || !almostEqual(res.Lower[n-1], 100) {
		t.Fatal("bands should collapse on zero variance")
	}
}

func TestSMIOscillatesWithinScale(t *testing.T) {
	n := 200
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = 100 + 10*math.Sin(float64(i)/7)
		highs[i] = closes[i] + 1
		lows[i] = closes[i] - 1
	}
	res := SMI(highs, lows, closes, 8, 3, 3)
	for i := 50; i < n; i++ {
		if math.Abs(res.SMI[i]) > 250 {
			t.Fatalf("smi[%d] = %v far outside expected scale", i, res.SMI[i])
		}
	}
}
