package engine

import (
	"math"
	"sort"

	"futures-backtest/services/indicators"
)

// ObservationSize is the fixed width of the policy-model input vector.
const ObservationSize = 45

// AccountState is the running account snapshot folded into the observation,
// taken from the ledger before each evaluation.
type AccountState struct {
	InitialBalance float64
	Balance        float64
	Equity         float64
	PeakEquity     float64
	MaxDrawdown    float64
	UnrealizedPnL  float64
	OpenPositions  int
	MaxPositions   int
	TotalTrades    int
	WinningTrades  int
	WinStreak      int
}

// BuildObservation flattens the window and account state into the 45-scalar
// feature vector the policy model was trained on:
//
//	 5  OHLCV ratios against the window's volume-weighted average close
//	16  normalized indicator values
//	 3  order-flow features (reserved, zero until a depth feed exists)
//	 3  temporal encodings
//	10  account-state features
//	 8  volatility/trend regime features
//
// The layout is part of the model contract; reordering entries invalidates
// every trained checkpoint.
func BuildObservation(w *Window, acct AccountState) []float64 {
	obs := make([]float64, 0, ObservationSize)
	cur := w.Last()
	closePrice := cur.Close

	// Volume-weighted average close over the window.
	var pv, vol float64
	for i := range w.Closes {
		weight := w.Volumes[i]
		if weight <= 0 {
			weight = 1
		}
		pv += w.Closes[i] * weight
		vol += weight
	}
	vwap := pv / vol
	meanVol := mean(w.Volumes)

	volRatio := 0.0
	if meanVol > 0 {
		volRatio = float64(cur.Volume)/meanVol - 1
	}
	obs = append(obs,
		cur.Open/vwap-1,
		cur.High/vwap-1,
		cur.Low/vwap-1,
		cur.Close/vwap-1,
		volRatio,
	)

	// Indicator block.
	smi := indicators.SMI(w.Highs, w.Lows, w.Closes, smiKLength, smiSmoothing, smiSignalPeriod)
	macd := indicators.MACD(w.Closes, macdFast, macdSlow, macdSignalPeriod)
	bb := indicators.Bollinger(w.Closes, bollingerPeriod, bollingerMult)
	smaFast := indicators.SMA(w.Closes, smaFastPeriod)
	smaSlow := indicators.SMA(w.Closes, smaSlowPeriod)
	emaFast := indicators.EMA(w.Closes, emaFastPeriod)
	emaSlow := indicators.EMA(w.Closes, emaSlowPeriod)
	atr := indicators.ATR(w.Highs, w.Lows, w.Closes, 14)
	rsi := indicators.RSI(w.Closes, 14)

	n := w.Len() - 1
	obs = append(obs,
		smi.SMI[n]/100,
		smi.Signal[n]/100,
		macd.MACD[n]/closePrice,
		macd.Signal[n]/closePrice,
		macd.Histogram[n]/closePrice,
		bb.Upper[n]/closePrice-1,
		bb.Middle[n]/closePrice-1,
		bb.Lower[n]/closePrice-1,
		bb.Bandwidth[n],
		smaFast[n]/closePrice-1,
		smaSlow[n]/closePrice-1,
		emaFast[n]/closePrice-1,
		emaSlow[n]/closePrice-1,
		atr[n]/closePrice,
		rsi[n]/100,
		0, // trend-strength slot, reserved
	)

	// Order flow: delta volume, CVD, book imbalance. No depth feed in
	// historical simulation, so these stay zero.
	obs = append(obs, 0, 0, 0)

	// Temporal.
	ts := cur.Time()
	obs = append(obs,
		float64(ts.Hour())/24,
		float64(ts.Weekday())/7,
		0.5, // days-to-expiry slot, reserved
	)

	// Account state.
	initial := acct.InitialBalance
	if initial <= 0 {
		initial = 1
	}
	winRate := 0.0
	if acct.TotalTrades > 0 {
		winRate = float64(acct.WinningTrades) / float64(acct.TotalTrades)
	}
	maxPos := acct.MaxPositions
	if maxPos <= 0 {
		maxPos = 1
	}
	hasOpen := 0.0
	if acct.OpenPositions > 0 {
		hasOpen = 1.0
	}
	obs = append(obs,
		acct.UnrealizedPnL/initial,
		acct.MaxDrawdown/initial,
		float64(acct.OpenPositions)/float64(maxPos),
		float64(acct.WinStreak)/10,
		acct.Equity/initial-1,
		(acct.Equity-acct.PeakEquity)/initial,
		float64(acct.TotalTrades)/100,
		winRate,
		acct.Balance/initial-1,
		hasOpen,
	)

	// Regime.
	returns := make([]float64, 0, len(w.Closes)-1)
	for i := 1; i < len(w.Closes); i++ {
		if w.Closes[i-1] != 0 {
			returns = append(returns, (w.Closes[i]-w.Closes[i-1])/w.Closes[i-1])
		}
	}
	maxClose, minClose := w.Closes[0], w.Closes[0]
	for _, c := range w.Closes {
		maxClose = math.Max(maxClose, c)
		minClose = math.Min(minClose, c)
	}
	totalChange := 0.0
	if w.Closes[0] != 0 {
		totalChange = (w.Closes[len(w.Closes)-1] - w.Closes[0]) / w.Closes[0]
	}
	volInverse := 0.0
	if cur.Volume > 0 {
		volInverse = meanVol/float64(cur.Volume) - 1
	}
	obs = append(obs,
		stddev(returns),
		mean(returns),
		maxClose/closePrice-1,
		minClose/closePrice-1,
		totalChange,
		percentile(w.Closes, 75)/closePrice-1,
		percentile(w.Closes, 25)/closePrice-1,
		volInverse,
	)

	return obs
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

// percentile with linear interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
