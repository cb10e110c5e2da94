package engine

import "futures-backtest/services/indicators"

// ChartSeries is one named indicator line aligned 1:1 with the bars of its
// timeframe.
type ChartSeries struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// TimeframeChart bundles candles plus indicator overlays for one timeframe.
type TimeframeChart struct {
	Timeframe string        `json:"timeframe"`
	Bars      []Bar         `json:"bars"`
	Series    []ChartSeries `json:"series"`
}

// ChartBundle is the chart-ready view of a run: the execution timeframe plus
// each requested higher timeframe aggregated from it, with every enabled
// indicator rendered as aligned series. Presentation only; the simulation
// never reads it.
type ChartBundle struct {
	ContractID string           `json:"contract_id"`
	Timeframes []TimeframeChart `json:"timeframes"`
}

// BuildChartBundle aggregates the execution-timeframe bars into each
// requested timeframe and computes the enabled indicators on each.
func BuildChartBundle(contractID string, bars []Bar, timeframes []int, rules RuleConfig) *ChartBundle {
	bundle := &ChartBundle{ContractID: contractID}
	for _, tf := range timeframes {
		agg := AggregateBars(bars, tf)
		w := NewWindow(agg)
		bundle.Timeframes = append(bundle.Timeframes, TimeframeChart{
			Timeframe: TimeframeLabel(tf),
			Bars:      agg,
			Series:    indicatorSeries(w, rules),
		})
	}
	return bundle
}

func indicatorSeries(w *Window, rules RuleConfig) []ChartSeries {
	var out []ChartSeries
	add := func(name string, values []float64) {
		out = append(out, ChartSeries{Name: name, Values: values})
	}
	for _, kind := range rules.EnabledKinds() {
		switch kind {
		case KindSMI:
			res := indicators.SMI(w.Highs, w.Lows, w.Closes, smiKLength, smiSmoothing, smiSignalPeriod)
			add("smi", res.SMI)
			add("smi_signal", res.Signal)
		case KindMACD:
			res := indicators.MACD(w.Closes, macdFast, macdSlow, macdSignalPeriod)
			add("macd", res.MACD)
			add("macd_signal", res.Signal)
			add("macd_histogram", res.Histogram)
		case KindBollinger:
			res := indicators.Bollinger(w.Closes, bollingerPeriod, bollingerMult)
			add("bb_upper", res.Upper)
			add("bb_middle", res.Middle)
			add("bb_lower", res.Lower)
		case KindMovingAverage:
			add("sma_fast", indicators.SMA(w.Closes, smaFastPeriod))
			add("sma_slow", indicators.SMA(w.Closes, smaSlowPeriod))
		case KindStochRSI:
			res := indicators.StochRSI(w.Closes, stochRSIPeriod, stochRSIPeriod, stochRSISmooth, stochRSISmooth)
			add("stoch_rsi_k", res.K)
			add("stoch_rsi_d", res.D)
		case KindVWAP:
			res := indicators.VWAP(w.Highs, w.Lows, w.Closes, w.Volumes, vwapBandMult)
			add("vwap", res.VWAP)
			add("vwap_upper", res.Upper)
			add("vwap_lower", res.Lower)
		case KindSuperTrend:
			res := indicators.SuperTrend(w.Highs, w.Lows, w.Closes, supertrendPeriod, supertrendMult)
			add("supertrend", res.Value)
		case KindKDJ:
			res := indicators.KDJ(w.Highs, w.Lows, w.Closes, kdjPeriod, kdjSmooth, kdjSmooth)
			add("kdj_k", res.K)
			add("kdj_d", res.D)
			add("kdj_j", res.J)
		}
	}
	return out
}
