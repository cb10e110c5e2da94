package engine

import (
	"fmt"
	"math"
	"strings"

	"futures-backtest/services/indicators"
)

// IndicatorKind tags the rule evaluator that produced a vote.
type IndicatorKind string

const (
	KindSMI           IndicatorKind = "smi"
	KindMACD          IndicatorKind = "macd"
	KindBollinger     IndicatorKind = "bollinger"
	KindMovingAverage IndicatorKind = "moving_averages"
	KindStochRSI      IndicatorKind = "stoch_rsi"
	KindVWAP          IndicatorKind = "vwap"
	KindSuperTrend    IndicatorKind = "supertrend"
	KindKDJ           IndicatorKind = "kdj"
)

// Default indicator parameters used by the rule evaluators.
const (
	smiKLength        = 8
	smiSmoothing      = 3
	smiSignalPeriod   = 3
	macdFast          = 12
	macdSlow          = 26
	macdSignalPeriod  = 9
	bollingerPeriod   = 20
	bollingerMult     = 2.0
	smaFastPeriod     = 20
	smaSlowPeriod     = 50
	emaFastPeriod     = 12
	emaSlowPeriod     = 26
	stochRSIPeriod    = 14
	stochRSISmooth    = 3
	vwapBandMult      = 2.0
	supertrendPeriod  = 10
	supertrendMult    = 3.0
	kdjPeriod         = 9
	kdjSmooth         = 3
	ruleMinWindowBars = 50
)

// RuleConfig selects the indicators that may vote and carries each rule's
// confidence. The confidences were tuned empirically in prior deployments;
// they are configuration, not derived truths.
type RuleConfig struct {
	UseSMI           bool `json:"use_smi" yaml:"use_smi"`
	UseMACD          bool `json:"use_macd" yaml:"use_macd"`
	UseBollinger     bool `json:"use_bollinger" yaml:"use_bollinger"`
	UseMovingAverage bool `json:"use_moving_average" yaml:"use_moving_average"`
	UseStochRSI      bool `json:"use_stoch_rsi" yaml:"use_stoch_rsi"`
	UseVWAP          bool `json:"use_vwap" yaml:"use_vwap"`
	UseSuperTrend    bool `json:"use_supertrend" yaml:"use_supertrend"`
	UseKDJ           bool `json:"use_kdj" yaml:"use_kdj"`

	SMIOversold   float64 `json:"smi_oversold" yaml:"smi_oversold"`
	SMIOverbought float64 `json:"smi_overbought" yaml:"smi_overbought"`

	MACDCrossConfidence       float64 `json:"macd_cross_confidence" yaml:"macd_cross_confidence"`
	BollingerTouchConfidence  float64 `json:"bollinger_touch_confidence" yaml:"bollinger_touch_confidence"`
	MACrossConfidence         float64 `json:"ma_cross_confidence" yaml:"ma_cross_confidence"`
	StochRSIExtremeConfidence float64 `json:"stoch_rsi_extreme_confidence" yaml:"stoch_rsi_extreme_confidence"`
	StochRSICrossConfidence   float64 `json:"stoch_rsi_cross_confidence" yaml:"stoch_rsi_cross_confidence"`
	VWAPBandConfidence        float64 `json:"vwap_band_confidence" yaml:"vwap_band_confidence"`
	VWAPSideConfidence        float64 `json:"vwap_side_confidence" yaml:"vwap_side_confidence"`
	SuperTrendFlipConfidence  float64 `json:"supertrend_flip_confidence" yaml:"supertrend_flip_confidence"`
	SuperTrendHoldConfidence  float64 `json:"supertrend_hold_confidence" yaml:"supertrend_hold_confidence"`
	KDJExtremeConfidence      float64 `json:"kdj_extreme_confidence" yaml:"kdj_extreme_confidence"`
	KDJCrossConfidence        float64 `json:"kdj_cross_confidence" yaml:"kdj_cross_confidence"`
}

// DefaultRuleConfig enables the four core indicators with the tuned
// confidence defaults.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		UseSMI:           true,
		UseMACD:          true,
		UseBollinger:     true,
		UseMovingAverage: true,

		SMIOversold:   -20,
		SMIOverbought: 20,

		MACDCrossConfidence:       0.75,
		BollingerTouchConfidence:  0.70,
		MACrossConfidence:         0.80,
		StochRSIExtremeConfidence: 0.75,
		StochRSICrossConfidence:   0.70,
		VWAPBandConfidence:        0.75,
		VWAPSideConfidence:        0.60,
		SuperTrendFlipConfidence:  0.85,
		SuperTrendHoldConfidence:  0.65,
		KDJExtremeConfidence:      0.80,
		KDJCrossConfidence:        0.75,
	}
}

func (c RuleConfig) enabled(kind IndicatorKind) bool {
	switch kind {
	case KindSMI:
		return c.UseSMI
	case KindMACD:
		return c.UseMACD
	case KindBollinger:
		return c.UseBollinger
	case KindMovingAverage:
		return c.UseMovingAverage
	case KindStochRSI:
		return c.UseStochRSI
	case KindVWAP:
		return c.UseVWAP
	case KindSuperTrend:
		return c.UseSuperTrend
	case KindKDJ:
		return c.UseKDJ
	}
	return false
}

// EnabledKinds lists the active indicators in evaluation order.
func (c RuleConfig) EnabledKinds() []IndicatorKind {
	var out []IndicatorKind
	for _, k := range ruleOrder {
		if c.enabled(k) {
			out = append(out, k)
		}
	}
	return out
}

// Vote is one indicator's contribution to the rule signal.
type Vote struct {
	Kind       IndicatorKind
	Direction  Direction
	Confidence float64
	Reason     string
}

// ruleEvaluator inspects the window's latest two indicator values and either
// casts a vote or abstains. Adding an indicator means adding one evaluator
// and one registry entry; the aggregation below never changes.
type ruleEvaluator func(w *Window, cfg RuleConfig) (Vote, bool)

var ruleOrder = []IndicatorKind{
	KindSMI, KindMACD, KindBollinger, KindMovingAverage,
	KindStochRSI, KindVWAP, KindSuperTrend, KindKDJ,
}

var ruleEvaluators = map[IndicatorKind]ruleEvaluator{
	KindSMI:           evalSMI,
	KindMACD:          evalMACD,
	KindBollinger:     evalBollinger,
	KindMovingAverage: evalMovingAverage,
	KindStochRSI:      evalStochRSI,
	KindVWAP:          evalVWAP,
	KindSuperTrend:    evalSuperTrend,
	KindKDJ:           evalKDJ,
}

// RuleSignal evaluates every enabled indicator against the window and
// resolves the votes by majority count. Ties and empty ballots are neutral
// with confidence zero; the winning side's confidence is the mean of the
// agreeing votes and its reason the concatenation of their reasons. Fully
// deterministic: same window, same config, same signal.
func RuleSignal(w *Window, cfg RuleConfig) Signal {
	if w.Len() < ruleMinWindowBars {
		return Signal{Direction: DirectionNeutral, Source: SourceRules, Reason: "insufficient history"}
	}

	var votes []Vote
	for _, kind := range ruleOrder {
		if !cfg.enabled(kind) {
			continue
		}
		if v, ok := ruleEvaluators[kind](w, cfg); ok {
			votes = append(votes, v)
		}
	}
	return resolveVotes(votes)
}

func resolveVotes(votes []Vote) Signal {
	var longCount, shortCount int
	for _, v := range votes {
		switch v.Direction {
		case DirectionLong:
			longCount++
		case DirectionShort:
			shortCount++
		}
	}

	winner := DirectionNeutral
	switch {
	case longCount > shortCount:
		winner = DirectionLong
	case shortCount > longCount:
		winner = DirectionShort
	}
	if winner == DirectionNeutral {
		return Signal{Direction: DirectionNeutral, Source: SourceRules, Reason: "no clear signal"}
	}

	var confSum float64
	var reasons []string
	var agree int
	for _, v := range votes {
		if v.Direction == winner {
			confSum += v.Confidence
			reasons = append(reasons, v.Reason)
			agree++
		}
	}
	return Signal{
		Direction:  winner,
		Confidence: confSum / float64(agree),
		Source:     SourceRules,
		Reason:     strings.Join(reasons, " + "),
	}
}

// crossedAbove reports a crossing of a over b between the previous and
// current values.
func crossedAbove(prevA, prevB, curA, curB float64) bool {
	return prevA <= prevB && curA > curB
}

func crossedBelow(prevA, prevB, curA, curB float64) bool {
	return prevA >= prevB && curA < curB
}

func evalSMI(w *Window, cfg RuleConfig) (Vote, bool) {
	res := indicators.SMI(w.Highs, w.Lows, w.Closes, smiKLength, smiSmoothing, smiSignalPeriod)
	n := len(res.SMI)
	cur, prev := res.SMI[n-1], res.SMI[n-2]
	curSig, prevSig := res.Signal[n-1], res.Signal[n-2]

	switch {
	case crossedAbove(prev, prevSig, cur, curSig) && cur < cfg.SMIOversold:
		// Deeper oversold crossings score higher, capped at 0.95.
		conf := math.Min(0.95, 0.70+math.Abs(cur+30)/60*0.25)
		return Vote{KindSMI, DirectionLong, conf, fmt.Sprintf("SMI bullish cross (%.1f)", cur)}, true
	case crossedBelow(prev, prevSig, cur, curSig) && cur > cfg.SMIOverbought:
		conf := math.Min(0.95, 0.70+math.Abs(cur-30)/60*0.25)
		return Vote{KindSMI, DirectionShort, conf, fmt.Sprintf("SMI bearish cross (%.1f)", cur)}, true
	}
	return Vote{}, false
}

func evalMACD(w *Window, cfg RuleConfig) (Vote, bool) {
	res := indicators.MACD(w.Closes, macdFast, macdSlow, macdSignalPeriod)
	n := len(res.MACD)
	cur, prev := res.MACD[n-1], res.MACD[n-2]
	curSig, prevSig := res.Signal[n-1], res.Signal[n-2]

	switch {
	case crossedAbove(prev, prevSig, cur, curSig):
		return Vote{KindMACD, DirectionLong, cfg.MACDCrossConfidence, "MACD bullish cross"}, true
	case crossedBelow(prev, prevSig, cur, curSig):
		return Vote{KindMACD, DirectionShort, cfg.MACDCrossConfidence, "MACD bearish cross"}, true
	}
	return Vote{}, false
}

func evalBollinger(w *Window, cfg RuleConfig) (Vote, bool) {
	res := indicators.Bollinger(w.Closes, bollingerPeriod, bollingerMult)
	n := len(res.Upper)
	price := w.Last().Close

	switch {
	case price <= res.Lower[n-1]:
		return Vote{KindBollinger, DirectionLong, cfg.BollingerTouchConfidence, "price at lower band"}, true
	case price >= res.Upper[n-1]:
		return Vote{KindBollinger, DirectionShort, cfg.BollingerTouchConfidence, "price at upper band"}, true
	}
	return Vote{}, false
}

func evalMovingAverage(w *Window, cfg RuleConfig) (Vote, bool) {
	fast := indicators.SMA(w.Closes, smaFastPeriod)
	slow := indicators.SMA(w.Closes, smaSlowPeriod)
	n := len(fast)

	switch {
	case crossedAbove(fast[n-2], slow[n-2], fast[n-1], slow[n-1]):
		return Vote{KindMovingAverage, DirectionLong, cfg.MACrossConfidence, "golden cross (SMA)"}, true
	case crossedBelow(fast[n-2], slow[n-2], fast[n-1], slow[n-1]):
		return Vote{KindMovingAverage, DirectionShort, cfg.MACrossConfidence, "death cross (SMA)"}, true
	}
	return Vote{}, false
}

func evalStochRSI(w *Window, cfg RuleConfig) (Vote, bool) {
	res := indicators.StochRSI(w.Closes, stochRSIPeriod, stochRSIPeriod, stochRSISmooth, stochRSISmooth)
	n := len(res.K)
	k, d := res.K[n-1], res.D[n-1]
	prevK, prevD := res.K[n-2], res.D[n-2]

	switch {
	case k < 20 && d < 20:
		return Vote{KindStochRSI, DirectionLong, cfg.StochRSIExtremeConfidence, fmt.Sprintf("StochRSI oversold (%.1f)", k)}, true
	case k > 80 && d > 80:
		return Vote{KindStochRSI, DirectionShort, cfg.StochRSIExtremeConfidence, fmt.Sprintf("StochRSI overbought (%.1f)", k)}, true
	case crossedAbove(prevK, prevD, k, d) && k < 50:
		return Vote{KindStochRSI, DirectionLong, cfg.StochRSICrossConfidence, "StochRSI bullish cross"}, true
	case crossedBelow(prevK, prevD, k, d) && k > 50:
		return Vote{KindStochRSI, DirectionShort, cfg.StochRSICrossConfidence, "StochRSI bearish cross"}, true
	}
	return Vote{}, false
}

func evalVWAP(w *Window, cfg RuleConfig) (Vote, bool) {
	res := indicators.VWAP(w.Highs, w.Lows, w.Closes, w.Volumes, vwapBandMult)
	n := len(res.VWAP)
	price := w.Last().Close

	switch {
	case price < res.Lower[n-1]:
		return Vote{KindVWAP, DirectionLong, cfg.VWAPBandConfidence, "price below lower VWAP band"}, true
	case price > res.Upper[n-1]:
		return Vote{KindVWAP, DirectionShort, cfg.VWAPBandConfidence, "price above upper VWAP band"}, true
	case price < res.VWAP[n-1]:
		return Vote{KindVWAP, DirectionLong, cfg.VWAPSideConfidence, "price below VWAP"}, true
	case price > res.VWAP[n-1]:
		return Vote{KindVWAP, DirectionShort, cfg.VWAPSideConfidence, "price above VWAP"}, true
	}
	return Vote{}, false
}

func evalSuperTrend(w *Window, cfg RuleConfig) (Vote, bool) {
	res := indicators.SuperTrend(w.Highs, w.Lows, w.Closes, supertrendPeriod, supertrendMult)
	n := len(res.Direction)
	cur, prev := res.Direction[n-1], res.Direction[n-2]

	switch {
	case prev <= 0 && cur > 0:
		return Vote{KindSuperTrend, DirectionLong, cfg.SuperTrendFlipConfidence, "SuperTrend flip to uptrend"}, true
	case prev >= 0 && cur < 0:
		return Vote{KindSuperTrend, DirectionShort, cfg.SuperTrendFlipConfidence, "SuperTrend flip to downtrend"}, true
	case cur > 0:
		return Vote{KindSuperTrend, DirectionLong, cfg.SuperTrendHoldConfidence, "SuperTrend uptrend"}, true
	case cur < 0:
		return Vote{KindSuperTrend, DirectionShort, cfg.SuperTrendHoldConfidence, "SuperTrend downtrend"}, true
	}
	return Vote{}, false
}

func evalKDJ(w *Window, cfg RuleConfig) (Vote, bool) {
	res := indicators.KDJ(w.Highs, w.Lows, w.Closes, kdjPeriod, kdjSmooth, kdjSmooth)
	n := len(res.K)
	k, d, j := res.K[n-1], res.D[n-1], res.J[n-1]
	prevK, prevD := res.K[n-2], res.D[n-2]

	switch {
	case j < 0:
		return Vote{KindKDJ, DirectionLong, cfg.KDJExtremeConfidence, fmt.Sprintf("KDJ extreme oversold (J=%.1f)", j)}, true
	case j > 100:
		return Vote{KindKDJ, DirectionShort, cfg.KDJExtremeConfidence, fmt.Sprintf("KDJ extreme overbought (J=%.1f)", j)}, true
	case crossedAbove(prevK, prevD, k, d) && k < 50:
		return Vote{KindKDJ, DirectionLong, cfg.KDJCrossConfidence, "KDJ bullish cross"}, true
	case crossedBelow(prevK, prevD, k, d) && k > 50:
		return Vote{KindKDJ, DirectionShort, cfg.KDJCrossConfidence, "KDJ bearish cross"}, true
	}
	return Vote{}, false
}
