package engine

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

// rampBars builds a synthetic series whose close moves by step per bar.
func rampBars(n int, start, step float64) []Bar {
	bars := make([]Bar, n)
	price := start
	for i := range bars {
		next := price + step
		hi := math.Max(price, next) + 0.1
		lo := math.Min(price, next) - 0.1
		bars[i] = Bar{
			Timestamp: int64(i) * 60_000,
			Open:      price,
			High:      hi,
			Low:       lo,
			Close:     next,
			Volume:    100,
		}
		price = next
	}
	return bars
}

// vBars declines for down bars then rises for up bars.
func vBars(down, up int, start, step float64) []Bar {
	bars := rampBars(down, start, -step)
	bottom := bars[len(bars)-1].Close
	rise := rampBars(up, bottom, step)
	for i := range rise {
		rise[i].Timestamp = bars[len(bars)-1].Timestamp + int64(i+1)*60_000
	}
	return append(bars, rise...)
}

func TestRuleSignalInsufficientHistory(t *testing.T) {
	w := NewWindow(rampBars(10, 100, 0.25))
	sig := RuleSignal(w, DefaultRuleConfig())
	if sig.Direction != DirectionNeutral {
		t.Fatalf("direction = %s, want NEUTRAL", sig.Direction)
	}
	if sig.Reason != "insufficient history" {
		t.Fatalf("reason = %q", sig.Reason)
	}
}

func TestRuleSignalDeterministic(t *testing.T) {
	bars := vBars(80, 40, 120, 0.25)
	w := NewWindow(bars[len(bars)-100:])
	cfg := DefaultRuleConfig()

	a := RuleSignal(w, cfg)
	b := RuleSignal(w, cfg)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("repeat evaluation differs: %+v vs %+v", a, b)
	}
}

func TestRuleSignalGoldenCross(t *testing.T) {
	cfg := RuleConfig{UseMovingAverage: true, MACrossConfidence: 0.8}

	// Find a window inside the recovery where the fast SMA crosses the slow.
	bars := vBars(120, 80, 150, 0.25)
	found := false
	for i := 100; i < len(bars); i++ {
		sig := RuleSignal(NewWindow(bars[i-100:i]), cfg)
		if sig.Direction == DirectionLong {
			found = true
			if sig.Confidence != 0.8 {
				t.Errorf("confidence = %v, want 0.8", sig.Confidence)
			}
			if sig.Source != SourceRules {
				t.Errorf("source = %q, want %q", sig.Source, SourceRules)
			}
			if sig.Reason != "golden cross (SMA)" {
				t.Errorf("reason = %q", sig.Reason)
			}
			break
		}
	}
	if !found {
		t.Fatal("no golden cross detected in recovery leg")
	}
}

func TestCombineSignals(t *testing.T) {
	long := func(conf float64) Signal {
		return Signal{Direction: DirectionLong, Confidence: conf, Source: SourceModel, Reason: "m"}
	}
	rules := Signal{Direction: DirectionLong, Confidence: 0.7, Source: SourceRules, Reason: "r"}

	got := CombineSignals(long(0.9), rules)
	if got.Direction != DirectionLong {
		t.Fatalf("agreement direction = %s", got.Direction)
	}
	if math.Abs(got.Confidence-0.8) > 1e-12 {
		t.Errorf("combined confidence = %v, want 0.8", got.Confidence)
	}
	if got.Source != SourceModelAndRules {
		t.Errorf("source = %q", got.Source)
	}

	short := Signal{Direction: DirectionShort, Confidence: 0.9, Source: SourceModel}
	if got := CombineSignals(short, rules); got.Direction != DirectionNeutral {
		t.Errorf("disagreement must be neutral, got %s", got.Direction)
	}
	if got := CombineSignals(Neutral(SourceModel), rules); got.Direction != DirectionNeutral {
		t.Errorf("neutral model must force neutral, got %s", got.Direction)
	}
}

func TestParseSignalMode(t *testing.T) {
	for _, valid := range []string{"model_only", "model_and_rules", "rules_only"} {
		if _, err := ParseSignalMode(valid); err != nil {
			t.Errorf("ParseSignalMode(%q): %v", valid, err)
		}
	}
	if _, err := ParseSignalMode("hybrid"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("invalid mode error = %v, want ErrInvalidConfig", err)
	}
}

type stubPredictor struct {
	action Action
	err    error
	calls  int
}

func (s *stubPredictor) Predict(obs []float64) (Action, error) {
	s.calls++
	if len(obs) != ObservationSize {
		return Action{}, errors.New("bad observation width")
	}
	return s.action, s.err
}

func TestPolicySignal(t *testing.T) {
	w := NewWindow(rampBars(100, 100, 0.25))
	acct := AccountState{InitialBalance: 10000, Balance: 10000, Equity: 10000, PeakEquity: 10000, MaxPositions: 1}
	logger := zap.NewNop()

	t.Run("nil predictor is neutral", func(t *testing.T) {
		sig := PolicySignal(w, acct, nil, logger)
		if sig.Direction != DirectionNeutral || sig.Source != SourceModel {
			t.Fatalf("sig = %+v", sig)
		}
	})

	t.Run("inference error degrades to neutral", func(t *testing.T) {
		p := &stubPredictor{err: errors.New("session closed")}
		sig := PolicySignal(w, acct, p, logger)
		if sig.Direction != DirectionNeutral {
			t.Fatalf("direction = %s, want NEUTRAL", sig.Direction)
		}
	})

	t.Run("confidence tracks size and caps", func(t *testing.T) {
		p := &stubPredictor{action: Action{Direction: DirectionLong, PositionSize: 0.5, SLMultiplier: 1.5, TPMultiplier: 2}}
		sig := PolicySignal(w, acct, p, logger)
		if sig.Direction != DirectionLong {
			t.Fatalf("direction = %s", sig.Direction)
		}
		if math.Abs(sig.Confidence-0.725) > 1e-12 {
			t.Errorf("confidence = %v, want 0.725", sig.Confidence)
		}
		if sig.SLMultiplier != 1.5 || sig.TPMultiplier != 2 {
			t.Errorf("multipliers not carried: %+v", sig)
		}

		p.action.PositionSize = 1
		if sig := PolicySignal(w, acct, p, logger); sig.Confidence != maxPolicyConfidence {
			t.Errorf("full-size confidence = %v, want cap %v", sig.Confidence, maxPolicyConfidence)
		}
		p.action.PositionSize = 7 // clamped to 1 before the formula
		if sig := PolicySignal(w, acct, p, logger); sig.Confidence != maxPolicyConfidence {
			t.Errorf("oversized confidence = %v, want cap", sig.Confidence)
		}
	})
}

func TestBuildObservationShape(t *testing.T) {
	w := NewWindow(rampBars(100, 100, 0.25))
	acct := AccountState{
		InitialBalance: 10000,
		Balance:        10100,
		Equity:         10150,
		PeakEquity:     10200,
		MaxDrawdown:    50,
		UnrealizedPnL:  50,
		OpenPositions:  1,
		MaxPositions:   2,
		TotalTrades:    4,
		WinningTrades:  3,
		WinStreak:      2,
	}

	obs := BuildObservation(w, acct)
	if len(obs) != ObservationSize {
		t.Fatalf("len = %d, want %d", len(obs), ObservationSize)
	}
	for i, v := range obs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("feature %d is %v", i, v)
		}
	}

	// Account block occupies indices 27..36.
	if got := obs[29]; got != 0.5 {
		t.Errorf("open-position ratio = %v, want 0.5", got)
	}
	if got := obs[34]; got != 0.75 {
		t.Errorf("win rate = %v, want 0.75", got)
	}
	if got := obs[36]; got != 1 {
		t.Errorf("has-open flag = %v, want 1", got)
	}

	// Order-flow placeholders stay zero without a depth feed.
	for i := 21; i < 24; i++ {
		if obs[i] != 0 {
			t.Errorf("order-flow feature %d = %v, want 0", i, obs[i])
		}
	}
}

func TestBuildObservationDeterministic(t *testing.T) {
	w := NewWindow(vBars(60, 60, 130, 0.5))
	acct := AccountState{InitialBalance: 10000, Balance: 10000, Equity: 10000, PeakEquity: 10000, MaxPositions: 1}
	a := BuildObservation(w, acct)
	b := BuildObservation(w, acct)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("repeat observation differs")
	}
}
