package engine

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Action is the structured output of a policy model for one observation.
type Action struct {
	Direction    Direction
	PositionSize float64 // fraction of the maximum size, (0, 1]
	SLMultiplier float64 // scales the stop distance, typically 0.5..2.0
	TPMultiplier float64 // scales the target distance, typically 1.5..4.0
}

// Predictor is the capability interface for policy-model inference. The
// engine never embeds a model runtime; any backend that maps an observation
// vector to an Action can be injected, including deterministic stubs in
// tests.
type Predictor interface {
	Predict(observation []float64) (Action, error)
}

// maxPolicyConfidence caps the confidence derived from the model's sizing
// output so a fully sized action still cannot bypass every threshold.
const maxPolicyConfidence = 0.95

// PolicySignal builds the observation vector for the window and asks the
// predictor for an action. A nil predictor yields no signal; an inference
// error degrades this single evaluation to neutral and is logged, never
// propagated — run-level model requirements are enforced by Config.Validate.
func PolicySignal(w *Window, acct AccountState, p Predictor, logger *zap.Logger) Signal {
	if p == nil {
		return Neutral(SourceModel)
	}

	obs := BuildObservation(w, acct)
	action, err := p.Predict(obs)
	if err != nil {
		logger.Warn("policy inference failed, treating window as neutral",
			zap.Int64("bar_ts", w.Last().Timestamp),
			zap.Error(err),
		)
		return Neutral(SourceModel)
	}
	if action.Direction == DirectionNeutral {
		return Neutral(SourceModel)
	}

	size := math.Abs(action.PositionSize)
	if size > 1 {
		size = 1
	}
	// Confidence grows with the model's commitment: half a point at zero
	// size, the cap at full size.
	conf := math.Min(maxPolicyConfidence, 0.5+0.45*size)

	return Signal{
		Direction:    action.Direction,
		Confidence:   conf,
		Source:       SourceModel,
		Reason:       fmt.Sprintf("policy %s size=%.2f", action.Direction, size),
		SizeHint:     size,
		SLMultiplier: action.SLMultiplier,
		TPMultiplier: action.TPMultiplier,
	}
}
