package engine

import "fmt"

// Direction is the recommendation of a signal or the side of a position.
type Direction int

const (
	DirectionNeutral Direction = iota
	DirectionLong
	DirectionShort
)

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "LONG"
	case DirectionShort:
		return "SHORT"
	default:
		return "NEUTRAL"
	}
}

// Signal source tags.
const (
	SourceRules         = "INDICATORS"
	SourceModel         = "MODEL"
	SourceModelAndRules = "MODEL_AND_INDICATORS"
)

// Signal is a directional recommendation produced for one evaluated bar.
// It is consumed immediately; only signals that open a position survive the
// step, as the position's SignalSource/SignalReason.
type Signal struct {
	Direction  Direction
	Confidence float64
	Source     string
	Reason     string

	// Optional per-signal hints from the policy model. Zero means "use the
	// configured default".
	SizeHint     float64
	SLMultiplier float64
	TPMultiplier float64
}

// Neutral returns the no-trade signal for a source.
func Neutral(source string) Signal {
	return Signal{Direction: DirectionNeutral, Source: source}
}

// SignalMode selects which generators feed the simulation.
type SignalMode string

const (
	ModeModelOnly     SignalMode = "model_only"
	ModeModelAndRules SignalMode = "model_and_rules"
	ModeRulesOnly     SignalMode = "rules_only"
)

// ParseSignalMode validates a mode string from config or API input.
func ParseSignalMode(s string) (SignalMode, error) {
	switch SignalMode(s) {
	case ModeModelOnly, ModeModelAndRules, ModeRulesOnly:
		return SignalMode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown signal mode %q", ErrInvalidConfig, s)
	}
}

// UsesModel reports whether the mode consults the policy model.
func (m SignalMode) UsesModel() bool { return m == ModeModelOnly || m == ModeModelAndRules }

// UsesRules reports whether the mode consults the indicator rules.
func (m SignalMode) UsesRules() bool { return m == ModeRulesOnly || m == ModeModelAndRules }

// CombineSignals merges the model and rule signals conjunctively: both must
// agree on a non-neutral direction, and the combined confidence is the
// arithmetic mean. Anything else is neutral. Precision over recall: a missed
// entry costs nothing, a bad entry costs the stop.
func CombineSignals(model, rules Signal) Signal {
	if model.Direction == DirectionNeutral || model.Direction != rules.Direction {
		return Neutral(SourceModelAndRules)
	}
	return Signal{
		Direction:    model.Direction,
		Confidence:   (model.Confidence + rules.Confidence) / 2,
		Source:       SourceModelAndRules,
		Reason:       fmt.Sprintf("%s | %s", model.Reason, rules.Reason),
		SizeHint:     model.SizeHint,
		SLMultiplier: model.SLMultiplier,
		TPMultiplier: model.TPMultiplier,
	}
}
