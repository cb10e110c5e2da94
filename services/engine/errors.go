package engine

import "errors"

// Run-level failure taxonomy. Configuration and data errors terminate a run
// before (or instead of) simulation; everything recoverable is absorbed at
// the point it occurs and logged.
var (
	// ErrInvalidConfig covers bad parameter combinations: empty timeframe
	// list, non-positive tick size, inverted date range.
	ErrInvalidConfig = errors.New("invalid backtest configuration")

	// ErrNoData is returned when no bars exist for the requested
	// contract/timeframe/range. The run aborts before any simulation state
	// is created.
	ErrNoData = errors.New("no historical data for requested range")

	// ErrInvalidSeries marks bar series rejected at ingestion (negative
	// prices, non-monotonic timestamps).
	ErrInvalidSeries = errors.New("invalid bar series")

	// ErrModelRequired is returned when the mode mandates a policy model and
	// none was supplied.
	ErrModelRequired = errors.New("signal mode requires a policy model")
)

// Stable string codes for the API surface.
const (
	CodeInvalidConfig   = "CONFIG_INVALID"
	CodeDataNotFound    = "DATA_NOT_FOUND"
	CodeModelRequired   = "MODEL_REQUIRED"
	CodeExecutionFailed = "EXECUTION_FAILED"
)

// ErrorCode maps a run error onto its API code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNoData):
		return CodeDataNotFound
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrInvalidSeries):
		return CodeInvalidConfig
	case errors.Is(err, ErrModelRequired):
		return CodeModelRequired
	default:
		return CodeExecutionFailed
	}
}
