package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultWindowSize covers the longest indicator lookback (slow SMA at 50
// plus smoothing warmup) with headroom.
const DefaultWindowSize = 100

// BarLoader supplies historical bars. Implementations must return bars
// ordered ascending by timestamp and ErrNoData when the range is empty.
type BarLoader interface {
	LoadBars(ctx context.Context, contractID, timeframe string, start, end time.Time) ([]Bar, error)
}

// Config is the full parameter set for one run.
type Config struct {
	Contract   ContractSpec `json:"contract"`
	Mode       SignalMode   `json:"mode"`
	Timeframes []int        `json:"timeframes"` // minutes; the smallest is the execution timeframe
	Start      time.Time    `json:"start"`
	End        time.Time    `json:"end"`
	Risk       RiskParams   `json:"risk"`
	Rules      RuleConfig   `json:"rules"`

	// WindowSize is the trailing-window length in bars; 0 selects
	// DefaultWindowSize.
	WindowSize int `json:"window_size"`

	// IncludeChart enables the candlestick/indicator bundle on the result.
	IncludeChart bool `json:"include_chart"`
}

// Validate fails fast on parameter combinations the simulation cannot run
// with. hasModel reports whether a predictor is wired; model_only without
// one is a terminal configuration error.
func (c Config) Validate(hasModel bool) error {
	if err := c.Contract.Validate(); err != nil {
		return err
	}
	if _, err := ParseSignalMode(string(c.Mode)); err != nil {
		return err
	}
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("%w: timeframe list is empty", ErrInvalidConfig)
	}
	for _, tf := range c.Timeframes {
		if tf <= 0 {
			return fmt.Errorf("%w: timeframe %d must be positive minutes", ErrInvalidConfig, tf)
		}
	}
	if !c.Start.Before(c.End) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidConfig, c.Start, c.End)
	}
	if c.WindowSize < 0 {
		return fmt.Errorf("%w: window size must be non-negative", ErrInvalidConfig)
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if c.Mode == ModeModelOnly && !hasModel {
		return ErrModelRequired
	}
	return nil
}

// executionTimeframe returns the smallest requested timeframe and the full
// sorted list.
func (c Config) executionTimeframe() (int, []int) {
	sorted := make([]int, len(c.Timeframes))
	copy(sorted, c.Timeframes)
	sort.Ints(sorted)
	return sorted[0], sorted
}

// Result is the terminal output of one run.
type Result struct {
	RunID      string        `json:"run_id"`
	ContractID string        `json:"contract_id"`
	Mode       SignalMode    `json:"mode"`
	Timeframe  string        `json:"timeframe"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	BarCount   int           `json:"bar_count"`
	Summary    Summary       `json:"summary"`
	Trades     []Trade       `json:"trades"`
	Equity     []EquityPoint `json:"equity_curve"`
	Chart      *ChartBundle  `json:"chart,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Engine runs backtests. It holds no per-run state: every Run builds its
// ledger and window locally, so one Engine may serve concurrent runs.
type Engine struct {
	loader    BarLoader
	predictor Predictor
	logger    *zap.Logger
}

func New(loader BarLoader, predictor Predictor, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{loader: loader, predictor: predictor, logger: logger}
}

// Run executes one simulation. Configuration and data failures are returned
// before any simulation state exists; ctx is checked between bar steps so
// multi-year minute ranges can be aborted.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(e.predictor != nil); err != nil {
		return nil, err
	}
	execTF, allTF := cfg.executionTimeframe()
	windowSize := cfg.WindowSize
	if windowSize == 0 {
		windowSize = DefaultWindowSize
	}

	bars, err := e.loader.LoadBars(ctx, cfg.Contract.ContractID, TimeframeLabel(execTF), cfg.Start, cfg.End)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s %s..%s", ErrNoData,
			cfg.Contract.ContractID, TimeframeLabel(execTF), cfg.Start.Format(time.RFC3339), cfg.End.Format(time.RFC3339))
	}
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}

	if cfg.Mode.UsesModel() && e.predictor == nil {
		e.logger.Warn("no policy model loaded, model signals degrade to neutral",
			zap.String("mode", string(cfg.Mode)))
	}

	started := time.Now()
	runID := uuid.NewString()
	e.logger.Info("backtest starting",
		zap.String("run_id", runID),
		zap.String("contract", cfg.Contract.ContractID),
		zap.String("mode", string(cfg.Mode)),
		zap.String("timeframe", TimeframeLabel(execTF)),
		zap.Int("bars", len(bars)),
	)

	ledger := NewLedger(cfg.Contract, cfg.Risk, bars[0].Time())

	for i := windowSize; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest aborted at bar %d: %w", i, err)
		}
		bar := bars[i]

		// Exits first. A position may not open and close on the same
		// evaluated bar.
		ledger.CheckExits(bar)

		w := NewWindow(bars[i-windowSize : i])
		sig := e.evaluate(w, ledger, cfg)
		if sig.Direction == DirectionNeutral {
			continue
		}
		ledger.Open(sig, bar)
	}

	final := bars[len(bars)-1]
	ledger.CloseAll(final)

	res := &Result{
		RunID:      runID,
		ContractID: cfg.Contract.ContractID,
		Mode:       cfg.Mode,
		Timeframe:  TimeframeLabel(execTF),
		Start:      cfg.Start,
		End:        cfg.End,
		BarCount:   len(bars),
		Summary:    ComputeSummary(ledger),
		Trades:     ledger.Trades(),
		Equity:     ledger.EquityCurve(),
		Elapsed:    time.Since(started),
	}
	if cfg.IncludeChart {
		res.Chart = BuildChartBundle(cfg.Contract.ContractID, bars, allTF, cfg.Rules)
	}

	e.logger.Info("backtest finished",
		zap.String("run_id", runID),
		zap.Int("trades", res.Summary.TotalTrades),
		zap.String("net_pnl", res.Summary.NetPnL.String()),
		zap.String("final_balance", res.Summary.FinalBalance.String()),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// evaluate produces the step signal for the selected mode. When both
// generators are active the rule branch runs on its own goroutine while
// inference runs on the caller's; neither touches shared state, and the
// join point is the combiner.
func (e *Engine) evaluate(w *Window, ledger *Ledger, cfg Config) Signal {
	switch {
	case cfg.Mode == ModeRulesOnly:
		return RuleSignal(w, cfg.Rules)
	case cfg.Mode == ModeModelOnly:
		return PolicySignal(w, ledger.Account(w.Last().Close), e.predictor, e.logger)
	default:
		rulesCh := make(chan Signal, 1)
		go func() {
			rulesCh <- RuleSignal(w, cfg.Rules)
		}()
		model := PolicySignal(w, ledger.Account(w.Last().Close), e.predictor, e.logger)
		return CombineSignals(model, <-rulesCh)
	}
}
