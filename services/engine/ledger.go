package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Exit reasons stamped on closed trades.
const (
	ExitStopLoss        = "STOP_LOSS"
	ExitTakeProfit      = "TAKE_PROFIT"
	ExitEndOfSimulation = "END_OF_SIMULATION"
)

// RiskParams governs position admission and stop placement.
type RiskParams struct {
	InitialBalance  decimal.Decimal `json:"initial_balance" yaml:"initial_balance"`
	RiskPerTrade    decimal.Decimal `json:"risk_per_trade" yaml:"risk_per_trade"`
	TakeProfitRatio decimal.Decimal `json:"take_profit_ratio" yaml:"take_profit_ratio"`
	Commission      decimal.Decimal `json:"commission" yaml:"commission"`
	MinConfidence   float64         `json:"min_confidence" yaml:"min_confidence"`
	MaxPositions    int             `json:"max_positions" yaml:"max_positions"`
}

// DefaultRiskParams mirror the live trading defaults.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		InitialBalance:  decimal.NewFromInt(10000),
		RiskPerTrade:    decimal.NewFromInt(100),
		TakeProfitRatio: decimal.NewFromInt(2),
		MinConfidence:   0.65,
		MaxPositions:    1,
	}
}

func (r RiskParams) Validate() error {
	if !r.InitialBalance.IsPositive() {
		return fmt.Errorf("%w: initial balance must be positive, got %s", ErrInvalidConfig, r.InitialBalance)
	}
	if !r.RiskPerTrade.IsPositive() {
		return fmt.Errorf("%w: risk per trade must be positive, got %s", ErrInvalidConfig, r.RiskPerTrade)
	}
	if !r.TakeProfitRatio.IsPositive() {
		return fmt.Errorf("%w: take profit ratio must be positive, got %s", ErrInvalidConfig, r.TakeProfitRatio)
	}
	if r.Commission.IsNegative() {
		return fmt.Errorf("%w: commission must not be negative, got %s", ErrInvalidConfig, r.Commission)
	}
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		return fmt.Errorf("%w: min confidence must be in [0,1], got %v", ErrInvalidConfig, r.MinConfidence)
	}
	if r.MaxPositions < 1 {
		return fmt.Errorf("%w: max positions must be at least 1, got %d", ErrInvalidConfig, r.MaxPositions)
	}
	return nil
}

// Position is a live simulated position. Mutated only by the exit check and
// the end-of-stream forced close.
type Position struct {
	ID         string
	Direction  Direction
	Quantity   int64
	EntryPrice decimal.Decimal
	EntryTime  time.Time
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Source     string
	Reason     string
	Confidence float64
}

// Trade is the immutable record of a closed position.
type Trade struct {
	PositionID string          `json:"position_id"`
	Direction  Direction       `json:"direction"`
	Quantity   int64           `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	ExitTime   time.Time       `json:"exit_time"`
	ExitReason string          `json:"exit_reason"`
	Source     string          `json:"source"`
	Reason     string          `json:"reason"`
	Ticks      decimal.Decimal `json:"ticks"`
	PnL        decimal.Decimal `json:"pnl"`
	Duration   time.Duration   `json:"duration_ns"`
}

// EquityPoint is one sample of the equity curve, recorded at simulation
// start and after every realized trade.
type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Balance   decimal.Decimal `json:"balance"`
	PnL       decimal.Decimal `json:"pnl"`
}

// Ledger owns position lifecycle, balance, and drawdown for one run. It is
// not safe for concurrent use; each run builds its own.
type Ledger struct {
	spec ContractSpec
	risk RiskParams

	balance     decimal.Decimal
	peak        decimal.Decimal
	maxDrawdown decimal.Decimal

	open   []*Position
	trades []Trade
	equity []EquityPoint

	winStreak int
	wins      int
}

func NewLedger(spec ContractSpec, risk RiskParams, start time.Time) *Ledger {
	l := &Ledger{
		spec:    spec,
		risk:    risk,
		balance: risk.InitialBalance,
		peak:    risk.InitialBalance,
	}
	l.equity = append(l.equity, EquityPoint{Timestamp: start, Balance: l.balance})
	return l
}

// Open admits a position from a signal if it clears every guard: non-neutral
// direction, confidence at or above the configured minimum, and open count
// below the maximum. Returns false without error when a guard rejects.
func (l *Ledger) Open(sig Signal, bar Bar) (*Position, bool) {
	if sig.Direction == DirectionNeutral {
		return nil, false
	}
	if sig.Confidence < l.risk.MinConfidence {
		return nil, false
	}
	if len(l.open) >= l.risk.MaxPositions {
		return nil, false
	}

	slMult := decimal.NewFromInt(1)
	if sig.SLMultiplier > 0 {
		slMult = decimal.NewFromFloat(sig.SLMultiplier)
	}
	tpMult := decimal.NewFromInt(1)
	if sig.TPMultiplier > 0 {
		tpMult = decimal.NewFromFloat(sig.TPMultiplier)
	}

	// Currency risk budget -> tick distance -> price offset.
	stopTicks := l.risk.RiskPerTrade.Mul(slMult).Div(l.spec.TickValue)
	stopOffset := stopTicks.Mul(l.spec.TickSize)
	targetOffset := stopOffset.Mul(l.risk.TakeProfitRatio).Mul(tpMult)

	entry := decimal.NewFromFloat(bar.Close)
	var stop, target decimal.Decimal
	if sig.Direction == DirectionLong {
		stop = entry.Sub(stopOffset)
		target = entry.Add(targetOffset)
	} else {
		stop = entry.Add(stopOffset)
		target = entry.Sub(targetOffset)
	}

	qty := int64(1)
	if hint := sig.SizeHint; hint > 0 {
		if q := int64(hint * 3); q > 1 {
			qty = q
		}
	}

	pos := &Position{
		ID:         uuid.NewString(),
		Direction:  sig.Direction,
		Quantity:   qty,
		EntryPrice: entry,
		EntryTime:  bar.Time(),
		StopLoss:   stop,
		TakeProfit: target,
		Source:     sig.Source,
		Reason:     sig.Reason,
		Confidence: sig.Confidence,
	}
	l.open = append(l.open, pos)
	return pos, true
}

// CheckExits evaluates stop-loss and take-profit against the bar's range for
// every open position. When one bar spans both thresholds the stop fires,
// the pessimistic read of an ambiguous bar.
func (l *Ledger) CheckExits(bar Bar) []Trade {
	if len(l.open) == 0 {
		return nil
	}
	low := decimal.NewFromFloat(bar.Low)
	high := decimal.NewFromFloat(bar.High)
	ts := bar.Time()

	var closed []Trade
	remaining := l.open[:0]
	for _, pos := range l.open {
		var trade Trade
		hit := false
		switch pos.Direction {
		case DirectionLong:
			if low.LessThanOrEqual(pos.StopLoss) {
				trade = l.close(pos, pos.StopLoss, ts, ExitStopLoss)
				hit = true
			} else if high.GreaterThanOrEqual(pos.TakeProfit) {
				trade = l.close(pos, pos.TakeProfit, ts, ExitTakeProfit)
				hit = true
			}
		case DirectionShort:
			if high.GreaterThanOrEqual(pos.StopLoss) {
				trade = l.close(pos, pos.StopLoss, ts, ExitStopLoss)
				hit = true
			} else if low.LessThanOrEqual(pos.TakeProfit) {
				trade = l.close(pos, pos.TakeProfit, ts, ExitTakeProfit)
				hit = true
			}
		}
		if hit {
			closed = append(closed, trade)
		} else {
			remaining = append(remaining, pos)
		}
	}
	l.open = remaining
	return closed
}

// CloseAll force-closes every open position at the bar's close price.
func (l *Ledger) CloseAll(bar Bar) []Trade {
	if len(l.open) == 0 {
		return nil
	}
	price := decimal.NewFromFloat(bar.Close)
	ts := bar.Time()

	closed := make([]Trade, 0, len(l.open))
	for _, pos := range l.open {
		closed = append(closed, l.close(pos, price, ts, ExitEndOfSimulation))
	}
	l.open = l.open[:0]
	return closed
}

func (l *Ledger) close(pos *Position, exit decimal.Decimal, ts time.Time, reason string) Trade {
	var ticks decimal.Decimal
	if pos.Direction == DirectionLong {
		ticks = exit.Sub(pos.EntryPrice).Div(l.spec.TickSize)
	} else {
		ticks = pos.EntryPrice.Sub(exit).Div(l.spec.TickSize)
	}
	pnl := ticks.Mul(l.spec.TickValue).Mul(decimal.NewFromInt(pos.Quantity)).Sub(l.risk.Commission)

	l.balance = l.balance.Add(pnl)
	if l.balance.GreaterThan(l.peak) {
		l.peak = l.balance
	}
	if dd := l.peak.Sub(l.balance); dd.GreaterThan(l.maxDrawdown) {
		l.maxDrawdown = dd
	}

	if pnl.IsPositive() {
		l.wins++
		l.winStreak++
	} else {
		l.winStreak = 0
	}

	trade := Trade{
		PositionID: pos.ID,
		Direction:  pos.Direction,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		EntryTime:  pos.EntryTime,
		ExitPrice:  exit,
		ExitTime:   ts,
		ExitReason: reason,
		Source:     pos.Source,
		Reason:     pos.Reason,
		Ticks:      ticks,
		PnL:        pnl,
		Duration:   ts.Sub(pos.EntryTime),
	}
	l.trades = append(l.trades, trade)
	l.equity = append(l.equity, EquityPoint{Timestamp: ts, Balance: l.balance, PnL: pnl})
	return trade
}

func (l *Ledger) OpenCount() int               { return len(l.open) }
func (l *Ledger) Balance() decimal.Decimal     { return l.balance }
func (l *Ledger) Peak() decimal.Decimal        { return l.peak }
func (l *Ledger) MaxDrawdown() decimal.Decimal { return l.maxDrawdown }
func (l *Ledger) Trades() []Trade              { return l.trades }
func (l *Ledger) EquityCurve() []EquityPoint   { return l.equity }

// Account snapshots the ledger into the feature-vector form, marking open
// positions to market at the given price.
func (l *Ledger) Account(lastClose float64) AccountState {
	price := decimal.NewFromFloat(lastClose)
	unrealized := decimal.Zero
	for _, pos := range l.open {
		var ticks decimal.Decimal
		if pos.Direction == DirectionLong {
			ticks = price.Sub(pos.EntryPrice).Div(l.spec.TickSize)
		} else {
			ticks = pos.EntryPrice.Sub(price).Div(l.spec.TickSize)
		}
		unrealized = unrealized.Add(ticks.Mul(l.spec.TickValue).Mul(decimal.NewFromInt(pos.Quantity)))
	}
	equity := l.balance.Add(unrealized)

	bal, _ := l.balance.Float64()
	eq, _ := equity.Float64()
	peak, _ := l.peak.Float64()
	dd, _ := l.maxDrawdown.Float64()
	unreal, _ := unrealized.Float64()
	initial, _ := l.risk.InitialBalance.Float64()

	return AccountState{
		InitialBalance: initial,
		Balance:        bal,
		Equity:         eq,
		PeakEquity:     peak,
		MaxDrawdown:    dd,
		UnrealizedPnL:  unreal,
		OpenPositions:  len(l.open),
		MaxPositions:   l.risk.MaxPositions,
		TotalTrades:    len(l.trades),
		WinningTrades:  l.wins,
		WinStreak:      l.winStreak,
	}
}
