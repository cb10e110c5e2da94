// Package proto defines the gRPC message and service types for the
// backtesting API. Decimal amounts travel as strings to avoid float drift
// across language boundaries.
package proto

import "context"

type BacktestRequest struct {
	ContractId      string  `json:"contract_id"`
	TickSize        string  `json:"tick_size"`
	TickValue       string  `json:"tick_value"`
	Mode            string  `json:"mode"`
	TimeframesMin   []int32 `json:"timeframes_min"`
	StartMs         int64   `json:"start_ms"`
	EndMs           int64   `json:"end_ms"`
	InitialBalance  string  `json:"initial_balance"`
	RiskPerTrade    string  `json:"risk_per_trade"`
	TakeProfitRatio string  `json:"take_profit_ratio"`
	Commission      string  `json:"commission"`
	MinConfidence   float64 `json:"min_confidence"`
	MaxPositions    int32   `json:"max_positions"`
	WindowSize      int32   `json:"window_size"`
	IncludeChart    bool    `json:"include_chart"`
}

type Trade struct {
	PositionId string `json:"position_id"`
	Direction  string `json:"direction"`
	Quantity   int64  `json:"quantity"`
	EntryPrice string `json:"entry_price"`
	EntryMs    int64  `json:"entry_ms"`
	ExitPrice  string `json:"exit_price"`
	ExitMs     int64  `json:"exit_ms"`
	ExitReason string `json:"exit_reason"`
	Source     string `json:"source"`
	Reason     string `json:"reason"`
	Ticks      string `json:"ticks"`
	Pnl        string `json:"pnl"`
}

type EquityPoint struct {
	TimestampMs int64  `json:"timestamp_ms"`
	Balance     string `json:"balance"`
	Pnl         string `json:"pnl"`
}

type Summary struct {
	TotalTrades    int32   `json:"total_trades"`
	WinningTrades  int32   `json:"winning_trades"`
	LosingTrades   int32   `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	GrossProfit    string  `json:"gross_profit"`
	GrossLoss      string  `json:"gross_loss"`
	NetPnl         string  `json:"net_pnl"`
	ProfitFactor   string  `json:"profit_factor"`
	MaxDrawdown    string  `json:"max_drawdown"`
	InitialBalance string  `json:"initial_balance"`
	FinalBalance   string  `json:"final_balance"`
}

type BacktestResponse struct {
	RunId     string         `json:"run_id"`
	Summary   *Summary       `json:"summary"`
	Trades    []*Trade       `json:"trades"`
	Equity    []*EquityPoint `json:"equity_curve"`
	ElapsedMs int64          `json:"elapsed_ms"`
}

// gRPC server interface stub

type UnimplementedBacktestServiceServer struct{}

func RegisterBacktestServiceServer(_ any, _ BacktestServiceServer) {}

type BacktestServiceServer interface {
	ExecuteBacktest(context.Context, *BacktestRequest) (*BacktestResponse, error)
}
