package engine

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Summary aggregates one completed run. GrossLoss is a positive magnitude;
// ProfitFactor is +Inf for a run with profits and no losses and 0 for a run
// with no trades.
type Summary struct {
	TotalTrades    int             `json:"total_trades"`
	WinningTrades  int             `json:"winning_trades"`
	LosingTrades   int             `json:"losing_trades"`
	WinRate        float64         `json:"win_rate"`
	GrossProfit    decimal.Decimal `json:"gross_profit"`
	GrossLoss      decimal.Decimal `json:"gross_loss"`
	NetPnL         decimal.Decimal `json:"net_pnl"`
	ProfitFactor   float64         `json:"-"`
	MaxDrawdown    decimal.Decimal `json:"max_drawdown"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	FinalBalance   decimal.Decimal `json:"final_balance"`
}

// ProfitFactorLabel renders the profit factor for transport and storage,
// where IEEE infinity has no literal.
func (s Summary) ProfitFactorLabel() string {
	if math.IsInf(s.ProfitFactor, 1) {
		return "inf"
	}
	return strconv.FormatFloat(s.ProfitFactor, 'f', 4, 64)
}

func (s Summary) MarshalJSON() ([]byte, error) {
	type alias Summary
	return json.Marshal(struct {
		alias
		ProfitFactor string `json:"profit_factor"`
	}{alias(s), s.ProfitFactorLabel()})
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	type alias Summary
	aux := struct {
		*alias
		ProfitFactor string `json:"profit_factor"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.ProfitFactor == "inf" {
		s.ProfitFactor = math.Inf(1)
		return nil
	}
	pf, err := strconv.ParseFloat(aux.ProfitFactor, 64)
	if err != nil {
		return err
	}
	s.ProfitFactor = pf
	return nil
}

// ComputeSummary folds a ledger's trade log into run statistics.
func ComputeSummary(l *Ledger) Summary {
	s := Summary{
		GrossProfit:    decimal.Zero,
		GrossLoss:      decimal.Zero,
		NetPnL:         decimal.Zero,
		MaxDrawdown:    l.MaxDrawdown(),
		InitialBalance: l.risk.InitialBalance,
		FinalBalance:   l.Balance(),
	}
	for _, t := range l.Trades() {
		s.TotalTrades++
		s.NetPnL = s.NetPnL.Add(t.PnL)
		if t.PnL.IsPositive() {
			s.WinningTrades++
			s.GrossProfit = s.GrossProfit.Add(t.PnL)
		} else {
			s.LosingTrades++
			s.GrossLoss = s.GrossLoss.Add(t.PnL.Neg())
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	}
	switch {
	case s.GrossLoss.IsPositive():
		gp, _ := s.GrossProfit.Float64()
		gl, _ := s.GrossLoss.Float64()
		s.ProfitFactor = gp / gl
	case s.GrossProfit.IsPositive():
		s.ProfitFactor = math.Inf(1)
	default:
		s.ProfitFactor = 0
	}
	return s
}
