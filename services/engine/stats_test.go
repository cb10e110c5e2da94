package engine

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSummaryZeroTrades(t *testing.T) {
	l := NewLedger(testSpec(), testRisk(), time.Unix(0, 0))
	s := ComputeSummary(l)
	if s.TotalTrades != 0 || s.WinningTrades != 0 || s.LosingTrades != 0 {
		t.Fatalf("counts = %+v, want all zero", s)
	}
	if s.WinRate != 0 || s.ProfitFactor != 0 {
		t.Fatalf("rate/factor = %v/%v, want 0/0", s.WinRate, s.ProfitFactor)
	}
	if !s.NetPnL.IsZero() || !s.GrossProfit.IsZero() || !s.GrossLoss.IsZero() {
		t.Fatal("money fields must be zero, not unset")
	}
	if !s.FinalBalance.Equal(s.InitialBalance) {
		t.Fatalf("final = %s, initial = %s", s.FinalBalance, s.InitialBalance)
	}
}

func TestProfitFactorInfiniteWhenLossless(t *testing.T) {
	l := NewLedger(testSpec(), testRisk(), time.Unix(0, 0))
	l.Open(longSignal(0.9), mkBar(0, 100, 100, 100, 100, 10))
	l.CheckExits(mkBar(60_000, 110, 111, 109, 110, 10))

	s := ComputeSummary(l)
	if !math.IsInf(s.ProfitFactor, 1) {
		t.Fatalf("profit factor = %v, want +Inf", s.ProfitFactor)
	}
	if s.ProfitFactorLabel() != "inf" {
		t.Fatalf("label = %q, want inf", s.ProfitFactorLabel())
	}
}

func TestProfitFactorRatio(t *testing.T) {
	l := NewLedger(testSpec(), testRisk(), time.Unix(0, 0))

	// One +200 win, one -100 loss.
	l.Open(longSignal(0.9), mkBar(0, 100, 100, 100, 100, 10))
	l.CheckExits(mkBar(60_000, 110, 111, 109, 110, 10))
	l.Open(longSignal(0.9), mkBar(120_000, 100, 100, 100, 100, 10))
	l.CheckExits(mkBar(180_000, 95, 96, 94, 95, 10))

	s := ComputeSummary(l)
	if s.TotalTrades != 2 || s.WinningTrades != 1 || s.LosingTrades != 1 {
		t.Fatalf("counts = %d/%d/%d", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	}
	if s.WinRate != 0.5 {
		t.Errorf("win rate = %v, want 0.5", s.WinRate)
	}
	if s.ProfitFactor != 2 {
		t.Errorf("profit factor = %v, want 2", s.ProfitFactor)
	}
	if !s.NetPnL.Equal(decimal.RequireFromString("100")) {
		t.Errorf("net = %s, want 100", s.NetPnL)
	}
	if !s.GrossLoss.Equal(decimal.RequireFromString("100")) {
		t.Errorf("gross loss = %s, want positive magnitude 100", s.GrossLoss)
	}
}

func TestSummaryJSONCarriesInfinity(t *testing.T) {
	s := Summary{ProfitFactor: math.Inf(1)}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Summary
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !math.IsInf(back.ProfitFactor, 1) {
		t.Fatalf("round-tripped factor = %v, want +Inf", back.ProfitFactor)
	}
}
