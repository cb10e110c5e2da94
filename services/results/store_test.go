package results

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-backtest/services/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func sampleResult(runID string) *engine.Result {
	entry := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return &engine.Result{
		RunID:      runID,
		ContractID: "MNQ",
		Mode:       engine.ModeRulesOnly,
		Timeframe:  "5m",
		Start:      entry.Add(-time.Hour),
		End:        entry.Add(24 * time.Hour),
		BarCount:   500,
		Summary: engine.Summary{
			TotalTrades:    1,
			WinningTrades:  1,
			WinRate:        1,
			GrossProfit:    decimal.RequireFromString("200"),
			GrossLoss:      decimal.Zero,
			NetPnL:         decimal.RequireFromString("200"),
			ProfitFactor:   math.Inf(1),
			MaxDrawdown:    decimal.Zero,
			InitialBalance: decimal.RequireFromString("10000"),
			FinalBalance:   decimal.RequireFromString("10200"),
		},
		Trades: []engine.Trade{{
			PositionID: "pos-1",
			Direction:  engine.DirectionLong,
			Quantity:   1,
			EntryPrice: decimal.RequireFromString("100"),
			EntryTime:  entry,
			ExitPrice:  decimal.RequireFromString("110"),
			ExitTime:   entry.Add(40 * time.Minute),
			ExitReason: engine.ExitTakeProfit,
			Source:     engine.SourceRules,
			Reason:     "golden cross (SMA)",
			Ticks:      decimal.RequireFromString("40"),
			PnL:        decimal.RequireFromString("200"),
		}},
		Elapsed: 1500 * time.Millisecond,
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, sampleResult("run-1")); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	detail, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if detail.ContractID != "MNQ" || detail.Mode != "rules_only" || detail.Timeframe != "5m" {
		t.Errorf("run = %+v", detail.RunRecord)
	}
	if detail.ProfitFactor != "inf" {
		t.Errorf("profit factor = %q, want inf", detail.ProfitFactor)
	}
	if detail.FinalBalance != "10200" {
		t.Errorf("final balance = %q", detail.FinalBalance)
	}
	if len(detail.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(detail.Trades))
	}
	tr := detail.Trades[0]
	if tr.Direction != "LONG" || tr.ExitReason != engine.ExitTakeProfit || tr.PnL != "200" {
		t.Errorf("trade = %+v", tr)
	}
	if !tr.EntryTime.Equal(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("entry time = %v", tr.EntryTime)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		if err := s.SaveRun(ctx, sampleResult(id)); err != nil {
			t.Fatalf("SaveRun(%s): %v", id, err)
		}
		time.Sleep(2 * time.Millisecond) // distinct created_at_ms
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want limit 2", len(runs))
	}
	if runs[0].RunID != "run-c" || runs[1].RunID != "run-b" {
		t.Errorf("order = %s, %s", runs[0].RunID, runs[1].RunID)
	}
}

func TestGetRunMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetRun(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestSaveRunDuplicateIDFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SaveRun(ctx, sampleResult("run-1")); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveRun(ctx, sampleResult("run-1")); err == nil {
		t.Fatal("duplicate run id must fail")
	}
}
