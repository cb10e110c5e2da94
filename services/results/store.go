// Package results persists completed backtest runs to SQLite so past runs
// can be listed and inspected without re-simulating.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"futures-backtest/services/engine"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("backtest run not found")

// RunRecord is the stored summary row for one run. Money fields are decimal
// strings; ProfitFactor is a string because "inf" is a valid value.
type RunRecord struct {
	RunID          string    `json:"run_id"`
	ContractID     string    `json:"contract_id"`
	Mode           string    `json:"mode"`
	Timeframe      string    `json:"timeframe"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	BarCount       int       `json:"bar_count"`
	TotalTrades    int       `json:"total_trades"`
	WinningTrades  int       `json:"winning_trades"`
	LosingTrades   int       `json:"losing_trades"`
	WinRate        float64   `json:"win_rate"`
	GrossProfit    string    `json:"gross_profit"`
	GrossLoss      string    `json:"gross_loss"`
	NetPnL         string    `json:"net_pnl"`
	ProfitFactor   string    `json:"profit_factor"`
	MaxDrawdown    string    `json:"max_drawdown"`
	InitialBalance string    `json:"initial_balance"`
	FinalBalance   string    `json:"final_balance"`
	ElapsedMs      int64     `json:"elapsed_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// TradeRecord is one stored trade of a run.
type TradeRecord struct {
	Seq        int       `json:"seq"`
	PositionID string    `json:"position_id"`
	Direction  string    `json:"direction"`
	Quantity   int64     `json:"quantity"`
	EntryPrice string    `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	ExitPrice  string    `json:"exit_price"`
	ExitTime   time.Time `json:"exit_time"`
	ExitReason string    `json:"exit_reason"`
	Source     string    `json:"source"`
	Reason     string    `json:"reason"`
	Ticks      string    `json:"ticks"`
	PnL        string    `json:"pnl"`
}

// RunDetail is a run with its full trade log.
type RunDetail struct {
	RunRecord
	Trades []TradeRecord `json:"trades"`
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	// SQLite writes are single-threaded; a second writer gets SQLITE_BUSY
	// instead of corruption, but one connection avoids the churn.
	db.SetMaxOpenConns(1)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Init(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS backtest_runs (
		run_id          TEXT PRIMARY KEY,
		contract_id     TEXT NOT NULL,
		mode            TEXT NOT NULL,
		timeframe       TEXT NOT NULL,
		start_ms        INTEGER NOT NULL,
		end_ms          INTEGER NOT NULL,
		bar_count       INTEGER NOT NULL,
		total_trades    INTEGER NOT NULL,
		winning_trades  INTEGER NOT NULL,
		losing_trades   INTEGER NOT NULL,
		win_rate        REAL NOT NULL,
		gross_profit    TEXT NOT NULL,
		gross_loss      TEXT NOT NULL,
		net_pnl         TEXT NOT NULL,
		profit_factor   TEXT NOT NULL,
		max_drawdown    TEXT NOT NULL,
		initial_balance TEXT NOT NULL,
		final_balance   TEXT NOT NULL,
		elapsed_ms      INTEGER NOT NULL,
		created_at_ms   INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS backtest_trades (
		run_id      TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		position_id TEXT NOT NULL,
		direction   TEXT NOT NULL,
		quantity    INTEGER NOT NULL,
		entry_price TEXT NOT NULL,
		entry_ms    INTEGER NOT NULL,
		exit_price  TEXT NOT NULL,
		exit_ms     INTEGER NOT NULL,
		exit_reason TEXT NOT NULL,
		source      TEXT NOT NULL,
		reason      TEXT NOT NULL,
		ticks       TEXT NOT NULL,
		pnl         TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON backtest_runs(created_at_ms DESC);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init results schema: %w", err)
	}
	return nil
}

// SaveRun stores a run summary and its trade log atomically.
func (s *Store) SaveRun(ctx context.Context, res *engine.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	sum := res.Summary
	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs (
			run_id, contract_id, mode, timeframe, start_ms, end_ms, bar_count,
			total_trades, winning_trades, losing_trades, win_rate,
			gross_profit, gross_loss, net_pnl, profit_factor, max_drawdown,
			initial_balance, final_balance, elapsed_ms, created_at_ms
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		res.RunID, res.ContractID, string(res.Mode), res.Timeframe,
		res.Start.UnixMilli(), res.End.UnixMilli(), res.BarCount,
		sum.TotalTrades, sum.WinningTrades, sum.LosingTrades, sum.WinRate,
		sum.GrossProfit.String(), sum.GrossLoss.String(), sum.NetPnL.String(),
		sum.ProfitFactorLabel(), sum.MaxDrawdown.String(),
		sum.InitialBalance.String(), sum.FinalBalance.String(),
		res.Elapsed.Milliseconds(), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades (
			run_id, seq, position_id, direction, quantity,
			entry_price, entry_ms, exit_price, exit_ms,
			exit_reason, source, reason, ticks, pnl
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare trades: %w", err)
	}
	defer stmt.Close()

	for i, tr := range res.Trades {
		if _, err := stmt.ExecContext(ctx,
			res.RunID, i, tr.PositionID, tr.Direction.String(), tr.Quantity,
			tr.EntryPrice.String(), tr.EntryTime.UnixMilli(),
			tr.ExitPrice.String(), tr.ExitTime.UnixMilli(),
			tr.ExitReason, tr.Source, tr.Reason,
			tr.Ticks.String(), tr.PnL.String(),
		); err != nil {
			return fmt.Errorf("insert trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("run persisted",
		zap.String("run_id", res.RunID),
		zap.Int("trades", len(res.Trades)),
	)
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, contract_id, mode, timeframe, start_ms, end_ms, bar_count,
		       total_trades, winning_trades, losing_trades, win_rate,
		       gross_profit, gross_loss, net_pnl, profit_factor, max_drawdown,
		       initial_balance, final_balance, elapsed_ms, created_at_ms
		FROM backtest_runs
		ORDER BY created_at_ms DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRun loads one run with its trades.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunDetail, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, contract_id, mode, timeframe, start_ms, end_ms, bar_count,
		       total_trades, winning_trades, losing_trades, win_rate,
		       gross_profit, gross_loss, net_pnl, profit_factor, max_drawdown,
		       initial_balance, final_balance, elapsed_ms, created_at_ms
		FROM backtest_runs WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, position_id, direction, quantity,
		       entry_price, entry_ms, exit_price, exit_ms,
		       exit_reason, source, reason, ticks, pnl
		FROM backtest_trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	defer rows.Close()

	detail := &RunDetail{RunRecord: rec}
	for rows.Next() {
		var (
			tr              TradeRecord
			entryMs, exitMs int64
		)
		if err := rows.Scan(&tr.Seq, &tr.PositionID, &tr.Direction, &tr.Quantity,
			&tr.EntryPrice, &entryMs, &tr.ExitPrice, &exitMs,
			&tr.ExitReason, &tr.Source, &tr.Reason, &tr.Ticks, &tr.PnL,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		tr.EntryTime = time.UnixMilli(entryMs).UTC()
		tr.ExitTime = time.UnixMilli(exitMs).UTC()
		detail.Trades = append(detail.Trades, tr)
	}
	return detail, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		rec                         RunRecord
		startMs, endMs, createdAtMs int64
	)
	err := row.Scan(&rec.RunID, &rec.ContractID, &rec.Mode, &rec.Timeframe,
		&startMs, &endMs, &rec.BarCount,
		&rec.TotalTrades, &rec.WinningTrades, &rec.LosingTrades, &rec.WinRate,
		&rec.GrossProfit, &rec.GrossLoss, &rec.NetPnL, &rec.ProfitFactor,
		&rec.MaxDrawdown, &rec.InitialBalance, &rec.FinalBalance,
		&rec.ElapsedMs, &createdAtMs)
	if err != nil {
		return RunRecord{}, err
	}
	rec.Start = time.UnixMilli(startMs).UTC()
	rec.End = time.UnixMilli(endMs).UTC()
	rec.CreatedAt = time.UnixMilli(createdAtMs).UTC()
	return rec, nil
}
