// Package clickhouse provides the candle store backing the backtest engine.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"futures-backtest/services/config"
	"futures-backtest/services/engine"
)

// Store reads and writes candles in ClickHouse. Rows are deduplicated by
// ReplacingMergeTree on (symbol, interval, open_time_ms); reads go through
// FINAL so a re-ingested month never double-counts.
type Store struct {
	conn     clickhouse.Conn
	database string
	table    string
	logger   *zap.Logger
}

func NewStore(cfg config.ClickHouseConfig, logger *zap.Logger) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{conn: conn, database: cfg.Database, table: cfg.Table, logger: logger}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates the database and candles table if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database)); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			interval LowCardinality(String),
			open_time_ms UInt64,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Int64,
			ingested_at DateTime64(3),
			version UInt64
		)
		ENGINE = ReplacingMergeTree(version)
		ORDER BY (symbol, interval, open_time_ms)
		SETTINGS index_granularity = 8192
	`, s.database, s.table)
	if err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// LoadBars returns the ordered candles for one contract/timeframe/range. An
// empty result is engine.ErrNoData: the engine must never simulate against
// a range the store does not cover.
func (s *Store) LoadBars(ctx context.Context, contractID, timeframe string, start, end time.Time) ([]engine.Bar, error) {
	query := fmt.Sprintf(`
		SELECT open_time_ms, open, high, low, close, volume
		FROM %s.%s FINAL
		WHERE symbol = ? AND interval = ? AND open_time_ms >= ? AND open_time_ms < ?
		ORDER BY open_time_ms
	`, s.database, s.table)

	rows, err := s.conn.Query(ctx, query, contractID, timeframe,
		uint64(start.UnixMilli()), uint64(end.UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var bars []engine.Bar
	for rows.Next() {
		var (
			openMs uint64
			bar    engine.Bar
		)
		if err := rows.Scan(&openMs, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		bar.Timestamp = int64(openMs)
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read candles: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s %s..%s", engine.ErrNoData,
			contractID, timeframe, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	s.logger.Debug("loaded candles",
		zap.String("symbol", contractID),
		zap.String("interval", timeframe),
		zap.Int("count", len(bars)),
	)
	return bars, nil
}

// InsertBars writes candles for one contract/timeframe in a single batch.
// Re-inserting the same range is safe; the newest version wins.
func (s *Store) InsertBars(ctx context.Context, contractID, timeframe string, bars []engine.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s.%s SETTINGS insert_deduplicate=1", s.database, s.table))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	now := time.Now().UTC()
	version := uint64(now.UnixNano())
	for _, b := range bars {
		if err := batch.Append(
			contractID, timeframe,
			uint64(b.Timestamp),
			b.Open, b.High, b.Low, b.Close,
			b.Volume,
			now,
			version,
		); err != nil {
			return fmt.Errorf("batch append: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("batch send: %w", err)
	}

	s.logger.Info("inserted candles",
		zap.String("symbol", contractID),
		zap.String("interval", timeframe),
		zap.Int("count", len(bars)),
	)
	return nil
}
