// Package main runs a single backtest from the command line, against either
// a local candle CSV or the ClickHouse store.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"futures-backtest/services/clickhouse"
	"futures-backtest/services/config"
	"futures-backtest/services/engine"
	"futures-backtest/services/results"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults + env otherwise)")
	contract := flag.String("contract", "BTCUSDT", "Contract symbol")
	tickSize := flag.String("tick-size", "0.01", "Minimum price increment")
	tickValue := flag.String("tick-value", "1", "Currency value of one tick per contract")
	mode := flag.String("mode", "rules_only", "Signal mode: rules_only, model_only, model_and_rules")
	timeframes := flag.String("timeframes", "5", "Comma-separated timeframes in minutes; smallest executes")
	from := flag.String("from", "2024-01-01", "Start UTC (YYYY-MM-DD or RFC3339)")
	to := flag.String("to", "2024-02-01", "End UTC (YYYY-MM-DD or RFC3339)")
	csvPath := flag.String("csv", "", "Path to local candle CSV; if set, skip ClickHouse")
	balance := flag.String("balance", "", "Initial balance (config default otherwise)")
	risk := flag.String("risk", "", "Risk per trade in currency (config default otherwise)")
	tpRatio := flag.String("tp-ratio", "", "Take-profit ratio (config default otherwise)")
	commission := flag.String("commission", "", "Flat commission per trade (default 0)")
	minConf := flag.Float64("min-conf", 0, "Minimum signal confidence (config default otherwise)")
	maxPos := flag.Int("max-pos", 0, "Maximum concurrent positions (config default otherwise)")
	window := flag.Int("window", 0, "Trailing window size in bars (engine default otherwise)")
	save := flag.Bool("save", false, "Persist the run to the results database")
	verbose := flag.Bool("verbose", false, "Log at debug level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config: %v", err)
	}

	zapCfg := zap.NewProductionConfig()
	if *verbose {
		zapCfg = zap.NewDevelopmentConfig()
	}
	logger, err := zapCfg.Build()
	if err != nil {
		fatal("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var loader engine.BarLoader
	if *csvPath != "" {
		loader = csvLoader{path: *csvPath}
	} else {
		store, err := clickhouse.NewStore(cfg.ClickHouse, logger)
		if err != nil {
			fatal("clickhouse: %v", err)
		}
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			fatal("clickhouse ping: %v", err)
		}
		loader = store
	}

	runCfg, err := buildConfig(cfg.Backtest, *contract, *tickSize, *tickValue, *mode,
		*timeframes, *from, *to, *balance, *risk, *tpRatio, *commission, *minConf, *maxPos, *window)
	if err != nil {
		fatal("%v", err)
	}

	res, err := engine.New(loader, nil, logger).Run(ctx, runCfg)
	if err != nil {
		fatal("backtest failed [%s]: %v", engine.ErrorCode(err), err)
	}

	printSummary(res)

	if *save {
		store, err := results.Open(cfg.Results.Path, logger)
		if err != nil {
			fatal("results db: %v", err)
		}
		defer store.Close()
		if err := store.Init(ctx); err != nil {
			fatal("results schema: %v", err)
		}
		if err := store.SaveRun(ctx, res); err != nil {
			fatal("save run: %v", err)
		}
		fmt.Printf("Saved run %s to %s\n", res.RunID, cfg.Results.Path)
	}
}

func buildConfig(defaults config.BacktestDefaults, contract, tickSize, tickValue, mode,
	timeframes, from, to, balance, risk, tpRatio, commission string, minConf float64, maxPos, window int,
) (engine.Config, error) {
	ts, err := decimal.NewFromString(tickSize)
	if err != nil {
		return engine.Config{}, fmt.Errorf("tick-size: %w", err)
	}
	tv, err := decimal.NewFromString(tickValue)
	if err != nil {
		return engine.Config{}, fmt.Errorf("tick-value: %w", err)
	}

	var tfs []int
	for _, part := range strings.Split(timeframes, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return engine.Config{}, fmt.Errorf("timeframes: %w", err)
		}
		tfs = append(tfs, n)
	}

	start, err := parseWhen(from)
	if err != nil {
		return engine.Config{}, fmt.Errorf("from: %w", err)
	}
	end, err := parseWhen(to)
	if err != nil {
		return engine.Config{}, fmt.Errorf("to: %w", err)
	}

	r := engine.RiskParams{
		MinConfidence: defaults.MinConfidence,
		MaxPositions:  defaults.MaxPositions,
	}
	if r.InitialBalance, err = decimalOr(balance, defaults.InitialBalance); err != nil {
		return engine.Config{}, fmt.Errorf("balance: %w", err)
	}
	if r.RiskPerTrade, err = decimalOr(risk, defaults.RiskPerTrade); err != nil {
		return engine.Config{}, fmt.Errorf("risk: %w", err)
	}
	if r.TakeProfitRatio, err = decimalOr(tpRatio, defaults.TakeProfitRatio); err != nil {
		return engine.Config{}, fmt.Errorf("tp-ratio: %w", err)
	}
	if r.Commission, err = decimalOr(commission, "0"); err != nil {
		return engine.Config{}, fmt.Errorf("commission: %w", err)
	}
	if minConf > 0 {
		r.MinConfidence = minConf
	}
	if maxPos > 0 {
		r.MaxPositions = maxPos
	}
	if window == 0 {
		window = defaults.WindowSize
	}

	return engine.Config{
		Contract:   engine.ContractSpec{ContractID: contract, TickSize: ts, TickValue: tv},
		Mode:       engine.SignalMode(mode),
		Timeframes: tfs,
		Start:      start,
		End:        end,
		Risk:       r,
		Rules:      engine.DefaultRuleConfig(),
		WindowSize: window,
	}, nil
}

func decimalOr(value, fallback string) (decimal.Decimal, error) {
	if value == "" {
		value = fallback
	}
	return decimal.NewFromString(value)
}

func parseWhen(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func printSummary(res *engine.Result) {
	s := res.Summary
	fmt.Println("=== Backtest Summary ===")
	fmt.Printf("Run: %s\n", res.RunID)
	fmt.Printf("Contract: %s, %s, mode %s\n", res.ContractID, res.Timeframe, res.Mode)
	fmt.Printf("Period: %s to %s UTC (%d bars)\n",
		res.Start.Format("2006-01-02 15:04"), res.End.Format("2006-01-02 15:04"), res.BarCount)
	fmt.Printf("Trades: %d (W %d / L %d, win rate %.1f%%)\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.WinRate*100)
	fmt.Printf("Gross: +$%s / -$%s, Net: $%s, ProfitFactor: %s\n",
		s.GrossProfit, s.GrossLoss, s.NetPnL, s.ProfitFactorLabel())
	fmt.Printf("Balance: $%s -> $%s, MaxDrawdown: $%s\n",
		s.InitialBalance, s.FinalBalance, s.MaxDrawdown)
	fmt.Printf("Elapsed: %s\n", res.Elapsed.Round(time.Millisecond))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// csvLoader reads candles from a local file with columns
// timestamp_ms,open,high,low,close,volume. A header row is skipped and
// UTF-16 files (common from spreadsheet exports) are decoded transparently.
type csvLoader struct {
	path string
}

func (l csvLoader) LoadBars(ctx context.Context, contractID, timeframe string, start, end time.Time) ([]engine.Bar, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	var reader io.Reader
	br := bufio.NewReader(f)
	if head, _ := br.Peek(2); len(head) == 2 &&
		((head[0] == 0xFF && head[1] == 0xFE) || (head[0] == 0xFE && head[1] == 0xFF)) {
		reader = transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	} else {
		reader = transform.NewReader(br, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	}

	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1

	startMs := start.UnixMilli()
	endMs := end.UnixMilli()

	var bars []engine.Bar
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(rec) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			continue // header or junk row
		}
		if ts < startMs || ts >= endMs {
			continue
		}
		open, err1 := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		high, err2 := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		low, err3 := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		closep, err4 := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
		vol, err5 := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			return nil, fmt.Errorf("malformed csv row at ts %d", ts)
		}
		bars = append(bars, engine.Bar{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closep,
			Volume:    int64(vol),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", engine.ErrNoData, l.path, timeframe)
	}
	return bars, nil
}
