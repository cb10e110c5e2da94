// Package main hosts the backtesting engine behind gRPC and HTTP APIs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	pb "futures-backtest/proto"
	"futures-backtest/services/chartpack"
	"futures-backtest/services/clickhouse"
	"futures-backtest/services/config"
	"futures-backtest/services/engine"
	"futures-backtest/services/results"
)

// BacktestService implements the gRPC backtesting service and the HTTP
// handlers over the same engine.
type BacktestService struct {
	pb.UnimplementedBacktestServiceServer
	engine  *engine.Engine
	candles *clickhouse.Store
	runs    *results.Store
	codec   *chartpack.Codec
	logger  *zap.Logger
	config  *config.Config
}

func NewBacktestService(cfg *config.Config, logger *zap.Logger) (*BacktestService, error) {
	candles, err := clickhouse.NewStore(cfg.ClickHouse, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create candle store: %w", err)
	}
	runs, err := results.Open(cfg.Results.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open results store: %w", err)
	}
	if err := runs.Init(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to init results store: %w", err)
	}

	// The server hosts no model runtime; model-only requests are rejected
	// by config validation until a predictor sidecar is wired in.
	eng := engine.New(candles, nil, logger)

	return &BacktestService{
		engine:  eng,
		candles: candles,
		runs:    runs,
		codec:   chartpack.NewCodec(logger),
		logger:  logger,
		config:  cfg,
	}, nil
}

// ExecuteBacktest implements the gRPC ExecuteBacktest method.
func (s *BacktestService) ExecuteBacktest(ctx context.Context, req *pb.BacktestRequest) (*pb.BacktestResponse, error) {
	cfg, err := s.buildEngineConfig(req)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.Run(ctx, cfg)
	if err != nil {
		s.logger.Error("backtest execution failed",
			zap.String("contract", req.ContractId),
			zap.String("code", engine.ErrorCode(err)),
			zap.Error(err),
		)
		return nil, err
	}
	if err := s.runs.SaveRun(ctx, res); err != nil {
		s.logger.Error("failed to persist run", zap.String("run_id", res.RunID), zap.Error(err))
	}
	return toResponse(res), nil
}

func (s *BacktestService) buildEngineConfig(req *pb.BacktestRequest) (engine.Config, error) {
	defaults := s.config.Backtest

	tickSize, err := decimal.NewFromString(req.TickSize)
	if err != nil {
		return engine.Config{}, fmt.Errorf("%w: tick_size %q", engine.ErrInvalidConfig, req.TickSize)
	}
	tickValue, err := decimal.NewFromString(req.TickValue)
	if err != nil {
		return engine.Config{}, fmt.Errorf("%w: tick_value %q", engine.ErrInvalidConfig, req.TickValue)
	}

	risk := engine.RiskParams{
		MinConfidence: defaults.MinConfidence,
		MaxPositions:  defaults.MaxPositions,
	}
	if risk.InitialBalance, err = decimalOr(req.InitialBalance, defaults.InitialBalance); err != nil {
		return engine.Config{}, fmt.Errorf("%w: initial_balance %q", engine.ErrInvalidConfig, req.InitialBalance)
	}
	if risk.RiskPerTrade, err = decimalOr(req.RiskPerTrade, defaults.RiskPerTrade); err != nil {
		return engine.Config{}, fmt.Errorf("%w: risk_per_trade %q", engine.ErrInvalidConfig, req.RiskPerTrade)
	}
	if risk.TakeProfitRatio, err = decimalOr(req.TakeProfitRatio, defaults.TakeProfitRatio); err != nil {
		return engine.Config{}, fmt.Errorf("%w: take_profit_ratio %q", engine.ErrInvalidConfig, req.TakeProfitRatio)
	}
	if risk.Commission, err = decimalOr(req.Commission, "0"); err != nil {
		return engine.Config{}, fmt.Errorf("%w: commission %q", engine.ErrInvalidConfig, req.Commission)
	}
	if req.MinConfidence > 0 {
		risk.MinConfidence = req.MinConfidence
	}
	if req.MaxPositions > 0 {
		risk.MaxPositions = int(req.MaxPositions)
	}

	timeframes := make([]int, 0, len(req.TimeframesMin))
	for _, tf := range req.TimeframesMin {
		timeframes = append(timeframes, int(tf))
	}
	windowSize := int(req.WindowSize)
	if windowSize == 0 {
		windowSize = defaults.WindowSize
	}

	return engine.Config{
		Contract: engine.ContractSpec{
			ContractID: req.ContractId,
			TickSize:   tickSize,
			TickValue:  tickValue,
		},
		Mode:         engine.SignalMode(req.Mode),
		Timeframes:   timeframes,
		Start:        time.UnixMilli(req.StartMs).UTC(),
		End:          time.UnixMilli(req.EndMs).UTC(),
		Risk:         risk,
		Rules:        engine.DefaultRuleConfig(),
		WindowSize:   windowSize,
		IncludeChart: req.IncludeChart,
	}, nil
}

func decimalOr(value, fallback string) (decimal.Decimal, error) {
	if value == "" {
		value = fallback
	}
	return decimal.NewFromString(value)
}

func toResponse(res *engine.Result) *pb.BacktestResponse {
	sum := res.Summary
	resp := &pb.BacktestResponse{
		RunId: res.RunID,
		Summary: &pb.Summary{
			TotalTrades:    int32(sum.TotalTrades),
			WinningTrades:  int32(sum.WinningTrades),
			LosingTrades:   int32(sum.LosingTrades),
			WinRate:        sum.WinRate,
			GrossProfit:    sum.GrossProfit.String(),
			GrossLoss:      sum.GrossLoss.String(),
			NetPnl:         sum.NetPnL.String(),
			ProfitFactor:   sum.ProfitFactorLabel(),
			MaxDrawdown:    sum.MaxDrawdown.String(),
			InitialBalance: sum.InitialBalance.String(),
			FinalBalance:   sum.FinalBalance.String(),
		},
		Trades:    make([]*pb.Trade, len(res.Trades)),
		Equity:    make([]*pb.EquityPoint, len(res.Equity)),
		ElapsedMs: res.Elapsed.Milliseconds(),
	}
	for i, tr := range res.Trades {
		resp.Trades[i] = &pb.Trade{
			PositionId: tr.PositionID,
			Direction:  tr.Direction.String(),
			Quantity:   tr.Quantity,
			EntryPrice: tr.EntryPrice.String(),
			EntryMs:    tr.EntryTime.UnixMilli(),
			ExitPrice:  tr.ExitPrice.String(),
			ExitMs:     tr.ExitTime.UnixMilli(),
			ExitReason: tr.ExitReason,
			Source:     tr.Source,
			Reason:     tr.Reason,
			Ticks:      tr.Ticks.String(),
			Pnl:        tr.PnL.String(),
		}
	}
	for i, pt := range res.Equity {
		resp.Equity[i] = &pb.EquityPoint{
			TimestampMs: pt.Timestamp.UnixMilli(),
			Balance:     pt.Balance.String(),
			Pnl:         pt.PnL.String(),
		}
	}
	return resp
}

func (s *BacktestService) setupHTTPRoutes(router *gin.Engine) {
	router.GET("/healthz", s.handleHealth)
	api := router.Group("/api/backtest")
	{
		api.POST("/run", s.handleRun)
		api.POST("/chart", s.handleChart)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
	}
}

func (s *BacktestService) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.candles.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "clickhouse": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *BacktestService) handleRun(c *gin.Context) {
	var req pb.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": engine.CodeInvalidConfig, "error": err.Error()})
		return
	}
	req.IncludeChart = false // chart goes through /chart as Arrow

	resp, err := s.ExecuteBacktest(c.Request.Context(), &req)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"code": engine.ErrorCode(err), "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleChart runs the backtest with the chart bundle enabled and streams
// the execution timeframe as Arrow IPC.
func (s *BacktestService) handleChart(c *gin.Context) {
	var req pb.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": engine.CodeInvalidConfig, "error": err.Error()})
		return
	}
	req.IncludeChart = true

	cfg, err := s.buildEngineConfig(&req)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"code": engine.ErrorCode(err), "error": err.Error()})
		return
	}
	res, err := s.engine.Run(c.Request.Context(), cfg)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"code": engine.ErrorCode(err), "error": err.Error()})
		return
	}
	if res.Chart == nil || len(res.Chart.Timeframes) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"code": engine.CodeExecutionFailed, "error": "chart bundle missing"})
		return
	}

	data, err := s.codec.Encode(res.ContractID, res.Chart.Timeframes[0])
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": engine.CodeExecutionFailed, "error": err.Error()})
		return
	}
	c.Header("X-Run-Id", res.RunID)
	c.Data(http.StatusOK, "application/vnd.apache.arrow.stream", data)
}

func (s *BacktestService) handleListRuns(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := s.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": engine.CodeExecutionFailed, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *BacktestService) handleGetRun(c *gin.Context) {
	detail, err := s.runs.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, results.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": engine.CodeDataNotFound, "error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": engine.CodeExecutionFailed, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func httpStatus(err error) int {
	switch engine.ErrorCode(err) {
	case engine.CodeDataNotFound:
		return http.StatusNotFound
	case engine.CodeInvalidConfig, engine.CodeModelRequired:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting backtesting service",
		zap.String("environment", cfg.Environment),
		zap.Int("http_port", cfg.Server.HTTPPort),
		zap.Int("grpc_port", cfg.Server.GRPCPort),
	)

	service, err := NewBacktestService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create backtest service", zap.Error(err))
	}

	grpcServer := grpc.NewServer()
	pb.RegisterBacktestServiceServer(grpcServer, service)
	reflection.Register(grpcServer)

	gin.SetMode(gin.ReleaseMode)
	httpRouter := gin.New()
	httpRouter.Use(gin.Recovery())
	service.setupHTTPRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpRouter,
	}

	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			logger.Fatal("Failed to listen on gRPC port", zap.Error(err))
		}
		logger.Info("Starting gRPC server", zap.Int("port", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("Failed to serve gRPC", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down servers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	service.candles.Close()
	service.runs.Close()
	logger.Info("Servers stopped")
}
