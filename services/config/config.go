// Package config loads the service configuration from YAML with environment
// overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`
	GRPCPort int `yaml:"grpc_port"`
}

type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type ResultsConfig struct {
	Path string `yaml:"path"`
}

// BacktestDefaults seed a run request when the caller omits a field.
type BacktestDefaults struct {
	WindowSize      int     `yaml:"window_size"`
	InitialBalance  string  `yaml:"initial_balance"`
	RiskPerTrade    string  `yaml:"risk_per_trade"`
	TakeProfitRatio string  `yaml:"take_profit_ratio"`
	MinConfidence   float64 `yaml:"min_confidence"`
	MaxPositions    int     `yaml:"max_positions"`
}

type Config struct {
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Results     ResultsConfig    `yaml:"results"`
	Backtest    BacktestDefaults `yaml:"backtest"`
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Environment: "dev",
		Server: ServerConfig{
			HTTPPort: 8080,
			GRPCPort: 9091,
		},
		ClickHouse: ClickHouseConfig{
			Addr:     "localhost:9000",
			Database: "backtest",
			Table:    "candles",
			User:     "backtest",
			Password: "backtest123",
		},
		Results: ResultsConfig{
			Path: "backtest_results.db",
		},
		Backtest: BacktestDefaults{
			WindowSize:      100,
			InitialBalance:  "10000",
			RiskPerTrade:    "100",
			TakeProfitRatio: "2",
			MinConfidence:   0.65,
			MaxPositions:    1,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file and uses defaults
// plus environment only.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("ENVIRONMENT")); v != "" {
		c.Environment = v
	}
	if v, ok := envInt("HTTP_PORT"); ok {
		c.Server.HTTPPort = v
	}
	if v, ok := envInt("GRPC_PORT"); ok {
		c.Server.GRPCPort = v
	}
	if v := strings.TrimSpace(os.Getenv("CH_ADDR")); v != "" {
		c.ClickHouse.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("CH_DATABASE")); v != "" {
		c.ClickHouse.Database = v
	}
	if v := strings.TrimSpace(os.Getenv("CH_TABLE")); v != "" {
		c.ClickHouse.Table = v
	}
	if v := strings.TrimSpace(os.Getenv("CH_USER")); v != "" {
		c.ClickHouse.User = v
	}
	if v := strings.TrimSpace(os.Getenv("CH_PASSWORD")); v != "" {
		c.ClickHouse.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("RESULTS_PATH")); v != "" {
		c.Results.Path = v
	}
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port %d", c.Server.GRPCPort)
	}
	if c.Server.GRPCPort == c.Server.HTTPPort {
		return fmt.Errorf("http and grpc ports collide on %d", c.Server.HTTPPort)
	}
	if c.ClickHouse.Addr == "" {
		return fmt.Errorf("clickhouse addr is required")
	}
	if c.ClickHouse.Database == "" || c.ClickHouse.Table == "" {
		return fmt.Errorf("clickhouse database and table are required")
	}
	if c.Results.Path == "" {
		return fmt.Errorf("results path is required")
	}
	if c.Backtest.WindowSize < 0 {
		return fmt.Errorf("backtest window size must be non-negative")
	}
	return nil
}
