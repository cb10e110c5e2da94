package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.HTTPPort != 8080 || c.Server.GRPCPort != 9091 {
		t.Errorf("ports = %d/%d", c.Server.HTTPPort, c.Server.GRPCPort)
	}
	if c.Backtest.WindowSize != 100 {
		t.Errorf("window size = %d", c.Backtest.WindowSize)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
environment: prod
server:
  http_port: 8181
  grpc_port: 9191
clickhouse:
  addr: ch.internal:9000
  database: markets
  table: candles
backtest:
  min_confidence: 0.75
  max_positions: 3
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Environment != "prod" {
		t.Errorf("environment = %q", c.Environment)
	}
	if c.Server.HTTPPort != 8181 {
		t.Errorf("http port = %d", c.Server.HTTPPort)
	}
	if c.ClickHouse.Addr != "ch.internal:9000" || c.ClickHouse.Database != "markets" {
		t.Errorf("clickhouse = %+v", c.ClickHouse)
	}
	if c.Backtest.MinConfidence != 0.75 || c.Backtest.MaxPositions != 3 {
		t.Errorf("backtest = %+v", c.Backtest)
	}
	// Untouched sections keep defaults.
	if c.Results.Path != "backtest_results.db" {
		t.Errorf("results path = %q", c.Results.Path)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("CH_ADDR", "override:9000")
	t.Setenv("HTTP_PORT", "9999")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ClickHouse.Addr != "override:9000" {
		t.Errorf("addr = %q", c.ClickHouse.Addr)
	}
	if c.Server.HTTPPort != 9999 {
		t.Errorf("http port = %d", c.Server.HTTPPort)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad http port", func(c *Config) { c.Server.HTTPPort = 0 }},
		{"port collision", func(c *Config) { c.Server.GRPCPort = c.Server.HTTPPort }},
		{"missing addr", func(c *Config) { c.ClickHouse.Addr = "" }},
		{"missing table", func(c *Config) { c.ClickHouse.Table = "" }},
		{"missing results path", func(c *Config) { c.Results.Path = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
