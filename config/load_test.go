package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dual-trader-go/strategy"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const paperYAML = `
env: paper
symbol: ETHUSDC
strategy:
  policy: quote
  orderSize: 1000
  alternationDelayMs: 500
paper:
  baseAsset: ETH
  quoteAsset: USDC
  tickSize: 0.01
  stepSize: 0.001
  minQty: 0.001
  minNotional: 5
  balances:
    ETH: 10
    USDC: 2000
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, paperYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != EnvPaper || cfg.Symbol != "ETHUSDC" {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	// 未出现的字段保持默认值
	if cfg.Strategy.StaleAfterMs != 1000 || cfg.Strategy.SameTradeCooldownMs != 10 {
		t.Fatalf("defaults not kept: %+v", cfg.Strategy)
	}
	if cfg.Log.Level != "info" || cfg.Runner.StaleBackoffMs != 9 {
		t.Fatalf("defaults not kept: %+v %+v", cfg.Log, cfg.Runner)
	}
	if cfg.Paper.Balances["USDC"] != 2000 {
		t.Fatalf("paper balances not loaded: %+v", cfg.Paper)
	}
	rules := cfg.Paper.Rules(cfg.Symbol)
	if rules.Symbol != "ETHUSDC" || rules.TickSize != 0.01 || rules.BaseAsset != "ETH" {
		t.Fatalf("unexpected rules: %+v", rules)
	}
}

func TestEngineConfig(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, paperYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ec := cfg.Strategy.EngineConfig()
	if ec.Policy != strategy.PolicyQuote || ec.OrderSize != 1000 {
		t.Fatalf("unexpected engine config: %+v", ec)
	}
	if ec.AlternationDelay != 500*time.Millisecond || ec.MaxOrderAge != 15*time.Second {
		t.Fatalf("unexpected durations: %+v", ec)
	}

	hit := cfg.Strategy
	hit.Policy = "hit"
	if got := hit.EngineConfig().MaxOrderAge; got != 0 {
		t.Fatalf("hit policy should not age out orders, got %s", got)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
env: live
symbol: ETHUSDC
gateway:
  apiKey: foo
  apiSecret: bar
strategy:
  policy: hit
  orderSize: 1000
`)
	t.Setenv("DT_GATEWAY_API_KEY", "env-key")
	t.Setenv("DT_GATEWAY_API_SECRET", "env-secret")
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.APIKey != "env-key" || cfg.Gateway.APISecret != "env-secret" {
		t.Fatalf("env overrides not applied: %+v", cfg.Gateway)
	}
}

func TestLiveKeysFromEnvOnly(t *testing.T) {
	path := writeTempConfig(t, `
env: live
symbol: ETHUSDC
strategy:
  orderSize: 1000
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected missing api key error")
	}
	t.Setenv("DT_GATEWAY_API_KEY", "k")
	t.Setenv("DT_GATEWAY_API_SECRET", "s")
	if _, err := LoadWithEnvOverrides(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() AppConfig {
		cfg, err := Load(writeTempConfig(t, paperYAML))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return cfg
	}
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"缺少交易对", func(c *AppConfig) { c.Symbol = "" }, "symbol is required"},
		{"未知环境", func(c *AppConfig) { c.Env = "dev" }, "env must be"},
		{"模拟盘缺少步长", func(c *AppConfig) { c.Paper.StepSize = 0 }, "stepSize"},
		{"未知策略", func(c *AppConfig) { c.Strategy.Policy = "grid" }, "unknown policy"},
		{"金额为零", func(c *AppConfig) { c.Strategy.OrderSize = 0 }, "order size"},
		{"负时长", func(c *AppConfig) { c.Strategy.MinOrderLifetimeMs = -1 }, "min_order_lifetime"},
		{"限速为零", func(c *AppConfig) { c.Gateway.RateLimit = 0 }, "rateLimit"},
		{"同步间隔为零", func(c *AppConfig) { c.Sync.OrdersMs = 0 }, "sync intervals"},
		{"日志级别", func(c *AppConfig) { c.Log.Level = "loud" }, "log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
	if err := Validate(AppConfig{}); err == nil {
		t.Fatalf("expected error for empty config")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
	if _, err := Load(writeTempConfig(t, "env: [paper")); err == nil || !strings.Contains(err.Error(), "parse yaml") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
