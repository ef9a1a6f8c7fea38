package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"dual-trader-go/infrastructure/logger"
	"dual-trader-go/order"
	"dual-trader-go/strategy"
)

const (
	EnvPaper = "paper"
	EnvLive  = "live"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env      string         `yaml:"env"` // paper | live
	Symbol   string         `yaml:"symbol"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Log      logger.Config  `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Strategy StrategyParams `yaml:"strategy"`
	Runner   RunnerConfig   `yaml:"runner"`
	Sync     SyncConfig     `yaml:"sync"`
	Paper    PaperConfig    `yaml:"paper"`
}

type GatewayConfig struct {
	APIKey    string  `yaml:"apiKey"`
	APISecret string  `yaml:"apiSecret"`
	BaseURL   string  `yaml:"baseURL"`   // 为空使用 go-binance 默认地址
	StreamURL string  `yaml:"streamURL"` // bookTicker websocket 地址
	RateLimit float64 `yaml:"rateLimit"` // REST 每秒请求数
	Burst     int     `yaml:"burst"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 为空不启动 /metrics
}

// StrategyParams 策略参数，时长以毫秒配置，0 表示关闭对应功能。
type StrategyParams struct {
	Policy              string  `yaml:"policy"`    // hit | quote
	OrderSize           float64 `yaml:"orderSize"` // 单笔名义金额（quote 资产）
	StaleAfterMs        int     `yaml:"staleAfterMs"`
	MinimumQuoteAgeMs   int     `yaml:"minimumQuoteAgeMs"`
	SameTradeCooldownMs int     `yaml:"sameTradeCooldownMs"`
	AlternationDelayMs  int     `yaml:"alternationDelayMs"`
	MinOrderLifetimeMs  int     `yaml:"minOrderLifetimeMs"`
	MaxOrderAgeMs       int     `yaml:"maxOrderAgeMs"` // 仅 quote
}

type RunnerConfig struct {
	YieldMs        int `yaml:"yieldMs"`
	StaleBackoffMs int `yaml:"staleBackoffMs"`
}

type SyncConfig struct {
	OrdersMs   int `yaml:"ordersMs"`
	BalancesMs int `yaml:"balancesMs"`
}

// PaperConfig 模拟盘的交易对规则与初始余额。
type PaperConfig struct {
	BaseAsset   string             `yaml:"baseAsset"`
	QuoteAsset  string             `yaml:"quoteAsset"`
	TickSize    float64            `yaml:"tickSize"`
	StepSize    float64            `yaml:"stepSize"`
	MinQty      float64            `yaml:"minQty"`
	MinNotional float64            `yaml:"minNotional"`
	Balances    map[string]float64 `yaml:"balances"`
}

// Default 返回默认配置；Load 在其基础上覆盖文件中出现的字段。
func Default() AppConfig {
	return AppConfig{
		Env: EnvPaper,
		Gateway: GatewayConfig{
			RateLimit: 10,
			Burst:     20,
		},
		Log: logger.DefaultConfig(),
		Strategy: StrategyParams{
			Policy:              string(strategy.PolicyHit),
			StaleAfterMs:        1000,
			SameTradeCooldownMs: 10,
			MaxOrderAgeMs:       15000,
		},
		Runner: RunnerConfig{YieldMs: 1, StaleBackoffMs: 9},
		Sync:   SyncConfig{OrdersMs: 1000, BalancesMs: 2000},
	}
}

// EngineConfig 转换为策略参数。
func (p StrategyParams) EngineConfig() strategy.Config {
	cfg := strategy.Config{
		Policy:            strategy.Policy(p.Policy),
		OrderSize:         p.OrderSize,
		StaleAfter:        ms(p.StaleAfterMs),
		MinimumQuoteAge:   ms(p.MinimumQuoteAgeMs),
		SameTradeCooldown: ms(p.SameTradeCooldownMs),
		AlternationDelay:  ms(p.AlternationDelayMs),
		MinOrderLifetime:  ms(p.MinOrderLifetimeMs),
	}
	if cfg.Policy == strategy.PolicyQuote {
		cfg.MaxOrderAge = ms(p.MaxOrderAgeMs)
	}
	return cfg
}

// Rules 模拟盘交易对规则。
func (p PaperConfig) Rules(symbol string) order.SymbolRules {
	return order.SymbolRules{
		Symbol:      symbol,
		BaseAsset:   p.BaseAsset,
		QuoteAsset:  p.QuoteAsset,
		TickSize:    p.TickSize,
		StepSize:    p.StepSize,
		MinQty:      p.MinQty,
		MinNotional: p.MinNotional,
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg, err := parse(path)
	if err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := parse(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("DT_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("DT_GATEWAY_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	return cfg, Validate(cfg)
}

func parse(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Symbol == "" {
		return errors.New("symbol is required")
	}
	switch cfg.Env {
	case EnvPaper:
		if err := cfg.Paper.Rules(cfg.Symbol).Check(); err != nil {
			return fmt.Errorf("paper: %w", err)
		}
	case EnvLive:
		if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
			return errors.New("gateway.apiKey/apiSecret is required (or env overrides)")
		}
	default:
		return fmt.Errorf("env must be %s or %s, got %q", EnvPaper, EnvLive, cfg.Env)
	}
	if cfg.Gateway.RateLimit <= 0 || cfg.Gateway.Burst <= 0 {
		return errors.New("gateway.rateLimit/burst must be > 0")
	}
	if err := cfg.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := cfg.Strategy.EngineConfig().Validate(); err != nil {
		return err
	}
	if cfg.Runner.YieldMs < 0 || cfg.Runner.StaleBackoffMs < 0 {
		return errors.New("runner intervals must be >= 0")
	}
	if cfg.Sync.OrdersMs <= 0 || cfg.Sync.BalancesMs <= 0 {
		return errors.New("sync intervals must be > 0")
	}
	return nil
}
