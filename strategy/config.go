package strategy

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig 配置或启动前置条件不满足，属于致命错误。
var ErrInvalidConfig = errors.New("invalid strategy config")

// Policy 策略变体。
type Policy string

const (
	PolicyHit   Policy = "hit"   // 吃单：匹配盘口挂单量后 FOK 成交
	PolicyQuote Policy = "quote" // 挂单：在价差内 1.5 tick 挂 maker 单
)

// Config 策略参数；可选时长为 0 表示关闭对应功能。
type Config struct {
	Policy Policy
	// OrderSize 目标单笔名义金额（quote 资产计价）。
	OrderSize float64

	// StaleAfter 深度超过该时长未更新则跳过本轮。
	StaleAfter time.Duration
	// MinimumQuoteAge 吃单前，同一盘口档位需至少被观察到这么久。
	MinimumQuoteAge time.Duration
	// SameTradeCooldown 刚成交过的 (价格, 数量) 在该时间内不再吃。
	SameTradeCooldown time.Duration
	// AlternationDelay 挂单模式买卖方向切换前的空闲时长。
	AlternationDelay time.Duration
	// MinOrderLifetime 新挂单在该时长内不因“非唯一”或“数量偏离”被撤。
	MinOrderLifetime time.Duration
	// MaxOrderAge 挂单模式下超过该时长的订单直接撤销。
	MaxOrderAge time.Duration
}

// DefaultConfig 返回给定策略的默认参数。
func DefaultConfig(policy Policy, orderSize float64) Config {
	cfg := Config{
		Policy:            policy,
		OrderSize:         orderSize,
		StaleAfter:        time.Second,
		SameTradeCooldown: 10 * time.Millisecond,
	}
	if policy == PolicyQuote {
		cfg.MaxOrderAge = 15 * time.Second
	}
	return cfg
}

// Validate 校验参数取值。
func (c Config) Validate() error {
	if c.Policy != PolicyHit && c.Policy != PolicyQuote {
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, c.Policy)
	}
	if c.OrderSize <= 0 {
		return fmt.Errorf("%w: order size must be > 0", ErrInvalidConfig)
	}
	durations := map[string]time.Duration{
		"stale_after":         c.StaleAfter,
		"minimum_quote_age":   c.MinimumQuoteAge,
		"same_trade_cooldown": c.SameTradeCooldown,
		"alternation_delay":   c.AlternationDelay,
		"min_order_lifetime":  c.MinOrderLifetime,
		"max_order_age":       c.MaxOrderAge,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%w: %s must be >= 0", ErrInvalidConfig, name)
		}
	}
	return nil
}
