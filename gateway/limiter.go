package gateway

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter 控制 REST 请求速率，避免触发交易所限流。
type Limiter struct {
	rl *rate.Limiter
}

func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait 阻塞到获得令牌或 ctx 结束。
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}

// Allow 不阻塞地尝试获取令牌。
func (l *Limiter) Allow() bool {
	return l.rl.Allow()
}
