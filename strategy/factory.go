package strategy

import "fmt"

// policy 一种策略变体的逐 tick 决策。
type policy interface {
	decide(e *Engine, t Tick) Action
}

func newPolicy(p Policy) (policy, error) {
	switch p {
	case PolicyHit:
		return newHitPolicy(), nil
	case PolicyQuote:
		return newQuotePolicy(), nil
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, p)
	}
}
