package strategy

import "github.com/shopspring/decimal"

// Band 库存区间。
type Band int

const (
	BandNormal Band = iota
	BandExcess
	BandDeficient
)

func (b Band) String() string {
	switch b {
	case BandExcess:
		return "excess"
	case BandDeficient:
		return "deficient"
	default:
		return "normal"
	}
}

// InventoryGuard 按 base 资产在 bid 价下的价值相对目标金额的倍数划分区间。
type InventoryGuard struct {
	ExcessAt           float64 // 价值 >= ExcessAt*target 为过多
	DeficientAt        float64 // 价值 < DeficientAt*target 为不足
	DeficientInclusive bool    // 为 true 时等于 DeficientAt*target 也算不足
}

// Classify 返回库存区间。
func (g InventoryGuard) Classify(baseTotal, bid, target float64) Band {
	value := baseTotal * bid
	switch {
	case value >= g.ExcessAt*target:
		return BandExcess
	case value < g.DeficientAt*target:
		return BandDeficient
	case g.DeficientInclusive && value == g.DeficientAt*target:
		return BandDeficient
	default:
		return BandNormal
	}
}

// SpreadGuard 价差是否足够容纳报价；以 decimal 计算避免 100.02-100 被判为不足 2 tick。
type SpreadGuard struct {
	TickSize float64
}

// Quotable ask-bid >= steps*tick。
func (g SpreadGuard) Quotable(ask, bid float64, steps int) bool {
	spread := decimal.NewFromFloat(ask).Sub(decimal.NewFromFloat(bid))
	floor := decimal.NewFromFloat(g.TickSize).Mul(decimal.NewFromInt(int64(steps)))
	return spread.GreaterThanOrEqual(floor)
}
