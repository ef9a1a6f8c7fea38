package order

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// SymbolRules 描述交易对的步长与名义限制（来自 exchangeInfo 或配置）。
// 运行期间不可变。
type SymbolRules struct {
	Symbol      string
	BaseAsset   string
	QuoteAsset  string
	TickSize    float64
	StepSize    float64
	MinQty      float64
	MaxQty      float64
	MinNotional float64
}

// Check 启动时校验规则本身是否完整。
func (r SymbolRules) Check() error {
	if r.Symbol == "" {
		return errors.New("symbol is required")
	}
	if r.BaseAsset == "" || r.QuoteAsset == "" {
		return fmt.Errorf("symbol %s base/quote asset is required", r.Symbol)
	}
	if r.TickSize <= 0 {
		return fmt.Errorf("symbol %s tickSize must be > 0", r.Symbol)
	}
	if r.StepSize <= 0 {
		return fmt.Errorf("symbol %s stepSize must be > 0", r.Symbol)
	}
	if r.MinQty < 0 || r.MinNotional < 0 {
		return fmt.Errorf("symbol %s minimums must be >= 0", r.Symbol)
	}
	return nil
}

// RoundPrice 将价格对齐到 tickSize，up 为 true 时向上取整。
func (r SymbolRules) RoundPrice(price float64, up bool) float64 {
	return roundToStep(decimal.NewFromFloat(price), r.TickSize, up)
}

// Shift 在 price 基础上移动 steps 个 tick（up 为加，否则为减），并按同方向取整。
func (r SymbolRules) Shift(price, steps float64, up bool) float64 {
	offset := decimal.NewFromFloat(r.TickSize).Mul(decimal.NewFromFloat(steps))
	p := decimal.NewFromFloat(price)
	if up {
		p = p.Add(offset)
	} else {
		p = p.Sub(offset)
	}
	return roundToStep(p, r.TickSize, up)
}

// RoundSize 将数量向下对齐到 stepSize，避免超出可用余额。
func (r SymbolRules) RoundSize(qty float64) float64 {
	if qty <= 0 {
		return 0
	}
	return roundToStep(decimal.NewFromFloat(qty), r.StepSize, false)
}

// Validate 检查订单价格/数量是否符合精度与最小名义。
func (r SymbolRules) Validate(price, qty float64) error {
	if r.TickSize > 0 && !isMultiple(price, r.TickSize) {
		return fmt.Errorf("price %.8f not aligned to tickSize %.8f", price, r.TickSize)
	}
	if r.StepSize > 0 && !isMultiple(qty, r.StepSize) {
		return fmt.Errorf("qty %.8f not aligned to stepSize %.8f", qty, r.StepSize)
	}
	if r.MinQty > 0 && qty < r.MinQty {
		return fmt.Errorf("qty %.8f < minQty %.8f", qty, r.MinQty)
	}
	if r.MaxQty > 0 && qty > r.MaxQty {
		return fmt.Errorf("qty %.8f > maxQty %.8f", qty, r.MaxQty)
	}
	if r.MinNotional > 0 && price*qty < r.MinNotional {
		return fmt.Errorf("notional %.8f < minNotional %.8f", price*qty, r.MinNotional)
	}
	return nil
}

// FormatPrice/FormatQty 输出与步长精度一致的字符串，供 REST 下单使用。
func (r SymbolRules) FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(stepPlaces(r.TickSize))
}

func (r SymbolRules) FormatQty(qty float64) string {
	return decimal.NewFromFloat(qty).StringFixed(stepPlaces(r.StepSize))
}

func roundToStep(v decimal.Decimal, step float64, up bool) float64 {
	if step <= 0 {
		return v.InexactFloat64()
	}
	s := decimal.NewFromFloat(step)
	n := v.Div(s)
	if up {
		n = n.Ceil()
	} else {
		n = n.Floor()
	}
	return n.Mul(s).InexactFloat64()
}

func stepPlaces(step float64) int32 {
	if step <= 0 {
		return 8
	}
	exp := decimal.NewFromFloat(step).Exponent()
	if exp >= 0 {
		return 0
	}
	return -exp
}

func isMultiple(value, step float64) bool {
	if step <= 0 {
		return true
	}
	ratio := value / step
	return math.Abs(ratio-math.Round(ratio)) <= 1e-8
}
