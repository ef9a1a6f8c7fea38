package inventory

import (
	"sync"

	"dual-trader-go/order"
)

// Tracker 按成交累计本次运行的净仓位与加权成本，用于展示与指标。
type Tracker struct {
	mu     sync.RWMutex
	net    float64
	cost   float64
	volume float64
}

// Update 根据成交数量调整仓位；deltaQty 买入为正、卖出为负。
func (t *Tracker) Update(deltaQty float64, price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// 简化：加权平均成本
	totalValue := t.cost*t.net + price*deltaQty
	t.net += deltaQty
	if t.net != 0 {
		t.cost = totalValue / t.net
	} else {
		t.cost = 0
	}
	if deltaQty < 0 {
		t.volume -= deltaQty * price
	} else {
		t.volume += deltaQty * price
	}
}

// OnFill 记录一笔成交。
func (t *Tracker) OnFill(f order.Fill) {
	qty := f.Quantity
	if f.Side == order.Sell {
		qty = -qty
	}
	t.Update(qty, f.Price)
}

func (t *Tracker) NetExposure() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.net
}

func (t *Tracker) AvgCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cost
}

// Volume 累计成交额（quote 计价）。
func (t *Tracker) Volume() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.volume
}
