package strategy

import (
	"fmt"
	"math"
	"sort"

	"dual-trader-go/order"
)

const eps = 1e-6

// candidate 策略本轮希望在某一侧执行的订单。
type candidate struct {
	side   order.Side
	price  float64
	qty    float64
	typ    order.Type
	tif    order.TimeInForce
	floor  int // 下单前要求的最小价差（tick 数），0 不检查
	reason string
}

// reconciler 对比期望与现有订单，每轮只产生一个动作，且同一时刻只在一侧持有订单。
type reconciler struct {
	rules  order.SymbolRules
	spread SpreadGuard
	cfg    *Config
}

func (r *reconciler) reconcile(c candidate, t Tick) Action {
	acting, opposite := sideOrders(t.Orders, c.side), sideOrders(t.Orders, c.side.Opposite())
	if len(opposite) > 0 {
		return cancel(opposite[0], c.reason)
	}
	if len(acting) > 1 {
		return cancel(acting[len(acting)-1], "redundant "+c.side.Label())
	}
	if len(acting) == 1 {
		if reason, stale := r.stale(acting[0], c, t); stale {
			return cancel(acting[0], reason)
		}
		return noop("already the best " + c.side.Label())
	}
	return r.place(c, t)
}

// stale 判断现有订单是否需要撤掉重下。
func (r *reconciler) stale(o order.Order, c candidate, t Tick) (string, bool) {
	if c.typ == order.Taker {
		if math.Abs(o.Price-c.price) > eps {
			return fmt.Sprintf("order does not target the best %s, i.e., %g vs %g",
				c.side.Opposite().Label(), o.Price, c.price), true
		}
		return "", false
	}

	best, levelQty := t.Depth.Bid, t.Depth.BidQty
	worse := o.Price < best-eps
	if o.Side == order.Sell {
		best, levelQty = t.Depth.Ask, t.Depth.AskQty
		worse = o.Price > best+eps
	}
	if worse {
		return fmt.Sprintf("order is not the best %s, i.e., %g vs %g", o.Side.Label(), o.Price, best), true
	}
	if o.Filled > eps {
		return fmt.Sprintf("order filled, i.e., %g vs 0", o.Filled), true
	}
	if r.cfg.MinOrderLifetime > 0 && t.Now.Sub(o.CreatedAt) < r.cfg.MinOrderLifetime {
		return "", false
	}
	// 订单价格优于盘口说明深度尚未反映该订单，此时不做唯一性判断
	if math.Abs(o.Price-best) <= eps && levelQty > o.Unfilled()+eps {
		return fmt.Sprintf("order is not the unique %s, i.e., %g vs %g", o.Side.Label(), o.Unfilled(), levelQty), true
	}
	expected := r.rules.RoundSize(Jitter(r.cfg.OrderSize, o.Price) / o.Price)
	if math.Abs(expected-o.Quantity) > 2*r.rules.StepSize+eps {
		return fmt.Sprintf("order size diverged, i.e., %g vs %g", o.Quantity, expected), true
	}
	return "", false
}

// place 校验数量、名义、余额与价差后下单；任一不满足返回 NoOp。
func (r *reconciler) place(c candidate, t Tick) Action {
	qty := r.rules.RoundSize(c.qty)
	if qty <= r.rules.MinQty {
		return noop(fmt.Sprintf("quantity %g not above minimum %g", qty, r.rules.MinQty))
	}
	if notional := c.price * qty; notional <= r.rules.MinNotional {
		return noop(fmt.Sprintf("notional %g not above minimum %g", notional, r.rules.MinNotional))
	}
	switch c.side {
	case order.Sell:
		if qty > t.Base.Available {
			return noop(fmt.Sprintf("insufficient %s, i.e., %g vs %g", r.rules.BaseAsset, t.Base.Available, qty))
		}
	default:
		if qty*c.price > t.Quote.Available {
			return noop(fmt.Sprintf("insufficient %s, i.e., %g vs %g", r.rules.QuoteAsset, t.Quote.Available, qty*c.price))
		}
	}
	if c.floor > 0 && !r.spread.Quotable(t.Depth.Ask, t.Depth.Bid, c.floor) {
		return noop("spread too small to place")
	}
	return Action{
		Kind: KindPlace,
		Request: order.Request{
			Symbol:      r.rules.Symbol,
			Side:        c.side,
			Type:        c.typ,
			TimeInForce: c.tif,
			Price:       c.price,
			Quantity:    qty,
		},
		Reason: c.reason,
	}
}

// sideOrders 返回某侧订单，价格最优在前。
func sideOrders(orders []order.Order, side order.Side) []order.Order {
	res := make([]order.Order, 0, 1)
	for _, o := range orders {
		if o.Side == side {
			res = append(res, o)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if side == order.Buy {
			return res[i].Price > res[j].Price
		}
		return res[i].Price < res[j].Price
	})
	return res
}
