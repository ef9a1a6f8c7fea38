package strategy

import (
	"time"

	"dual-trader-go/order"
)

// quotePolicy 在价差内 1.5 tick 挂 maker 单，价格或数量失效即撤单重挂。
type quotePolicy struct {
	guard InventoryGuard
}

func newQuotePolicy() *quotePolicy {
	return &quotePolicy{guard: InventoryGuard{ExcessAt: 2, DeficientAt: 1}}
}

func (p *quotePolicy) decide(e *Engine, t Tick) Action {
	if a, ok := e.sweepRedundant(t); ok {
		return a
	}

	d := t.Depth
	size := e.cfg.OrderSize
	base := e.rules.BaseAsset
	band := p.guard.Classify(t.Base.Net, d.Bid, size)

	if band == BandExcess {
		a := e.urgent(candidate{
			side: order.Sell, price: d.Bid, qty: size / d.Ask,
			typ: order.Taker, tif: order.GTC, floor: 5, reason: "excessive " + base,
		}, t, 3)
		return a.withStatus(StatusClearance)
	}

	if !e.spread.Quotable(d.Ask, d.Bid, 3) {
		if len(t.Orders) > 0 {
			return cancel(t.Orders[0], "spread too small").withStatus(StatusStopping)
		}
		return noop("spread too small").withStatus(StatusStopped)
	}

	if e.state.Status == StatusIdling {
		if t.Now.Before(e.state.IdleUntil) {
			return noop("idling")
		}
		e.state.IdleUntil = time.Time{}
	}

	// 卖出侧额外要求 5 tick 价差；买入侧只受上面 3 tick 的限制
	side, reason, status, floor := order.Sell, "need to sell "+base, StatusSelling, 5
	price := e.rules.Shift(d.Ask, 1.5, false)
	if band == BandDeficient {
		side, reason, status, floor = order.Buy, "need to buy "+base, StatusBuying, 0
		price = e.rules.Shift(d.Bid, 1.5, true)
	}

	if e.cfg.AlternationDelay > 0 && flipping(e.state.Status, side) {
		a := noop("switching to " + side.Label()).withStatus(StatusIdling)
		a.IdleUntil = t.Now.Add(e.cfg.AlternationDelay)
		return a
	}

	a := e.rec.reconcile(candidate{
		side: side, price: price, qty: Jitter(size, price) / price,
		typ: order.Maker, tif: order.GTC, floor: floor, reason: reason,
	}, t)
	if a.Kind == KindNoOp {
		return a
	}
	// 撤单或下单都表示已进入该方向
	a.Status = status
	if a.Kind == KindPlace {
		a.intent = intentQuote
		a.level = Level{Price: a.Request.Price, Qty: a.Request.Quantity}
	}
	return a
}

func flipping(current Status, side order.Side) bool {
	return side == order.Sell && current == StatusBuying ||
		side == order.Buy && current == StatusSelling
}
