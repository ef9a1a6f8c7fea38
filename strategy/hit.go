package strategy

import (
	"math"

	"dual-trader-go/order"
)

// hitPolicy 识别与自身随机数量相符的盘口挂单并 FOK 吃掉。
type hitPolicy struct {
	guard InventoryGuard
}

func newHitPolicy() *hitPolicy {
	return &hitPolicy{guard: InventoryGuard{ExcessAt: 4, DeficientAt: 1, DeficientInclusive: true}}
}

func (p *hitPolicy) decide(e *Engine, t Tick) Action {
	d := t.Depth
	size := e.cfg.OrderSize
	base := e.rules.BaseAsset

	switch p.guard.Classify(t.Base.Net, d.Bid, size) {
	case BandExcess:
		return e.urgent(candidate{
			side: order.Sell, price: d.Bid, qty: size / d.Ask,
			typ: order.Taker, tif: order.GTC, floor: 2, reason: "excessive " + base,
		}, t, 2)
	case BandDeficient:
		return e.urgent(candidate{
			side: order.Buy, price: d.Ask, qty: size / d.Bid,
			typ: order.Taker, tif: order.GTC, floor: 2, reason: "insufficient " + base,
		}, t, 2)
	}

	if !e.spread.Quotable(d.Ask, d.Bid, 2) {
		if len(t.Orders) > 0 {
			return cancel(t.Orders[0], "spread too small")
		}
		return noop("spread too small")
	}

	if t.Base.Available*d.Bid >= e.rules.MinNotional {
		if a, done := p.hitSide(e, t, order.Sell); done {
			return a
		}
	}
	if t.Quote.Available >= e.rules.MinNotional {
		if a, done := p.hitSide(e, t, order.Buy); done {
			return a
		}
	}
	return noop("no matching level")
}

// hitSide 卖出吃 bid，买入吃 ask。第二个返回值为 false 时继续评估另一侧。
func (p *hitPolicy) hitSide(e *Engine, t Tick, side order.Side) (Action, bool) {
	d := t.Depth
	price, levelQty, reason := d.Bid, d.BidQty, "ready to sell "+e.rules.BaseAsset
	if side == order.Buy {
		price, levelQty, reason = d.Ask, d.AskQty, "ready to buy "+e.rules.BaseAsset
	}

	target := e.rules.RoundSize(Jitter(e.cfg.OrderSize, price) / price)
	if math.Abs(levelQty-target) > 2*e.rules.StepSize+eps {
		return Action{}, false
	}
	lvl := Level{Price: price, Qty: e.rules.RoundSize(math.Min(levelQty, target))}

	mem := e.memory.Side(side)
	if mem.Filled != nil && *mem.Filled == lvl {
		if t.Now.Sub(mem.FilledAt) < e.cfg.SameTradeCooldown {
			return noop("just traded " + lvl.String()), true
		}
		mem.Filled = nil
		mem.FilledAt = t.Now
	}
	if mem.Quoted == nil || *mem.Quoted != lvl {
		mem.quote(lvl, t.Now)
		if e.cfg.MinimumQuoteAge > 0 {
			return noop("new level " + lvl.String()), true
		}
	}
	if e.cfg.MinimumQuoteAge > 0 && t.Now.Sub(mem.QuotedAt) < e.cfg.MinimumQuoteAge {
		return noop("level too young " + lvl.String()), true
	}

	a := e.rec.reconcile(candidate{
		side: side, price: price, qty: lvl.Qty,
		typ: order.Taker, tif: order.FOK, floor: 2, reason: reason,
	}, t)
	switch a.Kind {
	case KindNoOp:
		return a, false
	case KindPlace:
		a.intent = intentHit
		a.level = lvl
	}
	return a, true
}
