package status

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dual-trader-go/market"
	"dual-trader-go/order"
)

func TestPulseRenderOnlyOnChange(t *testing.T) {
	rules := order.SymbolRules{Symbol: "ETHUSDC", TickSize: 0.01, StepSize: 0.001}
	p := NewPulse(rules)
	now := time.Now()
	d := market.Depth{Bid: 100.02, BidQty: 7.5, Ask: 100.10, AskQty: 3}
	orders := []order.Order{
		{ID: "42", ClientID: "dtabc", Side: order.Buy, Price: 100.02, Quantity: 7.5, Status: order.StatusAck, CreatedAt: now.Add(-time.Second)},
	}

	out, ok := p.Render(d, orders, now)
	assert.True(t, ok)
	assert.Contains(t, out, "ask (best)")
	assert.Contains(t, out, "bid (best)")
	assert.Contains(t, out, "dtabc")
	assert.Contains(t, out, "100.02")
	assert.Contains(t, out, "7.500")
	// 卖价在上
	assert.Less(t, strings.Index(out, "ask (best)"), strings.Index(out, "dtabc"))

	_, ok = p.Render(d, orders, now.Add(time.Millisecond))
	assert.False(t, ok, "unchanged order set is not rendered again")

	orders[0].Filled = 2.5
	out, ok = p.Render(d, orders, now)
	assert.True(t, ok)
	assert.Contains(t, out, "5.000")

	_, ok = p.Render(d, nil, now)
	assert.True(t, ok)
	_, ok = p.Render(d, nil, now)
	assert.False(t, ok)
}

func TestPulseDistance(t *testing.T) {
	p := NewPulse(order.SymbolRules{TickSize: 0.01})
	assert.Equal(t, "+1.5 ticks", p.distance(0.015))
	assert.Equal(t, "-2.0 ticks", p.distance(-0.02))
}
