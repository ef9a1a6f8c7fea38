package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dual-trader-go/inventory"
	"dual-trader-go/market"
	"dual-trader-go/order"
)

var t0 = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func testRules() order.SymbolRules {
	return order.SymbolRules{
		Symbol:      "ETHUSDC",
		BaseAsset:   "ETH",
		QuoteAsset:  "USDC",
		TickSize:    0.01,
		StepSize:    0.001,
		MinQty:      0.001,
		MinNotional: 5,
	}
}

func newTestEngine(t *testing.T, policy Policy, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig(policy, 1000)
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(cfg, testRules(), nil)
	require.NoError(t, err)
	return e
}

func depthAt(bid, bidQty, ask, askQty float64, now time.Time) market.Depth {
	return market.Depth{Symbol: "ETHUSDC", Bid: bid, BidQty: bidQty, Ask: ask, AskQty: askQty, UpdatedAt: now}
}

func bal(net, avail float64) inventory.Balance {
	return inventory.Balance{Net: net, Available: avail}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		rules  order.SymbolRules
		errMsg string
	}{
		{"未知策略", Config{Policy: "grid", OrderSize: 1000}, testRules(), "unknown policy"},
		{"金额为零", Config{Policy: PolicyHit}, testRules(), "order size"},
		{"负冷却", Config{Policy: PolicyHit, OrderSize: 1000, SameTradeCooldown: -1}, testRules(), "same_trade_cooldown"},
		{"缺少步长", Config{Policy: PolicyQuote, OrderSize: 1000}, order.SymbolRules{Symbol: "X", BaseAsset: "A", QuoteAsset: "B", TickSize: 0.01}, "stepSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.rules, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPrepare(t *testing.T) {
	e := newTestEngine(t, PolicyHit, nil)
	assert.NoError(t, e.Prepare(depthAt(100, 1, 100.02, 1, t0)))
	assert.ErrorIs(t, e.Prepare(depthAt(100.02, 1, 100, 1, t0)), ErrInvalidConfig)

	rules := testRules()
	rules.MinNotional = 1000
	small, err := New(DefaultConfig(PolicyHit, 1000), rules, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, small.Prepare(depthAt(100, 1, 100.02, 1, t0)), ErrInvalidConfig)

	rules = testRules()
	rules.MinQty = 10
	coarse, err := New(DefaultConfig(PolicyHit, 1000), rules, nil)
	require.NoError(t, err)
	err = coarse.Prepare(depthAt(100, 1, 100.02, 1, t0))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "minQty")
}

func TestDecideStaleDepth(t *testing.T) {
	e := newTestEngine(t, PolicyQuote, nil)

	_, err := e.Decide(Tick{Depth: depthAt(100, 1, 100.1, 1, t0.Add(-2*time.Second)), Now: t0})
	assert.ErrorIs(t, err, ErrStaleDepth)

	_, err = e.Decide(Tick{Depth: depthAt(100.1, 1, 100, 1, t0), Now: t0})
	assert.ErrorIs(t, err, ErrStaleDepth, "crossed book is treated like stale data")

	_, err = e.Decide(Tick{Depth: market.Depth{}, Now: t0})
	assert.ErrorIs(t, err, ErrStaleDepth)

	noAge := newTestEngine(t, PolicyQuote, func(c *Config) { c.StaleAfter = 0 })
	_, err = noAge.Decide(Tick{Depth: depthAt(100, 1, 100.1, 1, t0.Add(-time.Hour)), Now: t0})
	assert.NoError(t, err)
}

func TestReconfigure(t *testing.T) {
	e := newTestEngine(t, PolicyQuote, nil)

	cfg := e.Config()
	cfg.OrderSize = 2000
	cfg.AlternationDelay = 200 * time.Millisecond
	require.NoError(t, e.Reconfigure(cfg))
	assert.Equal(t, 2000.0, e.Config().OrderSize)

	cfg.Policy = PolicyHit
	assert.ErrorIs(t, e.Reconfigure(cfg), ErrInvalidConfig)

	cfg.Policy = PolicyQuote
	cfg.OrderSize = -1
	assert.ErrorIs(t, e.Reconfigure(cfg), ErrInvalidConfig)
	assert.Equal(t, 2000.0, e.Config().OrderSize)
}

func TestOnFillClearsQuoted(t *testing.T) {
	e := newTestEngine(t, PolicyQuote, nil)
	tick := Tick{Depth: depthAt(100, 5, 100.1, 5, t0), Base: bal(0, 0), Quote: bal(2000, 2000), Now: t0}

	a, err := e.Decide(tick)
	require.NoError(t, err)
	require.Equal(t, KindPlace, a.Kind)
	e.Confirm(a, nil, t0)
	require.NotNil(t, e.Memory().Bid.Quoted)
	assert.Equal(t, a.Request.Price, e.Memory().Bid.Quoted.Price)

	e.OnFill(order.Fill{OrderID: "1", Side: order.Buy, Price: a.Request.Price, Quantity: a.Request.Quantity})
	assert.Nil(t, e.Memory().Bid.Quoted)
}

func TestConfirmFailureKeepsMemory(t *testing.T) {
	e := newTestEngine(t, PolicyQuote, nil)
	tick := Tick{Depth: depthAt(100, 5, 100.1, 5, t0), Base: bal(0, 0), Quote: bal(2000, 2000), Now: t0}

	a, err := e.Decide(tick)
	require.NoError(t, err)
	e.Confirm(a, errors.New("rejected"), t0)
	assert.Nil(t, e.Memory().Bid.Quoted)
	assert.Equal(t, StatusNormal, e.Status(), "buying applies only after a successful place")
}

func TestActionSide(t *testing.T) {
	assert.Equal(t, order.Sell, cancel(order.Order{Side: order.Sell}, "x").Side())
	assert.Equal(t, order.Buy, Action{Kind: KindPlace, Request: order.Request{Side: order.Buy}}.Side())
	assert.Equal(t, order.Side(""), noop("x").Side())
	assert.Equal(t, "place", KindPlace.String())
}
