package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() SymbolRules {
	return SymbolRules{
		Symbol:      "ETHUSDC",
		BaseAsset:   "ETH",
		QuoteAsset:  "USDC",
		TickSize:    0.01,
		StepSize:    0.001,
		MinQty:      0.001,
		MinNotional: 5,
	}
}

func TestRulesValidate(t *testing.T) {
	r := testRules()
	require.NoError(t, r.Validate(100.01, 0.1))
	assert.Error(t, r.Validate(100.015, 0.1), "expected ticksize error")
	assert.Error(t, r.Validate(100.01, 0.0015), "expected stepsize error")
	assert.Error(t, r.Validate(100.01, 0.01), "expected minNotional error")
}

func TestRoundPrice(t *testing.T) {
	r := testRules()
	assert.Equal(t, 100.02, r.RoundPrice(100.011, true))
	assert.Equal(t, 100.01, r.RoundPrice(100.019, false))
	assert.Equal(t, 100.02, r.RoundPrice(100.02, true))
	assert.Equal(t, 100.02, r.RoundPrice(100.02, false))
}

func TestShiftAwayFromSpread(t *testing.T) {
	r := testRules()
	// 1.5 tick 内移后按远离价差方向取整
	assert.Equal(t, 100.02, r.Shift(100.00, 1.5, true))
	assert.Equal(t, 100.03, r.Shift(100.05, 1.5, false))
	assert.Equal(t, 0.3, r.Shift(0.28, 1.5, true))
}

func TestRoundSize(t *testing.T) {
	r := testRules()
	assert.Equal(t, 7.998, r.RoundSize(7.998400319936013))
	assert.Equal(t, 10.0, r.RoundSize(10))
	assert.Equal(t, 0.0, r.RoundSize(-1))
}

func TestFormat(t *testing.T) {
	r := testRules()
	assert.Equal(t, "100.10", r.FormatPrice(100.1))
	assert.Equal(t, "0.500", r.FormatQty(0.5))
}

func TestRulesCheck(t *testing.T) {
	require.NoError(t, testRules().Check())
	bad := testRules()
	bad.TickSize = 0
	assert.Error(t, bad.Check())
	bad = testRules()
	bad.BaseAsset = ""
	assert.Error(t, bad.Check())
}
