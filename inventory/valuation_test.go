package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValuation(t *testing.T) {
	var tr Tracker
	tr.Update(1, 100)
	net, pnl := tr.Valuation(110)
	assert.Equal(t, 1.0, net)
	assert.InDelta(t, 10, pnl, 1e-9)
}

func TestValue(t *testing.T) {
	assert.InDelta(t, 250.0, Value(Balance{Net: 2.5, Available: 1}, 100), 1e-9)
}
