package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dual-trader-go/order"
)

func TestTrackerUpdate(t *testing.T) {
	var tr Tracker
	tr.Update(1, 100)
	assert.Equal(t, 1.0, tr.NetExposure())
	assert.Equal(t, 100.0, tr.AvgCost())

	tr.Update(1, 110) // cost should move toward 105
	assert.InDelta(t, 105, tr.AvgCost(), 1e-9)
}

func TestTrackerOnFill(t *testing.T) {
	var tr Tracker
	tr.OnFill(order.Fill{Side: order.Buy, Price: 100, Quantity: 2})
	tr.OnFill(order.Fill{Side: order.Sell, Price: 101, Quantity: 2})

	assert.Equal(t, 0.0, tr.NetExposure())
	assert.Equal(t, 0.0, tr.AvgCost())
	assert.InDelta(t, 402, tr.Volume(), 1e-9)
}
