package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceDepthAndStaleness(t *testing.T) {
	svc := NewService(nil)
	_, ok := svc.Depth("ETHUSDC")
	assert.False(t, ok)
	assert.Equal(t, time.Hour*24*365, svc.Staleness("ETHUSDC"))

	svc.OnDepth("ETHUSDC", 100, 2, 101, 3, time.Now().Add(-time.Millisecond))
	d, ok := svc.Depth("ETHUSDC")
	require.True(t, ok)
	assert.Equal(t, "ETHUSDC", d.Symbol)
	assert.Equal(t, 2.0, d.BidQty)
	assert.Equal(t, 100.5, svc.Mid("ETHUSDC"))
	assert.Greater(t, svc.Staleness("ETHUSDC"), time.Duration(0))
}

func TestServicePublishesDepth(t *testing.T) {
	pub := NewPublisher()
	ch := pub.SubscribeDepth()
	svc := NewService(pub)
	svc.OnDepth("ETHUSDC", 100, 1, 100.02, 1, time.Time{})

	select {
	case d := <-ch:
		assert.Equal(t, 100.02, d.Ask)
		assert.False(t, d.UpdatedAt.IsZero())
	default:
		t.Fatal("expected depth published")
	}
	assert.Same(t, pub, svc.Publisher())
}
