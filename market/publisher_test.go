package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublisher(t *testing.T) {
	p := NewPublisher()
	ch := p.SubscribeDepth()
	p.PublishDepth(Depth{Bid: 1, Ask: 2})
	// 缓冲已满时不阻塞
	p.PublishDepth(Depth{Bid: 3, Ask: 4})

	got := <-ch
	assert.Equal(t, 1.0, got.Bid)
	assert.Equal(t, 2.0, got.Ask)
}
