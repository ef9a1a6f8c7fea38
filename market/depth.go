package market

import "time"

// Depth 保存某交易对的最优买卖价与挂单量。
type Depth struct {
	Symbol    string
	Bid       float64
	BidQty    float64
	Ask       float64
	AskQty    float64
	UpdatedAt time.Time
}

// Update 使用增量更新 bid/ask；价格为 0 的一侧保持不变。
func (d *Depth) Update(bid, bidQty, ask, askQty float64, ts time.Time) {
	if bid > 0 {
		d.Bid = bid
		d.BidQty = bidQty
	}
	if ask > 0 {
		d.Ask = ask
		d.AskQty = askQty
	}
	d.UpdatedAt = ts
}

// Mid 返回中间价；若缺失任一侧返回 0。
func (d Depth) Mid() float64 {
	if d.Bid == 0 || d.Ask == 0 {
		return 0
	}
	return (d.Bid + d.Ask) / 2
}

// Valid 两侧都有价格且未交叉。
func (d Depth) Valid() bool {
	return d.Bid > 0 && d.Ask > 0 && d.Bid < d.Ask
}

// Age 距离上次更新的时长。
func (d Depth) Age(now time.Time) time.Duration {
	if d.UpdatedAt.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(d.UpdatedAt)
}
