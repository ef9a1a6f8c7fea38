package strategy

import (
	"fmt"
	"time"

	"dual-trader-go/order"
)

// Level 一个 (价格, 数量) 组合。
type Level struct {
	Price float64
	Qty   float64
}

func (l Level) String() string {
	return fmt.Sprintf("%g@%g", l.Qty, l.Price)
}

// SideMemory 单边的报价/成交记忆。
type SideMemory struct {
	Quoted   *Level
	QuotedAt time.Time
	Filled   *Level
	FilledAt time.Time
}

func (m *SideMemory) quote(l Level, now time.Time) {
	m.Quoted = &l
	m.QuotedAt = now
}

func (m *SideMemory) fill(l Level, now time.Time) {
	m.Quoted = nil
	m.QuotedAt = time.Time{}
	m.Filled = &l
	m.FilledAt = now
}

// QuoteMemory 买卖两侧记忆，进程内有效，重启清空。
type QuoteMemory struct {
	Bid SideMemory
	Ask SideMemory
}

// Side 返回某方向的记忆。
func (q *QuoteMemory) Side(s order.Side) *SideMemory {
	if s == order.Buy {
		return &q.Bid
	}
	return &q.Ask
}

// Status 引擎状态标签。
type Status string

const (
	StatusNormal    Status = "normal"
	StatusClearance Status = "clearance"
	StatusStopping  Status = "stopping"
	StatusStopped   Status = "stopped"
	StatusIdling    Status = "idling"
	StatusBuying    Status = "buying"
	StatusSelling   Status = "selling"
)

// Statuses 全部状态，供指标初始化。
var Statuses = []Status{
	StatusNormal, StatusClearance, StatusStopping, StatusStopped,
	StatusIdling, StatusBuying, StatusSelling,
}

// requiresSuccess buying/selling 只在撤单或下单成功后生效。
func (s Status) requiresSuccess() bool {
	return s == StatusBuying || s == StatusSelling
}

// EngineState 状态标签与空闲截止时间。
type EngineState struct {
	Status    Status
	IdleUntil time.Time
}
