package strategy

import (
	"time"

	"dual-trader-go/order"
)

// Kind 动作类型。
type Kind int

const (
	KindNoOp Kind = iota
	KindCancel
	KindPlace
)

func (k Kind) String() string {
	switch k {
	case KindCancel:
		return "cancel"
	case KindPlace:
		return "place"
	default:
		return "noop"
	}
}

type intent int

const (
	intentNone   intent = iota
	intentQuote         // 挂单成功后记录 Quoted
	intentHit           // 机会性吃单成功后记录 Filled
	intentUrgent        // 库存纠偏，不影响记忆
)

// Action 每个 tick 最多一个动作。
type Action struct {
	Kind    Kind
	Order   order.Order   // KindCancel 的目标
	Request order.Request // KindPlace 的下单参数
	Reason  string

	// Status 非空时在 Confirm 中应用；buying/selling 仅在执行成功时应用。
	Status    Status
	IdleUntil time.Time

	intent intent
	level  Level
}

// Side 返回动作涉及的方向；NoOp 为空。
func (a Action) Side() order.Side {
	switch a.Kind {
	case KindCancel:
		return a.Order.Side
	case KindPlace:
		return a.Request.Side
	default:
		return ""
	}
}

func noop(reason string) Action {
	return Action{Kind: KindNoOp, Reason: reason}
}

func cancel(o order.Order, reason string) Action {
	return Action{Kind: KindCancel, Order: o, Reason: reason}
}

func (a Action) withStatus(s Status) Action {
	a.Status = s
	return a
}
