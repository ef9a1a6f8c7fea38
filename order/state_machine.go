package order

import "fmt"

// StateMachine 校验交易所回报带来的状态变化。
// 终态（FILLED/CANCELED/REJECTED/EXPIRED）不再变化；PARTIAL 可重复出现。
type StateMachine struct {
	next map[Status][]Status
}

func NewStateMachine() *StateMachine {
	open := []Status{StatusPartial, StatusFilled, StatusCanceled, StatusExpired}
	return &StateMachine{next: map[Status][]Status{
		StatusNew:     append([]Status{StatusAck, StatusRejected}, open...),
		StatusAck:     open,
		StatusPartial: open,
	}}
}

// ValidateTransition 相同状态视为幂等更新。
func (sm *StateMachine) ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	for _, s := range sm.next[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("order status %s cannot move to %s", from, to)
}

func (sm *StateMachine) IsFinalState(s Status) bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// IsActiveState 仍在盘口、可能继续成交。
func (sm *StateMachine) IsActiveState(s Status) bool {
	return s == StatusNew || s == StatusAck || s == StatusPartial
}
