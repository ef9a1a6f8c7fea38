package order

import (
	"sort"
	"sync"
	"time"
)

const fillBuffer = 256

// Book 记录本账户订单和状态，支持查询。
// 终态订单保留到 RemoveExpired 被调用为止，便于状态展示。
type Book struct {
	mu     sync.RWMutex
	orders map[string]Order
	sm     *StateMachine
	fills  chan Fill
	now    func() time.Time
}

func NewBook() *Book {
	return &Book{
		orders: make(map[string]Order),
		sm:     NewStateMachine(),
		fills:  make(chan Fill, fillBuffer),
		now:    time.Now,
	}
}

// Upsert 写入订单最新状态；成交量增加时发出 Fill 通知。
// 非法状态迁移返回错误且不修改已有记录。
func (b *Book) Upsert(o Order) error {
	return b.upsert(o, true)
}

// Adopt 登记交易所上已存在的订单；此前的成交已体现在交易所余额中，不再通知。
// 订单已在 Book 中时等同于 Upsert。
func (b *Book) Adopt(o Order) error {
	b.mu.RLock()
	_, known := b.orders[o.ID]
	b.mu.RUnlock()
	return b.upsert(o, known)
}

func (b *Book) upsert(o Order, notify bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, ok := b.orders[o.ID]
	if ok {
		if err := b.sm.ValidateTransition(prev.Status, o.Status); err != nil {
			return err
		}
		if o.CreatedAt.IsZero() {
			o.CreatedAt = prev.CreatedAt
		}
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = b.now()
	}
	if delta := o.Filled - prev.Filled; notify && delta > 0 {
		b.emit(Fill{OrderID: o.ID, Side: o.Side, Price: o.Price, Quantity: delta, Ts: b.now()})
	}
	b.orders[o.ID] = o
	return nil
}

// MarkFinal 将订单标记为终态（撤单成功、交易所已不存在等）。
func (b *Book) MarkFinal(id string, st Status) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return ErrUnknownOrder
	}
	if err := b.sm.ValidateTransition(o.Status, st); err != nil {
		return err
	}
	o.Status = st
	b.orders[id] = o
	return nil
}

func (b *Book) Get(id string) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

// List 返回全部订单（拷贝）。
func (b *Book) List() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		res = append(res, o)
	}
	return res
}

// Active 返回某交易对仍可能成交的订单，按创建时间排序（最早在前）。
func (b *Book) Active(symbol string) []Order {
	b.mu.RLock()
	res := make([]Order, 0, 2)
	for _, o := range b.orders {
		if o.Symbol == symbol && b.sm.IsActiveState(o.Status) {
			res = append(res, o)
		}
	}
	b.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res
}

// RemoveExpired 清理终态订单，返回清理数量。
func (b *Book) RemoveExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, o := range b.orders {
		if b.sm.IsFinalState(o.Status) {
			delete(b.orders, id)
			n++
		}
	}
	return n
}

// Fills 成交通知通道；消费方应在每个决策周期开始时非阻塞地取完。
func (b *Book) Fills() <-chan Fill {
	return b.fills
}

func (b *Book) emit(f Fill) {
	select {
	case b.fills <- f:
	default:
	}
}
