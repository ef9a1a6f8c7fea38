package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"dual-trader-go/inventory"
	"dual-trader-go/market"
	"dual-trader-go/order"
)

const eps = 1e-9

var (
	ErrNoMarket            = errors.New("no market data")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrWouldTake           = errors.New("maker order would immediately match")
)

// Exchange 模拟盘：taker 单按当前盘口成交（FOK 不足量则过期），
// maker 单挂在本地，盘口越过挂单价时全部成交。不计手续费。
type Exchange struct {
	mu       sync.Mutex
	rules    order.SymbolRules
	depth    market.Depth
	orders   map[string]*order.Order
	locked   map[string]float64 // 挂单冻结的资产数量
	balances map[string]inventory.Balance
	seq      int64
	now      func() time.Time
	logger   *zap.Logger
}

func NewExchange(rules order.SymbolRules, balances map[string]float64, logger *zap.Logger) *Exchange {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Exchange{
		rules:    rules,
		orders:   make(map[string]*order.Order),
		locked:   make(map[string]float64),
		balances: make(map[string]inventory.Balance),
		now:      time.Now,
		logger:   logger.Named("sim"),
	}
	for asset, v := range balances {
		e.balances[asset] = inventory.Balance{Net: v, Available: v}
	}
	return e
}

// Run 消费行情订阅直到 ctx 结束。
func (e *Exchange) Run(ctx context.Context, depth <-chan market.Depth) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-depth:
			if !ok {
				return
			}
			e.OnDepth(d)
		}
	}
}

// OnDepth 更新盘口并撮合被越过的挂单。
func (e *Exchange) OnDepth(d market.Depth) {
	if d.Symbol != "" && d.Symbol != e.rules.Symbol {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.depth = d
	for _, o := range e.orders {
		if !isActive(o.Status) {
			continue
		}
		crossed := (o.Side == order.Buy && d.Ask <= o.Price) || (o.Side == order.Sell && d.Bid >= o.Price)
		if crossed {
			e.fillLocked(o, o.Quantity-o.Filled, o.Price)
		}
	}
}

func (e *Exchange) PlaceOrder(_ context.Context, req order.Request) (order.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.depth
	if !d.Valid() {
		return order.Order{}, ErrNoMarket
	}
	if req.Symbol != e.rules.Symbol {
		return order.Order{}, fmt.Errorf("unknown symbol %s", req.Symbol)
	}
	asset, need := e.requirement(req.Side, req.Price, req.Quantity)
	if e.balances[asset].Available+eps < need {
		return order.Order{}, fmt.Errorf("%w: %s need %g have %g", ErrInsufficientBalance, asset, need, e.balances[asset].Available)
	}

	touch, touchQty := d.Ask, d.AskQty
	marketable := req.Price >= d.Ask
	if req.Side == order.Sell {
		touch, touchQty = d.Bid, d.BidQty
		marketable = req.Price <= d.Bid
	}
	if req.Type == order.Maker && marketable {
		return order.Order{}, ErrWouldTake
	}

	e.seq++
	o := &order.Order{
		ID:          strconv.FormatInt(e.seq, 10),
		ClientID:    req.ClientID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		TimeInForce: req.TimeInForce,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Status:      order.StatusAck,
		CreatedAt:   e.now(),
	}
	e.orders[o.ID] = o

	switch {
	case req.TimeInForce == order.FOK:
		if marketable && req.Quantity <= touchQty+eps {
			e.fillImmediate(o, req.Quantity, touch)
		} else {
			o.Status = order.StatusExpired
		}
	case marketable:
		e.fillImmediate(o, math.Min(req.Quantity, touchQty), touch)
		if o.Status != order.StatusFilled {
			e.lock(o)
		}
	default:
		e.lock(o)
	}
	e.logger.Debug("order placed",
		zap.String("order_id", o.ID),
		zap.String("side", o.Side.Label()),
		zap.Float64("price", o.Price),
		zap.Float64("qty", o.Quantity),
		zap.String("status", string(o.Status)))
	return *o, nil
}

func (e *Exchange) CancelOrder(_ context.Context, _ string, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[id]
	if !ok || !isActive(o.Status) {
		return fmt.Errorf("%w: %s", order.ErrUnknownOrder, id)
	}
	e.unlock(o, o.Quantity-o.Filled)
	o.Status = order.StatusCanceled
	return nil
}

func (e *Exchange) GetOrder(_ context.Context, _ string, id string) (order.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[id]
	if !ok {
		return order.Order{}, fmt.Errorf("%w: %s", order.ErrUnknownOrder, id)
	}
	return *o, nil
}

func (e *Exchange) OpenOrders(_ context.Context, symbol string) ([]order.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := make([]order.Order, 0)
	for _, o := range e.orders {
		if o.Symbol == symbol && isActive(o.Status) {
			res = append(res, *o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return seqOf(res[i].ID) < seqOf(res[j].ID) })
	return res, nil
}

// Balances 实现 inventory.Fetcher。
func (e *Exchange) Balances(context.Context) (map[string]inventory.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := make(map[string]inventory.Balance, len(e.balances))
	for k, v := range e.balances {
		res[k] = v
	}
	return res, nil
}

// requirement 下单所需资产与数量：买单冻结 quote，卖单冻结 base。
func (e *Exchange) requirement(side order.Side, price, qty float64) (string, float64) {
	if side == order.Buy {
		return e.rules.QuoteAsset, price * qty
	}
	return e.rules.BaseAsset, qty
}

func (e *Exchange) lock(o *order.Order) {
	asset, amount := e.requirement(o.Side, o.Price, o.Quantity-o.Filled)
	b := e.balances[asset]
	b.Available -= amount
	e.balances[asset] = b
	e.locked[o.ID] += amount
}

func (e *Exchange) unlock(o *order.Order, qty float64) {
	asset, amount := e.requirement(o.Side, o.Price, qty)
	amount = math.Min(amount, e.locked[o.ID])
	b := e.balances[asset]
	b.Available += amount
	e.balances[asset] = b
	e.locked[o.ID] -= amount
	if e.locked[o.ID] <= eps {
		delete(e.locked, o.ID)
	}
}

// fillImmediate 未冻结的即时成交。
func (e *Exchange) fillImmediate(o *order.Order, qty, price float64) {
	if qty <= eps {
		return
	}
	e.settle(o.Side, qty, price)
	e.advance(o, qty)
}

// fillLocked 挂单成交：先释放冻结再结算。
func (e *Exchange) fillLocked(o *order.Order, qty, price float64) {
	if qty <= eps {
		return
	}
	e.unlock(o, qty)
	e.settle(o.Side, qty, price)
	e.advance(o, qty)
	e.logger.Info("maker filled",
		zap.String("order_id", o.ID),
		zap.String("side", o.Side.Label()),
		zap.Float64("price", price),
		zap.Float64("qty", qty))
}

func (e *Exchange) settle(side order.Side, qty, price float64) {
	base, quote := e.balances[e.rules.BaseAsset], e.balances[e.rules.QuoteAsset]
	notional := qty * price
	if side == order.Buy {
		base.Net += qty
		base.Available += qty
		quote.Net -= notional
		quote.Available -= notional
	} else {
		base.Net -= qty
		base.Available -= qty
		quote.Net += notional
		quote.Available += notional
	}
	e.balances[e.rules.BaseAsset], e.balances[e.rules.QuoteAsset] = base, quote
}

func (e *Exchange) advance(o *order.Order, qty float64) {
	o.Filled += qty
	if o.Filled >= o.Quantity-eps {
		o.Filled = o.Quantity
		o.Status = order.StatusFilled
		return
	}
	o.Status = order.StatusPartial
}

func seqOf(id string) int64 {
	v, _ := strconv.ParseInt(id, 10, 64)
	return v
}

func isActive(s order.Status) bool {
	return s == order.StatusNew || s == order.StatusAck || s == order.StatusPartial
}
