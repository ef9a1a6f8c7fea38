package strategy

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dual-trader-go/inventory"
	"dual-trader-go/market"
	"dual-trader-go/order"
)

// ErrStaleDepth 深度过旧或交叉，本轮跳过，由调用方退避后重试。
var ErrStaleDepth = errors.New("depth is not up-to-date")

// Tick 一轮决策的只读输入快照。
type Tick struct {
	Depth  market.Depth
	Base   inventory.Balance
	Quote  inventory.Balance
	Orders []order.Order // 本交易对活跃订单，按创建时间排序
	Now    time.Time
}

// Engine 单交易对单账户的逐 tick 决策引擎。
// 非并发安全：只应由一个运行循环调用。
type Engine struct {
	cfg    Config
	rules  order.SymbolRules
	spread SpreadGuard
	rec    *reconciler
	policy policy

	memory QuoteMemory
	state  EngineState
	logger *zap.Logger
}

func New(cfg Config, rules order.SymbolRules, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := rules.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	p, err := newPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:    cfg,
		rules:  rules,
		spread: SpreadGuard{TickSize: rules.TickSize},
		policy: p,
		state:  EngineState{Status: StatusNormal},
		logger: logger.Named("strategy").With(zap.String("policy", string(cfg.Policy)), zap.String("symbol", rules.Symbol)),
	}
	e.rec = &reconciler{rules: rules, spread: e.spread, cfg: &e.cfg}
	e.logger.Info("order size", zap.Float64("order_size", cfg.OrderSize))
	return e, nil
}

// Prepare 开始交易前检查目标金额与当前盘口。
func (e *Engine) Prepare(d market.Depth) error {
	if !d.Valid() {
		return fmt.Errorf("%w: invalid depth bid %g ask %g", ErrInvalidConfig, d.Bid, d.Ask)
	}
	if e.cfg.OrderSize <= e.rules.MinNotional {
		return fmt.Errorf("%w: order size %g must exceed min notional %g",
			ErrInvalidConfig, e.cfg.OrderSize, e.rules.MinNotional)
	}
	if e.cfg.OrderSize <= d.Ask*e.rules.MinQty {
		return fmt.Errorf("%w: order size %g must exceed ask*minQty %g",
			ErrInvalidConfig, e.cfg.OrderSize, d.Ask*e.rules.MinQty)
	}
	return nil
}

// Decide 返回本轮唯一动作。挂单/成交记忆和状态标签只在 Confirm 中按执行结果更新；
// 与执行结果无关的簿记（待吃档位、冷却与空闲到期）在此处更新。
func (e *Engine) Decide(t Tick) (Action, error) {
	d := t.Depth
	if !d.Valid() {
		return noop("invalid depth"), fmt.Errorf("%w: bid %g ask %g", ErrStaleDepth, d.Bid, d.Ask)
	}
	if e.cfg.StaleAfter > 0 {
		if age := d.Age(t.Now); age > e.cfg.StaleAfter {
			return noop("stale depth"), fmt.Errorf("%w: age %s", ErrStaleDepth, age)
		}
	}
	e.checkBalances(t)
	return e.policy.decide(e, t), nil
}

// Confirm 回传动作执行结果。NoOp 也应回传以应用状态标签。
func (e *Engine) Confirm(a Action, err error, now time.Time) {
	if a.Status != "" && (err == nil || !a.Status.requiresSuccess()) {
		if a.Status == StatusIdling && !a.IdleUntil.IsZero() {
			e.state.IdleUntil = a.IdleUntil
		}
		e.setStatus(a.Status)
	}
	if err != nil || a.Kind != KindPlace {
		return
	}
	mem := e.memory.Side(a.Request.Side)
	switch a.intent {
	case intentQuote:
		mem.quote(a.level, now)
		e.logger.Info("quoted",
			zap.String("side", a.Request.Side.Label()),
			zap.Float64("price", a.level.Price),
			zap.Float64("qty", a.level.Qty))
	case intentHit:
		mem.fill(a.level, now)
		e.logger.Info("hit",
			zap.String("side", a.Request.Side.Label()),
			zap.Float64("price", a.level.Price),
			zap.Float64("qty", a.level.Qty))
	}
}

// OnFill 成交确认后清除该侧的挂单记忆。
func (e *Engine) OnFill(f order.Fill) {
	mem := e.memory.Side(f.Side)
	mem.Quoted = nil
	mem.QuotedAt = time.Time{}
	e.logger.Debug("fill",
		zap.String("order_id", f.OrderID),
		zap.String("side", f.Side.Label()),
		zap.Float64("price", f.Price),
		zap.Float64("qty", f.Quantity))
}

// Reconfigure 运行中替换参数；策略变体不可切换，记忆保留。
func (e *Engine) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Policy != e.cfg.Policy {
		return fmt.Errorf("%w: policy cannot change from %s to %s", ErrInvalidConfig, e.cfg.Policy, cfg.Policy)
	}
	e.cfg = cfg
	e.logger.Info("strategy reconfigured", zap.Float64("order_size", cfg.OrderSize))
	return nil
}

func (e *Engine) Config() Config { return e.cfg }
func (e *Engine) Rules() order.SymbolRules { return e.rules }
func (e *Engine) Status() Status { return e.state.Status }
func (e *Engine) State() EngineState { return e.state }
func (e *Engine) Memory() QuoteMemory { return e.memory }

// urgent 库存纠偏：不经过去重与随机数量，无论结果如何本轮结束。
// 价差低于 sweepSteps 时只撤单，不下单。
func (e *Engine) urgent(c candidate, t Tick, sweepSteps int) Action {
	if !e.spread.Quotable(t.Depth.Ask, t.Depth.Bid, sweepSteps) {
		if len(t.Orders) > 0 {
			return cancel(t.Orders[0], "spread too small")
		}
		return noop("spread too small")
	}
	c.qty = e.rules.RoundSize(c.qty)
	a := e.rec.reconcile(c, t)
	if a.Kind == KindPlace {
		a.intent = intentUrgent
	}
	return a
}

// sweepRedundant 撤销过旧订单，以及每侧最优之外的多余订单；每轮最多一个。
func (e *Engine) sweepRedundant(t Tick) (Action, bool) {
	for _, side := range []order.Side{order.Buy, order.Sell} {
		orders := sideOrders(t.Orders, side)
		if e.cfg.MaxOrderAge > 0 {
			for _, o := range orders {
				if t.Now.Sub(o.CreatedAt) > e.cfg.MaxOrderAge {
					return cancel(o, "redundant, too old"), true
				}
			}
		}
		if len(orders) > 1 {
			return cancel(orders[1], "redundant"), true
		}
	}
	return Action{}, false
}

func (e *Engine) setStatus(s Status) {
	if e.state.Status == s {
		return
	}
	e.state.Status = s
	e.logger.Info("status", zap.String("status", string(s)))
}

func (e *Engine) checkBalances(t Tick) {
	for asset, b := range map[string]inventory.Balance{e.rules.BaseAsset: t.Base, e.rules.QuoteAsset: t.Quote} {
		if b.Net < -eps || b.Available < -eps {
			e.logger.Error("negative balance",
				zap.String("asset", asset),
				zap.Float64("net", b.Net),
				zap.Float64("available", b.Available))
		}
	}
}
