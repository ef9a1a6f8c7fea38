package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"dual-trader-go/inventory"
	"dual-trader-go/market"
	"dual-trader-go/metrics"
	"dual-trader-go/order"
	"dual-trader-go/status"
	"dual-trader-go/strategy"
)

// DepthSource 最新深度快照。
type DepthSource interface {
	Depth(symbol string) (market.Depth, bool)
}

// BalanceSource 账户余额快照；成交在决策前即时记入，周期同步以交易所为准覆盖。
type BalanceSource interface {
	Balance(asset string) inventory.Balance
	ApplyFill(rules order.SymbolRules, side order.Side, price, qty float64)
}

// OrderStore 本账户活跃订单与成交通知。
type OrderStore interface {
	Active(symbol string) []order.Order
	RemoveExpired() int
	Fills() <-chan order.Fill
}

// OrderExecutor 同步执行撤单/下单并返回结果。
type OrderExecutor interface {
	Cancel(ctx context.Context, o order.Order, reason string) error
	Place(ctx context.Context, req order.Request, reason string) (order.Order, error)
}

var errNoDepth = fmt.Errorf("%w: no depth yet", strategy.ErrStaleDepth)

// State 运行状态
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config 运行循环配置
type Config struct {
	Symbol       string
	Yield        time.Duration // 每轮结束后让出，给行情/订单回报处理时间
	StaleBackoff time.Duration // 深度过旧时的退避
	StopTimeout  time.Duration
}

// Components 运行循环依赖组件
type Components struct {
	Strategy *strategy.Engine
	Depth    DepthSource
	Balances BalanceSource
	Orders   OrderStore
	Executor OrderExecutor
	Tracker  *inventory.Tracker
	Pulse    *status.Pulse
	Logger   *zap.Logger
}

// Runner 单任务协作式运行循环：每轮最多执行一个动作。
type Runner struct {
	config   Config
	strategy *strategy.Engine
	depth    DepthSource
	balances BalanceSource
	orders   OrderStore
	executor OrderExecutor
	tracker  *inventory.Tracker
	pulse    *status.Pulse
	logger   *zap.Logger
	now      func() time.Time

	reconfig chan strategy.Config

	state    State
	mu       sync.RWMutex
	stopChan chan struct{}
	doneChan chan struct{}

	stats Statistics
}

// Statistics 运行统计
type Statistics struct {
	StartTime    time.Time
	TotalTicks   int64
	SkippedTicks int64
	TotalActions int64
	TotalErrors  int64
	TotalFills   int64
	LastTickTime time.Time

	// 本次运行按成交累计，未设置 Tracker 时为 0
	NetExposure   float64
	AvgCost       float64
	TradedVolume  float64
	UnrealizedPnL float64

	mu sync.RWMutex
}

func New(cfg Config, c Components) (*Runner, error) {
	if err := validate(cfg, c); err != nil {
		return nil, fmt.Errorf("invalid runner: %w", err)
	}
	if cfg.Yield <= 0 {
		cfg.Yield = time.Millisecond
	}
	if cfg.StaleBackoff <= 0 {
		cfg.StaleBackoff = 9 * time.Millisecond
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		config:   cfg,
		strategy: c.Strategy,
		depth:    c.Depth,
		balances: c.Balances,
		orders:   c.Orders,
		executor: c.Executor,
		tracker:  c.Tracker,
		pulse:    c.Pulse,
		logger:   logger.Named("runner").With(zap.String("symbol", cfg.Symbol)),
		now:      time.Now,
		reconfig: make(chan strategy.Config, 1),
		state:    StateIdle,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

func validate(cfg Config, c Components) error {
	switch {
	case cfg.Symbol == "":
		return errors.New("symbol is required")
	case c.Strategy == nil:
		return errors.New("strategy is required")
	case c.Depth == nil:
		return errors.New("depth source is required")
	case c.Balances == nil:
		return errors.New("balance source is required")
	case c.Orders == nil:
		return errors.New("order store is required")
	case c.Executor == nil:
		return errors.New("order executor is required")
	}
	return nil
}

// Start 检查启动前置条件后启动主循环。
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return fmt.Errorf("runner already started (state: %s)", r.state)
	}
	d, ok := r.depth.Depth(r.config.Symbol)
	if !ok {
		return fmt.Errorf("no depth for %s", r.config.Symbol)
	}
	if err := r.strategy.Prepare(d); err != nil {
		return err
	}
	r.state = StateRunning
	r.stats.mu.Lock()
	r.stats.StartTime = r.now()
	r.stats.mu.Unlock()

	r.logger.Info("runner starting",
		zap.Duration("yield", r.config.Yield),
		zap.Duration("stale_backoff", r.config.StaleBackoff))
	r.postTrade(d)

	go r.run(ctx)
	return nil
}

// Stop 停止主循环并撤销所有活跃订单。
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateRunning && r.state != StatePaused {
		r.mu.Unlock()
		return fmt.Errorf("runner not running (state: %s)", r.state)
	}
	r.state = StateStopped
	r.mu.Unlock()

	r.logger.Info("runner stopping...")
	close(r.stopChan)
	select {
	case <-r.doneChan:
	case <-time.After(r.config.StopTimeout):
		r.logger.Warn("timeout waiting for runner to stop")
	}

	if err := r.cancelAll(ctx); err != nil {
		r.logger.Error("failed to cancel all orders", zap.Error(err))
		return err
	}
	r.logger.Info("runner stopped")
	return nil
}

// Pause 暂停决策，已有订单保持不动。
func (r *Runner) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRunning {
		return fmt.Errorf("runner not running (state: %s)", r.state)
	}
	r.state = StatePaused
	r.logger.Info("runner paused")
	return nil
}

// Resume 恢复决策
func (r *Runner) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePaused {
		return fmt.Errorf("runner not paused (state: %s)", r.state)
	}
	r.state = StateRunning
	r.logger.Info("runner resumed")
	return nil
}

// Reconfigure 提交新参数，在下一轮开始时生效；未生效的旧参数被覆盖。
func (r *Runner) Reconfigure(cfg strategy.Config) {
	for {
		select {
		case r.reconfig <- cfg:
			return
		default:
		}
		select {
		case <-r.reconfig:
		default:
		}
	}
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.doneChan)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("context done, stopping runner")
			return
		case <-r.stopChan:
			return
		default:
		}

		wait := r.config.Yield
		if r.GetState() == StateRunning {
			if _, err := r.Step(ctx); errors.Is(err, strategy.ErrStaleDepth) {
				wait = r.config.StaleBackoff
			}
		}
		if !r.sleep(ctx, wait) {
			return
		}
	}
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-r.stopChan:
		return false
	case <-t.C:
		return true
	}
}

// Step 执行一轮决策并返回动作；深度不可用时返回包装的 strategy.ErrStaleDepth，
// 执行失败时返回执行错误。
func (r *Runner) Step(ctx context.Context) (strategy.Action, error) {
	r.applyReconfig()
	r.drainFills()

	now := r.now()
	r.stats.mu.Lock()
	r.stats.TotalTicks++
	r.stats.LastTickTime = now
	r.stats.mu.Unlock()

	d, ok := r.depth.Depth(r.config.Symbol)
	if !ok {
		r.skip("no_depth", errNoDepth)
		return strategy.Action{}, errNoDepth
	}
	rules := r.strategy.Rules()
	tick := strategy.Tick{
		Depth:  d,
		Base:   r.balances.Balance(rules.BaseAsset),
		Quote:  r.balances.Balance(rules.QuoteAsset),
		Orders: r.orders.Active(r.config.Symbol),
		Now:    now,
	}

	a, err := r.strategy.Decide(tick)
	if err != nil {
		r.skip("stale_depth", err)
		return a, err
	}
	metrics.RecordDecision(string(r.strategy.Config().Policy), a.Kind.String(), sideLabel(a.Side()))

	execErr := r.execute(ctx, a)
	r.strategy.Confirm(a, execErr, now)

	metrics.SetStatus(string(r.strategy.Status()), statusLabels)
	metrics.InventoryValue.Set(inventory.Value(tick.Base, d.Bid))

	if a.Kind == strategy.KindNoOp || execErr != nil {
		r.postTrade(d)
	}
	return a, execErr
}

func (r *Runner) execute(ctx context.Context, a strategy.Action) error {
	var err error
	switch a.Kind {
	case strategy.KindNoOp:
		r.logger.Debug("noop", zap.String("reason", a.Reason))
		return nil
	case strategy.KindCancel:
		err = r.executor.Cancel(ctx, a.Order, a.Reason)
	case strategy.KindPlace:
		_, err = r.executor.Place(ctx, a.Request, a.Reason)
	}

	r.stats.mu.Lock()
	r.stats.TotalActions++
	if err != nil {
		r.stats.TotalErrors++
	}
	r.stats.mu.Unlock()

	if err != nil {
		metrics.ExecutionFailures.WithLabelValues(a.Kind.String()).Inc()
		r.logger.Warn("action failed",
			zap.String("kind", a.Kind.String()),
			zap.String("side", sideLabel(a.Side())),
			zap.String("reason", a.Reason),
			zap.Error(err))
	}
	return err
}

func (r *Runner) applyReconfig() {
	select {
	case cfg := <-r.reconfig:
		if err := r.strategy.Reconfigure(cfg); err != nil {
			r.logger.Error("reconfigure rejected", zap.Error(err))
		}
	default:
	}
}

func (r *Runner) drainFills() {
	for {
		select {
		case f := <-r.orders.Fills():
			r.balances.ApplyFill(r.strategy.Rules(), f.Side, f.Price, f.Quantity)
			r.strategy.OnFill(f)
			if r.tracker != nil {
				r.tracker.OnFill(f)
			}
			metrics.RecordFill(f.Side.Label(), f.Price, f.Quantity)
			r.stats.mu.Lock()
			r.stats.TotalFills++
			r.stats.mu.Unlock()
		default:
			return
		}
	}
}

// postTrade 清理终态订单并在订单集合变化时输出报价概况。
func (r *Runner) postTrade(d market.Depth) {
	r.orders.RemoveExpired()
	if r.pulse == nil {
		return
	}
	if table, changed := r.pulse.Render(d, r.orders.Active(r.config.Symbol), r.now()); changed {
		r.logger.Info("[quote.pulse] " + r.config.Symbol + "\n" + table)
	}
}

func (r *Runner) skip(reason string, err error) {
	metrics.TicksSkipped.WithLabelValues(reason).Inc()
	r.stats.mu.Lock()
	r.stats.SkippedTicks++
	r.stats.mu.Unlock()
	r.logger.Debug("tick skipped", zap.String("reason", reason), zap.Error(err))
}

func (r *Runner) cancelAll(ctx context.Context) error {
	var failed int
	for _, o := range r.orders.Active(r.config.Symbol) {
		if err := r.executor.Cancel(ctx, o, "shutdown"); err != nil {
			r.logger.Error("cancel on shutdown failed", zap.String("order_id", o.ID), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to cancel %d orders", failed)
	}
	return nil
}

// GetState 获取运行状态
func (r *Runner) GetState() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// GetStatistics 获取统计信息
func (r *Runner) GetStatistics() Statistics {
	r.stats.mu.RLock()
	res := Statistics{
		StartTime:    r.stats.StartTime,
		TotalTicks:   r.stats.TotalTicks,
		SkippedTicks: r.stats.SkippedTicks,
		TotalActions: r.stats.TotalActions,
		TotalErrors:  r.stats.TotalErrors,
		TotalFills:   r.stats.TotalFills,
		LastTickTime: r.stats.LastTickTime,
	}
	r.stats.mu.RUnlock()

	if r.tracker != nil {
		res.AvgCost = r.tracker.AvgCost()
		res.TradedVolume = r.tracker.Volume()
		res.NetExposure = r.tracker.NetExposure()
		if d, ok := r.depth.Depth(r.config.Symbol); ok && d.Valid() {
			res.NetExposure, res.UnrealizedPnL = r.tracker.Valuation(d.Mid())
		}
	}
	return res
}

var statusLabels = func() []string {
	res := make([]string, 0, len(strategy.Statuses))
	for _, s := range strategy.Statuses {
		res = append(res, string(s))
	}
	return res
}()

func sideLabel(s order.Side) string {
	if s == "" {
		return ""
	}
	return s.Label()
}
