package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownOrder = errors.New("unknown order")
	ErrRejected     = errors.New("order rejected")
)

// Venue 交易所下单/撤单/查询抽象；实盘为 gateway.BinanceSpot，模拟盘为 sim.Exchange。
type Venue interface {
	PlaceOrder(ctx context.Context, req Request) (Order, error)
	CancelOrder(ctx context.Context, symbol, id string) error
	GetOrder(ctx context.Context, symbol, id string) (Order, error)
	OpenOrders(ctx context.Context, symbol string) ([]Order, error)
}

// Manager 校验并通过 Venue 下发订单，结果登记到 Book。
// 成交（含下单即时成交）统一经 Book.Fills() 发出，余额由消费方调整。
type Manager struct {
	venue  Venue
	book   *Book
	rules  SymbolRules
	logger *zap.Logger
}

func NewManager(venue Venue, book *Book, rules SymbolRules, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		venue:  venue,
		book:   book,
		rules:  rules,
		logger: logger.Named("order"),
	}
}

// Place 同步调用 Venue 下单并登记状态。
func (m *Manager) Place(ctx context.Context, req Request, reason string) (Order, error) {
	if req.Symbol == "" {
		req.Symbol = m.rules.Symbol
	}
	if err := m.rules.Validate(req.Price, req.Quantity); err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if req.ClientID == "" {
		req.ClientID = generateClientID()
	}
	m.logger.Debug("placing order",
		zap.String("reason", reason),
		zap.String("side", req.Side.Label()),
		zap.String("type", string(req.Type)),
		zap.String("tif", string(req.TimeInForce)),
		zap.Float64("price", req.Price),
		zap.Float64("qty", req.Quantity),
		zap.String("client_id", req.ClientID))

	o, err := m.venue.PlaceOrder(ctx, req)
	if err != nil {
		return Order{}, fmt.Errorf("place %s order: %w", req.Side.Label(), err)
	}
	if o.ID == "" {
		return Order{}, fmt.Errorf("place %s order: empty order id", req.Side.Label())
	}
	if err := m.book.Upsert(o); err != nil {
		m.logger.Warn("book upsert failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	return o, nil
}

// Cancel 调用 Venue 撤单并标记状态；交易所已不存在的订单视为撤单成功。
func (m *Manager) Cancel(ctx context.Context, o Order, reason string) error {
	m.logger.Debug("canceling order",
		zap.String("reason", reason),
		zap.String("side", o.Side.Label()),
		zap.String("order_id", o.ID))

	err := m.venue.CancelOrder(ctx, o.Symbol, o.ID)
	switch {
	case errors.Is(err, ErrUnknownOrder):
		_ = m.book.MarkFinal(o.ID, StatusExpired)
		return nil
	case err != nil:
		return fmt.Errorf("cancel %s order %s: %w", o.Side.Label(), o.ID, err)
	}
	if err := m.book.MarkFinal(o.ID, StatusCanceled); err != nil && !errors.Is(err, ErrUnknownOrder) {
		m.logger.Debug("cancel after final state", zap.String("order_id", o.ID), zap.Error(err))
	}
	return nil
}

// CancelAll 撤销某交易对所有活跃订单，用于退出清理。
func (m *Manager) CancelAll(ctx context.Context, symbol string) error {
	var failed int
	for _, o := range m.book.Active(symbol) {
		if err := m.Cancel(ctx, o, "shutdown"); err != nil {
			m.logger.Error("cancel on shutdown failed", zap.String("order_id", o.ID), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to cancel %d orders", failed)
	}
	return nil
}

// generateClientID 生成不超过 36 字符的 client order id。
func generateClientID() string {
	return "dt" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
