package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dual-trader-go/inventory"
	"dual-trader-go/metrics"
	"dual-trader-go/order"
)

const (
	codeUnknownOrder   = -2011 // cancel: Unknown order sent
	codeOrderNotExists = -2013 // query: Order does not exist
)

// BinanceSpot 现货 REST 适配，实现 order.Venue 与 inventory.Fetcher。
// 不支持改单：策略始终以撤单+下单替换订单。
type BinanceSpot struct {
	client  *binance.Client
	limiter *Limiter
	logger  *zap.Logger
}

// SpotConfig 现货适配配置
type SpotConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string // 为空使用 go-binance 默认地址
	RateLimit float64
	Burst     int
}

func NewBinanceSpot(cfg SpotConfig, logger *zap.Logger) *BinanceSpot {
	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinanceSpot{
		client:  client,
		limiter: NewLimiter(cfg.RateLimit, cfg.Burst),
		logger:  logger.Named("binance"),
	}
}

// SyncTime 校准本地与服务器时间偏移，签名请求依赖该偏移。
func (b *BinanceSpot) SyncTime(ctx context.Context) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	_, err := b.client.NewSetServerTimeService().Do(ctx)
	metrics.ObserveRest("server_time", start, err)
	return err
}

// Rules 从 exchangeInfo 读取交易对规则。
func (b *BinanceSpot) Rules(ctx context.Context, symbol string) (order.SymbolRules, error) {
	if err := b.wait(ctx); err != nil {
		return order.SymbolRules{}, err
	}
	start := time.Now()
	info, err := b.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	metrics.ObserveRest("exchange_info", start, err)
	if err != nil {
		return order.SymbolRules{}, fmt.Errorf("exchange info: %w", err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		rules := order.SymbolRules{Symbol: s.Symbol, BaseAsset: s.BaseAsset, QuoteAsset: s.QuoteAsset}
		for _, f := range s.Filters {
			switch f["filterType"] {
			case "PRICE_FILTER":
				rules.TickSize = filterValue(f, "tickSize")
			case "LOT_SIZE":
				rules.StepSize = filterValue(f, "stepSize")
				rules.MinQty = filterValue(f, "minQty")
				rules.MaxQty = filterValue(f, "maxQty")
			case "NOTIONAL", "MIN_NOTIONAL":
				rules.MinNotional = filterValue(f, "minNotional")
			}
		}
		return rules, rules.Check()
	}
	return order.SymbolRules{}, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

func filterValue(f map[string]interface{}, key string) float64 {
	s, _ := f[key].(string)
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// PlaceOrder maker 单使用 LIMIT_MAKER，taker 单使用 LIMIT + GTC/FOK。
func (b *BinanceSpot) PlaceOrder(ctx context.Context, req order.Request) (order.Order, error) {
	if err := b.wait(ctx); err != nil {
		return order.Order{}, err
	}
	svc := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(binance.SideType(req.Side)).
		Quantity(decimal.NewFromFloat(req.Quantity).String()).
		Price(decimal.NewFromFloat(req.Price).String()).
		NewClientOrderID(req.ClientID)
	if req.Type == order.Maker {
		svc = svc.Type(binance.OrderTypeLimitMaker)
	} else {
		svc = svc.Type(binance.OrderTypeLimit).TimeInForce(binance.TimeInForceType(req.TimeInForce))
	}

	start := time.Now()
	resp, err := svc.Do(ctx)
	metrics.ObserveRest("place_order", start, err)
	if err != nil {
		return order.Order{}, mapError(err)
	}
	return order.Order{
		ID:          strconv.FormatInt(resp.OrderID, 10),
		ClientID:    resp.ClientOrderID,
		Symbol:      resp.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		TimeInForce: req.TimeInForce,
		Price:       parseFloat(resp.Price, req.Price),
		Quantity:    parseFloat(resp.OrigQuantity, req.Quantity),
		Filled:      parseFloat(resp.ExecutedQuantity, 0),
		Status:      mapStatus(resp.Status),
		CreatedAt:   time.UnixMilli(resp.TransactTime),
	}, nil
}

func (b *BinanceSpot) CancelOrder(ctx context.Context, symbol, id string) error {
	orderID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad order id %q", order.ErrUnknownOrder, id)
	}
	if err := b.wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	_, err = b.client.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	metrics.ObserveRest("cancel_order", start, err)
	return mapError(err)
}

func (b *BinanceSpot) GetOrder(ctx context.Context, symbol, id string) (order.Order, error) {
	orderID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return order.Order{}, fmt.Errorf("%w: bad order id %q", order.ErrUnknownOrder, id)
	}
	if err := b.wait(ctx); err != nil {
		return order.Order{}, err
	}
	start := time.Now()
	o, err := b.client.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	metrics.ObserveRest("get_order", start, err)
	if err != nil {
		return order.Order{}, mapError(err)
	}
	return toOrder(o), nil
}

func (b *BinanceSpot) OpenOrders(ctx context.Context, symbol string) ([]order.Order, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	list, err := b.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	metrics.ObserveRest("open_orders", start, err)
	if err != nil {
		return nil, mapError(err)
	}
	res := make([]order.Order, 0, len(list))
	for _, o := range list {
		res = append(res, toOrder(o))
	}
	return res, nil
}

// Balances 现货账户余额：Net = free + locked，Available = free。
func (b *BinanceSpot) Balances(ctx context.Context) (map[string]inventory.Balance, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	acct, err := b.client.NewGetAccountService().Do(ctx)
	metrics.ObserveRest("account", start, err)
	if err != nil {
		return nil, mapError(err)
	}
	res := make(map[string]inventory.Balance, len(acct.Balances))
	for _, bal := range acct.Balances {
		free := parseFloat(bal.Free, 0)
		locked := parseFloat(bal.Locked, 0)
		if free == 0 && locked == 0 {
			continue
		}
		res[bal.Asset] = inventory.Balance{Net: free + locked, Available: free}
	}
	return res, nil
}

func (b *BinanceSpot) wait(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

func toOrder(o *binance.Order) order.Order {
	typ, tif := order.Taker, order.TimeInForce(o.TimeInForce)
	if o.Type == binance.OrderTypeLimitMaker {
		typ, tif = order.Maker, order.GTC
	}
	return order.Order{
		ID:          strconv.FormatInt(o.OrderID, 10),
		ClientID:    o.ClientOrderID,
		Symbol:      o.Symbol,
		Side:        order.Side(o.Side),
		Type:        typ,
		TimeInForce: tif,
		Price:       parseFloat(o.Price, 0),
		Quantity:    parseFloat(o.OrigQuantity, 0),
		Filled:      parseFloat(o.ExecutedQuantity, 0),
		Status:      mapStatus(o.Status),
		CreatedAt:   time.UnixMilli(o.Time),
	}
}

func mapStatus(s binance.OrderStatusType) order.Status {
	switch s {
	case binance.OrderStatusTypeNew, binance.OrderStatusTypePendingCancel:
		return order.StatusAck
	case binance.OrderStatusTypePartiallyFilled:
		return order.StatusPartial
	case binance.OrderStatusTypeFilled:
		return order.StatusFilled
	case binance.OrderStatusTypeCanceled:
		return order.StatusCanceled
	case binance.OrderStatusTypeRejected:
		return order.StatusRejected
	default:
		// EXPIRED / EXPIRED_IN_MATCH：FOK 未成交或自成交保护
		return order.StatusExpired
	}
}

// mapError 将交易所“订单不存在”映射为 order.ErrUnknownOrder。
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && (apiErr.Code == codeUnknownOrder || apiErr.Code == codeOrderNotExists) {
		return fmt.Errorf("%w: %s", order.ErrUnknownOrder, apiErr.Message)
	}
	return err
}

func parseFloat(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
