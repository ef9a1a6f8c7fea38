package order

import "time"

// Status represents order lifecycle.
type Status string

const (
	StatusNew      Status = "NEW"
	StatusAck      Status = "ACK"
	StatusPartial  Status = "PARTIAL"
	StatusFilled   Status = "FILLED"
	StatusCanceled Status = "CANCELED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// Side 买卖方向。
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite 返回对手方向。
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Label 返回 bid/ask，用于日志。
func (s Side) Label() string {
	if s == Buy {
		return "bid"
	}
	return "ask"
}

// Type 区分挂单（maker-only）与吃单（可立即成交）。
type Type string

const (
	Maker Type = "MAKER"
	Taker Type = "TAKER"
)

// TimeInForce 有效期类型。
type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	FOK TimeInForce = "FOK"
)

// Order holds a simplified order view.
type Order struct {
	ID          string
	ClientID    string
	Symbol      string
	Side        Side
	Type        Type
	TimeInForce TimeInForce
	Price       float64
	Quantity    float64
	Filled      float64
	Status      Status
	CreatedAt   time.Time
	LastError   string
}

// Unfilled 剩余未成交数量。
func (o Order) Unfilled() float64 {
	rest := o.Quantity - o.Filled
	if rest < 0 {
		return 0
	}
	return rest
}

// Request 是一次下单请求，由 Manager 补全 ClientID 后发往 Venue。
type Request struct {
	Symbol      string
	ClientID    string
	Side        Side
	Type        Type
	TimeInForce TimeInForce
	Price       float64
	Quantity    float64
}

// Fill 成交通知（增量）。
type Fill struct {
	OrderID  string
	Side     Side
	Price    float64
	Quantity float64
	Ts       time.Time
}
