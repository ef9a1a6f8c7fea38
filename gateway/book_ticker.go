package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dual-trader-go/metrics"
)

// BinanceSpotWSEndpoint 现货行情 websocket 地址
const BinanceSpotWSEndpoint = "wss://stream.binance.com:9443"

var errNotBookTicker = errors.New("not a bookTicker message")

// DepthSink 接收最优买卖价更新，market.Service 实现该接口。
type DepthSink interface {
	OnDepth(symbol string, bid, bidQty, ask, askQty float64, ts time.Time)
}

// BookTicker 对应 <symbol>@bookTicker 消息。
type BookTicker struct {
	UpdateID int64
	Symbol   string
	Bid      float64
	BidQty   float64
	Ask      float64
	AskQty   float64
}

type rawBookTicker struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	Bid      string `json:"b"`
	BidQty   string `json:"B"`
	Ask      string `json:"a"`
	AskQty   string `json:"A"`
}

// ParseBookTicker 解析单流或 combined stream 包装的 bookTicker 消息。
func ParseBookTicker(raw []byte) (BookTicker, error) {
	var wrapped struct {
		Stream string          `json:"stream"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return BookTicker{}, err
	}
	if wrapped.Stream != "" {
		raw = wrapped.Data
	}
	var msg rawBookTicker
	if err := json.Unmarshal(raw, &msg); err != nil {
		return BookTicker{}, err
	}
	if msg.Symbol == "" || msg.Bid == "" || msg.Ask == "" {
		return BookTicker{}, errNotBookTicker
	}
	bt := BookTicker{UpdateID: msg.UpdateID, Symbol: msg.Symbol}
	fields := []struct {
		dst *float64
		src string
	}{{&bt.Bid, msg.Bid}, {&bt.BidQty, msg.BidQty}, {&bt.Ask, msg.Ask}, {&bt.AskQty, msg.AskQty}}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.src, 64)
		if err != nil {
			return BookTicker{}, fmt.Errorf("parse bookTicker %s: %w", msg.Symbol, err)
		}
		*f.dst = v
	}
	return bt, nil
}

// BookTickerStream 订阅 bookTicker 并推送到 DepthSink，断线自动重连。
type BookTickerStream struct {
	endpoint     string
	symbol       string
	sink         DepthSink
	dialer       *websocket.Dialer
	logger       *zap.Logger
	readTimeout  time.Duration
	retryBackoff time.Duration
	maxBackoff   time.Duration
	onConnected  func()
	lastUpdateID int64
}

func NewBookTickerStream(endpoint, symbol string, sink DepthSink, logger *zap.Logger) *BookTickerStream {
	if endpoint == "" {
		endpoint = BinanceSpotWSEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookTickerStream{
		endpoint:     strings.TrimSuffix(endpoint, "/"),
		symbol:       symbol,
		sink:         sink,
		dialer:       websocket.DefaultDialer,
		logger:       logger.Named("bookticker").With(zap.String("symbol", symbol)),
		readTimeout:  30 * time.Second,
		retryBackoff: time.Second,
		maxBackoff:   30 * time.Second,
	}
}

// SetOnConnected 每次（重新）连接成功后回调，可用于触发订单同步。
func (s *BookTickerStream) SetOnConnected(fn func()) {
	s.onConnected = fn
}

func (s *BookTickerStream) url() string {
	return fmt.Sprintf("%s/ws/%s@bookTicker", s.endpoint, strings.ToLower(s.symbol))
}

// Run 阻塞运行直到 ctx 结束。
func (s *BookTickerStream) Run(ctx context.Context) error {
	retries := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, _, err := s.dialer.DialContext(ctx, s.url(), nil)
		if err != nil {
			retries++
			backoff := min(time.Duration(retries)*s.retryBackoff, s.maxBackoff)
			s.logger.Warn("ws dial failed", zap.Int("retries", retries), zap.Duration("backoff", backoff), zap.Error(err))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			continue
		}
		retries = 0
		s.logger.Info("ws connected", zap.String("url", s.url()))
		if s.onConnected != nil {
			s.onConnected()
		}

		s.readLoop(ctx, conn)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.WSReconnects.Inc()
		s.logger.Warn("ws disconnected, reconnecting...")
		if !sleepCtx(ctx, s.retryBackoff) {
			return ctx.Err()
		}
	}
}

func (s *BookTickerStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("ws read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		s.handle(msg)
	}
}

func (s *BookTickerStream) handle(msg []byte) {
	bt, err := ParseBookTicker(msg)
	if err != nil {
		if !errors.Is(err, errNotBookTicker) {
			s.logger.Debug("parse bookTicker failed", zap.Error(err))
		}
		return
	}
	// 乱序或重复的更新直接丢弃
	if bt.UpdateID != 0 && bt.UpdateID <= s.lastUpdateID {
		return
	}
	s.lastUpdateID = bt.UpdateID
	s.sink.OnDepth(bt.Symbol, bt.Bid, bt.BidQty, bt.Ask, bt.AskQty, time.Now())
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
