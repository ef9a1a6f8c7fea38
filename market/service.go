package market

import (
	"sync"
	"time"
)

// Service 维护各交易对最新深度，并向订阅者广播。
type Service struct {
	pub   *Publisher
	mu    sync.RWMutex
	depth map[string]Depth
	now   func() time.Time
}

func NewService(pub *Publisher) *Service {
	if pub == nil {
		pub = NewPublisher()
	}
	return &Service{
		pub:   pub,
		depth: make(map[string]Depth),
		now:   time.Now,
	}
}

// Publisher 返回内部分发器，供模拟盘等订阅深度。
func (s *Service) Publisher() *Publisher {
	return s.pub
}

// OnDepth 更新并广播。
func (s *Service) OnDepth(symbol string, bid, bidQty, ask, askQty float64, ts time.Time) {
	if ts.IsZero() {
		ts = s.now()
	}
	s.mu.Lock()
	d := s.depth[symbol]
	d.Symbol = symbol
	d.Update(bid, bidQty, ask, askQty, ts)
	s.depth[symbol] = d
	s.mu.Unlock()
	s.pub.PublishDepth(d)
}

// Depth 返回最新深度快照；尚无数据时第二个返回值为 false。
func (s *Service) Depth(symbol string) (Depth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.depth[symbol]
	return d, ok
}

// Mid 返回当前中间价；若缺失则返回 0。
func (s *Service) Mid(symbol string) float64 {
	d, _ := s.Depth(symbol)
	return d.Mid()
}

// Staleness 返回距离上次更新的时间间隔；如无数据返回一个极大值。
func (s *Service) Staleness(symbol string) time.Duration {
	d, ok := s.Depth(symbol)
	if !ok {
		return time.Hour * 24 * 365
	}
	return d.Age(s.now())
}
