package inventory

import (
	"sync"

	"dual-trader-go/order"
)

// Balance 单个资产的余额；Available 不含挂单冻结部分。
type Balance struct {
	Net       float64
	Available float64
}

// Ledger 维护账户各资产余额，由同步器定期覆盖、由成交即时调整。
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]Balance
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]Balance)}
}

// Set 覆盖单个资产余额。
func (l *Ledger) Set(asset string, b Balance) {
	l.mu.Lock()
	l.balances[asset] = b
	l.mu.Unlock()
}

// Replace 用交易所快照整体覆盖。
func (l *Ledger) Replace(all map[string]Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = make(map[string]Balance, len(all))
	for k, v := range all {
		l.balances[k] = v
	}
}

// Balance 返回资产余额；未知资产为零值。
func (l *Ledger) Balance(asset string) Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[asset]
}

// Snapshot 返回全部余额的拷贝。
func (l *Ledger) Snapshot() map[string]Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := make(map[string]Balance, len(l.balances))
	for k, v := range l.balances {
		res[k] = v
	}
	return res
}

// ApplyFill 按成交调整 base/quote 两侧余额。
func (l *Ledger) ApplyFill(rules order.SymbolRules, side order.Side, price, qty float64) {
	if qty <= 0 {
		return
	}
	notional := price * qty
	l.mu.Lock()
	defer l.mu.Unlock()
	base := l.balances[rules.BaseAsset]
	quote := l.balances[rules.QuoteAsset]
	if side == order.Sell {
		base.Net -= qty
		base.Available -= qty
		quote.Net += notional
		quote.Available += notional
	} else {
		base.Net += qty
		base.Available += qty
		quote.Net -= notional
		quote.Available -= notional
	}
	l.balances[rules.BaseAsset] = base
	l.balances[rules.QuoteAsset] = quote
}
