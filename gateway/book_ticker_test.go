package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookTicker(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    BookTicker
		wantErr bool
	}{
		{
			name: "单流消息",
			raw:  `{"u":400900217,"s":"ETHUSDC","b":"100.00","B":"3.5","a":"100.02","A":"1.25"}`,
			want: BookTicker{UpdateID: 400900217, Symbol: "ETHUSDC", Bid: 100, BidQty: 3.5, Ask: 100.02, AskQty: 1.25},
		},
		{
			name: "组合流包装",
			raw:  `{"stream":"ethusdc@bookTicker","data":{"u":7,"s":"ETHUSDC","b":"99.99","B":"1","a":"100.01","A":"2"}}`,
			want: BookTicker{UpdateID: 7, Symbol: "ETHUSDC", Bid: 99.99, BidQty: 1, Ask: 100.01, AskQty: 2},
		},
		{name: "订阅回执", raw: `{"result":null,"id":1}`, wantErr: true},
		{name: "非法数字", raw: `{"u":1,"s":"ETHUSDC","b":"x","B":"1","a":"100.01","A":"2"}`, wantErr: true},
		{name: "非法JSON", raw: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBookTicker([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type depthUpdate struct {
	symbol      string
	bid, bidQty float64
	ask, askQty float64
}

type recordingSink struct {
	mu      sync.Mutex
	updates []depthUpdate
}

func (r *recordingSink) OnDepth(symbol string, bid, bidQty, ask, askQty float64, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, depthUpdate{symbol, bid, bidQty, ask, askQty})
}

func (r *recordingSink) snapshot() []depthUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]depthUpdate(nil), r.updates...)
}

func TestBookTickerStreamDropsStaleUpdates(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/ethusdc@bookTicker", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range []string{
			`{"u":10,"s":"ETHUSDC","b":"100.00","B":"3","a":"100.02","A":"1"}`,
			`{"u":9,"s":"ETHUSDC","b":"99.00","B":"3","a":"99.02","A":"1"}`,
			`{"u":11,"s":"ETHUSDC","b":"100.01","B":"2","a":"100.03","A":"4"}`,
		} {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		}
		// 保持连接直到客户端关闭
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	sink := &recordingSink{}
	connected := make(chan struct{}, 1)
	stream := NewBookTickerStream("ws"+strings.TrimPrefix(srv.URL, "http"), "ETHUSDC", sink, nil)
	stream.SetOnConnected(func() { connected <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- stream.Run(ctx) }()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not connect")
	}
	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	got := sink.snapshot()
	assert.Equal(t, depthUpdate{"ETHUSDC", 100, 3, 100.02, 1}, got[0])
	assert.Equal(t, depthUpdate{"ETHUSDC", 100.01, 2, 100.03, 4}, got[1])

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
}
