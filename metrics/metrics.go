// Package metrics provides Prometheus metrics for the trader
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dt"

var (
	// 决策指标
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decisions_total",
		Help:      "Per-tick decisions by policy, action kind and side",
	}, []string{"policy", "kind", "side"})
	TicksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_skipped_total",
		Help:      "Ticks skipped before a decision",
	}, []string{"reason"})
	ExecutionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "execution_failures_total",
		Help:      "Cancel/place requests reported as failed",
	}, []string{"kind"})
	EngineStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "engine_status",
		Help:      "1 for the current engine status label",
	}, []string{"status"})

	// 库存与成交
	InventoryValue = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "inventory_value",
		Help:      "Base asset holdings valued at the best bid",
	})
	Fills = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fills_total",
		Help:      "Fill notifications by side",
	}, []string{"side"})
	TradedVolume = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "traded_volume_quote_total",
		Help:      "Traded notional in quote asset",
	})

	// 网关
	RestRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rest_requests_total",
		Help:      "REST requests by endpoint",
	}, []string{"endpoint"})
	RestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rest_errors_total",
		Help:      "REST errors by endpoint",
	}, []string{"endpoint"})
	RestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rest_latency_seconds",
		Help:      "REST latency by endpoint",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"endpoint"})
	WSReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_reconnects_total",
		Help:      "Book ticker stream reconnects",
	})
)

// RecordDecision 记录一次决策。
func RecordDecision(policy, kind, side string) {
	Decisions.WithLabelValues(policy, kind, side).Inc()
}

// SetStatus 当前状态置 1，其余置 0。
func SetStatus(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		EngineStatus.WithLabelValues(s).Set(v)
	}
}

// RecordFill 记录成交数量与成交额。
func RecordFill(side string, price, qty float64) {
	Fills.WithLabelValues(side).Inc()
	TradedVolume.Add(price * qty)
}

// ObserveRest 记录一次 REST 调用。
func ObserveRest(endpoint string, start time.Time, err error) {
	RestRequests.WithLabelValues(endpoint).Inc()
	RestLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		RestErrors.WithLabelValues(endpoint).Inc()
	}
}

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
