package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"dual-trader-go/config"
	"dual-trader-go/gateway"
	"dual-trader-go/infrastructure/logger"
	"dual-trader-go/internal/engine"
	"dual-trader-go/inventory"
	"dual-trader-go/market"
	"dual-trader-go/metrics"
	"dual-trader-go/order"
	"dual-trader-go/sim"
	"dual-trader-go/status"
	"dual-trader-go/strategy"
)

func main() {
	cfgPath := flag.String("config", "configs/trader.yaml", "配置文件路径")
	envFile := flag.String("env", ".env", ".env 文件路径，不存在则忽略")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("加载 %s 失败: %v", *envFile, err)
	}
	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	err = run(cfg, *cfgPath, lg)
	if err != nil {
		lg.Error("trader exited with error", zap.Error(err))
	}
	_ = lg.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, cfgPath string, lg *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lg.Info("trader starting",
		zap.String("env", cfg.Env),
		zap.String("symbol", cfg.Symbol),
		zap.String("policy", cfg.Strategy.Policy))

	if cfg.Metrics.Addr != "" {
		srv := metrics.StartMetricsServer(cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		lg.Info("metrics server listening", zap.String("addr", cfg.Metrics.Addr))
	}

	svc := market.NewService(market.NewPublisher())

	var (
		venue   order.Venue
		fetcher inventory.Fetcher
		rules   order.SymbolRules
	)
	switch cfg.Env {
	case config.EnvPaper:
		rules = cfg.Paper.Rules(cfg.Symbol)
		ex := sim.NewExchange(rules, cfg.Paper.Balances, lg.Logger)
		go ex.Run(ctx, svc.Publisher().SubscribeDepth())
		venue, fetcher = ex, ex
	default:
		spot := gateway.NewBinanceSpot(gateway.SpotConfig{
			APIKey:    cfg.Gateway.APIKey,
			APISecret: cfg.Gateway.APISecret,
			BaseURL:   cfg.Gateway.BaseURL,
			RateLimit: cfg.Gateway.RateLimit,
			Burst:     cfg.Gateway.Burst,
		}, lg.Logger)
		if err := spot.SyncTime(ctx); err != nil {
			lg.Warn("sync server time failed", zap.Error(err))
		}
		var err error
		if rules, err = spot.Rules(ctx, cfg.Symbol); err != nil {
			return fmt.Errorf("load symbol rules: %w", err)
		}
		venue, fetcher = spot, spot
	}
	lg.Info("symbol rules",
		zap.Float64("tick_size", rules.TickSize),
		zap.Float64("step_size", rules.StepSize),
		zap.Float64("min_qty", rules.MinQty),
		zap.Float64("min_notional", rules.MinNotional))

	se, err := strategy.New(cfg.Strategy.EngineConfig(), rules, lg.Logger)
	if err != nil {
		return err
	}

	ledger := inventory.NewLedger()
	balSync := inventory.NewSync(fetcher, ledger, ms(cfg.Sync.BalancesMs), lg.Logger)
	if err := balSync.Refresh(ctx); err != nil {
		return fmt.Errorf("initial balance sync: %w", err)
	}

	book := order.NewBook()
	mgr := order.NewManager(venue, book, rules, lg.Logger)
	syncer := order.NewSyncer(venue, book, order.SyncerConfig{Symbol: cfg.Symbol, Interval: ms(cfg.Sync.OrdersMs)}, lg.Logger)
	// 收养上次运行遗留的挂单，策略会按规则撤掉多余的
	if err := syncer.Sync(ctx); err != nil {
		return fmt.Errorf("initial order sync: %w", err)
	}

	stream := gateway.NewBookTickerStream(cfg.Gateway.StreamURL, cfg.Symbol, svc, lg.Logger)
	// 断线期间可能有成交，重连后立即对账
	stream.SetOnConnected(func() {
		if err := syncer.Sync(ctx); err != nil {
			lg.Warn("order sync after reconnect failed", zap.Error(err))
		}
	})
	go func() {
		if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("book ticker stream stopped", zap.Error(err))
		}
	}()
	d, err := waitDepth(ctx, svc, cfg.Symbol, 30*time.Second)
	if err != nil {
		return err
	}
	lg.Info("first depth", zap.Float64("bid", d.Bid), zap.Float64("ask", d.Ask))

	tracker := &inventory.Tracker{}
	runner, err := engine.New(engine.Config{
		Symbol:       cfg.Symbol,
		Yield:        ms(cfg.Runner.YieldMs),
		StaleBackoff: ms(cfg.Runner.StaleBackoffMs),
	}, engine.Components{
		Strategy: se,
		Depth:    svc,
		Balances: ledger,
		Orders:   book,
		Executor: mgr,
		Tracker:  tracker,
		Pulse:    status.NewPulse(rules),
		Logger:   lg.Logger,
	})
	if err != nil {
		return err
	}

	watcher, err := config.NewWatcher(cfgPath, time.Second, func(next config.AppConfig) {
		runner.Reconfigure(next.Strategy.EngineConfig())
		if err := lg.SetLevel(next.Log.Level); err != nil {
			lg.Warn("log level not changed", zap.Error(err))
		}
	}, lg.Logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		lg.Warn("config hot reload disabled", zap.Error(err))
	}
	defer watcher.Stop()

	balSync.Start(ctx)
	defer balSync.Stop()
	syncer.Start(ctx)
	defer syncer.Stop()

	if err := runner.Start(ctx); err != nil {
		return err
	}
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		lg.Warn("sd_notify ready failed", zap.Error(err))
	}

	<-ctx.Done()
	lg.Info("shutdown signal received")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := runner.Stop(stopCtx); err != nil {
		// 兜底：直接按 Book 撤单
		if err := mgr.CancelAll(stopCtx, cfg.Symbol); err != nil {
			return fmt.Errorf("cancel all on shutdown: %w", err)
		}
	}
	stats := runner.GetStatistics()
	syncStats := syncer.Stats()
	lg.Info("trader stopped",
		zap.Int64("ticks", stats.TotalTicks),
		zap.Int64("actions", stats.TotalActions),
		zap.Int64("errors", stats.TotalErrors),
		zap.Int64("fills", stats.TotalFills),
		zap.Float64("net_exposure", stats.NetExposure),
		zap.Float64("avg_cost", stats.AvgCost),
		zap.Float64("traded_volume", stats.TradedVolume),
		zap.Float64("unrealized_pnl", stats.UnrealizedPnL),
		zap.Int64("order_syncs", syncStats.TotalSyncs),
		zap.Int64("order_sync_fixes", syncStats.ConflictsResolved),
		zap.Int64("orders_adopted", syncStats.OrphansAdopted))
	return nil
}

func waitDepth(ctx context.Context, svc *market.Service, symbol string, timeout time.Duration) (market.Depth, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if d, ok := svc.Depth(symbol); ok && d.Valid() {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return market.Depth{}, fmt.Errorf("no depth for %s: %w", symbol, ctx.Err())
		case <-ticker.C:
		}
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
