package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"dual-trader-go/config"
	"dual-trader-go/gateway"
	"dual-trader-go/inventory"
	"dual-trader-go/order"
)

// 紧急清理：撤销交易对上所有挂单并打印账户余额。
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
	if cfg.Env != config.EnvLive {
		log.Fatalf("env=%s，模拟盘无需清理", cfg.Env)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	spot := gateway.NewBinanceSpot(gateway.SpotConfig{
		APIKey:    cfg.Gateway.APIKey,
		APISecret: cfg.Gateway.APISecret,
		BaseURL:   cfg.Gateway.BaseURL,
		RateLimit: cfg.Gateway.RateLimit,
		Burst:     cfg.Gateway.Burst,
	}, nil)
	if err := spot.SyncTime(ctx); err != nil {
		log.Printf("校准服务器时间失败: %v", err)
	}
	rules, err := spot.Rules(ctx, cfg.Symbol)
	if err != nil {
		log.Fatalf("读取交易对规则失败: %v", err)
	}

	// 1. 收养交易所挂单后逐个撤销
	book := order.NewBook()
	syncer := order.NewSyncer(spot, book, order.SyncerConfig{Symbol: cfg.Symbol}, nil)
	if err := syncer.Sync(ctx); err != nil {
		log.Fatalf("查询挂单失败: %v", err)
	}
	open := book.Active(cfg.Symbol)
	fmt.Printf("%s 挂单 %d 个\n", cfg.Symbol, len(open))
	for _, o := range open {
		fmt.Printf("  %s %s %s @ %s (已成交 %s)\n", o.ID, o.Side.Label(),
			rules.FormatQty(o.Quantity), rules.FormatPrice(o.Price), rules.FormatQty(o.Filled))
	}
	mgr := order.NewManager(spot, book, rules, nil)
	if err := mgr.CancelAll(ctx, cfg.Symbol); err != nil {
		log.Fatalf("撤单失败: %v", err)
	}
	for _, o := range book.List() {
		fmt.Printf("  %s -> %s\n", o.ID, o.Status)
	}
	fmt.Println("所有挂单已撤销")

	// 2. 余额
	ledger := inventory.NewLedger()
	if err := inventory.NewSync(spot, ledger, 0, nil).Refresh(ctx); err != nil {
		log.Fatalf("查询余额失败: %v", err)
	}
	for _, asset := range sortedAssets(ledger.Snapshot()) {
		b := ledger.Balance(asset)
		fmt.Printf("%-6s net=%.8f available=%.8f\n", asset, b.Net, b.Available)
	}
}

func sortedAssets(m map[string]inventory.Balance) []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}
