package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ccyingfu/q-alpha/internal/config"
	"github.com/ccyingfu/q-alpha/internal/domain"
	"github.com/ccyingfu/q-alpha/internal/fetch"
	"github.com/ccyingfu/q-alpha/internal/store"
	"github.com/ccyingfu/q-alpha/internal/util"
)

// Refreshes market data for every stored asset. Intended to run from cron
// after the CN market close.
func main() {
	cfgPath := "config/qalpha.yaml"
	if p := os.Getenv("QALPHA_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer s.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bsClient := fetch.NewBaoStockClient(cfg.BaoStock.Host, cfg.BaoStock.Port,
		time.Duration(cfg.BaoStock.TimeoutSeconds)*time.Second, logger)
	if err := bsClient.Connect(ctx); err != nil {
		log.Fatalf("connecting to baostock: %v", err)
	}
	defer bsClient.Close()
	if err := bsClient.Login(ctx); err != nil {
		log.Fatalf("baostock login: %v", err)
	}
	defer bsClient.Logout(context.Background())

	cache := store.NewBarCache(cfg.Storage.DataDir, cfg.Storage.CacheExpireHours)
	fetchers := map[domain.Market]fetch.Fetcher{
		domain.MarketCN: fetch.NewBaoStockFetcher(bsClient, cache,
			cfg.Fetch.RateLimitPerMin, cfg.Fetch.RetryAttempts,
			time.Duration(cfg.Fetch.RetryDelaySeconds)*time.Second, logger),
	}
	if cfg.Alpaca.APIKey != "" {
		fetchers[domain.MarketUS] = fetch.NewAlpacaFetcher(
			cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, logger)
	}

	refresher := fetch.NewRefresher(s, fetchers, logger)
	summary, err := refresher.RefreshAll(ctx)
	if err != nil {
		log.Fatalf("refresh failed: %v", err)
	}
	fmt.Printf("refreshed %d, skipped %d, failed %d\n",
		summary.Refreshed, summary.Skipped, summary.Failed)
	if summary.Failed > 0 {
		os.Exit(1)
	}
}
