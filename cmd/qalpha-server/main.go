package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ccyingfu/q-alpha/internal/backtest"
	"github.com/ccyingfu/q-alpha/internal/config"
	"github.com/ccyingfu/q-alpha/internal/domain"
	"github.com/ccyingfu/q-alpha/internal/fetch"
	"github.com/ccyingfu/q-alpha/internal/httpapi"
	"github.com/ccyingfu/q-alpha/internal/store"
	"github.com/ccyingfu/q-alpha/internal/util"
)

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

	// CN market data comes from BaoStock over its TCP protocol; the session
	// stays open for the life of the server.
	bsClient := fetch.NewBaoStockClient(cfg.BaoStock.Host, cfg.BaoStock.Port,
		time.Duration(cfg.BaoStock.TimeoutSeconds)*time.Second, logger)
	if err := bsClient.Connect(ctx); err != nil {
		logger.Warn("baostock connect failed, CN fetches will retry", "err", err)
	} else if err := bsClient.Login(ctx); err != nil {
		logger.Warn("baostock login failed, CN fetches will retry", "err", err)
	}
	defer bsClient.Close()

	cache := store.NewBarCache(cfg.Storage.DataDir, cfg.Storage.CacheExpireHours)
	fetchers := map[domain.Market]fetch.Fetcher{
		domain.MarketCN: fetch.NewBaoStockFetcher(bsClient, cache,
			cfg.Fetch.RateLimitPerMin, cfg.Fetch.RetryAttempts,
			time.Duration(cfg.Fetch.RetryDelaySeconds)*time.Second, logger),
	}
	if cfg.Alpaca.APIKey != "" {
		fetchers[domain.MarketUS] = fetch.NewAlpacaFetcher(
			cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, logger)
	} else {
		logger.Info("no alpaca credentials, US symbols disabled")
	}

	refresher := fetch.NewRefresher(s, fetchers, logger)
	engine := backtest.NewEngine(s,
		backtest.NewCalculator(cfg.Backtest.RiskFreeRate, cfg.Backtest.TradingDaysPerYear),
		cfg.Backtest.Benchmarks, logger)
	srv := httpapi.NewServer(s, engine, refresher, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("q-alpha server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	bsClient.Logout(shutdownCtx)
}
