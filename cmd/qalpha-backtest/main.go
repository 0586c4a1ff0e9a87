package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ccyingfu/q-alpha/internal/backtest"
	"github.com/ccyingfu/q-alpha/internal/config"
	"github.com/ccyingfu/q-alpha/internal/domain"
	"github.com/ccyingfu/q-alpha/internal/fetch"
	"github.com/ccyingfu/q-alpha/internal/store"
	"github.com/ccyingfu/q-alpha/internal/util"
)

func main() {
	var (
		cfgPath  = flag.String("config", "config/qalpha.yaml", "config file path")
		name     = flag.String("strategy", "", "strategy name to run")
		startStr = flag.String("start", "", "backtest start date (YYYY-MM-DD)")
		endStr   = flag.String("end", "", "backtest end date (YYYY-MM-DD)")
		capital  = flag.Float64("capital", 100000, "initial capital")
		save     = flag.Bool("save", false, "persist the result")
	)
	flag.Parse()

	if *name == "" || *startStr == "" || *endStr == "" {
		flag.Usage()
		os.Exit(2)
	}
	start, err := domain.ParseDate(*startStr)
	if err != nil {
		log.Fatalf("invalid start date: %v", err)
	}
	end, err := domain.ParseDate(*endStr)
	if err != nil {
		log.Fatalf("invalid end date: %v", err)
	}

	cfg, err := config.Load(*cfgPath)
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

	strat, err := s.GetStrategyByName(ctx, *name)
	if err != nil {
		log.Fatalf("loading strategy %q: %v", *name, err)
	}

	bsClient := fetch.NewBaoStockClient(cfg.BaoStock.Host, cfg.BaoStock.Port,
		time.Duration(cfg.BaoStock.TimeoutSeconds)*time.Second, logger)
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
	}
	refresher := fetch.NewRefresher(s, fetchers, logger)

	for code := range strat.Allocation {
		if err := refresher.EnsureData(ctx, code, start, end); err != nil {
			log.Fatalf("preparing data for %s: %v", code, err)
		}
	}

	engine := backtest.NewEngine(s,
		backtest.NewCalculator(cfg.Backtest.RiskFreeRate, cfg.Backtest.TradingDaysPerYear),
		cfg.Backtest.Benchmarks, logger)
	result, err := engine.Run(ctx, strat, start, end, *capital)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	fmt.Printf("strategy:      %s\n", strat.Name)
	fmt.Printf("period:        %s ~ %s\n", result.StartDate, result.EndDate)
	fmt.Printf("total return:  %.2f%%\n", result.Metrics.TotalReturn*100)
	fmt.Printf("annual return: %.2f%%\n", result.Metrics.AnnualReturn*100)
	fmt.Printf("max drawdown:  %.2f%%\n", result.Metrics.MaxDrawdown*100)
	fmt.Printf("volatility:    %.2f%%\n", result.Metrics.Volatility*100)
	printRatio("sharpe", result.Metrics.SharpeRatio)
	printRatio("sortino", result.Metrics.SortinoRatio)
	printRatio("calmar", result.Metrics.CalmarRatio)

	if *save {
		if err := s.SaveResult(ctx, result); err != nil {
			log.Fatalf("saving result: %v", err)
		}
		fmt.Printf("saved result %d\n", result.ID)
	}
}

func printRatio(name string, v *float64) {
	if v == nil {
		fmt.Printf("%-14s n/a\n", name+":")
		return
	}
	fmt.Printf("%-14s %.3f\n", name+":", *v)
}
