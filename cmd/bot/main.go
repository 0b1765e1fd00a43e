package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/exchange"
	"github.com/mvessey/crowd-trader/internal/logger"
	"github.com/mvessey/crowd-trader/internal/scheduler"
	"github.com/mvessey/crowd-trader/internal/social"
	"github.com/mvessey/crowd-trader/internal/storage"
	"github.com/mvessey/crowd-trader/internal/telegram"
	"github.com/mvessey/crowd-trader/internal/trading"
	"github.com/mvessey/crowd-trader/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	mode := strings.ToUpper(cfg.Execution.Mode)
	log.Info("starting crowd-trader", "mode", mode, "watchlist", strings.Join(cfg.Watchlist, ","))

	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	market := exchange.NewMarketData(cfg.Binance.APIKey, cfg.Binance.APISecret, log)
	socialAgg := social.NewAggregator(cfg, log)
	notifier := telegram.NewNotifier(cfg, log)

	var trader trading.Trader
	if cfg.IsLive() {
		trader, err = trading.NewLiveTrader(repo, cfg, log)
	} else {
		trader, err = trading.NewPaperTrader(repo, cfg, log)
	}
	if err != nil {
		log.Error("trader init failed", "error", err)
		os.Exit(1)
	}

	prices := exchange.NewPriceCache()
	stream := exchange.NewTickerStream(cfg.Watchlist, log)
	go func() {
		if err := stream.Run(ctx, func(u exchange.PriceUpdate) {
			prices.Set(u.ProductID, u.Price)
		}); err != nil {
			log.Error("ticker stream stopped", "error", err)
		}
	}()

	sched := scheduler.NewScheduler(market, socialAgg, trader, repo, notifier, prices, cfg, log)
	webServer := web.NewServer(repo, cfg, log)

	go sched.Run(ctx)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()

	notifier.NotifyStatus(fmt.Sprintf("🤖 Crowd Trader started (%s)", mode))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}

	notifier.NotifyStatus("🛑 Crowd Trader stopped")
	log.Info("crowd-trader stopped")
}
