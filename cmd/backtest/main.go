package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mvessey/crowd-trader/internal/backtest"
	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/logger"
)

func main() {
	dbPath := flag.String("db", "", "path to database with historical data")
	product := flag.String("product", "BTC-USD", "product to backtest")
	timeframe := flag.String("timeframe", "1h", "candle timeframe")
	configPath := flag.String("config", "", "optional path to config file")
	start := flag.Int64("start", 0, "start unix timestamp (0 = all data)")
	end := flag.Int64("end", 0, "end unix timestamp (0 = all data)")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backtest -db <path> [-product BTC-USD] [-timeframe 1h]")
		os.Exit(1)
	}

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = &config.Config{}
		config.SetDefaults(cfg)
	}

	log := logger.New(cfg.Logging.Level)

	runner := backtest.NewRunner(cfg, log)
	result, err := runner.Run(context.Background(), *product, *dbPath, *timeframe, *start, *end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtest failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(result.Summary())
}
