package backtest

import (
	"context"
	"fmt"

	"github.com/mvessey/crowd-trader/internal/analysis"
	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/exchange"
	"github.com/mvessey/crowd-trader/internal/logger"
	"github.com/mvessey/crowd-trader/internal/storage"
	"github.com/mvessey/crowd-trader/internal/strategy"
	"github.com/mvessey/crowd-trader/internal/trading"
)

// Result holds backtest performance metrics.
type Result struct {
	StartingBalance float64
	EndingBalance   float64
	Trades          []storage.Trade
}

func (r *Result) TotalReturn() float64 {
	if r.StartingBalance == 0 {
		return 0
	}
	return (r.EndingBalance - r.StartingBalance) / r.StartingBalance
}

func (r *Result) TotalTrades() int { return len(r.Trades) }

func (r *Result) BuyTrades() int {
	n := 0
	for _, t := range r.Trades {
		if t.Side == "buy" {
			n++
		}
	}
	return n
}

func (r *Result) SellTrades() int {
	n := 0
	for _, t := range r.Trades {
		if t.Side == "sell" {
			n++
		}
	}
	return n
}

// WinRate is the fraction of sell trades that closed with positive realized
// profit.
func (r *Result) WinRate() float64 {
	sells, wins := 0, 0
	for _, t := range r.Trades {
		if t.Side != "sell" {
			continue
		}
		sells++
		if t.RealizedPnL > 0 {
			wins++
		}
	}
	if sells == 0 {
		return 0
	}
	return float64(wins) / float64(sells)
}

func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Backtest Results:\n"+
			"  Starting Balance: $%.2f\n"+
			"  Ending Balance:   $%.2f\n"+
			"  Total Return:     %+.1f%%\n"+
			"  Total Trades:     %d (%d buys, %d sells)\n"+
			"  Win Rate:         %.0f%%\n",
		r.StartingBalance, r.EndingBalance, r.TotalReturn()*100,
		r.TotalTrades(), r.BuyTrades(), r.SellTrades(), r.WinRate()*100)
}

// Runner replays stored historical data through the strategy engine against
// a fresh in-memory paper account.
type Runner struct {
	config *config.Config
	logger *logger.Logger
}

func NewRunner(cfg *config.Config, log *logger.Logger) *Runner {
	return &Runner{config: cfg, logger: log}
}

// Run replays candles for one product from a historical database. startTS
// and endTS bound the replay window; zero means unbounded.
func (r *Runner) Run(ctx context.Context, productID, sourceDBPath, timeframe string, startTS, endTS int64) (*Result, error) {
	sourceDB, err := storage.NewDatabase(sourceDBPath)
	if err != nil {
		return nil, fmt.Errorf("open source database: %w", err)
	}
	source := storage.NewRepository(sourceDB)

	btDB, err := storage.NewMemoryDatabase()
	if err != nil {
		return nil, fmt.Errorf("open backtest database: %w", err)
	}
	btRepo := storage.NewRepository(btDB)

	technical := analysis.NewTechnicalAnalyzer(r.config.Technical)
	sentiment := analysis.NewSentimentAnalyzer(r.config.Sentiment)
	engine := strategy.NewEngine(r.config.Strategy.MinConfidence)
	trader, err := trading.NewPaperTrader(btRepo, r.config, r.logger)
	if err != nil {
		return nil, fmt.Errorf("create paper trader: %w", err)
	}

	candles, err := source.GetCandles(productID, timeframe, 10000, startTS)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if endTS > 0 {
		trimmed := candles[:0]
		for _, c := range candles {
			if c.Timestamp <= endTS {
				trimmed = append(trimmed, c)
			}
		}
		candles = trimmed
	}

	asset := exchange.BaseAsset(productID)
	socialRecords, err := source.GetSocialRecords(asset, 10000, startTS)
	if err != nil {
		return nil, fmt.Errorf("load social records: %w", err)
	}

	r.logger.Info("backtesting", "product", productID, "candles", len(candles))

	// Warm-up period before the first evaluation.
	minCandles := technical.MinCandles() + 5

	for i := minCandles; i < len(candles); i++ {
		window := candles[:i+1]
		currentPrice := window[len(window)-1].Close
		currentTS := window[len(window)-1].Timestamp

		tech, err := technical.Compute(window)
		if err != nil {
			continue
		}

		sent := sentiment.Analyze(socialUpTo(socialRecords, currentTS, 50))
		decision := engine.Evaluate(productID, tech, sent)

		switch decision.Action {
		case strategy.ActionBuy:
			if _, err := trader.ExecuteBuy(ctx, productID, currentPrice, nil); err != nil {
				return nil, fmt.Errorf("replay buy: %w", err)
			}
		case strategy.ActionSell:
			if _, err := trader.ExecuteSell(ctx, productID, currentPrice, 0, nil); err != nil {
				return nil, fmt.Errorf("replay sell: %w", err)
			}
		}

		if _, err := trader.CheckStopLossTakeProfit(ctx, map[string]float64{productID: currentPrice}); err != nil {
			return nil, fmt.Errorf("replay stop-loss sweep: %w", err)
		}
	}

	// Liquidate whatever is still open at the final price.
	if len(candles) > 0 {
		finalPrice := candles[len(candles)-1].Close
		positions, err := btRepo.GetOpenPositions()
		if err != nil {
			return nil, fmt.Errorf("load open positions: %w", err)
		}
		for _, pos := range positions {
			if pos.Asset != asset {
				continue
			}
			if _, err := trader.ExecuteSell(ctx, productID, finalPrice, 0, nil); err != nil {
				return nil, fmt.Errorf("liquidate position: %w", err)
			}
		}
	}

	trades, err := btRepo.GetTrades("", "paper", 10000)
	if err != nil {
		return nil, fmt.Errorf("load backtest trades: %w", err)
	}

	endingBalance, err := trader.PortfolioValue()
	if err != nil {
		return nil, fmt.Errorf("compute ending balance: %w", err)
	}

	return &Result{
		StartingBalance: r.config.Execution.PaperStartingBalance,
		EndingBalance:   endingBalance,
		Trades:          trades,
	}, nil
}

// socialUpTo returns up to limit records at or before ts. Records arrive
// sorted by timestamp ascending.
func socialUpTo(records []storage.SocialRecord, ts int64, limit int) []storage.SocialRecord {
	end := len(records)
	for end > 0 && records[end-1].Timestamp > ts {
		end--
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	return records[start:end]
}
