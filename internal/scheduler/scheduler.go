package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mvessey/crowd-trader/internal/analysis"
	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/exchange"
	"github.com/mvessey/crowd-trader/internal/logger"
	"github.com/mvessey/crowd-trader/internal/social"
	"github.com/mvessey/crowd-trader/internal/storage"
	"github.com/mvessey/crowd-trader/internal/strategy"
	"github.com/mvessey/crowd-trader/internal/telegram"
	"github.com/mvessey/crowd-trader/internal/trading"
)

const candleFetchLimit = 200

// Scheduler drives the three recurring jobs: candle fetching, social
// polling and the analysis/execution cycle.
type Scheduler struct {
	market    *exchange.MarketData
	social    *social.Aggregator
	technical *analysis.TechnicalAnalyzer
	sentiment *analysis.SentimentAnalyzer
	engine    *strategy.Engine
	trader    trading.Trader
	repo      *storage.Repository
	notifier  *telegram.Notifier
	prices    *exchange.PriceCache
	config    *config.Config
	logger    *logger.Logger
}

func NewScheduler(
	market *exchange.MarketData,
	socialAgg *social.Aggregator,
	trader trading.Trader,
	repo *storage.Repository,
	notifier *telegram.Notifier,
	prices *exchange.PriceCache,
	cfg *config.Config,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		market:    market,
		social:    socialAgg,
		technical: analysis.NewTechnicalAnalyzer(cfg.Technical),
		sentiment: analysis.NewSentimentAnalyzer(cfg.Sentiment),
		engine:    strategy.NewEngine(cfg.Strategy.MinConfidence),
		trader:    trader,
		repo:      repo,
		notifier:  notifier,
		prices:    prices,
		config:    cfg,
		logger:    log,
	}
}

func (s *Scheduler) primaryTimeframe() string {
	if len(s.config.Timeframes) > 0 {
		return s.config.Timeframes[0]
	}
	return "1h"
}

// Run blocks until ctx is cancelled. All three jobs fire once on startup so
// the first analysis cycle has data to work with.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		"candle_fetch", s.config.CandleFetchInterval().String(),
		"social_poll", s.config.SocialPollInterval().String(),
		"analysis_cycle", s.config.AnalysisInterval().String())

	s.fetchMarketData(ctx)
	s.fetchSocialData(ctx)
	s.runAnalysisCycle(ctx)

	candleTicker := time.NewTicker(s.config.CandleFetchInterval())
	defer candleTicker.Stop()
	socialTicker := time.NewTicker(s.config.SocialPollInterval())
	defer socialTicker.Stop()
	analysisTicker := time.NewTicker(s.config.AnalysisInterval())
	defer analysisTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-candleTicker.C:
			s.fetchMarketData(ctx)
		case <-socialTicker.C:
			s.fetchSocialData(ctx)
		case <-analysisTicker.C:
			s.runAnalysisCycle(ctx)
		}
	}
}

// fetchMarketData pulls candles for every watchlist product and timeframe.
func (s *Scheduler) fetchMarketData(ctx context.Context) {
	defer s.recoverJob("market data")

	for _, productID := range s.config.Watchlist {
		for _, tf := range s.config.Timeframes {
			candles, err := s.market.GetCandles(ctx, productID, tf, candleFetchLimit)
			if err != nil {
				s.logger.Error("fetch candles", "product", productID, "timeframe", tf, "error", err)
				continue
			}
			if err := s.repo.UpsertCandles(productID, tf, candles); err != nil {
				s.logger.Error("store candles", "product", productID, "timeframe", tf, "error", err)
				continue
			}
			s.logger.Debug("stored candles", "product", productID, "timeframe", tf, "count", len(candles))
		}
	}
}

// fetchSocialData aggregates all social sources for the watchlist.
func (s *Scheduler) fetchSocialData(ctx context.Context) {
	defer s.recoverJob("social data")

	records := s.social.FetchWatchlist(ctx, s.config.Watchlist)
	if len(records) == 0 {
		return
	}
	if err := s.repo.UpsertSocialRecords(records); err != nil {
		s.logger.Error("store social records", "error", err)
		return
	}
	s.logger.Info("stored social data", "assets", len(records))
}

// runAnalysisCycle evaluates every watchlist product and executes actionable
// decisions, then sweeps open positions for stop-loss and take-profit exits.
func (s *Scheduler) runAnalysisCycle(ctx context.Context) {
	defer s.recoverJob("analysis cycle")

	prices := make(map[string]float64)

	for _, productID := range s.config.Watchlist {
		if err := s.analyzeProduct(ctx, productID, prices); err != nil {
			s.logger.Error("analysis failed", "product", productID, "error", err)
		}
	}

	if len(prices) > 0 {
		exits, err := s.trader.CheckStopLossTakeProfit(ctx, prices)
		if err != nil {
			s.logger.Error("stop-loss/take-profit sweep", "error", err)
		}
		for _, trade := range exits {
			s.notifier.NotifySell(trade.ProductID, trade.Price, trade.Quantity, trade.RealizedPnL)
		}
	}

	s.updateDailyPnL()
}

func (s *Scheduler) analyzeProduct(ctx context.Context, productID string, prices map[string]float64) error {
	candles, err := s.repo.GetCandles(productID, s.primaryTimeframe(), candleFetchLimit, 0)
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}
	if len(candles) == 0 {
		s.logger.Warn("no candle data, skipping", "product", productID)
		return nil
	}

	tech, err := s.technical.Compute(candles)
	if err != nil {
		if errors.Is(err, analysis.ErrInsufficientData) {
			s.logger.Warn("insufficient candle data, skipping", "product", productID, "have", len(candles))
			return nil
		}
		return fmt.Errorf("technical analysis: %w", err)
	}

	price := candles[len(candles)-1].Close
	prices[productID] = price
	// Prefer the streamed price for exit checks when it is fresher than the
	// last candle close.
	if s.prices != nil {
		if live, ok := s.prices.Get(productID); ok {
			prices[productID] = live
		}
	}

	asset := exchange.BaseAsset(productID)
	socialRecords, err := s.repo.GetSocialRecords(asset, 50, 0)
	if err != nil {
		return fmt.Errorf("load social records: %w", err)
	}
	sentiment := s.sentiment.Analyze(socialRecords)

	decision := s.engine.Evaluate(productID, tech, sentiment)
	s.logger.Info("decision",
		"product", productID,
		"action", decision.Action,
		"confidence", fmt.Sprintf("%.2f", decision.Confidence),
		"reasoning", decision.Reasoning)

	record := &storage.SignalRecord{
		ProductID:  productID,
		Timestamp:  decision.Timestamp,
		Strategy:   "combined",
		Action:     string(decision.Action),
		Confidence: decision.Confidence,
		Reasoning:  decision.Reasoning,
		Metadata:   signalMetadata(tech, sentiment),
	}
	if err := s.repo.SaveSignal(record); err != nil {
		return fmt.Errorf("save signal: %w", err)
	}

	if strings.HasPrefix(decision.Reasoning, "BLOCKED by hype filter:") {
		s.notifier.NotifyHypeBlock(productID, decision.Reasoning)
		return nil
	}

	switch decision.Action {
	case strategy.ActionBuy:
		trade, err := s.trader.ExecuteBuy(ctx, productID, price, &record.ID)
		if err != nil {
			return fmt.Errorf("execute buy: %w", err)
		}
		if trade != nil {
			s.notifier.NotifyBuy(productID, trade.Price, trade.Quantity, decision.Confidence)
		}
	case strategy.ActionSell:
		trade, err := s.trader.ExecuteSell(ctx, productID, price, 0, &record.ID)
		if err != nil {
			return fmt.Errorf("execute sell: %w", err)
		}
		if trade != nil {
			s.notifier.NotifySell(productID, trade.Price, trade.Quantity, trade.RealizedPnL)
		}
	}
	return nil
}

func signalMetadata(tech *analysis.TechSnapshot, sentiment analysis.SentimentSnapshot) string {
	meta := map[string]any{"tech": tech, "sentiment": sentiment}
	data, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(data)
}

// updateDailyPnL upserts today's summary row. The starting balance is only
// written on first insert, so intraday updates keep the morning value.
func (s *Scheduler) updateDailyPnL() {
	positions, err := s.repo.GetPortfolio()
	if err != nil {
		s.logger.Error("load portfolio for daily pnl", "error", err)
		return
	}

	var value float64
	for _, pos := range positions {
		if pos.Asset == storage.CashAsset {
			value += pos.Quantity
			continue
		}
		value += pos.Quantity * pos.CurrentPrice
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Unix()
	mode := s.config.Execution.Mode

	realized, err := s.repo.RealizedPnLSince(midnight, mode)
	if err != nil {
		s.logger.Error("realized pnl for daily summary", "error", err)
		return
	}
	trades, err := s.repo.GetTradesSince(midnight, mode)
	if err != nil {
		s.logger.Error("trades for daily summary", "error", err)
		return
	}

	row := &storage.DailyPnL{
		Date:            now.Format("2006-01-02"),
		StartingBalance: value - realized,
		EndingBalance:   value,
		RealizedPnL:     realized,
		TradeCount:      len(trades),
	}
	if err := s.repo.RecordDailyPnL(row); err != nil {
		s.logger.Error("record daily pnl", "error", err)
	}
}

func (s *Scheduler) recoverJob(name string) {
	if r := recover(); r != nil {
		s.logger.Error("panic in scheduled job", "job", name, "panic", fmt.Sprint(r))
		s.notifier.NotifyError(name+" panic", fmt.Errorf("%v", r))
	}
}
