package trading

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/exchange"
	"github.com/mvessey/crowd-trader/internal/logger"
	"github.com/mvessey/crowd-trader/internal/storage"
)

const modeLive = "live"

// LiveTrader places real market orders on Binance. Exchange fills are
// asynchronous, so trades are recorded with status "pending"; the local
// ledger mirrors positions at the quoted price so stop-loss checks and the
// dashboard work the same way as in paper mode.
type LiveTrader struct {
	client *binance.Client
	repo   *storage.Repository
	logger *logger.Logger

	maxPositionPct float64
	stopLossPct    float64
	takeProfitPct  float64
	cooldown       time.Duration
	maxConcurrent  int
}

func NewLiveTrader(repo *storage.Repository, cfg *config.Config, log *logger.Logger) (*LiveTrader, error) {
	if cfg.Binance.APIKey == "" || cfg.Binance.APISecret == "" {
		return nil, fmt.Errorf("binance credentials required for live trading")
	}
	return &LiveTrader{
		client:         binance.NewClient(cfg.Binance.APIKey, cfg.Binance.APISecret),
		repo:           repo,
		logger:         log,
		maxPositionPct: cfg.Risk.MaxPositionPct / 100,
		stopLossPct:    cfg.Risk.StopLossPct / 100,
		takeProfitPct:  cfg.Risk.TakeProfitPct / 100,
		cooldown:       cfg.Cooldown(),
		maxConcurrent:  cfg.Risk.MaxConcurrentPositions,
	}, nil
}

// FreeBalance returns the free exchange balance for an asset.
func (t *LiveTrader) FreeBalance(ctx context.Context, asset string) (float64, error) {
	account, err := t.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch account: %w", err)
	}
	for _, b := range account.Balances {
		if b.Asset == asset {
			free, err := strconv.ParseFloat(b.Free, 64)
			if err != nil {
				return 0, fmt.Errorf("parse balance for %s: %w", asset, err)
			}
			return free, nil
		}
	}
	return 0, nil
}

func (t *LiveTrader) checkRiskLimits(productID string) (RiskCheck, error) {
	asset := exchange.BaseAsset(productID)

	positions, err := t.repo.GetOpenPositions()
	if err != nil {
		return deny("storage error"), err
	}
	if len(positions) >= t.maxConcurrent {
		held := false
		for _, p := range positions {
			if p.Asset == asset {
				held = true
				break
			}
		}
		if !held {
			return deny(fmt.Sprintf("max concurrent positions (%d) reached", t.maxConcurrent)), nil
		}
	}

	last, err := t.repo.LastTrade(productID, modeLive)
	if err != nil {
		return deny("storage error"), err
	}
	if last != nil {
		elapsed := time.Since(time.Unix(last.Timestamp, 0))
		if elapsed < t.cooldown {
			remaining := (t.cooldown - elapsed).Round(time.Minute)
			return deny(fmt.Sprintf("cooldown: %s remaining", remaining)), nil
		}
	}

	return allow(), nil
}

// ExecuteBuy places a quote-sized market buy. Order placement failures are
// logged and produce no trade; they must not abort the rest of the cycle.
func (t *LiveTrader) ExecuteBuy(ctx context.Context, productID string, price float64, signalID *uint) (*storage.Trade, error) {
	check, err := t.checkRiskLimits(productID)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		t.logger.Warn("live buy blocked", "product", productID, "reason", check.Reason)
		return nil, nil
	}
	if price <= 0 {
		t.logger.Error("live buy skipped: invalid price", "product", productID)
		return nil, nil
	}

	quote, err := t.FreeBalance(ctx, "USDT")
	if err != nil {
		t.logger.Error("live buy: balance lookup failed", "error", err)
		return nil, nil
	}

	spend := quote * t.maxPositionPct
	if buffered := quote * 0.95; spend > buffered {
		spend = buffered
	}
	if spend < 1 {
		t.logger.Warn("live buy skipped: insufficient balance", "product", productID, "free_usdt", quote)
		return nil, nil
	}

	order, err := t.client.NewCreateOrderService().
		Symbol(exchange.Symbol(productID)).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(strconv.FormatFloat(spend, 'f', 2, 64)).
		Do(ctx)
	if err != nil {
		t.logger.Error("live buy order failed", "product", productID, "error", err)
		return nil, nil
	}

	now := time.Now().UTC().Unix()
	quantity := spend / price
	trade := &storage.Trade{
		ProductID:     productID,
		Side:          "buy",
		OrderType:     "market",
		Price:         price,
		Quantity:      quantity,
		Total:         spend,
		Timestamp:     now,
		SignalID:      signalID,
		ExecutionMode: modeLive,
		OrderID:       strconv.FormatInt(order.OrderID, 10),
		Status:        "pending",
	}
	if err := t.repo.SaveTrade(trade); err != nil {
		return nil, fmt.Errorf("save trade: %w", err)
	}

	if err := t.mirrorBuy(productID, price, quantity); err != nil {
		return nil, err
	}

	t.logger.Info("live buy placed",
		"product", productID, "spend", spend, "order_id", trade.OrderID)
	return trade, nil
}

// ExecuteSell places a market sell for the held quantity.
func (t *LiveTrader) ExecuteSell(ctx context.Context, productID string, price float64, quantity float64, signalID *uint) (*storage.Trade, error) {
	asset := exchange.BaseAsset(productID)

	position, err := t.repo.GetPosition(asset)
	if err != nil {
		return nil, err
	}
	if position == nil || position.Quantity <= 0 {
		t.logger.Warn("live sell skipped: no open position", "asset", asset)
		return nil, nil
	}

	sellQty := quantity
	if sellQty <= 0 || sellQty > position.Quantity {
		sellQty = position.Quantity
	}

	order, err := t.client.NewCreateOrderService().
		Symbol(exchange.Symbol(productID)).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(sellQty, 'f', 8, 64)).
		Do(ctx)
	if err != nil {
		t.logger.Error("live sell order failed", "product", productID, "error", err)
		return nil, nil
	}

	realized := (price - position.AvgEntryPrice) * sellQty
	now := time.Now().UTC().Unix()
	trade := &storage.Trade{
		ProductID:     productID,
		Side:          "sell",
		OrderType:     "market",
		Price:         price,
		Quantity:      sellQty,
		Total:         sellQty * price,
		Timestamp:     now,
		SignalID:      signalID,
		ExecutionMode: modeLive,
		OrderID:       strconv.FormatInt(order.OrderID, 10),
		Status:        "pending",
		RealizedPnL:   realized,
	}
	if err := t.repo.SaveTrade(trade); err != nil {
		return nil, fmt.Errorf("save trade: %w", err)
	}

	remaining := position.Quantity - sellQty
	position.RealizedPnL += realized
	position.CurrentPrice = price
	if remaining > 0 {
		position.Quantity = remaining
		position.UnrealizedPnL = (price - position.AvgEntryPrice) * remaining
	} else {
		position.Quantity = 0
		position.AvgEntryPrice = 0
		position.UnrealizedPnL = 0
	}
	if err := t.repo.UpsertPosition(position); err != nil {
		return nil, err
	}

	t.logger.Info("live sell placed",
		"product", productID, "quantity", sellQty, "order_id", trade.OrderID, "realized_pnl", realized)
	return trade, nil
}

// CheckStopLossTakeProfit mirrors the paper logic but exits through real
// orders.
func (t *LiveTrader) CheckStopLossTakeProfit(ctx context.Context, prices map[string]float64) ([]storage.Trade, error) {
	positions, err := t.repo.GetOpenPositions()
	if err != nil {
		return nil, err
	}

	var exits []storage.Trade
	for _, position := range positions {
		productID := position.Asset + "-USD"
		price, ok := prices[productID]
		if !ok || position.AvgEntryPrice <= 0 {
			continue
		}

		change := (price - position.AvgEntryPrice) / position.AvgEntryPrice

		switch {
		case change <= -t.stopLossPct:
			t.logger.Warn("stop-loss triggered", "asset", position.Asset, "change_pct", change*100)
			trade, err := t.ExecuteSell(ctx, productID, price, 0, nil)
			if err != nil {
				return exits, err
			}
			if trade != nil {
				exits = append(exits, *trade)
			}
		case change >= t.takeProfitPct:
			t.logger.Info("take-profit triggered", "asset", position.Asset, "change_pct", change*100)
			trade, err := t.ExecuteSell(ctx, productID, price, 0, nil)
			if err != nil {
				return exits, err
			}
			if trade != nil {
				exits = append(exits, *trade)
			}
		default:
			position.CurrentPrice = price
			position.UnrealizedPnL = (price - position.AvgEntryPrice) * position.Quantity
			pos := position
			if err := t.repo.UpsertPosition(&pos); err != nil {
				return exits, err
			}
		}
	}

	return exits, nil
}

func (t *LiveTrader) mirrorBuy(productID string, price, quantity float64) error {
	asset := exchange.BaseAsset(productID)
	existing, err := t.repo.GetPosition(asset)
	if err != nil {
		return err
	}
	if existing != nil && existing.Quantity > 0 {
		newQty := existing.Quantity + quantity
		existing.AvgEntryPrice = (existing.Quantity*existing.AvgEntryPrice + quantity*price) / newQty
		existing.Quantity = newQty
		existing.CurrentPrice = price
		return t.repo.UpsertPosition(existing)
	}
	pos := &storage.PortfolioPosition{
		Asset:         asset,
		Quantity:      quantity,
		AvgEntryPrice: price,
		CurrentPrice:  price,
	}
	if existing != nil {
		pos.RealizedPnL = existing.RealizedPnL
	}
	return t.repo.UpsertPosition(pos)
}
