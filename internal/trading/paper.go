package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/exchange"
	"github.com/mvessey/crowd-trader/internal/logger"
	"github.com/mvessey/crowd-trader/internal/storage"
)

const modePaper = "paper"

// PaperTrader simulates execution against the virtual portfolio ledger.
// It is the exclusive writer of positions and paper trades.
type PaperTrader struct {
	repo   *storage.Repository
	logger *logger.Logger

	startingBalance float64
	maxPositionPct  float64 // fraction, e.g. 0.05
	stopLossPct     float64
	takeProfitPct   float64
	maxDailyLossPct float64
	cooldown        time.Duration
	maxConcurrent   int
}

func NewPaperTrader(repo *storage.Repository, cfg *config.Config, log *logger.Logger) (*PaperTrader, error) {
	t := &PaperTrader{
		repo:            repo,
		logger:          log,
		startingBalance: cfg.Execution.PaperStartingBalance,
		maxPositionPct:  cfg.Risk.MaxPositionPct / 100,
		stopLossPct:     cfg.Risk.StopLossPct / 100,
		takeProfitPct:   cfg.Risk.TakeProfitPct / 100,
		maxDailyLossPct: cfg.Risk.MaxDailyLossPct / 100,
		cooldown:        cfg.Cooldown(),
		maxConcurrent:   cfg.Risk.MaxConcurrentPositions,
	}
	if err := t.ensureCashPosition(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *PaperTrader) ensureCashPosition() error {
	cash, err := t.repo.GetPosition(storage.CashAsset)
	if err != nil {
		return fmt.Errorf("read cash position: %w", err)
	}
	if cash != nil {
		return nil
	}
	return t.repo.UpsertPosition(&storage.PortfolioPosition{
		Asset:         storage.CashAsset,
		Quantity:      t.startingBalance,
		AvgEntryPrice: 1.0,
		CurrentPrice:  1.0,
	})
}

// Balance returns the available cash.
func (t *PaperTrader) Balance() (float64, error) {
	cash, err := t.repo.GetPosition(storage.CashAsset)
	if err != nil {
		return 0, err
	}
	if cash == nil {
		return 0, nil
	}
	return cash.Quantity, nil
}

// PortfolioValue is cash plus every open position at its last known price.
func (t *PaperTrader) PortfolioValue() (float64, error) {
	total, err := t.Balance()
	if err != nil {
		return 0, err
	}
	positions, err := t.repo.GetOpenPositions()
	if err != nil {
		return 0, err
	}
	for _, p := range positions {
		total += p.Quantity * p.CurrentPrice
	}
	return total, nil
}

// CheckRiskLimits applies the pre-trade gates: concurrency cap for new
// assets, the daily loss cap, and the per-product cooldown.
func (t *PaperTrader) CheckRiskLimits(productID string) (RiskCheck, error) {
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

	midnight := time.Now().UTC().Truncate(24 * time.Hour).Unix()
	todayPnL, err := t.repo.RealizedPnLSince(midnight, modePaper)
	if err != nil {
		return deny("storage error"), err
	}
	value, err := t.PortfolioValue()
	if err != nil {
		return deny("storage error"), err
	}
	if todayPnL < -(value * t.maxDailyLossPct) {
		return deny("daily loss limit reached"), nil
	}

	last, err := t.repo.LastTrade(productID, modePaper)
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

// positionSize caps the spend at maxPositionPct of portfolio value, bounded
// by available cash.
func (t *PaperTrader) positionSize(price float64) (float64, error) {
	if price <= 0 {
		return 0, nil
	}
	value, err := t.PortfolioValue()
	if err != nil {
		return 0, err
	}
	cash, err := t.Balance()
	if err != nil {
		return 0, err
	}
	spend := value * t.maxPositionPct
	if cash < spend {
		spend = cash
	}
	return spend / price, nil
}

// ExecuteBuy runs the risk gates, then debits cash and credits the position
// at a volume-weighted average entry price. Returns nil when any gate blocks
// the order.
func (t *PaperTrader) ExecuteBuy(ctx context.Context, productID string, price float64, signalID *uint) (*storage.Trade, error) {
	check, err := t.CheckRiskLimits(productID)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		t.logger.Warn("buy blocked", "product", productID, "reason", check.Reason)
		return nil, nil
	}

	quantity, err := t.positionSize(price)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		t.logger.Warn("buy skipped: insufficient balance", "product", productID)
		return nil, nil
	}

	total := quantity * price
	now := time.Now().UTC().Unix()
	asset := exchange.BaseAsset(productID)

	trade := &storage.Trade{
		ProductID:     productID,
		Side:          "buy",
		OrderType:     "market",
		Price:         price,
		Quantity:      quantity,
		Total:         total,
		Timestamp:     now,
		SignalID:      signalID,
		ExecutionMode: modePaper,
		OrderID:       fmt.Sprintf("paper-%d", now),
		Status:        "filled",
	}
	if err := t.repo.SaveTrade(trade); err != nil {
		return nil, fmt.Errorf("save trade: %w", err)
	}

	cash, err := t.Balance()
	if err != nil {
		return nil, err
	}
	if err := t.setCash(cash - total); err != nil {
		return nil, err
	}

	existing, err := t.repo.GetPosition(asset)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Quantity > 0 {
		newQty := existing.Quantity + quantity
		newAvg := (existing.Quantity*existing.AvgEntryPrice + quantity*price) / newQty
		existing.Quantity = newQty
		existing.AvgEntryPrice = newAvg
		existing.CurrentPrice = price
		if err := t.repo.UpsertPosition(existing); err != nil {
			return nil, err
		}
	} else {
		pos := &storage.PortfolioPosition{
			Asset:         asset,
			Quantity:      quantity,
			AvgEntryPrice: price,
			CurrentPrice:  price,
		}
		if existing != nil {
			pos.RealizedPnL = existing.RealizedPnL
		}
		if err := t.repo.UpsertPosition(pos); err != nil {
			return nil, err
		}
	}

	t.logger.Info("paper buy", "asset", asset, "quantity", quantity, "price", price, "total", total)
	return trade, nil
}

// ExecuteSell sells up to the held quantity and realizes P&L against the
// volume-weighted entry price. Partial sells keep the entry price; a full
// liquidation resets the position to flat.
func (t *PaperTrader) ExecuteSell(ctx context.Context, productID string, price float64, quantity float64, signalID *uint) (*storage.Trade, error) {
	asset := exchange.BaseAsset(productID)

	position, err := t.repo.GetPosition(asset)
	if err != nil {
		return nil, err
	}
	if position == nil || position.Quantity <= 0 {
		t.logger.Warn("sell skipped: no open position", "asset", asset)
		return nil, nil
	}

	sellQty := quantity
	if sellQty <= 0 || sellQty > position.Quantity {
		sellQty = position.Quantity
	}

	total := sellQty * price
	realized := (price - position.AvgEntryPrice) * sellQty
	now := time.Now().UTC().Unix()

	trade := &storage.Trade{
		ProductID:     productID,
		Side:          "sell",
		OrderType:     "market",
		Price:         price,
		Quantity:      sellQty,
		Total:         total,
		Timestamp:     now,
		SignalID:      signalID,
		ExecutionMode: modePaper,
		OrderID:       fmt.Sprintf("paper-%d", now),
		Status:        "filled",
		RealizedPnL:   realized,
	}
	if err := t.repo.SaveTrade(trade); err != nil {
		return nil, fmt.Errorf("save trade: %w", err)
	}

	cash, err := t.Balance()
	if err != nil {
		return nil, err
	}
	if err := t.setCash(cash + total); err != nil {
		return nil, err
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

	t.logger.Info("paper sell",
		"asset", asset, "quantity", sellQty, "price", price, "realized_pnl", realized)
	return trade, nil
}

// CheckStopLossTakeProfit exits any position whose price moved beyond the
// stop-loss or take-profit band, and refreshes the mark price of the rest.
func (t *PaperTrader) CheckStopLossTakeProfit(ctx context.Context, prices map[string]float64) ([]storage.Trade, error) {
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

func (t *PaperTrader) setCash(amount float64) error {
	return t.repo.UpsertPosition(&storage.PortfolioPosition{
		Asset:         storage.CashAsset,
		Quantity:      amount,
		AvgEntryPrice: 1.0,
		CurrentPrice:  1.0,
	})
}
