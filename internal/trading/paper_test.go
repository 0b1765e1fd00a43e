package trading

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/logger"
	"github.com/mvessey/crowd-trader/internal/storage"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.SetDefaults(cfg)
	return cfg
}

func newTestTrader(t *testing.T, cfg *config.Config) (*PaperTrader, *storage.Repository) {
	t.Helper()

	db, err := storage.NewMemoryDatabase()
	require.NoError(t, err)
	repo := storage.NewRepository(db)

	trader, err := NewPaperTrader(repo, cfg, logger.New("error"))
	require.NoError(t, err)
	return trader, repo
}

func TestPaperTraderStartingBalance(t *testing.T) {
	trader, _ := newTestTrader(t, testConfig())

	balance, err := trader.Balance()
	require.NoError(t, err)
	assert.Equal(t, 10000.0, balance)

	value, err := trader.PortfolioValue()
	require.NoError(t, err)
	assert.Equal(t, 10000.0, value)
}

func TestPaperBuySellRoundTrip(t *testing.T) {
	trader, repo := newTestTrader(t, testConfig())
	ctx := context.Background()

	buy, err := trader.ExecuteBuy(ctx, "BTC-USD", 100, nil)
	require.NoError(t, err)
	require.NotNil(t, buy)

	// 5% of a 10k portfolio at $100.
	assert.Equal(t, 5.0, buy.Quantity)
	assert.Equal(t, 500.0, buy.Total)
	assert.Equal(t, "buy", buy.Side)
	assert.Equal(t, "paper", buy.ExecutionMode)

	balance, err := trader.Balance()
	require.NoError(t, err)
	assert.Equal(t, 9500.0, balance)

	pos, err := repo.GetPosition("BTC")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 5.0, pos.Quantity)
	assert.Equal(t, 100.0, pos.AvgEntryPrice)

	sell, err := trader.ExecuteSell(ctx, "BTC-USD", 110, 0, nil)
	require.NoError(t, err)
	require.NotNil(t, sell)
	assert.Equal(t, 5.0, sell.Quantity)
	assert.InDelta(t, 50.0, sell.RealizedPnL, 1e-9)

	balance, err = trader.Balance()
	require.NoError(t, err)
	assert.InDelta(t, 10050.0, balance, 1e-9)

	pos, err = repo.GetPosition("BTC")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Zero(t, pos.Quantity)
	assert.Zero(t, pos.AvgEntryPrice)
	assert.InDelta(t, 50.0, pos.RealizedPnL, 1e-9)
}

func TestPaperSellWithoutPosition(t *testing.T) {
	trader, _ := newTestTrader(t, testConfig())

	trade, err := trader.ExecuteSell(context.Background(), "ETH-USD", 2000, 0, nil)
	require.NoError(t, err)
	assert.Nil(t, trade)
}

func TestPaperPartialSellKeepsEntryPrice(t *testing.T) {
	trader, repo := newTestTrader(t, testConfig())
	ctx := context.Background()

	_, err := trader.ExecuteBuy(ctx, "BTC-USD", 100, nil)
	require.NoError(t, err)

	sell, err := trader.ExecuteSell(ctx, "BTC-USD", 120, 2, nil)
	require.NoError(t, err)
	require.NotNil(t, sell)
	assert.Equal(t, 2.0, sell.Quantity)
	assert.InDelta(t, 40.0, sell.RealizedPnL, 1e-9)

	pos, err := repo.GetPosition("BTC")
	require.NoError(t, err)
	assert.Equal(t, 3.0, pos.Quantity)
	assert.Equal(t, 100.0, pos.AvgEntryPrice)
	assert.InDelta(t, 60.0, pos.UnrealizedPnL, 1e-9)
}

func TestPaperBuyAveragesEntryPrice(t *testing.T) {
	cfg := testConfig()
	cfg.Risk.CooldownMinutes = 0
	trader, repo := newTestTrader(t, cfg)
	ctx := context.Background()

	_, err := trader.ExecuteBuy(ctx, "BTC-USD", 100, nil)
	require.NoError(t, err)
	second, err := trader.ExecuteBuy(ctx, "BTC-USD", 200, nil)
	require.NoError(t, err)
	require.NotNil(t, second)

	pos, err := repo.GetPosition("BTC")
	require.NoError(t, err)
	assert.InDelta(t, 7.5, pos.Quantity, 1e-9)
	// (5*100 + 2.5*200) / 7.5
	assert.InDelta(t, 1000.0/7.5, pos.AvgEntryPrice, 1e-9)
}

func TestPaperCooldownBlocksReentry(t *testing.T) {
	trader, _ := newTestTrader(t, testConfig())
	ctx := context.Background()

	first, err := trader.ExecuteBuy(ctx, "BTC-USD", 100, nil)
	require.NoError(t, err)
	require.NotNil(t, first)

	check, err := trader.CheckRiskLimits("BTC-USD")
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Contains(t, check.Reason, "cooldown")

	second, err := trader.ExecuteBuy(ctx, "BTC-USD", 100, nil)
	require.NoError(t, err)
	assert.Nil(t, second, "blocked order is not an error")
}

func TestPaperMaxConcurrentPositions(t *testing.T) {
	trader, _ := newTestTrader(t, testConfig())
	ctx := context.Background()

	for _, pid := range []string{"BTC-USD", "ETH-USD", "SOL-USD"} {
		trade, err := trader.ExecuteBuy(ctx, pid, 100, nil)
		require.NoError(t, err)
		require.NotNil(t, trade, pid)
	}

	check, err := trader.CheckRiskLimits("ADA-USD")
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Contains(t, check.Reason, "max concurrent positions")

	trade, err := trader.ExecuteBuy(ctx, "ADA-USD", 1, nil)
	require.NoError(t, err)
	assert.Nil(t, trade)
}

func TestPaperDailyLossLimit(t *testing.T) {
	trader, _ := newTestTrader(t, testConfig())
	ctx := context.Background()

	_, err := trader.ExecuteBuy(ctx, "BTC-USD", 100, nil)
	require.NoError(t, err)
	// Realize a 90% loss, far past the 3% daily cap.
	sell, err := trader.ExecuteSell(ctx, "BTC-USD", 10, 0, nil)
	require.NoError(t, err)
	require.NotNil(t, sell)

	check, err := trader.CheckRiskLimits("ETH-USD")
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, "daily loss limit reached", check.Reason)
}

func TestPaperStopLoss(t *testing.T) {
	trader, repo := newTestTrader(t, testConfig())
	ctx := context.Background()

	_, err := trader.ExecuteBuy(ctx, "BTC-USD", 100, nil)
	require.NoError(t, err)

	// -6% breaches the 5% stop.
	exits, err := trader.CheckStopLossTakeProfit(ctx, map[string]float64{"BTC-USD": 94})
	require.NoError(t, err)
	require.Len(t, exits, 1)
	assert.Equal(t, "sell", exits[0].Side)
	assert.InDelta(t, -30.0, exits[0].RealizedPnL, 1e-9)

	pos, err := repo.GetPosition("BTC")
	require.NoError(t, err)
	assert.Zero(t, pos.Quantity)

	// The position is flat, a second sweep must not sell again.
	exits, err = trader.CheckStopLossTakeProfit(ctx, map[string]float64{"BTC-USD": 94})
	require.NoError(t, err)
	assert.Empty(t, exits)
}

func TestPaperTakeProfit(t *testing.T) {
	trader, _ := newTestTrader(t, testConfig())
	ctx := context.Background()

	_, err := trader.ExecuteBuy(ctx, "BTC-USD", 100, nil)
	require.NoError(t, err)

	// +16% clears the 15% target.
	exits, err := trader.CheckStopLossTakeProfit(ctx, map[string]float64{"BTC-USD": 116})
	require.NoError(t, err)
	require.Len(t, exits, 1)
	assert.InDelta(t, 80.0, exits[0].RealizedPnL, 1e-9)

	balance, err := trader.Balance()
	require.NoError(t, err)
	assert.InDelta(t, 10080.0, balance, 1e-9)
}

func TestPaperMarkToMarketInsideBand(t *testing.T) {
	trader, repo := newTestTrader(t, testConfig())
	ctx := context.Background()

	_, err := trader.ExecuteBuy(ctx, "BTC-USD", 100, nil)
	require.NoError(t, err)

	exits, err := trader.CheckStopLossTakeProfit(ctx, map[string]float64{"BTC-USD": 102})
	require.NoError(t, err)
	assert.Empty(t, exits)

	pos, err := repo.GetPosition("BTC")
	require.NoError(t, err)
	assert.Equal(t, 102.0, pos.CurrentPrice)
	assert.InDelta(t, 10.0, pos.UnrealizedPnL, 1e-9)
}
