package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := NewMemoryDatabase()
	require.NoError(t, err)
	return NewRepository(db)
}

func candleAt(ts int64, close float64) Candle {
	return Candle{
		Timestamp: ts,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    100,
	}
}

func TestUpsertCandlesIdempotent(t *testing.T) {
	repo := newTestRepo(t)

	batch := []Candle{candleAt(1000, 50), candleAt(2000, 51), candleAt(3000, 52)}
	require.NoError(t, repo.UpsertCandles("BTC-USD", "1h", batch))

	// Same timestamps with a corrected close must overwrite, not duplicate.
	corrected := []Candle{candleAt(2000, 99)}
	require.NoError(t, repo.UpsertCandles("BTC-USD", "1h", corrected))

	candles, err := repo.GetCandles("BTC-USD", "1h", 10, 0)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, 99.0, candles[1].Close)
}

func TestGetCandlesOrdering(t *testing.T) {
	repo := newTestRepo(t)

	batch := []Candle{candleAt(3000, 52), candleAt(1000, 50), candleAt(2000, 51)}
	require.NoError(t, repo.UpsertCandles("BTC-USD", "1h", batch))

	t.Run("latest window ascending", func(t *testing.T) {
		candles, err := repo.GetCandles("BTC-USD", "1h", 2, 0)
		require.NoError(t, err)
		require.Len(t, candles, 2)
		assert.Equal(t, int64(2000), candles[0].Timestamp)
		assert.Equal(t, int64(3000), candles[1].Timestamp)
	})

	t.Run("since lower bound", func(t *testing.T) {
		candles, err := repo.GetCandles("BTC-USD", "1h", 10, 2000)
		require.NoError(t, err)
		require.Len(t, candles, 2)
		assert.Equal(t, int64(2000), candles[0].Timestamp)
	})

	t.Run("timeframes are isolated", func(t *testing.T) {
		candles, err := repo.GetCandles("BTC-USD", "4h", 10, 0)
		require.NoError(t, err)
		assert.Empty(t, candles)
	})
}

func TestUpsertSocialRecords(t *testing.T) {
	repo := newTestRepo(t)

	gs := 60.0
	records := []SocialRecord{
		{Asset: "BTC", Timestamp: 1000, Sentiment: 3.0, SocialVolume: 100},
		{Asset: "BTC", Timestamp: 2000, Sentiment: 3.5, SocialVolume: 150, GalaxyScore: &gs},
		{Asset: "ETH", Timestamp: 2000, Sentiment: 2.0, SocialVolume: 50},
	}
	require.NoError(t, repo.UpsertSocialRecords(records))

	// Re-poll of the same timestamp updates in place.
	require.NoError(t, repo.UpsertSocialRecords([]SocialRecord{
		{Asset: "BTC", Timestamp: 2000, Sentiment: 4.0, SocialVolume: 160},
	}))

	got, err := repo.GetSocialRecords("BTC", 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 4.0, got[1].Sentiment)
	assert.Nil(t, got[1].GalaxyScore, "update clears stale galaxy score")
}

func TestTradeQueries(t *testing.T) {
	repo := newTestRepo(t)

	trades := []Trade{
		{ProductID: "BTC-USD", Side: "buy", OrderType: "market", Price: 100, Quantity: 1, Total: 100, Timestamp: 1000, ExecutionMode: "paper", Status: "filled"},
		{ProductID: "BTC-USD", Side: "sell", OrderType: "market", Price: 110, Quantity: 1, Total: 110, Timestamp: 2000, ExecutionMode: "paper", Status: "filled", RealizedPnL: 10},
		{ProductID: "ETH-USD", Side: "sell", OrderType: "market", Price: 90, Quantity: 1, Total: 90, Timestamp: 3000, ExecutionMode: "paper", Status: "filled", RealizedPnL: -4},
		{ProductID: "BTC-USD", Side: "buy", OrderType: "market", Price: 105, Quantity: 1, Total: 105, Timestamp: 4000, ExecutionMode: "live", Status: "pending"},
	}
	for i := range trades {
		require.NoError(t, repo.SaveTrade(&trades[i]))
	}

	t.Run("last trade per mode", func(t *testing.T) {
		last, err := repo.LastTrade("BTC-USD", "paper")
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, int64(2000), last.Timestamp)

		none, err := repo.LastTrade("SOL-USD", "paper")
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("realized pnl sums sells only", func(t *testing.T) {
		total, err := repo.RealizedPnLSince(0, "paper")
		require.NoError(t, err)
		assert.InDelta(t, 6.0, total, 1e-9)

		total, err = repo.RealizedPnLSince(2500, "paper")
		require.NoError(t, err)
		assert.InDelta(t, -4.0, total, 1e-9)
	})

	t.Run("mode filter", func(t *testing.T) {
		paper, err := repo.GetTrades("", "paper", 10)
		require.NoError(t, err)
		assert.Len(t, paper, 3)

		live, err := repo.GetTrades("BTC-USD", "live", 10)
		require.NoError(t, err)
		assert.Len(t, live, 1)
	})
}

func TestPositionLedger(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.UpsertPosition(&PortfolioPosition{Asset: CashAsset, Quantity: 10000, AvgEntryPrice: 1, CurrentPrice: 1}))
	require.NoError(t, repo.UpsertPosition(&PortfolioPosition{Asset: "BTC", Quantity: 0.5, AvgEntryPrice: 40000, CurrentPrice: 41000}))
	require.NoError(t, repo.UpsertPosition(&PortfolioPosition{Asset: "ETH", Quantity: 0, AvgEntryPrice: 0}))

	t.Run("upsert keys on asset", func(t *testing.T) {
		loaded, err := repo.GetPosition("BTC")
		require.NoError(t, err)
		require.NotNil(t, loaded)

		loaded.Quantity = 0.75
		require.NoError(t, repo.UpsertPosition(loaded))

		again, err := repo.GetPosition("BTC")
		require.NoError(t, err)
		assert.Equal(t, 0.75, again.Quantity)

		all, err := repo.GetPortfolio()
		require.NoError(t, err)
		assert.Len(t, all, 3, "no duplicate rows")
	})

	t.Run("open positions exclude cash and flat", func(t *testing.T) {
		open, err := repo.GetOpenPositions()
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "BTC", open[0].Asset)
	})

	t.Run("missing position is nil", func(t *testing.T) {
		pos, err := repo.GetPosition("DOGE")
		require.NoError(t, err)
		assert.Nil(t, pos)
	})
}

func TestDailyPnLUpsert(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.RecordDailyPnL(&DailyPnL{
		Date: "2026-08-30", StartingBalance: 10000, EndingBalance: 10000,
	}))
	require.NoError(t, repo.RecordDailyPnL(&DailyPnL{
		Date: "2026-08-30", StartingBalance: 9999, EndingBalance: 10100, RealizedPnL: 100, TradeCount: 2,
	}))

	rows, err := repo.GetDailyPnL(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// The on-conflict update keeps the original starting balance.
	assert.Equal(t, 10000.0, rows[0].StartingBalance)
	assert.Equal(t, 10100.0, rows[0].EndingBalance)
	assert.Equal(t, 2, rows[0].TradeCount)
}

func TestSignalLog(t *testing.T) {
	repo := newTestRepo(t)

	now := time.Now().Unix()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.SaveSignal(&SignalRecord{
			ProductID:  "BTC-USD",
			Timestamp:  now + int64(i),
			Strategy:   "combined",
			Action:     "hold",
			Confidence: 0.1 * float64(i),
		}))
	}

	signals, err := repo.GetRecentSignals(2)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, now+2, signals[0].Timestamp, "newest first")
}
