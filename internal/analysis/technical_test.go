package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/storage"
)

func defaultTechnicalConfig() config.TechnicalConfig {
	return config.TechnicalConfig{
		RSIPeriod:     14,
		RSIOverbought: 70,
		RSIOversold:   30,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		BBPeriod:      20,
		BBStd:         2,
		EMAPeriods:    []int{9, 21, 50},
	}
}

func makeCandles(closes []float64, volumes []float64) []storage.Candle {
	candles := make([]storage.Candle, len(closes))
	for i, c := range closes {
		vol := 1000.0
		if volumes != nil {
			vol = volumes[i]
		}
		candles[i] = storage.Candle{
			ProductID: "BTC-USD",
			Timeframe: "1h",
			Timestamp: int64(1700000000 + i*3600),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    vol,
		}
	}
	return candles
}

// oscillating keeps the series range-bound so no single indicator saturates.
func oscillating(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/4)
	}
	return closes
}

func TestMinCandles(t *testing.T) {
	a := NewTechnicalAnalyzer(defaultTechnicalConfig())
	// max(26+9, 20, 50) + 5
	assert.Equal(t, 55, a.MinCandles())
}

func TestComputeInsufficientData(t *testing.T) {
	a := NewTechnicalAnalyzer(defaultTechnicalConfig())

	candles := makeCandles(oscillating(a.MinCandles()-1), nil)
	snap, err := a.Compute(candles)
	require.ErrorIs(t, err, ErrInsufficientData)
	assert.Nil(t, snap)
}

func TestComputeScoreBounds(t *testing.T) {
	a := NewTechnicalAnalyzer(defaultTechnicalConfig())

	snap, err := a.Compute(makeCandles(oscillating(120), nil))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, snap.RSI, 0.0)
	assert.LessOrEqual(t, snap.RSI, 100.0)

	for name, score := range map[string]float64{
		"rsi":       snap.RSIScore,
		"macd":      snap.MACDScore,
		"bollinger": snap.BBScore,
		"ema":       snap.EMAScore,
		"composite": snap.CompositeScore,
	} {
		assert.GreaterOrEqual(t, score, -1.0, name)
		assert.LessOrEqual(t, score, 1.0, name)
	}

	assert.GreaterOrEqual(t, snap.VolumeScore, 0.0)
	assert.LessOrEqual(t, snap.VolumeScore, 1.0)

	expected := (snap.RSIScore + snap.MACDScore + snap.BBScore + snap.EMAScore) / 4
	assert.InDelta(t, expected, snap.CompositeScore, 1e-9)
}

func TestComputeBollingerOrdering(t *testing.T) {
	a := NewTechnicalAnalyzer(defaultTechnicalConfig())

	snap, err := a.Compute(makeCandles(oscillating(80), nil))
	require.NoError(t, err)

	assert.Greater(t, snap.BBUpper, snap.BBMiddle)
	assert.Greater(t, snap.BBMiddle, snap.BBLower)
}

func TestComputeUptrend(t *testing.T) {
	a := NewTechnicalAnalyzer(defaultTechnicalConfig())

	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	snap, err := a.Compute(makeCandles(closes, nil))
	require.NoError(t, err)

	// A relentless climb leaves RSI overbought and price above every EMA.
	assert.Greater(t, snap.RSI, 70.0)
	assert.Negative(t, snap.RSIScore)
	assert.Positive(t, snap.EMAScore)
	for period, ema := range snap.EMAs {
		assert.Greater(t, closes[len(closes)-1], ema, "ema %d", period)
	}
	// Price rides the upper band.
	assert.Greater(t, snap.BBPctB, 0.5)
	assert.Negative(t, snap.BBScore)
}

func TestComputeSortsUnorderedInput(t *testing.T) {
	a := NewTechnicalAnalyzer(defaultTechnicalConfig())

	candles := makeCandles(oscillating(80), nil)
	sorted, err := a.Compute(candles)
	require.NoError(t, err)

	shuffled := make([]storage.Candle, len(candles))
	copy(shuffled, candles)
	for i := 0; i < len(shuffled)-1; i += 2 {
		shuffled[i], shuffled[i+1] = shuffled[i+1], shuffled[i]
	}
	fromShuffled, err := a.Compute(shuffled)
	require.NoError(t, err)

	assert.Equal(t, sorted, fromShuffled)
}

func TestComputeVolumeRatio(t *testing.T) {
	a := NewTechnicalAnalyzer(defaultTechnicalConfig())

	closes := oscillating(80)
	volumes := make([]float64, len(closes))
	for i := range volumes {
		volumes[i] = 1000
	}
	volumes[len(volumes)-1] = 2900 // 20-SMA becomes 1095

	snap, err := a.Compute(makeCandles(closes, volumes))
	require.NoError(t, err)

	assert.InDelta(t, 2900.0/1095.0, snap.VolumeRatio, 1e-9)
	assert.Equal(t, 1.0, snap.VolumeScore)
}

func TestRSIWilderExtremes(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	assert.Equal(t, 100.0, rsiWilder(up, 14))

	assert.Equal(t, 50.0, rsiWilder(up[:10], 14), "short series defaults to neutral")
}
