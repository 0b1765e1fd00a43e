package analysis

import (
	"errors"
	"math"
	"sort"

	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/storage"
)

// ErrInsufficientData means the candle window is shorter than the indicator
// look-back. Callers skip the cycle for the asset; it is not a neutral signal.
var ErrInsufficientData = errors.New("insufficient candle data")

// TechSnapshot holds normalized indicator scores for one evaluation.
// Directional scores are within [-1, +1]; RSI is the raw 0-100 value;
// VolumeScore is within [0, 1]. CompositeScore is the unweighted mean of
// RSIScore, MACDScore, BBScore and EMAScore — volume is deliberately left out
// of the composite, it acts as a conviction multiplier in the strategies.
type TechSnapshot struct {
	RSI      float64
	RSIScore float64

	MACD          float64
	MACDSignal    float64
	MACDHistogram float64
	MACDScore     float64

	BBUpper  float64
	BBMiddle float64
	BBLower  float64
	BBPctB   float64
	BBScore  float64

	EMAs     map[int]float64
	EMAScore float64

	VolumeSMA   float64
	VolumeRatio float64
	VolumeScore float64

	CompositeScore float64
}

// TechnicalAnalyzer computes indicator scores from an OHLCV window.
// Pure: no I/O, no retained state.
type TechnicalAnalyzer struct {
	cfg config.TechnicalConfig
}

func NewTechnicalAnalyzer(cfg config.TechnicalConfig) *TechnicalAnalyzer {
	return &TechnicalAnalyzer{cfg: cfg}
}

// MinCandles is the smallest window Compute accepts.
func (a *TechnicalAnalyzer) MinCandles() int {
	maxEMA := 0
	for _, p := range a.cfg.EMAPeriods {
		if p > maxEMA {
			maxEMA = p
		}
	}
	min := a.cfg.MACDSlow + a.cfg.MACDSignal
	if a.cfg.BBPeriod > min {
		min = a.cfg.BBPeriod
	}
	if maxEMA > min {
		min = maxEMA
	}
	return min + 5
}

// Compute derives the full indicator snapshot from an ascending candle window.
func (a *TechnicalAnalyzer) Compute(candles []storage.Candle) (*TechSnapshot, error) {
	if len(candles) < a.MinCandles() {
		return nil, ErrInsufficientData
	}

	window := make([]storage.Candle, len(candles))
	copy(window, candles)
	sort.Slice(window, func(i, j int) bool { return window[i].Timestamp < window[j].Timestamp })

	closes := make([]float64, len(window))
	volumes := make([]float64, len(window))
	for i, c := range window {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}
	price := closes[len(closes)-1]

	snap := &TechSnapshot{EMAs: make(map[int]float64, len(a.cfg.EMAPeriods))}

	a.computeRSI(closes, snap)
	a.computeMACD(closes, price, snap)
	a.computeBollinger(closes, price, snap)
	a.computeEMAs(closes, price, snap)
	a.computeVolume(volumes, snap)

	snap.CompositeScore = (snap.RSIScore + snap.MACDScore + snap.BBScore + snap.EMAScore) / 4

	return snap, nil
}

func (a *TechnicalAnalyzer) computeRSI(closes []float64, snap *TechSnapshot) {
	rsi := rsiWilder(closes, a.cfg.RSIPeriod)
	snap.RSI = rsi

	// Oversold is bullish, overbought bearish. The neutral band interpolates
	// around 50 damped by 0.3 so a middling RSI never dominates.
	switch {
	case rsi <= a.cfg.RSIOversold:
		snap.RSIScore = (a.cfg.RSIOversold - rsi) / a.cfg.RSIOversold
	case rsi >= a.cfg.RSIOverbought:
		snap.RSIScore = -(rsi - a.cfg.RSIOverbought) / (100 - a.cfg.RSIOverbought)
	default:
		snap.RSIScore = (50 - rsi) / 50 * 0.3
	}
}

func (a *TechnicalAnalyzer) computeMACD(closes []float64, price float64, snap *TechSnapshot) {
	fast := emaSeries(closes, a.cfg.MACDFast)
	slow := emaSeries(closes, a.cfg.MACDSlow)

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fast[i] - slow[i]
	}
	signal := emaSeries(macdLine, a.cfg.MACDSignal)

	last := len(closes) - 1
	snap.MACD = macdLine[last]
	snap.MACDSignal = signal[last]
	snap.MACDHistogram = macdLine[last] - signal[last]

	// Normalize by price so the score is comparable across assets.
	macdPct := 0.0
	if price > 0 {
		macdPct = snap.MACDHistogram / price * 100
	}
	snap.MACDScore = clamp(macdPct*10, -1, 1)
}

func (a *TechnicalAnalyzer) computeBollinger(closes []float64, price float64, snap *TechSnapshot) {
	recent := closes[len(closes)-a.cfg.BBPeriod:]
	middle := mean(recent)
	std := stdDev(recent, middle)

	snap.BBMiddle = middle
	snap.BBUpper = middle + a.cfg.BBStd*std
	snap.BBLower = middle - a.cfg.BBStd*std

	width := snap.BBUpper - snap.BBLower
	if width > 0 {
		snap.BBPctB = (price - snap.BBLower) / width
	} else {
		snap.BBPctB = 0.5
	}
	// Near the lower band is bullish.
	snap.BBScore = clamp((0.5-snap.BBPctB)*2, -1, 1)
}

func (a *TechnicalAnalyzer) computeEMAs(closes []float64, price float64, snap *TechSnapshot) {
	periods := append([]int(nil), a.cfg.EMAPeriods...)
	sort.Ints(periods)

	last := len(closes) - 1
	for _, p := range periods {
		snap.EMAs[p] = emaSeries(closes, p)[last]
	}

	above := 0
	for _, p := range periods {
		if price > snap.EMAs[p] {
			above++
		}
	}
	score := (float64(above)/float64(len(periods)) - 0.5) * 2

	// Strict short-over-long ordering earns an alignment bonus.
	alignedBullish := true
	alignedBearish := true
	for i := 0; i < len(periods)-1; i++ {
		if snap.EMAs[periods[i]] <= snap.EMAs[periods[i+1]] {
			alignedBullish = false
		}
		if snap.EMAs[periods[i]] >= snap.EMAs[periods[i+1]] {
			alignedBearish = false
		}
	}
	if alignedBullish {
		score = math.Min(1, score+0.2)
	} else if alignedBearish {
		score = math.Max(-1, score-0.2)
	}
	snap.EMAScore = score
}

func (a *TechnicalAnalyzer) computeVolume(volumes []float64, snap *TechSnapshot) {
	window := volumes
	if len(window) > 20 {
		window = window[len(window)-20:]
	}
	snap.VolumeSMA = mean(window)

	current := volumes[len(volumes)-1]
	if snap.VolumeSMA > 0 {
		snap.VolumeRatio = current / snap.VolumeSMA
	} else {
		snap.VolumeRatio = 1.0
	}
	snap.VolumeScore = clamp((snap.VolumeRatio-1)*0.5+0.5, 0, 1)
}

// rsiWilder computes RSI with Wilder smoothing over the closing series.
func rsiWilder(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// emaSeries returns the exponential moving average at every index, seeded with
// the first value.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2.0 / (float64(period) + 1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation around the given mean.
func stdDev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
