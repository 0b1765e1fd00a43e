package strategy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mvessey/crowd-trader/internal/analysis"
)

func TestSocialMomentumSignal(t *testing.T) {
	t.Run("full alignment buys", func(t *testing.T) {
		tech := &analysis.TechSnapshot{EMAScore: 0.5, VolumeRatio: 1.5}
		sent := analysis.SentimentSnapshot{
			SocialSpike:   true,
			SocialVolumeZ: 2.4,
			CrowdSignal:   0.45,
		}

		sig := SocialMomentumSignal("BTC-USD", tech, sent)
		assert.Equal(t, ActionBuy, sig.Action)
		assert.InDelta(t, 0.9, sig.Confidence, 1e-9)
		assert.Contains(t, sig.Reasoning, "social spike (z=2.4)")
		assert.Contains(t, sig.Reasoning, "price above key EMAs")
	})

	t.Run("extreme spike halves confidence", func(t *testing.T) {
		tech := &analysis.TechSnapshot{EMAScore: 0.5, VolumeRatio: 1.5}
		sent := analysis.SentimentSnapshot{
			SocialSpike:   true,
			SocialExtreme: true,
			SocialVolumeZ: 3.5,
			CrowdSignal:   0.45,
		}

		sig := SocialMomentumSignal("BTC-USD", tech, sent)
		assert.Equal(t, ActionHold, sig.Action)
		assert.InDelta(t, 0.45, sig.Confidence, 1e-9)
		assert.Contains(t, sig.Reasoning, "reduced confidence")
	})

	t.Run("quiet market holds", func(t *testing.T) {
		sig := SocialMomentumSignal("BTC-USD", &analysis.TechSnapshot{}, analysis.SentimentSnapshot{})
		assert.Equal(t, ActionHold, sig.Action)
		assert.Zero(t, sig.Confidence)
		assert.Equal(t, "no signals", sig.Reasoning)
	})
}

func TestDivergenceSignal(t *testing.T) {
	t.Run("bullish divergence accumulates", func(t *testing.T) {
		tech := &analysis.TechSnapshot{EMAScore: -0.4, RSIScore: 0.3}
		sent := analysis.SentimentSnapshot{SentimentMomentum: 0.4, CrowdSignal: 0.3}

		sig := DivergenceSignal("ETH-USD", tech, sent)
		assert.Equal(t, ActionBuy, sig.Action)
		assert.InDelta(t, 0.65, sig.Confidence, 1e-9)
		assert.Contains(t, sig.Reasoning, "bullish divergence")
	})

	t.Run("bearish divergence short-circuits to sell", func(t *testing.T) {
		// The additive bullish path would also fire here; bearish wins.
		tech := &analysis.TechSnapshot{EMAScore: 0.5, RSIScore: 0.3}
		sent := analysis.SentimentSnapshot{SentimentMomentum: -0.5, CrowdSignal: 0.3}

		sig := DivergenceSignal("ETH-USD", tech, sent)
		assert.Equal(t, ActionSell, sig.Action)
		assert.Equal(t, 0.3, sig.Confidence)
		assert.Contains(t, sig.Reasoning, "bearish divergence")
	})

	t.Run("no divergence", func(t *testing.T) {
		sig := DivergenceSignal("ETH-USD", &analysis.TechSnapshot{}, analysis.SentimentSnapshot{})
		assert.Equal(t, ActionHold, sig.Action)
		assert.Equal(t, "no divergence detected", sig.Reasoning)
	})
}

func TestHypeFilterSignal(t *testing.T) {
	t.Run("no extreme activity", func(t *testing.T) {
		sig := HypeFilterSignal("DOGE-USD", &analysis.TechSnapshot{}, analysis.SentimentSnapshot{})
		assert.Equal(t, ActionHold, sig.Action)
		assert.Zero(t, sig.Confidence)
	})

	t.Run("extreme spike with weak technicals", func(t *testing.T) {
		tech := &analysis.TechSnapshot{CompositeScore: 0.1}
		sent := analysis.SentimentSnapshot{SocialExtreme: true, SocialVolumeZ: 4.2}

		sig := HypeFilterSignal("DOGE-USD", tech, sent)
		assert.Equal(t, ActionHold, sig.Action)
		assert.Equal(t, 0.8, sig.Confidence)
		assert.Contains(t, sig.Reasoning, "HYPE ALERT")
		assert.Contains(t, sig.Reasoning, "pump & dump")
	})

	t.Run("extreme spike with technical support", func(t *testing.T) {
		tech := &analysis.TechSnapshot{CompositeScore: 0.4}
		sent := analysis.SentimentSnapshot{SocialExtreme: true, SocialVolumeZ: 3.2}

		sig := HypeFilterSignal("DOGE-USD", tech, sent)
		assert.Equal(t, ActionHold, sig.Action)
		assert.Equal(t, 0.3, sig.Confidence)
		assert.Contains(t, sig.Reasoning, "proceed with caution")
	})

	t.Run("never trades", func(t *testing.T) {
		for _, composite := range []float64{-0.5, 0.0, 0.19, 0.2, 0.9} {
			tech := &analysis.TechSnapshot{CompositeScore: composite}
			sent := analysis.SentimentSnapshot{SocialExtreme: true, SocialVolumeZ: 5}
			assert.Equal(t, ActionHold, HypeFilterSignal("DOGE-USD", tech, sent).Action)
		}
	})
}

func TestMeanReversionSignal(t *testing.T) {
	t.Run("oversold with recovering sentiment", func(t *testing.T) {
		tech := &analysis.TechSnapshot{RSI: 22, RSIScore: 0.4, BBScore: 0.6, VolumeRatio: 1.8}
		sent := analysis.SentimentSnapshot{SentimentMomentum: 0.1}

		sig := MeanReversionSignal("BTC-USD", tech, sent)
		assert.Equal(t, ActionBuy, sig.Action)
		assert.InDelta(t, 0.8, sig.Confidence, 1e-9)
		assert.Contains(t, sig.Reasoning, "oversold RSI (22.0)")
		assert.Contains(t, sig.Reasoning, "volume surge on dip")
	})

	t.Run("not oversold", func(t *testing.T) {
		tech := &analysis.TechSnapshot{RSIScore: -0.2, BBScore: -0.1}
		sig := MeanReversionSignal("BTC-USD", tech, analysis.SentimentSnapshot{})
		assert.Equal(t, ActionHold, sig.Action)
		assert.Equal(t, "not oversold", sig.Reasoning)
	})
}

func TestSignalConfidenceCapped(t *testing.T) {
	tech := &analysis.TechSnapshot{EMAScore: 1, RSIScore: 1, BBScore: 1, VolumeRatio: 5, RSI: 5}
	sent := analysis.SentimentSnapshot{
		SocialSpike:       true,
		SocialVolumeZ:     2.9,
		CrowdSignal:       0.9,
		SentimentMomentum: 0.9,
	}

	for _, gen := range []Generator{SocialMomentumSignal, DivergenceSignal, MeanReversionSignal} {
		sig := gen("BTC-USD", tech, sent)
		assert.LessOrEqual(t, sig.Confidence, 1.0, sig.Strategy)
	}
}

func TestJoinReasons(t *testing.T) {
	assert.Equal(t, "fallback", joinReasons(nil, "fallback"))
	assert.Equal(t, "a; b", joinReasons([]string{"a", "b"}, "fallback"))
	assert.False(t, strings.Contains(joinReasons([]string{"a"}, "fallback"), "fallback"))
}
