package strategy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvessey/crowd-trader/internal/analysis"
)

func TestEvaluateHypeFilterBlocksEverything(t *testing.T) {
	e := NewEngine(0.6)

	// Technicals scream buy, but the extreme spike has no composite support.
	tech := &analysis.TechSnapshot{EMAScore: 0.8, RSIScore: 0.4, BBScore: 0.5, VolumeRatio: 2, CompositeScore: 0.1}
	sent := analysis.SentimentSnapshot{
		SocialSpike:       true,
		SocialExtreme:     true,
		SocialVolumeZ:     4.0,
		CrowdSignal:       0.5,
		SentimentMomentum: 0.5,
	}

	decision := e.Evaluate("DOGE-USD", tech, sent)
	assert.Equal(t, ActionHold, decision.Action)
	assert.Equal(t, 0.8, decision.Confidence)
	assert.True(t, strings.HasPrefix(decision.Reasoning, "BLOCKED by hype filter: "))
	assert.Len(t, decision.Signals, 4)
}

func TestEvaluateBuyConsensus(t *testing.T) {
	e := NewEngine(0.6)

	// Social momentum (0.9) and mean reversion (0.7) both vote buy.
	tech := &analysis.TechSnapshot{
		RSI: 25, RSIScore: 0.4, BBScore: 0.4, EMAScore: 0.3, VolumeRatio: 1.4,
	}
	sent := analysis.SentimentSnapshot{
		SocialSpike:       true,
		SocialVolumeZ:     2.2,
		CrowdSignal:       0.4,
		SentimentMomentum: 0.1,
	}

	decision := e.Evaluate("BTC-USD", tech, sent)
	require.Equal(t, ActionBuy, decision.Action)

	// avg(0.9, 0.7) + one-extra-strategy bonus
	assert.InDelta(t, 0.875, decision.Confidence, 1e-9)
	assert.Contains(t, decision.Reasoning, "social_momentum(0.90):")
	assert.Contains(t, decision.Reasoning, "mean_reversion(0.70):")
	assert.Contains(t, decision.Reasoning, " | ")
}

func TestEvaluateAgreementBonusCapped(t *testing.T) {
	e := NewEngine(0.5)
	e.generators = []Generator{
		stubGenerator("a", ActionBuy, 0.9),
		stubGenerator("b", ActionBuy, 0.9),
		stubGenerator("c", ActionBuy, 0.9),
		stubGenerator("d", ActionBuy, 0.9),
	}

	decision := e.Evaluate("BTC-USD", &analysis.TechSnapshot{}, analysis.SentimentSnapshot{})
	require.Equal(t, ActionBuy, decision.Action)
	// avg 0.9 plus bonus capped at 0.15, not 3*0.075
	assert.InDelta(t, 1.0, decision.Confidence, 1e-9)
}

func TestEvaluateBuyBelowThresholdHolds(t *testing.T) {
	e := NewEngine(0.6)
	e.generators = []Generator{stubGenerator("a", ActionBuy, 0.55)}

	decision := e.Evaluate("BTC-USD", &analysis.TechSnapshot{}, analysis.SentimentSnapshot{})
	assert.Equal(t, ActionHold, decision.Action)
	assert.Equal(t, 0.55, decision.Confidence)
	assert.Contains(t, decision.Reasoning, "strongest signal below threshold: a(0.55)")
}

func TestEvaluateSellTakesStrongestAlarm(t *testing.T) {
	e := NewEngine(0.3)
	e.generators = []Generator{
		stubGenerator("weak", ActionSell, 0.35),
		stubGenerator("strong", ActionSell, 0.45),
	}

	decision := e.Evaluate("ETH-USD", &analysis.TechSnapshot{}, analysis.SentimentSnapshot{})
	require.Equal(t, ActionSell, decision.Action)
	// Single strongest alarm, no averaging and no bonus.
	assert.Equal(t, 0.45, decision.Confidence)
	assert.True(t, strings.HasPrefix(decision.Reasoning, "strong: "))
}

func TestEvaluateSellBelowDefaultThreshold(t *testing.T) {
	// The stock divergence sell carries 0.3 confidence, under the 0.6 default.
	e := NewEngine(0.6)
	tech := &analysis.TechSnapshot{EMAScore: 0.5}
	sent := analysis.SentimentSnapshot{SentimentMomentum: -0.5}

	decision := e.Evaluate("ETH-USD", tech, sent)
	assert.Equal(t, ActionHold, decision.Action)
	assert.Contains(t, decision.Reasoning, "below threshold")
}

func TestEvaluateQuietMarket(t *testing.T) {
	e := NewEngine(0.6)

	decision := e.Evaluate("BTC-USD", &analysis.TechSnapshot{}, analysis.SentimentSnapshot{})
	assert.Equal(t, ActionHold, decision.Action)
	assert.Zero(t, decision.Confidence)
	assert.Equal(t, "no actionable signals", decision.Reasoning)
	assert.NotZero(t, decision.Timestamp)
}

func TestEvaluateHoldIgnoresHypeFilterAsStrongest(t *testing.T) {
	e := NewEngine(0.9)

	// Cautionary hype signal (0.3) plus a weak buy vote (0.2); the hold
	// summary must surface the tradeable signal, not the filter.
	tech := &analysis.TechSnapshot{CompositeScore: 0.4, EMAScore: 0.1}
	sent := analysis.SentimentSnapshot{SocialExtreme: true, SocialSpike: true, SocialVolumeZ: 3.1}

	decision := e.Evaluate("BTC-USD", tech, sent)
	require.Equal(t, ActionHold, decision.Action)
	assert.NotContains(t, decision.Reasoning, "hype_filter")
}

func stubGenerator(name string, action Action, confidence float64) Generator {
	return func(productID string, tech *analysis.TechSnapshot, sent analysis.SentimentSnapshot) Signal {
		return Signal{
			ProductID:  productID,
			Strategy:   name,
			Action:     action,
			Confidence: confidence,
			Reasoning:  "stub",
		}
	}
}
