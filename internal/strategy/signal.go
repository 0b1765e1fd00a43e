package strategy

import (
	"fmt"
	"strings"

	"github.com/mvessey/crowd-trader/internal/analysis"
)

// Action is the closed set of things a strategy can ask for.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Signal is one strategy's vote for one asset in one cycle. Immutable once
// produced.
type Signal struct {
	ProductID  string
	Strategy   string
	Action     Action
	Confidence float64
	Reasoning  string
	Metadata   map[string]float64
}

// Generator is a pure function from the two analysis snapshots to a signal.
type Generator func(productID string, tech *analysis.TechSnapshot, sent analysis.SentimentSnapshot) Signal

// SocialMomentumSignal buys when a social volume spike lines up with positive
// crowd sentiment and price strength. An extreme spike halves confidence.
func SocialMomentumSignal(productID string, tech *analysis.TechSnapshot, sent analysis.SentimentSnapshot) Signal {
	var reasons []string
	confidence := 0.0

	if sent.SocialSpike && sent.CrowdSignal > 0.2 {
		confidence += 0.4
		reasons = append(reasons, fmt.Sprintf("social spike (z=%.1f)", sent.SocialVolumeZ))
	}
	if sent.CrowdSignal > 0.3 {
		confidence += 0.2
		reasons = append(reasons, fmt.Sprintf("positive crowd signal (%.2f)", sent.CrowdSignal))
	}
	if tech.EMAScore > 0 {
		confidence += 0.2
		reasons = append(reasons, "price above key EMAs")
	}
	if tech.VolumeRatio > 1.2 {
		confidence += 0.1
		reasons = append(reasons, fmt.Sprintf("elevated volume (%.1fx)", tech.VolumeRatio))
	}

	if sent.SocialExtreme {
		confidence *= 0.5
		reasons = append(reasons, "WARNING: extreme social spike - reduced confidence")
	}

	confidence = min1(confidence)
	action := ActionHold
	if confidence >= 0.5 {
		action = ActionBuy
	}

	return Signal{
		ProductID:  productID,
		Strategy:   "social_momentum",
		Action:     action,
		Confidence: confidence,
		Reasoning:  joinReasons(reasons, "no signals"),
		Metadata: map[string]float64{
			"crowd_signal": sent.CrowdSignal,
			"ema_score":    tech.EMAScore,
		},
	}
}

// DivergenceSignal watches for sentiment leading price. Rising sentiment into
// a weak tape builds a buy case; sentiment collapsing under a strong tape
// short-circuits to a low-confidence sell.
func DivergenceSignal(productID string, tech *analysis.TechSnapshot, sent analysis.SentimentSnapshot) Signal {
	var reasons []string
	confidence := 0.0

	if sent.SentimentMomentum > 0.2 && tech.EMAScore < 0 {
		confidence += 0.3
		reasons = append(reasons, fmt.Sprintf(
			"bullish divergence: sentiment rising (%.2f) while price weak", sent.SentimentMomentum))
	}
	if tech.RSIScore > 0.2 {
		confidence += 0.2
		reasons = append(reasons, fmt.Sprintf("RSI supports reversal (score=%.2f)", tech.RSIScore))
	}
	if sent.CrowdSignal > 0.2 {
		confidence += 0.15
		reasons = append(reasons, "positive crowd signal building")
	}

	// Bearish divergence wins outright: this bypasses the additive path.
	if sent.SentimentMomentum < -0.2 && tech.EMAScore > 0.3 {
		return Signal{
			ProductID:  productID,
			Strategy:   "divergence_watch",
			Action:     ActionSell,
			Confidence: 0.3,
			Reasoning: fmt.Sprintf(
				"bearish divergence: sentiment falling (%.2f) while price strong", sent.SentimentMomentum),
		}
	}

	confidence = min1(confidence)
	action := ActionHold
	if confidence >= 0.5 {
		action = ActionBuy
	}

	return Signal{
		ProductID:  productID,
		Strategy:   "divergence_watch",
		Action:     action,
		Confidence: confidence,
		Reasoning:  joinReasons(reasons, "no divergence detected"),
	}
}

// HypeFilterSignal never trades. It exists to veto the other strategies when
// an extreme social spike has no technical confirmation.
func HypeFilterSignal(productID string, tech *analysis.TechSnapshot, sent analysis.SentimentSnapshot) Signal {
	if !sent.SocialExtreme {
		return Signal{
			ProductID:  productID,
			Strategy:   "hype_filter",
			Action:     ActionHold,
			Confidence: 0,
			Reasoning:  "no extreme social activity",
		}
	}

	if tech.CompositeScore < 0.2 {
		return Signal{
			ProductID:  productID,
			Strategy:   "hype_filter",
			Action:     ActionHold,
			Confidence: 0.8,
			Reasoning: fmt.Sprintf(
				"HYPE ALERT: extreme social spike (z=%.1f) with weak technicals (%.2f) - likely pump & dump, avoiding",
				sent.SocialVolumeZ, tech.CompositeScore),
		}
	}

	return Signal{
		ProductID:  productID,
		Strategy:   "hype_filter",
		Action:     ActionHold,
		Confidence: 0.3,
		Reasoning: fmt.Sprintf(
			"social spike (z=%.1f) with some technical support (%.2f) - proceed with caution",
			sent.SocialVolumeZ, tech.CompositeScore),
	}
}

// MeanReversionSignal buys oversold conditions when sentiment is recovering.
func MeanReversionSignal(productID string, tech *analysis.TechSnapshot, sent analysis.SentimentSnapshot) Signal {
	var reasons []string
	confidence := 0.0

	if tech.RSIScore > 0.3 {
		confidence += 0.3
		reasons = append(reasons, fmt.Sprintf("oversold RSI (%.1f)", tech.RSI))
	}
	if tech.BBScore > 0.3 {
		confidence += 0.2
		reasons = append(reasons, fmt.Sprintf("near lower Bollinger Band (score=%.2f)", tech.BBScore))
	}
	if sent.SentimentMomentum > 0 {
		confidence += 0.2
		reasons = append(reasons, fmt.Sprintf("sentiment recovering (%.2f)", sent.SentimentMomentum))
	}
	if tech.VolumeRatio > 1.5 {
		confidence += 0.1
		reasons = append(reasons, "volume surge on dip")
	}

	confidence = min1(confidence)
	action := ActionHold
	if confidence >= 0.5 {
		action = ActionBuy
	}

	return Signal{
		ProductID:  productID,
		Strategy:   "mean_reversion",
		Action:     action,
		Confidence: confidence,
		Reasoning:  joinReasons(reasons, "not oversold"),
	}
}

func joinReasons(reasons []string, empty string) string {
	if len(reasons) == 0 {
		return empty
	}
	return strings.Join(reasons, "; ")
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
