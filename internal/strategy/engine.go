package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/mvessey/crowd-trader/internal/analysis"
)

const hypeFilterName = "hype_filter"

// hypeBlockThreshold is the hype-filter confidence at which the engine vetoes
// every other strategy.
const hypeBlockThreshold = 0.7

// Decision is the engine's single verdict for one asset in one cycle.
type Decision struct {
	ProductID  string
	Action     Action
	Confidence float64
	Signals    []Signal
	Reasoning  string
	Timestamp  int64
}

// Engine runs every strategy and merges their votes. BUY requires
// multi-strategy consensus (averaged confidence plus an agreement bonus)
// while SELL acts on the single strongest alarm; exits should not wait for
// agreement.
type Engine struct {
	minConfidence float64
	generators    []Generator
}

func NewEngine(minConfidence float64) *Engine {
	return &Engine{
		minConfidence: minConfidence,
		generators: []Generator{
			SocialMomentumSignal,
			DivergenceSignal,
			HypeFilterSignal,
			MeanReversionSignal,
		},
	}
}

// Evaluate produces the combined decision for one asset.
func (e *Engine) Evaluate(productID string, tech *analysis.TechSnapshot, sent analysis.SentimentSnapshot) Decision {
	signals := make([]Signal, 0, len(e.generators))
	for _, gen := range e.generators {
		signals = append(signals, gen(productID, tech, sent))
	}
	now := time.Now().UTC().Unix()

	// The hype filter is an absolute override.
	for _, sig := range signals {
		if sig.Strategy == hypeFilterName && sig.Confidence >= hypeBlockThreshold {
			return Decision{
				ProductID:  productID,
				Action:     ActionHold,
				Confidence: sig.Confidence,
				Signals:    signals,
				Reasoning:  "BLOCKED by hype filter: " + sig.Reasoning,
				Timestamp:  now,
			}
		}
	}

	var buys, sells []Signal
	for _, sig := range signals {
		switch sig.Action {
		case ActionBuy:
			buys = append(buys, sig)
		case ActionSell:
			sells = append(sells, sig)
		case ActionHold:
		}
	}

	if len(buys) > 0 {
		sum := 0.0
		for _, sig := range buys {
			sum += sig.Confidence
		}
		avg := sum / float64(len(buys))
		bonus := float64(len(buys)-1) * 0.075
		if bonus > 0.15 {
			bonus = 0.15
		}
		confidence := min1(avg + bonus)

		if confidence >= e.minConfidence {
			reasons := make([]string, len(buys))
			for i, sig := range buys {
				reasons[i] = fmt.Sprintf("%s(%.2f): %s", sig.Strategy, sig.Confidence, sig.Reasoning)
			}
			return Decision{
				ProductID:  productID,
				Action:     ActionBuy,
				Confidence: confidence,
				Signals:    signals,
				Reasoning:  strings.Join(reasons, " | "),
				Timestamp:  now,
			}
		}
	}

	if len(sells) > 0 {
		best := sells[0]
		for _, sig := range sells[1:] {
			if sig.Confidence > best.Confidence {
				best = sig
			}
		}
		if best.Confidence >= e.minConfidence {
			return Decision{
				ProductID:  productID,
				Action:     ActionSell,
				Confidence: best.Confidence,
				Signals:    signals,
				Reasoning:  fmt.Sprintf("%s: %s", best.Strategy, best.Reasoning),
				Timestamp:  now,
			}
		}
	}

	// Hold, but surface the strongest sub-threshold signal so the operator
	// can see what is building.
	var best *Signal
	for i := range signals {
		sig := &signals[i]
		if sig.Strategy == hypeFilterName || sig.Confidence <= 0 {
			continue
		}
		if best == nil || sig.Confidence > best.Confidence {
			best = sig
		}
	}

	confidence := 0.0
	reasoning := "no actionable signals"
	if best != nil {
		confidence = best.Confidence
		reasoning = fmt.Sprintf("strongest signal below threshold: %s(%.2f) - %s",
			best.Strategy, best.Confidence, best.Reasoning)
	}

	return Decision{
		ProductID:  productID,
		Action:     ActionHold,
		Confidence: confidence,
		Signals:    signals,
		Reasoning:  reasoning,
		Timestamp:  now,
	}
}
