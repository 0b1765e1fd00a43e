package analysis

import (
	"math"

	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/storage"
)

// SentimentSnapshot holds the crowd-side view of one asset. All scores are
// within [-1, +1] except the raw z-score, which is unbounded.
type SentimentSnapshot struct {
	SentimentScore    float64
	SentimentMomentum float64
	SocialVolumeZ     float64
	SocialSpike       bool
	SocialExtreme     bool
	GalaxyScore       *float64
	CrowdSignal       float64
}

// SentimentAnalyzer turns a time-ordered social record series into a
// SentimentSnapshot. It never fails: with fewer than three records every
// output is the neutral default.
type SentimentAnalyzer struct {
	cfg config.SentimentConfig
}

func NewSentimentAnalyzer(cfg config.SentimentConfig) *SentimentAnalyzer {
	return &SentimentAnalyzer{cfg: cfg}
}

// Analyze processes records sorted ascending by timestamp for one asset.
func (a *SentimentAnalyzer) Analyze(records []storage.SocialRecord) SentimentSnapshot {
	var snap SentimentSnapshot
	if len(records) < 3 {
		return snap
	}

	sentiments := make([]float64, len(records))
	volumes := make([]float64, len(records))
	for i, r := range records {
		sentiments[i] = r.Sentiment
		volumes[i] = r.SocialVolume
	}
	latest := records[len(records)-1]

	// Sentiment arrives on a 0-5 scale; rescale to [-1, +1].
	snap.SentimentScore = clamp((latest.Sentiment-2.5)/2.5, -1, 1)

	snap.SentimentMomentum = a.momentum(sentiments)

	snap.SocialVolumeZ = a.volumeZScore(volumes)
	snap.SocialSpike = snap.SocialVolumeZ >= a.cfg.ZScoreSpikeThreshold
	snap.SocialExtreme = snap.SocialVolumeZ >= a.cfg.ZScoreExtremeThreshold

	for i := len(records) - 1; i >= 0; i-- {
		if records[i].GalaxyScore != nil {
			gs := *records[i].GalaxyScore
			snap.GalaxyScore = &gs
			break
		}
	}

	snap.CrowdSignal = a.crowdSignal(&snap)
	return snap
}

// momentum compares the mean of the most recent momentum window against the
// preceding window (or all available prior values when history is short).
func (a *SentimentAnalyzer) momentum(sentiments []float64) float64 {
	n := a.cfg.MomentumPeriods
	if len(sentiments) < n {
		return 0
	}

	recent := sentiments[len(sentiments)-n:]
	var older []float64
	if len(sentiments) >= 2*n {
		older = sentiments[len(sentiments)-2*n : len(sentiments)-n]
	} else {
		older = sentiments[:n]
	}

	avgRecent := mean(recent)
	avgOlder := mean(older)
	if avgOlder <= 0 {
		return 0
	}
	return clamp((avgRecent-avgOlder)/math.Max(avgOlder, 1), -1, 1)
}

// volumeZScore scores the latest volume against the rolling baseline, with
// the latest point excluded from the baseline itself.
func (a *SentimentAnalyzer) volumeZScore(volumes []float64) float64 {
	window := volumes
	if len(window) > a.cfg.RollingWindow {
		window = window[len(window)-a.cfg.RollingWindow:]
	}
	if len(window) < 3 {
		return 0
	}

	baseline := window[:len(window)-1]
	m := mean(baseline)
	sd := stdDev(baseline, m)
	if sd <= 0 {
		return 0
	}
	return (window[len(window)-1] - m) / sd
}

// crowdSignal is the weighted composite: 40% sentiment level, 30% momentum,
// 20% social-volume interest, 10% galaxy score. When the galaxy score is
// missing its term is dropped without renormalizing the other weights, so the
// reachable magnitude shrinks to 0.9.
func (a *SentimentAnalyzer) crowdSignal(snap *SentimentSnapshot) float64 {
	sum := snap.SentimentScore*0.4 + snap.SentimentMomentum*0.3

	var volSignal float64
	switch {
	case snap.SocialExtreme:
		// A confirmed pump is suspect, not a buy signal.
		volSignal = 0.3
	case snap.SocialSpike:
		volSignal = 0.8
	case snap.SocialVolumeZ > 0:
		volSignal = math.Min(1, snap.SocialVolumeZ/a.cfg.ZScoreSpikeThreshold) * 0.5
	default:
		volSignal = math.Max(-1, snap.SocialVolumeZ/a.cfg.ZScoreSpikeThreshold) * 0.3
	}
	sum += volSignal * 0.2

	if snap.GalaxyScore != nil {
		sum += (*snap.GalaxyScore - 50) / 50 * 0.1
	}

	return clamp(sum, -1, 1)
}
