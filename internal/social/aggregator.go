package social

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mvessey/crowd-trader/internal/config"
	"github.com/mvessey/crowd-trader/internal/logger"
	"github.com/mvessey/crowd-trader/internal/storage"
)

// Composite score weights. Only sources that returned data contribute; the
// average is taken over the weights actually present.
const (
	compositeRedditWeight      = 0.35
	compositeCryptoPanicWeight = 0.25
	compositeFearGreedWeight   = 0.25
	compositeCoinGeckoWeight   = 0.15

	sentimentRedditWeight      = 0.4
	sentimentCryptoPanicWeight = 0.35
	sentimentFearGreedWeight   = 0.25
)

func productToSymbol(productID string) string {
	symbol, _, _ := strings.Cut(productID, "-")
	return symbol
}

// Aggregator combines Reddit, CryptoPanic, Fear & Greed and CoinGecko into
// one SocialRecord per asset. Sources missing credentials are skipped at
// construction; sources that fail at fetch time are logged and the record is
// built from whatever remains.
type Aggregator struct {
	reddit      *RedditSource
	cryptoPanic *CryptoPanicSource
	fearGreed   *FearGreedSource
	coinGecko   *CoinGeckoSource
	logger      *logger.Logger
}

func NewAggregator(cfg *config.Config, log *logger.Logger) *Aggregator {
	a := &Aggregator{
		fearGreed: NewFearGreedSource(log),
		coinGecko: NewCoinGeckoSource(log),
		logger:    log,
	}

	if cfg.Reddit.ClientID != "" && cfg.Reddit.ClientSecret != "" {
		a.reddit = NewRedditSource(cfg.Reddit.ClientID, cfg.Reddit.ClientSecret, cfg.Reddit.UserAgent, log)
		log.Info("reddit source initialized")
	} else {
		log.Info("reddit source skipped, no credentials")
	}

	if cfg.CryptoPanic.APIKey != "" {
		a.cryptoPanic = NewCryptoPanicSource(cfg.CryptoPanic.APIKey, log)
		log.Info("cryptopanic source initialized")
	} else {
		log.Info("cryptopanic source skipped, no api key")
	}

	return a
}

func (a *Aggregator) fetchReddit(ctx context.Context, symbol string) (RedditMetrics, bool) {
	if a.reddit == nil {
		return RedditMetrics{}, false
	}
	metrics, err := a.reddit.AssetMetrics(ctx, symbol)
	if err != nil {
		a.logger.Error("reddit fetch failed", "symbol", symbol, "error", err)
		return RedditMetrics{}, false
	}
	return metrics, true
}

func (a *Aggregator) fetchCryptoPanic(ctx context.Context, symbol string) (NewsSentiment, bool) {
	if a.cryptoPanic == nil {
		return NewsSentiment{}, false
	}
	news, err := a.cryptoPanic.AssetSentiment(ctx, symbol)
	if err != nil {
		a.logger.Error("cryptopanic fetch failed", "symbol", symbol, "error", err)
		return NewsSentiment{}, false
	}
	return news, true
}

func (a *Aggregator) fetchCoinGecko(ctx context.Context, symbol string) (*CoinData, bool) {
	coin, err := a.coinGecko.GetCoinData(ctx, symbol)
	if err != nil {
		a.logger.Error("coingecko fetch failed", "symbol", symbol, "error", err)
		return nil, false
	}
	return coin, true
}

// compositeScore computes a 0-100 crowd interest score from whichever
// sources returned data. Returns nil when nothing is available.
func compositeScore(reddit RedditMetrics, hasReddit bool, news NewsSentiment, hasNews bool,
	fg FearGreedIndex, coin *CoinData) *float64 {

	var scores, weights []float64

	if hasReddit && reddit.MentionCount > 0 {
		score := (reddit.AvgSentiment + 1) * 50
		if reddit.AvgUpvoteRatio > 0.7 {
			score = min100(score + 5)
		}
		scores = append(scores, score)
		weights = append(weights, compositeRedditWeight)
	}

	if hasNews && news.NewsCount > 0 {
		scores = append(scores, (news.SentimentScore+1)*50)
		weights = append(weights, compositeCryptoPanicWeight)
	}

	scores = append(scores, float64(fg.Value))
	weights = append(weights, compositeFearGreedWeight)

	if coin != nil && coin.CommunityScore > 0 {
		scores = append(scores, min100(coin.CommunityScore))
		weights = append(weights, compositeCoinGeckoWeight)
	}

	if len(scores) == 0 {
		return nil
	}

	var sum, totalWeight float64
	for i := range scores {
		sum += scores[i] * weights[i]
		totalWeight += weights[i]
	}
	score := sum / totalWeight
	return &score
}

// sentimentScore maps the sources onto the 0-5 scale the analyzer consumes.
// 0 is very bearish, 2.5 neutral, 5 very bullish.
func sentimentScore(reddit RedditMetrics, hasReddit bool, news NewsSentiment, hasNews bool,
	fg FearGreedIndex) float64 {

	var scores, weights []float64

	if hasReddit && reddit.MentionCount > 0 {
		scores = append(scores, (reddit.AvgSentiment+1)*2.5)
		weights = append(weights, sentimentRedditWeight)
	}

	if hasNews && news.NewsCount > 0 {
		scores = append(scores, (news.SentimentScore+1)*2.5)
		weights = append(weights, sentimentCryptoPanicWeight)
	}

	scores = append(scores, float64(fg.Value)/20)
	weights = append(weights, sentimentFearGreedWeight)

	if len(scores) == 0 {
		return 2.5
	}

	var sum, totalWeight float64
	for i := range scores {
		sum += scores[i] * weights[i]
		totalWeight += weights[i]
	}
	return sum / totalWeight
}

// socialVolume weighs Reddit mentions above comments and news items.
func socialVolume(reddit RedditMetrics, news NewsSentiment) float64 {
	return float64(reddit.MentionCount*10 + reddit.TotalComments + news.NewsCount*5)
}

// FetchAsset builds one social record for a symbol. fg is fetched once per
// cycle by the caller because the index is market-wide.
func (a *Aggregator) FetchAsset(ctx context.Context, symbol string, fg FearGreedIndex) storage.SocialRecord {
	reddit, hasReddit := a.fetchReddit(ctx, symbol)
	news, hasNews := a.fetchCryptoPanic(ctx, symbol)
	coin, hasCoin := a.fetchCoinGecko(ctx, symbol)

	record := storage.SocialRecord{
		Asset:        symbol,
		Timestamp:    time.Now().UTC().Unix(),
		GalaxyScore:  compositeScore(reddit, hasReddit, news, hasNews, fg, coin),
		SocialVolume: socialVolume(reddit, news),
		Sentiment:    sentimentScore(reddit, hasReddit, news, hasNews, fg),
	}
	if hasCoin {
		record.MarketCap = coin.MarketCap
		record.Price = coin.Price
	}

	raw := map[string]any{"fear_greed": fg}
	if hasReddit {
		raw["reddit"] = reddit
	}
	if hasNews {
		raw["cryptopanic"] = news
	}
	if hasCoin {
		raw["coingecko"] = coin
	}
	if data, err := json.Marshal(raw); err == nil {
		record.RawJSON = string(data)
	}

	return record
}

// FetchWatchlist aggregates social data for every watchlist product and fills
// in social dominance as each asset's share of the total social volume.
func (a *Aggregator) FetchWatchlist(ctx context.Context, productIDs []string) []storage.SocialRecord {
	fg, err := a.fearGreed.Current(ctx)
	if err != nil {
		a.logger.Warn("fear & greed fetch failed, using neutral", "error", err)
	}

	records := make([]storage.SocialRecord, 0, len(productIDs))
	var totalVolume float64
	for _, pid := range productIDs {
		record := a.FetchAsset(ctx, productToSymbol(pid), fg)
		totalVolume += record.SocialVolume
		records = append(records, record)
	}

	if totalVolume > 0 {
		for i := range records {
			dominance := records[i].SocialVolume / totalVolume * 100
			records[i].SocialDominance = &dominance
		}
	}

	a.logger.Info("aggregated social data", "assets", len(records))
	return records
}

func min100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
