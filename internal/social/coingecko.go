package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mvessey/crowd-trader/internal/logger"
)

const coinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// Free tier allows roughly 30 requests per minute.
const coinGeckoMinInterval = 1500 * time.Millisecond

var symbolToCoinGeckoID = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"AVAX": "avalanche-2",
	"LINK": "chainlink",
	"DOGE": "dogecoin",
	"ADA":  "cardano",
	"DOT":  "polkadot",
}

// CoinData holds community and market stats for one coin.
type CoinData struct {
	RedditSubscribers int     `json:"reddit_subscribers"`
	RedditActive48h   int     `json:"reddit_active_48h"`
	TwitterFollowers  int     `json:"twitter_followers"`
	DeveloperScore    float64 `json:"developer_score"`
	CommunityScore    float64 `json:"community_score"`
	MarketCap         float64 `json:"market_cap"`
	Price             float64 `json:"price"`
	PriceChange24hPct float64 `json:"price_change_24h_pct"`
	TotalVolume       float64 `json:"total_volume"`
}

// CoinGeckoSource fetches community and market data from the CoinGecko free
// API. Requests are throttled globally to stay under the free tier limit.
type CoinGeckoSource struct {
	httpClient *http.Client
	logger     *logger.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

func NewCoinGeckoSource(log *logger.Logger) *CoinGeckoSource {
	return &CoinGeckoSource{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log,
	}
}

func (s *CoinGeckoSource) throttle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elapsed := time.Since(s.lastRequest); elapsed < coinGeckoMinInterval {
		time.Sleep(coinGeckoMinInterval - elapsed)
	}
	s.lastRequest = time.Now()
}

func (s *CoinGeckoSource) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	s.throttle()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coinGeckoBaseURL+"/"+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.URL.RawQuery = params.Encode()

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		s.logger.Warn("coingecko rate limited")
		return fmt.Errorf("coingecko: rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coingecko: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode coingecko response: %w", err)
	}
	return nil
}

// GetCoinData returns community and market stats for a symbol. Symbols
// without a known CoinGecko id produce an error.
func (s *CoinGeckoSource) GetCoinData(ctx context.Context, symbol string) (*CoinData, error) {
	coinID, ok := symbolToCoinGeckoID[symbol]
	if !ok {
		return nil, fmt.Errorf("no coingecko id for symbol %s", symbol)
	}

	params := url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"market_data":    {"true"},
		"community_data": {"true"},
		"developer_data": {"true"},
		"sparkline":      {"false"},
	}

	var payload struct {
		DeveloperScore float64 `json:"developer_score"`
		CommunityScore float64 `json:"community_score"`
		CommunityData  struct {
			RedditSubscribers int `json:"reddit_subscribers"`
			RedditActive48h   int `json:"reddit_accounts_active_48h"`
			TwitterFollowers  int `json:"twitter_followers"`
		} `json:"community_data"`
		MarketData struct {
			MarketCap         map[string]float64 `json:"market_cap"`
			CurrentPrice      map[string]float64 `json:"current_price"`
			PriceChange24hPct float64            `json:"price_change_percentage_24h"`
			TotalVolume       map[string]float64 `json:"total_volume"`
		} `json:"market_data"`
	}
	if err := s.get(ctx, "coins/"+coinID, params, &payload); err != nil {
		return nil, err
	}

	return &CoinData{
		RedditSubscribers: payload.CommunityData.RedditSubscribers,
		RedditActive48h:   payload.CommunityData.RedditActive48h,
		TwitterFollowers:  payload.CommunityData.TwitterFollowers,
		DeveloperScore:    payload.DeveloperScore,
		CommunityScore:    payload.CommunityScore,
		MarketCap:         payload.MarketData.MarketCap["usd"],
		Price:             payload.MarketData.CurrentPrice["usd"],
		PriceChange24hPct: payload.MarketData.PriceChange24hPct,
		TotalVolume:       payload.MarketData.TotalVolume["usd"],
	}, nil
}
