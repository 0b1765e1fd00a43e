package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mvessey/crowd-trader/internal/logger"
)

const cryptoPanicBaseURL = "https://cryptopanic.com/api/developer/v2"

var symbolToCurrency = map[string]string{
	"BTC":  "BTC",
	"ETH":  "ETH",
	"SOL":  "SOL",
	"AVAX": "AVAX",
	"LINK": "LINK",
	"DOGE": "DOGE",
	"ADA":  "ADA",
	"DOT":  "DOT",
}

// NewsSentiment summarizes community votes on recent news for one asset.
type NewsSentiment struct {
	NewsCount      int     `json:"news_count"`
	SentimentScore float64 `json:"sentiment_score"` // -1..+1
	BullishCount   int     `json:"bullish_count"`
	BearishCount   int     `json:"bearish_count"`
}

type newsItem struct {
	Votes struct {
		Positive  int `json:"positive"`
		Negative  int `json:"negative"`
		Important int `json:"important"`
	} `json:"votes"`
}

// CryptoPanicSource fetches aggregated crypto news with community sentiment
// votes.
type CryptoPanicSource struct {
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewCryptoPanicSource(apiKey string, log *logger.Logger) *CryptoPanicSource {
	return &CryptoPanicSource{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log,
	}
}

func (s *CryptoPanicSource) getNews(ctx context.Context, symbol string, limit int) ([]newsItem, error) {
	params := url.Values{
		"auth_token": {s.apiKey},
		"kind":       {"news"},
		"public":     {"true"},
	}
	if currency, ok := symbolToCurrency[symbol]; ok {
		params.Set("currencies", currency)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cryptoPanicBaseURL+"/posts/", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.URL.RawQuery = params.Encode()

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cryptopanic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cryptopanic: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Results []newsItem `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode cryptopanic response: %w", err)
	}

	results := payload.Results
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// AssetSentiment classifies recent news items as bullish or bearish from
// their community votes and returns the net score.
func (s *CryptoPanicSource) AssetSentiment(ctx context.Context, symbol string) (NewsSentiment, error) {
	news, err := s.getNews(ctx, symbol, 30)
	if err != nil {
		return NewsSentiment{}, err
	}

	var bullish, bearish int
	for _, item := range news {
		positive := item.Votes.Positive
		negative := item.Votes.Negative

		if positive > negative {
			bullish++
		} else if negative > positive {
			bearish++
		}

		// Important votes on positive news count double.
		if item.Votes.Important > 0 && positive > negative {
			bullish++
		}
	}

	sentiment := 0.0
	if total := bullish + bearish; total > 0 {
		sentiment = float64(bullish-bearish) / float64(total)
	}

	return NewsSentiment{
		NewsCount:      len(news),
		SentimentScore: sentiment,
		BullishCount:   bullish,
		BearishCount:   bearish,
	}, nil
}
