package social

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/mvessey/crowd-trader/internal/logger"
)

const (
	redditTokenURL = "https://www.reddit.com/api/v1/access_token"
	redditAPIURL   = "https://oauth.reddit.com"

	redditLookback    = 4 * time.Hour
	redditSearchLimit = 100
)

// Subreddits to scan, a mix of general and coin-specific ones.
var redditSubreddits = []string{
	"cryptocurrency",
	"CryptoMarkets",
	"bitcoin",
	"ethereum",
	"solana",
	"avalanche",
	"chainlink",
}

var redditSearchTerms = map[string][]string{
	"BTC":  {"bitcoin", "btc"},
	"ETH":  {"ethereum", "eth"},
	"SOL":  {"solana", "sol"},
	"AVAX": {"avalanche", "avax"},
	"LINK": {"chainlink", "link"},
	"DOGE": {"dogecoin", "doge"},
	"ADA":  {"cardano", "ada"},
	"DOT":  {"polkadot", "dot"},
}

// Crypto slang carries most of the sentiment in these subreddits, so the
// scorer runs on a purpose-built lexicon instead of a general-English one.
var cryptoLexicon = map[string]float64{
	"bull": 1.5, "bullish": 2.0, "moon": 2.0, "mooning": 2.5,
	"pump": 1.0, "hodl": 1.0, "accumulate": 1.0, "breakout": 1.5,
	"undervalued": 1.5, "gem": 1.5, "rocket": 2.0, "rally": 1.5,
	"surge": 1.5, "adoption": 1.0,
	"bear": -1.5, "bearish": -2.0, "dump": -1.5, "crash": -2.5,
	"scam": -2.5, "rug": -3.0, "rugpull": -3.0, "rekt": -2.0,
	"plunge": -2.0, "tank": -2.0, "bubble": -1.5, "ponzi": -3.0,
	"fud": -1.0,
}

// keywordSentiment scores text from -1 (very bearish) to +1 (very bullish)
// by summing lexicon hits and squashing the raw sum into the unit interval.
func keywordSentiment(text string) float64 {
	var sum float64
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		sum += cryptoLexicon[w]
	}
	if sum == 0 {
		return 0
	}
	return sum / math.Sqrt(sum*sum+15)
}

// RedditMetrics is mention volume and engagement for one asset over the
// lookback window.
type RedditMetrics struct {
	MentionCount   int     `json:"mention_count"`
	AvgSentiment   float64 `json:"avg_sentiment"` // -1..+1
	TotalScore     int     `json:"total_score"`   // net upvotes across mentions
	TotalComments  int     `json:"total_comments"`
	AvgUpvoteRatio float64 `json:"avg_upvote_ratio"`
}

// RedditSource searches crypto subreddits through the public OAuth API using
// application-only (client credentials) auth.
type RedditSource struct {
	clientID     string
	clientSecret string
	userAgent    string
	httpClient   *http.Client
	logger       *logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewRedditSource(clientID, clientSecret, userAgent string, log *logger.Logger) *RedditSource {
	return &RedditSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		logger:       log,
	}
}

func (s *RedditSource) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		return s.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, redditTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reddit token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reddit token: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode reddit token: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("reddit token: empty access_token")
	}

	s.token = payload.AccessToken
	// Refresh a minute early so in-flight requests never carry a stale token.
	s.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - time.Minute)
	return s.token, nil
}

type redditSubmission struct {
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	CreatedUTC  float64 `json:"created_utc"`
}

func (s *RedditSource) search(ctx context.Context, query string) ([]redditSubmission, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/r/%s/search", redditAPIURL, strings.Join(redditSubreddits, "+"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	q := url.Values{
		"q":           {query},
		"sort":        {"new"},
		"t":           {"day"},
		"limit":       {fmt.Sprint(redditSearchLimit)},
		"restrict_sr": {"true"},
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit search: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Children []struct {
				Data redditSubmission `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode reddit search: %w", err)
	}

	submissions := make([]redditSubmission, 0, len(payload.Data.Children))
	for _, child := range payload.Data.Children {
		submissions = append(submissions, child.Data)
	}
	return submissions, nil
}

// AssetMetrics returns mention count, sentiment and engagement for a symbol
// over the lookback window.
func (s *RedditSource) AssetMetrics(ctx context.Context, symbol string) (RedditMetrics, error) {
	terms, ok := redditSearchTerms[symbol]
	if !ok {
		terms = []string{strings.ToLower(symbol)}
	}

	submissions, err := s.search(ctx, strings.Join(terms, " OR "))
	if err != nil {
		return RedditMetrics{}, err
	}

	cutoff := float64(time.Now().Add(-redditLookback).Unix())

	var metrics RedditMetrics
	var sentimentSum, ratioSum float64
	for _, sub := range submissions {
		if sub.CreatedUTC < cutoff {
			continue
		}
		metrics.MentionCount++
		metrics.TotalScore += sub.Score
		metrics.TotalComments += sub.NumComments
		ratioSum += sub.UpvoteRatio
		sentimentSum += keywordSentiment(sub.Title + " " + sub.Selftext)
	}

	if metrics.MentionCount > 0 {
		metrics.AvgSentiment = sentimentSum / float64(metrics.MentionCount)
		metrics.AvgUpvoteRatio = ratioSum / float64(metrics.MentionCount)
	} else {
		metrics.AvgUpvoteRatio = 0.5
	}
	return metrics, nil
}
