package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mvessey/crowd-trader/internal/logger"
)

const fearGreedURL = "https://api.alternative.me/fng/"

// FearGreedIndex is the market-wide Crypto Fear & Greed Index. 0 is extreme
// fear, 100 is extreme greed.
type FearGreedIndex struct {
	Value          int    `json:"value"`
	Classification string `json:"classification"`
}

// NormalizedScore maps the 0-100 index to -1..+1.
func (f FearGreedIndex) NormalizedScore() float64 {
	return (float64(f.Value) - 50) / 50
}

func neutralFearGreed() FearGreedIndex {
	return FearGreedIndex{Value: 50, Classification: "Neutral"}
}

// FearGreedSource fetches the index from alternative.me. No auth required.
type FearGreedSource struct {
	httpClient *http.Client
	logger     *logger.Logger
}

func NewFearGreedSource(log *logger.Logger) *FearGreedSource {
	return &FearGreedSource{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     log,
	}
}

// Current returns the latest index value. On any failure the neutral value is
// returned alongside the error so callers can degrade gracefully.
func (s *FearGreedSource) Current(ctx context.Context) (FearGreedIndex, error) {
	entries, err := s.fetch(ctx, 1)
	if err != nil {
		return neutralFearGreed(), err
	}
	if len(entries) == 0 {
		return neutralFearGreed(), fmt.Errorf("fear & greed: empty response")
	}
	return entries[0], nil
}

// History returns up to days of historical values, oldest first.
func (s *FearGreedSource) History(ctx context.Context, days int) ([]FearGreedIndex, error) {
	entries, err := s.fetch(ctx, days)
	if err != nil {
		return nil, err
	}
	// API returns newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *FearGreedSource) fetch(ctx context.Context, limit int) ([]FearGreedIndex, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fearGreedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("limit", strconv.Itoa(limit))
	req.URL.RawQuery = q.Encode()

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fear & greed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fear & greed: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			Value          string `json:"value"`
			Classification string `json:"value_classification"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode fear & greed response: %w", err)
	}

	entries := make([]FearGreedIndex, 0, len(payload.Data))
	for _, e := range payload.Data {
		value, err := strconv.Atoi(e.Value)
		if err != nil {
			value = 50
		}
		entries = append(entries, FearGreedIndex{Value: value, Classification: e.Classification})
	}
	return entries, nil
}
