package exchange

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2"

	"github.com/mvessey/crowd-trader/internal/logger"
	"github.com/mvessey/crowd-trader/internal/storage"
)

// Watchlist products use Coinbase-style IDs ("BTC-USD"); Binance wants
// concatenated symbols quoted in USDT.
func Symbol(productID string) string {
	parts := strings.SplitN(productID, "-", 2)
	base := parts[0]
	quote := "USD"
	if len(parts) == 2 {
		quote = parts[1]
	}
	if quote == "USD" {
		quote = "USDT"
	}
	return strings.ToUpper(base + quote)
}

// BaseAsset extracts the base asset from a product ID ("BTC-USD" -> "BTC").
func BaseAsset(productID string) string {
	return strings.SplitN(productID, "-", 2)[0]
}

var intervals = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1h", "2h": "2h", "4h": "4h", "6h": "6h", "1d": "1d",
}

// MarketData fetches OHLCV candles and spot prices from Binance.
type MarketData struct {
	client *binance.Client
	logger *logger.Logger
}

// NewMarketData builds the gateway. Keys may be empty: candles and prices are
// public endpoints.
func NewMarketData(apiKey, apiSecret string, log *logger.Logger) *MarketData {
	return &MarketData{
		client: binance.NewClient(apiKey, apiSecret),
		logger: log,
	}
}

// GetCandles fetches up to limit klines, returned ascending by timestamp.
func (m *MarketData) GetCandles(ctx context.Context, productID, timeframe string, limit int) ([]storage.Candle, error) {
	interval, ok := intervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}

	klines, err := m.client.NewKlinesService().
		Symbol(Symbol(productID)).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines for %s/%s: %w", productID, timeframe, err)
	}

	candles := make([]storage.Candle, 0, len(klines))
	for _, k := range klines {
		c := storage.Candle{
			ProductID: productID,
			Timeframe: timeframe,
			Timestamp: k.OpenTime / 1000,
		}
		var convErr error
		if c.Open, convErr = strconv.ParseFloat(k.Open, 64); convErr != nil {
			m.logger.Warn("skipping malformed kline", "product", productID, "error", convErr)
			continue
		}
		c.High, _ = strconv.ParseFloat(k.High, 64)
		c.Low, _ = strconv.ParseFloat(k.Low, 64)
		c.Close, _ = strconv.ParseFloat(k.Close, 64)
		c.Volume, _ = strconv.ParseFloat(k.Volume, 64)
		candles = append(candles, c)
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })
	return candles, nil
}

// GetCurrentPrice returns the latest spot price for a product.
func (m *MarketData) GetCurrentPrice(ctx context.Context, productID string) (float64, error) {
	prices, err := m.client.NewListPricesService().Symbol(Symbol(productID)).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch price for %s: %w", productID, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price data for %s", productID)
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price for %s: %w", productID, err)
	}
	return price, nil
}
