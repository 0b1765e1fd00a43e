package exchange

import "sync"

// PriceCache holds the latest streamed price per product. The ticker stream
// writes, the analysis cycle reads; nothing else touches portfolio state from
// stream callbacks.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]float64)}
}

func (c *PriceCache) Set(productID string, price float64) {
	c.mu.Lock()
	c.prices[productID] = price
	c.mu.Unlock()
}

func (c *PriceCache) Get(productID string) (float64, bool) {
	c.mu.RLock()
	price, ok := c.prices[productID]
	c.mu.RUnlock()
	return price, ok
}
