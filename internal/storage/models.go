package storage

import "time"

// Candle is one OHLCV bar, unique per (product, timeframe, timestamp).
// Rows are overwritten by upsert when the exchange corrects late data.
type Candle struct {
	ID        uint   `gorm:"primarykey" json:"-"`
	ProductID string `gorm:"uniqueIndex:idx_candle_key;index:idx_candle_lookup;not null" json:"product_id"`
	Timeframe string `gorm:"uniqueIndex:idx_candle_key;index:idx_candle_lookup;not null" json:"timeframe"`
	Timestamp int64  `gorm:"uniqueIndex:idx_candle_key;index:idx_candle_lookup;not null" json:"timestamp"`

	Open   float64 `gorm:"not null" json:"open"`
	High   float64 `gorm:"not null" json:"high"`
	Low    float64 `gorm:"not null" json:"low"`
	Close  float64 `gorm:"not null" json:"close"`
	Volume float64 `gorm:"not null" json:"volume"`
}

// SocialRecord is one aggregated social/sentiment observation for an asset.
// GalaxyScore and SocialDominance are nullable; the sources that produce them
// are not always available.
type SocialRecord struct {
	ID        uint   `gorm:"primarykey" json:"-"`
	Asset     string `gorm:"uniqueIndex:idx_social_key;index;not null" json:"asset"`
	Timestamp int64  `gorm:"uniqueIndex:idx_social_key;not null" json:"timestamp"`

	GalaxyScore     *float64 `json:"galaxy_score"`
	SocialVolume    float64  `json:"social_volume"`
	SocialDominance *float64 `json:"social_dominance"`
	Sentiment       float64  `json:"sentiment"` // 0-5 scale
	MarketCap       float64  `json:"market_cap"`
	Price           float64  `json:"price"`
	RawJSON         string   `gorm:"type:text" json:"-"`
}

// SignalRecord is the append-only decision log. One row per evaluated asset
// per analysis cycle; never updated after insert.
type SignalRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ProductID  string  `gorm:"index:idx_signal_lookup;not null" json:"product_id"`
	Timestamp  int64   `gorm:"index:idx_signal_lookup;not null" json:"timestamp"`
	Strategy   string  `gorm:"not null" json:"strategy"`
	Action     string  `gorm:"not null" json:"action"`
	Confidence float64 `gorm:"not null" json:"confidence"`
	Reasoning  string  `gorm:"type:text" json:"reasoning"`
	Metadata   string  `gorm:"type:text" json:"metadata"`
}

// Trade is an append-only execution record, paper or live.
type Trade struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ProductID     string  `gorm:"index;not null" json:"product_id"`
	Side          string  `gorm:"not null" json:"side"`       // buy or sell
	OrderType     string  `gorm:"not null" json:"order_type"` // market or limit
	Price         float64 `gorm:"not null" json:"price"`
	Quantity      float64 `gorm:"not null" json:"quantity"`
	Total         float64 `gorm:"not null" json:"total"`
	Fee           float64 `json:"fee"`
	Timestamp     int64   `gorm:"index;not null" json:"timestamp"`
	SignalID      *uint   `json:"signal_id"`
	ExecutionMode string  `gorm:"index;not null;default:'paper'" json:"execution_mode"`
	OrderID       string  `json:"order_id"`
	Status        string  `gorm:"not null;default:'filled'" json:"status"`
	RealizedPnL   float64 `gorm:"column:realized_pnl" json:"realized_pnl"` // sell trades only
}

// PortfolioPosition is the single ledger row per asset. The synthetic "USD"
// row holds cash. quantity == 0 means the position is flat.
type PortfolioPosition struct {
	ID    uint   `gorm:"primarykey" json:"-"`
	Asset string `gorm:"uniqueIndex;not null" json:"asset"`

	Quantity      float64 `gorm:"not null;default:0" json:"quantity"`
	AvgEntryPrice float64 `gorm:"not null;default:0" json:"avg_entry_price"`
	CurrentPrice  float64 `gorm:"default:0" json:"current_price"`
	UnrealizedPnL float64 `gorm:"column:unrealized_pnl;default:0" json:"unrealized_pnl"`
	RealizedPnL   float64 `gorm:"column:realized_pnl;default:0" json:"realized_pnl"`
	UpdatedAt     int64   `gorm:"not null" json:"updated_at"`
}

// DailyPnL keeps one summary row per UTC day for the dashboard.
type DailyPnL struct {
	Date            string  `gorm:"primarykey" json:"date"` // YYYY-MM-DD, UTC
	StartingBalance float64 `gorm:"not null" json:"starting_balance"`
	EndingBalance   float64 `json:"ending_balance"`
	RealizedPnL     float64 `gorm:"column:realized_pnl;default:0" json:"realized_pnl"`
	TradeCount      int     `gorm:"default:0" json:"trade_count"`
}
