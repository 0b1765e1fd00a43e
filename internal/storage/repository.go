package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CashAsset is the synthetic portfolio row holding the quote-currency balance.
const CashAsset = "USD"

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Candles

// UpsertCandles inserts candles for a product/timeframe, overwriting rows that
// already exist for the same timestamp. Idempotent.
func (r *Repository) UpsertCandles(productID, timeframe string, candles []Candle) error {
	if len(candles) == 0 {
		return nil
	}
	for i := range candles {
		candles[i].ID = 0
		candles[i].ProductID = productID
		candles[i].Timeframe = timeframe
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "timeframe"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open", "high", "low", "close", "volume",
		}),
	}).Create(&candles).Error
}

// GetCandles returns up to limit candles sorted ascending by timestamp.
// With since == 0 it returns the most recent candles; with since > 0 the
// earliest candles at or after that timestamp.
func (r *Repository) GetCandles(productID, timeframe string, limit int, since int64) ([]Candle, error) {
	var candles []Candle
	q := r.db.Where("product_id = ? AND timeframe = ?", productID, timeframe)
	if since > 0 {
		err := q.Where("timestamp >= ?", since).
			Order("timestamp ASC").Limit(limit).Find(&candles).Error
		return candles, err
	}
	if err := q.Order("timestamp DESC").Limit(limit).Find(&candles).Error; err != nil {
		return nil, err
	}
	reverseCandles(candles)
	return candles, nil
}

func reverseCandles(c []Candle) {
	for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
		c[i], c[j] = c[j], c[i]
	}
}

// Social data

func (r *Repository) UpsertSocialRecords(records []SocialRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		records[i].ID = 0
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "asset"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"galaxy_score", "social_volume", "social_dominance",
			"sentiment", "market_cap", "price", "raw_json",
		}),
	}).Create(&records).Error
}

func (r *Repository) GetSocialRecords(asset string, limit int, since int64) ([]SocialRecord, error) {
	var records []SocialRecord
	q := r.db.Where("asset = ?", asset)
	if since > 0 {
		err := q.Where("timestamp >= ?", since).
			Order("timestamp ASC").Limit(limit).Find(&records).Error
		return records, err
	}
	if err := q.Order("timestamp DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Signals

func (r *Repository) SaveSignal(sig *SignalRecord) error {
	return r.db.Create(sig).Error
}

func (r *Repository) GetRecentSignals(limit int) ([]SignalRecord, error) {
	var signals []SignalRecord
	err := r.db.Order("timestamp DESC").Limit(limit).Find(&signals).Error
	return signals, err
}

// Trades

func (r *Repository) SaveTrade(trade *Trade) error {
	return r.db.Create(trade).Error
}

// GetTrades returns trades newest first, optionally filtered by product and
// execution mode.
func (r *Repository) GetTrades(productID, executionMode string, limit int) ([]Trade, error) {
	var trades []Trade
	q := r.db.Order("timestamp DESC").Limit(limit)
	if productID != "" {
		q = q.Where("product_id = ?", productID)
	}
	if executionMode != "" {
		q = q.Where("execution_mode = ?", executionMode)
	}
	err := q.Find(&trades).Error
	return trades, err
}

func (r *Repository) GetTradesSince(since int64, executionMode string) ([]Trade, error) {
	var trades []Trade
	err := r.db.Where("timestamp >= ? AND execution_mode = ?", since, executionMode).
		Order("timestamp ASC").Find(&trades).Error
	return trades, err
}

// LastTrade returns the most recent trade for a product in the given mode, or
// nil when the product has never traded.
func (r *Repository) LastTrade(productID, executionMode string) (*Trade, error) {
	var trade Trade
	err := r.db.Where("product_id = ? AND execution_mode = ?", productID, executionMode).
		Order("timestamp DESC").First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// RealizedPnLSince sums realized profit and loss over sell trades at or after
// the given timestamp.
func (r *Repository) RealizedPnLSince(since int64, executionMode string) (float64, error) {
	var total float64
	err := r.db.Model(&Trade{}).
		Where("side = ? AND timestamp >= ? AND execution_mode = ?", "sell", since, executionMode).
		Select("COALESCE(SUM(realized_pnl), 0)").Scan(&total).Error
	return total, err
}

// Portfolio

func (r *Repository) UpsertPosition(pos *PortfolioPosition) error {
	// Conflict resolution keys on asset, not the rowid.
	pos.ID = 0
	pos.UpdatedAt = time.Now().UTC().Unix()
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "asset"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"quantity", "avg_entry_price", "current_price",
			"unrealized_pnl", "realized_pnl", "updated_at",
		}),
	}).Create(pos).Error
}

func (r *Repository) GetPosition(asset string) (*PortfolioPosition, error) {
	var pos PortfolioPosition
	err := r.db.Where("asset = ?", asset).First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// GetPortfolio returns every ledger row, cash included.
func (r *Repository) GetPortfolio() ([]PortfolioPosition, error) {
	var positions []PortfolioPosition
	err := r.db.Order("asset ASC").Find(&positions).Error
	return positions, err
}

// GetOpenPositions returns non-cash positions with quantity > 0.
func (r *Repository) GetOpenPositions() ([]PortfolioPosition, error) {
	var positions []PortfolioPosition
	err := r.db.Where("asset <> ? AND quantity > 0", CashAsset).
		Order("asset ASC").Find(&positions).Error
	return positions, err
}

// Daily PnL

func (r *Repository) RecordDailyPnL(row *DailyPnL) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"ending_balance", "realized_pnl", "trade_count",
		}),
	}).Create(row).Error
}

func (r *Repository) GetDailyPnL(limit int) ([]DailyPnL, error) {
	var rows []DailyPnL
	err := r.db.Order("date DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
