package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is the audit row written for every executed trade.
type TradeRecord struct {
	ID         string          `gorm:"primaryKey" json:"id"`
	Symbol     string          `gorm:"index" json:"symbol"`
	Side       Side            `json:"side"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `gorm:"type:text" json:"price"`
	Total      decimal.Decimal `gorm:"type:text" json:"total"`
	CashAfter  decimal.Decimal `gorm:"type:text" json:"cashAfter"`
	ExecutedAt time.Time       `gorm:"index" json:"executedAt"`
}
