package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockDefinition is one entry of the fixed, tradable symbol set.
type StockDefinition struct {
	Symbol string `json:"symbol" yaml:"symbol"` // Uppercase canonical symbol (e.g., "AAPL")
	Name   string `json:"name" yaml:"name"`
}

// TickData is the simulated market state of a single symbol.
// Invariants: Low <= Price <= High, Open never changes, Volume never decreases.
type TickData struct {
	Price         decimal.Decimal  `json:"price"`
	Change        decimal.Decimal  `json:"change"`        // Price - Open
	ChangePercent decimal.Decimal  `json:"changePercent"` // Change / Open * 100
	Open          decimal.Decimal  `json:"open"`          // Session open, fixed at initialization
	High          decimal.Decimal  `json:"high"`
	Low           decimal.Decimal  `json:"low"`
	Volume        int64            `json:"volume"`
	PreviousClose *decimal.Decimal `json:"previousClose,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// HasValidPrice reports whether the tick carries a tradable (strictly positive) price.
func (t TickData) HasValidPrice() bool {
	return t.Price.IsPositive()
}

// Stock joins a definition with its current tick data.
type Stock struct {
	StockDefinition
	TickData
}

// HistoryPoint is one recorded price of a symbol.
type HistoryPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// DefaultStocks is the symbol set used when the configuration does not list any.
func DefaultStocks() []StockDefinition {
	return []StockDefinition{
		{Symbol: "AAPL", Name: "Apple Inc."},
		{Symbol: "GOOGL", Name: "Alphabet Inc."},
		{Symbol: "MSFT", Name: "Microsoft Corp."},
		{Symbol: "AMZN", Name: "Amazon.com, Inc."},
		{Symbol: "TSLA", Name: "Tesla, Inc."},
		{Symbol: "META", Name: "Meta Platforms, Inc."},
	}
}
