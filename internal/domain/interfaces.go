package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// QuoteSource resolves the current market record of a symbol.
// Unknown symbols yield ErrNotSupported.
type QuoteSource interface {
	Get(symbol string) (Stock, error)
}

// PriceSource builds a symbol -> price snapshot for valuation.
type PriceSource interface {
	Prices(symbols []string) map[string]decimal.Decimal
}

// Ledger is the write surface of the portfolio used by trade execution.
type Ledger interface {
	Cash() decimal.Decimal
	Holdings() map[string]int64
	Apply(entry LedgerEntry)
	Snapshot() LedgerSnapshot
	Restore(snap LedgerSnapshot)
}

// TradeJournal records executed trades for audit.
type TradeJournal interface {
	Record(ctx context.Context, rec *TradeRecord) error
	Recent(ctx context.Context, limit int) ([]TradeRecord, error)
}
