package domain

import "github.com/shopspring/decimal"

// HoldingValue is a single position valued at a given price.
// Price and Value are zero when no valid price was available.
type HoldingValue struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

// PortfolioValuation is the account valued at a price snapshot.
// All monetary figures are rounded to 2 decimal places.
type PortfolioValuation struct {
	Cash       decimal.Decimal `json:"cash"`
	Holdings   []HoldingValue  `json:"holdings"`
	TotalValue decimal.Decimal `json:"totalValue"`
}

// LedgerSnapshot is a point-in-time copy of the account state.
type LedgerSnapshot struct {
	Cash     decimal.Decimal
	Holdings map[string]int64
}

// LedgerEntry is the effect of one trade on the account:
// cash moves by CashDelta, then Symbol's quantity moves by QuantityDelta.
type LedgerEntry struct {
	CashDelta     decimal.Decimal
	Symbol        string
	QuantityDelta int64
}
