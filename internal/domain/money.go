package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the account currency. Amounts are kept as decimals in major units.
const Currency = money.USD

// Round2 rounds a monetary amount to cents (half away from zero).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatUSD renders an amount with the currency's symbol and grouping, e.g. "$1,900.00".
func FormatUSD(d decimal.Decimal) string {
	cur := money.GetCurrency(Currency)
	minor := d.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
