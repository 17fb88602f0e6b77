package service

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"paper_trade/internal/domain"
	"paper_trade/pkg/safe"

	"github.com/shopspring/decimal"
)

// DefaultInitialCash is the starting balance of a fresh account.
var DefaultInitialCash = decimal.NewFromInt(100_000)

// Ledger owns the account's cash balance and holdings.
// It does not validate: callers (the trade executor) check funds and shares first.
type Ledger struct {
	mu       sync.RWMutex
	cash     decimal.Decimal
	holdings map[string]int64
}

// NewLedger creates a ledger with the given starting cash and no holdings.
func NewLedger(initialCash decimal.Decimal) *Ledger {
	return &Ledger{
		cash:     initialCash,
		holdings: make(map[string]int64),
	}
}

// Cash returns the current, unrounded cash balance.
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// Holdings returns a copy of the symbol -> quantity map.
func (l *Ledger) Holdings() map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.holdings)
}

// UpdateCash adds delta (possibly negative) to the cash balance.
func (l *Ledger) UpdateCash(delta decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updateCash(delta)
}

// UpdateHoldings moves a symbol's quantity by delta. A resulting quantity <= 0
// removes the symbol entirely.
func (l *Ledger) UpdateHoldings(symbol string, delta int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updateHoldings(symbol, delta)
}

// Apply books one trade: cash first, then holdings, as a single unit for readers.
func (l *Ledger) Apply(entry domain.LedgerEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updateCash(entry.CashDelta)
	l.updateHoldings(entry.Symbol, entry.QuantityDelta)
}

// Must be called with lock held
func (l *Ledger) updateCash(delta decimal.Decimal) {
	l.cash = l.cash.Add(delta)
	slog.Debug("Cash updated",
		slog.String("delta", delta.StringFixed(2)),
		slog.String("balance", l.cash.StringFixed(2)))
}

// Must be called with lock held
func (l *Ledger) updateHoldings(symbol string, delta int64) {
	qty := safe.SafeAdd(l.holdings[symbol], delta)
	if qty <= 0 {
		delete(l.holdings, symbol)
		slog.Debug("Holding removed", slog.String("symbol", symbol))
		return
	}
	l.holdings[symbol] = qty
	slog.Debug("Holding updated", slog.String("symbol", symbol), slog.Int64("quantity", qty))
}

// Snapshot returns a consistent copy of cash and holdings.
func (l *Ledger) Snapshot() domain.LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.LedgerSnapshot{Cash: l.cash, Holdings: maps.Clone(l.holdings)}
}

// Restore replaces the account state with a previous snapshot.
func (l *Ledger) Restore(snap domain.LedgerSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = snap.Cash
	l.holdings = maps.Clone(snap.Holdings)
	if l.holdings == nil {
		l.holdings = make(map[string]int64)
	}
}

// ValuePortfolio values the account at the given prices. It does not mutate state.
// Holdings without a positive price are listed with zero price and value.
func (l *Ledger) ValuePortfolio(prices map[string]decimal.Decimal) domain.PortfolioValuation {
	return valueSnapshot(l.Snapshot(), prices)
}

// Valuation values one snapshot of the account, asking src only for the
// symbols held in that snapshot.
func (l *Ledger) Valuation(src domain.PriceSource) domain.PortfolioValuation {
	snap := l.Snapshot()
	if len(snap.Holdings) == 0 {
		return valueSnapshot(snap, nil)
	}
	return valueSnapshot(snap, src.Prices(slices.Sorted(maps.Keys(snap.Holdings))))
}

func valueSnapshot(snap domain.LedgerSnapshot, prices map[string]decimal.Decimal) domain.PortfolioValuation {
	symbols := slices.Sorted(maps.Keys(snap.Holdings))
	holdings := make([]domain.HoldingValue, 0, len(symbols))
	invested := decimal.Zero

	for _, symbol := range symbols {
		qty := snap.Holdings[symbol]
		price, ok := prices[symbol]
		if !ok || !price.IsPositive() {
			slog.Warn("Missing or invalid price for held stock, using 0", slog.String("symbol", symbol))
			holdings = append(holdings, domain.HoldingValue{
				Symbol:   symbol,
				Quantity: qty,
				Price:    decimal.Zero,
				Value:    decimal.Zero,
			})
			continue
		}

		value := domain.Round2(price.Mul(decimal.NewFromInt(qty)))
		invested = invested.Add(value)
		holdings = append(holdings, domain.HoldingValue{
			Symbol:   symbol,
			Quantity: qty,
			Price:    price,
			Value:    value,
		})
	}

	return domain.PortfolioValuation{
		Cash:       domain.Round2(snap.Cash),
		Holdings:   holdings,
		TotalValue: domain.Round2(snap.Cash.Add(invested)),
	}
}
