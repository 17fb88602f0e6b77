package service

import (
	"math"
	"testing"

	"paper_trade/internal/domain"

	"github.com/shopspring/decimal"
)

func TestLedger_InitialState(t *testing.T) {
	l := NewLedger(DefaultInitialCash)

	if !l.Cash().Equal(decimal.NewFromInt(100000)) {
		t.Errorf("Expected cash 100000, got %s", l.Cash())
	}
	if len(l.Holdings()) != 0 {
		t.Errorf("Expected no holdings, got %v", l.Holdings())
	}
}

func TestLedger_UpdateHoldings(t *testing.T) {
	t.Run("round trip removes entry", func(t *testing.T) {
		l := NewLedger(DefaultInitialCash)
		l.UpdateHoldings("AAPL", 7)
		l.UpdateHoldings("AAPL", -7)

		if _, ok := l.Holdings()["AAPL"]; ok {
			t.Error("AAPL should be absent, not stored with quantity 0")
		}
	})

	t.Run("overshoot removes entry", func(t *testing.T) {
		l := NewLedger(DefaultInitialCash)
		l.UpdateHoldings("TSLA", 3)
		l.UpdateHoldings("TSLA", -10)

		if _, ok := l.Holdings()["TSLA"]; ok {
			t.Error("TSLA should be removed when quantity drops below zero")
		}
	})

	t.Run("negative from empty is ignored", func(t *testing.T) {
		l := NewLedger(DefaultInitialCash)
		l.UpdateHoldings("META", -1)

		if len(l.Holdings()) != 0 {
			t.Errorf("Expected no holdings, got %v", l.Holdings())
		}
	})

	t.Run("accumulates", func(t *testing.T) {
		l := NewLedger(DefaultInitialCash)
		l.UpdateHoldings("MSFT", 2)
		l.UpdateHoldings("MSFT", 5)

		if got := l.Holdings()["MSFT"]; got != 7 {
			t.Errorf("Expected 7, got %d", got)
		}
	})

	t.Run("overflow panics and keeps state", func(t *testing.T) {
		l := NewLedger(DefaultInitialCash)
		l.UpdateHoldings("AMZN", math.MaxInt64)

		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Error("Expected overflow panic")
				}
			}()
			l.UpdateHoldings("AMZN", 1)
		}()

		if got := l.Holdings()["AMZN"]; got != math.MaxInt64 {
			t.Errorf("Quantity should be unchanged after failed update, got %d", got)
		}
	})
}

func TestLedger_HoldingsIsCopy(t *testing.T) {
	l := NewLedger(DefaultInitialCash)
	l.UpdateHoldings("AAPL", 1)

	h := l.Holdings()
	h["AAPL"] = 1000
	h["GOOGL"] = 5

	if got := l.Holdings(); got["AAPL"] != 1 || len(got) != 1 {
		t.Errorf("External mutation leaked into ledger: %v", got)
	}
}

func TestLedger_UpdateCash(t *testing.T) {
	l := NewLedger(DefaultInitialCash)
	l.UpdateCash(decimal.NewFromInt(-1900))
	l.UpdateCash(decimal.RequireFromString("0.015"))

	want := decimal.RequireFromString("98100.015")
	if !l.Cash().Equal(want) {
		t.Errorf("Expected unrounded cash %s, got %s", want, l.Cash())
	}
}

func TestLedger_SnapshotRestore(t *testing.T) {
	l := NewLedger(DefaultInitialCash)
	l.UpdateHoldings("AAPL", 10)
	snap := l.Snapshot()

	l.Apply(domain.LedgerEntry{CashDelta: decimal.NewFromInt(-500), Symbol: "MSFT", QuantityDelta: 2})
	l.Restore(snap)

	if !l.Cash().Equal(DefaultInitialCash) {
		t.Errorf("Cash not restored: %s", l.Cash())
	}
	h := l.Holdings()
	if len(h) != 1 || h["AAPL"] != 10 {
		t.Errorf("Holdings not restored: %v", h)
	}
}

func TestLedger_ValuePortfolio(t *testing.T) {
	t.Run("bought 10 AAPL at 150, valued at 190", func(t *testing.T) {
		l := NewLedger(DefaultInitialCash)
		l.Apply(domain.LedgerEntry{CashDelta: decimal.NewFromInt(-1500), Symbol: "AAPL", QuantityDelta: 10})

		v := l.ValuePortfolio(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(190)})

		if !v.Cash.Equal(decimal.NewFromInt(98500)) {
			t.Errorf("Cash = %s, want 98500", v.Cash)
		}
		if len(v.Holdings) != 1 {
			t.Fatalf("Expected 1 holding, got %d", len(v.Holdings))
		}
		h := v.Holdings[0]
		if h.Symbol != "AAPL" || h.Quantity != 10 || !h.Price.Equal(decimal.NewFromInt(190)) || !h.Value.Equal(decimal.NewFromInt(1900)) {
			t.Errorf("Unexpected holding: %+v", h)
		}
		if !v.TotalValue.Equal(decimal.NewFromInt(100400)) {
			t.Errorf("TotalValue = %s, want 100400", v.TotalValue)
		}
	})

	t.Run("missing and invalid prices value at zero", func(t *testing.T) {
		l := NewLedger(decimal.NewFromInt(1000))
		l.UpdateHoldings("AAPL", 2)
		l.UpdateHoldings("MSFT", 3)
		l.UpdateHoldings("TSLA", 1)

		v := l.ValuePortfolio(map[string]decimal.Decimal{
			"AAPL": decimal.RequireFromString("10.125"),
			"MSFT": decimal.NewFromInt(-4),
		})

		if len(v.Holdings) != 3 {
			t.Fatalf("All holdings must be listed, got %d", len(v.Holdings))
		}
		// Sorted by symbol
		if v.Holdings[0].Symbol != "AAPL" || v.Holdings[1].Symbol != "MSFT" || v.Holdings[2].Symbol != "TSLA" {
			t.Errorf("Unexpected order: %+v", v.Holdings)
		}
		if !v.Holdings[0].Value.Equal(decimal.RequireFromString("20.25")) {
			t.Errorf("AAPL value = %s, want 20.25", v.Holdings[0].Value)
		}
		for _, h := range v.Holdings[1:] {
			if !h.Price.IsZero() || !h.Value.IsZero() || h.Quantity == 0 {
				t.Errorf("%s: expected zero price/value with quantity kept, got %+v", h.Symbol, h)
			}
		}
		if !v.TotalValue.Equal(decimal.RequireFromString("1020.25")) {
			t.Errorf("TotalValue = %s, want 1020.25", v.TotalValue)
		}
	})

	t.Run("pure", func(t *testing.T) {
		l := NewLedger(decimal.RequireFromString("10.005"))
		l.UpdateHoldings("AAPL", 1)
		prices := map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(1)}

		first := l.ValuePortfolio(prices)
		second := l.ValuePortfolio(prices)

		if !first.TotalValue.Equal(second.TotalValue) {
			t.Error("Valuation should be deterministic")
		}
		if !l.Cash().Equal(decimal.RequireFromString("10.005")) {
			t.Errorf("Internal cash must stay unrounded, got %s", l.Cash())
		}
		if !first.Cash.Equal(decimal.RequireFromString("10.01")) {
			t.Errorf("Reported cash = %s, want 10.01", first.Cash)
		}
	})
}

// priceFunc adapts a function to domain.PriceSource.
type priceFunc func(symbols []string) map[string]decimal.Decimal

func (f priceFunc) Prices(symbols []string) map[string]decimal.Decimal { return f(symbols) }

func TestLedger_Valuation_SingleSnapshot(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(10_000))
	l.Apply(domain.LedgerEntry{CashDelta: decimal.NewFromInt(-1000), Symbol: "MSFT", QuantityDelta: 4})

	var asked []string
	src := priceFunc(func(symbols []string) map[string]decimal.Decimal {
		asked = symbols
		// A trade lands while prices are being looked up.
		l.Apply(domain.LedgerEntry{CashDelta: decimal.NewFromInt(-500), Symbol: "TSLA", QuantityDelta: 2})
		return map[string]decimal.Decimal{"MSFT": decimal.NewFromInt(300), "TSLA": decimal.NewFromInt(250)}
	})

	v := l.Valuation(src)

	if len(asked) != 1 || asked[0] != "MSFT" {
		t.Errorf("Expected prices requested for [MSFT], got %v", asked)
	}
	if len(v.Holdings) != 1 || v.Holdings[0].Symbol != "MSFT" {
		t.Fatalf("Valuation should reflect one snapshot, got %+v", v.Holdings)
	}
	if !v.Cash.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("Cash = %s, want 9000", v.Cash)
	}
	if !v.TotalValue.Equal(decimal.NewFromInt(10_200)) {
		t.Errorf("TotalValue = %s, want 10200", v.TotalValue)
	}
}

func TestLedger_Valuation_NoHoldings(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(500))
	src := priceFunc(func([]string) map[string]decimal.Decimal {
		t.Error("Prices should not be requested without holdings")
		return nil
	})

	v := l.Valuation(src)
	if !v.TotalValue.Equal(decimal.NewFromInt(500)) || len(v.Holdings) != 0 {
		t.Errorf("Unexpected valuation: %+v", v)
	}
}
