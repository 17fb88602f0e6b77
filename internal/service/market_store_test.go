package service

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"paper_trade/internal/domain"

	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T, maxHistory int) *MarketStore {
	t.Helper()
	s := NewMarketStore(maxHistory)
	rng := rand.New(rand.NewPCG(1, 2))
	if err := s.Initialize(domain.DefaultStocks(), rng, time.Unix(1_700_000_000, 0)); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return s
}

func TestMarketStore_Initialize(t *testing.T) {
	s := newTestStore(t, 0)

	all := s.GetAll()
	if len(all) != len(domain.DefaultStocks()) {
		t.Fatalf("Expected %d stocks, got %d", len(domain.DefaultStocks()), len(all))
	}

	for _, st := range all {
		if st.Price.LessThan(decimal.NewFromInt(50)) || st.Price.GreaterThanOrEqual(decimal.NewFromInt(450)) {
			t.Errorf("%s: initial price %s outside [50, 450)", st.Symbol, st.Price)
		}
		if !st.Open.Equal(st.Price) || !st.High.Equal(st.Price) || !st.Low.Equal(st.Price) {
			t.Errorf("%s: open/high/low should equal price at init", st.Symbol)
		}
		if !st.Change.IsZero() || !st.ChangePercent.IsZero() {
			t.Errorf("%s: change should be zero at init", st.Symbol)
		}
		if st.Volume <= 0 {
			t.Errorf("%s: volume should be positive, got %d", st.Symbol, st.Volume)
		}
		if st.PreviousClose == nil {
			t.Errorf("%s: previous close should be seeded", st.Symbol)
		}

		history, err := s.GetHistory(st.Symbol)
		if err != nil {
			t.Fatalf("GetHistory(%s) failed: %v", st.Symbol, err)
		}
		if len(history) != 1 || !history[0].Price.Equal(st.Price) {
			t.Errorf("%s: history should hold the opening point, got %v", st.Symbol, history)
		}
	}

	t.Run("runs once", func(t *testing.T) {
		err := s.Initialize(domain.DefaultStocks(), rand.New(rand.NewPCG(3, 4)), time.Now())
		if !errors.Is(err, domain.ErrAlreadyInitialized) {
			t.Errorf("Expected ErrAlreadyInitialized, got %v", err)
		}
	})
}

func TestMarketStore_Get(t *testing.T) {
	s := newTestStore(t, 0)

	t.Run("case insensitive", func(t *testing.T) {
		st, err := s.Get("aapl")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if st.Symbol != "AAPL" || st.Name != "Apple Inc." {
			t.Errorf("Unexpected stock: %+v", st.StockDefinition)
		}
	})

	t.Run("unknown symbol", func(t *testing.T) {
		if _, err := s.Get("ZZZZ"); !errors.Is(err, domain.ErrNotSupported) {
			t.Errorf("Expected ErrNotSupported, got %v", err)
		}
		if _, err := s.GetHistory("ZZZZ"); !errors.Is(err, domain.ErrNotSupported) {
			t.Errorf("Expected ErrNotSupported for history, got %v", err)
		}
	})
}

func TestMarketStore_GetHistory_MissingFallsBackToEmpty(t *testing.T) {
	s := newTestStore(t, 0)

	s.mu.Lock()
	delete(s.history, "TSLA")
	s.mu.Unlock()

	history, err := s.GetHistory("TSLA")
	if err != nil {
		t.Fatalf("Expected no error for known symbol, got %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Errorf("Expected empty non-nil history, got %v", history)
	}
}

func TestMarketStore_AppendHistory_Bounded(t *testing.T) {
	s := newTestStore(t, 5)
	base := time.Unix(1_700_000_000, 0)

	for i := 1; i <= 12; i++ {
		point := domain.HistoryPoint{Timestamp: base.Add(time.Duration(i) * time.Second), Price: decimal.NewFromInt(int64(i))}
		if err := s.AppendHistory("MSFT", point); err != nil {
			t.Fatalf("AppendHistory failed: %v", err)
		}
	}

	history, _ := s.GetHistory("MSFT")
	if len(history) != 5 {
		t.Fatalf("Expected 5 points, got %d", len(history))
	}
	// Oldest evicted first: remaining prices are 8..12
	for i, p := range history {
		if !p.Price.Equal(decimal.NewFromInt(int64(8 + i))) {
			t.Errorf("history[%d] = %s, want %d", i, p.Price, 8+i)
		}
	}
}

func TestMarketStore_AppendHistory_MonotonicTimestamps(t *testing.T) {
	s := newTestStore(t, 0)
	opening, _ := s.GetHistory("AAPL")

	err := s.AppendHistory("AAPL", domain.HistoryPoint{
		Timestamp: opening[0].Timestamp.Add(-time.Hour),
		Price:     decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}

	history, _ := s.GetHistory("AAPL")
	if history[1].Timestamp.Before(history[0].Timestamp) {
		t.Errorf("Timestamps went backwards: %v then %v", history[0].Timestamp, history[1].Timestamp)
	}
}

func TestMarketStore_HistoryIsCopy(t *testing.T) {
	s := newTestStore(t, 0)

	history, _ := s.GetHistory("AAPL")
	history[0].Price = decimal.NewFromInt(-1)

	again, _ := s.GetHistory("AAPL")
	if again[0].Price.IsNegative() {
		t.Error("Mutating returned history should not affect the store")
	}
}

func TestMarketStore_Prices(t *testing.T) {
	s := newTestStore(t, 0)

	bad, _ := s.Get("GOOGL")
	bad.Price = decimal.Zero
	if err := s.ApplyTick("GOOGL", bad.TickData); err != nil {
		t.Fatalf("ApplyTick failed: %v", err)
	}

	prices := s.Prices([]string{"AAPL", "GOOGL", "ZZZZ"})

	if p, ok := prices["AAPL"]; !ok || !p.IsPositive() {
		t.Errorf("AAPL price should be positive, got %v", p)
	}
	if p, ok := prices["GOOGL"]; !ok || !p.IsZero() {
		t.Errorf("GOOGL invalid price should map to 0, got %v (present=%v)", p, ok)
	}
	if _, ok := prices["ZZZZ"]; ok {
		t.Error("Unknown symbol should be omitted")
	}
}

func TestMarketStore_ApplyTick_UnknownSymbol(t *testing.T) {
	s := newTestStore(t, 0)
	if err := s.ApplyTick("ZZZZ", domain.TickData{}); !errors.Is(err, domain.ErrNotSupported) {
		t.Errorf("Expected ErrNotSupported, got %v", err)
	}
}

// Readers must see either the previous or the next tick as a whole.
func TestMarketStore_ConcurrentReadsNeverTorn(t *testing.T) {
	s := newTestStore(t, 0)
	if err := s.ApplyTick("AAPL", domain.TickData{}); err != nil {
		t.Fatalf("ApplyTick failed: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= 500; i++ {
			p := decimal.NewFromInt(i)
			// Every field carries the same marker so a mix is detectable.
			_ = s.ApplyTick("AAPL", domain.TickData{Price: p, Open: p, High: p, Low: p, Volume: i})
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				st, err := s.Get("AAPL")
				if err != nil {
					t.Error(err)
					return
				}
				if st.Volume > 0 && !st.Price.Equal(decimal.NewFromInt(st.Volume)) {
					t.Errorf("torn read: price %s, volume %d", st.Price, st.Volume)
					return
				}
			}
		}()
	}
	wg.Wait()
}
