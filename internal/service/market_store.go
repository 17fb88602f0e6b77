package service

import (
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"paper_trade/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultMaxHistory is the number of price points kept per symbol.
const DefaultMaxHistory = 100

var (
	initialPriceMin  = decimal.NewFromInt(50)
	initialPriceSpan = decimal.NewFromInt(400)
)

// MarketStore owns the per-symbol tick data and bounded price history.
// It is read by many goroutines and written by the simulator only.
type MarketStore struct {
	mu          sync.RWMutex
	definitions []domain.StockDefinition
	index       map[string]int // symbol -> position in definitions
	ticks       map[string]domain.TickData
	history     map[string][]domain.HistoryPoint
	maxHistory  int
	initialized bool
}

// NewMarketStore creates an empty store. maxHistory <= 0 selects DefaultMaxHistory.
func NewMarketStore(maxHistory int) *MarketStore {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &MarketStore{
		index:      make(map[string]int),
		ticks:      make(map[string]domain.TickData),
		history:    make(map[string][]domain.HistoryPoint),
		maxHistory: maxHistory,
	}
}

// Initialize synthesizes the opening tick of every definition and seeds its history.
// It runs exactly once; later calls return ErrAlreadyInitialized.
func (s *MarketStore) Initialize(defs []domain.StockDefinition, rng *rand.Rand, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return domain.ErrAlreadyInitialized
	}

	for _, def := range defs {
		def.Symbol = strings.ToUpper(def.Symbol)
		if _, dup := s.index[def.Symbol]; dup {
			continue
		}

		price := domain.Round2(initialPriceMin.Add(decimal.NewFromFloat(rng.Float64()).Mul(initialPriceSpan)))
		// previous close within +/-1% of the opening price
		drift := decimal.NewFromFloat((rng.Float64() - 0.5) * 0.02)
		prevClose := domain.Round2(price.Mul(decimal.NewFromInt(1).Add(drift)))

		s.index[def.Symbol] = len(s.definitions)
		s.definitions = append(s.definitions, def)
		s.ticks[def.Symbol] = domain.TickData{
			Price:         price,
			Change:        decimal.Zero,
			ChangePercent: decimal.Zero,
			Open:          price,
			High:          price,
			Low:           price,
			Volume:        50_000 + int64(rng.Float64()*1_000_000),
			PreviousClose: &prevClose,
			Timestamp:     now,
		}
		s.history[def.Symbol] = []domain.HistoryPoint{{Timestamp: now, Price: price}}
	}
	s.initialized = true

	slog.Info("Market store initialized", slog.Int("stocks", len(s.definitions)))
	return nil
}

// canonical resolves a symbol case-insensitively. Must be called with lock held.
func (s *MarketStore) canonical(symbol string) (string, bool) {
	sym := strings.ToUpper(symbol)
	_, ok := s.index[sym]
	return sym, ok
}

// GetAll returns every stock in definition order.
func (s *MarketStore) GetAll() []domain.Stock {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Stock, 0, len(s.definitions))
	for _, def := range s.definitions {
		result = append(result, domain.Stock{StockDefinition: def, TickData: s.ticks[def.Symbol]})
	}
	return result
}

// Get returns the current record of a single symbol.
func (s *MarketStore) Get(symbol string) (domain.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sym, ok := s.canonical(symbol)
	if !ok {
		return domain.Stock{}, domain.NotSupported(symbol)
	}
	return domain.Stock{
		StockDefinition: s.definitions[s.index[sym]],
		TickData:        s.ticks[sym],
	}, nil
}

// GetHistory returns a copy of the recorded prices of a symbol, oldest first.
// A known symbol without history yields an empty slice, never an error.
func (s *MarketStore) GetHistory(symbol string) ([]domain.HistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sym, ok := s.canonical(symbol)
	if !ok {
		return nil, domain.NotSupported(symbol)
	}

	points, ok := s.history[sym]
	if !ok {
		slog.Warn("No history for initialized stock, returning empty", slog.String("symbol", sym))
		return []domain.HistoryPoint{}, nil
	}

	result := make([]domain.HistoryPoint, len(points))
	copy(result, points)
	return result, nil
}

// Symbols returns the canonical symbols in definition order.
func (s *MarketStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, len(s.definitions))
	for i, def := range s.definitions {
		result[i] = def.Symbol
	}
	return result
}

// Prices builds a price snapshot for the given symbols under a single read lock.
// Unknown symbols are omitted; a non-positive price is reported as zero.
func (s *MarketStore) Prices(symbols []string) map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		sym, ok := s.canonical(symbol)
		if !ok {
			continue
		}
		tick := s.ticks[sym]
		if !tick.HasValidPrice() {
			slog.Warn("Invalid price for stock, valuing at zero", slog.String("symbol", sym))
			result[sym] = decimal.Zero
			continue
		}
		result[sym] = tick.Price
	}
	return result
}

// ApplyTick replaces the tick data of a symbol. Only the price simulator writes here.
func (s *MarketStore) ApplyTick(symbol string, tick domain.TickData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sym, ok := s.canonical(symbol)
	if !ok {
		return domain.NotSupported(symbol)
	}
	s.ticks[sym] = tick
	return nil
}

// AppendHistory records a price point and evicts the oldest points beyond the bound.
// A point older than the last recorded one is stamped with the last timestamp.
func (s *MarketStore) AppendHistory(symbol string, point domain.HistoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sym, ok := s.canonical(symbol)
	if !ok {
		return domain.NotSupported(symbol)
	}

	points := s.history[sym]
	if n := len(points); n > 0 && point.Timestamp.Before(points[n-1].Timestamp) {
		point.Timestamp = points[n-1].Timestamp
	}
	points = append(points, point)
	if over := len(points) - s.maxHistory; over > 0 {
		// Copy down so the backing array does not grow without bound.
		points = append(points[:0:0], points[over:]...)
	}
	s.history[sym] = points
	return nil
}
