package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/event"

	"github.com/shopspring/decimal"
)

const (
	DefaultInterval = 5 * time.Second

	minVolumeIncrease  = 100
	volumeIncreaseSpan = 10_000
)

var (
	DefaultMaxChangePct = decimal.RequireFromString("0.015")
	DefaultMinPrice     = decimal.NewFromInt(1)

	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// TickStore is the market state the simulator advances.
type TickStore interface {
	Symbols() []string
	Get(symbol string) (domain.Stock, error)
	ApplyTick(symbol string, tick domain.TickData) error
	AppendHistory(symbol string, point domain.HistoryPoint) error
}

// Recorder receives simulator counters. *infra.Metrics satisfies it.
type Recorder interface {
	RecordTick()
	RecordFault()
}

// Options configures the random walk.
type Options struct {
	Interval     time.Duration
	MaxChangePct decimal.Decimal // bound of the per-tick move, as a fraction
	MinPrice     decimal.Decimal // floor that keeps prices strictly positive
}

// Simulator periodically moves every symbol's price by a bounded random walk.
type Simulator struct {
	store    TickStore
	opts     Options
	bus      *event.Bus
	recorder Recorder
	now      func() time.Time

	stepMu sync.Mutex // guards rng; Step runs from the loop or directly in tests
	rng    *rand.Rand

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSimulator creates a simulator. bus and recorder may be nil.
func NewSimulator(store TickStore, rng *rand.Rand, opts Options, bus *event.Bus, recorder Recorder) *Simulator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if !opts.MaxChangePct.IsPositive() {
		opts.MaxChangePct = DefaultMaxChangePct
	}
	if !opts.MinPrice.IsPositive() {
		opts.MinPrice = DefaultMinPrice
	}
	return &Simulator{
		store:    store,
		opts:     opts,
		bus:      bus,
		recorder: recorder,
		now:      time.Now,
		rng:      rng,
	}
}

// Start begins the periodic updates in a background goroutine.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("simulator already running")
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Price simulation stopped")
				return
			case <-ticker.C:
				s.safeStep()
			}
		}
	}()

	slog.Info("Price simulation started", slog.Duration("interval", s.opts.Interval))
	return nil
}

// Stop cancels future ticks and waits for the loop to exit.
// Ticks already applied are kept.
func (s *Simulator) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
}

// safeStep keeps the loop alive if a single step panics.
func (s *Simulator) safeStep() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Price simulation panic recovered", slog.Any("panic", r))
			if s.recorder != nil {
				s.recorder.RecordFault()
			}
		}
	}()
	s.Step()
}

// Step advances every symbol by one tick.
func (s *Simulator) Step() {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	now := s.now()
	for _, symbol := range s.store.Symbols() {
		current, err := s.store.Get(symbol)
		if err != nil {
			slog.Warn("Skipping tick for missing stock", slog.String("symbol", symbol), slog.Any("error", err))
			continue
		}

		pct := decimal.NewFromFloat((s.rng.Float64() - 0.5) * 2).Mul(s.opts.MaxChangePct)
		volumeIncrease := minVolumeIncrease + int64(s.rng.Float64()*volumeIncreaseSpan)
		next := NextTick(current.TickData, pct, volumeIncrease, s.opts.MinPrice, now)

		if err := s.store.ApplyTick(symbol, next); err != nil {
			slog.Error("Failed to apply tick", slog.String("symbol", symbol), slog.Any("error", err))
			continue
		}
		if err := s.store.AppendHistory(symbol, domain.HistoryPoint{Timestamp: next.Timestamp, Price: next.Price}); err != nil {
			slog.Error("Failed to append history", slog.String("symbol", symbol), slog.Any("error", err))
		}

		if s.recorder != nil {
			s.recorder.RecordTick()
		}
		if s.bus != nil {
			s.bus.Publish(event.TickEvent{
				Symbol:        symbol,
				Price:         next.Price,
				Change:        next.Change,
				ChangePercent: next.ChangePercent,
				Volume:        next.Volume,
				Timestamp:     next.Timestamp,
			})
		}
	}
	slog.Debug("Simulated stock price updates")
}

// NextTick applies a relative move pct to cur and returns the resulting tick.
// The new price is rounded to cents and floored at minPrice; Open and
// PreviousClose are carried over unchanged.
func NextTick(cur domain.TickData, pct decimal.Decimal, volumeIncrease int64, minPrice decimal.Decimal, now time.Time) domain.TickData {
	price := domain.Round2(cur.Price.Mul(one.Add(pct)))
	price = decimal.Max(price, minPrice)

	change := domain.Round2(price.Sub(cur.Open))
	changePercent := decimal.Zero
	if cur.Open.IsPositive() {
		changePercent = domain.Round2(change.Div(cur.Open).Mul(hundred))
	}

	if volumeIncrease < 0 {
		volumeIncrease = 0
	}

	next := cur
	next.Price = price
	next.Change = change
	next.ChangePercent = changePercent
	next.High = decimal.Max(cur.High, price)
	next.Low = decimal.Min(cur.Low, price)
	next.Volume = cur.Volume + volumeIncrease
	next.Timestamp = now
	return next
}
