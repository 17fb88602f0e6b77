package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/pkg/safe"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Recorder receives trade outcomes for observability.
type Recorder interface {
	RecordTrade(latency time.Duration)
	RecordRejection()
	RecordFault()
}

// Executor validates and books immediate market orders against the ledger.
// Trades are serialized: quote lookup, validation and the ledger write form
// one critical section, so two trades never validate against the same state.
type Executor struct {
	mu      sync.Mutex
	quotes  domain.QuoteSource
	ledger  domain.Ledger
	journal domain.TradeJournal // optional
	metrics Recorder            // optional

	now   func() time.Time
	newID func() string
}

// NewExecutor creates an executor. journal and metrics may be nil.
func NewExecutor(quotes domain.QuoteSource, ledger domain.Ledger, journal domain.TradeJournal, metrics Recorder) *Executor {
	return &Executor{
		quotes:  quotes,
		ledger:  ledger,
		journal: journal,
		metrics: metrics,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Execute runs one trade to completion or returns the reason it was refused.
// On error the ledger is unchanged.
func (e *Executor) Execute(ctx context.Context, req domain.TradeRequest) (domain.TradeResult, error) {
	start := time.Now()
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))

	if err := req.Validate(); err != nil {
		e.reject(req, err)
		return domain.TradeResult{}, err
	}

	rec, err := e.execute(req)
	if err != nil {
		e.reject(req, err)
		return domain.TradeResult{}, err
	}

	e.record(ctx, rec)
	if e.metrics != nil {
		e.metrics.RecordTrade(time.Since(start))
	}

	slog.Info("Trade executed",
		slog.String("id", rec.ID),
		slog.String("symbol", rec.Symbol),
		slog.String("side", string(rec.Side)),
		slog.Int64("quantity", rec.Quantity),
		slog.String("price", domain.FormatUSD(rec.Price)),
		slog.String("total", domain.FormatUSD(rec.Total)),
		slog.String("cash", domain.FormatUSD(rec.CashAfter)))

	return domain.TradeResult{
		Message:  fmt.Sprintf("Trade successful: %s %d %s", strings.ToUpper(string(req.Side)), req.Quantity, req.Symbol),
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Side:     req.Side,
	}, nil
}

func (e *Executor) execute(req domain.TradeRequest) (*domain.TradeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// 1. Quote
	stock, err := e.quotes.Get(req.Symbol)
	if err != nil {
		return nil, err
	}
	if !stock.HasValidPrice() {
		return nil, &domain.MarketDataError{Symbol: stock.Symbol, Price: stock.Price}
	}

	// 2. Cost
	qty := decimal.NewFromInt(req.Quantity)
	total := domain.Round2(stock.Price.Mul(qty))

	// 3. Affordability / availability
	var entry domain.LedgerEntry
	switch req.Side {
	case domain.SideBuy:
		if cash := e.ledger.Cash(); cash.LessThan(total) {
			return nil, &domain.InsufficientFundsError{Required: total, Available: cash}
		}
		entry = domain.LedgerEntry{CashDelta: total.Neg(), Symbol: stock.Symbol, QuantityDelta: req.Quantity}
	case domain.SideSell:
		if owned := e.ledger.Holdings()[stock.Symbol]; owned < req.Quantity {
			return nil, &domain.InsufficientSharesError{Symbol: stock.Symbol, Requested: req.Quantity, Owned: owned}
		}
		entry = domain.LedgerEntry{CashDelta: total, Symbol: stock.Symbol, QuantityDelta: safe.SafeNeg(req.Quantity)}
	default:
		return nil, fmt.Errorf("%w: unknown side %q", domain.ErrInvalidRequest, req.Side)
	}

	// 4. Book
	if err := e.apply(entry); err != nil {
		return nil, err
	}

	return &domain.TradeRecord{
		ID:         e.newID(),
		Symbol:     stock.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      stock.Price,
		Total:      total,
		CashAfter:  e.ledger.Cash(),
		ExecutedAt: e.now(),
	}, nil
}

// apply books the entry; a panic inside the ledger rolls the account back
// to its pre-trade state.
func (e *Executor) apply(entry domain.LedgerEntry) (err error) {
	snap := e.ledger.Snapshot()
	defer func() {
		if r := recover(); r != nil {
			e.ledger.Restore(snap)
			err = &domain.LedgerWriteError{Symbol: entry.Symbol, Err: fmt.Errorf("%v", r)}
		}
	}()
	e.ledger.Apply(entry)
	return nil
}

func (e *Executor) record(ctx context.Context, rec *domain.TradeRecord) {
	if e.journal == nil {
		return
	}
	// The trade is booked; the audit row must outlive a disconnected caller.
	if err := e.journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("Failed to journal trade", slog.String("id", rec.ID), slog.Any("error", err))
	}
}

func (e *Executor) reject(req domain.TradeRequest, err error) {
	attrs := []any{
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.Int64("quantity", req.Quantity),
		slog.Any("error", err),
	}

	var lwe *domain.LedgerWriteError
	switch {
	case errors.As(err, &lwe):
		slog.Error("CRITICAL: ledger write failed, account restored", attrs...)
	case domain.IsClientError(err):
		slog.Info("Trade rejected", attrs...)
	default:
		slog.Error("Trade failed", attrs...)
	}

	if e.metrics == nil {
		return
	}
	if domain.IsClientError(err) {
		e.metrics.RecordRejection()
	} else {
		e.metrics.RecordFault()
	}
}
