package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ClientError is implemented by errors caused by the caller's input.
// Those are reported with full detail; everything else is an internal fault.
type ClientError interface {
	error
	IsClientError() bool
}

// IsClientError checks if an error should be surfaced to the caller as-is.
func IsClientError(err error) bool {
	if errors.Is(err, ErrNotSupported) || errors.Is(err, ErrInvalidRequest) {
		return true
	}
	var ce ClientError
	if errors.As(err, &ce) {
		return ce.IsClientError()
	}
	return false
}

var (
	// ErrNotSupported is returned when a symbol is not part of the definition set. Not retriable.
	ErrNotSupported = errors.New("symbol not supported")

	// ErrInvalidRequest is returned for malformed trade requests.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAlreadyInitialized is returned when the market store is initialized twice
	ErrAlreadyInitialized = errors.New("market store already initialized")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)

// NotSupported wraps ErrNotSupported with the offending symbol.
func NotSupported(symbol string) error {
	return fmt.Errorf("%w: %q", ErrNotSupported, symbol)
}

// MarketDataError signals a known symbol whose price is missing or not positive.
// This is a data-integrity fault of the market layer, never a user error.
type MarketDataError struct {
	Symbol string
	Price  decimal.Decimal
}

func (e *MarketDataError) Error() string {
	return fmt.Sprintf("invalid market data for %s: price %s", e.Symbol, e.Price.String())
}

func (e *MarketDataError) IsClientError() bool {
	return false
}

// InsufficientFundsError is returned when a buy costs more than the available cash.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %s, but only have %s",
		FormatUSD(e.Required), FormatUSD(e.Available))
}

func (e *InsufficientFundsError) IsClientError() bool {
	return true
}

// InsufficientSharesError is returned when a sell exceeds the owned quantity (including zero owned).
type InsufficientSharesError struct {
	Symbol    string
	Requested int64
	Owned     int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares of %s: requested %d, owned %d",
		e.Symbol, e.Requested, e.Owned)
}

func (e *InsufficientSharesError) IsClientError() bool {
	return true
}

// LedgerWriteError wraps a failure of the ledger mutation after validation passed.
type LedgerWriteError struct {
	Symbol string
	Err    error
}

func (e *LedgerWriteError) Error() string {
	return "ledger write failed for " + e.Symbol + ": " + e.Err.Error()
}

func (e *LedgerWriteError) IsClientError() bool {
	return false
}

func (e *LedgerWriteError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
