package domain

import (
	"fmt"
	"strings"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts "buy" or "sell" (exact, lowercase).
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideBuy, SideSell:
		return Side(s), nil
	default:
		return "", fmt.Errorf("%w: side must be either \"buy\" or \"sell\"", ErrInvalidRequest)
	}
}

// TradeRequest is an immediate market order.
// Callers guarantee Quantity >= 1 and a valid Side; see Validate.
type TradeRequest struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Side     Side   `json:"side"`
}

// Validate performs the request shape checks done at the API boundary.
func (r TradeRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("%w: symbol cannot be empty", ErrInvalidRequest)
	}
	if r.Symbol != strings.ToUpper(r.Symbol) {
		return fmt.Errorf("%w: symbol must be uppercase", ErrInvalidRequest)
	}
	if r.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidRequest)
	}
	if _, err := ParseSide(string(r.Side)); err != nil {
		return err
	}
	return nil
}

// TradeResult describes an executed trade.
type TradeResult struct {
	Message  string `json:"message"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Side     Side   `json:"side"`
}
