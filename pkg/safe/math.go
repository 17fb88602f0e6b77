package safe

import "math"

// SafeAdd adds two int64 values and panics on overflow/underflow.
// Ledger quantities go through here so a wrapped position is never stored.
func SafeAdd(a, b int64) int64 {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		panic("CORE_SAFE_ADD_OVERFLOW")
	}
	return a + b
}

// SafeNeg negates an int64 and panics for MinInt64, which has no positive counterpart.
func SafeNeg(a int64) int64 {
	if a == math.MinInt64 {
		panic("CORE_SAFE_NEG_OVERFLOW")
	}
	return -a
}
