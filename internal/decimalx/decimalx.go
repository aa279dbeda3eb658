// Package decimalx implements the exact fixed-point arithmetic used by the
// token ledger: truncating (round-toward-zero) decimal add/sub/mul/div at a
// caller-supplied number of fractional digits, backed by shopspring/decimal
// for 38-digit precision. No binary floating point is used anywhere in the
// ledger.
package decimalx

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxPrecision is the significant-digit budget every parsed/derived amount
// is held to: up to 2^64-1 in the integer part plus up to 18 fractional
// digits.
const MaxPrecision = 38

// MaxDec is the largest number of fractional digits a token may declare.
const MaxDec = 18

// ErrUnderflow is returned by Sub when b > a; callers must validate
// sufficiency themselves before subtracting, this only guards programmer
// error.
var ErrUnderflow = errors.New("decimalx: subtraction would underflow")

func init() {
	decimal.DivisionPrecision = MaxPrecision
}

// Zero returns the zero value at the given precision. dec is accepted for
// symmetry with the other operations; the zero value is identical at every
// precision once truncated.
func Zero(dec int32) decimal.Decimal {
	return truncate(decimal.Zero, dec)
}

// Add returns a+b truncated to dec fractional digits.
func Add(a, b decimal.Decimal, dec int32) decimal.Decimal {
	return truncate(a.Add(b), dec)
}

// Sub returns a-b truncated to dec fractional digits. Returns ErrUnderflow
// if the exact result would be negative.
func Sub(a, b decimal.Decimal, dec int32) (decimal.Decimal, error) {
	exact := a.Sub(b)
	if exact.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s - %s", ErrUnderflow, a.String(), b.String())
	}
	return truncate(exact, dec), nil
}

// Mul returns a*b truncated to dec fractional digits.
func Mul(a, b decimal.Decimal, dec int32) decimal.Decimal {
	return truncate(a.Mul(b), dec)
}

// Div returns a/b truncated to dec fractional digits. b must be non-zero;
// callers are expected to have already validated this (e.g. `er` is
// required to be a positive decimal by the field parsers).
func Div(a, b decimal.Decimal, dec int32) decimal.Decimal {
	return truncate(a.DivRound(b, MaxPrecision), dec)
}

// truncate rounds toward zero to dec fractional digits. decimal.Truncate
// already implements round-toward-zero semantics, matching the ledger's
// ROUND_DOWN requirement (ROUND_DOWN truncates magnitude, not sign, and
// every ledger quantity is non-negative so the two coincide).
func truncate(d decimal.Decimal, dec int32) decimal.Decimal {
	return d.Truncate(dec)
}
