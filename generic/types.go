/*
Package generic provides the primitives shared by the day-off engine.

PURPOSE:
  This package has no knowledge of credits, requests or approvals. It
  holds the value types every other package agrees on: day amounts,
  calendar days, actors and the error taxonomy.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A fractional number of days (1.5 days, 0.25 days)
  - Precision: Every mutation is rounded to 2 decimal places

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal, never float64 arithmetic
  2. Rounding: Round() after every Add/Sub so repeated allocation cannot
     drift (1.5 - 0.1 - 0.1 ... stays exact)
  3. Non-negative helpers: ClampZero() for ledger balances

USAGE:
  a := generic.NewAmount(1.5)
  b := a.Sub(generic.NewAmount(0.5)) // 1.00
  b.IsZero()                         // false

SEE ALSO:
  - time.go: TimePoint (calendar day)
  - actor.go: Role and Actor
  - errors.go: Error taxonomy
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places kept on every balance mutation.
const Precision int32 = 2

// maxExponent bounds the decimal exponent ParseAmount accepts. Rounding
// 1e900000000 to Precision would otherwise build a 900-million-digit integer.
const maxExponent int32 = 18

// MaxDays is the largest amount a single credit or request may carry.
var MaxDays = NewAmountFromInt(366)

// =============================================================================
// AMOUNT - Fractional days
// =============================================================================

// Amount is a quantity of days. The zero value is 0 days.
type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value float64) Amount {
	return Amount{Value: decimal.NewFromFloat(value)}.Round()
}

func NewAmountFromInt(value int) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value))}
}

// ParseAmount parses a decimal string ("1.50"). Used by the stores, which
// persist amounts as text to avoid REAL rounding, and by the API. Exponents
// outside ±maxExponent are refused before any rounding happens.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: amount %q", ErrInvalidRequest, s)
	}
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return Amount{}, fmt.Errorf("%w: amount %q out of range", ErrInvalidRequest, s)
	}
	return Amount{Value: d}.Round(), nil
}

func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		return Zero()
	}
	return a
}

func Zero() Amount { return Amount{Value: decimal.Zero} }

// Round returns the amount rounded half-away-from-zero to Precision places.
func (a Amount) Round() Amount { return Amount{Value: a.Value.Round(Precision)} }

func (a Amount) Add(b Amount) Amount { return Amount{Value: a.Value.Add(b.Value)}.Round() }
func (a Amount) Sub(b Amount) Amount { return Amount{Value: a.Value.Sub(b.Value)}.Round() }

func (a Amount) IsNegative() bool { return a.Round().Value.IsNegative() }
func (a Amount) IsZero() bool     { return a.Round().Value.IsZero() }
func (a Amount) IsPositive() bool { return a.Round().Value.IsPositive() }

func (a Amount) Equal(b Amount) bool       { return a.Round().Value.Equal(b.Round().Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Round().Value.GreaterThan(b.Round().Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Round().Value.LessThan(b.Round().Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// ClampZero maps anything at or below zero to exactly zero.
func (a Amount) ClampZero() Amount {
	if !a.IsPositive() {
		return Zero()
	}
	return a.Round()
}

// String renders with fixed precision ("1.50"), which is also the storage format.
func (a Amount) String() string { return a.Value.StringFixed(Precision) }

// MarshalText encodes the amount in its storage format so JSON carries
// "1.50" rather than a float.
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Amount) UnmarshalText(b []byte) error {
	parsed, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
