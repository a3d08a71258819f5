// Package fixed implements the unsigned fixed-point integer used for every
// balance, order quantity and price in the exchange.
//
// An Amount is expressed in the smallest unit of its asset (the scale is the
// asset's number of decimals, 18 for the default tokens). All arithmetic is
// checked: an operation that would leave the 256-bit range returns an error
// instead of wrapping.
package fixed

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrOverflow      = errors.New("amount overflow")
	ErrUnderflow     = errors.New("amount underflow")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrPrecision     = errors.New("amount exceeds asset precision")
)

// Amount is a non-negative 256-bit integer quantity. The zero value is 0.
type Amount struct {
	v uint256.Int
}

func New(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// Parse converts a human decimal string ("12.5") into base units using the
// given number of decimals.
func Parse(s string, decimals int32) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	units := d.Shift(decimals)
	if !units.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %q with %d decimals", ErrPrecision, s, decimals)
	}
	v, overflow := uint256.FromBig(units.BigInt())
	if overflow {
		return Amount{}, ErrOverflow
	}
	return Amount{v: *v}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constant tables.
func MustParse(s string, decimals int32) Amount {
	a, err := Parse(s, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) (Amount, error) {
	var z Amount
	if _, overflow := z.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return z, nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	var z Amount
	if _, underflow := z.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrUnderflow
	}
	return z, nil
}

// Mul multiplies two amounts. Used for quantity * price, where the result is
// denominated in the quote asset.
func (a Amount) Mul(b Amount) (Amount, error) {
	var z Amount
	if _, overflow := z.v.MulOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return z, nil
}

func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

func (a Amount) LessThan(b Amount) bool { return a.v.Lt(&b.v) }

func (a Amount) GreaterThan(b Amount) bool { return a.v.Gt(&b.v) }

func (a Amount) IsZero() bool { return a.v.IsZero() }

func Min(a, b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// String returns the amount in base units.
func (a Amount) String() string { return a.v.Dec() }

// Format renders the amount as a decimal with the given number of decimals,
// trimming trailing zeros.
func (a Amount) Format(decimals int32) string {
	return decimal.NewFromBigInt(a.v.ToBig(), -decimals).String()
}
