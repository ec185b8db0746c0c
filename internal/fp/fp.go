// Package fp implements the checked fixed-point arithmetic the rest of the
// engine builds on. All position quantities are scaled integers; this
// package is the only place that performs the wide (128-bit) intermediate
// math that size*price products require.
package fp

import (
	"math/big"

	"github.com/rtx-labs/posengine/internal/enginerr"
)

// Scale is the quote-unit granularity applied to every monetary quantity.
const Scale int64 = 1_000_000

// RateScale is the granularity applied to rates (imr, mmr, funding). It is
// numerically equal to Scale but kept as a distinct name per the data model.
const RateScale int64 = Scale

var (
	maxU64 = new(big.Int).SetUint64(^uint64(0))
	maxI64 = big.NewInt(int64(^uint64(0) >> 1))
	minI64 = new(big.Int).Neg(new(big.Int).Add(maxI64, big.NewInt(1)))
)

// AddU checks a+b over unsigned 64-bit operands widened to 128 bits.
func AddU(a, b uint64) (uint64, error) {
	r := new(big.Int).Add(bigU(a), bigU(b))
	return downcastU(r)
}

// SubU checks a-b, failing with Underflow if the result would be negative.
func SubU(a, b uint64) (uint64, error) {
	if b > a {
		return 0, enginerr.New(enginerr.Underflow, "subtraction underflow")
	}
	return a - b, nil
}

// MulU checks a*b over unsigned operands widened to 128 bits.
func MulU(a, b uint64) (uint64, error) {
	r := new(big.Int).Mul(bigU(a), bigU(b))
	return downcastU(r)
}

// DivU checks a/b, failing with DivisionByZero if b is zero. Division
// truncates toward zero, matching integer division semantics used
// throughout the margin formulas.
func DivU(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, enginerr.New(enginerr.DivisionByZero, "division by zero")
	}
	return a / b, nil
}

// AddI checks a+b over signed 64-bit operands widened to 128 bits.
func AddI(a, b int64) (int64, error) {
	r := new(big.Int).Add(big.NewInt(a), big.NewInt(b))
	return downcastI(r)
}

// SubI checks a-b over signed 64-bit operands widened to 128 bits.
func SubI(a, b int64) (int64, error) {
	r := new(big.Int).Sub(big.NewInt(a), big.NewInt(b))
	return downcastI(r)
}

// MulI checks a*b over signed 64-bit operands widened to 128 bits.
func MulI(a, b int64) (int64, error) {
	r := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	return downcastI(r)
}

// DivI checks a/b over signed operands, failing with DivisionByZero if b is
// zero. Truncates toward zero (big.Int.Quo semantics).
func DivI(a, b int64) (int64, error) {
	if b == 0 {
		return 0, enginerr.New(enginerr.DivisionByZero, "division by zero")
	}
	r := new(big.Int).Quo(big.NewInt(a), big.NewInt(b))
	return downcastI(r)
}

// Wide128 is a 128-bit-class signed integer used for size*price products
// before they are divided back down to a 64-bit quantity. It wraps big.Int
// so callers never reach for floating point.
type Wide128 struct {
	v *big.Int
}

// FromI64 lifts a narrow signed value to wide width.
func FromI64(a int64) Wide128 { return Wide128{v: big.NewInt(a)} }

// MulWide computes a*b at full 128-bit width with no overflow check — the
// check happens when the caller narrows the result back with ToI64/ToU64.
func MulWide(a, b int64) Wide128 {
	return Wide128{v: new(big.Int).Mul(big.NewInt(a), big.NewInt(b))}
}

// MulWideU computes a*b (unsigned operands) at full 128-bit width.
func MulWideU(a, b uint64) Wide128 {
	return Wide128{v: new(big.Int).Mul(bigU(a), bigU(b))}
}

// Add adds two wide values.
func (w Wide128) Add(o Wide128) Wide128 { return Wide128{v: new(big.Int).Add(w.v, o.v)} }

// Sub subtracts o from w.
func (w Wide128) Sub(o Wide128) Wide128 { return Wide128{v: new(big.Int).Sub(w.v, o.v)} }

// AddI64 adds a narrow signed value to w.
func (w Wide128) AddI64(o int64) Wide128 { return Wide128{v: new(big.Int).Add(w.v, big.NewInt(o))} }

// SubI64 subtracts a narrow signed value from w.
func (w Wide128) SubI64(o int64) Wide128 { return Wide128{v: new(big.Int).Sub(w.v, big.NewInt(o))} }

// MulI64 multiplies w by a narrow signed value.
func (w Wide128) MulI64(o int64) Wide128 { return Wide128{v: new(big.Int).Mul(w.v, big.NewInt(o))} }

// DivI64 divides w by a narrow signed value (truncating toward zero).
func (w Wide128) DivI64(o int64) (Wide128, error) {
	if o == 0 {
		return Wide128{}, enginerr.New(enginerr.DivisionByZero, "division by zero")
	}
	return Wide128{v: new(big.Int).Quo(w.v, big.NewInt(o))}, nil
}

// Neg negates w.
func (w Wide128) Neg() Wide128 { return Wide128{v: new(big.Int).Neg(w.v)} }

// Quo divides w by another wide value (truncating toward zero) and narrows
// the quotient to int64.
func (w Wide128) Quo(o Wide128) (int64, error) {
	if o.v.Sign() == 0 {
		return 0, enginerr.New(enginerr.DivisionByZero, "division by zero")
	}
	return downcastI(new(big.Int).Quo(w.v, o.v))
}

// Cmp compares w against a narrow signed value.
func (w Wide128) Cmp(o int64) int { return w.v.Cmp(big.NewInt(o)) }

// ToI64 narrows w to int64, failing with Overflow if out of range.
func (w Wide128) ToI64() (int64, error) { return downcastI(w.v) }

// ToU64 narrows w to uint64, failing with Underflow if negative or Overflow
// if too large.
func (w Wide128) ToU64() (uint64, error) { return downcastU(w.v) }

func bigU(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

func downcastU(r *big.Int) (uint64, error) {
	if r.Sign() < 0 {
		return 0, enginerr.New(enginerr.Underflow, "value underflowed below zero")
	}
	if r.Cmp(maxU64) > 0 {
		return 0, enginerr.New(enginerr.Overflow, "value exceeds uint64 range")
	}
	return r.Uint64(), nil
}

func downcastI(r *big.Int) (int64, error) {
	if r.Cmp(maxI64) > 0 || r.Cmp(minI64) < 0 {
		return 0, enginerr.New(enginerr.Overflow, "value exceeds int64 range")
	}
	return r.Int64(), nil
}
