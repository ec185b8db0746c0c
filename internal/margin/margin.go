// Package margin computes initial margin, maintenance margin, margin
// ratio, and bilateral liquidation price. It is the single source of truth
// for these formulas; every caller — the position state machine and the
// risk monitor alike — goes through it rather than re-deriving the math.
//
// Grounded on risk/margin.go's float-based MarginCalculator, reworked to
// the integer-scaled fixed-point contract the data model requires, and on
// src/math.rs's calc_liquidation_price for the exact closed-form terms.
package margin

import (
	"fmt"
	"math"

	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/internal/fp"
)

// Side mirrors orders.Side without importing the orders package, keeping
// this package a leaf dependency shared by both the state machine and the
// monitor.
type Side int

const (
	Long Side = iota
	Short
)

// InitialMargin returns notional/leverage, failing with DivisionByZero if
// leverage is zero (callers are expected to have validated 1<=leverage).
func InitialMargin(notional int64, leverage int64) (int64, error) {
	return fp.DivI(notional, leverage)
}

// MaintenanceMargin returns notional*mmrPPM/RateScale.
func MaintenanceMargin(notional int64, mmrPPM int64) (int64, error) {
	w := fp.MulWide(notional, mmrPPM)
	r, err := w.DivI64(fp.RateScale)
	if err != nil {
		return 0, err
	}
	return r.ToI64()
}

// Ratio is a margin ratio expressed as a rational collateral/notional with
// an explicit infinite case (notional == 0), since that can't be
// represented as a finite scaled integer.
type Ratio struct {
	Infinite bool
	// Num/Den are unscaled; compare via BelowPPM to avoid float division.
	Num, Den int64
}

// MarginRatio returns (collateral+upnl)/notional, or the infinite ratio when
// notional is zero.
func MarginRatio(collateral, upnl, notional int64) (Ratio, error) {
	if notional == 0 {
		return Ratio{Infinite: true}, nil
	}
	num, err := fp.AddI(collateral, upnl)
	if err != nil {
		return Ratio{}, err
	}
	return Ratio{Num: num, Den: notional}, nil
}

// BelowPPM reports whether r is strictly below thresholdPPM/RateScale
// without performing any float division: r < t/RS  <=>  r.Num*RS < t*r.Den
// (r.Den is always > 0 here since MarginRatio only returns a finite ratio
// when notional != 0, and notional is always positive for an open position).
func (r Ratio) BelowPPM(thresholdPPM int64) (bool, error) {
	if r.Infinite {
		return false, nil
	}
	lhs := fp.MulWide(r.Num, fp.RateScale)
	rhs := fp.MulWide(thresholdPPM, r.Den)
	return lhs.Sub(rhs).Cmp(0) < 0, nil
}

// PPM returns the ratio expressed as parts-per-million of RateScale, for
// display and for persisting alongside a RiskAlert row. Infinite ratios
// return math.MaxInt64.
func (r Ratio) PPM() int64 {
	if r.Infinite {
		return unbounded
	}
	w := fp.MulWide(r.Num, fp.RateScale)
	v, err := w.DivI64(r.Den)
	if err != nil {
		return unbounded
	}
	ppm, err := v.ToI64()
	if err != nil {
		return unbounded
	}
	return ppm
}

// String renders the ratio as a decimal string for log/event payloads.
func (r Ratio) String() string {
	if r.Infinite {
		return "inf"
	}
	ppm := r.PPM()
	whole := ppm / fp.RateScale
	frac := ppm % fp.RateScale
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%06d", whole, frac)
}

// LiquidationPrice derives the mark at which margin ratio equals mmr, per
// §4.2. Long additionally requires size*entry > margin; if that fails the
// position cannot be liquidated by any price move and the result is
// clamped to 0 rather than returning an error.
func LiquidationPrice(side Side, size, entry, marginAmt int64, mmrPPM int64) (int64, error) {
	if size <= 0 {
		return 0, enginerr.New(enginerr.InvalidSize, "size must be positive")
	}

	// notional is size*entry descaled back to a single SCALE factor (the
	// same quantity Notional/InitialMargin operate on). size and entry are
	// each SCALE-scaled, so their raw product carries SCALE twice; dividing
	// once here recovers the conventional scaled notional before it is
	// combined with margin, which only carries SCALE once.
	notionalW, err := fp.MulWide(size, entry).DivI64(fp.Scale)
	if err != nil {
		return 0, err
	}
	notional, err := notionalW.ToI64()
	if err != nil {
		return 0, err
	}

	switch side {
	case Long:
		if notional <= marginAmt {
			return 0, nil
		}
		rateGap := fp.RateScale - mmrPPM
		if rateGap <= 0 {
			return 0, enginerr.New(enginerr.InvalidState, "maintenance rate exceeds rate scale")
		}
		numer := fp.MulWide(notional-marginAmt, fp.RateScale).MulI64(fp.Scale)
		denom := fp.MulWide(size, rateGap)
		if denom.Cmp(0) <= 0 {
			return 0, enginerr.New(enginerr.InvalidState, "degenerate liquidation denominator")
		}
		return numer.Quo(denom)
	case Short:
		sum, err := fp.AddI(notional, marginAmt)
		if err != nil {
			return 0, err
		}
		numer := fp.MulWide(sum, fp.RateScale).MulI64(fp.Scale)
		denom := fp.MulWide(size, fp.RateScale+mmrPPM)
		if denom.Cmp(0) <= 0 {
			return 0, enginerr.New(enginerr.InvalidState, "degenerate liquidation denominator")
		}
		return numer.Quo(denom)
	default:
		return 0, enginerr.New(enginerr.InvalidState, "unknown side")
	}
}

// Notional returns size*entry descaled back to a single SCALE factor.
func Notional(size, entry int64) (int64, error) {
	w, err := fp.MulWide(size, entry).DivI64(fp.Scale)
	if err != nil {
		return 0, err
	}
	return w.ToI64()
}

// unbounded is exposed through Unbounded for callers that need a sentinel
// "no cap" value for tier notional bounds; kept here so nothing in this codebase ever reaches
// for a float infinity per the resolved open question in §9.
const unbounded = math.MaxInt64

// Unbounded returns the canonical "no notional cap" sentinel.
func Unbounded() int64 { return unbounded }
