// Package tiers holds the static leverage-tier table and its ordinal
// lookup. Grounded on the canonical table in the position-management
// source (src/tiers.rs), reworked from the floating max_position_size
// variant to the integer-scaled form the data model mandates.
package tiers

import (
	"math"

	"github.com/rtx-labs/posengine/internal/enginerr"
)

// Tier is one row of the static leverage table. Rates are ppm of
// fp.RateScale; MaxNotional is in quote units scaled by fp.Scale, with
// math.MaxInt64 standing in for "unbounded" (never a float sentinel).
type Tier struct {
	MaxLeverage            int64
	InitialMarginRatePPM   int64
	MaintenanceMarginRatePPM int64
	MaxNotional            int64
}

// Table is the canonical, ordinal leverage-tier table. Order matters: it is
// scanned top to bottom and the first row satisfying both constraints wins,
// because notional caps tighten as leverage rises.
var Table = []Tier{
	{MaxLeverage: 20, InitialMarginRatePPM: 50_000, MaintenanceMarginRatePPM: 25_000, MaxNotional: math.MaxInt64},
	{MaxLeverage: 50, InitialMarginRatePPM: 20_000, MaintenanceMarginRatePPM: 10_000, MaxNotional: 100_000_000_000},
	{MaxLeverage: 100, InitialMarginRatePPM: 10_000, MaintenanceMarginRatePPM: 5_000, MaxNotional: 50_000_000_000},
	{MaxLeverage: 500, InitialMarginRatePPM: 5_000, MaintenanceMarginRatePPM: 2_500, MaxNotional: 20_000_000_000},
	{MaxLeverage: 1000, InitialMarginRatePPM: 2_000, MaintenanceMarginRatePPM: 1_000, MaxNotional: 5_000_000_000},
}

// Lookup scans Table in order and returns the first tier whose MaxLeverage
// is at least leverage and whose MaxNotional is at least notional. It fails
// with LeverageExceeded if no row matches.
func Lookup(leverage int64, notional int64) (Tier, error) {
	for _, t := range Table {
		if leverage <= t.MaxLeverage && notional <= t.MaxNotional {
			return t, nil
		}
	}
	return Tier{}, enginerr.New(enginerr.LeverageExceeded, "no leverage tier covers the requested leverage/notional")
}
