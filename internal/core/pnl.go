// Package core holds PnL math and the bounded publish/subscribe fan-out
// shared by the risk monitor and the settlement coordinator. Grounded on
// internal/core/pnl.go's PnLEngine, split here into pure math (this file)
// and the event fan-out (broadcaster.go), since the teacher
// fused both concerns into one ticker-driven struct.
package core

import (
	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/internal/fp"
	"github.com/rtx-labs/posengine/internal/margin"
)

// UnrealizedPnL computes size*(mark-entry) for Long, negated for Short. The
// product is taken at full 128-bit width since size and (mark-entry) are
// each SCALE-scaled, then divided by Scale once and narrowed to int64.
func UnrealizedPnL(side margin.Side, size, entry, mark int64) (int64, error) {
	diff, err := fp.SubI(mark, entry)
	if err != nil {
		return 0, err
	}
	w := fp.MulWide(size, diff)
	if side == margin.Short {
		w = w.Neg()
	}
	scaled, err := w.DivI64(fp.Scale)
	if err != nil {
		return 0, err
	}
	return scaled.ToI64()
}

// RealizedPnLPartial uses the reduced size with the unrealized-pnl formula;
// it is also used, with the full size, for a full Close.
func RealizedPnLPartial(side margin.Side, reduceSize, entry, price int64) (int64, error) {
	return UnrealizedPnL(side, reduceSize, entry, price)
}

// WeightedEntry computes the new weighted-average entry price after adding
// addSize units at price to a position currently holding oldSize units at
// oldEntry. Never called on a decrease.
func WeightedEntry(oldSize, oldEntry, addSize, price int64) (int64, error) {
	if addSize <= 0 {
		return 0, enginerr.New(enginerr.InvalidSize, "add_size must be positive")
	}
	oldContribution := fp.MulWide(oldSize, oldEntry)
	addContribution := fp.MulWide(addSize, price)
	numer := oldContribution.Add(addContribution)
	newSize, err := fp.AddI(oldSize, addSize)
	if err != nil {
		return 0, err
	}
	return numer.Quo(fp.FromI64(newSize))
}
