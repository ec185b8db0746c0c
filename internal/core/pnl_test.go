package core

import (
	"testing"

	"github.com/rtx-labs/posengine/internal/fp"
	"github.com/rtx-labs/posengine/internal/margin"
)

const scale = fp.Scale

func TestWeightedEntryScenario4(t *testing.T) {
	got, err := WeightedEntry(1*scale, 50_000*scale, 1*scale, 60_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 55_000*scale {
		t.Fatalf("got %d, want %d", got, 55_000*scale)
	}
}

func TestUnrealizedPnLLongGain(t *testing.T) {
	got, err := UnrealizedPnL(margin.Long, 1*scale, 50_000*scale, 55_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5_000*scale {
		t.Fatalf("got %d, want %d", got, 5_000*scale)
	}
}

func TestUnrealizedPnLShortIsNegatedLong(t *testing.T) {
	long, err := UnrealizedPnL(margin.Long, 1*scale, 50_000*scale, 55_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	short, err := UnrealizedPnL(margin.Short, 1*scale, 50_000*scale, 55_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if short != -long {
		t.Fatalf("short=%d, want %d", short, -long)
	}
}

// PnL conservation: realized_pnl_partial(reduce) + unrealized(remainder) ==
// unrealized(full size), for any split of size into reduce+remainder.
func TestPnLConservationOnPartialClose(t *testing.T) {
	side := margin.Long
	size := int64(3 * scale)
	reduce := int64(1 * scale)
	remainder := size - reduce
	entry := int64(50_000 * scale)
	price := int64(53_000 * scale)

	full, err := UnrealizedPnL(side, size, entry, price)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	realized, err := RealizedPnLPartial(side, reduce, entry, price)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	remUpnl, err := UnrealizedPnL(side, remainder, entry, price)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if realized+remUpnl != full {
		t.Fatalf("realized(%d)+remaining(%d) = %d, want %d", realized, remUpnl, realized+remUpnl, full)
	}
}
