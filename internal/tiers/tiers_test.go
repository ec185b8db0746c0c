package tiers

import (
	"testing"

	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/internal/fp"
)

func TestLookupFirstMatchWins(t *testing.T) {
	tier, err := Lookup(10, 50_000*fp.Scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tier.MaxLeverage != 20 || tier.MaintenanceMarginRatePPM != 25_000 {
		t.Fatalf("got %+v, want the 20x tier", tier)
	}
}

func TestLookupTighterNotionalAtHigherLeverage(t *testing.T) {
	// Leverage 60 rules out the 20x and 50x tiers, and 600_000 notional
	// exceeds every higher tier's cap (the 100x tier's is 50_000*Scale).
	_, err := Lookup(60, 600_000*fp.Scale)
	if enginerr.KindOf(err) != enginerr.LeverageExceeded {
		t.Fatalf("got err=%v, want LeverageExceeded", err)
	}
}

func TestLookupExceedsAllTiers(t *testing.T) {
	_, err := Lookup(2000, fp.Scale)
	if enginerr.KindOf(err) != enginerr.LeverageExceeded {
		t.Fatalf("got err=%v, want LeverageExceeded", err)
	}
}

func TestLookupUnboundedTierAcceptsHugeNotional(t *testing.T) {
	tier, err := Lookup(5, 1_000_000_000*fp.Scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tier.MaxLeverage != 20 {
		t.Fatalf("got %+v, want the unbounded 20x tier", tier)
	}
}
