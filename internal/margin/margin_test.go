package margin

import "testing"

const scale = 1_000_000

func TestScenario1OpenFlatLiquidationPrice(t *testing.T) {
	size := int64(1 * scale)
	entry := int64(50_000 * scale)
	leverage := int64(10)

	notional := size / scale * entry // 1 * 50_000*scale, kept simple for this scenario
	im, err := InitialMargin(notional, leverage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if im != 5_000*scale {
		t.Fatalf("im = %d, want %d", im, 5_000*scale)
	}

	mmrPPM := int64(25_000)
	liq, err := LiquidationPrice(Long, size, entry, im, mmrPPM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (50_000*scale - 5_000*scale) * scale / (scale - 25_000), integer-truncated.
	want := int64(46_153_846_153) // 46_153.846...*scale truncated to the unit
	if liq != want {
		t.Fatalf("liq = %d, want %d", liq, want)
	}
}

func TestRemoveMarginBreachScenario(t *testing.T) {
	notional := int64(50_000 * scale)
	mmrPPM := int64(25_000)
	mm, err := MaintenanceMargin(notional, mmrPPM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mm != 1_250*scale {
		t.Fatalf("mm = %d, want %d", mm, 1_250*scale)
	}

	newMargin := int64(500 * scale)
	ratio, err := MarginRatio(newMargin, 0, notional)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	below, err := ratio.BelowPPM(mmrPPM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !below {
		t.Fatal("expected the post-removal margin to breach maintenance")
	}
}

func TestShortLiquidationPrice(t *testing.T) {
	size := int64(2 * scale)
	entry := int64(30_000 * scale)
	marginAmt := int64(3_000 * scale)
	mmrPPM := int64(10_000)

	liq, err := LiquidationPrice(Short, size, entry, marginAmt, mmrPPM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if liq <= entry {
		t.Fatalf("short liquidation price %d should sit above entry %d", liq, entry)
	}
}

func TestLongLiquidationClampsToZeroWhenUnderwater(t *testing.T) {
	size := int64(1 * scale)
	entry := int64(100 * scale)
	marginAmt := int64(1_000 * scale) // margin exceeds size*entry
	mmrPPM := int64(25_000)

	liq, err := LiquidationPrice(Long, size, entry, marginAmt, mmrPPM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if liq != 0 {
		t.Fatalf("liq = %d, want 0", liq)
	}
}
