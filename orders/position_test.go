package orders

import (
	"testing"

	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/internal/fp"
)

const scale = fp.Scale

func TestScenario1OpenAndCloseFlat(t *testing.T) {
	p, err := Open("pos1", "alice", "BTC", Long, 1*scale, 10, 50_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Margin != 5_000*scale {
		t.Fatalf("im = %d, want %d", p.Margin, 5_000*scale)
	}
	if p.LiquidationPrice != 46_153_846_153 {
		t.Fatalf("liq = %d, want 46153846153", p.LiquidationPrice)
	}

	payout, err := p.Close(50_000*scale, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.RealizedPnL != 0 {
		t.Fatalf("realized_pnl = %d, want 0", p.RealizedPnL)
	}
	if payout != 5_000*scale {
		t.Fatalf("payout = %d, want %d", payout, 5_000*scale)
	}
	if p.State != StateClosed {
		t.Fatalf("state = %v, want closed", p.State)
	}
}

func TestScenario2LongPnL(t *testing.T) {
	p, err := Open("pos2", "alice", "BTC", Long, 1*scale, 10, 50_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payout, err := p.Close(55_000*scale, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.RealizedPnL != 5_000*scale {
		t.Fatalf("realized_pnl = %d, want %d", p.RealizedPnL, 5_000*scale)
	}
	if payout != 10_000*scale {
		t.Fatalf("payout = %d, want %d", payout, 10_000*scale)
	}
}

func TestScenario3RemoveMarginBreach(t *testing.T) {
	p, err := Open("pos3", "alice", "BTC", Long, 1*scale, 10, 50_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = p.RemoveMargin(4_500*scale, 50_000*scale)
	if enginerr.KindOf(err) != enginerr.MaintenanceBreach {
		t.Fatalf("err = %v, want MaintenanceBreach", err)
	}
	if p.State != StateOpen {
		t.Fatalf("state = %v, want open after a failed transition", p.State)
	}
	if p.Margin != 5_000*scale {
		t.Fatalf("margin must be unchanged after a failed transition, got %d", p.Margin)
	}
}

func TestScenario4WeightedEntryOnIncrease(t *testing.T) {
	p, err := Open("pos4", "alice", "BTC", Long, 1*scale, 5, 50_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.IncreaseSize(1*scale, 60_000*scale, 20_000*scale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.EntryPrice != 55_000*scale {
		t.Fatalf("entry_price = %d, want %d", p.EntryPrice, 55_000*scale)
	}
	if p.Size != 2*scale {
		t.Fatalf("size = %d, want %d", p.Size, 2*scale)
	}
}

func TestRoundTripOpenIncreaseCloseSamePrice(t *testing.T) {
	p, err := Open("pos5", "alice", "BTC", Long, 1*scale, 5, 50_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	baseMargin := p.Margin
	addedMargin := int64(10_000 * scale)
	if _, err := p.IncreaseSize(1*scale, 50_000*scale, addedMargin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payout, err := p.Close(50_000*scale, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payout != baseMargin+addedMargin {
		t.Fatalf("payout = %d, want %d", payout, baseMargin+addedMargin)
	}
}

func TestOpenRejectsOversizedSymbol(t *testing.T) {
	_, err := Open("pos6", "alice", "THIS-SYMBOL-IS-WAY-TOO-LONG", Long, 1*scale, 5, 50_000*scale)
	if enginerr.KindOf(err) != enginerr.SymbolTooLong {
		t.Fatalf("err = %v, want SymbolTooLong", err)
	}
}

func TestOpenRejectsLeverageOutOfRange(t *testing.T) {
	_, err := Open("pos7", "alice", "BTC", Long, 1*scale, 0, 50_000*scale)
	if enginerr.KindOf(err) != enginerr.InvalidLeverage {
		t.Fatalf("err = %v, want InvalidLeverage", err)
	}
	_, err = Open("pos8", "alice", "BTC", Long, 1*scale, 1001, 50_000*scale)
	if enginerr.KindOf(err) != enginerr.InvalidLeverage {
		t.Fatalf("err = %v, want InvalidLeverage", err)
	}
}

func TestDecreaseSizeToZeroClosesPosition(t *testing.T) {
	p, err := Open("pos9", "alice", "BTC", Long, 2*scale, 10, 50_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	closed, _, payout, err := p.DecreaseSize(2*scale, 50_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !closed {
		t.Fatal("expected the position to close when size reaches 0")
	}
	if payout != 10_000*scale {
		t.Fatalf("payout = %d, want %d", payout, 10_000*scale)
	}
	if p.State != StateClosed {
		t.Fatalf("state = %v, want closed", p.State)
	}
}

func TestRepriceIsPureAndIdempotent(t *testing.T) {
	p, err := Open("pos10", "alice", "BTC", Long, 1*scale, 10, 50_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Reprice(52_000 * scale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := p.LiquidationPrice
	if err := p.Reprice(52_000 * scale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.LiquidationPrice != want {
		t.Fatalf("liquidation price should be a pure function of position fields, got %d then %d", want, p.LiquidationPrice)
	}
}
