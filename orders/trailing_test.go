package orders

import (
	"testing"
	"time"
)

func tickAt(sec int) time.Time {
	return time.Unix(int64(sec), 0)
}

func TestTrailingStopTriggersOnceScenario5(t *testing.T) {
	o := NewTrailingStop("ts1", "alice", "BTC", Long, 1*scale, 5*scale, 100*scale)

	ticks := []int64{100 * scale, 110 * scale, 120 * scale, 118 * scale, 115 * scale}
	var triggeredAt = -1
	for i, mark := range ticks {
		if o.Evaluate(mark, tickAt(i)) {
			triggeredAt = i
		}
	}
	if triggeredAt != 4 {
		t.Fatalf("triggered at tick %d, want tick 4 (price 115)", triggeredAt)
	}
	if o.Peak != 120*scale {
		t.Fatalf("peak = %d, want %d", o.Peak, 120*scale)
	}
	if o.IsActive {
		t.Fatal("order must be inactive after triggering")
	}

	// A further tick past the trigger must not re-trigger.
	if o.Evaluate(90*scale, tickAt(5)) {
		t.Fatal("an already-triggered order must not trigger again")
	}
}

func TestTrailingStopShortSide(t *testing.T) {
	o := NewTrailingStop("ts2", "alice", "BTC", Short, 1*scale, 5*scale, 100*scale)
	if o.Evaluate(95*scale, tickAt(0)) {
		t.Fatal("must not trigger yet")
	}
	if o.Peak != 95*scale {
		t.Fatalf("trough = %d, want %d", o.Peak, 95*scale)
	}
	if !o.Evaluate(100*scale, tickAt(1)) {
		t.Fatal("expected trigger: price rose 5 off the trough for a short")
	}
}

func TestStopLossLongTriggersOnOrBelow(t *testing.T) {
	o := NewStopLoss("sl1", "alice", "BTC", Long, 1*scale, 45_000*scale)
	if o.Evaluate(46_000*scale, tickAt(0)) {
		t.Fatal("must not trigger above the stop")
	}
	if !o.Evaluate(45_000*scale, tickAt(1)) {
		t.Fatal("expected trigger at the stop price")
	}
}

func TestTakeProfitShortTriggersOnOrBelow(t *testing.T) {
	o := NewTakeProfit("tp1", "alice", "BTC", Short, 1*scale, 40_000*scale)
	if o.Evaluate(41_000*scale, tickAt(0)) {
		t.Fatal("must not trigger above target for a short take-profit")
	}
	if !o.Evaluate(40_000*scale, tickAt(1)) {
		t.Fatal("expected trigger at the target price")
	}
}

func TestEvaluateIgnoresOutOfOrderTicks(t *testing.T) {
	o := NewStopLoss("sl2", "alice", "BTC", Long, 1*scale, 45_000*scale)
	at := tickAt(10)
	if o.Evaluate(50_000*scale, at) {
		t.Fatal("must not trigger above the stop")
	}
	// A tick stamped before (or equal to) the last applied one is ignored,
	// even though its price would otherwise trigger.
	if o.Evaluate(40_000*scale, tickAt(5)) {
		t.Fatal("an out-of-order tick must be ignored")
	}
	if !o.IsActive {
		t.Fatal("order must remain active: the triggering tick was stale")
	}
}

func TestEvaluatorTickDispatchesBySymbol(t *testing.T) {
	e := NewEvaluator()
	e.Add(NewStopLoss("sl3", "alice", "BTC", Long, 1*scale, 45_000*scale))
	e.Add(NewStopLoss("sl4", "alice", "ETH", Long, 1*scale, 2_000*scale))

	triggered := e.Tick("BTC", 44_000*scale, tickAt(0))
	if len(triggered) != 1 || triggered[0].ID != "sl3" {
		t.Fatalf("expected only sl3 to trigger, got %v", triggered)
	}

	eth, err := e.Get("sl4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eth.IsActive {
		t.Fatal("the ETH order must be untouched by a BTC tick")
	}
}

func TestDetectHedgesFindsOppositeSidesExplicitly(t *testing.T) {
	long, err := Open("h1", "alice", "BTC", Long, 1*scale, 10, 50_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	short, err := Open("h2", "alice", "BTC", Short, 1*scale, 10, 50_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sameSideOtherSymbol, err := Open("h3", "alice", "ETH", Long, 1*scale, 10, 2_000*scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pairs := DetectHedges([]*Position{long, short, sameSideOtherSymbol})
	if len(pairs) != 1 || pairs[0].I != 0 || pairs[0].J != 1 {
		t.Fatalf("expected exactly the (long, short) BTC pair, got %v", pairs)
	}
}
