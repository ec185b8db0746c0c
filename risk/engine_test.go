package risk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rtx-labs/posengine/database"
	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/internal/fp"
	"github.com/rtx-labs/posengine/oracle"
	"github.com/rtx-labs/posengine/orders"
)

// fakeStore is a minimal in-memory database.Store for exercising Monitor.Scan
// without a real database.
type fakeStore struct {
	positions map[string]*orders.Position
	alerts    []*database.RiskAlertRow
}

func newFakeStore(positions ...*orders.Position) *fakeStore {
	fs := &fakeStore{positions: make(map[string]*orders.Position)}
	for _, p := range positions {
		fs.positions[p.ID] = p
	}
	return fs
}

func (f *fakeStore) GetUser(context.Context, string) (*database.User, error) {
	return nil, enginerr.New(enginerr.NotFound, "not implemented")
}
func (f *fakeStore) UpsertUser(context.Context, *database.User) error { return nil }

func (f *fakeStore) GetPosition(_ context.Context, id string) (*orders.Position, error) {
	p, ok := f.positions[id]
	if !ok {
		return nil, enginerr.New(enginerr.NotFound, "position not found")
	}
	return p, nil
}

func (f *fakeStore) GetOpenPositions(context.Context) ([]*orders.Position, error) {
	var out []*orders.Position
	for _, p := range f.positions {
		if p.State == orders.StateOpen || p.State == orders.StateModifying {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPositionsByOwner(_ context.Context, owner string) ([]*orders.Position, error) {
	var out []*orders.Position
	for _, p := range f.positions {
		if p.Owner == owner {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertPosition(_ context.Context, p *orders.Position) error {
	f.positions[p.ID] = p
	return nil
}

func (f *fakeStore) SaveTransition(_ context.Context, p *orders.Position, _ *database.User) error {
	f.positions[p.ID] = p
	return nil
}

func (f *fakeStore) InsertIntent(context.Context, *database.Intent) error { return nil }
func (f *fakeStore) MarkIntentSettled(context.Context, uuid.UUID, time.Time) error {
	return nil
}

func (f *fakeStore) InsertRiskAlert(_ context.Context, a *database.RiskAlertRow) error {
	f.alerts = append(f.alerts, a)
	return nil
}

// openPosition builds a position with leverage=100 and a notional
// (10_000*Scale) comfortably under the 100x tier's MaxNotional cap, so
// currentTier resolves to the 5_000 ppm maintenance rate tier.
func openPosition(t *testing.T, id string, side orders.Side, margin int64) *orders.Position {
	t.Helper()
	p, err := orders.Open(id, "alice", "BTC", side, 1*fp.Scale, 100, 10_000*fp.Scale)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p.Margin = margin
	return p
}

func TestScanNominatesLiquidationAndAlertOnMaintenanceBreach(t *testing.T) {
	// margin=4_000*Scale, mmr=5_000ppm: breach requires margin+upnl <=
	// size*mark*mmr/RateScale. A mark drop to 6_000*Scale yields upnl =
	// -4_000*Scale, so margin+upnl = 0 <= 30*Scale.
	pos := openPosition(t, "pos-1", orders.Long, 4_000*fp.Scale)
	store := newFakeStore(pos)
	orc := oracle.NewMock()
	orc.SetPrice("BTC", 6_000*fp.Scale)

	m := NewMonitor(store, orc, nil, nil, 0, nil)
	result, err := m.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Scanned != 1 {
		t.Fatalf("Scanned = %d, want 1", result.Scanned)
	}
	if len(result.Liquidations) != 1 {
		t.Fatalf("Liquidations = %d, want 1", len(result.Liquidations))
	}
	if result.Liquidations[0].PositionID != "pos-1" {
		t.Fatalf("liquidation position = %q, want pos-1", result.Liquidations[0].PositionID)
	}
	if len(result.Alerts) != 1 {
		t.Fatalf("Alerts = %d, want 1 (a maintenance breach is also below the alert threshold)", len(result.Alerts))
	}
	if len(store.alerts) != 1 {
		t.Fatalf("persisted alerts = %d, want 1", len(store.alerts))
	}
}

func TestScanRaisesAlertOnlyAboveMaintenanceButBelowAlertThreshold(t *testing.T) {
	// margin=1_500*Scale stays above the 50*Scale maintenance floor but well
	// under the default 20% alert threshold (2_000*Scale on a 10_000*Scale
	// notional), at mark == entry (upnl == 0).
	pos := openPosition(t, "pos-2", orders.Long, 1_500*fp.Scale)
	store := newFakeStore(pos)
	orc := oracle.NewMock()
	orc.SetPrice("BTC", 10_000*fp.Scale)

	m := NewMonitor(store, orc, nil, nil, 0, nil)
	result, err := m.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Liquidations) != 0 {
		t.Fatalf("Liquidations = %d, want 0", len(result.Liquidations))
	}
	if len(result.Alerts) != 1 {
		t.Fatalf("Alerts = %d, want 1", len(result.Alerts))
	}
}

func TestScanSkipsSymbolOnOracleFailure(t *testing.T) {
	pos := openPosition(t, "pos-3", orders.Long, 2_000*fp.Scale)
	store := newFakeStore(pos)
	orc := oracle.NewMock() // no price set for BTC

	m := NewMonitor(store, orc, nil, nil, 0, nil)
	result, err := m.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Scanned != 0 {
		t.Fatalf("Scanned = %d, want 0", result.Scanned)
	}
	if len(result.SkippedSymbols) != 1 || result.SkippedSymbols[0] != "BTC" {
		t.Fatalf("SkippedSymbols = %v, want [BTC]", result.SkippedSymbols)
	}
}

func TestScanSkipsSymbolOnImplausibleMarkMove(t *testing.T) {
	pos := openPosition(t, "pos-4", orders.Long, 2_000*fp.Scale)
	store := newFakeStore(pos)
	orc := oracle.NewMock()
	orc.SetPrice("BTC", 10_000*fp.Scale)

	m := NewMonitor(store, orc, nil, nil, 0, nil)
	if _, err := m.Scan(context.Background()); err != nil {
		t.Fatalf("first Scan: %v", err)
	}

	orc.SetPrice("BTC", 1*fp.Scale) // >50% drop from the recorded last mark
	result, err := m.Scan(context.Background())
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if len(result.SkippedSymbols) != 1 {
		t.Fatalf("SkippedSymbols = %v, want one entry", result.SkippedSymbols)
	}
}

func TestScanTicksAdvancedOrderEvaluator(t *testing.T) {
	pos := openPosition(t, "pos-5", orders.Long, 2_000*fp.Scale)
	store := newFakeStore(pos)
	orc := oracle.NewMock()
	orc.SetPrice("BTC", 9_500*fp.Scale)

	ev := orders.NewEvaluator()
	ev.Add(orders.NewStopLoss("stop-1", "alice", "BTC", orders.Long, 1*fp.Scale, 9_800*fp.Scale))

	m := NewMonitor(store, orc, ev, nil, 0, nil)
	result, err := m.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Triggered) != 1 {
		t.Fatalf("Triggered = %d, want 1", len(result.Triggered))
	}
	if result.Triggered[0].OrderID != "stop-1" {
		t.Fatalf("triggered order = %q, want stop-1", result.Triggered[0].OrderID)
	}
}
