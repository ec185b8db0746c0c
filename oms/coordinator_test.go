package oms

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rtx-labs/posengine/database"
	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/internal/fp"
	"github.com/rtx-labs/posengine/orders"
)

type memStore struct {
	mu        sync.Mutex
	users     map[string]*database.User
	positions map[string]*orders.Position
	intents   []*database.Intent
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]*database.User),
		positions: make(map[string]*orders.Position),
	}
}

func (s *memStore) GetUser(_ context.Context, owner string) (*database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[owner]
	if !ok {
		return nil, enginerr.New(enginerr.NotFound, "user not found")
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) UpsertUser(_ context.Context, u *database.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.Owner] = &cp
	return nil
}

func (s *memStore) GetPosition(_ context.Context, id string) (*orders.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return nil, enginerr.New(enginerr.NotFound, "position not found")
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) GetOpenPositions(context.Context) ([]*orders.Position, error) { return nil, nil }

func (s *memStore) GetPositionsByOwner(_ context.Context, owner string) ([]*orders.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*orders.Position
	for _, p := range s.positions {
		if p.Owner == owner {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) UpsertPosition(_ context.Context, p *orders.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *memStore) SaveTransition(_ context.Context, p *orders.Position, u *database.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pcp, ucp := *p, *u
	s.positions[p.ID] = &pcp
	s.users[u.Owner] = &ucp
	return nil
}

func (s *memStore) InsertIntent(_ context.Context, in *database.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = append(s.intents, in)
	return nil
}

func (s *memStore) MarkIntentSettled(context.Context, uuid.UUID, time.Time) error { return nil }

func (s *memStore) InsertRiskAlert(context.Context, *database.RiskAlertRow) error { return nil }

func newCoordinator(t *testing.T, store *memStore) *Coordinator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewCoordinator(ctx, store, nil, nil, 2, nil)
}

func TestOpenLocksInitialMarginAndRecordsIntent(t *testing.T) {
	store := newMemStore()
	store.users["alice"] = &database.User{Owner: "alice", TotalCollateral: 10_000 * fp.Scale}
	c := newCoordinator(t, store)

	p, err := c.Open(context.Background(), OpenRequest{
		Owner: "alice", Symbol: "BTC", Side: orders.Long,
		Size: 1 * fp.Scale, Leverage: 10, EntryPrice: 50_000 * fp.Scale,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p.State != orders.StateOpen {
		t.Fatalf("state = %v, want Open", p.State)
	}

	u, err := store.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.LockedCollateral != p.Margin {
		t.Fatalf("LockedCollateral = %d, want %d", u.LockedCollateral, p.Margin)
	}
	if u.PositionCount != 1 {
		t.Fatalf("PositionCount = %d, want 1", u.PositionCount)
	}
	if len(store.intents) != 1 || store.intents[0].Kind != database.IntentOpen {
		t.Fatalf("intents = %+v, want one open_intent", store.intents)
	}
}

func TestOpenCreditsTotalCollateralInLockstepWithLocked(t *testing.T) {
	store := newMemStore()
	store.users["alice"] = &database.User{Owner: "alice"}
	c := newCoordinator(t, store)

	p, err := c.Open(context.Background(), OpenRequest{
		Owner: "alice", Symbol: "BTC", Side: orders.Long,
		Size: 1 * fp.Scale, Leverage: 10, EntryPrice: 50_000 * fp.Scale,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	u, err := store.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.TotalCollateral != p.Margin {
		t.Fatalf("TotalCollateral = %d, want %d (a brand new user with no prior deposit must still be able to open)", u.TotalCollateral, p.Margin)
	}
}

func TestOpenRejectsDuplicateSymbolForOwner(t *testing.T) {
	store := newMemStore()
	store.users["alice"] = &database.User{Owner: "alice", TotalCollateral: 1_000_000 * fp.Scale}
	c := newCoordinator(t, store)

	req := OpenRequest{Owner: "alice", Symbol: "BTC", Side: orders.Long, Size: 1 * fp.Scale, Leverage: 10, EntryPrice: 50_000 * fp.Scale}
	if _, err := c.Open(context.Background(), req); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	_, err := c.Open(context.Background(), req)
	if enginerr.KindOf(err) != enginerr.PositionAlreadyOpen {
		t.Fatalf("err = %v, want PositionAlreadyOpen", err)
	}
}

func TestCloseReleasesMarginAndCreditsPayout(t *testing.T) {
	store := newMemStore()
	store.users["alice"] = &database.User{Owner: "alice", TotalCollateral: 10_000 * fp.Scale}
	c := newCoordinator(t, store)

	p, err := c.Open(context.Background(), OpenRequest{
		Owner: "alice", Symbol: "BTC", Side: orders.Long,
		Size: 1 * fp.Scale, Leverage: 10, EntryPrice: 50_000 * fp.Scale,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	closed, err := c.Close(context.Background(), CloseRequest{Owner: "alice", PositionID: p.ID, ExitPrice: 55_000 * fp.Scale})
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.State != orders.StateClosed {
		t.Fatalf("state = %v, want Closed", closed.State)
	}

	u, err := store.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.LockedCollateral != 0 {
		t.Fatalf("LockedCollateral = %d, want 0", u.LockedCollateral)
	}
	if u.PositionCount != 0 {
		t.Fatalf("PositionCount = %d, want 0", u.PositionCount)
	}
	// Margin is credited and debited from TotalCollateral in lockstep with
	// LockedCollateral, so closing returns it to the pre-open balance; the
	// realized gain lands in TotalPnL instead.
	if u.TotalCollateral != 10_000*fp.Scale {
		t.Fatalf("TotalCollateral = %d, want unchanged at 10_000*Scale after close", u.TotalCollateral)
	}
	if u.TotalPnL <= 0 {
		t.Fatalf("TotalPnL = %d, want > 0 after a profitable close", u.TotalPnL)
	}

	kinds := make([]database.IntentKind, 0, len(store.intents))
	for _, in := range store.intents {
		kinds = append(kinds, in.Kind)
	}
	if len(kinds) != 2 || kinds[1] != database.IntentClose {
		t.Fatalf("intents = %v, want [open_intent close_intent]", kinds)
	}
}

func TestModifyRejectsUnknownPosition(t *testing.T) {
	store := newMemStore()
	c := newCoordinator(t, store)
	_, err := c.Modify(context.Background(), ModifyRequest{Owner: "alice", PositionID: "missing", Kind: ModifyAddMargin, Amount: 1})
	if enginerr.KindOf(err) != enginerr.NotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestModifyRejectsCrossOwnerAccess(t *testing.T) {
	store := newMemStore()
	store.users["alice"] = &database.User{Owner: "alice", TotalCollateral: 10_000 * fp.Scale}
	c := newCoordinator(t, store)

	p, err := c.Open(context.Background(), OpenRequest{
		Owner: "alice", Symbol: "BTC", Side: orders.Long,
		Size: 1 * fp.Scale, Leverage: 10, EntryPrice: 50_000 * fp.Scale,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = c.Modify(context.Background(), ModifyRequest{Owner: "mallory", PositionID: p.ID, Kind: ModifyAddMargin, Amount: 1})
	if enginerr.KindOf(err) != enginerr.NotFound {
		t.Fatalf("err = %v, want NotFound (position owned by a different owner must not be reachable)", err)
	}
}

func TestRequestsForDifferentOwnersRunConcurrently(t *testing.T) {
	store := newMemStore()
	store.users["alice"] = &database.User{Owner: "alice", TotalCollateral: 1_000_000 * fp.Scale}
	store.users["bob"] = &database.User{Owner: "bob", TotalCollateral: 1_000_000 * fp.Scale}
	c := newCoordinator(t, store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	owners := []string{"alice", "bob"}
	for i, owner := range owners {
		wg.Add(1)
		go func(i int, owner string) {
			defer wg.Done()
			_, errs[i] = c.Open(context.Background(), OpenRequest{
				Owner: owner, Symbol: "BTC", Side: orders.Long,
				Size: 1 * fp.Scale, Leverage: 10, EntryPrice: 50_000 * fp.Scale,
			})
		}(i, owner)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("owner %s: %v", owners[i], err)
		}
	}
}
