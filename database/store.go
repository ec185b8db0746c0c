// Package database defines the persistence boundary: the Store interface
// the settlement coordinator and risk monitor depend on, and a pgx/v5
// implementation of it against the four relations in migrations/001.
// Grounded on the teacher's risk/engine.go in-memory map+mutex shape for
// the interface surface, reworked to an explicit, storage-backed contract
// per the settlement coordinator's atomic-write requirement.
package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rtx-labs/posengine/orders"
)

// User is the collateral ledger row for one owner.
type User struct {
	Owner             string
	TotalCollateral   int64
	LockedCollateral  int64
	TotalPnL          int64
	PositionCount     int
}

// IntentKind discriminates a position_intents row.
type IntentKind string

const (
	IntentOpen   IntentKind = "open_intent"
	IntentModify IntentKind = "modify_intent"
	IntentClose  IntentKind = "close_intent"
)

// Intent is a durable record of a settlement action awaiting relay. Seq is
// numbered per position by the coordinator in memory; the store does not
// persist it, and inserts are deduplicated only on ID, not on
// (Owner, PositionID, Seq).
type Intent struct {
	ID         uuid.UUID
	Owner      string
	PositionID string
	Kind       IntentKind
	Seq        uint64
	Payload    []byte // JSON
	CreatedAt  time.Time
	SettledAt  *time.Time
}

// RiskAlertRow is a durable record of one monitor-raised alert.
type RiskAlertRow struct {
	ID          int64
	PositionID  string
	MarginRatio int64 // ppm
	MarkPrice   int64
	CreatedAt   time.Time
}

// Store is the durable persistence contract. Every write the settlement
// coordinator performs inside an owner's lock goes through it; the risk
// monitor uses it read-mostly plus alert/liquidation-intent writes.
type Store interface {
	GetUser(ctx context.Context, owner string) (*User, error)
	UpsertUser(ctx context.Context, u *User) error

	GetPosition(ctx context.Context, id string) (*orders.Position, error)
	GetOpenPositions(ctx context.Context) ([]*orders.Position, error)
	GetPositionsByOwner(ctx context.Context, owner string) ([]*orders.Position, error)
	UpsertPosition(ctx context.Context, p *orders.Position) error

	// SaveTransition persists a position and its owning user's updated
	// collateral state in one atomic write, per the coordinator's "single
	// atomic write" transaction boundary.
	SaveTransition(ctx context.Context, p *orders.Position, u *User) error

	InsertIntent(ctx context.Context, in *Intent) error
	MarkIntentSettled(ctx context.Context, id uuid.UUID, at time.Time) error

	InsertRiskAlert(ctx context.Context, a *RiskAlertRow) error
}
