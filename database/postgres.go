package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/internal/margin"
	"github.com/rtx-labs/posengine/orders"
)

// Postgres is a pgx/v5-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a pooled connection to connStr (typically DATABASE_URL).
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.StoreUnavailable, "opening postgres pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, enginerr.Wrap(enginerr.StoreUnavailable, "pinging postgres", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) GetUser(ctx context.Context, owner string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT owner, total_collateral, locked_collateral, total_pnl, position_count
		FROM users WHERE owner = $1`, owner)
	var u User
	if err := row.Scan(&u.Owner, &u.TotalCollateral, &u.LockedCollateral, &u.TotalPnL, &u.PositionCount); err != nil {
		if err == pgx.ErrNoRows {
			return nil, enginerr.New(enginerr.NotFound, "user not found")
		}
		return nil, enginerr.Wrap(enginerr.StoreUnavailable, "scanning user row", err)
	}
	return &u, nil
}

func (s *Postgres) UpsertUser(ctx context.Context, u *User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (owner, total_collateral, locked_collateral, total_pnl, position_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner) DO UPDATE SET
			total_collateral = EXCLUDED.total_collateral,
			locked_collateral = EXCLUDED.locked_collateral,
			total_pnl = EXCLUDED.total_pnl,
			position_count = EXCLUDED.position_count`,
		u.Owner, u.TotalCollateral, u.LockedCollateral, u.TotalPnL, u.PositionCount)
	if err != nil {
		return enginerr.Wrap(enginerr.StoreUnavailable, "upserting user", err)
	}
	return nil
}

const positionColumns = `pda, owner, symbol, side, size, entry_price, margin, leverage,
	state, liquidation_price, realized_pnl, unrealized_pnl, funding_accrued, last_update, version`

func scanPosition(row pgx.Row) (*orders.Position, error) {
	var p orders.Position
	var side int16
	var state string
	if err := row.Scan(&p.ID, &p.Owner, &p.Symbol, &side, &p.Size, &p.EntryPrice, &p.Margin,
		&p.Leverage, &state, &p.LiquidationPrice, &p.RealizedPnL, &p.UnrealizedPnL,
		&p.FundingAccrued, &p.LastUpdate, &p.Version); err != nil {
		return nil, err
	}
	p.Side = margin.Side(side)
	p.State = orders.State(state)
	return &p, nil
}

func (s *Postgres) GetPosition(ctx context.Context, id string) (*orders.Position, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+positionColumns+` FROM positions WHERE pda = $1`, id)
	p, err := scanPosition(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, enginerr.New(enginerr.NotFound, "position not found")
		}
		return nil, enginerr.Wrap(enginerr.StoreUnavailable, "scanning position row", err)
	}
	return p, nil
}

func (s *Postgres) queryPositions(ctx context.Context, query string, args ...interface{}) ([]*orders.Position, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.StoreUnavailable, "querying positions", err)
	}
	defer rows.Close()

	var out []*orders.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, enginerr.Wrap(enginerr.StoreUnavailable, "scanning position row", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) GetOpenPositions(ctx context.Context) ([]*orders.Position, error) {
	return s.queryPositions(ctx, `SELECT `+positionColumns+` FROM positions WHERE state IN ('open', 'modifying')`)
}

func (s *Postgres) GetPositionsByOwner(ctx context.Context, owner string) ([]*orders.Position, error) {
	return s.queryPositions(ctx, `SELECT `+positionColumns+` FROM positions WHERE owner = $1`, owner)
}

func (s *Postgres) UpsertPosition(ctx context.Context, p *orders.Position) error {
	return upsertPositionTx(ctx, s.pool, p)
}

func upsertPositionTx(ctx context.Context, q interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgx.CommandTag, error)
}, p *orders.Position) error {
	_, err := q.Exec(ctx, `
		INSERT INTO positions (`+positionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (pda) DO UPDATE SET
			side = EXCLUDED.side, size = EXCLUDED.size, entry_price = EXCLUDED.entry_price,
			margin = EXCLUDED.margin, leverage = EXCLUDED.leverage, state = EXCLUDED.state,
			liquidation_price = EXCLUDED.liquidation_price, realized_pnl = EXCLUDED.realized_pnl,
			unrealized_pnl = EXCLUDED.unrealized_pnl, funding_accrued = EXCLUDED.funding_accrued,
			last_update = EXCLUDED.last_update, version = EXCLUDED.version`,
		p.ID, p.Owner, p.Symbol, int16(p.Side), p.Size, p.EntryPrice, p.Margin, p.Leverage,
		string(p.State), p.LiquidationPrice, p.RealizedPnL, p.UnrealizedPnL, p.FundingAccrued,
		p.LastUpdate, p.Version)
	if err != nil {
		return enginerr.Wrap(enginerr.StoreUnavailable, "upserting position", err)
	}
	return nil
}

// SaveTransition writes the position and its owning user row inside one
// transaction, satisfying the coordinator's atomic-write requirement.
func (s *Postgres) SaveTransition(ctx context.Context, p *orders.Position, u *User) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return enginerr.Wrap(enginerr.StoreUnavailable, "beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertPositionTx(ctx, tx, p); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO users (owner, total_collateral, locked_collateral, total_pnl, position_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner) DO UPDATE SET
			total_collateral = EXCLUDED.total_collateral,
			locked_collateral = EXCLUDED.locked_collateral,
			total_pnl = EXCLUDED.total_pnl,
			position_count = EXCLUDED.position_count`,
		u.Owner, u.TotalCollateral, u.LockedCollateral, u.TotalPnL, u.PositionCount)
	if err != nil {
		return enginerr.Wrap(enginerr.StoreUnavailable, "upserting user in transition", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return enginerr.Wrap(enginerr.StoreUnavailable, "committing transition", err)
	}
	return nil
}

func (s *Postgres) InsertIntent(ctx context.Context, in *Intent) error {
	if !json.Valid(in.Payload) {
		return fmt.Errorf("intent payload is not valid JSON")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO position_intents (id, owner, pda, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		in.ID, in.Owner, in.PositionID, string(in.Kind), in.Payload, in.CreatedAt)
	if err != nil {
		return enginerr.Wrap(enginerr.StoreUnavailable, "inserting intent", err)
	}
	return nil
}

func (s *Postgres) MarkIntentSettled(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE position_intents SET settled_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return enginerr.Wrap(enginerr.StoreUnavailable, "marking intent settled", err)
	}
	return nil
}

func (s *Postgres) InsertRiskAlert(ctx context.Context, a *RiskAlertRow) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO risk_alerts (pda, margin_ratio, mark_price, created_at)
		VALUES ($1, $2, $3, $4)`,
		a.PositionID, a.MarginRatio, a.MarkPrice, a.CreatedAt)
	if err != nil {
		return enginerr.Wrap(enginerr.StoreUnavailable, "inserting risk alert", err)
	}
	return nil
}
