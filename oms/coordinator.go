package oms

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rtx-labs/posengine/database"
	"github.com/rtx-labs/posengine/events"
	"github.com/rtx-labs/posengine/internal/core"
	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/logging"
	"github.com/rtx-labs/posengine/orders"
	"github.com/rtx-labs/posengine/relayer"
	"github.com/rtx-labs/posengine/risk"
)

// ModifyKind discriminates the tagged-union modify request.
type ModifyKind string

const (
	ModifyIncreaseSize ModifyKind = "increase"
	ModifyDecreaseSize ModifyKind = "decrease"
	ModifyAddMargin    ModifyKind = "add_margin"
	ModifyRemoveMargin ModifyKind = "remove_margin"
)

// OpenRequest opens a new position for Owner on Symbol.
type OpenRequest struct {
	Owner      string
	Symbol     string
	Side       orders.Side
	Size       int64
	Leverage   int64
	EntryPrice int64
}

// ModifyRequest is the tagged union of the four in-place position edits.
// Only the fields relevant to Kind are read.
type ModifyRequest struct {
	Owner      string
	PositionID string
	Kind       ModifyKind
	AddSize    int64
	AddMargin  int64
	ReduceSize int64
	Amount     int64
	Price      int64
}

// CloseRequest fully exits a position.
type CloseRequest struct {
	Owner          string
	PositionID     string
	ExitPrice      int64
	FundingPayment int64
}

// Coordinator is the settlement coordinator: every position mutation flows
// through it, serialized per-owner via its dispatcher, persisted through
// store in one atomic write followed by a separate intent record, then
// broadcast.
//
// Grounded on oms/service.go's Service (map of orders/positions behind one
// mutex, PlaceOrder/ClosePosition) reworked from a single global lock to
// the per-owner worker dispatch datapipeline/distributor.go models, and on
// the atomic-write/intent/broadcast sequence in SPEC_FULL.md's coordinator
// section.
type Coordinator struct {
	store       database.Store
	relayer     relayer.Relayer
	broadcaster *core.Broadcaster[events.Envelope]
	dispatch    *dispatcher
	logger      *logging.Logger

	seqMu sync.Mutex
	seq   map[string]uint64 // positionID -> next intent sequence
}

// NewCoordinator constructs a Coordinator with workerCount dispatch workers
// (0 uses runtime.GOMAXPROCS(0)). The workers stop when ctx is canceled.
func NewCoordinator(ctx context.Context, store database.Store, rl relayer.Relayer, broadcaster *core.Broadcaster[events.Envelope], workerCount int, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		store:       store,
		relayer:     rl,
		broadcaster: broadcaster,
		dispatch:    newDispatcher(ctx, workerCount, 256),
		logger:      logger,
		seq:         make(map[string]uint64),
	}
}

func (c *Coordinator) nextSeq(positionID string) uint64 {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	c.seq[positionID]++
	return c.seq[positionID]
}

func (c *Coordinator) loadUser(ctx context.Context, owner string) (*database.User, error) {
	u, err := c.store.GetUser(ctx, owner)
	if enginerr.KindOf(err) == enginerr.NotFound {
		return &database.User{Owner: owner}, nil
	}
	if err != nil {
		return nil, enginerr.Wrap(enginerr.StoreUnavailable, "loading user", err)
	}
	return u, nil
}

func (c *Coordinator) recordIntent(ctx context.Context, owner, positionID string, kind database.IntentKind, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return enginerr.Wrap(enginerr.InvalidState, "marshaling intent payload", err)
	}
	in := &database.Intent{
		ID:         uuid.New(),
		Owner:      owner,
		PositionID: positionID,
		Kind:       kind,
		Seq:        c.nextSeq(positionID),
		Payload:    body,
		CreatedAt:  time.Now(),
	}
	if err := c.store.InsertIntent(ctx, in); err != nil {
		return enginerr.Wrap(enginerr.StoreUnavailable, "recording settlement intent", err)
	}
	return nil
}

func (c *Coordinator) broadcast(t events.Type, owner, position string, payload interface{}) {
	if c.broadcaster == nil {
		return
	}
	c.broadcaster.Publish(events.Envelope{Type: t, Owner: owner, Position: position, Stream: events.StreamFor(t), Payload: payload, At: time.Now()})
}

// Open runs Open under req.Owner's serial queue: checks for an existing
// non-closed position on the same symbol, runs the state machine, locks
// the initial margin, persists the atomic transition, records an
// open_intent, and broadcasts PositionOpened.
func (c *Coordinator) Open(ctx context.Context, req OpenRequest) (*orders.Position, error) {
	var result *orders.Position
	err := c.dispatch.submit(ctx, req.Owner, func() error {
		existing, err := c.store.GetPositionsByOwner(ctx, req.Owner)
		if err != nil {
			return enginerr.Wrap(enginerr.StoreUnavailable, "loading existing positions", err)
		}
		for _, p := range existing {
			if p.Symbol == req.Symbol && p.State != orders.StateClosed {
				return enginerr.New(enginerr.PositionAlreadyOpen, "an open position already exists for this owner and symbol")
			}
		}

		p, err := orders.Open(uuid.NewString(), req.Owner, req.Symbol, req.Side, req.Size, req.Leverage, req.EntryPrice)
		if err != nil {
			return err
		}

		user, err := c.loadUser(ctx, req.Owner)
		if err != nil {
			return err
		}
		user.TotalCollateral += p.Margin
		user.LockedCollateral += p.Margin
		user.PositionCount++

		if err := c.store.SaveTransition(ctx, p, user); err != nil {
			return enginerr.Wrap(enginerr.StoreUnavailable, "persisting opened position", err)
		}
		if err := c.recordIntent(ctx, req.Owner, p.ID, database.IntentOpen, events.PositionOpened{
			Owner: p.Owner, Symbol: p.Symbol, Side: sideString(p.Side), Size: p.Size,
			Leverage: p.Leverage, EntryPrice: p.EntryPrice, InitialMargin: p.Margin,
			LiquidationPrice: p.LiquidationPrice, Version: p.Version,
		}); err != nil {
			return err
		}

		c.broadcast(events.TypePositionOpened, p.Owner, p.ID, events.PositionOpened{
			Owner: p.Owner, Symbol: p.Symbol, Side: sideString(p.Side), Size: p.Size,
			Leverage: p.Leverage, EntryPrice: p.EntryPrice, InitialMargin: p.Margin,
			LiquidationPrice: p.LiquidationPrice, Version: p.Version,
		})
		result = p
		return nil
	})
	return result, err
}

// Modify runs one of the four in-place edits under req.Owner's serial
// queue.
func (c *Coordinator) Modify(ctx context.Context, req ModifyRequest) (*orders.Position, error) {
	var result *orders.Position
	err := c.dispatch.submit(ctx, req.Owner, func() error {
		p, err := c.loadOwned(ctx, req.Owner, req.PositionID)
		if err != nil {
			return err
		}
		user, err := c.loadUser(ctx, req.Owner)
		if err != nil {
			return err
		}

		var price int64
		switch req.Kind {
		case ModifyIncreaseSize:
			delta, err := p.IncreaseSize(req.AddSize, req.Price, req.AddMargin)
			if err != nil {
				return err
			}
			user.TotalCollateral += delta
			user.LockedCollateral += delta
			price = req.Price
		case ModifyDecreaseSize:
			priorMargin := p.Margin
			closed, realized, payout, err := p.DecreaseSize(req.ReduceSize, req.Price)
			if err != nil {
				return err
			}
			if closed {
				user.TotalCollateral -= priorMargin
				user.LockedCollateral -= priorMargin
				user.TotalPnL += payout - priorMargin
				if user.PositionCount > 0 {
					user.PositionCount--
				}
			} else {
				user.TotalPnL += realized
			}
			price = req.Price
		case ModifyAddMargin:
			if err := p.AddMargin(req.Amount); err != nil {
				return err
			}
			user.TotalCollateral += req.Amount
			user.LockedCollateral += req.Amount
		case ModifyRemoveMargin:
			if err := p.RemoveMargin(req.Amount, req.Price); err != nil {
				return err
			}
			user.TotalCollateral -= req.Amount
			user.LockedCollateral -= req.Amount
			price = req.Price
		default:
			return enginerr.New(enginerr.InvalidState, "unrecognized modify request kind")
		}

		if err := c.store.SaveTransition(ctx, p, user); err != nil {
			return enginerr.Wrap(enginerr.StoreUnavailable, "persisting modified position", err)
		}
		payload := events.PositionModified{
			Owner: p.Owner, Symbol: p.Symbol, Size: p.Size, Margin: p.Margin,
			Leverage: p.Leverage, Price: price, UnrealizedPnL: p.UnrealizedPnL,
			LiquidationPrice: p.LiquidationPrice, Version: p.Version,
		}
		if err := c.recordIntent(ctx, req.Owner, p.ID, database.IntentModify, payload); err != nil {
			return err
		}
		c.broadcast(events.TypePositionModified, p.Owner, p.ID, payload)
		result = p
		return nil
	})
	return result, err
}

// Close runs Close under req.Owner's serial queue and relays the closure
// to the settlement relayer once the local state transition is durable.
func (c *Coordinator) Close(ctx context.Context, req CloseRequest) (*orders.Position, error) {
	var result *orders.Position
	err := c.dispatch.submit(ctx, req.Owner, func() error {
		p, err := c.loadOwned(ctx, req.Owner, req.PositionID)
		if err != nil {
			return err
		}
		user, err := c.loadUser(ctx, req.Owner)
		if err != nil {
			return err
		}

		priorMargin := p.Margin
		size := p.Size
		payout, err := p.Close(req.ExitPrice, req.FundingPayment)
		if err != nil {
			return err
		}
		user.TotalCollateral -= priorMargin
		user.LockedCollateral -= priorMargin
		user.TotalPnL += payout - priorMargin
		if user.PositionCount > 0 {
			user.PositionCount--
		}

		if err := c.store.SaveTransition(ctx, p, user); err != nil {
			return enginerr.Wrap(enginerr.StoreUnavailable, "persisting closed position", err)
		}
		payload := events.PositionClosed{
			Owner: p.Owner, Symbol: p.Symbol, SizeClosed: size, ExitPrice: req.ExitPrice,
			RealizedPnL: p.RealizedPnL, Payout: payout, Liquidated: false, Version: p.Version,
		}
		if err := c.recordIntent(ctx, req.Owner, p.ID, database.IntentClose, payload); err != nil {
			return err
		}

		if c.relayer != nil {
			if _, err := c.relayer.Close(ctx, req.Owner, p.Symbol, size, req.ExitPrice); err != nil && c.logger != nil {
				c.logger.Error("relaying position close failed", err, logging.Any("position", p.ID))
			}
		}

		c.broadcast(events.TypePositionClosed, p.Owner, p.ID, payload)
		result = p
		return nil
	})
	return result, err
}

// Liquidate carries out a LiquidationOrder the risk monitor nominated,
// under the owning position's serial queue so it cannot race a concurrent
// Modify or Close on the same owner. Mirrors Close's collateral bookkeeping
// with Liquidated set on the emitted event.
func (c *Coordinator) Liquidate(ctx context.Context, order risk.LiquidationOrder) (*orders.Position, error) {
	var result *orders.Position
	err := c.dispatch.submit(ctx, order.Owner, func() error {
		p, err := c.loadOwned(ctx, order.Owner, order.PositionID)
		if err != nil {
			return err
		}
		if p.State == orders.StateClosed {
			result = p
			return nil
		}
		user, err := c.loadUser(ctx, order.Owner)
		if err != nil {
			return err
		}

		priorMargin := p.Margin
		size := p.Size
		payout, err := p.Liquidate(order.MarkPrice)
		if err != nil {
			return err
		}
		user.TotalCollateral -= priorMargin
		user.LockedCollateral -= priorMargin
		user.TotalPnL += payout - priorMargin
		if user.PositionCount > 0 {
			user.PositionCount--
		}

		if err := c.store.SaveTransition(ctx, p, user); err != nil {
			return enginerr.Wrap(enginerr.StoreUnavailable, "persisting liquidated position", err)
		}
		payload := events.PositionClosed{
			Owner: p.Owner, Symbol: p.Symbol, SizeClosed: size, ExitPrice: order.MarkPrice,
			RealizedPnL: p.RealizedPnL, Payout: payout, Liquidated: true, Version: p.Version,
		}
		if err := c.recordIntent(ctx, order.Owner, p.ID, database.IntentClose, payload); err != nil {
			return err
		}

		if c.relayer != nil {
			if _, err := c.relayer.Liquidate(ctx, order.Owner, p.Symbol, order.MarkPrice); err != nil && c.logger != nil {
				c.logger.Error("relaying liquidation failed", err, logging.Any("position", p.ID))
			}
		}

		c.broadcast(events.TypePositionClosed, p.Owner, p.ID, payload)
		result = p
		return nil
	})
	return result, err
}

// loadOwned fetches a position by id and verifies it belongs to owner,
// returning NotFound rather than leaking another owner's position state.
func (c *Coordinator) loadOwned(ctx context.Context, owner, positionID string) (*orders.Position, error) {
	p, err := c.store.GetPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if p.Owner != owner {
		return nil, enginerr.New(enginerr.NotFound, "position not found")
	}
	return p, nil
}

func sideString(s orders.Side) string {
	if s == orders.Long {
		return "long"
	}
	return "short"
}
