// Package orders implements the position state machine (open, modify,
// close) and the advanced-order evaluator (stop-loss, take-profit,
// trailing-stop, hedge detection) that run on top of it.
//
// Grounded on orders/position.go's PositionManager — hedging/netting mode
// switch, UpdatePosition/PartialClose/ClosePosition/ReversePosition — kept
// in spirit (one entity per (owner, symbol), transition methods that
// mutate in place and return an error) but reworked from float/string
// fields to the scaled-integer data model and the six-state lifecycle.
package orders

import (
	"time"

	"github.com/rtx-labs/posengine/internal/core"
	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/internal/fp"
	"github.com/rtx-labs/posengine/internal/margin"
	"github.com/rtx-labs/posengine/internal/tiers"
)

// Side aliases margin.Side so every package that compares a position's
// side against Long/Short shares one underlying type.
type Side = margin.Side

const (
	Long  = margin.Long
	Short = margin.Short
)

// State is a position's lifecycle stage.
type State string

const (
	StateOpening     State = "opening"
	StateOpen        State = "open"
	StateModifying   State = "modifying"
	StateClosing     State = "closing"
	StateClosed      State = "closed"
	StateLiquidating State = "liquidating"
)

const maxSymbolLen = 16
const maxLeverage = 1000

// Position is the central entity, identified by (Owner, Symbol). All
// monetary fields are scaled integers per fp.Scale.
type Position struct {
	ID               string
	Owner            string
	Symbol           string
	Side             Side
	Size             int64
	EntryPrice       int64
	Margin           int64
	Leverage         int64
	UnrealizedPnL    int64
	RealizedPnL      int64
	FundingAccrued   int64
	LiquidationPrice int64
	LastUpdate       time.Time
	State            State
	Version          uint64
}

// Notional returns size*entry_price descaled to a single SCALE factor.
func (p *Position) Notional() (int64, error) {
	return margin.Notional(p.Size, p.EntryPrice)
}

func validateSymbol(symbol string) error {
	if len(symbol) == 0 || len(symbol) > maxSymbolLen {
		return enginerr.New(enginerr.SymbolTooLong, "symbol must be 1-16 bytes")
	}
	return nil
}

func validateLeverage(leverage int64) error {
	if leverage < 1 || leverage > maxLeverage {
		return enginerr.New(enginerr.InvalidLeverage, "leverage must be between 1 and 1000")
	}
	return nil
}

// Open constructs a new Position in state Open whose Margin is the initial
// margin that must be moved from the caller's collateral into the locked
// pool. It does not touch any store or user account — that is the
// settlement coordinator's job, atomically, around this call.
func Open(id, owner, symbol string, side Side, size, leverage, entryPrice int64) (*Position, error) {
	if size <= 0 {
		return nil, enginerr.New(enginerr.InvalidSize, "size must be positive")
	}
	if err := validateLeverage(leverage); err != nil {
		return nil, err
	}
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}

	notional, err := margin.Notional(size, entryPrice)
	if err != nil {
		return nil, err
	}
	tier, err := tiers.Lookup(leverage, notional)
	if err != nil {
		return nil, err
	}
	im, err := margin.InitialMargin(notional, leverage)
	if err != nil {
		return nil, err
	}

	liqPrice, err := margin.LiquidationPrice(side, size, entryPrice, im, tier.MaintenanceMarginRatePPM)
	if err != nil {
		return nil, err
	}

	return &Position{
		ID:               id,
		Owner:            owner,
		Symbol:           symbol,
		Side:             side,
		Size:             size,
		EntryPrice:       entryPrice,
		Margin:           im,
		Leverage:         leverage,
		LiquidationPrice: liqPrice,
		LastUpdate:       time.Now(),
		State:            StateOpen,
		Version:          1,
	}, nil
}

// requireOpen enforces the re-entrancy/state rule: only a position in
// Open may accept a modification.
func (p *Position) requireOpen() error {
	if p.State != StateOpen {
		return enginerr.New(enginerr.InvalidState, "position is not open")
	}
	return nil
}

// IncreaseSize adds addSize units at price, optionally pulling addMargin
// into the locked pool first. Returns the margin delta the coordinator
// must move from the owner's free collateral (always addMargin; present
// for symmetry with the other transitions).
func (p *Position) IncreaseSize(addSize, price, addMargin int64) (marginDelta int64, err error) {
	if err := p.requireOpen(); err != nil {
		return 0, err
	}
	if addSize <= 0 {
		return 0, enginerr.New(enginerr.InvalidSize, "add_size must be positive")
	}
	if addMargin < 0 {
		return 0, enginerr.New(enginerr.InvalidAmount, "add_margin must not be negative")
	}
	p.State = StateModifying

	newEntry, err := core.WeightedEntry(p.Size, p.EntryPrice, addSize, price)
	if err != nil {
		p.State = StateOpen
		return 0, err
	}
	newSize, err := fp.AddI(p.Size, addSize)
	if err != nil {
		p.State = StateOpen
		return 0, err
	}
	newMargin, err := fp.AddI(p.Margin, addMargin)
	if err != nil {
		p.State = StateOpen
		return 0, err
	}
	newNotional, err := margin.Notional(newSize, newEntry)
	if err != nil {
		p.State = StateOpen
		return 0, err
	}

	if newNotional/newMargin > p.Leverage {
		p.State = StateOpen
		return 0, enginerr.New(enginerr.InsufficientMarginForIncrease, "margin insufficient for the increased notional at current leverage")
	}
	tier, err := tiers.Lookup(p.Leverage, newNotional)
	if err != nil {
		p.State = StateOpen
		return 0, err
	}

	upnl, err := core.UnrealizedPnL(p.Side, newSize, newEntry, price)
	if err != nil {
		p.State = StateOpen
		return 0, err
	}
	liq, err := margin.LiquidationPrice(p.Side, newSize, newEntry, newMargin, tier.MaintenanceMarginRatePPM)
	if err != nil {
		p.State = StateOpen
		return 0, err
	}

	p.Size = newSize
	p.EntryPrice = newEntry
	p.Margin = newMargin
	p.UnrealizedPnL = upnl
	p.LiquidationPrice = liq
	p.LastUpdate = time.Now()
	p.Version++
	p.State = StateOpen
	return addMargin, nil
}

// DecreaseSize reduces size by reduceSize at price. If the position is
// fully closed as a result, closed is true and payout carries the released
// collateral (as in Close); otherwise payout is 0 (no collateral is
// released on a partial decrease). realized is the PnL realized on the
// reduced size in either case.
func (p *Position) DecreaseSize(reduceSize, price int64) (closed bool, realized int64, payout int64, err error) {
	if err := p.requireOpen(); err != nil {
		return false, 0, 0, err
	}
	if reduceSize <= 0 || reduceSize > p.Size {
		return false, 0, 0, enginerr.New(enginerr.InvalidSize, "reduce_size must be in (0, size]")
	}
	p.State = StateModifying

	realizedDelta, err := core.RealizedPnLPartial(p.Side, reduceSize, p.EntryPrice, price)
	if err != nil {
		p.State = StateOpen
		return false, 0, 0, err
	}
	newRealized, err := fp.AddI(p.RealizedPnL, realizedDelta)
	if err != nil {
		p.State = StateOpen
		return false, 0, 0, err
	}
	newSize, err := fp.SubI(p.Size, reduceSize)
	if err != nil {
		p.State = StateOpen
		return false, 0, 0, err
	}

	p.RealizedPnL = newRealized
	p.Size = newSize
	p.LastUpdate = time.Now()
	p.Version++

	if newSize == 0 {
		payout, err := p.finishClose(price, 0)
		if err != nil {
			return false, 0, 0, err
		}
		return true, realizedDelta, payout, nil
	}

	newNotional, err := margin.Notional(newSize, p.EntryPrice)
	if err != nil {
		p.State = StateOpen
		return false, 0, 0, err
	}
	tier, err := tiers.Lookup(p.Leverage, newNotional)
	if err != nil {
		p.State = StateOpen
		return false, 0, 0, err
	}
	upnl, err := core.UnrealizedPnL(p.Side, newSize, p.EntryPrice, price)
	if err != nil {
		p.State = StateOpen
		return false, 0, 0, err
	}
	liq, err := margin.LiquidationPrice(p.Side, newSize, p.EntryPrice, p.Margin, tier.MaintenanceMarginRatePPM)
	if err != nil {
		p.State = StateOpen
		return false, 0, 0, err
	}
	p.UnrealizedPnL = upnl
	p.LiquidationPrice = liq
	p.State = StateOpen
	return false, realizedDelta, 0, nil
}

// AddMargin pulls amount into the locked pool.
func (p *Position) AddMargin(amount int64) error {
	if err := p.requireOpen(); err != nil {
		return err
	}
	if amount <= 0 {
		return enginerr.New(enginerr.InvalidAmount, "amount must be positive")
	}
	p.State = StateModifying

	newMargin, err := fp.AddI(p.Margin, amount)
	if err != nil {
		p.State = StateOpen
		return err
	}
	tier, err := p.currentTier()
	if err != nil {
		p.State = StateOpen
		return err
	}
	liq, err := margin.LiquidationPrice(p.Side, p.Size, p.EntryPrice, newMargin, tier.MaintenanceMarginRatePPM)
	if err != nil {
		p.State = StateOpen
		return err
	}
	p.Margin = newMargin
	p.LiquidationPrice = liq
	p.LastUpdate = time.Now()
	p.Version++
	p.State = StateOpen
	return nil
}

// RemoveMargin releases amount from the locked pool, failing with
// MaintenanceBreach if doing so would drop the position below its
// maintenance requirement at price.
func (p *Position) RemoveMargin(amount, price int64) error {
	if err := p.requireOpen(); err != nil {
		return err
	}
	if amount <= 0 || amount > p.Margin {
		return enginerr.New(enginerr.InvalidAmount, "amount must be in (0, margin]")
	}
	p.State = StateModifying

	newMargin, err := fp.SubI(p.Margin, amount)
	if err != nil {
		p.State = StateOpen
		return err
	}
	trialUpnl, err := core.UnrealizedPnL(p.Side, p.Size, p.EntryPrice, price)
	if err != nil {
		p.State = StateOpen
		return err
	}
	notional, err := p.Notional()
	if err != nil {
		p.State = StateOpen
		return err
	}
	tier, err := tiers.Lookup(p.Leverage, notional)
	if err != nil {
		p.State = StateOpen
		return err
	}
	mm, err := margin.MaintenanceMargin(notional, tier.MaintenanceMarginRatePPM)
	if err != nil {
		p.State = StateOpen
		return err
	}
	equity, err := fp.AddI(newMargin, trialUpnl)
	if err != nil {
		p.State = StateOpen
		return err
	}
	if equity < mm {
		p.State = StateOpen
		return enginerr.New(enginerr.MaintenanceBreach, "removing this amount would breach the maintenance requirement")
	}

	liq, err := margin.LiquidationPrice(p.Side, p.Size, p.EntryPrice, newMargin, tier.MaintenanceMarginRatePPM)
	if err != nil {
		p.State = StateOpen
		return err
	}
	p.Margin = newMargin
	p.LiquidationPrice = liq
	p.LastUpdate = time.Now()
	p.Version++
	p.State = StateOpen
	return nil
}

// Close fully exits the position at exitPrice, applying fundingPayment as
// an externally supplied delta. Returns the payout released from the
// locked pool (max(0, margin+net_pnl)).
func (p *Position) Close(exitPrice, fundingPayment int64) (payout int64, err error) {
	if err := p.requireOpen(); err != nil {
		return 0, err
	}
	p.State = StateClosing
	payout, err = p.finishClose(exitPrice, fundingPayment)
	if err != nil {
		p.State = StateOpen
		return 0, err
	}
	return payout, nil
}

// Liquidate is economically a Close at the triggering mark, driven by the
// monitor's nomination rather than a caller request. The position must be
// Open; it transitions Open -> Liquidating -> Closed.
func (p *Position) Liquidate(markPrice int64) (payout int64, err error) {
	if err := p.requireOpen(); err != nil {
		return 0, err
	}
	p.State = StateLiquidating
	payout, err = p.finishClose(markPrice, 0)
	if err != nil {
		p.State = StateOpen
		return 0, err
	}
	return payout, nil
}

// finishClose performs the shared realized-PnL/payout math for Close,
// Liquidate, and the full-close branch of DecreaseSize, and leaves the
// position in state Closed with Size reset to 0.
func (p *Position) finishClose(exitPrice, fundingPayment int64) (int64, error) {
	realizedDelta, err := core.RealizedPnLPartial(p.Side, p.Size, p.EntryPrice, exitPrice)
	if err != nil {
		return 0, err
	}
	newRealized, err := fp.AddI(p.RealizedPnL, realizedDelta)
	if err != nil {
		return 0, err
	}
	netPnl, err := fp.SubI(newRealized, fundingPayment)
	if err != nil {
		return 0, err
	}
	equity, err := fp.AddI(p.Margin, netPnl)
	if err != nil {
		return 0, err
	}
	payout := equity
	if payout < 0 {
		payout = 0
	}

	p.RealizedPnL = newRealized
	p.FundingAccrued, err = fp.AddI(p.FundingAccrued, fundingPayment)
	if err != nil {
		return 0, err
	}
	p.Size = 0
	p.Margin = 0
	p.UnrealizedPnL = 0
	p.LiquidationPrice = 0
	p.LastUpdate = time.Now()
	p.Version++
	p.State = StateClosed
	return payout, nil
}

// currentTier re-selects the leverage tier for the position's current
// notional.
func (p *Position) currentTier() (tiers.Tier, error) {
	notional, err := p.Notional()
	if err != nil {
		return tiers.Tier{}, err
	}
	return tiers.Lookup(p.Leverage, notional)
}

// Reprice recomputes UnrealizedPnL and LiquidationPrice against mark
// without changing state. Used by the risk monitor's scan pass, which
// re-prices every open position every SCAN_INTERVAL.
func (p *Position) Reprice(mark int64) error {
	if p.State != StateOpen && p.State != StateModifying {
		return enginerr.New(enginerr.InvalidState, "position is not open")
	}
	upnl, err := core.UnrealizedPnL(p.Side, p.Size, p.EntryPrice, mark)
	if err != nil {
		return err
	}
	tier, err := p.currentTier()
	if err != nil {
		return err
	}
	liq, err := margin.LiquidationPrice(p.Side, p.Size, p.EntryPrice, p.Margin, tier.MaintenanceMarginRatePPM)
	if err != nil {
		return err
	}
	p.UnrealizedPnL = upnl
	p.LiquidationPrice = liq
	p.LastUpdate = time.Now()
	return nil
}

// MarginRatio returns the position's current margin ratio at its
// last-repriced unrealized PnL.
func (p *Position) MarginRatio() (margin.Ratio, error) {
	notional, err := p.Notional()
	if err != nil {
		return margin.Ratio{}, err
	}
	return margin.MarginRatio(p.Margin, p.UnrealizedPnL, notional)
}

// MaintenanceRatePPM returns the maintenance margin rate of the position's
// current tier.
func (p *Position) MaintenanceRatePPM() (int64, error) {
	tier, err := p.currentTier()
	if err != nil {
		return 0, err
	}
	return tier.MaintenanceMarginRatePPM, nil
}
