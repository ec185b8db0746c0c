package risk

import (
	"context"

	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/orders"
	"github.com/rtx-labs/posengine/relayer"
)

// Execute carries out a LiquidationOrder the monitor nominated: it closes
// pos at order.MarkPrice via the state machine, then relays the closure.
// Mirrors src/liquidation_engine.rs's evaluate/execute split — Scan plays
// the role of evaluate, Execute plays execute — but runs the state-machine
// transition locally rather than over a transaction broker.
func Execute(ctx context.Context, order LiquidationOrder, pos *orders.Position, rl relayer.Relayer) (payout int64, txID string, err error) {
	if pos.ID != order.PositionID {
		return 0, "", enginerr.New(enginerr.InvalidState, "position does not match the liquidation nomination")
	}

	payout, err = pos.Liquidate(order.MarkPrice)
	if err != nil {
		return 0, "", err
	}

	txID, err = rl.Liquidate(ctx, order.Owner, order.Symbol, order.MarkPrice)
	if err != nil {
		return payout, "", err
	}
	return payout, txID, nil
}
