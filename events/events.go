// Package events defines the wire shape of everything the broadcast hub
// fans out to WebSocket subscribers. Grounded on the teacher's ws.Hub
// message envelopes and on the position_opened/modified/closed events of
// the Rust original (src/events.rs), carried to Go as plain structs with a
// Type discriminator instead of Anchor's #[event] macro.
package events

import "time"

// Type discriminates the JSON payload on the wire.
type Type string

const (
	TypePositionOpened  Type = "position_opened"
	TypePositionModified Type = "position_modified"
	TypePositionClosed  Type = "position_closed"
	TypeRiskAlert       Type = "risk_alert"
	TypeOrderTriggered  Type = "order_triggered"
	TypeLiquidation     Type = "liquidation"
	TypePnLUpdate       Type = "pnl_update"
)

// Envelope is the single JSON object shape every WebSocket message takes.
type Envelope struct {
	Type     Type        `json:"type"`
	Owner    string      `json:"owner"`
	Position string      `json:"position,omitempty"`
	Stream   string      `json:"stream"`
	Payload  interface{} `json:"payload"`
	At       time.Time   `json:"at"`
}

// PositionOpened is emitted after a successful Open transition.
type PositionOpened struct {
	Owner            string `json:"owner"`
	Symbol           string `json:"symbol"`
	Side             string `json:"side"`
	Size             int64  `json:"size"`
	Leverage         int64  `json:"leverage"`
	EntryPrice       int64  `json:"entry_price"`
	InitialMargin    int64  `json:"initial_margin"`
	LiquidationPrice int64  `json:"liquidation_price"`
	Version          uint64 `json:"version"`
}

// PositionModified is emitted after any successful Increase/Decrease/
// AddMargin/RemoveMargin transition.
type PositionModified struct {
	Owner            string `json:"owner"`
	Symbol           string `json:"symbol"`
	Size             int64  `json:"size"`
	Margin           int64  `json:"margin"`
	Leverage         int64  `json:"leverage"`
	Price            int64  `json:"price"`
	UnrealizedPnL    int64  `json:"unrealized_pnl"`
	LiquidationPrice int64  `json:"liquidation_price"`
	Version          uint64 `json:"version"`
}

// PositionClosed is emitted after Close (including liquidation-driven
// closes, which additionally set Liquidated).
type PositionClosed struct {
	Owner       string `json:"owner"`
	Symbol      string `json:"symbol"`
	SizeClosed  int64  `json:"size_closed"`
	ExitPrice   int64  `json:"exit_price"`
	RealizedPnL int64  `json:"realized_pnl"`
	Payout      int64  `json:"payout"`
	Liquidated  bool   `json:"liquidated"`
	Version     uint64 `json:"version"`
}

// RiskAlert is emitted by the monitor when a position's margin ratio drops
// below the configured alert threshold.
type RiskAlert struct {
	Owner       string `json:"owner"`
	Symbol      string `json:"symbol"`
	MarginRatio string `json:"margin_ratio"`
	MarkPrice   int64  `json:"mark_price"`
}

// OrderTriggered is emitted exactly once per advanced order transition to
// inactive.
type OrderTriggered struct {
	OrderID string `json:"order_id"`
	Owner   string `json:"owner"`
	Symbol  string `json:"symbol"`
	Kind    string `json:"kind"`
}

// StreamFor maps an event Type onto one of the four subscription streams
// ("positions", "pnl", "alerts", "events") a WebSocket client selects via
// /ws?streams=.
func StreamFor(t Type) string {
	switch t {
	case TypePositionOpened, TypePositionModified, TypePositionClosed:
		return "positions"
	case TypePnLUpdate:
		return "pnl"
	case TypeRiskAlert, TypeLiquidation:
		return "alerts"
	case TypeOrderTriggered:
		return "events"
	default:
		return "events"
	}
}

// PnLUpdate is emitted once per open position on every monitor scan pass,
// independent of whether the position crosses any alert/liquidation
// threshold, for clients subscribed to the "pnl" stream.
type PnLUpdate struct {
	Owner            string `json:"owner"`
	Symbol           string `json:"symbol"`
	MarkPrice        int64  `json:"mark_price"`
	UnrealizedPnL    int64  `json:"unrealized_pnl"`
	LiquidationPrice int64  `json:"liquidation_price"`
}
