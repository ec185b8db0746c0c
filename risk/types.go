// Package risk implements the periodic scan loop that re-prices every open
// position against the oracle's mark, raises margin-ratio alerts, and
// nominates positions for liquidation. Grounded on risk/engine.go's
// Engine (map+mutex state, periodic checks) reworked from the teacher's
// float Account/Position model onto orders.Position and internal/margin,
// and on src/liquidation_engine.rs's threshold-scan evaluate().
package risk

import "time"

// RiskAlert is raised when a position's margin ratio drops below the
// configured alert threshold, including when it has also breached
// maintenance.
type RiskAlert struct {
	PositionID  string
	Owner       string
	Symbol      string
	MarginRatio int64 // ppm
	MarkPrice   int64
	At          time.Time
}

// LiquidationOrder is nominated when a position's margin ratio falls to or
// below its tier's maintenance rate.
type LiquidationOrder struct {
	PositionID string
	Owner      string
	Symbol     string
	MarkPrice  int64
	At         time.Time
}

// ScanResult summarizes one pass of the monitor's scan loop.
type ScanResult struct {
	Scanned      int
	Alerts       []RiskAlert
	Liquidations []LiquidationOrder
	Triggered    []TriggeredOrder
	SkippedSymbols []string
}

// TriggeredOrder names an advanced order that fired during this scan.
type TriggeredOrder struct {
	OrderID string
	Owner   string
	Symbol  string
	Kind    string
}
