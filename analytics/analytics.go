// Package analytics computes read-only portfolio and trade performance
// statistics. Grounded on src/analytics.rs's Analytics/PerformanceMetrics/
// PortfolioRisk, carried to Go largely as-is since these are derived
// statistics rather than settlement amounts: they use float64, unlike the
// scaled-integer core, because nothing here gates a transition or a payout
// (SPEC_FULL.md §2.3 -- analytics never gates settlement).
package analytics

import (
	"math"
	"time"
)

// TradeRecord is one closed (or partially closed) position leg.
type TradeRecord struct {
	Symbol     string
	EntryPrice int64
	ExitPrice  int64
	Size       int64
	PnL        int64 // scaled, signed
	EntryTime  time.Time
	ExitTime   time.Time
}

// PerformanceMetrics summarizes a trade history.
type PerformanceMetrics struct {
	TotalPnL     int64
	WinRate      float64
	ProfitFactor float64
	SharpeRatio  float64
	MaxDrawdown  float64
	TotalTrades  int
}

// PositionExposure is the minimal view PortfolioRisk needs of a live
// position: its symbol and notional size at the current mark.
type PositionExposure struct {
	Symbol string
	Size   int64
	Mark   int64
}

// PortfolioRisk summarizes concentration across a snapshot of open
// positions.
type PortfolioRisk struct {
	TotalExposure      int64
	ConcentrationIndex float64 // Herfindahl index over per-symbol exposure share
}

// Analytics accumulates a trade history and a daily-return series for an
// owner and derives metrics on demand.
type Analytics struct {
	trades       []TradeRecord
	dailyReturns []float64
}

// New constructs an empty Analytics accumulator.
func New() *Analytics {
	return &Analytics{}
}

// AddTrade records a closed trade leg.
func (a *Analytics) AddTrade(t TradeRecord) {
	a.trades = append(a.trades, t)
}

// AddDailyReturn records one day's portfolio return (as a fraction, e.g.
// 0.02 for +2%), used by the Sharpe ratio.
func (a *Analytics) AddDailyReturn(r float64) {
	a.dailyReturns = append(a.dailyReturns, r)
}

// Metrics computes PerformanceMetrics over the recorded trade history.
func (a *Analytics) Metrics() PerformanceMetrics {
	if len(a.trades) == 0 {
		return PerformanceMetrics{}
	}

	var totalPnL int64
	var wins int
	var grossProfit, grossLoss int64
	for _, t := range a.trades {
		totalPnL += t.PnL
		if t.PnL > 0 {
			wins++
			grossProfit += t.PnL
		} else if t.PnL < 0 {
			grossLoss += -t.PnL
		}
	}

	winRate := float64(wins) / float64(len(a.trades))
	var profitFactor float64
	if grossLoss > 0 {
		profitFactor = float64(grossProfit) / float64(grossLoss)
	}

	return PerformanceMetrics{
		TotalPnL:     totalPnL,
		WinRate:      winRate,
		ProfitFactor: profitFactor,
		SharpeRatio:  a.sharpeRatio(),
		MaxDrawdown:  a.maxDrawdown(),
		TotalTrades:  len(a.trades),
	}
}

func (a *Analytics) sharpeRatio() float64 {
	if len(a.dailyReturns) == 0 {
		return 0
	}
	var sum float64
	for _, r := range a.dailyReturns {
		sum += r
	}
	mean := sum / float64(len(a.dailyReturns))

	var variance float64
	for _, r := range a.dailyReturns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(a.dailyReturns))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std
}

func (a *Analytics) maxDrawdown() float64 {
	var peak, running int64
	var maxDD float64
	for _, t := range a.trades {
		running += t.PnL
		if running > peak {
			peak = running
		}
		p := peak
		if p < 1 {
			p = 1
		}
		dd := float64(peak-running) / float64(p)
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// PortfolioRiskOf computes concentration risk (a Herfindahl index: sum of
// squared per-symbol exposure shares, in [0,1]) over a snapshot of open
// positions, using each position's size at the given mark price.
func PortfolioRiskOf(positions []PositionExposure) PortfolioRisk {
	exposureBySymbol := make(map[string]int64, len(positions))
	var total int64
	for _, p := range positions {
		e := p.Size * p.Mark
		exposureBySymbol[p.Symbol] += e
		total += e
	}
	if total == 0 {
		return PortfolioRisk{}
	}

	var hhi float64
	for _, e := range exposureBySymbol {
		share := float64(e) / float64(total)
		hhi += share * share
	}

	return PortfolioRisk{TotalExposure: total, ConcentrationIndex: hhi}
}
