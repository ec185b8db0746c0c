package analytics

import "testing"

func TestMetricsWinRateAndProfitFactor(t *testing.T) {
	a := New()
	a.AddTrade(TradeRecord{Symbol: "BTC", PnL: 1000})
	a.AddTrade(TradeRecord{Symbol: "BTC", PnL: -500})
	a.AddTrade(TradeRecord{Symbol: "BTC", PnL: 2000})

	m := a.Metrics()
	if m.TotalTrades != 3 {
		t.Fatalf("total_trades = %d, want 3", m.TotalTrades)
	}
	if m.TotalPnL != 2500 {
		t.Fatalf("total_pnl = %d, want 2500", m.TotalPnL)
	}
	wantWinRate := 2.0 / 3.0
	if diff := m.WinRate - wantWinRate; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("win_rate = %v, want %v", m.WinRate, wantWinRate)
	}
	wantPF := 3000.0 / 500.0
	if m.ProfitFactor != wantPF {
		t.Fatalf("profit_factor = %v, want %v", m.ProfitFactor, wantPF)
	}
}

func TestMetricsEmptyHistory(t *testing.T) {
	a := New()
	m := a.Metrics()
	if m.TotalTrades != 0 || m.WinRate != 0 || m.ProfitFactor != 0 {
		t.Fatalf("expected zero-value metrics on empty history, got %+v", m)
	}
}

func TestMaxDrawdownTracksPeakToTroughAfterGain(t *testing.T) {
	a := New()
	a.AddTrade(TradeRecord{PnL: 1000}) // running=1000, peak=1000
	a.AddTrade(TradeRecord{PnL: -400}) // running=600, dd=400/1000=0.4
	a.AddTrade(TradeRecord{PnL: 100})  // running=700, dd=300/1000=0.3

	m := a.Metrics()
	if m.MaxDrawdown != 0.4 {
		t.Fatalf("max_drawdown = %v, want 0.4", m.MaxDrawdown)
	}
}

func TestPortfolioRiskConcentrationFullyConcentrated(t *testing.T) {
	risk := PortfolioRiskOf([]PositionExposure{
		{Symbol: "BTC", Size: 1, Mark: 50_000},
		{Symbol: "BTC", Size: 1, Mark: 50_000},
	})
	if risk.ConcentrationIndex != 1.0 {
		t.Fatalf("concentration = %v, want 1.0 (single symbol)", risk.ConcentrationIndex)
	}
}

func TestPortfolioRiskConcentrationSplitEvenly(t *testing.T) {
	risk := PortfolioRiskOf([]PositionExposure{
		{Symbol: "BTC", Size: 1, Mark: 1000},
		{Symbol: "ETH", Size: 1, Mark: 1000},
	})
	if risk.ConcentrationIndex != 0.5 {
		t.Fatalf("concentration = %v, want 0.5 (two equal symbols)", risk.ConcentrationIndex)
	}
	if risk.TotalExposure != 2000 {
		t.Fatalf("total_exposure = %d, want 2000", risk.TotalExposure)
	}
}
