package risk

import (
	"context"
	"time"

	"github.com/rtx-labs/posengine/database"
	"github.com/rtx-labs/posengine/events"
	"github.com/rtx-labs/posengine/internal/core"
	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/internal/fp"
	"github.com/rtx-labs/posengine/internal/margin"
	"github.com/rtx-labs/posengine/logging"
	"github.com/rtx-labs/posengine/oracle"
	"github.com/rtx-labs/posengine/orders"
)

// DefaultAlertThresholdPPM is the margin ratio (as parts-per-million of
// SCALE) below which a position gets a RiskAlert, absent
// RISK_ALERT_THRESHOLD overriding it.
const DefaultAlertThresholdPPM = 200_000 // 0.20

// Monitor runs the periodic scan: reprice every open position, raise
// alerts, nominate liquidations, and feed marks into the advanced-order
// evaluator.
type Monitor struct {
	store             database.Store
	oracle            oracle.Oracle
	evaluator         *orders.Evaluator
	broadcaster       *core.Broadcaster[events.Envelope]
	alertThresholdPPM int64
	logger            *logging.Logger

	lastMark map[string]int64
}

// NewMonitor constructs a Monitor. evaluator may be nil if no advanced
// orders are configured.
func NewMonitor(store database.Store, orc oracle.Oracle, evaluator *orders.Evaluator, broadcaster *core.Broadcaster[events.Envelope], alertThresholdPPM int64, logger *logging.Logger) *Monitor {
	if alertThresholdPPM <= 0 {
		alertThresholdPPM = DefaultAlertThresholdPPM
	}
	return &Monitor{
		store:             store,
		oracle:            orc,
		evaluator:         evaluator,
		broadcaster:       broadcaster,
		alertThresholdPPM: alertThresholdPPM,
		logger:            logger,
		lastMark:          make(map[string]int64),
	}
}

// Run ticks Scan every interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Scan(ctx); err != nil && m.logger != nil {
				m.logger.Error("risk monitor scan failed", err)
			}
		}
	}
}

// Scan performs one pass: load open positions, reprice against the oracle,
// raise alerts/nominate liquidations, persist updated snapshots, and run
// the advanced-order evaluator. Within the pass each position is updated
// atomically and at most once.
func (m *Monitor) Scan(ctx context.Context) (ScanResult, error) {
	positions, err := m.store.GetOpenPositions(ctx)
	if err != nil {
		return ScanResult{}, enginerr.Wrap(enginerr.StoreUnavailable, "loading open positions", err)
	}

	bySymbol := make(map[string][]*orders.Position)
	for _, p := range positions {
		bySymbol[p.Symbol] = append(bySymbol[p.Symbol], p)
	}

	result := ScanResult{}
	now := time.Now()

	for symbol, group := range bySymbol {
		rawMark, err := m.oracle.Price(ctx, symbol)
		if err != nil {
			result.SkippedSymbols = append(result.SkippedSymbols, symbol)
			if m.logger != nil {
				m.logger.Warn("oracle unavailable for symbol, skipping", logging.Symbol(symbol), logging.Any("error", err.Error()))
			}
			continue
		}
		mark, err := oracle.Clamp(m.lastMark[symbol], rawMark)
		if err != nil {
			result.SkippedSymbols = append(result.SkippedSymbols, symbol)
			if m.logger != nil {
				m.logger.Warn("oracle quote rejected as implausible, skipping", logging.Symbol(symbol), logging.Any("error", err.Error()))
			}
			continue
		}
		m.lastMark[symbol] = mark

		for _, p := range group {
			result.Scanned++
			if err := p.Reprice(mark); err != nil {
				if m.logger != nil {
					m.logger.Error("repricing position failed", err, logging.Any("position", p.ID))
				}
				continue
			}

			markNotional, err := margin.Notional(p.Size, mark)
			if err != nil {
				continue
			}
			ratio, err := margin.MarginRatio(p.Margin, p.UnrealizedPnL, markNotional)
			if err != nil {
				continue
			}
			mmr, err := p.MaintenanceRatePPM()
			if err != nil {
				continue
			}

			// Nominate at or below maintenance: Num*RS <= mmr*Den.
			breach := !ratio.Infinite &&
				fp.MulWide(ratio.Num, fp.RateScale).Sub(fp.MulWide(mmr, ratio.Den)).Cmp(0) <= 0
			belowAlert, err := ratio.BelowPPM(m.alertThresholdPPM)
			if err != nil {
				belowAlert = false
			}
			// A maintenance breach is always also below the (looser) alert
			// threshold, so both fire together: the alert is the durable
			// record, the liquidation nomination is the action taken.
			if belowAlert {
				alert := RiskAlert{PositionID: p.ID, Owner: p.Owner, Symbol: p.Symbol, MarginRatio: ratio.PPM(), MarkPrice: mark, At: now}
				result.Alerts = append(result.Alerts, alert)
				if err := m.store.InsertRiskAlert(ctx, &database.RiskAlertRow{PositionID: p.ID, MarginRatio: alert.MarginRatio, MarkPrice: mark, CreatedAt: now}); err != nil && m.logger != nil {
					m.logger.Error("persisting risk alert failed", err)
				}
				m.broadcast(events.TypeRiskAlert, p.Owner, p.ID, events.RiskAlert{Owner: p.Owner, Symbol: p.Symbol, MarginRatio: ratio.String(), MarkPrice: mark})
			}
			if breach {
				liq := LiquidationOrder{PositionID: p.ID, Owner: p.Owner, Symbol: p.Symbol, MarkPrice: mark, At: now}
				result.Liquidations = append(result.Liquidations, liq)
				m.broadcast(events.TypeLiquidation, p.Owner, p.ID, events.RiskAlert{Owner: p.Owner, Symbol: p.Symbol, MarginRatio: ratio.String(), MarkPrice: mark})
			}

			if err := m.store.UpsertPosition(ctx, p); err != nil && m.logger != nil {
				m.logger.Error("persisting repriced position failed", err, logging.Any("position", p.ID))
			}
			m.broadcast(events.TypePnLUpdate, p.Owner, p.ID, events.PnLUpdate{
				Owner: p.Owner, Symbol: p.Symbol, MarkPrice: mark,
				UnrealizedPnL: p.UnrealizedPnL, LiquidationPrice: p.LiquidationPrice,
			})

			if m.evaluator != nil {
				for _, triggered := range m.evaluator.Tick(symbol, mark, now) {
					result.Triggered = append(result.Triggered, TriggeredOrder{OrderID: triggered.ID, Owner: triggered.Owner, Symbol: triggered.Symbol, Kind: string(triggered.Kind)})
					m.broadcast(events.TypeOrderTriggered, triggered.Owner, "", events.OrderTriggered{OrderID: triggered.ID, Owner: triggered.Owner, Symbol: triggered.Symbol, Kind: string(triggered.Kind)})
				}
			}
		}
	}

	return result, nil
}

func (m *Monitor) broadcast(t events.Type, owner, position string, payload interface{}) {
	if m.broadcaster == nil {
		return
	}
	m.broadcaster.Publish(events.Envelope{Type: t, Owner: owner, Position: position, Stream: events.StreamFor(t), Payload: payload, At: time.Now()})
}
