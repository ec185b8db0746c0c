// Advanced-order evaluator: stop-loss, take-profit, and trailing-stop
// triggers, plus hedge detection. Grounded on orders/trailing.go's
// TrailingStop/TrailingStopService (peak/trough tracking, side-aware
// comparisons) and on src/advanced_orders.rs's OrderManager.check_triggers,
// reworked to the scaled-integer model and to carry side explicitly per
// the resolved open question in SPEC_FULL.md §9.
package orders

import (
	"sync"
	"time"

	"github.com/rtx-labs/posengine/internal/enginerr"
)

// OrderKind discriminates an AdvancedOrder's trigger rule.
type OrderKind string

const (
	KindStopLoss     OrderKind = "stop_loss"
	KindTakeProfit   OrderKind = "take_profit"
	KindTrailingStop OrderKind = "trailing_stop"
)

// AdvancedOrder is a standing trigger attached to a position. Side is
// carried explicitly rather than inferred, since trigger price and side
// live on the position, not (ambiguously) on the order.
type AdvancedOrder struct {
	ID       string
	Owner    string
	Symbol   string
	Side     Side
	Kind     OrderKind
	Size     int64
	Trigger  int64 // StopLoss trigger / TakeProfit target
	Trail    int64 // TrailingStop trail distance
	Peak     int64 // TrailingStop running peak (longs) or trough (shorts)
	IsActive bool
	// lastTickAt guards against out-of-order price updates: a tick whose
	// timestamp is not after the last applied tick is ignored.
	lastTickAt time.Time
}

// NewStopLoss constructs an active StopLoss order.
func NewStopLoss(id, owner, symbol string, side Side, size, trigger int64) *AdvancedOrder {
	return &AdvancedOrder{ID: id, Owner: owner, Symbol: symbol, Side: side, Kind: KindStopLoss, Size: size, Trigger: trigger, IsActive: true}
}

// NewTakeProfit constructs an active TakeProfit order.
func NewTakeProfit(id, owner, symbol string, side Side, size, target int64) *AdvancedOrder {
	return &AdvancedOrder{ID: id, Owner: owner, Symbol: symbol, Side: side, Kind: KindTakeProfit, Size: size, Trigger: target, IsActive: true}
}

// NewTrailingStop constructs an active TrailingStop order, seeding peak
// with the position's entry price (or current mark) so the first tick has
// a baseline to compare against.
func NewTrailingStop(id, owner, symbol string, side Side, size, trail, seed int64) *AdvancedOrder {
	return &AdvancedOrder{ID: id, Owner: owner, Symbol: symbol, Side: side, Kind: KindTrailingStop, Size: size, Trail: trail, Peak: seed, IsActive: true}
}

// Evaluate applies one mark tick to the order. It returns triggered=true at
// most once per order (subsequent calls on an inactive order are no-ops).
// at is the tick's monotonic timestamp; ticks that are not strictly after
// the last applied one are ignored so the evaluator tolerates out-of-order
// delivery.
func (o *AdvancedOrder) Evaluate(mark int64, at time.Time) (triggered bool) {
	if !o.IsActive {
		return false
	}
	if !o.lastTickAt.IsZero() && !at.After(o.lastTickAt) {
		return false
	}
	o.lastTickAt = at

	switch o.Kind {
	case KindStopLoss:
		if o.Side == Long {
			triggered = mark <= o.Trigger
		} else {
			triggered = mark >= o.Trigger
		}
	case KindTakeProfit:
		if o.Side == Long {
			triggered = mark >= o.Trigger
		} else {
			triggered = mark <= o.Trigger
		}
	case KindTrailingStop:
		if o.Side == Long {
			if mark > o.Peak {
				o.Peak = mark
			}
			triggered = o.Peak-mark >= o.Trail
		} else {
			if o.Peak == 0 || mark < o.Peak {
				o.Peak = mark
			}
			triggered = mark-o.Peak >= o.Trail
		}
	}

	if triggered {
		o.IsActive = false
	}
	return triggered
}

// Evaluator holds the standing advanced orders for a set of positions and
// dispatches mark ticks to every order on the affected symbol.
type Evaluator struct {
	mu     sync.RWMutex
	orders map[string]*AdvancedOrder
}

// NewEvaluator constructs an empty Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{orders: make(map[string]*AdvancedOrder)}
}

// Add registers an order.
func (e *Evaluator) Add(o *AdvancedOrder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orders[o.ID] = o
}

// Remove unregisters an order by id.
func (e *Evaluator) Remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.orders, id)
}

// Get returns an order by id.
func (e *Evaluator) Get(id string) (*AdvancedOrder, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.orders[id]
	if !ok {
		return nil, enginerr.New(enginerr.NotFound, "advanced order not found")
	}
	return o, nil
}

// Tick evaluates every active order on symbol against mark, returning the
// ones that triggered on this call.
func (e *Evaluator) Tick(symbol string, mark int64, at time.Time) []*AdvancedOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	var triggered []*AdvancedOrder
	for _, o := range e.orders {
		if o.Symbol != symbol || !o.IsActive {
			continue
		}
		if o.Evaluate(mark, at) {
			triggered = append(triggered, o)
		}
	}
	return triggered
}

// HedgePair identifies two same-owner, same-symbol positions with opposite
// sides by their index in the snapshot slice passed to DetectHedges.
type HedgePair struct {
	I, J int
}

// DetectHedges scans an owner's position snapshot for same-symbol pairs
// with opposite sides, using the explicit Side field. The Rust original
// infers direction from the sign of an unsigned size field, which is the
// bug this implementation deliberately avoids.
func DetectHedges(positions []*Position) []HedgePair {
	var pairs []HedgePair
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			a, b := positions[i], positions[j]
			if a.Owner == b.Owner && a.Symbol == b.Symbol && a.Side != b.Side {
				pairs = append(pairs, HedgePair{I: i, J: j})
			}
		}
	}
	return pairs
}
