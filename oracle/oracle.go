// Package oracle supplies mark prices to the risk monitor and the
// settlement coordinator. Grounded on config's PRICE_ORACLE_SOURCE switch
// ("mock" or "pyth:<feed>") and on cache/redis.go for the caching layer
// wrapped around whichever source is configured.
package oracle

import (
	"context"
	"sync"

	"github.com/rtx-labs/posengine/cache"
	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/internal/fp"
)

// Oracle resolves a symbol to its current mark price, scaled by fp.Scale.
type Oracle interface {
	Price(ctx context.Context, symbol string) (int64, error)
}

// Mock is a deterministic in-memory oracle for tests, local development,
// and PRICE_ORACLE_SOURCE=mock. Prices are set externally (e.g. by a test
// or an operator endpoint) and read back verbatim.
type Mock struct {
	mu     sync.RWMutex
	prices map[string]int64
}

// NewMock constructs a Mock oracle with no prices set.
func NewMock() *Mock {
	return &Mock{prices: make(map[string]int64)}
}

// SetPrice seeds or updates the mock price for symbol.
func (m *Mock) SetPrice(symbol string, price int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// Price implements Oracle.
func (m *Mock) Price(_ context.Context, symbol string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prices[symbol]
	if !ok {
		return 0, enginerr.New(enginerr.OracleUnavailable, "no mock price set for "+symbol)
	}
	return p, nil
}

// Cached wraps an Oracle with a cache.Cache front, using
// cache.TTL_Market_Price as the freshness window per cache.go's warm-data
// tier. A cache miss or a stale/corrupt entry falls through to the
// underlying source and repopulates the cache.
type Cached struct {
	source Oracle
	cache  cache.Cache
}

// NewCached wraps source with a caching front end.
func NewCached(source Oracle, c cache.Cache) *Cached {
	return &Cached{source: source, cache: c}
}

// Price implements Oracle.
func (c *Cached) Price(ctx context.Context, symbol string) (int64, error) {
	key := cache.CacheKey(cache.NS_Prices, symbol)
	if v, err := c.cache.Get(ctx, key); err == nil {
		if scaled, ok := toScaledPrice(v); ok {
			return scaled, nil
		}
	}

	price, err := c.source.Price(ctx, symbol)
	if err != nil {
		return 0, err
	}
	_ = c.cache.Set(ctx, key, price, cache.TTL_Market_Price)
	return price, nil
}

func toScaledPrice(v interface{}) (int64, bool) {
	switch p := v.(type) {
	case int64:
		return p, true
	case float64:
		return int64(p), true
	default:
		return 0, false
	}
}

// Clamp rejects a quote that implies an implausible tick relative to the
// last known mark (more than a 50% move in one scan), guarding the monitor
// against a corrupt or malicious oracle response. Neither Mock nor Cached
// applies it; callers that need it (the risk monitor) apply it explicitly.
func Clamp(last, next int64) (int64, error) {
	if last == 0 {
		return next, nil
	}
	diff := next - last
	if diff < 0 {
		diff = -diff
	}
	half := last / 2
	if diff > half {
		return 0, enginerr.New(enginerr.OracleUnavailable, "mark price moved implausibly in one scan")
	}
	return next, nil
}

// Scale re-exports fp.Scale for callers constructing test prices without
// importing internal/fp directly.
const Scale = fp.Scale
