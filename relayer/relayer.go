// Package relayer models the external settlement relayer: the system of
// record that actually moves collateral once the engine has decided what
// should happen. Grounded on the teacher's oms/service.go routing pattern
// (local vs broker execution) and on the settlement-relayer contract in
// SPEC_FULL.md §6's interface list.
package relayer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rtx-labs/posengine/internal/enginerr"
)

// Action discriminates the settlement operation being relayed.
type Action string

const (
	ActionClose     Action = "close"
	ActionModify    Action = "modify"
	ActionLiquidate Action = "liquidate"
)

// Relayer submits a settlement action and returns an opaque transaction id
// once accepted. Implementations may be asynchronous; the caller treats the
// returned id as a receipt, not a confirmation of finality.
type Relayer interface {
	Close(ctx context.Context, owner, symbol string, size, price int64) (txID string, err error)
	Modify(ctx context.Context, owner, symbol string, sizeDelta, price int64) (txID string, err error)
	Liquidate(ctx context.Context, owner, symbol string, markPrice int64) (txID string, err error)
}

// Mock synthesizes a transaction id for every call and never fails, for
// local development and tests.
type Mock struct{}

// NewMock constructs a Mock relayer.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) Close(_ context.Context, _, _ string, _, _ int64) (string, error) {
	return txID(), nil
}

func (m *Mock) Modify(_ context.Context, _, _ string, _, _ int64) (string, error) {
	return txID(), nil
}

func (m *Mock) Liquidate(_ context.Context, _, _ string, _ int64) (string, error) {
	return txID(), nil
}

func txID() string {
	return "relay_" + uuid.NewString()[:8]
}

// Retrying wraps a Relayer with exponential backoff on calls that fail with
// a retryable error kind, per enginerr.Retryable(RelayerUnavailable).
type Retrying struct {
	inner      Relayer
	maxRetries int
	baseDelay  time.Duration
}

// NewRetrying wraps inner with up to maxRetries retries after the first
// attempt (maxRetries+1 calls in all), doubling baseDelay between each.
func NewRetrying(inner Relayer, maxRetries int, baseDelay time.Duration) *Retrying {
	return &Retrying{inner: inner, maxRetries: maxRetries, baseDelay: baseDelay}
}

func (r *Retrying) withRetry(ctx context.Context, call func() (string, error)) (string, error) {
	var lastErr error
	delay := r.baseDelay
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		txID, err := call()
		if err == nil {
			return txID, nil
		}
		lastErr = err
		if !enginerr.Retryable(enginerr.KindOf(err)) {
			return "", err
		}
		if attempt == r.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", fmt.Errorf("relayer call failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

func (r *Retrying) Close(ctx context.Context, owner, symbol string, size, price int64) (string, error) {
	return r.withRetry(ctx, func() (string, error) { return r.inner.Close(ctx, owner, symbol, size, price) })
}

func (r *Retrying) Modify(ctx context.Context, owner, symbol string, sizeDelta, price int64) (string, error) {
	return r.withRetry(ctx, func() (string, error) { return r.inner.Modify(ctx, owner, symbol, sizeDelta, price) })
}

func (r *Retrying) Liquidate(ctx context.Context, owner, symbol string, markPrice int64) (string, error) {
	return r.withRetry(ctx, func() (string, error) { return r.inner.Liquidate(ctx, owner, symbol, markPrice) })
}
