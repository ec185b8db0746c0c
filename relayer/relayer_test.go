package relayer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rtx-labs/posengine/internal/enginerr"
)

func TestMockClosePrefixesTxID(t *testing.T) {
	m := NewMock()
	id, err := m.Close(context.Background(), "alice", "BTC", 1, 50_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(id, "relay_") {
		t.Fatalf("txID = %q, want relay_ prefix", id)
	}
}

type flaky struct {
	failures int
	calls    int
}

func (f *flaky) Close(context.Context, string, string, int64, int64) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", enginerr.New(enginerr.RelayerUnavailable, "simulated outage")
	}
	return "ok", nil
}
func (f *flaky) Modify(context.Context, string, string, int64, int64) (string, error) {
	return "ok", nil
}
func (f *flaky) Liquidate(context.Context, string, string, int64) (string, error) { return "ok", nil }

func TestRetryingSucceedsAfterTransientFailures(t *testing.T) {
	inner := &flaky{failures: 2}
	r := NewRetrying(inner, 3, time.Millisecond)
	id, err := r.Close(context.Background(), "alice", "BTC", 1, 50_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "ok" {
		t.Fatalf("id = %q, want ok", id)
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryingGivesUpAfterMaxRetries(t *testing.T) {
	inner := &flaky{failures: 10}
	r := NewRetrying(inner, 1, time.Millisecond)
	_, err := r.Close(context.Background(), "alice", "BTC", 1, 50_000)
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
}

type nonRetryable struct{ flaky }

func (f *nonRetryable) Close(context.Context, string, string, int64, int64) (string, error) {
	return "", enginerr.New(enginerr.InvalidSize, "not a relayer problem")
}

func TestRetryingDoesNotRetryNonRetryableErrors(t *testing.T) {
	inner := &nonRetryable{}
	r := NewRetrying(inner, 5, time.Millisecond)
	_, err := r.Close(context.Background(), "alice", "BTC", 1, 50_000)
	if enginerr.KindOf(err) != enginerr.InvalidSize {
		t.Fatalf("err = %v, want InvalidSize surfaced immediately", err)
	}
}
