package oracle

import (
	"context"
	"testing"

	"github.com/rtx-labs/posengine/internal/enginerr"
)

func TestMockPriceRoundTrip(t *testing.T) {
	m := NewMock()
	m.SetPrice("BTC", 50_000*Scale)

	p, err := m.Price(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != 50_000*Scale {
		t.Fatalf("price = %d, want %d", p, 50_000*Scale)
	}
}

func TestMockPriceUnsetSymbol(t *testing.T) {
	m := NewMock()
	_, err := m.Price(context.Background(), "ETH")
	if enginerr.KindOf(err) != enginerr.OracleUnavailable {
		t.Fatalf("err = %v, want OracleUnavailable", err)
	}
}

func TestClampRejectsImplausibleMove(t *testing.T) {
	if _, err := Clamp(50_000*Scale, 10_000*Scale); enginerr.KindOf(err) != enginerr.OracleUnavailable {
		t.Fatalf("err = %v, want OracleUnavailable on a >50%% move", err)
	}
}

func TestClampAcceptsNormalMove(t *testing.T) {
	got, err := Clamp(50_000*Scale, 51_000*Scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 51_000*Scale {
		t.Fatalf("got = %d, want %d", got, 51_000*Scale)
	}
}

func TestClampAllowsFirstQuoteUnconditionally(t *testing.T) {
	got, err := Clamp(0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Fatalf("got = %d, want 1", got)
	}
}
