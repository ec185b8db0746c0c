package fp

import "testing"

func TestAddUOverflow(t *testing.T) {
	_, err := AddU(^uint64(0), 1)
	if err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestSubUUnderflow(t *testing.T) {
	_, err := SubU(1, 2)
	if err == nil {
		t.Fatal("expected underflow error")
	}
}

func TestDivUByZero(t *testing.T) {
	_, err := DivU(10, 0)
	if err == nil {
		t.Fatal("expected division by zero error")
	}
}

func TestMulUBasic(t *testing.T) {
	got, err := MulU(3, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 12 {
		t.Fatalf("got %d, want 12", got)
	}
}

func TestMulWideNarrowsOverflow(t *testing.T) {
	w := MulWide(1<<62, 1<<62)
	if _, err := w.ToI64(); err == nil {
		t.Fatal("expected overflow narrowing a value far beyond int64 range")
	}
}

func TestMulWideRoundTrip(t *testing.T) {
	w := MulWide(50_000*Scale, 1*Scale)
	got, err := w.DivI64(Scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := got.ToI64()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 50_000*Scale {
		t.Fatalf("got %d, want %d", v, 50_000*Scale)
	}
}

func TestDivITruncatesTowardZero(t *testing.T) {
	got, err := DivI(-7, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != -3 {
		t.Fatalf("got %d, want -3", got)
	}
}
