package decimalx

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestAddSubRoundTrip(t *testing.T) {
	a := d("10.333333333333333333")
	b := d("5.666666666666666667")
	sum := Add(a, b, 18)

	back, err := Sub(sum, b, 18)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if !back.Equal(a.Truncate(18)) {
		t.Errorf("Sub(Add(a,b),b) = %s, want %s", back, a)
	}
}

func TestSubUnderflow(t *testing.T) {
	_, err := Sub(d("1"), d("2"), 0)
	if err == nil {
		t.Fatal("expected underflow error")
	}
}

func TestMulDivRoundTrip(t *testing.T) {
	x := d("7")
	e := d("2")
	product := Mul(x, e, 0)
	quotient := Div(product, e, 0)
	if !quotient.Equal(x.Truncate(0)) {
		t.Errorf("Div(Mul(x,e),e) = %s, want %s", quotient, x)
	}
}

func TestTruncationIsRoundDown(t *testing.T) {
	got := Div(d("10"), d("3"), 2)
	want := d("3.33")
	if !got.Equal(want) {
		t.Errorf("Div(10,3,2) = %s, want %s", got, want)
	}
}

func TestZeroAtAnyPrecision(t *testing.T) {
	for _, dec := range []int32{0, 8, 18} {
		z := Zero(dec)
		if !z.IsZero() {
			t.Errorf("Zero(%d) = %s, want 0", dec, z)
		}
	}
}
