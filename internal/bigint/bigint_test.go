package bigint

import "testing"

func TestArithmetic(t *testing.T) {
	a := FromInt64(7)
	b := FromInt64(3)

	if got := a.Add(b); got.Int64() != 10 {
		t.Fatalf("Add: expected 10, got %d", got.Int64())
	}
	if got := a.Sub(b); got.Int64() != 4 {
		t.Fatalf("Sub: expected 4, got %d", got.Int64())
	}
	if got := a.Mul(b); got.Int64() != 21 {
		t.Fatalf("Mul: expected 21, got %d", got.Int64())
	}
	if got := a.Quo(b); got.Int64() != 2 {
		t.Fatalf("Quo: expected 2, got %d", got.Int64())
	}
	if got := a.Rem(b); got.Int64() != 1 {
		t.Fatalf("Rem: expected 1, got %d", got.Int64())
	}
	if got := a.Neg(); got.Int64() != -7 {
		t.Fatalf("Neg: expected -7, got %d", got.Int64())
	}
	if got := a.Neg().Abs(); got.Int64() != 7 {
		t.Fatalf("Abs: expected 7, got %d", got.Int64())
	}
}

func TestComparisons(t *testing.T) {
	a, b := FromInt64(5), FromInt64(9)
	if !a.Less(b) || b.Less(a) {
		t.Fatal("Less: expected 5 < 9")
	}
	if !a.LessEq(a) {
		t.Fatal("LessEq: expected 5 <= 5")
	}
	if !b.Greater(a) {
		t.Fatal("Greater: expected 9 > 5")
	}
	if !b.GreaterEq(b) {
		t.Fatal("GreaterEq: expected 9 >= 9")
	}
	if !a.Equal(FromInt64(5)) {
		t.Fatal("Equal: expected 5 == 5")
	}
	if !Zero().IsZero() {
		t.Fatal("IsZero: expected Zero() to be zero")
	}
}

func TestShift(t *testing.T) {
	one := FromInt64(1)
	if got := one.Lsh(8); got.Int64() != 256 {
		t.Fatalf("Lsh: expected 256, got %d", got.Int64())
	}
	if got := FromInt64(256).Rsh(8); got.Int64() != 1 {
		t.Fatalf("Rsh: expected 1, got %d", got.Int64())
	}
}

func TestPow2(t *testing.T) {
	cases := []struct {
		n    uint
		want int64
	}{
		{8, 256},
		{16, 65536},
		{32, 4294967296},
	}
	for _, c := range cases {
		if got := Pow2(c.n).Int64(); got != c.want {
			t.Fatalf("Pow2(%d): expected %d, got %d", c.n, c.want, got)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	cases := []string{"0", "1", "-1", "123456789012345678901234567890", "-42"}
	for _, s := range cases {
		v, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if v.String() != s {
			t.Fatalf("Parse(%q).String() = %q", s, v.String())
		}
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("not-a-number"); err == nil {
		t.Fatal("expected error parsing invalid decimal string")
	}
}

func TestMarshalTextRoundTrip(t *testing.T) {
	orig := FromInt64(987654321)
	text, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var got BigInt
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if !got.Equal(orig) {
		t.Fatalf("round-trip mismatch: got %s, want %s", got, orig)
	}
}

func TestZeroValueInner(t *testing.T) {
	var b BigInt
	if !b.IsZero() {
		t.Fatal("expected the zero-value BigInt to behave as zero")
	}
	if b.Add(FromInt64(5)).Int64() != 5 {
		t.Fatal("expected zero-value BigInt to act as additive identity")
	}
}
