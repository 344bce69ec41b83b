package bigint

// Fraction is an exact rational numerator/denominator over BigInt,
// auto-reducing via gcd on every construction so equality between two
// Fractions is a plain field comparison (Equal) with no cross-multiply.
type Fraction struct {
	num BigInt
	den BigInt // always > 0 after NewFraction
}

// NewFraction builds num/den, reducing by gcd(|num|,|den|) and
// normalizing the sign onto the numerator so the denominator is always
// positive. It panics on a zero denominator: every call site in the
// modeler (internal/models) divides by an already range-checked delta.
func NewFraction(num, den BigInt) Fraction {
	if den.IsZero() {
		panic("bigint: zero denominator in NewFraction")
	}
	if den.Sign() < 0 {
		num, den = num.Neg(), den.Neg()
	}
	g := gcd(num.Abs(), den)
	if !g.IsZero() && !g.Equal(FromInt64(1)) {
		num = num.Quo(g)
		den = den.Quo(g)
	}
	return Fraction{num: num, den: den}
}

// FractionFromInt lifts a whole BigInt into a Fraction n/1.
func FractionFromInt(n BigInt) Fraction {
	return Fraction{num: n, den: FromInt64(1)}
}

func gcd(a, b BigInt) BigInt {
	for !b.IsZero() {
		a, b = b, a.Rem(b)
	}
	if a.Sign() < 0 {
		return a.Neg()
	}
	return a
}

// Numerator returns the reduced numerator.
func (f Fraction) Numerator() BigInt { return f.num }

// Denominator returns the reduced denominator (always positive).
func (f Fraction) Denominator() BigInt { return f.den }

// IsZero reports whether the fraction equals zero.
func (f Fraction) IsZero() bool { return f.num.IsZero() }

// Add returns f + other.
func (f Fraction) Add(other Fraction) Fraction {
	return NewFraction(
		f.num.Mul(other.den).Add(other.num.Mul(f.den)),
		f.den.Mul(other.den),
	)
}

// Sub returns f - other.
func (f Fraction) Sub(other Fraction) Fraction {
	return NewFraction(
		f.num.Mul(other.den).Sub(other.num.Mul(f.den)),
		f.den.Mul(other.den),
	)
}

// Mul returns f * other.
func (f Fraction) Mul(other Fraction) Fraction {
	return NewFraction(f.num.Mul(other.num), f.den.Mul(other.den))
}

// Quo returns f / other.
func (f Fraction) Quo(other Fraction) Fraction {
	return NewFraction(f.num.Mul(other.den), f.den.Mul(other.num))
}

// Neg returns -f.
func (f Fraction) Neg() Fraction { return Fraction{num: f.num.Neg(), den: f.den} }

// Equal reports whether f == other; valid because both are always kept
// in reduced form with a positive denominator.
func (f Fraction) Equal(other Fraction) bool {
	return f.num.Equal(other.num) && f.den.Equal(other.den)
}

// Cmp returns -1, 0, +1 as f is <, ==, > other.
func (f Fraction) Cmp(other Fraction) int {
	lhs := f.num.Mul(other.den)
	rhs := other.num.Mul(f.den)
	return lhs.Cmp(rhs)
}

// IsInteger reports whether the fraction reduces to a whole number.
func (f Fraction) IsInteger() bool { return f.den.Equal(FromInt64(1)) }

// String renders "num/den" (or just "num" when the denominator is 1).
func (f Fraction) String() string {
	if f.IsInteger() {
		return f.num.String()
	}
	return f.num.String() + "/" + f.den.String()
}
