// Package bigint provides the arbitrary-precision integer and exact
// rational types the branch modeler and solver (see internal/models,
// internal/solver) need for slope inference and target-value arithmetic.
//
// Rather than hand-rolling digit arithmetic, BigInt wraps math/big.Int:
// no third-party arbitrary-precision library appears anywhere in the
// retrieval pack, and math/big already gives exact +,-,*,/,%, shift,
// comparison, and base-10 parse/format — reimplementing that by hand
// would only be a worse copy of the standard library. See DESIGN.md.
package bigint

import (
	"fmt"
	"math/big"
)

// BigInt is an arbitrary-precision signed integer.
type BigInt struct {
	v *big.Int
}

// Zero is the additive identity. Always use Zero() or FromInt64(0)
// rather than the zero value of BigInt, whose inner pointer is nil.
func Zero() BigInt { return BigInt{v: big.NewInt(0)} }

// FromInt64 constructs a BigInt from a signed 64-bit integer.
func FromInt64(n int64) BigInt { return BigInt{v: big.NewInt(n)} }

// FromUint64 constructs a BigInt from an unsigned 64-bit integer.
func FromUint64(n uint64) BigInt { return BigInt{v: new(big.Int).SetUint64(n)} }

// Parse reads a base-10 decimal string, accepting an optional leading
// sign.
func Parse(s string) (BigInt, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return BigInt{}, fmt.Errorf("bigint: invalid decimal string %q", s)
	}
	return BigInt{v: v}, nil
}

func (b BigInt) inner() *big.Int {
	if b.v == nil {
		return big.NewInt(0)
	}
	return b.v
}

// String renders the value in base 10.
func (b BigInt) String() string { return b.inner().String() }

// Add returns b + other.
func (b BigInt) Add(other BigInt) BigInt {
	return BigInt{v: new(big.Int).Add(b.inner(), other.inner())}
}

// Sub returns b - other.
func (b BigInt) Sub(other BigInt) BigInt {
	return BigInt{v: new(big.Int).Sub(b.inner(), other.inner())}
}

// Mul returns b * other.
func (b BigInt) Mul(other BigInt) BigInt {
	return BigInt{v: new(big.Int).Mul(b.inner(), other.inner())}
}

// Quo returns truncated (toward-zero) integer division b / other. It
// panics if other is zero, matching math/big's contract; callers in
// this engine never divide by a runtime-zero divisor without checking
// first.
func (b BigInt) Quo(other BigInt) BigInt {
	return BigInt{v: new(big.Int).Quo(b.inner(), other.inner())}
}

// Rem returns the truncated remainder of b / other.
func (b BigInt) Rem(other BigInt) BigInt {
	return BigInt{v: new(big.Int).Rem(b.inner(), other.inner())}
}

// Neg returns -b.
func (b BigInt) Neg() BigInt { return BigInt{v: new(big.Int).Neg(b.inner())} }

// Abs returns |b|.
func (b BigInt) Abs() BigInt { return BigInt{v: new(big.Int).Abs(b.inner())} }

// Lsh returns b << n.
func (b BigInt) Lsh(n uint) BigInt { return BigInt{v: new(big.Int).Lsh(b.inner(), n)} }

// Rsh returns b >> n (arithmetic shift).
func (b BigInt) Rsh(n uint) BigInt { return BigInt{v: new(big.Int).Rsh(b.inner(), n)} }

// Cmp returns -1, 0, or +1 as b is <, ==, or > other.
func (b BigInt) Cmp(other BigInt) int { return b.inner().Cmp(other.inner()) }

// Sign returns -1, 0, or +1 as b is negative, zero, or positive.
func (b BigInt) Sign() int { return b.inner().Sign() }

// IsZero reports whether b == 0.
func (b BigInt) IsZero() bool { return b.Sign() == 0 }

// Equal reports whether b == other.
func (b BigInt) Equal(other BigInt) bool { return b.Cmp(other) == 0 }

// Less reports whether b < other.
func (b BigInt) Less(other BigInt) bool { return b.Cmp(other) < 0 }

// LessEq reports whether b <= other.
func (b BigInt) LessEq(other BigInt) bool { return b.Cmp(other) <= 0 }

// Greater reports whether b > other.
func (b BigInt) Greater(other BigInt) bool { return b.Cmp(other) > 0 }

// GreaterEq reports whether b >= other.
func (b BigInt) GreaterEq(other BigInt) bool { return b.Cmp(other) >= 0 }

// Int64 returns b as an int64, truncating if it does not fit. Callers
// only use this once a value has already been range-checked against
// a known chunk size.
func (b BigInt) Int64() int64 { return b.inner().Int64() }

// Uint64 returns b as a uint64, truncating if it does not fit.
func (b BigInt) Uint64() uint64 { return b.inner().Uint64() }

// MarshalText implements encoding.TextMarshaler so BigInt round-trips
// through JSON as a decimal string (branch-trace try_value/distance
// fields are always big-endian decimal per the wire protocol, see
// internal/branch).
func (b BigInt) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BigInt) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Pow2 returns 2^n as a BigInt; used throughout the modeler for the
// wrap modulus W = 2^cmp_size*8 and chunk-size range bounds.
func Pow2(n uint) BigInt {
	return BigInt{v: new(big.Int).Lsh(big.NewInt(1), n)}
}
