package models

import (
	"fmt"

	"github.com/greybox/eclipser/internal/bigint"
)

// wrapModulus returns the modulus 2^(8*cmpSize) that an operand of
// cmpSize bytes wraps around at.
func wrapModulus(cmpSize int) bigint.BigInt {
	return bigint.Pow2(uint(8 * cmpSize))
}

// CalcSlope returns (y2-y1)/(x2-x1) as an exact Fraction.
func CalcSlope(x1, x2, y1, y2 bigint.BigInt) bigint.Fraction {
	return bigint.NewFraction(y2.Sub(y1), x2.Sub(x1))
}

// FindCommonSlope fits a single line through three samples, handling
// wrap-around at 2^(8*cmpSize) per spec §4.2.2. It returns the zero
// fraction (numerator 0) when no line — direct or wrap-repaired —
// explains the samples; the caller treats that as NonLinear.
//
// Panics (Unreachable, per spec §7) if the caller's precondition
// x1<x2<x3 does not hold: every call site sorts samples by x before
// invoking this.
func FindCommonSlope(cmpSize int, x1, x2, x3, y1, y2, y3 bigint.BigInt) bigint.Fraction {
	if !x1.Less(x2) || !x2.Less(x3) {
		panic(fmt.Sprintf("models: FindCommonSlope precondition violated: x1=%s x2=%s x3=%s", x1, x2, x3))
	}

	slope12 := CalcSlope(x1, x2, y1, y2)
	slope23 := CalcSlope(x2, x3, y2, y3)
	if slope12.Equal(slope23) {
		return slope12
	}

	w := wrapModulus(cmpSize)

	// Case (a): a single downward wrap between sample 2 and 3.
	if y1.Less(y2) && y3.Less(y1) {
		if CalcSlope(x2, x3, y2, y3.Add(w)).Equal(slope12) {
			return slope12
		}
	}
	// Case (b): a single downward wrap between sample 1 and 2.
	if y2.Greater(y3) && y1.Less(y3) {
		if CalcSlope(x1, x2, y1.Add(w), y2).Equal(slope23) {
			return slope23
		}
	}
	// Case (c): a single upward wrap between sample 2 and 3.
	if y1.Greater(y2) && y3.Greater(y1) {
		if CalcSlope(x2, x3, y2, y3.Sub(w)).Equal(slope12) {
			return slope12
		}
	}
	// Case (d): a single upward wrap between sample 1 and 2.
	if y2.Less(y3) && y1.Greater(y3) {
		if CalcSlope(x1, x2, y1.Sub(w), y2).Equal(slope23) {
			return slope23
		}
	}

	return bigint.NewFraction(bigint.FromInt64(0), bigint.FromInt64(1))
}
