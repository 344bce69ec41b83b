package models

import "github.com/greybox/eclipser/internal/bigint"

// exactDiv returns num/den and true if den evenly divides num;
// (zero, false) otherwise. den must be non-zero.
func exactDiv(num, den bigint.BigInt) (bigint.BigInt, bool) {
	if num.Rem(den).IsZero() {
		return num.Quo(den), true
	}
	return bigint.BigInt{}, false
}

// solveForTarget inverts the fitted line y = y0 + slope*(x-x0) for the
// given target y value, returning the candidate x and whether it is an
// exact integer solution.
func solveForTarget(anchorX, anchorY bigint.BigInt, slope bigint.Fraction, target bigint.BigInt) (bigint.BigInt, bool) {
	numer, denom := slope.Numerator(), slope.Denominator()
	diffY := target.Sub(anchorY)
	step, ok := exactDiv(diffY.Mul(denom), numer)
	if !ok {
		return bigint.BigInt{}, false
	}
	candidate := anchorX.Add(step)

	// Forward verification, matching spec §4.2.3 literally: re-derive
	// the y delta from the candidate and require it reproduce target
	// exactly.
	checkDelta, ok := exactDiv(candidate.Sub(anchorX).Mul(numer), denom)
	if !ok || !checkDelta.Equal(diffY) {
		return bigint.BigInt{}, false
	}
	return candidate, true
}

// SolveLinearEquation implements spec §4.2.3. samples must already be
// sorted by X (x1<x2<x3) and fit a common slope (FindCommonSlope
// returned a nonzero-numerator fraction); targetY is the constant
// operand the branch actually compares against at runtime; chunkSize
// is the candidate byte-chunk width in {1,2,4,8}.
func SolveLinearEquation(samples [3]Sample, targetY bigint.BigInt, cmpSize, chunkSize int) Result {
	slope := FindCommonSlope(cmpSize, samples[0].X, samples[1].X, samples[2].X, samples[0].Y, samples[1].Y, samples[2].Y)
	if slope.Numerator().IsZero() {
		return NonLinear()
	}

	anchorX, anchorY := samples[0].X, samples[0].Y
	w := wrapModulus(cmpSize)
	targets := []bigint.BigInt{targetY, targetY.Add(w), targetY.Sub(w)}

	upperBound := bigint.Pow2(uint(8 * chunkSize)).Sub(bigint.FromInt64(1))
	var solutions []bigint.BigInt
	seen := make(map[string]bool)

	for _, t := range targets {
		candidate, ok := solveForTarget(anchorX, anchorY, slope, t)
		if !ok {
			continue
		}
		if candidate.Sign() < 0 || candidate.Greater(upperBound) {
			continue
		}
		key := candidate.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		solutions = append(solutions, candidate)
	}

	if len(solutions) == 0 {
		return Unsolvable()
	}

	return Result{
		Kind:      KindSolvable,
		ChunkSize: chunkSize,
		Linearity: Linearity{Slope: slope, X0: anchorX, Y0: anchorY, Target: targetY, CmpSize: cmpSize},
		Solutions: solutions,
	}
}
