package models

import (
	"sort"

	"github.com/greybox/eclipser/internal/bigint"
)

// solveAux returns the pair of integers straddling the x where the
// fitted line crosses target. The candidate is computed with truncated
// integer division, then verified by re-deriving y; which side of the
// candidate joins the pair depends on the truncation direction (the
// sign of check_y - target) and the slope's sign.
func solveAux(anchorX, anchorY bigint.BigInt, slope bigint.Fraction, target bigint.BigInt) (SimpleLinearInequality, bool) {
	numer, denom := slope.Numerator(), slope.Denominator()
	one := bigint.FromInt64(1)
	candidate := anchorX.Add(target.Sub(anchorY).Mul(denom).Quo(numer))
	checkY := anchorY.Add(candidate.Sub(anchorX).Mul(numer).Quo(denom))
	switch {
	case checkY.Equal(target):
		return SimpleLinearInequality{Low: candidate.Sub(one), High: candidate.Add(one)}, true
	case checkY.Greater(target) && numer.Sign() > 0:
		return SimpleLinearInequality{Low: candidate.Sub(one), High: candidate}, true
	case checkY.Greater(target) && numer.Sign() < 0:
		return SimpleLinearInequality{Low: candidate, High: candidate.Add(one)}, true
	case checkY.Less(target) && numer.Sign() > 0:
		return SimpleLinearInequality{Low: candidate, High: candidate.Add(one)}, true
	case checkY.Less(target) && numer.Sign() < 0:
		return SimpleLinearInequality{Low: candidate.Sub(one), High: candidate}, true
	default:
		return SimpleLinearInequality{}, false
	}
}

// inequalityTargets returns the three target y values to probe per
// spec §4.2.4: the signed/unsigned extremes of the cmp_size operand,
// plus the currently observed target value itself.
func inequalityTargets(sign Sign, cmpSize int, targetY bigint.BigInt) [3]bigint.BigInt {
	bits := uint(8*cmpSize - 1)
	if sign == Signed {
		return [3]bigint.BigInt{bigint.Pow2(bits).Neg(), targetY, bigint.Pow2(bits)}
	}
	return [3]bigint.BigInt{bigint.FromInt64(0), targetY, bigint.Pow2(uint(8 * cmpSize))}
}

// SolveLinearInequality implements spec §4.2.4: fits the same common
// slope as the equation path, then produces a tight (exact-equation)
// bound when one exists and the loose straddling pairs from all three
// probed targets, sorted, deduped, and restricted to the chunk's
// representable range.
func SolveLinearInequality(samples [3]Sample, targetY bigint.BigInt, cmpSize, chunkSize int, sign Sign) Result {
	slope := FindCommonSlope(cmpSize, samples[0].X, samples[1].X, samples[2].X, samples[0].Y, samples[1].Y, samples[2].Y)
	if slope.Numerator().IsZero() {
		return NonLinear()
	}

	anchorX, anchorY := samples[0].X, samples[0].Y
	lowerBound := bigint.FromInt64(0)
	upperBound := bigint.Pow2(uint(8 * chunkSize)).Sub(bigint.FromInt64(1))

	var tight *Linearity
	if candidate, ok := solveForTarget(anchorX, anchorY, slope, targetY); ok {
		if candidate.GreaterEq(lowerBound) && candidate.LessEq(upperBound) {
			lin := Linearity{Slope: slope, X0: anchorX, Y0: anchorY, Target: targetY, CmpSize: cmpSize}
			tight = &lin
		}
	}

	targets := inequalityTargets(sign, cmpSize, targetY)
	var loose []SimpleLinearInequality
	for _, t := range targets {
		if p, ok := solveAux(anchorX, anchorY, slope, t); ok {
			loose = append(loose, p)
		}
	}
	sort.Slice(loose, func(i, j int) bool {
		if c := loose[i].Low.Cmp(loose[j].Low); c != 0 {
			return c < 0
		}
		return loose[i].High.Less(loose[j].High)
	})
	kept := loose[:0]
	for _, p := range loose {
		if len(kept) > 0 && kept[len(kept)-1].Low.Equal(p.Low) && kept[len(kept)-1].High.Equal(p.High) {
			continue
		}
		if p.Low.Less(lowerBound) || p.High.Greater(upperBound) {
			continue
		}
		kept = append(kept, p)
	}
	loose = kept

	if tight == nil && len(loose) == 0 {
		return Unsolvable()
	}

	return Result{
		Kind:  KindLinearInequality,
		Tight: tight,
		Loose: loose,
		Sign:  sign,
	}
}
