package models

import "github.com/greybox/eclipser/internal/bigint"

// DetectTendency scans pairwise over samples (already sorted by X) and
// reports Incr if every consecutive pair strictly increases (tolerating,
// in signed mode, a single wrap from positive to negative), Decr
// symmetrically, or Undetermined if neither holds.
func DetectTendency(samples []Sample, signed bool) Tendency {
	if len(samples) < 2 {
		return Undetermined
	}

	incrOK, decrOK := true, true
	wrapUsedIncr, wrapUsedDecr := false, false

	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1].Y, samples[i].Y

		switch {
		case cur.Greater(prev):
			// Consistent with Incr. Consistent with Decr only as a
			// single tolerated wrap from negative back up to positive.
			if signed && !wrapUsedDecr && prev.Sign() < 0 && cur.Sign() >= 0 {
				wrapUsedDecr = true
			} else {
				decrOK = false
			}
		case cur.Less(prev):
			// Consistent with Decr. Consistent with Incr only as a
			// single tolerated wrap from positive down to negative.
			if signed && !wrapUsedIncr && prev.Sign() >= 0 && cur.Sign() < 0 {
				wrapUsedIncr = true
			} else {
				incrOK = false
			}
		default:
			incrOK = false
			decrOK = false
		}
	}

	switch {
	case incrOK:
		return Incr
	case decrOK:
		return Decr
	default:
		return Undetermined
	}
}

// NewMonotonicityState locates the (lower_x, upper_x) interval among
// the samples within which targetY lies strictly between lower_y and
// upper_y under the detected tendency, returning false if no such
// straddling pair exists.
func NewMonotonicityState(samples []Sample, targetY bigint.BigInt, tendency Tendency, byteLen int) (MonotonicityState, bool) {
	for i := 1; i < len(samples); i++ {
		lo, hi := samples[i-1], samples[i]
		var straddles bool
		switch tendency {
		case Incr:
			straddles = lo.Y.Less(targetY) && targetY.Less(hi.Y)
		case Decr:
			straddles = lo.Y.Greater(targetY) && targetY.Greater(hi.Y)
		default:
			return MonotonicityState{}, false
		}
		if straddles {
			ly, hy := lo.Y, hi.Y
			return MonotonicityState{
				LowerX: lo.X, LowerY: &ly,
				UpperX: hi.X, UpperY: &hy,
				TargetY: targetY, Tendency: tendency, ByteLen: byteLen,
			}, true
		}
	}
	return MonotonicityState{}, false
}

// Update feeds one binary-search observation (x,y) back into the
// monotonicity state, narrowing the interval: if y still straddles the
// target alongside the existing opposite bound, the observation
// replaces whichever bound is now closer to the target; the interval
// always strictly shrinks unless AdjustByteLen fires, which instead
// grows byte_len by exactly one (spec §8 invariant).
func Update(state MonotonicityState, x, y bigint.BigInt) MonotonicityState {
	switch state.Tendency {
	case Incr:
		if y.Less(state.TargetY) {
			state.LowerX, state.LowerY = x, ref(y)
		} else {
			state.UpperX, state.UpperY = x, ref(y)
		}
	case Decr:
		// Mirrors the Incr split: only a y strictly below the target
		// moves the upper bound; y == target_y pins the lower bound.
		if y.Less(state.TargetY) {
			state.UpperX, state.UpperY = x, ref(y)
		} else {
			state.LowerX, state.LowerY = x, ref(y)
		}
	}

	if state.UpperX.Sub(state.LowerX).LessEq(bigint.FromInt64(1)) {
		state = adjustByteLen(state)
	}
	return state
}

// adjustByteLen implements spec §4.2.5's interval refinement: shift
// each bound left 8 bits (the upper bound also gains 0xff), increase
// byte_len by one, and reset lower_y/upper_y so the next observation
// re-establishes them.
func adjustByteLen(state MonotonicityState) MonotonicityState {
	state.LowerX = state.LowerX.Lsh(8)
	state.UpperX = state.UpperX.Lsh(8).Add(bigint.FromInt64(0xff))
	state.ByteLen++
	state.LowerY = nil
	state.UpperY = nil
	return state
}

func ref(b bigint.BigInt) *bigint.BigInt { return &b }

// Midpoint returns the next probe point for the binary search: the
// integer midpoint of [lower_x, upper_x]. Note that Update refines the
// interval via adjustByteLen the moment its width reaches one unit, so
// a caller watching for the boundary to be pinned observes ByteLen
// growing, never a width-1 interval.
func (s MonotonicityState) Midpoint() bigint.BigInt {
	return s.LowerX.Add(s.UpperX.Sub(s.LowerX).Quo(bigint.FromInt64(2)))
}
