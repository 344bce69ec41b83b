// Package concolic implements the grey-box concolic round (spec §4.4):
// sampling try-values for the seed's current cursor byte, fetching
// branch traces, fitting a model per candidate branch, solving for
// byte-chunks, executing the candidates, and classifying/relocating
// the survivors.
package concolic

import (
	"context"
	"math/rand"
	"sort"

	"github.com/greybox/eclipser/internal/bigint"
	"github.com/greybox/eclipser/internal/branch"
	"github.com/greybox/eclipser/internal/byteval"
	"github.com/greybox/eclipser/internal/dict"
	"github.com/greybox/eclipser/internal/executor"
	"github.com/greybox/eclipser/internal/models"
	"github.com/greybox/eclipser/internal/queue"
	"github.com/greybox/eclipser/internal/seed"
	"github.com/greybox/eclipser/internal/solver"
)

// minSamplesPerPoint is the spec §4.4 step 3 threshold: a BranchPoint
// needs at least 3 samples across the N_spawn runs to fit a model.
const minSamplesPerPoint = 3

// monotonicityCutoff bounds how many binary-search probes step 4c will
// spend on one candidate branch before giving up, so a branch that
// never collapses its interval can't stall a round.
const monotonicityCutoff = 8

// Round runs one grey-box concolic round against a popped seed.
type Round struct {
	Exec   executor.Executor
	Rand   *rand.Rand
	NSpawn int
	NSolve int
	// Dict, when non-nil, accumulates every solved byte-chunk as a
	// token for the dashboard's dictionary view.
	Dict *dict.Dict
}

// Candidate is a follow-up seed the round produced, classified and
// prioritized, ready for the caller (the main fuzz loop) to enqueue
// or persist as a test-case. A non-Normal Status marks a crash or
// timeout: those are saved but never enqueued for further fuzzing, and
// their Priority field is meaningless.
type Candidate struct {
	Seed     seed.Seed
	Gain     queue.CoverageGain
	Priority queue.Priority
	Status   executor.Status
}

// Outcome is everything one round produced: the classified candidates,
// the number of target executions spent (sampling runs, candidate
// evaluations, and monotonic binary-search probes all count), and, if
// the original seed's cursor could still advance, the re-enqueue seed
// from step 8.
type Outcome struct {
	Candidates []Candidate
	Execs      int
	Requeue    *seed.Seed
}

// Run executes spec §4.4 steps 1-8 against s, whose cursor must
// already point at an unfixed byte.
func (r *Round) Run(ctx context.Context, s seed.Seed) (Outcome, error) {
	dir := s.CursorDir
	neighborBytes, err := s.QueryNeighborBytes(dir)
	if err != nil {
		return Outcome{}, err
	}

	// Step 1: sample N_spawn try-values for the current byte.
	tryValues := r.sampleTryValues(s.Source)

	var out Outcome

	// Step 2: fetch branch traces for each sampled value ("record all"
	// branch mode: BranchAddr/Idx left at 0,0).
	traces := make([]branch.Trace, len(tryValues))
	for i, tv := range tryValues {
		cand := s.UpdateCurByte(byteval.NewSampled(tv))
		res, err := r.Exec.Run(ctx, executor.RunOptions{Input: cand.Concretize(), Mode: executor.ModeBranch, MeasureCov: true})
		if err != nil {
			return Outcome{}, err
		}
		out.Execs++
		traces[i] = res.Trace
	}

	// Step 3: group by BranchPoint, keeping points with >= 3 samples,
	// in deterministic branch-iteration order.
	candidates := groupCandidates(tryValues, traces)

	solved := 0
	for _, cb := range candidates {
		if solved >= r.NSolve {
			break
		}
		fixups, err := r.solveBranch(ctx, s, dir, neighborBytes, cb, &out.Execs)
		if err != nil {
			return Outcome{}, err
		}
		if len(fixups) == 0 {
			continue
		}
		solved++

		// Step 5+6: execute each candidate, classify, evaluate. Crashes
		// and timeouts are reported for saving but never relocated or
		// re-enqueued.
		for _, fixed := range fixups {
			res, err := r.Exec.Run(ctx, executor.RunOptions{Input: fixed.Concretize(), Mode: executor.ModeCoverage})
			if err != nil {
				return Outcome{}, err
			}
			out.Execs++
			if res.Status == executor.StatusCrash {
				// Confirm on the bare binary before reporting: crashes
				// seen only under the emulator are tracer artifacts.
				nat, err := r.Exec.Run(ctx, executor.RunOptions{Input: fixed.Concretize(), Mode: executor.ModeNative})
				if err != nil {
					return Outcome{}, err
				}
				out.Execs++
				if nat.Status != executor.StatusCrash {
					continue
				}
			}
			if res.Status != executor.StatusNormal {
				out.Candidates = append(out.Candidates, Candidate{Seed: fixed, Gain: res.Gain, Status: res.Status})
				continue
			}
			priority, ok := queue.PriorityFor(res.Gain)
			if !ok {
				continue
			}
			out.Candidates = append(out.Candidates, Candidate{Seed: fixed, Gain: res.Gain, Priority: priority})

			// Step 7: relocate the cursor past the just-solved byte.
			for _, relocated := range fixed.RelocateCursor() {
				out.Candidates = append(out.Candidates, Candidate{Seed: relocated, Gain: res.Gain, Priority: priority})
			}
		}
	}

	// Step 8: try to advance the original seed's cursor and report it
	// for re-enqueue at its current priority.
	if advanced, ok := s.ProceedCursor(); ok {
		out.Requeue = &advanced
	}

	return out, nil
}

// sampleTryValues draws NSpawn uniform samples from src's legal byte
// range (spec §4.4 step 1).
func (r *Round) sampleTryValues(src byteval.InputSource) []byte {
	lo, hi := src.ByteRange()
	span := int(hi) - int(lo) + 1
	out := make([]byte, r.NSpawn)
	for i := range out {
		out[i] = lo + byte(r.Rand.Intn(span))
	}
	return out
}

// trialObs is one run's observation at a given BranchPoint.
type trialObs struct {
	tryValue byte
	info     branch.Info
}

// candidateBranch is a BranchPoint with enough cross-run samples to
// attempt modeling.
type candidateBranch struct {
	point  branch.Point
	trials []trialObs
}

// groupCandidates implements spec §4.4 step 3.
func groupCandidates(tryValues []byte, traces []branch.Trace) []candidateBranch {
	byPoint := make(map[branch.Point][]trialObs)
	for i, tr := range traces {
		for pt, info := range branch.GroupByPoint(tr) {
			byPoint[pt] = append(byPoint[pt], trialObs{tryValue: tryValues[i], info: info})
		}
	}

	out := make([]candidateBranch, 0, len(byPoint))
	for pt, trials := range byPoint {
		if len(trials) >= minSamplesPerPoint {
			out = append(out, candidateBranch{point: pt, trials: trials})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].point.Addr != out[j].point.Addr {
			return out[i].point.Addr < out[j].point.Addr
		}
		return out[i].point.Idx < out[j].point.Idx
	})
	return out
}

// targetOperand identifies, among operand1/operand2, the one that
// stays identical across every trial (the branch's constant target)
// and an accessor for the one that varies (the modeled y). Spec
// §4.2.3: "target y is the constant operand of the branch (whichever
// of operand1/operand2 is equal across the three samples)".
func targetOperand(trials []trialObs) (targetY uint64, varying func(branch.Info) uint64, ok bool) {
	const1, const2 := true, true
	for i := 1; i < len(trials); i++ {
		if trials[i].info.Operand1 != trials[0].info.Operand1 {
			const1 = false
		}
		if trials[i].info.Operand2 != trials[0].info.Operand2 {
			const2 = false
		}
	}
	switch {
	case const1 && !const2:
		return trials[0].info.Operand1, func(in branch.Info) uint64 { return in.Operand2 }, true
	case const2 && !const1:
		return trials[0].info.Operand2, func(in branch.Info) uint64 { return in.Operand1 }, true
	default:
		return 0, nil, false
	}
}

// solveBranch fits a model for one candidate branch and returns the
// fixed-up seed copies its solutions produce (spec §4.4 step 4).
func (r *Round) solveBranch(ctx context.Context, base seed.Seed, dir seed.Direction, neighborBytes []byte, cb candidateBranch, execs *int) ([]seed.Seed, error) {
	trials := cb.trials[:minSamplesPerPoint]
	targetY, varying, ok := targetOperand(trials)
	if !ok {
		return nil, nil
	}
	cmpSize := trials[0].info.OperandSize

	solverTrials := [3]solver.Trial{}
	for i, tr := range trials {
		solverTrials[i] = solver.Trial{TryValue: tr.tryValue, Y: bigint.FromUint64(varying(tr.info))}
	}

	var res models.Result
	switch trials[0].info.BranchType {
	case branch.Equality:
		res = solver.SolveEquation(dir, solverTrials, neighborBytes, bigint.FromUint64(targetY), cmpSize)
	case branch.SignedSize:
		res = solver.SolveInequality(dir, solverTrials, neighborBytes, bigint.FromUint64(targetY), cmpSize, models.Signed)
	case branch.UnsignedSize:
		res = solver.SolveInequality(dir, solverTrials, neighborBytes, bigint.FromUint64(targetY), cmpSize, models.Unsigned)
	default:
		return nil, nil
	}

	switch res.Kind {
	case models.KindSolvable:
		return r.applySolutions(base, dir, res), nil
	case models.KindLinearInequality:
		if seeds, ok := applyInequality(base, dir, res); ok {
			return seeds, nil
		}
	}

	// Fall back to monotonic binary search (spec §4.4 step 4c): the
	// candidate branch may still respond monotonically to the tried
	// byte even though a fixed-width linear model didn't pin it down.
	return r.monotonicSearch(ctx, base, dir, cb, targetY, varying, execs)
}

// applySolutions writes each KindSolvable solution into a copy of base
// via FixCurBytes, recording the chunk as a dictionary token.
func (r *Round) applySolutions(base seed.Seed, dir seed.Direction, res models.Result) []seed.Seed {
	var out []seed.Seed
	for _, x := range res.Solutions {
		bs := solver.BigIntToBytes(res.Endian, res.ChunkSize, x)
		if fixed, err := base.FixCurBytes(dir, bs); err == nil {
			out = append(out, fixed)
			if r.Dict != nil {
				r.Dict.Add(bs)
			}
		}
	}
	return out
}

// applyInequality probes both sides of every loose split-point pair
// via FixCurBytes, deduping the concrete values (adjacent pairs share
// a boundary integer). The tight bound only records the fitted line
// (Linearity), not a concrete x — recovering one would mean re-solving
// the same equation the split points already straddle, so only Loose
// is used here.
func applyInequality(base seed.Seed, dir seed.Direction, res models.Result) ([]seed.Seed, bool) {
	if len(res.Loose) == 0 {
		return nil, false
	}
	seen := make(map[string]bool, 2*len(res.Loose))
	var out []seed.Seed
	for _, ineq := range res.Loose {
		for _, x := range []bigint.BigInt{ineq.Low, ineq.High} {
			key := x.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			bs := solver.BigIntToBytes(res.Endian, res.ChunkSize, x)
			if fixed, err := base.FixCurBytes(dir, bs); err == nil {
				out = append(out, fixed)
			}
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// monotonicSearch implements spec §4.4 step 4c: binary-search the
// interval by executing at its midpoint and feeding the observation
// back into Update, iterating until the boundary is pinned or the
// probe budget runs out. Update refines the interval into the next
// byte (byte_len 2) the moment its width collapses to one unit, so
// "pinned" is observed as byte_len growing past 1; the solved byte is
// then the pre-refinement lower bound, recovered by shifting back
// right 8 bits. The search is scoped to a single byte and does not
// continue into the refined interval.
func (r *Round) monotonicSearch(ctx context.Context, base seed.Seed, dir seed.Direction, cb candidateBranch, targetY uint64, varying func(branch.Info) uint64, execs *int) ([]seed.Seed, error) {
	// Duplicate try-values carry no extra slope information and would
	// spuriously break DetectTendency's strict pairwise ordering, so
	// keep only the first observation per distinct byte.
	seen := make(map[byte]bool, len(cb.trials))
	samples := make([]models.Sample, 0, len(cb.trials))
	for _, tr := range cb.trials {
		if seen[tr.tryValue] {
			continue
		}
		seen[tr.tryValue] = true
		samples = append(samples, models.Sample{X: bigint.FromInt64(int64(tr.tryValue)), Y: bigint.FromUint64(varying(tr.info))})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].X.Less(samples[j].X) })

	tendency := models.DetectTendency(samples, true)
	if tendency == models.Undetermined {
		return nil, nil
	}
	state, ok := models.NewMonotonicityState(samples, bigint.FromUint64(targetY), tendency, 1)
	if !ok {
		return nil, nil
	}

	probes := 0
	for state.ByteLen == 1 && probes < monotonicityCutoff {
		probes++
		mid := state.Midpoint()
		if mid.Sign() < 0 || mid.Greater(bigint.FromInt64(255)) {
			break
		}
		cand := base.UpdateCurByte(byteval.NewSampled(byte(mid.Int64())))
		res, err := r.Exec.Run(ctx, executor.RunOptions{Input: cand.Concretize(), Mode: executor.ModeBranch, BranchAddr: cb.point.Addr, BranchIdx: cb.point.Idx})
		if err != nil {
			return nil, err
		}
		*execs++
		info, found := branch.GroupByPoint(res.Trace)[cb.point]
		if !found {
			break
		}
		state = models.Update(state, mid, bigint.FromUint64(varying(info)))
	}

	if state.ByteLen == 1 {
		return nil, nil
	}
	sol := byte(state.LowerX.Rsh(8).Int64())
	fixed, err := base.FixCurBytes(dir, []byte{sol})
	if err != nil {
		return nil, nil
	}
	if r.Dict != nil {
		r.Dict.Add([]byte{sol})
	}
	return []seed.Seed{fixed}, nil
}

