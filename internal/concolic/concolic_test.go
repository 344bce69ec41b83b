package concolic

import (
	"context"
	"math/rand"
	"testing"

	"github.com/greybox/eclipser/internal/branch"
	"github.com/greybox/eclipser/internal/byteval"
	"github.com/greybox/eclipser/internal/executor"
	"github.com/greybox/eclipser/internal/queue"
	"github.com/greybox/eclipser/internal/seed"
)

// fakeExecutor lets tests drive the round against a synthetic target
// without exec'ing a real binary.
type fakeExecutor struct {
	run func(opts executor.RunOptions) executor.Result
}

func (f *fakeExecutor) Run(_ context.Context, opts executor.RunOptions) (executor.Result, error) {
	return f.run(opts), nil
}

func mustSeed(t *testing.T, b byte) seed.Seed {
	t.Helper()
	s, err := seed.New([]byte{b}, byteval.StdInput())
	if err != nil {
		t.Fatalf("seed.New: %v", err)
	}
	return s
}

func TestRunSolvesEqualityBranchAndReportsFavoredCandidate(t *testing.T) {
	exec := &fakeExecutor{run: func(opts executor.RunOptions) executor.Result {
		b := opts.Input[0]
		info := branch.Info{BranchType: branch.Equality, OperandSize: 1, Operand1: uint64(b), Operand2: 0x41}
		gain := queue.NoGain
		if b == 0x41 {
			gain = queue.NewEdge
		}
		return executor.Result{Trace: branch.Trace{info}, Gain: gain}
	}}

	r := &Round{Exec: exec, Rand: rand.New(rand.NewSource(1)), NSpawn: 10, NSolve: 5}
	out, err := r.Run(context.Background(), mustSeed(t, 0x00))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	found := false
	for _, c := range out.Candidates {
		if c.Gain == queue.NewEdge && c.Priority == queue.Favored && c.Seed.ByteVals[0].Concretize() == 0x41 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Favored NewEdge candidate with byte 0x41, got %+v", out.Candidates)
	}
}

func TestRunFallsBackToMonotonicSearchForNonLinearBranch(t *testing.T) {
	const target = 2000 // between 44*44 and 45*45: no byte squares to it exactly, so samples straddle it and the binary search converges within the 0..127 stdin byte range

	exec := &fakeExecutor{run: func(opts executor.RunOptions) executor.Result {
		b := opts.Input[0]
		y := uint64(b) * uint64(b)
		info := branch.Info{BranchType: branch.SignedSize, OperandSize: 2, Operand1: y, Operand2: target}
		gain := queue.NewPath
		if y == target {
			gain = queue.NewEdge
		}
		return executor.Result{Trace: branch.Trace{info}, Gain: gain}
	}}

	r := &Round{Exec: exec, Rand: rand.New(rand.NewSource(7)), NSpawn: 10, NSolve: 5}
	out, err := r.Run(context.Background(), mustSeed(t, 0x00))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Candidates) == 0 {
		t.Fatal("expected at least one candidate from the monotonic search fallback")
	}
}

func TestRunReportsCrashingCandidateWithoutPriority(t *testing.T) {
	exec := &fakeExecutor{run: func(opts executor.RunOptions) executor.Result {
		b := opts.Input[0]
		info := branch.Info{BranchType: branch.Equality, OperandSize: 1, Operand1: uint64(b), Operand2: 0x41}
		res := executor.Result{Trace: branch.Trace{info}, Gain: queue.NoGain}
		if b == 0x41 {
			res.Status = executor.StatusCrash
		}
		return res
	}}

	r := &Round{Exec: exec, Rand: rand.New(rand.NewSource(1)), NSpawn: 10, NSolve: 5}
	out, err := r.Run(context.Background(), mustSeed(t, 0x00))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	found := false
	for _, c := range out.Candidates {
		if c.Status == executor.StatusCrash {
			found = true
			if c.Seed.ByteVals[0].Concretize() != 0x41 {
				t.Fatalf("expected the crashing input byte 0x41, got %#x", c.Seed.ByteVals[0].Concretize())
			}
		}
	}
	if !found {
		t.Fatal("expected the crashing solution to be reported for saving")
	}
}

func TestRunCountsEveryExecution(t *testing.T) {
	execs := 0
	exec := &fakeExecutor{run: func(opts executor.RunOptions) executor.Result {
		execs++
		return executor.Result{Gain: queue.NoGain}
	}}

	r := &Round{Exec: exec, Rand: rand.New(rand.NewSource(5)), NSpawn: 6, NSolve: 2}
	out, err := r.Run(context.Background(), mustSeed(t, 0x00))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Execs != execs {
		t.Fatalf("Outcome.Execs = %d, but the executor ran %d times", out.Execs, execs)
	}
}

func TestRunRequeuesAdvancedCursor(t *testing.T) {
	exec := &fakeExecutor{run: func(opts executor.RunOptions) executor.Result {
		return executor.Result{Gain: queue.NoGain}
	}}

	s, err := seed.New([]byte{0x00, 0x00}, byteval.StdInput())
	if err != nil {
		t.Fatalf("seed.New: %v", err)
	}

	r := &Round{Exec: exec, Rand: rand.New(rand.NewSource(3)), NSpawn: 4, NSolve: 2}
	out, err := r.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Requeue == nil {
		t.Fatal("expected a requeued seed with the cursor advanced to the second byte")
	}
	if out.Requeue.CursorPos != 1 {
		t.Fatalf("expected cursor at position 1, got %d", out.Requeue.CursorPos)
	}
}

func TestGroupCandidatesFiltersByMinSampleCountAndOrdersByPoint(t *testing.T) {
	traces := []branch.Trace{
		{branch.Info{InstAddr: 0x20, OperandSize: 1}, branch.Info{InstAddr: 0x10, OperandSize: 1}},
		{branch.Info{InstAddr: 0x20, OperandSize: 1}},
		{branch.Info{InstAddr: 0x20, OperandSize: 1}, branch.Info{InstAddr: 0x10, OperandSize: 1}},
	}
	tryValues := []byte{1, 2, 3}

	got := groupCandidates(tryValues, traces)
	if len(got) != 1 {
		t.Fatalf("expected only the 0x20 point to reach the 3-sample threshold, got %d candidates", len(got))
	}
	if got[0].point.Addr != 0x20 {
		t.Fatalf("expected the surviving point at addr 0x20, got %#x", got[0].point.Addr)
	}
}
