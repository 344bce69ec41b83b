// Package executor runs the instrumented target under the tracer wire
// protocol of spec §6.1. The tracer binary itself is out of scope
// (spec §1): this package implements the engine's side — setting the
// documented environment variables, maintaining the stdin scratch
// file, driving the forkserver's 4-byte pipe protocol, enforcing
// exec_timeout with the SIGTERM-then-SIGKILL escalation of spec §5,
// and parsing the result files the tracer produces per run.
package executor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/greybox/eclipser/internal/branch"
	"github.com/greybox/eclipser/internal/config"
	"github.com/greybox/eclipser/internal/ecerr"
	"github.com/greybox/eclipser/internal/executor/native"
	"github.com/greybox/eclipser/internal/queue"
)

// BitmapSize is the shared coverage bitmap's fixed size (spec §5).
const BitmapSize = 0x10000

// killGrace is how long the target is given to exit after SIGTERM
// before the executor escalates to SIGKILL (spec §5: up to 400ms).
const killGrace = 400 * time.Millisecond

// Status classifies how one execution ended.
type Status int

const (
	StatusNormal Status = iota
	StatusTimeout
	StatusCrash
)

func (s Status) String() string {
	switch s {
	case StatusTimeout:
		return "SIGALRM"
	case StatusCrash:
		return "Crash"
	default:
		return "Normal"
	}
}

// Mode selects which of the three execution modes a run uses: coverage
// (classify against the global bitmap), branch (collect the branch
// trace, optionally targeting one BranchPoint), or native (run the
// target without instrumentation, for crash confirmation).
type Mode int

const (
	ModeCoverage Mode = iota
	ModeBranch
	ModeNative
)

// RunOptions parameterizes a single execution.
type RunOptions struct {
	Input []byte
	Mode  Mode
	// BranchAddr, BranchIdx target a single branch for side-channel
	// detail; (0,0) means "record all" per ECL_BRANCH_ADDR/IDX.
	BranchAddr uint64
	BranchIdx  uint32
	// MeasureCov also produces coverage data during a branch run.
	MeasureCov bool
}

// Result is the outcome of one execution.
type Result struct {
	Status Status
	Trace  branch.Trace
	Gain   queue.CoverageGain
}

// Executor runs the target once per call and reports what happened,
// hiding whether the run used the persistent fork-server protocol or a
// one-shot exec.
type Executor interface {
	Run(ctx context.Context, opts RunOptions) (Result, error)
}

// TracerExecutor is the concrete Executor backed by an external
// instrumented binary.
type TracerExecutor struct {
	Target      string
	Args        []string
	Source      config.SourceKind
	ExecTimeout time.Duration
	ForkServer  bool

	workDir     string
	bitmapPath  string
	branchLog   string
	coverageLog string
	stdinPath   string
	stdinFile   *os.File

	fs     *forkServer
	fsMode Mode
	fsEnv  string
}

// NewTracerExecutor prepares the work directory (scratch stdin file,
// persistent bitmap) and returns a ready-to-use executor.
func NewTracerExecutor(target string, args []string, src config.SourceKind, execTimeout time.Duration, workDir string, forkServer bool) (*TracerExecutor, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("executor: create work dir: %w", err)
	}
	bitmapPath := filepath.Join(workDir, "bitmap.bin")
	if _, err := os.Stat(bitmapPath); os.IsNotExist(err) {
		if err := os.WriteFile(bitmapPath, make([]byte, BitmapSize), 0o644); err != nil {
			return nil, fmt.Errorf("executor: init bitmap: %w", err)
		}
	}
	return &TracerExecutor{
		Target: target, Args: args, Source: src, ExecTimeout: execTimeout,
		ForkServer:  forkServer,
		workDir:     workDir,
		bitmapPath:  bitmapPath,
		branchLog:   filepath.Join(workDir, "branch.log"),
		coverageLog: filepath.Join(workDir, "coverage.log"),
		stdinPath:   filepath.Join(workDir, ".stdin"),
	}, nil
}

// Close shuts down any running fork server and releases the stdin
// scratch file.
func (e *TracerExecutor) Close() {
	if e.fs != nil {
		e.fs.stop()
		e.fs = nil
	}
	if e.stdinFile != nil {
		e.stdinFile.Close()
		e.stdinFile = nil
	}
}

func (e *TracerExecutor) timeout() time.Duration {
	if e.ExecTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return e.ExecTimeout
}

// prepareInput places opts.Input where the target will read it: into
// the args-substituted input file for FileInput sources, or into the
// truncated, rewound stdin scratch file for StdInput (spec §5).
// It returns the argv to use.
func (e *TracerExecutor) prepareInput(input []byte) ([]string, error) {
	args := make([]string, len(e.Args))
	copy(args, e.Args)

	if e.Source == config.SourceFile {
		inputPath := filepath.Join(e.workDir, ".input")
		if err := os.WriteFile(inputPath, input, 0o600); err != nil {
			return nil, ecerr.New(ecerr.KindExecutionFailure, "write fuzzed input file: %v", err)
		}
		for i, a := range args {
			if a == "@@" {
				args[i] = inputPath
			}
		}
		return args, nil
	}

	if e.stdinFile == nil {
		f, err := os.OpenFile(e.stdinPath, os.O_RDWR|os.O_CREATE, 0o600)
		if err != nil {
			return nil, ecerr.New(ecerr.KindExecutionFailure, "open stdin scratch file: %v", err)
		}
		e.stdinFile = f
	}
	if err := e.stdinFile.Truncate(0); err != nil {
		return nil, ecerr.New(ecerr.KindExecutionFailure, "truncate stdin scratch file: %v", err)
	}
	if _, err := e.stdinFile.WriteAt(input, 0); err != nil {
		return nil, ecerr.New(ecerr.KindExecutionFailure, "write stdin scratch file: %v", err)
	}
	if _, err := e.stdinFile.Seek(0, 0); err != nil {
		return nil, ecerr.New(ecerr.KindExecutionFailure, "rewind stdin scratch file: %v", err)
	}
	return args, nil
}

// tracerEnv assembles the spec §6.1 environment for one run.
func (e *TracerExecutor) tracerEnv(opts RunOptions, forkServer bool) []string {
	return append(os.Environ(),
		"ECL_FORK_SERVER="+boolEnv(forkServer),
		"ECL_BRANCH_LOG="+e.branchLog,
		"ECL_COVERAGE_LOG="+e.coverageLog,
		"ECL_BITMAP_LOG="+e.bitmapPath,
		"ECL_BRANCH_ADDR="+strconv.FormatUint(opts.BranchAddr, 10),
		"ECL_BRANCH_IDX="+strconv.FormatUint(uint64(opts.BranchIdx), 10),
		"ECL_MEASURE_COV="+boolEnv(opts.MeasureCov),
	)
}

// Run executes the target once with opts.Input as the fuzzed input,
// honoring exec_timeout and the stdin/file source kind, then parses the
// branch trace and coverage classification the tracer wrote.
func (e *TracerExecutor) Run(ctx context.Context, opts RunOptions) (Result, error) {
	os.Remove(e.branchLog)
	os.Remove(e.coverageLog)

	if opts.Mode == ModeNative {
		return e.runNative(ctx, opts)
	}
	if e.ForkServer {
		return e.runForkServer(ctx, opts)
	}
	return e.runOneShot(ctx, opts)
}

// runOneShot execs a fresh tracer process for a single run.
func (e *TracerExecutor) runOneShot(ctx context.Context, opts RunOptions) (Result, error) {
	args, err := e.prepareInput(opts.Input)
	if err != nil {
		return Result{}, err
	}

	cmd := exec.Command(e.Target, args...)
	cmd.Stdin = e.stdinFile
	cmd.Env = e.tracerEnv(opts, false)
	native.PrepareProcessGroup(cmd)

	status, err := e.await(ctx, cmd)
	if err != nil {
		return Result{}, err
	}
	trace, gain := e.collect(e.branchLog, e.coverageLog)
	return Result{Status: status, Trace: trace, Gain: gain}, nil
}

// runNative runs the target with no tracer instrumentation at all,
// used to confirm that a crash observed under the emulator reproduces
// on the bare binary.
func (e *TracerExecutor) runNative(ctx context.Context, opts RunOptions) (Result, error) {
	args, err := e.prepareInput(opts.Input)
	if err != nil {
		return Result{}, err
	}

	cmd := exec.Command(e.Target, args...)
	cmd.Stdin = e.stdinFile
	native.PrepareProcessGroup(cmd)

	status, err := e.await(ctx, cmd)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: status}, nil
}

// runForkServer runs via the persistent forkserver, restarting it when
// the run's environment (mode, target branch) differs from the one the
// server was started under, since the tracer reads its environment
// once at startup.
func (e *TracerExecutor) runForkServer(ctx context.Context, opts RunOptions) (Result, error) {
	args, err := e.prepareInput(opts.Input)
	if err != nil {
		return Result{}, err
	}

	env := e.tracerEnv(opts, true)
	sig := envSignature(opts)
	if e.fs == nil || e.fsEnv != sig || e.fsMode != opts.Mode {
		if e.fs != nil {
			e.fs.stop()
		}
		fs, err := startForkServer(e.Target, args, env, e.stdinFile, opts.Mode, e.timeout()*forkServerInitFactor)
		if err != nil {
			return Result{}, err
		}
		e.fs = fs
		e.fsEnv = sig
		e.fsMode = opts.Mode
	}

	status, err := e.fs.execOnce(ctx, e.timeout())
	if err != nil {
		// A broken pipe means the server itself died; drop it so the
		// next run starts a fresh one, and fail this run.
		e.fs.stop()
		e.fs = nil
		return Result{}, err
	}
	trace, gain := e.collect(e.branchLog, e.coverageLog)
	return Result{Status: status, Trace: trace, Gain: gain}, nil
}

// envSignature captures the RunOptions fields the tracer reads from
// its environment at startup, so runForkServer knows when a restart is
// required.
func envSignature(opts RunOptions) string {
	return fmt.Sprintf("%d:%d:%d:%t", opts.Mode, opts.BranchAddr, opts.BranchIdx, opts.MeasureCov)
}

// await starts cmd and waits for it to finish within exec_timeout,
// escalating SIGTERM-then-SIGKILL on expiry (spec §5).
func (e *TracerExecutor) await(ctx context.Context, cmd *exec.Cmd) (Status, error) {
	if err := cmd.Start(); err != nil {
		return StatusNormal, ecerr.New(ecerr.KindExecutionFailure, "start target: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		native.Terminate(cmd, doneAsStruct(done), killGrace)
		return StatusNormal, ctx.Err()
	case <-time.After(e.timeout()):
		native.Terminate(cmd, doneAsStruct(done), killGrace)
		return StatusTimeout, nil
	case err := <-done:
		if err != nil {
			return StatusCrash, nil
		}
		return StatusNormal, nil
	}
}

// doneAsStruct adapts a <-chan error into the <-chan struct{} shape
// native.Terminate expects, without the caller consuming the error
// twice.
func doneAsStruct(done <-chan error) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		<-done
		close(out)
	}()
	return out
}

func boolEnv(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// collect parses the branch trace and coverage-gain flags the tracer
// wrote for this run. Missing or malformed files are treated as "no
// usable branches" / NoGain rather than an execution error: a run that
// crashed before the tracer could flush its logs still gets classified.
func (e *TracerExecutor) collect(branchLog, coverageLog string) (branch.Trace, queue.CoverageGain) {
	var trace branch.Trace
	if f, err := os.Open(branchLog); err == nil {
		trace, _ = branch.ParseTrace(f)
		f.Close()
	}

	gain := queue.NoGain
	if f, err := os.Open(coverageLog); err == nil {
		sc := bufio.NewScanner(f)
		var foundNewEdge, foundNewPath int
		if sc.Scan() {
			foundNewEdge, _ = strconv.Atoi(strings.TrimSpace(sc.Text()))
		}
		if sc.Scan() {
			foundNewPath, _ = strconv.Atoi(strings.TrimSpace(sc.Text()))
		}
		f.Close()
		switch {
		case foundNewEdge > 0:
			gain = queue.NewEdge
		case foundNewPath > 0:
			gain = queue.NewPath
		}
	}
	return trace, gain
}
