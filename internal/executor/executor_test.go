package executor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/greybox/eclipser/internal/config"
	"github.com/greybox/eclipser/internal/queue"
)

func TestCollectParsesCoverageGainFlags(t *testing.T) {
	dir := t.TempDir()
	e := &TracerExecutor{workDir: dir}

	branchLog := filepath.Join(dir, "branch.log")
	coverageLog := filepath.Join(dir, "coverage.log")
	if err := os.WriteFile(branchLog, []byte(`{"inst_addr":1,"branch_type":"Equality","try_value":"65","operand_size":1,"operand1":65,"operand2":65,"distance":"0"}`+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(coverageLog, []byte("1\n0\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	trace, gain := e.collect(branchLog, coverageLog)
	if len(trace) != 1 {
		t.Fatalf("expected 1 parsed branch record, got %d", len(trace))
	}
	if gain != queue.NewEdge {
		t.Fatalf("expected NewEdge when found_new_edge=1, got %v", gain)
	}
}

func TestCollectMissingFilesYieldsNoGain(t *testing.T) {
	dir := t.TempDir()
	e := &TracerExecutor{workDir: dir}
	trace, gain := e.collect(filepath.Join(dir, "missing-branch.log"), filepath.Join(dir, "missing-coverage.log"))
	if trace != nil {
		t.Fatalf("expected nil trace for a missing branch log, got %v", trace)
	}
	if gain != queue.NoGain {
		t.Fatalf("expected NoGain for a missing coverage log, got %v", gain)
	}
}

func TestCollectNewPathWithoutNewEdge(t *testing.T) {
	dir := t.TempDir()
	e := &TracerExecutor{workDir: dir}
	coverageLog := filepath.Join(dir, "coverage.log")
	if err := os.WriteFile(coverageLog, []byte("0\n1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, gain := e.collect(filepath.Join(dir, "missing-branch.log"), coverageLog)
	if gain != queue.NewPath {
		t.Fatalf("expected NewPath, got %v", gain)
	}
}

func TestPrepareInputTruncatesAndRewindsStdinScratch(t *testing.T) {
	e, err := NewTracerExecutor("/bin/true", nil, config.SourceStdin, 0, t.TempDir(), false)
	if err != nil {
		t.Fatalf("NewTracerExecutor: %v", err)
	}
	defer e.Close()

	if _, err := e.prepareInput([]byte("aaaa")); err != nil {
		t.Fatalf("prepareInput: %v", err)
	}
	if _, err := e.prepareInput([]byte("bb")); err != nil {
		t.Fatalf("prepareInput: %v", err)
	}

	bs, err := os.ReadFile(e.stdinPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(bs) != "bb" {
		t.Fatalf("expected the scratch file truncated to %q, got %q", "bb", bs)
	}

	// The shared handle must be rewound so the next child reads from
	// the start.
	buf := make([]byte, 2)
	if n, _ := e.stdinFile.Read(buf); n != 2 || string(buf) != "bb" {
		t.Fatalf("expected a rewound handle to read %q, got %q (%d bytes)", "bb", buf[:n], n)
	}
}

func TestPrepareInputSubstitutesFilePlaceholder(t *testing.T) {
	dir := t.TempDir()
	e, err := NewTracerExecutor("/bin/true", []string{"-f", "@@"}, config.SourceFile, 0, dir, false)
	if err != nil {
		t.Fatalf("NewTracerExecutor: %v", err)
	}
	defer e.Close()

	args, err := e.prepareInput([]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("prepareInput: %v", err)
	}
	want := filepath.Join(dir, ".input")
	if len(args) != 2 || args[1] != want {
		t.Fatalf("expected @@ substituted with %q, got %v", want, args)
	}
	bs, err := os.ReadFile(want)
	if err != nil || len(bs) != 3 {
		t.Fatalf("expected 3 input bytes on disk, got %v (err %v)", bs, err)
	}
}

func TestEnvSignatureDistinguishesModes(t *testing.T) {
	a := envSignature(RunOptions{Mode: ModeBranch, BranchAddr: 0x10})
	b := envSignature(RunOptions{Mode: ModeBranch, BranchAddr: 0x20})
	c := envSignature(RunOptions{Mode: ModeCoverage})
	if a == b || a == c || b == c {
		t.Fatalf("expected distinct signatures, got %q %q %q", a, b, c)
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{StatusNormal: "Normal", StatusTimeout: "SIGALRM", StatusCrash: "Crash"}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Fatalf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}

func TestBoolEnv(t *testing.T) {
	if boolEnv(true) != "1" || boolEnv(false) != "0" {
		t.Fatal("boolEnv must render \"1\"/\"0\"")
	}
}
