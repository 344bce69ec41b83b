// Package config holds the engine's run configuration (spec §6.4):
// construction only, no option-semantics validation beyond basic type
// conversion and defaulting (that stays out of scope per §1).
package config

import "time"

// Arch is the target instruction-set architecture the tracer runs
// under.
type Arch string

const (
	ArchX86   Arch = "x86"
	ArchX8664 Arch = "x64"
)

// FuzzOption is the engine's run configuration, populated by the CLI
// entrypoint (cmd/eclipserd) from flags and environment variables.
type FuzzOption struct {
	// Verbosity raises log chatter; zero keeps only round summaries.
	Verbosity int
	// TimeLimit is the wall-clock budget for the main fuzz loop (the
	// CLI takes it in seconds). Zero means unbounded.
	TimeLimit time.Duration
	// OutDir is where classified test-cases, crashes, and hangs are
	// written.
	OutDir string
	// SyncDir is the AFL-style sync root; sibling fuzzer directories
	// live directly under it (spec §4.7).
	SyncDir string
	// Target is the path to the instrumented binary under test.
	Target string
	// Args are extra arguments passed to Target; an entry equal to "@@"
	// is replaced with the input file path when fuzzing from a file.
	Args []string
	// ExecTimeout bounds a single execution (spec §5), default 500ms.
	ExecTimeout time.Duration
	// Arch selects the tracer's target architecture.
	Arch Arch
	// ForkServer enables the persistent fork-server protocol instead of
	// spawning a fresh process per execution.
	ForkServer bool
	// InputDir seeds the initial queue from files on disk, mutually
	// exclusive in practice with stdin-sourced seeds.
	InputDir string
	// Source selects whether the target reads fuzzed input from stdin
	// or from a file path substituted into Args.
	Source SourceKind
	// NSolve caps the number of candidate branches solved per grey-box
	// round (spec §4.4 step 4).
	NSolve int
	// NSpawn is the number of try-values sampled per round (spec §4.4
	// step 1), default 10.
	NSpawn int
}

// SourceKind selects stdin vs. file input sourcing, mirroring
// byteval.InputSource.
type SourceKind int

const (
	SourceStdin SourceKind = iota
	SourceFile
)

// Defaults returns the engine's baseline configuration; the CLI layer
// only needs to override what the user actually supplied.
func Defaults() FuzzOption {
	return FuzzOption{
		OutDir:      "output",
		ExecTimeout: 500 * time.Millisecond,
		Arch:        ArchX8664,
		ForkServer:  true,
		Source:      SourceStdin,
		NSolve:      10,
		NSpawn:      10,
	}
}
