package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/greybox/eclipser/internal/byteval"
	"github.com/greybox/eclipser/internal/concolic"
	"github.com/greybox/eclipser/internal/config"
	"github.com/greybox/eclipser/internal/executor"
	"github.com/greybox/eclipser/internal/queue"
	"github.com/greybox/eclipser/internal/seed"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	opt := config.Defaults()
	opt.OutDir = t.TempDir()
	return New(opt, nil, nil, "test-run")
}

func mustSeed(t *testing.T, b byte) seed.Seed {
	t.Helper()
	s, err := seed.New([]byte{b}, byteval.StdInput())
	if err != nil {
		t.Fatalf("seed.New: %v", err)
	}
	return s
}

func TestLoadSeedsFallsBackToZeroFilledSeed(t *testing.T) {
	e := newTestEngine(t)
	if err := e.loadSeeds(); err != nil {
		t.Fatalf("loadSeeds: %v", err)
	}
	s, ok := e.dequeue()
	if !ok {
		t.Fatal("expected the fallback seed in the queue")
	}
	if s.Len() != seed.InitInputLen {
		t.Fatalf("expected fallback seed of length %d, got %d", seed.InitInputLen, s.Len())
	}
}

func TestLoadSeedsReadsInputDir(t *testing.T) {
	e := newTestEngine(t)
	inputDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(inputDir, "a"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(inputDir, "empty"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	e.Opt.InputDir = inputDir

	if err := e.loadSeeds(); err != nil {
		t.Fatalf("loadSeeds: %v", err)
	}
	if e.q.Len() != 1 {
		t.Fatalf("expected only the non-empty file to load, got %d seeds", e.q.Len())
	}
}

func TestDepthCountersTrackEnqueueDequeue(t *testing.T) {
	e := newTestEngine(t)
	e.enqueue(queue.Favored, mustSeed(t, 1))
	e.enqueue(queue.Normal, mustSeed(t, 2))

	if fav, norm := e.Depths(); fav != 1 || norm != 1 {
		t.Fatalf("expected depths (1,1), got (%d,%d)", fav, norm)
	}

	// Dequeue pops the favored tier first even though the reported
	// priority is always Normal; the favored counter must track that.
	if _, ok := e.dequeue(); !ok {
		t.Fatal("expected a seed")
	}
	if fav, norm := e.Depths(); fav != 0 || norm != 1 {
		t.Fatalf("expected depths (0,1) after popping the favored seed, got (%d,%d)", fav, norm)
	}
}

func TestPersistAbnormalWritesCrashAndHangEntries(t *testing.T) {
	e := newTestEngine(t)

	e.persistAbnormal(concolic.Candidate{Seed: mustSeed(t, 0x41), Status: executor.StatusCrash})
	e.persistAbnormal(concolic.Candidate{Seed: mustSeed(t, 0x42), Status: executor.StatusTimeout})

	crashes, err := os.ReadDir(filepath.Join(e.Opt.OutDir, "crashes"))
	if err != nil || len(crashes) != 1 {
		t.Fatalf("expected 1 crash entry, got %d (err %v)", len(crashes), err)
	}
	hangs, err := os.ReadDir(filepath.Join(e.Opt.OutDir, "hangs"))
	if err != nil || len(hangs) != 1 {
		t.Fatalf("expected 1 hang entry, got %d (err %v)", len(hangs), err)
	}

	bs, err := os.ReadFile(filepath.Join(e.Opt.OutDir, "crashes", crashes[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(bs) != 1 || bs[0] != 0x41 {
		t.Fatalf("expected the crashing input bytes to be persisted, got %v", bs)
	}
}
