// Package scheduler implements the fairness clock (spec §4.6) that
// shares wall-clock time with a peer fuzzer process, and the AFL-style
// directory sync (spec §4.7) that imports a sibling's queue entries.
package scheduler

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RoundSize is the execution count after which the fairness clock
// recomputes its sleep factor.
const RoundSize = 10_000

// RandFuzzEfficiency is the reference efficiency the fairness formula
// is calibrated against: at 5 test-cases per 10,000 executions the
// sleep factor is exactly zero.
const RandFuzzEfficiency = 0.0005

// SleepFactorMin and SleepFactorMax clamp the computed sleep factor.
const (
	SleepFactorMin = 0.0
	SleepFactorMax = 4.0
)

// FairnessClock tracks one fuzzer's share of wall-clock time relative
// to a peer, per spec §4.6.
type FairnessClock struct {
	roundExecs int
	roundTCs   int
	roundStart time.Time
	sleepFn    func(time.Duration)
}

// NewFairnessClock returns a clock with its round window starting now.
func NewFairnessClock() *FairnessClock {
	return &FairnessClock{roundStart: time.Now(), sleepFn: time.Sleep}
}

// RecordExec registers one execution, optionally having produced a new
// test-case (gotTestCase).
func (c *FairnessClock) RecordExec(gotTestCase bool) {
	tc := 0
	if gotTestCase {
		tc = 1
	}
	c.Record(1, tc)
}

// Record registers a batch of executions and the test-cases they
// gained. Once the round window fills (RoundSize executions) it
// recomputes the sleep factor, sleeps proportionally to the round's
// elapsed wall-clock, and resets the counters and timer.
func (c *FairnessClock) Record(execs, testCases int) {
	c.roundExecs += execs
	c.roundTCs += testCases
	if c.roundExecs < RoundSize {
		return
	}

	elapsed := time.Since(c.roundStart)
	factor := c.sleepFactor()
	if factor > 0 {
		c.sleepFn(time.Duration(factor * float64(elapsed)))
	}

	c.roundExecs = 0
	c.roundTCs = 0
	c.roundStart = time.Now()
}

// sleepFactor computes (RAND_FUZZ_EFFICIENCY/efficiency - 1)/2, clamped
// to [SleepFactorMin, SleepFactorMax]; efficiency == 0 forces the max.
func (c *FairnessClock) sleepFactor() float64 {
	if c.roundExecs == 0 {
		return SleepFactorMin
	}
	efficiency := float64(c.roundTCs) / float64(c.roundExecs)
	if efficiency == 0 {
		return SleepFactorMax
	}
	factor := (RandFuzzEfficiency/efficiency - 1) / 2
	if factor < SleepFactorMin {
		return SleepFactorMin
	}
	if factor > SleepFactorMax {
		return SleepFactorMax
	}
	return factor
}

// SyncN is the round interval at which AFL-style directory sync runs.
const SyncN = 10

// Syncer tracks, per sibling directory, the highest `id:NNNNNN` queue
// entry already imported, so repeated sync passes only import what is
// new (spec §4.7).
type Syncer struct {
	syncDir   string
	ownDir    string
	rounds    int
	watermark map[string]int // sibling dir -> highest imported id
}

// NewSyncer builds a Syncer rooted at syncDir, excluding ownDir (our
// own output directory) by path identity.
func NewSyncer(syncDir, ownDir string) *Syncer {
	return &Syncer{
		syncDir:   syncDir,
		ownDir:    filepath.Clean(ownDir),
		watermark: make(map[string]int),
	}
}

// LoadWatermarks seeds the syncer's per-sibling watermarks from a
// previously persisted snapshot (internal/db); siblings present in
// saved are scanned only for ids above their saved watermark.
func (s *Syncer) LoadWatermarks(saved map[string]int) {
	for k, v := range saved {
		s.watermark[k] = v
	}
}

// Watermarks returns a snapshot of the current per-sibling watermarks,
// for persistence.
func (s *Syncer) Watermarks() map[string]int {
	out := make(map[string]int, len(s.watermark))
	for k, v := range s.watermark {
		out[k] = v
	}
	return out
}

// Import is a sibling queue entry newer than our last-seen watermark
// for that sibling, ready for coverage-mode re-execution.
type Import struct {
	Sibling string
	ID      int
	Path    string
}

// Tick advances the round counter and, every SyncN rounds, scans
// sibling directories for new queue entries. Tick only lists the new
// entries; it does not read or execute them.
func (s *Syncer) Tick() ([]Import, error) {
	s.rounds++
	if s.rounds < SyncN {
		return nil, nil
	}
	s.rounds = 0
	return s.scan()
}

func (s *Syncer) scan() ([]Import, error) {
	entries, err := os.ReadDir(s.syncDir)
	if err != nil {
		return nil, err
	}

	var imports []Import
	siblings := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		siblingDir := filepath.Join(s.syncDir, e.Name())
		if filepath.Clean(siblingDir) == s.ownDir {
			continue
		}

		queueDir := filepath.Join(siblingDir, "queue")
		queueEntries, err := os.ReadDir(queueDir)
		if err != nil {
			continue
		}

		// A zero watermark must still mean "id:000000 already imported",
		// so never-synced siblings are told apart by map presence: their
		// very first scan imports everything, id 0 included.
		highest, synced := s.watermark[e.Name()]
		newHighest, tracked := highest, synced
		var candidates []Import
		for _, qe := range queueEntries {
			id, ok := parseQueueID(qe.Name())
			if !ok || (synced && id <= highest) {
				continue
			}
			candidates = append(candidates, Import{Sibling: e.Name(), ID: id, Path: filepath.Join(queueDir, qe.Name())})
			if !tracked || id > newHighest {
				newHighest = id
				tracked = true
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
		imports = append(imports, candidates...)
		if len(candidates) > 0 {
			s.watermark[e.Name()] = newHighest
			siblings++
		}
	}

	if len(imports) > 0 {
		log.Printf("[Sync] imported %d new queue entries from %d sibling(s)", len(imports), siblings)
	}
	return imports, nil
}

// parseQueueID extracts the numeric id from an AFL-style queue file
// name of the form "id:NNNNNN,...".
func parseQueueID(name string) (int, bool) {
	if !strings.HasPrefix(name, "id:") {
		return 0, false
	}
	rest := strings.TrimPrefix(name, "id:")
	end := strings.IndexByte(rest, ',')
	if end == -1 {
		end = len(rest)
	}
	id, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return id, true
}
