// Package stats holds RunStats, the observational run-progress
// counters the dashboard (internal/api) and the persistence layer
// (internal/db) consume. It is not part of the fuzzing algorithm's
// control state — nothing in internal/concolic, internal/scheduler,
// or internal/queue reads it back.
package stats

import (
	"sync"
	"time"
)

// RunStats is a snapshot of one fuzzing run's progress.
type RunStats struct {
	RunID      string
	Rounds     int64
	Execs      int64
	TestCases  int64
	Favored    int64
	Normal     int64
	Crashes    int64
	Hangs      int64
	Efficiency float64
	LastSync   time.Time
}

// Publisher is a mutex-guarded holder for the single current RunStats
// snapshot, written by the main fuzz loop and read by the HTTP/WS
// dashboard goroutines (spec §5's concurrency note: the dashboard only
// observes, it never blocks the fuzzing loop).
type Publisher struct {
	mu   sync.Mutex
	snap RunStats
}

// NewPublisher returns a Publisher seeded with an empty snapshot for runID.
func NewPublisher(runID string) *Publisher {
	return &Publisher{snap: RunStats{RunID: runID}}
}

// Publish replaces the current snapshot.
func (p *Publisher) Publish(s RunStats) {
	p.mu.Lock()
	p.snap = s
	p.mu.Unlock()
}

// Snapshot returns a copy of the current snapshot.
func (p *Publisher) Snapshot() RunStats {
	p.mu.Lock()
	s := p.snap
	p.mu.Unlock()
	return s
}
