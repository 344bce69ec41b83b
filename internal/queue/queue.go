// Package queue implements the two-tier favored/normal seed queue
// (spec §4.5) and the coverage classification that feeds it (§3.6).
package queue

import (
	"github.com/google/uuid"

	"github.com/greybox/eclipser/internal/seed"
)

// CoverageGain classifies one execution's effect on the fuzzer's
// global coverage bitmap.
type CoverageGain int

const (
	NoGain CoverageGain = iota
	NewPath
	NewEdge
)

func (g CoverageGain) String() string {
	switch g {
	case NewPath:
		return "NewPath"
	case NewEdge:
		return "NewEdge"
	default:
		return "NoGain"
	}
}

// Priority is the queue tier a seed is enqueued into.
type Priority int

const (
	Normal Priority = iota
	Favored
)

func (p Priority) String() string {
	if p == Favored {
		return "Favored"
	}
	return "Normal"
}

// PriorityFor derives the enqueue priority from a coverage
// classification per spec §3.6: NewEdge -> Favored, NewPath -> Normal,
// NoGain -> no enqueue (the caller checks ok).
func PriorityFor(gain CoverageGain) (Priority, bool) {
	switch gain {
	case NewEdge:
		return Favored, true
	case NewPath:
		return Normal, true
	default:
		return Normal, false
	}
}

// TestCase is a classified, persisted candidate: the concrete bytes
// that produced a coverage gain, kept independent of whether the seed
// itself stays in the queue for further fuzzing.
type TestCase struct {
	ID       uuid.UUID
	Bytes    []byte
	Gain     CoverageGain
	Priority Priority
	Path     string // on-disk location under FuzzOption.OutDir
}

// NewTestCase builds a TestCase with a fresh id, matching the
// teacher's uuid.New() use for persisted record identity.
func NewTestCase(bytes []byte, gain CoverageGain, path string) (TestCase, bool) {
	priority, ok := PriorityFor(gain)
	if !ok {
		return TestCase{}, false
	}
	return TestCase{
		ID:       uuid.New(),
		Bytes:    bytes,
		Gain:     gain,
		Priority: priority,
		Path:     path,
	}, true
}

// entry pairs a seed with the priority it was enqueued under, since
// SeedQueue.Dequeue must report a priority independent of which tier
// the seed actually came from (see the Dequeue doc comment).
type entry struct {
	seed     seed.Seed
	priority Priority
}

// SeedQueue is the two-FIFO structure described in spec §4.5.
type SeedQueue struct {
	favoreds []entry
	normals  []entry
}

// New returns an empty SeedQueue.
func New() *SeedQueue {
	return &SeedQueue{}
}

// Enqueue appends s to the FIFO matching priority.
func (q *SeedQueue) Enqueue(priority Priority, s seed.Seed) {
	e := entry{seed: s, priority: priority}
	if priority == Favored {
		q.favoreds = append(q.favoreds, e)
	} else {
		q.normals = append(q.normals, e)
	}
}

// Dequeue pops from favoreds if non-empty, else from normals.
//
// The priority value returned is always Normal, regardless of which
// tier the seed was popped from. This mirrors an observed quirk of the
// reference implementation (spec §9): priority appears to be treated
// as one-shot, consumed at enqueue time to choose a tier, and not
// re-reported at dequeue. The seed itself does not carry its own
// priority, so callers that need "was this favored" must track that
// separately at enqueue time; this function deliberately reproduces
// the quirk rather than silently fixing it.
func (q *SeedQueue) Dequeue() (seed.Seed, Priority, bool) {
	if len(q.favoreds) > 0 {
		e := q.favoreds[0]
		q.favoreds = q.favoreds[1:]
		return e.seed, Normal, true
	}
	if len(q.normals) > 0 {
		e := q.normals[0]
		q.normals = q.normals[1:]
		return e.seed, Normal, true
	}
	return seed.Seed{}, Normal, false
}

// Len reports the total number of queued seeds across both tiers.
func (q *SeedQueue) Len() int {
	return len(q.favoreds) + len(q.normals)
}

// Depths reports the favored and normal tier depths separately, for
// dashboard consumption (internal/api).
func (q *SeedQueue) Depths() (favored, normal int) {
	return len(q.favoreds), len(q.normals)
}
