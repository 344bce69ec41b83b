package queue

import (
	"testing"

	"github.com/greybox/eclipser/internal/byteval"
	"github.com/greybox/eclipser/internal/seed"
)

func mustSeed(t *testing.T, tag byte) seed.Seed {
	t.Helper()
	s, err := seed.New([]byte{tag}, byteval.StdInput())
	if err != nil {
		t.Fatalf("seed.New: %v", err)
	}
	return s
}

func TestPriorityForClassification(t *testing.T) {
	if p, ok := PriorityFor(NewEdge); !ok || p != Favored {
		t.Fatalf("NewEdge should map to Favored, got %v/%v", p, ok)
	}
	if p, ok := PriorityFor(NewPath); !ok || p != Normal {
		t.Fatalf("NewPath should map to Normal, got %v/%v", p, ok)
	}
	if _, ok := PriorityFor(NoGain); ok {
		t.Fatal("NoGain should not enqueue")
	}
}

func TestDequeuePrefersFavored(t *testing.T) {
	q := New()
	q.Enqueue(Normal, mustSeed(t, 1))
	q.Enqueue(Favored, mustSeed(t, 2))

	s, _, ok := q.Dequeue()
	if !ok {
		t.Fatal("expected a seed")
	}
	if s.ByteVals[0].Concretize() != 2 {
		t.Fatalf("expected the favored seed to pop first, got tag %d", s.ByteVals[0].Concretize())
	}
}

func TestDequeueAlwaysReportsNormal(t *testing.T) {
	q := New()
	q.Enqueue(Favored, mustSeed(t, 1))

	_, priority, ok := q.Dequeue()
	if !ok {
		t.Fatal("expected a seed")
	}
	if priority != Normal {
		t.Fatalf("Dequeue must always report Normal regardless of source tier, got %v", priority)
	}
}

func TestDequeueEmptyReturnsFalse(t *testing.T) {
	q := New()
	if _, _, ok := q.Dequeue(); ok {
		t.Fatal("expected empty queue to report ok=false")
	}
}

func TestDepthsAndLen(t *testing.T) {
	q := New()
	q.Enqueue(Favored, mustSeed(t, 1))
	q.Enqueue(Normal, mustSeed(t, 2))
	q.Enqueue(Normal, mustSeed(t, 3))

	fav, norm := q.Depths()
	if fav != 1 || norm != 2 {
		t.Fatalf("expected depths (1,2), got (%d,%d)", fav, norm)
	}
	if q.Len() != 3 {
		t.Fatalf("expected Len 3, got %d", q.Len())
	}
}

func TestNewTestCaseAssignsPriorityAndID(t *testing.T) {
	tc, ok := NewTestCase([]byte{1, 2, 3}, NewEdge, "out/001")
	if !ok {
		t.Fatal("expected NewEdge to produce a TestCase")
	}
	if tc.Priority != Favored {
		t.Fatalf("expected Favored priority, got %v", tc.Priority)
	}
	if tc.ID.String() == "" {
		t.Fatal("expected a non-empty generated id")
	}
}

func TestNewTestCaseNoGainRejected(t *testing.T) {
	if _, ok := NewTestCase([]byte{1}, NoGain, "out/002"); ok {
		t.Fatal("expected NoGain to be rejected")
	}
}
