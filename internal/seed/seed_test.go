package seed

import (
	"testing"

	"github.com/greybox/eclipser/internal/byteval"
)

func TestNewRejectsEmpty(t *testing.T) {
	if _, err := New(nil, byteval.StdInput()); err == nil {
		t.Fatal("expected error constructing seed from empty bytes")
	}
}

func TestConcretizeLengthMatchesByteVals(t *testing.T) {
	s, err := New([]byte{1, 2, 3, 4}, byteval.StdInput())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := len(s.Concretize()), s.Len(); got != want {
		t.Fatalf("Concretize length = %d, want %d", got, want)
	}
}

func TestFixCurBytesExtendsRight(t *testing.T) {
	s, err := New([]byte{1, 2, 3}, byteval.StdInput())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.SetCursorPosInplace(2); err != nil {
		t.Fatalf("SetCursorPos: %v", err)
	}
	if err := s.FixCurBytesInplace(Right, []byte{9, 9, 9}); err != nil {
		t.Fatalf("FixCurBytes: %v", err)
	}
	if s.Len() != 5 {
		t.Fatalf("expected seed to extend to length 5, got %d", s.Len())
	}
	if s.ByteVals[3].Kind != byteval.Fixed || s.ByteVals[4].Kind != byteval.Fixed {
		t.Fatalf("expected solved bytes written as Fixed")
	}
}

func TestFixCurBytesLeftFailsPastStart(t *testing.T) {
	s, err := New([]byte{1, 2, 3}, byteval.StdInput())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.SetCursorPosInplace(1); err != nil {
		t.Fatalf("SetCursorPos: %v", err)
	}
	if err := s.FixCurBytesInplace(Left, []byte{1, 2, 3, 4}); err == nil {
		t.Fatal("expected FixCurBytes(Left) to fail when it would start before index 0")
	}
}

func TestInplaceAndFunctionalAgree(t *testing.T) {
	base, err := New([]byte{10, 20, 30, 40}, byteval.StdInput())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	functional, err := base.FixCurBytes(Right, []byte{99})
	if err != nil {
		t.Fatalf("functional FixCurBytes: %v", err)
	}

	inplace := base.Clone()
	if err := inplace.FixCurBytesInplace(Right, []byte{99}); err != nil {
		t.Fatalf("inplace FixCurBytes: %v", err)
	}

	if functional.ToString() != inplace.ToString() {
		t.Fatalf("inplace/functional mismatch: %q vs %q", inplace.ToString(), functional.ToString())
	}
}

func TestMoveToUnfixedByteIdempotent(t *testing.T) {
	s, err := New([]byte{1, 2, 3, 4, 5}, byteval.StdInput())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.ConstrainByteAtInplace(Right, 0, 7, 7); err != nil {
		t.Fatalf("ConstrainByteAt: %v", err)
	}
	s.CursorDir = Right
	if !s.MoveToUnfixedByteInplace() {
		t.Fatal("expected to find an unfixed byte")
	}
	first := s.CursorPos
	if !s.MoveToUnfixedByteInplace() {
		t.Fatal("expected second call to also succeed")
	}
	if s.CursorPos != first {
		t.Fatalf("MoveToUnfixedByte not idempotent: %d != %d", s.CursorPos, first)
	}
}

func TestRelocateCursorAvoidsResamplingSampledByte(t *testing.T) {
	s, err := New([]byte{1, 2, 3, 4, 5}, byteval.StdInput())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.SetCursorPosInplace(2); err != nil {
		t.Fatalf("SetCursorPos: %v", err)
	}
	s.UpdateCurByteInplace(byteval.NewSampled(3))

	follow := s.RelocateCursor()
	for _, f := range follow {
		if f.CursorDir == Left && f.CursorPos == 2 {
			t.Fatal("leftward relocation resampled the just-solved byte")
		}
	}
}

func TestRoundTripJSON(t *testing.T) {
	orig, err := New([]byte{1, 2, 3}, byteval.FileInput("/tmp/x"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := orig.ConstrainByteAtInplace(Right, 0, 10, 20); err != nil {
		t.Fatalf("ConstrainByteAt: %v", err)
	}
	data, err := orig.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	back, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if back.ToString() != orig.ToString() {
		t.Fatalf("round trip mismatch: %q vs %q", back.ToString(), orig.ToString())
	}
	if back.CursorPos != orig.CursorPos || back.CursorDir != orig.CursorDir {
		t.Fatalf("round trip cursor mismatch")
	}
}
