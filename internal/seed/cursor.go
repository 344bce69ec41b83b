package seed

import (
	"github.com/greybox/eclipser/internal/byteval"
	"github.com/greybox/eclipser/internal/ecerr"
)

// SetCursorPosInplace moves the cursor to pos without touching any
// byte value. Fails with OutOfRange if pos is not a valid index.
func (s *Seed) SetCursorPosInplace(pos int) error {
	if pos < 0 || pos >= len(s.ByteVals) {
		return ecerr.New(ecerr.KindOutOfRange, "seed: SetCursorPos %d out of range for length %d", pos, len(s.ByteVals))
	}
	s.CursorPos = pos
	return nil
}

// SetCursorPos is the functional (copying) variant of SetCursorPosInplace.
func (s Seed) SetCursorPos(pos int) (Seed, error) {
	out := s.Clone()
	err := out.SetCursorPosInplace(pos)
	return out, err
}

// SetCursorDirInplace sets the cursor's walk direction.
func (s *Seed) SetCursorDirInplace(dir Direction) {
	s.CursorDir = dir
}

// SetCursorDir is the functional variant of SetCursorDirInplace.
func (s Seed) SetCursorDir(dir Direction) Seed {
	out := s.Clone()
	out.SetCursorDirInplace(dir)
	return out
}

// SetByteCursorDirInplace sets both cursor position and direction in
// one call.
func (s *Seed) SetByteCursorDirInplace(pos int, dir Direction) error {
	if err := s.SetCursorPosInplace(pos); err != nil {
		return err
	}
	s.SetCursorDirInplace(dir)
	return nil
}

// SetByteCursorDir is the functional variant.
func (s Seed) SetByteCursorDir(pos int, dir Direction) (Seed, error) {
	out := s.Clone()
	err := out.SetByteCursorDirInplace(pos, dir)
	return out, err
}

// QueryLenToward returns the distance from the cursor to the end of
// the sequence in dir. Fails with InvalidArgument for Stay.
func (s Seed) QueryLenToward(dir Direction) (int, error) {
	switch dir {
	case Left:
		return s.CursorPos, nil
	case Right:
		return len(s.ByteVals) - 1 - s.CursorPos, nil
	default:
		return 0, ecerr.New(ecerr.KindInvalidArgument, "seed: QueryLenToward requires Left or Right, got %s", dir)
	}
}

// QueryUpdateBound returns, along dir, the count of consecutive
// unfixed bytes within [0, MaxChunkLen] starting at the cursor
// (inclusive of the cursor byte itself). This bounds the chunk size a
// solver may propose at this cursor.
func (s Seed) QueryUpdateBound(dir Direction) (int, error) {
	if dir != Left && dir != Right {
		return 0, ecerr.New(ecerr.KindInvalidArgument, "seed: QueryUpdateBound requires Left or Right, got %s", dir)
	}
	step := 1
	if dir == Left {
		step = -1
	}
	count := 0
	idx := s.CursorPos
	for count < MaxChunkLen && idx >= 0 && idx < len(s.ByteVals) {
		if s.ByteVals[idx].IsConstrained() {
			break
		}
		count++
		idx += step
	}
	return count, nil
}

// QueryNeighborBytes returns up to MaxChunkLen+1 concrete bytes
// starting at the cursor, exclusive of the cursor byte itself, walking
// in dir.
func (s Seed) QueryNeighborBytes(dir Direction) ([]byte, error) {
	if dir != Left && dir != Right {
		return nil, ecerr.New(ecerr.KindInvalidArgument, "seed: QueryNeighborBytes requires Left or Right, got %s", dir)
	}
	step := 1
	if dir == Left {
		step = -1
	}
	out := make([]byte, 0, MaxChunkLen+1)
	idx := s.CursorPos + step
	for len(out) < MaxChunkLen+1 && idx >= 0 && idx < len(s.ByteVals) {
		out = append(out, s.ByteVals[idx].Concretize())
		idx += step
	}
	return out, nil
}

// ConstrainByteAtInplace replaces the byte at cursor_pos ± off (off
// measured along dir) with Fixed{lo} if lo==hi, else Interval{lo,hi}.
func (s *Seed) ConstrainByteAtInplace(dir Direction, off int, lo, hi byte) error {
	if dir != Left && dir != Right {
		return ecerr.New(ecerr.KindInvalidArgument, "seed: ConstrainByteAt requires Left or Right, got %s", dir)
	}
	idx := s.CursorPos + off
	if dir == Left {
		idx = s.CursorPos - off
	}
	if idx < 0 || idx >= len(s.ByteVals) {
		return ecerr.New(ecerr.KindOutOfRange, "seed: ConstrainByteAt index %d out of range", idx)
	}
	s.ByteVals[idx] = byteval.Narrow(lo, hi)
	return nil
}

// ConstrainByteAt is the functional variant of ConstrainByteAtInplace.
func (s Seed) ConstrainByteAt(dir Direction, off int, lo, hi byte) (Seed, error) {
	out := s.Clone()
	err := out.ConstrainByteAtInplace(dir, off, lo, hi)
	return out, err
}

// FixCurBytesInplace writes bytes starting at the cursor, in dir,
// pinning each as Fixed: the chunk was solved from branch evidence and
// must not be revisited by cursor walks or re-derived by later solver
// rounds. For Right it extends the sequence with Undecided{0} padding
// if bytes would run past the end. For Left, cursor_pos+1-len(bytes)
// must be >= 0 or the call fails with InvalidArgument (no leftward
// extension).
func (s *Seed) FixCurBytesInplace(dir Direction, bytes []byte) error {
	switch dir {
	case Right:
		needed := s.CursorPos + len(bytes)
		if needed > len(s.ByteVals) {
			if needed > MaxInputLen {
				return ecerr.New(ecerr.KindInvalidArgument, "seed: FixCurBytes would exceed MaxInputLen")
			}
			for len(s.ByteVals) < needed {
				s.ByteVals = append(s.ByteVals, byteval.NewUndecided(0))
			}
		}
		for i, b := range bytes {
			s.ByteVals[s.CursorPos+i] = byteval.NewFixed(b)
		}
		return nil
	case Left:
		start := s.CursorPos + 1 - len(bytes)
		if start < 0 {
			return ecerr.New(ecerr.KindInvalidArgument, "seed: FixCurBytes(Left) would start before index 0")
		}
		for i, b := range bytes {
			s.ByteVals[start+i] = byteval.NewFixed(b)
		}
		return nil
	default:
		return ecerr.New(ecerr.KindInvalidArgument, "seed: FixCurBytes requires Left or Right, got %s", dir)
	}
}

// FixCurBytes is the functional variant of FixCurBytesInplace.
func (s Seed) FixCurBytes(dir Direction, bytes []byte) (Seed, error) {
	out := s.Clone()
	err := out.FixCurBytesInplace(dir, bytes)
	return out, err
}

// UpdateCurByteInplace overwrites byte_vals[cursor_pos].
func (s *Seed) UpdateCurByteInplace(v byteval.ByteVal) {
	s.ByteVals[s.CursorPos] = v
}

// UpdateCurByte is the functional variant of UpdateCurByteInplace.
func (s Seed) UpdateCurByte(v byteval.ByteVal) Seed {
	out := s.Clone()
	out.UpdateCurByteInplace(v)
	return out
}

// StepCursorInplace moves the cursor by one in cursor_dir. Returns
// false if the step would fall off either end (the cursor is left
// unmoved); true on success.
func (s *Seed) StepCursorInplace() bool {
	switch s.CursorDir {
	case Left:
		if s.CursorPos <= 0 {
			return false
		}
		s.CursorPos--
		return true
	case Right:
		if s.CursorPos >= len(s.ByteVals)-1 {
			return false
		}
		s.CursorPos++
		return true
	default:
		return false
	}
}

// StepCursor is the functional variant of StepCursorInplace.
func (s Seed) StepCursor() (Seed, bool) {
	out := s.Clone()
	ok := out.StepCursorInplace()
	return out, ok
}

// MoveToUnfixedByteInplace scans from the current position in
// cursor_dir for the first unfixed byte and, on success, sets the
// cursor there. Returns false (cursor left unmoved) if none is found
// before falling off the end. Calling it again once it has already
// landed on an unfixed byte is a no-op that still returns true
// (idempotent per spec §8).
func (s *Seed) MoveToUnfixedByteInplace() bool {
	if s.CursorDir != Left && s.CursorDir != Right {
		return s.ByteVals[s.CursorPos].IsUnfixed()
	}
	step := 1
	if s.CursorDir == Left {
		step = -1
	}
	idx := s.CursorPos
	for idx >= 0 && idx < len(s.ByteVals) {
		if s.ByteVals[idx].IsUnfixed() {
			s.CursorPos = idx
			return true
		}
		idx += step
	}
	return false
}

// MoveToUnfixedByte is the functional variant.
func (s Seed) MoveToUnfixedByte() (Seed, bool) {
	out := s.Clone()
	ok := out.MoveToUnfixedByteInplace()
	return out, ok
}

// ProceedCursorInplace is StepCursor followed by MoveToUnfixedByte.
func (s *Seed) ProceedCursorInplace() bool {
	if !s.StepCursorInplace() {
		return false
	}
	return s.MoveToUnfixedByteInplace()
}

// ProceedCursor is the functional variant of ProceedCursorInplace.
func (s Seed) ProceedCursor() (Seed, bool) {
	out := s.Clone()
	ok := out.ProceedCursorInplace()
	return out, ok
}

// RelocateCursor attempts both Left and Right follow-ups after
// stepping past the current byte, returning 0-2 seeds with the cursor
// advanced and pointed at the next unfixed byte in each direction. If
// the current byte is Sampled, the leftward variant steps first (via
// ProceedCursor semantics starting from Left) to avoid resampling the
// byte that was just solved.
func (s Seed) RelocateCursor() []Seed {
	var out []Seed

	rightSeed := s.Clone()
	rightSeed.CursorDir = Right
	if rightSeed.ProceedCursorInplace() {
		out = append(out, rightSeed)
	}

	// The leftward variant always steps before searching for the next
	// unfixed byte. This matters specifically when the current byte is
	// Sampled: Sampled counts as unfixed, so searching without first
	// stepping would land right back on the byte the solver just
	// fixed and resample it.
	leftSeed := s.Clone()
	leftSeed.CursorDir = Left
	if leftSeed.ProceedCursorInplace() {
		out = append(out, leftSeed)
	}

	return out
}
