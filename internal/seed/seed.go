// Package seed implements the ordered byte-value sequence plus cursor
// that the grey-box concolic round (internal/concolic) walks while
// probing and solving branches.
package seed

import (
	"strings"

	"github.com/greybox/eclipser/internal/byteval"
	"github.com/greybox/eclipser/internal/ecerr"
)

// MaxInputLen bounds how long a seed's byte_vals may grow.
const MaxInputLen = 1_048_576

// InitInputLen is the length a freshly queued seed starts at.
const InitInputLen = 16

// MaxChunkLen is the largest chunk size (in bytes) a solver may ever
// propose; it bounds QueryUpdateBound and QueryNeighborBytes.
const MaxChunkLen = 8

// Seed is an ordered byte-value sequence plus a cursor.
type Seed struct {
	ByteVals  []byteval.ByteVal
	CursorPos int
	CursorDir Direction
	Source    byteval.InputSource
}

// New constructs a seed from an initial byte slice, defaulting the
// cursor to position 0 and direction Right. Fails with InvalidArgument
// on an empty slice.
func New(bytes []byte, src byteval.InputSource) (Seed, error) {
	if len(bytes) == 0 {
		return Seed{}, ecerr.New(ecerr.KindInvalidArgument, "seed: cannot construct from empty byte vector")
	}
	vals := make([]byteval.ByteVal, len(bytes))
	for i, b := range bytes {
		vals[i] = byteval.NewUntouched(b)
	}
	return Seed{ByteVals: vals, CursorPos: 0, CursorDir: Right, Source: src}, nil
}

// NewFromByteVals constructs a seed directly from already-typed byte
// values (used when importing a persisted seed). Fails with
// InvalidArgument on an empty slice.
func NewFromByteVals(vals []byteval.ByteVal, pos int, dir Direction, src byteval.InputSource) (Seed, error) {
	if len(vals) == 0 {
		return Seed{}, ecerr.New(ecerr.KindInvalidArgument, "seed: cannot construct from empty byte vector")
	}
	if pos < 0 || pos >= len(vals) {
		return Seed{}, ecerr.New(ecerr.KindOutOfRange, "seed: cursor_pos %d out of range for length %d", pos, len(vals))
	}
	cp := make([]byteval.ByteVal, len(vals))
	copy(cp, vals)
	return Seed{ByteVals: cp, CursorPos: pos, CursorDir: dir, Source: src}, nil
}

// Clone returns a deep, independent copy of the seed.
func (s Seed) Clone() Seed {
	cp := make([]byteval.ByteVal, len(s.ByteVals))
	copy(cp, s.ByteVals)
	return Seed{ByteVals: cp, CursorPos: s.CursorPos, CursorDir: s.CursorDir, Source: s.Source}
}

// Len returns the number of byte values in the seed.
func (s Seed) Len() int { return len(s.ByteVals) }

// Concretize produces the concrete byte sequence for execution.
func (s Seed) Concretize() []byte {
	out := make([]byte, len(s.ByteVals))
	for i, bv := range s.ByteVals {
		out[i] = bv.Concretize()
	}
	return out
}

// GetCurByteVal returns byte_vals[cursor_pos].
func (s Seed) GetCurByteVal() byteval.ByteVal {
	return s.ByteVals[s.CursorPos]
}

// IsFinished reports whether stepping in cursor_dir would fall off
// either end: the seed is "finished for this cursor".
func (s Seed) IsFinished() bool {
	switch s.CursorDir {
	case Left:
		return s.CursorPos <= 0
	case Right:
		return s.CursorPos >= len(s.ByteVals)-1
	default:
		return true
	}
}

// ToString renders the dense serialization described in spec §4.1:
// consecutive Untouched bytes collapse to " xx xx xx" if there are 3
// or fewer, else " ...Nbytes...". Every other variant is emitted with
// its own tag via ByteVal.String.
func (s Seed) ToString() string {
	var sb strings.Builder
	i := 0
	for i < len(s.ByteVals) {
		if s.ByteVals[i].Kind == byteval.Untouched {
			j := i
			for j < len(s.ByteVals) && s.ByteVals[j].Kind == byteval.Untouched {
				j++
			}
			run := j - i
			if run <= 3 {
				for k := i; k < j; k++ {
					sb.WriteByte(' ')
					sb.WriteString(s.ByteVals[k].String())
				}
			} else {
				sb.WriteString(" ...")
				sb.WriteString(itoa(run))
				sb.WriteString("bytes...")
			}
			i = j
			continue
		}
		sb.WriteByte(' ')
		sb.WriteString(s.ByteVals[i].String())
		i++
	}
	return sb.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
