// Package byteval implements the five-variant byte-value lattice that
// backs every Seed (see internal/seed): Untouched, Undecided, Sampled,
// Interval, and Fixed. The lattice distinguishes bytes the solver is
// free to rewrite (Untouched/Undecided/Sampled) from bytes pinned by
// prior branch evidence (Fixed/Interval).
package byteval

import "fmt"

// Kind tags which of the five lattice variants a ByteVal holds.
type Kind int

const (
	Untouched Kind = iota
	Undecided
	Sampled
	Interval
	Fixed
)

func (k Kind) String() string {
	switch k {
	case Untouched:
		return "Untouched"
	case Undecided:
		return "Undecided"
	case Sampled:
		return "Sampled"
	case Interval:
		return "Interval"
	case Fixed:
		return "Fixed"
	default:
		return "Unknown"
	}
}

// ByteVal is one byte's knowledge-and-mutability state. Interval uses
// Low/High; every other variant uses V (for Interval, V is unused).
type ByteVal struct {
	Kind Kind
	V    byte
	Low  byte
	High byte
}

// NewUntouched builds an Untouched{v} byte value.
func NewUntouched(v byte) ByteVal { return ByteVal{Kind: Untouched, V: v} }

// NewUndecided builds an Undecided{v} byte value.
func NewUndecided(v byte) ByteVal { return ByteVal{Kind: Undecided, V: v} }

// NewSampled builds a Sampled{v} byte value.
func NewSampled(v byte) ByteVal { return ByteVal{Kind: Sampled, V: v} }

// NewFixed builds a Fixed{v} byte value.
func NewFixed(v byte) ByteVal { return ByteVal{Kind: Fixed, V: v} }

// NewInterval builds an Interval{low,high} byte value. If low==high the
// caller should use NewFixed instead; NewInterval does not collapse it
// automatically so callers that rely on the Interval tag (e.g. for
// display) keep it.
func NewInterval(low, high byte) ByteVal {
	return ByteVal{Kind: Interval, Low: low, High: high}
}

// IsConstrained reports whether this byte is Fixed or Interval: it cannot
// be mutated by solvers except by narrowing.
func (b ByteVal) IsConstrained() bool {
	return b.Kind == Fixed || b.Kind == Interval
}

// IsUnfixed reports whether this byte is free for solvers to rewrite:
// Untouched, Undecided, or Sampled.
func (b ByteVal) IsUnfixed() bool {
	return !b.IsConstrained()
}

// Concretize returns the deterministic concrete value of this byte:
// the midpoint for Interval, the stored value for everything else.
func (b ByteVal) Concretize() byte {
	if b.Kind == Interval {
		// Integer midpoint, rounding down; Low <= High is an invariant
		// maintained by every constructor/mutator of Interval.
		return b.Low + (b.High-b.Low)/2
	}
	return b.V
}

// IsNullByte reports whether the concrete value of this byte is zero.
func (b ByteVal) IsNullByte() bool { return b.Concretize() == 0 }

// MinMax returns the concrete-value range for this byte. Fixed and
// Interval bytes report their own stored bounds unconditionally —
// prior branch evidence outranks the source restriction; only unfixed
// bytes fall back to the source's legal range (StdInput 0..127,
// FileInput 0..255).
func (b ByteVal) MinMax(src InputSource) (lo, hi byte) {
	switch b.Kind {
	case Fixed:
		return b.V, b.V
	case Interval:
		return b.Low, b.High
	default:
		return src.ByteRange()
	}
}

// Narrow builds a byte value constrained to [lo,hi]: Fixed{lo} if
// lo==hi, else Interval{lo,hi}, with reversed bounds swapped first.
func Narrow(lo, hi byte) ByteVal {
	if lo == hi {
		return NewFixed(lo)
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return NewInterval(lo, hi)
}

// String renders a single byte value using the tags the Seed dense
// serialization (internal/seed) composes into a full sequence: plain
// hex for Untouched, "!" for Fixed, "@(lo,hi)" for Interval, "?" for
// Undecided, "*" for Sampled.
func (b ByteVal) String() string {
	switch b.Kind {
	case Untouched:
		return fmt.Sprintf("%02x", b.V)
	case Fixed:
		return fmt.Sprintf("%02x!", b.V)
	case Interval:
		return fmt.Sprintf("@(%02x,%02x)", b.Low, b.High)
	case Undecided:
		return fmt.Sprintf("%02x?", b.V)
	case Sampled:
		return fmt.Sprintf("%02x*", b.V)
	default:
		return "??"
	}
}
