// Package ecerr defines the error taxonomy shared across the fuzzing
// engine: a small set of sentinel kinds wrapped with context via
// fmt.Errorf("%w: ...") rather than a bespoke error framework.
package ecerr

import (
	"errors"
	"fmt"
)

// Kind identifies which bucket of the engine's error taxonomy an error
// belongs to. Callers branch on it with errors.Is against the Err*
// sentinels below, never by comparing Kind directly.
type Kind int

const (
	// KindInvalidArgument covers caller misuse: a Stay direction where
	// only Left/Right is valid, an empty byte vector at seed
	// construction, a chunk size larger than the allowed context.
	KindInvalidArgument Kind = iota
	// KindOutOfRange covers a cursor or index past the end of a byte
	// sequence.
	KindOutOfRange
	// KindExecutionFailure covers fork/exec/pipe/tracer I/O failure.
	// The core aborts the process after logging; recovery is not
	// attempted.
	KindExecutionFailure
	// KindTimeout covers a target exceeding exec_timeout. Recovered
	// locally: the run is classified and the fuzzing loop continues.
	KindTimeout
	// KindParseFailure covers malformed JSON in a branch-trace record.
	// The run is treated as having no usable branches.
	KindParseFailure
	// KindUnreachable covers invariants violated by the caller (e.g. a
	// slope-search helper invoked on samples that are not sorted).
	// Process-fatal.
	KindUnreachable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindOutOfRange:
		return "OutOfRange"
	case KindExecutionFailure:
		return "ExecutionFailure"
	case KindTimeout:
		return "Timeout"
	case KindParseFailure:
		return "ParseFailure"
	case KindUnreachable:
		return "Unreachable"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carrying a Kind plus a message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Sentinels used with errors.Is to classify a wrapped *Error by Kind
// without exposing the Kind field to every call site.
var (
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument, Msg: "invalid argument"}
	ErrOutOfRange       = &Error{Kind: KindOutOfRange, Msg: "out of range"}
	ErrExecutionFailure = &Error{Kind: KindExecutionFailure, Msg: "execution failure"}
	ErrTimeout          = &Error{Kind: KindTimeout, Msg: "timeout"}
	ErrParseFailure     = &Error{Kind: KindParseFailure, Msg: "parse failure"}
	ErrUnreachable      = &Error{Kind: KindUnreachable, Msg: "unreachable"}
)

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an error of the given kind with a formatted message,
// wrapping the matching sentinel so errors.Is(err, ErrXxx) works.
func New(kind Kind, format string, args ...interface{}) error {
	sentinel := sentinelFor(kind)
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %s", sentinel, msg)
}

func sentinelFor(kind Kind) *Error {
	switch kind {
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindOutOfRange:
		return ErrOutOfRange
	case KindExecutionFailure:
		return ErrExecutionFailure
	case KindTimeout:
		return ErrTimeout
	case KindParseFailure:
		return ErrParseFailure
	case KindUnreachable:
		return ErrUnreachable
	default:
		return ErrUnreachable
	}
}

// Is reports whether err is classified under kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, sentinelFor(kind))
}
