// Package branch holds the wire types the instrumented tracer writes
// per execution: BranchInfo records and the BranchPoint identity used
// to group them, plus the newline-delimited JSON trace file format
// described in spec §6.2.
package branch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/greybox/eclipser/internal/bigint"
)

// Type is the kind of comparison the branch instruction performed.
type Type int

const (
	Equality Type = iota
	SignedSize
	UnsignedSize
)

func (t Type) String() string {
	switch t {
	case Equality:
		return "Equality"
	case SignedSize:
		return "SignedSize"
	case UnsignedSize:
		return "UnsignedSize"
	default:
		return "Unknown"
	}
}

func typeFromString(s string) (Type, error) {
	switch s {
	case "Equality":
		return Equality, nil
	case "SignedSize":
		return SignedSize, nil
	case "UnsignedSize":
		return UnsignedSize, nil
	default:
		return 0, fmt.Errorf("branch: unknown branch_type %q", s)
	}
}

// Info is one dynamically observed branch, as recorded by the tracer.
type Info struct {
	InstAddr    uint64
	BranchType  Type
	TryValue    bigint.BigInt
	OperandSize int // one of 1,2,4,8
	Operand1    uint64
	Operand2    uint64
	Distance    bigint.BigInt
}

// Point uniquely identifies a branch location: program counter plus
// per-PC visit count, since a loop body's branch at a fixed address is
// revisited many times in one run and each visit is tracked separately.
type Point struct {
	Addr uint64
	Idx  uint32
}

func (p Point) String() string { return fmt.Sprintf("%#x:%d", p.Addr, p.Idx) }

// wireInfo mirrors the exact on-the-wire JSON record shape from spec
// §6.2: try_value and distance are always big-endian decimal strings.
type wireInfo struct {
	InstAddr    uint64 `json:"inst_addr"`
	BranchType  string `json:"branch_type"`
	TryValue    string `json:"try_value"`
	OperandSize int    `json:"operand_size"`
	Operand1    uint64 `json:"operand1"`
	Operand2    uint64 `json:"operand2"`
	Distance    string `json:"distance"`
}

// ParseRecord parses a single JSON branch-trace record. Malformed
// records are a ParseFailure classified by the caller (the grey-box
// round treats the whole run as having no usable branches); this
// function simply returns the error to let the caller decide.
func ParseRecord(line []byte) (Info, error) {
	var w wireInfo
	if err := json.Unmarshal(line, &w); err != nil {
		return Info{}, fmt.Errorf("branch: ParseFailure: %w", err)
	}
	bt, err := typeFromString(w.BranchType)
	if err != nil {
		return Info{}, fmt.Errorf("branch: ParseFailure: %w", err)
	}
	tv, err := bigint.Parse(w.TryValue)
	if err != nil {
		return Info{}, fmt.Errorf("branch: ParseFailure: invalid try_value: %w", err)
	}
	dist, err := bigint.Parse(w.Distance)
	if err != nil {
		return Info{}, fmt.Errorf("branch: ParseFailure: invalid distance: %w", err)
	}
	switch w.OperandSize {
	case 1, 2, 4, 8:
	default:
		return Info{}, fmt.Errorf("branch: ParseFailure: invalid operand_size %d", w.OperandSize)
	}
	return Info{
		InstAddr:    w.InstAddr,
		BranchType:  bt,
		TryValue:    tv,
		OperandSize: w.OperandSize,
		Operand1:    w.Operand1,
		Operand2:    w.Operand2,
		Distance:    dist,
	}, nil
}

// Encode renders a single record in the wire format, for tests and for
// any local re-emission of synthetic traces.
func Encode(info Info) ([]byte, error) {
	w := wireInfo{
		InstAddr:    info.InstAddr,
		BranchType:  info.BranchType.String(),
		TryValue:    info.TryValue.String(),
		OperandSize: info.OperandSize,
		Operand1:    info.Operand1,
		Operand2:    info.Operand2,
		Distance:    info.Distance.String(),
	}
	return json.Marshal(w)
}

// Trace is the full sequence of BranchInfo records observed during one
// execution.
type Trace []Info

// ParseTrace reads newline-separated JSON branch-trace records from r.
// A line that fails to parse is skipped (treated per-record as having
// no usable branch, per spec §7's ParseFailure policy), rather than
// aborting the whole trace: one corrupt line from a racy tracer write
// should not discard every other branch observed in the same run.
func ParseTrace(r io.Reader) (Trace, error) {
	var out Trace
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		info, err := ParseRecord(line)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("branch: ParseTrace: %w", err)
	}
	return out, nil
}

// GroupByPoint groups a trace's records by BranchPoint, assigning the
// per-PC visit index in order of first appearance within this trace.
func GroupByPoint(t Trace) map[Point]Info {
	out := make(map[Point]Info)
	seen := make(map[uint64]uint32)
	for _, info := range t {
		idx := seen[info.InstAddr]
		seen[info.InstAddr] = idx + 1
		p := Point{Addr: info.InstAddr, Idx: idx}
		out[p] = info
	}
	return out
}
