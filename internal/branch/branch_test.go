package branch

import (
	"strings"
	"testing"

	"github.com/greybox/eclipser/internal/bigint"
)

func TestParseRecordRoundTrip(t *testing.T) {
	info := Info{
		InstAddr:    0x401234,
		BranchType:  SignedSize,
		TryValue:    bigint.FromInt64(65),
		OperandSize: 4,
		Operand1:    10,
		Operand2:    20,
		Distance:    bigint.FromInt64(-10),
	}
	line, err := Encode(info)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := ParseRecord(line)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	// Field-by-field: Info holds BigInt values, which compare by inner
	// pointer under ==.
	if got.InstAddr != info.InstAddr || got.BranchType != info.BranchType ||
		!got.TryValue.Equal(info.TryValue) || got.OperandSize != info.OperandSize ||
		got.Operand1 != info.Operand1 || got.Operand2 != info.Operand2 ||
		!got.Distance.Equal(info.Distance) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, info)
	}
}

func TestParseRecordRejectsUnknownBranchType(t *testing.T) {
	_, err := ParseRecord([]byte(`{"inst_addr":1,"branch_type":"Bogus","try_value":"1","operand_size":1,"operand1":1,"operand2":1,"distance":"0"}`))
	if err == nil {
		t.Fatal("expected error for unknown branch_type")
	}
}

func TestParseRecordRejectsBadOperandSize(t *testing.T) {
	_, err := ParseRecord([]byte(`{"inst_addr":1,"branch_type":"Equality","try_value":"1","operand_size":3,"operand1":1,"operand2":1,"distance":"0"}`))
	if err == nil {
		t.Fatal("expected error for invalid operand_size")
	}
}

func TestParseTraceSkipsBadLines(t *testing.T) {
	good := `{"inst_addr":1,"branch_type":"Equality","try_value":"65","operand_size":1,"operand1":65,"operand2":65,"distance":"0"}`
	input := strings.Join([]string{
		good,
		"not json at all",
		"",
		good,
	}, "\n")

	tr, err := ParseTrace(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTrace: %v", err)
	}
	if len(tr) != 2 {
		t.Fatalf("expected 2 parsed records, got %d", len(tr))
	}
}

func TestGroupByPointAssignsPerPCVisitIndex(t *testing.T) {
	mk := func(addr uint64, tv int64) Info {
		return Info{InstAddr: addr, BranchType: Equality, TryValue: bigint.FromInt64(tv), OperandSize: 1, Distance: bigint.FromInt64(0)}
	}
	tr := Trace{mk(0x10, 1), mk(0x10, 2), mk(0x20, 3), mk(0x10, 4)}
	grouped := GroupByPoint(tr)

	if len(grouped) != 4 {
		t.Fatalf("expected 4 distinct points, got %d", len(grouped))
	}
	if grouped[Point{Addr: 0x10, Idx: 0}].TryValue.Int64() != 1 {
		t.Fatal("first visit to 0x10 mismatched")
	}
	if grouped[Point{Addr: 0x10, Idx: 1}].TryValue.Int64() != 2 {
		t.Fatal("second visit to 0x10 mismatched")
	}
	if grouped[Point{Addr: 0x10, Idx: 2}].TryValue.Int64() != 4 {
		t.Fatal("third visit to 0x10 mismatched")
	}
	if grouped[Point{Addr: 0x20, Idx: 0}].TryValue.Int64() != 3 {
		t.Fatal("visit to 0x20 mismatched")
	}
}

func TestPointString(t *testing.T) {
	p := Point{Addr: 0x401234, Idx: 2}
	if got := p.String(); got != "0x401234:2" {
		t.Fatalf("unexpected Point.String(): %q", got)
	}
}
