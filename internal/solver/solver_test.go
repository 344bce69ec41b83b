package solver

import (
	"testing"

	"github.com/greybox/eclipser/internal/bigint"
	"github.com/greybox/eclipser/internal/models"
	"github.com/greybox/eclipser/internal/seed"
)

func TestChunkValueRightBigEndian(t *testing.T) {
	// cursor byte 0x01, context (walking right) [0x02, 0x03, 0x04, ...]
	ctx := []byte{0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}
	x, err := ChunkValue(seed.Right, 0x01, ctx, Shape{models.BigEndian, 2})
	if err != nil {
		t.Fatalf("ChunkValue: %v", err)
	}
	if x.Int64() != 0x0102 {
		t.Fatalf("expected 0x0102, got %#x", x.Int64())
	}
}

func TestChunkValueRightLittleEndian(t *testing.T) {
	ctx := []byte{0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}
	x, err := ChunkValue(seed.Right, 0x01, ctx, Shape{models.LittleEndian, 2})
	if err != nil {
		t.Fatalf("ChunkValue: %v", err)
	}
	if x.Int64() != 0x0201 {
		t.Fatalf("expected 0x0201, got %#x", x.Int64())
	}
}

func TestChunkValueLeftBigEndian(t *testing.T) {
	// cursor byte 0x01 sits at the chunk's highest address; context
	// (walking left, nearest first) is [0x02, 0x03, ...], so the chunk
	// in address order is 0x03, 0x02, 0x01.
	ctx := []byte{0x02, 0x03, 0x04}
	x, err := ChunkValue(seed.Left, 0x01, ctx, Shape{models.BigEndian, 3})
	if err != nil {
		t.Fatalf("ChunkValue: %v", err)
	}
	if x.Int64() != 0x030201 {
		t.Fatalf("expected 0x030201, got %#x", x.Int64())
	}
}

func TestChunkValueInsufficientContext(t *testing.T) {
	_, err := ChunkValue(seed.Right, 0x01, []byte{0x02}, Shape{models.BigEndian, 4})
	if err == nil {
		t.Fatal("expected error for insufficient context")
	}
}

func TestBigIntToBytesRoundTrips(t *testing.T) {
	cases := []struct {
		endian models.Endian
		size   int
		v      int64
	}{
		{models.BigEndian, 1, 0x41},
		{models.LittleEndian, 2, 0x1234},
		{models.BigEndian, 4, 0xdeadbeef},
		{models.LittleEndian, 8, 0x0102030405060708},
	}
	for _, c := range cases {
		v := bigint.FromInt64(c.v)
		bs := BigIntToBytes(c.endian, c.size, v)
		if len(bs) != c.size {
			t.Fatalf("%v size %d: expected %d bytes, got %d", c.endian, c.size, c.size, len(bs))
		}
		back := BytesToBigInt(c.endian, bs)
		if !back.Equal(v) {
			t.Fatalf("%v size %d: round trip of %#x gave %s", c.endian, c.size, c.v, back)
		}
	}
}

func TestAllowedChunkSizesFiltersBySize(t *testing.T) {
	shapes := allowedChunkSizes(0) // ctx.bytes.size()+1 == 1
	for _, sh := range shapes {
		if sh.Size > 1 {
			t.Fatalf("expected only size-1 shapes with zero context, got %+v", sh)
		}
	}
	if len(shapes) == 0 {
		t.Fatal("expected at least the (BE,1) shape to remain")
	}
}

func TestSolveEquationFindsSmallestChunkFirst(t *testing.T) {
	// Branch target 0x41. Try-values chosen so the byte itself, in
	// isolation (chunk size 1), already satisfies y == x.
	trials := [3]Trial{
		{TryValue: 0x01, Y: bigint.FromInt64(0x01)},
		{TryValue: 0x02, Y: bigint.FromInt64(0x02)},
		{TryValue: 0x03, Y: bigint.FromInt64(0x03)},
	}
	ctx := []byte{0xaa, 0xbb, 0xcc}
	res := SolveEquation(seed.Right, trials, ctx, bigint.FromInt64(0x41), 1)
	if res.Kind != models.KindSolvable {
		t.Fatalf("expected KindSolvable, got %v", res.Kind)
	}
	if res.ChunkSize != 1 {
		t.Fatalf("expected the smallest chunk size (1) to win first, got %d", res.ChunkSize)
	}
	if res.Endian != models.BigEndian {
		t.Fatalf("expected BE to be tried before LE at equal size, got %v", res.Endian)
	}
}

func TestSolveEquationNonLinearAbortsSearch(t *testing.T) {
	trials := [3]Trial{
		{TryValue: 0x01, Y: bigint.FromInt64(3)},
		{TryValue: 0x02, Y: bigint.FromInt64(9)},
		{TryValue: 0x03, Y: bigint.FromInt64(2)},
	}
	res := SolveEquation(seed.Right, trials, nil, bigint.FromInt64(5), 1)
	if res.Kind != models.KindNonLinear {
		t.Fatalf("expected KindNonLinear, got %v", res.Kind)
	}
}

func TestSolveInequalityReturnsStraddlingBound(t *testing.T) {
	trials := [3]Trial{
		{TryValue: 0x01, Y: bigint.FromInt64(1)},
		{TryValue: 0x02, Y: bigint.FromInt64(2)},
		{TryValue: 0x03, Y: bigint.FromInt64(3)},
	}
	res := SolveInequality(seed.Right, trials, nil, bigint.FromInt64(100), 1, models.Unsigned)
	if res.Kind != models.KindLinearInequality {
		t.Fatalf("expected KindLinearInequality, got %v", res.Kind)
	}
}
