// Package solver turns a branch modeler result into concrete candidate
// byte-chunks: it tries the fixed chunk-shape search order of spec
// §4.3 over the shared (equation/inequality) code path so the
// context-size skip rule is expressed in exactly one place.
package solver

import (
	"sort"

	"github.com/greybox/eclipser/internal/bigint"
	"github.com/greybox/eclipser/internal/ecerr"
	"github.com/greybox/eclipser/internal/models"
	"github.com/greybox/eclipser/internal/seed"
)

// Shape is one (endian, size) chunk shape.
type Shape struct {
	Endian models.Endian
	Size   int
}

// Shapes is the fixed chunk-shape search order: stop at the first
// Solvable result; a NonLinear intermediate result aborts the whole
// search (this branch is not linear at any size).
var Shapes = []Shape{
	{models.BigEndian, 1},
	{models.BigEndian, 2},
	{models.LittleEndian, 2},
	{models.BigEndian, 4},
	{models.LittleEndian, 4},
	{models.BigEndian, 8},
	{models.LittleEndian, 8},
}

// allowedChunkSizes filters Shapes to those whose size does not exceed
// contextLen+1, where contextLen is the number of neighbor bytes
// available at the cursor (spec §4.3: "chunk shapes whose size exceeds
// ctx.bytes.size()+1 are skipped"). Both SolveEquation and
// SolveInequality call this, so the rule is enforced once.
func allowedChunkSizes(contextLen int) []Shape {
	limit := contextLen + 1
	out := make([]Shape, 0, len(Shapes))
	for _, sh := range Shapes {
		if sh.Size <= limit {
			out = append(out, sh)
		}
	}
	return out
}

// Trial is one (try_value, branch_operand) observation for a single
// candidate branch, taken from one of the N_spawn executions sharing
// the same cursor and neighbor-byte context.
type Trial struct {
	TryValue byte
	Y        bigint.BigInt
}

// chunkBytes builds the chunk's bytes in ascending-address order per
// spec §4.2.1. neighborBytes is the context returned by
// Seed.QueryNeighborBytes(dir): nearest-to-cursor first, exclusive of
// the cursor byte itself.
//
// For dir=Right the cursor byte sits at the chunk's lowest address, so
// the chunk is [try_value, neighborBytes[0:size-1]...] directly. For
// dir=Left the cursor byte sits at the chunk's highest address and
// neighborBytes walks backward from it, so the leading size-1 context
// bytes are reversed into address order before appending try_value.
func chunkBytes(dir seed.Direction, tryValue byte, neighborBytes []byte, size int) ([]byte, error) {
	need := size - 1
	if need > len(neighborBytes) {
		return nil, ecerr.New(ecerr.KindOutOfRange, "solver: chunk size %d needs %d context bytes, have %d", size, need, len(neighborBytes))
	}
	out := make([]byte, 0, size)
	switch dir {
	case seed.Right:
		out = append(out, tryValue)
		out = append(out, neighborBytes[:need]...)
	case seed.Left:
		for i := need - 1; i >= 0; i-- {
			out = append(out, neighborBytes[i])
		}
		out = append(out, tryValue)
	default:
		return nil, ecerr.New(ecerr.KindInvalidArgument, "solver: chunk concatenation requires Left or Right, got %s", dir)
	}
	return out, nil
}

// BytesToBigInt interprets a chunk's address-ordered bytes as an
// integer under the given endianness.
func BytesToBigInt(endian models.Endian, bs []byte) bigint.BigInt {
	v := bigint.Zero()
	if endian == models.BigEndian {
		for _, b := range bs {
			v = v.Lsh(8).Add(bigint.FromInt64(int64(b)))
		}
		return v
	}
	for i := len(bs) - 1; i >= 0; i-- {
		v = v.Lsh(8).Add(bigint.FromInt64(int64(bs[i])))
	}
	return v
}

// BigIntToBytes renders v as size address-ordered bytes under the
// given endianness, the inverse of BytesToBigInt for values in
// [0, 2^(8*size)).
func BigIntToBytes(endian models.Endian, size int, v bigint.BigInt) []byte {
	out := make([]byte, size)
	base := bigint.FromInt64(256)
	for i := 0; i < size; i++ {
		idx := i
		if endian == models.BigEndian {
			idx = size - 1 - i
		}
		out[idx] = byte(v.Rem(base).Int64())
		v = v.Quo(base)
	}
	return out
}

// ChunkValue computes the chunk integer x_i for one trial under shape
// and dir, given the neighbor-byte context shared by every trial at
// this cursor position.
func ChunkValue(dir seed.Direction, tryValue byte, neighborBytes []byte, shape Shape) (bigint.BigInt, error) {
	bs, err := chunkBytes(dir, tryValue, neighborBytes, shape.Size)
	if err != nil {
		return bigint.BigInt{}, err
	}
	return BytesToBigInt(shape.Endian, bs), nil
}

// buildSamples computes and sorts the three (x,y) samples for one
// shape. It reports ok=false if any two trials collapse to the same
// chunk value under this shape (FindCommonSlope's x1<x2<x3 precondition
// would then be unsatisfiable), in which case the caller skips the
// shape rather than treating it as a modeling failure.
func buildSamples(dir seed.Direction, trials [3]Trial, neighborBytes []byte, shape Shape) ([3]models.Sample, bool) {
	var samples [3]models.Sample
	for i, tr := range trials {
		x, err := ChunkValue(dir, tr.TryValue, neighborBytes, shape)
		if err != nil {
			return samples, false
		}
		samples[i] = models.Sample{X: x, Y: tr.Y}
	}
	sort.Slice(samples[:], func(i, j int) bool { return samples[i].X.Less(samples[j].X) })
	if samples[0].X.Equal(samples[1].X) || samples[1].X.Equal(samples[2].X) {
		return samples, false
	}
	return samples, true
}

// SolveEquation searches the fixed chunk-shape order for an Equality
// branch and returns the first Solvable result (tagged with the
// winning shape's endian), the terminal NonLinear result if a shape
// proves the branch non-linear (search aborts immediately per §4.3),
// or Unsolvable if every allowed shape was tried without success.
func SolveEquation(dir seed.Direction, trials [3]Trial, neighborBytes []byte, targetY bigint.BigInt, cmpSize int) models.Result {
	for _, shape := range allowedChunkSizes(len(neighborBytes)) {
		samples, ok := buildSamples(dir, trials, neighborBytes, shape)
		if !ok {
			continue
		}
		res := models.SolveLinearEquation(samples, targetY, cmpSize, shape.Size)
		switch res.Kind {
		case models.KindNonLinear:
			return res
		case models.KindSolvable:
			res.Endian = shape.Endian
			return res
		}
	}
	return models.Unsolvable()
}

// SolveInequality is the analogous shape search for SignedSize /
// UnsignedSize branches.
func SolveInequality(dir seed.Direction, trials [3]Trial, neighborBytes []byte, targetY bigint.BigInt, cmpSize int, sign models.Sign) models.Result {
	for _, shape := range allowedChunkSizes(len(neighborBytes)) {
		samples, ok := buildSamples(dir, trials, neighborBytes, shape)
		if !ok {
			continue
		}
		res := models.SolveLinearInequality(samples, targetY, cmpSize, shape.Size, sign)
		switch res.Kind {
		case models.KindNonLinear:
			return res
		case models.KindLinearInequality:
			res.Endian = shape.Endian
			res.ChunkSize = shape.Size
			return res
		}
	}
	return models.Unsolvable()
}
