// Package dict keeps the token dictionary of byte-chunks the solver
// has concretely proven to flip a branch. Tokens accumulate across
// rounds and are exposed (sorted by length) through the dashboard, the
// same way AFL-style fuzzers share discovered magic values.
package dict

import (
	"bytes"
	"sort"
	"sync"
)

// Dict is a deduplicated token set. Safe for the fuzz loop to write
// while the dashboard reads.
type Dict struct {
	mu   sync.Mutex
	seen map[string]bool
	toks [][]byte
}

// New returns an empty dictionary.
func New() *Dict {
	return &Dict{seen: make(map[string]bool)}
}

// Add records one token, ignoring duplicates and empty chunks. The
// token is copied; the caller keeps ownership of its slice.
func (d *Dict) Add(tok []byte) {
	if len(tok) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := string(tok)
	if d.seen[key] {
		return
	}
	d.seen[key] = true
	cp := make([]byte, len(tok))
	copy(cp, tok)
	d.toks = append(d.toks, cp)
}

// Len reports the number of distinct tokens.
func (d *Dict) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.toks)
}

// Tokens returns a snapshot of the tokens in insertion order.
func (d *Dict) Tokens() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.toks))
	copy(out, d.toks)
	return out
}

// SortDictByLength orders tokens by length, breaking ties
// lexicographically. The order is total, so sorting an already-sorted
// dictionary is a no-op.
func SortDictByLength(toks [][]byte) [][]byte {
	out := make([][]byte, len(toks))
	copy(out, toks)
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		return bytes.Compare(out[i], out[j]) < 0
	})
	return out
}
