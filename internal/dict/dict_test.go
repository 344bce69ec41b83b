package dict

import (
	"reflect"
	"testing"
)

func TestAddDeduplicatesAndCopies(t *testing.T) {
	d := New()
	tok := []byte{1, 2, 3}
	d.Add(tok)
	d.Add([]byte{1, 2, 3})
	d.Add(nil)
	if d.Len() != 1 {
		t.Fatalf("expected 1 distinct token, got %d", d.Len())
	}

	tok[0] = 99
	if got := d.Tokens()[0][0]; got != 1 {
		t.Fatalf("expected the stored token to be an independent copy, got first byte %d", got)
	}
}

func TestSortDictByLengthOrdersByLengthThenBytes(t *testing.T) {
	toks := [][]byte{{9, 9}, {1}, {2, 0}, {0}}
	got := SortDictByLength(toks)
	want := [][]byte{{0}, {1}, {2, 0}, {9, 9}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSortDictByLengthIdempotent(t *testing.T) {
	toks := [][]byte{{5, 5, 5}, {1}, {3, 4}, {2}}
	once := SortDictByLength(toks)
	twice := SortDictByLength(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("sorting a sorted dictionary changed it: %v vs %v", once, twice)
	}
}
