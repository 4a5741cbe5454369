package parley

import (
	"sort"
	"testing"
)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if len(id) != 36 {
		t.Errorf("len = %d, want 36", len(id))
	}
	for _, i := range []int{8, 13, 18, 23} {
		if id[i] != '-' {
			t.Errorf("id %q missing separator at %d", id, i)
		}
	}
	// version nibble is 7
	if id[14] != '7' {
		t.Errorf("id %q version = %c, want 7", id, id[14])
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestNewIDTimeOrdered(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = NewID()
	}
	if !sort.StringsAreSorted(ids) {
		t.Error("sequentially generated ids are not lexicographically ordered")
	}
}
