package mcuforest

import (
	"math/rand/v2"
	"sort"
	"testing"
)

func TestLongestCommonPrefix(t *testing.T) {
	cases := []struct {
		a, b []byte
		want int
	}{
		{[]byte{1, 2, 3}, []byte{1, 2, 3}, 3},
		{[]byte{1, 2, 3}, []byte{1, 2, 4}, 2},
		{[]byte{1, 2}, []byte{1, 2, 3}, 2},
		{[]byte{}, []byte{1}, 0},
		{[]byte{9}, []byte{1}, 0},
	}
	for _, c := range cases {
		got := LongestCommonPrefix(FromBytes(c.a), FromBytes(c.b))
		if got != c.want {
			t.Fatalf("LongestCommonPrefix(%v,%v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestSortIndicesByKeySortsAscending(t *testing.T) {
	values := []int{5, 3, 8, 1, 9, 2, 7, 0, 4, 6}
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	at := func(i int) Key { return FromInt(values[i]) }
	SortIndicesByKey(idx, at)

	prev := values[idx[0]]
	for _, i := range idx[1:] {
		if values[i] < prev {
			t.Fatalf("sortIndicesByKey did not produce ascending order: %v", idx)
		}
		prev = values[i]
	}
}

func TestSortIndicesByKeyMatchesStdlibSort(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	n := 500
	values := make([]int, n)
	for i := range values {
		values[i] = r.IntN(1000)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	at := func(i int) Key { return FromInt(values[i]) }
	SortIndicesByKey(idx, at)

	want := make([]int, n)
	copy(want, values)
	sort.Ints(want)

	for i, originalIdx := range idx {
		if values[originalIdx] != want[i] {
			t.Fatalf("position %d: got %d, want %d", i, values[originalIdx], want[i])
		}
	}
}

func TestSortIndicesByKeyEmptyAndSingleton(t *testing.T) {
	at := func(i int) Key { return FromInt(0) }
	empty := []int{}
	SortIndicesByKey(empty, at)
	if len(empty) != 0 {
		t.Fatalf("empty slice should remain empty")
	}
	single := []int{0}
	SortIndicesByKey(single, at)
	if single[0] != 0 {
		t.Fatalf("singleton slice should be unchanged")
	}
}

func TestBubbleSortFallbackUsedAtZeroDepth(t *testing.T) {
	values := []int{4, 2, 3, 1}
	idx := []int{0, 1, 2, 3}
	at := func(i int) Key { return FromInt(values[i]) }
	quicksortFallback(idx, at, 0)
	prev := values[idx[0]]
	for _, i := range idx[1:] {
		if values[i] < prev {
			t.Fatalf("bubble-sort fallback path did not sort: %v", idx)
		}
		prev = values[i]
	}
}
