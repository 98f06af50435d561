package mcuforest

// SortIndicesByKey sorts idx in place by comparing the Key each index
// maps to via at(). It is quicksort with a recursion-depth limit that
// falls back to bubble sort, which bounds recursion depth (and so stack
// use) on adversarial inputs that defeat the middle-element pivot; the
// bubble-sort fallback itself is O(n^2). Depth is
// threaded explicitly through the call rather than kept in a package
// global, so concurrent sorts never share state.
//
// forest.partitionByFeature uses this to order a tree node's sample
// indices by a candidate feature's quantized value before splitting
// them into the left/right child ranges: partitioning makes no
// stability promise, so a full ascending sort is as valid a partition
// as a minimal two-pointer swap.
func SortIndicesByKey(idx []int, at func(i int) Key) {
	maxDepth := 2 * bitLength(len(idx))
	quicksortFallback(idx, at, maxDepth)
}

func bitLength(n int) int {
	l := 0
	for n > 0 {
		n >>= 1
		l++
	}
	return l
}

func quicksortFallback(idx []int, at func(i int) Key, depth int) {
	if len(idx) < 2 {
		return
	}
	if depth <= 0 {
		bubbleSort(idx, at)
		return
	}
	p := partition(idx, at)
	quicksortFallback(idx[:p], at, depth-1)
	quicksortFallback(idx[p+1:], at, depth-1)
}

func partition(idx []int, at func(i int) Key) int {
	mid := len(idx) / 2
	idx[mid], idx[len(idx)-1] = idx[len(idx)-1], idx[mid]
	pivot := at(idx[len(idx)-1])
	store := 0
	for i := 0; i < len(idx)-1; i++ {
		if at(idx[i]).LessThan(pivot) {
			idx[i], idx[store] = idx[store], idx[i]
			store++
		}
	}
	idx[store], idx[len(idx)-1] = idx[len(idx)-1], idx[store]
	return store
}

func bubbleSort(idx []int, at func(i int) Key) {
	for i := 0; i < len(idx); i++ {
		swapped := false
		for j := 0; j < len(idx)-i-1; j++ {
			if at(idx[j+1]).LessThan(at(idx[j])) {
				idx[j], idx[j+1] = idx[j+1], idx[j]
				swapped = true
			}
		}
		if !swapped {
			return
		}
	}
}

// LongestCommonPrefix returns the number of leading bytes shared by a
// and b.
func LongestCommonPrefix(a, b Key) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
