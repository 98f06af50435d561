package forest

import (
	"math"
	"sort"

	"github.com/tinyforest/mcuforest/dataset"
)

// giniImpurity and entropyImpurity both take a per-label count vector
// and the total it sums to (passed separately so callers that already
// tracked the running total during a histogram pass don't re-sum it).
func giniImpurity(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	sum := 0.0
	inv := 1.0 / float64(total)
	for _, c := range counts {
		p := float64(c) * inv
		sum += p * p
	}
	return 1 - sum
}

func entropyImpurity(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	inv := 1.0 / float64(total)
	e := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) * inv
		e -= p * math.Log2(p)
	}
	return e
}

func impurityOf(counts []int, total int, useGini bool) float64 {
	if useGini {
		return giniImpurity(counts, total)
	}
	return entropyImpurity(counts, total)
}

// splitCandidate is the winning (feature, threshold slot) found by
// bestSplit, along with the gain it achieved.
type splitCandidate struct {
	featureID uint16
	slot      uint8
	gain      float64
	found     bool
}

// better reports whether candidate c should replace the current best
// o: strictly higher gain wins; a tie is broken by lower feature id,
// then by lower slot. The tie-break is explicit (rather than relying
// on iteration order) so the result is identical whether bestSplit
// scans sequentially or in parallel.
func (c splitCandidate) better(o splitCandidate) bool {
	if !o.found {
		return c.found
	}
	if !c.found {
		return false
	}
	if c.gain != o.gain {
		return c.gain > o.gain
	}
	if c.featureID != o.featureID {
		return c.featureID < o.featureID
	}
	return c.slot < o.slot
}

// maxSlotFor returns the highest candidate threshold slot for a given
// quantization bit-width: 2^B - 1.
func maxSlotFor(quantization uint8) uint8 {
	return uint8((1 << quantization) - 1)
}

// bestSplit scans every (feature, threshold slot) combination over
// indices' samples and returns the split maximising impurity gain.
// features need not be pre-sorted; bestSplit sorts its own copy so the
// tie-break rule above is well defined regardless of caller order (the
// reservoir sampler that produces features makes no ordering promise).
func bestSplit(ds *dataset.Dataset, indices []uint16, features []uint16, numLabels int, minLeaf int, useGini bool, parallelism int) splitCandidate {
	sorted := append([]uint16(nil), features...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parentCounts := make([]int, numLabels)
	for _, idx := range indices {
		parentCounts[ds.Samples[idx].Label]++
	}
	parentImpurity := impurityOf(parentCounts, len(indices), useGini)
	maxSlot := maxSlotFor(ds.QuantizationCoefficient)

	scan := func(feats []uint16) splitCandidate {
		best := splitCandidate{}
		for _, f := range feats {
			best = best.mergeFeature(ds, indices, f, maxSlot, numLabels, minLeaf, useGini, parentImpurity)
		}
		return best
	}

	if parallelism < 2 || len(sorted) < 2*parallelism {
		return scan(sorted)
	}

	chunks := chunkFeatures(sorted, parallelism)
	results := make([]splitCandidate, len(chunks))
	done := make(chan int, len(chunks))
	for i, chunk := range chunks {
		go func(i int, chunk []uint16) {
			results[i] = scan(chunk)
			done <- i
		}(i, chunk)
	}
	for range chunks {
		<-done
	}
	best := splitCandidate{}
	for _, r := range results {
		if r.better(best) {
			best = r
		}
	}
	return best
}

func chunkFeatures(features []uint16, parallelism int) [][]uint16 {
	chunks := make([][]uint16, 0, parallelism)
	n := len(features)
	base := n / parallelism
	rem := n % parallelism
	start := 0
	for i := 0; i < parallelism && start < n; i++ {
		size := base
		if i < rem {
			size++
		}
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, features[start:end])
		start = end
	}
	return chunks
}

// mergeFeature scans every threshold slot for one feature and folds the
// best one found into the running best candidate.
func (best splitCandidate) mergeFeature(ds *dataset.Dataset, indices []uint16, f uint16, maxSlot uint8, numLabels, minLeaf int, useGini bool, parentImpurity float64) splitCandidate {
	n := len(indices)
	for s := uint8(0); ; s++ {
		left := make([]int, numLabels)
		right := make([]int, numLabels)
		leftN, rightN := 0, 0
		for _, idx := range indices {
			sample := ds.Samples[idx]
			if int(f) >= len(sample.Features) {
				continue
			}
			if sample.Features[f] <= s {
				left[sample.Label]++
				leftN++
			} else {
				right[sample.Label]++
				rightN++
			}
		}
		if leftN >= minLeaf && rightN >= minLeaf && n > 0 {
			weightedChild := (float64(leftN)/float64(n))*impurityOf(left, leftN, useGini) +
				(float64(rightN)/float64(n))*impurityOf(right, rightN, useGini)
			candidate := splitCandidate{featureID: f, slot: s, gain: parentImpurity - weightedChild, found: true}
			if candidate.better(best) {
				best = candidate
			}
		}
		if s == maxSlot {
			break
		}
	}
	return best
}

// scaledImpurityThreshold shrinks the configured impurity threshold
// with node size: threshold' = impurity_threshold / (1 + log2(n+1)),
// clamped to a floor of 1e-4 so a very large node never drives the
// threshold to (effectively) zero and accepts a noise split.
func scaledImpurityThreshold(base float64, n int) float64 {
	scaled := base / (1 + math.Log2(float64(n+1)))
	if scaled < 1e-4 {
		return 1e-4
	}
	return scaled
}
