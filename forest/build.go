package forest

import (
	"math"

	set3 "github.com/TomTonic/Set3"

	mcuforest "github.com/tinyforest/mcuforest"
	"github.com/tinyforest/mcuforest/dataset"
	"github.com/tinyforest/mcuforest/rng"
	"github.com/tinyforest/mcuforest/tree"
)

// Hyperparams bundles the per-candidate hyperparameter values one grid
// cell fixes for every tree in a forest build.
type Hyperparams struct {
	MinSplit          int
	MinLeaf           int
	MaxDepth          int
	UseGini           bool
	ImpurityThreshold float64
	Parallelism       int
}

// maxBagRetries bounds the bag-hash-collision retry loop; after this
// many nonce bumps the colliding bag is accepted anyway, since a
// duplicate bag costs a little tree diversity while an unbounded retry
// loop could stall training.
const maxBagRetries = 8

// drawBag draws one tree's bootstrap/subsample bag from population
// (sample indices into ds, e.g. the full dataset or a k-fold's
// non-held-out subset), retrying with an incremented nonce up to
// maxBagRetries times whenever the resulting bag's fingerprint
// collides with one already in seen. base is the per-forest-build root
// Rng; streamID keys the derivation (tree index alone for OOB/hold-out
// runs, or a fold-and-tree composite for k-fold).
func drawBag(base *rng.Rng, streamID uint64, population []uint16, useBootstrap bool, bootstrapRatio float64, seen *set3.Set3[uint64]) []uint16 {
	n := len(population)
	var bag []uint16
	for attempt := 0; attempt <= maxBagRetries; attempt++ {
		r := base.Derive(streamID, uint64(attempt))
		var local []uint16
		if useBootstrap {
			local = rng.BootstrapWithReplacement(r, n, n)
		} else {
			k := int(float64(n) * bootstrapRatio)
			if k < 1 {
				k = 1
			}
			local = rng.FisherYatesSelect(r, n, k)
		}
		bag = make([]uint16, len(local))
		for i, j := range local {
			bag[i] = population[j]
		}
		h := rng.HashIDs(bag)
		if !seen.Contains(h) || attempt == maxBagRetries {
			seen.Add(h)
			break
		}
	}
	return bag
}

// inBagMask marks, for a population of numSamples total dataset rows,
// which absolute sample indices bag drew at least once.
func inBagMask(numSamples int, bag []uint16) []bool {
	mask := make([]bool, numSamples)
	for _, idx := range bag {
		mask[idx] = true
	}
	return mask
}

// buildTreeWork is one BFS queue entry: the placeholder node this entry
// must finalize, the half-open range [begin,end) of a shared,
// in-place-partitioned index buffer it owns, its depth, and the
// majority label its parent computed (used verbatim for the
// empty-child-range edge case).
type buildTreeWork struct {
	nodeIndex      uint16
	begin, end     int
	depth          int
	parentMajority uint8
}

// buildTree grows one DecisionTree breadth-first over bag (a mutable
// copy the caller owns; buildTree partitions it in place and does not
// read it again afterward). numFeatures is the feature count used to
// size the reservoir feature-subset draw; r is this tree's own derived
// Rng, used only for feature selection (bag sampling already happened
// in drawBag).
func buildTree(ds *dataset.Dataset, bag []uint16, numLabels, numFeatures int, hp Hyperparams, r *rng.Rng) (*tree.DecisionTree, error) {
	t := tree.New()
	root, err := t.AppendLeaf(0)
	if err != nil {
		return nil, err
	}
	queue := []buildTreeWork{{nodeIndex: root, begin: 0, end: len(bag), depth: 0}}
	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		seg := bag[w.begin:w.end]

		if len(seg) == 0 {
			t.SetLeaf(w.nodeIndex, w.parentMajority)
			continue
		}

		majority, counts := majorityLabel(ds, seg, numLabels)
		if isPure(counts) || len(seg) < hp.MinSplit || w.depth >= hp.MaxDepth {
			t.SetLeaf(w.nodeIndex, majority)
			continue
		}

		k := int(math.Max(1, math.Floor(math.Sqrt(float64(numFeatures)))))
		features := rng.ReservoirDistinct(r, numFeatures, k)
		best := bestSplit(ds, seg, features, numLabels, hp.MinLeaf, hp.UseGini, hp.Parallelism)
		threshold := scaledImpurityThreshold(hp.ImpurityThreshold, len(seg))
		if !best.found || best.gain <= threshold {
			t.SetLeaf(w.nodeIndex, majority)
			continue
		}

		left, err := t.GrowSplit(w.nodeIndex, best.featureID, best.slot)
		if err != nil {
			// Node budget exhausted: close this branch as a leaf
			// rather than failing the whole tree.
			t.SetLeaf(w.nodeIndex, majority)
			continue
		}
		mid := partitionByFeature(ds, seg, best.featureID, best.slot)
		queue = append(queue,
			buildTreeWork{nodeIndex: left, begin: w.begin, end: w.begin + mid, depth: w.depth + 1, parentMajority: majority},
			buildTreeWork{nodeIndex: left + 1, begin: w.begin + mid, end: w.end, depth: w.depth + 1, parentMajority: majority},
		)
	}
	return t, nil
}

// majorityLabel returns the most frequent label in seg (lowest label id
// wins ties) and the full per-label histogram.
func majorityLabel(ds *dataset.Dataset, seg []uint16, numLabels int) (uint8, []int) {
	counts := make([]int, numLabels)
	for _, idx := range seg {
		counts[ds.Samples[idx].Label]++
	}
	best, bestCount := 0, -1
	for l, c := range counts {
		if c > bestCount {
			bestCount = c
			best = l
		}
	}
	return uint8(best), counts
}

// isPure reports whether counts has exactly one non-zero entry.
func isPure(counts []int) bool {
	seen := 0
	for _, c := range counts {
		if c > 0 {
			seen++
			if seen > 1 {
				return false
			}
		}
	}
	return seen <= 1
}

// partitionByFeature partitions seg in place so every sample with
// features[f] <= slot comes first, returning the split point. It
// orders seg by ascending feature-f value with mcuforest.SortIndicesByKey
// (the module's recursion-depth-guarded quicksort-with-bubble-sort
// fallback) rather than a minimal two-pointer swap: a full ascending
// sort leaves every features[f] <= slot sample in a contiguous prefix
// just as well, and partitioning promises nothing about relative order
// within each side, so the stronger ordering a sort produces is still
// a valid partition.
func partitionByFeature(ds *dataset.Dataset, seg []uint16, f uint16, slot uint8) int {
	order := make([]int, len(seg))
	for i := range order {
		order[i] = i
	}
	mcuforest.SortIndicesByKey(order, func(i int) mcuforest.Key {
		return mcuforest.FromUint8(ds.Samples[seg[i]].Features[f])
	})
	sorted := make([]uint16, len(seg))
	for i, pos := range order {
		sorted[i] = seg[pos]
	}
	copy(seg, sorted)

	mid := 0
	for mid < len(seg) && ds.Samples[seg[mid]].Features[f] <= slot {
		mid++
	}
	return mid
}
