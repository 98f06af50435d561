package forest

import (
	"math"
	"sort"

	mcuforest "github.com/tinyforest/mcuforest"
	"github.com/tinyforest/mcuforest/config"
	"github.com/tinyforest/mcuforest/dataset"
)

// Consensus returns the weighted-majority predicted label and its
// consensus ratio (winning weight / total weight) across every tree in
// f. weights is optional; a nil or short weights slice falls back to
// 1.0 for the trees it doesn't cover (a tree's vote weight is the
// drift controller's per-tree score when one exists, else 1.0). Ties
// are broken by lowest label id, by scanning labels in ascending order
// rather than ranging over a map.
func Consensus(f *Forest, weights []float64, features []uint8, numLabels int) (label uint8, ratio float64) {
	return consensusOverSubset(f, allTreeIndices(len(f.Trees)), weights, features, numLabels)
}

func allTreeIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// consensusOverSubset is Consensus restricted to a specific subset of
// tree indices, used by OOB evaluation (the subset of trees that did
// not draw a given sample into their bag).
func consensusOverSubset(f *Forest, treeIdx []int, weights []float64, features []uint8, numLabels int) (uint8, float64) {
	sums := make([]float64, numLabels)
	total := 0.0
	for _, ti := range treeIdx {
		w := 1.0
		if weights != nil && ti < len(weights) {
			w = weights[ti]
		}
		pred := f.Trees[ti].Predict(features)
		if int(pred) < numLabels {
			sums[pred] += w
		}
		total += w
	}
	best, bestW := uint8(0), -1.0
	for l, w := range sums {
		if w > bestW {
			bestW = w
			best = uint8(l)
		}
	}
	if total <= 0 {
		return best, 0
	}
	return best, bestW / total
}

// Evaluation is a set of (predicted, true, consensus ratio) triples
// gathered by an OOB, hold-out, or k-fold evaluation pass, ready for
// SweepThreshold.
type Evaluation struct {
	Predicted []uint8
	True      []uint8
	Consensus []float64
}

// buildOOBIndex inverts inBag (tree -> per-sample bootstrap membership)
// into a sample-index -> {tree indices that did NOT draw this sample}
// index, built once per scoring pass rather than re-derived inside the
// per-sample evaluation loop.
func buildOOBIndex(inBag [][]bool, numSamples int) *mcuforest.MultiMap[int] {
	idx := mcuforest.NewMultiMap[int]()
	for t, mask := range inBag {
		for i := 0; i < numSamples; i++ {
			if !mask[i] {
				idx.AddValue(mcuforest.FromInt(i), t)
			}
		}
	}
	return idx
}

// EvaluateOOB scores every training sample against the subset of trees
// that did not draw it into their bootstrap bag (inBag[t][i] reports
// whether tree t drew sample i). Samples with fewer OOB votes than
// max(1, ceil(0.15 * num_trees)) are skipped entirely: a one- or
// two-tree consensus says more about bag luck than forest quality.
func EvaluateOOB(ds *dataset.Dataset, f *Forest, inBag [][]bool, weights []float64, numLabels int) Evaluation {
	numTrees := len(f.Trees)
	minVotes := int(math.Ceil(0.15 * float64(numTrees)))
	if minVotes < 1 {
		minVotes = 1
	}
	oobIndex := buildOOBIndex(inBag, len(ds.Samples))
	var ev Evaluation
	for i, s := range ds.Samples {
		oobSet := oobIndex.ValuesFor(mcuforest.FromInt(i))
		var oob []int
		for t := 0; t < numTrees; t++ {
			if oobSet.Contains(t) {
				oob = append(oob, t)
			}
		}
		if len(oob) < minVotes {
			continue
		}
		pred, ratio := consensusOverSubset(f, oob, weights, s.Features, numLabels)
		ev.Predicted = append(ev.Predicted, pred)
		ev.True = append(ev.True, s.Label)
		ev.Consensus = append(ev.Consensus, ratio)
	}
	return ev
}

// EvaluateSamples scores every sample in samples against the full
// forest, used by hold-out and k-fold evaluation (no OOB skip rule
// applies; the evaluation set is already held out by construction).
func EvaluateSamples(samples []dataset.Sample, f *Forest, weights []float64, numLabels int) Evaluation {
	var ev Evaluation
	for _, s := range samples {
		pred, ratio := Consensus(f, weights, s.Features, numLabels)
		ev.Predicted = append(ev.Predicted, pred)
		ev.True = append(ev.True, s.Label)
		ev.Consensus = append(ev.Consensus, ratio)
	}
	return ev
}

// Metrics is the set of scoring-objective ingredients computed at one
// consensus-acceptance threshold.
type Metrics struct {
	Accuracy, Precision, Recall, F1, FBeta05, FBeta2 float64
	Accepted, Total                                  int
}

func fBeta(precision, recall, beta float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	b2 := beta * beta
	denom := b2*precision + recall
	if denom == 0 {
		return 0
	}
	return (1 + b2) * precision * recall / denom
}

// computeMetrics scores ev restricted to samples whose consensus ratio
// is >= threshold. Precision/recall/F1 are macro-averaged over labels
// that appear (as predicted or true) among accepted samples.
func computeMetrics(ev Evaluation, threshold float64, numLabels int) Metrics {
	tp := make([]int, numLabels)
	fp := make([]int, numLabels)
	fn := make([]int, numLabels)
	correct, accepted := 0, 0
	for i := range ev.Predicted {
		if ev.Consensus[i] < threshold {
			continue
		}
		accepted++
		p, y := ev.Predicted[i], ev.True[i]
		if p == y {
			correct++
			if int(p) < numLabels {
				tp[p]++
			}
			continue
		}
		if int(p) < numLabels {
			fp[p]++
		}
		if int(y) < numLabels {
			fn[y]++
		}
	}
	var precSum, recSum float64
	labelsSeen := 0
	for l := 0; l < numLabels; l++ {
		if tp[l]+fp[l]+fn[l] == 0 {
			continue
		}
		labelsSeen++
		if tp[l]+fp[l] > 0 {
			precSum += float64(tp[l]) / float64(tp[l]+fp[l])
		}
		if tp[l]+fn[l] > 0 {
			recSum += float64(tp[l]) / float64(tp[l]+fn[l])
		}
	}
	precision, recall := 0.0, 0.0
	if labelsSeen > 0 {
		precision = precSum / float64(labelsSeen)
		recall = recSum / float64(labelsSeen)
	}
	accuracy := 0.0
	if accepted > 0 {
		accuracy = float64(correct) / float64(accepted)
	}
	return Metrics{
		Accuracy: accuracy, Precision: precision, Recall: recall,
		F1: fBeta(precision, recall, 1), FBeta05: fBeta(precision, recall, 0.5), FBeta2: fBeta(precision, recall, 2),
		Accepted: accepted, Total: len(ev.Predicted),
	}
}

// Objective selects which scalar SweepThreshold maximises.
type Objective int

const (
	ObjAccuracy Objective = iota
	ObjPrecision
	ObjRecall
	ObjF1
	ObjFBeta05
	ObjFBeta2
	// ObjAverage is the "equal-weight average of selected metrics"
	// mode, the metrics selected by a config.TrainingFlag bitmask.
	ObjAverage
)

func objectiveValue(m Metrics, obj Objective, flags config.TrainingFlag) float64 {
	switch obj {
	case ObjAccuracy:
		return m.Accuracy
	case ObjPrecision:
		return m.Precision
	case ObjRecall:
		return m.Recall
	case ObjF1:
		return m.F1
	case ObjFBeta05:
		return m.FBeta05
	case ObjFBeta2:
		return m.FBeta2
	case ObjAverage:
		sum, n := 0.0, 0
		if flags&config.Accuracy != 0 {
			sum += m.Accuracy
			n++
		}
		if flags&config.Precision != 0 {
			sum += m.Precision
			n++
		}
		if flags&config.Recall != 0 {
			sum += m.Recall
			n++
		}
		if flags&config.F1 != 0 {
			sum += m.F1
			n++
		}
		if n == 0 {
			return m.Accuracy
		}
		return sum / float64(n)
	default:
		return m.Accuracy
	}
}

// SweepThreshold sweeps every distinct consensus ratio observed in ev
// as a candidate acceptance threshold and returns the one that
// maximises obj (ties keep the first, lowest, threshold found), along
// with the Metrics it produced. A threshold of 0 (accept everything) is
// always included in the sweep even if no sample's consensus ratio was
// exactly 0, so an objective that prefers full coverage is reachable.
func SweepThreshold(ev Evaluation, obj Objective, flags config.TrainingFlag, numLabels int) (float64, Metrics) {
	candidates := append([]float64{0}, ev.Consensus...)
	sort.Float64s(candidates)
	candidates = dedupFloat64(candidates)

	bestThreshold := 0.0
	bestScore := -1.0
	var bestMetrics Metrics
	for _, thr := range candidates {
		m := computeMetrics(ev, thr, numLabels)
		s := objectiveValue(m, obj, flags)
		if s > bestScore {
			bestScore = s
			bestThreshold = thr
			bestMetrics = m
		}
	}
	return bestThreshold, bestMetrics
}

func dedupFloat64(sorted []float64) []float64 {
	out := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
