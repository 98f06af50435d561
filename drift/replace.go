package drift

import (
	"github.com/tinyforest/mcuforest/chainedmap"
	"github.com/tinyforest/mcuforest/dataset"
	"github.com/tinyforest/mcuforest/forest"
)

// replaceMargin and replaceFloor gate when a tree is weak enough to be
// considered for replacement: its fading score must trail the forest
// average by more than replaceMargin AND fall below the absolute
// replaceFloor, so a uniformly-struggling forest (every tree low) goes
// through full retrain instead of churning single trees.
const (
	replaceMargin       = 0.15
	replaceFloor        = 0.7
	minCandidateSamples = 500
)

// tryReplaceTree finds the tree whose fading score lags the forest,
// grows a replacement candidate over 70% of the streaming buffer, and
// swaps it in only if it out-scores the incumbent on the held-out 30%.
// A weak-but-not-improved tree's score is nudged toward the forest
// average instead, so it gets another look next time rather than being
// picked again immediately.
func (c *Controller) tryReplaceTree() bool {
	if c.streamBuf.len() < minCandidateSamples {
		return false
	}
	worst, minScore, avg := weakestTree(c.scores)
	if !(minScore < avg-replaceMargin && minScore < replaceFloor) {
		return false
	}

	items := c.streamBuf.items()
	cut := (len(items) * 70) / 100
	if cut < 1 {
		cut = 1
	}
	trainCandidate := items[:cut]
	validateCandidate := items[cut:]
	if len(validateCandidate) == 0 {
		return false
	}

	c.epoch++
	ds := &dataset.Dataset{Samples: trainCandidate, NumFeatures: c.numFeatures, NumLabels: c.numLabels, QuantizationCoefficient: c.quantization}
	candidate, _, err := forest.BuildOne(ds, allIdx(len(trainCandidate)), c.hp, c.trainCfg.UseBootstrap, c.trainCfg.BootstrapRatio, c.baseRNG, replaceStreamID(c.epoch, 0))
	if err != nil {
		c.log.Warnw("drift: tree replacement candidate build failed", "error", err)
		return false
	}

	oldAcc := forest.TreeAccuracy(c.forest.Trees[worst], validateCandidate)
	newAcc := forest.TreeAccuracy(candidate, validateCandidate)
	if newAcc <= oldAcc {
		c.scores[worst] = (c.scores[worst] + avg) / 2
		return false
	}

	dsFull := &dataset.Dataset{Samples: items, NumFeatures: c.numFeatures, NumLabels: c.numLabels, QuantizationCoefficient: c.quantization}
	final, _, err := forest.BuildOne(dsFull, allIdx(len(items)), c.hp, c.trainCfg.UseBootstrap, c.trainCfg.BootstrapRatio, c.baseRNG, replaceStreamID(c.epoch, 1))
	if err != nil {
		c.log.Warnw("drift: tree replacement full-buffer build failed", "error", err)
		return false
	}

	c.forest.Trees[worst] = final
	c.leafStats[worst] = nil
	c.scores[worst] = avg
	return true
}

// replaceStreamID keys bag derivation for tree-replacement candidates so
// each epoch's candidate and final builds occupy disjoint stream space
// from both each other and buildForest's tree-index-keyed streams.
func replaceStreamID(epoch uint64, phase uint64) uint64 {
	return 0xD21F<<48 | epoch<<4 | phase
}

func weakestTree(scores []float64) (worst int, minScore, avg float64) {
	minScore = scores[0]
	sum := 0.0
	for i, s := range scores {
		sum += s
		if s < minScore {
			minScore = s
			worst = i
		}
	}
	avg = sum / float64(len(scores))
	return worst, minScore, avg
}

// fullRetrain reruns the standard grid-search trainer over the retrain
// buffer and swaps in the result wholesale. The grid search runs again
// rather than reusing the incumbent's hyperparameters: a sustained
// low-accuracy window is exactly the situation where the old
// hyperparameter choice may no longer fit the stream.
func (c *Controller) fullRetrain() {
	samples := c.retrainBuf.items()
	ds := &dataset.Dataset{Samples: samples, NumFeatures: c.numFeatures, NumLabels: c.numLabels, QuantizationCoefficient: c.quantization}
	trainer, err := forest.NewTrainer(c.trainCfg, ds, forest.WithLogger(c.log), forest.WithParallelism(c.hp.Parallelism))
	if err != nil {
		c.log.Warnw("drift: full retrain skipped", "error", err)
		return
	}
	result, err := trainer.Train()
	if err != nil {
		c.log.Warnw("drift: full retrain failed", "error", err)
		return
	}
	c.forest = result.Forest
	c.hp = result.Hyperparams(c.trainCfg, c.hp.Parallelism)
	n := c.forest.NumTrees()
	c.scores = make([]float64, n)
	for i := range c.scores {
		c.scores[i] = 1.0
	}
	c.leafStats = make([]*chainedmap.ChainedMap[[]int], n)
}
