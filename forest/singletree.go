package forest

import (
	set3 "github.com/TomTonic/Set3"

	"github.com/tinyforest/mcuforest/dataset"
	"github.com/tinyforest/mcuforest/rng"
	"github.com/tinyforest/mcuforest/tree"
)

// BuildOne grows a single DecisionTree over population under hp,
// drawing its own bootstrap/subsample bag from baseRNG via streamID.
// This is the same per-tree pipeline buildForest runs for every member
// of a grid-search forest, exposed here so the drift controller's tree
// replacement and single-tree retrain can reuse it without going
// through a full Trainer.
func BuildOne(ds *dataset.Dataset, population []uint16, hp Hyperparams, useBootstrap bool, bootstrapRatio float64, baseRNG *rng.Rng, streamID uint64) (*tree.DecisionTree, []bool, error) {
	seen := set3.Empty[uint64]()
	bag := drawBag(baseRNG, streamID, population, useBootstrap, bootstrapRatio, seen)
	treeRNG := baseRNG.Derive(streamID, 0xFEA7)
	t, err := buildTree(ds, bag, ds.NumLabels, ds.NumFeatures, hp, treeRNG)
	if err != nil {
		return nil, nil, err
	}
	return t, inBagMask(len(ds.Samples), bag), nil
}

// TreeAccuracy returns t's raw (unweighted, non-consensus) prediction
// accuracy over samples, used by drift's tree-replacement candidate
// evaluation, which compares trees head-to-head rather than through
// the forest's consensus.
func TreeAccuracy(t *tree.DecisionTree, samples []dataset.Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	correct := 0
	for _, s := range samples {
		if t.Predict(s.Features) == s.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}
