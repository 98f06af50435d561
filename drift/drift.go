// Package drift implements the streaming test-then-train loop laid over
// a forest.Forest: per-tree fading accuracy scores, online leaf-label
// updates, weak-tree replacement, and full forest retraining when
// accuracy over a rolling window degrades. It is the streaming
// counterpart to forest's batch grid-search trainer, reusing
// forest.BuildOne, forest.TreeAccuracy, and forest.Trainer directly
// rather than duplicating tree-growing logic.
package drift

import (
	"go.uber.org/zap"

	mcuforest "github.com/tinyforest/mcuforest"
	"github.com/tinyforest/mcuforest/chainedmap"
	"github.com/tinyforest/mcuforest/config"
	"github.com/tinyforest/mcuforest/dataset"
	"github.com/tinyforest/mcuforest/forest"
	"github.com/tinyforest/mcuforest/logging"
	"github.com/tinyforest/mcuforest/rng"
	"github.com/tinyforest/mcuforest/tree"
)

// replaceCheckPeriod is how often (in samples seen) tree replacement
// is considered.
const replaceCheckPeriod = 500

// retrainMinBufferSize is the minimum retrain-FIFO occupancy required
// before a full retrain can trigger; retraining on fewer samples
// replaces a struggling forest with a badly underfit one.
const retrainMinBufferSize = 1000

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithLogger attaches a structured logger; nil keeps the no-op default.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithAdaptationDisabled turns Observe into prediction-only replay: no
// online leaf updates, no tree replacement, no full retrain. Used as a
// frozen-forest baseline to compare adaptive streaming against.
func WithAdaptationDisabled() Option {
	return func(c *Controller) { c.adapt = false }
}

// Controller wraps a forest.Forest with streaming adaptation state:
// one fading score per tree, an online per-leaf label tally, bounded
// sample buffers, and retrain cooldown bookkeeping.
type Controller struct {
	forest *forest.Forest
	scores []float64
	// leafStats[t] maps a tree's leaf node index to the running
	// per-label observation counts used to update that leaf's stored
	// label by online majority vote. Leaf indices range over a tree's
	// full node budget (up to 2047), past what a single 255-slot open
	// addressing table can hold, so each tree gets a chained map.
	leafStats []*chainedmap.ChainedMap[[]int]

	cfg      Config
	trainCfg *config.Config
	hp       forest.Hyperparams

	numLabels    int
	numFeatures  int
	quantization uint8

	retrainBuf *sampleRing
	streamBuf  *sampleRing
	window     *boolRing

	samplesSeen uint64
	cooldown    int
	epoch       uint64

	baseRNG *rng.Rng
	log     *zap.SugaredLogger
	adapt   bool
}

// NewController wraps initial (a forest.Trainer result, typically) in a
// Controller. hp is the hyperparameter set initial's trees were grown
// with, reused verbatim for any tree-replacement candidate built later.
func NewController(initial *forest.Forest, hp forest.Hyperparams, trainCfg *config.Config, driftCfg Config, numLabels, numFeatures int, quantization uint8, opts ...Option) *Controller {
	driftCfg.applyDefaults()
	n := initial.NumTrees()
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0
	}
	c := &Controller{
		forest:       initial,
		scores:       scores,
		leafStats:    make([]*chainedmap.ChainedMap[[]int], n),
		cfg:          driftCfg,
		trainCfg:     trainCfg,
		hp:           hp,
		numLabels:    numLabels,
		numFeatures:  numFeatures,
		quantization: quantization,
		retrainBuf:   newSampleRing(driftCfg.RetrainBufferSize),
		streamBuf:    newSampleRing(driftCfg.StreamBufferSize),
		window:       newBoolRing(driftCfg.WindowSize),
		baseRNG:      rng.New(uint64(trainCfg.RandomSeed) ^ 0xD21F7ADE),
		log:          logging.NoOp(),
		adapt:        true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Forest returns the controller's current forest. The returned pointer
// is replaced (not mutated in place) by a full retrain, so callers that
// hold on to it across an Observe call may be looking at a stale forest.
func (c *Controller) Forest() *forest.Forest { return c.forest }

// Scores returns the current per-tree fading correctness scores, used
// both as consensus vote weights and as the tree-replacement selector.
func (c *Controller) Scores() []float64 { return append([]float64(nil), c.scores...) }

// SamplesSeen returns the total number of samples Observe has processed.
func (c *Controller) SamplesSeen() uint64 { return c.samplesSeen }

// Outcome is what one Observe call reports: the consensus prediction
// made before the sample's label was used for anything, and whether
// that call triggered tree replacement and/or a full retrain.
type Outcome struct {
	Predicted uint8
	Consensus float64
	Replaced  bool
	Retrained bool
}

// Observe runs one test-then-train step over a single labeled sample:
// predict first, then fold the true label into every tree's fading
// score and leaf-label tally, append it to both bounded buffers, and
// finally check whether tree replacement or a full retrain is due.
func (c *Controller) Observe(x dataset.Sample) Outcome {
	var out Outcome
	out.Predicted, out.Consensus = forest.Consensus(c.forest, c.scores, x.Features, c.numLabels)

	c.window.push(out.Predicted == x.Label)
	c.retrainBuf.push(x)
	c.streamBuf.push(x)

	for ti, tr := range c.forest.Trees {
		leafIdx := walkToLeaf(tr, x.Features)
		correct := leafIdx >= 0 && tr.Nodes[leafIdx].Label() == x.Label
		c.scores[ti] = c.cfg.FadingFactor*c.scores[ti] + (1-c.cfg.FadingFactor)*boolToFloat(correct)
		if c.adapt && leafIdx >= 0 {
			c.updateLeaf(ti, tr, leafIdx, x.Label)
		}
	}

	c.samplesSeen++
	if c.cooldown > 0 {
		c.cooldown--
	}

	if !c.adapt {
		return out
	}

	if c.samplesSeen%replaceCheckPeriod == 0 && len(c.forest.Trees) >= 2 {
		out.Replaced = c.tryReplaceTree()
	}

	if int(c.samplesSeen) >= c.cfg.WindowSize && c.cfg.WindowStep > 0 && int(c.samplesSeen)%c.cfg.WindowStep == 0 {
		if c.cooldown == 0 && c.window.accuracy() < c.cfg.RetrainAccThreshold && c.retrainBuf.len() >= retrainMinBufferSize {
			c.fullRetrain()
			c.cooldown = c.cfg.RetrainPatience
			out.Retrained = true
		}
	}
	return out
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// walkToLeaf mirrors tree.DecisionTree.Predict's traversal but returns
// the reached leaf's node index (or -1 for any out-of-bounds condition)
// instead of its label, so the caller can update that leaf's stored
// label in place.
func walkToLeaf(t *tree.DecisionTree, features []uint8) int {
	if len(t.Nodes) == 0 {
		return -1
	}
	idx := uint16(0)
	for {
		if int(idx) >= len(t.Nodes) {
			return -1
		}
		n := t.Nodes[idx]
		if n.IsLeaf() {
			return int(idx)
		}
		fid := n.FeatureID()
		if int(fid) >= len(features) {
			return -1
		}
		if features[fid] <= n.ThresholdSlot() {
			idx = n.LeftChild()
		} else {
			idx = n.RightChild()
		}
	}
}

// updateLeaf folds one more observed label into leafIdx's running tally
// and rewrites the leaf node with whichever label is now the majority,
// breaking ties toward the lowest label id (ascending scan, same rule
// forest.Consensus uses).
func (c *Controller) updateLeaf(treeIdx int, t *tree.DecisionTree, leafIdx int, label uint8) {
	stats := c.leafStats[treeIdx]
	if stats == nil {
		stats = chainedmap.New[[]int]()
		c.leafStats[treeIdx] = stats
	}
	key := mcuforest.FromInt(leafIdx)
	counts, ok := stats.Find(key)
	if !ok {
		counts = make([]int, c.numLabels)
		if !stats.Insert(key, counts) {
			return
		}
	}
	if int(label) < c.numLabels {
		counts[label]++
	}

	best, bestCount := 0, -1
	for l, n := range counts {
		if n > bestCount {
			bestCount = n
			best = l
		}
	}
	t.Nodes[leafIdx] = tree.NewLeaf(uint8(best))
}

func allIdx(n int) []uint16 {
	idx := make([]uint16, n)
	for i := range idx {
		idx[i] = uint16(i)
	}
	return idx
}
