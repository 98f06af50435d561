package forest

import (
	set3 "github.com/TomTonic/Set3"
	"go.uber.org/zap"

	"github.com/tinyforest/mcuforest/config"
	"github.com/tinyforest/mcuforest/dataset"
	"github.com/tinyforest/mcuforest/logging"
	"github.com/tinyforest/mcuforest/rng"
	"github.com/tinyforest/mcuforest/tree"
)

// defaultMinSplitRange, defaultMinLeafRange, and defaultMaxDepthRange
// are the automatic grid-search ranges used for a hyperparameter field
// left at config.Disabled without an explicit Range: a small sweep
// sized for datasets in the hundreds-to-low-thousands of samples.
var (
	defaultMinSplitRange = []uint16{2, 5, 10, 20}
	defaultMinLeafRange  = []uint16{1, 2, 5}
	defaultMaxDepthRange = []uint16{5, 10, 15, 20}
)

// candidateRunsPerGridCell is how many times an OOB/hold-out grid
// candidate is rebuilt with a different RNG nonce before the best of
// those runs is kept.
const candidateRunsPerGridCell = 3

// GridCandidateResult is one Cartesian grid-search cell's outcome,
// kept as an in-memory record so a caller can inspect how model size
// and score moved across the sweep, or persist the log for offline
// analysis.
type GridCandidateResult struct {
	MinSplit, MinLeaf, MaxDepth int
	TotalNodes                  int
	Score                       float64
}

// Option configures a Trainer at construction time.
type Option func(*Trainer)

// WithLogger attaches a structured logger; nil keeps the no-op default.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(t *Trainer) {
		if l != nil {
			t.log = l
		}
	}
}

// WithParallelism sets how many goroutines the best-split search fans
// candidate features across. 1 (the default) is fully sequential.
func WithParallelism(n int) Option {
	return func(t *Trainer) {
		if n > 0 {
			t.parallelism = n
		}
	}
}

// Trainer owns one dataset + config pairing and runs the grid-search /
// scoring pipeline.
type Trainer struct {
	cfg         *config.Config
	ds          *dataset.Dataset
	log         *zap.SugaredLogger
	parallelism int
	baseRNG     *rng.Rng
	gridLog     []GridCandidateResult
}

// NewTrainer returns a Trainer for ds under cfg. An empty dataset is a
// configuration error, surfaced immediately rather than discovered
// partway through grid search.
func NewTrainer(cfg *config.Config, ds *dataset.Dataset, opts ...Option) (*Trainer, error) {
	if ds == nil || len(ds.Samples) == 0 {
		return nil, ErrEmptyDataset
	}
	if cfg.TrainingScore == config.KFoldScore && cfg.KFolds < 2 {
		return nil, ErrTooFewFolds
	}
	t := &Trainer{
		cfg:         cfg,
		ds:          ds,
		log:         logging.NoOp(),
		parallelism: 1,
		baseRNG:     rng.New(uint64(cfg.RandomSeed)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// GridLog returns every grid-search candidate result recorded by the
// most recent Train call, in the order candidates were evaluated.
func (t *Trainer) GridLog() []GridCandidateResult {
	return append([]GridCandidateResult(nil), t.gridLog...)
}

func (t *Trainer) hyperparamCandidates() (minSplits, minLeaves, maxDepths []uint16) {
	auto := func(f config.HyperparamField, autoRange []uint16) []uint16 {
		switch f.Status {
		case config.EnabledOverwrite:
			return []uint16{f.Value}
		case config.EnabledStacked:
			vals := append([]uint16{f.Value}, autoRange...)
			return dedupUint16(vals)
		default:
			if len(f.Range) > 0 {
				return f.Range
			}
			return autoRange
		}
	}
	return auto(t.cfg.MinSplit, defaultMinSplitRange),
		auto(t.cfg.MinLeaf, defaultMinLeafRange),
		auto(t.cfg.MaxDepth, defaultMaxDepthRange)
}

func dedupUint16(vs []uint16) []uint16 {
	seen := make(map[uint16]bool, len(vs))
	out := make([]uint16, 0, len(vs))
	for _, v := range vs {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// TrainResult is the artifact Train promotes: the best forest found
// across the grid, the objective score it achieved, the consensus
// threshold SweepThreshold chose for it, and the min_split, min_leaf
// and max_depth values it was built with.
type TrainResult struct {
	Forest    *Forest
	Score     float64
	Threshold float64
	MinSplit  int
	MinLeaf   int
	MaxDepth  int
}

// Hyperparams reconstructs the Hyperparams this result's forest was
// built with, for a caller (the drift controller) that needs to grow
// further trees under the identical configuration.
func (r *TrainResult) Hyperparams(cfg *config.Config, parallelism int) Hyperparams {
	return Hyperparams{
		MinSplit: r.MinSplit, MinLeaf: r.MinLeaf, MaxDepth: r.MaxDepth,
		UseGini: cfg.UseGini, ImpurityThreshold: cfg.ImpurityThreshold, Parallelism: parallelism,
	}
}

// Train runs the full Cartesian grid search over the hyperparameter
// candidates, scoring each with the method cfg.TrainingScore selects,
// and returns the best-scoring artifact. A candidate that fails to
// build even a single tree (e.g. every bag empty) is logged and
// skipped rather than aborting the whole search.
func (t *Trainer) Train() (*TrainResult, error) {
	minSplits, minLeaves, maxDepths := t.hyperparamCandidates()

	var best *TrainResult
	for _, minSplit := range minSplits {
		for _, minLeaf := range minLeaves {
			for _, maxDepth := range maxDepths {
				hp := Hyperparams{
					MinSplit: int(minSplit), MinLeaf: int(minLeaf), MaxDepth: int(maxDepth),
					UseGini: t.cfg.UseGini, ImpurityThreshold: t.cfg.ImpurityThreshold, Parallelism: t.parallelism,
				}
				result, err := t.scoreCandidate(hp)
				if err != nil {
					t.log.Warnw("skipping grid candidate", "min_split", minSplit, "min_leaf", minLeaf, "max_depth", maxDepth, "error", err)
					continue
				}
				t.gridLog = append(t.gridLog, GridCandidateResult{
					MinSplit: int(minSplit), MinLeaf: int(minLeaf), MaxDepth: int(maxDepth),
					TotalNodes: totalNodes(result.Forest), Score: result.Score,
				})
				if best == nil || result.Score > best.Score {
					best = result
				}
			}
		}
	}
	if best == nil {
		return nil, ErrNoTrees
	}
	return best, nil
}

func totalNodes(f *Forest) int {
	n := 0
	for _, tr := range f.Trees {
		n += len(tr.Nodes)
	}
	return n
}

// scoreCandidate builds and scores one grid cell under t.cfg's
// training_score mode, repeating the OOB/hold-out build
// candidateRunsPerGridCell times (k-fold instead repeats once per
// fold, as the spec requires) and keeping the best-scoring repeat.
func (t *Trainer) scoreCandidate(hp Hyperparams) (*TrainResult, error) {
	switch t.cfg.TrainingScore {
	case config.ValidScore:
		return t.scoreHoldout(hp)
	case config.KFoldScore:
		return t.scoreKFold(hp)
	default:
		return t.scoreOOB(hp)
	}
}

func (t *Trainer) autoFlag() config.TrainingFlag {
	return config.AutoTrainingFlag(t.ds.ImbalanceRatio())
}

func (t *Trainer) resolvedFlag() config.TrainingFlag {
	return t.cfg.ResolveTrainingFlag(t.autoFlag())
}

func (t *Trainer) objective() Objective {
	flag := t.resolvedFlag()
	switch {
	case flag == config.Accuracy:
		return ObjAccuracy
	case flag == config.Precision:
		return ObjPrecision
	case flag == config.Recall:
		return ObjRecall
	case flag == config.F1:
		return ObjF1
	default:
		return ObjAverage
	}
}

func (t *Trainer) scoreOOB(hp Hyperparams) (*TrainResult, error) {
	var best *TrainResult
	for run := 0; run < candidateRunsPerGridCell; run++ {
		f, inBag, err := t.buildForest(hp, allIndices(len(t.ds.Samples)), func(ti int) uint64 { return uint64(ti) }, uint64(run))
		if err != nil {
			return nil, err
		}
		ev := EvaluateOOB(t.ds, f, inBag, nil, t.ds.NumLabels)
		thr, m := SweepThreshold(ev, t.objective(), t.resolvedFlag(), t.ds.NumLabels)
		cand := &TrainResult{Forest: f, Score: objectiveValue(m, t.objective(), t.resolvedFlag()), Threshold: thr, MinSplit: hp.MinSplit, MinLeaf: hp.MinLeaf, MaxDepth: hp.MaxDepth}
		if best == nil || cand.Score > best.Score {
			best = cand
		}
	}
	return best, nil
}

func (t *Trainer) scoreHoldout(hp Hyperparams) (*TrainResult, error) {
	train, _, valid := t.splitTrainValid()
	var best *TrainResult
	for run := 0; run < candidateRunsPerGridCell; run++ {
		f, _, err := t.buildForest(hp, train, func(ti int) uint64 { return uint64(ti) }, uint64(run))
		if err != nil {
			return nil, err
		}
		validSamples := make([]dataset.Sample, len(valid))
		for i, idx := range valid {
			validSamples[i] = t.ds.Samples[idx]
		}
		ev := EvaluateSamples(validSamples, f, nil, t.ds.NumLabels)
		thr, m := SweepThreshold(ev, t.objective(), t.resolvedFlag(), t.ds.NumLabels)
		cand := &TrainResult{Forest: f, Score: objectiveValue(m, t.objective(), t.resolvedFlag()), Threshold: thr, MinSplit: hp.MinSplit, MinLeaf: hp.MinLeaf, MaxDepth: hp.MaxDepth}
		if best == nil || cand.Score > best.Score {
			best = cand
		}
	}
	return best, nil
}

func (t *Trainer) scoreKFold(hp Hyperparams) (*TrainResult, error) {
	k := int(t.cfg.KFolds)
	order := allIndices(len(t.ds.Samples))
	shuffleRNG := t.baseRNG.Derive(0xF01D, uint64(hp.MinSplit)<<32|uint64(hp.MinLeaf)<<16|uint64(hp.MaxDepth))
	rng.ShuffleUint16(shuffleRNG, order)

	var aggregate Evaluation
	var lastForest *Forest
	for fold := 0; fold < k; fold++ {
		trainIdx, foldOut := kFoldSplit(order, fold, k)
		streamID := func(ti int) uint64 { return uint64(fold)<<32 | uint64(ti) }
		f, _, err := t.buildForest(hp, trainIdx, streamID, 0)
		if err != nil {
			return nil, err
		}
		lastForest = f
		foldSamples := make([]dataset.Sample, len(foldOut))
		for i, idx := range foldOut {
			foldSamples[i] = t.ds.Samples[idx]
		}
		ev := EvaluateSamples(foldSamples, f, nil, t.ds.NumLabels)
		aggregate.Predicted = append(aggregate.Predicted, ev.Predicted...)
		aggregate.True = append(aggregate.True, ev.True...)
		aggregate.Consensus = append(aggregate.Consensus, ev.Consensus...)
	}
	thr, m := SweepThreshold(aggregate, t.objective(), t.resolvedFlag(), t.ds.NumLabels)
	return &TrainResult{
		Forest: lastForest, Score: objectiveValue(m, t.objective(), t.resolvedFlag()), Threshold: thr,
		MinSplit: hp.MinSplit, MinLeaf: hp.MinLeaf, MaxDepth: hp.MaxDepth,
	}, nil
}

func kFoldSplit(order []uint16, fold, k int) (train, heldOut []uint16) {
	n := len(order)
	start := (n * fold) / k
	end := (n * (fold + 1)) / k
	heldOut = append([]uint16(nil), order[start:end]...)
	train = make([]uint16, 0, n-len(heldOut))
	train = append(train, order[:start]...)
	train = append(train, order[end:]...)
	return train, heldOut
}

func (t *Trainer) splitTrainValid() (train, test, valid []uint16) {
	order := allIndices(len(t.ds.Samples))
	tRatio, vRatio := t.cfg.SplitRatio.Train, t.cfg.SplitRatio.Valid
	if tRatio == 0 && vRatio == 0 {
		// Config carried no usable ratio at all (constructed without
		// config.Load, which always fills in a default), so fall back to
		// the dataset-size-aware reconciliation.
		tRatio, _, vRatio = t.ds.ReconcileSplitRatio(true)
	}
	n := len(order)
	nTrain := int(float64(n) * tRatio)
	nValid := int(float64(n) * vRatio)
	if nTrain+nValid > n {
		nValid = n - nTrain
	}
	return order[:nTrain], order[nTrain : n-nValid], order[n-nValid:]
}

func allIndices(n int) []uint16 {
	idx := make([]uint16, n)
	for i := range idx {
		idx[i] = uint16(i)
	}
	return idx
}

// buildForest grows cfg.NumTrees trees over population (absolute
// dataset indices eligible to be drawn), deduplicating bags within this
// one forest build via a fresh bag-hash set, and returns the forest
// plus each tree's in-bag mask (over the full dataset, for OOB
// bookkeeping). streamIDFor lets callers key bag derivation on tree
// index alone (OOB/hold-out) or on (fold, tree) for k-fold; nonceBase
// offsets the dedup retry nonce across repeated same-hyperparameter
// runs so they don't just reproduce the same bags.
func (t *Trainer) buildForest(hp Hyperparams, population []uint16, streamIDFor func(treeIndex int) uint64, nonceBase uint64) (*Forest, [][]bool, error) {
	numTrees := int(t.cfg.NumTrees)
	seen := set3.Empty[uint64]()
	f := &Forest{Trees: make([]*tree.DecisionTree, 0, numTrees)}
	inBag := make([][]bool, numTrees)
	for ti := 0; ti < numTrees; ti++ {
		streamID := streamIDFor(ti)
		bag := drawBag(t.baseRNG, streamID+nonceBase*0x100000000, population, t.cfg.UseBootstrap, t.cfg.BootstrapRatio, seen)
		inBag[ti] = inBagMask(len(t.ds.Samples), bag)
		treeRNG := t.baseRNG.Derive(streamID, 0xFEA7)
		tr, err := buildTree(t.ds, bag, t.ds.NumLabels, t.ds.NumFeatures, hp, treeRNG)
		if err != nil {
			return nil, nil, err
		}
		f.Trees = append(f.Trees, tr)
	}
	return f, inBag, nil
}
