package forest

import "errors"

// Sentinel errors surfaced to callers per the configuration-error and
// invalid-state taxonomy: these abort a Train call outright rather than
// being logged and skipped, because they mean the request itself cannot
// be carried out.
var (
	ErrEmptyDataset         = errors.New("forest: dataset has no samples")
	ErrNoTrees              = errors.New("forest: no candidate forest scored above zero trees")
	ErrUnsupportedCriterion = errors.New("forest: criterion must be gini or entropy")
	ErrTooFewFolds          = errors.New("forest: k_folds must be at least 2 for k_fold_score")
)
