// Package forest implements the Random Forest trainer: bootstrap
// sampling with bag-hash dedup, per-tree BFS construction over
// quantized features, OOB/hold-out/k-fold scoring with a
// threshold-maximizing sweep, and Cartesian hyperparameter grid search.
// It is built entirely on the container and rng packages beneath it;
// no container reaches back up into forest.
package forest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinyforest/mcuforest/tree"
)

// Forest is an ordered sequence of DecisionTrees. A tree's position in
// Trees is its stable index, used by the drift controller to track
// per-tree fading scores and to target tree replacement.
type Forest struct {
	Trees []*tree.DecisionTree
}

// NumTrees returns the number of trees.
func (f *Forest) NumTrees() int { return len(f.Trees) }

// Save writes one file per tree into dir, named "<prefix>_<index>.bin",
// and returns the paths written in tree order. Filesystem layout beyond
// this naming convention is the caller's concern.
func (f *Forest) Save(dir, prefix string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("forest: mkdir %s: %w", dir, err)
	}
	paths := make([]string, 0, len(f.Trees))
	for i, t := range f.Trees {
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.bin", prefix, i))
		if err := os.WriteFile(path, t.Save(), 0o644); err != nil {
			return nil, fmt.Errorf("forest: write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Load reads the tree files at paths, in order, rejecting the whole
// forest if any one of them fails tree.Load's validation.
func Load(paths []string) (*Forest, error) {
	trees := make([]*tree.DecisionTree, 0, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("forest: read %s: %w", p, err)
		}
		t, err := tree.Load(raw)
		if err != nil {
			return nil, fmt.Errorf("forest: load %s: %w", p, err)
		}
		trees = append(trees, t)
	}
	return &Forest{Trees: trees}, nil
}

// ModelNameFromPath derives a short model name from a dataset's file
// path, stripping directory components, the trailing extension, and
// the "_dp" metadata-sidecar suffix if present. A pure string
// transform: where the files actually live is the caller's concern.
func ModelNameFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSuffix(base, "_dp")
	return base
}
