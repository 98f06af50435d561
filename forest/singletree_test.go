package forest

import (
	"testing"

	"github.com/tinyforest/mcuforest/dataset"
	"github.com/tinyforest/mcuforest/rng"
)

func TestBuildOneInBagMaskMatchesBag(t *testing.T) {
	ds := perfectlySeparableDataset(2)
	hp := Hyperparams{MinSplit: 2, MinLeaf: 1, MaxDepth: 8, UseGini: true, ImpurityThreshold: 0.01}
	base := rng.New(3)
	_, mask, err := BuildOne(ds, allIndices(len(ds.Samples)), hp, true, 0.632, base, 1)
	if err != nil {
		t.Fatalf("BuildOne: %v", err)
	}
	any := false
	for _, in := range mask {
		if in {
			any = true
			break
		}
	}
	if !any {
		t.Fatal("BuildOne's in-bag mask is entirely false")
	}
}

func TestTreeAccuracyPerfectOnTrainingData(t *testing.T) {
	ds := &dataset.Dataset{NumFeatures: 1, NumLabels: 2, QuantizationCoefficient: 2}
	for i := 0; i < 20; i++ {
		label := uint8(i % 2)
		ds.Samples = append(ds.Samples, dataset.Sample{Label: label, Features: []uint8{label}})
	}
	hp := Hyperparams{MinSplit: 2, MinLeaf: 1, MaxDepth: 10, UseGini: true, ImpurityThreshold: 0}
	tr, err := buildTree(ds, allIndices(len(ds.Samples)), ds.NumLabels, ds.NumFeatures, hp, rng.New(1))
	if err != nil {
		t.Fatalf("buildTree: %v", err)
	}
	if acc := TreeAccuracy(tr, ds.Samples); acc != 1 {
		t.Fatalf("accuracy on its own training data = %v, want 1.0", acc)
	}
}
