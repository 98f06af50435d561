// Package config defines the trainer and drift-controller configuration
// shape and its JSON loading, defaults, and reconciliation rules. JSON
// parsing itself is treated as an external collaborator here (the
// contract is simply "produce a Config struct"), so this package reaches
// for nothing beyond encoding/json.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// TrainingFlag is a bitmask of scoring objectives a grid-search run can
// be asked to maximise.
type TrainingFlag uint16

const (
	Accuracy  TrainingFlag = 1 << 0
	Precision TrainingFlag = 1 << 1
	Recall    TrainingFlag = 1 << 2
	F1        TrainingFlag = 1 << 3
)

// OverrideStatus controls whether a hyperparameter field is left to the
// automatic grid-search range, pinned to a single value, or stacked
// (user value ORed/merged with the automatic choice).
type OverrideStatus string

const (
	Disabled         OverrideStatus = "disabled"
	EnabledOverwrite OverrideStatus = "enabled-overwrite"
	EnabledStacked   OverrideStatus = "enabled-stacked"
)

// HyperparamField is one of min_split / min_leaf / max_depth's override
// controls.
type HyperparamField struct {
	Status OverrideStatus `json:"status,omitempty"`
	Value  uint16         `json:"value,omitempty"`
	Range  []uint16       `json:"range,omitempty"`
}

// SplitRatio is the train/test/valid proportions of a dataset.
type SplitRatio struct {
	Train float64 `json:"train_ratio"`
	Test  float64 `json:"test_ratio"`
	Valid float64 `json:"valid_ratio"`
}

// TrainingScore selects which evaluation method produces the reported
// score and drives the grid-search objective.
type TrainingScore string

const (
	OOBScore   TrainingScore = "oob_score"
	ValidScore TrainingScore = "valid_score"
	KFoldScore TrainingScore = "k_fold_score"
)

// Config is the trainer's JSON configuration surface. Every field is
// optional; zero values pick up the documented defaults.
type Config struct {
	NumTrees   uint16 `json:"num_trees"`
	RandomSeed uint32 `json:"random_seed"`

	MinSplit HyperparamField `json:"min_split"`
	MinLeaf  HyperparamField `json:"min_leaf"`
	MaxDepth HyperparamField `json:"max_depth"`

	UseBootstrap   bool    `json:"use_bootstrap"`
	BootstrapRatio float64 `json:"bootstrap_ratio"`

	UseGini   bool   `json:"use_gini"`
	Criterion string `json:"criterion,omitempty"`

	TrainingScore TrainingScore `json:"training_score"`
	KFolds        uint16        `json:"k_folds"`

	SplitRatio SplitRatio `json:"split_ratio"`

	ImpurityThreshold float64 `json:"impurity_threshold"`
	UnityThreshold    float64 `json:"unity_threshold"`

	TrainingFlag       TrainingFlag   `json:"training_flag"`
	TrainingFlagStatus OverrideStatus `json:"training_flag_status,omitempty"`

	QuantizationCoefficient uint8 `json:"quantization_coefficient"`

	DataPath string `json:"data_path"`

	// ResultScore and Timestamp are written by the trainer when
	// persisting the config alongside a trained forest; absent on load.
	ResultScore float64 `json:"result_score,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

// Default returns a Config populated with every documented default.
func Default() *Config {
	return &Config{
		NumTrees:          20,
		RandomSeed:        42,
		UseBootstrap:      true,
		BootstrapRatio:    0.632,
		TrainingScore:     OOBScore,
		KFolds:            4,
		SplitRatio:        SplitRatio{Train: 0.7, Test: 0.15, Valid: 0.15},
		ImpurityThreshold: 0.01,
	}
}

// Load reads a JSON config file from path, applies defaults for any
// field left at its zero value, and reconciles split ratios against the
// selected training score.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := reconcileSplitRatio(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.NumTrees == 0 {
		cfg.NumTrees = 20
	}
	if cfg.RandomSeed == 0 {
		cfg.RandomSeed = 42
	}
	if cfg.BootstrapRatio == 0 {
		cfg.BootstrapRatio = 0.632
	}
	if cfg.TrainingScore == "" {
		cfg.TrainingScore = OOBScore
	}
	if cfg.KFolds == 0 {
		cfg.KFolds = 4
	}
	if cfg.ImpurityThreshold == 0 {
		cfg.ImpurityThreshold = 0.01
	}
	if cfg.Criterion != "" {
		cfg.UseGini = cfg.Criterion == "gini"
	}
	if cfg.SplitRatio == (SplitRatio{}) {
		cfg.SplitRatio = SplitRatio{Train: 0.7, Test: 0.15, Valid: 0.15}
	}
}

// ErrInconsistentSplitRatio reports a split ratio that cannot be
// reconciled against the selected training score.
var ErrInconsistentSplitRatio = fmt.Errorf("config: split ratio inconsistent with training score")

// reconcileSplitRatio normalizes a split ratio to sum to 1, then checks
// it against the selected training score: valid_score requires a
// positive valid_ratio, every other score requires valid_ratio == 0. A
// mismatch is repaired with dataset-size-agnostic defaults rather than
// rejected outright (the dataset-size-aware variant lives in
// dataset.ReconcileSplitRatio, called once the sample count is known).
func reconcileSplitRatio(cfg *Config) error {
	sr := &cfg.SplitRatio
	total := sr.Train + sr.Test + sr.Valid
	if total <= 0 {
		return fmt.Errorf("%w: ratios sum to %v", ErrInconsistentSplitRatio, total)
	}
	if math.Abs(total-1.0) > 0.001 {
		sr.Train /= total
		sr.Test /= total
		sr.Valid /= total
	}
	switch {
	case cfg.TrainingScore == ValidScore && sr.Valid == 0:
		sr.Train, sr.Test, sr.Valid = 0.6, 0.2, 0.2
	case cfg.TrainingScore != ValidScore && sr.Valid > 0:
		sr.Train, sr.Test, sr.Valid = 0.75, 0.25, 0
	}
	return nil
}

// UnityThresholdOrDefault returns the configured unity threshold, or the
// spec's `1.25 / num_labels` automatic computation when left at zero.
func (c *Config) UnityThresholdOrDefault(numLabels int) float64 {
	if c.UnityThreshold != 0 {
		return c.UnityThreshold
	}
	if numLabels <= 0 {
		return 0.5
	}
	return 1.25 / float64(numLabels)
}

// ResolveTrainingFlag combines the configured flag with an
// imbalance-derived automatic flag. Overwrite mode ignores autoFlag
// entirely; stacked mode ORs the two; disabled mode (zero
// Config.TrainingFlag) always uses autoFlag alone.
func (c *Config) ResolveTrainingFlag(autoFlag TrainingFlag) TrainingFlag {
	switch c.TrainingFlagStatus {
	case EnabledOverwrite:
		return c.TrainingFlag
	case EnabledStacked:
		return c.TrainingFlag | autoFlag
	default:
		if c.TrainingFlag != 0 {
			return c.TrainingFlag
		}
		return autoFlag
	}
}

// AutoTrainingFlag picks a scoring objective from the ratio of the
// majority to minority class counts: the more imbalanced the dataset,
// the less accuracy alone can be trusted.
func AutoTrainingFlag(imbalanceRatio float64) TrainingFlag {
	switch {
	case imbalanceRatio > 10.0:
		return Recall
	case imbalanceRatio > 3.0:
		return F1
	case imbalanceRatio > 1.5:
		return Precision
	default:
		return Accuracy
	}
}

// Save writes cfg as JSON to path, used to persist the post-training
// config augmented with ResultScore and Timestamp.
func (c *Config) Save(path string) error {
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
