// Command forest-trainer runs the grid-search Random Forest trainer
// (package forest) over a CSV dataset and persists the winning forest
// plus its config.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinyforest/mcuforest/config"
	"github.com/tinyforest/mcuforest/dataset"
	"github.com/tinyforest/mcuforest/forest"
	"github.com/tinyforest/mcuforest/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.L().Errorw("forest-trainer failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		skipTraining bool
		maxSamples   int
		dataPath     string
		configPath   string
		outDir       string
	)

	cmd := &cobra.Command{
		Use:           "forest-trainer",
		Short:         "Grid-search train a Random Forest over a quantized CSV dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(dataPath, configPath, outDir, maxSamples, skipTraining)
		},
	}

	cmd.Flags().BoolVar(&skipTraining, "skip_training", false, "load an existing persisted forest instead of training a new one")
	cmd.Flags().IntVar(&maxSamples, "max-samples", 0, "cap the number of dataset rows loaded, 0 for unlimited")
	cmd.Flags().StringVar(&dataPath, "data", "", "path to the quantized-feature CSV dataset (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a JSON config file, defaults applied when omitted")
	cmd.Flags().StringVar(&outDir, "out", "model", "directory to persist the trained forest and config into")

	return cmd
}

func run(dataPath, configPath, outDir string, maxSamples int, skipTraining bool) error {
	if dataPath == "" {
		return fmt.Errorf("forest-trainer: --data is required")
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("forest-trainer: %w", err)
		}
		cfg = loaded
	}
	cfg.DataPath = dataPath

	ds, err := dataset.Load(dataPath, resolveQuantization(cfg))
	if err != nil {
		return fmt.Errorf("forest-trainer: %w", err)
	}
	if meta, err := dataset.LoadMetadata(metadataPathFor(dataPath)); err == nil {
		if err := meta.Apply(ds); err != nil {
			return fmt.Errorf("forest-trainer: %w", err)
		}
	}
	if maxSamples > 0 && len(ds.Samples) > maxSamples {
		ds.Samples = ds.Samples[:maxSamples]
	}

	prefix := forest.ModelNameFromPath(dataPath)

	if skipTraining {
		paths, err := existingForestPaths(outDir, prefix, int(cfg.NumTrees))
		if err != nil {
			return fmt.Errorf("forest-trainer: %w", err)
		}
		f, err := forest.Load(paths)
		if err != nil {
			return fmt.Errorf("forest-trainer: %w", err)
		}
		logging.L().Infow("loaded existing forest", "trees", f.NumTrees(), "prefix", prefix)
		return nil
	}

	trainer, err := forest.NewTrainer(cfg, ds, forest.WithLogger(logging.L()))
	if err != nil {
		return fmt.Errorf("forest-trainer: %w", err)
	}
	result, err := trainer.Train()
	if err != nil {
		return fmt.Errorf("forest-trainer: %w", err)
	}

	paths, err := result.Forest.Save(outDir, prefix)
	if err != nil {
		return fmt.Errorf("forest-trainer: %w", err)
	}
	logging.L().Infow("trained forest", "trees", len(paths), "score", result.Score, "threshold", result.Threshold)

	cfg.ResultScore = result.Score
	cfg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if err := cfg.Save(filepath.Join(outDir, prefix+"_config.json")); err != nil {
		return fmt.Errorf("forest-trainer: %w", err)
	}
	return nil
}

func resolveQuantization(cfg *config.Config) uint8 {
	if cfg.QuantizationCoefficient != 0 {
		return cfg.QuantizationCoefficient
	}
	return 4
}

func metadataPathFor(dataPath string) string {
	ext := filepath.Ext(dataPath)
	return strings.TrimSuffix(dataPath, ext) + "_dp" + ext
}

func existingForestPaths(dir, prefix string, numTrees int) ([]string, error) {
	paths := make([]string, 0, numTrees)
	for i := 0; i < numTrees; i++ {
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.bin", prefix, i))
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
