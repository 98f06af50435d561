// Command drift-bench replays a dataset through a drift.Controller and
// writes a windowed accuracy/precision/recall/F1 CSV: train on the
// first --drift-point samples, then stream the remainder through the
// controller one sample at a time.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyforest/mcuforest/config"
	"github.com/tinyforest/mcuforest/dataset"
	"github.com/tinyforest/mcuforest/drift"
	"github.com/tinyforest/mcuforest/forest"
	"github.com/tinyforest/mcuforest/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.L().Errorw("drift-bench failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dataPath   string
		configPath string
		outPath    string
		driftPoint int
		windowSize int
		maxSamples int
		streaming  bool
	)

	cmd := &cobra.Command{
		Use:           "drift-bench",
		Short:         "Benchmark streaming drift adaptation over a quantized CSV dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(dataPath, configPath, outPath, driftPoint, windowSize, maxSamples, streaming)
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "path to the quantized-feature CSV dataset (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a JSON trainer config, defaults applied when omitted")
	cmd.Flags().StringVar(&outPath, "out", "drift_results.csv", "path to write the windowed benchmark CSV to")
	cmd.Flags().IntVar(&driftPoint, "drift-point", 0, "number of leading samples used to train the initial forest, 0 for 70% of the dataset")
	cmd.Flags().IntVar(&windowSize, "window-size", 500, "evaluation window length in samples")
	cmd.Flags().IntVar(&maxSamples, "max-samples", 0, "cap the number of dataset rows loaded, 0 for unlimited")
	cmd.Flags().BoolVar(&streaming, "streaming", true, "enable tree replacement and online leaf updates; disabled replays prediction only")

	return cmd
}

func run(dataPath, configPath, outPath string, driftPoint, windowSize, maxSamples int, streaming bool) error {
	if dataPath == "" {
		return fmt.Errorf("drift-bench: --data is required")
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("drift-bench: %w", err)
		}
		cfg = loaded
	}

	quantization := cfg.QuantizationCoefficient
	if quantization == 0 {
		quantization = 4
	}
	ds, err := dataset.Load(dataPath, quantization)
	if err != nil {
		return fmt.Errorf("drift-bench: %w", err)
	}
	if maxSamples > 0 && len(ds.Samples) > maxSamples {
		ds.Samples = ds.Samples[:maxSamples]
	}
	if len(ds.Samples) < 2 {
		return fmt.Errorf("drift-bench: dataset %s has too few samples to benchmark", dataPath)
	}

	if driftPoint <= 0 || driftPoint >= len(ds.Samples) {
		driftPoint = (len(ds.Samples) * 70) / 100
		if driftPoint < 1 {
			driftPoint = 1
		}
	}

	trainDS := &dataset.Dataset{
		Samples:                 ds.Samples[:driftPoint],
		NumFeatures:             ds.NumFeatures,
		NumLabels:               ds.NumLabels,
		QuantizationCoefficient: ds.QuantizationCoefficient,
	}
	trainer, err := forest.NewTrainer(cfg, trainDS, forest.WithLogger(logging.L()))
	if err != nil {
		return fmt.Errorf("drift-bench: %w", err)
	}
	result, err := trainer.Train()
	if err != nil {
		return fmt.Errorf("drift-bench: %w", err)
	}
	logging.L().Infow("trained initial forest", "samples", driftPoint, "score", result.Score)

	driftCfg := drift.DefaultConfig()
	driftCfg.WindowSize = windowSize

	opts := []drift.Option{drift.WithLogger(logging.L())}
	if !streaming {
		opts = append(opts, drift.WithAdaptationDisabled())
	}
	controller := drift.NewController(result.Forest, result.Hyperparams(cfg, 1), cfg, driftCfg, ds.NumLabels, ds.NumFeatures, ds.QuantizationCoefficient, opts...)

	stream := ds.Samples[driftPoint:]
	rows := drift.Benchmark(controller, stream, windowSize)

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("drift-bench: %w", err)
	}
	defer out.Close()
	if err := drift.WriteCSV(out, rows); err != nil {
		return fmt.Errorf("drift-bench: %w", err)
	}
	logging.L().Infow("wrote drift benchmark", "windows", len(rows), "out", outPath)
	return nil
}
