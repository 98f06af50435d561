// Package dataset loads the quantized-feature CSV samples the forest
// trainer and drift controller consume, plus the optional *_dp.csv
// metadata sidecar that overrides quantization_coefficient and
// num_labels. CSV parsing particulars are explicitly out of scope for
// the container/forest core this module focuses on, so this package
// stays a thin loader rather than a general CSV engine; the one piece
// of shared machinery it does use is the root package's normalized Key
// for matching sidecar field names.
package dataset

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	mcuforest "github.com/tinyforest/mcuforest"
)

// Sample is one labeled, quantized feature row.
type Sample struct {
	Label    uint8
	Features []uint8
}

// Dataset is an in-memory collection of Samples sharing a feature count
// and quantization bit-width.
type Dataset struct {
	Samples                 []Sample
	NumFeatures             int
	NumLabels               int
	QuantizationCoefficient uint8
}

// allowedQuantizations is the set of quantization bit-widths the
// trainer accepts; anything else is refused outright.
var allowedQuantizations = map[uint8]bool{1: true, 2: true, 3: true, 4: true, 6: true, 8: true}

// ErrUnsupportedQuantization is returned when a dataset or its metadata
// sidecar names a quantization bit-width outside {1,2,3,4,6,8}.
var ErrUnsupportedQuantization = fmt.Errorf("dataset: unsupported quantization coefficient")

// Load reads a CSV file of `label, feat_0, ..., feat_{F-1}` rows. Lines
// are trimmed; blank lines are skipped. quantization is the bit-width
// recorded on the Dataset (from config, possibly overridden by
// LoadMetadata); it must be one of the accepted widths. Feature values
// are stored as read and are not range-checked against it.
func Load(path string, quantization uint8) (*Dataset, error) {
	if !allowedQuantizations[quantization] {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedQuantization, quantization)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	ds := &Dataset{QuantizationCoefficient: quantization}
	labelSet := make(map[uint8]bool)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		for i, v := range fields {
			fields[i] = strings.TrimSpace(v)
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("dataset: line %d: expected at least 2 fields, got %d", lineNo, len(fields))
		}
		labelVal, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("dataset: line %d: bad label %q: %w", lineNo, fields[0], err)
		}
		if ds.NumFeatures == 0 {
			ds.NumFeatures = len(fields) - 1
		} else if len(fields)-1 != ds.NumFeatures {
			return nil, fmt.Errorf("dataset: line %d: expected %d features, got %d", lineNo, ds.NumFeatures, len(fields)-1)
		}
		features := make([]uint8, len(fields)-1)
		for i, tok := range fields[1:] {
			v, err := strconv.Atoi(tok)
			if err != nil {
				return nil, fmt.Errorf("dataset: line %d: bad feature %q: %w", lineNo, tok, err)
			}
			features[i] = uint8(v)
		}
		labelSet[uint8(labelVal)] = true
		ds.Samples = append(ds.Samples, Sample{Label: uint8(labelVal), Features: features})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dataset: scan %s: %w", path, err)
	}
	ds.NumLabels = len(labelSet)
	return ds, nil
}

// Metadata carries the *_dp.csv sidecar's silent overrides.
type Metadata struct {
	QuantizationCoefficient uint8
	NumLabels               int
}

// Metadata field names are matched as normalized Keys rather than raw
// strings: the sidecar is hand-edited user input, so a field name
// pasted with a different Unicode composition still matches.
var (
	metaKeyQuantization = mcuforest.FromString("quantization_coefficient")
	metaKeyNumLabels    = mcuforest.FromString("num_labels")
)

// LoadMetadata reads a `*_dp.csv` file of `key,value` lines and returns
// whichever of quantization_coefficient/num_labels it finds. Both fields
// are zero when the corresponding key is absent; callers apply the
// override only for fields actually present.
func LoadMetadata(path string) (Metadata, error) {
	var md Metadata
	f, err := os.Open(path)
	if err != nil {
		return md, fmt.Errorf("dataset: open metadata %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			continue
		}
		key := mcuforest.FromString(strings.TrimSpace(parts[0]))
		val := strings.TrimSpace(parts[1])
		switch {
		case key.Equal(metaKeyQuantization):
			n, err := strconv.Atoi(val)
			if err != nil {
				return md, fmt.Errorf("dataset: metadata %s: bad quantization_coefficient %q: %w", path, val, err)
			}
			md.QuantizationCoefficient = uint8(n)
		case key.Equal(metaKeyNumLabels):
			n, err := strconv.Atoi(val)
			if err != nil {
				return md, fmt.Errorf("dataset: metadata %s: bad num_labels %q: %w", path, val, err)
			}
			md.NumLabels = n
		}
	}
	if err := scanner.Err(); err != nil {
		return md, fmt.Errorf("dataset: scan metadata %s: %w", path, err)
	}
	return md, nil
}

// Apply overwrites ds's quantization/label-count fields with any
// non-zero values present in md, per the sidecar's "silently override"
// contract.
func (md Metadata) Apply(ds *Dataset) error {
	if md.QuantizationCoefficient != 0 {
		if !allowedQuantizations[md.QuantizationCoefficient] {
			return fmt.Errorf("%w: %d", ErrUnsupportedQuantization, md.QuantizationCoefficient)
		}
		ds.QuantizationCoefficient = md.QuantizationCoefficient
	}
	if md.NumLabels != 0 {
		ds.NumLabels = md.NumLabels
	}
	return nil
}

// ReconcileSplitRatio applies the dataset-size-aware half of the split
// reconciliation rule. Under valid_score, small datasets (<=150 samples
// per label on average) use a 0.6/0.2/0.2 split and larger ones
// 0.7/0.15/0.15; otherwise small datasets use 0.75/0.25/0 and larger
// ones 0.8/0.2/0. This is applied once the sample count is known, after
// config.Load's score-mode-only reconciliation.
func (ds *Dataset) ReconcileSplitRatio(validScore bool) (train, test, valid float64) {
	if ds.NumLabels == 0 {
		return 0.7, 0.15, 0.15
	}
	perLabel := float64(len(ds.Samples)) / float64(ds.NumLabels)
	small := perLabel <= 150
	switch {
	case validScore && small:
		return 0.6, 0.2, 0.2
	case validScore:
		return 0.7, 0.15, 0.15
	case small:
		return 0.75, 0.25, 0
	default:
		return 0.8, 0.2, 0
	}
}

// ImbalanceRatio returns majority-class-count / minority-class-count
// across ds's samples, used to auto-select a training objective.
func (ds *Dataset) ImbalanceRatio() float64 {
	counts := make(map[uint8]int)
	for _, s := range ds.Samples {
		counts[s.Label]++
	}
	if len(counts) == 0 {
		return 1.0
	}
	minority, majority := -1, 0
	for _, c := range counts {
		if minority == -1 || c < minority {
			minority = c
		}
		if c > majority {
			majority = c
		}
	}
	if minority <= 0 {
		return 0
	}
	return float64(majority) / float64(minority)
}
