package drift

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/tinyforest/mcuforest/dataset"
)

// WindowResult is one fixed-size window's worth of streaming
// evaluation, matching the benchmark CSV row shape (window_start,
// accuracy, precision, recall, f1, retrained), supplemented with
// whether any tree replacement happened in the window alongside the
// full-retrain flag.
type WindowResult struct {
	WindowStart                     int
	Accuracy, Precision, Recall, F1 float64
	Retrained, Replaced             bool
}

// Benchmark drives controller over stream in order, one Observe call
// per sample, and aggregates predictions into fixed windowSize windows.
// Results come back as an in-memory []WindowResult rather than written
// anywhere, so a caller can choose to print them, encode them with
// WriteCSV, or assert on them in a test.
func Benchmark(c *Controller, stream []dataset.Sample, windowSize int) []WindowResult {
	if windowSize < 1 {
		windowSize = 1
	}
	var rows []WindowResult
	var preds, trues []uint8
	retrained, replaced := false, false
	windowStart := 0

	flush := func(end int) {
		m := windowMetrics(preds, trues, c.numLabels)
		rows = append(rows, WindowResult{
			WindowStart: windowStart,
			Accuracy:    m.accuracy, Precision: m.precision, Recall: m.recall, F1: m.f1,
			Retrained: retrained, Replaced: replaced,
		})
		windowStart = end
		preds, trues = nil, nil
		retrained, replaced = false, false
	}

	for i, s := range stream {
		out := c.Observe(s)
		preds = append(preds, out.Predicted)
		trues = append(trues, s.Label)
		retrained = retrained || out.Retrained
		replaced = replaced || out.Replaced
		if (i+1)%windowSize == 0 {
			flush(i + 1)
		}
	}
	if len(preds) > 0 {
		flush(len(stream))
	}
	return rows
}

// WriteCSV writes rows to w in the benchmark's column order.
func WriteCSV(w io.Writer, rows []WindowResult) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write([]string{"window_start", "accuracy", "precision", "recall", "f1", "retrained"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			fmt.Sprintf("%d", r.WindowStart),
			fmt.Sprintf("%.6f", r.Accuracy),
			fmt.Sprintf("%.6f", r.Precision),
			fmt.Sprintf("%.6f", r.Recall),
			fmt.Sprintf("%.6f", r.F1),
			fmt.Sprintf("%t", r.Retrained),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return cw.Error()
}

type windowScore struct{ accuracy, precision, recall, f1 float64 }

// windowMetrics computes the same macro-averaged accuracy/precision/
// recall/F1 shape forest.computeMetrics does, but over a raw
// (predicted, true) pair stream rather than a threshold-swept
// forest.Evaluation: a benchmark window has no consensus-ratio
// acceptance gate, every sample counts.
func windowMetrics(pred, trueLabels []uint8, numLabels int) windowScore {
	if numLabels < 1 {
		numLabels = 1
	}
	tp := make([]int, numLabels)
	fp := make([]int, numLabels)
	fn := make([]int, numLabels)
	correct := 0
	for i := range pred {
		p, y := pred[i], trueLabels[i]
		if p == y {
			correct++
			if int(p) < numLabels {
				tp[p]++
			}
			continue
		}
		if int(p) < numLabels {
			fp[p]++
		}
		if int(y) < numLabels {
			fn[y]++
		}
	}
	var precSum, recSum float64
	seen := 0
	for l := 0; l < numLabels; l++ {
		if tp[l]+fp[l]+fn[l] == 0 {
			continue
		}
		seen++
		if tp[l]+fp[l] > 0 {
			precSum += float64(tp[l]) / float64(tp[l]+fp[l])
		}
		if tp[l]+fn[l] > 0 {
			recSum += float64(tp[l]) / float64(tp[l]+fn[l])
		}
	}
	precision, recall := 0.0, 0.0
	if seen > 0 {
		precision = precSum / float64(seen)
		recall = recSum / float64(seen)
	}
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	accuracy := 0.0
	if len(pred) > 0 {
		accuracy = float64(correct) / float64(len(pred))
	}
	return windowScore{accuracy, precision, recall, f1}
}
