// PTRA: Patient Trajectory Analysis Library
// Copyright (c) 2022 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/ptra/blob/master/LICENSE.txt>.

package cv

import (
	"fmt"

	"github.com/exascience/pargo/parallel"
	"github.com/sirupsen/logrus"

	"mortality/logger"
	"mortality/svmlight"
	"mortality/utils"
)

// Classifier is a binary model that can be trained and asked for hard predictions.
type Classifier interface {
	Fit(X []svmlight.Vector, y []float64) error
	Predict(X []svmlight.Vector) ([]float64, error)
}

// Scorer is implemented by classifiers that produce continuous scores. With Harness.ScoreAUC set the AUC is computed
// from them instead of from the hard predictions.
type Scorer interface {
	Score(X []svmlight.Vector) ([]float64, error)
}

// Factory creates a fresh untrained classifier. Every fold gets its own instance.
type Factory func() Classifier

// Result summarizes a cross-validation run.
type Result struct {
	Folds []Metrics // per fold or iteration, in split order
	Mean  Metrics
	// Correct and Total count the pooled held-out predictions.
	Correct, Total int
	// MajorityRate is the share of the most frequent class in the dataset.
	MajorityRate float64
	// PValue is the one-sided binomial probability of at least Correct hits at MajorityRate. Only k-fold runs set it,
	// since randomized test sets overlap.
	PValue float64
}

// Harness runs cross-validation for classifiers from one factory.
type Harness struct {
	New Factory
	Log *logrus.Logger
	// ScoreAUC ranks held-out samples by Scorer scores for the AUC. By default the AUC is taken over the hard
	// predictions.
	ScoreAUC bool
}

// NewHarness creates a harness. A nil logger discards output.
func NewHarness(factory Factory, log *logrus.Logger) *Harness {
	if log == nil {
		log = logger.Discard()
	}
	return &Harness{New: factory, Log: log}
}

func (h *Harness) checkData(data *svmlight.Dataset) error {
	if h.New == nil {
		return fmt.Errorf("%w: no classifier factory", ErrInvalidConfig)
	}
	if data == nil || data.Len() == 0 {
		return fmt.Errorf("%w: empty dataset", ErrInvalidConfig)
	}
	if len(data.Rows) != len(data.Labels) {
		return fmt.Errorf("%w: %d rows but %d labels", ErrInvalidConfig, len(data.Rows), len(data.Labels))
	}
	return nil
}

// KFold evaluates k contiguous folds, each held out once, and reports the mean metrics.
func (h *Harness) KFold(data *svmlight.Dataset, k int) (*Result, error) {
	if err := h.checkData(data); err != nil {
		return nil, err
	}
	splits, err := KFold(data.Len(), k)
	if err != nil {
		return nil, err
	}
	result, err := h.evaluate(data, splits)
	if err != nil {
		return nil, err
	}
	result.PValue, err = utils.BinomialUpperTail(result.MajorityRate, result.Total, result.Correct)
	if err != nil {
		return nil, err
	}
	h.Log.WithFields(logrus.Fields{
		"k":        k,
		"accuracy": result.Mean.Accuracy,
		"auc":      result.Mean.AUC,
		"pValue":   result.PValue,
	}).Info("k-fold cross-validation done")
	return result, nil
}

// Randomized evaluates iter random train/test splits and reports the mean metrics.
func (h *Harness) Randomized(data *svmlight.Dataset, iter int, testFraction float64, seed uint32) (*Result, error) {
	if err := h.checkData(data); err != nil {
		return nil, err
	}
	splits, err := ShuffleSplit(data.Len(), iter, testFraction, seed)
	if err != nil {
		return nil, err
	}
	result, err := h.evaluate(data, splits)
	if err != nil {
		return nil, err
	}
	h.Log.WithFields(logrus.Fields{
		"iterations":   iter,
		"testFraction": testFraction,
		"seed":         seed,
		"accuracy":     result.Mean.Accuracy,
		"auc":          result.Mean.AUC,
	}).Info("randomized cross-validation done")
	return result, nil
}

type foldOutcome struct {
	metrics Metrics
	correct int
	err     error
}

func (h *Harness) evaluateSplit(data *svmlight.Dataset, split Split) foldOutcome {
	train, test := data.Subset(split.Train), data.Subset(split.Test)
	model := h.New()
	if err := model.Fit(train.Rows, train.Labels); err != nil {
		return foldOutcome{err: err}
	}
	predictions, err := model.Predict(test.Rows)
	if err != nil {
		return foldOutcome{err: err}
	}
	scores := predictions
	if scorer, ok := model.(Scorer); ok && h.ScoreAUC {
		if scores, err = scorer.Score(test.Rows); err != nil {
			return foldOutcome{err: err}
		}
	}
	metrics, err := ClassificationMetrics(predictions, scores, test.Labels)
	if err != nil {
		return foldOutcome{err: err}
	}
	correct := 0
	for i, p := range predictions {
		if positive(p) == positive(test.Labels[i]) {
			correct++
		}
	}
	return foldOutcome{metrics: metrics, correct: correct}
}

// Outcomes are stored by split index.
func (h *Harness) evaluate(data *svmlight.Dataset, splits []Split) (*Result, error) {
	outcomes := make([]foldOutcome, len(splits))
	parallel.Range(0, len(splits), 0, func(low, high int) {
		for i := low; i < high; i++ {
			outcomes[i] = h.evaluateSplit(data, splits[i])
		}
	})
	result := &Result{Folds: make([]Metrics, len(splits))}
	for i, o := range outcomes {
		if o.err != nil {
			return nil, fmt.Errorf("fold %d: %w", i, o.err)
		}
		h.Log.WithFields(logrus.Fields{
			"fold":      i,
			"train":     len(splits[i].Train),
			"test":      len(splits[i].Test),
			"accuracy":  o.metrics.Accuracy,
			"auc":       o.metrics.AUC,
			"precision": o.metrics.Precision,
			"recall":    o.metrics.Recall,
			"f1":        o.metrics.F1,
		}).Debug("fold evaluated")
		result.Folds[i] = o.metrics
		result.Correct += o.correct
		result.Total += len(splits[i].Test)
	}
	result.Mean = meanMetrics(result.Folds)
	positives := 0
	for _, y := range data.Labels {
		if positive(y) {
			positives++
		}
	}
	majority := positives
	if n := data.Len() - positives; n > majority {
		majority = n
	}
	result.MajorityRate = float64(majority) / float64(data.Len())
	return result, nil
}
