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

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Metrics are the scores of a classifier on one held-out set.
type Metrics struct {
	Accuracy  float64
	AUC       float64
	Precision float64
	Recall    float64
	F1        float64
}

func positive(y float64) bool {
	return y > 0
}

// AUC computes the area under the ROC curve of scores against labels with trapezoidal integration. When the labels
// contain only one class the area is undefined and 0.5 is returned.
func AUC(scores, labels []float64) (float64, error) {
	if len(scores) != len(labels) {
		return 0, fmt.Errorf("%d scores but %d labels", len(scores), len(labels))
	}
	y := append([]float64(nil), scores...)
	classes := make([]bool, len(labels))
	positives := 0
	for i, label := range labels {
		classes[i] = positive(label)
		if classes[i] {
			positives++
		}
	}
	if positives == 0 || positives == len(labels) {
		return 0.5, nil
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// ClassificationMetrics compares hard predictions and continuous scores with the true labels.
func ClassificationMetrics(predictions, scores, labels []float64) (Metrics, error) {
	if len(predictions) != len(labels) {
		return Metrics{}, fmt.Errorf("%d predictions but %d labels", len(predictions), len(labels))
	}
	if len(labels) == 0 {
		return Metrics{}, fmt.Errorf("no labels to evaluate")
	}
	var tp, fp, fn, correct int
	for i, label := range labels {
		p, t := positive(predictions[i]), positive(label)
		switch {
		case p && t:
			tp++
		case p && !t:
			fp++
		case !p && t:
			fn++
		}
		if p == t {
			correct++
		}
	}
	auc, err := AUC(scores, labels)
	if err != nil {
		return Metrics{}, err
	}
	m := Metrics{Accuracy: float64(correct) / float64(len(labels)), AUC: auc}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m, nil
}

func meanMetrics(folds []Metrics) Metrics {
	n := len(folds)
	acc, auc, prec, rec, f1 := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n),
		make([]float64, n)
	for i, m := range folds {
		acc[i], auc[i], prec[i], rec[i], f1[i] = m.Accuracy, m.AUC, m.Precision, m.Recall, m.F1
	}
	return Metrics{
		Accuracy:  stat.Mean(acc, nil),
		AUC:       stat.Mean(auc, nil),
		Precision: stat.Mean(prec, nil),
		Recall:    stat.Mean(rec, nil),
		F1:        stat.Mean(f1, nil),
	}
}
