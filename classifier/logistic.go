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

// Package classifier implements the models evaluated by the cross-validation harness.
package classifier

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"mortality/svmlight"
)

// ErrNotFitted is returned when predicting with a model that has not been trained.
var ErrNotFitted = errors.New("classifier is not fitted")

// Options configures logistic regression training.
type Options struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// DefaultOptions returns 300 epochs with learning rate 0.5 and L2 penalty 1e-4.
func DefaultOptions() Options {
	return Options{Epochs: 300, LearningRate: 0.5, L2: 1e-4}
}

// Validate checks that the options can train a model.
func (o Options) Validate() error {
	if o.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", o.Epochs)
	}
	if o.LearningRate <= 0 || math.IsNaN(o.LearningRate) {
		return fmt.Errorf("learning rate must be positive, got %v", o.LearningRate)
	}
	if o.L2 < 0 || math.IsNaN(o.L2) {
		return fmt.Errorf("l2 penalty must not be negative, got %v", o.L2)
	}
	return nil
}

// LogisticRegression is a binary classifier trained with full-batch gradient descent on sparse rows. Weights start
// at zero, so training is deterministic.
type LogisticRegression struct {
	Options
	Weights []float64
	Bias    float64
	fitted  bool
}

// NewLogisticRegression creates an untrained model.
func NewLogisticRegression(opts Options) *LogisticRegression {
	return &LogisticRegression{Options: opts}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// 0/1 and -1/+1
func binaryLabel(y float64) float64 {
	if y > 0 {
		return 1
	}
	return 0
}

// Fit trains the model on rows X with labels y.
func (m *LogisticRegression) Fit(X []svmlight.Vector, y []float64) error {
	if err := m.Options.Validate(); err != nil {
		return err
	}
	if len(X) != len(y) {
		return fmt.Errorf("%d rows but %d labels", len(X), len(y))
	}
	if len(X) == 0 {
		return errors.New("cannot fit on an empty dataset")
	}
	width := 0
	for _, row := range X {
		if row.MaxIndex()+1 > width {
			width = row.MaxIndex() + 1
		}
	}
	targets := make([]float64, len(y))
	for i, label := range y {
		targets[i] = binaryLabel(label)
	}
	weights := make([]float64, width)
	grad := make([]float64, width)
	bias := 0.0
	n := float64(len(X))
	for epoch := 0; epoch < m.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		biasGrad := 0.0
		for i, row := range X {
			residual := sigmoid(row.Dot(weights)+bias) - targets[i]
			for _, f := range row {
				if f.Index >= 0 {
					grad[f.Index] += residual * f.Value
				}
			}
			biasGrad += residual
		}
		floats.Scale(1/n, grad)
		floats.AddScaled(grad, m.L2, weights)
		floats.AddScaled(weights, -m.LearningRate, grad)
		bias -= m.LearningRate * biasGrad / n
	}
	m.Weights = weights
	m.Bias = bias
	m.fitted = true
	return nil
}

// Score returns the predicted probability of the positive class for each row.
func (m *LogisticRegression) Score(X []svmlight.Vector) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	scores := make([]float64, len(X))
	for i, row := range X {
		scores[i] = sigmoid(row.Dot(m.Weights) + m.Bias)
	}
	return scores, nil
}

// Predict returns 1 for rows with a probability of at least 0.5, and 0 otherwise.
func (m *LogisticRegression) Predict(X []svmlight.Vector) ([]float64, error) {
	scores, err := m.Score(X)
	if err != nil {
		return nil, err
	}
	for i, s := range scores {
		if s >= 0.5 {
			scores[i] = 1
		} else {
			scores[i] = 0
		}
	}
	return scores, nil
}

// Loss returns the mean binary cross entropy of the model on X, y.
func (m *LogisticRegression) Loss(X []svmlight.Vector, y []float64) (float64, error) {
	scores, err := m.Score(X)
	if err != nil {
		return 0, err
	}
	if len(scores) != len(y) {
		return 0, fmt.Errorf("%d rows but %d labels", len(X), len(y))
	}
	if len(scores) == 0 {
		return 0, nil
	}
	total := 0.0
	for i, p := range scores {
		p = math.Min(math.Max(p, 1e-9), 1-1e-9)
		t := binaryLabel(y[i])
		total += -(t*math.Log(p) + (1-t)*math.Log(1-p))
	}
	return total / float64(len(scores)), nil
}
