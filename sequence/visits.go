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

package sequence

import (
	"fmt"
	"sort"
)

// NumFeatures returns the largest code id in seqs plus one, or 0 when seqs holds no codes.
func NumFeatures(seqs [][][]int) int {
	n := 0
	for _, patient := range seqs {
		for _, visit := range patient {
			for _, code := range visit {
				if code+1 > n {
					n = code + 1
				}
			}
		}
	}
	return n
}

// Sample is the multi-hot visit matrix of one patient, visits x features, with its label.
type Sample struct {
	Visits [][]float32
	Label  int
}

// VisitDataset holds the multi-hot matrices of all patients of a split.
type VisitDataset struct {
	samples []Sample
}

// NewVisitDataset turns code id sequences into multi-hot matrices of width numFeatures.
func NewVisitDataset(seqs [][][]int, labels []int, numFeatures int) (*VisitDataset, error) {
	if len(seqs) != len(labels) {
		return nil, fmt.Errorf("%d sequences but %d labels", len(seqs), len(labels))
	}
	d := &VisitDataset{samples: make([]Sample, len(seqs))}
	for i, patient := range seqs {
		visits := make([][]float32, len(patient))
		for v, visit := range patient {
			row := make([]float32, numFeatures)
			for _, code := range visit {
				if code < 0 || code >= numFeatures {
					return nil, fmt.Errorf("patient %d visit %d: code id %d outside [0, %d)", i, v, code, numFeatures)
				}
				row[code] = 1
			}
			visits[v] = row
		}
		d.samples[i] = Sample{Visits: visits, Label: labels[i]}
	}
	return d, nil
}

func (d *VisitDataset) Len() int {
	return len(d.samples)
}

func (d *VisitDataset) Item(i int) Sample {
	return d.samples[i]
}

// Batch returns the samples at the given positions.
func (d *VisitDataset) Batch(indices []int) []Sample {
	batch := make([]Sample, len(indices))
	for i, idx := range indices {
		batch[i] = d.samples[idx]
	}
	return batch
}

// Collate orders a batch by number of visits, longest first with ties in batch order, and zero-pads every matrix to
// the longest one. It returns the padded batch (batch x maxVisits x features), the original visit counts and the
// labels, all in the new order.
func Collate(batch []Sample) ([][][]float32, []int, []int) {
	order := make([]int, len(batch))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(batch[order[a]].Visits) > len(batch[order[b]].Visits)
	})
	maxLen, width := 0, 0
	for _, s := range batch {
		if len(s.Visits) > maxLen {
			maxLen = len(s.Visits)
		}
		for _, v := range s.Visits {
			if len(v) > width {
				width = len(v)
			}
		}
	}
	padded := make([][][]float32, len(batch))
	lengths := make([]int, len(batch))
	labels := make([]int, len(batch))
	for i, idx := range order {
		s := batch[idx]
		matrix := make([][]float32, maxLen)
		for v := range matrix {
			row := make([]float32, width)
			if v < len(s.Visits) {
				copy(row, s.Visits[v])
			}
			matrix[v] = row
		}
		padded[i] = matrix
		lengths[i] = len(s.Visits)
		labels[i] = s.Label
	}
	return padded, lengths, labels
}
