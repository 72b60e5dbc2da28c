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

package etl

import (
	"sort"

	"mortality/svmlight"
)

// PatientFeatures is the sparse feature vector of one patient.
type PatientFeatures struct {
	PatientID int
	Features  svmlight.Vector
}

// FeatureBag holds the feature vectors of all patients, ordered by patient id, each vector ordered by feature id.
type FeatureBag struct {
	patients []PatientFeatures
	index    map[int]int
}

// NewFeatureBag groups aggregated features per patient. Input order does not matter. When a (patient, feature) pair
// occurs more than once, the last value wins.
func NewFeatureBag(features []AggregatedFeature) *FeatureBag {
	grouped := map[int]map[int]float64{}
	for _, f := range features {
		vec, ok := grouped[f.PatientID]
		if !ok {
			vec = map[int]float64{}
			grouped[f.PatientID] = vec
		}
		vec[f.FeatureID] = f.Value
	}
	pids := make([]int, 0, len(grouped))
	for pid := range grouped {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	bag := &FeatureBag{patients: make([]PatientFeatures, len(pids)), index: make(map[int]int, len(pids))}
	for i, pid := range pids {
		vec := make(svmlight.Vector, 0, len(grouped[pid]))
		for fid, value := range grouped[pid] {
			vec = append(vec, svmlight.Feature{Index: fid, Value: value})
		}
		sort.Slice(vec, func(a, b int) bool { return vec[a].Index < vec[b].Index })
		bag.patients[i] = PatientFeatures{PatientID: pid, Features: vec}
		bag.index[pid] = i
	}
	return bag
}

// Len returns the number of patients in the bag.
func (b *FeatureBag) Len() int {
	return len(b.patients)
}

// Patients returns the patient vectors in ascending patient order. The slice must not be modified.
func (b *FeatureBag) Patients() []PatientFeatures {
	return b.patients
}

// PatientIDs returns the patient ids in ascending order.
func (b *FeatureBag) PatientIDs() []int {
	ids := make([]int, len(b.patients))
	for i, p := range b.patients {
		ids[i] = p.PatientID
	}
	return ids
}

// Features returns the vector of a patient.
func (b *FeatureBag) Features(pid int) (svmlight.Vector, bool) {
	i, ok := b.index[pid]
	if !ok {
		return nil, false
	}
	return b.patients[i].Features, true
}

// Result bundles the intermediate tables and final features of one feature construction run.
type Result struct {
	IndexDates     []IndexDate
	FilteredEvents []FilteredEvent
	Aggregated     []AggregatedFeature
	Bag            *FeatureBag
	Labels         map[int]int // mortality label per patient in the bag
}

// CreateFeatures runs index date calculation, window filtering and aggregation, and builds the feature bag together
// with a mortality label for each of its patients.
func CreateFeatures(events []Event, mortality []MortalityRecord, featureMap *FeatureMap, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	indexDates, err := CalculateIndexDates(events, mortality, cfg)
	if err != nil {
		return nil, err
	}
	filtered := FilterEvents(events, indexDates, cfg)
	aggregated := AggregateEvents(filtered, featureMap, cfg)
	bag := NewFeatureBag(aggregated)
	dead := MortalityLabels(mortality)
	labels := make(map[int]int, bag.Len())
	for _, pid := range bag.PatientIDs() {
		labels[pid] = dead[pid]
	}
	return &Result{
		IndexDates:     indexDates,
		FilteredEvents: filtered,
		Aggregated:     aggregated,
		Bag:            bag,
		Labels:         labels,
	}, nil
}
