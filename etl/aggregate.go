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
)

type patientEvent struct {
	pid     int
	eventID string
}

// AggregateEvents collapses filtered events into one value per patient and feature. Events without a value are
// dropped first. Summed classes add their values, counted classes count occurrences, and events of any other class
// are left out. Event ids missing from the feature map are dropped. Each feature is then divided by its maximum over
// all patients; a feature whose maximum is not positive is left as is. The result is sorted by patient id and
// feature id.
func AggregateEvents(filtered []FilteredEvent, featureMap *FeatureMap, cfg Config) []AggregatedFeature {
	totals := map[patientEvent]float64{}
	for _, e := range filtered {
		if !e.HasValue {
			continue
		}
		key := patientEvent{pid: e.PatientID, eventID: e.EventID}
		switch cfg.classify(e.EventID) {
		case summed:
			totals[key] += e.Value
		case counted:
			totals[key]++
		}
	}
	result := make([]AggregatedFeature, 0, len(totals))
	for key, value := range totals {
		fid, ok := featureMap.FeatureID(key.eventID)
		if !ok {
			continue
		}
		result = append(result, AggregatedFeature{PatientID: key.pid, FeatureID: fid, Value: value})
	}
	normalizeFeatures(result)
	sort.Slice(result, func(i, j int) bool {
		if result[i].PatientID != result[j].PatientID {
			return result[i].PatientID < result[j].PatientID
		}
		return result[i].FeatureID < result[j].FeatureID
	})
	return result
}

// normalizeFeatures divides every value by the maximum of its feature id. A zero maximum leaves the feature as is.
func normalizeFeatures(features []AggregatedFeature) {
	maxima := map[int]float64{}
	for _, f := range features {
		if m, ok := maxima[f.FeatureID]; !ok || f.Value > m {
			maxima[f.FeatureID] = f.Value
		}
	}
	for i := range features {
		if m := maxima[features[i].FeatureID]; m != 0 {
			features[i].Value = features[i].Value / m
		}
	}
}
