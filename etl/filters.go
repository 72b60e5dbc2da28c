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
	"time"

	"mortality/utils"
)

// EventFilter decides whether an event is kept, given the index date of its patient.
type EventFilter func(e Event, indexDate time.Time) bool

// ObservationWindowFilter keeps events that happened on or before the index date and at most the given number of
// days before it.
func ObservationWindowFilter(days int) EventFilter {
	maxWindow := time.Duration(days) * utils.Day
	return func(e Event, indexDate time.Time) bool {
		window := indexDate.Sub(e.Timestamp)
		return window >= 0 && window <= maxWindow
	}
}

// PrefixFilter keeps events whose id starts with one of the given prefixes.
func PrefixFilter(prefixes ...string) EventFilter {
	return func(e Event, _ time.Time) bool {
		return hasAnyPrefix(e.EventID, prefixes)
	}
}

// ApplyEventFilters joins events with the index dates of their patients and keeps the events that pass all
// filters. Events of patients without an index date are dropped. The result is sorted by patient id and event id;
// ties keep their input order.
func ApplyEventFilters(filters []EventFilter, events []Event, indexDates []IndexDate) []FilteredEvent {
	dates := make(map[int]time.Time, len(indexDates))
	for _, d := range indexDates {
		dates[d.PatientID] = d.Date
	}
	result := []FilteredEvent{}
	for _, e := range events {
		indexDate, ok := dates[e.PatientID]
		if !ok {
			continue
		}
		keep := true
		for _, filter := range filters {
			if !filter(e, indexDate) {
				keep = false
				break
			}
		}
		if keep {
			result = append(result, FilteredEvent{PatientID: e.PatientID, EventID: e.EventID, Value: e.Value,
				HasValue: e.HasValue})
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].PatientID != result[j].PatientID {
			return result[i].PatientID < result[j].PatientID
		}
		return result[i].EventID < result[j].EventID
	})
	return result
}

// FilterEvents keeps the events inside each patient's observation window that also pass the configured filters.
func FilterEvents(events []Event, indexDates []IndexDate, cfg Config) []FilteredEvent {
	filters := append([]EventFilter{ObservationWindowFilter(cfg.WindowDays)}, cfg.Filters...)
	return ApplyEventFilters(filters, events, indexDates)
}
