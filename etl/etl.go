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

// Package etl turns a raw clinical event log into normalized per-patient feature vectors. The stages are: index
// dates, observation window filtering, aggregation + normalization, and the feature bag that is exported in
// svmlight format.
package etl

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrMalformedInput is wrapped by errors about inconsistent input tables.
var ErrMalformedInput = errors.New("malformed input")

// Event represents one row of the event log.
type Event struct {
	PatientID   int
	EventID     string // DIAG..., DRUG... or LAB... code
	Description string
	Timestamp   time.Time
	Value       float64
	HasValue    bool // false when the value cell was empty
}

// MortalityRecord marks a deceased patient and the date of death.
type MortalityRecord struct {
	PatientID int
	Timestamp time.Time
	Label     int
}

// IndexDate is the prediction cutoff for a patient.
type IndexDate struct {
	PatientID int
	Date      time.Time
}

// FilteredEvent is an event that falls inside the observation window of its patient.
type FilteredEvent struct {
	PatientID int
	EventID   string
	Value     float64
	HasValue  bool
}

// AggregatedFeature is the normalized value of one feature for one patient.
type AggregatedFeature struct {
	PatientID int
	FeatureID int
	Value     float64
}

// FeatureMap maps event ids onto feature ids and back. Both directions are unique.
type FeatureMap struct {
	featureIDs map[string]int
	eventIDs   map[int]string
}

// NewFeatureMap creates an empty feature map.
func NewFeatureMap() *FeatureMap {
	return &FeatureMap{featureIDs: map[string]int{}, eventIDs: map[int]string{}}
}

// Add registers eventID -> featureID. Reusing either side for a different partner is an error.
func (m *FeatureMap) Add(featureID int, eventID string) error {
	if fid, ok := m.featureIDs[eventID]; ok {
		if fid == featureID {
			return nil
		}
		return fmt.Errorf("%w: event id %s mapped to both %d and %d", ErrMalformedInput, eventID, fid, featureID)
	}
	if eid, ok := m.eventIDs[featureID]; ok {
		return fmt.Errorf("%w: feature id %d mapped to both %s and %s", ErrMalformedInput, featureID, eid, eventID)
	}
	m.featureIDs[eventID] = featureID
	m.eventIDs[featureID] = eventID
	return nil
}

// FeatureID looks up the feature id of an event id.
func (m *FeatureMap) FeatureID(eventID string) (int, bool) {
	fid, ok := m.featureIDs[eventID]
	return fid, ok
}

// EventID looks up the event id of a feature id.
func (m *FeatureMap) EventID(featureID int) (string, bool) {
	eid, ok := m.eventIDs[featureID]
	return eid, ok
}

// Len returns the number of mapped features.
func (m *FeatureMap) Len() int {
	return len(m.featureIDs)
}

// FeatureIDs returns all feature ids in ascending order.
func (m *FeatureMap) FeatureIDs() []int {
	ids := make([]int, 0, len(m.eventIDs))
	for id := range m.eventIDs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Config holds the parameters of the feature construction.
type Config struct {
	DeathOffsetDays int      // index date = death date - DeathOffsetDays
	WindowDays      int      // observation window length before the index date
	SumPrefixes     []string // event id prefixes aggregated by summing values
	CountPrefixes   []string // event id prefixes aggregated by counting occurrences
	// Filters are applied on top of the observation window.
	Filters []EventFilter
}

// DefaultConfig returns the standard parameters: 30 days before death, a 2000 day window, DIAG/DRUG summed and
// LAB counted.
func DefaultConfig() Config {
	return Config{
		DeathOffsetDays: 30,
		WindowDays:      2000,
		SumPrefixes:     []string{"DIAG", "DRUG"},
		CountPrefixes:   []string{"LAB"},
	}
}

// Validate checks the parameters for consistency.
func (c Config) Validate() error {
	if c.DeathOffsetDays < 0 {
		return fmt.Errorf("death offset must not be negative, got %d days", c.DeathOffsetDays)
	}
	if c.WindowDays < 0 {
		return fmt.Errorf("observation window must not be negative, got %d days", c.WindowDays)
	}
	for _, s := range c.SumPrefixes {
		for _, p := range c.CountPrefixes {
			if strings.HasPrefix(s, p) || strings.HasPrefix(p, s) {
				return fmt.Errorf("prefix %q overlaps between sum and count groups", s)
			}
		}
	}
	return nil
}

// aggregation is how the values of an event class are collapsed.
type aggregation int

const (
	excluded aggregation = iota
	summed
	counted
)

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// classify returns how events with the given id are aggregated. Ids matching neither group are excluded.
func (c Config) classify(eventID string) aggregation {
	switch {
	case hasAnyPrefix(eventID, c.SumPrefixes):
		return summed
	case hasAnyPrefix(eventID, c.CountPrefixes):
		return counted
	default:
		return excluded
	}
}
