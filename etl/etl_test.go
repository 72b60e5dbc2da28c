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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mortality/utils"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := utils.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func event(t *testing.T, pid int, eventID, timestamp string, value float64) Event {
	return Event{PatientID: pid, EventID: eventID, Timestamp: date(t, timestamp), Value: value, HasValue: true}
}

func featureMap(t *testing.T, eventIDs ...string) *FeatureMap {
	t.Helper()
	m := NewFeatureMap()
	for i, id := range eventIDs {
		if err := m.Add(i+1, id); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func TestSampleScenario(t *testing.T) {
	events := []Event{event(t, 1, "DIAG1", "2020-01-01", 5)}
	mortality := []MortalityRecord{{PatientID: 1, Timestamp: date(t, "2020-02-01"), Label: 1}}
	result, err := CreateFeatures(events, mortality, featureMap(t, "DIAG1"), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.IndexDates) != 1 || !result.IndexDates[0].Date.Equal(date(t, "2020-01-02")) {
		t.Fatalf("unexpected index dates %v", result.IndexDates)
	}
	if len(result.FilteredEvents) != 1 {
		t.Fatalf("expected the event to stay in the window, got %v", result.FilteredEvents)
	}
	if len(result.Aggregated) != 1 || result.Aggregated[0].Value != 1.0 {
		t.Fatalf("unexpected aggregated features %v", result.Aggregated)
	}
	var svm, labeled bytes.Buffer
	if err := WriteSVMLight(&svm, &labeled, result.Bag, result.Labels); err != nil {
		t.Fatal(err)
	}
	if svm.String() != "1 1:1.0\n" {
		t.Errorf("svmlight line %q", svm.String())
	}
	if labeled.String() != "1 1 1:1.0\n" {
		t.Errorf("labeled line %q", labeled.String())
	}
}

func TestCalculateIndexDates(t *testing.T) {
	events := []Event{
		event(t, 2, "DIAG1", "2020-03-01", 1),
		event(t, 1, "DIAG1", "2020-01-01", 1),
		event(t, 1, "LAB1", "2020-03-05", 1),
		event(t, 1, "DRUG1", "2020-02-01", 1),
		event(t, 2, "DIAG1", "2020-06-01", 1),
	}
	mortality := []MortalityRecord{
		{PatientID: 2, Timestamp: date(t, "2020-04-30")},
		{PatientID: 3, Timestamp: date(t, "2021-01-31")},
		{PatientID: 3, Timestamp: date(t, "2021-01-31")},
	}
	dates, err := CalculateIndexDates(events, mortality, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	expected := []IndexDate{
		{PatientID: 1, Date: date(t, "2020-03-05")},
		{PatientID: 2, Date: date(t, "2020-03-31")},
		{PatientID: 3, Date: date(t, "2021-01-01")},
	}
	if len(dates) != len(expected) {
		t.Fatalf("expected %d index dates, got %v", len(expected), dates)
	}
	for i, d := range dates {
		if d.PatientID != expected[i].PatientID || !d.Date.Equal(expected[i].Date) {
			t.Errorf("index date %d: expected %v, got %v", i, expected[i], d)
		}
	}
}

func TestConflictingDeathDates(t *testing.T) {
	mortality := []MortalityRecord{
		{PatientID: 1, Timestamp: date(t, "2020-01-01")},
		{PatientID: 1, Timestamp: date(t, "2020-01-02")},
	}
	if _, err := CalculateIndexDates(nil, mortality, DefaultConfig()); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected a malformed input error, got %v", err)
	}
}

func TestObservationWindowBounds(t *testing.T) {
	// index date 2020-01-01
	mortality := []MortalityRecord{{PatientID: 1, Timestamp: date(t, "2020-01-31")}}
	index := date(t, "2020-01-01")
	events := []Event{
		{PatientID: 1, EventID: "DIAG_AFTER", Timestamp: utils.AddDays(index, 1), HasValue: true},
		{PatientID: 1, EventID: "DIAG_AT", Timestamp: index, HasValue: true},
		{PatientID: 1, EventID: "DIAG_EDGE", Timestamp: utils.AddDays(index, -2000), HasValue: true},
		{PatientID: 1, EventID: "DIAG_OLD", Timestamp: utils.AddDays(index, -2001), HasValue: true},
		{PatientID: 9, EventID: "DIAG_AT", Timestamp: index, HasValue: true},
	}
	cfg := DefaultConfig()
	dates, err := CalculateIndexDates(events[:4], mortality, cfg)
	if err != nil {
		t.Fatal(err)
	}
	filtered := FilterEvents(events, dates, cfg)
	kept := []string{}
	for _, e := range filtered {
		kept = append(kept, e.EventID)
	}
	if strings.Join(kept, ",") != "DIAG_AT,DIAG_EDGE" {
		t.Errorf("unexpected filtered events %v", kept)
	}
}

func TestFilterEventsOrder(t *testing.T) {
	events := []Event{
		event(t, 2, "LAB1", "2020-01-01", 1),
		event(t, 1, "LAB1", "2020-01-01", 2),
		event(t, 1, "DIAG1", "2020-01-01", 3),
		event(t, 1, "LAB1", "2020-01-01", 4),
	}
	dates := []IndexDate{{PatientID: 1, Date: date(t, "2020-01-01")}, {PatientID: 2, Date: date(t, "2020-01-01")}}
	filtered := FilterEvents(events, dates, DefaultConfig())
	expected := []FilteredEvent{
		{PatientID: 1, EventID: "DIAG1", Value: 3, HasValue: true},
		{PatientID: 1, EventID: "LAB1", Value: 2, HasValue: true},
		{PatientID: 1, EventID: "LAB1", Value: 4, HasValue: true},
		{PatientID: 2, EventID: "LAB1", Value: 1, HasValue: true},
	}
	if len(filtered) != len(expected) {
		t.Fatalf("expected %d events, got %v", len(expected), filtered)
	}
	for i := range expected {
		if filtered[i] != expected[i] {
			t.Errorf("event %d: expected %v, got %v", i, expected[i], filtered[i])
		}
	}
}

func TestPrefixFilter(t *testing.T) {
	events := []Event{event(t, 1, "LAB1", "2020-01-01", 1), event(t, 1, "DIAG1", "2020-01-01", 1)}
	dates := []IndexDate{{PatientID: 1, Date: date(t, "2020-01-01")}}
	cfg := DefaultConfig()
	cfg.Filters = []EventFilter{PrefixFilter("DIAG")}
	filtered := FilterEvents(events, dates, cfg)
	if len(filtered) != 1 || filtered[0].EventID != "DIAG1" {
		t.Errorf("unexpected filtered events %v", filtered)
	}
}

func TestAggregateEvents(t *testing.T) {
	filtered := []FilteredEvent{
		{PatientID: 1, EventID: "LAB1", Value: 7, HasValue: true},
		{PatientID: 1, EventID: "LAB1", Value: 9, HasValue: true},
		{PatientID: 1, EventID: "DIAG1", Value: 2, HasValue: true},
		{PatientID: 1, EventID: "DIAG1", Value: 3, HasValue: true},
		{PatientID: 1, EventID: "DIAG1", HasValue: false},
		{PatientID: 2, EventID: "DIAG1", Value: 10, HasValue: true},
		{PatientID: 2, EventID: "DRUG1", Value: 0, HasValue: true},
		{PatientID: 2, EventID: "OTHER1", Value: 4, HasValue: true},
		{PatientID: 2, EventID: "DIAG_UNMAPPED", Value: 4, HasValue: true},
	}
	m := featureMap(t, "DIAG1", "DRUG1", "LAB1", "OTHER1")
	aggregated := AggregateEvents(filtered, m, DefaultConfig())
	expected := []AggregatedFeature{
		{PatientID: 1, FeatureID: 1, Value: 0.5},
		{PatientID: 1, FeatureID: 3, Value: 1},
		{PatientID: 2, FeatureID: 1, Value: 1},
		{PatientID: 2, FeatureID: 2, Value: 0},
	}
	if len(aggregated) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, aggregated)
	}
	for i := range expected {
		if aggregated[i] != expected[i] {
			t.Errorf("feature %d: expected %v, got %v", i, expected[i], aggregated[i])
		}
	}
}

func TestLabCountsNotSums(t *testing.T) {
	filtered := []FilteredEvent{
		{PatientID: 1, EventID: "LAB1", Value: 7, HasValue: true},
		{PatientID: 1, EventID: "LAB1", Value: 9, HasValue: true},
		{PatientID: 2, EventID: "LAB1", Value: 100, HasValue: true},
		{PatientID: 2, EventID: "LAB1", Value: 100, HasValue: true},
		{PatientID: 2, EventID: "LAB1", Value: 100, HasValue: true},
		{PatientID: 2, EventID: "LAB1", Value: 100, HasValue: true},
	}
	cfg := DefaultConfig()
	// a lone patient normalizes to 1 whatever the count
	aggregated := AggregateEvents(filtered[:2], featureMap(t, "LAB1"), cfg)
	if len(aggregated) != 1 || aggregated[0].Value != 1 {
		t.Fatalf("unexpected features %v", aggregated)
	}
	aggregated = AggregateEvents(filtered, featureMap(t, "LAB1"), cfg)
	if len(aggregated) != 2 || aggregated[0].Value != 0.5 || aggregated[1].Value != 1 {
		t.Fatalf("expected count 2 of 4 to normalize to 0.5, got %v", aggregated)
	}
}

func TestFeatureMapDuplicates(t *testing.T) {
	m := NewFeatureMap()
	if err := m.Add(1, "DIAG1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(1, "DIAG1"); err != nil {
		t.Errorf("repeating a mapping should be accepted, got %v", err)
	}
	if err := m.Add(2, "DIAG1"); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected duplicate event id error, got %v", err)
	}
	if err := m.Add(1, "DIAG2"); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected duplicate feature id error, got %v", err)
	}
	if eid, ok := m.EventID(1); !ok || eid != "DIAG1" {
		t.Errorf("reverse lookup returned %q, %v", eid, ok)
	}
}

func TestFeatureBagOrder(t *testing.T) {
	bag := NewFeatureBag([]AggregatedFeature{
		{PatientID: 5, FeatureID: 9, Value: 0.25},
		{PatientID: 2, FeatureID: 4, Value: 1},
		{PatientID: 5, FeatureID: 1, Value: 0.5},
	})
	ids := bag.PatientIDs()
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 5 {
		t.Fatalf("unexpected patient order %v", ids)
	}
	v, ok := bag.Features(5)
	if !ok || len(v) != 2 || v[0].Index != 1 || v[1].Index != 9 {
		t.Errorf("unexpected feature order %v", v)
	}
}

func TestNormalizedMaximumIsOne(t *testing.T) {
	events := []Event{}
	for pid := 1; pid <= 20; pid++ {
		for i := 0; i < pid%4+1; i++ {
			events = append(events, event(t, pid, "LAB1", "2020-01-01", 1))
			events = append(events, event(t, pid, "DIAG1", "2020-01-01", float64(pid)))
		}
	}
	result, err := CreateFeatures(events, nil, featureMap(t, "DIAG1", "LAB1"), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	maxima := map[int]float64{}
	for _, f := range result.Aggregated {
		if f.Value > maxima[f.FeatureID] {
			maxima[f.FeatureID] = f.Value
		}
	}
	for fid, m := range maxima {
		if m != 1.0 {
			t.Errorf("feature %d: maximum %v", fid, m)
		}
	}
}

func TestSaveDeliverables(t *testing.T) {
	events := []Event{
		event(t, 1, "DIAG1", "2020-01-01", 5),
		{PatientID: 2, EventID: "LAB1", Timestamp: date(t, "2020-05-01")},
		event(t, 2, "LAB1", "2020-05-01", 1),
	}
	mortality := []MortalityRecord{{PatientID: 1, Timestamp: date(t, "2020-02-01"), Label: 1}}
	result, err := CreateFeatures(events, mortality, featureMap(t, "DIAG1", "LAB1"), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := SaveDeliverables(dir, result); err != nil {
		t.Fatal(err)
	}
	expected := map[string]string{
		IndexDatesFile:       "patient_id,indx_date\n1,2020-01-02\n2,2020-05-01\n",
		FilteredEventsFile:   "patient_id,event_id,value\n1,DIAG1,5.0\n2,LAB1,\n2,LAB1,1.0\n",
		AggregatedEventsFile: "patient_id,feature_id,feature_value\n1,1,1.0\n2,2,1.0\n",
		SVMLightFile:         "1 1:1.0\n0 2:1.0\n",
		LabeledFeaturesFile:  "1 1 1:1.0\n2 0 2:1.0\n",
	}
	for file, content := range expected {
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != content {
			t.Errorf("%s: expected %q, got %q", file, content, string(data))
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	cfg.CountPrefixes = []string{"DIAG"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected overlapping prefixes to be rejected")
	}
	cfg = DefaultConfig()
	cfg.WindowDays = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected a negative window to be rejected")
	}
}

func TestNormalizeNonPositiveMaximum(t *testing.T) {
	features := []AggregatedFeature{
		{PatientID: 1, FeatureID: 0, Value: -2},
		{PatientID: 2, FeatureID: 0, Value: -4},
		{PatientID: 1, FeatureID: 1, Value: 0},
		{PatientID: 2, FeatureID: 1, Value: 0},
	}
	normalizeFeatures(features)
	expected := []float64{1, 2, 0, 0}
	for i, f := range features {
		if f.Value != expected[i] {
			t.Errorf("feature %d of patient %d: %v, expected %v", f.FeatureID, f.PatientID, f.Value, expected[i])
		}
	}
}
