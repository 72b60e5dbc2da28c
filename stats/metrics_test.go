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

package stats

import (
	"testing"
	"time"

	"mortality/etl"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCompute(t *testing.T) {
	events := []etl.Event{
		{PatientID: 1, EventID: "DIAG1", Timestamp: day("2020-01-01")},
		{PatientID: 1, EventID: "LAB1", Timestamp: day("2020-01-01")},
		{PatientID: 1, EventID: "LAB1", Timestamp: day("2020-01-11")},
		{PatientID: 2, EventID: "DIAG1", Timestamp: day("2020-03-01")},
		{PatientID: 3, EventID: "DRUG1", Timestamp: day("2019-12-31")},
		{PatientID: 3, EventID: "DRUG1", Timestamp: day("2020-01-02")},
	}
	mortality := []etl.MortalityRecord{{PatientID: 1, Timestamp: day("2020-02-01")}}
	report := Compute(events, mortality)
	expected := Report{
		EventCount: GroupMetrics{
			Dead:  Summary{N: 1, Min: 3, Max: 3, Mean: 3},
			Alive: Summary{N: 2, Min: 1, Max: 2, Mean: 1.5},
		},
		EncounterCount: GroupMetrics{
			Dead:  Summary{N: 1, Min: 2, Max: 2, Mean: 2},
			Alive: Summary{N: 2, Min: 1, Max: 2, Mean: 1.5},
		},
		RecordLength: GroupMetrics{
			Dead:  Summary{N: 1, Min: 10, Max: 10, Mean: 10},
			Alive: Summary{N: 2, Min: 0, Max: 2, Mean: 1},
		},
	}
	if report != expected {
		t.Errorf("expected %+v, got %+v", expected, report)
	}
}

func TestComputeEmptyGroup(t *testing.T) {
	events := []etl.Event{{PatientID: 1, EventID: "DIAG1", Timestamp: day("2020-01-01")}}
	report := Compute(events, nil)
	if report.EventCount.Dead != (Summary{}) {
		t.Errorf("empty group should report zeros, got %+v", report.EventCount.Dead)
	}
	if report.EventCount.Alive.N != 1 {
		t.Errorf("unexpected alive group %+v", report.EventCount.Alive)
	}
}
