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

// Package stats computes descriptive metrics of an event log, split between deceased and alive patients.
package stats

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mortality/etl"
	"mortality/utils"
)

// Summary holds min, max and mean of a per-patient metric over a group of patients.
type Summary struct {
	N    int
	Min  float64
	Max  float64
	Mean float64
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	return Summary{
		N:    len(values),
		Min:  floats.Min(values),
		Max:  floats.Max(values),
		Mean: stat.Mean(values, nil),
	}
}

// GroupMetrics compares a metric between deceased and alive patients.
type GroupMetrics struct {
	Dead  Summary
	Alive Summary
}

// Report bundles the three event log metrics.
type Report struct {
	// EventCount is the number of events recorded for a patient.
	EventCount GroupMetrics
	// EncounterCount is the number of distinct event timestamps of a patient.
	EncounterCount GroupMetrics
	// RecordLength is the number of whole days between the first and last event of a patient.
	RecordLength GroupMetrics
}

type patientRecord struct {
	events     int
	encounters map[int64]bool
	first      time.Time
	last       time.Time
}

// Compute derives the metrics for every patient with at least one event. A patient counts as deceased when it has a
// mortality record.
func Compute(events []etl.Event, mortality []etl.MortalityRecord) Report {
	dead := etl.MortalityLabels(mortality)
	records := map[int]*patientRecord{}
	order := []int{}
	for _, e := range events {
		r, ok := records[e.PatientID]
		if !ok {
			r = &patientRecord{encounters: map[int64]bool{}, first: e.Timestamp, last: e.Timestamp}
			records[e.PatientID] = r
			order = append(order, e.PatientID)
		}
		r.events++
		r.encounters[e.Timestamp.UnixNano()] = true
		if e.Timestamp.Before(r.first) {
			r.first = e.Timestamp
		}
		if e.Timestamp.After(r.last) {
			r.last = e.Timestamp
		}
	}
	var deadEvents, aliveEvents, deadEncounters, aliveEncounters, deadLengths, aliveLengths []float64
	for _, pid := range order {
		r := records[pid]
		length := float64(r.last.Sub(r.first) / utils.Day)
		if dead[pid] == 1 {
			deadEvents = append(deadEvents, float64(r.events))
			deadEncounters = append(deadEncounters, float64(len(r.encounters)))
			deadLengths = append(deadLengths, length)
		} else {
			aliveEvents = append(aliveEvents, float64(r.events))
			aliveEncounters = append(aliveEncounters, float64(len(r.encounters)))
			aliveLengths = append(aliveLengths, length)
		}
	}
	return Report{
		EventCount:     GroupMetrics{Dead: summarize(deadEvents), Alive: summarize(aliveEvents)},
		EncounterCount: GroupMetrics{Dead: summarize(deadEncounters), Alive: summarize(aliveEncounters)},
		RecordLength:   GroupMetrics{Dead: summarize(deadLengths), Alive: summarize(aliveLengths)},
	}
}
