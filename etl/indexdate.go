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
	"fmt"
	"sort"
	"time"

	"mortality/utils"
)

// CalculateIndexDates computes one index date per patient. Deceased patients get their date of death minus the
// configured offset, all other patients the date of their last event. Patients without events and without a
// mortality record do not appear. The result is sorted by patient id.
func CalculateIndexDates(events []Event, mortality []MortalityRecord, cfg Config) ([]IndexDate, error) {
	deaths, err := deathDates(mortality)
	if err != nil {
		return nil, err
	}
	dates := make(map[int]time.Time, len(deaths))
	for pid, death := range deaths {
		dates[pid] = utils.AddDays(death, -cfg.DeathOffsetDays)
	}
	for _, e := range events {
		if _, dead := deaths[e.PatientID]; dead {
			continue
		}
		if last, ok := dates[e.PatientID]; !ok || e.Timestamp.After(last) {
			dates[e.PatientID] = e.Timestamp
		}
	}
	result := make([]IndexDate, 0, len(dates))
	for pid, date := range dates {
		result = append(result, IndexDate{PatientID: pid, Date: date})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PatientID < result[j].PatientID
	})
	return result, nil
}

// deathDates collapses mortality records into one date of death per patient. Repeated records must agree.
func deathDates(mortality []MortalityRecord) (map[int]time.Time, error) {
	deaths := make(map[int]time.Time, len(mortality))
	for _, m := range mortality {
		if d, ok := deaths[m.PatientID]; ok && !d.Equal(m.Timestamp) {
			return nil, fmt.Errorf("%w: patient %d has conflicting dates of death %s and %s", ErrMalformedInput,
				m.PatientID, utils.FormatDate(d), utils.FormatDate(m.Timestamp))
		}
		deaths[m.PatientID] = m.Timestamp
	}
	return deaths, nil
}

// MortalityLabels returns 1 for every patient with a mortality record.
func MortalityLabels(mortality []MortalityRecord) map[int]int {
	labels := make(map[int]int, len(mortality))
	for _, m := range mortality {
		labels[m.PatientID] = 1
	}
	return labels
}
