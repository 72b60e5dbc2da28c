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
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"mortality/utils"
)

// ErrUnknownPatient is returned when an admitted patient has no row in MORTALITY.csv.
var ErrUnknownPatient = errors.New("patient without mortality label")

// Input file names expected in every split directory.
const (
	MortalityFile  = "MORTALITY.csv"
	DiagnosesFile  = "DIAGNOSES_ICD.csv"
	AdmissionsFile = "ADMISSIONS.csv"
)

// Dataset is the visit sequence data of one split. Seqs[i] lists the visits of patient IDs[i] in admission order,
// each visit being the feature ids of its diagnoses.
type Dataset struct {
	IDs    []int
	Labels []int
	Seqs   [][][]int
}

type admission struct {
	hadmID int
	time   time.Time
}

func readLabels(file string) (map[int]int, error) {
	labels := map[int]int{}
	err := utils.ReadTableFile(file, func(t *utils.Table) error {
		id, err := t.Int("SUBJECT_ID")
		if err != nil {
			return err
		}
		label, err := t.Int("MORTALITY")
		if err != nil {
			return err
		}
		labels[id] = label
		return nil
	}, "SUBJECT_ID", "MORTALITY")
	return labels, err
}

func readDiagnoses(file string, transform Transform) (map[int][]string, error) {
	visits := map[int][]string{}
	err := utils.ReadTableFile(file, func(t *utils.Table) error {
		hadmID, err := t.Int("HADM_ID")
		if err != nil {
			return err
		}
		code := t.String("ICD9_CODE")
		if code == "" {
			return nil
		}
		visits[hadmID] = append(visits[hadmID], transform(code))
		return nil
	}, "HADM_ID", "ICD9_CODE")
	return visits, err
}

func readAdmissions(file string) (map[int][]admission, error) {
	admissions := map[int][]admission{}
	err := utils.ReadTableFile(file, func(t *utils.Table) error {
		id, err := t.Int("SUBJECT_ID")
		if err != nil {
			return err
		}
		hadmID, err := t.Int("HADM_ID")
		if err != nil {
			return err
		}
		admitTime, err := t.Date("ADMITTIME")
		if err != nil {
			return err
		}
		admissions[id] = append(admissions[id], admission{hadmID: hadmID, time: admitTime})
		return nil
	}, "SUBJECT_ID", "HADM_ID", "ADMITTIME")
	return admissions, err
}

// CreateDataset reads the three tables of a split directory. Patients are those with admissions, in ascending
// SUBJECT_ID order; their visits are sorted by ADMITTIME. Codes missing from the code map are dropped, and an
// admission without known diagnoses becomes an empty visit.
func CreateDataset(dir string, codemap *Codemap, transform Transform) (*Dataset, error) {
	labels, err := readLabels(filepath.Join(dir, MortalityFile))
	if err != nil {
		return nil, err
	}
	diagnoses, err := readDiagnoses(filepath.Join(dir, DiagnosesFile), transform)
	if err != nil {
		return nil, err
	}
	admissions, err := readAdmissions(filepath.Join(dir, AdmissionsFile))
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(admissions))
	for id := range admissions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	data := &Dataset{IDs: ids, Labels: make([]int, len(ids)), Seqs: make([][][]int, len(ids))}
	for i, id := range ids {
		label, ok := labels[id]
		if !ok {
			return nil, fmt.Errorf("%s: %w: %d", dir, ErrUnknownPatient, id)
		}
		data.Labels[i] = label
		visits := admissions[id]
		sort.SliceStable(visits, func(a, b int) bool { return visits[a].time.Before(visits[b].time) })
		seq := make([][]int, len(visits))
		for v, visit := range visits {
			codes := []int{}
			for _, code := range diagnoses[visit.hadmID] {
				if fid, ok := codemap.ID(code); ok {
					codes = append(codes, fid)
				}
			}
			seq[v] = codes
		}
		data.Seqs[i] = seq
	}
	return data, nil
}
