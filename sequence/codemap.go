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

// Package sequence builds per-patient visit sequences of diagnosis codes from MIMIC style admission tables, and
// shapes them into multi-hot matrices for sequence models.
package sequence

import (
	"unicode"

	"mortality/utils"
)

// Transform normalizes a raw diagnosis code.
type Transform func(code string) string

// ConvertICD9 keeps the main digits of an ICD-9 code: 4 characters for E-codes (a leading letter other than V), 3
// for all other codes. Codes that are not longer than that are returned whole.
func ConvertICD9(code string) string {
	n := 3
	if code != "" {
		if first := rune(code[0]); unicode.IsLetter(first) && first != 'V' {
			n = 4
		}
	}
	if n >= len(code) {
		return code
	}
	return code[:n]
}

// Codemap assigns dense feature ids to transformed codes, in order of first appearance.
type Codemap struct {
	IDs   map[string]int
	Codes []string // Codes[id] is the code of id
}

// BuildCodemap transforms every code and numbers the distinct results 0..n-1. Empty codes are skipped.
func BuildCodemap(codes []string, transform Transform) *Codemap {
	m := &Codemap{IDs: map[string]int{}}
	for _, code := range codes {
		if code == "" {
			continue
		}
		c := transform(code)
		if _, ok := m.IDs[c]; ok {
			continue
		}
		m.IDs[c] = len(m.Codes)
		m.Codes = append(m.Codes, c)
	}
	return m
}

func (m *Codemap) Len() int {
	return len(m.Codes)
}

// ID looks up the feature id of a transformed code.
func (m *Codemap) ID(code string) (int, bool) {
	id, ok := m.IDs[code]
	return id, ok
}

// ReadDiagnosisCodes returns the ICD9_CODE column of a DIAGNOSES_ICD file in file order.
func ReadDiagnosisCodes(file string) ([]string, error) {
	codes := []string{}
	err := utils.ReadTableFile(file, func(t *utils.Table) error {
		codes = append(codes, t.String("ICD9_CODE"))
		return nil
	}, "ICD9_CODE")
	if err != nil {
		return nil, err
	}
	return codes, nil
}
