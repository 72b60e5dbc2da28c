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

// Package svmlight encodes and decodes sparse feature vectors in the svmlight text format:
//
//	label index:value index:value ...
//
// with indices strictly ascending. A labeled variant prefixes each line with a patient id.
package svmlight

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedLine is wrapped by all parse errors.
var ErrMalformedLine = errors.New("malformed svmlight line")

// Feature is one index:value entry of a sparse vector.
type Feature struct {
	Index int
	Value float64
}

// Vector is a sparse vector with strictly ascending feature indices.
type Vector []Feature

// MaxIndex returns the largest index in the vector, or -1 when it is empty.
func (v Vector) MaxIndex() int {
	if len(v) == 0 {
		return -1
	}
	return v[len(v)-1].Index
}

// Dot computes the inner product with a dense weight vector. Indices beyond the weights are ignored.
func (v Vector) Dot(weights []float64) float64 {
	sum := 0.0
	for _, f := range v {
		if f.Index >= 0 && f.Index < len(weights) {
			sum += weights[f.Index] * f.Value
		}
	}
	return sum
}

// FormatValue prints a float with the shortest representation that parses back to the same value, always keeping
// a decimal point or exponent: 1 -> "1.0", 0.5 -> "0.5", 0.00001 -> "1e-05".
func FormatValue(x float64) string {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	abs := math.Abs(x)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(x, 'e', -1, 64)
	}
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// FormatVector prints the index:value tokens of a vector separated by spaces.
func FormatVector(v Vector) string {
	var b strings.Builder
	for i, f := range v {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(f.Index))
		b.WriteByte(':')
		b.WriteString(FormatValue(f.Value))
	}
	return b.String()
}

// FormatLine prints a label-only line.
func FormatLine(label int, v Vector) string {
	if len(v) == 0 {
		return strconv.Itoa(label)
	}
	return strconv.Itoa(label) + " " + FormatVector(v)
}

// FormatLabeledLine prints a line carrying the patient id before the label.
func FormatLabeledLine(patientID, label int, v Vector) string {
	return strconv.Itoa(patientID) + " " + FormatLine(label, v)
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

func parseFeatures(tokens []string) (Vector, error) {
	v := make(Vector, 0, len(tokens))
	for _, tok := range tokens {
		i := strings.IndexByte(tok, ':')
		if i <= 0 || i == len(tok)-1 {
			return nil, fmt.Errorf("%w: token %q is not index:value", ErrMalformedLine, tok)
		}
		if tok[:i] == "qid" {
			continue
		}
		idx, err := strconv.Atoi(tok[:i])
		if err != nil {
			return nil, fmt.Errorf("%w: index in %q: %v", ErrMalformedLine, tok, err)
		}
		val, err := strconv.ParseFloat(tok[i+1:], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value in %q: %v", ErrMalformedLine, tok, err)
		}
		if len(v) > 0 && idx <= v[len(v)-1].Index {
			return nil, fmt.Errorf("%w: index %d does not ascend", ErrMalformedLine, idx)
		}
		v = append(v, Feature{Index: idx, Value: val})
	}
	return v, nil
}

// ParseLine parses a label-only line.
func ParseLine(line string) (float64, Vector, error) {
	fields := strings.Fields(stripComment(line))
	if len(fields) == 0 {
		return 0, nil, fmt.Errorf("%w: empty line", ErrMalformedLine)
	}
	label, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: label %q: %v", ErrMalformedLine, fields[0], err)
	}
	v, err := parseFeatures(fields[1:])
	if err != nil {
		return 0, nil, err
	}
	return label, v, nil
}

// ParseLabeledLine parses a line of the form "patient_id label index:value ...".
func ParseLabeledLine(line string) (int, float64, Vector, error) {
	fields := strings.Fields(stripComment(line))
	if len(fields) < 2 {
		return 0, 0, nil, fmt.Errorf("%w: expected patient id and label", ErrMalformedLine)
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: patient id %q: %v", ErrMalformedLine, fields[0], err)
	}
	label, v, err := ParseLine(strings.Join(fields[1:], " "))
	if err != nil {
		return 0, 0, nil, err
	}
	return pid, label, v, nil
}

// Dataset is a sparse design matrix with one label per row.
type Dataset struct {
	Rows   []Vector
	Labels []float64
}

func (d *Dataset) Len() int {
	return len(d.Rows)
}

// NumFeatures returns the dense width needed to hold every index, i.e. the largest index + 1.
func (d *Dataset) NumFeatures() int {
	n := 0
	for _, row := range d.Rows {
		if m := row.MaxIndex() + 1; m > n {
			n = m
		}
	}
	return n
}

// Subset returns the rows at the given positions, in that order. Rows are shared, not copied.
func (d *Dataset) Subset(indices []int) *Dataset {
	sub := &Dataset{Rows: make([]Vector, len(indices)), Labels: make([]float64, len(indices))}
	for i, idx := range indices {
		sub.Rows[i] = d.Rows[idx]
		sub.Labels[i] = d.Labels[idx]
	}
	return sub
}

// Read loads a label-only svmlight stream. Blank lines and comment-only lines are skipped.
func Read(r io.Reader) (*Dataset, error) {
	data := &Dataset{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNr := 0
	for scanner.Scan() {
		lineNr++
		line := scanner.Text()
		if strings.TrimSpace(stripComment(line)) == "" {
			continue
		}
		label, v, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNr, err)
		}
		data.Rows = append(data.Rows, v)
		data.Labels = append(data.Labels, label)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return data, nil
}
