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

package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMalformedRow is wrapped by errors about a cell or row that cannot be parsed.
	ErrMalformedRow = errors.New("malformed row")
	// ErrMissingColumn is wrapped by errors about a required column that is absent from the header.
	ErrMissingColumn = errors.New("missing column")
)

// Table reads a CSV stream whose first row is a header. Cells are looked up by column name, so column order does not
// matter and extra columns are ignored.
type Table struct {
	name    string
	reader  *csv.Reader
	columns map[string]int
	record  []string
	line    int
}

// NewTable reads the header from r and checks that all required columns are present. The name is used in error
// messages.
func NewTable(name string, r io.Reader, required ...string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w: empty file", name, ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, ErrMalformedRow, err)
	}
	columns := make(map[string]int, len(header))
	for i, column := range header {
		column = strings.TrimSpace(column)
		if i == 0 {
			column = strings.TrimPrefix(column, "\ufeff")
		}
		columns[column] = i
	}
	for _, column := range required {
		if _, ok := columns[column]; !ok {
			return nil, fmt.Errorf("%s: %w: %s", name, ErrMissingColumn, column)
		}
	}
	return &Table{name: name, reader: reader, columns: columns, line: 1}, nil
}

// Next advances to the next row. It returns io.EOF after the last row.
func (t *Table) Next() error {
	record, err := t.reader.Read()
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %v", t.name, ErrMalformedRow, err)
	}
	t.record = record
	t.line, _ = t.reader.FieldPos(0)
	return nil
}

// Line returns the 1-based line number of the current row.
func (t *Table) Line() int {
	return t.line
}

// RowError builds an error for the given column of the current row.
func (t *Table) RowError(column string, cause error) error {
	return fmt.Errorf("%s:%d: column %s: %w: %v", t.name, t.line, column, ErrMalformedRow, cause)
}

// String returns the trimmed cell of a column, or "" when the row is too short or the column is unknown.
func (t *Table) String(column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(t.record) {
		return ""
	}
	return strings.TrimSpace(t.record[i])
}

// Int parses the cell of a column as an integer.
func (t *Table) Int(column string) (int, error) {
	s := t.String(column)
	// ids exported by pandas sometimes carry a ".0" suffix
	n, err := strconv.Atoi(strings.TrimSuffix(s, ".0"))
	if err != nil {
		return 0, t.RowError(column, err)
	}
	return n, nil
}

// Float parses the cell of a column. The boolean result is false when the cell is empty.
func (t *Table) Float(column string) (float64, bool, error) {
	s := t.String(column)
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, t.RowError(column, err)
	}
	return f, true, nil
}

// Date parses the cell of a column with ParseDate.
func (t *Table) Date(column string) (time.Time, error) {
	d, err := ParseDate(t.String(column))
	if err != nil {
		return time.Time{}, t.RowError(column, err)
	}
	return d, nil
}

// ReadTableFile opens a file, wraps it in a Table and hands every row to f.
func ReadTableFile(file string, f func(t *Table) error, required ...string) (err error) {
	csvFile, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := csvFile.Close(); err == nil {
			err = cerr
		}
	}()
	return ReadTable(file, csvFile, f, required...)
}

// ReadTable wraps r in a Table and hands every row to f.
func ReadTable(name string, r io.Reader, f func(t *Table) error, required ...string) error {
	table, err := NewTable(name, r, required...)
	if err != nil {
		return err
	}
	for {
		if err := table.Next(); err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if err := f(table); err != nil {
			return err
		}
	}
}
