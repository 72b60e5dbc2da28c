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
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"mortality/svmlight"
	"mortality/utils"
)

// Output file names written by SaveDeliverables.
const (
	IndexDatesFile       = "etl_index_dates.csv"
	FilteredEventsFile   = "etl_filtered_events.csv"
	AggregatedEventsFile = "etl_aggregated_events.csv"
	SVMLightFile         = "features_svmlight.train"
	LabeledFeaturesFile  = "features.train"
)

func writeCSV(w io.Writer, header []string, rows func(write func([]string) error) error) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := rows(writer.Write); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteIndexDates writes the index dates as patient_id,indx_date.
func WriteIndexDates(w io.Writer, dates []IndexDate) error {
	return writeCSV(w, []string{"patient_id", "indx_date"}, func(write func([]string) error) error {
		for _, d := range dates {
			if err := write([]string{strconv.Itoa(d.PatientID), utils.FormatDate(d.Date)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteFilteredEvents writes the filtered events as patient_id,event_id,value. Missing values stay empty.
func WriteFilteredEvents(w io.Writer, events []FilteredEvent) error {
	return writeCSV(w, []string{"patient_id", "event_id", "value"}, func(write func([]string) error) error {
		for _, e := range events {
			value := ""
			if e.HasValue {
				value = svmlight.FormatValue(e.Value)
			}
			if err := write([]string{strconv.Itoa(e.PatientID), e.EventID, value}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteAggregatedEvents writes the normalized features as patient_id,feature_id,feature_value.
func WriteAggregatedEvents(w io.Writer, features []AggregatedFeature) error {
	return writeCSV(w, []string{"patient_id", "feature_id", "feature_value"}, func(write func([]string) error) error {
		for _, f := range features {
			row := []string{strconv.Itoa(f.PatientID), strconv.Itoa(f.FeatureID), svmlight.FormatValue(f.Value)}
			if err := write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteSVMLight writes every patient of the bag twice: a label-only line to svm and a "patient_id label ..." line to
// labeled. Patients without a label are written as alive (0).
func WriteSVMLight(svm, labeled io.Writer, bag *FeatureBag, labels map[int]int) error {
	svmW := bufio.NewWriter(svm)
	labeledW := bufio.NewWriter(labeled)
	for _, p := range bag.Patients() {
		label := labels[p.PatientID]
		if _, err := fmt.Fprintln(svmW, svmlight.FormatLine(label, p.Features)); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(labeledW, svmlight.FormatLabeledLine(p.PatientID, label, p.Features)); err != nil {
			return err
		}
	}
	if err := svmW.Flush(); err != nil {
		return err
	}
	return labeledW.Flush()
}

func createAndWrite(path string, write func(w io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	if err := write(file); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// SaveDeliverables writes the three intermediate tables and both feature files into dir.
func SaveDeliverables(dir string, result *Result) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	if err := createAndWrite(filepath.Join(dir, IndexDatesFile), func(w io.Writer) error {
		return WriteIndexDates(w, result.IndexDates)
	}); err != nil {
		return err
	}
	if err := createAndWrite(filepath.Join(dir, FilteredEventsFile), func(w io.Writer) error {
		return WriteFilteredEvents(w, result.FilteredEvents)
	}); err != nil {
		return err
	}
	if err := createAndWrite(filepath.Join(dir, AggregatedEventsFile), func(w io.Writer) error {
		return WriteAggregatedEvents(w, result.Aggregated)
	}); err != nil {
		return err
	}
	return createAndWrite(filepath.Join(dir, SVMLightFile), func(svm io.Writer) error {
		return createAndWrite(filepath.Join(dir, LabeledFeaturesFile), func(labeled io.Writer) error {
			return WriteSVMLight(svm, labeled, result.Bag, result.Labels)
		})
	})
}
