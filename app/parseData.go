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

package app

import (
	"errors"
	"fmt"
	"io"
	"os"

	"mortality/etl"
	"mortality/utils"
)

// Input file names of the ETL.
const (
	EventsFile     = "events.csv"
	MortalityFile  = "mortality_events.csv"
	FeatureMapFile = "event_feature_map.csv"
)

var errEmptyID = errors.New("empty id")

// parseEvents reads an events table: patient_id,event_id,event_description,timestamp,value.
func parseEvents(name string, r io.Reader) ([]etl.Event, error) {
	events := []etl.Event{}
	err := utils.ReadTable(name, r, func(t *utils.Table) error {
		pid, err := t.Int("patient_id")
		if err != nil {
			return err
		}
		timestamp, err := t.Date("timestamp")
		if err != nil {
			return err
		}
		value, hasValue, err := t.Float("value")
		if err != nil {
			return err
		}
		eventID := t.String("event_id")
		if eventID == "" {
			return t.RowError("event_id", errEmptyID)
		}
		events = append(events, etl.Event{
			PatientID:   pid,
			EventID:     eventID,
			Description: t.String("event_description"),
			Timestamp:   timestamp,
			Value:       value,
			HasValue:    hasValue,
		})
		return nil
	}, "patient_id", "event_id", "timestamp", "value")
	if err != nil {
		return nil, err
	}
	return events, nil
}

// patient_id,timestamp,label
func parseMortality(name string, r io.Reader) ([]etl.MortalityRecord, error) {
	records := []etl.MortalityRecord{}
	err := utils.ReadTable(name, r, func(t *utils.Table) error {
		pid, err := t.Int("patient_id")
		if err != nil {
			return err
		}
		timestamp, err := t.Date("timestamp")
		if err != nil {
			return err
		}
		label := 1
		if t.String("label") != "" {
			if label, err = t.Int("label"); err != nil {
				return err
			}
		}
		records = append(records, etl.MortalityRecord{PatientID: pid, Timestamp: timestamp, Label: label})
		return nil
	}, "patient_id", "timestamp")
	if err != nil {
		return nil, err
	}
	return records, nil
}

func parseFeatureMap(name string, r io.Reader) (*etl.FeatureMap, error) {
	featureMap := etl.NewFeatureMap()
	err := utils.ReadTable(name, r, func(t *utils.Table) error {
		idx, err := t.Int("idx")
		if err != nil {
			return err
		}
		eventID := t.String("event_id")
		if eventID == "" {
			return t.RowError("event_id", errEmptyID)
		}
		if err := featureMap.Add(idx, eventID); err != nil {
			return fmt.Errorf("%s:%d: %w", name, t.Line(), err)
		}
		return nil
	}, "idx", "event_id")
	if err != nil {
		return nil, err
	}
	return featureMap, nil
}

func readFile[T any](file string, parse func(name string, r io.Reader) (T, error)) (result T, err error) {
	f, err := os.Open(file)
	if err != nil {
		return result, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return parse(file, f)
}

// ReadEvents parses an events.csv file.
func ReadEvents(file string) ([]etl.Event, error) {
	return readFile(file, parseEvents)
}

// ReadMortality parses a mortality_events.csv file.
func ReadMortality(file string) ([]etl.MortalityRecord, error) {
	return readFile(file, parseMortality)
}

// ReadFeatureMap parses an event_feature_map.csv file.
func ReadFeatureMap(file string) (*etl.FeatureMap, error) {
	return readFile(file, parseFeatureMap)
}
