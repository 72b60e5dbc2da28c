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

// Package store persists the intermediate ETL tables into an SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"mortality/etl"
	"mortality/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS index_dates (
	patient_id INTEGER PRIMARY KEY,
	indx_date  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS filtered_events (
	patient_id INTEGER NOT NULL,
	event_id   TEXT NOT NULL,
	value      REAL
);
CREATE TABLE IF NOT EXISTS aggregated_events (
	patient_id    INTEGER NOT NULL,
	feature_id    INTEGER NOT NULL,
	feature_value REAL NOT NULL,
	PRIMARY KEY (patient_id, feature_id)
);
`

// batchSize bounds the rows per INSERT statement, which keeps the number of bound variables under SQLite's limit.
const batchSize = 500

// Store is an open deliverable database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at dsn and makes sure the tables exist. ":memory:" gives a private
// in-memory database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables in %s: %w", dsn, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertBatched(ctx context.Context, tx execer, table string, columns []string, n int,
	row func(i int) []interface{}) error {
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		insert := sq.Insert(table).Columns(columns...)
		for i := start; i < end; i++ {
			insert = insert.Values(row(i)...)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return nil
}

// Save replaces the contents of the three tables with the tables of result, in one transaction.
func (s *Store) Save(ctx context.Context, result *etl.Result) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, table := range []string{"index_dates", "filtered_events", "aggregated_events"} {
		query, args, err := sq.Delete(table).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := insertBatched(ctx, tx, "index_dates", []string{"patient_id", "indx_date"}, len(result.IndexDates),
		func(i int) []interface{} {
			d := result.IndexDates[i]
			return []interface{}{d.PatientID, utils.FormatDate(d.Date)}
		}); err != nil {
		return err
	}
	if err := insertBatched(ctx, tx, "filtered_events", []string{"patient_id", "event_id", "value"},
		len(result.FilteredEvents), func(i int) []interface{} {
			e := result.FilteredEvents[i]
			return []interface{}{e.PatientID, e.EventID, sql.NullFloat64{Float64: e.Value, Valid: e.HasValue}}
		}); err != nil {
		return err
	}
	if err := insertBatched(ctx, tx, "aggregated_events", []string{"patient_id", "feature_id", "feature_value"},
		len(result.Aggregated), func(i int) []interface{} {
			f := result.Aggregated[i]
			return []interface{}{f.PatientID, f.FeatureID, f.Value}
		}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) query(ctx context.Context, q sq.SelectBuilder, scan func(rows *sql.Rows) error) error {
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// IndexDates reads the saved index dates in patient order.
func (s *Store) IndexDates(ctx context.Context) ([]etl.IndexDate, error) {
	result := []etl.IndexDate{}
	err := s.query(ctx, sq.Select("patient_id", "indx_date").From("index_dates").OrderBy("patient_id"),
		func(rows *sql.Rows) error {
			var d etl.IndexDate
			var date string
			if err := rows.Scan(&d.PatientID, &date); err != nil {
				return err
			}
			parsed, err := utils.ParseDate(date)
			if err != nil {
				return err
			}
			d.Date = parsed
			result = append(result, d)
			return nil
		})
	return result, err
}

// FilteredEvents reads the saved filtered events in insertion order.
func (s *Store) FilteredEvents(ctx context.Context) ([]etl.FilteredEvent, error) {
	result := []etl.FilteredEvent{}
	err := s.query(ctx, sq.Select("patient_id", "event_id", "value").From("filtered_events").OrderBy("rowid"),
		func(rows *sql.Rows) error {
			var e etl.FilteredEvent
			var value sql.NullFloat64
			if err := rows.Scan(&e.PatientID, &e.EventID, &value); err != nil {
				return err
			}
			e.Value, e.HasValue = value.Float64, value.Valid
			result = append(result, e)
			return nil
		})
	return result, err
}

// AggregatedEvents reads the saved features ordered by patient and feature id.
func (s *Store) AggregatedEvents(ctx context.Context) ([]etl.AggregatedFeature, error) {
	result := []etl.AggregatedFeature{}
	err := s.query(ctx, sq.Select("patient_id", "feature_id", "feature_value").From("aggregated_events").
		OrderBy("patient_id", "feature_id"), func(rows *sql.Rows) error {
		var f etl.AggregatedFeature
		if err := rows.Scan(&f.PatientID, &f.FeatureID, &f.Value); err != nil {
			return err
		}
		result = append(result, f)
		return nil
	})
	return result, err
}
