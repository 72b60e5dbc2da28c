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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mortality/classifier"
	"mortality/cv"
	"mortality/etl"
	"mortality/sequence"
	"mortality/stats"
	"mortality/store"
	"mortality/svmlight"
)

// ETLParams are the parameters of an ETL run.
type ETLParams struct {
	InputPath  string // directory with events.csv, mortality_events.csv and event_feature_map.csv
	OutputPath string // directory receiving the deliverables
	SQLitePath string // optional database receiving the intermediate tables
	Config     etl.Config
}

// RunETL reads the input tables, builds the features and writes all deliverables.
func RunETL(ctx context.Context, params ETLParams, log *logrus.Logger) (*etl.Result, error) {
	entry := log.WithField("run", uuid.NewString())
	events, err := ReadEvents(filepath.Join(params.InputPath, EventsFile))
	if err != nil {
		return nil, err
	}
	mortality, err := ReadMortality(filepath.Join(params.InputPath, MortalityFile))
	if err != nil {
		return nil, err
	}
	featureMap, err := ReadFeatureMap(filepath.Join(params.InputPath, FeatureMapFile))
	if err != nil {
		return nil, err
	}
	entry.WithFields(logrus.Fields{
		"events":    len(events),
		"deceased":  len(mortality),
		"features":  featureMap.Len(),
		"inputPath": params.InputPath,
	}).Info("Parsed input tables.")
	result, err := etl.CreateFeatures(events, mortality, featureMap, params.Config)
	if err != nil {
		return nil, err
	}
	entry.WithFields(logrus.Fields{
		"indexDates":     len(result.IndexDates),
		"filteredEvents": len(result.FilteredEvents),
		"aggregated":     len(result.Aggregated),
		"patients":       result.Bag.Len(),
	}).Info("Created features.")
	if err := etl.SaveDeliverables(params.OutputPath, result); err != nil {
		return nil, err
	}
	entry.WithField("outputPath", params.OutputPath).Info("Saved deliverables.")
	if params.SQLitePath != "" {
		db, err := store.Open(ctx, params.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := db.Save(ctx, result); err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := db.Close(); err != nil {
			return nil, err
		}
		entry.WithField("sqlite", params.SQLitePath).Info("Stored intermediate tables.")
	}
	return result, nil
}

// CVParams are the parameters of a cross-validation run.
type CVParams struct {
	FeaturesFile string
	K            int
	Iterations   int
	TestFraction float64
	Seed         uint32
	Options      classifier.Options
	// ScoreAUC computes the AUC from predicted probabilities instead of hard labels.
	ScoreAUC bool
}

// CVReport holds the outcome of both cross-validation schemes.
type CVReport struct {
	KFold      *cv.Result
	Randomized *cv.Result
}

// ReadFeatures loads a label-only svmlight file.
func ReadFeatures(file string) (*svmlight.Dataset, error) {
	return readFile(file, func(name string, r io.Reader) (*svmlight.Dataset, error) {
		data, err := svmlight.Read(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return data, nil
	})
}

// RunCV evaluates logistic regression on a feature file with k-fold and randomized cross-validation.
func RunCV(params CVParams, log *logrus.Logger) (*CVReport, error) {
	entry := log.WithField("run", uuid.NewString())
	if err := params.Options.Validate(); err != nil {
		return nil, err
	}
	data, err := ReadFeatures(params.FeaturesFile)
	if err != nil {
		return nil, err
	}
	entry.WithFields(logrus.Fields{
		"samples":  data.Len(),
		"features": data.NumFeatures(),
		"file":     params.FeaturesFile,
	}).Info("Parsed features.")
	harness := cv.NewHarness(func() cv.Classifier {
		return classifier.NewLogisticRegression(params.Options)
	}, log)
	harness.ScoreAUC = params.ScoreAUC
	kfold, err := harness.KFold(data, params.K)
	if err != nil {
		return nil, err
	}
	randomized, err := harness.Randomized(data, params.Iterations, params.TestFraction, params.Seed)
	if err != nil {
		return nil, err
	}
	return &CVReport{KFold: kfold, Randomized: randomized}, nil
}

// RunStats computes the event log metrics of the events.csv and mortality_events.csv files in inputPath.
func RunStats(inputPath string, log *logrus.Logger) (stats.Report, error) {
	events, err := ReadEvents(filepath.Join(inputPath, EventsFile))
	if err != nil {
		return stats.Report{}, err
	}
	mortality, err := ReadMortality(filepath.Join(inputPath, MortalityFile))
	if err != nil {
		return stats.Report{}, err
	}
	report := stats.Compute(events, mortality)
	log.WithFields(logrus.Fields{
		"events":   len(events),
		"deceased": report.EventCount.Dead.N,
		"alive":    report.EventCount.Alive.N,
	}).Info("Computed event statistics.")
	return report, nil
}

// SequenceParams are the split directories and the output directory of a sequence run.
type SequenceParams struct {
	TrainPath      string
	ValidationPath string
	TestPath       string
	OutputPath     string
}

// RunSequences builds the code map from the train split, then the visit sequences of all three splits.
func RunSequences(params SequenceParams, log *logrus.Logger) error {
	entry := log.WithField("run", uuid.NewString())
	codes, err := sequence.ReadDiagnosisCodes(filepath.Join(params.TrainPath, sequence.DiagnosesFile))
	if err != nil {
		return err
	}
	codemap := sequence.BuildCodemap(codes, sequence.ConvertICD9)
	if err := os.MkdirAll(params.OutputPath, 0700); err != nil {
		return err
	}
	if err := sequence.SaveCodemap(params.OutputPath, codemap); err != nil {
		return err
	}
	entry.WithField("codes", codemap.Len()).Info("Built feature id map.")
	for _, split := range []struct{ name, path string }{
		{"train", params.TrainPath},
		{"validation", params.ValidationPath},
		{"test", params.TestPath},
	} {
		data, err := sequence.CreateDataset(split.path, codemap, sequence.ConvertICD9)
		if err != nil {
			return err
		}
		if err := sequence.SaveDataset(params.OutputPath, split.name, data); err != nil {
			return err
		}
		entry.WithFields(logrus.Fields{"split": split.name, "patients": len(data.IDs)}).Info("Constructed set.")
	}
	return nil
}
