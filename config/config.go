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

// Package config loads run parameters from a YAML file. Missing keys keep their default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mortality/classifier"
	"mortality/cv"
	"mortality/etl"
)

// ETL configures feature construction.
type ETL struct {
	DeathOffsetDays int      `yaml:"deathOffsetDays"`
	WindowDays      int      `yaml:"windowDays"`
	SumPrefixes     []string `yaml:"sumPrefixes"`
	CountPrefixes   []string `yaml:"countPrefixes"`
}

// CV configures cross-validation and the logistic regression it trains.
type CV struct {
	K            int     `yaml:"k"`
	Iterations   int     `yaml:"iterations"`
	TestFraction float64 `yaml:"testFraction"`
	Seed         uint32  `yaml:"seed"`
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learningRate"`
	L2           float64 `yaml:"l2"`
	ScoreAUC     bool    `yaml:"scoreAUC"`
}

// Store configures the optional SQLite output. An empty path disables it.
type Store struct {
	Path string `yaml:"path"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the complete run configuration.
type Config struct {
	ETL     ETL   `yaml:"etl"`
	CV      CV    `yaml:"cv"`
	Store   Store `yaml:"store"`
	Log     Log   `yaml:"log"`
	Threads int   `yaml:"threads"` // 0 keeps GOMAXPROCS
}

// Default returns the standard configuration.
func Default() Config {
	e := etl.DefaultConfig()
	o := classifier.DefaultOptions()
	return Config{
		ETL: ETL{
			DeathOffsetDays: e.DeathOffsetDays,
			WindowDays:      e.WindowDays,
			SumPrefixes:     e.SumPrefixes,
			CountPrefixes:   e.CountPrefixes,
		},
		CV: CV{
			K:            5,
			Iterations:   5,
			TestFraction: 0.2,
			Seed:         cv.DefaultSeed,
			Epochs:       o.Epochs,
			LearningRate: o.LearningRate,
			L2:           o.L2,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Default(), fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ETLConfig returns the feature construction parameters.
func (c Config) ETLConfig() etl.Config {
	return etl.Config{
		DeathOffsetDays: c.ETL.DeathOffsetDays,
		WindowDays:      c.ETL.WindowDays,
		SumPrefixes:     c.ETL.SumPrefixes,
		CountPrefixes:   c.ETL.CountPrefixes,
	}
}

// ClassifierOptions returns the logistic regression parameters.
func (c Config) ClassifierOptions() classifier.Options {
	return classifier.Options{Epochs: c.CV.Epochs, LearningRate: c.CV.LearningRate, L2: c.CV.L2}
}

// Validate checks every section. Cross-validation errors wrap cv.ErrInvalidConfig.
func (c Config) Validate() error {
	if err := c.ETLConfig().Validate(); err != nil {
		return err
	}
	if err := c.ClassifierOptions().Validate(); err != nil {
		return err
	}
	if c.CV.K <= 1 {
		return fmt.Errorf("%w: k must be at least 2, got %d", cv.ErrInvalidConfig, c.CV.K)
	}
	if c.CV.Iterations <= 1 {
		return fmt.Errorf("%w: iterations must be at least 2, got %d", cv.ErrInvalidConfig, c.CV.Iterations)
	}
	if !(c.CV.TestFraction > 0 && c.CV.TestFraction < 1) {
		return fmt.Errorf("%w: test fraction must be in (0, 1), got %v", cv.ErrInvalidConfig, c.CV.TestFraction)
	}
	if c.CV.Seed == 0 {
		return fmt.Errorf("%w: seed must not be 0", cv.ErrInvalidConfig)
	}
	if c.Threads < 0 {
		return fmt.Errorf("threads must not be negative, got %d", c.Threads)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
