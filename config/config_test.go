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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mortality/cv"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.CV.K != 5 || cfg.CV.Iterations != 5 || cfg.CV.TestFraction != 0.2 || cfg.CV.Seed != cv.DefaultSeed {
		t.Errorf("unexpected cross-validation defaults %+v", cfg.CV)
	}
	e := cfg.ETLConfig()
	if e.WindowDays != 2000 || e.DeathOffsetDays != 30 {
		t.Errorf("unexpected etl defaults %+v", e)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	file := filepath.Join(t.TempDir(), "run.yaml")
	content := "etl:\n  windowDays: 365\n  countPrefixes: [LAB, VITAL]\ncv:\n  k: 10\n  scoreAUC: true\nstore:\n  path: out.db\n" +
		"log:\n  format: json\nthreads: 4\n"
	if err := os.WriteFile(file, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ETL.WindowDays != 365 || cfg.ETL.DeathOffsetDays != 30 || len(cfg.ETL.CountPrefixes) != 2 {
		t.Errorf("unexpected etl section %+v", cfg.ETL)
	}
	if cfg.CV.K != 10 || cfg.CV.Iterations != 5 || !cfg.CV.ScoreAUC || cfg.Store.Path != "out.db" || cfg.Log.Format != "json" ||
		cfg.Threads != 4 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.CV.K = 1
	if err := cfg.Validate(); !errors.Is(err, cv.ErrInvalidConfig) {
		t.Errorf("k=1: %v", err)
	}
	cfg = Default()
	cfg.CV.Seed = 0
	if err := cfg.Validate(); !errors.Is(err, cv.ErrInvalidConfig) {
		t.Errorf("seed=0: %v", err)
	}
	cfg = Default()
	cfg.Log.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an unknown log format to be rejected")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
