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
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// CodemapFile is the name of the saved code map of the train split.
const CodemapFile = "mortality.codemap.train"

func fileNames(split string) (ids, labels, seqs string) {
	return "mortality.ids." + split, "mortality.labels." + split, "mortality.seqs." + split
}

func saveGob(file string, value interface{}) (err error) {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := gob.NewEncoder(f).Encode(value); err != nil {
		return fmt.Errorf("encode %s: %w", file, err)
	}
	return nil
}

func loadGob(file string, value interface{}) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(value); err != nil {
		return fmt.Errorf("decode %s: %w", file, err)
	}
	return nil
}

// SaveCodemap writes the code map into dir.
func SaveCodemap(dir string, codemap *Codemap) error {
	return saveGob(filepath.Join(dir, CodemapFile), codemap)
}

// LoadCodemap reads a code map written by SaveCodemap.
func LoadCodemap(dir string) (*Codemap, error) {
	codemap := &Codemap{}
	if err := loadGob(filepath.Join(dir, CodemapFile), codemap); err != nil {
		return nil, err
	}
	return codemap, nil
}

// SaveDataset writes the ids, labels and sequences of a split into three files in dir.
func SaveDataset(dir, split string, data *Dataset) error {
	idsFile, labelsFile, seqsFile := fileNames(split)
	if err := saveGob(filepath.Join(dir, idsFile), data.IDs); err != nil {
		return err
	}
	if err := saveGob(filepath.Join(dir, labelsFile), data.Labels); err != nil {
		return err
	}
	return saveGob(filepath.Join(dir, seqsFile), data.Seqs)
}

// LoadDataset reads a split written by SaveDataset.
func LoadDataset(dir, split string) (*Dataset, error) {
	idsFile, labelsFile, seqsFile := fileNames(split)
	data := &Dataset{}
	if err := loadGob(filepath.Join(dir, idsFile), &data.IDs); err != nil {
		return nil, err
	}
	if err := loadGob(filepath.Join(dir, labelsFile), &data.Labels); err != nil {
		return nil, err
	}
	if err := loadGob(filepath.Join(dir, seqsFile), &data.Seqs); err != nil {
		return nil, err
	}
	if len(data.IDs) != len(data.Labels) || len(data.IDs) != len(data.Seqs) {
		return nil, fmt.Errorf("split %s: %d ids, %d labels and %d sequences", split, len(data.IDs),
			len(data.Labels), len(data.Seqs))
	}
	return data, nil
}
