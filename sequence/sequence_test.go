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
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestConvertICD9(t *testing.T) {
	for code, expected := range map[string]string{
		"4019":  "401",
		"E8889": "E888",
		"V5861": "V58",
		"E88":   "E88",
		"401":   "401",
		"25":    "25",
		"":      "",
	} {
		if got := ConvertICD9(code); got != expected {
			t.Errorf("ConvertICD9(%q) = %q, expected %q", code, got, expected)
		}
	}
}

func TestBuildCodemap(t *testing.T) {
	m := BuildCodemap([]string{"4019", "", "E8889", "4011", "V5861", "E8880"}, ConvertICD9)
	if !reflect.DeepEqual(m.Codes, []string{"401", "E888", "V58"}) {
		t.Errorf("unexpected codes %v", m.Codes)
	}
	if id, ok := m.ID("V58"); !ok || id != 2 {
		t.Errorf("V58 has id %d, %v", id, ok)
	}
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
}

func splitFiles() map[string]string {
	return map[string]string{
		MortalityFile: "SUBJECT_ID,MORTALITY\n20,0\n10,1\n",
		DiagnosesFile: "ROW_ID,SUBJECT_ID,HADM_ID,SEQ_NUM,ICD9_CODE\n" +
			"1,10,100,1,4019\n2,10,100,2,E8889\n3,10,101,1,9999\n4,20,200,1,V5861\n5,20,200,2,4011\n",
		AdmissionsFile: "ROW_ID,SUBJECT_ID,HADM_ID,ADMITTIME\n" +
			"1,20,200,2120-05-01 10:00:00\n2,10,101,2110-03-01 08:00:00\n3,10,100,2110-01-01 08:00:00\n" +
			"4,10,102,2110-06-01 08:00:00\n",
	}
}

func TestCreateDataset(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, splitFiles())
	codes, err := ReadDiagnosisCodes(filepath.Join(dir, DiagnosesFile))
	if err != nil {
		t.Fatal(err)
	}
	codemap := BuildCodemap(codes[:2], ConvertICD9) // 401 -> 0, E888 -> 1
	codemap.IDs["V58"] = 2
	codemap.Codes = append(codemap.Codes, "V58")
	data, err := CreateDataset(dir, codemap, ConvertICD9)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(data.IDs, []int{10, 20}) || !reflect.DeepEqual(data.Labels, []int{1, 0}) {
		t.Fatalf("unexpected patients %v %v", data.IDs, data.Labels)
	}
	expected := [][][]int{
		{{0, 1}, {}, {}},
		{{2, 0}},
	}
	if !reflect.DeepEqual(data.Seqs, expected) {
		t.Errorf("expected %v, got %v", expected, data.Seqs)
	}
}

func TestCreateDatasetUnknownPatient(t *testing.T) {
	dir := t.TempDir()
	files := splitFiles()
	files[MortalityFile] = "SUBJECT_ID,MORTALITY\n10,1\n"
	writeFiles(t, dir, files)
	if _, err := CreateDataset(dir, BuildCodemap(nil, ConvertICD9), ConvertICD9); !errors.Is(err, ErrUnknownPatient) {
		t.Errorf("expected ErrUnknownPatient, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	data := &Dataset{IDs: []int{1, 2}, Labels: []int{0, 1}, Seqs: [][][]int{{{0, 1}}, {{2}, {}}}}
	if err := SaveDataset(dir, "train", data); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"mortality.ids.train", "mortality.labels.train", "mortality.seqs.train"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Error(err)
		}
	}
	loaded, err := LoadDataset(dir, "train")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded.IDs, data.IDs) || !reflect.DeepEqual(loaded.Labels, data.Labels) ||
		len(loaded.Seqs) != 2 || !reflect.DeepEqual(loaded.Seqs[0], data.Seqs[0]) {
		t.Errorf("unexpected round trip %+v", loaded)
	}
	codemap := BuildCodemap([]string{"4019", "E8889"}, ConvertICD9)
	if err := SaveCodemap(dir, codemap); err != nil {
		t.Fatal(err)
	}
	loadedMap, err := LoadCodemap(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loadedMap.Codes, codemap.Codes) || loadedMap.IDs["E888"] != 1 {
		t.Errorf("unexpected code map %+v", loadedMap)
	}
}

func TestVisitDatasetAndCollate(t *testing.T) {
	seqs := [][][]int{
		{{0}},
		{{1, 2}, {0}, {}},
		{{2}, {1}},
	}
	labels := []int{1, 0, 1}
	n := NumFeatures(seqs)
	if n != 3 {
		t.Fatalf("NumFeatures = %d", n)
	}
	d, err := NewVisitDataset(seqs, labels, n)
	if err != nil {
		t.Fatal(err)
	}
	if d.Len() != 3 || !reflect.DeepEqual(d.Item(1).Visits[0], []float32{0, 1, 1}) {
		t.Fatalf("unexpected multi-hot rows %v", d.Item(1).Visits)
	}
	padded, lengths, collatedLabels := Collate(d.Batch([]int{0, 1, 2}))
	if !reflect.DeepEqual(lengths, []int{3, 2, 1}) || !reflect.DeepEqual(collatedLabels, []int{0, 1, 1}) {
		t.Errorf("unexpected order %v %v", lengths, collatedLabels)
	}
	for i, m := range padded {
		if len(m) != 3 {
			t.Errorf("sample %d padded to %d visits", i, len(m))
		}
	}
	if !reflect.DeepEqual(padded[2][1], []float32{0, 0, 0}) || !reflect.DeepEqual(padded[2][0], []float32{1, 0, 0}) {
		t.Errorf("unexpected padding %v", padded[2])
	}
	if _, err := NewVisitDataset(seqs, labels[:2], n); err == nil {
		t.Error("expected a length mismatch error")
	}
	if _, err := NewVisitDataset(seqs, labels, 2); err == nil {
		t.Error("expected an out of range code error")
	}
}
