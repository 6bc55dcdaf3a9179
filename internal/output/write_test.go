package output

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	"episkopos/internal/table"
)

func sampleTable() *table.Table {
	return table.New([]table.Row{
		{Repeat: 0, Round: 0, N: 3, Aggregator: "mean", Mechanism: "orth_penalty", Signal: "affine", Alpha: 0.5, Pi: 0.2, MonitoringValue: 1.25, StateMean: 0.5},
		{Repeat: 0, Round: 1, N: 3, Aggregator: "mean", Mechanism: "orth_penalty", Signal: "affine", Alpha: 0.5, Pi: 0.2, MonitoringValue: math.NaN(), StateMean: 1.0 / 3.0},
		{Repeat: 1, Round: 0, N: 3, Aggregator: "mean", Mechanism: "orth_penalty", Signal: "affine", Alpha: 0.5, Pi: 0.2, MonitoringValue: -2, StateMean: 0.25},
	})
}

func TestWriteParquetRoundTrip(t *testing.T) {
	path, err := Write(sampleTable(), filepath.Join(t.TempDir(), "out"), "parquet", Options{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Ext(path) != ".parquet" {
		t.Fatalf("extension not normalized: %s", path)
	}

	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer pf.Close()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("arrow reader: %v", err)
	}
	got, err := reader.ReadTable(context.Background())
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	defer got.Release()

	if got.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", got.NumRows())
	}
	idx := got.Schema().FieldIndices("monitoring_value")
	if len(idx) != 1 {
		t.Fatalf("monitoring_value column missing from schema %v", got.Schema())
	}
	col := got.Column(idx[0]).Data().Chunks()[0].(*array.Float64)
	if col.Value(0) != 1.25 {
		t.Fatalf("row 0 monitoring_value: got %v", col.Value(0))
	}
	if !math.IsNaN(col.Value(1)) {
		t.Fatalf("NaN must survive the parquet round trip, got %v", col.Value(1))
	}
}

func TestWriteCSVFormatsFloats(t *testing.T) {
	path, err := Write(sampleTable(), filepath.Join(t.TempDir(), "out.csv"), "csv", Options{Precision: 3})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d records", len(records))
	}
	if records[0][0] != "repeat" || records[0][len(records[0])-1] != "state_std" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	// state_mean of the second row is 1/3, trimmed to 3 significant digits.
	stateMean := records[2][len(records[2])-2]
	if stateMean != "0.333" {
		t.Fatalf("expected precision-3 float, got %q", stateMean)
	}
	if records[2][8] != "NaN" {
		t.Fatalf("expected NaN cell, got %q", records[2][8])
	}
}

func TestWriteCSVLeadsWithExperimentColumn(t *testing.T) {
	tbl := table.New([]table.Row{
		{Experiment: "exp-0001", Repeat: 0, Round: 0, N: 2},
		{Experiment: "exp-0002", Repeat: 0, Round: 0, N: 2},
	})

	path, err := Write(tbl, filepath.Join(t.TempDir(), "sweep"), "csv", Options{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if records[0][0] != "experiment" {
		t.Fatalf("expected experiment column first, got %v", records[0])
	}
	if records[1][0] != "exp-0001" {
		t.Fatalf("expected label in first data row, got %v", records[1])
	}
}

func TestWriteNormalizesExtension(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		in, format, want string
	}{
		{"a.csv", "parquet", "a.parquet"},
		{"b.parq", "parquet", "b.parq"},
		{"c", "csv", "c.csv"},
		{"d.parquet", "csv", "d.csv"},
	}
	for _, tc := range cases {
		path, err := Write(sampleTable(), filepath.Join(dir, tc.in), tc.format, Options{})
		if err != nil {
			t.Fatalf("write %s as %s: %v", tc.in, tc.format, err)
		}
		if filepath.Base(path) != tc.want {
			t.Fatalf("write %s as %s: got %s want %s", tc.in, tc.format, filepath.Base(path), tc.want)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("written file missing: %v", err)
		}
	}
}

func TestWriteCreatesParentDirs(t *testing.T) {
	path, err := Write(sampleTable(), filepath.Join(t.TempDir(), "nested", "deep", "out.csv"), "csv", Options{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("written file missing: %v", err)
	}
}

func TestWriteRejectsUnknownFormat(t *testing.T) {
	_, err := Write(sampleTable(), filepath.Join(t.TempDir(), "out"), "xlsx", Options{})
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got: %v", err)
	}
}
