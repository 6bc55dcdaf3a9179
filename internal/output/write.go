// Package output persists result tables to disk. Parquet goes through
// the arrow writer; CSV goes through encoding/csv so float formatting
// can honor the configured precision.
package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	"episkopos/internal/table"
)

// ErrFormat marks an output format this package cannot write.
var ErrFormat = errors.New("unknown output format")

// Options carries format-specific knobs.
type Options struct {
	// Precision is the number of significant digits for floats in CSV
	// output. Zero or negative selects the shortest round-trip form.
	// Parquet stores binary float64 and ignores it.
	Precision int
}

// Write persists tbl at path in the given format ("parquet" or "csv"),
// creating parent directories and normalizing the file extension to
// match the format. It returns the path actually written.
func Write(tbl *table.Table, path, format string, opts Options) (string, error) {
	switch strings.ToLower(format) {
	case "", "parquet":
		path = normalizeExt(path, ".parquet", ".parq")
		if err := ensureDir(path); err != nil {
			return "", err
		}
		return path, writeParquet(tbl, path)
	case "csv":
		path = normalizeExt(path, ".csv")
		if err := ensureDir(path); err != nil {
			return "", err
		}
		return path, writeCSV(tbl, path, opts.Precision)
	default:
		return "", fmt.Errorf("%w: %q", ErrFormat, format)
	}
}

// normalizeExt keeps path unchanged when its extension already matches
// one of exts, otherwise swaps the extension for exts[0].
func normalizeExt(path string, exts ...string) string {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range exts {
		if ext == want {
			return path
		}
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + exts[0]
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Schema returns the arrow schema for a result table. The experiment
// column leads only when rows carry labels, so single-run tables keep
// the canonical column set.
func Schema(withExperiment bool) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(table.Columns)+1)
	if withExperiment {
		fields = append(fields, arrow.Field{Name: table.ExperimentColumn, Type: arrow.BinaryTypes.String})
	}
	for _, name := range table.Columns {
		var dt arrow.DataType
		switch name {
		case "repeat", "round", "N":
			dt = arrow.PrimitiveTypes.Int64
		case "aggregator", "mechanism", "signal":
			dt = arrow.BinaryTypes.String
		default:
			dt = arrow.PrimitiveTypes.Float64
		}
		fields = append(fields, arrow.Field{Name: name, Type: dt})
	}
	return arrow.NewSchema(fields, nil)
}

func writeParquet(tbl *table.Table, path string) error {
	withExperiment := tbl.HasExperiment()
	schema := Schema(withExperiment)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	off := 0
	if withExperiment {
		off = 1
		exp := b.Field(0).(*array.StringBuilder)
		for _, row := range tbl.Rows {
			exp.Append(row.Experiment)
		}
	}
	ints := func(i int) *array.Int64Builder { return b.Field(off + i).(*array.Int64Builder) }
	strs := func(i int) *array.StringBuilder { return b.Field(off + i).(*array.StringBuilder) }
	floats := func(i int) *array.Float64Builder { return b.Field(off + i).(*array.Float64Builder) }

	for _, row := range tbl.Rows {
		ints(0).Append(int64(row.Repeat))
		ints(1).Append(int64(row.Round))
		ints(2).Append(int64(row.N))
		strs(3).Append(row.Aggregator)
		strs(4).Append(row.Mechanism)
		strs(5).Append(row.Signal)
		floats(6).Append(row.Alpha)
		floats(7).Append(row.Pi)
		floats(8).Append(row.MonitoringValue)
		floats(9).Append(row.GainProxy)
		floats(10).Append(row.CostProxy)
		floats(11).Append(row.UtilityDelta)
		floats(12).Append(row.SignalMean)
		floats(13).Append(row.SignalStd)
		floats(14).Append(row.StateMean)
		floats(15).Append(row.StateStd)
	}

	rec := b.NewRecord()
	defer rec.Release()
	at := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer at.Release()

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	chunk := int64(max(tbl.Len(), 1))
	if err := pqarrow.WriteTable(at, file, chunk, props, pqarrow.DefaultWriterProps()); err != nil {
		file.Close()
		return fmt.Errorf("write parquet: %w", err)
	}
	return file.Close()
}

func writeCSV(tbl *table.Table, path string, precision int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if precision <= 0 {
		precision = -1
	}
	ff := func(v float64) string {
		return strconv.FormatFloat(v, 'g', precision, 64)
	}

	withExperiment := tbl.HasExperiment()
	header := table.Columns
	if withExperiment {
		header = append([]string{table.ExperimentColumn}, table.Columns...)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range tbl.Rows {
		record := make([]string, 0, len(header))
		if withExperiment {
			record = append(record, row.Experiment)
		}
		record = append(record,
			strconv.Itoa(row.Repeat),
			strconv.Itoa(row.Round),
			strconv.Itoa(row.N),
			row.Aggregator,
			row.Mechanism,
			row.Signal,
			ff(row.Alpha),
			ff(row.Pi),
			ff(row.MonitoringValue),
			ff(row.GainProxy),
			ff(row.CostProxy),
			ff(row.UtilityDelta),
			ff(row.SignalMean),
			ff(row.SignalStd),
			ff(row.StateMean),
			ff(row.StateStd),
		)
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
