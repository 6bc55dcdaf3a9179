package sweep

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"episkopos/internal/metrics"
	"episkopos/internal/table"
)

// Manifest records what a sweep ran: the grid, every experiment's
// overrides, and row counts. It is written next to the combined table.
type Manifest struct {
	Rows        int                `json:"rows"`
	Grid        []Axis             `json:"grid,omitempty"`
	Experiments []ExperimentResult `json:"experiments"`
}

// WriteManifest writes the sweep manifest JSON at path.
func WriteManifest(path string, spec *Spec, res *Result) error {
	manifest := Manifest{
		Rows:        res.Table.Len(),
		Grid:        spec.Axes,
		Experiments: res.Experiments,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// WriteSummaryCSV writes one row per experiment: its overrides plus
// summary statistics of valueColumn over the experiment's rows.
// valueColumn defaults to utility_delta.
func WriteSummaryCSV(path string, res *Result, valueColumn string) error {
	if valueColumn == "" {
		valueColumn = "utility_delta"
	}
	if _, ok := table.Value(table.Row{}, valueColumn); !ok {
		return fmt.Errorf("%w: unknown summary column %q", ErrSpec, valueColumn)
	}

	labels := make([]string, 0, res.Table.Len())
	values := make([]float64, 0, res.Table.Len())
	for _, row := range res.Table.Rows {
		v, _ := table.Value(row, valueColumn)
		labels = append(labels, row.Experiment)
		values = append(values, v)
	}
	byLabel, err := metrics.SummarizeBy(labels, values)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	header := []string{"experiment"}
	if len(res.Experiments) > 0 {
		for _, ov := range res.Experiments[0].Overrides {
			header = append(header, ov.Key)
		}
	}
	header = append(header, "rows", "mean", "std", "count", "sem", "ci95")

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, exp := range res.Experiments {
		s := byLabel[exp.Label]
		record := []string{exp.Label}
		for _, ov := range exp.Overrides {
			record = append(record, formatValue(ov.Value))
		}
		record = append(record,
			strconv.Itoa(exp.Rows),
			strconv.FormatFloat(s.Mean, 'g', -1, 64),
			strconv.FormatFloat(s.Std, 'g', -1, 64),
			strconv.Itoa(s.Count),
			strconv.FormatFloat(s.SEM, 'g', -1, 64),
			strconv.FormatFloat(s.CI95, 'g', -1, 64),
		)
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
