package sweep

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"episkopos/internal/backend"
	"episkopos/internal/catalog"
	"episkopos/internal/config"
	"episkopos/internal/plugin"
	"episkopos/internal/table"
)

func testRunner() *Runner {
	return &Runner{Catalog: catalog.New(), Backends: backend.NewRegistry()}
}

func smallBase() *config.Config {
	cfg := config.Default()
	cfg.Meta.SeedRoot = 123
	cfg.Engine.Clients = 6
	cfg.Engine.Rounds = 3
	cfg.Engine.Repeats = 2
	return cfg
}

func gridSpec(key string, values ...any) *Spec {
	return &Spec{
		Base: smallBase(),
		Axes: []Axis{{Key: key, Values: values}},
	}
}

func TestRunWithoutGridLabelsSingleExperiment(t *testing.T) {
	res, err := testRunner().Run(context.Background(), Request{Spec: &Spec{Base: smallBase()}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := res.Table.Len(); got != 6 {
		t.Fatalf("expected repeats*rounds rows, got %d", got)
	}
	for _, row := range res.Table.Rows {
		if row.Experiment != "exp-0000" {
			t.Fatalf("row not labeled: %+v", row)
		}
	}
	if len(res.Experiments) != 1 || res.Experiments[0].Rows != 6 {
		t.Fatalf("experiment results: %+v", res.Experiments)
	}
}

func TestRunGridSelectsPluginsPerExperiment(t *testing.T) {
	spec := gridSpec("aggregator.kind", "mean", "median")
	res, err := testRunner().Run(context.Background(), Request{Spec: spec})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := res.Table.Len(); got != 12 {
		t.Fatalf("expected 12 rows, got %d", got)
	}
	want := map[string]string{"exp-0000": "mean", "exp-0001": "median"}
	for _, row := range res.Table.Rows {
		if row.Aggregator != want[row.Experiment] {
			t.Fatalf("experiment %s ran aggregator %s", row.Experiment, row.Aggregator)
		}
	}
}

func TestRunDerivesDistinctStreamsPerExperiment(t *testing.T) {
	// Identical override values, so any difference between the two
	// experiments' rows comes from the per-index seed derivation.
	spec := gridSpec("mechanism.alpha", 0.5, 0.5)
	res, err := testRunner().Run(context.Background(), Request{Spec: spec})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	first, second := res.Table.Rows[0], res.Table.Rows[6]
	if first.Experiment != "exp-0000" || second.Experiment != "exp-0001" {
		t.Fatalf("unexpected row order: %s %s", first.Experiment, second.Experiment)
	}
	if first.Repeat != second.Repeat || first.Round != second.Round {
		t.Fatalf("rows should align by repeat and round: %+v vs %+v", first, second)
	}
	if first.MonitoringValue == second.MonitoringValue {
		t.Fatalf("experiments share a stream: %v", first.MonitoringValue)
	}
}

func TestRunParallelExperimentsMatchSequential(t *testing.T) {
	spec := gridSpec("mechanism.alpha", 0.25, 0.75)
	r := testRunner()

	seq, err := r.Run(context.Background(), Request{Spec: spec, Workers: 1})
	if err != nil {
		t.Fatalf("sequential run: %v", err)
	}
	par, err := r.Run(context.Background(), Request{Spec: spec, Workers: 4})
	if err != nil {
		t.Fatalf("parallel run: %v", err)
	}
	if !table.Equal(seq.Table, par.Table) {
		t.Fatalf("worker count changed sweep results")
	}
}

func TestRunWrapsExperimentErrors(t *testing.T) {
	spec := gridSpec("aggregator.kind", "mean", "nope")
	_, err := testRunner().Run(context.Background(), Request{Spec: spec})
	if err == nil {
		t.Fatalf("expected error for unknown aggregator")
	}
	if !strings.Contains(err.Error(), "experiment exp-0001") {
		t.Fatalf("error should name the experiment: %v", err)
	}
	if !errors.Is(err, plugin.ErrAggregatorNotFound) {
		t.Fatalf("expected aggregator lookup failure, got: %v", err)
	}
}

func TestRunRejectsBadOverrideKey(t *testing.T) {
	spec := gridSpec("nope.key", 1.0)
	_, err := testRunner().Run(context.Background(), Request{Spec: spec})
	if err == nil || !strings.Contains(err.Error(), "experiment exp-0000") {
		t.Fatalf("expected wrapped override error, got: %v", err)
	}
}

func TestWriteManifestRoundTrip(t *testing.T) {
	spec := gridSpec("mechanism.alpha", 0.25, 0.75)
	res, err := testRunner().Run(context.Background(), Request{Spec: spec})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	path := filepath.Join(t.TempDir(), "sweep.manifest.json")
	if err := WriteManifest(path, spec, res); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.Rows != 12 {
		t.Fatalf("manifest rows: %d", manifest.Rows)
	}
	if len(manifest.Grid) != 1 || manifest.Grid[0].Key != "mechanism.alpha" {
		t.Fatalf("manifest grid: %+v", manifest.Grid)
	}
	if len(manifest.Experiments) != 2 || manifest.Experiments[1].Label != "exp-0001" || manifest.Experiments[1].Rows != 6 {
		t.Fatalf("manifest experiments: %+v", manifest.Experiments)
	}
}

func TestWriteSummaryCSVGroupsByExperiment(t *testing.T) {
	spec := gridSpec("mechanism.alpha", 0.25, 0.75)
	res, err := testRunner().Run(context.Background(), Request{Spec: spec})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	path := filepath.Join(t.TempDir(), "summary.csv")
	if err := WriteSummaryCSV(path, res, ""); err != nil {
		t.Fatalf("write summary: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open summary: %v", err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}

	wantHeader := []string{"experiment", "mechanism.alpha", "rows", "mean", "std", "count", "sem", "ci95"}
	if len(records) != 3 {
		t.Fatalf("expected header plus two experiments, got %d records", len(records))
	}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Fatalf("header: %v", records[0])
		}
	}
	if records[1][0] != "exp-0000" || records[1][1] != "0.25" || records[1][2] != "6" {
		t.Fatalf("first experiment record: %v", records[1])
	}
	if records[2][1] != "0.75" {
		t.Fatalf("second experiment record: %v", records[2])
	}
	if records[1][5] != "6" {
		t.Fatalf("count should match rows: %v", records[1])
	}
	if _, err := strconv.ParseFloat(records[1][3], 64); err != nil {
		t.Fatalf("mean column should parse: %v", err)
	}
}

func TestWriteSummaryCSVRejectsUnknownColumn(t *testing.T) {
	res := &Result{Table: table.New(nil)}
	err := WriteSummaryCSV(filepath.Join(t.TempDir(), "summary.csv"), res, "bogus")
	if !errors.Is(err, ErrSpec) {
		t.Fatalf("expected ErrSpec, got: %v", err)
	}
}
