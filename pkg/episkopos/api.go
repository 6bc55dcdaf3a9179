// Package episkopos is the embedding API: it wires the plugin catalog,
// the execution backends, and the run-history store behind a single
// client so callers can run simulations and sweeps without touching
// the internal packages.
package episkopos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"episkopos/internal/backend"
	"episkopos/internal/catalog"
	"episkopos/internal/config"
	"episkopos/internal/engine"
	"episkopos/internal/output"
	"episkopos/internal/plugin"
	"episkopos/internal/stats"
	"episkopos/internal/storage"
	"episkopos/internal/sweep"
)

const (
	defaultResultsDir = "results"
	defaultExportsDir = "exports"
	defaultStoreKind  = "sqlite"
	logsSubdir        = "logs"
	defaultRunTable   = "run.parquet"
	defaultSweepTable = "sweep.parquet"
)

type Options struct {
	ResultsDir string
	StoreKind  string
	StorePath  string
	Logger     *slog.Logger
}

type Client struct {
	catalog  *plugin.Registry
	backends *backend.Registry
	store    storage.Store

	resultsDir string
	log        *slog.Logger
}

type RunSummary struct {
	RunID          string
	Rows           int
	TablePath      string
	ProvenancePath string
	RunDir         string
	Backend        string
	Elapsed        time.Duration
}

type SweepRequest struct {
	Spec               *sweep.Spec
	OutPath            string
	ExperimentsWorkers int
	SummaryColumn      string
}

type SweepSummary struct {
	Experiments  int
	Rows         int
	TablePath    string
	SummaryPath  string
	ManifestPath string
	Elapsed      time.Duration
}

type ExportRequest struct {
	RunID  string
	Latest bool
	Dest   string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type CatalogSummary struct {
	Aggregators  []string
	SignalModels []string
	Mechanisms   []string
	Backends     []string
}

func New(opts Options) (*Client, error) {
	resultsDir := opts.ResultsDir
	if resultsDir == "" {
		resultsDir = defaultResultsDir
	}
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = defaultStoreKind
	}
	storePath := opts.StorePath
	if storePath == "" {
		storePath = filepath.Join(resultsDir, "runs.db")
	}

	store, err := storage.NewStore(storeKind, storePath)
	if err != nil {
		return nil, err
	}

	return &Client{
		catalog:    catalog.New(),
		backends:   backend.NewRegistry(),
		store:      store,
		resultsDir: resultsDir,
		log:        opts.Logger,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Run executes one configuration end to end: simulate, write the
// result table and its provenance sidecar, snapshot the run artifacts,
// and record the run in the store. outPath == "" writes under
// <resultsDir>/logs; the extension follows the configured format.
func (c *Client) Run(ctx context.Context, cfg *config.Config, outPath string) (RunSummary, error) {
	if cfg == nil {
		return RunSummary{}, errors.New("configuration is required")
	}
	cfg = cfg.Clone()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}

	started := time.Now()
	runID := newRunID(cfg)

	ex, err := engine.New(cfg, c.catalog, engine.WithLogger(c.log))
	if err != nil {
		return RunSummary{}, err
	}
	b, err := c.backends.Resolve(cfg.Execution.Backend)
	if err != nil {
		return RunSummary{}, err
	}

	tbl, err := b.Run(ctx, backend.Job{
		Repeats:   cfg.Engine.Repeats,
		Workers:   cfg.Execution.ParallelWorkers,
		RunRepeat: ex.RunRepeat,
		Config:    cfg,
		Root:      cfg.SeedRoot(),
	})
	if err != nil {
		return RunSummary{}, err
	}

	if outPath == "" {
		outPath = filepath.Join(c.resultsDir, logsSubdir, defaultRunTable)
	}
	written, err := output.Write(tbl, outPath, cfg.Logging.OutFormat, output.Options{
		Precision: cfg.Logging.FloatPrecision,
	})
	if err != nil {
		return RunSummary{}, err
	}

	prov := stats.CaptureProvenance()
	sidecar, err := stats.WriteTableProvenance(written, stats.TableProvenance{
		RunID:      runID,
		Rows:       tbl.Len(),
		Provenance: prov,
	})
	if err != nil {
		return RunSummary{}, err
	}

	rec := stats.NewRecord(runID, cfg, b.Name())
	rec.Rows = tbl.Len()
	rec.ElapsedSec = time.Since(started).Seconds()
	rec.TablePath = written
	runDir, err := stats.WriteRunArtifacts(c.resultsDir, cfg, rec, prov)
	if err != nil {
		return RunSummary{}, err
	}
	rec.RunDir = runDir

	if err := c.store.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveRun(ctx, rec); err != nil {
		return RunSummary{}, err
	}

	if c.log != nil {
		c.log.Info("run complete", "run_id", runID, "rows", rec.Rows, "table", written)
	}
	return RunSummary{
		RunID:          runID,
		Rows:           rec.Rows,
		TablePath:      written,
		ProvenancePath: sidecar,
		RunDir:         filepath.Clean(runDir),
		Backend:        b.Name(),
		Elapsed:        time.Since(started),
	}, nil
}

// Sweep expands and runs an experiment grid, then writes the combined
// table, its provenance sidecar, the manifest, and the per-experiment
// summary CSV next to each other.
func (c *Client) Sweep(ctx context.Context, req SweepRequest) (SweepSummary, error) {
	if req.Spec == nil || req.Spec.Base == nil {
		return SweepSummary{}, errors.New("sweep spec is required")
	}

	started := time.Now()
	runner := &sweep.Runner{Catalog: c.catalog, Backends: c.backends, Log: c.log}
	res, err := runner.Run(ctx, sweep.Request{Spec: req.Spec, Workers: req.ExperimentsWorkers})
	if err != nil {
		return SweepSummary{}, err
	}

	outPath := req.OutPath
	if outPath == "" {
		outPath = filepath.Join(c.resultsDir, logsSubdir, defaultSweepTable)
	}
	base := req.Spec.Base
	written, err := output.Write(res.Table, outPath, base.Logging.OutFormat, output.Options{
		Precision: base.Logging.FloatPrecision,
	})
	if err != nil {
		return SweepSummary{}, err
	}
	if _, err := stats.WriteTableProvenance(written, stats.TableProvenance{
		Rows:       res.Table.Len(),
		Provenance: stats.CaptureProvenance(),
	}); err != nil {
		return SweepSummary{}, err
	}

	stem := strings.TrimSuffix(written, filepath.Ext(written))
	manifestPath := stem + ".manifest.json"
	if err := sweep.WriteManifest(manifestPath, req.Spec, res); err != nil {
		return SweepSummary{}, err
	}
	summaryPath := stem + "_summary.csv"
	if err := sweep.WriteSummaryCSV(summaryPath, res, req.SummaryColumn); err != nil {
		return SweepSummary{}, err
	}

	if c.log != nil {
		c.log.Info("sweep complete",
			"experiments", len(res.Experiments), "rows", res.Table.Len(), "table", written)
	}
	return SweepSummary{
		Experiments:  len(res.Experiments),
		Rows:         res.Table.Len(),
		TablePath:    written,
		SummaryPath:  summaryPath,
		ManifestPath: manifestPath,
		Elapsed:      time.Since(started),
	}, nil
}

// Runs lists the most recent run records, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]stats.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	return c.store.ListRuns(ctx, limit)
}

// Export copies a run's artifact directory, and its table when it
// still exists, into the destination directory.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.Dest == "" {
		req.Dest = defaultExportsDir
	}

	runID := req.RunID
	if req.Latest {
		if err := c.store.Init(ctx); err != nil {
			return ExportSummary{}, err
		}
		records, err := c.store.ListRuns(ctx, 1)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(records) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = records[0].RunID
	}

	dir, err := stats.ExportRun(c.resultsDir, runID, req.Dest)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}, nil
}

// Catalog reports the registered strategies and the backends that
// answer their probe.
func (c *Client) Catalog(ctx context.Context) CatalogSummary {
	return CatalogSummary{
		Aggregators:  c.catalog.Aggregators(),
		SignalModels: c.catalog.Signals(),
		Mechanisms:   c.catalog.Mechanisms(),
		Backends:     c.backends.Available(ctx),
	}
}

func newRunID(cfg *config.Config) string {
	return fmt.Sprintf("%s-%d-%s", cfg.Meta.Experiment, cfg.Meta.SeedRoot, uuid.NewString()[:8])
}
