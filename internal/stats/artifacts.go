// Package stats captures what a finished run leaves behind: the run
// record, the artifact directory, and the provenance sidecar written
// next to each result table.
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"episkopos/internal/config"
)

const (
	runsSubdir     = "runs"
	configFile     = "config.yaml"
	summaryFile    = "summary.json"
	provenanceFile = "provenance.json"
)

// RunRecord is the durable summary of one completed run. CreatedAtUTC
// is RFC3339Nano so records sort newest-first lexically, both in the
// store and in run listings.
type RunRecord struct {
	RunID        string  `json:"run_id"`
	Experiment   string  `json:"experiment"`
	CreatedAtUTC string  `json:"created_at_utc"`
	SeedRoot     int64   `json:"seed_root"`
	Backend      string  `json:"backend"`
	Workers      int     `json:"workers"`
	Clients      int     `json:"clients"`
	Rounds       int     `json:"rounds"`
	Repeats      int     `json:"repeats"`
	Aggregator   string  `json:"aggregator"`
	Signal       string  `json:"signal"`
	Mechanism    string  `json:"mechanism"`
	Rows         int     `json:"rows"`
	ElapsedSec   float64 `json:"elapsed_sec"`
	TablePath    string  `json:"table_path"`
	Format       string  `json:"format"`
	RunDir       string  `json:"run_dir"`
}

// CreatedTime parses the record timestamp; zero time when unparsable.
func (r RunRecord) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.CreatedAtUTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// NewRecord fills a RunRecord from the run configuration; callers set
// the post-run fields (Rows, ElapsedSec, TablePath, RunDir) when known.
func NewRecord(runID string, cfg *config.Config, backend string) RunRecord {
	return RunRecord{
		RunID:        runID,
		Experiment:   cfg.Meta.Experiment,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		SeedRoot:     cfg.Meta.SeedRoot,
		Backend:      backend,
		Workers:      cfg.Execution.ParallelWorkers,
		Clients:      cfg.Engine.Clients,
		Rounds:       cfg.Engine.Rounds,
		Repeats:      cfg.Engine.Repeats,
		Aggregator:   cfg.Aggregator.Kind,
		Signal:       cfg.Signals.Model,
		Mechanism:    cfg.Mechanism.Policy,
		Format:       cfg.Logging.OutFormat,
	}
}

// RunsDir is where per-run artifact directories live under resultsDir.
func RunsDir(resultsDir string) string {
	return filepath.Join(resultsDir, runsSubdir)
}

// WriteRunArtifacts creates <resultsDir>/runs/<runID>/ holding the
// exact config snapshot, the run record, and the provenance capture.
// It returns the run directory.
func WriteRunArtifacts(resultsDir string, cfg *config.Config, rec RunRecord, prov Provenance) (string, error) {
	if rec.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(RunsDir(resultsDir), rec.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	snapshot, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, configFile), snapshot, 0o644); err != nil {
		return "", err
	}
	rec.RunDir = runDir
	if err := writeJSON(filepath.Join(runDir, summaryFile), rec); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, provenanceFile), prov); err != nil {
		return "", err
	}
	return runDir, nil
}

// ReadRunRecord loads the record from a run's artifact directory.
func ReadRunRecord(resultsDir, runID string) (RunRecord, bool, error) {
	path := filepath.Join(RunsDir(resultsDir), runID, summaryFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, err
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return RunRecord{}, false, err
	}
	return rec, true, nil
}

// ExportRun copies a run's artifact directory to destDir, bringing the
// result table and its provenance sidecar along when they still exist.
// It returns the destination directory.
func ExportRun(resultsDir, runID, destDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(RunsDir(resultsDir), runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(destDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, summaryFile, provenanceFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}

	rec, ok, err := ReadRunRecord(resultsDir, runID)
	if err != nil {
		return "", err
	}
	if !ok || rec.TablePath == "" {
		return dst, nil
	}
	if _, err := os.Stat(rec.TablePath); err == nil {
		if err := copyFile(rec.TablePath, filepath.Join(dst, filepath.Base(rec.TablePath))); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	sidecar := sidecarPath(rec.TablePath)
	if _, err := os.Stat(sidecar); err == nil {
		if err := copyFile(sidecar, filepath.Join(dst, filepath.Base(sidecar))); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	return dst, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
