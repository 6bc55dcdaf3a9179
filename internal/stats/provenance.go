package stats

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
)

// Provenance captures the toolchain, host, and build metadata behind a
// result table, so a table found on disk can be traced to the binary
// that produced it.
type Provenance struct {
	GoVersion   string            `json:"go_version"`
	OS          string            `json:"os"`
	Arch        string            `json:"arch"`
	Hostname    string            `json:"hostname,omitempty"`
	Module      string            `json:"module,omitempty"`
	Version     string            `json:"version,omitempty"`
	VCSRevision string            `json:"vcs_revision,omitempty"`
	VCSTime     string            `json:"vcs_time,omitempty"`
	VCSModified bool              `json:"vcs_modified,omitempty"`
	Deps        map[string]string `json:"deps,omitempty"`
}

// TableProvenance is the sidecar written next to each result table.
type TableProvenance struct {
	RunID      string     `json:"run_id,omitempty"`
	Rows       int        `json:"rows"`
	Provenance Provenance `json:"provenance"`
}

// CaptureProvenance collects build and host metadata. Binaries built
// without module info (go test, some dev builds) just get sparser
// records; capture never fails a run.
func CaptureProvenance() Provenance {
	prov := Provenance{
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if host, err := os.Hostname(); err == nil {
		prov.Hostname = host
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return prov
	}
	prov.Module = info.Main.Path
	prov.Version = info.Main.Version
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			prov.VCSRevision = setting.Value
		case "vcs.time":
			prov.VCSTime = setting.Value
		case "vcs.modified":
			prov.VCSModified = setting.Value == "true"
		}
	}
	if len(info.Deps) > 0 {
		prov.Deps = make(map[string]string, len(info.Deps))
		for _, dep := range info.Deps {
			prov.Deps[dep.Path] = dep.Version
		}
	}
	return prov
}

// WriteTableProvenance writes the sidecar next to tablePath, replacing
// the table extension with ".provenance.json". Returns the sidecar
// path.
func WriteTableProvenance(tablePath string, meta TableProvenance) (string, error) {
	path := sidecarPath(tablePath)
	if err := writeJSON(path, meta); err != nil {
		return "", err
	}
	return path, nil
}

func sidecarPath(tablePath string) string {
	return strings.TrimSuffix(tablePath, filepath.Ext(tablePath)) + ".provenance.json"
}
