package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"episkopos/internal/plugin"
	"episkopos/internal/stream"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestParseMergesOverDefaults(t *testing.T) {
	doc := `
engine:
  clients: 10
signals:
  scale: 2.0
  noise: 0.0
mechanism:
  phi: 2.5
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.Engine.Clients != 10 {
		t.Fatalf("clients: got %d", cfg.Engine.Clients)
	}
	if cfg.Engine.Rounds != 50 || cfg.Engine.Repeats != 5 {
		t.Fatalf("untouched engine defaults should survive: %+v", cfg.Engine)
	}
	if cfg.Signals.Model != "affine" {
		t.Fatalf("signals model default should survive, got %q", cfg.Signals.Model)
	}
	if cfg.Execution.Backend != "sequential" {
		t.Fatalf("backend default should survive, got %q", cfg.Execution.Backend)
	}

	scale, err := cfg.Signals.Params.Float("scale", -1)
	if err != nil || scale != 2.0 {
		t.Fatalf("signals scale param: %v %v", scale, err)
	}
	phi, err := cfg.Mechanism.Params.Float("phi", -1)
	if err != nil || phi != 2.5 {
		t.Fatalf("mechanism phi param: %v %v", phi, err)
	}
}

func TestParseEmptyIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Meta.SeedRoot != stream.DefaultSeed || cfg.Meta.Experiment != "baseline" {
		t.Fatalf("unexpected meta defaults: %+v", cfg.Meta)
	}
	if cfg.Logging.OutFormat != "parquet" || cfg.Logging.FloatPrecision != 6 {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Store.Kind != "sqlite" || cfg.Store.Path != "results/runs.db" {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  repeats: 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.Repeats != 2 {
		t.Fatalf("repeats: got %d", cfg.Engine.Repeats)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero clients", func(c *Config) { c.Engine.Clients = 0 }},
		{"zero rounds", func(c *Config) { c.Engine.Rounds = 0 }},
		{"zero repeats", func(c *Config) { c.Engine.Repeats = 0 }},
		{"negative workers", func(c *Config) { c.Execution.ParallelWorkers = -1 }},
		{"zero log every", func(c *Config) { c.Execution.LogEvery = 0 }},
		{"empty backend", func(c *Config) { c.Execution.Backend = "" }},
		{"empty model", func(c *Config) { c.Signals.Model = "" }},
		{"empty kind", func(c *Config) { c.Aggregator.Kind = "" }},
		{"empty policy", func(c *Config) { c.Mechanism.Policy = "" }},
		{"bad format", func(c *Config) { c.Logging.OutFormat = "json" }},
		{"bad store", func(c *Config) { c.Store.Kind = "redis" }},
		{"zero-sum weights", func(c *Config) {
			c.Aggregator.Kind = "sorted_weighted"
			c.Aggregator.Params = plugin.Params{"weights": []any{0.0, 0.0}}
		}},
		{"noise length mismatch", func(c *Config) {
			c.Engine.Clients = 2
			c.Signals.Params = plugin.Params{"noise": []any{0.1, 0.1, 0.1}}
		}},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got: %v", tc.name, err)
		}
	}
}

func TestValidateAccepts(t *testing.T) {
	cfg := Default()
	cfg.Aggregator.Kind = "sorted_weighted"
	cfg.Aggregator.Params = plugin.Params{"weights": []any{1.0, 2.0}}
	cfg.Engine.Clients = 3
	cfg.Signals.Params = plugin.Params{"noise": []any{0.1, 0.2, 0.3}}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("matching vector noise and positive weights should pass: %v", err)
	}
}

func TestNormalizeCanonicalizes(t *testing.T) {
	cfg := Default()
	cfg.Logging.OutFormat = " Parquet "
	cfg.Store.Kind = "SQLite"
	cfg.Normalize()

	if cfg.Logging.OutFormat != "parquet" {
		t.Fatalf("out_format: got %q", cfg.Logging.OutFormat)
	}
	if cfg.Store.Kind != "sqlite" {
		t.Fatalf("store kind: got %q", cfg.Store.Kind)
	}
}

func TestSetOverrides(t *testing.T) {
	cfg := Default()

	sets := []struct {
		key   string
		value any
	}{
		{"engine.clients", 10},
		{"meta.seed_root", 42},
		{"meta.experiment", "probe"},
		{"execution.parallel_workers", 4},
		{"execution.backend", "parallel"},
		{"logging.out_format", "CSV"},
		{"store.path", "alt.db"},
		{"aggregator.kind", "trimmed"},
		{"aggregator.trim_ratio", 0.2},
		{"signals.noise", 0.1},
		{"mechanism.phi", 2.5},
		{"mechanism.policy", "orth_penalty"},
	}
	for _, s := range sets {
		if err := cfg.Set(s.key, s.value); err != nil {
			t.Fatalf("set %s: %v", s.key, err)
		}
	}

	if cfg.Engine.Clients != 10 || cfg.Meta.SeedRoot != 42 || cfg.Meta.Experiment != "probe" {
		t.Fatalf("typed overrides not applied: %+v", cfg)
	}
	if cfg.Execution.ParallelWorkers != 4 || cfg.Execution.Backend != "parallel" {
		t.Fatalf("execution overrides not applied: %+v", cfg.Execution)
	}
	if cfg.Logging.OutFormat != "csv" {
		t.Fatalf("out_format should lowercase, got %q", cfg.Logging.OutFormat)
	}
	if cfg.Aggregator.Kind != "trimmed" {
		t.Fatalf("aggregator kind: %q", cfg.Aggregator.Kind)
	}
	ratio, err := cfg.Aggregator.Params.Float("trim_ratio", -1)
	if err != nil || ratio != 0.2 {
		t.Fatalf("trim_ratio param: %v %v", ratio, err)
	}
	phi, err := cfg.Mechanism.Params.Float("phi", -1)
	if err != nil || phi != 2.5 {
		t.Fatalf("phi param: %v %v", phi, err)
	}
}

func TestSetRejectsUnknownKeys(t *testing.T) {
	cfg := Default()

	for _, key := range []string{"nonsense.key", "engine.bogus", "justakey", "meta.seed_root.extra"} {
		if err := cfg.Set(key, 1); !errors.Is(err, ErrUnknownKey) {
			t.Fatalf("%s: expected ErrUnknownKey, got: %v", key, err)
		}
	}

	if err := cfg.Set("engine.clients", "ten"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for type mismatch, got: %v", err)
	}
}

func TestCloneIsolation(t *testing.T) {
	base := Default()
	base.Mechanism.Params = plugin.Params{"phi": 1.0}
	base.Aggregator.Params = plugin.Params{"weights": []any{1.0, 2.0}}

	clone := base.Clone()
	if err := clone.Set("mechanism.phi", 9.9); err != nil {
		t.Fatalf("set on clone: %v", err)
	}
	clone.Aggregator.Params["weights"].([]any)[0] = 9.0
	clone.Engine.Clients = 1

	phi, _ := base.Mechanism.Params.Float("phi", -1)
	if phi != 1.0 {
		t.Fatalf("clone should not leak params into base, got %v", phi)
	}
	if base.Aggregator.Params["weights"].([]any)[0] != 1.0 {
		t.Fatal("clone should copy list params")
	}
	if base.Engine.Clients != 200 {
		t.Fatalf("clone should not share typed fields, got %d", base.Engine.Clients)
	}
}

func TestSeedRootDerivation(t *testing.T) {
	cfg := Default()
	cfg.Meta.SeedRoot = 123

	a := cfg.SeedRoot().Derive(stream.TagRepeat, 0)
	b := stream.New(123).Derive(stream.TagRepeat, 0)
	for i := 0; i < 4; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d: %v != %v", i, x, y)
		}
	}
}

func TestMarshalKeepsParamsInline(t *testing.T) {
	cfg := Default()
	if err := cfg.Set("mechanism.phi", 2.5); err != nil {
		t.Fatalf("set: %v", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), "phi: 2.5") {
		t.Fatalf("params should marshal inline:\n%s", data)
	}

	back, err := Parse(data)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	phi, err := back.Mechanism.Params.Float("phi", -1)
	if err != nil || phi != 2.5 {
		t.Fatalf("round-tripped phi: %v %v", phi, err)
	}
}
