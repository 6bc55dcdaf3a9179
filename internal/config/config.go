// Package config defines the run configuration tree, its defaults, and
// validation. Plugin parameter defaults live in the plugin factories;
// the maps here carry only what the user set.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"episkopos/internal/plugin"
	"episkopos/internal/stream"
)

var (
	// ErrInvalid marks a configuration that fails validation.
	ErrInvalid = errors.New("invalid config")
	// ErrUnknownKey marks a dotted override path that matches no
	// configuration field.
	ErrUnknownKey = errors.New("unknown config key")
)

// Config is the full run configuration. All sections merge over
// Default when loaded from YAML.
type Config struct {
	Meta       Meta       `yaml:"meta"`
	Execution  Execution  `yaml:"execution"`
	Engine     Engine     `yaml:"engine"`
	Signals    Signals    `yaml:"signals"`
	Aggregator Aggregator `yaml:"aggregator"`
	Mechanism  Mechanism  `yaml:"mechanism"`
	Logging    Logging    `yaml:"logging"`
	Store      Store      `yaml:"store"`
}

type Meta struct {
	SeedRoot   int64  `yaml:"seed_root"`
	Experiment string `yaml:"experiment"`
}

type Execution struct {
	Backend         string `yaml:"backend"`
	ParallelWorkers int    `yaml:"parallel_workers"`
	LogEvery        int    `yaml:"log_every"`
}

type Engine struct {
	Clients int `yaml:"clients"`
	Rounds  int `yaml:"rounds"`
	Repeats int `yaml:"repeats"`
}

// Signals selects the observation model; all other keys in the section
// pass through to the model factory.
type Signals struct {
	Model  string        `yaml:"model"`
	Params plugin.Params `yaml:",inline"`
}

type Aggregator struct {
	Kind   string        `yaml:"kind"`
	Params plugin.Params `yaml:",inline"`
}

type Mechanism struct {
	Policy string        `yaml:"policy"`
	Params plugin.Params `yaml:",inline"`
}

type Logging struct {
	OutFormat      string `yaml:"out_format"`
	FloatPrecision int    `yaml:"float_precision"`
}

type Store struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// Default returns the baseline configuration every load merges over.
func Default() *Config {
	return &Config{
		Meta:       Meta{SeedRoot: stream.DefaultSeed, Experiment: "baseline"},
		Execution:  Execution{Backend: "sequential", ParallelWorkers: 0, LogEvery: 1},
		Engine:     Engine{Clients: 200, Rounds: 50, Repeats: 5},
		Signals:    Signals{Model: "affine"},
		Aggregator: Aggregator{Kind: "mean"},
		Mechanism:  Mechanism{Policy: "orth_penalty"},
		Logging:    Logging{OutFormat: "parquet", FloatPrecision: 6},
		Store:      Store{Kind: "sqlite", Path: "results/runs.db"},
	}
}

// Load reads a YAML file, merges it over the defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse merges YAML bytes over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize canonicalizes fields that allow cosmetic variation.
func (c *Config) Normalize() {
	c.Logging.OutFormat = strings.ToLower(strings.TrimSpace(c.Logging.OutFormat))
	c.Execution.Backend = strings.TrimSpace(c.Execution.Backend)
	c.Store.Kind = strings.ToLower(strings.TrimSpace(c.Store.Kind))
}

// Validate fails fast on anything the run could not recover from.
// Plugin names are checked for presence only; resolution against the
// registry decides whether they exist.
func (c *Config) Validate() error {
	if c.Engine.Clients < 1 {
		return fmt.Errorf("%w: engine.clients must be >= 1, got %d", ErrInvalid, c.Engine.Clients)
	}
	if c.Engine.Rounds < 1 {
		return fmt.Errorf("%w: engine.rounds must be >= 1, got %d", ErrInvalid, c.Engine.Rounds)
	}
	if c.Engine.Repeats < 1 {
		return fmt.Errorf("%w: engine.repeats must be >= 1, got %d", ErrInvalid, c.Engine.Repeats)
	}
	if c.Execution.ParallelWorkers < 0 {
		return fmt.Errorf("%w: execution.parallel_workers must be >= 0, got %d", ErrInvalid, c.Execution.ParallelWorkers)
	}
	if c.Execution.LogEvery < 1 {
		return fmt.Errorf("%w: execution.log_every must be >= 1, got %d", ErrInvalid, c.Execution.LogEvery)
	}
	if c.Execution.Backend == "" {
		return fmt.Errorf("%w: execution.backend must be set", ErrInvalid)
	}
	if c.Signals.Model == "" {
		return fmt.Errorf("%w: signals.model must be set", ErrInvalid)
	}
	if c.Aggregator.Kind == "" {
		return fmt.Errorf("%w: aggregator.kind must be set", ErrInvalid)
	}
	if c.Mechanism.Policy == "" {
		return fmt.Errorf("%w: mechanism.policy must be set", ErrInvalid)
	}
	if c.Logging.OutFormat != "parquet" && c.Logging.OutFormat != "csv" {
		return fmt.Errorf("%w: logging.out_format must be parquet or csv, got %q", ErrInvalid, c.Logging.OutFormat)
	}
	if c.Store.Kind != "memory" && c.Store.Kind != "sqlite" {
		return fmt.Errorf("%w: store.kind must be memory or sqlite, got %q", ErrInvalid, c.Store.Kind)
	}
	if err := c.validateWeights(); err != nil {
		return err
	}
	return c.validateNoise()
}

func (c *Config) validateWeights() error {
	if c.Aggregator.Kind != "sorted_weighted" {
		return nil
	}
	weights, ok, err := c.Aggregator.Params.Floats("weights")
	if err != nil {
		return fmt.Errorf("%w: aggregator.weights: %v", ErrInvalid, err)
	}
	if !ok {
		return nil
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("%w: aggregator.weights must sum to > 0, got %v", ErrInvalid, sum)
	}
	return nil
}

func (c *Config) validateNoise() error {
	for _, key := range []string{"noise", "noise_sigma"} {
		sigma, ok, err := c.Signals.Params.Floats(key)
		if err != nil {
			return fmt.Errorf("%w: signals.%s: %v", ErrInvalid, key, err)
		}
		if ok && len(sigma) != 1 && len(sigma) != c.Engine.Clients {
			return fmt.Errorf("%w: signals.%s has %d entries, want 1 or engine.clients (%d)",
				ErrInvalid, key, len(sigma), c.Engine.Clients)
		}
	}
	return nil
}

// Clone deep-copies the configuration, including the plugin parameter
// maps, so sweep overrides never touch the base.
func (c *Config) Clone() *Config {
	out := *c
	out.Signals.Params = c.Signals.Params.Clone()
	out.Aggregator.Params = c.Aggregator.Params.Clone()
	out.Mechanism.Params = c.Mechanism.Params.Clone()
	return &out
}

// Set applies one dotted override like "mechanism.phi" or
// "engine.clients". Typed fields coerce their value; unmatched keys in
// the signals, aggregator, and mechanism sections flow into the
// section's parameter map.
func (c *Config) Set(key string, value any) error {
	section, field, ok := strings.Cut(key, ".")
	if !ok || field == "" || strings.Contains(field, ".") {
		return fmt.Errorf("%w: %q (want section.field)", ErrUnknownKey, key)
	}

	switch section {
	case "meta":
		switch field {
		case "seed_root":
			n, ok := asInt64(value)
			if !ok {
				return typeErr(key, "integer", value)
			}
			c.Meta.SeedRoot = n
		case "experiment":
			s, ok := value.(string)
			if !ok {
				return typeErr(key, "string", value)
			}
			c.Meta.Experiment = s
		default:
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
	case "execution":
		switch field {
		case "backend":
			s, ok := value.(string)
			if !ok {
				return typeErr(key, "string", value)
			}
			c.Execution.Backend = s
		case "parallel_workers":
			n, ok := asInt(value)
			if !ok {
				return typeErr(key, "integer", value)
			}
			c.Execution.ParallelWorkers = n
		case "log_every":
			n, ok := asInt(value)
			if !ok {
				return typeErr(key, "integer", value)
			}
			c.Execution.LogEvery = n
		default:
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
	case "engine":
		n, ok := asInt(value)
		if !ok {
			return typeErr(key, "integer", value)
		}
		switch field {
		case "clients":
			c.Engine.Clients = n
		case "rounds":
			c.Engine.Rounds = n
		case "repeats":
			c.Engine.Repeats = n
		default:
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
	case "signals":
		if field == "model" {
			s, ok := value.(string)
			if !ok {
				return typeErr(key, "string", value)
			}
			c.Signals.Model = s
			return nil
		}
		c.Signals.Params = setParam(c.Signals.Params, field, value)
	case "aggregator":
		if field == "kind" {
			s, ok := value.(string)
			if !ok {
				return typeErr(key, "string", value)
			}
			c.Aggregator.Kind = s
			return nil
		}
		c.Aggregator.Params = setParam(c.Aggregator.Params, field, value)
	case "mechanism":
		if field == "policy" {
			s, ok := value.(string)
			if !ok {
				return typeErr(key, "string", value)
			}
			c.Mechanism.Policy = s
			return nil
		}
		c.Mechanism.Params = setParam(c.Mechanism.Params, field, value)
	case "logging":
		switch field {
		case "out_format":
			s, ok := value.(string)
			if !ok {
				return typeErr(key, "string", value)
			}
			c.Logging.OutFormat = strings.ToLower(s)
		case "float_precision":
			n, ok := asInt(value)
			if !ok {
				return typeErr(key, "integer", value)
			}
			c.Logging.FloatPrecision = n
		default:
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
	case "store":
		switch field {
		case "kind":
			s, ok := value.(string)
			if !ok {
				return typeErr(key, "string", value)
			}
			c.Store.Kind = strings.ToLower(s)
		case "path":
			s, ok := value.(string)
			if !ok {
				return typeErr(key, "string", value)
			}
			c.Store.Path = s
		default:
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

// SeedRoot derives the run's stream root from the configured seed.
func (c *Config) SeedRoot() stream.Root {
	return stream.New(c.Meta.SeedRoot)
}

func setParam(p plugin.Params, key string, value any) plugin.Params {
	if p == nil {
		p = plugin.Params{}
	}
	p[key] = value
	return p
}

func typeErr(key, want string, got any) error {
	return fmt.Errorf("%w: %s wants a %s, got %T", ErrInvalid, key, want, got)
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case uint64:
		return int(x), true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}
