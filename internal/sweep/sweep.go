// Package sweep expands a parameter grid into experiments and runs
// them against a shared base configuration. Axis order follows the
// sweep document, and every experiment derives its own seed root, so a
// sweep is reproducible from the file alone.
package sweep

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"episkopos/internal/config"
)

// ErrSpec marks a sweep document or grid spec this package rejects.
var ErrSpec = errors.New("invalid sweep spec")

// Axis is one grid dimension: a dotted config key and its values.
type Axis struct {
	Key    string `json:"key"`
	Values []any  `json:"values"`
}

// Override is one applied axis value.
type Override struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Experiment is one point of the expanded grid.
type Experiment struct {
	Index     int        `json:"index"`
	Label     string     `json:"label"`
	Overrides []Override `json:"overrides,omitempty"`
}

// Spec is a parsed sweep definition.
type Spec struct {
	Base *config.Config
	Axes []Axis
}

// Load reads a sweep YAML. The document may name a `base` config path,
// carry inline overrides under any non-reserved top-level key, and
// define the grid under `sweep.grid`. A plain config YAML is accepted
// too and yields a single-experiment spec.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sweep %s: %w", path, err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", path, err)
	}
	return spec, nil
}

// Parse builds a Spec from sweep YAML bytes. Grid axes keep document
// order.
func Parse(data []byte) (*Spec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse sweep: %w", err)
	}
	if len(doc.Content) == 0 {
		return &Spec{Base: config.Default()}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: document must be a mapping", ErrSpec)
	}

	spec := &Spec{Base: config.Default()}
	var sweepNode *yaml.Node
	overrides := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "base":
			base, err := config.Load(value.Value)
			if err != nil {
				return nil, err
			}
			spec.Base = base
		case "sweep":
			sweepNode = value
		case "output":
			// reserved, never an override
		default:
			overrides.Content = append(overrides.Content, key, value)
		}
	}

	if len(overrides.Content) > 0 {
		raw, err := yaml.Marshal(overrides)
		if err != nil {
			return nil, fmt.Errorf("merge overrides: %w", err)
		}
		if err := yaml.Unmarshal(raw, spec.Base); err != nil {
			return nil, fmt.Errorf("merge overrides: %w", err)
		}
		spec.Base.Normalize()
		if err := spec.Base.Validate(); err != nil {
			return nil, err
		}
	}

	if sweepNode != nil {
		axes, err := parseGrid(sweepNode)
		if err != nil {
			return nil, err
		}
		spec.Axes = axes
	}
	return spec, nil
}

func parseGrid(sweepNode *yaml.Node) ([]Axis, error) {
	if sweepNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: sweep section must be a mapping", ErrSpec)
	}
	var grid *yaml.Node
	for i := 0; i+1 < len(sweepNode.Content); i += 2 {
		if sweepNode.Content[i].Value == "grid" {
			grid = sweepNode.Content[i+1]
		}
	}
	if grid == nil {
		return nil, nil
	}
	if grid.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: sweep.grid must be a mapping", ErrSpec)
	}

	var axes []Axis
	for i := 0; i+1 < len(grid.Content); i += 2 {
		key := grid.Content[i].Value
		values, err := expandNode(grid.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("axis %q: %w", key, err)
		}
		axes = append(axes, Axis{Key: key, Values: values})
	}
	return axes, nil
}

// expandNode turns one axis spec node into its value list: an explicit
// sequence, a {start, stop, num} linspace, or a single scalar.
func expandNode(n *yaml.Node) ([]any, error) {
	switch n.Kind {
	case yaml.SequenceNode:
		var values []any
		if err := n.Decode(&values); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSpec, err)
		}
		return values, nil
	case yaml.MappingNode:
		var spec struct {
			Start *float64 `yaml:"start"`
			Stop  *float64 `yaml:"stop"`
			Num   *int     `yaml:"num"`
		}
		if err := n.Decode(&spec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSpec, err)
		}
		if spec.Start == nil || spec.Stop == nil || spec.Num == nil {
			return nil, fmt.Errorf("%w: linspace needs start, stop, and num", ErrSpec)
		}
		points, err := Linspace(*spec.Start, *spec.Stop, *spec.Num)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(points))
		for i, v := range points {
			values[i] = v
		}
		return values, nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, fmt.Errorf("%w: null axis spec", ErrSpec)
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSpec, err)
		}
		return []any{v}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported axis spec", ErrSpec)
	}
}

// Linspace returns num evenly spaced values from start to stop
// inclusive. num == 1 yields just start.
func Linspace(start, stop float64, num int) ([]float64, error) {
	if num < 1 {
		return nil, fmt.Errorf("%w: linspace num must be >= 1, got %d", ErrSpec, num)
	}
	values := make([]float64, num)
	if num == 1 {
		values[0] = start
		return values, nil
	}
	step := (stop - start) / float64(num-1)
	for i := range values {
		values[i] = start + step*float64(i)
	}
	values[num-1] = stop
	return values, nil
}

// ParseSpecValue parses a command-line axis spec: a comma list where
// each element is a number when it parses as one, or a JSON object
// {"start":..,"stop":..,"num":..} for a linspace.
func ParseSpecValue(raw string) ([]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty axis spec", ErrSpec)
	}
	if strings.HasPrefix(raw, "{") {
		var spec struct {
			Start *float64 `json:"start"`
			Stop  *float64 `json:"stop"`
			Num   *int     `json:"num"`
		}
		if err := json.Unmarshal([]byte(raw), &spec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSpec, err)
		}
		if spec.Start == nil || spec.Stop == nil || spec.Num == nil {
			return nil, fmt.Errorf("%w: linspace needs start, stop, and num", ErrSpec)
		}
		points, err := Linspace(*spec.Start, *spec.Stop, *spec.Num)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(points))
		for i, v := range points {
			values[i] = v
		}
		return values, nil
	}

	parts := strings.Split(raw, ",")
	values := make([]any, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("%w: empty element in %q", ErrSpec, raw)
		}
		if f, err := strconv.ParseFloat(part, 64); err == nil {
			values = append(values, f)
		} else {
			values = append(values, part)
		}
	}
	return values, nil
}

// Expand produces the cartesian product of the axes in axis-major
// order: the last axis varies fastest. No axes yields the single
// unmodified experiment; an axis with no values yields none.
func Expand(axes []Axis) []Experiment {
	if len(axes) == 0 {
		return []Experiment{{Index: 0, Label: label(0)}}
	}
	total := 1
	for _, ax := range axes {
		total *= len(ax.Values)
	}
	if total == 0 {
		return nil
	}

	experiments := make([]Experiment, 0, total)
	idx := make([]int, len(axes))
	for i := 0; i < total; i++ {
		overrides := make([]Override, len(axes))
		for a, ax := range axes {
			overrides[a] = Override{Key: ax.Key, Value: ax.Values[idx[a]]}
		}
		experiments = append(experiments, Experiment{Index: i, Label: label(i), Overrides: overrides})
		for a := len(axes) - 1; a >= 0; a-- {
			idx[a]++
			if idx[a] < len(axes[a].Values) {
				break
			}
			idx[a] = 0
		}
	}
	return experiments
}

// label is zero-padded so experiment order survives the combined
// table's lexical sort.
func label(i int) string {
	return fmt.Sprintf("exp-%04d", i)
}
