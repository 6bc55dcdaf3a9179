package plugin

import (
	"errors"
	"fmt"
)

// ErrInvalidParam marks a plugin parameter that is present but cannot
// be coerced to the type the factory expects.
var ErrInvalidParam = errors.New("invalid plugin parameter")

// Params holds one config section's parameters minus its selector key.
// Values arrive as whatever the YAML decoder produced, so the accessors
// coerce the common numeric encodings.
type Params map[string]any

// Float returns the parameter under key, or def when absent.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be numeric, got %T", ErrInvalidParam, key, v)
	}
	return f, nil
}

// FloatAlias returns the first key present from keys, or def when none
// are set. Earlier keys win.
func (p Params) FloatAlias(def float64, keys ...string) (float64, error) {
	for _, key := range keys {
		if v, ok := p[key]; ok && v != nil {
			f, ok := toFloat64(v)
			if !ok {
				return 0, fmt.Errorf("%w: %s must be numeric, got %T", ErrInvalidParam, key, v)
			}
			return f, nil
		}
	}
	return def, nil
}

// Int returns the parameter under key, or def when absent.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		return int(x), nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrInvalidParam, key, v)
	}
}

// Bool returns the parameter under key, or def when absent.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a bool, got %T", ErrInvalidParam, key, v)
	}
	return b, nil
}

// String returns the parameter under key, or def when absent.
func (p Params) String(key string, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidParam, key, v)
	}
	return s, nil
}

// Floats returns a numeric list parameter. The second result reports
// whether the key was set at all; a scalar value is treated as a
// one-element list.
func (p Params) Floats(key string) ([]float64, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	if f, ok := toFloat64(v); ok {
		return []float64{f}, true, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s must be a numeric list, got %T", ErrInvalidParam, key, v)
	}
	out := make([]float64, 0, len(items))
	for i, item := range items {
		f, ok := toFloat64(item)
		if !ok {
			return nil, false, fmt.Errorf("%w: %s[%d] must be numeric, got %T", ErrInvalidParam, key, i, item)
		}
		out = append(out, f)
	}
	return out, true, nil
}

// Clone deep-copies the parameter map one level down; list values are
// copied so sweep mutation never aliases a base config. The result is
// always non-nil and safe to write into.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		if items, ok := v.([]any); ok {
			copied := make([]any, len(items))
			copy(copied, items)
			out[k] = copied
			continue
		}
		out[k] = v
	}
	return out
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}
