package sim

import (
	"fmt"
	"strconv"
	"strings"
)

// maxRefDepth bounds reference chains such as "!OBS.dit" -> "!SIM.default_dit" -> 60.
const maxRefDepth = 8

// Value is a metadata value: either a literal or a reference to a configuration key.
// References are only resolved through Resolve, never implicitly.
type Value struct {
	literal any
	ref     string
}

// Literal wraps a plain value.
func Literal(v any) Value { return Value{literal: v} }

// Ref creates a reference to a configuration key of the form "!SECTION.key".
func Ref(key string) Value { return Value{ref: key} }

// ParseValue turns raw configuration data into a Value. Strings beginning with "!"
// become references; anything else is a literal.
func ParseValue(raw any) Value {
	if s, ok := raw.(string); ok && IsRef(s) {
		return Ref(s)
	}
	if v, ok := raw.(Value); ok {
		return v
	}
	return Literal(raw)
}

// IsRef reports whether s has reference syntax.
func IsRef(s string) bool {
	return len(s) > 1 && s[0] == '!' && strings.Contains(s, ".")
}

// IsRef reports whether the value is a reference.
func (v Value) IsRef() bool { return v.ref != "" }

// Raw returns the literal, or the reference string for references.
func (v Value) Raw() any {
	if v.ref != "" {
		return v.ref
	}
	return v.literal
}

func (v Value) String() string {
	return fmt.Sprint(v.Raw())
}

// Resolve follows references through cfg until a literal is reached.
func (v Value) Resolve(cfg Config) (any, error) {
	cur := v
	for depth := 0; cur.ref != ""; depth++ {
		if depth >= maxRefDepth {
			return nil, fmt.Errorf("%w: reference chain too deep at %s", ErrMissingParameter, cur.ref)
		}
		if cfg == nil {
			return nil, fmt.Errorf("%w: %s (no configuration)", ErrMissingParameter, cur.ref)
		}
		raw, ok := cfg.Lookup(cur.ref)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingParameter, cur.ref)
		}
		cur = ParseValue(raw)
	}
	return cur.literal, nil
}

// ToFloat converts numeric literals (and numeric strings) to float64.
func ToFloat(raw any) (float64, error) {
	switch x := raw.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v (%T)", raw, raw)
	}
}

// ToInt converts integral literals to int. Floats must have no fractional part.
func ToInt(raw any) (int, error) {
	f, err := ToFloat(raw)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %v", raw)
	}
	return int(f), nil
}

// ToBool converts booleans and the strings "true"/"false".
func ToBool(raw any) (bool, error) {
	switch x := raw.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(strings.ToLower(strings.TrimSpace(x)))
	default:
		return false, fmt.Errorf("not a boolean: %v (%T)", raw, raw)
	}
}

// ToFloats converts a scalar or list literal to []float64.
func ToFloats(raw any) ([]float64, error) {
	switch x := raw.(type) {
	case []float64:
		return append([]float64(nil), x...), nil
	case []int:
		out := make([]float64, len(x))
		for i, v := range x {
			out[i] = float64(v)
		}
		return out, nil
	case []any:
		out := make([]float64, len(x))
		for i, v := range x {
			f, err := ToFloat(v)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = f
		}
		return out, nil
	default:
		f, err := ToFloat(raw)
		if err != nil {
			return nil, err
		}
		return []float64{f}, nil
	}
}

// ToInts converts a scalar or list literal to []int.
func ToInts(raw any) ([]int, error) {
	fs, err := ToFloats(raw)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(fs))
	for i, f := range fs {
		if f != float64(int(f)) {
			return nil, fmt.Errorf("element %d not an integer: %v", i, f)
		}
		out[i] = int(f)
	}
	return out, nil
}

// Meta is an insertion-ordered metadata mapping of tagged values.
type Meta struct {
	keys   []string
	values map[string]Value
}

// NewMeta creates an empty Meta.
func NewMeta() *Meta {
	return &Meta{values: make(map[string]Value)}
}

// Set stores raw under key, parsing reference syntax.
func (m *Meta) Set(key string, raw any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = ParseValue(raw)
}

// SetDefault stores raw only if key is absent.
func (m *Meta) SetDefault(key string, raw any) {
	if _, ok := m.values[key]; !ok {
		m.Set(key, raw)
	}
}

// Get returns the tagged value stored under key.
func (m *Meta) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is set.
func (m *Meta) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Keys returns keys in insertion order.
func (m *Meta) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Resolve returns the resolved value under key.
func (m *Meta) Resolve(cfg Config, key string) (any, error) {
	v, ok := m.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: meta key %q", ErrMissingParameter, key)
	}
	raw, err := v.Resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("meta key %q: %w", key, err)
	}
	return raw, nil
}

// Float resolves key as a float64.
func (m *Meta) Float(cfg Config, key string) (float64, error) {
	raw, err := m.Resolve(cfg, key)
	if err != nil {
		return 0, err
	}
	f, err := ToFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("meta key %q: %w", key, err)
	}
	return f, nil
}

// FloatOr resolves key as a float64, returning def when the key is absent.
func (m *Meta) FloatOr(cfg Config, key string, def float64) (float64, error) {
	if !m.Has(key) {
		return def, nil
	}
	return m.Float(cfg, key)
}

// Int resolves key as an int.
func (m *Meta) Int(cfg Config, key string) (int, error) {
	raw, err := m.Resolve(cfg, key)
	if err != nil {
		return 0, err
	}
	n, err := ToInt(raw)
	if err != nil {
		return 0, fmt.Errorf("meta key %q: %w", key, err)
	}
	return n, nil
}

// Text resolves key as a string.
func (m *Meta) Text(cfg Config, key string) (string, error) {
	raw, err := m.Resolve(cfg, key)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(raw), nil
}

// Bool resolves key as a bool.
func (m *Meta) Bool(cfg Config, key string) (bool, error) {
	raw, err := m.Resolve(cfg, key)
	if err != nil {
		return false, err
	}
	b, err := ToBool(raw)
	if err != nil {
		return false, fmt.Errorf("meta key %q: %w", key, err)
	}
	return b, nil
}

// Floats resolves key as a []float64.
func (m *Meta) Floats(cfg Config, key string) ([]float64, error) {
	raw, err := m.Resolve(cfg, key)
	if err != nil {
		return nil, err
	}
	fs, err := ToFloats(raw)
	if err != nil {
		return nil, fmt.Errorf("meta key %q: %w", key, err)
	}
	return fs, nil
}
