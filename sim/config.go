package sim

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config is the configuration context effects resolve "!SECTION.key" references against.
// It is passed explicitly to every effect constructor and transform.
type Config interface {
	// Lookup returns the raw value stored under a "!SECTION.key[.sub]" key.
	Lookup(key string) (any, bool)
	// Set overwrites an existing key. Unknown keys are warned about and ignored;
	// the return value reports whether the write happened.
	Set(key string, value any) bool
	// Define writes a key, creating it if necessary.
	Define(key string, value any)
	// Generation increments on every successful write.
	Generation() uint64
}

// Properties is the sectioned key-value store implementing Config.
// Sections correspond to subsystem aliases (SIM, OBS, ATMO, TEL, RO, INST, DET).
type Properties struct {
	mu         sync.RWMutex
	sections   map[string]map[string]any
	generation uint64
}

// NewProperties creates an empty store.
func NewProperties() *Properties {
	return &Properties{sections: make(map[string]map[string]any)}
}

// splitKey turns "!SEC.a.b" into ("SEC", ["a", "b"]).
func splitKey(key string) (string, []string, error) {
	k := strings.TrimPrefix(key, "!")
	parts := strings.Split(k, ".")
	if len(parts) < 2 || parts[0] == "" {
		return "", nil, fmt.Errorf("malformed configuration key %q", key)
	}
	for _, p := range parts[1:] {
		if p == "" {
			return "", nil, fmt.Errorf("malformed configuration key %q", key)
		}
	}
	return parts[0], parts[1:], nil
}

func (p *Properties) Lookup(key string) (any, bool) {
	section, path, err := splitKey(key)
	if err != nil {
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	sec, ok := p.sections[section]
	if !ok {
		return nil, false
	}
	var cur any = sec
	for _, part := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (p *Properties) Set(key string, value any) bool {
	if _, ok := p.Lookup(key); !ok {
		logrus.Warnf("%s is not a known configuration key; ignoring", key)
		return false
	}
	p.Define(key, value)
	return true
}

func (p *Properties) Define(key string, value any) {
	section, path, err := splitKey(key)
	if err != nil {
		logrus.Warnf("%v; ignoring", err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.sections[section]
	if !ok {
		m = make(map[string]any)
		p.sections[section] = m
	}
	for _, part := range path[:len(path)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
	p.generation++
}

func (p *Properties) Generation() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.generation
}

// Merge defines every entry of props under section, descending into nested maps.
func (p *Properties) Merge(section string, props map[string]any) {
	for _, k := range sortedKeys(props) {
		key := "!" + section + "." + k
		if sub, ok := props[k].(map[string]any); ok {
			if _, exists := p.Lookup(key); exists {
				p.Merge(section+"."+k, sub)
				continue
			}
			p.Define(key, copyMap(sub))
			continue
		}
		p.Define(key, props[k])
	}
}

// Update applies user overrides. Keys may be "!SEC.key" or a section name mapped to a
// nested map. Unknown keys are warned about and ignored.
func (p *Properties) Update(overrides map[string]any) {
	for _, k := range sortedKeys(overrides) {
		v := overrides[k]
		if strings.HasPrefix(k, "!") {
			p.Set(k, v)
			continue
		}
		sub, ok := v.(map[string]any)
		if !ok {
			logrus.Warnf("override %q is neither a !SECTION.key nor a section mapping; ignoring", k)
			continue
		}
		p.updateNested("!"+k, sub)
	}
}

func (p *Properties) updateNested(prefix string, m map[string]any) {
	for _, k := range sortedKeys(m) {
		key := prefix + "." + k
		if sub, ok := m[k].(map[string]any); ok {
			if existing, found := p.Lookup(key); found {
				if _, isMap := existing.(map[string]any); isMap {
					p.updateNested(key, sub)
					continue
				}
			}
		}
		p.Set(key, m[k])
	}
}

// Sections returns the section names in sorted order.
func (p *Properties) Sections() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.sections))
	for name := range p.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy with generation reset to zero.
func (p *Properties) Clone() *Properties {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := NewProperties()
	for name, m := range p.sections {
		out.sections[name] = copyMap(m)
	}
	return out
}

// Replace swaps in a deep copy of other's sections. It counts as one write, so
// Generation keeps increasing.
func (p *Properties) Replace(other *Properties) {
	other.mu.RLock()
	sections := make(map[string]map[string]any, len(other.sections))
	for name, m := range other.sections {
		sections[name] = copyMap(m)
	}
	other.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sections = sections
	p.generation++
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = copyMap(sub)
			continue
		}
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LookupFloat resolves key (following references) as a float64.
func LookupFloat(cfg Config, key string) (float64, error) {
	raw, err := Ref(key).Resolve(cfg)
	if err != nil {
		return 0, err
	}
	f, err := ToFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// LookupFloatOr is LookupFloat with a default for absent keys.
func LookupFloatOr(cfg Config, key string, def float64) (float64, error) {
	if _, ok := cfg.Lookup(key); !ok {
		return def, nil
	}
	return LookupFloat(cfg, key)
}

// LookupIntOr resolves key as an int, returning def for absent keys.
func LookupIntOr(cfg Config, key string, def int) (int, error) {
	if _, ok := cfg.Lookup(key); !ok {
		return def, nil
	}
	raw, err := Ref(key).Resolve(cfg)
	if err != nil {
		return 0, err
	}
	n, err := ToInt(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
