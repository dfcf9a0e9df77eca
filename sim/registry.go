package sim

import (
	"fmt"
	"sort"
	"sync"
)

// EffectFactory constructs an effect from its constructor parameters.
// params holds the record's kwargs merged with its metadata fields and caller overrides.
type EffectFactory func(params map[string]any, cfg Config) (Effect, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]EffectFactory)
)

// RegisterEffect makes an effect class constructible from configuration.
// Sub-packages call it from init(). Registering a class twice panics.
func RegisterEffect(class string, factory EffectFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if class == "" || factory == nil {
		panic("RegisterEffect: empty class name or nil factory")
	}
	if _, dup := registry[class]; dup {
		panic(fmt.Sprintf("RegisterEffect: class %q registered twice", class))
	}
	registry[class] = factory
}

// RegisteredEffects returns the registered class names in sorted order.
func RegisteredEffects() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupFactory(class string) (EffectFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[class]
	return f, ok
}

// EffectRecord is one entry of a configuration document's effects list.
// Fields other than class and kwargs (name, include, z_order, ...) land in Meta.
type EffectRecord struct {
	Class  string         `yaml:"class"`
	Kwargs map[string]any `yaml:"kwargs,omitempty"`
	Meta   map[string]any `yaml:",inline"`
}

// Name returns the record's name field, if any.
func (r EffectRecord) Name() string {
	if n, ok := r.Meta["name"]; ok {
		return fmt.Sprint(n)
	}
	return ""
}

// MakeEffect constructs the effect a record describes. The factory receives kwargs,
// the record's metadata fields and overrides (later sources win); the metadata fields
// are then applied again as post-construction updates so they override factory defaults.
func MakeEffect(rec EffectRecord, cfg Config, overrides map[string]any) (Effect, error) {
	factory, ok := lookupFactory(rec.Class)
	if !ok {
		return nil, fmt.Errorf("%w: %q (effect %q)", ErrUnknownEffectClass, rec.Class, rec.Name())
	}
	params := make(map[string]any, len(rec.Kwargs)+len(rec.Meta)+len(overrides))
	for k, v := range rec.Kwargs {
		params[k] = v
	}
	for k, v := range rec.Meta {
		params[k] = v
	}
	for k, v := range overrides {
		params[k] = v
	}
	eff, err := factory(params, cfg)
	if err != nil {
		return nil, fmt.Errorf("constructing %s %q: %w", rec.Class, rec.Name(), err)
	}
	b := eff.Base()
	b.class = rec.Class
	if b.name == "" {
		b.name = rec.Class
	}
	if len(rec.Meta) > 0 {
		if err := b.Update(rec.Meta); err != nil {
			return nil, err
		}
	}
	if err := validateStages(eff); err != nil {
		return nil, err
	}
	return eff, nil
}
