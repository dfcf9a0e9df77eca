package sim

import (
	"fmt"
	"reflect"
)

// OpticalElement is the named group of effects defined by one configuration document.
// Effects keep insertion order; names are unique within the element.
type OpticalElement struct {
	Name       string
	Alias      string
	Properties map[string]any
	effects    []Effect
}

// NewOpticalElement builds every effect the document lists. overrides are passed to
// every effect constructor.
func NewOpticalElement(doc Document, cfg Config, overrides map[string]any) (*OpticalElement, error) {
	oe := &OpticalElement{
		Name:       doc.ElementName(),
		Alias:      doc.Alias,
		Properties: doc.Properties,
	}
	for i, rec := range doc.Effects {
		eff, err := MakeEffect(rec, cfg, overrides)
		if err != nil {
			return nil, fmt.Errorf("optical element %q effect %d: %w", oe.Name, i, err)
		}
		if err := oe.AddEffect(eff); err != nil {
			return nil, err
		}
	}
	return oe, nil
}

// AddEffect appends e. Effects built outside the registry get their Go type name as class.
func (oe *OpticalElement) AddEffect(e Effect) error {
	b := e.Base()
	if b.meta == nil {
		b.meta = NewMeta()
	}
	if b.class == "" {
		b.class = typeName(e)
	}
	if b.name == "" {
		b.name = b.class
	}
	for _, existing := range oe.effects {
		if existing.Base().Name() == b.name {
			return fmt.Errorf("%w: %q already in optical element %q", ErrDuplicateEffect, b.name, oe.Name)
		}
	}
	if err := validateStages(e); err != nil {
		return err
	}
	oe.effects = append(oe.effects, e)
	return nil
}

func typeName(e Effect) string {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// Effects returns every effect in insertion order, included or not.
func (oe *OpticalElement) Effects() []Effect {
	return append([]Effect(nil), oe.effects...)
}

// EffectsIn returns the included effects placed in stage, in insertion order.
func (oe *OpticalElement) EffectsIn(stage Stage, cfg Config) []Effect {
	var out []Effect
	for _, e := range oe.effects {
		b := e.Base()
		if b.InStage(stage) && b.Included(cfg) {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the effects named name (zero or one).
func (oe *OpticalElement) Find(name string) []Effect {
	var out []Effect
	for _, e := range oe.effects {
		if e.Base().Name() == name {
			out = append(out, e)
		}
	}
	return out
}

// AllOf returns the effects matching pred, included or not.
func (oe *OpticalElement) AllOf(pred func(Effect) bool) []Effect {
	var out []Effect
	for _, e := range oe.effects {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}
