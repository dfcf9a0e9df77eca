// Package commands is the configuration collaborator of an optical train: it reads the
// YAML documents describing each subsystem, keeps the sectioned properties effects
// resolve "!SECTION.key" references against, and tracks which instrument modes are
// active.
package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/opticsim/opticsim/sim"
)

// UserCommands holds the configuration documents and the properties store.
// It implements sim.Commands.
//
// The live store is always base properties, then the active modes' properties, then
// the caller's own writes in order. Changing "!OBS.modes" rebuilds it from those
// three layers, so a deselected mode leaves nothing behind.
type UserCommands struct {
	*sim.Properties
	base  *sim.Properties
	edits []edit
	docs  []sim.Document
	modes []sim.Document
}

// edit is one caller write: a single key (Define or Set) or an Update mapping.
type edit struct {
	key       string
	value     any
	strict    bool
	overrides map[string]any
}

func (e edit) apply(p *sim.Properties) {
	switch {
	case e.overrides != nil:
		p.Update(e.overrides)
	case e.strict:
		p.Set(e.key, e.value)
	default:
		p.Define(e.key, e.value)
	}
}

// record appends e, dropping earlier writes of the same key.
func (uc *UserCommands) record(e edit) {
	if e.key != "" {
		uc.edits = slices.DeleteFunc(uc.edits, func(o edit) bool { return o.key == e.key })
	}
	uc.edits = append(uc.edits, e)
}

var _ sim.Commands = (*UserCommands)(nil)

// DefaultProperties returns the SIM and OBS sections every configuration starts from.
// Only keys present here (or defined by documents) can be overridden later.
func DefaultProperties() map[string]map[string]any {
	return map[string]map[string]any{
		"SIM": {
			"spectral":  map[string]any{"wave_min": 0.3, "wave_max": 2.5},
			"computing": map[string]any{"chunk_size": 2048},
			"random":    map[string]any{"seed": nil},
		},
		"OBS": {
			"dit":         60.0,
			"ndit":        1,
			"airmass":     1.0,
			"filter_name": "",
			"modes":       []any{},
		},
	}
}

// New creates commands holding only the default properties.
func New() *UserCommands {
	uc := &UserCommands{Properties: sim.NewProperties(), base: sim.NewProperties()}
	defaults := DefaultProperties()
	for _, section := range []string{"SIM", "OBS"} {
		uc.base.Merge(section, defaults[section])
	}
	uc.Properties.Replace(uc.base)
	return uc
}

// Load reads every file in order. Relative file names inside a document are resolved
// against the directory of the file that names them.
func Load(paths ...string) (*UserCommands, error) {
	uc := New()
	for _, path := range paths {
		if err := uc.AddFile(path); err != nil {
			return nil, err
		}
	}
	return uc, nil
}

// AddFile reads one (possibly multi-document) YAML file.
func (uc *UserCommands) AddFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := uc.AddYAML(bytes.NewReader(data), filepath.Dir(path)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// AddYAML decodes every document in r with strict field checking. dir anchors relative
// file names; pass "" to leave them untouched.
func (uc *UserCommands) AddYAML(r io.Reader, dir string) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var docs []sim.Document
	for {
		var doc sim.Document
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if dir != "" {
			anchorPaths(&doc, dir)
		}
		docs = append(docs, doc)
	}
	return uc.AddDocuments(docs...)
}

// AddDocuments appends documents, merging their properties under their alias.
func (uc *UserCommands) AddDocuments(docs ...sim.Document) error {
	for _, doc := range docs {
		warnUnaliased(doc)
		mergeProperties(uc.base, doc)
		for _, mode := range doc.ModeYAMLs {
			warnUnaliased(mode)
		}
		uc.modes = append(uc.modes, doc.ModeYAMLs...)
		doc.ModeYAMLs = nil
		uc.docs = append(uc.docs, doc)
	}
	// documents may carry their own default modes
	return uc.rebuild()
}

func warnUnaliased(doc sim.Document) {
	if len(doc.Properties) > 0 && doc.Alias == "" {
		logrus.Warnf("document %q has properties but no alias; ignoring its properties", doc.ElementName())
	}
}

func mergeProperties(p *sim.Properties, doc sim.Document) {
	if len(doc.Properties) == 0 || doc.Alias == "" {
		return
	}
	p.Merge(doc.Alias, doc.Properties)
}

// anchorPaths rewrites relative "filename" and "filename_format" values of effect
// records to paths under dir.
func anchorPaths(doc *sim.Document, dir string) {
	for i := range doc.Effects {
		rec := &doc.Effects[i]
		for _, m := range []map[string]any{rec.Kwargs, rec.Meta} {
			for _, key := range []string{"filename", "filename_format"} {
				s, ok := m[key].(string)
				if !ok || s == "" || sim.IsRef(s) || filepath.IsAbs(s) {
					continue
				}
				m[key] = filepath.Join(dir, s)
			}
		}
	}
	for i := range doc.ModeYAMLs {
		anchorPaths(&doc.ModeYAMLs[i], dir)
	}
}

// AvailableModes returns the names of every mode document.
func (uc *UserCommands) AvailableModes() []string {
	names := make([]string, len(uc.modes))
	for i, m := range uc.modes {
		names[i] = m.ElementName()
	}
	return names
}

// ActiveModes returns the modes "!OBS.modes" currently selects.
func (uc *UserCommands) ActiveModes() ([]string, error) {
	return activeModes(uc.Properties)
}

func activeModes(cfg sim.Config) ([]string, error) {
	raw, err := sim.Ref(sim.KeyModes).Resolve(cfg)
	if err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, x := range v {
			out[i] = fmt.Sprint(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be a mode name or list, got %T", sim.KeyModes, raw)
	}
}

// SetModes selects the active instrument modes. Properties of modes no longer
// selected are withdrawn.
func (uc *UserCommands) SetModes(names ...string) error {
	for _, n := range names {
		if !slices.Contains(uc.AvailableModes(), n) {
			return fmt.Errorf("%w: mode %q (available: %v)", sim.ErrNotFound, n, uc.AvailableModes())
		}
	}
	modes := make([]any, len(names))
	for i, n := range names {
		modes[i] = n
	}
	uc.Define(sim.KeyModes, modes)
	return uc.rebuild()
}

// rebuild recomputes the live store from the base properties, the active modes and
// the recorded caller writes. On error the live store is left as it is.
func (uc *UserCommands) rebuild() error {
	active, err := uc.ActiveModes()
	if err != nil {
		return err
	}
	// a mode or a caller write may itself change the selection; settle it
	for range 3 {
		next, err := uc.layer(active)
		if err != nil {
			return err
		}
		got, err := activeModes(next)
		if err != nil {
			return err
		}
		if slices.Equal(got, active) {
			uc.Properties.Replace(next)
			return nil
		}
		active = got
	}
	return fmt.Errorf("mode selection %v does not settle", active)
}

// layer builds base, then the named modes, then the caller writes.
func (uc *UserCommands) layer(active []string) (*sim.Properties, error) {
	next := uc.base.Clone()
	for _, name := range active {
		mode, ok := uc.mode(name)
		if !ok {
			return nil, fmt.Errorf("%w: mode %q (available: %v)", sim.ErrNotFound, name, uc.AvailableModes())
		}
		mergeProperties(next, mode)
	}
	for _, e := range uc.edits {
		e.apply(next)
	}
	return next, nil
}

func (uc *UserCommands) mode(name string) (sim.Document, bool) {
	for _, m := range uc.modes {
		if m.ElementName() == name {
			return m, true
		}
	}
	return sim.Document{}, false
}

// SelectFilter sets "!OBS.filter_name".
func (uc *UserCommands) SelectFilter(name string) {
	uc.Define(sim.KeyFilterName, name)
}

// Define writes key and keeps the write across mode changes.
func (uc *UserCommands) Define(key string, value any) {
	uc.record(edit{key: key, value: value})
	uc.Properties.Define(key, value)
}

// Set overwrites an existing key and keeps the write across mode changes.
func (uc *UserCommands) Set(key string, value any) bool {
	if !uc.Properties.Set(key, value) {
		return false
	}
	uc.record(edit{key: key, value: value, strict: true})
	return true
}

// Update applies overrides. Unknown keys are warned about and ignored. A change of
// "!OBS.modes" rebuilds the store for the new selection.
func (uc *UserCommands) Update(overrides map[string]any) {
	if len(overrides) == 0 {
		return
	}
	before, _ := uc.ActiveModes()
	uc.record(edit{overrides: overrides})
	uc.Properties.Update(overrides)
	after, err := uc.ActiveModes()
	if err != nil {
		logrus.Warnf("%v; keeping modes %v", err, before)
		return
	}
	if !slices.Equal(before, after) {
		if err := uc.rebuild(); err != nil {
			logrus.Warnf("selecting modes %v: %v", after, err)
		}
	}
}

// Documents returns the base documents followed by the active mode documents.
func (uc *UserCommands) Documents() ([]sim.Document, error) {
	active, err := uc.ActiveModes()
	if err != nil {
		return nil, err
	}
	docs := slices.Clone(uc.docs)
	for _, name := range active {
		mode, ok := uc.mode(name)
		if !ok {
			return nil, fmt.Errorf("%w: mode %q", sim.ErrNotFound, name)
		}
		docs = append(docs, mode)
	}
	return docs, nil
}
