package effects

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opticsim/opticsim/sim"
	"github.com/opticsim/opticsim/sim/table"
)

// TERCurve is one surface described by a transmission (and optional emission) curve.
//
//	name: entrance_window
//	class: TERCurve
//	kwargs:
//	  filename: window.dat     # or inline wavelength/transmission/emission
//	  temperature: "!ATMO.temperature"
type TERCurve struct {
	sim.EffectBase
}

// NewTERCurve constructs a TERCurve.
func NewTERCurve(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 100)
	if err != nil {
		return nil, err
	}
	return &TERCurve{EffectBase: b}, nil
}

// Surface implements sim.SurfaceCurveEffect.
func (e *TERCurve) Surface(cfg sim.Config) (sim.Surface, error) {
	c, err := curveFromMeta(e.Meta(), cfg)
	if err != nil {
		return sim.Surface{}, err
	}
	return surfaceGeometry(e.Name(), c, e.Meta(), cfg)
}

// AtmosphericTERCurve is a TERCurve measured at "curve_airmass" and rescaled to the
// observing "airmass": transmission t becomes t^(airmass/curve_airmass).
type AtmosphericTERCurve struct {
	TERCurve
}

// NewAtmosphericTERCurve constructs an AtmosphericTERCurve. airmass defaults to
// "!OBS.airmass".
func NewAtmosphericTERCurve(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 100)
	if err != nil {
		return nil, err
	}
	b.Meta().SetDefault("airmass", "!OBS.airmass")
	b.Meta().SetDefault("curve_airmass", 1.0)
	return &AtmosphericTERCurve{TERCurve{EffectBase: b}}, nil
}

// Surface implements sim.SurfaceCurveEffect.
func (e *AtmosphericTERCurve) Surface(cfg sim.Config) (sim.Surface, error) {
	s, err := e.TERCurve.Surface(cfg)
	if err != nil {
		return sim.Surface{}, err
	}
	airmass, err := e.Meta().Float(cfg, "airmass")
	if err != nil {
		return sim.Surface{}, err
	}
	ref, err := e.Meta().Float(cfg, "curve_airmass")
	if err != nil {
		return sim.Surface{}, err
	}
	if ref <= 0 {
		return sim.Surface{}, fmt.Errorf("%s: curve_airmass must be positive", e.Name())
	}
	if airmass == ref {
		return s, nil
	}
	k := airmass / ref
	for i, t := range s.Throughput {
		s.Throughput[i] = math.Pow(t, k)
	}
	return s, nil
}

// FilterCurve selects one filter transmission curve by name. Curves come either from
// "filename_format" (with "{}" replaced by the filter name) or from an inline
// "filters" mapping of name to {wavelength, transmission}.
type FilterCurve struct {
	sim.EffectBase
}

// NewFilterCurve constructs a FilterCurve. filter_name defaults to "!OBS.filter_name".
func NewFilterCurve(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 100)
	if err != nil {
		return nil, err
	}
	b.Meta().SetDefault("filter_name", sim.KeyFilterName)
	if !b.Meta().Has("filename_format") && !b.Meta().Has("filters") {
		return nil, fmt.Errorf("%w: FilterCurve needs filename_format or filters", sim.ErrMissingParameter)
	}
	return &FilterCurve{EffectBase: b}, nil
}

// Surface implements sim.SurfaceCurveEffect.
func (e *FilterCurve) Surface(cfg sim.Config) (sim.Surface, error) {
	name, err := e.Meta().Text(cfg, "filter_name")
	if err != nil {
		return sim.Surface{}, err
	}
	var c curve
	if e.Meta().Has("filename_format") {
		format, err := e.Meta().Text(cfg, "filename_format")
		if err != nil {
			return sim.Surface{}, err
		}
		tbl, err := table.ReadFile(strings.ReplaceAll(format, "{}", name))
		if err != nil {
			return sim.Surface{}, fmt.Errorf("filter %q: %w", name, err)
		}
		if c, err = curveFromTable(tbl); err != nil {
			return sim.Surface{}, fmt.Errorf("filter %q: %w", name, err)
		}
	} else {
		raw, err := e.Meta().Resolve(cfg, "filters")
		if err != nil {
			return sim.Surface{}, err
		}
		filters, ok := raw.(map[string]any)
		if !ok {
			return sim.Surface{}, fmt.Errorf("%s: filters must be a mapping, got %T", e.Name(), raw)
		}
		entry, ok := filters[name].(map[string]any)
		if !ok {
			return sim.Surface{}, fmt.Errorf("%w: filter %q not among %v", sim.ErrNotFound, name, keysOf(filters))
		}
		inline := sim.NewMeta()
		for k, v := range entry {
			inline.Set(k, v)
		}
		if c, err = curveFromMeta(inline, cfg); err != nil {
			return sim.Surface{}, fmt.Errorf("filter %q: %w", name, err)
		}
	}
	return surfaceGeometry(e.Name(), c, e.Meta(), cfg)
}

// SurfaceList is a table of surfaces, one row each, in light-path order.
//
// From a file: columns name, outer, inner, angle, temperature, action, filename, where
// filename is a TER curve table relative to the list file. Inline: "surfaces" is a list
// of mappings with the same keys, plus wavelength/transmission/emission in place of
// filename.
type SurfaceList struct {
	sim.EffectBase
}

// NewSurfaceList constructs a SurfaceList.
func NewSurfaceList(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 100)
	if err != nil {
		return nil, err
	}
	if !b.Meta().Has("filename") && !b.Meta().Has("surfaces") {
		return nil, fmt.Errorf("%w: SurfaceList needs filename or surfaces", sim.ErrMissingParameter)
	}
	return &SurfaceList{EffectBase: b}, nil
}

// SurfaceTable implements sim.SurfaceListEffect.
func (e *SurfaceList) SurfaceTable(cfg sim.Config) (*sim.SurfaceTable, error) {
	var rows []*sim.Meta
	dir := ""
	if e.Meta().Has("filename") {
		path, err := e.Meta().Text(cfg, "filename")
		if err != nil {
			return nil, err
		}
		tbl, err := table.ReadFile(path)
		if err != nil {
			return nil, err
		}
		dir = filepath.Dir(path)
		for _, row := range tbl.Rows {
			m := sim.NewMeta()
			for j, col := range tbl.Columns {
				m.Set(col, row[j])
			}
			rows = append(rows, m)
		}
	} else {
		raw, err := e.Meta().Resolve(cfg, "surfaces")
		if err != nil {
			return nil, err
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: surfaces must be a list, got %T", e.Name(), raw)
		}
		for i, item := range list {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s: surface %d is not a mapping", e.Name(), i)
			}
			m := sim.NewMeta()
			for _, k := range keysOf(entry) {
				m.Set(k, entry[k])
			}
			rows = append(rows, m)
		}
	}

	surfaces := make([]sim.Surface, 0, len(rows))
	for i, m := range rows {
		name := fmt.Sprintf("%s_%d", e.Name(), i)
		if m.Has("name") {
			var err error
			if name, err = m.Text(cfg, "name"); err != nil {
				return nil, fmt.Errorf("%s: surface %d: %w", e.Name(), i, err)
			}
		}
		if m.Has("filename") {
			rel, err := m.Text(cfg, "filename")
			if err != nil {
				return nil, err
			}
			m.Set("filename", resolvePath(dir, rel))
		}
		// "None" and "-" mark absent temperatures in surface list files
		if t, ok := m.Get("temperature"); ok {
			if s := t.String(); s == "None" || s == "-" || s == "" {
				m = withoutKey(m, "temperature")
			}
		}
		c, err := curveFromMeta(m, cfg)
		if err != nil {
			return nil, fmt.Errorf("surface %q: %w", name, err)
		}
		s, err := surfaceGeometry(name, c, m, cfg)
		if err != nil {
			return nil, err
		}
		surfaces = append(surfaces, s)
	}
	return sim.NewSurfaceTable(e.Name(), surfaces), nil
}

func withoutKey(m *sim.Meta, key string) *sim.Meta {
	out := sim.NewMeta()
	for _, k := range m.Keys() {
		if k == key {
			continue
		}
		v, _ := m.Get(k)
		out.Set(k, v)
	}
	return out
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
