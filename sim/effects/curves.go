package effects

import (
	"math"
	"path/filepath"

	"github.com/opticsim/opticsim/sim"
	"github.com/opticsim/opticsim/sim/table"
)

// curve is a sampled transmission (and optional emission) curve.
type curve struct {
	wavelength   []float64 // um
	transmission []float64
	emission     []float64 // ph s-1 m2-1 um-1 arcsec-2, nil if the surface does not emit
}

// curveFromTable reads the "wavelength", "transmission" and optional "emission" columns.
func curveFromTable(tbl *table.Table) (curve, error) {
	var c curve
	var err error
	if c.wavelength, err = tbl.Floats("wavelength"); err != nil {
		return curve{}, err
	}
	if c.transmission, err = tbl.Floats("transmission"); err != nil {
		return curve{}, err
	}
	if tbl.Has("emission") {
		if c.emission, err = tbl.Floats("emission"); err != nil {
			return curve{}, err
		}
	}
	return c, nil
}

// curveFromMeta loads the curve named by "filename", or from inline "wavelength",
// "transmission" and "emission" metadata.
func curveFromMeta(meta *sim.Meta, cfg sim.Config) (curve, error) {
	if meta.Has("filename") {
		path, err := meta.Text(cfg, "filename")
		if err != nil {
			return curve{}, err
		}
		tbl, err := table.ReadFile(path)
		if err != nil {
			return curve{}, err
		}
		return curveFromTable(tbl)
	}
	var c curve
	var err error
	if c.wavelength, err = meta.Floats(cfg, "wavelength"); err != nil {
		return curve{}, err
	}
	if c.transmission, err = meta.Floats(cfg, "transmission"); err != nil {
		return curve{}, err
	}
	if meta.Has("emission") {
		if c.emission, err = meta.Floats(cfg, "emission"); err != nil {
			return curve{}, err
		}
	}
	return c, nil
}

// surfaceGeometry fills the physical surface parameters from metadata. Emission is
// computed from "temperature" when the curve carries none.
func surfaceGeometry(name string, c curve, meta *sim.Meta, cfg sim.Config) (sim.Surface, error) {
	s := sim.Surface{
		Name:        name,
		Action:      "transmission",
		Temperature: math.NaN(),
		Wavelength:  c.wavelength,
		Throughput:  c.transmission,
		Emission:    c.emission,
	}
	var err error
	if s.Outer, err = meta.FloatOr(cfg, "outer", 0); err != nil {
		return sim.Surface{}, err
	}
	if s.Inner, err = meta.FloatOr(cfg, "inner", 0); err != nil {
		return sim.Surface{}, err
	}
	if s.Angle, err = meta.FloatOr(cfg, "angle", 0); err != nil {
		return sim.Surface{}, err
	}
	if meta.Has("action") {
		if s.Action, err = meta.Text(cfg, "action"); err != nil {
			return sim.Surface{}, err
		}
	}
	if meta.Has("temperature") {
		if s.Temperature, err = meta.Float(cfg, "temperature"); err != nil {
			return sim.Surface{}, err
		}
	}
	if err := s.Validate(); err != nil {
		return sim.Surface{}, err
	}
	if !math.IsNaN(s.Temperature) && s.Emission == nil {
		s.Emission = greyBodyEmission(s.Wavelength, s.Throughput, s.Temperature)
	}
	return s, nil
}

// resolvePath interprets path relative to dir unless it is absolute.
func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
