package effects

import (
	"fmt"

	"github.com/opticsim/opticsim/sim"
)

// ApertureMask restricts the observed sky to a rectangular window (a slit or field
// stop) given either by "x_min", "x_max", "y_min", "y_max" or by "width" and "height"
// centred on "x", "y". Units are arcsec relative to the optical axis.
type ApertureMask struct {
	sim.EffectBase
}

// NewApertureMask constructs an ApertureMask.
func NewApertureMask(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 80)
	if err != nil {
		return nil, err
	}
	m := b.Meta()
	if !(m.Has("width") || m.Has("x_min")) {
		return nil, fmt.Errorf("%w: ApertureMask needs width/height or x_min/x_max/y_min/y_max", sim.ErrMissingParameter)
	}
	return &ApertureMask{EffectBase: b}, nil
}

// Aperture implements sim.ApertureEffect.
func (e *ApertureMask) Aperture(cfg sim.Config) (sim.SkyBox, error) {
	m := e.Meta()
	if m.Has("x_min") {
		var box sim.SkyBox
		var err error
		for key, dst := range map[string]*float64{"x_min": &box.XMin, "x_max": &box.XMax, "y_min": &box.YMin, "y_max": &box.YMax} {
			if *dst, err = m.Float(cfg, key); err != nil {
				return sim.SkyBox{}, err
			}
		}
		return box, nil
	}
	w, err := m.Float(cfg, "width")
	if err != nil {
		return sim.SkyBox{}, err
	}
	h, err := m.FloatOr(cfg, "height", w)
	if err != nil {
		return sim.SkyBox{}, err
	}
	x, err := m.FloatOr(cfg, "x", 0)
	if err != nil {
		return sim.SkyBox{}, err
	}
	y, err := m.FloatOr(cfg, "y", 0)
	if err != nil {
		return sim.SkyBox{}, err
	}
	return sim.SkyBox{XMin: x - w/2, XMax: x + w/2, YMin: y - h/2, YMax: y + h/2}, nil
}

// ApplyToVolumes implements sim.FOVSetupEffect.
func (e *ApertureMask) ApplyToVolumes(cfg sim.Config, vols []sim.Volume) ([]sim.Volume, error) {
	box, err := e.Aperture(cfg)
	if err != nil {
		return nil, err
	}
	if box.XMin >= box.XMax || box.YMin >= box.YMax {
		return nil, fmt.Errorf("%s: empty aperture %+v", e.Name(), box)
	}
	out := vols[:0:0]
	for _, v := range vols {
		if clipped, ok := v.ClipToSky(box); ok {
			out = append(out, clipped)
		}
	}
	return out, nil
}

// SpectralTraceList marks a dispersing system and splits every volume's wavelength
// range into "n_chunks" equal spectral chunks, one FOV each. "n_traces" is the number of
// traces the disperser produces.
type SpectralTraceList struct {
	sim.EffectBase
}

// NewSpectralTraceList constructs a SpectralTraceList.
func NewSpectralTraceList(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 70)
	if err != nil {
		return nil, err
	}
	b.Meta().SetDefault("n_chunks", 1)
	b.Meta().SetDefault("n_traces", 1)
	return &SpectralTraceList{EffectBase: b}, nil
}

// TraceCount implements sim.SpectralTracer.
func (e *SpectralTraceList) TraceCount(cfg sim.Config) (int, error) {
	return e.Meta().Int(cfg, "n_traces")
}

// ApplyToVolumes implements sim.FOVSetupEffect.
func (e *SpectralTraceList) ApplyToVolumes(cfg sim.Config, vols []sim.Volume) ([]sim.Volume, error) {
	n, err := e.Meta().Int(cfg, "n_chunks")
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%s: n_chunks must be at least 1, got %d", e.Name(), n)
	}
	var out []sim.Volume
	for _, v := range vols {
		out = append(out, v.SplitWave(n)...)
	}
	return out, nil
}
