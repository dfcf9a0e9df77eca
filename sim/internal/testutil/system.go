package testutil

import (
	"fmt"
	"math"
	"strings"
)

// UnitAreaDiameter is the primary mirror diameter (m) giving a 1 m2 collecting area.
var UnitAreaDiameter = math.Sqrt(4 / math.Pi)

// System describes a minimal viable optical system: a unity-throughput telescope with
// a 1 m2 aperture, an instrument defining the pixel scale, and one square detector
// centred on the optical axis.
type System struct {
	PixelScale  float64 // arcsec per pixel
	PixelSize   float64 // mm per pixel
	Pixels      int     // detector width and height in pixels
	ChunkSize   int     // FOV side in pixels; 0 keeps the default
	WaveMin     float64 // um
	WaveMax     float64 // um
	ExtraTEL    string  // appended verbatim to the telescope effects list
	ExtraINST   string  // appended verbatim to the instrument effects list
	ExtraDET    string  // appended verbatim to the detector effects list
	DetectorDoc string  // replaces the whole detector document when set
}

// DefaultSystem is a 100x100 pixel imager at 0.2 arcsec per pixel.
func DefaultSystem() System {
	return System{
		PixelScale: 0.2,
		PixelSize:  0.01,
		Pixels:     100,
		WaveMin:    0.5,
		WaveMax:    2.5,
	}
}

// PlateScale returns arcsec per mm.
func (s System) PlateScale() float64 { return s.PixelScale / s.PixelSize }

// YAML renders the system as a multi-document configuration.
func (s System) YAML() string {
	var b strings.Builder
	fmt.Fprintf(&b, `object: simulation
name: simulation_settings
alias: SIM
properties:
  spectral:
    wave_min: %g
    wave_max: %g
`, s.WaveMin, s.WaveMax)
	if s.ChunkSize > 0 {
		fmt.Fprintf(&b, "  computing:\n    chunk_size: %d\n", s.ChunkSize)
	}
	fmt.Fprintf(&b, `  random:
    seed: 9001
---
object: telescope
name: basic_telescope
alias: TEL
properties:
  temperature: 0
effects:
- name: primary_mirror
  class: TERCurve
  kwargs:
    wavelength: [0.3, 3.0]
    transmission: [1.0, 1.0]
    outer: %.15g
%s---
object: instrument
name: basic_instrument
alias: INST
properties:
  pixel_scale: %g
effects:
%s`, UnitAreaDiameter, s.ExtraTEL, s.PixelScale, orEmptyList(s.ExtraINST))
	if s.DetectorDoc != "" {
		b.WriteString("---\n" + s.DetectorDoc)
		return b.String()
	}
	fmt.Fprintf(&b, `---
object: detector
name: basic_detector
alias: DET
properties:
  dark_current: 0.1
  readout_noise: 5
effects:
- name: detector_window
  class: DetectorWindow
  kwargs:
    pixel_size: %g
    x: 0
    y: 0
    width: %g
%s`, s.PixelSize, float64(s.Pixels)*s.PixelSize, s.ExtraDET)
	return b.String()
}

func orEmptyList(effects string) string {
	if strings.TrimSpace(effects) == "" {
		return "[]\n"
	}
	return effects
}
