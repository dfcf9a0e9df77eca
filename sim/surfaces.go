package sim

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
)

// Surface is one optical surface with its transmission and thermal emission curves.
// Throughput is dimensionless; Emission is in ph s-1 m-2 um-1 arcsec-2.
type Surface struct {
	Name        string
	Outer       float64 // outer diameter, m
	Inner       float64 // inner diameter, m
	Angle       float64 // deg
	Temperature float64 // deg C
	Action      string  // "transmission" or "reflection"
	Wavelength  []float64
	Throughput  []float64
	Emission    []float64
}

// Validate checks the curve lengths.
func (s Surface) Validate() error {
	if len(s.Wavelength) == 0 {
		return fmt.Errorf("surface %q has no wavelength grid", s.Name)
	}
	if len(s.Throughput) != len(s.Wavelength) {
		return fmt.Errorf("surface %q: %d throughput samples for %d wavelengths", s.Name, len(s.Throughput), len(s.Wavelength))
	}
	if s.Emission != nil && len(s.Emission) != len(s.Wavelength) {
		return fmt.Errorf("surface %q: %d emission samples for %d wavelengths", s.Name, len(s.Emission), len(s.Wavelength))
	}
	for i := 1; i < len(s.Wavelength); i++ {
		if s.Wavelength[i] <= s.Wavelength[i-1] {
			return fmt.Errorf("surface %q: wavelengths must be strictly increasing", s.Name)
		}
	}
	return nil
}

// ThroughputAt is zero outside the surface's wavelength grid.
func (s Surface) ThroughputAt(w float64) float64 {
	return interpolateZero(s.Wavelength, s.Throughput, w)
}

// EmissionAt is zero outside the grid or when the surface does not emit.
func (s Surface) EmissionAt(w float64) float64 {
	if s.Emission == nil {
		return 0
	}
	return interpolateZero(s.Wavelength, s.Emission, w)
}

// Area returns the collecting area in m2 described by the diameters.
func (s Surface) Area() float64 {
	return math.Pi / 4 * (s.Outer*s.Outer - s.Inner*s.Inner)
}

func (s Surface) clone() Surface {
	out := s
	out.Wavelength = append([]float64(nil), s.Wavelength...)
	out.Throughput = append([]float64(nil), s.Throughput...)
	if s.Emission != nil {
		out.Emission = append([]float64(nil), s.Emission...)
	}
	return out
}

// SurfaceTableName is the name of the table built when no surface list is configured.
const SurfaceTableName = "Radiometry Table"

// SurfaceTable is the combined radiometric description of every surface in the optical
// path, in light-path order. It is injected into several stages as a synthetic effect:
// transmission for sources, wavelength limits for FOV setup, and background emission for
// FOVs (spectrographs) or image planes (imagers).
//
// Surfaces are fitted on first evaluation; change them only through AddSurface and
// AddSurfaceList.
type SurfaceTable struct {
	EffectBase
	Surfaces []Surface

	mu     sync.Mutex
	fitted []surfaceCurves
}

type surfaceCurves struct {
	throughput curve
	emission   curve
}

// curves returns the fitted curves of every surface, refitting after an append.
func (t *SurfaceTable) curves() []surfaceCurves {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.fitted) != len(t.Surfaces) {
		t.fitted = make([]surfaceCurves, len(t.Surfaces))
		for i, s := range t.Surfaces {
			t.fitted[i] = surfaceCurves{
				throughput: fitCurve(s.Wavelength, s.Throughput),
				emission:   fitCurve(s.Wavelength, s.Emission),
			}
		}
	}
	return t.fitted
}

// NewSurfaceTable creates a table holding copies of surfaces.
func NewSurfaceTable(name string, surfaces []Surface) *SurfaceTable {
	t := &SurfaceTable{
		EffectBase: EffectBase{
			name:    name,
			class:   "SurfaceTable",
			include: Literal(true),
			meta:    NewMeta(),
		},
	}
	t.zOrders = []int{90, 590, 690, 790}
	t.stages = []Stage{StageFOVSetup, StageSource, StageFOV, StageImagePlane}
	t.meta.Set("name", name)
	for _, s := range surfaces {
		t.Surfaces = append(t.Surfaces, s.clone())
	}
	return t
}

// Clone returns a deep copy.
func (t *SurfaceTable) Clone() *SurfaceTable {
	return NewSurfaceTable(t.name, t.Surfaces)
}

// AddSurfaceList appends the surfaces of other.
func (t *SurfaceTable) AddSurfaceList(other *SurfaceTable) {
	for _, s := range other.Surfaces {
		t.Surfaces = append(t.Surfaces, s.clone())
	}
}

// AddSurface appends one surface under name.
func (t *SurfaceTable) AddSurface(s Surface, name string) {
	c := s.clone()
	if name != "" {
		c.Name = name
	}
	t.Surfaces = append(t.Surfaces, c)
}

// Names returns the surface names in order.
func (t *SurfaceTable) Names() []string {
	names := make([]string, len(t.Surfaces))
	for i, s := range t.Surfaces {
		names[i] = s.Name
	}
	return names
}

// Throughput is the product of every surface's throughput at w. An empty table is unity.
func (t *SurfaceTable) Throughput(w float64) float64 {
	total := 1.0
	for _, c := range t.curves() {
		total *= c.throughput.zero(w)
	}
	return total
}

// Emission is the summed emission at w, each surface attenuated by every surface after it.
func (t *SurfaceTable) Emission(w float64) float64 {
	curves := t.curves()
	total := 0.0
	for i, c := range curves {
		e := c.emission.zero(w)
		if e == 0 {
			continue
		}
		for _, down := range curves[i+1:] {
			e *= down.throughput.zero(w)
		}
		total += e
	}
	return total
}

// Area returns the collecting area of the first surface with a non-zero outer diameter.
func (t *SurfaceTable) Area() float64 {
	for _, s := range t.Surfaces {
		if s.Outer > 0 {
			return s.Area()
		}
	}
	return 0
}

// grid returns the sorted union of every surface's wavelength samples.
func (t *SurfaceTable) grid() []float64 {
	seen := make(map[float64]bool)
	var ws []float64
	for _, s := range t.Surfaces {
		for _, w := range s.Wavelength {
			if !seen[w] {
				seen[w] = true
				ws = append(ws, w)
			}
		}
	}
	sort.Float64s(ws)
	return ws
}

// WaveLimits returns the extent of non-zero combined throughput; ok is false for an
// empty table, which imposes no limit. The extent reaches out to the zero-throughput
// grid points either side, so the flux on a rising or falling edge is kept.
func (t *SurfaceTable) WaveLimits() (lo, hi float64, ok bool) {
	ws := t.grid()
	if len(ws) == 0 {
		return 0, 0, false
	}
	first, last := -1, -1
	for i, w := range ws {
		if t.Throughput(w) > 0 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, 0, true
	}
	return ws[max(first-1, 0)], ws[min(last+1, len(ws)-1)], true
}

// EmissionInRange integrates the emission over [wMin, wMax] (ph s-1 m-2 arcsec-2).
func (t *SurfaceTable) EmissionInRange(wMin, wMax float64) float64 {
	ws := t.grid()
	if len(ws) == 0 {
		return 0
	}
	es := make([]float64, len(ws))
	emits := false
	for i, w := range ws {
		es[i] = t.Emission(w)
		emits = emits || es[i] != 0
	}
	if !emits {
		return 0
	}
	xs, ys := clipCurve(ws, es, wMin, wMax)
	if len(xs) < 2 {
		return 0
	}
	return integrate.Trapezoidal(xs, ys)
}

// ApplyToSource multiplies every spectrum by the combined throughput.
func (t *SurfaceTable) ApplyToSource(cfg Config, src *Source) (*Source, error) {
	if len(t.Surfaces) == 0 {
		return src, nil
	}
	src.ScaleSpectra(t.Throughput)
	return src, nil
}

// ApplyToVolumes restricts every volume's wavelength range to the throughput limits.
func (t *SurfaceTable) ApplyToVolumes(cfg Config, vols []Volume) ([]Volume, error) {
	lo, hi, ok := t.WaveLimits()
	if !ok {
		return vols, nil
	}
	out := vols[:0:0]
	for _, v := range vols {
		v.WaveMin = math.Max(v.WaveMin, lo)
		v.WaveMax = math.Min(v.WaveMax, hi)
		if v.WaveMax > v.WaveMin {
			out = append(out, v)
		}
	}
	return out, nil
}

// ApplyToFOV adds the background emission in the FOV's wavelength range.
func (t *SurfaceTable) ApplyToFOV(cfg Config, fov *FieldOfView) (*FieldOfView, error) {
	perPixel, err := t.backgroundPerPixel(cfg, fov.Header.PixelScale, fov.WaveMin, fov.WaveMax)
	if err != nil {
		return nil, err
	}
	if perPixel != 0 {
		addConstant(fov.Image, perPixel)
	}
	return fov, nil
}

// ApplyToImagePlane adds the background emission over the observation's wavelength range.
func (t *SurfaceTable) ApplyToImagePlane(cfg Config, ip *ImagePlane) (*ImagePlane, error) {
	wMin, err := LookupFloat(cfg, KeyWaveMin)
	if err != nil {
		return nil, err
	}
	wMax, err := LookupFloat(cfg, KeyWaveMax)
	if err != nil {
		return nil, err
	}
	perPixel, err := t.backgroundPerPixel(cfg, ip.Header.PixelScale, wMin, wMax)
	if err != nil {
		return nil, err
	}
	if perPixel != 0 {
		ip.AddConstant(perPixel)
	}
	return ip, nil
}

func (t *SurfaceTable) backgroundPerPixel(cfg Config, pixelScale, wMin, wMax float64) (float64, error) {
	flux := t.EmissionInRange(wMin, wMax)
	if flux == 0 {
		return 0, nil
	}
	area, err := LookupFloat(cfg, KeyTelescopeArea)
	if err != nil {
		return 0, err
	}
	return flux * area * pixelScale * pixelScale, nil
}

func addConstant(m *mat.Dense, v float64) {
	m.Apply(func(_, _ int, x float64) float64 { return x + v }, m)
}

// CombineSurfaceEffects merges surface-like effects into one table. The first surface
// list is the base and later lists are appended in order; single-surface curves are
// appended after all lists. With no surface list an empty table is the base.
func CombineSurfaceEffects(effects []Effect, cfg Config) (*SurfaceTable, error) {
	var lists []SurfaceListEffect
	var curves []SurfaceCurveEffect
	for _, e := range effects {
		if l, ok := e.(SurfaceListEffect); ok {
			lists = append(lists, l)
			continue
		}
		if c, ok := e.(SurfaceCurveEffect); ok {
			curves = append(curves, c)
		}
	}

	var combined *SurfaceTable
	if len(lists) == 0 {
		combined = NewSurfaceTable(SurfaceTableName, nil)
	}
	for i, l := range lists {
		tbl, err := l.SurfaceTable(cfg)
		if err != nil {
			return nil, fmt.Errorf("surface list %q: %w", l.Base().Name(), err)
		}
		if i == 0 {
			combined = NewSurfaceTable(SurfaceTableName, tbl.Surfaces)
			continue
		}
		combined.AddSurfaceList(tbl)
	}
	for _, c := range curves {
		s, err := c.Surface(cfg)
		if err != nil {
			return nil, fmt.Errorf("surface curve %q: %w", c.Base().Name(), err)
		}
		combined.AddSurface(s, c.Base().Name())
	}
	return combined, nil
}
