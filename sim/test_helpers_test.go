package sim

import (
	"math"
	"testing"
)

// Fake effects, one per stage interface. They are registered under "test.*" class
// names so documents in this package's tests can build them through MakeEffect.

type fakeCurve struct {
	EffectBase
	transmission float64
	outer        float64
	emission     float64
}

func (f *fakeCurve) Surface(cfg Config) (Surface, error) {
	s := Surface{
		Name:       f.name,
		Outer:      f.outer,
		Wavelength: []float64{0.3, 3.0},
		Throughput: []float64{f.transmission, f.transmission},
	}
	if f.emission != 0 {
		s.Emission = []float64{f.emission, f.emission}
	}
	return s, nil
}

type fakeList struct {
	EffectBase
	surfaces []Surface
}

func (f *fakeList) SurfaceTable(cfg Config) (*SurfaceTable, error) {
	return NewSurfaceTable(f.name, f.surfaces), nil
}

// fakeDetectorList describes one 10x10 pixel plane at 1 arcsec per 1 mm pixel,
// centred on the axis, read out by a single chip of the same size.
type fakeDetectorList struct {
	EffectBase
	planeID int
	xCen    float64
}

func (f *fakeDetectorList) ApplyToVolumes(cfg Config, vols []Volume) ([]Volume, error) {
	return vols, nil
}

func (f *fakeDetectorList) ImagePlaneHeader(cfg Config) (ImagePlaneHeader, error) {
	return HeaderFromBounds(f.planeID, f.xCen-5, f.xCen+5, -5, 5, 1, 1), nil
}

func (f *fakeDetectorList) DetectorHeaders(cfg Config) ([]DetectorHeader, error) {
	return []DetectorHeader{{
		ID: f.planeID, XCen: f.xCen, XHW: 5, YHW: 5, Gain: 1, PixelSize: 1, ImagePlaneID: f.planeID,
	}}, nil
}

type fakeSourceEffect struct {
	EffectBase
	factor float64
}

func (f *fakeSourceEffect) ApplyToSource(cfg Config, src *Source) (*Source, error) {
	src.ScaleSpectra(func(float64) float64 { return f.factor })
	return src, nil
}

type fakeFOVEffect struct {
	EffectBase
	factor float64
}

func (f *fakeFOVEffect) ApplyToFOV(cfg Config, fov *FieldOfView) (*FieldOfView, error) {
	fov.Image.Scale(f.factor, fov.Image)
	return fov, nil
}

type fakeImagePlaneEffect struct {
	EffectBase
	offset float64
}

func (f *fakeImagePlaneEffect) ApplyToImagePlane(cfg Config, ip *ImagePlane) (*ImagePlane, error) {
	ip.AddConstant(f.offset)
	return ip, nil
}

// fakeDetectorEffect adds offset plus one uniform draw per pixel when noisy.
type fakeDetectorEffect struct {
	EffectBase
	offset float64
	noisy  bool
}

func (f *fakeDetectorEffect) ApplyToDetector(cfg Config, det *Detector) (*Detector, error) {
	det.Image.Apply(func(_, _ int, v float64) float64 {
		if f.noisy {
			v += det.RNG.Float64()
		}
		return v + f.offset
	}, det.Image)
	det.Cards.Set("FAKEOFF", f.offset, "")
	return det, nil
}

type fakeTracer struct {
	EffectBase
}

func (f *fakeTracer) ApplyToVolumes(cfg Config, vols []Volume) ([]Volume, error) { return vols, nil }
func (f *fakeTracer) TraceCount(cfg Config) (int, error)                         { return 1, nil }

type fakeAperture struct {
	EffectBase
}

func (f *fakeAperture) ApplyToVolumes(cfg Config, vols []Volume) ([]Volume, error) { return vols, nil }
func (f *fakeAperture) Aperture(cfg Config) (SkyBox, error) {
	return SkyBox{XMin: -1, XMax: 1, YMin: -1, YMax: 1}, nil
}

func floatParam(params map[string]any, key string, def float64) float64 {
	raw, ok := params[key]
	if !ok {
		return def
	}
	f, err := ToFloat(raw)
	if err != nil {
		return def
	}
	return f
}

func init() {
	RegisterEffect("test.Curve", func(params map[string]any, cfg Config) (Effect, error) {
		b, err := NewEffectBase(params, 100)
		if err != nil {
			return nil, err
		}
		return &fakeCurve{EffectBase: b, transmission: floatParam(params, "transmission", 1), outer: floatParam(params, "outer", 0)}, nil
	})
	RegisterEffect("test.DetectorList", func(params map[string]any, cfg Config) (Effect, error) {
		b, err := NewEffectBase(params, 90, 390, 490)
		if err != nil {
			return nil, err
		}
		return &fakeDetectorList{EffectBase: b, xCen: floatParam(params, "x_cen", 0)}, nil
	})
	RegisterEffect("test.SourceScale", func(params map[string]any, cfg Config) (Effect, error) {
		b, err := NewEffectBase(params, 500)
		if err != nil {
			return nil, err
		}
		return &fakeSourceEffect{EffectBase: b, factor: floatParam(params, "factor", 1)}, nil
	})
	RegisterEffect("test.FOVScale", func(params map[string]any, cfg Config) (Effect, error) {
		b, err := NewEffectBase(params, 600)
		if err != nil {
			return nil, err
		}
		return &fakeFOVEffect{EffectBase: b, factor: floatParam(params, "factor", 1)}, nil
	})
	RegisterEffect("test.ImagePlaneOffset", func(params map[string]any, cfg Config) (Effect, error) {
		b, err := NewEffectBase(params, 700)
		if err != nil {
			return nil, err
		}
		return &fakeImagePlaneEffect{EffectBase: b, offset: floatParam(params, "offset", 0)}, nil
	})
	RegisterEffect("test.DetectorOffset", func(params map[string]any, cfg Config) (Effect, error) {
		b, err := NewEffectBase(params, 800)
		if err != nil {
			return nil, err
		}
		noisy := false
		if raw, ok := params["noisy"]; ok {
			noisy, _ = ToBool(raw)
		}
		return &fakeDetectorEffect{EffectBase: b, offset: floatParam(params, "offset", 0), noisy: noisy}, nil
	})
	RegisterEffect("test.Tracer", func(params map[string]any, cfg Config) (Effect, error) {
		b, err := NewEffectBase(params, 70)
		if err != nil {
			return nil, err
		}
		return &fakeTracer{EffectBase: b}, nil
	})
	RegisterEffect("test.Aperture", func(params map[string]any, cfg Config) (Effect, error) {
		b, err := NewEffectBase(params, 80)
		if err != nil {
			return nil, err
		}
		return &fakeAperture{EffectBase: b}, nil
	})
}

// testCommands is a minimal Commands: a property store plus a fixed document list.
type testCommands struct {
	*Properties
	docs []Document
}

func (c *testCommands) Documents() ([]Document, error) { return c.docs, nil }

// unitAreaDiameter gives a 1 m2 collecting area.
var unitAreaDiameter = math.Sqrt(4 / math.Pi)

// newTestProperties returns the keys every optical train needs.
func newTestProperties() *Properties {
	p := NewProperties()
	p.Define(KeyPixelScale, 1.0)
	p.Define(KeyWaveMin, 0.5)
	p.Define(KeyWaveMax, 2.5)
	p.Define(KeyRandomSeed, 42)
	return p
}

// rec builds an effect record with a name and optional extra fields.
func rec(class, name string, kwargs map[string]any, meta ...any) EffectRecord {
	m := map[string]any{"name": name}
	for i := 0; i+1 < len(meta); i += 2 {
		m[meta[i].(string)] = meta[i+1]
	}
	return EffectRecord{Class: class, Kwargs: kwargs, Meta: m}
}

// minimalDocuments is a unity-throughput telescope with a 1 m2 aperture and one
// 10x10 pixel detector.
func minimalDocuments() []Document {
	return []Document{
		{Name: "telescope", Effects: []EffectRecord{
			rec("test.Curve", "mirror", map[string]any{"outer": unitAreaDiameter}),
		}},
		{Name: "detector", Effects: []EffectRecord{
			rec("test.DetectorList", "chips", nil),
		}},
	}
}

func newTestCommands(docs ...Document) *testCommands {
	return &testCommands{Properties: newTestProperties(), docs: docs}
}

// flatSource is one point source at (x, y) arcsec with a flat spectrum of flux
// ph s-1 m-2 um-1 over 0.5-2.5 um.
func flatSource(flux, x, y float64) *Source {
	return &Source{
		Spectra: []Spectrum{{Wavelength: []float64{0.5, 1.5, 2.5}, Flux: []float64{flux, flux, flux}}},
		Points:  []PointSource{{X: x, Y: y, Weight: 1}},
	}
}

func mustEffect(t *testing.T, rec EffectRecord, cfg Config) Effect {
	t.Helper()
	e, err := MakeEffect(rec, cfg, nil)
	if err != nil {
		t.Fatalf("MakeEffect(%s): %v", rec.Class, err)
	}
	return e
}
