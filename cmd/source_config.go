package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	sim "github.com/opticsim/opticsim/sim"
)

// SourceConfig is the YAML description of a sky scene for `opticsim run --source`.
//
//	spectra:
//	  flat: {flux: 1000, wave_min: 0.3, wave_max: 2.5}
//	points:
//	  - {x: 0, y: 0, spectrum: 0, weight: 1}
//
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type SourceConfig struct {
	Spectra []SpectrumConfig `yaml:"spectra"`
	Points  []PointConfig    `yaml:"points"`
	Images  []ImageConfig    `yaml:"images"`
}

// SpectrumConfig is either a sampled spectrum (wavelength + flux) or a flat one.
type SpectrumConfig struct {
	Wavelength []float64   `yaml:"wavelength"`
	Flux       []float64   `yaml:"flux"`
	Flat       *FlatConfig `yaml:"flat"`
}

// FlatConfig is a constant photon flux density (ph s-1 m-2 um-1) over a wavelength range.
type FlatConfig struct {
	Flux    float64 `yaml:"flux"`
	WaveMin float64 `yaml:"wave_min"`
	WaveMax float64 `yaml:"wave_max"`
	Samples int     `yaml:"samples"`
}

type PointConfig struct {
	X        float64  `yaml:"x"`
	Y        float64  `yaml:"y"`
	Spectrum int      `yaml:"spectrum"`
	Weight   *float64 `yaml:"weight"` // nil means 1
}

// ImageConfig is a uniform extended field of width x height pixels.
type ImageConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Value      float64 `yaml:"value"`
	PixelScale float64 `yaml:"pixel_scale"`
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	Spectrum   int     `yaml:"spectrum"`
}

// LoadSourceConfig parses a source YAML file with strict field checking.
func LoadSourceConfig(path string) (*SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source file: %w", err)
	}
	var cfg SourceConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing source file %s: %w", path, err)
	}
	return &cfg, nil
}

// Build converts the configuration into a validated sim.Source.
func (c *SourceConfig) Build() (*sim.Source, error) {
	src := &sim.Source{}
	for i, sc := range c.Spectra {
		sp, err := sc.build()
		if err != nil {
			return nil, fmt.Errorf("spectrum %d: %w", i, err)
		}
		src.Spectra = append(src.Spectra, sp)
	}
	for _, p := range c.Points {
		w := 1.0
		if p.Weight != nil {
			w = *p.Weight
		}
		src.Points = append(src.Points, sim.PointSource{X: p.X, Y: p.Y, Spectrum: p.Spectrum, Weight: w})
	}
	for i, im := range c.Images {
		if im.Width <= 0 || im.Height <= 0 {
			return nil, fmt.Errorf("image %d: width and height must be positive", i)
		}
		data := mat.NewDense(im.Height, im.Width, nil)
		for r := 0; r < im.Height; r++ {
			for col := 0; col < im.Width; col++ {
				data.Set(r, col, im.Value)
			}
		}
		src.Images = append(src.Images, sim.ImageField{
			Data: data, PixelScale: im.PixelScale, X: im.X, Y: im.Y, Spectrum: im.Spectrum,
		})
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	logrus.Infof("source: %d spectra, %d point sources, %d image fields",
		len(src.Spectra), len(src.Points), len(src.Images))
	return src, nil
}

func (sc SpectrumConfig) build() (sim.Spectrum, error) {
	if sc.Flat != nil {
		if len(sc.Wavelength) > 0 || len(sc.Flux) > 0 {
			return sim.Spectrum{}, fmt.Errorf("flat and sampled spectra are exclusive")
		}
		f := sc.Flat
		if f.WaveMax <= f.WaveMin {
			return sim.Spectrum{}, fmt.Errorf("flat spectrum needs wave_max > wave_min")
		}
		n := f.Samples
		if n < 2 {
			n = 2
		}
		wave := make([]float64, n)
		floats.Span(wave, f.WaveMin, f.WaveMax)
		flux := make([]float64, n)
		for i := range flux {
			flux[i] = f.Flux
		}
		return sim.Spectrum{Wavelength: wave, Flux: flux}, nil
	}
	sp := sim.Spectrum{
		Wavelength: append([]float64(nil), sc.Wavelength...),
		Flux:       append([]float64(nil), sc.Flux...),
	}
	return sp, sp.Validate()
}
