package sim

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
)

// Spectrum is a photon flux density sampled on an increasing wavelength grid.
// Wavelength is in um, Flux in ph s-1 m-2 um-1.
type Spectrum struct {
	Wavelength []float64
	Flux       []float64
}

// Validate checks the grid is non-empty, increasing and matches Flux.
func (s Spectrum) Validate() error {
	if len(s.Wavelength) < 2 || len(s.Wavelength) != len(s.Flux) {
		return fmt.Errorf("spectrum needs >= 2 samples with matching flux (got %d/%d)", len(s.Wavelength), len(s.Flux))
	}
	for i := 1; i < len(s.Wavelength); i++ {
		if s.Wavelength[i] <= s.Wavelength[i-1] {
			return fmt.Errorf("spectrum wavelengths must be strictly increasing at index %d", i)
		}
	}
	return nil
}

// At returns the linearly interpolated flux at w; zero outside the grid.
func (s Spectrum) At(w float64) float64 {
	return interpolateZero(s.Wavelength, s.Flux, w)
}

// PhotonsInRange integrates the spectrum over [wMin, wMax] in ph s-1 m-2.
func (s Spectrum) PhotonsInRange(wMin, wMax float64) float64 {
	xs, ys := clipCurve(s.Wavelength, s.Flux, wMin, wMax)
	if len(xs) < 2 {
		return 0
	}
	return integrate.Trapezoidal(xs, ys)
}

// clipCurve returns the samples of (xs, ys) inside [lo, hi] with interpolated endpoints.
func clipCurve(xs, ys []float64, lo, hi float64) ([]float64, []float64) {
	if len(xs) == 0 || hi <= lo {
		return nil, nil
	}
	lo = max(lo, xs[0])
	hi = min(hi, xs[len(xs)-1])
	if hi <= lo {
		return nil, nil
	}
	c := fitCurve(xs, ys)
	outX := []float64{lo}
	outY := []float64{c.zero(lo)}
	start := sort.SearchFloat64s(xs, lo)
	for i := start; i < len(xs) && xs[i] < hi; i++ {
		if xs[i] > lo {
			outX = append(outX, xs[i])
			outY = append(outY, ys[i])
		}
	}
	outX = append(outX, hi)
	outY = append(outY, c.zero(hi))
	return outX, outY
}

// PointSource is an unresolved source at (X, Y) arcsec with a scaled spectrum.
type PointSource struct {
	X, Y     float64
	Spectrum int
	Weight   float64
}

// ImageField is an extended source: each pixel holds a weight applied to one spectrum.
// The image is centred on (X, Y) arcsec; rows run along y.
type ImageField struct {
	Data       *mat.Dense
	PixelScale float64
	X, Y       float64
	Spectrum   int
}

// Source is the sky input of an observation. Observe works on a copy; the caller's
// source is never modified.
type Source struct {
	Spectra []Spectrum
	Points  []PointSource
	Images  []ImageField
}

// Validate checks spectrum references and grids.
func (s *Source) Validate() error {
	for i, sp := range s.Spectra {
		if err := sp.Validate(); err != nil {
			return fmt.Errorf("spectrum %d: %w", i, err)
		}
	}
	for i, p := range s.Points {
		if p.Spectrum < 0 || p.Spectrum >= len(s.Spectra) {
			return fmt.Errorf("point source %d references spectrum %d of %d", i, p.Spectrum, len(s.Spectra))
		}
	}
	for i, im := range s.Images {
		if im.Spectrum < 0 || im.Spectrum >= len(s.Spectra) {
			return fmt.Errorf("image field %d references spectrum %d of %d", i, im.Spectrum, len(s.Spectra))
		}
		if im.Data == nil || im.PixelScale <= 0 {
			return fmt.Errorf("image field %d needs data and a positive pixel scale", i)
		}
	}
	return nil
}

// Copy returns a deep copy.
func (s *Source) Copy() *Source {
	out := &Source{
		Spectra: make([]Spectrum, len(s.Spectra)),
		Points:  append([]PointSource(nil), s.Points...),
		Images:  make([]ImageField, len(s.Images)),
	}
	for i, sp := range s.Spectra {
		out.Spectra[i] = Spectrum{
			Wavelength: append([]float64(nil), sp.Wavelength...),
			Flux:       append([]float64(nil), sp.Flux...),
		}
	}
	for i, im := range s.Images {
		cp := im
		if im.Data != nil {
			cp.Data = mat.DenseCopyOf(im.Data)
		}
		out.Images[i] = cp
	}
	return out
}

// Shift moves every component by (dx, dy) arcsec.
func (s *Source) Shift(dx, dy float64) {
	for i := range s.Points {
		s.Points[i].X += dx
		s.Points[i].Y += dy
	}
	for i := range s.Images {
		s.Images[i].X += dx
		s.Images[i].Y += dy
	}
}

// Add returns a new source holding the components of s and other.
func (s *Source) Add(other *Source) *Source {
	out := s.Copy()
	o := other.Copy()
	offset := len(out.Spectra)
	out.Spectra = append(out.Spectra, o.Spectra...)
	for _, p := range o.Points {
		p.Spectrum += offset
		out.Points = append(out.Points, p)
	}
	for _, im := range o.Images {
		im.Spectrum += offset
		out.Images = append(out.Images, im)
	}
	return out
}

// ScaleSpectra multiplies every spectrum by f(wavelength) in place.
func (s *Source) ScaleSpectra(f func(w float64) float64) {
	for i := range s.Spectra {
		sp := &s.Spectra[i]
		for j, w := range sp.Wavelength {
			sp.Flux[j] *= f(w)
		}
	}
}

// PhotonsInRange returns the total photon rate (ph s-1 m-2) of the source in [wMin, wMax].
func (s *Source) PhotonsInRange(wMin, wMax float64) float64 {
	per := make([]float64, len(s.Spectra))
	for i, sp := range s.Spectra {
		per[i] = sp.PhotonsInRange(wMin, wMax)
	}
	total := 0.0
	for _, p := range s.Points {
		total += p.Weight * per[p.Spectrum]
	}
	for _, im := range s.Images {
		total += mat.Sum(im.Data) * per[im.Spectrum]
	}
	return total
}
