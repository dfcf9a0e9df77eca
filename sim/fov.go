package sim

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Volume is a spatial/spectral window of one image plane: the pixel window
// [X0, X1) x [Y0, Y1) and the wavelength range [WaveMin, WaveMax] um.
type Volume struct {
	Header           ImagePlaneHeader
	X0, X1, Y0, Y1   int
	WaveMin, WaveMax float64
}

// NewVolume covers the whole image plane.
func NewVolume(h ImagePlaneHeader, waveMin, waveMax float64) Volume {
	return Volume{Header: h, X1: h.Width, Y1: h.Height, WaveMin: waveMin, WaveMax: waveMax}
}

func (v Volume) ImagePlaneID() int { return v.Header.ID }
func (v Volume) Width() int        { return v.X1 - v.X0 }
func (v Volume) Height() int       { return v.Y1 - v.Y0 }

// Empty reports whether the volume covers no pixels or no wavelengths.
func (v Volume) Empty() bool {
	return v.Width() <= 0 || v.Height() <= 0 || v.WaveMax <= v.WaveMin
}

// SkyFootprint returns the sky region covered by the pixel window.
func (v Volume) SkyFootprint() SkyBox {
	x0, y0 := v.Header.SkyOfPixelEdge(v.X0, v.Y0)
	x1, y1 := v.Header.SkyOfPixelEdge(v.X1, v.Y1)
	return SkyBox{XMin: x0, XMax: x1, YMin: y0, YMax: y1}
}

// ClipToSky shrinks the pixel window to the pixels overlapping box.
func (v Volume) ClipToSky(box SkyBox) (Volume, bool) {
	h := v.Header
	plate := h.PlateScale()
	i0 := int(math.Floor((box.XMin/plate - h.XMin) / h.PixelSize))
	i1 := int(math.Ceil((box.XMax/plate - h.XMin) / h.PixelSize))
	j0 := int(math.Floor((box.YMin/plate - h.YMin) / h.PixelSize))
	j1 := int(math.Ceil((box.YMax/plate - h.YMin) / h.PixelSize))
	out := v
	out.X0, out.X1 = max(v.X0, i0), min(v.X1, i1)
	out.Y0, out.Y1 = max(v.Y0, j0), min(v.Y1, j1)
	return out, !out.Empty()
}

// Tile splits the pixel window into chunks of at most chunk pixels per side.
func (v Volume) Tile(chunk int) []Volume {
	if chunk <= 0 {
		return []Volume{v}
	}
	var out []Volume
	for y := v.Y0; y < v.Y1; y += chunk {
		for x := v.X0; x < v.X1; x += chunk {
			t := v
			t.X0, t.X1 = x, min(x+chunk, v.X1)
			t.Y0, t.Y1 = y, min(y+chunk, v.Y1)
			out = append(out, t)
		}
	}
	return out
}

// SplitWave splits the wavelength range into n equal contiguous chunks.
func (v Volume) SplitWave(n int) []Volume {
	if n <= 1 {
		return []Volume{v}
	}
	out := make([]Volume, n)
	step := (v.WaveMax - v.WaveMin) / float64(n)
	for i := range out {
		out[i] = v
		out[i].WaveMin = v.WaveMin + float64(i)*step
		out[i].WaveMax = v.WaveMin + float64(i+1)*step
	}
	out[n-1].WaveMax = v.WaveMax
	return out
}

// FieldOfView is one extraction window of an observation. Its image holds photons
// per second per pixel for the window, rows along y.
type FieldOfView struct {
	ID int
	Volume
	Image *mat.Dense
}

// NewFieldOfView allocates an empty FOV for v.
func NewFieldOfView(id int, v Volume) *FieldOfView {
	return &FieldOfView{ID: id, Volume: v, Image: mat.NewDense(v.Height(), v.Width(), nil)}
}

// Sum returns the total photon rate in the FOV.
func (f *FieldOfView) Sum() float64 {
	return mat.Sum(f.Image)
}

// ExtractFrom deposits the photons of src that fall in the window. Each point source
// and image pixel lands in the single pixel containing it; the photon rate is the
// spectrum integrated over the FOV's wavelength range times the collecting area (m2).
func (f *FieldOfView) ExtractFrom(src *Source, area float64) {
	photons := make([]float64, len(src.Spectra))
	for i, sp := range src.Spectra {
		photons[i] = sp.PhotonsInRange(f.WaveMin, f.WaveMax) * area
	}
	for _, p := range src.Points {
		f.deposit(p.X, p.Y, p.Weight*photons[p.Spectrum])
	}
	for _, im := range src.Images {
		rate := photons[im.Spectrum]
		if rate == 0 {
			continue
		}
		rows, cols := im.Data.Dims()
		cx, cy := float64(cols-1)/2, float64(rows-1)/2
		for r := 0; r < rows; r++ {
			y := im.Y + (float64(r)-cy)*im.PixelScale
			for c := 0; c < cols; c++ {
				w := im.Data.At(r, c)
				if w == 0 {
					continue
				}
				x := im.X + (float64(c)-cx)*im.PixelScale
				f.deposit(x, y, w*rate)
			}
		}
	}
}

func (f *FieldOfView) deposit(x, y, flux float64) {
	if flux == 0 {
		return
	}
	i, j := f.Header.PixelOfSky(x, y)
	if i < f.X0 || i >= f.X1 || j < f.Y0 || j >= f.Y1 {
		return
	}
	f.Image.Set(j-f.Y0, i-f.X0, f.Image.At(j-f.Y0, i-f.X0)+flux)
}
