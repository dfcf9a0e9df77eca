package sim

import (
	"math"

	"github.com/opticsim/opticsim/sim/fits"
)

// SkyBox is an axis-aligned region on the sky in arcsec relative to the optical axis.
type SkyBox struct {
	XMin, XMax, YMin, YMax float64
}

// Intersect returns the overlap of two boxes; ok is false when they do not overlap.
func (b SkyBox) Intersect(o SkyBox) (SkyBox, bool) {
	out := SkyBox{
		XMin: math.Max(b.XMin, o.XMin), XMax: math.Min(b.XMax, o.XMax),
		YMin: math.Max(b.YMin, o.YMin), YMax: math.Min(b.YMax, o.YMax),
	}
	return out, out.XMin < out.XMax && out.YMin < out.YMax
}

// ImagePlaneHeader is the coordinate description of one image plane.
// Pixel (0, 0) has its lower-left corner at (XMin, YMin) mm on the focal plane.
// Sky and focal plane coordinates are related by the plate scale PixelScale/PixelSize.
type ImagePlaneHeader struct {
	ID         int
	Width      int     // pixels along x (NAXIS1)
	Height     int     // pixels along y (NAXIS2)
	PixelSize  float64 // mm per pixel
	PixelScale float64 // arcsec per pixel
	XMin, YMin float64 // mm
}

// HeaderFromBounds builds the smallest pixel grid covering the mm bounds.
func HeaderFromBounds(id int, xMin, xMax, yMin, yMax, pixelSize, pixelScale float64) ImagePlaneHeader {
	nx := int(math.Round((xMax - xMin) / pixelSize))
	ny := int(math.Round((yMax - yMin) / pixelSize))
	return ImagePlaneHeader{
		ID:         id,
		Width:      max(nx, 1),
		Height:     max(ny, 1),
		PixelSize:  pixelSize,
		PixelScale: pixelScale,
		XMin:       xMin,
		YMin:       yMin,
	}
}

// PlateScale returns arcsec per mm.
func (h ImagePlaneHeader) PlateScale() float64 {
	return h.PixelScale / h.PixelSize
}

// PixelOfMM returns the pixel containing the focal plane position (x, y) mm.
// The result may lie outside the grid.
func (h ImagePlaneHeader) PixelOfMM(x, y float64) (int, int) {
	return int(math.Floor((x - h.XMin) / h.PixelSize)), int(math.Floor((y - h.YMin) / h.PixelSize))
}

// PixelOfSky returns the pixel containing the sky position (x, y) arcsec.
func (h ImagePlaneHeader) PixelOfSky(x, y float64) (int, int) {
	plate := h.PlateScale()
	return h.PixelOfMM(x/plate, y/plate)
}

// MMOfPixel returns the centre of pixel (i, j) in mm.
func (h ImagePlaneHeader) MMOfPixel(i, j int) (float64, float64) {
	return h.XMin + (float64(i)+0.5)*h.PixelSize, h.YMin + (float64(j)+0.5)*h.PixelSize
}

// SkyOfPixelEdge returns the sky position of the lower-left corner of pixel (i, j).
func (h ImagePlaneHeader) SkyOfPixelEdge(i, j int) (float64, float64) {
	plate := h.PlateScale()
	return (h.XMin + float64(i)*h.PixelSize) * plate, (h.YMin + float64(j)*h.PixelSize) * plate
}

// Contains reports whether (i, j) is on the grid.
func (h ImagePlaneHeader) Contains(i, j int) bool {
	return i >= 0 && j >= 0 && i < h.Width && j < h.Height
}

// Cards returns FITS keywords for both the sky (no suffix) and focal plane ("D") frames.
func (h ImagePlaneHeader) Cards() []fits.Card {
	plate := h.PlateScale()
	x0, y0 := h.MMOfPixel(0, 0)
	return []fits.Card{
		{Key: "IMGPLANE", Value: h.ID, Comment: "image plane id"},
		{Key: "CTYPE1", Value: "LINEAR"}, {Key: "CTYPE2", Value: "LINEAR"},
		{Key: "CUNIT1", Value: "arcsec"}, {Key: "CUNIT2", Value: "arcsec"},
		{Key: "CRPIX1", Value: 1.0}, {Key: "CRPIX2", Value: 1.0},
		{Key: "CRVAL1", Value: x0 * plate}, {Key: "CRVAL2", Value: y0 * plate},
		{Key: "CDELT1", Value: h.PixelScale}, {Key: "CDELT2", Value: h.PixelScale},
		{Key: "CTYPE1D", Value: "LINEAR"}, {Key: "CTYPE2D", Value: "LINEAR"},
		{Key: "CUNIT1D", Value: "mm"}, {Key: "CUNIT2D", Value: "mm"},
		{Key: "CRPIX1D", Value: crpix1}, {Key: "CRPIX2D", Value: crpix2},
		{Key: "CRVAL1D", Value: d.XCen}, {Key: "CRVAL2D", Value: d.YCen},
		{Key: "CDELT1D", Value: h.PixelSize}, {Key: "CDELT2D", Value: h.PixelSize},
	}
}

// DetectorHeader is one row of a detector layout: a chip on the focal plane.
type DetectorHeader struct {
	ID           int
	XCen, YCen   float64 // mm
	XHW, YHW     float64 // half widths, mm
	Angle        float64 // degrees
	Gain         float64 // electrons per ADU
	PixelSize    float64 // mm
	ImagePlaneID int
}

// Width returns the chip width in pixels.
func (d DetectorHeader) Width() int {
	return max(int(math.Round(2*d.XHW/d.PixelSize)), 1)
}

// Height returns the chip height in pixels.
func (d DetectorHeader) Height() int {
	return max(int(math.Round(2*d.YHW/d.PixelSize)), 1)
}

// Bounds returns the unrotated mm extent of the chip.
func (d DetectorHeader) Bounds() (xMin, xMax, yMin, yMax float64) {
	return d.XCen - d.XHW, d.XCen + d.XHW, d.YCen - d.YHW, d.YCen + d.YHW
}

// MMOfPixel returns the focal plane position of the centre of chip pixel (i, j),
// applying the chip rotation about its centre.
func (d DetectorHeader) MMOfPixel(i, j int) (float64, float64) {
	dx := (float64(i)+0.5)*d.PixelSize - d.XHW
	dy := (float64(j)+0.5)*d.PixelSize - d.YHW
	if math.Abs(d.Angle) <= 1e-4 {
		return d.XCen + dx, d.YCen + dy
	}
	s, c := math.Sincos(d.Angle * math.Pi / 180)
	return d.XCen + c*dx - s*dy, d.YCen + s*dx + c*dy
}

// Cards returns the chip keywords and its focal plane WCS. The WCS is anchored at the
// chip centre and agrees with MMOfPixel for every pixel, rotated or not.
func (d DetectorHeader) Cards() []fits.Card {
	crpix1, crpix2 := d.XHW/d.PixelSize+0.5, d.YHW/d.PixelSize+0.5
	cards := []fits.Card{
		{Key: "ID", Value: d.ID, Comment: "detector id"},
		{Key: "X_CEN", Value: d.XCen, Comment: "[mm]"},
		{Key: "Y_CEN", Value: d.YCen, Comment: "[mm]"},
		{Key: "XHW", Value: d.XHW, Comment: "[mm]"},
		{Key: "YHW", Value: d.YHW, Comment: "[mm]"},
		{Key: "ANGLE", Value: d.Angle, Comment: "[deg]"},
		{Key: "GAIN", Value: d.Gain, Comment: "[e-/ADU]"},
		{Key: "PIXSIZE", Value: d.PixelSize, Comment: "[mm]"},
		{Key: "IMGPLANE", Value: d.ImagePlaneID},
		{Key: "CTYPE1D", Value: "LINEAR"}, {Key: "CTYPE2D", Value: "LINEAR"},
		{Key: "CUNIT1D", Value: "mm"}, {Key: "CUNIT2D", Value: "mm"},
		{Key: "CRPIX1D", Value: crpix1}, {Key: "CRPIX2D", Value: crpix2},
		{Key: "CRVAL1D", Value: d.XCen}, {Key: "CRVAL2D", Value: d.YCen},
		{Key: "CDELT1D", Value: d.PixelSize}, {Key: "CDELT2D", Value: d.PixelSize},
	}
	if math.Abs(d.Angle) > 1e-4 {
		s, c := math.Sincos(d.Angle * math.Pi / 180)
		cards = append(cards,
			fits.Card{Key: "PC1_1", Value: c}, fits.Card{Key: "PC1_2", Value: -s},
			fits.Card{Key: "PC2_1", Value: s}, fits.Card{Key: "PC2_2", Value: c})
	}
	return cards
}
