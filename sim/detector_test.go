package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/opticsim/opticsim/sim/fits"
)

// gradientPlane fills pixel (i, j) with 10*j + i.
func gradientPlane() *ImagePlane {
	ip := NewImagePlane(testHeader())
	for j := 0; j < 10; j++ {
		for i := 0; i < 10; i++ {
			ip.Image.Set(j, i, float64(10*j+i))
		}
	}
	return ip
}

func TestNewDetector_ResamplesImagePlane(t *testing.T) {
	// GIVEN a 4x2 chip in the upper right quadrant
	h := DetectorHeader{ID: 1, XCen: 2, YCen: 1, XHW: 2, YHW: 1, PixelSize: 1, Gain: 1}

	det := NewDetector(h, gradientPlane())

	r, c := det.Image.Dims()
	assert.Equal(t, [2]int{2, 4}, [2]int{r, c})
	assert.Equal(t, 55.0, det.Image.At(0, 0))
	assert.Equal(t, 68.0, det.Image.At(1, 3))
}

func TestNewDetector_RotatedChip(t *testing.T) {
	// GIVEN a chip rotated by 90 degrees about the axis
	h := DetectorHeader{ID: 1, XCen: 0, YCen: 0, XHW: 5, YHW: 5, PixelSize: 1, Angle: 90}

	det := NewDetector(h, gradientPlane())

	// THEN chip x runs along plane y
	assert.Equal(t, 9.0, det.Image.At(0, 0))
	assert.Equal(t, 19.0, det.Image.At(0, 1))

	// AND the header carries the rotation matrix
	pc, err := det.Cards.Float("PC1_2")
	require.NoError(t, err)
	assert.InDelta(t, -1.0, pc, 1e-12)
}

func TestDetectorHeader_WCSAgreesWithSampledPositions(t *testing.T) {
	for _, h := range []DetectorHeader{
		{ID: 1, XCen: 0, YCen: 0, XHW: 0.05, YHW: 0.05, PixelSize: 0.01, Angle: 30},
		{ID: 2, XCen: 3.2, YCen: -1.5, XHW: 0.6, YHW: 0.2, PixelSize: 0.1, Angle: -75},
		{ID: 3, XCen: 1, YCen: 2, XHW: 0.5, YHW: 0.25, PixelSize: 0.1},
	} {
		hdr := fits.NewHeader(h.Cards()...)
		card := func(key string, def float64) float64 {
			if _, ok := hdr.Get(key); !ok {
				return def
			}
			v, err := hdr.Float(key)
			require.NoError(t, err)
			return v
		}
		crpix1, crpix2 := card("CRPIX1D", 0), card("CRPIX2D", 0)
		crval1, crval2 := card("CRVAL1D", 0), card("CRVAL2D", 0)
		cdelt1, cdelt2 := card("CDELT1D", 0), card("CDELT2D", 0)
		pc11, pc12, pc21, pc22 := card("PC1_1", 1), card("PC1_2", 0), card("PC2_1", 0), card("PC2_2", 1)

		// FITS pixel coordinates are 1-based
		for _, px := range [][2]int{{0, 0}, {h.Width() - 1, 0}, {0, h.Height() - 1}, {h.Width() / 2, h.Height() - 1}} {
			p1, p2 := float64(px[0]+1)-crpix1, float64(px[1]+1)-crpix2
			wx := crval1 + cdelt1*(pc11*p1+pc12*p2)
			wy := crval2 + cdelt2*(pc21*p1+pc22*p2)

			x, y := h.MMOfPixel(px[0], px[1])
			assert.InDelta(t, x, wx, 1e-12, "detector %d pixel %v x", h.ID, px)
			assert.InDelta(t, y, wy, 1e-12, "detector %d pixel %v y", h.ID, px)
		}
	}
}

func TestNewDetector_OffPlanePixelsReadZero(t *testing.T) {
	h := DetectorHeader{ID: 1, XCen: 5, YCen: 0, XHW: 2, YHW: 1, PixelSize: 1}
	det := NewDetector(h, gradientPlane())
	assert.Equal(t, 0.0, det.Image.At(0, 3))
	assert.NotEqual(t, 0.0, det.Image.At(0, 0))
}

func TestDetectorArray_ReadoutAppliesEffectsInOrder(t *testing.T) {
	cfg := newTestProperties()
	geom := mustEffect(t, rec("test.DetectorList", "chips", nil), cfg).(DetectorGeometry)
	add := mustEffect(t, rec("test.DetectorOffset", "add", map[string]any{"offset": 1.0}), cfg)
	noise := mustEffect(t, rec("test.DetectorOffset", "noise", map[string]any{"noisy": true}), cfg)
	ip := NewImagePlane(testHeader())

	var applied []string
	da := NewDetectorArray(geom)
	da.onApply = func(e Effect, target string) { applied = append(applied, e.Base().Name()+"@"+target) }

	read := func(seed uint64) *mat.Dense {
		hdus, err := da.Readout(cfg, []*ImagePlane{ip}, []Effect{add, noise}, NewPartitionedRNG(SimulationKey(seed)), nil)
		require.NoError(t, err)
		require.Len(t, hdus, 2)
		ndet, _ := hdus[0].Header.Get("NDET")
		assert.Equal(t, 1, ndet)
		return hdus[1].Data
	}

	a, b, c := read(7), read(7), read(8)
	assert.True(t, mat.Equal(a, b), "same key, same frame")
	assert.False(t, mat.Equal(a, c), "different key, different noise")
	assert.GreaterOrEqual(t, mat.Min(a), 1.0)
	assert.Equal(t, []string{"add@detector 0", "noise@detector 0"}, applied[:2])
}

func TestDetectorArray_MissingImagePlane(t *testing.T) {
	cfg := newTestProperties()
	geom := mustEffect(t, rec("test.DetectorList", "chips", nil), cfg).(DetectorGeometry)
	_, err := NewDetectorArray(geom).Readout(cfg, nil, nil, NewPartitionedRNG(1), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
