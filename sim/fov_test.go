package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHeader is a 10x10 plane of 1 mm pixels at 1 arcsec per pixel, centred on the axis.
func testHeader() ImagePlaneHeader {
	return HeaderFromBounds(0, -5, 5, -5, 5, 1, 1)
}

func TestVolume_TileCoversWindowOnce(t *testing.T) {
	v := NewVolume(testHeader(), 0.5, 2.5)
	tiles := v.Tile(4)

	require.Len(t, tiles, 9)
	covered := make(map[[2]int]int)
	for _, tile := range tiles {
		assert.LessOrEqual(t, tile.Width(), 4)
		assert.LessOrEqual(t, tile.Height(), 4)
		for y := tile.Y0; y < tile.Y1; y++ {
			for x := tile.X0; x < tile.X1; x++ {
				covered[[2]int{x, y}]++
			}
		}
	}
	assert.Len(t, covered, 100)
	for px, n := range covered {
		assert.Equal(t, 1, n, "pixel %v", px)
	}
	assert.Len(t, v.Tile(0), 1)
}

func TestVolume_SplitWave(t *testing.T) {
	parts := NewVolume(testHeader(), 1, 2).SplitWave(4)
	require.Len(t, parts, 4)
	assert.Equal(t, 1.0, parts[0].WaveMin)
	assert.Equal(t, 2.0, parts[3].WaveMax)
	for i := 1; i < len(parts); i++ {
		assert.Equal(t, parts[i-1].WaveMax, parts[i].WaveMin)
	}
}

func TestVolume_ClipToSky(t *testing.T) {
	v := NewVolume(testHeader(), 1, 2)

	got, ok := v.ClipToSky(SkyBox{XMin: -1, XMax: 1, YMin: -0.5, YMax: 2.5})
	require.True(t, ok)
	assert.Equal(t, [4]int{4, 6, 4, 8}, [4]int{got.X0, got.X1, got.Y0, got.Y1})

	_, ok = v.ClipToSky(SkyBox{XMin: 20, XMax: 30, YMin: 0, YMax: 1})
	assert.False(t, ok)

	box := got.SkyFootprint()
	assert.Equal(t, SkyBox{XMin: -1, XMax: 1, YMin: -1, YMax: 3}, box)
}

func TestFieldOfView_ExtractFromDepositsInsideWindowOnly(t *testing.T) {
	// GIVEN a FOV over the right half of the plane and two point sources
	v := NewVolume(testHeader(), 0.5, 2.5)
	v.X0 = 5
	fov := NewFieldOfView(0, v)
	src := &Source{
		Spectra: []Spectrum{{Wavelength: []float64{0.5, 2.5}, Flux: []float64{1, 1}}},
		Points: []PointSource{
			{X: 2.5, Y: 0.5, Weight: 1},
			{X: -2.5, Y: 0.5, Weight: 1},
		},
	}

	// WHEN photons are extracted with a 2 m2 aperture
	fov.ExtractFrom(src, 2)

	// THEN only the source inside the window lands, at its pixel
	assert.InDelta(t, 4.0, fov.Sum(), 1e-12)
	assert.InDelta(t, 4.0, fov.Image.At(5, 2), 1e-12)
}

func TestFieldOfView_ExtractImageField(t *testing.T) {
	fov := NewFieldOfView(0, NewVolume(testHeader(), 0.5, 2.5))
	src := &Source{
		Spectra: []Spectrum{{Wavelength: []float64{0.5, 2.5}, Flux: []float64{1, 1}}},
		Images:  []ImageField{{Data: denseOnes(3, 3), PixelScale: 1, X: 0.5, Y: 0.5}},
	}
	fov.ExtractFrom(src, 1)
	assert.InDelta(t, 18.0, fov.Sum(), 1e-12)
}

func TestFOVManager_ChunksAndSetupEffects(t *testing.T) {
	cfg := newTestProperties()
	cfg.Define(KeyChunkSize, 4)
	tbl := NewSurfaceTable("t", []Surface{{Name: "f", Wavelength: []float64{1, 2}, Throughput: []float64{1, 1}}})

	m, err := NewFOVManager([]Effect{tbl}, []ImagePlaneHeader{testHeader()}, cfg)
	require.NoError(t, err)

	vols := m.Volumes()
	require.Len(t, vols, 9)
	for _, v := range vols {
		assert.Equal(t, 1.0, v.WaveMin, "surfaces clip the wavelength range")
		assert.Equal(t, 2.0, v.WaveMax)
	}
	fovs := m.FOVs()
	require.Len(t, fovs, 9)
	assert.Equal(t, 8, fovs[8].ID)
	assert.Equal(t, 0.0, fovs[0].Sum())
}

func TestFOVManager_RejectsEmptyWaveRange(t *testing.T) {
	cfg := newTestProperties()
	cfg.Define(KeyWaveMax, 0.1)
	_, err := NewFOVManager(nil, []ImagePlaneHeader{testHeader()}, cfg)
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestFOVManager_StageMismatch(t *testing.T) {
	e := mustEffect(t, rec("test.Curve", "mirror", nil), newTestProperties())
	_, err := NewFOVManager([]Effect{e}, []ImagePlaneHeader{testHeader()}, newTestProperties())
	assert.ErrorIs(t, err, ErrStageMismatch)
}
