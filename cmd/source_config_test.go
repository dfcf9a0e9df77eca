package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func writeSource(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSourceConfig_FlatSpectrumAndPoints(t *testing.T) {
	// GIVEN a flat spectrum with two point sources, one with an explicit weight
	path := writeSource(t, `
spectra:
  - flat: {flux: 100, wave_min: 0.5, wave_max: 2.5, samples: 5}
points:
  - {x: 1, y: -1, spectrum: 0}
  - {x: 0, y: 0, spectrum: 0, weight: 3}
`)

	// WHEN the file is loaded and built
	cfg, err := LoadSourceConfig(path)
	require.NoError(t, err)
	src, err := cfg.Build()
	require.NoError(t, err)

	// THEN the photon rate is (1 + 3) * 100 * 2.0
	require.Len(t, src.Points, 2)
	assert.Equal(t, 1.0, src.Points[0].Weight)
	assert.Len(t, src.Spectra[0].Wavelength, 5)
	assert.InDelta(t, 800, src.PhotonsInRange(0.5, 2.5), 1e-9)
}

func TestSourceConfig_ImageField(t *testing.T) {
	path := writeSource(t, `
spectra:
  - wavelength: [0.5, 2.5]
    flux: [1, 1]
images:
  - {width: 4, height: 2, value: 0.5, pixel_scale: 0.1, spectrum: 0}
`)
	cfg, err := LoadSourceConfig(path)
	require.NoError(t, err)
	src, err := cfg.Build()
	require.NoError(t, err)

	require.Len(t, src.Images, 1)
	r, c := src.Images[0].Data.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, 4.0, mat.Sum(src.Images[0].Data))
}

func TestSourceConfig_UnknownFieldFails(t *testing.T) {
	// GIVEN a typo in a point source key
	path := writeSource(t, `
spectra:
  - flat: {flux: 1, wave_min: 1, wave_max: 2}
points:
  - {x: 0, y: 0, spectrm: 0}
`)

	// WHEN the file is loaded
	_, err := LoadSourceConfig(path)

	// THEN strict parsing rejects it
	assert.Error(t, err)
}

func TestSourceConfig_InvalidReferencesFail(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"spectrum index out of range", "spectra:\n  - flat: {flux: 1, wave_min: 1, wave_max: 2}\npoints:\n  - {x: 0, y: 0, spectrum: 1}\n"},
		{"flat range inverted", "spectra:\n  - flat: {flux: 1, wave_min: 2, wave_max: 1}\n"},
		{"decreasing wavelengths", "spectra:\n  - {wavelength: [2, 1], flux: [1, 1]}\n"},
		{"empty image", "spectra:\n  - flat: {flux: 1, wave_min: 1, wave_max: 2}\nimages:\n  - {width: 0, height: 2, pixel_scale: 1}\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadSourceConfig(writeSource(t, tc.body))
			require.NoError(t, err)
			_, err = cfg.Build()
			assert.Error(t, err)
		})
	}
}
