package sim

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func denseOnes(r, c int) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, 1)
		}
	}
	return m
}

func TestImagePlane_AddAccumulatesWindows(t *testing.T) {
	ip := NewImagePlane(testHeader())
	vols := NewVolume(testHeader(), 1, 2).Tile(3)

	// WHEN every tile adds ones concurrently
	var wg sync.WaitGroup
	for i, v := range vols {
		fov := NewFieldOfView(i, v)
		fov.Image = denseOnes(v.Height(), v.Width())
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ip.Add(fov))
		}()
	}
	wg.Wait()

	// THEN every pixel is hit exactly once
	assert.Equal(t, 100.0, ip.Sum())
	assert.Equal(t, 1.0, mat.Min(ip.Image))
}

func TestImagePlane_AddRejectsForeignFOV(t *testing.T) {
	ip := NewImagePlane(testHeader())
	other := testHeader()
	other.ID = 3
	assert.Error(t, ip.Add(NewFieldOfView(0, NewVolume(other, 1, 2))))

	big := NewVolume(testHeader(), 1, 2)
	big.X1 = 20
	assert.Error(t, ip.Add(NewFieldOfView(1, big)))
}

func TestImagePlane_HDUCarriesWCS(t *testing.T) {
	ip := NewImagePlane(testHeader())
	ip.AddConstant(2)
	hdu := ip.HDU()

	assert.Equal(t, 200.0, mat.Sum(hdu.Data))
	cdelt, err := hdu.Header.Float("CDELT1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, cdelt)
	crval, err := hdu.Header.Float("CRVAL1D")
	require.NoError(t, err)
	assert.Equal(t, -4.5, crval)

	ip.AddConstant(1)
	assert.Equal(t, 200.0, mat.Sum(hdu.Data), "HDU data is a copy")
}

func TestHeaderFromBounds(t *testing.T) {
	h := HeaderFromBounds(2, -1, 1, 0, 0.5, 0.25, 0.1)
	assert.Equal(t, 8, h.Width)
	assert.Equal(t, 2, h.Height)
	assert.InDelta(t, 0.4, h.PlateScale(), 1e-12)

	i, j := h.PixelOfMM(0.1, 0.3)
	assert.Equal(t, [2]int{4, 1}, [2]int{i, j})
	assert.True(t, h.Contains(i, j))
	assert.False(t, h.Contains(8, 0))
}
