package sim

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/opticsim/opticsim/sim/fits"
)

// ImagePlane accumulates FOV images on the focal plane before detection.
// Add is safe for concurrent use; overlapping FOVs sum into the same pixels.
type ImagePlane struct {
	Header ImagePlaneHeader
	Image  *mat.Dense

	mu sync.Mutex
}

// NewImagePlane allocates a zeroed image plane for h.
func NewImagePlane(h ImagePlaneHeader) *ImagePlane {
	return &ImagePlane{Header: h, Image: mat.NewDense(h.Height, h.Width, nil)}
}

// ID returns the image plane id.
func (ip *ImagePlane) ID() int { return ip.Header.ID }

// Add accumulates the FOV image into its window.
func (ip *ImagePlane) Add(fov *FieldOfView) error {
	if fov.ImagePlaneID() != ip.Header.ID {
		return fmt.Errorf("fov %d targets image plane %d, not %d", fov.ID, fov.ImagePlaneID(), ip.Header.ID)
	}
	if fov.X0 < 0 || fov.Y0 < 0 || fov.X1 > ip.Header.Width || fov.Y1 > ip.Header.Height {
		return fmt.Errorf("fov %d window [%d:%d, %d:%d] exceeds image plane %dx%d",
			fov.ID, fov.X0, fov.X1, fov.Y0, fov.Y1, ip.Header.Width, ip.Header.Height)
	}
	ip.mu.Lock()
	defer ip.mu.Unlock()
	view := ip.Image.Slice(fov.Y0, fov.Y1, fov.X0, fov.X1).(*mat.Dense)
	view.Add(view, fov.Image)
	return nil
}

// AddConstant adds v to every pixel.
func (ip *ImagePlane) AddConstant(v float64) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	addConstant(ip.Image, v)
}

// Sum returns the total photon rate on the image plane.
func (ip *ImagePlane) Sum() float64 {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return mat.Sum(ip.Image)
}

// HDU returns the image plane as a FITS image extension.
func (ip *ImagePlane) HDU() *fits.HDU {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return &fits.HDU{Header: fits.NewHeader(ip.Header.Cards()...), Data: mat.DenseCopyOf(ip.Image)}
}
