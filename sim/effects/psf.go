package effects

import (
	"fmt"
	"math"

	"github.com/opticsim/opticsim/sim"
)

// GaussianPSF blurs each FOV with a flux-normalised Gaussian of "fwhm" arcsec.
type GaussianPSF struct {
	sim.EffectBase
}

// NewGaussianPSF constructs a GaussianPSF.
func NewGaussianPSF(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 600)
	if err != nil {
		return nil, err
	}
	if !b.Meta().Has("fwhm") {
		return nil, fmt.Errorf("%w: GaussianPSF needs fwhm", sim.ErrMissingParameter)
	}
	return &GaussianPSF{EffectBase: b}, nil
}

// ApplyToFOV implements sim.FOVEffect.
func (e *GaussianPSF) ApplyToFOV(cfg sim.Config, fov *sim.FieldOfView) (*sim.FieldOfView, error) {
	fwhm, err := e.Meta().Float(cfg, "fwhm")
	if err != nil {
		return nil, err
	}
	sigma := fwhm / fwhmPerSigma / fov.Header.PixelScale
	fov.Image = convolveSeparable(fov.Image, gaussianKernel(sigma))
	return fov, nil
}

// Shift3D offsets each FOV by "dx", "dy" arcsec (rounded to whole pixels), e.g. for
// atmospheric dispersion or a telescope offset.
type Shift3D struct {
	sim.EffectBase
}

// NewShift3D constructs a Shift3D.
func NewShift3D(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 650)
	if err != nil {
		return nil, err
	}
	b.Meta().SetDefault("dx", 0.0)
	b.Meta().SetDefault("dy", 0.0)
	return &Shift3D{EffectBase: b}, nil
}

// ApplyToFOV implements sim.FOVEffect.
func (e *Shift3D) ApplyToFOV(cfg sim.Config, fov *sim.FieldOfView) (*sim.FieldOfView, error) {
	dx, err := e.Meta().Float(cfg, "dx")
	if err != nil {
		return nil, err
	}
	dy, err := e.Meta().Float(cfg, "dy")
	if err != nil {
		return nil, err
	}
	px := int(math.Round(dx / fov.Header.PixelScale))
	py := int(math.Round(dy / fov.Header.PixelScale))
	if px != 0 || py != 0 {
		fov.Image = shiftImage(fov.Image, px, py)
	}
	return fov, nil
}

// Vibration blurs each image plane with a Gaussian of "fwhm" arcsec (telescope jitter).
type Vibration struct {
	sim.EffectBase
}

// NewVibration constructs a Vibration.
func NewVibration(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 700)
	if err != nil {
		return nil, err
	}
	b.Meta().SetDefault("fwhm", 0.0)
	return &Vibration{EffectBase: b}, nil
}

// ApplyToImagePlane implements sim.ImagePlaneEffect.
func (e *Vibration) ApplyToImagePlane(cfg sim.Config, ip *sim.ImagePlane) (*sim.ImagePlane, error) {
	fwhm, err := e.Meta().Float(cfg, "fwhm")
	if err != nil {
		return nil, err
	}
	sigma := fwhm / fwhmPerSigma / ip.Header.PixelScale
	ip.Image = convolveSeparable(ip.Image, gaussianKernel(sigma))
	return ip, nil
}
