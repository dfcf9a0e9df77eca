package effects

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/opticsim/opticsim/sim"
)

// Detector effects receive chip images in photons (electrons) per second per pixel.
// SummedExposure converts rates to counts; effects listed after it see counts.

// DarkCurrent adds "value" e-/s/pixel (default "!DET.dark_current").
type DarkCurrent struct {
	sim.EffectBase
}

// NewDarkCurrent constructs a DarkCurrent.
func NewDarkCurrent(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 830)
	if err != nil {
		return nil, err
	}
	b.Meta().SetDefault("value", "!DET.dark_current")
	return &DarkCurrent{EffectBase: b}, nil
}

// ApplyToDetector implements sim.DetectorEffect.
func (e *DarkCurrent) ApplyToDetector(cfg sim.Config, det *sim.Detector) (*sim.Detector, error) {
	v, err := e.Meta().Float(cfg, "value")
	if err != nil {
		return nil, err
	}
	if v < 0 {
		return nil, fmt.Errorf("%s: negative dark current %g", e.Name(), v)
	}
	det.Image.Apply(func(_, _ int, x float64) float64 { return x + v }, det.Image)
	det.Cards.Set("DARK", v, "[e-/s/pixel] dark current")
	return det, nil
}

// SummedExposure integrates over "ndit" exposures of "dit" seconds each
// (defaults "!OBS.dit" and "!OBS.ndit").
type SummedExposure struct {
	sim.EffectBase
}

// NewSummedExposure constructs a SummedExposure.
func NewSummedExposure(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 840)
	if err != nil {
		return nil, err
	}
	b.Meta().SetDefault("dit", sim.KeyDIT)
	b.Meta().SetDefault("ndit", sim.KeyNDIT)
	return &SummedExposure{EffectBase: b}, nil
}

// ApplyToDetector implements sim.DetectorEffect.
func (e *SummedExposure) ApplyToDetector(cfg sim.Config, det *sim.Detector) (*sim.Detector, error) {
	dit, err := e.Meta().Float(cfg, "dit")
	if err != nil {
		return nil, err
	}
	ndit, err := e.Meta().Int(cfg, "ndit")
	if err != nil {
		return nil, err
	}
	if dit <= 0 || ndit < 1 {
		return nil, fmt.Errorf("%s: invalid exposure dit=%g ndit=%d", e.Name(), dit, ndit)
	}
	det.Image.Scale(dit*float64(ndit), det.Image)
	det.Cards.Set("DIT", dit, "[s] detector integration time")
	det.Cards.Set("NDIT", ndit, "number of integrations")
	det.Cards.Set("EXPTIME", dit*float64(ndit), "[s] total exposure time")
	return det, nil
}

// ShotNoise replaces every pixel by a Poisson draw with the pixel value as mean.
type ShotNoise struct {
	sim.EffectBase
}

// NewShotNoise constructs a ShotNoise.
func NewShotNoise(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 850)
	if err != nil {
		return nil, err
	}
	return &ShotNoise{EffectBase: b}, nil
}

// ApplyToDetector implements sim.DetectorEffect.
func (e *ShotNoise) ApplyToDetector(cfg sim.Config, det *sim.Detector) (*sim.Detector, error) {
	if det.RNG == nil {
		return nil, fmt.Errorf("%s: detector has no random stream", e.Name())
	}
	det.Image.Apply(func(_, _ int, x float64) float64 {
		if x <= 0 {
			return 0
		}
		return distuv.Poisson{Lambda: x, Src: det.RNG}.Rand()
	}, det.Image)
	det.Cards.Set("SHOTNOIS", true, "Poisson noise applied")
	return det, nil
}

// ReadoutNoise adds Gaussian noise of "noise_std" electrons per read
// (default "!DET.readout_noise"), accumulated over "ndit" reads.
type ReadoutNoise struct {
	sim.EffectBase
}

// NewReadoutNoise constructs a ReadoutNoise.
func NewReadoutNoise(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 860)
	if err != nil {
		return nil, err
	}
	b.Meta().SetDefault("noise_std", "!DET.readout_noise")
	b.Meta().SetDefault("ndit", sim.KeyNDIT)
	return &ReadoutNoise{EffectBase: b}, nil
}

// ApplyToDetector implements sim.DetectorEffect.
func (e *ReadoutNoise) ApplyToDetector(cfg sim.Config, det *sim.Detector) (*sim.Detector, error) {
	std, err := e.Meta().Float(cfg, "noise_std")
	if err != nil {
		return nil, err
	}
	ndit, err := e.Meta().Int(cfg, "ndit")
	if err != nil {
		return nil, err
	}
	if std < 0 || ndit < 1 {
		return nil, fmt.Errorf("%s: invalid noise_std=%g ndit=%d", e.Name(), std, ndit)
	}
	if std == 0 {
		return det, nil
	}
	if det.RNG == nil {
		return nil, fmt.Errorf("%s: detector has no random stream", e.Name())
	}
	noise := distuv.Normal{Mu: 0, Sigma: std * math.Sqrt(float64(ndit)), Src: det.RNG}
	det.Image.Apply(func(_, _ int, x float64) float64 { return x + noise.Rand() }, det.Image)
	det.Cards.Set("RON", std, "[e-] readout noise per read")
	return det, nil
}

// LinearGain converts electrons to ADU by dividing by the chip gain, or by "gain"
// when configured.
type LinearGain struct {
	sim.EffectBase
}

// NewLinearGain constructs a LinearGain.
func NewLinearGain(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 870)
	if err != nil {
		return nil, err
	}
	return &LinearGain{EffectBase: b}, nil
}

// ApplyToDetector implements sim.DetectorEffect.
func (e *LinearGain) ApplyToDetector(cfg sim.Config, det *sim.Detector) (*sim.Detector, error) {
	gain, err := e.Meta().FloatOr(cfg, "gain", det.Header.Gain)
	if err != nil {
		return nil, err
	}
	if gain <= 0 {
		return nil, fmt.Errorf("%s: gain must be positive, got %g", e.Name(), gain)
	}
	det.Image.Scale(1/gain, det.Image)
	det.Cards.Set("BUNIT", "ADU", "")
	return det, nil
}

// Quantization truncates pixel values to whole, non-negative counts as an ADC would.
type Quantization struct {
	sim.EffectBase
}

// NewQuantization constructs a Quantization.
func NewQuantization(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 880)
	if err != nil {
		return nil, err
	}
	return &Quantization{EffectBase: b}, nil
}

// ApplyToDetector implements sim.DetectorEffect.
func (e *Quantization) ApplyToDetector(cfg sim.Config, det *sim.Detector) (*sim.Detector, error) {
	det.Image.Apply(func(_, _ int, x float64) float64 { return math.Max(0, math.Floor(x)) }, det.Image)
	return det, nil
}
