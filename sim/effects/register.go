// register.go wires the effect constructors into the sim registry. This init() runs
// when any package imports sim/effects, breaking the import cycle between sim/
// (interface owner) and sim/effects/ (implementations). External tests of package sim use
// effects_import_test.go for the blank import.
package effects

import "github.com/opticsim/opticsim/sim"

func init() {
	sim.RegisterEffect("SurfaceList", NewSurfaceList)
	sim.RegisterEffect("TERCurve", NewTERCurve)
	sim.RegisterEffect("AtmosphericTERCurve", NewAtmosphericTERCurve)
	sim.RegisterEffect("FilterCurve", NewFilterCurve)
	sim.RegisterEffect("DetectorList", NewDetectorList)
	sim.RegisterEffect("DetectorWindow", NewDetectorWindow)
	sim.RegisterEffect("ApertureMask", NewApertureMask)
	sim.RegisterEffect("SpectralTraceList", NewSpectralTraceList)
	sim.RegisterEffect("GaussianPSF", NewGaussianPSF)
	sim.RegisterEffect("Shift3D", NewShift3D)
	sim.RegisterEffect("Vibration", NewVibration)
	sim.RegisterEffect("DarkCurrent", NewDarkCurrent)
	sim.RegisterEffect("SummedExposure", NewSummedExposure)
	sim.RegisterEffect("ShotNoise", NewShotNoise)
	sim.RegisterEffect("ReadoutNoise", NewReadoutNoise)
	sim.RegisterEffect("LinearGain", NewLinearGain)
	sim.RegisterEffect("Quantization", NewQuantization)
}
