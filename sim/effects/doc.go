// Package effects implements the effect classes configuration files can name.
//
// Importing this package registers every class with the sim registry (see register.go).
// Effects read their parameters from metadata at apply time, resolving "!SECTION.key"
// references against the configuration passed to each call, so updating an effect or
// the configuration between observations changes the next run.
//
// Default z-orders:
//
//	SpectralTraceList     70    fov setup (spectral chunks)
//	ApertureMask          80    fov setup (sky window)
//	DetectorList          90, 390, 490
//	SurfaceList          100    surfaces
//	TERCurve             100    surfaces
//	AtmosphericTERCurve  100    surfaces
//	FilterCurve          100    surfaces
//	GaussianPSF          600    fov
//	Shift3D              650    fov
//	Vibration            700    image plane
//	DarkCurrent          830    detector
//	SummedExposure       840    detector
//	ShotNoise            850    detector
//	ReadoutNoise         860    detector
//	LinearGain           870    detector
//	Quantization         880    detector
package effects
