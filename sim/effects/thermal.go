package effects

import "math"

const (
	planckH      = 6.62607015e-34 // J s
	speedOfLight = 2.99792458e8   // m/s
	boltzmannK   = 1.380649e-23   // J/K
	// arcsec2PerSr converts per-steradian quantities to per-arcsec2.
	arcsec2PerSr = (math.Pi / 180 / 3600) * (math.Pi / 180 / 3600)
)

// blackbodyPhotons returns the photon radiance of a blackbody at temperature tempC (deg C)
// in ph s-1 m-2 um-1 arcsec-2 at wavelength w (um).
func blackbodyPhotons(w, tempC float64) float64 {
	t := tempC + 273.15
	if t <= 0 || w <= 0 {
		return 0
	}
	lam := w * 1e-6
	x := planckH * speedOfLight / (lam * boltzmannK * t)
	if x > 700 {
		return 0
	}
	perM := 2 * speedOfLight / math.Pow(lam, 4) / math.Expm1(x) // ph s-1 m-2 m-1 sr-1
	return perM * 1e-6 * arcsec2PerSr
}

// greyBodyEmission treats every surface as a grey body with emissivity 1 - throughput.
func greyBodyEmission(wavelength, throughput []float64, tempC float64) []float64 {
	out := make([]float64, len(wavelength))
	for i, w := range wavelength {
		out[i] = (1 - throughput[i]) * blackbodyPhotons(w, tempC)
	}
	return out
}
