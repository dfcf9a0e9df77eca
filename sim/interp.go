package sim

import (
	"gonum.org/v1/gonum/interp"
)

// curve is a piecewise-linear function of wavelength, fitted once and evaluated many
// times. The zero value evaluates to zero everywhere.
type curve struct {
	xs, ys []float64
	pl     *interp.PiecewiseLinear
}

// fitCurve fits (xs, ys). Mismatched or empty samples give the zero curve.
func fitCurve(xs, ys []float64) curve {
	if len(xs) == 0 || len(xs) != len(ys) {
		return curve{}
	}
	c := curve{xs: xs, ys: ys}
	if len(xs) >= 2 {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, ys); err == nil {
			c.pl = &pl
		}
	}
	return c
}

// zero evaluates c at x, returning zero outside [xs[0], xs[n-1]].
func (c curve) zero(x float64) float64 {
	n := len(c.xs)
	if n == 0 || x < c.xs[0] || x > c.xs[n-1] {
		return 0
	}
	return c.clamp(x)
}

// clamp evaluates c at x, holding the end values outside the grid.
func (c curve) clamp(x float64) float64 {
	n := len(c.xs)
	switch {
	case n == 0:
		return 0
	case n == 1 || x <= c.xs[0]:
		return c.ys[0]
	case x >= c.xs[n-1]:
		return c.ys[n-1]
	case c.pl == nil:
		return 0
	}
	return c.pl.Predict(x)
}

// interpolateZero evaluates the piecewise-linear curve (xs, ys) at x, returning zero
// outside [xs[0], xs[n-1]]. Repeated evaluations of one curve should use fitCurve.
func interpolateZero(xs, ys []float64, x float64) float64 {
	return fitCurve(xs, ys).zero(x)
}
