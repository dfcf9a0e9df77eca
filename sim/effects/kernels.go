package effects

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// fwhmPerSigma converts a Gaussian sigma to its full width at half maximum.
const fwhmPerSigma = 2.3548200450309493

// gaussianKernel returns a normalised 1-D Gaussian sampled out to 4 sigma.
// A non-positive sigma yields nil.
func gaussianKernel(sigma float64) []float64 {
	if sigma <= 0 {
		return nil
	}
	r := int(math.Ceil(4 * sigma))
	k := make([]float64, 2*r+1)
	for i := range k {
		x := float64(i - r)
		k[i] = math.Exp(-x * x / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// convolveSeparable convolves img with k along both axes, treating pixels outside the
// image as zero. Flux spread past the edges is lost.
func convolveSeparable(img *mat.Dense, k []float64) *mat.Dense {
	if len(k) <= 1 {
		return img
	}
	rows, cols := img.Dims()
	r := len(k) / 2
	tmp := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := img.At(y, x)
			if v == 0 {
				continue
			}
			for i, w := range k {
				xx := x + i - r
				if xx >= 0 && xx < cols {
					tmp.Set(y, xx, tmp.At(y, xx)+v*w)
				}
			}
		}
	}
	out := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := tmp.At(y, x)
			if v == 0 {
				continue
			}
			for i, w := range k {
				yy := y + i - r
				if yy >= 0 && yy < rows {
					out.Set(yy, x, out.At(yy, x)+v*w)
				}
			}
		}
	}
	return out
}

// shiftImage moves img by (dx, dy) whole pixels. Pixels shifted off the edge are lost.
func shiftImage(img *mat.Dense, dx, dy int) *mat.Dense {
	rows, cols := img.Dims()
	out := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		yy := y + dy
		if yy < 0 || yy >= rows {
			continue
		}
		for x := 0; x < cols; x++ {
			xx := x + dx
			if xx >= 0 && xx < cols {
				out.Set(yy, xx, img.At(y, x))
			}
		}
	}
	return out
}
