// Package testutil provides shared test infrastructure for the optical train
// simulator: tolerance assertions and small configuration fixtures used across
// sim/ and its subpackages. It does not import sim, so package sim's internal
// tests may use it too.
package testutil

import (
	"math"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertSlicesClose compares two float64 slices element-wise with relative tolerance.
func AssertSlicesClose(t *testing.T, name string, want, got []float64, relTol float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("%s: got %d values, want %d", name, len(got), len(want))
	}
	for i := range want {
		if want[i] == 0 && got[i] == 0 {
			continue
		}
		diff := math.Abs(want[i] - got[i])
		if diff/math.Max(math.Abs(want[i]), math.Abs(got[i])) > relTol {
			t.Errorf("%s[%d]: got %v, want %v", name, i, got[i], want[i])
		}
	}
}
