package testutil

import (
	"math"
	"testing"
)

func TestGridEndpoints(t *testing.T) {
	t.Parallel()

	g := Grid(0, 4, 801)
	if g[0] != 0 || math.Abs(g[800]-4) > 1e-12 {
		t.Fatalf("unexpected endpoints %v %v", g[0], g[800])
	}
}

func TestGaussianHalfMaximum(t *testing.T) {
	t.Parallel()

	sigma := 0.3 / FWHMPerSigma
	y := Gaussian([]float64{2, 2.15}, 1, 2, sigma)
	RequireNearlyEqual(t, "peak", y[0], 1, 1e-12)
	RequireNearlyEqual(t, "half width", y[1], 0.5, 1e-12)
}

func TestDeterministicNoiseRepeatable(t *testing.T) {
	t.Parallel()

	a := DeterministicNoise(7, 0.1, 32)
	b := DeterministicNoise(7, 0.1, 32)
	RequireSliceNearlyEqual(t, a, b, 0)
	for _, v := range a {
		RequireInRange(t, "noise", v, -0.1, 0.1)
	}
}
