package kernel

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-spectro/internal/testutil"
)

func sum(k []float64) float64 {
	s := 0.0
	for _, v := range k {
		s += v
	}
	return s
}

func TestBoxcar(t *testing.T) {
	t.Parallel()

	k, err := Boxcar(4)
	if err != nil {
		t.Fatalf("Boxcar returned unexpected error: %v", err)
	}
	if len(k) != 5 {
		t.Fatalf("len = %d, want 5", len(k))
	}
	testutil.RequireNearlyEqual(t, "sum", sum(k), 1, 1e-12)

	if _, err := Boxcar(0); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestGaussianNormalisedAndSymmetric(t *testing.T) {
	t.Parallel()

	k, err := Gaussian(2.5)
	if err != nil {
		t.Fatalf("Gaussian returned unexpected error: %v", err)
	}
	if len(k)%2 != 1 {
		t.Fatalf("expected odd length, got %d", len(k))
	}
	testutil.RequireNearlyEqual(t, "sum", sum(k), 1, 1e-12)
	for i := range len(k) / 2 {
		testutil.RequireNearlyEqual(t, "symmetry", k[i], k[len(k)-1-i], 1e-15)
	}

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := Gaussian(bad); err == nil {
			t.Fatalf("expected error for sigma %v", bad)
		}
	}
}

func TestGaussianSecondDerivativeOfParabola(t *testing.T) {
	t.Parallel()

	k, err := GaussianSecondDerivative(2)
	if err != nil {
		t.Fatalf("GaussianSecondDerivative returned unexpected error: %v", err)
	}
	testutil.RequireNearlyEqual(t, "zero mean", sum(k), 0, 1e-12)

	// Correlating with x^2 should give roughly 2 (the second derivative).
	half := len(k) / 2
	acc := 0.0
	for i, v := range k {
		x := float64(i - half)
		acc += v * x * x
	}
	testutil.RequireRelative(t, "curvature", acc, 2, 0.02)
}

func TestRickerShape(t *testing.T) {
	t.Parallel()

	k, err := Ricker(3)
	if err != nil {
		t.Fatalf("Ricker returned unexpected error: %v", err)
	}
	mid := len(k) / 2
	if k[mid] <= 0 {
		t.Fatalf("centre tap %v, want positive", k[mid])
	}
	if k[mid+6] >= 0 {
		t.Fatalf("side lobe %v, want negative", k[mid+6])
	}
	testutil.RequireNearlyEqual(t, "near zero mean", sum(k), 0, 1e-3)
}
