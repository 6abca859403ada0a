package profile

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-spectro/internal/testutil"
)

const tolerance = 1e-10

func TestCalculateMoments(t *testing.T) {
	t.Parallel()

	y := []float64{1, 2, 3, 4, 5}
	s := Calculate(y)

	testutil.RequireNearlyEqual(t, "mean", s.Mean, 3, tolerance)
	testutil.RequireNearlyEqual(t, "variance", s.Variance, 2, tolerance)
	testutil.RequireNearlyEqual(t, "sum", s.Sum, 15, tolerance)
	testutil.RequireNearlyEqual(t, "skewness", s.Skewness, 0, tolerance)

	if s.Min != 1 || s.MinPos != 0 || s.Max != 5 || s.MaxPos != 4 || s.Range != 4 {
		t.Fatalf("unexpected extrema: %+v", s)
	}
}

func TestCalculateEmpty(t *testing.T) {
	t.Parallel()

	if s := Calculate(nil); s.Length != 0 || s.Sum != 0 {
		t.Fatalf("expected zero stats, got %+v", s)
	}
}

func TestNoiseIgnoresLinearTrend(t *testing.T) {
	t.Parallel()

	x := testutil.Grid(0, 10, 200)
	if n := Noise(testutil.Ramp(x, 3, 0.7)); n > 1e-12 {
		t.Fatalf("noise of a ramp = %v, want 0", n)
	}
}

func TestNoiseTracksWhiteNoise(t *testing.T) {
	t.Parallel()

	// Uniform noise in [-a, a) has sigma a/sqrt(3).
	const a = 0.3
	y := testutil.DeterministicNoise(11, a, 4000)
	testutil.RequireRelative(t, "noise", Noise(y), a/math.Sqrt(3), 0.15)
}

func TestSNRFlatIsZero(t *testing.T) {
	t.Parallel()

	if got := SNR(testutil.DC(5, 100)); got != 0 {
		t.Fatalf("SNR of flat profile = %v, want 0", got)
	}

	x := testutil.Grid(0, 4, 401)
	if got := SNR(testutil.Gaussian(x, 1, 2, 0.2)); math.IsInf(got, 0) || got <= 0 {
		t.Fatalf("SNR of noise-free peak = %v, want finite positive", got)
	}
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	v := []float64{5, 1, 4, 2, 3}
	testutil.RequireNearlyEqual(t, "median", Median(v), 3, tolerance)
	testutil.RequireNearlyEqual(t, "p25", Percentile(v, 25), 2, tolerance)
	testutil.RequireNearlyEqual(t, "p100", Percentile(v, 100), 5, tolerance)

	if v[0] != 5 {
		t.Fatal("Percentile sorted its input in place")
	}
}

func TestTrapezoidGaussianArea(t *testing.T) {
	t.Parallel()

	const sigma = 0.25
	x := testutil.Grid(0, 6, 1201)
	y := testutil.Gaussian(x, 2, 3, sigma)

	want := 2 * sigma * math.Sqrt(2*math.Pi)
	testutil.RequireRelative(t, "area", Trapezoid(x, y), want, 1e-6)

	if Trapezoid(x[:1], y[:1]) != 0 {
		t.Fatal("single point should integrate to zero")
	}
}

func TestMedianSpacing(t *testing.T) {
	t.Parallel()

	testutil.RequireNearlyEqual(t, "spacing", MedianSpacing([]float64{0, 1, 2, 2.5, 3.5}), 1, tolerance)
}
