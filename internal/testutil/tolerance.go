package testutil

import (
	"math"
	"testing"
)

// RequireSliceNearlyEqual fails t if got and want differ in length or if
// any element pair exceeds eps (absolute tolerance).
func RequireSliceNearlyEqual(t testing.TB, got, want []float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		diff := math.Abs(got[i] - want[i])
		if diff > eps {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireNearlyEqual fails t if |got-want| exceeds eps.
func RequireNearlyEqual(t testing.TB, name string, got, want, eps float64) {
	t.Helper()
	if diff := math.Abs(got - want); diff > eps || math.IsNaN(got) {
		t.Fatalf("%s: got %v, want %v (diff %v > eps %v)", name, got, want, diff, eps)
	}
}

// RequireRelative fails t if got differs from want by more than rel,
// relative to |want|.
func RequireRelative(t testing.TB, name string, got, want, rel float64) {
	t.Helper()
	if want == 0 {
		RequireNearlyEqual(t, name, got, want, rel)
		return
	}
	if r := math.Abs(got-want) / math.Abs(want); r > rel || math.IsNaN(got) {
		t.Fatalf("%s: got %v, want %v (relative error %v > %v)", name, got, want, r, rel)
	}
}

// RequireInRange fails t unless lo <= got <= hi.
func RequireInRange(t testing.TB, name string, got, lo, hi float64) {
	t.Helper()
	if !(got >= lo && got <= hi) {
		t.Fatalf("%s: %v outside [%v, %v]", name, got, lo, hi)
	}
}

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t testing.TB, data []float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}
