package shape

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-spectro/internal/testutil"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/stats/profile"
)

var params = map[Kind][]float64{
	Gaussian:    {3, 1, 0.2},
	Lorentzian:  {3, 1, 0.1},
	PseudoVoigt: {3, 1, 0.3, 0.4},
	EMG:         {3, 1, 0.2, 0.15},
	BiGaussian:  {3, 1, 0.1, 0.25},
}

func mustModel(t *testing.T, k Kind) Model {
	t.Helper()
	m, err := New(k)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func sample(m Model, p []float64, lo, hi float64, n int) ([]float64, []float64) {
	x := testutil.Grid(lo, hi, n)
	y := make([]float64, n)
	for i, v := range x {
		y[i] = m.Eval(v, p)
	}
	return x, y
}

// numericFWHM measures the width at half height on a dense grid.
func numericFWHM(x, y []float64) float64 {
	top := 0
	for i := range y {
		if y[i] > y[top] {
			top = i
		}
	}
	half := y[top] / 2
	l, r := top, top
	for l > 0 && y[l] > half {
		l--
	}
	for r < len(y)-1 && y[r] > half {
		r++
	}
	xl := x[l] + (half-y[l])/(y[l+1]-y[l])*(x[l+1]-x[l])
	xr := x[r-1] + (half-y[r-1])/(y[r]-y[r-1])*(x[r]-x[r-1])
	return xr - xl
}

func TestAreaAndFWHM(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds() {
		t.Run(k.String(), func(t *testing.T) {
			t.Parallel()

			m := mustModel(t, k)
			p := params[k]

			lo, hi := -9.0, 11.0
			if k == Lorentzian || k == PseudoVoigt {
				lo, hi = -299.0, 301.0
			}
			x, y := sample(m, p, lo, hi, 600001)

			testutil.RequireRelative(t, "area", profile.Trapezoid(x, y), m.Area(p), 2e-3)
			testutil.RequireRelative(t, "fwhm", numericFWHM(x, y), m.FWHM(p), 2e-3)
		})
	}
}

func TestInitialRoundTrip(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds() {
		m := mustModel(t, k)
		p := m.Initial(2, 5, 0.4)
		if len(p) != m.NumParams() {
			t.Fatalf("%v: %d initial params, want %d", k, len(p), m.NumParams())
		}
		if k == EMG {
			continue
		}
		testutil.RequireNearlyEqual(t, k.String()+" height", m.Eval(2, p), 5, 1e-12)
		testutil.RequireNearlyEqual(t, k.String()+" fwhm", m.FWHM(p), 0.4, 1e-12)
	}
}

func TestInitialWithinBounds(t *testing.T) {
	t.Parallel()

	r := Region{XMin: 0, XMax: 4, YMax: 5, Step: 0.01}
	for _, k := range Kinds() {
		m := mustModel(t, k)
		p := m.Initial(2, 5, 0.4)
		lo, hi := m.Bounds(r)
		for i := range p {
			if p[i] < lo[i] || p[i] > hi[i] {
				t.Fatalf("%v param %d = %v outside [%v, %v]", k, i, p[i], lo[i], hi[i])
			}
		}
	}
}

func TestEMGTailsRight(t *testing.T) {
	t.Parallel()

	m := mustModel(t, EMG)
	p := params[EMG]
	s := Describe(m, p)

	if s.Center <= p[1] {
		t.Fatalf("apex %v should lie right of mu %v", s.Center, p[1])
	}
	if s.Asymmetry <= 1 {
		t.Fatalf("asymmetry %v, want > 1", s.Asymmetry)
	}

	// A vanishing tau reduces to the Gaussian.
	g := mustModel(t, Gaussian)
	for _, x := range []float64{0.6, 1, 1.3} {
		testutil.RequireNearlyEqual(t, "emg->gaussian", m.Eval(x, []float64{3, 1, 0.2, 1e-9}), g.Eval(x, params[Gaussian]), 1e-9)
	}
}

func TestEMGFarTailIsFinite(t *testing.T) {
	t.Parallel()

	m := mustModel(t, EMG)
	for _, x := range []float64{-100, -5, 0, 50, 1e4} {
		v := m.Eval(x, []float64{1, 0, 0.01, 0.001})
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			t.Fatalf("Eval(%v) = %v", x, v)
		}
	}
}

func TestBiGaussianAsymmetry(t *testing.T) {
	t.Parallel()

	m := mustModel(t, BiGaussian)
	testutil.RequireNearlyEqual(t, "asymmetry", m.Asymmetry(params[BiGaussian]), 2.5, 1e-12)
	testutil.RequireNearlyEqual(t, "symmetric", mustModel(t, Gaussian).Asymmetry(params[Gaussian]), 1, 0)
}

func TestEvalSum(t *testing.T) {
	t.Parallel()

	m := mustModel(t, Gaussian)
	p := []float64{1, 0, 0.5, 2, 1, 0.5}
	want := m.Eval(0.3, p[:3]) + m.Eval(0.3, p[3:])
	testutil.RequireNearlyEqual(t, "sum", EvalSum(m, 0.3, p), want, 1e-15)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds() {
		if got, err := ParseKind(k.String()); err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %v, %v", k, got, err)
		}
	}
	if got, _ := ParseKind("Voigt"); got != PseudoVoigt {
		t.Fatalf("alias voigt = %v", got)
	}
	if _, err := ParseKind("sinc"); !model.IsCode(err, model.CodeUnknownMethod) {
		t.Fatalf("expected unknown method, got %v", err)
	}
}
