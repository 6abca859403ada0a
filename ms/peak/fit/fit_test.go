package fit

import (
	"errors"
	"slices"
	"testing"

	"github.com/cwbudde/algo-spectro/internal/testutil"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/shape"
)

func gaussianProblem(t *testing.T, noise float64) Problem {
	t.Helper()

	m, err := shape.New(shape.Gaussian)
	if err != nil {
		t.Fatal(err)
	}
	x := testutil.Grid(0, 4, 201)
	y := testutil.Sum(testutil.Gaussian(x, 10, 2, 0.25), testutil.DeterministicNoise(5, noise, len(x)))
	lo, hi := m.Bounds(shape.Region{XMin: 0, XMax: 4, YMax: 10, Step: 0.02})

	return Problem{
		X:     x,
		Y:     y,
		Model: m.Eval,
		Init:  []float64{9, 2.05, 0.3},
		Lower: lo,
		Upper: hi,
	}
}

func TestLevenbergMarquardtExact(t *testing.T) {
	t.Parallel()

	res, err := Solve(LevenbergMarquardt, gaussianProblem(t, 0), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, res.Params, []float64{10, 2, 0.25}, 1e-6)
	if !res.Converged || res.RSquared < 1-1e-12 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestOptimizersOnNoisyPeak(t *testing.T) {
	t.Parallel()

	for _, opt := range Optimizers() {
		t.Run(opt.String(), func(t *testing.T) {
			t.Parallel()

			prob := gaussianProblem(t, 0.1)
			res, err := Solve(opt, prob, DefaultOptions())
			if err != nil {
				t.Fatal(err)
			}

			if res.Optimizer != opt {
				t.Fatalf("optimizer = %v", res.Optimizer)
			}
			testutil.RequireInRange(t, "r2", res.RSquared, 0.99, 1)
			testutil.RequireNearlyEqual(t, "center", res.Params[1], 2, 0.01)
			testutil.RequireRelative(t, "amplitude", res.Params[0], 10, 0.02)
			testutil.RequireRelative(t, "sigma", res.Params[2], 0.25, 0.05)
		})
	}
}

func TestStandardErrors(t *testing.T) {
	t.Parallel()

	res, err := Solve(LevenbergMarquardt, gaussianProblem(t, 0.1), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.StdErrors) != 3 {
		t.Fatalf("std errors = %v", res.StdErrors)
	}
	for i, se := range res.StdErrors {
		if se <= 0 || se > 0.1 {
			t.Fatalf("std error %d = %v", i, se)
		}
	}
}

func TestSimulatedAnnealingIsSeeded(t *testing.T) {
	t.Parallel()

	o := DefaultOptions()
	o.Seed = 42

	a, err := Solve(SimulatedAnnealing, gaussianProblem(t, 0.1), o)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Solve(SimulatedAnnealing, gaussianProblem(t, 0.1), o)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(a.Params, b.Params) || a.RSS != b.RSS {
		t.Fatalf("runs differ: %v vs %v", a.Params, b.Params)
	}
}

func TestBoundsAreRespected(t *testing.T) {
	t.Parallel()

	prob := gaussianProblem(t, 0)
	prob.Upper[1] = 1.9

	res, err := Solve(LevenbergMarquardt, prob, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Params[1] > 1.9 {
		t.Fatalf("center %v exceeds upper bound", res.Params[1])
	}
}

func TestIterationLimit(t *testing.T) {
	t.Parallel()

	prob := gaussianProblem(t, 0.1)
	prob.Init = []float64{8, 1.9, 0.35}

	o := DefaultOptions()
	o.MaxIterations = 1
	res, err := Solve(LevenbergMarquardt, prob, o)
	if err != nil {
		t.Fatal(err)
	}
	if res.Converged || res.Iterations != 1 {
		t.Fatalf("expected an unconverged single iteration, got %+v", res)
	}
}

func TestInvalidProblems(t *testing.T) {
	t.Parallel()

	good := gaussianProblem(t, 0)

	short := good
	short.X, short.Y = good.X[:2], good.Y[:2]
	if _, err := Solve(LevenbergMarquardt, short, DefaultOptions()); !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("expected ErrTooFewPoints, got %v", err)
	}

	bounds := good
	bounds.Lower = []float64{0}
	if _, err := Solve(LevenbergMarquardt, bounds, DefaultOptions()); !errors.Is(err, ErrBadBounds) {
		t.Fatalf("expected ErrBadBounds, got %v", err)
	}

	mismatch := good
	mismatch.Y = good.Y[:10]
	if _, err := Solve(LevenbergMarquardt, mismatch, DefaultOptions()); err == nil {
		t.Fatal("expected length mismatch error")
	}

	if _, err := Solve(Optimizer(9), good, DefaultOptions()); !model.IsCode(err, model.CodeUnknownMethod) {
		t.Fatalf("expected unknown method, got %v", err)
	}
}

func TestParseOptimizer(t *testing.T) {
	t.Parallel()

	for _, o := range Optimizers() {
		if got, err := ParseOptimizer(o.String()); err != nil || got != o {
			t.Fatalf("ParseOptimizer(%q) = %v, %v", o, got, err)
		}
	}
	if _, err := ParseOptimizer("newton"); !model.IsCode(err, model.CodeUnknownMethod) {
		t.Fatalf("expected unknown method, got %v", err)
	}
}

func TestJointFitRecoversOverlappingPair(t *testing.T) {
	t.Parallel()

	x := testutil.Grid(0, 4, 801)
	sigma := 0.3 / testutil.FWHMPerSigma
	y := testutil.Sum(testutil.Gaussian(x, 1, 1.9, sigma), testutil.Gaussian(x, 1, 2.1, sigma))
	c, err := model.NewCurve(model.CurveTotalIon, x, y)
	if err != nil {
		t.Fatal(err)
	}

	m, err := shape.New(shape.Gaussian)
	if err != nil {
		t.Fatal(err)
	}
	seeds := []Seed{{Center: 1.935, Height: 1.4, FWHM: 0.21}, {Center: 2.065, Height: 1.4, FWHM: 0.21}}
	lo, hi := WindowFor(seeds, 3)

	res, err := Joint{Model: m, Optimizer: LevenbergMarquardt, Options: DefaultOptions()}.Fit(c, seeds, lo, hi)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Peaks) != 2 {
		t.Fatalf("got %d peaks", len(res.Peaks))
	}

	left, right := res.Peaks[0], res.Peaks[1]
	if left[1] > right[1] {
		left, right = right, left
	}
	testutil.RequireNearlyEqual(t, "left center", left[1], 1.9, 1e-4)
	testutil.RequireNearlyEqual(t, "right center", right[1], 2.1, 1e-4)
	testutil.RequireNearlyEqual(t, "left fwhm", m.FWHM(left), 0.3, 1e-4)
	testutil.RequireInRange(t, "r2", res.RSquared, 1-1e-9, 1)
}

func TestApplyParams(t *testing.T) {
	t.Parallel()

	m, err := shape.New(shape.BiGaussian)
	if err != nil {
		t.Fatal(err)
	}
	p := ApplyParams(model.NewPeak("curve_x", 0, 0, 0), m, []float64{2, 5, 0.1, 0.3})

	if p.Shape != "bi_gaussian" || p.Center != 5 || p.Amplitude != 2 {
		t.Fatalf("unexpected peak %+v", p)
	}
	testutil.RequireNearlyEqual(t, "asymmetry", p.Asymmetry(), 3, 1e-12)
	testutil.RequireNearlyEqual(t, "area", p.Area, m.Area([]float64{2, 5, 0.1, 0.3}), 0)

	Record(&p, Result{RSquared: 0.9, Converged: true, Iterations: 4, Optimizer: GradientDescent})
	if p.RSquared != 0.9 || !p.Converged() || p.Metadata[model.MetaFittingMethod] != "gradient_descent" {
		t.Fatalf("record failed: %+v", p)
	}
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	for _, m := range Methods() {
		got, err := ParseMethod(m.String())
		if err != nil || got != m {
			t.Fatalf("ParseMethod(%q) = %v, %v", m.String(), got, err)
		}
	}

	if got, err := ParseMethod("voigt"); err != nil || got != PseudoVoigtFit {
		t.Fatalf("ParseMethod(voigt) = %v, %v", got, err)
	}
	if MultiPeak.Shape() != shape.Gaussian || EMGFit.Shape() != shape.EMG {
		t.Fatal("unexpected shapes")
	}

	_, err := ParseMethod("unknown_method")
	var e *model.Error
	if !errors.As(err, &e) || e.Code != model.CodeUnknownMethod || e.Details["name"] != "unknown_method" {
		t.Fatalf("err = %v", err)
	}
}
