// Package fit implements bounded nonlinear least-squares optimizers for peak
// models.
//
// A Problem pairs samples with a model function and a starting point. All
// optimizers minimise the residual sum of squares and share one Result type;
// a run that stops at the iteration limit reports Converged=false rather
// than an error. Errors are reserved for malformed problems and numerical
// breakdown.
package fit

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-spectro/internal/linalg"
	"github.com/cwbudde/algo-spectro/ms/model"
)

var (
	// ErrTooFewPoints is returned when there are fewer samples than
	// parameters.
	ErrTooFewPoints = errors.New("fit: fewer samples than parameters")
	// ErrNonFinite is returned when the model evaluates to NaN or Inf.
	ErrNonFinite = errors.New("fit: model produced a non-finite value")
	// ErrBadBounds is returned for mismatched or inverted bounds.
	ErrBadBounds = errors.New("fit: invalid parameter bounds")
)

// Optimizer enumerates the built-in optimizers.
type Optimizer int

const (
	LevenbergMarquardt Optimizer = iota
	GradientDescent
	GridSearch
	SimulatedAnnealing
)

var optimizerNames = [...]string{"levenberg_marquardt", "gradient_descent", "grid_search", "simulated_annealing"}

func (o Optimizer) String() string {
	if o < 0 || int(o) >= len(optimizerNames) {
		return fmt.Sprintf("Optimizer(%d)", int(o))
	}
	return optimizerNames[o]
}

// Optimizers lists the built-in optimizers.
func Optimizers() []Optimizer {
	return []Optimizer{LevenbergMarquardt, GradientDescent, GridSearch, SimulatedAnnealing}
}

// ParseOptimizer returns the optimizer with the given name.
func ParseOptimizer(name string) (Optimizer, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "lm", "levenberg-marquardt":
		return LevenbergMarquardt, nil
	case "gd":
		return GradientDescent, nil
	case "grid":
		return GridSearch, nil
	case "sa", "annealing":
		return SimulatedAnnealing, nil
	}
	for i, s := range optimizerNames {
		if s == n {
			return Optimizer(i), nil
		}
	}
	return 0, model.NewUnknownMethod("optimization_algorithm", name)
}

// Func evaluates a model at x for parameters p.
type Func func(x float64, p []float64) float64

// Problem is a least-squares fit of Model to (X, Y) starting at Init.
// Lower and Upper are optional; when set they must match Init in length.
type Problem struct {
	X, Y         []float64
	Model        Func
	Init         []float64
	Lower, Upper []float64
}

// Options tunes the optimizers.
type Options struct {
	MaxIterations int     `json:"max_iterations" yaml:"max_iterations" jsonschema:"minimum=0,default=100"`
	Tolerance     float64 `json:"tolerance" yaml:"tolerance" jsonschema:"exclusiveMinimum=0,default=1e-8"`
	Damping       float64 `json:"damping" yaml:"damping" jsonschema:"exclusiveMinimum=0,default=0.001"`
	Seed          uint64  `json:"seed" yaml:"seed" jsonschema:"default=1"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{MaxIterations: 100, Tolerance: 1e-8, Damping: 1e-3, Seed: 1}
}

// Validate rejects negative settings. Zero values select the defaults.
func (o Options) Validate() error {
	switch {
	case o.MaxIterations < 0:
		return model.NewConfigValidation("max_iterations", "must be >= 0")
	case o.Tolerance < 0 || math.IsNaN(o.Tolerance):
		return model.NewConfigValidation("tolerance", "must be >= 0")
	case o.Damping < 0 || math.IsNaN(o.Damping):
		return model.NewConfigValidation("damping", "must be >= 0")
	}
	return nil
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.Damping <= 0 {
		o.Damping = d.Damping
	}
	return o
}

// Result is the outcome of a fit.
type Result struct {
	Params     []float64
	StdErrors  []float64 // nil when the covariance is singular
	RSS        float64
	RSquared   float64 // clamped to [0, 1]
	Iterations int
	Converged  bool
	Optimizer  Optimizer
}

// Solve fits prob with the given optimizer.
func Solve(opt Optimizer, prob Problem, o Options) (Result, error) {
	if err := prob.validate(); err != nil {
		return Result{}, err
	}
	o = o.withDefaults()

	var (
		res Result
		err error
	)
	switch opt {
	case LevenbergMarquardt:
		res, err = levenbergMarquardt(&prob, prob.clamp(slices.Clone(prob.Init)), o)
	case GradientDescent:
		res, err = gradientDescent(&prob, o)
	case GridSearch:
		res, err = gridSearch(&prob, o)
	case SimulatedAnnealing:
		res, err = simulatedAnnealing(&prob, o)
	default:
		return Result{}, model.NewUnknownMethod("optimization_algorithm", opt.String())
	}
	if err != nil {
		return Result{}, fmt.Errorf("fit: %s: %w", opt, err)
	}

	res.Optimizer = opt
	res.RSquared = prob.rSquared(res.RSS)
	res.StdErrors = prob.stdErrors(res.Params, res.RSS)
	return res, nil
}

// RSquared returns the clamped coefficient of determination of f at params
// on (x, y), or 0 when f is not finite there.
func RSquared(x, y []float64, f Func, params []float64) float64 {
	p := Problem{X: x, Y: y, Model: f}
	rss := p.rss(params, make([]float64, len(x)))
	if math.IsInf(rss, 1) {
		return 0
	}
	return p.rSquared(rss)
}

func (p *Problem) validate() error {
	if len(p.X) != len(p.Y) {
		return fmt.Errorf("fit: %d x values but %d y values", len(p.X), len(p.Y))
	}
	if p.Model == nil {
		return errors.New("fit: nil model")
	}
	if len(p.Init) == 0 || len(p.X) < len(p.Init) {
		return ErrTooFewPoints
	}
	if p.Lower != nil || p.Upper != nil {
		if len(p.Lower) != len(p.Init) || len(p.Upper) != len(p.Init) {
			return ErrBadBounds
		}
		for i := range p.Lower {
			if p.Lower[i] > p.Upper[i] {
				return ErrBadBounds
			}
		}
	}
	return nil
}

// clamp projects params onto the bounds in place.
func (p *Problem) clamp(params []float64) []float64 {
	if p.Lower == nil {
		return params
	}
	for i := range params {
		params[i] = linalg.Clamp(params[i], p.Lower[i], p.Upper[i])
	}
	return params
}

// residuals writes y - f(x) into r and returns the residual sum of squares.
func (p *Problem) residuals(params, r []float64) (float64, error) {
	for i, x := range p.X {
		v := p.Model(x, params)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, ErrNonFinite
		}
		r[i] = p.Y[i] - v
	}
	return vecmath.DotProduct(r, r), nil
}

// rss evaluates the residual sum of squares, reporting +Inf for non-finite
// model values so that search methods can reject the point.
func (p *Problem) rss(params, scratch []float64) float64 {
	v, err := p.residuals(params, scratch)
	if err != nil {
		return math.Inf(1)
	}
	return v
}

// jacobian fills jac (column-major, one column per parameter) with the
// forward-difference derivatives of the model.
func (p *Problem) jacobian(params, base []float64, jac [][]float64) error {
	probe := slices.Clone(params)
	for j := range params {
		h := 1e-7 * max(math.Abs(params[j]), 1e-4)
		if p.Upper != nil && params[j]+h > p.Upper[j] {
			h = -h
		}
		probe[j] = params[j] + h
		for i, x := range p.X {
			v := p.Model(x, probe)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return ErrNonFinite
			}
			jac[j][i] = (v - base[i]) / h
		}
		probe[j] = params[j]
	}
	return nil
}

func (p *Problem) rSquared(rss float64) float64 {
	if len(p.Y) == 0 {
		return 0
	}
	mean := vecmath.Sum(p.Y) / float64(len(p.Y))
	sst := 0.0
	for _, y := range p.Y {
		sst += (y - mean) * (y - mean)
	}
	if sst == 0 {
		if rss == 0 {
			return 1
		}
		return 0
	}
	return linalg.Clamp(1-rss/sst, 0, 1)
}

// stdErrors estimates parameter standard errors from the Gauss-Newton
// covariance sigma^2 (J'J)^-1.
func (p *Problem) stdErrors(params []float64, rss float64) []float64 {
	n, k := len(p.X), len(params)
	if n <= k {
		return nil
	}

	fx := p.eval(params)
	jac := newColumns(k, n)
	if err := p.jacobian(params, fx, jac); err != nil {
		return nil
	}
	jtj := normalMatrix(jac)
	s2 := rss / float64(n-k)

	out := make([]float64, k)
	for j := range k {
		e := make([]float64, k)
		e[j] = 1
		col, err := linalg.Solve(jtj, e)
		if err != nil || col[j] < 0 {
			return nil
		}
		out[j] = math.Sqrt(col[j] * s2)
	}
	return out
}

func (p *Problem) eval(params []float64) []float64 {
	out := make([]float64, len(p.X))
	for i, x := range p.X {
		out[i] = p.Model(x, params)
	}
	return out
}

func newColumns(k, n int) [][]float64 {
	cols := make([][]float64, k)
	for j := range cols {
		cols[j] = make([]float64, n)
	}
	return cols
}

// normalMatrix returns J'J for a column-major Jacobian.
func normalMatrix(jac [][]float64) [][]float64 {
	k := len(jac)
	m := make([][]float64, k)
	for a := range k {
		m[a] = make([]float64, k)
	}
	for a := range k {
		for b := a; b < k; b++ {
			v := vecmath.DotProduct(jac[a], jac[b])
			m[a][b], m[b][a] = v, v
		}
	}
	return m
}
