// Package baseline estimates and removes slowly varying backgrounds from
// intensity curves.
//
// Every method returns the baseline together with the corrected curve
// y - baseline. The correction is never clamped, so
// corrected + baseline reproduces the original samples.
package baseline

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-spectro/ms/model"
)

// Method enumerates the built-in baseline estimators.
type Method int

const (
	None Method = iota
	Linear
	Polynomial
	MovingAverage
	ALS
)

var methodNames = [...]string{"none", "linear", "polynomial", "moving_average", "als"}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// Methods lists the built-in estimators.
func Methods() []Method { return []Method{None, Linear, Polynomial, MovingAverage, ALS} }

// DefaultMethod is the method selected by an empty name.
const DefaultMethod = ALS

// ParseMethod returns the method with the given name. An empty name
// selects DefaultMethod.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return DefaultMethod, nil
	case "none":
		return None, nil
	case "linear":
		return Linear, nil
	case "polynomial", "poly":
		return Polynomial, nil
	case "moving_average", "rolling":
		return MovingAverage, nil
	case "als", "asymmetric_least_squares":
		return ALS, nil
	}
	return 0, model.NewUnknownMethod("baseline_method", name)
}

// Params holds the tunables of every method. A zero MaxIterations selects
// the method's own default.
type Params struct {
	AnchorFraction float64 `json:"anchor_fraction" yaml:"anchor_fraction" jsonschema:"minimum=0,maximum=1,default=0.1"`
	EdgeFraction   float64 `json:"edge_fraction" yaml:"edge_fraction" jsonschema:"minimum=0,maximum=0.5,default=0.05"`
	Degree         int     `json:"degree" yaml:"degree" jsonschema:"minimum=0,maximum=10,default=2"`
	WindowSize     int     `json:"window_size" yaml:"window_size" jsonschema:"minimum=1,default=21"`
	Lambda         float64 `json:"lambda" yaml:"lambda" jsonschema:"exclusiveMinimum=0,default=100000"`
	P              float64 `json:"p" yaml:"p" jsonschema:"exclusiveMinimum=0,exclusiveMaximum=1,default=0.01"`
	MaxIterations  int     `json:"max_iterations" yaml:"max_iterations" jsonschema:"minimum=0,default=0"`
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		AnchorFraction: 0.1,
		EdgeFraction:   0.05,
		Degree:         2,
		WindowSize:     21,
		Lambda:         1e5,
		P:              0.01,
	}
}

const (
	defaultPolyIterations = 20
	defaultALSIterations  = 10
)

// Validate checks the parameters relevant to m.
func (p Params) Validate(m Method) error {
	if p.MaxIterations < 0 {
		return model.NewConfigValidation("max_iterations", "must be >= 0")
	}

	switch m {
	case Linear:
		if p.AnchorFraction <= 0 || p.AnchorFraction > 1 {
			return model.NewConfigValidation("anchor_fraction", "must be in (0, 1]")
		}
		if p.EdgeFraction <= 0 || p.EdgeFraction > 0.5 {
			return model.NewConfigValidation("edge_fraction", "must be in (0, 0.5]")
		}
	case Polynomial:
		if p.Degree < 0 || p.Degree > 10 {
			return model.NewConfigValidation("degree", fmt.Sprintf("must be in [0, 10], got %d", p.Degree))
		}
	case MovingAverage:
		if p.WindowSize < 1 {
			return model.NewConfigValidation("window_size", "must be >= 1")
		}
	case ALS:
		if p.Lambda <= 0 {
			return model.NewConfigValidation("lambda", "must be > 0")
		}
		if p.P <= 0 || p.P >= 1 {
			return model.NewConfigValidation("p", "must be in (0, 1)")
		}
	}
	return nil
}

// Diagnostics reports how the estimate was obtained.
type Diagnostics struct {
	Method     string  `json:"method"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Change     float64 `json:"change"` // last relative update (ALS, polynomial)
}

// Result pairs the estimated baseline with the corrected curve. Both share
// the x axis of the input.
type Result struct {
	Baseline    model.Curve
	Corrected   model.Curve
	Diagnostics Diagnostics
}

// Correct estimates the baseline of c with method m and subtracts it.
func Correct(c model.Curve, m Method, p Params) (Result, error) {
	if err := p.Validate(m); err != nil {
		return Result{}, err
	}

	var (
		base []float64
		diag = Diagnostics{Method: m.String(), Converged: true}
		err  error
	)

	switch m {
	case None:
		base = make([]float64, c.Len())
	case Linear:
		base = linear(c.X, c.Y, p.EdgeFraction, p.AnchorFraction)
	case Polynomial:
		base, diag, err = polynomial(c.X, c.Y, p.Degree, iterations(p.MaxIterations, defaultPolyIterations))
	case MovingAverage:
		base = movingAverage(c.Y, p.WindowSize)
	case ALS:
		base, diag, err = als(c.Y, p.Lambda, p.P, iterations(p.MaxIterations, defaultALSIterations))
	default:
		return Result{}, model.NewUnknownMethod("baseline_method", m.String())
	}
	if err != nil {
		return Result{}, fmt.Errorf("baseline: %s: %w", m, err)
	}
	diag.Method = m.String()

	corrected := make([]float64, c.Len())
	for i, v := range c.Y {
		corrected[i] = v - base[i]
	}

	baseCurve, err := c.WithY(model.CurveBaseline, base)
	if err != nil {
		return Result{}, err
	}
	corrCurve, err := c.WithY(model.CurveCorrected, corrected)
	if err != nil {
		return Result{}, err
	}
	corrCurve.Metadata["baseline_method"] = m.String()
	corrCurve.Metadata["baseline_curve"] = baseCurve.ID

	return Result{Baseline: baseCurve, Corrected: corrCurve, Diagnostics: diag}, nil
}

func iterations(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}
