package fit

import (
	"errors"
	"math"
	"slices"

	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/shape"
	"github.com/cwbudde/algo-spectro/stats/profile"
)

// ErrNoSeeds is returned by Joint.Fit without seeds.
var ErrNoSeeds = errors.New("fit: no seeds")

// Seed is the starting estimate of one peak in a joint fit.
type Seed struct {
	Center float64
	Height float64
	FWHM   float64
}

// SeedFromPeak returns the seed matching an existing peak.
func SeedFromPeak(p model.Peak) Seed {
	return Seed{Center: p.Center, Height: p.Amplitude, FWHM: p.FWHM}
}

// Joint fits the sum of several peaks of one shape to a window of a curve.
type Joint struct {
	Model     shape.Model
	Optimizer Optimizer
	Options   Options
}

// JointResult holds one parameter vector per seed plus the fit statistics
// of the whole window.
type JointResult struct {
	Result
	Peaks  [][]float64
	Lo, Hi float64 // window actually fitted
}

// WindowFor returns a window covering every seed out to span FWHMs on
// either side.
func WindowFor(seeds []Seed, span float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range seeds {
		lo = math.Min(lo, s.Center-span*s.FWHM)
		hi = math.Max(hi, s.Center+span*s.FWHM)
	}
	return lo, hi
}

// Fit fits the seeds jointly on the samples of c inside [lo, hi]. The
// window is widened to the whole curve when it holds too few samples.
func (j Joint) Fit(c model.Curve, seeds []Seed, lo, hi float64) (JointResult, error) {
	if len(seeds) == 0 {
		return JointResult{}, ErrNoSeeds
	}
	k := j.Model.NumParams()

	x, y := window(c, lo, hi)
	if len(x) <= k*len(seeds) {
		x, y = c.X, c.Y
	}
	if len(x) <= k*len(seeds) {
		return JointResult{}, ErrTooFewPoints
	}

	region := shape.Region{
		XMin: x[0],
		XMax: x[len(x)-1],
		YMax: slices.Max(y),
		Step: profile.MedianSpacing(x),
	}
	plo, phi := j.Model.Bounds(region)

	init := make([]float64, 0, k*len(seeds))
	lower := make([]float64, 0, k*len(seeds))
	upper := make([]float64, 0, k*len(seeds))
	for _, s := range seeds {
		fwhm := s.FWHM
		if !(fwhm > 0) {
			fwhm = 4 * region.Step
		}
		init = append(init, j.Model.Initial(s.Center, math.Max(s.Height, 0), fwhm)...)
		lower = append(lower, plo...)
		upper = append(upper, phi...)
	}

	m := j.Model
	prob := Problem{
		X:     x,
		Y:     y,
		Model: func(v float64, p []float64) float64 { return shape.EvalSum(m, v, p) },
		Init:  init,
		Lower: lower,
		Upper: upper,
	}

	res, err := Solve(j.Optimizer, prob, j.Options)
	if err != nil {
		return JointResult{}, err
	}

	out := JointResult{Result: res, Lo: x[0], Hi: x[len(x)-1]}
	for i := range seeds {
		out.Peaks = append(out.Peaks, slices.Clone(res.Params[i*k:(i+1)*k]))
	}
	return out, nil
}

// Estimate returns the starting parameters of every seed and the R^2 of
// their sum on the window of c. It is the fallback description of a group
// whose fit failed.
func (j Joint) Estimate(c model.Curve, seeds []Seed, lo, hi float64) ([][]float64, float64) {
	x, y := window(c, lo, hi)
	if len(x) == 0 {
		x, y = c.X, c.Y
	}
	step := profile.MedianSpacing(c.X)

	out := make([][]float64, len(seeds))
	var all []float64
	for i, s := range seeds {
		fwhm := s.FWHM
		if !(fwhm > 0) {
			fwhm = 4 * step
		}
		out[i] = j.Model.Initial(s.Center, math.Max(s.Height, 0), fwhm)
		all = append(all, out[i]...)
	}

	m := j.Model
	r2 := RSquared(x, y, func(v float64, p []float64) float64 { return shape.EvalSum(m, v, p) }, all)
	return out, r2
}

// window returns the samples of c with lo <= x <= hi.
func window(c model.Curve, lo, hi float64) ([]float64, []float64) {
	a, _ := slices.BinarySearch(c.X, lo)
	b, found := slices.BinarySearch(c.X, hi)
	if found {
		b++
	}
	for b < c.Len() && c.X[b] == hi {
		b++
	}
	if a >= b {
		return nil, nil
	}
	return c.X[a:b], c.Y[a:b]
}

// ApplyParams describes a peak with the fitted parameters of m. Center,
// amplitude, FWHM and area come from the model; bounds become the apex plus
// or minus one FWHM.
func ApplyParams(p model.Peak, m shape.Model, params []float64) model.Peak {
	s := shape.Describe(m, params)
	out := p.Clone()
	out.Shape = m.Kind().String()
	out.Params = slices.Clone(params)
	out.Center = s.Center
	out.Amplitude = s.Height
	out.FWHM = s.FWHM
	out.Area = s.Area
	out.LeftBound = s.Center - s.FWHM
	out.RightBound = s.Center + s.FWHM
	if out.Metadata == nil {
		out.Metadata = make(map[string]any)
	}
	out.Metadata[model.MetaAsymmetry] = s.Asymmetry
	return out
}

// Record stores the fit statistics on p. The standard error reported is
// that of the location parameter.
func Record(p *model.Peak, res Result) {
	p.RSquared = res.RSquared
	p.Metadata[model.MetaConverged] = res.Converged
	p.Metadata[model.MetaIterations] = res.Iterations
	p.Metadata[model.MetaRSS] = res.RSS
	p.Metadata[model.MetaFittingMethod] = res.Optimizer.String()
	if len(res.StdErrors) > 1 {
		p.Metadata[model.MetaStdError] = res.StdErrors[1]
	}
}
