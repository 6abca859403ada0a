package overlap

import (
	"cmp"
	"math"
	"slices"

	"github.com/cwbudde/algo-spectro/dsp/conv"
	"github.com/cwbudde/algo-spectro/dsp/kernel"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/fit"
	"github.com/cwbudde/algo-spectro/ms/peak/shape"
	"github.com/cwbudde/algo-spectro/stats/profile"
)

// fitSpan is the half width of a joint fit window in FWHMs.
const fitSpan = 3

type none struct{}

func (none) Method() Method { return None }

func (none) Resolve(_ model.Curve, peaks []model.Peak, _ Params) ([]model.Peak, error) {
	out := make([]model.Peak, len(peaks))
	for i, p := range peaks {
		out[i] = p.Clone()
	}
	return out, nil
}

// fbf peels the group off one peak at a time, left to right and then right
// to left, each time fitting a single Gaussian to the residual around the
// next peak. The two passes are averaged and refined jointly.
type fbf struct{}

func (fbf) Method() Method { return FBF }

func (fbf) Resolve(c model.Curve, peaks []model.Peak, p Params) ([]model.Peak, error) {
	g, err := shape.New(shape.Gaussian)
	if err != nil {
		return nil, err
	}

	forward := peel(c, peaks, g, p, false)
	backward := peel(c, peaks, g, p, true)

	seeds := make([]fit.Seed, len(peaks))
	for i := range peaks {
		f, b := shape.Describe(g, forward[i]), shape.Describe(g, backward[i])
		seeds[i] = fit.Seed{
			Center: (f.Center + b.Center) / 2,
			Height: (f.Height + b.Height) / 2,
			FWHM:   (f.FWHM + b.FWHM) / 2,
		}
	}
	return refine(c, peaks, seeds, g, fit.LevenbergMarquardt, p)
}

// peel fits the peaks one after another on the running residual. A peak
// whose single fit fails keeps its starting parameters.
func peel(c model.Curve, peaks []model.Peak, m shape.Model, p Params, reverse bool) [][]float64 {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	if reverse {
		slices.Reverse(order)
	}

	residual := slices.Clone(c.Y)
	out := make([][]float64, len(peaks))
	j := fit.Joint{Model: m, Optimizer: fit.LevenbergMarquardt, Options: p.fitOptions()}

	for _, i := range order {
		pk := peaks[i]
		out[i] = m.Initial(pk.Center, pk.Amplitude, pk.FWHM)

		rc, err := c.WithY(c.Type, residual)
		if err != nil {
			continue
		}
		seed := fit.Seed{Center: pk.Center, Height: rc.IntensityAt(pk.Center), FWHM: pk.FWHM}
		lo, hi := fit.WindowFor([]fit.Seed{seed}, 1)
		res, err := j.Fit(rc, []fit.Seed{seed}, lo, hi)
		if err != nil {
			continue
		}

		out[i] = res.Peaks[0]
		for k, x := range c.X {
			residual[k] -= m.Eval(x, out[i])
		}
	}
	return out
}

// sharpen relocates the centers on the sharpened curve y - k*sigma^2*y'',
// where sigma is the mean Gaussian width of the group in samples, and
// then fits the group jointly on the original data.
type sharpen struct{}

func (sharpen) Method() Method { return SharpenCWT }

func (sharpen) Resolve(c model.Curve, peaks []model.Peak, p Params) ([]model.Peak, error) {
	g, err := shape.New(shape.Gaussian)
	if err != nil {
		return nil, err
	}

	seeds := seedsOf(peaks)
	if centers, ok := sharpenedCenters(c, peaks, p.Sharpening); ok {
		for i := range seeds {
			seeds[i].Center = centers[i]
		}
	}
	return refine(c, peaks, seeds, g, fit.LevenbergMarquardt, p)
}

// sharpenedCenters returns one sharpened maximum per peak, matched in
// order, or false when the sharpened curve does not separate the group.
func sharpenedCenters(c model.Curve, peaks []model.Peak, k float64) ([]float64, bool) {
	if k <= 0 {
		k = DefaultParams().Sharpening
	}
	step := profile.MedianSpacing(c.X)
	if !(step > 0) {
		return nil, false
	}

	width := 0.0
	for _, pk := range peaks {
		width += pk.FWHM
	}
	sigma := shape.SigmaFromFWHM(width/float64(len(peaks))) / step

	d2k, err := kernel.GaussianSecondDerivative(max(1, sigma/4))
	if err != nil {
		return nil, false
	}
	d2, err := conv.Smooth(c.Y, d2k)
	if err != nil {
		return nil, false
	}

	s := make([]float64, len(c.Y))
	for i, v := range c.Y {
		s[i] = v - k*sigma*sigma*d2[i]
	}

	lo, hi := Region(peaks)
	var maxima []int
	top := 0.0
	for i := 1; i+1 < len(s); i++ {
		if c.X[i] < lo || c.X[i] > hi {
			continue
		}
		top = math.Max(top, s[i])
		if s[i] > s[i-1] && s[i] >= s[i+1] {
			maxima = append(maxima, i)
		}
	}

	// Keep the tallest maxima, one per peak, then restore x order.
	maxima = slices.DeleteFunc(maxima, func(i int) bool { return s[i] < 0.1*top })
	if len(maxima) < len(peaks) {
		return nil, false
	}
	slices.SortFunc(maxima, func(a, b int) int { return cmp.Compare(s[b], s[a]) })
	maxima = maxima[:len(peaks)]
	slices.Sort(maxima)

	centers := make([]float64, len(peaks))
	for i, m := range maxima {
		centers[i] = c.X[m]
	}
	return centers, true
}

// emgNLLS fits the group jointly with exponentially modified Gaussians,
// starting from a joint Gaussian fit.
type emgNLLS struct{}

func (emgNLLS) Method() Method { return EMGNLLS }

func (emgNLLS) Resolve(c model.Curve, peaks []model.Peak, p Params) ([]model.Peak, error) {
	g, err := shape.New(shape.Gaussian)
	if err != nil {
		return nil, err
	}
	m, err := shape.New(shape.EMG)
	if err != nil {
		return nil, err
	}

	start, err := refine(c, peaks, seedsOf(peaks), g, fit.LevenbergMarquardt, p)
	if err != nil {
		return nil, err
	}
	return refine(c, peaks, seedsOf(start), m, fit.LevenbergMarquardt, p)
}

// extreme anneals a joint Gaussian fit before polishing it with
// Levenberg-Marquardt.
type extreme struct{}

func (extreme) Method() Method { return ExtremeOverlap }

func (extreme) Resolve(c model.Curve, peaks []model.Peak, p Params) ([]model.Peak, error) {
	g, err := shape.New(shape.Gaussian)
	if err != nil {
		return nil, err
	}
	return refine(c, peaks, seedsOf(peaks), g, fit.SimulatedAnnealing, p)
}

func seedsOf(peaks []model.Peak) []fit.Seed {
	seeds := make([]fit.Seed, len(peaks))
	for i, pk := range peaks {
		seeds[i] = fit.SeedFromPeak(pk)
	}
	return seeds
}

// refine fits the seeds jointly and writes the result back onto copies of
// peaks.
func refine(c model.Curve, peaks []model.Peak, seeds []fit.Seed, m shape.Model, opt fit.Optimizer, p Params) ([]model.Peak, error) {
	lo, hi := fit.WindowFor(seeds, fitSpan)
	j := fit.Joint{Model: m, Optimizer: opt, Options: p.fitOptions()}
	res, err := j.Fit(c, seeds, lo, hi)
	if err != nil {
		return nil, err
	}

	out := make([]model.Peak, len(peaks))
	for i, pk := range peaks {
		out[i] = fit.ApplyParams(pk, m, res.Peaks[i])
		fit.Record(&out[i], res.Result)
		delete(out[i].Metadata, model.MetaFitError)
	}
	return out, nil
}
