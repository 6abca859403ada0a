package fit

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-spectro/internal/linalg"
)

// levenbergMarquardt runs damped Gauss-Newton iterations with Marquardt
// diagonal scaling. The damping shrinks tenfold after an accepted step and
// grows tenfold after a rejected one.
func levenbergMarquardt(p *Problem, params []float64, o Options) (Result, error) {
	n, k := len(p.X), len(params)
	r := make([]float64, n)
	trialR := make([]float64, n)
	base := make([]float64, n)
	grad := make([]float64, k)
	jac := newColumns(k, n)

	rss, err := p.residuals(params, r)
	if err != nil {
		return Result{}, err
	}

	res := Result{}
	lambda := o.Damping

	for iter := 1; iter <= o.MaxIterations && rss > 0; iter++ {
		res.Iterations = iter

		for i := range base {
			base[i] = p.Y[i] - r[i]
		}
		if err := p.jacobian(params, base, jac); err != nil {
			return Result{}, err
		}
		jtj := normalMatrix(jac)
		for j := range grad {
			grad[j] = vecmath.DotProduct(jac[j], r)
		}

		accepted := false
		for range 12 {
			a := make([][]float64, k)
			for i := range a {
				a[i] = slices.Clone(jtj[i])
				a[i][i] += lambda * max(jtj[i][i], 1e-12)
			}

			step, err := linalg.Solve(a, grad)
			if err != nil {
				lambda *= 10
				continue
			}

			trial := make([]float64, k)
			for j := range trial {
				trial[j] = params[j] + step[j]
			}
			p.clamp(trial)

			trialRSS := p.rss(trial, trialR)
			if trialRSS >= rss {
				lambda *= 10
				continue
			}

			decrease := (rss - trialRSS) / rss
			small := true
			for j := range trial {
				if math.Abs(trial[j]-params[j]) > o.Tolerance*(math.Abs(params[j])+o.Tolerance) {
					small = false
					break
				}
			}

			params, rss = trial, trialRSS
			r, trialR = trialR, r
			lambda = max(lambda/10, 1e-15)
			accepted = true
			res.Converged = decrease < o.Tolerance || small
			break
		}

		// No downhill step at any damping: a minimum to working precision.
		if !accepted {
			res.Converged = true
		}
		if res.Converged {
			break
		}
	}
	if rss == 0 {
		res.Converged = true
	}

	res.Params = params
	res.RSS = rss
	return res, nil
}

// gradientDescent takes diagonally preconditioned steepest-descent steps
// with backtracking.
func gradientDescent(p *Problem, o Options) (Result, error) {
	params := p.clamp(slices.Clone(p.Init))
	n, k := len(p.X), len(params)
	r := make([]float64, n)
	scratch := make([]float64, n)
	base := make([]float64, n)
	dir := make([]float64, k)
	jac := newColumns(k, n)

	rss, err := p.residuals(params, r)
	if err != nil {
		return Result{}, err
	}

	res := Result{}
	for iter := 1; iter <= o.MaxIterations && rss > 0; iter++ {
		res.Iterations = iter

		for i := range base {
			base[i] = p.Y[i] - r[i]
		}
		if err := p.jacobian(params, base, jac); err != nil {
			return Result{}, err
		}
		for j := range dir {
			curv := vecmath.DotProduct(jac[j], jac[j])
			dir[j] = vecmath.DotProduct(jac[j], r) / max(curv, 1e-12) / float64(k)
		}

		accepted := false
		trial := make([]float64, k)
		for t := 1.0; t > 1e-10; t /= 2 {
			for j := range trial {
				trial[j] = params[j] + t*dir[j]
			}
			p.clamp(trial)
			if v := p.rss(trial, scratch); v < rss {
				decrease := (rss - v) / rss
				params, rss = trial, v
				accepted = true
				res.Converged = decrease < o.Tolerance
				break
			}
		}
		if !accepted {
			res.Converged = true
		}
		if res.Converged {
			break
		}
		if _, err := p.residuals(params, r); err != nil {
			return Result{}, err
		}
	}
	if rss == 0 {
		res.Converged = true
	}

	res.Params = params
	res.RSS = rss
	return res, nil
}

// searchScale returns the initial search radius for each parameter: a tenth
// of the bounded range, or half the magnitude of the start value.
func (p *Problem) searchScale(params []float64) []float64 {
	out := make([]float64, len(params))
	for j, v := range params {
		if p.Lower != nil && !math.IsInf(p.Upper[j]-p.Lower[j], 0) && p.Upper[j] > p.Lower[j] {
			out[j] = (p.Upper[j] - p.Lower[j]) / 10
			continue
		}
		out[j] = 0.5 * max(math.Abs(v), 1e-3)
	}
	return out
}

const (
	gridRounds = 6
	gridPoints = 11
)

// gridSearch sweeps each parameter over a grid around the current point,
// halving the radius each round, then polishes with Levenberg-Marquardt.
func gridSearch(p *Problem, o Options) (Result, error) {
	params := p.clamp(slices.Clone(p.Init))
	scratch := make([]float64, len(p.X))
	delta := p.searchScale(params)
	best := p.rss(params, scratch)
	if math.IsInf(best, 1) {
		return Result{}, ErrNonFinite
	}

	trial := slices.Clone(params)
	for range gridRounds {
		for j := range params {
			centre := params[j]
			for i := range gridPoints {
				trial[j] = centre + delta[j]*(2*float64(i)/(gridPoints-1)-1)
				p.clamp(trial)
				if v := p.rss(trial, scratch); v < best {
					best = v
					params[j] = trial[j]
				}
			}
			trial[j] = params[j]
		}
		for j := range delta {
			delta[j] /= 2
		}
	}

	res, err := levenbergMarquardt(p, params, o)
	if err != nil {
		return Result{}, err
	}
	res.Iterations += gridRounds
	return res, nil
}

// simulatedAnnealing performs a seeded Metropolis random walk over one
// coordinate at a time with a quadratically cooling temperature, then
// polishes the best point with Levenberg-Marquardt. Equal seeds give equal
// results.
func simulatedAnnealing(p *Problem, o Options) (Result, error) {
	rng := rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15))

	cur := p.clamp(slices.Clone(p.Init))
	scratch := make([]float64, len(p.X))
	curRSS := p.rss(cur, scratch)
	if math.IsInf(curRSS, 1) {
		return Result{}, ErrNonFinite
	}
	best, bestRSS := slices.Clone(cur), curRSS

	scale := p.searchScale(cur)
	steps := max(20*o.MaxIterations, 500)
	t0 := max(curRSS*0.1, 1e-300)
	cand := make([]float64, len(cur))

	for s := range steps {
		frac := float64(s) / float64(steps)
		temp := t0*(1-frac)*(1-frac) + 1e-300
		shrink := 1 - 0.9*frac

		copy(cand, cur)
		j := rng.IntN(len(cand))
		cand[j] += rng.NormFloat64() * scale[j] * shrink
		p.clamp(cand)

		v := p.rss(cand, scratch)
		if math.IsInf(v, 1) {
			continue
		}
		if d := v - curRSS; d < 0 || rng.Float64() < math.Exp(-d/temp) {
			copy(cur, cand)
			curRSS = v
			if v < bestRSS {
				copy(best, cand)
				bestRSS = v
			}
		}
	}

	res, err := levenbergMarquardt(p, best, o)
	if err != nil {
		return Result{}, err
	}
	res.Iterations += steps
	return res, nil
}
