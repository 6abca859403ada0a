package shape

import "math"

// emg is the exponentially modified Gaussian: a Gaussian [A, mu, sigma]
// convolved with a unit-area exponential decay of time constant tau,
// p = [A, mu, sigma, tau]. A is the height of the underlying Gaussian, so
// the area equals that of the unmodified Gaussian.
type emg struct{}

func (emg) Kind() Kind     { return EMG }
func (emg) NumParams() int { return 4 }

func (emg) Eval(x float64, p []float64) float64 {
	a, mu, sigma, tau := p[0], p[1], math.Abs(p[2]), math.Abs(p[3])
	if sigma == 0 {
		return 0
	}

	u := (x - mu) / sigma
	if tau < sigma*1e-6 {
		return a * math.Exp(-0.5*u*u)
	}

	s := sigma / tau
	z := (s - u) / math.Sqrt2
	return a * s * math.Sqrt(math.Pi/2) * expErfc(s*s/2-u*s, z)
}

func (emg) Area(p []float64) float64 { return p[0] * math.Abs(p[2]) * sqrt2Pi }

func (m emg) FWHM(p []float64) float64 {
	_, _, w, _ := halfWidths(m, p)
	return w
}

func (m emg) Asymmetry(p []float64) float64 {
	_, left, _, right := halfWidths(m, p)
	if left <= 0 {
		return 1
	}
	return right / left
}

func (emg) Initial(center, height, fwhm float64) []float64 {
	sigma := SigmaFromFWHM(fwhm)
	return []float64{height, center, sigma * 0.9, sigma * 0.3}
}

func (emg) Bounds(r Region) ([]float64, []float64) {
	wlo, whi := widthBounds(r)
	return []float64{0, r.XMin - (r.XMax-r.XMin)/2, wlo, wlo / 10}, []float64{amplitudeBound(r) * 2, r.XMax, whi, whi}
}

// expErfc returns exp(a)*erfc(z) without overflow for large z, using the
// asymptotic expansion of the scaled complementary error function.
func expErfc(a, z float64) float64 {
	if z < 5 {
		return math.Exp(a) * math.Erfc(z)
	}
	z2 := z * z
	series := 1 - 1/(2*z2) + 3/(4*z2*z2) - 15/(8*z2*z2*z2)
	return math.Exp(a-z2) * series / (z * math.SqrtPi)
}

// apex locates the maximum of m numerically over a window around the
// location parameter.
func apex(m Model, p []float64) (float64, float64) {
	lo, hi := span(p)
	const n = 2000
	step := (hi - lo) / n

	best, bestX := math.Inf(-1), p[1]
	for i := range n + 1 {
		x := lo + float64(i)*step
		if v := m.Eval(x, p); v > best {
			best, bestX = v, x
		}
	}

	// Golden-section refinement in the bracketing cells.
	a, b := bestX-step, bestX+step
	const phi = 0.6180339887498949
	for range 40 {
		c := b - phi*(b-a)
		d := a + phi*(b-a)
		if m.Eval(c, p) > m.Eval(d, p) {
			b = d
		} else {
			a = c
		}
	}
	x := (a + b) / 2
	return x, m.Eval(x, p)
}

func span(p []float64) (float64, float64) {
	sigma, tau := math.Abs(p[2]), math.Abs(p[3])
	return p[1] - 6*sigma, p[1] + 6*sigma + 12*tau
}

// halfWidths returns the apex, the left half width, the FWHM and the right
// half width of m at p, located by bisection on each flank.
func halfWidths(m Model, p []float64) (center, left, fwhm, right float64) {
	center, height := apex(m, p)
	if height <= 0 {
		return center, 0, 0, 0
	}
	half := height / 2
	lo, hi := span(p)

	cross := func(inside, outside float64) float64 {
		if m.Eval(outside, p) > half {
			return outside
		}
		for range 60 {
			mid := (inside + outside) / 2
			if m.Eval(mid, p) > half {
				inside = mid
			} else {
				outside = mid
			}
		}
		return (inside + outside) / 2
	}

	l := cross(center, lo)
	r := cross(center, hi)
	return center, center - l, r - l, r - center
}
