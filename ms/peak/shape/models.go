package shape

import "math"

// gaussian: p = [A, mu, sigma].
type gaussian struct{}

func (gaussian) Kind() Kind     { return Gaussian }
func (gaussian) NumParams() int { return 3 }

func (gaussian) Eval(x float64, p []float64) float64 {
	d := (x - p[1]) / p[2]
	return p[0] * math.Exp(-0.5*d*d)
}

func (gaussian) Area(p []float64) float64      { return p[0] * math.Abs(p[2]) * sqrt2Pi }
func (gaussian) FWHM(p []float64) float64      { return FWHMFromSigma(math.Abs(p[2])) }
func (gaussian) Asymmetry(p []float64) float64 { return 1 }

func (gaussian) Initial(center, height, fwhm float64) []float64 {
	return []float64{height, center, SigmaFromFWHM(fwhm)}
}

func (gaussian) Bounds(r Region) ([]float64, []float64) {
	wlo, whi := widthBounds(r)
	return []float64{0, r.XMin, wlo}, []float64{amplitudeBound(r), r.XMax, whi}
}

// lorentzian: p = [A, mu, gamma] with gamma the half width at half maximum.
type lorentzian struct{}

func (lorentzian) Kind() Kind     { return Lorentzian }
func (lorentzian) NumParams() int { return 3 }

func (lorentzian) Eval(x float64, p []float64) float64 {
	d := x - p[1]
	g2 := p[2] * p[2]
	return p[0] * g2 / (d*d + g2)
}

func (lorentzian) Area(p []float64) float64      { return p[0] * math.Pi * math.Abs(p[2]) }
func (lorentzian) FWHM(p []float64) float64      { return 2 * math.Abs(p[2]) }
func (lorentzian) Asymmetry(p []float64) float64 { return 1 }

func (lorentzian) Initial(center, height, fwhm float64) []float64 {
	return []float64{height, center, fwhm / 2}
}

func (lorentzian) Bounds(r Region) ([]float64, []float64) {
	wlo, whi := widthBounds(r)
	return []float64{0, r.XMin, wlo}, []float64{amplitudeBound(r), r.XMax, whi}
}

// pseudoVoigt: p = [A, mu, w, eta], a mix of a Gaussian and a Lorentzian
// sharing the FWHM w, with Lorentzian fraction eta.
type pseudoVoigt struct{}

func (pseudoVoigt) Kind() Kind     { return PseudoVoigt }
func (pseudoVoigt) NumParams() int { return 4 }

func (pseudoVoigt) Eval(x float64, p []float64) float64 {
	d := x - p[1]
	sigma := SigmaFromFWHM(p[2])
	gamma := p[2] / 2
	g := math.Exp(-0.5 * d * d / (sigma * sigma))
	l := gamma * gamma / (d*d + gamma*gamma)
	return p[0] * (p[3]*l + (1-p[3])*g)
}

func (pseudoVoigt) Area(p []float64) float64 {
	w := math.Abs(p[2])
	return p[0] * (p[3]*math.Pi*w/2 + (1-p[3])*SigmaFromFWHM(w)*sqrt2Pi)
}

func (pseudoVoigt) FWHM(p []float64) float64      { return math.Abs(p[2]) }
func (pseudoVoigt) Asymmetry(p []float64) float64 { return 1 }

func (pseudoVoigt) Initial(center, height, fwhm float64) []float64 {
	return []float64{height, center, fwhm, 0.5}
}

func (pseudoVoigt) Bounds(r Region) ([]float64, []float64) {
	wlo, whi := widthBounds(r)
	return []float64{0, r.XMin, 2 * wlo, 0}, []float64{amplitudeBound(r), r.XMax, 2 * whi, 1}
}

// biGaussian: p = [A, mu, sigmaL, sigmaR], a Gaussian with independent
// widths left and right of the apex.
type biGaussian struct{}

func (biGaussian) Kind() Kind     { return BiGaussian }
func (biGaussian) NumParams() int { return 4 }

func (biGaussian) Eval(x float64, p []float64) float64 {
	s := p[2]
	if x > p[1] {
		s = p[3]
	}
	d := (x - p[1]) / s
	return p[0] * math.Exp(-0.5*d*d)
}

func (biGaussian) Area(p []float64) float64 {
	return p[0] * sqrt2Pi / 2 * (math.Abs(p[2]) + math.Abs(p[3]))
}

func (biGaussian) FWHM(p []float64) float64 {
	return FWHMFromSigma(math.Abs(p[2])+math.Abs(p[3])) / 2
}

func (biGaussian) Asymmetry(p []float64) float64 {
	if p[2] == 0 {
		return 1
	}
	return math.Abs(p[3] / p[2])
}

func (biGaussian) Initial(center, height, fwhm float64) []float64 {
	s := SigmaFromFWHM(fwhm)
	return []float64{height, center, s, s}
}

func (biGaussian) Bounds(r Region) ([]float64, []float64) {
	wlo, whi := widthBounds(r)
	return []float64{0, r.XMin, wlo, wlo}, []float64{amplitudeBound(r), r.XMax, whi, whi}
}
