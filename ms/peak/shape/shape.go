// Package shape provides the analytic peak models used for fitting.
//
// Every model is a function of x and a parameter vector whose first two
// entries are an amplitude and a location. Models report their area, FWHM
// and asymmetry for a given parameter vector, provide a starting point from
// a detection estimate and bound their parameters for constrained fits.
package shape

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-spectro/ms/model"
)

// Kind enumerates the built-in models.
type Kind int

const (
	Gaussian Kind = iota
	Lorentzian
	PseudoVoigt
	EMG
	BiGaussian
)

var kindNames = [...]string{"gaussian", "lorentzian", "pseudo_voigt", "emg", "bi_gaussian"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds lists the built-in models.
func Kinds() []Kind { return []Kind{Gaussian, Lorentzian, PseudoVoigt, EMG, BiGaussian} }

// ParseKind returns the model kind with the given name.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "gauss":
		return Gaussian, nil
	case "voigt":
		return PseudoVoigt, nil
	case "exponentially_modified_gaussian":
		return EMG, nil
	case "bigaussian":
		return BiGaussian, nil
	}
	for i, s := range kindNames {
		if s == n {
			return Kind(i), nil
		}
	}
	return 0, model.NewUnknownMethod("peak_shape", name)
}

// Region describes the data a model is fitted to. It scales the parameter
// bounds.
type Region struct {
	XMin, XMax float64
	YMax       float64
	Step       float64 // smallest sample spacing
}

// Model is an analytic peak shape.
type Model interface {
	Kind() Kind
	// NumParams is the length of the parameter vector.
	NumParams() int
	Eval(x float64, p []float64) float64
	Area(p []float64) float64
	FWHM(p []float64) float64
	// Asymmetry is the right over left half width at half maximum.
	Asymmetry(p []float64) float64
	// Initial returns a parameter vector matching a peak of the given
	// height, apex position and FWHM.
	Initial(center, height, fwhm float64) []float64
	Bounds(r Region) (lo, hi []float64)
}

// New returns the model for k.
func New(k Kind) (Model, error) {
	switch k {
	case Gaussian:
		return gaussian{}, nil
	case Lorentzian:
		return lorentzian{}, nil
	case PseudoVoigt:
		return pseudoVoigt{}, nil
	case EMG:
		return emg{}, nil
	case BiGaussian:
		return biGaussian{}, nil
	}
	return nil, model.NewUnknownMethod("peak_shape", k.String())
}

// Summary is the apex description of a parameterised peak.
type Summary struct {
	Center    float64
	Height    float64
	FWHM      float64
	Area      float64
	Asymmetry float64
}

// Describe summarises m at p. For models whose apex differs from the
// location parameter the apex is located numerically.
func Describe(m Model, p []float64) Summary {
	s := Summary{
		Center:    p[1],
		Height:    m.Eval(p[1], p),
		FWHM:      m.FWHM(p),
		Area:      m.Area(p),
		Asymmetry: m.Asymmetry(p),
	}
	if m.Kind() == EMG {
		s.Center, s.Height = apex(m, p)
	}
	return s
}

// EvalSum evaluates the sum of len(p)/m.NumParams() peaks of model m whose
// parameter vectors are concatenated in p.
func EvalSum(m Model, x float64, p []float64) float64 {
	k := m.NumParams()
	v := 0.0
	for i := 0; i+k <= len(p); i += k {
		v += m.Eval(x, p[i:i+k])
	}
	return v
}

// Constants relating Gaussian widths.
var (
	fwhmPerSigma = 2 * math.Sqrt(2*math.Ln2)
	sqrt2Pi      = math.Sqrt(2 * math.Pi)
)

// SigmaFromFWHM converts a Gaussian FWHM to its standard deviation.
func SigmaFromFWHM(fwhm float64) float64 { return fwhm / fwhmPerSigma }

// FWHMFromSigma converts a Gaussian standard deviation to its FWHM.
func FWHMFromSigma(sigma float64) float64 { return sigma * fwhmPerSigma }

// widthBounds bounds a width-like parameter between a fraction of the
// sample spacing and the region span.
func widthBounds(r Region) (float64, float64) {
	span := r.XMax - r.XMin
	lo := r.Step / 4
	if lo <= 0 {
		lo = span * 1e-4
	}
	if lo <= 0 {
		lo = 1e-9
	}
	return lo, max(span, 4*lo)
}

func amplitudeBound(r Region) float64 {
	return max(math.Abs(r.YMax)*4, 1e-12)
}
