package fit

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/shape"
)

// Method enumerates the fitting methods a peak analysis can request. Each
// single-shape method fits the candidates of one detected hump jointly;
// MultiPeak fits Gaussians to every run of candidates whose fit windows
// intersect.
type Method int

const (
	MultiPeak Method = iota
	GaussianFit
	LorentzianFit
	PseudoVoigtFit
	EMGFit
	BiGaussianFit
)

var methodNames = [...]string{"multi_peak", "gaussian", "lorentzian", "pseudo_voigt", "emg", "bi_gaussian"}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// Methods lists the fitting methods.
func Methods() []Method {
	return []Method{MultiPeak, GaussianFit, LorentzianFit, PseudoVoigtFit, EMGFit, BiGaussianFit}
}

// ParseMethod returns the fitting method with the given name. Shape
// aliases accepted by shape.ParseKind are accepted too.
func ParseMethod(name string) (Method, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range methodNames {
		if s == n {
			return Method(i), nil
		}
	}
	if n == "multi" {
		return MultiPeak, nil
	}
	if k, err := shape.ParseKind(n); err == nil {
		return methodOf(k), nil
	}
	return 0, model.NewUnknownMethod("fitting_method", name)
}

func methodOf(k shape.Kind) Method {
	switch k {
	case shape.Lorentzian:
		return LorentzianFit
	case shape.PseudoVoigt:
		return PseudoVoigtFit
	case shape.EMG:
		return EMGFit
	case shape.BiGaussian:
		return BiGaussianFit
	}
	return GaussianFit
}

// Shape returns the peak model fitted by m.
func (m Method) Shape() shape.Kind {
	switch m {
	case LorentzianFit:
		return shape.Lorentzian
	case PseudoVoigtFit:
		return shape.PseudoVoigt
	case EMGFit:
		return shape.EMG
	case BiGaussianFit:
		return shape.BiGaussian
	}
	return shape.Gaussian
}
