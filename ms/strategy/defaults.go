package strategy

import (
	"github.com/cwbudde/algo-spectro/ms/baseline"
	"github.com/cwbudde/algo-spectro/ms/extract"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/detect"
	"github.com/cwbudde/algo-spectro/ms/peak/fit"
	"github.com/cwbudde/algo-spectro/ms/peak/overlap"
)

// Version is reported by every built-in component.
const Version = "1.0.0"

// Names of the built-in stages.
const (
	EMGAlgorithm      = "emg_algorithm"
	BiGaussianRefit   = "bi_gaussian"
	QualityValidation = "quality_validation"
	AreaNormalization = "area_normalization"
)

type info struct {
	desc string
	caps []string
}

var detectorInfo = map[detect.Method]info{
	detect.Simple:     {"Local maxima above a noise threshold with shoulder resolution", []string{"local_maxima", "shoulders"}},
	detect.PeakFinder: {"Topographic prominence with minimum-distance suppression", []string{"prominence", "width_estimate"}},
	detect.CWT:        {"Ricker wavelet ridge lines across scales", []string{"multi_scale", "noise_robust"}},
}

var fittingInfo = map[fit.Method]info{
	fit.MultiPeak:      {"Joint Gaussian fit of every run of overlapping fit windows", []string{"multi_peak", "gaussian"}},
	fit.GaussianFit:    {"Gaussian peak model", []string{"symmetric"}},
	fit.LorentzianFit:  {"Lorentzian peak model", []string{"symmetric", "heavy_tails"}},
	fit.PseudoVoigtFit: {"Gaussian-Lorentzian mixture", []string{"symmetric", "heavy_tails"}},
	fit.EMGFit:         {"Exponentially modified Gaussian", []string{"asymmetric", "tailing"}},
	fit.BiGaussianFit:  {"Gaussian with independent left and right widths", []string{"asymmetric"}},
}

var overlapInfo = map[overlap.Method]info{
	overlap.None:           {"Leave overlapping peaks as fitted", nil},
	overlap.FBF:            {"Forward-backward peel-off fits with joint refinement", []string{"moderate_overlap"}},
	overlap.SharpenCWT:     {"Second-derivative sharpening to relocate centres", []string{"strong_overlap"}},
	overlap.EMGNLLS:        {"Joint exponentially modified Gaussian least squares", []string{"strong_overlap", "tailing"}},
	overlap.ExtremeOverlap: {"Simulated annealing with Levenberg-Marquardt polish", []string{"extreme_overlap", "noisy"}},
	overlap.Auto:           {"Selects a resolver per group from overlap severity and SNR", []string{"adaptive"}},
}

var optimizerInfo = map[fit.Optimizer]info{
	fit.LevenbergMarquardt: {"Damped Gauss-Newton with a numeric Jacobian", []string{"local", "fast"}},
	fit.GradientDescent:    {"Backtracking gradient descent", []string{"local"}},
	fit.GridSearch:         {"Coarse centre and width grid with Levenberg-Marquardt polish", []string{"global"}},
	fit.SimulatedAnnealing: {"Seeded simulated annealing with Levenberg-Marquardt polish", []string{"global", "deterministic"}},
}

var baselineInfo = map[baseline.Method]info{
	baseline.None:          {"Zero baseline", nil},
	baseline.Linear:        {"Straight line through low edge anchors", []string{"drift"}},
	baseline.Polynomial:    {"Iterative clipped polynomial envelope", []string{"curved_drift"}},
	baseline.MovingAverage: {"Centered moving average", []string{"smooth"}},
	baseline.ALS:           {"Asymmetric least squares", []string{"curved_drift", "robust"}},
}

var extractorInfo = map[extract.Kind]info{
	extract.DriftTime:    {"Intensity summed per drift-time bin", []string{"ion_mobility"}},
	extract.TotalIon:     {"Total intensity per retention time", []string{"chromatogram"}},
	extract.ExtractedIon: {"Intensity in an m/z window per retention time", []string{"chromatogram", "mz_window"}},
}

// DefaultRegistry returns a Registry pre-populated with every built-in
// component.
//
//nolint:funlen
func DefaultRegistry() *Registry {
	r := NewRegistry()

	for _, m := range detect.Methods() {
		r.MustRegister(descriptor(model.PeakDetector, m.String(), detectorInfo[m]), nil)
	}

	for _, m := range fit.Methods() {
		r.MustRegister(descriptor(model.FittingMethod, m.String(), fittingInfo[m]), nil)
	}

	for _, m := range overlap.Methods() {
		r.MustRegister(descriptor(model.OverlapProcessor, m.String(), overlapInfo[m]), nil)
	}

	for _, o := range fit.Optimizers() {
		r.MustRegister(descriptor(model.ParameterOptimizer, o.String(), optimizerInfo[o]), nil)
	}

	for _, m := range baseline.Methods() {
		r.MustRegister(descriptor(model.BaselineCorrector, m.String(), baselineInfo[m]), nil)
	}

	for _, k := range extract.Kinds() {
		r.MustRegister(descriptor(model.CurveExtractor, k.String(), extractorInfo[k]), nil)
	}

	r.MustRegister(descriptor(model.AdvancedAlgorithm, EMGAlgorithm,
		info{"Refit peaks with exponentially modified Gaussians", []string{"asymmetric", "tailing"}}),
		func() (Stage, error) { return refit{method: fit.EMGFit}, nil })
	r.MustRegister(descriptor(model.AdvancedAlgorithm, BiGaussianRefit,
		info{"Refit peaks with bi-Gaussians", []string{"asymmetric"}}),
		func() (Stage, error) { return refit{method: fit.BiGaussianFit}, nil })

	r.MustRegister(descriptor(model.PostProcessor, QualityValidation,
		info{"Drop peaks whose quality is below quality_threshold", []string{"filter"}}),
		func() (Stage, error) { return qualityValidation{}, nil })
	r.MustRegister(descriptor(model.PostProcessor, AreaNormalization,
		info{"Record each peak's share of the total area in percent", []string{"relative_area"}}),
		func() (Stage, error) { return areaNormalization{}, nil })

	return r
}

func descriptor(t model.ComponentType, name string, i info) model.ComponentDescriptor {
	return model.ComponentDescriptor{
		Type:         t,
		Name:         name,
		Version:      Version,
		Description:  i.desc,
		Capabilities: i.caps,
	}
}
