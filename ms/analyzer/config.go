package analyzer

import (
	"log/slog"
	"math"

	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/detect"
	"github.com/cwbudde/algo-spectro/ms/peak/fit"
	"github.com/cwbudde/algo-spectro/ms/peak/overlap"
)

// Config selects the methods of every stage and their parameters. Method
// names are resolved by New.
type Config struct {
	Detector      string         `json:"detector" yaml:"detector" jsonschema:"enum=simple,enum=peak_finder,enum=cwt,default=simple"`
	FittingMethod string         `json:"fitting_method" yaml:"fitting_method" jsonschema:"enum=multi_peak,enum=gaussian,enum=lorentzian,enum=pseudo_voigt,enum=emg,enum=bi_gaussian,default=multi_peak"`
	Optimizer     string         `json:"optimization_algorithm" yaml:"optimization_algorithm" jsonschema:"enum=levenberg_marquardt,enum=gradient_descent,enum=grid_search,enum=simulated_annealing,default=levenberg_marquardt"`
	OverlapMethod string         `json:"overlap_method" yaml:"overlap_method" jsonschema:"enum=none,enum=fbf,enum=sharpen_cwt,enum=emg_nlls,enum=extreme_overlap,enum=auto,default=auto"`
	Detection     detect.Params  `json:"detection" yaml:"detection"`
	Fit           fit.Options    `json:"fit" yaml:"fit"`
	Overlap       overlap.Params `json:"overlap" yaml:"overlap"`
	Weights       Weights        `json:"weights" yaml:"weights"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Detector:      detect.Simple.String(),
		FittingMethod: fit.MultiPeak.String(),
		Optimizer:     fit.LevenbergMarquardt.String(),
		OverlapMethod: overlap.Auto.String(),
		Detection:     detect.DefaultParams(),
		Fit:           fit.DefaultOptions(),
		Overlap:       overlap.DefaultParams(),
		Weights:       DefaultWeights(),
	}
}

// Validate checks the numeric parameters. Method names are checked by New.
func (c Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return err
	}
	if err := c.Overlap.Validate(); err != nil {
		return err
	}
	if err := c.Fit.Validate(); err != nil {
		return err
	}
	return c.Weights.Validate()
}

// Weights are the quality score weights. They are expected to sum to 1;
// the score is clamped to [0, 1] regardless.
type Weights struct {
	RSquared   float64 `json:"r_squared" yaml:"r_squared" jsonschema:"minimum=0,default=0.5"`
	Confidence float64 `json:"confidence" yaml:"confidence" jsonschema:"minimum=0,default=0.2"`
	Symmetry   float64 `json:"symmetry" yaml:"symmetry" jsonschema:"minimum=0,default=0.2"`
	FitOK      float64 `json:"fit_ok" yaml:"fit_ok" jsonschema:"minimum=0,default=0.1"`
}

// DefaultWeights returns the documented weights.
func DefaultWeights() Weights {
	return Weights{RSquared: 0.5, Confidence: 0.2, Symmetry: 0.2, FitOK: 0.1}
}

// Validate rejects negative or all-zero weights.
func (w Weights) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"weights.r_squared", w.RSquared},
		{"weights.confidence", w.Confidence},
		{"weights.symmetry", w.Symmetry},
		{"weights.fit_ok", w.FitOK},
	} {
		if f.v < 0 || math.IsNaN(f.v) {
			return model.NewConfigValidation(f.name, "must be >= 0")
		}
	}
	if w.RSquared+w.Confidence+w.Symmetry+w.FitOK == 0 {
		return model.NewConfigValidation("weights", "must not all be zero")
	}
	return nil
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger stage events are written to.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.log = l
		}
	}
}
