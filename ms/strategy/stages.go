package strategy

import (
	"context"
	"math"

	"github.com/spf13/cast"

	"github.com/cwbudde/algo-spectro/ms/analyzer"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/fit"
	"github.com/cwbudde/algo-spectro/ms/peak/overlap"
)

// KeyQualityThreshold is the strategy config key read by quality_validation.
const KeyQualityThreshold = "quality_threshold"

// DefaultQualityThreshold applies when a strategy names quality_validation
// without a threshold.
const DefaultQualityThreshold = 0.8

// Configurable is implemented by stages that start from the analyzer
// configuration of the strategy they run in. The controller hands it over
// before calling Process.
type Configurable interface {
	WithAnalyzerConfig(cfg analyzer.Config) Stage
}

// refit fits the peaks again with an asymmetric model. Peaks whose refit
// fails are kept as they were.
type refit struct {
	method fit.Method
	base   *analyzer.Config
}

// WithAnalyzerConfig returns a copy of s that starts from cfg instead of
// the analyzer defaults.
func (s refit) WithAnalyzerConfig(cfg analyzer.Config) Stage {
	s.base = &cfg
	return s
}

func (s refit) Process(ctx context.Context, c model.Curve, peaks []model.Peak, cfg map[string]any) ([]model.Peak, error) {
	if len(peaks) == 0 {
		return []model.Peak{}, nil
	}

	ac := analyzer.DefaultConfig()
	if s.base != nil {
		ac = *s.base
	}

	if err := applySections(&ac, cfg); err != nil {
		return nil, err
	}

	ac.FittingMethod = s.method.String()
	ac.OverlapMethod = overlap.None.String()

	if v, ok := cfg[model.KeyOptimizationAlgorithm]; ok {
		ac.Optimizer = cast.ToString(v)
	}

	a, err := analyzer.New(ac)
	if err != nil {
		return nil, err
	}

	res, err := a.AnalyzePeaks(ctx, c, peaks)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Peak, len(peaks))
	for _, p := range peaks {
		byID[p.ID] = p
	}

	out := res.Peaks
	for i, p := range out {
		in, ok := byID[p.ID]
		if !ok {
			continue
		}

		if !p.Converged() && in.Converged() {
			out[i] = in.Clone()
			continue
		}

		out[i].OverlapResolved = in.OverlapResolved
		if v, ok := in.Metadata[model.MetaOverlapMethod]; ok {
			out[i].Metadata[model.MetaOverlapMethod] = v
		}
	}

	model.SortPeaks(out)

	return out, nil
}

// qualityValidation drops peaks scoring below the quality threshold.
type qualityValidation struct{}

func (qualityValidation) Process(_ context.Context, _ model.Curve, peaks []model.Peak, cfg map[string]any) ([]model.Peak, error) {
	threshold := DefaultQualityThreshold

	if v, ok := cfg[KeyQualityThreshold]; ok {
		t, err := cast.ToFloat64E(v)
		if err != nil || math.IsNaN(t) || t < 0 || t > 1 {
			return nil, model.NewConfigValidation(KeyQualityThreshold, "must be a number in [0, 1]")
		}

		threshold = t
	}

	out := make([]model.Peak, 0, len(peaks))
	for _, p := range peaks {
		if p.Quality >= threshold {
			out = append(out, p)
		}
	}

	return out, nil
}

// areaNormalization records each peak's share of the summed area in percent.
type areaNormalization struct{}

func (areaNormalization) Process(_ context.Context, _ model.Curve, peaks []model.Peak, _ map[string]any) ([]model.Peak, error) {
	total := 0.0
	for _, p := range peaks {
		if p.Area > 0 {
			total += p.Area
		}
	}

	out := make([]model.Peak, len(peaks))
	for i, p := range peaks {
		out[i] = p.Clone()

		share := 0.0
		if total > 0 && p.Area > 0 {
			share = 100 * p.Area / total
		}

		out[i].Metadata[model.MetaRelativeArea] = share
	}

	return out, nil
}
